package model

import "time"

// Message type constants
const (
	TypeText  = "text"
	TypeFile  = "file"
	TypeVoice = "voice"
)

// Message status constants. Status only moves forward
// (sending -> delivered -> read); failed is terminal and
// reachable from sending only.
const (
	StatusSending   = "sending"
	StatusDelivered = "delivered"
	StatusRead      = "read"
	StatusFailed    = "failed"
)

// Message represents one entry of a session log. Optimistic local
// entries carry a ClientID until the server-assigned ID arrives.
type Message struct {
	ID          string     `json:"id"`
	ClientID    string     `json:"clientId,omitempty"`
	SessionID   string     `json:"sessionId"`
	SenderID    string     `json:"senderId"`
	Type        string     `json:"type"`
	Content     string     `json:"content"`
	FileURL     *string    `json:"fileUrl,omitempty"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"createdAt"`
	DeliveredAt *time.Time `json:"deliveredAt,omitempty"`
	ReadAt      *time.Time `json:"readAt,omitempty"`
}

// StatusRank maps a message status to its position in the forward-only
// lifecycle. Failed ranks alongside delivered so it can never be
// overwritten by a late delivery receipt.
func StatusRank(status string) int {
	switch status {
	case StatusSending:
		return 0
	case StatusDelivered, StatusFailed:
		return 1
	case StatusRead:
		return 2
	default:
		return 0
	}
}

package event

// SessionRef identifies a session in join/leave and snapshot requests.
type SessionRef struct {
	SessionID string `json:"sessionId"`
}

// MessageDelivered - lightweight event for delivery confirmation
type MessageDelivered struct {
	MessageID   string `json:"messageId"`
	SessionID   string `json:"sessionId"`
	DeliveredAt int64  `json:"deliveredAt"`
}

// MessagesRead - read receipt covering every message up to a timestamp
type MessagesRead struct {
	SessionID string `json:"sessionId"`
	ReaderID  string `json:"readerId"`
	UpTo      int64  `json:"upTo"`
}

// TypingIndicator - for typing status
type TypingIndicator struct {
	SessionID string `json:"sessionId"`
	UserID    string `json:"userId"`
	IsTyping  bool   `json:"isTyping"`
}

// UserJoined - a participant attached to a session
type UserJoined struct {
	SessionID string `json:"sessionId"`
	UserID    string `json:"userId"`
	Status    string `json:"status"`
}

// UserLeft - a participant detached from a session
type UserLeft struct {
	SessionID string `json:"sessionId"`
	UserID    string `json:"userId"`
}

// PresenceChanged - a participant's status moved (online/away/offline)
type PresenceChanged struct {
	SessionID string `json:"sessionId"`
	UserID    string `json:"userId"`
	Status    string `json:"status"`
	Timestamp int64  `json:"timestamp"`
}

// OnlineUsersSnapshot - full membership snapshot, replaces local state
type OnlineUsersSnapshot struct {
	SessionID string         `json:"sessionId"`
	Users     []SnapshotUser `json:"users"`
}

// SnapshotUser is one entry of an OnlineUsersSnapshot.
type SnapshotUser struct {
	UserID   string `json:"userId"`
	Status   string `json:"status"`
	LastSeen int64  `json:"lastSeen"`
}

// VoiceApproval - moderation queue events for voice messages
type VoiceApproval struct {
	MessageID string `json:"messageId"`
	SessionID string `json:"sessionId"`
}

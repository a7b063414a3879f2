package model

import "time"

// Notification kind constants
const (
	KindInfo    = "info"
	KindSuccess = "success"
	KindWarning = "warning"
	KindError   = "error"
	KindMessage = "message"
)

// Sound categories, each independently toggleable
const (
	SoundMessage  = "message"
	SoundJoin     = "join"
	SoundLeave    = "leave"
	SoundApproval = "approval"
	SoundError    = "error"
)

// Notification is an ephemeral user-facing toast. Auto-removed after a
// fixed display window; at most five are ever displayed at once.
type Notification struct {
	ID        string    `json:"id"`
	Message   string    `json:"message"`
	Kind      string    `json:"kind"`
	Sticky    bool      `json:"sticky"`
	CreatedAt time.Time `json:"createdAt"`
}

package model

import "time"

// Session is a logical multi-party conversation thread. Sessions are
// never deleted client-side; archival is a server concern.
type Session struct {
	ID             string    `json:"id"`
	Title          string    `json:"title"`
	Type           string    `json:"type"`
	ParticipantIDs []string  `json:"participantIds"`
	LastMessageAt  time.Time `json:"lastMessageAt"`
	UnreadCount    int       `json:"unreadCount"`
}

// User presence status constants
const (
	StatusOnline  = "online"
	StatusAway    = "away"
	StatusOffline = "offline"
)

// PresenceEntry is a participant's live connectivity status within a
// session, keyed by UserID in a session-scoped map.
type PresenceEntry struct {
	UserID   string    `json:"userId"`
	Status   string    `json:"status"`
	LastSeen time.Time `json:"lastSeen"`
}

// Role constants for the local user
const (
	RoleClient  = "client"
	RoleReader  = "reader"
	RoleAdmin   = "admin"
	RoleMonitor = "monitor"
)

// PrivilegedRole reports whether a role receives voice moderation events.
func PrivilegedRole(role string) bool {
	return role == RoleAdmin || role == RoleMonitor
}

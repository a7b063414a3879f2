package model

// -----------------------------------------------------------------
// Monitor API Response Models
// -----------------------------------------------------------------

// MonitorResponse is the main response for the local monitor API
type MonitorResponse struct {
	Status        string         `json:"status"`        // "connected", "reconnecting", ...
	Sessions      SessionStats   `json:"sessions"`      // Session directory stats
	Presence      PresenceStats  `json:"presence"`      // Presence counts by status
	TypingUsers   int            `json:"typingUsers"`   // Remote users currently typing
	PendingVoice  int            `json:"pendingVoice"`  // Voice messages awaiting review
	Notifications int            `json:"notifications"` // Toasts currently displayed
	SessionDetail []SessionInfo  `json:"sessionDetail"` // Per-session breakdown
	StatusCount   map[string]int `json:"statusCount"`   // Presence count by status
}

// SessionStats holds session directory statistics
type SessionStats struct {
	Total       int `json:"total"`       // Sessions in the directory
	TotalUnread int `json:"totalUnread"` // Sum of per-session unread counters
	Selected    int `json:"selected"`    // 1 when a session is active
}

// PresenceStats holds presence counts across all tracked sessions
type PresenceStats struct {
	TotalTracked int `json:"totalTracked"`
	TotalOnline  int `json:"totalOnline"`
	TotalAway    int `json:"totalAway"`
}

// SessionInfo contains information about a single session
type SessionInfo struct {
	SessionID     string `json:"sessionId"`
	Title         string `json:"title"`
	UnreadCount   int    `json:"unreadCount"`
	OnlineMembers int    `json:"onlineMembers"`
	LogLength     int    `json:"logLength"`
}

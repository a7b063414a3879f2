package hub

import (
	"Arcana/internal/model"
	"Arcana/internal/notify"
)

// MonitorService gathers statistics across the session manager for the
// local monitor API.
type MonitorService struct {
	manager  *Manager
	notifier *notify.Dispatcher
}

// NewMonitorService creates a new monitor service
func NewMonitorService(manager *Manager, notifier *notify.Dispatcher) *MonitorService {
	return &MonitorService{manager: manager, notifier: notifier}
}

// GetStats gathers and returns the full stats snapshot.
func (ms *MonitorService) GetStats() model.MonitorResponse {
	m := ms.manager

	sessions := m.Directory.List()
	detail := make([]model.SessionInfo, 0, len(sessions))
	for _, s := range sessions {
		detail = append(detail, model.SessionInfo{
			SessionID:     s.ID,
			Title:         s.Title,
			UnreadCount:   s.UnreadCount,
			OnlineMembers: m.Presence.OnlineCount(s.ID),
			LogLength:     m.Pipeline.LogLength(s.ID),
		})
	}

	presenceStats := m.Presence.Stats()
	statusCount := map[string]int{
		model.StatusOnline: presenceStats.TotalOnline,
		model.StatusAway:   presenceStats.TotalAway,
	}

	pendingVoice := 0
	if m.Moderation != nil {
		pendingVoice = m.Moderation.Pending()
	}

	selected := 0
	if _, ok := m.Directory.Selected(); ok {
		selected = 1
	}

	status := "idle"
	if m.conn != nil {
		status = string(m.conn.State())
	}

	return model.MonitorResponse{
		Status: status,
		Sessions: model.SessionStats{
			Total:       m.Directory.Len(),
			TotalUnread: m.Directory.TotalUnread(),
			Selected:    selected,
		},
		Presence:      presenceStats,
		TypingUsers:   m.Typing.Count(),
		PendingVoice:  pendingVoice,
		Notifications: len(ms.notifier.Active()),
		SessionDetail: detail,
		StatusCount:   statusCount,
	}
}

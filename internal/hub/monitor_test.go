package hub

import (
	"Arcana/internal/event"
	"Arcana/internal/model"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMonitorStatsAggregation(t *testing.T) {
	m, _, persistence, notifier := newTestManager(t, model.RoleAdmin)
	persistence.sessions = []model.Session{
		{ID: "s1", Title: "Celtic cross", UnreadCount: 2, LastMessageAt: time.Now()},
		{ID: "s2", Title: "Daily card", UnreadCount: 1},
	}
	require.NoError(t, m.RefreshSessions(context.Background()))

	m.HandleTransportEvent(wrap(t, event.EventUserJoined, event.UserJoined{
		SessionID: "s1", UserID: "u1", Status: model.StatusOnline,
	}))
	m.HandleTransportEvent(wrap(t, event.EventTypingStart, event.TypingIndicator{
		SessionID: "s1", UserID: "u1",
	}))
	m.HandleTransportEvent(wrap(t, event.EventVoiceApprovalNeeded, event.VoiceApproval{MessageID: "m1"}))

	stats := NewMonitorService(m, notifier).GetStats()

	assert.Equal(t, 2, stats.Sessions.Total)
	assert.Equal(t, 3, stats.Sessions.TotalUnread)
	assert.Equal(t, 1, stats.TypingUsers)
	assert.Equal(t, 1, stats.PendingVoice)
	assert.Equal(t, 1, stats.Presence.TotalOnline)
	require.Len(t, stats.SessionDetail, 2)
	assert.Equal(t, "s1", stats.SessionDetail[0].SessionID)
	assert.Equal(t, 1, stats.SessionDetail[0].OnlineMembers)
}

func TestMonitorStatsWithoutModerationQueue(t *testing.T) {
	m, _, _, notifier := newTestManager(t, model.RoleClient)

	stats := NewMonitorService(m, notifier).GetStats()
	assert.Equal(t, 0, stats.PendingVoice)
	assert.Equal(t, "connected", stats.Status)
}

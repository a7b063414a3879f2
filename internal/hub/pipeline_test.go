package hub

import (
	"Arcana/internal/model"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestPipeline(t *testing.T, hooks PipelineHooks) *Pipeline {
	t.Helper()
	return NewPipeline("local-user", hooks, zap.NewNop())
}

func TestStageLocalRejectsEmptyContent(t *testing.T) {
	p := newTestPipeline(t, PipelineHooks{})

	for _, content := range []string{"", "   ", "\n\t"} {
		_, err := p.StageLocal("s1", model.TypeText, content)
		assert.ErrorIs(t, err, ErrEmptyMessage)
	}
	assert.Equal(t, 0, p.LogLength("s1"))
}

func TestStageLocalAppendsOptimisticEntry(t *testing.T) {
	p := newTestPipeline(t, PipelineHooks{})

	staged, err := p.StageLocal("s1", model.TypeText, "hello")
	require.NoError(t, err)
	assert.NotEmpty(t, staged.ClientID)
	assert.Empty(t, staged.ID)
	assert.Equal(t, model.StatusSending, staged.Status)

	log := p.Log("s1")
	require.Len(t, log, 1)
	assert.Equal(t, model.StatusSending, log[0].Status)
}

func TestConfirmLocalReconcilesByCorrelationID(t *testing.T) {
	p := newTestPipeline(t, PipelineHooks{})

	staged, err := p.StageLocal("s1", model.TypeText, "hello")
	require.NoError(t, err)

	confirmed := model.Message{
		ID:        "srv-1",
		SessionID: "s1",
		SenderID:  "local-user",
		Type:      model.TypeText,
		Content:   "hello",
		CreatedAt: time.Now(),
	}
	require.NoError(t, p.ConfirmLocal(staged.ClientID, confirmed))

	log := p.Log("s1")
	require.Len(t, log, 1)
	assert.Equal(t, "srv-1", log[0].ID)
	assert.Equal(t, model.StatusDelivered, log[0].Status)
	assert.NotNil(t, log[0].DeliveredAt)

	// The temporary entry is gone from the pending map.
	assert.ErrorIs(t, p.ConfirmLocal(staged.ClientID, confirmed), ErrUnknownMessage)
}

func TestFailLocalIsTerminalAndStaysVisible(t *testing.T) {
	p := newTestPipeline(t, PipelineHooks{})

	staged, err := p.StageLocal("s1", model.TypeText, "hello")
	require.NoError(t, err)
	require.NoError(t, p.FailLocal(staged.ClientID))

	log := p.Log("s1")
	require.Len(t, log, 1)
	assert.Equal(t, model.StatusFailed, log[0].Status)

	// A late delivery receipt must not resurrect a failed message.
	p.MarkDelivered("srv-1", time.Now())
	assert.Equal(t, model.StatusFailed, p.Log("s1")[0].Status)
}

func TestReceiveInboundDedupesSelfEcho(t *testing.T) {
	p := newTestPipeline(t, PipelineHooks{})

	staged, err := p.StageLocal("s1", model.TypeText, "hello")
	require.NoError(t, err)
	confirmed := model.Message{ID: "srv-1", SessionID: "s1", SenderID: "local-user", Content: "hello"}
	require.NoError(t, p.ConfirmLocal(staged.ClientID, confirmed))

	// The sender receives its own fan-out: log length unchanged.
	p.ReceiveInbound(confirmed)
	assert.Equal(t, 1, p.LogLength("s1"))
}

func TestReceiveInboundFanOutBeatsPersistence(t *testing.T) {
	p := newTestPipeline(t, PipelineHooks{})

	staged, err := p.StageLocal("s1", model.TypeText, "hello")
	require.NoError(t, err)

	// Fan-out echo arrives before the REST response; the correlation id
	// confirms the optimistic entry instead of duplicating it.
	p.ReceiveInbound(model.Message{
		ID:        "srv-1",
		ClientID:  staged.ClientID,
		SessionID: "s1",
		SenderID:  "local-user",
		Content:   "hello",
	})

	log := p.Log("s1")
	require.Len(t, log, 1)
	assert.Equal(t, "srv-1", log[0].ID)
	assert.Equal(t, model.StatusDelivered, log[0].Status)
}

func TestReceiveInboundCountsUnreadForRemoteOnly(t *testing.T) {
	type activity struct {
		sessionID   string
		countUnread bool
	}
	var seen []activity
	p := newTestPipeline(t, PipelineHooks{
		OnActivity: func(sessionID string, at time.Time, countUnread bool) {
			seen = append(seen, activity{sessionID, countUnread})
		},
	})

	p.ReceiveInbound(model.Message{ID: "srv-1", SessionID: "s1", SenderID: "reader-7"})
	p.ReceiveInbound(model.Message{ID: "srv-2", SessionID: "s1", SenderID: "local-user"})

	require.Len(t, seen, 2)
	assert.True(t, seen[0].countUnread)
	assert.False(t, seen[1].countUnread)
}

func TestReceiveInboundKeepsArrivalOrder(t *testing.T) {
	p := newTestPipeline(t, PipelineHooks{})

	older := time.Now().Add(-time.Hour)
	p.ReceiveInbound(model.Message{ID: "srv-2", SessionID: "s1", SenderID: "u2", CreatedAt: time.Now()})
	p.ReceiveInbound(model.Message{ID: "srv-1", SessionID: "s1", SenderID: "u2", CreatedAt: older})

	log := p.Log("s1")
	require.Len(t, log, 2)
	// Arrival order is authoritative, not created_at order.
	assert.Equal(t, "srv-2", log[0].ID)
	assert.Equal(t, "srv-1", log[1].ID)
}

func TestMarkDeliveredIsIdempotentAndMonotonic(t *testing.T) {
	p := newTestPipeline(t, PipelineHooks{})

	staged, err := p.StageLocal("s1", model.TypeText, "hello")
	require.NoError(t, err)
	require.NoError(t, p.ConfirmLocal(staged.ClientID, model.Message{ID: "srv-1", SessionID: "s1", SenderID: "local-user"}))

	first := time.Now()
	p.MarkDelivered("srv-1", first)
	state1 := p.Log("s1")[0]

	p.MarkDelivered("srv-1", first.Add(time.Minute))
	state2 := p.Log("s1")[0]
	assert.Equal(t, state1, state2)

	// read is never demoted back to delivered
	p.MarkRead("s1", time.Now().Add(time.Hour))
	p.MarkDelivered("srv-1", time.Now())
	assert.Equal(t, model.StatusRead, p.Log("s1")[0].Status)
}

func TestMarkReadTransitionsDeliveredLocalMessages(t *testing.T) {
	p := newTestPipeline(t, PipelineHooks{})

	staged, err := p.StageLocal("s1", model.TypeText, "hello")
	require.NoError(t, err)
	require.NoError(t, p.ConfirmLocal(staged.ClientID, model.Message{ID: "srv-1", SessionID: "s1", SenderID: "local-user"}))

	// A remote message and a still-sending local message must be left
	// alone.
	p.ReceiveInbound(model.Message{ID: "srv-2", SessionID: "s1", SenderID: "reader-7"})
	inFlight, err := p.StageLocal("s1", model.TypeText, "pending")
	require.NoError(t, err)

	boundary := time.Now().Add(time.Minute)
	p.MarkRead("s1", boundary)
	p.MarkRead("s1", boundary) // idempotent

	log := p.Log("s1")
	byID := map[string]model.Message{}
	for _, msg := range log {
		key := msg.ID
		if key == "" {
			key = msg.ClientID
		}
		byID[key] = msg
	}
	assert.Equal(t, model.StatusRead, byID["srv-1"].Status)
	assert.Equal(t, model.StatusDelivered, byID["srv-2"].Status)
	assert.Equal(t, model.StatusSending, byID[inFlight.ClientID].Status)
}

func TestMarkReadRespectsBoundary(t *testing.T) {
	p := newTestPipeline(t, PipelineHooks{})

	staged, err := p.StageLocal("s1", model.TypeText, "hello")
	require.NoError(t, err)
	createdAt := time.Now()
	require.NoError(t, p.ConfirmLocal(staged.ClientID, model.Message{
		ID: "srv-1", SessionID: "s1", SenderID: "local-user", CreatedAt: createdAt,
	}))

	p.MarkRead("s1", createdAt.Add(-time.Minute))
	assert.Equal(t, model.StatusDelivered, p.Log("s1")[0].Status)
}

func TestLoadHistoryKeepsPendingEntries(t *testing.T) {
	p := newTestPipeline(t, PipelineHooks{})

	inFlight, err := p.StageLocal("s1", model.TypeText, "pending")
	require.NoError(t, err)

	p.LoadHistory("s1", []model.Message{
		{ID: "srv-1", SessionID: "s1", SenderID: "reader-7", Status: model.StatusDelivered},
		{ID: "srv-2", SessionID: "s1", SenderID: "local-user", Status: model.StatusRead},
	})

	log := p.Log("s1")
	require.Len(t, log, 3)
	assert.Equal(t, inFlight.ClientID, log[2].ClientID)

	// History ids are registered for dedupe.
	p.ReceiveInbound(model.Message{ID: "srv-1", SessionID: "s1", SenderID: "reader-7"})
	assert.Equal(t, 3, p.LogLength("s1"))
}

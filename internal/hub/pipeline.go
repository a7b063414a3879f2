package hub

import (
	"Arcana/internal/model"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrEmptyMessage   = errors.New("message content cannot be empty")
	ErrUnknownMessage = errors.New("message is not tracked by the pipeline")
)

// PipelineHooks let the session directory react to log changes without
// the pipeline owning session metadata.
type PipelineHooks struct {
	// OnActivity fires when a message lands in a session log.
	// countUnread is false for messages authored by the local user.
	OnActivity func(sessionID string, at time.Time, countUnread bool)
}

// Pipeline tracks outgoing message lifecycle and merges inbound
// messages into per-session ordered logs. It is the exclusive owner of
// message status transitions; arrival order is authoritative for the
// log. Optimistic local entries are reconciled against
// server-confirmed ones through an explicit correlation-id map, never
// by object identity.
type Pipeline struct {
	localUserID string
	hooks       PipelineHooks
	logger      *zap.Logger

	mu      sync.RWMutex
	logs    map[string][]*model.Message // sessionID -> arrival-ordered log
	known   map[string]struct{}         // server-assigned ids already in some log
	pending map[string]*model.Message   // correlation id -> optimistic entry
}

func NewPipeline(localUserID string, hooks PipelineHooks, logger *zap.Logger) *Pipeline {
	if hooks.OnActivity == nil {
		hooks.OnActivity = func(string, time.Time, bool) {}
	}
	return &Pipeline{
		localUserID: localUserID,
		hooks:       hooks,
		logger:      logger,
		logs:        make(map[string][]*model.Message),
		known:       make(map[string]struct{}),
		pending:     make(map[string]*model.Message),
	}
}

// StageLocal creates an optimistic local entry with status sending and
// appends it to the session log immediately. Text content must be
// non-empty after trimming; attachments pass a placeholder content.
func (p *Pipeline) StageLocal(sessionID, msgType, content string) (*model.Message, error) {
	if msgType == model.TypeText && strings.TrimSpace(content) == "" {
		return nil, ErrEmptyMessage
	}

	msg := &model.Message{
		ClientID:  uuid.New().String(),
		SessionID: sessionID,
		SenderID:  p.localUserID,
		Type:      msgType,
		Content:   content,
		Status:    model.StatusSending,
		CreatedAt: time.Now(),
	}

	p.mu.Lock()
	p.logs[sessionID] = append(p.logs[sessionID], msg)
	p.pending[msg.ClientID] = msg
	p.mu.Unlock()

	p.hooks.OnActivity(sessionID, msg.CreatedAt, false)
	return copyOf(msg), nil
}

// ConfirmLocal replaces an optimistic entry with its server-confirmed
// message, matched by correlation id. The temporary entry keeps its
// log position; the client-local id is discarded from the pending map.
func (p *Pipeline) ConfirmLocal(clientID string, confirmed model.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	msg, ok := p.pending[clientID]
	if !ok {
		return ErrUnknownMessage
	}
	delete(p.pending, clientID)

	msg.ID = confirmed.ID
	if !confirmed.CreatedAt.IsZero() {
		msg.CreatedAt = confirmed.CreatedAt
	}
	msg.FileURL = confirmed.FileURL
	if confirmed.Content != "" {
		msg.Content = confirmed.Content
	}
	if msg.Status == model.StatusSending {
		msg.Status = model.StatusDelivered
		if confirmed.DeliveredAt != nil {
			msg.DeliveredAt = confirmed.DeliveredAt
		} else {
			now := time.Now()
			msg.DeliveredAt = &now
		}
	}
	p.known[confirmed.ID] = struct{}{}
	return nil
}

// FailLocal marks an optimistic entry failed. Failed is terminal: the
// entry stays visible in the log and is never retried automatically.
func (p *Pipeline) FailLocal(clientID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	msg, ok := p.pending[clientID]
	if !ok {
		return ErrUnknownMessage
	}
	delete(p.pending, clientID)

	if msg.Status == model.StatusSending {
		msg.Status = model.StatusFailed
	}
	return nil
}

// ReceiveInbound merges a fan-out message into its session log. A
// message whose server id is already known is dropped (the sender
// receives its own fan-out); one matching a pending correlation id
// confirms that optimistic entry instead of duplicating it. Unread
// counting is skipped for the local user's own messages.
func (p *Pipeline) ReceiveInbound(incoming model.Message) {
	p.mu.Lock()

	if incoming.ID != "" {
		if _, dup := p.known[incoming.ID]; dup {
			p.mu.Unlock()
			return
		}
	}

	// Fan-out may beat the persistence response back to us.
	if incoming.ClientID != "" {
		if _, pending := p.pending[incoming.ClientID]; pending {
			p.mu.Unlock()
			_ = p.ConfirmLocal(incoming.ClientID, incoming)
			return
		}
	}

	msg := copyOf(&incoming)
	if msg.Status == "" || msg.Status == model.StatusSending {
		msg.Status = model.StatusDelivered
	}
	p.logs[msg.SessionID] = append(p.logs[msg.SessionID], msg)
	if msg.ID != "" {
		p.known[msg.ID] = struct{}{}
	}
	countUnread := msg.SenderID != p.localUserID
	p.mu.Unlock()

	p.hooks.OnActivity(msg.SessionID, msg.CreatedAt, countUnread)
}

// LoadHistory seeds a session log from persisted history, replacing any
// previous log content for that session. Pending optimistic entries are
// re-appended so an in-flight send survives a history reload.
func (p *Pipeline) LoadHistory(sessionID string, history []model.Message) {
	p.mu.Lock()
	defer p.mu.Unlock()

	log := make([]*model.Message, 0, len(history))
	for i := range history {
		msg := copyOf(&history[i])
		if msg.Status == "" {
			msg.Status = model.StatusDelivered
		}
		log = append(log, msg)
		if msg.ID != "" {
			p.known[msg.ID] = struct{}{}
		}
	}
	for _, msg := range p.pending {
		if msg.SessionID == sessionID {
			log = append(log, msg)
		}
	}
	p.logs[sessionID] = log
}

// MarkDelivered transitions a message to delivered. Idempotent, and a
// no-op on any message already past delivered.
func (p *Pipeline) MarkDelivered(messageID string, at time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()

	msg := p.findByID(messageID)
	if msg == nil || msg.Status == model.StatusFailed {
		return
	}
	if model.StatusRank(msg.Status) >= model.StatusRank(model.StatusDelivered) {
		return
	}
	msg.Status = model.StatusDelivered
	msg.DeliveredAt = &at
}

// MarkRead transitions every locally-authored delivered message in the
// session with CreatedAt <= upTo to read. Idempotent. Messages still
// sending have not been confirmed and are left alone.
func (p *Pipeline) MarkRead(sessionID string, upTo time.Time) {
	p.mu.Lock()
	for _, msg := range p.logs[sessionID] {
		if msg.SenderID != p.localUserID {
			continue
		}
		if msg.Status != model.StatusDelivered {
			continue
		}
		if msg.CreatedAt.After(upTo) {
			continue
		}
		msg.Status = model.StatusRead
		at := upTo
		msg.ReadAt = &at
	}
	p.mu.Unlock()
}

// Log returns a copy of a session's log in arrival order.
func (p *Pipeline) Log(sessionID string) []model.Message {
	p.mu.RLock()
	defer p.mu.RUnlock()

	log := make([]model.Message, 0, len(p.logs[sessionID]))
	for _, msg := range p.logs[sessionID] {
		log = append(log, *msg)
	}
	return log
}

// LogLength returns the number of entries in a session's log.
func (p *Pipeline) LogLength(sessionID string) int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.logs[sessionID])
}

// findByID requires p.mu held.
func (p *Pipeline) findByID(messageID string) *model.Message {
	for _, log := range p.logs {
		for _, msg := range log {
			if msg.ID == messageID {
				return msg
			}
		}
	}
	return nil
}

func copyOf(msg *model.Message) *model.Message {
	out := *msg
	return &out
}

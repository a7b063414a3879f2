package hub

import (
	"Arcana/internal/api"
	"Arcana/internal/event"
	"Arcana/internal/model"
	"Arcana/internal/notify"
	"Arcana/internal/transport"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Transport is the slice of the connection the manager drives.
type Transport interface {
	Connect(ctx context.Context) error
	Send(ev event.WsEvent) error
	State() transport.State
	Close()
}

// PersistenceAPI is the external session/message persistence
// collaborator consumed by the manager.
type PersistenceAPI interface {
	ListSessions(ctx context.Context) ([]model.Session, error)
	GetMessages(ctx context.Context, sessionID string) ([]model.Message, error)
	PostMessage(ctx context.Context, sessionID string, out api.OutgoingMessage) (*model.Message, error)
	MarkRead(ctx context.Context, sessionID string, upTo time.Time) error
	CreateSession(ctx context.Context, req api.CreateSessionRequest) (*model.Session, error)
	UploadFile(ctx context.Context, sessionID, clientID, filename string, data io.Reader) (*model.Message, error)
	UploadVoice(ctx context.Context, sessionID, clientID, filename string, data io.Reader) (*model.Message, error)
}

// Config carries the local user's identity and tracker tuning.
type Config struct {
	UserID         string
	Role           string
	TypingTTL      time.Duration
	LocalIdleDelay time.Duration
}

// Manager is the chat session manager: it routes inbound transport
// events to the presence, typing, message and moderation trackers,
// mediates session join/leave, and orchestrates persistence calls
// around the optimistic message lifecycle.
type Manager struct {
	cfg      Config
	conn     Transport
	api      PersistenceAPI
	notifier *notify.Dispatcher
	logger   *zap.Logger

	Presence  *PresenceTracker
	Typing    *TypingTracker
	Pipeline  *Pipeline
	Directory *Directory

	// Moderation is nil unless the local role is admin/monitor.
	Moderation *ModerationQueue

	handlers map[string]func(json.RawMessage)

	mu     sync.RWMutex
	joined map[string]struct{} // sessions joined on the transport
}

func NewManager(cfg Config, persistence PersistenceAPI, notifier *notify.Dispatcher, logger *zap.Logger) *Manager {
	m := &Manager{
		cfg:       cfg,
		api:       persistence,
		notifier:  notifier,
		logger:    logger,
		Presence:  NewPresenceTracker(),
		Pipeline:  nil, // set below, needs the directory hook
		Directory: NewDirectory(),
		joined:    make(map[string]struct{}),
	}

	m.Pipeline = NewPipeline(cfg.UserID, PipelineHooks{
		OnActivity: m.Directory.RecordActivity,
	}, logger)

	m.Typing = NewTypingTracker(cfg.TypingTTL, cfg.LocalIdleDelay, m.emitTyping)

	m.handlers = map[string]func(json.RawMessage){
		event.EventNewMessage:          m.handleNewMessage,
		event.EventMessageDelivered:    m.handleMessageDelivered,
		event.EventMessagesRead:        m.handleMessagesRead,
		event.EventTypingStart:         m.handleTypingStart,
		event.EventTypingStop:          m.handleTypingStop,
		event.EventUserJoined:          m.handleUserJoined,
		event.EventUserLeft:            m.handleUserLeft,
		event.EventUserPresenceChanged: m.handlePresenceChanged,
		event.EventOnlineUsers:         m.handleOnlineUsers,
	}

	// Voice moderation is wired only for privileged roles; other roles
	// never subscribe to these events.
	if model.PrivilegedRole(cfg.Role) {
		m.Moderation = NewModerationQueue()
		m.handlers[event.EventVoiceApprovalNeeded] = m.handleVoiceApprovalNeeded
		m.handlers[event.EventVoiceApproved] = m.handleVoiceApproved
	}

	return m
}

// AttachTransport injects the connection the manager drives. Called
// once during container wiring, before Connect.
func (m *Manager) AttachTransport(conn Transport) {
	m.conn = conn
}

// TransportHandlers returns the callbacks to register on the
// transport connection.
func (m *Manager) TransportHandlers() transport.Handlers {
	return transport.Handlers{
		OnEvent:       m.HandleTransportEvent,
		OnStateChange: m.HandleStateChange,
		OnReconnected: m.HandleReconnected,
	}
}

// Connect establishes the transport connection and loads the session
// directory.
func (m *Manager) Connect(ctx context.Context) error {
	if err := m.conn.Connect(ctx); err != nil {
		return err
	}
	return m.RefreshSessions(ctx)
}

// Close tears the manager down: clean transport close, timers stopped.
func (m *Manager) Close() {
	if m.conn != nil {
		m.conn.Close()
	}
	m.Typing.Invalidate()
}

// -----------------------------------------------------------------
// Inbound Event Dispatch
// -----------------------------------------------------------------

// HandleTransportEvent routes one inbound frame to its tracker.
func (m *Manager) HandleTransportEvent(ev event.WsEvent) {
	handler, ok := m.handlers[ev.Event]
	if !ok {
		m.logger.Debug("ignoring unknown event", zap.String("event", ev.Event))
		return
	}
	handler(ev.Payload)
}

// HandleStateChange surfaces each connection state transition as
// exactly one notification. Reconnect exhaustion becomes a persistent
// indicator requiring explicit user action.
func (m *Manager) HandleStateChange(state transport.State, detail string) {
	switch state {
	case transport.StateConnected:
		m.notifier.Notify(detail, model.KindSuccess)
	case transport.StateReconnecting:
		m.notifier.Notify(detail, model.KindWarning)
	case transport.StateError:
		m.notifier.Notify(detail, model.KindError)
		m.notifier.PlaySound(model.SoundError)
	case transport.StateFailed:
		m.notifier.NotifySticky("connection lost - please reconnect", model.KindError)
		m.notifier.PlaySound(model.SoundError)
	default:
		m.notifier.Notify(detail, model.KindInfo)
	}
}

// HandleReconnected invalidates session-scoped presence and typing
// state, then rejoins every previously active session and re-requests
// its membership snapshot; server state takes precedence over anything
// accumulated before the drop.
func (m *Manager) HandleReconnected() {
	m.Presence.Invalidate()
	m.Typing.Invalidate()

	m.mu.RLock()
	sessions := make([]string, 0, len(m.joined))
	for sessionID := range m.joined {
		sessions = append(sessions, sessionID)
	}
	m.mu.RUnlock()

	for _, sessionID := range sessions {
		m.sendEvent(event.EventJoinSession, event.SessionRef{SessionID: sessionID})
		m.sendEvent(event.EventListOnline, event.SessionRef{SessionID: sessionID})
	}
}

func (m *Manager) handleNewMessage(payload json.RawMessage) {
	var msg model.Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		m.logger.Warn("malformed new_message payload", zap.Error(err))
		return
	}

	m.Pipeline.ReceiveInbound(msg)

	if msg.SenderID != m.cfg.UserID {
		// A delivered message ends any typing indicator for its sender.
		m.Typing.Stop(msg.SessionID, msg.SenderID)
		m.notifier.Notify(messagePreview(msg), model.KindMessage)
		m.notifier.PlaySound(model.SoundMessage)
	}
}

func (m *Manager) handleMessageDelivered(payload json.RawMessage) {
	var receipt event.MessageDelivered
	if err := json.Unmarshal(payload, &receipt); err != nil {
		m.logger.Warn("malformed message_delivered payload", zap.Error(err))
		return
	}
	m.Pipeline.MarkDelivered(receipt.MessageID, time.Unix(receipt.DeliveredAt, 0))
}

func (m *Manager) handleMessagesRead(payload json.RawMessage) {
	var receipt event.MessagesRead
	if err := json.Unmarshal(payload, &receipt); err != nil {
		m.logger.Warn("malformed messages_read payload", zap.Error(err))
		return
	}
	if receipt.ReaderID == m.cfg.UserID {
		return
	}
	m.Pipeline.MarkRead(receipt.SessionID, time.Unix(receipt.UpTo, 0))
}

func (m *Manager) handleTypingStart(payload json.RawMessage) {
	var ind event.TypingIndicator
	if err := json.Unmarshal(payload, &ind); err != nil {
		m.logger.Warn("malformed typing_start payload", zap.Error(err))
		return
	}
	if ind.UserID == m.cfg.UserID {
		return
	}
	m.Typing.Start(ind.SessionID, ind.UserID)
}

func (m *Manager) handleTypingStop(payload json.RawMessage) {
	var ind event.TypingIndicator
	if err := json.Unmarshal(payload, &ind); err != nil {
		m.logger.Warn("malformed typing_stop payload", zap.Error(err))
		return
	}
	m.Typing.Stop(ind.SessionID, ind.UserID)
}

func (m *Manager) handleUserJoined(payload json.RawMessage) {
	var joined event.UserJoined
	if err := json.Unmarshal(payload, &joined); err != nil {
		m.logger.Warn("malformed user_joined payload", zap.Error(err))
		return
	}
	m.Presence.ApplyJoin(joined.SessionID, model.PresenceEntry{
		UserID:   joined.UserID,
		Status:   joined.Status,
		LastSeen: time.Now(),
	})
	m.notifier.PlaySound(model.SoundJoin)
}

func (m *Manager) handleUserLeft(payload json.RawMessage) {
	var left event.UserLeft
	if err := json.Unmarshal(payload, &left); err != nil {
		m.logger.Warn("malformed user_left payload", zap.Error(err))
		return
	}
	// No user can be typing without being present.
	m.Presence.ApplyLeave(left.SessionID, left.UserID)
	m.Typing.Stop(left.SessionID, left.UserID)
	m.notifier.PlaySound(model.SoundLeave)
}

func (m *Manager) handlePresenceChanged(payload json.RawMessage) {
	var changed event.PresenceChanged
	if err := json.Unmarshal(payload, &changed); err != nil {
		m.logger.Warn("malformed user_presence_changed payload", zap.Error(err))
		return
	}
	m.Presence.ApplyPresenceChanged(changed.SessionID, changed.UserID, changed.Status, time.Unix(changed.Timestamp, 0))
}

func (m *Manager) handleOnlineUsers(payload json.RawMessage) {
	var snapshot event.OnlineUsersSnapshot
	if err := json.Unmarshal(payload, &snapshot); err != nil {
		m.logger.Warn("malformed online_users payload", zap.Error(err))
		return
	}
	entries := make([]model.PresenceEntry, 0, len(snapshot.Users))
	for _, u := range snapshot.Users {
		entries = append(entries, model.PresenceEntry{
			UserID:   u.UserID,
			Status:   u.Status,
			LastSeen: time.Unix(u.LastSeen, 0),
		})
	}
	m.Presence.ApplyBulkSnapshot(snapshot.SessionID, entries)
}

func (m *Manager) handleVoiceApprovalNeeded(payload json.RawMessage) {
	var approval event.VoiceApproval
	if err := json.Unmarshal(payload, &approval); err != nil {
		m.logger.Warn("malformed voice_approval_needed payload", zap.Error(err))
		return
	}
	m.Moderation.ApprovalNeeded()
	m.notifier.Notify("a voice message is awaiting review", model.KindWarning)
	m.notifier.PlaySound(model.SoundApproval)
}

func (m *Manager) handleVoiceApproved(payload json.RawMessage) {
	var approval event.VoiceApproval
	if err := json.Unmarshal(payload, &approval); err != nil {
		m.logger.Warn("malformed voice_approved payload", zap.Error(err))
		return
	}
	m.Moderation.Approved()
}

// -----------------------------------------------------------------
// UI-Facing Operations
// -----------------------------------------------------------------

// SendText stages an optimistic text message, persists it, and fans it
// out to the session over the transport. The returned message carries
// the correlation id and status sending; the persistence round-trip
// completes in the background. A failed send stays in the log with
// status failed and is never retried automatically.
func (m *Manager) SendText(ctx context.Context, sessionID, content string) (*model.Message, error) {
	staged, err := m.Pipeline.StageLocal(sessionID, model.TypeText, content)
	if err != nil {
		return nil, err
	}

	m.Typing.StopLocal(sessionID)

	go func() {
		confirmed, err := m.api.PostMessage(ctx, sessionID, api.OutgoingMessage{
			ClientID: staged.ClientID,
			Type:     model.TypeText,
			Content:  content,
		})
		if err != nil {
			m.failSend(staged.ClientID, "message could not be sent", err)
			return
		}
		m.completeSend(staged.ClientID, confirmed)
	}()

	return staged, nil
}

// SendFile stages and uploads a file attachment.
func (m *Manager) SendFile(ctx context.Context, sessionID, filename string, data io.Reader) (*model.Message, error) {
	staged, err := m.Pipeline.StageLocal(sessionID, model.TypeFile, filename)
	if err != nil {
		return nil, err
	}

	go func() {
		confirmed, err := m.api.UploadFile(ctx, sessionID, staged.ClientID, filename, data)
		if err != nil {
			m.failSend(staged.ClientID, "file upload failed", err)
			return
		}
		m.completeSend(staged.ClientID, confirmed)
	}()

	return staged, nil
}

// SendVoice stages and uploads a voice recording. The server routes it
// into the moderation queue before other participants see it.
func (m *Manager) SendVoice(ctx context.Context, sessionID, filename string, data io.Reader) (*model.Message, error) {
	staged, err := m.Pipeline.StageLocal(sessionID, model.TypeVoice, filename)
	if err != nil {
		return nil, err
	}

	go func() {
		confirmed, err := m.api.UploadVoice(ctx, sessionID, staged.ClientID, filename, data)
		if err != nil {
			m.failSend(staged.ClientID, "voice upload failed", err)
			return
		}
		m.completeSend(staged.ClientID, confirmed)
	}()

	return staged, nil
}

func (m *Manager) completeSend(clientID string, confirmed *model.Message) {
	if err := m.Pipeline.ConfirmLocal(clientID, *confirmed); err != nil {
		// Already confirmed through our own fan-out echo.
		return
	}
	wire, err := event.Wrap(event.EventNewMessage, confirmed)
	if err == nil {
		if err := m.conn.Send(wire); err != nil {
			// Persisted but not fanned out; participants will pick it up
			// from history. Do not fail the message.
			m.logger.Warn("fan-out skipped", zap.Error(err))
		}
	}
}

func (m *Manager) failSend(clientID, userMessage string, err error) {
	_ = m.Pipeline.FailLocal(clientID)
	m.logger.Error("send failed", zap.String("clientId", clientID), zap.Error(err))
	m.notifier.Notify(userMessage, model.KindError)
	m.notifier.PlaySound(model.SoundError)
	m.forceDisconnectOnAuthFailure(err)
}

// SelectSession makes a session active: join it on the transport,
// fetch its history, then record the read boundary for what is now
// visible.
func (m *Manager) SelectSession(ctx context.Context, sessionID string) error {
	if _, ok := m.Directory.Select(sessionID); !ok {
		return fmt.Errorf("unknown session %q", sessionID)
	}

	m.mu.Lock()
	m.joined[sessionID] = struct{}{}
	m.mu.Unlock()

	m.sendEvent(event.EventJoinSession, event.SessionRef{SessionID: sessionID})
	m.sendEvent(event.EventListOnline, event.SessionRef{SessionID: sessionID})

	history, err := m.api.GetMessages(ctx, sessionID)
	if err != nil {
		m.notifier.Notify("could not load message history", model.KindError)
		m.forceDisconnectOnAuthFailure(err)
		return err
	}
	m.Pipeline.LoadHistory(sessionID, history)

	m.MarkSessionRead(ctx, sessionID, time.Now())
	return nil
}

// LeaveSession detaches from a session on the transport.
func (m *Manager) LeaveSession(sessionID string) {
	m.mu.Lock()
	delete(m.joined, sessionID)
	m.mu.Unlock()

	m.Typing.StopLocal(sessionID)
	m.sendEvent(event.EventLeaveSession, event.SessionRef{SessionID: sessionID})
}

// CreateSession persists a new session, prepends it to the directory
// and auto-selects it.
func (m *Manager) CreateSession(ctx context.Context, participants []string, sessionType, title string) (*model.Session, error) {
	session, err := m.api.CreateSession(ctx, api.CreateSessionRequest{
		ParticipantIDs: participants,
		Type:           sessionType,
		Title:          title,
	})
	if err != nil {
		m.notifier.Notify("could not create session", model.KindError)
		m.forceDisconnectOnAuthFailure(err)
		return nil, err
	}

	m.Directory.Prepend(*session)
	if err := m.SelectSession(ctx, session.ID); err != nil {
		return session, err
	}
	return session, nil
}

// MarkSessionRead records the local read boundary: every delivered
// locally-authored message up to the timestamp becomes read, the
// session's unread counter drops to zero, and the boundary is
// persisted.
func (m *Manager) MarkSessionRead(ctx context.Context, sessionID string, upTo time.Time) {
	m.Pipeline.MarkRead(sessionID, upTo)
	m.Directory.ClearUnread(sessionID)

	go func() {
		if err := m.api.MarkRead(ctx, sessionID, upTo); err != nil {
			m.logger.Warn("read boundary not persisted", zap.String("sessionId", sessionID), zap.Error(err))
			m.forceDisconnectOnAuthFailure(err)
		}
	}()
}

// RefreshSessions reloads the session directory from persistence.
func (m *Manager) RefreshSessions(ctx context.Context) error {
	sessions, err := m.api.ListSessions(ctx)
	if err != nil {
		m.forceDisconnectOnAuthFailure(err)
		return err
	}
	m.Directory.SetSessions(sessions)
	return nil
}

// NoteTyping records a local keystroke in a session's composer.
func (m *Manager) NoteTyping(sessionID string) {
	m.Typing.NoteLocalActivity(sessionID)
}

// SetLocalPresence announces the local user's presence status.
func (m *Manager) SetLocalPresence(status string) {
	m.sendEvent(event.EventPresenceUpdate, event.PresenceChanged{
		UserID:    m.cfg.UserID,
		Status:    status,
		Timestamp: time.Now().Unix(),
	})
}

// TotalUnread reports the aggregate unread count across all sessions.
func (m *Manager) TotalUnread() int {
	return m.Directory.TotalUnread()
}

func (m *Manager) emitTyping(sessionID string, typing bool) {
	name := event.EventTypingStop
	if typing {
		name = event.EventTypingStart
	}
	m.sendEvent(name, event.TypingIndicator{
		SessionID: sessionID,
		UserID:    m.cfg.UserID,
		IsTyping:  typing,
	})
}

func (m *Manager) sendEvent(name string, payload any) {
	wire, err := event.Wrap(name, payload)
	if err != nil {
		m.logger.Warn("event marshal failed", zap.String("event", name), zap.Error(err))
		return
	}
	if err := m.conn.Send(wire); err != nil {
		m.logger.Warn("event not sent", zap.String("event", name), zap.Error(err))
	}
}

// forceDisconnectOnAuthFailure closes the transport when the
// persistence API rejects the credential; a dead credential must not
// fail silently call by call.
func (m *Manager) forceDisconnectOnAuthFailure(err error) {
	if errors.Is(err, api.ErrUnauthorized) {
		m.notifier.Notify("your session has expired - please sign in again", model.KindError)
		m.conn.Close()
	}
}

func messagePreview(msg model.Message) string {
	switch msg.Type {
	case model.TypeFile:
		return "new file received"
	case model.TypeVoice:
		return "new voice message received"
	}
	preview := msg.Content
	if len(preview) > 80 {
		preview = preview[:77] + "..."
	}
	return "new message: " + preview
}

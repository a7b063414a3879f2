package hub

import (
	"sync"
	"time"
)

const (
	// DefaultTypingTTL is how long a remote indicator survives without a
	// refreshing typing_start.
	DefaultTypingTTL = 5 * time.Second

	// DefaultLocalIdleDelay is how long after the last local keystroke a
	// typing_stop is emitted.
	DefaultLocalIdleDelay = time.Second
)

type typingEntry struct {
	startedAt time.Time
	gen       uint64
	timer     *time.Timer
}

type localTyping struct {
	active bool
	timer  *time.Timer
}

// TypingTracker maintains per-user, per-session typing flags with
// automatic expiry. Each start bumps a generation counter that the
// expiry timer re-checks when it fires, so a stale timer can never
// clobber an indicator that was refreshed by a newer start.
type TypingTracker struct {
	ttl  time.Duration
	idle time.Duration

	// emit sends the local user's typing_start/typing_stop outbound.
	emit func(sessionID string, typing bool)

	mu       sync.Mutex
	gen      uint64
	sessions map[string]map[string]*typingEntry
	local    map[string]*localTyping
}

func NewTypingTracker(ttl, idle time.Duration, emit func(sessionID string, typing bool)) *TypingTracker {
	if ttl <= 0 {
		ttl = DefaultTypingTTL
	}
	if idle <= 0 {
		idle = DefaultLocalIdleDelay
	}
	if emit == nil {
		emit = func(string, bool) {}
	}
	return &TypingTracker{
		ttl:      ttl,
		idle:     idle,
		emit:     emit,
		sessions: make(map[string]map[string]*typingEntry),
		local:    make(map[string]*localTyping),
	}
}

// Start inserts or refreshes a remote user's indicator and arms its
// expiry timer.
func (t *TypingTracker) Start(sessionID, userID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	session, ok := t.sessions[sessionID]
	if !ok {
		session = make(map[string]*typingEntry)
		t.sessions[sessionID] = session
	}

	if prev, ok := session[userID]; ok {
		prev.timer.Stop()
	}

	t.gen++
	gen := t.gen
	session[userID] = &typingEntry{
		startedAt: time.Now(),
		gen:       gen,
		timer: time.AfterFunc(t.ttl, func() {
			t.expire(sessionID, userID, gen)
		}),
	}
}

// Stop removes a remote user's indicator immediately and cancels its
// pending timer.
func (t *TypingTracker) Stop(sessionID, userID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.remove(sessionID, userID)
}

func (t *TypingTracker) expire(sessionID, userID string, gen uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	session, ok := t.sessions[sessionID]
	if !ok {
		return
	}
	entry, ok := session[userID]
	if !ok || entry.gen != gen {
		// refreshed since this timer was armed
		return
	}
	t.remove(sessionID, userID)
}

// remove requires t.mu held.
func (t *TypingTracker) remove(sessionID, userID string) {
	session, ok := t.sessions[sessionID]
	if !ok {
		return
	}
	if entry, ok := session[userID]; ok {
		entry.timer.Stop()
		delete(session, userID)
	}
	if len(session) == 0 {
		delete(t.sessions, sessionID)
	}
}

// IsTyping reports whether a remote user's indicator is live.
func (t *TypingTracker) IsTyping(sessionID, userID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	session, ok := t.sessions[sessionID]
	if !ok {
		return false
	}
	_, ok = session[userID]
	return ok
}

// TypingUsers returns the remote users currently typing in a session.
func (t *TypingTracker) TypingUsers(sessionID string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	session := t.sessions[sessionID]
	users := make([]string, 0, len(session))
	for userID := range session {
		users = append(users, userID)
	}
	return users
}

// Count returns the number of live indicators across all sessions.
func (t *TypingTracker) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	total := 0
	for _, session := range t.sessions {
		total += len(session)
	}
	return total
}

// Invalidate drops all indicators, remote and local. Called on
// reconnect when local state is stale.
func (t *TypingTracker) Invalidate() {
	t.mu.Lock()
	defer t.mu.Unlock()

	for sessionID, session := range t.sessions {
		for userID := range session {
			t.remove(sessionID, userID)
		}
	}
	for sessionID, lt := range t.local {
		if lt.timer != nil {
			lt.timer.Stop()
		}
		delete(t.local, sessionID)
	}
}

// NoteLocalActivity records a local keystroke. The first keystroke
// emits typing_start; every keystroke re-arms a 1-second idle timer,
// and after a full idle window typing_stop is emitted exactly once.
func (t *TypingTracker) NoteLocalActivity(sessionID string) {
	t.mu.Lock()

	lt, ok := t.local[sessionID]
	if !ok {
		lt = &localTyping{}
		t.local[sessionID] = lt
	}

	wasActive := lt.active
	lt.active = true
	if lt.timer != nil {
		lt.timer.Stop()
	}
	lt.timer = time.AfterFunc(t.idle, func() {
		t.localIdle(sessionID)
	})
	t.mu.Unlock()

	if !wasActive {
		t.emit(sessionID, true)
	}
}

// StopLocal ends local typing immediately (the user sent the message or
// left the session). Emits typing_stop only if a start was emitted.
func (t *TypingTracker) StopLocal(sessionID string) {
	t.mu.Lock()
	lt, ok := t.local[sessionID]
	if !ok || !lt.active {
		t.mu.Unlock()
		return
	}
	lt.active = false
	if lt.timer != nil {
		lt.timer.Stop()
		lt.timer = nil
	}
	t.mu.Unlock()

	t.emit(sessionID, false)
}

func (t *TypingTracker) localIdle(sessionID string) {
	t.mu.Lock()
	lt, ok := t.local[sessionID]
	if !ok || !lt.active {
		t.mu.Unlock()
		return
	}
	lt.active = false
	lt.timer = nil
	t.mu.Unlock()

	t.emit(sessionID, false)
}

package hub

import (
	"Arcana/internal/model"
	"sort"
	"sync"
	"time"
)

// Directory maintains the list of sessions in most-recent-first order
// together with per-session unread counters. The aggregate unread count
// is always recomputed from the counters, never cached separately.
type Directory struct {
	mu         sync.RWMutex
	sessions   []*model.Session
	byID       map[string]*model.Session
	selectedID string
}

func NewDirectory() *Directory {
	return &Directory{byID: make(map[string]*model.Session)}
}

// SetSessions replaces the directory content from a persisted listing.
func (d *Directory) SetSessions(sessions []model.Session) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.sessions = make([]*model.Session, 0, len(sessions))
	d.byID = make(map[string]*model.Session, len(sessions))
	for i := range sessions {
		s := sessions[i]
		d.sessions = append(d.sessions, &s)
		d.byID[s.ID] = &s
	}
	d.sortLocked()
}

// Prepend inserts a freshly created session at the top of the list.
func (d *Directory) Prepend(session model.Session) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.byID[session.ID]; exists {
		return
	}
	s := session
	d.sessions = append([]*model.Session{&s}, d.sessions...)
	d.byID[s.ID] = &s
}

// Select marks a session as the active one.
func (d *Directory) Select(sessionID string) (model.Session, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	s, ok := d.byID[sessionID]
	if !ok {
		return model.Session{}, false
	}
	d.selectedID = sessionID
	return *s, true
}

// Selected returns the active session, if any.
func (d *Directory) Selected() (model.Session, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	s, ok := d.byID[d.selectedID]
	if !ok {
		return model.Session{}, false
	}
	return *s, true
}

// List returns the sessions in last-activity order, most recent first.
func (d *Directory) List() []model.Session {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]model.Session, 0, len(d.sessions))
	for _, s := range d.sessions {
		out = append(out, *s)
	}
	return out
}

// Get returns one session by id.
func (d *Directory) Get(sessionID string) (model.Session, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	s, ok := d.byID[sessionID]
	if !ok {
		return model.Session{}, false
	}
	return *s, true
}

// RecordActivity bumps a session's last-activity timestamp, optionally
// increments its unread counter, and restores most-recent-first order.
// Unknown sessions are created on the fly; a support workflow may route
// a message before the directory has been refreshed.
func (d *Directory) RecordActivity(sessionID string, at time.Time, countUnread bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	s, ok := d.byID[sessionID]
	if !ok {
		s = &model.Session{ID: sessionID}
		d.sessions = append(d.sessions, s)
		d.byID[sessionID] = s
	}
	if at.After(s.LastMessageAt) {
		s.LastMessageAt = at
	}
	if countUnread {
		s.UnreadCount++
	}
	d.sortLocked()
}

// ClearUnread zeroes a session's unread counter.
func (d *Directory) ClearUnread(sessionID string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if s, ok := d.byID[sessionID]; ok {
		s.UnreadCount = 0
	}
}

// TotalUnread recomputes the aggregate unread count across all
// sessions.
func (d *Directory) TotalUnread() int {
	d.mu.RLock()
	defer d.mu.RUnlock()

	total := 0
	for _, s := range d.sessions {
		total += s.UnreadCount
	}
	return total
}

// Len returns the number of sessions in the directory.
func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.sessions)
}

// sortLocked requires d.mu held.
func (d *Directory) sortLocked() {
	sort.SliceStable(d.sessions, func(i, j int) bool {
		return d.sessions[i].LastMessageAt.After(d.sessions[j].LastMessageAt)
	})
}

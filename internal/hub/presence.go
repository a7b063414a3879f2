package hub

import (
	"Arcana/internal/model"
	"sync"
	"time"
)

// PresenceTracker maintains the set of participants currently attached
// to each session. The map always reflects the most recent
// server-confirmed membership; after a reconnect the whole thing is
// invalidated and rebuilt from a fresh snapshot.
type PresenceTracker struct {
	mu       sync.RWMutex
	sessions map[string]map[string]model.PresenceEntry
}

func NewPresenceTracker() *PresenceTracker {
	return &PresenceTracker{
		sessions: make(map[string]map[string]model.PresenceEntry),
	}
}

// ApplyJoin inserts or refreshes a participant's presence entry.
func (p *PresenceTracker) ApplyJoin(sessionID string, entry model.PresenceEntry) {
	p.mu.Lock()
	defer p.mu.Unlock()

	session, ok := p.sessions[sessionID]
	if !ok {
		session = make(map[string]model.PresenceEntry)
		p.sessions[sessionID] = session
	}
	if entry.Status == "" {
		entry.Status = model.StatusOnline
	}
	session[entry.UserID] = entry
}

// ApplyLeave removes a participant from a session.
func (p *PresenceTracker) ApplyLeave(sessionID, userID string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if session, ok := p.sessions[sessionID]; ok {
		delete(session, userID)
		if len(session) == 0 {
			delete(p.sessions, sessionID)
		}
	}
}

// ApplyPresenceChanged updates a participant's status in place. Unknown
// users are inserted; a presence change implies membership.
func (p *PresenceTracker) ApplyPresenceChanged(sessionID, userID, status string, at time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()

	session, ok := p.sessions[sessionID]
	if !ok {
		session = make(map[string]model.PresenceEntry)
		p.sessions[sessionID] = session
	}
	session[userID] = model.PresenceEntry{UserID: userID, Status: status, LastSeen: at}
}

// ApplyBulkSnapshot replaces a session's entire presence map. Used
// after reconnection and on initial session join, when server state
// takes precedence over anything accumulated locally.
func (p *PresenceTracker) ApplyBulkSnapshot(sessionID string, entries []model.PresenceEntry) {
	session := make(map[string]model.PresenceEntry, len(entries))
	for _, entry := range entries {
		session[entry.UserID] = entry
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.sessions[sessionID] = session
}

// Invalidate drops every session's presence map. Called when the
// transport reconnects and local state is stale.
func (p *PresenceTracker) Invalidate() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sessions = make(map[string]map[string]model.PresenceEntry)
}

// Get returns a participant's entry within a session.
func (p *PresenceTracker) Get(sessionID, userID string) (model.PresenceEntry, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	session, ok := p.sessions[sessionID]
	if !ok {
		return model.PresenceEntry{}, false
	}
	entry, ok := session[userID]
	return entry, ok
}

// List returns the presence entries of one session.
func (p *PresenceTracker) List(sessionID string) []model.PresenceEntry {
	p.mu.RLock()
	defer p.mu.RUnlock()

	session := p.sessions[sessionID]
	entries := make([]model.PresenceEntry, 0, len(session))
	for _, entry := range session {
		entries = append(entries, entry)
	}
	return entries
}

// TrackedSessions returns the ids of sessions with presence state.
func (p *PresenceTracker) TrackedSessions() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	ids := make([]string, 0, len(p.sessions))
	for id := range p.sessions {
		ids = append(ids, id)
	}
	return ids
}

// Stats counts tracked participants by status across all sessions.
func (p *PresenceTracker) Stats() model.PresenceStats {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var stats model.PresenceStats
	for _, session := range p.sessions {
		for _, entry := range session {
			stats.TotalTracked++
			switch entry.Status {
			case model.StatusOnline:
				stats.TotalOnline++
			case model.StatusAway:
				stats.TotalAway++
			}
		}
	}
	return stats
}

// OnlineCount returns how many participants of a session are online.
func (p *PresenceTracker) OnlineCount(sessionID string) int {
	p.mu.RLock()
	defer p.mu.RUnlock()

	count := 0
	for _, entry := range p.sessions[sessionID] {
		if entry.Status == model.StatusOnline {
			count++
		}
	}
	return count
}

package hub

import "sync"

// ModerationQueue tracks the number of voice messages awaiting admin
// review. It is only constructed for admin/monitor roles; other roles
// never subscribe to moderation events at all.
type ModerationQueue struct {
	mu      sync.RWMutex
	pending int
}

func NewModerationQueue() *ModerationQueue {
	return &ModerationQueue{}
}

// ApprovalNeeded increments the pending-approval counter.
func (q *ModerationQueue) ApprovalNeeded() {
	q.mu.Lock()
	q.pending++
	q.mu.Unlock()
}

// Approved decrements the counter, floored at zero. A duplicate
// voice_approved for an already-drained queue must not go negative.
func (q *ModerationQueue) Approved() {
	q.mu.Lock()
	if q.pending > 0 {
		q.pending--
	}
	q.mu.Unlock()
}

// Pending returns the current queue depth.
func (q *ModerationQueue) Pending() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.pending
}

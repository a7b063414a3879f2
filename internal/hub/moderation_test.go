package hub

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestModerationQueueCounts(t *testing.T) {
	q := NewModerationQueue()

	q.ApprovalNeeded()
	q.ApprovalNeeded()
	assert.Equal(t, 2, q.Pending())

	q.Approved()
	assert.Equal(t, 1, q.Pending())
}

func TestModerationQueueFlooredAtZero(t *testing.T) {
	q := NewModerationQueue()

	q.Approved()
	q.Approved()
	assert.Equal(t, 0, q.Pending())

	q.ApprovalNeeded()
	q.Approved()
	q.Approved()
	assert.Equal(t, 0, q.Pending())
}

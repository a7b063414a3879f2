package hub

import (
	"Arcana/internal/model"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDirectoryOrdersMostRecentFirst(t *testing.T) {
	d := NewDirectory()
	now := time.Now()

	d.SetSessions([]model.Session{
		{ID: "old", LastMessageAt: now.Add(-time.Hour)},
		{ID: "new", LastMessageAt: now},
		{ID: "mid", LastMessageAt: now.Add(-time.Minute)},
	})

	list := d.List()
	require.Len(t, list, 3)
	assert.Equal(t, "new", list[0].ID)
	assert.Equal(t, "mid", list[1].ID)
	assert.Equal(t, "old", list[2].ID)
}

func TestDirectoryRecordActivityBumpsOrderAndUnread(t *testing.T) {
	d := NewDirectory()
	now := time.Now()

	d.SetSessions([]model.Session{
		{ID: "a", LastMessageAt: now.Add(-time.Hour)},
		{ID: "b", LastMessageAt: now},
	})

	d.RecordActivity("a", now.Add(time.Minute), true)

	list := d.List()
	assert.Equal(t, "a", list[0].ID)
	assert.Equal(t, 1, list[0].UnreadCount)

	// Local-authored activity reorders without counting unread.
	d.RecordActivity("b", now.Add(2*time.Minute), false)
	list = d.List()
	assert.Equal(t, "b", list[0].ID)
	assert.Equal(t, 0, list[0].UnreadCount)
}

func TestDirectoryUnreadAggregateMatchesSum(t *testing.T) {
	d := NewDirectory()
	now := time.Now()

	d.SetSessions([]model.Session{
		{ID: "a", UnreadCount: 2},
		{ID: "b", UnreadCount: 3},
	})
	assert.Equal(t, 5, d.TotalUnread())

	d.RecordActivity("a", now, true)
	assert.Equal(t, 6, d.TotalUnread())

	d.ClearUnread("a")
	assert.Equal(t, 3, d.TotalUnread())

	// Aggregate always equals the recomputed sum of the counters.
	sum := 0
	for _, s := range d.List() {
		sum += s.UnreadCount
	}
	assert.Equal(t, sum, d.TotalUnread())
}

func TestDirectoryPrependAndSelect(t *testing.T) {
	d := NewDirectory()

	d.SetSessions([]model.Session{{ID: "a", LastMessageAt: time.Now()}})
	d.Prepend(model.Session{ID: "fresh", Title: "New consultation"})

	list := d.List()
	assert.Equal(t, "fresh", list[0].ID)

	_, ok := d.Select("fresh")
	require.True(t, ok)
	selected, ok := d.Selected()
	require.True(t, ok)
	assert.Equal(t, "fresh", selected.ID)

	_, ok = d.Select("missing")
	assert.False(t, ok)
}

func TestDirectoryActivityForUnknownSessionCreatesIt(t *testing.T) {
	d := NewDirectory()

	d.RecordActivity("auto", time.Now(), true)
	s, ok := d.Get("auto")
	require.True(t, ok)
	assert.Equal(t, 1, s.UnreadCount)
}

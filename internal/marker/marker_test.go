package marker

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wkmp/core/internal/tick"
)

func TestPopReachedOrdersByTickThenInsertion(t *testing.T) {
	h := New()
	passage := uuid.New()

	h.Add(tick.Tick(100), passage, Event{Kind: PassageComplete})
	h.Add(tick.Tick(50), passage, Event{Kind: PositionUpdate, PositionMS: 1})
	h.Add(tick.Tick(50), passage, Event{Kind: PositionUpdate, PositionMS: 2})

	got := h.PopReached(tick.Tick(100))
	require.Len(t, got, 3)
	assert.Equal(t, tick.Tick(50), got[0].Tick)
	assert.Equal(t, int64(1), got[0].Event.PositionMS)
	assert.Equal(t, tick.Tick(50), got[1].Tick)
	assert.Equal(t, int64(2), got[1].Event.PositionMS)
	assert.Equal(t, tick.Tick(100), got[2].Tick)
	assert.Equal(t, 0, h.Len())
}

func TestPopReachedLeavesFutureMarkers(t *testing.T) {
	h := New()
	passage := uuid.New()
	h.Add(tick.Tick(10), passage, Event{Kind: PassageComplete})
	h.Add(tick.Tick(1000), passage, Event{Kind: PassageComplete})

	got := h.PopReached(tick.Tick(500))
	require.Len(t, got, 1)
	assert.Equal(t, 1, h.Len())

	tickAt, ok := h.PeekTick()
	require.True(t, ok)
	assert.Equal(t, tick.Tick(1000), tickAt)
}

func TestClearForPassageRemovesOnlyThatPassage(t *testing.T) {
	h := New()
	a, b := uuid.New(), uuid.New()
	h.Add(tick.Tick(1), a, Event{Kind: PassageComplete})
	h.Add(tick.Tick(2), b, Event{Kind: PassageComplete})
	h.Add(tick.Tick(3), a, Event{Kind: PassageComplete})

	h.ClearForPassage(a)
	require.Equal(t, 1, h.Len())

	got := h.PopReached(tick.Tick(100))
	require.Len(t, got, 1)
	assert.Equal(t, b, got[0].PassageID)
}

func TestClearEmptiesHeap(t *testing.T) {
	h := New()
	h.Add(tick.Tick(1), uuid.New(), Event{Kind: PassageComplete})
	h.Clear()
	assert.Equal(t, 0, h.Len())
	_, ok := h.PeekTick()
	assert.False(t, ok)
}

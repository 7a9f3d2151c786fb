// Package marker implements the Mixer's per-instance position marker
// heap: a min-heap of future events keyed by tick, with ties broken by
// insertion order (spec §4.3, §5 ordering guarantees).
package marker

import (
	"container/heap"

	"github.com/google/uuid"
	"github.com/wkmp/core/internal/tick"
)

// EventKind enumerates the four marker event payloads (spec §3).
type EventKind int

const (
	PositionUpdate EventKind = iota
	StartCrossfade
	SongBoundary
	PassageComplete
)

// Event is the payload of a marker firing.
type Event struct {
	Kind EventKind

	// PositionUpdate
	PositionMS int64

	// StartCrossfade
	NextPassageID uuid.UUID

	// SongBoundary
	SongID *uuid.UUID
}

// Marker is a single (tick, passage, event) scheduling record.
type Marker struct {
	Tick      tick.Tick
	PassageID uuid.UUID
	Event     Event

	seq int // insertion order, for stable tie-break
}

// Heap is a per-mixer priority queue of markers, ordered by Tick then
// insertion order. Not safe for concurrent use — the Mixer mutates it
// only from its own mix loop or via the Engine's in-process calls
// (spec §5 "Shared resources").
type Heap struct {
	items  markerSlice
	nextSeq int
}

// New returns an empty marker heap.
func New() *Heap {
	h := &Heap{}
	heap.Init(&h.items)
	return h
}

// Add inserts a marker, O(log n).
func (h *Heap) Add(t tick.Tick, passageID uuid.UUID, event Event) {
	m := &Marker{Tick: t, PassageID: passageID, Event: event, seq: h.nextSeq}
	h.nextSeq++
	heap.Push(&h.items, m)
}

// Len returns the number of pending markers.
func (h *Heap) Len() int { return h.items.Len() }

// PeekTick returns the tick of the next marker and whether one exists.
func (h *Heap) PeekTick() (tick.Tick, bool) {
	if h.items.Len() == 0 {
		return 0, false
	}
	return h.items[0].Tick, true
}

// PopReached removes and returns, in ascending (tick, insertion-order)
// order, every marker whose Tick is <= upTo. This is how the Mixer
// drains events "reached" during a mix call (spec §4.3 contract).
func (h *Heap) PopReached(upTo tick.Tick) []*Marker {
	var out []*Marker
	for h.items.Len() > 0 && h.items[0].Tick <= upTo {
		out = append(out, heap.Pop(&h.items).(*Marker))
	}
	return out
}

// ClearForPassage removes every pending marker for passageID, used when
// a passage is skipped or cancelled (spec §3 "clear_markers(passage_id)").
func (h *Heap) ClearForPassage(passageID uuid.UUID) {
	kept := h.items[:0]
	for _, m := range h.items {
		if m.PassageID != passageID {
			kept = append(kept, m)
		}
	}
	h.items = kept
	heap.Init(&h.items)
}

// Clear removes all pending markers.
func (h *Heap) Clear() {
	h.items = nil
	heap.Init(&h.items)
}

type markerSlice []*Marker

func (s markerSlice) Len() int { return len(s) }
func (s markerSlice) Less(i, j int) bool {
	if s[i].Tick != s[j].Tick {
		return s[i].Tick < s[j].Tick
	}
	return s[i].seq < s[j].seq
}
func (s markerSlice) Swap(i, j int) { s[i], s[j] = s[j], s[i] }
func (s *markerSlice) Push(x any)   { *s = append(*s, x.(*Marker)) }
func (s *markerSlice) Pop() any {
	old := *s
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*s = old[:n-1]
	return item
}

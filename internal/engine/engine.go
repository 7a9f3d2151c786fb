// Package engine implements the Playback Engine Controller: it owns
// the passage queue, decides what plays and when, and expresses "when"
// to the Mixer purely as markers — the Mixer alone knows the realized
// output frame count and fires events deterministically (spec §4.4).
package engine

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/wkmp/core/internal/bufferstore"
	"github.com/wkmp/core/internal/decoder"
	"github.com/wkmp/core/internal/marker"
	"github.com/wkmp/core/internal/mixer"
	"github.com/wkmp/core/internal/passage"
	"github.com/wkmp/core/internal/tick"
	"github.com/wkmp/core/internal/wklog"
)

// positionUpdateInterval is the marker cadence for PositionUpdate
// events, expressed in ticks (100ms, spec §4.4).
func positionUpdateInterval() tick.Tick {
	return tick.Tick(tick.PerSecond / 10)
}

// SkipPolicy decides how a manual skip transitions out of the current
// passage: hard cut or a crossfade to the skip target.
type SkipPolicy int

const (
	SkipHardCut SkipPolicy = iota
	SkipCrossfade
)

// Engine is the Playback Engine Controller. Its exported methods
// serialize on mu, so they may be called from multiple goroutines.
type Engine struct {
	mu sync.Mutex

	mix   *mixer.Mixer
	store *bufferstore.Store
	pool  *decoder.Pool

	queue   []*passage.Passage
	current *passage.Passage
	next    *passage.Passage

	paused     bool
	skipPolicy SkipPolicy

	logger *slog.Logger
}

// New constructs an Engine bound to the given Mixer, Buffer Store, and
// Decoder Pool.
func New(m *mixer.Mixer, store *bufferstore.Store, pool *decoder.Pool, skipPolicy SkipPolicy) *Engine {
	return &Engine{
		mix:        m,
		store:      store,
		pool:       pool,
		skipPolicy: skipPolicy,
		logger:     wklog.ForService("engine"),
	}
}

// Enqueue appends p to the queue. If the queue was empty, p is
// promoted to current immediately: preroll decode is requested, then
// upgraded to a full decode, the Mixer is primed, and position markers
// are scheduled (spec §4.4 "On enqueue").
func (e *Engine) Enqueue(p *passage.Passage) {
	e.mu.Lock()
	defer e.mu.Unlock()

	wasEmpty := len(e.queue) == 0
	e.queue = append(e.queue, p)

	e.pool.Submit(&decoder.Request{
		PassageID: p.ID,
		FilePath:  p.Path,
		StartTick: p.StartTick,
		EndTick:   p.EndTick,
		Priority:  decoder.PriorityPrefetch,
		Mode:      bufferstore.ModePreroll,
	})

	if wasEmpty {
		e.promoteLocked(p)
	} else if len(e.queue) == 2 {
		e.scheduleCrossfadeLocked(e.current, e.queue[1])
	}
}

// promoteLocked makes p the current passage: requests a full decode,
// primes the Mixer's current pointer, and schedules position markers.
// mu must be held.
func (e *Engine) promoteLocked(p *passage.Passage) {
	e.current = p
	e.pool.Submit(&decoder.Request{
		PassageID: p.ID,
		FilePath:  p.Path,
		StartTick: p.StartTick,
		EndTick:   p.EndTick,
		Priority:  decoder.PriorityImmediate,
		Mode:      bufferstore.ModeFull,
	})
	buf := e.store.Allocate(p.ID, bufferstore.ModeFull)
	buf.MarkPlaying()
	e.mix.SetCurrent(p.ID, buf)
	e.scheduleEndOfPassageLocked(p)
}

// scheduleEndOfPassageLocked places the PassageComplete fallback marker
// (fired if no crossfade is scheduled, e.g. the final queued passage)
// and the first PositionUpdate marker; PositionUpdate markers re-arm
// themselves every time they fire, driven from HandleEvents.
func (e *Engine) scheduleEndOfPassageLocked(p *passage.Passage) {
	e.mix.AddMarker(p.EndTick, p.ID, marker.Event{Kind: marker.PassageComplete})
	e.armNextPositionUpdateLocked(p, p.StartTick+positionUpdateInterval())
}

func (e *Engine) armNextPositionUpdateLocked(p *passage.Passage, at tick.Tick) {
	if at >= p.EndTick {
		return
	}
	ms := int64(at-p.StartTick) * 1000 / tick.PerSecond
	e.mix.AddMarker(at, p.ID, marker.Event{Kind: marker.PositionUpdate, PositionMS: ms})
}

// scheduleCrossfadeLocked computes the crossfade window between cur
// and nxt and arms the StartCrossfade marker on cur (spec §4.4).
func (e *Engine) scheduleCrossfadeLocked(cur, nxt *passage.Passage) {
	fadeStart := cur.LeadOutTick
	curSpan := cur.EndTick - cur.LeadOutTick
	nextSpan := nxt.LeadInTick - nxt.StartTick
	duration := curSpan
	if nextSpan < duration {
		duration = nextSpan
	}
	_ = duration // onStartCrossfadeLocked recomputes duration from the same two spans
	e.mix.AddMarker(fadeStart, cur.ID, marker.Event{Kind: marker.StartCrossfade, NextPassageID: nxt.ID})
}

// HandleEvents processes marker events returned from a mixer.Mix call.
// It is the single place where the Engine reacts to realized playback
// position (spec §4.4).
func (e *Engine) HandleEvents(events []*marker.Marker) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, ev := range events {
		switch ev.Event.Kind {
		case marker.StartCrossfade:
			e.onStartCrossfadeLocked(ev)
		case marker.PassageComplete:
			e.onPassageCompleteLocked(ev)
		case marker.PositionUpdate:
			e.onPositionUpdateLocked(ev)
		case marker.SongBoundary:
			// informational only; no Engine-side state change.
		}
	}
}

func (e *Engine) onPositionUpdateLocked(ev *marker.Marker) {
	if e.current == nil || ev.PassageID != e.current.ID {
		return
	}
	e.armNextPositionUpdateLocked(e.current, ev.Tick+positionUpdateInterval())
}

// onStartCrossfadeLocked ensures the next buffer is Ready before asking
// the Mixer to activate frame-level fading; if it isn't ready, the
// Engine falls back to a hard cut at end_tick (spec §4.4).
func (e *Engine) onStartCrossfadeLocked(ev *marker.Marker) {
	if e.current == nil || ev.PassageID != e.current.ID {
		return
	}
	if len(e.queue) < 2 {
		return
	}
	nxt := e.queue[1]
	buf, ok := e.store.Get(nxt.ID)
	if !ok || buf.Status() != bufferstore.StatusReady {
		e.logger.Warn("next buffer not ready at crossfade point, hard cut", "passage_id", nxt.ID)
		return
	}

	curSpan := e.current.EndTick - e.current.LeadOutTick
	nextSpan := nxt.LeadInTick - nxt.StartTick
	duration := curSpan
	if nextSpan < duration {
		duration = nextSpan
	}
	e.next = nxt
	e.mix.ActivateCrossfade(nxt.ID, buf, e.current.LeadOutTick, duration, e.current.FadeOutCurve, nxt.FadeInCurve)
}

// onPassageCompleteLocked recycles the outgoing buffer, promotes next
// to current, clears passage-scoped markers, and re-schedules markers
// for the new current passage (spec §4.4).
func (e *Engine) onPassageCompleteLocked(ev *marker.Marker) {
	if e.current == nil || ev.PassageID != e.current.ID {
		return
	}
	e.store.Recycle(e.current.ID)
	e.mix.ClearMarkersFor(e.current.ID)

	if len(e.queue) < 2 {
		e.queue = nil
		e.current = nil
		e.next = nil
		return
	}

	e.queue = e.queue[1:]
	e.current = e.queue[0]
	e.next = nil

	// Preroll decodes stop at bufferstore.PrerollCapFrames(); promotion
	// to current must re-request a full decode so playback past the
	// preroll cap doesn't underrun (spec §4.2).
	e.pool.Submit(&decoder.Request{
		PassageID: e.current.ID,
		FilePath:  e.current.Path,
		StartTick: e.current.StartTick,
		EndTick:   e.current.EndTick,
		Priority:  decoder.PriorityImmediate,
		Mode:      bufferstore.ModeFull,
	})
	buf, ok := e.store.Get(e.current.ID)
	if !ok {
		buf = e.store.Allocate(e.current.ID, bufferstore.ModeFull)
	}
	buf.MarkPlaying()
	e.mix.SetCurrent(e.current.ID, buf)
	e.scheduleEndOfPassageLocked(e.current)

	if len(e.queue) >= 2 {
		e.scheduleCrossfadeLocked(e.current, e.queue[1])
	}
}

// Skip clears markers for current and next, then applies the
// configured SkipPolicy to transition to target (spec §4.4 "On skip").
func (e *Engine) Skip(target *passage.Passage) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.current != nil {
		e.mix.ClearMarkersFor(e.current.ID)
		e.store.Recycle(e.current.ID)
	}
	if e.next != nil {
		e.mix.ClearMarkersFor(e.next.ID)
	}

	e.queue = []*passage.Passage{target}
	e.next = nil
	e.promoteLocked(target)
}

// Pause sets the paused flag reported by IsPaused. It does not stop the
// Mixer itself, and the Audio Output feeder does not consult IsPaused,
// so mixing continues unless the caller stops calling Mix.
func (e *Engine) Pause() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.paused = true
}

// Resume continues from the same current_tick.
func (e *Engine) Resume() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.paused = false
}

// IsPaused reports whether playback is currently paused.
func (e *Engine) IsPaused() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.paused
}

// Seek recycles the current passage's buffer, requests a new decode
// starting at t, and re-primes the Mixer with a fresh buffer. It does
// this for every t, including one already inside the buffered range.
func (e *Engine) Seek(t tick.Tick) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.current == nil {
		return
	}
	e.store.Recycle(e.current.ID)
	e.pool.Submit(&decoder.Request{
		PassageID: e.current.ID,
		FilePath:  e.current.Path,
		StartTick: t,
		EndTick:   e.current.EndTick,
		Priority:  decoder.PriorityImmediate,
		Mode:      bufferstore.ModeFull,
	})
	buf := e.store.Allocate(e.current.ID, bufferstore.ModeFull)
	buf.MarkPlaying()
	e.mix.SetCurrent(e.current.ID, buf)
}

// CurrentPassageID reports the ID of the currently-playing passage, if any.
func (e *Engine) CurrentPassageID() (uuid.UUID, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.current == nil {
		return uuid.UUID{}, false
	}
	return e.current.ID, true
}

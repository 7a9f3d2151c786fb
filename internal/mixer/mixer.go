// Package mixer implements the Mixer component: the stateful producer
// of mixed audio frames that drives crossfades and reports marker
// events reached during each mix call (spec §4.3).
package mixer

import (
	"math"
	"sync"

	"github.com/google/uuid"
	"github.com/wkmp/core/internal/marker"
	"github.com/wkmp/core/internal/passage"
	"github.com/wkmp/core/internal/tick"
)

// Source is a read-only frame source the Mixer pulls interleaved
// stereo f32 samples from. The Buffer Store's PassageBuffer satisfies
// this; it is defined here, not imported, so the Mixer has no
// compile-time dependency on buffer storage internals.
type Source interface {
	// ReadFrame copies one interleaved stereo frame (2 float32 samples)
	// into out and reports whether data was available. Returning false
	// means underrun: the caller must treat the frame as silence.
	ReadFrame(out []float32) bool
}

// Stats are cumulative mixer counters exposed via Stats().
type Stats struct {
	FramesMixed   uint64
	Underruns     uint64
	CrossfadesRun uint64
}

// Mixer is a single-instance stateful frame producer. Every method
// holds mu for its whole run, Mix included, so the Engine's marker and
// crossfade calls may come from another goroutine than the feeder's.
type Mixer struct {
	mu sync.Mutex // guards everything below

	currentTick     tick.Tick
	currentPassageID uuid.UUID
	nextPassageID    uuid.UUID
	hasNext          bool
	framesWritten    uint64

	current Source
	next    Source

	crossfading       bool
	fadeStartTick     tick.Tick
	fadeDurationTicks tick.Tick
	outCurve          passage.Curve
	inCurve           passage.Curve

	markers *marker.Heap
	stats   Stats
}

// New returns an idle Mixer with no current source. Call SetCurrent
// before the first Mix call.
func New() *Mixer {
	return &Mixer{markers: marker.New()}
}

// SetCurrent primes the mixer's current passage pointer and source,
// discarding any prior crossfade state (used on promotion and on
// hard-cut skip).
func (m *Mixer) SetCurrent(passageID uuid.UUID, src Source) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.currentPassageID = passageID
	m.current = src
	m.hasNext = false
	m.next = nil
	m.crossfading = false
}

// AddMarker schedules m to fire once CurrentTick reaches t.
func (m *Mixer) AddMarker(t tick.Tick, passageID uuid.UUID, event marker.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.markers.Add(t, passageID, event)
}

// ClearMarkersFor drops all pending markers for passageID (spec §4.4
// skip/cancel paths).
func (m *Mixer) ClearMarkersFor(passageID uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.markers.ClearForPassage(passageID)
}

// CurrentTick returns the mixer's current playback position.
func (m *Mixer) CurrentTick() tick.Tick {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.currentTick
}

// Stats returns a snapshot of cumulative counters.
func (m *Mixer) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats
}

// gain computes a fade curve's gain at position t in [0,1].
func gain(c passage.Curve, t float64) float64 {
	switch c {
	case passage.CurveLinear:
		return t
	case passage.CurveLogarithmic:
		return math.Log(100*t+1) / math.Log(101)
	case passage.CurveExponential:
		return t * t
	case passage.CurveSCurve:
		return (1 - math.Cos(math.Pi*t)) / 2
	default:
		return t
	}
}

func clamp(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Mix fills out (interleaved stereo f32, len(out) must be even) with
// mixed frames, advances CurrentTick by the frame count produced, and
// returns every marker whose tick was reached during this call, in
// ascending tick order. Never blocks and never allocates beyond the
// returned slice.
func (m *Mixer) Mix(out []float32) []*marker.Marker {
	m.mu.Lock()
	defer m.mu.Unlock()

	frames := len(out) / 2
	var frame [2]float32

	for i := 0; i < frames; i++ {
		if m.crossfading {
			m.mixCrossfadeFrame(out[i*2 : i*2+2])
		} else {
			if m.current != nil && m.current.ReadFrame(frame[:]) {
				out[i*2], out[i*2+1] = frame[0], frame[1]
			} else {
				out[i*2], out[i*2+1] = 0, 0
				if m.current != nil {
					m.stats.Underruns++
				}
			}
		}
		m.currentTick += tick.FramesToTicks(1, 44100)
		m.framesWritten++
	}
	m.stats.FramesMixed += uint64(frames)

	reached := m.markers.PopReached(m.currentTick)
	for _, r := range reached {
		m.applyMarker(r)
	}
	return reached
}

func (m *Mixer) mixCrossfadeFrame(out []float32) {
	t := float64(m.currentTick-m.fadeStartTick) / float64(m.fadeDurationTicks)
	if t < 0 {
		t = 0
	}
	if t > 1 {
		t = 1
	}
	gOut := gain(m.outCurve, 1-t)
	gIn := gain(m.inCurve, t)

	var cur, nxt [2]float32
	if m.current == nil || !m.current.ReadFrame(cur[:]) {
		m.stats.Underruns++
	}
	if m.next == nil || !m.next.ReadFrame(nxt[:]) {
		m.stats.Underruns++
	}

	out[0] = clamp(float32(float64(cur[0])*gOut+float64(nxt[0])*gIn), -1.0, 1.0)
	out[1] = clamp(float32(float64(cur[1])*gOut+float64(nxt[1])*gIn), -1.0, 1.0)

	if t >= 1.0 {
		m.completeCrossfade()
	}
}

func (m *Mixer) completeCrossfade() {
	m.crossfading = false
	m.stats.CrossfadesRun++
	m.markers.Add(m.currentTick, m.currentPassageID, marker.Event{Kind: marker.PassageComplete})
	m.currentPassageID = m.nextPassageID
	m.current = m.next
	m.next = nil
	m.hasNext = false
}

// applyMarker changes no mixer state for any marker kind. Two-buffer
// mixing starts only when the Engine, handling the returned
// StartCrossfade marker, calls ActivateCrossfade.
func (m *Mixer) applyMarker(mk *marker.Marker) {
	if mk.Event.Kind != marker.StartCrossfade {
		return
	}
	if mk.PassageID != m.currentPassageID {
		return // stale: not the passage that's actually current
	}
	if !m.hasNext || m.next == nil {
		return // next buffer not primed; Engine is responsible for a hard cut
	}
}

// ActivateCrossfade begins frame-level fading from the current mix
// position. Called by the Engine after a StartCrossfade marker fires
// and it has confirmed the next buffer is Ready (spec §4.4).
func (m *Mixer) ActivateCrossfade(nextPassageID uuid.UUID, nextSrc Source, fadeStart, fadeDuration tick.Tick, outCurve, inCurve passage.Curve) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextPassageID = nextPassageID
	m.next = nextSrc
	m.hasNext = true
	m.fadeStartTick = fadeStart
	m.fadeDurationTicks = fadeDuration
	m.outCurve = outCurve
	m.inCurve = inCurve
	m.crossfading = true
}

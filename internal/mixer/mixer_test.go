package mixer

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wkmp/core/internal/marker"
	"github.com/wkmp/core/internal/passage"
	"github.com/wkmp/core/internal/tick"
)

// constSource emits a fixed sample pair until exhausted frames are consumed.
type constSource struct {
	l, r    float32
	remain  int
}

func (s *constSource) ReadFrame(out []float32) bool {
	if s.remain <= 0 {
		return false
	}
	s.remain--
	out[0], out[1] = s.l, s.r
	return true
}

func TestMixSingleStreamAdvancesTick(t *testing.T) {
	m := New()
	passageID := uuid.New()
	m.SetCurrent(passageID, &constSource{l: 0.5, r: -0.5, remain: 10})

	out := make([]float32, 20) // 10 frames
	events := m.Mix(out)

	assert.Empty(t, events)
	assert.Equal(t, tick.FramesToTicks(10, 44100), m.CurrentTick())
	assert.Equal(t, float32(0.5), out[0])
	assert.Equal(t, float32(-0.5), out[1])
}

func TestMixReportsUnderrunOnExhaustedSource(t *testing.T) {
	m := New()
	passageID := uuid.New()
	m.SetCurrent(passageID, &constSource{l: 1, r: 1, remain: 1})

	out := make([]float32, 4) // 2 frames, source has only 1
	m.Mix(out)

	assert.Equal(t, uint64(1), m.Stats().Underruns)
	assert.Equal(t, float32(0), out[2])
	assert.Equal(t, float32(0), out[3])
}

func TestCrossfadeLinearMidpoint(t *testing.T) {
	m := New()
	cur := uuid.New()
	nxt := uuid.New()
	m.SetCurrent(cur, &constSource{l: 1, r: 1, remain: 1000})

	fadeDuration := tick.FramesToTicks(100, 44100)
	m.ActivateCrossfade(nxt, &constSource{l: 1, r: 1, remain: 1000}, 0, fadeDuration, passage.CurveLinear, passage.CurveLinear)

	out := make([]float32, 100) // 50 frames, half the fade
	m.Mix(out)

	// at the midpoint both gains are ~0.5, sum ~= 1.0
	assert.InDelta(t, 1.0, out[98], 0.05)
}

func TestCrossfadeEndpointsMatchOutgoingThenIncoming(t *testing.T) {
	m := New()
	cur := uuid.New()
	nxt := uuid.New()
	m.SetCurrent(cur, &constSource{l: 1, r: 1, remain: 1000})

	fadeDuration := tick.FramesToTicks(100, 44100)
	m.ActivateCrossfade(nxt, &constSource{l: 0, r: 0, remain: 1000}, 0, fadeDuration, passage.CurveLinear, passage.CurveLinear)

	// first frame: outgoing gain ~= 1, incoming gain ~= 0, so the mix
	// should read as the outgoing source (1), not the incoming one (0).
	first := make([]float32, 2)
	m.Mix(first)
	assert.InDelta(t, 1.0, first[0], 0.05)

	// drive to the fade's last frame (t = 0.99); the mix should now read
	// as the incoming source (0), not the outgoing one (1).
	rest := make([]float32, 198) // 99 more frames, finishing the 100-frame fade
	m.Mix(rest)
	assert.InDelta(t, 0.0, rest[196], 0.05)
}

func TestCrossfadeCompletesAndEmitsPassageComplete(t *testing.T) {
	m := New()
	cur := uuid.New()
	nxt := uuid.New()
	m.SetCurrent(cur, &constSource{l: 1, r: 1, remain: 1000})

	fadeDuration := tick.FramesToTicks(10, 44100)
	m.ActivateCrossfade(nxt, &constSource{l: 1, r: 1, remain: 1000}, 0, fadeDuration, passage.CurveLinear, passage.CurveLinear)

	out := make([]float32, 40) // 20 frames, well past the 10-frame fade
	events := m.Mix(out)

	require.NotEmpty(t, events)
	found := false
	for _, e := range events {
		if e.Event.Kind == marker.PassageComplete && e.PassageID == cur {
			found = true
		}
	}
	assert.True(t, found, "expected a PassageComplete marker for the outgoing passage")
}

func TestAddMarkerFiresOnMix(t *testing.T) {
	m := New()
	passageID := uuid.New()
	m.SetCurrent(passageID, &constSource{l: 0, r: 0, remain: 1000})

	m.AddMarker(tick.FramesToTicks(5, 44100), passageID, marker.Event{Kind: marker.PositionUpdate, PositionMS: 100})

	out := make([]float32, 20) // 10 frames
	events := m.Mix(out)

	require.Len(t, events, 1)
	assert.Equal(t, marker.PositionUpdate, events[0].Event.Kind)
}

func TestClearMarkersForDropsPending(t *testing.T) {
	m := New()
	passageID := uuid.New()
	m.SetCurrent(passageID, &constSource{l: 0, r: 0, remain: 1000})

	m.AddMarker(tick.FramesToTicks(5, 44100), passageID, marker.Event{Kind: marker.PassageComplete})
	m.ClearMarkersFor(passageID)

	out := make([]float32, 20)
	events := m.Mix(out)
	assert.Empty(t, events)
}

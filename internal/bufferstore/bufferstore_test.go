package bufferstore

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wkmp/core/internal/tick"
)

func TestAllocateIsIdempotent(t *testing.T) {
	s := New(Config{})
	id := uuid.New()

	b1 := s.Allocate(id, ModePreroll)
	b2 := s.Allocate(id, ModeFull)

	assert.Same(t, b1, b2)
	assert.Equal(t, 1, s.Len())
}

func TestAppendTransitionsDecodingToReady(t *testing.T) {
	s := New(Config{})
	id := uuid.New()
	b := s.Allocate(id, ModeFull)

	assert.Equal(t, StatusDecoding, b.Status())
	b.Append([]float32{0.1, -0.1}, tick.FramesToTicks(1, 44100))
	assert.Equal(t, StatusReady, b.Status())
}

func TestReadFrameReportsUnderrunPastDecodedExtent(t *testing.T) {
	s := New(Config{})
	id := uuid.New()
	b := s.Allocate(id, ModeFull)
	b.Append([]float32{0.1, -0.1}, tick.FramesToTicks(1, 44100))

	out := make([]float32, 2)
	require.True(t, b.ReadFrame(out))
	assert.False(t, b.ReadFrame(out))
}

func TestRecycleRemovesFromStore(t *testing.T) {
	s := New(Config{})
	id := uuid.New()
	s.Allocate(id, ModeFull)

	s.Recycle(id)
	assert.Equal(t, 0, s.Len())

	_, err := s.Status(id)
	assert.Error(t, err)
}

func TestPrerollCapFramesUsesConfiguredSeconds(t *testing.T) {
	s := New(Config{PrerollSeconds: 15, SampleRate: 44100})
	assert.Equal(t, 15*44100, s.PrerollCapFrames())
}

package audiooutput

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEncodeF32LERoundTrips(t *testing.T) {
	src := []float32{1.0, -1.0, 0.5, -0.5}
	dst := make([]byte, len(src)*4)
	encodeF32LE(src, dst)

	assert.Len(t, dst, 16)
	// first sample, 1.0f32 little-endian = 00 00 80 3F
	assert.Equal(t, byte(0x00), dst[0])
	assert.Equal(t, byte(0x80), dst[2])
	assert.Equal(t, byte(0x3F), dst[3])
}

func TestNewSizesRingBufferFromLatency(t *testing.T) {
	o := New(Config{SampleRate: 44100, LatencyMillis: 150}, nil)
	assert.NotNil(t, o.ring)
	assert.Greater(t, o.ring.Free(), 0)
}

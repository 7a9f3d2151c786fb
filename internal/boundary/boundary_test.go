package boundary

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildScenarioD constructs a 180s synthetic stereo signal at sampleRate
// with one 0.9s silence at -65dBFS starting at t=60s, loud elsewhere at
// roughly -20dBFS (comfortably above the -30dBFS non-silence floor).
func buildScenarioD(sampleRate int) []float32 {
	totalFrames := 180 * sampleRate
	silenceStart := 60 * sampleRate
	silenceEnd := silenceStart + int(0.9*float64(sampleRate))

	loudAmp := float32(math.Pow(10, -20.0/20.0))
	quietAmp := float32(math.Pow(10, -65.0/20.0))

	pcm := make([]float32, totalFrames*2)
	for i := 0; i < totalFrames; i++ {
		amp := loudAmp
		if i >= silenceStart && i < silenceEnd {
			amp = quietAmp
		}
		pcm[i*2] = amp
		pcm[i*2+1] = amp
	}
	return pcm
}

func TestDetectScenarioDTwoPassages(t *testing.T) {
	sampleRate := 1000 // reduced rate keeps the synthetic fixture small
	pcm := buildScenarioD(sampleRate)

	boundaries := Detect(pcm, sampleRate, Config{
		MinSilenceMS:   500,
		MinPassageMS:   30000,
		SilenceRMSDBFS: -50,
		WindowMS:       50,
	})

	require.Len(t, boundaries, 2)
	for _, b := range boundaries {
		assert.GreaterOrEqual(t, b.Confidence, 0.8)
	}
}

func TestDetectFallsBackToWholeFileWhenNoSilence(t *testing.T) {
	sampleRate := 1000
	totalFrames := 10 * sampleRate
	pcm := make([]float32, totalFrames*2)
	for i := range pcm {
		pcm[i] = 0.5
	}

	boundaries := Detect(pcm, sampleRate, Config{})
	require.Len(t, boundaries, 1)
	assert.Less(t, boundaries[0].Confidence, 0.8)
}

func TestDetectEmptyPCMReturnsNoBoundaries(t *testing.T) {
	boundaries := Detect(nil, 44100, Config{})
	assert.Empty(t, boundaries)
}

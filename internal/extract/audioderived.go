package extract

import (
	"context"
	"math"
	"math/cmplx"
)

// AudioDerivedExtractor computes RMS, zero-crossing rate, and spectral
// centroid directly from decoded PCM to synthesize a proto-flavor
// vector, requiring no external dependency (spec §4.9).
type AudioDerivedExtractor struct{}

func (AudioDerivedExtractor) Source() Source { return SourceAudioDerived }

func (AudioDerivedExtractor) Extract(ctx context.Context, in PassageInput) Result {
	if len(in.PCM) == 0 {
		return Result{Source: SourceAudioDerived}
	}

	mono := toMono(in.PCM)
	rms := rms(mono)
	zcr := zeroCrossingRate(mono)
	centroid := spectralCentroid(mono, in.SampleRate)

	flavor := map[string]float64{
		"energy":     clamp01(rms * 4),
		"brightness": clamp01(centroid / (float64(in.SampleRate) / 2)),
		"percussiveness": clamp01(zcr * 2),
	}
	return Result{Source: SourceAudioDerived, Flavor: flavor}
}

func toMono(stereo []float32) []float64 {
	n := len(stereo) / 2
	mono := make([]float64, n)
	for i := 0; i < n; i++ {
		mono[i] = (float64(stereo[i*2]) + float64(stereo[i*2+1])) / 2
	}
	return mono
}

func rms(samples []float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += s * s
	}
	return math.Sqrt(sum / float64(len(samples)))
}

func zeroCrossingRate(samples []float64) float64 {
	if len(samples) < 2 {
		return 0
	}
	crossings := 0
	for i := 1; i < len(samples); i++ {
		if (samples[i-1] >= 0) != (samples[i] >= 0) {
			crossings++
		}
	}
	return float64(crossings) / float64(len(samples)-1)
}

// spectralCentroid computes a simple DFT-based centroid over the
// first power-of-two window, sufficient for a coarse brightness
// estimate without a full FFT library dependency.
func spectralCentroid(samples []float64, sampleRate int) float64 {
	n := nextPowerOfTwo(len(samples))
	if n > 4096 {
		n = 4096
	}
	if n < 2 {
		return 0
	}
	windowed := make([]complex128, n)
	for i := 0; i < n && i < len(samples); i++ {
		windowed[i] = complex(samples[i], 0)
	}
	spectrum := dft(windowed)

	var weightedSum, magSum float64
	for k := 0; k < n/2; k++ {
		mag := cmplx.Abs(spectrum[k])
		freq := float64(k) * float64(sampleRate) / float64(n)
		weightedSum += freq * mag
		magSum += mag
	}
	if magSum == 0 {
		return 0
	}
	return weightedSum / magSum
}

func dft(x []complex128) []complex128 {
	n := len(x)
	out := make([]complex128, n)
	for k := 0; k < n; k++ {
		var sum complex128
		for t := 0; t < n; t++ {
			angle := -2 * math.Pi * float64(k) * float64(t) / float64(n)
			sum += x[t] * cmplx.Exp(complex(0, angle))
		}
		out[k] = sum
	}
	return out
}

func nextPowerOfTwo(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

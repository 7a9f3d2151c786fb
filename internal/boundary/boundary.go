// Package boundary implements the Boundary Detector: RMS silence-based
// passage segmentation of a whole audio file. This is CPU-bound
// synchronous DSP and must run on a blocking-capable pool distinct
// from cooperative async tasks (spec §4.8).
package boundary

import (
	"math"

	"github.com/wkmp/core/internal/tick"
)

// Config tunes silence detection.
type Config struct {
	MinSilenceMS   int     // minimum silence duration to qualify as a boundary
	MinPassageMS   int     // minimum passage length produced
	SilenceRMSDBFS float64 // RMS threshold below which a frame is "silent"
	WindowMS       int     // RMS analysis window size
}

func defaults(c Config) Config {
	if c.MinSilenceMS <= 0 {
		c.MinSilenceMS = 500
	}
	if c.MinPassageMS <= 0 {
		c.MinPassageMS = 30000
	}
	if c.SilenceRMSDBFS == 0 {
		c.SilenceRMSDBFS = -50
	}
	if c.WindowMS <= 0 {
		c.WindowMS = 50
	}
	return c
}

// Boundary is one detected passage split point.
type Boundary struct {
	StartTick  tick.Tick
	EndTick    tick.Tick
	Confidence float64
}

// Detect segments interleaved stereo f32 PCM at sampleRate into
// passages by silence. Falls back to the whole file as one passage
// with reduced confidence if no qualifying silence is found (spec
// §4.8).
func Detect(pcm []float32, sampleRate int, cfg Config) []Boundary {
	cfg = defaults(cfg)
	totalFrames := len(pcm) / 2
	totalTicks := tick.FramesToTicks(totalFrames, sampleRate)
	if totalFrames == 0 {
		return nil
	}

	windowFrames := cfg.WindowMS * sampleRate / 1000
	if windowFrames <= 0 {
		windowFrames = 1
	}

	silenceRuns := findSilenceRuns(pcm, sampleRate, windowFrames, cfg.SilenceRMSDBFS, cfg.MinSilenceMS)
	if len(silenceRuns) == 0 {
		return []Boundary{{StartTick: 0, EndTick: totalTicks, Confidence: 0.4}}
	}

	minPassageFrames := cfg.MinPassageMS * sampleRate / 1000
	var out []Boundary
	cursor := 0
	trailingConf := 0.0
	for _, run := range silenceRuns {
		if run.startFrame-cursor < minPassageFrames {
			continue // too short a passage before this silence, merge through it
		}
		out = append(out, Boundary{
			StartTick:  tick.FramesToTicks(cursor, sampleRate),
			EndTick:    tick.FramesToTicks(run.startFrame, sampleRate),
			Confidence: confidenceFor(run.rmsDBFS, cfg.SilenceRMSDBFS),
		})
		cursor = run.endFrame
		trailingConf = confidenceFor(run.rmsDBFS, cfg.SilenceRMSDBFS)
	}
	if cursor > 0 && totalFrames-cursor > 0 {
		out = append(out, Boundary{
			StartTick:  tick.FramesToTicks(cursor, sampleRate),
			EndTick:    totalTicks,
			Confidence: trailingConf,
		})
	}
	if len(out) == 0 {
		return []Boundary{{StartTick: 0, EndTick: totalTicks, Confidence: 0.4}}
	}
	return out
}

type silenceRun struct {
	startFrame, endFrame int
	rmsDBFS              float64
}

func findSilenceRuns(pcm []float32, sampleRate, windowFrames int, thresholdDBFS float64, minSilenceMS int) []silenceRun {
	minSilenceFrames := minSilenceMS * sampleRate / 1000
	totalFrames := len(pcm) / 2

	var runs []silenceRun
	runStart := -1
	var runRMSSum float64
	var runWindows int

	for start := 0; start < totalFrames; start += windowFrames {
		end := start + windowFrames
		if end > totalFrames {
			end = totalFrames
		}
		rms := windowRMSDBFS(pcm, start, end)
		if rms <= thresholdDBFS {
			if runStart == -1 {
				runStart = start
			}
			runRMSSum += rms
			runWindows++
		} else {
			if runStart != -1 && start-runStart >= minSilenceFrames {
				runs = append(runs, silenceRun{startFrame: runStart, endFrame: start, rmsDBFS: runRMSSum / float64(runWindows)})
			}
			runStart = -1
			runRMSSum = 0
			runWindows = 0
		}
	}
	if runStart != -1 && totalFrames-runStart >= minSilenceFrames {
		runs = append(runs, silenceRun{startFrame: runStart, endFrame: totalFrames, rmsDBFS: runRMSSum / float64(runWindows)})
	}
	return runs
}

func windowRMSDBFS(pcm []float32, startFrame, endFrame int) float64 {
	var sumSq float64
	n := 0
	for i := startFrame; i < endFrame; i++ {
		l := float64(pcm[i*2])
		r := float64(pcm[i*2+1])
		sumSq += l*l + r*r
		n += 2
	}
	if n == 0 {
		return -math.MaxFloat64
	}
	rms := math.Sqrt(sumSq / float64(n))
	if rms <= 0 {
		return -120 // effectively silent floor
	}
	return 20 * math.Log10(rms)
}

// confidenceFor scores a silence run: the quieter the run relative to
// the threshold, the higher the confidence (spec §4.8 "clear silence
// ⇒ higher").
func confidenceFor(rmsDBFS, thresholdDBFS float64) float64 {
	margin := thresholdDBFS - rmsDBFS // positive when quieter than threshold
	confidence := 0.8 + margin/100
	if confidence > 1.0 {
		confidence = 1.0
	}
	if confidence < 0.8 {
		confidence = 0.8
	}
	return confidence
}

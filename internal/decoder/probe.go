package decoder

import (
	"context"
	"encoding/json"
	"os/exec"
	"strconv"

	"github.com/wkmp/core/internal/tick"
)

// FFProbeContainerProber extracts duration/channel/sample-rate
// metadata via an `ffprobe` subprocess without a full decode,
// implementing scanextract.ContainerProber. Mirrors the subprocess
// idiom of ffmpegCodec in subprocess.go.
type FFProbeContainerProber struct {
	FFProbePath string
}

type ffprobeOutput struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
	Streams []struct {
		CodecType  string `json:"codec_type"`
		Channels   int    `json:"channels"`
		SampleRate string `json:"sample_rate"`
	} `json:"streams"`
}

// Probe satisfies scanextract.ContainerProber.
func (p FFProbeContainerProber) Probe(path string, format Format) (durationTicks int64, channels, sampleRate int, err error) {
	ffprobe := p.FFProbePath
	if ffprobe == "" {
		ffprobe = "ffprobe"
	}
	out, err := exec.CommandContext(context.Background(), ffprobe,
		"-v", "error", "-print_format", "json", "-show_format", "-show_streams", path).Output()
	if err != nil {
		return 0, 0, 0, err
	}

	var parsed ffprobeOutput
	if err := json.Unmarshal(out, &parsed); err != nil {
		return 0, 0, 0, err
	}

	durationSec, err := strconv.ParseFloat(parsed.Format.Duration, 64)
	if err != nil {
		return 0, 0, 0, err
	}

	for _, s := range parsed.Streams {
		if s.CodecType != "audio" {
			continue
		}
		channels = s.Channels
		if sr, serr := strconv.Atoi(s.SampleRate); serr == nil {
			sampleRate = sr
		}
		break
	}
	if sampleRate == 0 {
		sampleRate = 44100
	}

	frames := int(durationSec * float64(sampleRate))
	durationTicks = int64(tick.FramesToTicks(frames, sampleRate))
	return durationTicks, channels, sampleRate, nil
}

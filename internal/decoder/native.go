package decoder

import (
	"context"
	"io"
	"os"

	"github.com/go-audio/wav"
	"github.com/tphakala/flac"
	"github.com/wkmp/core/internal/wkerrors"
)

// wavCodec decodes PCM WAV containers via go-audio/wav, the same
// library used for native audio loading elsewhere in this codebase.
type wavCodec struct {
	chunkFrames int
}

// NewWAVCodec returns a Codec for PCM WAV files, producing chunkFrames
// interleaved stereo frames per sink call.
func NewWAVCodec(chunkFrames int) Codec {
	if chunkFrames <= 0 {
		chunkFrames = 4096
	}
	return &wavCodec{chunkFrames: chunkFrames}
}

func (c *wavCodec) Decode(ctx context.Context, path string, sink func([]float32) bool) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	dec.ReadInfo()
	if !dec.IsValidFile() {
		return wkerrors.Newf("not a valid WAV file: %s", path).
			Component("decoder").Category(wkerrors.CategoryDecode).Build()
	}

	var divisor float32
	switch dec.BitDepth {
	case 16:
		divisor = 32768.0
	case 24:
		divisor = 8388608.0
	case 32:
		divisor = 2147483648.0
	default:
		divisor = 32768.0
	}
	channels := int(dec.NumChans)

	pcmBuf, err := dec.FullPCMBuffer()
	if err != nil {
		return err
	}

	frames := make([]float32, 0, c.chunkFrames*2)
	emit := func(l, r float32) bool {
		frames = append(frames, l, r)
		if len(frames) >= c.chunkFrames*2 {
			ok := sink(frames)
			frames = frames[:0]
			return ok
		}
		return true
	}

	for i := 0; i+channels <= len(pcmBuf.Data); i += channels {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		l := float32(pcmBuf.Data[i]) / divisor
		r := l
		if channels > 1 {
			r = float32(pcmBuf.Data[i+1]) / divisor
		}
		if !emit(l, r) {
			return nil
		}
	}
	if len(frames) > 0 {
		sink(frames)
	}
	return nil
}

// flacCodec decodes native FLAC streams via tphakala/flac.
type flacCodec struct {
	chunkFrames int
}

// NewFLACCodec returns a Codec for native FLAC files.
func NewFLACCodec(chunkFrames int) Codec {
	if chunkFrames <= 0 {
		chunkFrames = 4096
	}
	return &flacCodec{chunkFrames: chunkFrames}
}

func (c *flacCodec) Decode(ctx context.Context, path string, sink func([]float32) bool) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	stream, err := flac.New(f)
	if err != nil {
		return wkerrors.New(err).Component("decoder").Category(wkerrors.CategoryDecode).Build()
	}

	maxVal := float32(int64(1) << (stream.Info.BitsPerSample - 1))
	channels := int(stream.Info.NChannels)

	frames := make([]float32, 0, c.chunkFrames*2)
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		fr, err := stream.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return wkerrors.New(err).Component("decoder").Category(wkerrors.CategoryDecode).Build()
		}
		n := len(fr.Subframes[0].Samples)
		for i := 0; i < n; i++ {
			l := float32(fr.Subframes[0].Samples[i]) / maxVal
			r := l
			if channels > 1 {
				r = float32(fr.Subframes[1].Samples[i]) / maxVal
			}
			frames = append(frames, l, r)
			if len(frames) >= c.chunkFrames*2 {
				if !sink(frames) {
					return nil
				}
				frames = frames[:0]
			}
		}
	}
	if len(frames) > 0 {
		sink(frames)
	}
	return nil
}

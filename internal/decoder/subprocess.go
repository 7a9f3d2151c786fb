package decoder

import (
	"bufio"
	"context"
	"encoding/binary"
	"io"
	"math"
	"os/exec"
	"strconv"

	"github.com/wkmp/core/internal/wkerrors"
)

// ffmpegCodec decodes any container ffmpeg understands (MP3, AAC/M4A,
// Vorbis/Opus in OGG) by piping raw interleaved f32le stereo PCM from
// an ffmpeg subprocess, mirroring the subprocess-pipe pattern used for
// live capture elsewhere in this codebase.
type ffmpegCodec struct {
	ffmpegPath  string
	sampleRate  int
	chunkFrames int
}

// NewFFmpegCodec returns a Codec that shells out to ffmpegPath.
func NewFFmpegCodec(ffmpegPath string, sampleRate, chunkFrames int) Codec {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if sampleRate <= 0 {
		sampleRate = 44100
	}
	if chunkFrames <= 0 {
		chunkFrames = 4096
	}
	return &ffmpegCodec{ffmpegPath: ffmpegPath, sampleRate: sampleRate, chunkFrames: chunkFrames}
}

func (c *ffmpegCodec) args(path string) []string {
	return []string{
		"-v", "error",
		"-i", path,
		"-f", "f32le",
		"-ac", "2",
		"-ar", strconv.Itoa(c.sampleRate),
		"-",
	}
}

func (c *ffmpegCodec) Decode(ctx context.Context, path string, sink func([]float32) bool) error {
	cmd := exec.CommandContext(ctx, c.ffmpegPath, c.args(path)...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return wkerrors.New(err).Component("decoder").Category(wkerrors.CategoryDecode).Build()
	}
	if err := cmd.Start(); err != nil {
		return wkerrors.New(err).
			Component("decoder").
			Category(wkerrors.CategoryDecode).
			Context("ffmpeg_path", c.ffmpegPath).
			Build()
	}

	reader := bufio.NewReaderSize(stdout, c.chunkFrames*2*4)
	raw := make([]byte, c.chunkFrames*2*4)
	frames := make([]float32, c.chunkFrames*2)

	decodeErr := func() error {
		for {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			n, err := io.ReadFull(reader, raw)
			if n > 0 {
				count := n / 4
				for i := 0; i < count; i++ {
					bits := binary.LittleEndian.Uint32(raw[i*4:])
					frames[i] = math.Float32frombits(bits)
				}
				if !sink(frames[:count]) {
					return nil
				}
			}
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				return nil
			}
			if err != nil {
				return err
			}
		}
	}()

	waitErr := cmd.Wait()
	if decodeErr != nil {
		return wkerrors.New(decodeErr).Component("decoder").Category(wkerrors.CategoryDecode).Build()
	}
	if waitErr != nil {
		return wkerrors.New(waitErr).
			Component("decoder").
			Category(wkerrors.CategoryDecode).
			Context("ffmpeg_path", c.ffmpegPath).
			Build()
	}
	return nil
}

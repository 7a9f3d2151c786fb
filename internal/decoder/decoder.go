// Package decoder implements the Decoder Pool: a bounded worker pool
// that decodes a passage's PCM from its file's beginning, discards
// samples before start_tick, and writes frames to the target buffer
// (spec §4.1). Compressed-format seek is never used; sample-accurate
// passage starts require decode-and-skip.
package decoder

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/google/uuid"
	"github.com/wkmp/core/internal/bufferstore"
	"github.com/wkmp/core/internal/cpuspec"
	"github.com/wkmp/core/internal/tick"
	"github.com/wkmp/core/internal/wkerrors"
	"github.com/wkmp/core/internal/wklog"
)

// Priority orders DecodeRequests within the pool queue: Submit puts an
// Immediate request at the head of the queue, and Next and Prefetch
// requests are queued in arrival order. A worker that has already
// started a decode is not interrupted by a later request.
type Priority int

const (
	PriorityPrefetch Priority = iota
	PriorityNext
	PriorityImmediate
)

// ErrorKind classifies a decode failure (spec §4.1).
type ErrorKind string

const (
	ErrFileNotFound      ErrorKind = "FileNotFound"
	ErrUnsupportedFormat ErrorKind = "UnsupportedFormat"
	ErrDecodeFailure     ErrorKind = "DecodeFailure"
	ErrResampleFailure   ErrorKind = "ResampleFailure"
	ErrBufferClosed      ErrorKind = "BufferClosed"
)

// DecodeError wraps an ErrorKind with the underlying cause.
type DecodeError struct {
	Kind ErrorKind
	Err  error
}

func (e *DecodeError) Error() string { return string(e.Kind) + ": " + e.Err.Error() }
func (e *DecodeError) Unwrap() error { return e.Err }

// Request describes one passage decode (spec §4.1 contract).
type Request struct {
	PassageID uuid.UUID
	FilePath  string
	StartTick tick.Tick
	EndTick   tick.Tick
	Priority  Priority
	Mode      bufferstore.Mode
}

// Codec decodes one audio container format into interleaved stereo f32
// PCM at the pool's target sample rate. Implementations live in
// per-format files (native.go for FLAC/WAV, subprocess.go for
// ffmpeg-mediated formats).
type Codec interface {
	// Decode streams frames into sink starting at the container's first
	// sample. sink returns false to signal the caller (preroll cap or
	// cancellation) should stop early; Decode then returns nil.
	Decode(ctx context.Context, path string, sink func(frames []float32) bool) error
}

// Sniffer identifies a container format from its magic bytes, shared
// with the File Scanner (spec §4.6 "Identify by magic bytes").
type Sniffer func(path string) (Format, error)

// Format is a detected container kind.
type Format string

const (
	FormatMP3   Format = "mp3"
	FormatFLAC  Format = "flac"
	FormatAAC   Format = "aac"
	FormatOgg   Format = "ogg"
	FormatWAV   Format = "wav"
	FormatOther Format = "other"
)

// Pool runs bounded concurrent decode workers. Workers are sized to
// the CPU count (clamped), mirroring the performance-core-aware sizing
// used elsewhere in the codebase for CPU-bound DSP work.
type Pool struct {
	store   *bufferstore.Store
	codecs  map[Format]Codec
	sniff   Sniffer
	logger  *slog.Logger

	mu      sync.Mutex
	queue   []*Request
	cond    *sync.Cond
	closed  bool
	workers int

	wg sync.WaitGroup
}

// NewPool returns a Pool with workerCount workers; 0 selects the
// host's optimal decode-worker count (performance-core count on
// hybrid CPUs, logical core count otherwise).
func NewPool(store *bufferstore.Store, sniff Sniffer, codecs map[Format]Codec, workerCount int) *Pool {
	if workerCount <= 0 {
		workerCount = cpuspec.GetCPUSpec().GetOptimalThreadCount()
		if workerCount < 1 {
			workerCount = 1
		}
	}
	p := &Pool{
		store:   store,
		codecs:  codecs,
		sniff:   sniff,
		logger:  wklog.ForService("decoder"),
		workers: workerCount,
	}
	p.cond = sync.NewCond(&p.mu)
	return p
}

// Start launches the pool's workers; they run until ctx is cancelled.
func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.runWorker(ctx)
	}
}

// Stop signals all workers to exit and waits for them.
func (p *Pool) Stop() {
	p.mu.Lock()
	p.closed = true
	p.cond.Broadcast()
	p.mu.Unlock()
	p.wg.Wait()
}

// Submit enqueues req. Immediate requests are inserted at the head of
// the queue, ahead of every pending request; all others are appended.
// Decodes already running on a worker are left to finish.
func (p *Pool) Submit(req *Request) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if req.Priority == PriorityImmediate {
		p.queue = append([]*Request{req}, p.queue...)
	} else {
		p.queue = append(p.queue, req)
	}
	p.cond.Signal()
}

func (p *Pool) runWorker(ctx context.Context) {
	defer p.wg.Done()
	for {
		req := p.dequeue(ctx)
		if req == nil {
			return
		}
		p.decodeOne(ctx, req)
	}
}

func (p *Pool) dequeue(ctx context.Context) *Request {
	p.mu.Lock()
	defer p.mu.Unlock()
	for len(p.queue) == 0 && !p.closed {
		if ctx.Err() != nil {
			return nil
		}
		p.cond.Wait()
	}
	if p.closed || len(p.queue) == 0 {
		return nil
	}
	req := p.queue[0]
	p.queue = p.queue[1:]
	return req
}

func (p *Pool) decodeOne(ctx context.Context, req *Request) {
	logger := p.logger.With("passage_id", req.PassageID, "file", req.FilePath, "priority", req.Priority)

	if _, err := os.Stat(req.FilePath); err != nil {
		p.fail(req, &DecodeError{Kind: ErrFileNotFound, Err: err})
		return
	}

	format, err := p.sniff(req.FilePath)
	if err != nil {
		p.fail(req, &DecodeError{Kind: ErrUnsupportedFormat, Err: err})
		return
	}
	codec, ok := p.codecs[format]
	if !ok {
		p.fail(req, &DecodeError{Kind: ErrUnsupportedFormat, Err: wkerrors.Newf("no codec registered for format %q", format).Build()})
		return
	}

	buf := p.store.Allocate(req.PassageID, req.Mode)
	skipSamples := tick.TicksToSamples(req.StartTick, 44100)
	prerollCap := 0
	if req.Mode == bufferstore.ModePreroll {
		prerollCap = p.store.PrerollCapFrames()
	}

	var skipped, produced int64
	sink := func(frames []float32) bool {
		if ctx.Err() != nil {
			return false
		}
		n := int64(len(frames) / 2)
		if skipped < skipSamples {
			toSkip := skipSamples - skipped
			if toSkip >= n {
				skipped += n
				return true
			}
			frames = frames[toSkip*2:]
			skipped = skipSamples
		}
		buf.Append(frames, req.StartTick+tick.FramesToTicks(int(produced)+len(frames)/2, 44100))
		produced += int64(len(frames) / 2)
		if prerollCap > 0 && produced >= int64(prerollCap) {
			return false
		}
		return true
	}

	if err := codec.Decode(ctx, req.FilePath, sink); err != nil && err != io.EOF {
		logger.Warn("decode failed", "error", err)
		p.fail(req, &DecodeError{Kind: ErrDecodeFailure, Err: err})
		return
	}
	buf.MarkReady()
	logger.Debug("decode complete", "produced_frames", produced)
}

func (p *Pool) fail(req *Request, err *DecodeError) {
	p.logger.Warn("decode request failed", "passage_id", req.PassageID, "kind", err.Kind, "error", err.Err)
}

// Package bufferstore implements the Passage Buffer Store: allocation,
// status tracking, and recycling of PassageBuffers across the two size
// regimes the Mixer consumes from — full (currently playing) and
// preroll (queued, bounded) — adapted from the tiered sync.Pool buffer
// pool pattern (spec §4.2).
package bufferstore

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/wkmp/core/internal/tick"
	"github.com/wkmp/core/internal/wkerrors"
	"github.com/wkmp/core/internal/wklog"
)

// Mode is a buffer's size regime.
type Mode int

const (
	// ModePreroll buffers a queued (not-yet-current) passage, bounded
	// to PrerollSeconds of PCM.
	ModePreroll Mode = iota
	// ModeFull buffers the currently-playing passage in its entirety.
	ModeFull
)

// Status is a PassageBuffer's lifecycle state (spec §3).
type Status int

const (
	StatusDecoding Status = iota
	StatusReady
	StatusPlaying
	StatusExhausted
)

func (s Status) String() string {
	switch s {
	case StatusDecoding:
		return "Decoding"
	case StatusReady:
		return "Ready"
	case StatusPlaying:
		return "Playing"
	case StatusExhausted:
		return "Exhausted"
	default:
		return "Unknown"
	}
}

const framesPerChannel = 2 // interleaved stereo

// Buffer is a PassageBuffer: contiguous interleaved f32 stereo PCM plus
// lifecycle state. The Store exclusively owns its mutation; the Mixer
// holds only a read cursor via ReadFrame.
type Buffer struct {
	id        uuid.UUID
	mode      Mode
	sampleRate int

	mu          sync.Mutex
	pcm         []float32
	decodedTick tick.Tick // extent decoded so far, relative to passage start
	status      Status
	readFrame   int // Mixer's read cursor, in frames
	refs        int
}

// ID returns the buffer's passage ID.
func (b *Buffer) ID() uuid.UUID { return b.id }

// Status returns the buffer's current lifecycle state.
func (b *Buffer) Status() Status {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.status
}

// Append adds newly-decoded frames and advances the decoded extent.
// Called only by the Decoder Pool.
func (b *Buffer) Append(frames []float32, throughTick tick.Tick) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pcm = append(b.pcm, frames...)
	b.decodedTick = throughTick
	if b.status == StatusDecoding && len(b.pcm) > 0 {
		b.status = StatusReady
	}
}

// MarkReady transitions Decoding to Ready even with zero frames
// decoded so far (e.g. a zero-length lead-in).
func (b *Buffer) MarkReady() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.status == StatusDecoding {
		b.status = StatusReady
	}
}

// MarkPlaying transitions Ready to Playing, called when the Engine
// promotes this buffer to the Mixer's current pointer.
func (b *Buffer) MarkPlaying() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.status = StatusPlaying
}

// ReadFrame satisfies mixer.Source: it copies the next stereo frame
// into out and advances the read cursor, or reports underrun if the
// decoded extent hasn't caught up yet.
func (b *Buffer) ReadFrame(out []float32) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	idx := b.readFrame * framesPerChannel
	if idx+framesPerChannel > len(b.pcm) {
		return false
	}
	out[0] = b.pcm[idx]
	out[1] = b.pcm[idx+1]
	b.readFrame++
	return true
}

// DecodedTick returns the tick extent decoded so far.
func (b *Buffer) DecodedTick() tick.Tick {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.decodedTick
}

// Store allocates, tracks, and recycles PassageBuffers. Thread-safe:
// the Mixer's read access and the Engine's allocate/recycle calls may
// run on different goroutines (spec §4.2 contract).
type Store struct {
	mu      sync.Mutex
	buffers map[uuid.UUID]*Buffer

	prerollSeconds int
	sampleRate     int
	logger         *slog.Logger
}

// Config configures a Store's size regimes.
type Config struct {
	PrerollSeconds int
	SampleRate     int
}

// New returns an empty Store.
func New(cfg Config) *Store {
	if cfg.PrerollSeconds <= 0 {
		cfg.PrerollSeconds = 15
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 44100
	}
	return &Store{
		buffers:        make(map[uuid.UUID]*Buffer),
		prerollSeconds: cfg.PrerollSeconds,
		sampleRate:     cfg.SampleRate,
		logger:         wklog.ForService("bufferstore"),
	}
}

// Allocate reserves a new Buffer for passageID in the given mode. A
// caller that allocates an already-allocated passage gets the existing
// buffer back unchanged (idempotent re-request, e.g. promotion from
// preroll to full re-using the same handle before a full re-decode).
func (s *Store) Allocate(passageID uuid.UUID, mode Mode) *Buffer {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.buffers[passageID]; ok {
		return existing
	}

	b := &Buffer{
		id:         passageID,
		mode:       mode,
		sampleRate: s.sampleRate,
		status:     StatusDecoding,
	}
	s.buffers[passageID] = b
	s.logger.Debug("buffer allocated", "passage_id", passageID, "mode", mode)
	return b
}

// PrerollCapFrames returns the maximum frame count a preroll buffer
// should accumulate before the Decoder Pool stops decoding into it.
func (s *Store) PrerollCapFrames() int {
	return s.prerollSeconds * s.sampleRate
}

// Get returns the buffer for passageID, if allocated.
func (s *Store) Get(passageID uuid.UUID) (*Buffer, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.buffers[passageID]
	return b, ok
}

// Status returns the status of the buffer for passageID.
func (s *Store) Status(passageID uuid.UUID) (Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.buffers[passageID]
	if !ok {
		return 0, wkerrors.Newf("no buffer allocated for passage").
			Component("bufferstore").
			Category(wkerrors.CategoryNotFound).
			Context("passage_id", passageID.String()).
			Build()
	}
	return b.Status(), nil
}

// Recycle releases the buffer for passageID. The caller (Engine) must
// guarantee the Mixer no longer references it — recycling a buffer
// the Mixer's current/next pointer still holds is a caller bug, not
// something this Store can detect without a live Mixer handle (spec
// §4.2 invariant).
func (s *Store) Recycle(passageID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b, ok := s.buffers[passageID]; ok {
		b.mu.Lock()
		b.status = StatusExhausted
		b.pcm = nil
		b.mu.Unlock()
		delete(s.buffers, passageID)
		s.logger.Debug("buffer recycled", "passage_id", passageID)
	}
}

// Len returns the number of currently tracked buffers.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.buffers)
}

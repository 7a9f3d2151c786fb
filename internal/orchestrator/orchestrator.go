// Package orchestrator implements the Workflow Orchestrator: it drives
// an ImportSession from Scanning through Completed, bounds parallelism
// over files during processing, and translates WorkflowEvents into
// session state transitions (spec §4.13). The in-flight-set and
// broadcast-ticker shapes are adapted from the teacher's
// internal/events EventBus (buffered channel, worker pool, graceful
// timeout-bounded shutdown).
package orchestrator

import (
	"context"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/wkmp/core/internal/wklog"
)

// State is an ImportSession's lifecycle state.
type State string

const (
	StateScanning    State = "Scanning"
	StateSegmenting  State = "Segmenting"
	StateFingerprinting State = "Fingerprinting"
	StateIdentifying State = "Identifying"
	StateAnalyzing   State = "Analyzing"
	StateFlavoring   State = "Flavoring"
	StateCompleted   State = "Completed"
	StateCancelled   State = "Cancelled"
	StateFailed      State = "Failed"
)

// EventKind identifies a WorkflowEvent's shape.
type EventKind string

const (
	EventBoundaryDetected    EventKind = "BoundaryDetected"
	EventExtractionProgress  EventKind = "ExtractionProgress"
	EventPassageCompleted    EventKind = "PassageCompleted"
)

// WorkflowEvent is one pipeline-stage notification, produced per file
// in stage order (spec §5: "events interleave arbitrarily" across
// files).
type WorkflowEvent struct {
	Kind         EventKind
	Extractor    string  // set when Kind == EventExtractionProgress
	QualityScore float64 // set when Kind == EventPassageCompleted
}

// StateCommand describes a single mutation of session state. Nothing in
// this package sends or consumes StateCommand values: the event-listener
// applies transitions directly through the Session.
type StateCommand struct {
	NewState      State
	QualityBucket string // "high", "medium", "low", "unidentified" — set for PassageCompleted buckets
}

// InFlightSize returns P = clamp(cpu_count, 4, 16), the bound on
// simultaneously-processing files (spec §4.13).
func InFlightSize() int {
	p := runtime.NumCPU()
	if p < 4 {
		return 4
	}
	if p > 16 {
		return 16
	}
	return p
}

// Session is one ImportSession's mutable state, protected by mu.
type Session struct {
	mu sync.Mutex

	State      State
	FilesTotal int
	FilesDone  int

	buckets map[string]int

	eta *phaseETA

	cancelFlag atomic.Bool
	cancelledCh chan struct{}
	cancelOnce  sync.Once
}

// NewSession starts a Session in Scanning state.
func NewSession(filesTotal int) *Session {
	return &Session{
		State:       StateScanning,
		FilesTotal:  filesTotal,
		buckets:     make(map[string]int),
		eta:         newPhaseETA(time.Now()),
		cancelledCh: make(chan struct{}),
	}
}

// Cancel sets the cooperative cancel flag; processing stages observe
// it via Cancelled() between files (spec §4.13, §8 invariant 8).
func (s *Session) Cancel() {
	s.cancelFlag.Store(true)
	s.cancelOnce.Do(func() { close(s.cancelledCh) })
}

// Cancelled reports whether cancellation has been requested.
func (s *Session) Cancelled() bool {
	return s.cancelFlag.Load()
}

// CancelledChan is closed exactly once, when Cancel is first called.
func (s *Session) CancelledChan() <-chan struct{} {
	return s.cancelledCh
}

// setState changes the session's lifecycle state and resets the
// per-phase ETA clock, since ETA is never measured against
// session.started_at (spec §4.13).
func (s *Session) setState(st State) {
	s.mu.Lock()
	s.State = st
	s.eta = newPhaseETA(time.Now())
	s.mu.Unlock()
}

func (s *Session) snapshotState() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.State
}

func (s *Session) bumpBucket(bucket string) {
	s.mu.Lock()
	s.buckets[bucket]++
	s.mu.Unlock()
}

func (s *Session) fileCompleted() {
	s.mu.Lock()
	s.FilesDone++
	if s.eta != nil {
		s.eta.RecordCompletion()
	}
	s.mu.Unlock()
}

// PhaseETA estimates the remaining time in the current phase given
// filesRemaining, or ok=false if too little data has accumulated yet
// (spec §4.13, Scenario E).
func (s *Session) PhaseETA(filesRemaining int) (eta time.Duration, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.eta == nil {
		return 0, false
	}
	return s.eta.Estimate(time.Now(), filesRemaining)
}

// Orchestrator drives one Session's event-listener and progress
// broadcaster.
type Orchestrator struct {
	session *Session
	events  chan WorkflowEvent
	logger  *slog.Logger
	metrics *Metrics

	firstBoundarySeen     atomic.Bool
	firstFingerprintSeen  atomic.Bool
	firstIdentifyingSeen  atomic.Bool
	firstAnalyzingSeen    atomic.Bool
	firstFlavoringSeen    atomic.Bool
}

// New returns an Orchestrator for session, with a buffered event
// channel sized generously above the in-flight set so producers never
// block on the listener.
func New(session *Session) *Orchestrator {
	return &Orchestrator{
		session: session,
		events:  make(chan WorkflowEvent, 4*InFlightSize()),
		logger:  wklog.ForService("orchestrator"),
	}
}

// WithMetrics attaches m to o and returns o for chaining. A nil m is a
// no-op.
func (o *Orchestrator) WithMetrics(m *Metrics) *Orchestrator {
	o.metrics = m
	return o
}

// Publish is how a processing stage reports a WorkflowEvent. It never
// blocks: a full channel drops the event and logs at debug level,
// since progress fidelity is best-effort, not load-bearing (spec §4.13
// decouples UI smoothness from completion timing already).
func (o *Orchestrator) Publish(ev WorkflowEvent) {
	select {
	case o.events <- ev:
	default:
		o.logger.Debug("workflow event dropped, listener backlogged", "kind", ev.Kind)
	}
}

// RunEventListener consumes the shared WorkflowEvent stream and
// applies the state transitions spec.md §4.13 names, until ctx is done
// or the event channel is closed. Exactly one instance runs per
// session (spec: "single event-listener task, spawned once per
// session").
func (o *Orchestrator) RunEventListener(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-o.events:
			if !ok {
				return
			}
			o.apply(ev)
		}
	}
}

func (o *Orchestrator) apply(ev WorkflowEvent) {
	switch ev.Kind {
	case EventBoundaryDetected:
		if o.firstBoundarySeen.CompareAndSwap(false, true) {
			o.transition(StateSegmenting)
		}
	case EventExtractionProgress:
		switch ev.Extractor {
		case "chromaprint":
			if o.firstFingerprintSeen.CompareAndSwap(false, true) {
				o.transition(StateFingerprinting)
			}
		case "acoustid", "musicbrainz":
			if o.firstIdentifyingSeen.CompareAndSwap(false, true) {
				o.transition(StateIdentifying)
			}
		case "audio_derived":
			if o.firstAnalyzingSeen.CompareAndSwap(false, true) {
				o.transition(StateAnalyzing)
			}
		case "feature_extractor":
			if o.firstFlavoringSeen.CompareAndSwap(false, true) {
				o.transition(StateFlavoring)
			}
		}
	case EventPassageCompleted:
		bucket := qualityBucket(ev.QualityScore)
		o.session.bumpBucket(bucket)
		o.metrics.observeBucket(bucket)
	}
}

func (o *Orchestrator) transition(st State) {
	o.session.setState(st)
	o.metrics.observeState(st)
}

func qualityBucket(score float64) string {
	switch {
	case score > 0.8:
		return "high"
	case score > 0.5:
		return "medium"
	case score > 0.2:
		return "low"
	default:
		return "unidentified"
	}
}

// Close signals the event channel is done; safe to call once all
// producers have stopped.
func (o *Orchestrator) Close() {
	close(o.events)
}

// State returns the session's current lifecycle state.
func (o *Orchestrator) State() State {
	return o.session.snapshotState()
}

const progressBroadcastInterval = 500 * time.Millisecond

// Progress is a lock-free snapshot of session state for consumption by
// UI-facing broadcast callbacks.
type Progress struct {
	State      State
	FilesTotal int
	FilesDone  int
	Buckets    map[string]int
}

// RunProgressBroadcaster fires on a fixed interval independent of task
// completion, invoking onTick with a state snapshot each time (spec
// §4.13: "decouples UI smoothness from per-file completion timing").
func (o *Orchestrator) RunProgressBroadcaster(ctx context.Context, onTick func(Progress)) {
	ticker := time.NewTicker(progressBroadcastInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			onTick(o.snapshot())
		}
	}
}

func (o *Orchestrator) snapshot() Progress {
	o.session.mu.Lock()
	defer o.session.mu.Unlock()
	buckets := make(map[string]int, len(o.session.buckets))
	for k, v := range o.session.buckets {
		buckets[k] = v
	}
	o.metrics.observeProgress(o.session.FilesDone, o.session.FilesTotal)
	return Progress{
		State:      o.session.State,
		FilesTotal: o.session.FilesTotal,
		FilesDone:  o.session.FilesDone,
		Buckets:    buckets,
	}
}

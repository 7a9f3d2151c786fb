package orchestrator

import (
	"context"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInFlightSizeClampsToBounds(t *testing.T) {
	p := InFlightSize()
	assert.GreaterOrEqual(t, p, 4)
	assert.LessOrEqual(t, p, 16)
	if cpus := runtime.NumCPU(); cpus >= 4 && cpus <= 16 {
		assert.Equal(t, cpus, p)
	}
}

func TestQualityBucketThresholds(t *testing.T) {
	assert.Equal(t, "high", qualityBucket(0.81))
	assert.Equal(t, "medium", qualityBucket(0.6))
	assert.Equal(t, "low", qualityBucket(0.3))
	assert.Equal(t, "unidentified", qualityBucket(0.1))
}

func newTestOrchestrator(filesTotal int) (*Orchestrator, *Session) {
	session := NewSession(filesTotal)
	return New(session), session
}

func TestApplyTransitionsOnFirstOccurrenceOnly(t *testing.T) {
	o, session := newTestOrchestrator(1)

	o.apply(WorkflowEvent{Kind: EventBoundaryDetected})
	assert.Equal(t, StateSegmenting, session.snapshotState())

	o.apply(WorkflowEvent{Kind: EventExtractionProgress, Extractor: "chromaprint"})
	assert.Equal(t, StateFingerprinting, session.snapshotState())

	o.apply(WorkflowEvent{Kind: EventExtractionProgress, Extractor: "acoustid"})
	assert.Equal(t, StateIdentifying, session.snapshotState())

	o.apply(WorkflowEvent{Kind: EventExtractionProgress, Extractor: "musicbrainz"})
	assert.Equal(t, StateIdentifying, session.snapshotState(), "second identifying-stage event must not re-fire")

	o.apply(WorkflowEvent{Kind: EventExtractionProgress, Extractor: "audio_derived"})
	assert.Equal(t, StateAnalyzing, session.snapshotState())

	o.apply(WorkflowEvent{Kind: EventExtractionProgress, Extractor: "feature_extractor"})
	assert.Equal(t, StateFlavoring, session.snapshotState())

	// A second BoundaryDetected (e.g. from a later file) must not revert
	// the session back to Segmenting once later phases are reached.
	o.apply(WorkflowEvent{Kind: EventBoundaryDetected})
	assert.Equal(t, StateFlavoring, session.snapshotState())
}

func TestApplyBucketsPassageCompletedEvents(t *testing.T) {
	o, session := newTestOrchestrator(4)

	o.apply(WorkflowEvent{Kind: EventPassageCompleted, QualityScore: 0.95})
	o.apply(WorkflowEvent{Kind: EventPassageCompleted, QualityScore: 0.6})
	o.apply(WorkflowEvent{Kind: EventPassageCompleted, QualityScore: 0.25})
	o.apply(WorkflowEvent{Kind: EventPassageCompleted, QualityScore: 0.0})

	snap := o.snapshot()
	assert.Equal(t, 1, snap.Buckets["high"])
	assert.Equal(t, 1, snap.Buckets["medium"])
	assert.Equal(t, 1, snap.Buckets["low"])
	assert.Equal(t, 1, snap.Buckets["unidentified"])
}

func TestPublishDoesNotBlockWhenChannelIsFull(t *testing.T) {
	session := NewSession(1)
	o := New(session)
	o.events = make(chan WorkflowEvent, 1)

	o.Publish(WorkflowEvent{Kind: EventBoundaryDetected})
	done := make(chan struct{})
	go func() {
		o.Publish(WorkflowEvent{Kind: EventBoundaryDetected})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a full channel instead of dropping")
	}
}

func TestRunEventListenerAppliesPublishedEvents(t *testing.T) {
	o, session := newTestOrchestrator(1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go o.RunEventListener(ctx)
	o.Publish(WorkflowEvent{Kind: EventBoundaryDetected})

	require.Eventually(t, func() bool {
		return session.snapshotState() == StateSegmenting
	}, time.Second, 10*time.Millisecond)
}

func TestRunProgressBroadcasterFiresOnInterval(t *testing.T) {
	o, _ := newTestOrchestrator(10)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ticks := make(chan Progress, 4)
	go o.RunProgressBroadcaster(ctx, func(p Progress) {
		select {
		case ticks <- p:
		default:
		}
	})

	select {
	case p := <-ticks:
		assert.Equal(t, 10, p.FilesTotal)
	case <-time.After(2 * time.Second):
		t.Fatal("progress broadcaster never fired")
	}
}

func TestRunCancelsWithinFiveSeconds(t *testing.T) {
	session := NewSession(50)
	files := make(chan string, 50)
	for i := 0; i < 50; i++ {
		files <- "file.flac"
	}
	close(files)

	started := make(chan struct{})
	var startOnce sync.Once
	process := func(ctx context.Context, path string) error {
		startOnce.Do(func() { close(started) })
		select {
		case <-ctx.Done():
		case <-time.After(time.Second):
		}
		return nil
	}

	done := make(chan error, 1)
	go func() {
		done <- Run(context.Background(), session, files, process)
	}()

	<-started
	start := time.Now()
	session.Cancel()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return within the 5s cancellation guarantee")
	}
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Equal(t, StateCancelled, session.snapshotState())
}

package orchestrator

import (
	"context"
	"time"

	"github.com/wkmp/core/internal/wklog"
	"golang.org/x/sync/errgroup"
)

// ProcessFunc processes one file; implementations should check
// ctx.Done() between passages when feasible (spec §4.13 cancellation:
// "checks the flag between files and between passages when
// feasible").
type ProcessFunc func(ctx context.Context, filePath string) error

// Run drives files through process with an in-flight set bounded to
// InFlightSize(): as soon as one file's future completes, the next is
// submitted (spec §4.13 scheduling model). Cancellation is cooperative
// via session.Cancel(): the loop stops submitting new files within one
// dispatch iteration and returns once in-flight work drains, bounding
// total cancellation latency (spec §8 invariant 8: Cancelled within
// 5s).
func Run(ctx context.Context, session *Session, files <-chan string, process ProcessFunc) error {
	logger := wklog.ForService("orchestrator")
	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()
	go func() {
		select {
		case <-session.CancelledChan():
			cancelRun()
		case <-runCtx.Done():
		}
	}()
	g, gCtx := errgroup.WithContext(runCtx)
	g.SetLimit(InFlightSize())

	for path := range files {
		if session.Cancelled() {
			break
		}
		path := path
		g.Go(func() error {
			if session.Cancelled() {
				return nil
			}
			if err := process(gCtx, path); err != nil {
				logger.Warn("file processing failed, continuing session", "path", path, "error", err)
			}
			session.fileCompleted()
			return nil
		})
	}

	err := g.Wait()
	if session.Cancelled() {
		session.setState(StateCancelled)
		return nil
	}
	if err != nil {
		session.setState(StateFailed)
		return err
	}
	session.setState(StateCompleted)
	return nil
}

// AwaitCancellation blocks until Cancel is called on session, ctx is
// done, or 5s pass, and reports true only when Cancel was called within
// those 5s. It does not wait for Run to reach StateCancelled. Intended
// for tests and operational health checks, not the hot path.
func AwaitCancellation(ctx context.Context, session *Session) bool {
	deadline := 5 * time.Second
	timer := time.NewTimer(deadline)
	defer timer.Stop()
	select {
	case <-session.CancelledChan():
		return true
	case <-timer.C:
		return false
	case <-ctx.Done():
		return false
	}
}

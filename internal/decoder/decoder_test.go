package decoder

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wkmp/core/internal/bufferstore"
	"github.com/wkmp/core/internal/tick"
	"go.uber.org/goleak"
)

type fakeCodec struct {
	frameCount int
}

func (f *fakeCodec) Decode(ctx context.Context, path string, sink func([]float32) bool) error {
	frames := make([]float32, 2)
	for i := 0; i < f.frameCount; i++ {
		frames[0] = float32(i)
		frames[1] = float32(-i)
		if !sink(frames) {
			return nil
		}
	}
	return nil
}

func newTestFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "a.wav")
	require.NoError(t, os.WriteFile(path, []byte("dummy"), 0o644))
	return path
}

func TestPoolDecodesAndMarksBufferReady(t *testing.T) {
	store := bufferstore.New(bufferstore.Config{})
	codecs := map[Format]Codec{FormatWAV: &fakeCodec{frameCount: 100}}
	sniff := func(string) (Format, error) { return FormatWAV, nil }

	pool := NewPool(store, sniff, codecs, 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pool.Start(ctx)
	defer pool.Stop()

	passageID := uuid.New()
	path := newTestFile(t)
	pool.Submit(&Request{
		PassageID: passageID,
		FilePath:  path,
		StartTick: 0,
		EndTick:   1000,
		Priority:  PriorityImmediate,
		Mode:      bufferstore.ModeFull,
	})

	require.Eventually(t, func() bool {
		b, ok := store.Get(passageID)
		return ok && b.Status() == bufferstore.StatusReady
	}, 2*time.Second, 10*time.Millisecond)
}

func TestPoolSkipsSamplesBeforeStartTick(t *testing.T) {
	store := bufferstore.New(bufferstore.Config{})
	codecs := map[Format]Codec{FormatWAV: &fakeCodec{frameCount: 50}}
	sniff := func(string) (Format, error) { return FormatWAV, nil }

	pool := NewPool(store, sniff, codecs, 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pool.Start(ctx)
	defer pool.Stop()

	passageID := uuid.New()
	path := newTestFile(t)
	pool.Submit(&Request{
		PassageID: passageID,
		FilePath:  path,
		StartTick: tick.FramesToTicks(10, 44100),
		EndTick:   1 << 30,
		Priority:  PriorityImmediate,
		Mode:      bufferstore.ModeFull,
	})

	require.Eventually(t, func() bool {
		b, ok := store.Get(passageID)
		return ok && b.Status() == bufferstore.StatusReady
	}, 2*time.Second, 10*time.Millisecond)

	b, _ := store.Get(passageID)
	out := make([]float32, 2)
	require.True(t, b.ReadFrame(out))
	assert.Equal(t, float32(10), out[0])
}

// TestPoolStopLeavesNoWorkerGoroutines guards against a leaked worker:
// Stop must return only once every runWorker goroutine has observed
// the closed flag and exited dequeue's condvar wait.
func TestPoolStopLeavesNoWorkerGoroutines(t *testing.T) {
	defer goleak.VerifyNone(t,
		goleak.IgnoreTopFunction("testing.(*T).Run"),
		goleak.IgnoreTopFunction("runtime.gopark"),
	)

	store := bufferstore.New(bufferstore.Config{})
	codecs := map[Format]Codec{FormatWAV: &fakeCodec{frameCount: 10}}
	sniff := func(string) (Format, error) { return FormatWAV, nil }

	pool := NewPool(store, sniff, codecs, 4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pool.Start(ctx)
	pool.Stop()
}

func TestUnsupportedFormatFails(t *testing.T) {
	store := bufferstore.New(bufferstore.Config{})
	codecs := map[Format]Codec{}
	sniff := func(string) (Format, error) { return FormatOther, nil }

	pool := NewPool(store, sniff, codecs, 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pool.Start(ctx)
	defer pool.Stop()

	passageID := uuid.New()
	path := newTestFile(t)
	pool.Submit(&Request{PassageID: passageID, FilePath: path, Priority: PriorityImmediate, Mode: bufferstore.ModeFull})

	time.Sleep(50 * time.Millisecond)
	// the pool never allocates a buffer for a format it can't decode
	_, ok := store.Get(passageID)
	assert.False(t, ok)
}

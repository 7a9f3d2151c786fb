package ingest

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wkmp/core/internal/boundary"
	"github.com/wkmp/core/internal/decoder"
	"github.com/wkmp/core/internal/extract"
	"github.com/wkmp/core/internal/fusion"
	"github.com/wkmp/core/internal/storage"
)

func openTestStore(t *testing.T) *storage.Store {
	t.Helper()
	s, err := storage.Open(storage.Config{Path: filepath.Join(t.TempDir(), "wkmp-ingest-test.db")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// writeWAVStub writes a real RIFF/WAVE header (so sniff.Detect
// classifies it as FormatWAV) with some arbitrary trailing bytes; the
// stub codec below ignores the bytes and produces fixed PCM instead of
// actually parsing them.
func writeWAVStub(t *testing.T, path string, trailing int) {
	t.Helper()
	header := []byte("RIFF\x00\x00\x00\x00WAVEfmt ")
	buf := append(header, make([]byte, trailing)...)
	require.NoError(t, os.WriteFile(path, buf, 0o644))
}

// stubCodec produces a fixed amount of silence-free PCM, independent
// of the file's actual bytes, so boundary.Detect reliably falls back
// to a single whole-file passage (no qualifying silence run).
type stubCodec struct {
	frames int
}

func (c stubCodec) Decode(ctx context.Context, path string, sink func([]float32) bool) error {
	pcm := make([]float32, c.frames*2)
	for i := range pcm {
		pcm[i] = 0.5
	}
	sink(pcm)
	return nil
}

func testDeps(t *testing.T, store *storage.Store) Deps {
	return Deps{
		Codecs:     map[decoder.Format]decoder.Codec{decoder.FormatWAV: stubCodec{frames: 44100}},
		Store:      store,
		Extractors: []extract.Extractor{extract.TagExtractor{}, extract.AudioDerivedExtractor{}},
		Weights:    fusion.DefaultSourceWeights,
	}
}

func TestProcessFileWritesPassageOnFirstRun(t *testing.T) {
	store := openTestStore(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "track.wav")
	writeWAVStub(t, path, 64)

	deps := testDeps(t, store)
	process := NewProcessFunc(deps)

	require.NoError(t, process(context.Background(), path))

	fileID, found, err := store.FindFileID(context.Background(), path)
	require.NoError(t, err)
	require.True(t, found)
	assert.NotEmpty(t, fileID)
}

func TestProcessFileSkipsUnchangedOnSecondRun(t *testing.T) {
	store := openTestStore(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "track.wav")
	writeWAVStub(t, path, 64)

	deps := testDeps(t, store)
	process := NewProcessFunc(deps)

	require.NoError(t, process(context.Background(), path))
	firstID, _, err := store.FindFileID(context.Background(), path)
	require.NoError(t, err)

	// A second run against the same unmodified file must short-circuit
	// on the path+mtime+hash match rather than re-upsert or re-segment.
	require.NoError(t, process(context.Background(), path))
	secondID, _, err := store.FindFileID(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, firstID, secondID)
}

func TestProgressTagsMapsChromaprintToBothSubStages(t *testing.T) {
	assert.ElementsMatch(t, []string{"chromaprint", "acoustid"}, progressTags(extract.SourceChromaprint))
	assert.Equal(t, []string{"musicbrainz"}, progressTags(extract.SourceMusicBrainz))
	assert.Equal(t, []string{"audio_derived"}, progressTags(extract.SourceAudioDerived))
	assert.Equal(t, []string{"feature_extractor"}, progressTags(extract.SourceFeatureExtractor))
	assert.Nil(t, progressTags(extract.SourceGenreMap))
}

func TestBoundaryDetectFallsBackToWholeFile(t *testing.T) {
	// Sanity check on the fixture assumption the two process tests
	// rely on: uniform non-silent PCM produces exactly one boundary.
	pcm := make([]float32, 44100*2)
	for i := range pcm {
		pcm[i] = 0.5
	}
	bounds := boundary.Detect(pcm, 44100, boundary.Config{})
	require.Len(t, bounds, 1)
	assert.Equal(t, 0, int(bounds[0].StartTick))
}

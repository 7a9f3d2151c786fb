package scanner

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScanFindsAudioFilesByMagicBytes(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.flac"), []byte("fLaC\x00\x00\x00\x22"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("hello"), 0o644))

	s := New(Config{Root: dir})
	found, err := s.Scan(context.Background(), nil)
	require.NoError(t, err)

	var results []Found
	for f := range found {
		results = append(results, f)
	}
	require.Len(t, results, 1)
	assert.Contains(t, results[0].CanonicalPath, "a.flac")
}

func TestScanRejectsMissingRoot(t *testing.T) {
	s := New(Config{Root: "/nonexistent/path/xyz"})
	_, err := s.Scan(context.Background(), nil)
	assert.Error(t, err)
}

func TestScanKeepsDistinctFilesWithSameContent(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "sub")
	require.NoError(t, os.Mkdir(sub, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.flac"), []byte("fLaC"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(sub, "b.flac"), []byte("fLaC"), 0o644))

	s := New(Config{Root: dir})
	found, err := s.Scan(context.Background(), nil)
	require.NoError(t, err)

	count := 0
	for range found {
		count++
	}
	assert.Equal(t, 2, count)
}

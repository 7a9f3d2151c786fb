package sniff

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wkmp/core/internal/decoder"
)

func writeHeader(t *testing.T, name string, header []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, header, 0o644))
	return path
}

func TestDetectFLAC(t *testing.T) {
	path := writeHeader(t, "a.bin", []byte("fLaC\x00\x00\x00\x22"))
	f, err := Detect(path)
	require.NoError(t, err)
	assert.Equal(t, decoder.FormatFLAC, f)
}

func TestDetectWAV(t *testing.T) {
	header := append([]byte("RIFF\x24\x00\x00\x00"), []byte("WAVEfmt ")...)
	path := writeHeader(t, "b.bin", header)
	f, err := Detect(path)
	require.NoError(t, err)
	assert.Equal(t, decoder.FormatWAV, f)
}

func TestDetectOgg(t *testing.T) {
	path := writeHeader(t, "c.bin", []byte("OggS\x00\x02"))
	f, err := Detect(path)
	require.NoError(t, err)
	assert.Equal(t, decoder.FormatOgg, f)
}

func TestDetectUnknownIsOther(t *testing.T) {
	path := writeHeader(t, "d.bin", []byte("not-audio"))
	f, err := Detect(path)
	require.NoError(t, err)
	assert.Equal(t, decoder.FormatOther, f)
}

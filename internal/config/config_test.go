package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	s, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 44100, s.Audio.SampleRate)
	assert.Equal(t, 15, s.Playback.PrerollSeconds)
	assert.Equal(t, "Linear", s.Playback.CrossfadeDefaultCurve)
	assert.Equal(t, 100, s.Ingest.BatchSize)
	assert.InDelta(t, 1.0, s.Fusion.SourceWeights["musicbrainz"], 1e-9)
	assert.InDelta(t, 0.5, s.Fusion.IdentityConfidenceFloor, 1e-9)
}

func TestGetReturnsLoaded(t *testing.T) {
	s, err := Load("")
	require.NoError(t, err)
	assert.Same(t, s, Get())
}

func TestLoadOverrideFile(t *testing.T) {
	path := t.TempDir() + "/config.yaml"
	require.NoError(t, os.WriteFile(path, []byte("audio:\n  samplerate: 48000\n"), 0o644))

	s, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 48000, s.Audio.SampleRate)
}

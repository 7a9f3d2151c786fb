package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/wkmp/core/internal/config"
	"github.com/wkmp/core/internal/extract"
)

func TestNewExtractorSetIncludesAllSixSources(t *testing.T) {
	cfg := &config.Settings{}
	cfg.Ingest.Extractors.MusicBrainz.UserAgent = "wkmp-test/1.0"

	extractors := NewExtractorSet(cfg)

	sources := make(map[extract.Source]bool, len(extractors))
	for _, ex := range extractors {
		sources[ex.Source()] = true
	}

	assert.True(t, sources[extract.SourceTag])
	assert.True(t, sources[extract.SourceAudioDerived])
	assert.True(t, sources[extract.SourceGenreMap])
	assert.True(t, sources[extract.SourceFeatureExtractor])
	assert.True(t, sources[extract.SourceChromaprint])
	assert.True(t, sources[extract.SourceMusicBrainz])
	assert.Len(t, extractors, 6)
}

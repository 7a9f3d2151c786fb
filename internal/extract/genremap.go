package extract

import (
	"context"
	"strings"
)

// genrePriors is a static, last-resort mapping from a lowercased genre
// tag hint to a flavor prior. It is deliberately coarse: this source
// only fires when nothing richer (tag, musicbrainz, audio_derived,
// feature_extractor) has supplied a given characteristic, and its
// configured source weight should be the lowest of the six (spec
// §4.9, §6 weighted flavor synthesis).
var genrePriors = map[string]map[string]float64{
	"ambient":     {"energy": 0.15, "brightness": 0.4, "percussiveness": 0.05, "valence": 0.5},
	"classical":   {"energy": 0.3, "brightness": 0.5, "percussiveness": 0.1, "valence": 0.55},
	"electronic":  {"energy": 0.7, "brightness": 0.6, "percussiveness": 0.6, "valence": 0.6},
	"jazz":        {"energy": 0.4, "brightness": 0.55, "percussiveness": 0.35, "valence": 0.6},
	"metal":       {"energy": 0.95, "brightness": 0.5, "percussiveness": 0.85, "valence": 0.4},
	"pop":         {"energy": 0.6, "brightness": 0.65, "percussiveness": 0.5, "valence": 0.7},
	"rock":        {"energy": 0.75, "brightness": 0.55, "percussiveness": 0.65, "valence": 0.55},
	"hip hop":     {"energy": 0.65, "brightness": 0.45, "percussiveness": 0.7, "valence": 0.55},
	"folk":        {"energy": 0.35, "brightness": 0.5, "percussiveness": 0.2, "valence": 0.55},
}

// GenreMapExtractor is the last-resort sync extractor: no I/O, no
// decoding, just a table lookup keyed by a genre tag hint supplied by
// an earlier extraction stage (spec §4.9: "genre_map | sync | none").
type GenreMapExtractor struct{}

func (GenreMapExtractor) Source() Source { return SourceGenreMap }

func (GenreMapExtractor) Extract(ctx context.Context, in PassageInput) Result {
	if in.GenreHint == "" {
		return Result{Source: SourceGenreMap}
	}
	prior, ok := genrePriors[strings.ToLower(strings.TrimSpace(in.GenreHint))]
	if !ok {
		return Result{Source: SourceGenreMap}
	}
	flavor := make(map[string]float64, len(prior))
	for k, v := range prior {
		flavor[k] = v
	}
	return Result{Source: SourceGenreMap, Flavor: flavor}
}

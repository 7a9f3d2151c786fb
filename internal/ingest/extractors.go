// Package ingest wires the Ingest Pipeline's independently-built
// packages (scanner, scanextract, boundary, extract, fusion, validate,
// storage, orchestrator) into one configured Extractor Set and
// workflow session, the way the teacher's cmd/ subcommands wire
// internal/analysis components from conf.Settings.
package ingest

import (
	"time"

	patrickmn_cache "github.com/patrickmn/go-cache"
	"github.com/wkmp/core/internal/config"
	"github.com/wkmp/core/internal/extract"
	"github.com/wkmp/core/internal/httpclient"
	"github.com/wkmp/core/internal/ratelimit"
)

// musicBrainzRPS is the courtesy rate MusicBrainz's API documents for
// anonymous clients (spec §4.9, §5): 1 request/second, burst 1.
const musicBrainzRPS = 1.0

// acoustIDRPS matches AcoustID's documented per-key rate limit.
const acoustIDRPS = 3.0

// mbidCacheTTL bounds how long a resolved MusicBrainz lookup is
// reused across passages sharing a candidate MBID.
const mbidCacheTTL = 30 * time.Minute

// NewExtractorSet builds the six-source Extractor Set from cfg,
// sharing one HTTP client and one rate limiter per host across the
// network-bound extractors (spec §4.9, §5).
func NewExtractorSet(cfg *config.Settings) []extract.Extractor {
	httpClient := httpclient.New(&httpclient.Config{
		UserAgent: cfg.Ingest.Extractors.MusicBrainz.UserAgent,
	}).StdClient()

	limiter := ratelimit.NewHostLimiter(musicBrainzRPS, 1)
	mbidCache := patrickmn_cache.New(mbidCacheTTL, mbidCacheTTL)

	return []extract.Extractor{
		extract.TagExtractor{},
		extract.AudioDerivedExtractor{},
		extract.GenreMapExtractor{},
		extract.FeatureExtractor{
			BinaryPath: cfg.Ingest.Extractors.FeatureExtractor.BinaryPath,
			Timeout:    cfg.Ingest.Extractors.FeatureExtractor.Timeout,
			Required:   cfg.Ingest.RequiredFeatureExtractor,
		},
		extract.ChromaprintExtractor{
			FpcalcPath: cfg.Ingest.Extractors.Chromaprint.FpcalcPath,
			APIKey:     cfg.Ingest.Extractors.AcoustID.APIKey,
			Client:     httpClient,
			Limiter:    ratelimit.NewHostLimiter(acoustIDRPS, 1),
		},
		extract.MusicBrainzExtractor{
			UserAgent: cfg.Ingest.Extractors.MusicBrainz.UserAgent,
			Client:    httpClient,
			Limiter:   limiter,
			Cache:     mbidCache,
		},
	}
}

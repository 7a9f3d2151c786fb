package extract

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	patrickmn_cache "github.com/patrickmn/go-cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wkmp/core/internal/ratelimit"
)

type fakeExtractor struct {
	source Source
	delay  time.Duration
	result Result
}

func (f fakeExtractor) Source() Source { return f.source }

func (f fakeExtractor) Extract(ctx context.Context, in PassageInput) Result {
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	return f.result
}

func TestRunAllCollectsEveryExtractorResult(t *testing.T) {
	extractors := []Extractor{
		fakeExtractor{source: SourceTag, delay: 20 * time.Millisecond, result: Result{Source: SourceTag, Metadata: &Metadata{Title: "A"}}},
		fakeExtractor{source: SourceAudioDerived, result: Result{Source: SourceAudioDerived, Flavor: map[string]float64{"energy": 0.5}}},
		fakeExtractor{source: SourceGenreMap, result: Result{Source: SourceGenreMap}},
	}

	start := time.Now()
	results := RunAll(context.Background(), extractors, PassageInput{})
	elapsed := time.Since(start)

	require.Len(t, results, 3)
	assert.Less(t, elapsed, 100*time.Millisecond, "RunAll should fan out concurrently, not serialize the slow extractor")

	bySource := map[Source]Result{}
	for _, r := range results {
		bySource[r.Source] = r
	}
	assert.Equal(t, "A", bySource[SourceTag].Metadata.Title)
	assert.Equal(t, 0.5, bySource[SourceAudioDerived].Flavor["energy"])
}

func TestRunAllIsolatesPerExtractorErrors(t *testing.T) {
	extractors := []Extractor{
		fakeExtractor{source: SourceTag, result: Result{Source: SourceTag, Error: errors.New("boom")}},
		fakeExtractor{source: SourceAudioDerived, result: Result{Source: SourceAudioDerived, Flavor: map[string]float64{"energy": 0.9}}},
	}

	results := RunAll(context.Background(), extractors, PassageInput{})

	var sawError, sawFlavor bool
	for _, r := range results {
		if r.Source == SourceTag {
			sawError = r.Error != nil
		}
		if r.Source == SourceAudioDerived {
			sawFlavor = r.Flavor["energy"] == 0.9
		}
	}
	assert.True(t, sawError, "one extractor's error must not suppress the other's result")
	assert.True(t, sawFlavor)
}

func TestGenreMapExtractorFallsBackWithoutHint(t *testing.T) {
	g := GenreMapExtractor{}
	res := g.Extract(context.Background(), PassageInput{})
	assert.Nil(t, res.Flavor)
}

func TestGenreMapExtractorLooksUpKnownGenre(t *testing.T) {
	g := GenreMapExtractor{}
	res := g.Extract(context.Background(), PassageInput{GenreHint: "Rock"})
	require.NotNil(t, res.Flavor)
	assert.InDelta(t, 0.75, res.Flavor["energy"], 0.001)
}

func TestGenreMapExtractorUnknownGenreYieldsNoFlavor(t *testing.T) {
	g := GenreMapExtractor{}
	res := g.Extract(context.Background(), PassageInput{GenreHint: "polka-fusion-nonsense"})
	assert.Nil(t, res.Flavor)
}

func TestMusicBrainzExtractorSkipsWithoutCandidateMBID(t *testing.T) {
	m := MusicBrainzExtractor{}
	res := m.Extract(context.Background(), PassageInput{})
	assert.Nil(t, res.Identity)
	assert.Nil(t, res.Metadata)
}

func TestMusicBrainzExtractorParsesAndCachesResponse(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	mbid := "b9a24f0c-8f0e-4e0a-9f0a-6c2e8b6f6f0a"
	httpmock.RegisterResponder("GET", "https://musicbrainz.org/ws/2/recording/"+mbid+"?fmt=json&inc=artist-credits+releases",
		httpmock.NewStringResponder(200, `{
			"title": "Test Recording",
			"artist-credit": [{"name": "Test Artist"}],
			"releases": [{"title": "Test Album"}]
		}`))

	m := MusicBrainzExtractor{
		UserAgent:     "wkmp-test/1.0",
		Client:        http.DefaultClient,
		Limiter:       ratelimit.NewHostLimiter(1000, 1),
		Cache:         patrickmn_cache.New(time.Minute, time.Minute),
		CandidateMBID: mbid,
	}

	res := m.Extract(context.Background(), PassageInput{})
	require.Nil(t, res.Error)
	require.NotNil(t, res.Metadata)
	assert.Equal(t, "Test Recording", res.Metadata.Title)
	assert.Equal(t, "Test Artist", res.Metadata.Artist)
	assert.Equal(t, "Test Album", res.Metadata.Album)
	assert.Equal(t, mbid, res.Identity.MBID)

	assert.Equal(t, 1, httpmock.GetTotalCallCount())
	res2 := m.Extract(context.Background(), PassageInput{})
	assert.Equal(t, "Test Recording", res2.Metadata.Title)
	assert.Equal(t, 1, httpmock.GetTotalCallCount(), "second call should be served from cache")
}

func TestValidateAPIKeyAcceptsCodeThree(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder("POST", "https://api.acoustid.org/v2/lookup",
		httpmock.NewStringResponder(200, `{"status":"error","error":{"code":3,"message":"invalid fingerprint"}}`))

	ok, err := ValidateAPIKey(context.Background(), http.DefaultClient, "good-key")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestValidateAPIKeyRejectsOtherCodes(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder("POST", "https://api.acoustid.org/v2/lookup",
		httpmock.NewStringResponder(200, `{"status":"error","error":{"code":5,"message":"invalid api key"}}`))

	ok, err := ValidateAPIKey(context.Background(), http.DefaultClient, "bad-key")
	require.NoError(t, err)
	assert.False(t, ok)
}

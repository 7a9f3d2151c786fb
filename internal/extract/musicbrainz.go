package extract

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/antonholmquist/jason"
	patrickmn_cache "github.com/patrickmn/go-cache"
	"github.com/wkmp/core/internal/ratelimit"
	"github.com/wkmp/core/internal/wkerrors"
)

const musicBrainzHost = "musicbrainz.org"

// MusicBrainzExtractor resolves recording/release/artist metadata by
// MBID, honoring the 1 req/s global rate limit and retrying
// transient failures with exponential backoff (spec §4.9, §5). Client
// is typically built via httpclient.New(...).StdClient() in
// production wiring, so MusicBrainz lookups share the tuned
// connection-pool settings every extractor HTTP call uses; tests may
// substitute http.DefaultClient with httpmock active.
type MusicBrainzExtractor struct {
	UserAgent string
	Client    *http.Client
	Limiter   *ratelimit.HostLimiter
	Cache     *patrickmn_cache.Cache

	// CandidateMBID is supplied by the orchestration layer once
	// chromaprint/AcoustID has produced a candidate to resolve; without
	// one, MusicBrainz has nothing to look up for this passage.
	CandidateMBID string
}

func (MusicBrainzExtractor) Source() Source { return SourceMusicBrainz }

func (m MusicBrainzExtractor) Extract(ctx context.Context, in PassageInput) Result {
	if m.CandidateMBID == "" {
		return Result{Source: SourceMusicBrainz}
	}

	if cached, ok := m.Cache.Get(m.CandidateMBID); ok {
		return cached.(Result)
	}

	result := m.lookupWithRetry(ctx, m.CandidateMBID)
	if result.Error == nil {
		m.Cache.Set(m.CandidateMBID, result, patrickmn_cache.DefaultExpiration)
	}
	return result
}

func (m MusicBrainzExtractor) lookupWithRetry(ctx context.Context, mbid string) Result {
	backoffs := []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second}
	var lastErr error
	for attempt := 0; attempt <= len(backoffs); attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(backoffs[attempt-1]):
			case <-ctx.Done():
				return Result{Source: SourceMusicBrainz, Error: ctx.Err()}
			}
		}

		if err := m.Limiter.Wait(ctx, musicBrainzHost); err != nil {
			return Result{Source: SourceMusicBrainz, Error: err}
		}

		obj, status, err := m.query(ctx, mbid)
		if err == nil {
			return m.toResult(obj)
		}
		lastErr = err
		var netErr net.Error
		timedOut := errors.As(err, &netErr) && netErr.Timeout()
		if status != http.StatusTooManyRequests && status != http.StatusServiceUnavailable && !timedOut {
			break // non-retryable
		}
	}
	return Result{Source: SourceMusicBrainz, Error: wkerrors.New(lastErr).
		Component("extract").Category(wkerrors.CategoryNetwork).Context("source", "musicbrainz").Build()}
}

func (m MusicBrainzExtractor) query(ctx context.Context, mbid string) (*jason.Object, int, error) {
	url := fmt.Sprintf("https://musicbrainz.org/ws/2/recording/%s?fmt=json&inc=artist-credits+releases", mbid)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("User-Agent", m.UserAgent)

	client := m.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, resp.StatusCode, fmt.Errorf("musicbrainz returned status %d", resp.StatusCode)
	}

	var raw json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, resp.StatusCode, err
	}
	obj, err := jason.NewObjectFromBytes(raw)
	return obj, resp.StatusCode, err
}

func (m MusicBrainzExtractor) toResult(obj *jason.Object) Result {
	title, _ := obj.GetString("title")
	md := &Metadata{Title: title, TitleConfidence: 0.95}

	if artists, err := obj.GetObjectArray("artist-credit"); err == nil && len(artists) > 0 {
		if name, err := artists[0].GetString("name"); err == nil {
			md.Artist = name
			md.ArtistConfidence = 0.95
		}
	}
	if releases, err := obj.GetObjectArray("releases"); err == nil && len(releases) > 0 {
		if title, err := releases[0].GetString("title"); err == nil {
			md.Album = title
			md.AlbumConfidence = 0.9
		}
	}

	return Result{
		Source:   SourceMusicBrainz,
		Identity: &Identity{MBID: m.CandidateMBID, SourceConfidence: 0.95},
		Metadata: md,
	}
}

package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os/exec"
	"strconv"
	"strings"

	"github.com/antonholmquist/jason"
	"github.com/wkmp/core/internal/ratelimit"
	"github.com/wkmp/core/internal/wkerrors"
)

const acoustIDHost = "api.acoustid.org"

// acoustIDInvalidFingerprintCode is the error.code AcoustID returns for
// "invalid fingerprint" — the response it gives for ANY fingerprint
// (even a deliberately malformed one) when the API key itself is
// accepted. A rejected key instead returns code 5 or 6. ValidateAPIKey
// exploits this to pre-flight-check a key without a real fingerprint
// (spec §6).
const acoustIDInvalidFingerprintCode = 3

// ChromaprintExtractor fingerprints audio via the fpcalc CLI (from
// Chromaprint) and resolves it to MBID candidates through the AcoustID
// lookup API. Skipped entirely when APIKey is empty; a non-empty key is
// used as given, without a ValidateAPIKey check.
type ChromaprintExtractor struct {
	FpcalcPath string
	APIKey     string
	Client     *http.Client
	Limiter    *ratelimit.HostLimiter
}

func (ChromaprintExtractor) Source() Source { return SourceChromaprint }

func (c ChromaprintExtractor) Extract(ctx context.Context, in PassageInput) Result {
	if c.APIKey == "" {
		return Result{Source: SourceChromaprint}
	}

	fp, durationSec, err := c.fingerprint(ctx, in.FilePath)
	if err != nil {
		return Result{Source: SourceChromaprint, Error: wkerrors.New(err).
			Component("extract").Category(wkerrors.CategoryExtract).Context("stage", "fingerprint").Build()}
	}

	if err := c.Limiter.Wait(ctx, acoustIDHost); err != nil {
		return Result{Source: SourceChromaprint, Error: err}
	}

	candidates, err := c.lookup(ctx, fp, durationSec)
	if err != nil {
		return Result{Source: SourceChromaprint, Error: wkerrors.New(err).
			Component("extract").Category(wkerrors.CategoryNetwork).Context("stage", "lookup").Build()}
	}
	if len(candidates) == 0 {
		return Result{Source: SourceChromaprint}
	}

	best := candidates[0]
	return Result{
		Source:   SourceChromaprint,
		Identity: &Identity{MBID: best.mbid, SourceConfidence: best.score},
	}
}

// fingerprint runs "fpcalc -json" and reads the fingerprint and
// duration fields of its JSON output.
func (c ChromaprintExtractor) fingerprint(ctx context.Context, path string) (string, int, error) {
	fpcalc := c.FpcalcPath
	if fpcalc == "" {
		fpcalc = "fpcalc"
	}
	out, err := exec.CommandContext(ctx, fpcalc, "-json", path).Output()
	if err != nil {
		return "", 0, err
	}
	obj, err := jason.NewObjectFromBytes(out)
	if err != nil {
		return "", 0, err
	}
	fp, err := obj.GetString("fingerprint")
	if err != nil {
		return "", 0, err
	}
	duration, err := obj.GetFloat64("duration")
	if err != nil {
		return "", 0, err
	}
	return fp, int(duration), nil
}

type acoustIDCandidate struct {
	mbid  string
	score float64
}

func (c ChromaprintExtractor) lookup(ctx context.Context, fingerprint string, durationSec int) ([]acoustIDCandidate, error) {
	form := url.Values{
		"client":      {c.APIKey},
		"duration":    {strconv.Itoa(durationSec)},
		"fingerprint": {fingerprint},
		"meta":        {"recordings"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "https://api.acoustid.org/v2/lookup", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	client := c.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var raw json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, err
	}
	obj, err := jason.NewObjectFromBytes(raw)
	if err != nil {
		return nil, err
	}

	status, _ := obj.GetString("status")
	if status != "ok" {
		code, msg := acoustIDErrorCode(obj)
		return nil, fmt.Errorf("acoustid lookup rejected (code %d): %s", code, msg)
	}

	results, err := obj.GetObjectArray("results")
	if err != nil {
		return nil, nil
	}
	candidates := make([]acoustIDCandidate, 0, len(results))
	for _, r := range results {
		score, _ := r.GetFloat64("score")
		recordings, err := r.GetObjectArray("recordings")
		if err != nil || len(recordings) == 0 {
			continue
		}
		mbid, err := recordings[0].GetString("id")
		if err != nil {
			continue
		}
		candidates = append(candidates, acoustIDCandidate{mbid: mbid, score: score})
	}
	return candidates, nil
}

func acoustIDErrorCode(obj *jason.Object) (int, string) {
	errObj, err := obj.GetObject("error")
	if err != nil {
		return 0, "unknown"
	}
	code, _ := errObj.GetFloat64("code")
	msg, _ := errObj.GetString("message")
	return int(code), msg
}

// ValidateAPIKey pre-flight-checks key against AcoustID using a
// deliberately malformed fingerprint, so a caller learns whether a key
// is accepted without ever sending real audio fingerprint data (spec
// §6, Scenario invariant 4: accepted keys yield error.code==3,
// rejected keys yield 5 or 6).
func ValidateAPIKey(ctx context.Context, client *http.Client, key string) (bool, error) {
	form := url.Values{
		"client":      {key},
		"duration":    {"1"},
		"fingerprint": {"invalid"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "https://api.acoustid.org/v2/lookup", strings.NewReader(form.Encode()))
	if err != nil {
		return false, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	var raw json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return false, err
	}
	obj, err := jason.NewObjectFromBytes(raw)
	if err != nil {
		return false, err
	}
	status, _ := obj.GetString("status")
	if status == "ok" {
		return true, nil
	}
	code, _ := acoustIDErrorCode(obj)
	return code == acoustIDInvalidFingerprintCode, nil
}

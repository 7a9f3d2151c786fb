// Package validate implements the Validator: a fixed set of
// post-fusion consistency checks that produce a quality_score and
// Pass/Warning/Fail status without ever aborting ingest (spec §4.11).
package validate

import (
	"math"
	"strings"

	"github.com/agnivade/levenshtein"
	"github.com/wkmp/core/internal/extract"
	"github.com/wkmp/core/internal/fusion"
	"github.com/wkmp/core/internal/passage"
	"golang.org/x/text/unicode/norm"
)

const (
	// TitleSimilarityFloor is the minimum Levenshtein-normalized
	// similarity between every pair of reported titles for the title
	// check to pass.
	TitleSimilarityFloor = 0.8

	// DurationToleranceFraction is the maximum pairwise duration
	// difference, as a fraction of the longer duration, for the
	// duration check to pass.
	DurationToleranceFraction = 0.05

	// IdentityConfidenceFloor mirrors fusion.IdentityConfidenceFloor;
	// duplicated here as the Validator's own named threshold per spec
	// wording ("posterior >= 0.5 for a Pass on identity").
	IdentityConfidenceFloor = 0.5

	// FlavorCompletenessFloor is the minimum fraction of flavor
	// characteristics with evidence for a Pass on flavor.
	FlavorCompletenessFloor = 0.6
)

// Check names one of the four fixed validation checks.
type Check string

const (
	CheckTitleConsistency    Check = "title_consistency"
	CheckDurationConsistency Check = "duration_consistency"
	CheckIdentityConfidence  Check = "identity_confidence"
	CheckFlavorCompleteness  Check = "flavor_completeness"
)

// Report is the full validation outcome for one passage.
type Report struct {
	Passed       map[Check]bool
	QualityScore float64
	Status       passage.Status
}

// Validate runs all four checks against fused output plus the raw
// per-extractor results it was fused from (titles and durations are
// compared across raw results; identity and flavor are read from the
// fused Result).
func Validate(raw []extract.Result, fused fusion.Result) Report {
	passed := map[Check]bool{
		CheckTitleConsistency:    titleConsistency(raw),
		CheckDurationConsistency: durationConsistency(raw),
		CheckIdentityConfidence:  fused.Identity.Posterior >= IdentityConfidenceFloor,
		CheckFlavorCompleteness:  fused.Flavor.Completeness >= FlavorCompletenessFloor,
	}

	total := len(passed)
	passCount := 0
	for _, ok := range passed {
		if ok {
			passCount++
		}
	}
	score := float64(passCount) / float64(total)

	var status passage.Status
	switch {
	case score >= 0.8:
		status = passage.StatusPass
	case score >= 0.5:
		status = passage.StatusWarning
	default:
		status = passage.StatusFail
	}

	return Report{Passed: passed, QualityScore: score, Status: status}
}

func titleConsistency(raw []extract.Result) bool {
	var titles []string
	for _, r := range raw {
		if r.Error != nil || r.Metadata == nil || r.Metadata.Title == "" {
			continue
		}
		titles = append(titles, normalizeTitle(r.Metadata.Title))
	}
	if len(titles) < 2 {
		return true // nothing to disagree with
	}
	for i := 0; i < len(titles); i++ {
		for j := i + 1; j < len(titles); j++ {
			if similarity(titles[i], titles[j]) < TitleSimilarityFloor {
				return false
			}
		}
	}
	return true
}

func normalizeTitle(s string) string {
	return strings.ToLower(strings.TrimSpace(norm.NFC.String(s)))
}

// similarity converts Levenshtein edit distance into a normalized
// similarity in [0,1]: 1 - distance/max(len(a),len(b)).
func similarity(a, b string) float64 {
	if a == b {
		return 1.0
	}
	dist := levenshtein.ComputeDistance(a, b)
	maxLen := len(a)
	if len(b) > maxLen {
		maxLen = len(b)
	}
	if maxLen == 0 {
		return 1.0
	}
	return 1.0 - float64(dist)/float64(maxLen)
}

func durationConsistency(raw []extract.Result) bool {
	var durations []float64
	for _, r := range raw {
		if r.Error != nil || r.Duration <= 0 {
			continue
		}
		durations = append(durations, r.Duration)
	}
	if len(durations) < 2 {
		return true
	}
	for i := 0; i < len(durations); i++ {
		for j := i + 1; j < len(durations); j++ {
			longer := math.Max(durations[i], durations[j])
			diff := math.Abs(durations[i] - durations[j])
			if longer == 0 {
				continue
			}
			if diff/longer > DurationToleranceFraction {
				return false
			}
		}
	}
	return true
}

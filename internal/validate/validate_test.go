package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/wkmp/core/internal/extract"
	"github.com/wkmp/core/internal/fusion"
	"github.com/wkmp/core/internal/passage"
)

func TestValidatePassesAllChecks(t *testing.T) {
	raw := []extract.Result{
		{Source: extract.SourceTag, Metadata: &extract.Metadata{Title: "The Song"}, Duration: 200.0},
		{Source: extract.SourceMusicBrainz, Metadata: &extract.Metadata{Title: "the song"}, Duration: 202.0},
	}
	fused := fusion.Result{
		Identity: fusion.IdentityFusion{MBID: "X", Posterior: 0.9},
		Flavor:   fusion.FlavorFusion{Completeness: 0.75},
	}

	report := Validate(raw, fused)

	assert.True(t, report.Passed[CheckTitleConsistency])
	assert.True(t, report.Passed[CheckDurationConsistency])
	assert.True(t, report.Passed[CheckIdentityConfidence])
	assert.True(t, report.Passed[CheckFlavorCompleteness])
	assert.Equal(t, 1.0, report.QualityScore)
	assert.Equal(t, passage.StatusPass, report.Status)
}

func TestValidateFlagsInconsistentTitles(t *testing.T) {
	raw := []extract.Result{
		{Source: extract.SourceTag, Metadata: &extract.Metadata{Title: "Totally Different Name"}},
		{Source: extract.SourceMusicBrainz, Metadata: &extract.Metadata{Title: "The Song"}},
	}
	fused := fusion.Result{
		Identity: fusion.IdentityFusion{Posterior: 0.9},
		Flavor:   fusion.FlavorFusion{Completeness: 0.9},
	}

	report := Validate(raw, fused)

	assert.False(t, report.Passed[CheckTitleConsistency])
	assert.Less(t, report.QualityScore, 1.0)
}

func TestValidateFlagsDurationMismatch(t *testing.T) {
	raw := []extract.Result{
		{Source: extract.SourceTag, Duration: 100.0},
		{Source: extract.SourceFeatureExtractor, Duration: 150.0},
	}
	fused := fusion.Result{
		Identity: fusion.IdentityFusion{Posterior: 0.9},
		Flavor:   fusion.FlavorFusion{Completeness: 0.9},
	}

	report := Validate(raw, fused)
	assert.False(t, report.Passed[CheckDurationConsistency])
}

func TestValidateFailsBelowIdentityAndFlavorFloors(t *testing.T) {
	fused := fusion.Result{
		Identity: fusion.IdentityFusion{Posterior: 0.1},
		Flavor:   fusion.FlavorFusion{Completeness: 0.1},
	}

	report := Validate(nil, fused)

	assert.False(t, report.Passed[CheckIdentityConfidence])
	assert.False(t, report.Passed[CheckFlavorCompleteness])
	// With no raw results the title and duration checks pass trivially:
	// 2 of 4 => score 0.5 => Warning.
	assert.Equal(t, passage.StatusWarning, report.Status)
}

func TestValidateStatusBoundaries(t *testing.T) {
	// 3 of 4 pass => score 0.75 => Warning.
	fused := fusion.Result{
		Identity: fusion.IdentityFusion{Posterior: 0.9},
		Flavor:   fusion.FlavorFusion{Completeness: 0.1},
	}
	report := Validate(nil, fused)
	assert.InDelta(t, 0.75, report.QualityScore, 1e-9)
	assert.Equal(t, passage.StatusWarning, report.Status)
}

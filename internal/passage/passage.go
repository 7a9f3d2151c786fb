// Package passage defines WKMP's shared passage data model: the
// contiguous, fade-enveloped, fused-metadata unit that both the
// Playback Engine and the Ingest Pipeline operate on (spec §3).
package passage

import (
	"github.com/google/uuid"
	"github.com/wkmp/core/internal/tick"
	"github.com/wkmp/core/internal/wkerrors"
)

// Curve is a fade envelope shape.
type Curve string

const (
	CurveLinear      Curve = "Linear"
	CurveLogarithmic Curve = "Logarithmic"
	CurveExponential Curve = "Exponential"
	CurveSCurve      Curve = "SCurve"
)

// ValidCurve reports whether c is one of the four recognized curves.
func ValidCurve(c Curve) bool {
	switch c {
	case CurveLinear, CurveLogarithmic, CurveExponential, CurveSCurve:
		return true
	default:
		return false
	}
}

// Metadata holds fused identity/title metadata for a passage. Zero
// value means "not yet fused".
type Metadata struct {
	Title  string
	Artist string
	Album  string
	MBID   string // MusicBrainz recording ID, empty if unresolved
}

// Flavor is a musical-flavor vector: characteristic name to a scalar in [0,1].
type Flavor map[string]float64

// Status is a passage's validation/persistence status.
type Status string

const (
	StatusPending Status = "Pending"
	StatusPass    Status = "Pass"
	StatusWarning Status = "Warning"
	StatusFail    Status = "Fail"
)

// Passage is a contiguous, file-relative, playable sub-region with its
// own fade envelope and optional fused metadata (spec §3).
type Passage struct {
	ID     uuid.UUID
	FileID uuid.UUID
	Path   string

	StartTick  tick.Tick
	LeadInTick tick.Tick
	LeadOutTick tick.Tick
	EndTick    tick.Tick

	FadeInCurve  Curve
	FadeOutCurve Curve

	Metadata *Metadata
	Flavor   Flavor

	QualityScore float64
	Status       Status

	// SourceFileHash copies the owning file's content hash at persist
	// time, a cheap integrity check against the file being silently
	// replaced between segmentation and storage (SPEC_FULL §3.1).
	SourceFileHash string
}

// New constructs a Passage, validating the tick ordering invariant
// (spec §3, §8 invariant 1) and curve kinds.
func New(id, fileID uuid.UUID, path string, start, leadIn, leadOut, end tick.Tick, fadeIn, fadeOut Curve) (*Passage, error) {
	p := &Passage{
		ID:           id,
		FileID:       fileID,
		Path:         path,
		StartTick:    start,
		LeadInTick:   leadIn,
		LeadOutTick:  leadOut,
		EndTick:      end,
		FadeInCurve:  fadeIn,
		FadeOutCurve: fadeOut,
		Status:       StatusPending,
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// Validate checks the tick-ordering and curve invariants. A zero-length
// passage (start == end) is rejected per spec §8 boundary behaviors.
func (p *Passage) Validate() error {
	if !(p.StartTick <= p.LeadInTick && p.LeadInTick <= p.LeadOutTick && p.LeadOutTick <= p.EndTick) {
		return wkerrors.Newf("invalid passage tick ordering: start=%d leadIn=%d leadOut=%d end=%d",
			p.StartTick, p.LeadInTick, p.LeadOutTick, p.EndTick).
			Component("passage").
			Category(wkerrors.CategoryValidation).
			Build()
	}
	if p.StartTick == p.EndTick {
		return wkerrors.Newf("zero-length passage rejected").
			Component("passage").
			Category(wkerrors.CategoryValidation).
			Context("passage_id", p.ID.String()).
			Build()
	}
	if !ValidCurve(p.FadeInCurve) {
		return wkerrors.Newf("invalid fade-in curve: %q", p.FadeInCurve).
			Component("passage").
			Category(wkerrors.CategoryValidation).
			Build()
	}
	if !ValidCurve(p.FadeOutCurve) {
		return wkerrors.Newf("invalid fade-out curve: %q", p.FadeOutCurve).
			Component("passage").
			Category(wkerrors.CategoryValidation).
			Build()
	}
	return nil
}

// Duration returns the passage's end-minus-start span in ticks.
func (p *Passage) Duration() tick.Tick {
	return p.EndTick - p.StartTick
}

// LeadOutSpan returns the full-amplitude-to-end span, the region
// available for an outgoing crossfade (spec §4.4).
func (p *Passage) LeadOutSpan() tick.Tick {
	return p.EndTick - p.LeadOutTick
}

// LeadInSpan returns the start-to-full-amplitude span, the region
// available for an incoming crossfade.
func (p *Passage) LeadInSpan() tick.Tick {
	return p.LeadInTick - p.StartTick
}

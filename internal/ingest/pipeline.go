package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/wkmp/core/internal/boundary"
	"github.com/wkmp/core/internal/decoder"
	"github.com/wkmp/core/internal/extract"
	"github.com/wkmp/core/internal/fusion"
	"github.com/wkmp/core/internal/orchestrator"
	"github.com/wkmp/core/internal/passage"
	"github.com/wkmp/core/internal/scanextract"
	"github.com/wkmp/core/internal/sniff"
	"github.com/wkmp/core/internal/storage"
	"github.com/wkmp/core/internal/tick"
	"github.com/wkmp/core/internal/validate"
)

// canonicalSampleRate is the rate every passage is decoded and stored
// at, and the rate the Playback Engine's mixer assumes. The ffmpeg
// codec converts to it; the native WAV and FLAC codecs do not resample,
// so their output is treated as 44.1 kHz whatever the file's own rate.
const canonicalSampleRate = 44100

// Deps bundles everything one file's processing needs: the decoder's
// whole-file codecs (distinct from the Playback Engine's streaming
// decoder.Pool, which decodes-and-skips from a start_tick instead of
// an entire file), the fused-result writer, and the extractor set.
type Deps struct {
	Codecs      map[decoder.Format]decoder.Codec
	Store       *storage.Store
	Extractors  []extract.Extractor
	Weights     fusion.SourceWeights
	BoundaryCfg boundary.Config
	Events      *orchestrator.Orchestrator // optional; nil disables progress events
}

// NewProcessFunc returns an orchestrator.ProcessFunc closing over deps,
// suitable for orchestrator.Run.
func NewProcessFunc(deps Deps) orchestrator.ProcessFunc {
	return func(ctx context.Context, filePath string) error {
		return processFile(ctx, deps, filePath)
	}
}

func processFile(ctx context.Context, deps Deps, filePath string) error {
	info, err := os.Stat(filePath)
	if err != nil {
		return fmt.Errorf("stat %s: %w", filePath, err)
	}
	mtime := info.ModTime().Unix()
	hash, err := hashFile(filePath)
	if err != nil {
		return fmt.Errorf("hashing %s: %w", filePath, err)
	}

	// Reuse scanextract's idempotency contract (spec §8 invariant 6):
	// an unchanged path+mtime+hash match skips re-segmentation and
	// re-extraction entirely, rather than upserting zeroed metadata
	// over a row scanextract.Phase already populated.
	if _, found, err := deps.Store.FindByPathOrHash(ctx, filePath, mtime, hash); err != nil {
		return fmt.Errorf("checking existing file record for %s: %w", filePath, err)
	} else if found {
		return nil
	}

	format, err := sniff.Detect(filePath)
	if err != nil {
		return fmt.Errorf("detecting format for %s: %w", filePath, err)
	}
	codec, ok := deps.Codecs[format]
	if !ok {
		return fmt.Errorf("no codec registered for format %q (%s)", format, filePath)
	}

	pcm, err := decodeWholeFile(ctx, codec, filePath)
	if err != nil {
		return fmt.Errorf("decoding %s: %w", filePath, err)
	}

	rec := &scanextract.FileRecord{
		Path:          filePath,
		Hash:          hash,
		ModTime:       mtime,
		DurationTicks: int64(tick.FramesToTicks(len(pcm)/2, canonicalSampleRate)),
		Channels:      2,
		SampleRate:    canonicalSampleRate,
		Format:        format,
	}
	if err := deps.Store.UpsertFile(ctx, rec); err != nil {
		return fmt.Errorf("upserting file record for %s: %w", filePath, err)
	}
	fileIDStr, found, err := deps.Store.FindFileID(ctx, filePath)
	if err != nil {
		return fmt.Errorf("looking up file id for %s: %w", filePath, err)
	}
	if !found {
		return fmt.Errorf("file record for %s vanished after upsert", filePath)
	}
	fileID, err := uuid.Parse(fileIDStr)
	if err != nil {
		return fmt.Errorf("parsing file id for %s: %w", filePath, err)
	}

	boundaries := boundary.Detect(pcm, canonicalSampleRate, deps.BoundaryCfg)
	deps.publish(orchestrator.WorkflowEvent{Kind: orchestrator.EventBoundaryDetected})

	genreHint := tagGenreHint(filePath)

	fused := make([]storage.FusedPassage, 0, len(boundaries))
	for _, b := range boundaries {
		startFrame := int(tick.TicksToSamples(b.StartTick, canonicalSampleRate))
		endFrame := int(tick.TicksToSamples(b.EndTick, canonicalSampleRate))
		if endFrame > len(pcm)/2 {
			endFrame = len(pcm) / 2
		}
		segment := pcm[startFrame*2 : endFrame*2]

		in := extract.PassageInput{
			FilePath:   filePath,
			PCM:        segment,
			SampleRate: canonicalSampleRate,
			GenreHint:  genreHint,
		}
		deps.publishExtractionProgress()

		raw := extract.RunAll(ctx, deps.Extractors, in)
		fusedResult := fusion.Fuse(raw, deps.Weights)
		report := validate.Validate(raw, fusedResult)

		p, err := passage.New(uuid.New(), fileID, filePath, b.StartTick, b.StartTick, b.EndTick, b.EndTick,
			passage.CurveLinear, passage.CurveLinear)
		if err != nil {
			deps.publish(orchestrator.WorkflowEvent{Kind: orchestrator.EventPassageCompleted, QualityScore: 0})
			continue
		}
		p.SourceFileHash = hash

		fused = append(fused, storage.FusedPassage{Passage: p, Raw: raw, Fused: fusedResult, Report: report})
		deps.publish(orchestrator.WorkflowEvent{Kind: orchestrator.EventPassageCompleted, QualityScore: report.QualityScore})
	}

	return deps.Store.WriteFile(ctx, fileID.String(), fused)
}

// hashFile content-hashes path the same way scanextract.Phase does
// (sha256 of the full file), so this pipeline's idempotency check
// matches whatever row the Scanning/Extracting phase already wrote.
func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// decodeWholeFile runs codec against path and accumulates every
// produced frame; used only by the ingest pipeline, which (unlike the
// Playback Engine's decoder.Pool) needs the entire file's PCM for
// boundary detection and flavor analysis.
func decodeWholeFile(ctx context.Context, codec decoder.Codec, path string) ([]float32, error) {
	var pcm []float32
	sink := func(frames []float32) bool {
		pcm = append(pcm, frames...)
		return ctx.Err() == nil
	}
	if err := codec.Decode(ctx, path, sink); err != nil {
		return nil, err
	}
	return pcm, nil
}

// tagGenreHint runs TagExtractor alone, ahead of the full extractor
// fan-out, so GenreMapExtractor can consume its GENRE tag if present
// (spec §4.9: genre_map is the last-resort source, keyed off a
// tag-derived hint).
func tagGenreHint(filePath string) string {
	result := extract.TagExtractor{}.Extract(context.Background(), extract.PassageInput{FilePath: filePath})
	if result.Metadata == nil {
		return ""
	}
	return result.Metadata.Genre
}

func (d Deps) publish(ev orchestrator.WorkflowEvent) {
	if d.Events != nil {
		d.Events.Publish(ev)
	}
}

func (d Deps) publishExtractionProgress() {
	for _, ex := range d.Extractors {
		for _, name := range progressTags(ex.Source()) {
			d.publish(orchestrator.WorkflowEvent{Kind: orchestrator.EventExtractionProgress, Extractor: name})
		}
	}
}

// progressTags maps an extract.Source to the extractor name(s) the
// Workflow Orchestrator's state-transition table watches for (spec
// §4.13). Chromaprint's combined source reports both of its stages:
// fingerprinting (CPU) then the AcoustID identify lookup (I/O).
func progressTags(source extract.Source) []string {
	switch source {
	case extract.SourceChromaprint:
		return []string{"chromaprint", "acoustid"}
	case extract.SourceMusicBrainz:
		return []string{"musicbrainz"}
	case extract.SourceAudioDerived:
		return []string{"audio_derived"}
	case extract.SourceFeatureExtractor:
		return []string{"feature_extractor"}
	default:
		return nil
	}
}

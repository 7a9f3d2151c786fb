// Package extract implements the Extractor Set: independent,
// error-isolated extractors that each consume a passage's PCM or file
// and return an ExtractionResult (spec §4.9).
package extract

import "context"

// Source identifies which extractor produced an ExtractionResult.
type Source string

const (
	SourceTag             Source = "tag"
	SourceChromaprint     Source = "chromaprint_acoustid"
	SourceMusicBrainz     Source = "musicbrainz"
	SourceAudioDerived    Source = "audio_derived"
	SourceFeatureExtractor Source = "feature_extractor"
	SourceGenreMap        Source = "genre_map"
)

// Identity is identity evidence from one source.
type Identity struct {
	MBID             string
	SourceConfidence float64
}

// Metadata is title/artist/album evidence from one source, each field
// carrying its own confidence (spec §3 ExtractionResult).
type Metadata struct {
	Title            string
	Artist           string
	Album            string
	Genre            string
	TitleConfidence  float64
	ArtistConfidence float64
	AlbumConfidence  float64
}

// Result is one extractor's output for a passage.
type Result struct {
	Source   Source
	Identity *Identity
	Metadata *Metadata
	Flavor   map[string]float64
	Duration float64 // seconds, if known
	Error    error
}

// PassageInput is what an extractor is given: the owning file path,
// the passage's tick range, and its decoded PCM if already available.
type PassageInput struct {
	FilePath   string
	PCM        []float32 // interleaved stereo f32, nil if not yet decoded
	SampleRate int

	// GenreHint is a tag-derived genre string (e.g. from TagExtractor's
	// GENRE Vorbis comment), consumed only by GenreMapExtractor.
	GenreHint string
}

// Extractor produces a Result for one passage. Implementations must
// not panic; a failure is reported via Result.Error so the Fusion Core
// sees error-isolated per-extractor failures (spec §4.9).
type Extractor interface {
	Source() Source
	Extract(ctx context.Context, in PassageInput) Result
}

// RunAll runs every extractor concurrently against in and collects all
// results, isolating panics-as-errors is the caller's concern; a
// misbehaving extractor only produces a Result with Error set.
func RunAll(ctx context.Context, extractors []Extractor, in PassageInput) []Result {
	results := make([]Result, len(extractors))
	done := make(chan int, len(extractors))
	for i, ex := range extractors {
		i, ex := i, ex
		go func() {
			results[i] = ex.Extract(ctx, in)
			done <- i
		}()
	}
	for range extractors {
		<-done
	}
	return results
}

// Package fusion implements the Fusion Core: combining per-extractor
// ExtractionResults into a single FusionResult via Bayesian identity
// fusion, weighted metadata selection, and weighted flavor synthesis
// (spec §4.10).
package fusion

import (
	"sort"

	"github.com/wkmp/core/internal/extract"
)

// SourceWeights configures the credibility prior for each extraction
// source, used by metadata and flavor fusion (spec §4.10: "musicbrainz
// > tag > chromaprint_acoustid > genre_map").
type SourceWeights map[extract.Source]float64

// DefaultSourceWeights matches the ordering spec.md gives as an
// example; callers may override via configuration.
var DefaultSourceWeights = SourceWeights{
	extract.SourceMusicBrainz:      1.0,
	extract.SourceTag:              0.5,
	extract.SourceChromaprint:      0.3,
	extract.SourceAudioDerived:     0.6,
	extract.SourceFeatureExtractor: 0.8,
	extract.SourceGenreMap:         0.2,
}

// IdentityConfidenceFloor is the posterior threshold above which a
// candidate MBID is recorded as a conflict alongside the winner (spec
// §4.10).
const IdentityConfidenceFloor = 0.5

// IdentityFusion is the Bayesian-fused identity outcome.
type IdentityFusion struct {
	MBID      string
	Posterior float64
	Conflicts []string // when two or more MBIDs reach the floor: all of them, winner first
}

// MetadataField is one field's fused value plus the source it came
// from.
type MetadataField struct {
	Value  string
	Source extract.Source
	Score  float64
}

// MetadataFusion holds the three independently-fused metadata fields.
type MetadataFusion struct {
	Title  MetadataField
	Artist MetadataField
	Album  MetadataField
}

// FlavorCharacteristic is one characteristic's fused value plus which
// sources contributed to it.
type FlavorCharacteristic struct {
	Value     float64
	Evidenced bool
	Sources   []extract.Source
}

// FlavorFusion is the weighted-average, per-category-renormalized
// flavor vector plus its completeness score.
type FlavorFusion struct {
	Characteristics map[string]FlavorCharacteristic
	Completeness    float64
}

// Result is everything the Fusion Core produces for one passage.
type Result struct {
	Identity IdentityFusion
	Metadata MetadataFusion
	Flavor   FlavorFusion
}

// flavorCategories groups characteristic names for per-category
// renormalization (spec §4.10: "re-normalized per category so category
// sums equal 1.0"). Characteristics not named here are tracked
// individually (no renormalization peer).
var flavorCategories = map[string][]string{
	"texture": {"energy", "brightness", "percussiveness"},
}

// allFlavorCharacteristics is the universe used to compute
// completeness (spec §4.10: "completeness = evidenced / total").
var allFlavorCharacteristics = []string{"energy", "brightness", "percussiveness", "valence"}

// Fuse combines all per-extractor results for one passage into a
// single deterministic FusionResult. Given identical inputs and
// weights, repeated calls produce byte-equal results (spec §8
// invariant 5): iteration order below is always by stable, sorted
// source name, never map range order.
func Fuse(results []extract.Result, weights SourceWeights) Result {
	sorted := make([]extract.Result, len(results))
	copy(sorted, results)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Source < sorted[j].Source })

	return Result{
		Identity: fuseIdentity(sorted),
		Metadata: fuseMetadata(sorted, weights),
		Flavor:   fuseFlavor(sorted, weights),
	}
}

func fuseIdentity(results []extract.Result) IdentityFusion {
	posteriors := make(map[string]float64)
	var order []string
	for _, r := range results {
		if r.Error != nil || r.Identity == nil || r.Identity.MBID == "" {
			continue
		}
		mbid := r.Identity.MBID
		if _, seen := posteriors[mbid]; !seen {
			order = append(order, mbid)
			posteriors[mbid] = 0
		}
		c := r.Identity.SourceConfidence
		p := posteriors[mbid]
		posteriors[mbid] = 1 - (1-p)*(1-c)
	}

	if len(order) == 0 {
		return IdentityFusion{}
	}

	best := order[0]
	for _, mbid := range order[1:] {
		if posteriors[mbid] > posteriors[best] {
			best = mbid
		}
	}

	var conflicts []string
	for _, mbid := range order {
		if mbid == best {
			continue
		}
		if posteriors[mbid] >= IdentityConfidenceFloor && posteriors[best] >= IdentityConfidenceFloor {
			conflicts = append(conflicts, mbid)
		}
	}
	if len(conflicts) > 0 {
		conflicts = append([]string{best}, conflicts...)
	}

	return IdentityFusion{MBID: best, Posterior: posteriors[best], Conflicts: conflicts}
}

func fuseMetadata(results []extract.Result, weights SourceWeights) MetadataFusion {
	return MetadataFusion{
		Title:  selectField(results, weights, func(m *extract.Metadata) (string, float64) { return m.Title, m.TitleConfidence }),
		Artist: selectField(results, weights, func(m *extract.Metadata) (string, float64) { return m.Artist, m.ArtistConfidence }),
		Album:  selectField(results, weights, func(m *extract.Metadata) (string, float64) { return m.Album, m.AlbumConfidence }),
	}
}

func selectField(results []extract.Result, weights SourceWeights, pick func(*extract.Metadata) (string, float64)) MetadataField {
	var best MetadataField
	for _, r := range results {
		if r.Error != nil || r.Metadata == nil {
			continue
		}
		value, confidence := pick(r.Metadata)
		if value == "" {
			continue
		}
		score := weights[r.Source] * confidence
		if score > best.Score {
			best = MetadataField{Value: value, Source: r.Source, Score: score}
		}
	}
	return best
}

func fuseFlavor(results []extract.Result, weights SourceWeights) FlavorFusion {
	weightedSum := make(map[string]float64)
	weightTotal := make(map[string]float64)
	contributors := make(map[string][]extract.Source)

	for _, r := range results {
		if r.Error != nil || r.Flavor == nil {
			continue
		}
		w := weights[r.Source]
		if w <= 0 {
			continue
		}
		var keys []string
		for k := range r.Flavor {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			weightedSum[k] += w * r.Flavor[k]
			weightTotal[k] += w
			contributors[k] = append(contributors[k], r.Source)
		}
	}

	characteristics := make(map[string]FlavorCharacteristic, len(allFlavorCharacteristics))
	for _, name := range allFlavorCharacteristics {
		total := weightTotal[name]
		if total == 0 {
			characteristics[name] = FlavorCharacteristic{}
			continue
		}
		characteristics[name] = FlavorCharacteristic{
			Value:     weightedSum[name] / total,
			Evidenced: true,
			Sources:   contributors[name],
		}
	}

	for _, members := range flavorCategories {
		renormalizeCategory(characteristics, members)
	}

	evidenced := 0
	for _, c := range characteristics {
		if c.Evidenced {
			evidenced++
		}
	}
	completeness := float64(evidenced) / float64(len(allFlavorCharacteristics))

	return FlavorFusion{Characteristics: characteristics, Completeness: completeness}
}

// renormalizeCategory rescales the evidenced members of a category so
// their values sum to 1.0, leaving unevidenced members untouched
// (spec §4.10).
func renormalizeCategory(characteristics map[string]FlavorCharacteristic, members []string) {
	var sum float64
	for _, name := range members {
		if c, ok := characteristics[name]; ok && c.Evidenced {
			sum += c.Value
		}
	}
	if sum == 0 {
		return
	}
	for _, name := range members {
		c, ok := characteristics[name]
		if !ok || !c.Evidenced {
			continue
		}
		c.Value = c.Value / sum
		characteristics[name] = c
	}
}

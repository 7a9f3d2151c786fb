// Package config loads WKMP's settings from an embedded default YAML
// overlaid with a user config file and environment variables, adapted
// from BirdNET-Go's internal/conf.
package config

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
)

//go:embed config.yaml
var configFiles embed.FS

// Settings is the root configuration tree for both the Playback Engine
// and the Ingest Pipeline.
type Settings struct {
	Debug bool

	Audio struct {
		OutputDevice string // platform device name, "" for system default
		SampleRate   int    // target output rate, 44100 preferred (spec §6)
	}

	Playback struct {
		PrerollSeconds       int    // bounded preroll duration for queued passages (spec §4.2)
		CrossfadeDefaultCurve string // one of Linear, Logarithmic, Exponential, SCurve
		RingBufferMillis     int    // ring buffer capacity in ms (spec §4.5, 100-200ms)
	}

	Ingest struct {
		Root                    string
		WorkerConcurrency       int  // P, clamped [4,16] per spec §4.13; 0 = auto (cpu_count)
		BatchSize               int  // DB write batch size, default 100 (spec §4.7)
		ScanProgressEvery       int  // emit scan progress every N files, default 100 (spec §4.6)
		RequiredFeatureExtractor bool // if true, session fails when the extractor binary is absent (spec §4.9)
		SessionTTL              time.Duration // orphaned ImportSession purge window (spec §3)

		Extractors struct {
			AcoustID struct {
				APIKey string
			}
			MusicBrainz struct {
				UserAgent string
			}
			FeatureExtractor struct {
				BinaryPath string
				Timeout    time.Duration // default 60s (spec §5)
			}
			Chromaprint struct {
				FpcalcPath string
			}
		}
	}

	Storage struct {
		DatabasePath string
		BusyTimeout  time.Duration
	}

	Fusion struct {
		// SourceWeights are priors for metadata-fusion scoring (spec §4.10).
		SourceWeights map[string]float64
		// IdentityConfidenceFloor is the posterior threshold for conflict recording, default 0.5.
		IdentityConfidenceFloor float64
	}

	Validation struct {
		TitleSimilarityFloor   float64 // default 0.8
		DurationToleranceRatio float64 // default 0.05
		FlavorCompletenessFloor float64 // default 0.6
	}

	Telemetry struct {
		SentryEnabled bool
		SentryDSN     string
	}
}

var (
	instance *Settings
	mu       sync.RWMutex
)

// Load reads configuration from the embedded default, an optional user
// config file, and environment variables (WKMP_* prefix), in that
// overlay order, and caches the result for Get.
func Load(configPath string) (*Settings, error) {
	mu.Lock()
	defer mu.Unlock()

	v := viper.New()
	v.SetConfigType("yaml")

	defaultYAML, err := fs.ReadFile(configFiles, "config.yaml")
	if err != nil {
		return nil, fmt.Errorf("reading embedded defaults: %w", err)
	}
	if err := v.ReadConfig(strings.NewReader(string(defaultYAML))); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}

	if configPath != "" {
		if _, statErr := os.Stat(configPath); statErr == nil {
			v.SetConfigFile(configPath)
			if err := v.MergeInConfig(); err != nil {
				return nil, fmt.Errorf("merging config file %s: %w", configPath, err)
			}
		}
	}

	v.SetEnvPrefix("WKMP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	settings := &Settings{}
	if err := v.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("unmarshaling settings: %w", err)
	}

	applyDefaults(settings)
	instance = settings
	return settings, nil
}

// Get returns the most recently Loaded settings, or nil if Load has not
// been called.
func Get() *Settings {
	mu.RLock()
	defer mu.RUnlock()
	return instance
}

// applyDefaults fills in zero-value fields that viper's defaults cannot
// express structurally (maps, clamped ranges).
func applyDefaults(s *Settings) {
	if s.Audio.SampleRate == 0 {
		s.Audio.SampleRate = 44100
	}
	if s.Playback.PrerollSeconds == 0 {
		s.Playback.PrerollSeconds = 15
	}
	if s.Playback.CrossfadeDefaultCurve == "" {
		s.Playback.CrossfadeDefaultCurve = "Linear"
	}
	if s.Playback.RingBufferMillis == 0 {
		s.Playback.RingBufferMillis = 150
	}
	if s.Ingest.BatchSize == 0 {
		s.Ingest.BatchSize = 100
	}
	if s.Ingest.ScanProgressEvery == 0 {
		s.Ingest.ScanProgressEvery = 100
	}
	if s.Ingest.SessionTTL == 0 {
		s.Ingest.SessionTTL = 24 * time.Hour
	}
	if s.Ingest.Extractors.FeatureExtractor.Timeout == 0 {
		s.Ingest.Extractors.FeatureExtractor.Timeout = 60 * time.Second
	}
	if s.Storage.DatabasePath == "" {
		s.Storage.DatabasePath = filepath.Join(".", "wkmp.db")
	}
	if s.Storage.BusyTimeout == 0 {
		s.Storage.BusyTimeout = 5 * time.Second
	}
	if len(s.Fusion.SourceWeights) == 0 {
		s.Fusion.SourceWeights = map[string]float64{
			"musicbrainz":        1.0,
			"tag":                0.5,
			"chromaprint_acoustid": 0.4,
			"audio_derived":      0.3,
			"feature_extractor":  0.6,
			"genre_map":          0.2,
		}
	}
	if s.Fusion.IdentityConfidenceFloor == 0 {
		s.Fusion.IdentityConfidenceFloor = 0.5
	}
	if s.Validation.TitleSimilarityFloor == 0 {
		s.Validation.TitleSimilarityFloor = 0.8
	}
	if s.Validation.DurationToleranceRatio == 0 {
		s.Validation.DurationToleranceRatio = 0.05
	}
	if s.Validation.FlavorCompletenessFloor == 0 {
		s.Validation.FlavorCompletenessFloor = 0.6
	}
}

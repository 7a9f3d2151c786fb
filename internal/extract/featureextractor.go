package extract

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/antonholmquist/jason"
	"github.com/wkmp/core/internal/wkerrors"
)

// FeatureExtractor invokes an external music-analysis binary as
// `<bin> <input_file> <output_json>` and parses its versioned JSON
// output into a flavor vector. Optional-by-config, but may be
// Required-by-policy (spec §4.9, §6).
type FeatureExtractor struct {
	BinaryPath string
	Timeout    time.Duration
	Required   bool
}

func (FeatureExtractor) Source() Source { return SourceFeatureExtractor }

func (f FeatureExtractor) Extract(ctx context.Context, in PassageInput) Result {
	if f.BinaryPath == "" {
		if f.Required {
			return Result{Source: SourceFeatureExtractor, Error: wkerrors.Newf("feature_extractor required by policy but no binary configured").
				Component("extract").Category(wkerrors.CategoryExtract).Build()}
		}
		return Result{Source: SourceFeatureExtractor}
	}

	timeout := f.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	outPath := filepath.Join(os.TempDir(), "wkmp-feature-"+randSuffix()+".json")
	defer os.Remove(outPath)

	cmd := exec.CommandContext(runCtx, f.BinaryPath, in.FilePath, outPath)
	if err := cmd.Run(); err != nil {
		return Result{Source: SourceFeatureExtractor, Error: wkerrors.New(err).
			Component("extract").Category(wkerrors.CategoryExtract).Context("binary", f.BinaryPath).Build()}
	}

	body, err := os.ReadFile(outPath)
	if err != nil {
		return Result{Source: SourceFeatureExtractor, Error: wkerrors.New(err).Component("extract").Category(wkerrors.CategoryExtract).Build()}
	}

	obj, err := jason.NewObjectFromBytes(body)
	if err != nil {
		return Result{Source: SourceFeatureExtractor, Error: wkerrors.New(err).Component("extract").Category(wkerrors.CategoryExtract).Build()}
	}

	flavor := make(map[string]float64)
	characteristics, err := obj.GetObjectArray("characteristics")
	if err == nil {
		for _, c := range characteristics {
			name, nerr := c.GetString("name")
			value, verr := c.GetFloat64("value")
			if nerr == nil && verr == nil {
				flavor[name] = value
			}
		}
	}

	return Result{Source: SourceFeatureExtractor, Flavor: flavor}
}

func randSuffix() string {
	return time.Now().UTC().Format("150405.000000000")
}

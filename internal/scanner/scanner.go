// Package scanner implements the File Scanner: directory traversal
// with symlink-cycle detection, canonical-path dedup, and magic-byte
// format identification, streaming results as they're found so the
// Scanning/Extracting phase can start before the walk completes (spec
// §4.6).
package scanner

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/wkmp/core/internal/decoder"
	"github.com/wkmp/core/internal/sniff"
	"github.com/wkmp/core/internal/wkerrors"
	"github.com/wkmp/core/internal/wklog"
)

// Found is one discovered audio file.
type Found struct {
	CanonicalPath string
	Format        decoder.Format
}

// Config controls scan behavior.
type Config struct {
	Root string
	// ProgressEvery is how many files between progress callbacks (default 100).
	ProgressEvery int
}

// Scanner walks Root, emitting Found values on a channel.
type Scanner struct {
	cfg    Config
	logger *slog.Logger
}

// New returns a Scanner for cfg.
func New(cfg Config) *Scanner {
	if cfg.ProgressEvery <= 0 {
		cfg.ProgressEvery = 100
	}
	return &Scanner{cfg: cfg, logger: wklog.ForService("scanner")}
}

// Scan walks the root folder, sending each discovered, deduplicated
// audio file on the returned channel, closing it when the walk
// completes or ctx is cancelled. onProgress, if non-nil, is called
// every ProgressEvery files.
func (s *Scanner) Scan(ctx context.Context, onProgress func(count int)) (<-chan Found, error) {
	if _, err := os.Stat(s.cfg.Root); err != nil {
		return nil, wkerrors.New(err).
			Component("scanner").
			Category(wkerrors.CategoryScan).
			Context("root", s.cfg.Root).
			Build()
	}

	out := make(chan Found, 64)
	go s.walk(ctx, out, onProgress)
	return out, nil
}

func (s *Scanner) walk(ctx context.Context, out chan<- Found, onProgress func(int)) {
	defer close(out)

	seen := make(map[string]struct{})
	visitedDirs := make(map[string]struct{})
	count := 0

	_ = filepath.WalkDir(s.cfg.Root, func(path string, d fs.DirEntry, err error) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			s.logger.Warn("walk error, skipping subtree", "path", path, "error", err)
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}

		canonical, err := filepath.EvalSymlinks(path)
		if err != nil {
			s.logger.Warn("failed to resolve symlink", "path", path, "error", err)
			return nil
		}

		if d.IsDir() {
			if _, dup := visitedDirs[canonical]; dup {
				return fs.SkipDir // symlink cycle
			}
			visitedDirs[canonical] = struct{}{}
			return nil
		}

		if _, dup := seen[canonical]; dup {
			return nil
		}
		seen[canonical] = struct{}{}

		format, ferr := sniff.Detect(canonical)
		if ferr != nil || format == decoder.FormatOther {
			return nil
		}

		select {
		case out <- Found{CanonicalPath: canonical, Format: format}:
		case <-ctx.Done():
			return ctx.Err()
		}

		count++
		if onProgress != nil && count%s.cfg.ProgressEvery == 0 {
			onProgress(count)
		}
		return nil
	})
}

// Package scanextract implements the Scanning/Extracting phase: for
// each discovered file, compute a content hash and container-level
// metadata, then upsert a file record. Each file's hash, duplicate-check
// read and upsert run in one goroutine, bounded by HashWorkers.
package scanextract

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"log/slog"
	"os"
	"runtime"

	"github.com/wkmp/core/internal/decoder"
	"github.com/wkmp/core/internal/scanner"
	"github.com/wkmp/core/internal/wkerrors"
	"github.com/wkmp/core/internal/wklog"
	"golang.org/x/sync/errgroup"
)

// FileRecord is the upserted row for one discovered file.
type FileRecord struct {
	Path          string
	Hash          string
	ModTime       int64
	DurationTicks int64
	Channels      int
	SampleRate    int
	Format        decoder.Format
	Unchanged     bool // idempotency: matched an existing record, skipped re-extraction
}

// Repository is the subset of storage the phase needs: idempotency
// lookups and the upsert itself. storage.Store implements this.
type Repository interface {
	// FindByPathOrHash returns an existing record matching path+mtime or
	// hash, and whether one was found.
	FindByPathOrHash(ctx context.Context, path string, mtime int64, hash string) (*FileRecord, bool, error)
	UpsertFile(ctx context.Context, rec *FileRecord) error
}

// ContainerProber extracts codec-level metadata without full decode.
type ContainerProber interface {
	Probe(path string, format decoder.Format) (durationTicks int64, channels, sampleRate int, err error)
}

// Config controls phase parallelism and batching.
type Config struct {
	// HashWorkers bounds CPU-bound hash+metadata extraction; 0 = CPU count.
	HashWorkers int
	// DupCheckWorkers defaults to 2×CPU when 0. Run does not consult it:
	// duplicate-check reads are bounded by HashWorkers.
	DupCheckWorkers int
}

// Phase runs the scanning/extracting stage over a stream of scanner.Found.
type Phase struct {
	cfg     Config
	repo    Repository
	prober  ContainerProber
	logger  *slog.Logger
}

// New returns a Phase.
func New(cfg Config, repo Repository, prober ContainerProber) *Phase {
	if cfg.HashWorkers <= 0 {
		cfg.HashWorkers = runtime.NumCPU()
	}
	if cfg.DupCheckWorkers <= 0 {
		cfg.DupCheckWorkers = 2 * runtime.NumCPU()
	}
	return &Phase{cfg: cfg, repo: repo, prober: prober, logger: wklog.ForService("scanextract")}
}

// Run consumes found files and upserts a FileRecord for each,
// respecting HashWorkers concurrency. Returns the first unrecoverable
// error, if any; per-file errors are logged and the file is skipped.
func (p *Phase) Run(ctx context.Context, found <-chan scanner.Found) error {
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.HashWorkers)

	for f := range found {
		f := f
		g.Go(func() error {
			if gCtx.Err() != nil {
				return nil
			}
			if err := p.processOne(gCtx, f); err != nil {
				p.logger.Warn("file processing failed", "path", f.CanonicalPath, "error", err)
			}
			return nil
		})
	}
	return g.Wait()
}

func (p *Phase) processOne(ctx context.Context, f scanner.Found) error {
	info, err := os.Stat(f.CanonicalPath)
	if err != nil {
		return wkerrors.New(err).Component("scanextract").Category(wkerrors.CategoryHash).Build()
	}
	mtime := info.ModTime().Unix()

	hash, err := hashFile(f.CanonicalPath)
	if err != nil {
		return wkerrors.New(err).Component("scanextract").Category(wkerrors.CategoryHash).Build()
	}

	if existing, found, err := p.repo.FindByPathOrHash(ctx, f.CanonicalPath, mtime, hash); err != nil {
		return err
	} else if found {
		existing.Unchanged = true
		return p.repo.UpsertFile(ctx, existing)
	}

	durationTicks, channels, sampleRate, err := p.prober.Probe(f.CanonicalPath, f.Format)
	if err != nil {
		return wkerrors.New(err).Component("scanextract").Category(wkerrors.CategoryHash).Build()
	}

	rec := &FileRecord{
		Path:          f.CanonicalPath,
		Hash:          hash,
		ModTime:       mtime,
		DurationTicks: durationTicks,
		Channels:      channels,
		SampleRate:    sampleRate,
		Format:        f.Format,
	}
	return p.repo.UpsertFile(ctx, rec)
}

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

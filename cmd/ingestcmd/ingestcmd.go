// Package ingestcmd implements wkmpd's "ingest" subcommand: scan a
// library root and run every discovered file through the Ingest
// Pipeline, the way the teacher's cmd/directory subcommand drives
// internal/analysis.DirectoryAnalysis over a directory argument.
package ingestcmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/wkmp/core/internal/boundary"
	"github.com/wkmp/core/internal/config"
	"github.com/wkmp/core/internal/decoder"
	"github.com/wkmp/core/internal/extract"
	"github.com/wkmp/core/internal/fusion"
	"github.com/wkmp/core/internal/ingest"
	"github.com/wkmp/core/internal/orchestrator"
	"github.com/wkmp/core/internal/scanner"
	"github.com/wkmp/core/internal/storage"
	"github.com/wkmp/core/internal/wklog"
)

const decodeChunkFrames = 4096

// Command returns the "ingest [path]" subcommand, scanning path (or
// settings.Ingest.Root if path is omitted) and writing every passage it
// finds to the configured database.
func Command(settings *config.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest [path]",
		Short: "Scan a directory and ingest every audio file found",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				settings.Ingest.Root = args[0]
			}

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			defer signal.Stop(sigCh)
			go func() {
				<-sigCh
				cancel()
			}()

			return run(ctx, settings)
		},
	}
	cmd.SilenceUsage = true
	return cmd
}

func run(ctx context.Context, settings *config.Settings) error {
	logger := wklog.ForService("ingestcmd")

	store, err := storage.Open(storage.Config{Path: settings.Storage.DatabasePath})
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer store.Close()

	scn := scanner.New(scanner.Config{
		Root:          settings.Ingest.Root,
		ProgressEvery: settings.Ingest.ScanProgressEvery,
	})
	found, err := scn.Scan(ctx, func(count int) {
		logger.Info("scan progress", "files_found", count)
	})
	if err != nil {
		return fmt.Errorf("starting scan: %w", err)
	}

	var paths []string
	for f := range found {
		paths = append(paths, f.CanonicalPath)
	}
	logger.Info("scan complete", "files_total", len(paths))

	session := orchestrator.NewSession(len(paths))
	events := orchestrator.New(session)
	defer events.Close()
	go events.RunEventListener(ctx)

	deps := ingest.Deps{
		Codecs:      codecSet(decodeChunkFrames),
		Store:       store,
		Extractors:  ingest.NewExtractorSet(settings),
		Weights:     sourceWeights(settings),
		BoundaryCfg: boundary.Config{},
		Events:      events,
	}

	pathCh := make(chan string)
	go func() {
		defer close(pathCh)
		for _, p := range paths {
			select {
			case pathCh <- p:
			case <-ctx.Done():
				return
			}
		}
	}()

	if err := orchestrator.Run(ctx, session, pathCh, ingest.NewProcessFunc(deps)); err != nil {
		return fmt.Errorf("ingest run: %w", err)
	}

	logger.Info("ingest session finished", "state", events.State(), "files_done", session.FilesDone)
	return nil
}

func codecSet(chunkFrames int) map[decoder.Format]decoder.Codec {
	ffmpeg := decoder.NewFFmpegCodec("", 44100, chunkFrames)
	return map[decoder.Format]decoder.Codec{
		decoder.FormatWAV:  decoder.NewWAVCodec(chunkFrames),
		decoder.FormatFLAC: decoder.NewFLACCodec(chunkFrames),
		decoder.FormatMP3:  ffmpeg,
		decoder.FormatAAC:  ffmpeg,
		decoder.FormatOgg:  ffmpeg,
	}
}

// sourceWeights converts the config's string-keyed weights into
// fusion.SourceWeights, starting from fusion.DefaultSourceWeights and
// overwriting every source the config names. The embedded config.yaml
// names all six sources, so its values replace the fusion defaults.
func sourceWeights(settings *config.Settings) fusion.SourceWeights {
	weights := make(fusion.SourceWeights, len(fusion.DefaultSourceWeights))
	for source, w := range fusion.DefaultSourceWeights {
		weights[source] = w
	}
	for name, w := range settings.Fusion.SourceWeights {
		weights[extract.Source(name)] = w
	}
	return weights
}

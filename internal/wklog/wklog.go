// Package wklog provides structured logging built on log/slog, adapted
// from BirdNET-Go's internal/logging for WKMP's two subsystems.
package wklog

import (
	"context"
	"io"
	"log/slog"
	"math"
	"os"
	"sync"
)

const (
	LevelTrace = slog.Level(-8)
	LevelFatal = slog.Level(12)
)

var levelNames = map[slog.Leveler]string{
	LevelTrace: "TRACE",
	LevelFatal: "FATAL",
}

var (
	structuredLogger *slog.Logger
	humanLogger      *slog.Logger
	loggerMu         sync.RWMutex
	currentLevel     = new(slog.LevelVar)
	initOnce         sync.Once
)

func replaceAttr(_ []string, a slog.Attr) slog.Attr {
	if a.Key == slog.LevelKey {
		if level, ok := a.Value.Any().(slog.Level); ok {
			label, exists := levelNames[level]
			if !exists {
				label = level.String()
			}
			a.Value = slog.StringValue(label)
		}
	}
	if a.Value.Kind() == slog.KindFloat64 {
		a.Value = slog.Float64Value(math.Trunc(a.Value.Float64()*100) / 100.0)
	}
	return a
}

// Init sets up the global structured (JSON, for machine consumption)
// and human-readable (text, for consoles) loggers at slog.LevelInfo.
// Safe to call more than once; only the first call takes effect.
func Init() {
	initOnce.Do(func() {
		currentLevel.Set(slog.LevelInfo)
		structured := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level:       currentLevel,
			ReplaceAttr: replaceAttr,
		})
		human := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level:       currentLevel,
			ReplaceAttr: replaceAttr,
		})
		loggerMu.Lock()
		structuredLogger = slog.New(structured)
		humanLogger = slog.New(human)
		loggerMu.Unlock()
		slog.SetDefault(structuredLogger)
	})
}

// SetLevel adjusts the minimum level for all loggers created by this package.
func SetLevel(level slog.Level) {
	currentLevel.Set(level)
}

// SetOutput redirects the structured logger to an arbitrary writer
// (e.g. a log file opened by the caller). Useful in tests and for
// one-shot CLI runs that want logs segregated from stdout.
func SetOutput(w io.Writer) {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:       currentLevel,
		ReplaceAttr: replaceAttr,
	})
	loggerMu.Lock()
	structuredLogger = slog.New(handler)
	loggerMu.Unlock()
}

// ForService returns a logger tagged with a "component" attribute, the
// unit every wkerrors.EnhancedError also carries, so log lines and
// error reports correlate without extra plumbing.
func ForService(component string) *slog.Logger {
	Init()
	loggerMu.RLock()
	logger := structuredLogger
	loggerMu.RUnlock()
	return logger.With("component", component)
}

// Fatal logs at the Fatal level and terminates the process. Reserved
// for the orchestrator/storage Fatal error class (spec §7) — never
// called from a per-file or per-passage error path.
func Fatal(msg string, args ...any) {
	Init()
	slog.Log(context.TODO(), LevelFatal, msg, args...)
	os.Exit(1)
}

// Trace logs at the custom Trace level, below Debug.
func Trace(msg string, args ...any) {
	Init()
	slog.Log(context.TODO(), LevelTrace, msg, args...)
}

package storage

import (
	"log/slog"
	"os"
	"path/filepath"

	"github.com/wkmp/core/internal/wkerrors"
	"github.com/wkmp/core/internal/wklog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Store owns the SQLite connection and implements the storage-facing
// interfaces used by scanextract, fusion persistence, and the
// orchestrator (spec §4.12).
type Store struct {
	db     *gorm.DB
	logger *slog.Logger
}

// Config controls where and how the database is opened.
type Config struct {
	Path  string
	Debug bool
}

// Open creates the database directory if needed, opens the SQLite
// connection with WAL journaling, applies auto-migration, and returns
// a ready Store. Mirrors the teacher's SQLiteStore.Open pragma set
// (spec §6: "write-ahead-log journaling permits concurrent readers").
func Open(cfg Config) (*Store, error) {
	log := wklog.ForService("storage")

	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, wkerrors.New(err).Component("storage").Category(wkerrors.CategoryStorage).
			Context("directory", filepath.Dir(cfg.Path)).Build()
	}

	logLevel := gormlogger.Warn
	if cfg.Debug {
		logLevel = gormlogger.Info
	}
	db, err := gorm.Open(sqlite.Open(cfg.Path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, wkerrors.New(err).Component("storage").Category(wkerrors.CategoryStorage).
			Context("path", cfg.Path).Build()
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, wkerrors.New(err).Component("storage").Category(wkerrors.CategoryStorage).Build()
	}

	pragmas := []string{
		"PRAGMA foreign_keys=ON",
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA cache_size=-4000",
		"PRAGMA temp_store=MEMORY",
	}
	for _, p := range pragmas {
		if _, err := sqlDB.Exec(p); err != nil {
			log.Warn("failed to set pragma", "pragma", p, "error", err)
		}
	}

	if err := db.AutoMigrate(AllModels...); err != nil {
		return nil, wkerrors.New(err).Component("storage").Category(wkerrors.CategoryStorage).
			Context("operation", "auto_migrate").Build()
	}

	log.Info("opened database", "path", cfg.Path, "journal_mode", "WAL")
	return &Store{db: db, logger: log}, nil
}

// Close releases the underlying connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Optimize runs ANALYZE + VACUUM, mirroring the teacher's periodic
// maintenance routine.
func (s *Store) Optimize() error {
	if err := s.db.Exec("ANALYZE").Error; err != nil {
		return wkerrors.New(err).Component("storage").Category(wkerrors.CategoryStorage).Context("operation", "analyze").Build()
	}
	if err := s.db.Exec("VACUUM").Error; err != nil {
		return wkerrors.New(err).Component("storage").Category(wkerrors.CategoryStorage).Context("operation", "vacuum").Build()
	}
	return nil
}

// Package storage implements the Storage Writer: per-file
// transactional persistence into SQLite of files, passages, fused
// metadata, and import provenance (spec §4.12, §6).
package storage

import "time"

// File is one ingested source file (spec §6 `files` table).
type File struct {
	ID            string `gorm:"primaryKey;size:36"`
	Path          string `gorm:"uniqueIndex;size:1024;not null"`
	Hash          string `gorm:"index;size:64"`
	ModTime       int64  `gorm:"index"`
	DurationTicks int64
	Channels      int
	SampleRate    int
	Format        string `gorm:"size:16"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Passage is a contiguous, fade-enveloped playable region of a File
// (spec §3, §6).
type Passage struct {
	ID             string `gorm:"primaryKey;size:36"`
	FileID         string `gorm:"index;size:36;not null"`
	StartTick      int64
	LeadInTick     int64
	LeadOutTick    int64
	EndTick        int64
	FadeInCurve    string `gorm:"size:16"`
	FadeOutCurve   string `gorm:"size:16"`
	Title          string
	Artist         string
	Album          string
	MBID           string `gorm:"index;size:36"`
	FlavorJSON     string `gorm:"type:text"`
	QualityScore   float64
	Status         string `gorm:"size:16;index"`
	SourceFileHash string `gorm:"size:64"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Song is a canonical recording entity, resolvable across multiple
// passages/releases.
type Song struct {
	ID     string `gorm:"primaryKey;size:36"`
	MBID   string `gorm:"uniqueIndex;size:36"`
	Title  string
	WorkID string `gorm:"index;size:36"`
}

// Artist is a performer or composer credit.
type Artist struct {
	ID   string `gorm:"primaryKey;size:36"`
	MBID string `gorm:"uniqueIndex;size:36"`
	Name string
}

// Work is a composition, independent of any particular recording.
type Work struct {
	ID    string `gorm:"primaryKey;size:36"`
	MBID  string `gorm:"uniqueIndex;size:36"`
	Title string
}

// Album is a release grouping one or more Songs.
type Album struct {
	ID    string `gorm:"primaryKey;size:36"`
	MBID  string `gorm:"uniqueIndex;size:36"`
	Title string
}

// PassageSong associates a Passage with the Song it was identified as.
type PassageSong struct {
	PassageID string `gorm:"primaryKey;size:36"`
	SongID    string `gorm:"primaryKey;size:36"`
}

// PassageAlbum associates a Passage with an Album it appears on.
type PassageAlbum struct {
	PassageID string `gorm:"primaryKey;size:36"`
	AlbumID   string `gorm:"primaryKey;size:36"`
}

// ImportSession tracks one ingest run's lifecycle (spec §4.13).
type ImportSession struct {
	ID          string `gorm:"primaryKey;size:36"`
	Root        string
	State       string `gorm:"size:16;index"`
	FilesTotal  int
	FilesDone   int
	StartedAt   time.Time
	CompletedAt *time.Time
	CancelFlag  bool
}

// ImportProvenance records one extraction source's contribution to
// one passage, for audit and later re-fusion (spec §6).
type ImportProvenance struct {
	ID          uint   `gorm:"primaryKey;autoIncrement"`
	PassageID   string `gorm:"index;size:36;not null"`
	Source      string `gorm:"size:32;index"`
	Confidence  float64
	DataSummary string `gorm:"type:text"`
	CreatedAt   time.Time
}

// Setting is a generic key/value configuration row.
type Setting struct {
	Key   string `gorm:"primaryKey;size:200"`
	Value string `gorm:"type:text"`
}

// ResponseCache is a generic response cache row keyed by fingerprint
// or MBID, backing the MusicBrainz/AcoustID cache tier in front of
// in-process patrickmn/go-cache (spec §6: "response caches keyed by
// fingerprint/MBID").
type ResponseCache struct {
	Key       string `gorm:"primaryKey;size:200"`
	Source    string `gorm:"size:32;index"`
	Value     string `gorm:"type:text"`
	CreatedAt time.Time
}

// AllModels lists every model for auto-migration.
var AllModels = []any{
	&File{},
	&Passage{},
	&Song{},
	&Artist{},
	&Work{},
	&Album{},
	&PassageSong{},
	&PassageAlbum{},
	&ImportSession{},
	&ImportProvenance{},
	&Setting{},
	&ResponseCache{},
}

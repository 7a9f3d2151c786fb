package storage

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/wkmp/core/internal/decoder"
	"github.com/wkmp/core/internal/extract"
	"github.com/wkmp/core/internal/fusion"
	"github.com/wkmp/core/internal/passage"
	"github.com/wkmp/core/internal/scanextract"
	"github.com/wkmp/core/internal/validate"
	"github.com/wkmp/core/internal/wkerrors"
	"gorm.io/gorm"
)

// FindByPathOrHash implements scanextract.Repository: idempotent
// re-scan lookup by path+mtime or content hash (spec §8 invariant 6).
func (s *Store) FindByPathOrHash(ctx context.Context, path string, mtime int64, hash string) (*scanextract.FileRecord, bool, error) {
	var row File
	err := s.db.WithContext(ctx).
		Where("(path = ? AND mod_time = ?) OR hash = ?", path, mtime, hash).
		First(&row).Error
	if err == gorm.ErrRecordNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, wkerrors.New(err).Component("storage").Category(wkerrors.CategoryStorage).Build()
	}
	return &scanextract.FileRecord{
		Path:          row.Path,
		Hash:          row.Hash,
		ModTime:       row.ModTime,
		DurationTicks: row.DurationTicks,
		Channels:      row.Channels,
		SampleRate:    row.SampleRate,
		Format:        decoder.Format(row.Format),
		Unchanged:     true,
	}, true, nil
}

// FindFileID returns the row ID for an already-upserted path. The
// scanextract.Repository interface never exposes IDs (it only needs
// idempotency, not FK linkage), so callers that go on to write
// passages look the ID up separately after UpsertFile.
func (s *Store) FindFileID(ctx context.Context, path string) (string, bool, error) {
	var row File
	err := s.db.WithContext(ctx).Select("id").Where("path = ?", path).First(&row).Error
	if err == gorm.ErrRecordNotFound {
		return "", false, nil
	}
	if err != nil {
		return "", false, wkerrors.New(err).Component("storage").Category(wkerrors.CategoryStorage).Build()
	}
	return row.ID, true, nil
}

// UpsertFile implements scanextract.Repository. An existing row for
// the same path keeps its ID (passages and provenance reference it by
// FK); only a brand-new path gets a freshly generated one.
func (s *Store) UpsertFile(ctx context.Context, rec *scanextract.FileRecord) error {
	var existing File
	err := s.db.WithContext(ctx).Where("path = ?", rec.Path).First(&existing).Error
	switch {
	case err == gorm.ErrRecordNotFound:
		row := File{
			ID:            uuid.New().String(),
			Path:          rec.Path,
			Hash:          rec.Hash,
			ModTime:       rec.ModTime,
			DurationTicks: rec.DurationTicks,
			Channels:      rec.Channels,
			SampleRate:    rec.SampleRate,
			Format:        string(rec.Format),
		}
		return s.db.WithContext(ctx).Create(&row).Error
	case err != nil:
		return wkerrors.New(err).Component("storage").Category(wkerrors.CategoryStorage).Build()
	default:
		return s.db.WithContext(ctx).Model(&existing).Updates(File{
			Hash:          rec.Hash,
			ModTime:       rec.ModTime,
			DurationTicks: rec.DurationTicks,
			Channels:      rec.Channels,
			SampleRate:    rec.SampleRate,
			Format:        string(rec.Format),
		}).Error
	}
}

// FusedPassage bundles the inputs the writer needs to persist one
// ingested passage in a single transaction (spec §4.12).
type FusedPassage struct {
	Passage *passage.Passage
	Raw     []extract.Result
	Fused   fusion.Result
	Report  validate.Report
}

// WriteFile commits every fused passage of fileID, with its provenance
// rows, in one transaction; a failure rolls back that file's passages
// only. The file row itself is written beforehand by UpsertFile.
func (s *Store) WriteFile(ctx context.Context, fileID string, passages []FusedPassage) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, fp := range passages {
			if err := writePassage(tx, fileID, fp); err != nil {
				return err
			}
		}
		return nil
	})
}

func writePassage(tx *gorm.DB, fileID string, fp FusedPassage) error {
	p := fp.Passage
	flavorJSON, err := json.Marshal(fp.Fused.Flavor.Characteristics)
	if err != nil {
		return wkerrors.New(err).Component("storage").Category(wkerrors.CategoryStorage).Build()
	}

	row := Passage{
		ID:             p.ID.String(),
		FileID:         fileID,
		StartTick:      int64(p.StartTick),
		LeadInTick:     int64(p.LeadInTick),
		LeadOutTick:    int64(p.LeadOutTick),
		EndTick:        int64(p.EndTick),
		FadeInCurve:    string(p.FadeInCurve),
		FadeOutCurve:   string(p.FadeOutCurve),
		Title:          fp.Fused.Metadata.Title.Value,
		Artist:         fp.Fused.Metadata.Artist.Value,
		Album:          fp.Fused.Metadata.Album.Value,
		MBID:           fp.Fused.Identity.MBID,
		FlavorJSON:     string(flavorJSON),
		QualityScore:   fp.Report.QualityScore,
		Status:         string(fp.Report.Status),
		SourceFileHash: p.SourceFileHash,
	}
	if err := tx.Create(&row).Error; err != nil {
		return wkerrors.New(err).Component("storage").Category(wkerrors.CategoryStorage).
			Context("passage_id", row.ID).Build()
	}

	for _, r := range fp.Raw {
		summary, _ := json.Marshal(r) // best-effort; provenance is diagnostic, not load-bearing
		prov := ImportProvenance{
			PassageID:   row.ID,
			Source:      string(r.Source),
			Confidence:  sourceConfidence(r),
			DataSummary: string(summary),
		}
		if err := tx.Create(&prov).Error; err != nil {
			return wkerrors.New(err).Component("storage").Category(wkerrors.CategoryStorage).
				Context("passage_id", row.ID).Context("source", string(r.Source)).Build()
		}
	}
	return nil
}

func sourceConfidence(r extract.Result) float64 {
	switch {
	case r.Identity != nil:
		return r.Identity.SourceConfidence
	case r.Metadata != nil:
		return r.Metadata.TitleConfidence
	default:
		return 0
	}
}

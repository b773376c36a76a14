package rawstore

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrNotFound = errors.New("raw record not found")

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) AutoMigrate() error {
	return r.db.AutoMigrate(&RawRecord{})
}

// Upsert writes a raw record keyed on (source_name, external_id).
// Re-ingesting the same observation refreshes the payload and observed_at;
// it never duplicates the row, which makes every intake path re-runnable.
func (r *Repository) Upsert(ctx context.Context, rec *RawRecord) error {
	if rec.RawID == "" {
		rec.RawID = uuid.New().String()
	}
	now := time.Now().UTC()
	if rec.ObservedAt.IsZero() {
		rec.ObservedAt = now
	}
	rec.IngestedAt = now
	rec.UpdatedAt = now

	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "source_name"}, {Name: "external_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"name_normalized", "lat", "lng", "geohash", "raw_json",
			"intake_batch_id", "observed_at", "updated_at",
		}),
	}).Create(rec).Error
}

func (r *Repository) Get(ctx context.Context, rawID string) (*RawRecord, error) {
	var rec RawRecord
	result := r.db.WithContext(ctx).First(&rec, "raw_id = ?", rawID)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	return &rec, result.Error
}

// ListUnprocessed returns unprocessed records in stable name order so batch
// reruns are reproducible and diffable. limit <= 0 means no limit.
func (r *Repository) ListUnprocessed(ctx context.Context, batchID string, limit int) ([]RawRecord, error) {
	q := r.db.WithContext(ctx).
		Where("is_processed = ?", false).
		Order("name_normalized ASC, raw_id ASC")
	if batchID != "" {
		q = q.Where("intake_batch_id = ?", batchID)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	var recs []RawRecord
	result := q.Find(&recs)
	return recs, result.Error
}

func (r *Repository) MarkProcessed(ctx context.Context, rawIDs []string) error {
	if len(rawIDs) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Model(&RawRecord{}).
		Where("raw_id IN ?", rawIDs).
		Updates(map[string]interface{}{
			"is_processed": true,
			"updated_at":   time.Now().UTC(),
		}).Error
}

func (r *Repository) FindByIDs(ctx context.Context, rawIDs []string) ([]RawRecord, error) {
	if len(rawIDs) == 0 {
		return nil, nil
	}
	var recs []RawRecord
	result := r.db.WithContext(ctx).Where("raw_id IN ?", rawIDs).Find(&recs)
	return recs, result.Error
}

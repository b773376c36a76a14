package golden

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/atlas-maps/platform/pkg/similarity"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"gorm.io/gorm"
)

var ErrNotFound = errors.New("golden record not found")

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) AutoMigrate() error {
	return r.db.AutoMigrate(&Record{}, &ResolutionLink{})
}

func (r *Repository) Create(ctx context.Context, rec *Record) error {
	if rec.CanonicalID == "" {
		rec.CanonicalID = uuid.New().String()
	}
	now := time.Now().UTC()
	rec.CreatedAt = now
	rec.UpdatedAt = now
	if rec.LifecycleStatus == "" {
		rec.LifecycleStatus = LifecycleActive
	}
	if rec.PromotionStatus == "" {
		rec.PromotionStatus = PromotionPending
	}
	return r.db.WithContext(ctx).Create(rec).Error
}

func (r *Repository) Get(ctx context.Context, canonicalID string) (*Record, error) {
	var rec Record
	result := r.db.WithContext(ctx).First(&rec, "canonical_id = ?", canonicalID)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	return &rec, result.Error
}

func (r *Repository) Save(ctx context.Context, rec *Record) error {
	rec.UpdatedAt = time.Now().UTC()
	return r.db.WithContext(ctx).Save(rec).Error
}

// Archive is the only removal path; rows stay queryable for history.
func (r *Repository) Archive(ctx context.Context, canonicalID string) error {
	return r.db.WithContext(ctx).Model(&Record{}).
		Where("canonical_id = ?", canonicalID).
		Updates(map[string]interface{}{
			"lifecycle_status": LifecycleArchived,
			"updated_at":       time.Now().UTC(),
		}).Error
}

// ListActive returns active golden records in stable update order.
// limit <= 0 means no limit.
func (r *Repository) ListActive(ctx context.Context, limit int) ([]Record, error) {
	q := r.db.WithContext(ctx).
		Where("lifecycle_status = ?", LifecycleActive).
		Order("updated_at DESC, canonical_id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var recs []Record
	result := q.Find(&recs)
	return recs, result.Error
}

func (r *Repository) FindByGPID(ctx context.Context, gpid string) (*Record, error) {
	var rec Record
	result := r.db.WithContext(ctx).
		Where("google_place_id = ? AND lifecycle_status = ?", gpid, LifecycleActive).
		First(&rec)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	return &rec, result.Error
}

func (r *Repository) FindByNormalizedName(ctx context.Context, nameNormalized string) ([]Record, error) {
	var recs []Record
	result := r.db.WithContext(ctx).
		Where("name_normalized = ? AND lifecycle_status = ?", nameNormalized, LifecycleActive).
		Find(&recs)
	return recs, result.Error
}

// FindNearby returns active golden records within radiusMeters of the point.
// The bounding-box prefilter runs in SQL; the exact haversine cut happens
// here because Postgres without PostGIS has no great-circle operator.
func (r *Repository) FindNearby(ctx context.Context, lat, lng, radiusMeters float64) ([]Record, error) {
	latDelta := radiusMeters / 111_000
	lngDelta := radiusMeters / 85_000 // generous at LA latitudes

	var recs []Record
	result := r.db.WithContext(ctx).
		Where("lifecycle_status = ?", LifecycleActive).
		Where("lat BETWEEN ? AND ?", lat-latDelta, lat+latDelta).
		Where("lng BETWEEN ? AND ?", lng-lngDelta, lng+lngDelta).
		Find(&recs)
	if result.Error != nil {
		return nil, result.Error
	}

	within := recs[:0]
	for _, rec := range recs {
		if rec.Lat == nil || rec.Lng == nil {
			continue
		}
		if similarity.HaversineMeters(lat, lng, *rec.Lat, *rec.Lng) <= radiusMeters {
			within = append(within, rec)
		}
	}
	return within, nil
}

// MissingGPID lists active records without an external place id, in stable
// name order for reproducible resolver runs.
func (r *Repository) MissingGPID(ctx context.Context, limit int) ([]Record, error) {
	q := r.db.WithContext(ctx).
		Where("lifecycle_status = ? AND (google_place_id IS NULL OR google_place_id = '')", LifecycleActive).
		Order("name ASC, canonical_id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var recs []Record
	result := q.Find(&recs)
	return recs, result.Error
}

func (r *Repository) SetGPID(ctx context.Context, canonicalID, gpid string) error {
	return r.db.WithContext(ctx).Model(&Record{}).
		Where("canonical_id = ?", canonicalID).
		Updates(map[string]interface{}{
			"google_place_id": gpid,
			"updated_at":      time.Now().UTC(),
		}).Error
}

// UniqueSlug derives a collision-safe slug from name (and neighborhood when
// present) by probing the table and suffixing a counter.
func (r *Repository) UniqueSlug(ctx context.Context, name, neighborhood string) (string, error) {
	base := slug.Make(name)
	if neighborhood != "" {
		base = base + "-" + slug.Make(neighborhood)
	}
	if len(base) > 76 {
		base = base[:76]
	}
	if base == "" {
		base = uuid.New().String()[:8]
	}

	candidate := base
	for n := 2; ; n++ {
		var count int64
		if err := r.db.WithContext(ctx).Model(&Record{}).
			Where("slug = ?", candidate).Count(&count).Error; err != nil {
			return "", err
		}
		if count == 0 {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-%d", base, n)
	}
}

// --- resolution links ---

// Link attaches a raw record to a golden record. Any prior active edge is
// deactivated in the same transaction, preserving the at-most-one-active
// invariant without losing history.
func (r *Repository) Link(ctx context.Context, link *ResolutionLink) error {
	if link.LinkID == "" {
		link.LinkID = uuid.New().String()
	}
	link.IsActive = true
	link.CreatedAt = time.Now().UTC()

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now().UTC()
		if err := tx.Model(&ResolutionLink{}).
			Where("raw_record_id = ? AND is_active = ?", link.RawRecordID, true).
			Updates(map[string]interface{}{
				"is_active":      false,
				"deactivated_at": now,
			}).Error; err != nil {
			return err
		}
		return tx.Create(link).Error
	})
}

// ActiveLinks returns all active edges into a golden record.
func (r *Repository) ActiveLinks(ctx context.Context, goldenRecordID string) ([]ResolutionLink, error) {
	var links []ResolutionLink
	result := r.db.WithContext(ctx).
		Where("golden_record_id = ? AND is_active = ?", goldenRecordID, true).
		Order("created_at ASC").
		Find(&links)
	return links, result.Error
}

// LinkedCanonicalIDs lists the distinct golden ids that have at least one
// active link, for whole-set merge passes.
func (r *Repository) LinkedCanonicalIDs(ctx context.Context, limit int) ([]string, error) {
	q := r.db.WithContext(ctx).Model(&ResolutionLink{}).
		Where("is_active = ?", true).
		Distinct("golden_record_id").
		Order("golden_record_id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var ids []string
	result := q.Pluck("golden_record_id", &ids)
	return ids, result.Error
}

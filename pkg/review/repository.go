package review

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var ErrNotFound = errors.New("review item not found")

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Migrate() error {
	return r.db.AutoMigrate(&QueueItem{}, &AuditLogEntry{})
}

// EnqueueAmbiguous files an ambiguous match for human adjudication and
// returns the queue id. The raw record stays unprocessed until the item is
// resolved, so re-running the resolver re-surfaces it rather than losing it.
func (r *Repository) EnqueueAmbiguous(ctx context.Context, rawID, goldenID, conflictType string, confidence *float64, details map[string]interface{}) (string, error) {
	// One open item per raw record; a rerun must not pile up duplicates.
	var existing QueueItem
	err := r.db.WithContext(ctx).
		Where("raw_id_a = ? AND status IN ?", rawID, []string{StatusPending, StatusDeferred}).
		First(&existing).Error
	if err == nil {
		return existing.QueueID, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return "", err
	}

	item := QueueItem{
		QueueID:         uuid.New().String(),
		CanonicalID:     goldenID,
		RawIDA:          rawID,
		ConflictType:    conflictType,
		MatchConfidence: confidence,
		Details:         details,
		Priority:        priorityFor(conflictType, confidence),
		Status:          StatusPending,
	}
	if err := r.db.WithContext(ctx).Create(&item).Error; err != nil {
		return "", err
	}
	return item.QueueID, nil
}

// EnqueuePair files a suspected duplicate pair of raw records.
func (r *Repository) EnqueuePair(ctx context.Context, rawIDA, rawIDB, conflictType string, confidence *float64, details map[string]interface{}) (string, error) {
	item := QueueItem{
		QueueID:         uuid.New().String(),
		RawIDA:          rawIDA,
		RawIDB:          rawIDB,
		ConflictType:    conflictType,
		MatchConfidence: confidence,
		Details:         details,
		Priority:        priorityFor(conflictType, confidence),
		Status:          StatusPending,
	}
	if err := r.db.WithContext(ctx).Create(&item).Error; err != nil {
		return "", err
	}
	return item.QueueID, nil
}

func (r *Repository) Get(ctx context.Context, queueID string) (*QueueItem, error) {
	var item QueueItem
	err := r.db.WithContext(ctx).Where("queue_id = ?", queueID).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// ListPending returns open items, highest priority first, oldest first within
// a priority. An empty conflictType returns every type.
func (r *Repository) ListPending(ctx context.Context, conflictType string, limit int) ([]QueueItem, error) {
	q := r.db.WithContext(ctx).
		Where("status IN ?", []string{StatusPending, StatusDeferred}).
		Order("priority DESC, created_at ASC")
	if conflictType != "" {
		q = q.Where("conflict_type = ?", conflictType)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	var items []QueueItem
	if err := q.Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *Repository) Update(ctx context.Context, item *QueueItem) error {
	return r.db.WithContext(ctx).Save(item).Error
}

func (r *Repository) RecordAudit(ctx context.Context, entry *AuditLogEntry) error {
	if entry.AuditID == "" {
		entry.AuditID = uuid.New().String()
	}
	return r.db.WithContext(ctx).Create(entry).Error
}

// QueueStats counts open and closed items, with a per-conflict-type breakdown
// of the open set.
func (r *Repository) QueueStats(ctx context.Context) (*Stats, error) {
	stats := &Stats{ByType: map[string]int64{}}

	if err := r.db.WithContext(ctx).Model(&QueueItem{}).
		Where("status IN ?", []string{StatusPending, StatusDeferred}).
		Count(&stats.Pending).Error; err != nil {
		return nil, err
	}
	if err := r.db.WithContext(ctx).Model(&QueueItem{}).
		Where("status = ?", StatusResolved).
		Count(&stats.Resolved).Error; err != nil {
		return nil, err
	}

	type row struct {
		ConflictType string
		N            int64
	}
	var rows []row
	if err := r.db.WithContext(ctx).Model(&QueueItem{}).
		Select("conflict_type, count(*) as n").
		Where("status IN ?", []string{StatusPending, StatusDeferred}).
		Group("conflict_type").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	for _, rw := range rows {
		stats.ByType[rw.ConflictType] = rw.N
	}
	return stats, nil
}

// priorityFor ranks items for the review worklist. Geo mismatches are the
// most damaging on a map product, then low-confidence links.
func priorityFor(conflictType string, confidence *float64) int {
	switch conflictType {
	case ConflictGeoMismatch:
		return 9
	case ConflictLowConfidence:
		if confidence != nil && *confidence < 0.5 {
			return 8
		}
		return 7
	case ConflictAmbiguousMulti:
		return 6
	case ConflictNameMismatch:
		return 5
	default:
		return 4
	}
}

// now is a seam for tests.
var now = func() time.Time { return time.Now().UTC() }

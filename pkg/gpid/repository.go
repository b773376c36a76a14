package gpid

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var ErrNotFound = errors.New("gpid queue item not found")

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Migrate() error {
	return r.db.AutoMigrate(&QueueItem{})
}

// Seed enqueues a golden record for id resolution unless an open row already
// exists for it. Returns true when a new row was created.
func (r *Repository) Seed(ctx context.Context, canonicalID, entityName, runID string) (bool, error) {
	var existing QueueItem
	err := r.db.WithContext(ctx).
		Where("canonical_id = ? AND human_status = ?", canonicalID, HumanPending).
		First(&existing).Error
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return false, err
	}

	item := QueueItem{
		QueueID:     uuid.New().String(),
		CanonicalID: canonicalID,
		EntityName:  entityName,
		HumanStatus: HumanPending,
		SourceRunID: runID,
	}
	if err := r.db.WithContext(ctx).Create(&item).Error; err != nil {
		return false, err
	}
	return true, nil
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

// ListOpen returns queue rows awaiting either automation (no resolver status
// yet) or a human verdict, oldest first.
func (r *Repository) ListOpen(ctx context.Context, resolverStatus string, limit int) ([]QueueItem, error) {
	q := r.db.WithContext(ctx).
		Where("human_status = ?", HumanPending).
		Order("created_at ASC")
	if resolverStatus != "" {
		q = q.Where("resolver_status = ?", resolverStatus)
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

// ListUnresolved returns pending rows the automated resolver has not settled:
// never attempted, or previously errored.
func (r *Repository) ListUnresolved(ctx context.Context, limit int) ([]QueueItem, error) {
	q := r.db.WithContext(ctx).
		Where("human_status = ? AND (resolver_status IS NULL OR resolver_status IN ?)",
			HumanPending, []string{"", "ERROR"}).
		Order("created_at ASC")
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

// CloseResolved marks a row as done by automation without a human verdict.
func (r *Repository) CloseResolved(ctx context.Context, queueID, decision, reviewedBy string) error {
	at := time.Now().UTC()
	return r.db.WithContext(ctx).Model(&QueueItem{}).
		Where("queue_id = ?", queueID).
		Updates(map[string]interface{}{
			"human_status":   HumanResolved,
			"human_decision": decision,
			"reviewed_by":    reviewedBy,
			"reviewed_at":    at,
		}).Error
}

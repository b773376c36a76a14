package promote

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Migrate() error {
	return r.db.AutoMigrate(&Place{})
}

// SlugExists reports whether a place already occupies the slug. Existence is
// the promotion idempotency key.
func (r *Repository) SlugExists(ctx context.Context, slug string) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&Place{}).Where("slug = ?", slug).Count(&n).Error
	return n > 0, err
}

func (r *Repository) Insert(ctx context.Context, place *Place) error {
	if place.PlaceID == "" {
		place.PlaceID = uuid.New().String()
	}
	return r.db.WithContext(ctx).Create(place).Error
}

package promote

import (
	"time"

	"gorm.io/datatypes"
)

// Place is the production entity served to the product. Promotion only ever
// inserts new rows here; edits made downstream are never clobbered by a
// pipeline rerun.
type Place struct {
	PlaceID       string         `gorm:"primaryKey;column:place_id"`
	Slug          string         `gorm:"column:slug;uniqueIndex"`
	CanonicalID   string         `gorm:"column:canonical_id;index"`
	Name          string         `gorm:"column:name"`
	AddressStreet string         `gorm:"column:address_street"`
	Neighborhood  string         `gorm:"column:neighborhood"`
	Lat           float64        `gorm:"column:lat"`
	Lng           float64        `gorm:"column:lng"`
	Category      string         `gorm:"column:category"`
	Cuisines      datatypes.JSON `gorm:"column:cuisines"`
	Phone         string         `gorm:"column:phone"`
	Website       string         `gorm:"column:website"`
	Instagram     string         `gorm:"column:instagram_handle"`
	HoursJSON     string         `gorm:"column:hours_json"`
	Description   string         `gorm:"column:description"`
	GooglePlaceID string         `gorm:"column:google_place_id"`
	PromotedAt    time.Time      `gorm:"column:promoted_at"`
	CreatedAt     time.Time      `gorm:"column:created_at"`
	UpdatedAt     time.Time      `gorm:"column:updated_at"`
}

func (Place) TableName() string {
	return "places"
}

// Summary reports one promotion pass.
type Summary struct {
	Considered int
	Promoted   int
	Skipped    int // slug already live
	Ineligible int
	Errors     int
}

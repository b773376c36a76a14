package golden

import (
	"time"

	"gorm.io/datatypes"
)

// Lifecycle and promotion states. Golden records are never hard-deleted,
// only archived.
const (
	LifecycleActive   = "ACTIVE"
	LifecycleArchived = "ARCHIVED"

	PromotionPending   = "PENDING"
	PromotionVerified  = "VERIFIED"
	PromotionPublished = "PUBLISHED"
	PromotionBlocked   = "BLOCKED"
)

// Record is the canonical merged entity for one real-world place. The merge
// metadata columns (field_confidences, winner_sources, field_conflicts) are
// recomputed wholesale by every merger pass; nothing else owns them.
type Record struct {
	CanonicalID   string `gorm:"primaryKey;column:canonical_id"`
	Slug          string `gorm:"column:slug;uniqueIndex"`
	Name          string `gorm:"column:name;index"`
	NameNormalized string `gorm:"column:name_normalized;index"`
	AddressStreet string `gorm:"column:address_street"`
	Neighborhood  string `gorm:"column:neighborhood"`
	Lat           *float64 `gorm:"column:lat"`
	Lng           *float64 `gorm:"column:lng"`
	Category      string         `gorm:"column:category"`
	Cuisines      datatypes.JSON `gorm:"column:cuisines"`
	Phone         string         `gorm:"column:phone"`
	Website       string         `gorm:"column:website"`
	Instagram     string         `gorm:"column:instagram_handle"`
	HoursJSON     string         `gorm:"column:hours_json"`
	Description   string         `gorm:"column:description"`
	GooglePlaceID string         `gorm:"column:google_place_id;index"`

	LifecycleStatus string `gorm:"column:lifecycle_status;default:ACTIVE;index"`
	PromotionStatus string `gorm:"column:promotion_status;default:PENDING;index"`

	Confidence       *float64          `gorm:"column:confidence"`
	MatchConfidence  *float64          `gorm:"column:match_confidence"`
	MergeQuality     *float64          `gorm:"column:merge_quality"`
	FieldConfidences datatypes.JSONMap `gorm:"column:field_confidences"`
	WinnerSources    datatypes.JSONMap `gorm:"column:winner_sources"`
	FieldConflicts   datatypes.JSON    `gorm:"column:field_conflicts"`
	DataCompleteness *float64          `gorm:"column:data_completeness"`
	SourceCount      int               `gorm:"column:source_count"`

	LastResolvedAt *time.Time `gorm:"column:last_resolved_at"`
	CreatedAt      time.Time  `gorm:"column:created_at"`
	UpdatedAt      time.Time  `gorm:"column:updated_at"`
}

func (Record) TableName() string {
	return "golden_records"
}

func (r *Record) HasCoords() bool {
	return r.Lat != nil && r.Lng != nil && !(*r.Lat == 0 && *r.Lng == 0)
}

// Match methods recorded on resolution links.
const (
	MethodIdentifierExact = "identifier_exact"
	MethodGeoName         = "geo_name"
	MethodDedupeModel     = "dedupe_model"
	MethodManualReview    = "manual_review"
	MethodCreated         = "created"
)

// ResolutionLink is an edge between exactly one raw record and exactly one
// golden record. Edges are append-only: re-linking deactivates the prior
// edge rather than deleting it, so a raw record has at most one active link
// and full history is preserved.
type ResolutionLink struct {
	LinkID          string    `gorm:"primaryKey;column:link_id"`
	RawRecordID     string    `gorm:"column:raw_record_id;index"`
	GoldenRecordID  string    `gorm:"column:golden_record_id;index"`
	Confidence      *float64  `gorm:"column:confidence"`
	MatchMethod     string    `gorm:"column:match_method"`
	IsActive        bool      `gorm:"column:is_active;index"`
	ResolverVersion string    `gorm:"column:resolver_version"`
	LinkedBy        string    `gorm:"column:linked_by"`
	CreatedAt       time.Time `gorm:"column:created_at"`
	DeactivatedAt   *time.Time `gorm:"column:deactivated_at"`
}

func (ResolutionLink) TableName() string {
	return "resolution_links"
}

package rawstore

import (
	"time"

	"gorm.io/datatypes"
)

// RawRecord is one ingested observation from one source, keyed by
// (source_name, external_id). Rows are append-only: re-ingestion refreshes
// the payload in place, nothing is ever deleted, and the only downstream
// mutation is the processed flag.
type RawRecord struct {
	RawID          string         `gorm:"primaryKey;column:raw_id"`
	SourceName     string         `gorm:"column:source_name;uniqueIndex:idx_raw_source_external"`
	ExternalID     string         `gorm:"column:external_id;uniqueIndex:idx_raw_source_external"`
	NameNormalized string         `gorm:"column:name_normalized;index"`
	Lat            *float64       `gorm:"column:lat"`
	Lng            *float64       `gorm:"column:lng"`
	Geohash        string         `gorm:"column:geohash;index"`
	RawJSON        datatypes.JSON `gorm:"column:raw_json"`
	IntakeBatchID  string         `gorm:"column:intake_batch_id;index"`
	IsProcessed    bool           `gorm:"column:is_processed;index"`
	ObservedAt     time.Time      `gorm:"column:observed_at"`
	IngestedAt     time.Time      `gorm:"column:ingested_at"`
	UpdatedAt      time.Time      `gorm:"column:updated_at"`
}

func (RawRecord) TableName() string {
	return "raw_records"
}

func (r *RawRecord) HasCoords() bool {
	return r.Lat != nil && r.Lng != nil && !(*r.Lat == 0 && *r.Lng == 0)
}

package review

import (
	"time"

	"gorm.io/datatypes"
)

// Queue item states and the resolutions a reviewer can post.
const (
	StatusPending  = "pending"
	StatusDeferred = "deferred"
	StatusResolved = "resolved"

	ResolutionMerged       = "merged"
	ResolutionKeptSeparate = "kept_separate"
	ResolutionNewCanonical = "new_canonical"
	ResolutionDismissed    = "dismissed"
)

// Conflict types a pending item can carry.
const (
	ConflictLowConfidence  = "low_confidence_match"
	ConflictNameMismatch   = "name_mismatch"
	ConflictGeoMismatch    = "geo_mismatch"
	ConflictAmbiguousMulti = "ambiguous_multi_candidate"
	ConflictAttribute      = "attribute_mismatch"
)

// QueueItem is one pending human decision. It references one or two raw
// records and optionally the golden record in question.
type QueueItem struct {
	QueueID         string         `gorm:"primaryKey;column:queue_id"`
	CanonicalID     string         `gorm:"column:canonical_id;index"`
	RawIDA          string         `gorm:"column:raw_id_a;index"`
	RawIDB          string         `gorm:"column:raw_id_b"`
	ConflictType    string         `gorm:"column:conflict_type;index"`
	MatchConfidence *float64       `gorm:"column:match_confidence"`
	Details         datatypes.JSONMap `gorm:"column:details"`
	Priority        int            `gorm:"column:priority;default:5"`
	Status          string         `gorm:"column:status;default:pending;index"`
	Resolution      string         `gorm:"column:resolution"`
	ResolutionNotes string         `gorm:"column:resolution_notes"`
	ResolvedBy      string         `gorm:"column:resolved_by"`
	ResolvedAt      *time.Time     `gorm:"column:resolved_at"`
	CreatedAt       time.Time      `gorm:"column:created_at"`
	UpdatedAt       time.Time      `gorm:"column:updated_at"`
}

func (QueueItem) TableName() string {
	return "review_queue"
}

// AuditLogEntry records every resolution for operational reporting. Decision
// latency is enqueue-to-resolution wall clock; it feeds backlog dashboards,
// never matching logic.
type AuditLogEntry struct {
	AuditID        string        `gorm:"primaryKey;column:audit_id"`
	QueueID        string        `gorm:"column:queue_id;index"`
	CanonicalID    string        `gorm:"column:canonical_id;index"`
	Resolution     string        `gorm:"column:resolution"`
	ResolvedBy     string        `gorm:"column:resolved_by"`
	DecisionTime   time.Duration `gorm:"column:decision_time_ns"`
	ResolvedAt     time.Time     `gorm:"column:resolved_at"`
}

func (AuditLogEntry) TableName() string {
	return "review_audit_log"
}

// Stats summarizes the queue for the review UI.
type Stats struct {
	Pending  int64            `json:"pending"`
	Resolved int64            `json:"resolved"`
	ByType   map[string]int64 `json:"by_conflict_type"`
}

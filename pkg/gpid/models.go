package gpid

import (
	"time"

	"gorm.io/datatypes"
)

// Human review states and decisions for queued lookups. The resolver status
// lives separately on the row (match.Status values) so an automated outcome
// never hides behind a human one.
const (
	HumanPending  = "PENDING"
	HumanResolved = "RESOLVED"

	DecisionApply         = "APPLY_GPID"
	DecisionMarkNoMatch   = "MARK_NO_MATCH"
	DecisionMarkAmbiguous = "MARK_AMBIGUOUS"
)

// QueueItem is one golden record awaiting an external place id. Seeding is
// idempotent on (canonical_id, human_status=PENDING); reruns find the open
// row and leave it alone.
type QueueItem struct {
	QueueID         string         `gorm:"primaryKey;column:queue_id"`
	CanonicalID     string         `gorm:"column:canonical_id;index"`
	EntityName      string         `gorm:"column:entity_name"`
	CandidateGPID   string         `gorm:"column:candidate_gpid"`
	ResolverStatus  string         `gorm:"column:resolver_status;index"`
	ReasonCode      string         `gorm:"column:reason_code"`
	SimilarityScore *float64       `gorm:"column:similarity_score"`
	CandidatesJSON  datatypes.JSON `gorm:"column:candidates_json"`
	HumanStatus     string         `gorm:"column:human_status;default:PENDING;index"`
	HumanDecision   string         `gorm:"column:human_decision"`
	ReviewedBy      string         `gorm:"column:reviewed_by"`
	ReviewedAt      *time.Time     `gorm:"column:reviewed_at"`
	SourceRunID     string         `gorm:"column:source_run_id"`
	CreatedAt       time.Time      `gorm:"column:created_at"`
	UpdatedAt       time.Time      `gorm:"column:updated_at"`
}

func (QueueItem) TableName() string {
	return "gpid_resolution_queue"
}

// RunSummary reports one automated resolver pass over the queue.
type RunSummary struct {
	Processed int
	Matched   int
	Ambiguous int
	NoMatch   int
	Errors    int
}

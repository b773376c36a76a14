// Package review holds the human adjudication queue for matches the resolver
// could not settle on its own. Resolutions are applied here, audited, and fed
// back into the merge pass.
package review

import (
	"context"
	"fmt"

	"github.com/atlas-maps/platform/pkg/common/kafka"
	"github.com/atlas-maps/platform/pkg/common/logger"
	"github.com/atlas-maps/platform/pkg/golden"
)

// GoldenLinker is the slice of the golden store a resolution needs.
type GoldenLinker interface {
	Link(ctx context.Context, link *golden.ResolutionLink) error
}

// RawMarker marks raw records as consumed by a resolution.
type RawMarker interface {
	MarkProcessed(ctx context.Context, rawIDs []string) error
}

// MergeTrigger recomputes one golden record after its link set changed.
type MergeTrigger interface {
	MergeOne(ctx context.Context, canonicalID string) error
}

// Store is the queue persistence the service drives; *Repository satisfies it.
type Store interface {
	Get(ctx context.Context, queueID string) (*QueueItem, error)
	Update(ctx context.Context, item *QueueItem) error
	RecordAudit(ctx context.Context, entry *AuditLogEntry) error
	ListPending(ctx context.Context, conflictType string, limit int) ([]QueueItem, error)
	QueueStats(ctx context.Context) (*Stats, error)
	EnqueuePair(ctx context.Context, rawIDA, rawIDB, conflictType string, confidence *float64, details map[string]interface{}) (string, error)
}

type Service struct {
	repo     Store
	goldens  GoldenLinker
	raws     RawMarker
	merger   MergeTrigger
	producer *kafka.Producer
}

func NewService(repo Store, goldens GoldenLinker, raws RawMarker, merger MergeTrigger, producer *kafka.Producer) *Service {
	return &Service{repo: repo, goldens: goldens, raws: raws, merger: merger, producer: producer}
}

// Decision is a reviewer's verdict on a queue item.
type Decision struct {
	Resolution  string
	CanonicalID string // target golden record when Resolution is "merged"
	Notes       string
	ResolvedBy  string
}

// Resolve applies a verdict: a merge links the raw record to the chosen
// golden record and triggers a remerge; every outcome marks the raws
// processed, closes the item and writes an audit entry. Resolving an already
// resolved item is a no-op error, never a double apply.
func (s *Service) Resolve(ctx context.Context, queueID string, d Decision) (*QueueItem, error) {
	item, err := s.repo.Get(ctx, queueID)
	if err != nil {
		return nil, err
	}
	if item.Status == StatusResolved {
		return nil, fmt.Errorf("review item %s already resolved", queueID)
	}
	if d.Resolution == ResolutionMerged && d.CanonicalID == "" && item.CanonicalID == "" {
		return nil, fmt.Errorf("merged resolution needs a canonical id")
	}

	target := d.CanonicalID
	if target == "" {
		target = item.CanonicalID
	}

	if d.Resolution == ResolutionMerged {
		if err := s.goldens.Link(ctx, &golden.ResolutionLink{
			RawRecordID:    item.RawIDA,
			GoldenRecordID: target,
			Confidence:     item.MatchConfidence,
			MatchMethod:    golden.MethodManualReview,
			LinkedBy:       d.ResolvedBy,
		}); err != nil {
			return nil, err
		}
	}

	rawIDs := []string{item.RawIDA}
	if item.RawIDB != "" {
		rawIDs = append(rawIDs, item.RawIDB)
	}
	if err := s.raws.MarkProcessed(ctx, rawIDs); err != nil {
		return nil, err
	}

	resolvedAt := now()
	item.Status = StatusResolved
	item.Resolution = d.Resolution
	item.ResolutionNotes = d.Notes
	item.ResolvedBy = d.ResolvedBy
	item.ResolvedAt = &resolvedAt
	item.CanonicalID = target
	if err := s.repo.Update(ctx, item); err != nil {
		return nil, err
	}

	if err := s.repo.RecordAudit(ctx, &AuditLogEntry{
		QueueID:      item.QueueID,
		CanonicalID:  target,
		Resolution:   d.Resolution,
		ResolvedBy:   d.ResolvedBy,
		DecisionTime: resolvedAt.Sub(item.CreatedAt),
		ResolvedAt:   resolvedAt,
	}); err != nil {
		logger.Log.WithError(err).WithField("queue_id", item.QueueID).Warn("audit write failed")
	}

	if d.Resolution == ResolutionMerged && s.merger != nil && target != "" {
		if err := s.merger.MergeOne(ctx, target); err != nil {
			logger.Log.WithError(err).WithField("canonical_id", target).Warn("merge after review failed")
		}
	}

	if s.producer != nil {
		_ = s.producer.PublishEvent(ctx, "review_resolved", "review", map[string]interface{}{
			"queue_id":   item.QueueID,
			"resolution": d.Resolution,
		})
	}
	return item, nil
}

// Defer pushes an item back with decayed priority so skipped work sinks in
// the worklist instead of resurfacing first.
func (s *Service) Defer(ctx context.Context, queueID string) (*QueueItem, error) {
	item, err := s.repo.Get(ctx, queueID)
	if err != nil {
		return nil, err
	}
	if item.Status == StatusResolved {
		return nil, fmt.Errorf("review item %s already resolved", queueID)
	}
	item.Status = StatusDeferred
	if item.Priority > 0 {
		item.Priority--
	}
	if err := s.repo.Update(ctx, item); err != nil {
		return nil, err
	}
	return item, nil
}

// FilePair queues a suspected duplicate pair of raw records for a human
// verdict. Used by curators who spot duplicates the resolver missed.
func (s *Service) FilePair(ctx context.Context, rawIDA, rawIDB, conflictType string, confidence *float64, details map[string]interface{}) (string, error) {
	if rawIDA == "" || rawIDB == "" {
		return "", fmt.Errorf("a duplicate pair needs both raw record ids")
	}
	if conflictType == "" {
		conflictType = ConflictAttribute
	}
	return s.repo.EnqueuePair(ctx, rawIDA, rawIDB, conflictType, confidence, details)
}

func (s *Service) Pending(ctx context.Context, conflictType string, limit int) ([]QueueItem, error) {
	return s.repo.ListPending(ctx, conflictType, limit)
}

func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	return s.repo.QueueStats(ctx)
}

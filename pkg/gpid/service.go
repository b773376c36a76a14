// Package gpid backfills external place ids on golden records: a seed pass
// queues records missing an id, an automated pass resolves what it can
// through the search provider, and humans adjudicate the rest.
package gpid

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/atlas-maps/platform/pkg/common/kafka"
	"github.com/atlas-maps/platform/pkg/common/logger"
	"github.com/atlas-maps/platform/pkg/golden"
	"github.com/atlas-maps/platform/pkg/match"
	"github.com/atlas-maps/platform/pkg/places"
)

// GoldenRepo is the slice of the golden store the resolver needs.
type GoldenRepo interface {
	Get(ctx context.Context, canonicalID string) (*golden.Record, error)
	MissingGPID(ctx context.Context, limit int) ([]golden.Record, error)
	SetGPID(ctx context.Context, canonicalID, gpid string) error
}

// Store is the queue persistence; *Repository satisfies it.
type Store interface {
	Seed(ctx context.Context, canonicalID, entityName, runID string) (bool, error)
	Get(ctx context.Context, queueID string) (*QueueItem, error)
	ListOpen(ctx context.Context, resolverStatus string, limit int) ([]QueueItem, error)
	ListUnresolved(ctx context.Context, limit int) ([]QueueItem, error)
	Update(ctx context.Context, item *QueueItem) error
	CloseResolved(ctx context.Context, queueID, decision, reviewedBy string) error
}

type Service struct {
	store    Store
	goldens  GoldenRepo
	matcher  *match.Matcher
	client   places.SearchClient
	producer *kafka.Producer
}

func NewService(store Store, goldens GoldenRepo, matcher *match.Matcher, client places.SearchClient, producer *kafka.Producer) *Service {
	return &Service{store: store, goldens: goldens, matcher: matcher, client: client, producer: producer}
}

// Seed queues every active golden record still missing an external id.
// Reruns are no-ops for records already queued.
func (s *Service) Seed(ctx context.Context, runID string, limit int) (seeded, skipped int, err error) {
	records, err := s.goldens.MissingGPID(ctx, limit)
	if err != nil {
		return 0, 0, err
	}
	for i := range records {
		created, err := s.store.Seed(ctx, records[i].CanonicalID, records[i].Name, runID)
		if err != nil {
			return seeded, skipped, err
		}
		if created {
			seeded++
		} else {
			skipped++
		}
	}
	logger.Log.WithFields(map[string]interface{}{
		"run_id": runID, "seeded": seeded, "skipped": skipped,
	}).Info("gpid queue seeded")
	return seeded, skipped, nil
}

// Run resolves open queue rows sequentially through the search provider. A
// confident MATCH is applied to the golden record immediately; AMBIGUOUS and
// NO_MATCH park on the row for human review; provider failures mark the row
// ERROR and the pass keeps going. Commit=false previews without writing.
func (s *Service) Run(ctx context.Context, limit int, commit bool) (*RunSummary, error) {
	items, err := s.store.ListUnresolved(ctx, limit)
	if err != nil {
		return nil, err
	}

	summary := &RunSummary{}
	for i := range items {
		item := &items[i]
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		s.runOne(ctx, item, commit, summary)
	}

	if commit && s.producer != nil {
		_ = s.producer.PublishEvent(ctx, "gpid_run", "gpid-resolver", map[string]interface{}{
			"processed": summary.Processed,
			"matched":   summary.Matched,
			"ambiguous": summary.Ambiguous,
			"no_match":  summary.NoMatch,
			"errors":    summary.Errors,
		})
	}
	return summary, nil
}

func (s *Service) runOne(ctx context.Context, item *QueueItem, commit bool, summary *RunSummary) {
	summary.Processed++
	log := logger.Log.WithField("queue_id", item.QueueID)

	rec, err := s.goldens.Get(ctx, item.CanonicalID)
	if err != nil {
		log.WithError(err).Error("golden lookup failed")
		summary.Errors++
		return
	}

	result := s.matcher.ResolveGPID(ctx, s.client, rec.Name, rec.GooglePlaceID, rec.Lat, rec.Lng)

	item.ResolverStatus = string(result.Status)
	item.ReasonCode = result.Reason
	if result.Status == match.StatusMatch {
		item.CandidateGPID = result.CandidateID
		score := result.Score
		item.SimilarityScore = &score
	}
	if len(result.Candidates) > 0 {
		if b, err := json.Marshal(result.Candidates); err == nil {
			item.CandidatesJSON = b
		}
	}

	switch result.Status {
	case match.StatusMatch:
		summary.Matched++
	case match.StatusAmbiguous:
		summary.Ambiguous++
	case match.StatusNoMatch:
		summary.NoMatch++
	default:
		summary.Errors++
	}

	if !commit {
		return
	}
	if err := s.store.Update(ctx, item); err != nil {
		log.WithError(err).Error("queue update failed")
		summary.Errors++
		return
	}
	if result.Status != match.StatusMatch {
		return
	}
	if err := s.goldens.SetGPID(ctx, item.CanonicalID, result.CandidateID); err != nil {
		log.WithError(err).Error("gpid apply failed")
		summary.Errors++
		return
	}
	if err := s.store.CloseResolved(ctx, item.QueueID, DecisionApply, "resolver"); err != nil {
		log.WithError(err).Warn("queue close failed")
	}
}

// Adjudicate applies a human verdict to a queued lookup. APPLY_GPID writes
// the id (the reviewer may override the candidate); the mark decisions just
// close the row.
func (s *Service) Adjudicate(ctx context.Context, queueID, decision, gpidOverride, reviewedBy string) (*QueueItem, error) {
	item, err := s.store.Get(ctx, queueID)
	if err != nil {
		return nil, err
	}
	if item.HumanStatus == HumanResolved {
		return nil, fmt.Errorf("gpid item %s already resolved", queueID)
	}

	switch decision {
	case DecisionApply:
		id := gpidOverride
		if id == "" {
			id = item.CandidateGPID
		}
		if id == "" {
			return nil, fmt.Errorf("apply decision needs a place id")
		}
		if err := s.goldens.SetGPID(ctx, item.CanonicalID, id); err != nil {
			return nil, err
		}
		item.CandidateGPID = id
	case DecisionMarkNoMatch, DecisionMarkAmbiguous:
		// close only
	default:
		return nil, fmt.Errorf("unknown decision %q", decision)
	}

	if err := s.store.CloseResolved(ctx, queueID, decision, reviewedBy); err != nil {
		return nil, err
	}
	return s.store.Get(ctx, queueID)
}

// Open lists pending rows, optionally filtered by resolver status.
func (s *Service) Open(ctx context.Context, resolverStatus string, limit int) ([]QueueItem, error) {
	return s.store.ListOpen(ctx, resolverStatus, limit)
}

package match

import (
	"context"
	"time"

	"github.com/atlas-maps/platform/pkg/common/kafka"
	"github.com/atlas-maps/platform/pkg/common/logger"
	"github.com/atlas-maps/platform/pkg/golden"
	"github.com/atlas-maps/platform/pkg/rawstore"
)

const resolverVersion = "golden-first-v2"

// RawRepo is the slice of the raw store the resolver needs.
type RawRepo interface {
	ListUnprocessed(ctx context.Context, batchID string, limit int) ([]rawstore.RawRecord, error)
	MarkProcessed(ctx context.Context, rawIDs []string) error
}

// GoldenRepo is the slice of the golden store the resolver needs.
type GoldenRepo interface {
	FindByGPID(ctx context.Context, gpid string) (*golden.Record, error)
	FindNearby(ctx context.Context, lat, lng, radiusMeters float64) ([]golden.Record, error)
	FindByNormalizedName(ctx context.Context, nameNormalized string) ([]golden.Record, error)
	Create(ctx context.Context, rec *golden.Record) error
	UniqueSlug(ctx context.Context, name, neighborhood string) (string, error)
	Link(ctx context.Context, link *golden.ResolutionLink) error
}

// ReviewEnqueuer accepts ambiguous cases for human adjudication.
type ReviewEnqueuer interface {
	EnqueueAmbiguous(ctx context.Context, rawID, goldenID, conflictType string, confidence *float64, details map[string]interface{}) (string, error)
}

// MergeTrigger recomputes one golden record after its link set changed.
type MergeTrigger interface {
	MergeOne(ctx context.Context, canonicalID string) error
}

type Service struct {
	raws     RawRepo
	goldens  GoldenRepo
	matcher  *Matcher
	reviews  ReviewEnqueuer
	merger   MergeTrigger
	producer *kafka.Producer
}

func NewService(raws RawRepo, goldens GoldenRepo, matcher *Matcher, reviews ReviewEnqueuer, merger MergeTrigger, producer *kafka.Producer) *Service {
	return &Service{raws: raws, goldens: goldens, matcher: matcher, reviews: reviews, merger: merger, producer: producer}
}

// BatchOptions controls one resolver run. Commit=false is the dry-run
// default; CreateMissing gates golden-record creation for confident
// no-matches so a plain matching pass never grows the golden set.
type BatchOptions struct {
	BatchID       string
	Limit         int
	Commit        bool
	CreateMissing bool
}

// Summary reports per-row outcomes. The job's exit status reflects whether
// the run happened, not whether every row matched; partial failure is the
// steady state.
type Summary struct {
	Read      int
	Matched   int
	Created   int
	Ambiguous int
	NoMatch   int
	Skipped   int
	Errors    int
}

// ResolveBatch streams unprocessed raw records in stable order and resolves
// each one independently: identifier-exact first, then geo-proximity, then
// normalized-name. One bad row never aborts the run.
func (s *Service) ResolveBatch(ctx context.Context, opts BatchOptions) (*Summary, error) {
	records, err := s.raws.ListUnprocessed(ctx, opts.BatchID, opts.Limit)
	if err != nil {
		return nil, err
	}

	summary := &Summary{Read: len(records)}
	for i := range records {
		raw := &records[i]
		s.resolveOne(ctx, raw, opts, summary)
	}

	if opts.Commit && s.producer != nil {
		_ = s.producer.PublishEvent(ctx, "resolve", "resolver", map[string]interface{}{
			"batch_id":  opts.BatchID,
			"read":      summary.Read,
			"matched":   summary.Matched,
			"created":   summary.Created,
			"ambiguous": summary.Ambiguous,
			"no_match":  summary.NoMatch,
			"errors":    summary.Errors,
		})
	}
	return summary, nil
}

func (s *Service) resolveOne(ctx context.Context, raw *rawstore.RawRecord, opts BatchOptions, summary *Summary) {
	log := logger.Log.WithField("raw_id", raw.RawID)

	fields, err := rawstore.Extract(raw.SourceName, raw.RawJSON)
	if err != nil {
		log.WithError(err).Warn("undecodable payload, skipping")
		summary.Skipped++
		return
	}
	name := fields.Name
	if name == "" {
		log.Warn("payload missing name, skipping")
		summary.Skipped++
		return
	}

	result, err := s.matchOne(ctx, raw, fields)
	if err != nil {
		log.WithError(err).Error("match failed")
		summary.Errors++
		return
	}

	switch result.Status {
	case StatusMatch:
		summary.Matched++
		if !opts.Commit {
			return
		}
		if err := s.commitMatch(ctx, raw, result); err != nil {
			log.WithError(err).Error("link failed")
			summary.Matched--
			summary.Errors++
		}
	case StatusAmbiguous:
		summary.Ambiguous++
		if !opts.Commit || s.reviews == nil {
			return
		}
		details := map[string]interface{}{"reason": result.Reason, "source": raw.SourceName}
		if _, err := s.reviews.EnqueueAmbiguous(ctx, raw.RawID, "", "ambiguous_multi_candidate", nil, details); err != nil {
			log.WithError(err).Error("enqueue failed")
			summary.Errors++
		}
	case StatusNoMatch:
		if !opts.CreateMissing {
			summary.NoMatch++
			return
		}
		summary.Created++
		if !opts.Commit {
			return
		}
		if err := s.createGolden(ctx, raw, fields); err != nil {
			log.WithError(err).Error("create golden failed")
			summary.Created--
			summary.Errors++
		}
	default:
		summary.Errors++
		log.WithField("reason", result.Reason).Error("match error")
	}
}

// matchOne applies the strategies in priority order. An existing external id
// short-circuits everything else.
func (s *Service) matchOne(ctx context.Context, raw *rawstore.RawRecord, fields *rawstore.Fields) (Result, error) {
	if fields.GPID != "" {
		rec, err := s.goldens.FindByGPID(ctx, fields.GPID)
		if err != nil && err != golden.ErrNotFound {
			return Result{}, err
		}
		if rec != nil {
			return Result{
				Status:      StatusMatch,
				CandidateID: rec.CanonicalID,
				Score:       1.0,
				Method:      golden.MethodIdentifierExact,
				Reason:      ReasonIdentifierExact,
			}, nil
		}
	}

	if raw.HasCoords() {
		nearby, err := s.goldens.FindNearby(ctx, *raw.Lat, *raw.Lng, s.matcher.radiusMeters)
		if err != nil {
			return Result{}, err
		}
		result := s.matcher.BestNearby(fields.Name, *raw.Lat, *raw.Lng, toCandidates(nearby))
		if result.Status == StatusMatch {
			result.Method = golden.MethodGeoName
			return result, nil
		}
	}

	byName, err := s.goldens.FindByNormalizedName(ctx, raw.NameNormalized)
	if err != nil {
		return Result{}, err
	}
	result := s.matcher.MatchByName(toCandidates(byName))
	if result.Status == StatusMatch {
		result.Method = golden.MethodDedupeModel
	}
	return result, nil
}

func (s *Service) commitMatch(ctx context.Context, raw *rawstore.RawRecord, result Result) error {
	conf := result.Score
	if err := s.goldens.Link(ctx, &golden.ResolutionLink{
		RawRecordID:     raw.RawID,
		GoldenRecordID:  result.CandidateID,
		Confidence:      &conf,
		MatchMethod:     result.Method,
		ResolverVersion: resolverVersion,
		LinkedBy:        "resolver",
	}); err != nil {
		return err
	}
	if err := s.raws.MarkProcessed(ctx, []string{raw.RawID}); err != nil {
		return err
	}
	if s.merger != nil {
		if err := s.merger.MergeOne(ctx, result.CandidateID); err != nil {
			logger.Log.WithError(err).WithField("canonical_id", result.CandidateID).Warn("merge after link failed")
		}
	}
	return nil
}

// createGolden materializes a new golden record from a confident no-match.
// Confidence starts at 0.8 with coordinates, 0.5 without.
func (s *Service) createGolden(ctx context.Context, raw *rawstore.RawRecord, fields *rawstore.Fields) error {
	slug, err := s.goldens.UniqueSlug(ctx, fields.Name, fields.Neighborhood)
	if err != nil {
		return err
	}

	conf := 0.5
	if raw.HasCoords() {
		conf = 0.8
	}
	now := time.Now().UTC()
	rec := &golden.Record{
		Slug:           slug,
		Name:           fields.Name,
		NameNormalized: raw.NameNormalized,
		AddressStreet:  fields.AddressStreet,
		Neighborhood:   fields.Neighborhood,
		Lat:            raw.Lat,
		Lng:            raw.Lng,
		Category:       fields.Category,
		GooglePlaceID:  fields.GPID,
		Confidence:     &conf,
		SourceCount:    1,
		LastResolvedAt: &now,
	}
	if err := s.goldens.Create(ctx, rec); err != nil {
		return err
	}

	if err := s.goldens.Link(ctx, &golden.ResolutionLink{
		RawRecordID:     raw.RawID,
		GoldenRecordID:  rec.CanonicalID,
		Confidence:      &conf,
		MatchMethod:     golden.MethodCreated,
		ResolverVersion: resolverVersion,
		LinkedBy:        "resolver",
	}); err != nil {
		return err
	}
	if err := s.raws.MarkProcessed(ctx, []string{raw.RawID}); err != nil {
		return err
	}
	if s.merger != nil {
		if err := s.merger.MergeOne(ctx, rec.CanonicalID); err != nil {
			logger.Log.WithError(err).WithField("canonical_id", rec.CanonicalID).Warn("merge after create failed")
		}
	}
	return nil
}

func toCandidates(recs []golden.Record) []Candidate {
	out := make([]Candidate, 0, len(recs))
	for i := range recs {
		out = append(out, Candidate{
			ID:   recs[i].CanonicalID,
			Name: recs[i].Name,
			Lat:  recs[i].Lat,
			Lng:  recs[i].Lng,
		})
	}
	return out
}

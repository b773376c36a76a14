// Package promote pushes merge-complete golden records into the production
// place table. Promotion is insert-only and double-gated: a run writes
// nothing unless both the commit flag and the explicit production-write flag
// are set.
package promote

import (
	"context"
	"time"

	"github.com/atlas-maps/platform/pkg/common/kafka"
	"github.com/atlas-maps/platform/pkg/common/logger"
	"github.com/atlas-maps/platform/pkg/golden"
)

// GoldenSource lists promotion candidates.
type GoldenSource interface {
	ListActive(ctx context.Context, limit int) ([]golden.Record, error)
}

// PlaceStore is the production table surface; *Repository satisfies it.
type PlaceStore interface {
	SlugExists(ctx context.Context, slug string) (bool, error)
	Insert(ctx context.Context, place *Place) error
}

type Service struct {
	goldens  GoldenSource
	places   PlaceStore
	producer *kafka.Producer
}

func NewService(goldens GoldenSource, places PlaceStore, producer *kafka.Producer) *Service {
	return &Service{goldens: goldens, places: places, producer: producer}
}

// Options controls one promotion pass.
type Options struct {
	Threshold        float64 // minimum confidence, default 0.7
	Limit            int
	Commit           bool
	AllowPlacesWrite bool
}

// Run promotes every eligible golden record whose slug is not already live.
// Eligibility: confidence at or above the threshold, coordinates present,
// and a promotion status that is not BLOCKED. Existing slugs count as
// skipped, which makes reruns safe.
func (s *Service) Run(ctx context.Context, opts Options) (*Summary, error) {
	if opts.Threshold <= 0 {
		opts.Threshold = 0.7
	}
	write := opts.Commit && opts.AllowPlacesWrite

	records, err := s.goldens.ListActive(ctx, opts.Limit)
	if err != nil {
		return nil, err
	}

	summary := &Summary{Considered: len(records)}
	for i := range records {
		rec := &records[i]
		log := logger.Log.WithField("canonical_id", rec.CanonicalID)

		if !eligible(rec, opts.Threshold) {
			summary.Ineligible++
			continue
		}

		exists, err := s.places.SlugExists(ctx, rec.Slug)
		if err != nil {
			log.WithError(err).Error("slug check failed")
			summary.Errors++
			continue
		}
		if exists {
			summary.Skipped++
			continue
		}

		summary.Promoted++
		if !write {
			continue
		}
		if err := s.places.Insert(ctx, toPlace(rec)); err != nil {
			log.WithError(err).Error("place insert failed")
			summary.Promoted--
			summary.Errors++
		}
	}

	if write && s.producer != nil {
		_ = s.producer.PublishEvent(ctx, "promote", "promoter", map[string]interface{}{
			"considered": summary.Considered,
			"promoted":   summary.Promoted,
			"skipped":    summary.Skipped,
		})
	}
	logger.Log.WithFields(map[string]interface{}{
		"considered": summary.Considered,
		"promoted":   summary.Promoted,
		"skipped":    summary.Skipped,
		"ineligible": summary.Ineligible,
		"errors":     summary.Errors,
		"write":      write,
	}).Info("promotion pass finished")
	return summary, nil
}

func eligible(rec *golden.Record, threshold float64) bool {
	if rec.Confidence == nil || *rec.Confidence < threshold {
		return false
	}
	if !rec.HasCoords() {
		return false
	}
	switch rec.PromotionStatus {
	case golden.PromotionPending, golden.PromotionVerified, golden.PromotionPublished:
		return true
	}
	return false
}

func toPlace(rec *golden.Record) *Place {
	return &Place{
		Slug:          rec.Slug,
		CanonicalID:   rec.CanonicalID,
		Name:          rec.Name,
		AddressStreet: rec.AddressStreet,
		Neighborhood:  rec.Neighborhood,
		Lat:           *rec.Lat,
		Lng:           *rec.Lng,
		Category:      rec.Category,
		Cuisines:      rec.Cuisines,
		Phone:         rec.Phone,
		Website:       rec.Website,
		Instagram:     rec.Instagram,
		HoursJSON:     rec.HoursJSON,
		Description:   rec.Description,
		GooglePlaceID: rec.GooglePlaceID,
		PromotedAt:    time.Now().UTC(),
	}
}

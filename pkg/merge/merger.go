// Package merge rebuilds golden records from their active raw-record links:
// per-field survivorship by source trust, field confidences with provenance,
// conflict flags and the aggregate merge quality. The recomputation is pure
// over the rows it reads, so batch reruns are idempotent.
package merge

import (
	"context"
	"encoding/json"
	"time"

	"github.com/atlas-maps/platform/pkg/common/kafka"
	"github.com/atlas-maps/platform/pkg/common/logger"
	"github.com/atlas-maps/platform/pkg/golden"
	"github.com/atlas-maps/platform/pkg/normalize"
	"github.com/atlas-maps/platform/pkg/rawstore"
)

// CriticalFields are the tracked survivorship fields, in report order.
var CriticalFields = []string{
	"name",
	"address_street",
	"lat",
	"lng",
	"phone",
	"website",
	"hours",
	"category",
	"cuisines",
	"instagram_handle",
	"neighborhood",
	"description",
}

// Boosts adjust the winner's base trust confidence: agreement between two or
// more sources raises it, any disagreement lowers it, and a geocoded address
// earns a small bonus. Scores clamp to [0,1].
type Boosts struct {
	Agreement float64
	Conflict  float64
	Geocode   float64
}

var DefaultBoosts = Boosts{Agreement: 0.05, Conflict: 0.05, Geocode: 0.05}

type GoldenRepo interface {
	Get(ctx context.Context, canonicalID string) (*golden.Record, error)
	Save(ctx context.Context, rec *golden.Record) error
	ActiveLinks(ctx context.Context, goldenRecordID string) ([]golden.ResolutionLink, error)
	LinkedCanonicalIDs(ctx context.Context, limit int) ([]string, error)
}

type RawRepo interface {
	FindByIDs(ctx context.Context, rawIDs []string) ([]rawstore.RawRecord, error)
}

type Service struct {
	goldens  GoldenRepo
	raws     RawRepo
	trust    *TrustTable
	boosts   Boosts
	producer *kafka.Producer
}

func NewService(goldens GoldenRepo, raws RawRepo, trust *TrustTable, producer *kafka.Producer) *Service {
	return &Service{goldens: goldens, raws: raws, trust: trust, boosts: DefaultBoosts, producer: producer}
}

// observation is one source's view of one golden record.
type observation struct {
	source string
	fields *rawstore.Fields
	conf   *float64 // link confidence
}

// MergeOne recomputes a single golden record from its active links and
// persists the result.
func (s *Service) MergeOne(ctx context.Context, canonicalID string) error {
	rec, obs, links, err := s.load(ctx, canonicalID)
	if err != nil {
		return err
	}
	s.recompute(rec, obs, links)
	return s.goldens.Save(ctx, rec)
}

// Preview recomputes without persisting, for dry runs.
func (s *Service) Preview(ctx context.Context, canonicalID string) (*golden.Record, error) {
	rec, obs, links, err := s.load(ctx, canonicalID)
	if err != nil {
		return nil, err
	}
	s.recompute(rec, obs, links)
	return rec, nil
}

// MergeAll re-runs the merge over every golden record with active links.
// Per-record failures are logged and counted; the pass continues.
func (s *Service) MergeAll(ctx context.Context, limit int, commit bool) (updated, failed int, err error) {
	ids, err := s.goldens.LinkedCanonicalIDs(ctx, limit)
	if err != nil {
		return 0, 0, err
	}
	for _, id := range ids {
		if !commit {
			if _, err := s.Preview(ctx, id); err != nil {
				logger.Log.WithError(err).WithField("canonical_id", id).Error("merge preview failed")
				failed++
				continue
			}
			updated++
			continue
		}
		if err := s.MergeOne(ctx, id); err != nil {
			logger.Log.WithError(err).WithField("canonical_id", id).Error("merge failed")
			failed++
			continue
		}
		updated++
	}

	if commit && s.producer != nil {
		_ = s.producer.PublishEvent(ctx, "merge", "merger", map[string]interface{}{
			"updated": updated,
			"failed":  failed,
		})
	}
	return updated, failed, nil
}

func (s *Service) load(ctx context.Context, canonicalID string) (*golden.Record, []observation, []golden.ResolutionLink, error) {
	rec, err := s.goldens.Get(ctx, canonicalID)
	if err != nil {
		return nil, nil, nil, err
	}
	links, err := s.goldens.ActiveLinks(ctx, canonicalID)
	if err != nil {
		return nil, nil, nil, err
	}

	rawIDs := make([]string, 0, len(links))
	confByRaw := make(map[string]*float64, len(links))
	for _, l := range links {
		rawIDs = append(rawIDs, l.RawRecordID)
		confByRaw[l.RawRecordID] = l.Confidence
	}
	raws, err := s.raws.FindByIDs(ctx, rawIDs)
	if err != nil {
		return nil, nil, nil, err
	}

	obs := make([]observation, 0, len(raws))
	for i := range raws {
		raw := &raws[i]
		fields, err := rawstore.Extract(raw.SourceName, raw.RawJSON)
		if err != nil {
			logger.Log.WithError(err).WithField("raw_id", raw.RawID).Warn("skipping undecodable payload in merge")
			continue
		}
		obs = append(obs, observation{source: raw.SourceName, fields: fields, conf: confByRaw[raw.RawID]})
	}
	return rec, obs, links, nil
}

// recompute applies survivorship over the observations and rewrites the
// record's merged fields and metadata in place.
func (s *Service) recompute(rec *golden.Record, obs []observation, links []golden.ResolutionLink) {
	fieldConfidences := map[string]interface{}{}
	winnerSources := map[string]interface{}{}
	var conflicts []string

	hasCoords := rec.HasCoords()
	for _, o := range obs {
		if o.fields.Lat != nil && o.fields.Lng != nil {
			hasCoords = true
			break
		}
	}

	for _, field := range CriticalFields {
		winner, conf, conflicted := s.surviveField(field, obs, hasCoords)
		if conflicted {
			conflicts = append(conflicts, field)
		}
		if winner == nil {
			// No ranked source supplies this field; it stays unscored and
			// keeps whatever value the record already has.
			continue
		}
		winnerSources[field] = winner.source
		fieldConfidences[field] = conf
		applyWinner(rec, field, winner.fields)
	}

	// match_confidence: max active link confidence, else the stored value.
	rec.MatchConfidence = maxLinkConfidence(links, rec.Confidence)

	// merge_quality: arithmetic mean of populated field confidences; NULL
	// when nothing is scored (never zero).
	if len(fieldConfidences) > 0 {
		sum := 0.0
		for _, v := range fieldConfidences {
			sum += v.(float64)
		}
		q := sum / float64(len(fieldConfidences))
		rec.MergeQuality = &q
	} else {
		rec.MergeQuality = nil
	}

	rec.FieldConfidences = fieldConfidences
	rec.WinnerSources = winnerSources
	if len(conflicts) > 0 {
		b, _ := json.Marshal(conflicts)
		rec.FieldConflicts = b
	} else {
		rec.FieldConflicts = nil
	}

	rec.DataCompleteness = completeness(rec)
	rec.SourceCount = len(links)
	now := time.Now().UTC()
	rec.LastResolvedAt = &now
}

// surviveField picks the winning observation for one field. The winner is
// the highest-ranked source supplying a non-empty value; disagreement is
// flagged but never blocks the win. Returns nil when no ranked source
// supplies the field.
func (s *Service) surviveField(field string, obs []observation, hasCoords bool) (winner *observation, confidence float64, conflicted bool) {
	type supplied struct {
		o    *observation
		norm string
		rank int
	}
	var candidates []supplied
	distinct := map[string]struct{}{}

	for i := range obs {
		o := &obs[i]
		value := o.fields.Value(field)
		if value == "" {
			continue
		}
		rank, ranked := s.trust.Rank(o.source)
		norm := normalize.ForField(field, value)
		if norm == "" {
			continue
		}
		distinct[norm] = struct{}{}
		if !ranked {
			continue
		}
		candidates = append(candidates, supplied{o: o, norm: norm, rank: rank})
	}

	conflicted = len(distinct) > 1
	if len(candidates) == 0 {
		return nil, 0, conflicted
	}

	best := candidates[0]
	for _, c := range candidates[1:] {
		if c.rank > best.rank {
			best = c
		}
	}

	base, _ := s.trust.Confidence(best.o.source)
	score := base

	agreeing := 0
	for _, c := range candidates {
		if c.norm == best.norm {
			agreeing++
		}
	}
	if agreeing >= 2 {
		score += s.boosts.Agreement
	}
	if conflicted {
		score -= s.boosts.Conflict
	}
	if (field == "address_street") && hasCoords {
		score += s.boosts.Geocode
	}
	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}
	return best.o, score, conflicted
}

// applyWinner writes the winning raw value onto the golden record.
func applyWinner(rec *golden.Record, field string, f *rawstore.Fields) {
	switch field {
	case "name":
		rec.Name = f.Name
		rec.NameNormalized = normalize.Name(f.Name)
	case "address_street":
		rec.AddressStreet = f.AddressStreet
	case "lat":
		rec.Lat = f.Lat
	case "lng":
		rec.Lng = f.Lng
	case "phone":
		rec.Phone = f.Phone
	case "website":
		rec.Website = f.Website
	case "hours":
		rec.HoursJSON = f.Hours
	case "category":
		rec.Category = f.Category
	case "cuisines":
		b, _ := json.Marshal(f.Cuisines)
		rec.Cuisines = b
	case "instagram_handle":
		rec.Instagram = f.Instagram
	case "neighborhood":
		rec.Neighborhood = f.Neighborhood
	case "description":
		rec.Description = f.Description
	}
}

func maxLinkConfidence(links []golden.ResolutionLink, fallback *float64) *float64 {
	var best *float64
	for _, l := range links {
		if l.Confidence == nil {
			continue
		}
		if best == nil || *l.Confidence > *best {
			v := *l.Confidence
			best = &v
		}
	}
	if best == nil {
		return fallback
	}
	return best
}

// completeness is the filled share of the required display fields.
func completeness(rec *golden.Record) *float64 {
	required := 7.0
	filled := 0.0
	if rec.Name != "" {
		filled++
	}
	if rec.Lat != nil {
		filled++
	}
	if rec.Lng != nil {
		filled++
	}
	if rec.Neighborhood != "" {
		filled++
	}
	if rec.Category != "" {
		filled++
	}
	if rec.Phone != "" {
		filled++
	}
	if rec.Website != "" {
		filled++
	}
	v := filled / required
	return &v
}

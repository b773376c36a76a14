// Package match computes candidate links between raw records and golden
// records, and resolves external place ids through the search provider. All
// acceptance rules live here; repositories and services stay mechanical.
package match

import (
	"context"
	"fmt"
	"math"

	"github.com/atlas-maps/platform/pkg/common/models"
	"github.com/atlas-maps/platform/pkg/places"
	"github.com/atlas-maps/platform/pkg/similarity"
)

// Candidate is one existing golden record offered to the matcher.
type Candidate struct {
	ID   string
	Name string
	Lat  *float64
	Lng  *float64
}

type Matcher struct {
	radiusMeters    float64
	simThreshold    float64
	textQuerySuffix string
	textMaxResults  int
}

func NewMatcher(radiusMeters, simThreshold float64, textQuerySuffix string, textMaxResults int) *Matcher {
	if radiusMeters <= 0 {
		radiusMeters = 200
	}
	if simThreshold <= 0 {
		simThreshold = 0.85
	}
	if textMaxResults <= 0 {
		textMaxResults = 5
	}
	return &Matcher{
		radiusMeters:    radiusMeters,
		simThreshold:    simThreshold,
		textQuerySuffix: textQuerySuffix,
		textMaxResults:  textMaxResults,
	}
}

// nameSimilarity is the order-independent token-sort score used everywhere.
func (m *Matcher) nameSimilarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	return similarity.TokenSortRatio(a, b)
}

// BestNearby picks the strongest candidate within the radius. Acceptance
// needs BOTH similarity >= threshold AND distance <= radius; ties break on
// similarity first, then distance. Returns a NO_MATCH result when the best
// candidate fails either bound.
func (m *Matcher) BestNearby(name string, lat, lng float64, candidates []Candidate) Result {
	var best *Candidate
	bestScore := 0.0
	bestDist := math.Inf(1)

	for i := range candidates {
		c := candidates[i]
		if c.Lat == nil || c.Lng == nil {
			continue
		}
		score := m.nameSimilarity(name, c.Name)
		dist := similarity.HaversineMeters(lat, lng, *c.Lat, *c.Lng)
		if score > bestScore || (score == bestScore && dist < bestDist) {
			bestScore = score
			bestDist = dist
			best = &candidates[i]
		}
	}

	if best == nil || bestScore < m.simThreshold || bestDist > m.radiusMeters {
		return Result{Status: StatusNoMatch, Reason: ReasonNearbyNoCandidate}
	}
	return Result{
		Status:      StatusMatch,
		CandidateID: best.ID,
		Score:       bestScore,
		DistanceM:   bestDist,
		Reason:      ReasonNearbyStrongMatch,
	}
}

// MatchByName resolves against exact normalized-name candidates: one hit is
// a match, several are ambiguous (multiplicity is the signal, never broken
// by score).
func (m *Matcher) MatchByName(candidates []Candidate) Result {
	switch len(candidates) {
	case 0:
		return Result{Status: StatusNoMatch, Reason: ReasonNameExact}
	case 1:
		return Result{
			Status:      StatusMatch,
			CandidateID: candidates[0].ID,
			Score:       1.0,
			Reason:      ReasonNameExact,
		}
	default:
		return Result{Status: StatusAmbiguous, Reason: ReasonNameMultiMatch}
	}
}

// ResolveGPID backfills an external place id: existing value short-circuits,
// then nearby search inside the radius, then a single-result text search.
// Provider failures become a terminal ERROR carrying a truncated diagnostic
// so the caller can keep processing the batch.
func (m *Matcher) ResolveGPID(ctx context.Context, client places.SearchClient, name, existingGPID string, lat, lng *float64) Result {
	if existingGPID != "" {
		return Result{
			Status:      StatusMatch,
			CandidateID: existingGPID,
			Score:       1.0,
			Reason:      ReasonExistingGPID,
		}
	}

	hasCoords := lat != nil && lng != nil && (models.GeoPoint{Lat: *lat, Lng: *lng}).Valid()

	if hasCoords {
		nearby, err := client.NearbySearch(ctx, *lat, *lng, m.radiusMeters)
		if err != nil {
			return errorResult(err)
		}
		if r := m.bestNearbyPlace(name, *lat, *lng, nearby); r != nil {
			return *r
		}
	}

	textResults, err := client.SearchPlace(ctx, name+m.textQuerySuffix, m.textMaxResults)
	if err != nil {
		return errorResult(err)
	}

	if len(textResults) == 1 {
		score := m.nameSimilarity(name, textResults[0].Name)
		if score >= m.simThreshold {
			return Result{
				Status:      StatusMatch,
				CandidateID: textResults[0].PlaceID,
				Score:       score,
				Reason:      ReasonTextSingleHighSim,
			}
		}
		return Result{Status: StatusNoMatch, Reason: ReasonTextLowSim}
	}
	if len(textResults) == 0 {
		return Result{Status: StatusNoMatch, Reason: ReasonTextZeroResults}
	}
	return Result{
		Status:     StatusAmbiguous,
		Reason:     fmt.Sprintf("TEXT_MULTI_RESULTS_%d", len(textResults)),
		Candidates: textResults,
	}
}

func (m *Matcher) bestNearbyPlace(name string, lat, lng float64, results []places.PlaceResult) *Result {
	var best *places.PlaceResult
	bestScore := 0.0
	bestDist := math.Inf(1)

	for i := range results {
		r := results[i]
		score := m.nameSimilarity(name, r.Name)
		dist := similarity.HaversineMeters(lat, lng, r.Location.Lat, r.Location.Lng)
		if score > bestScore || (score == bestScore && dist < bestDist) {
			bestScore = score
			bestDist = dist
			best = &results[i]
		}
	}

	if best == nil || bestScore < m.simThreshold || bestDist > m.radiusMeters {
		return nil
	}
	return &Result{
		Status:      StatusMatch,
		CandidateID: best.PlaceID,
		Score:       bestScore,
		DistanceM:   bestDist,
		Reason:      ReasonNearbyStrongMatch,
	}
}

func errorResult(err error) Result {
	msg := err.Error()
	if len(msg) > 120 {
		msg = msg[:120]
	}
	return Result{Status: StatusError, Reason: msg}
}

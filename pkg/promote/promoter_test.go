package promote

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atlas-maps/platform/pkg/common/logger"
	"github.com/atlas-maps/platform/pkg/golden"
)

func TestMain(m *testing.M) {
	logger.Init()
	os.Exit(m.Run())
}

func f(v float64) *float64 { return &v }

type fakeGoldens struct {
	records []golden.Record
}

func (g *fakeGoldens) ListActive(ctx context.Context, limit int) ([]golden.Record, error) {
	return g.records, nil
}

type fakePlaces struct {
	existing map[string]bool
	inserted []*Place
}

func (p *fakePlaces) SlugExists(ctx context.Context, slug string) (bool, error) {
	return p.existing[slug], nil
}

func (p *fakePlaces) Insert(ctx context.Context, place *Place) error {
	p.inserted = append(p.inserted, place)
	return nil
}

func eligibleRecord(id, slug string) golden.Record {
	return golden.Record{
		CanonicalID:     id,
		Slug:            slug,
		Name:            "Night Owl",
		Lat:             f(34.05),
		Lng:             f(-118.25),
		Confidence:      f(0.9),
		PromotionStatus: golden.PromotionVerified,
	}
}

func TestRunPromotesEligibleRecords(t *testing.T) {
	goldens := &fakeGoldens{records: []golden.Record{eligibleRecord("g1", "night-owl")}}
	places := &fakePlaces{}
	svc := NewService(goldens, places, nil)

	summary, err := svc.Run(context.Background(), Options{Commit: true, AllowPlacesWrite: true})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Promoted)
	require.Len(t, places.inserted, 1)
	assert.Equal(t, "night-owl", places.inserted[0].Slug)
	assert.Equal(t, "g1", places.inserted[0].CanonicalID)
}

func TestRunGates(t *testing.T) {
	lowConfidence := eligibleRecord("g1", "low")
	lowConfidence.Confidence = f(0.6)

	noCoords := eligibleRecord("g2", "nocoords")
	noCoords.Lat, noCoords.Lng = nil, nil

	blocked := eligibleRecord("g3", "blocked")
	blocked.PromotionStatus = golden.PromotionBlocked

	unscored := eligibleRecord("g4", "unscored")
	unscored.Confidence = nil

	goldens := &fakeGoldens{records: []golden.Record{lowConfidence, noCoords, blocked, unscored}}
	places := &fakePlaces{}
	svc := NewService(goldens, places, nil)

	summary, err := svc.Run(context.Background(), Options{Commit: true, AllowPlacesWrite: true})
	require.NoError(t, err)

	assert.Equal(t, 4, summary.Ineligible)
	assert.Zero(t, summary.Promoted)
	assert.Empty(t, places.inserted)
}

func TestRunSkipsExistingSlugs(t *testing.T) {
	goldens := &fakeGoldens{records: []golden.Record{
		eligibleRecord("g1", "already-live"),
		eligibleRecord("g2", "brand-new"),
	}}
	places := &fakePlaces{existing: map[string]bool{"already-live": true}}
	svc := NewService(goldens, places, nil)

	// First run inserts only the new slug.
	summary, err := svc.Run(context.Background(), Options{Commit: true, AllowPlacesWrite: true})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Promoted)
	assert.Equal(t, 1, summary.Skipped)
	require.Len(t, places.inserted, 1)
	assert.Equal(t, "brand-new", places.inserted[0].Slug)

	// A rerun sees both slugs live and writes nothing.
	places.existing["brand-new"] = true
	places.inserted = nil
	summary, err = svc.Run(context.Background(), Options{Commit: true, AllowPlacesWrite: true})
	require.NoError(t, err)
	assert.Zero(t, summary.Promoted)
	assert.Equal(t, 2, summary.Skipped)
	assert.Empty(t, places.inserted)
}

func TestRunNeedsBothWriteFlags(t *testing.T) {
	for _, tc := range []struct {
		name string
		opts Options
	}{
		{"no flags", Options{}},
		{"commit only", Options{Commit: true}},
		{"allow only", Options{AllowPlacesWrite: true}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			goldens := &fakeGoldens{records: []golden.Record{eligibleRecord("g1", "night-owl")}}
			places := &fakePlaces{}
			svc := NewService(goldens, places, nil)

			summary, err := svc.Run(context.Background(), tc.opts)
			require.NoError(t, err)
			assert.Equal(t, 1, summary.Promoted, "dry run still reports would-be promotions")
			assert.Empty(t, places.inserted)
		})
	}
}

func TestRunThresholdFlag(t *testing.T) {
	rec := eligibleRecord("g1", "night-owl")
	rec.Confidence = f(0.75)
	goldens := &fakeGoldens{records: []golden.Record{rec}}
	places := &fakePlaces{}
	svc := NewService(goldens, places, nil)

	summary, err := svc.Run(context.Background(), Options{Threshold: 0.8, Commit: true, AllowPlacesWrite: true})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Ineligible)

	summary, err = svc.Run(context.Background(), Options{Threshold: 0.7, Commit: true, AllowPlacesWrite: true})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Promoted)
}

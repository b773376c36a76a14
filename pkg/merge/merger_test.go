package merge

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atlas-maps/platform/pkg/common/logger"
	"github.com/atlas-maps/platform/pkg/golden"
	"github.com/atlas-maps/platform/pkg/rawstore"
)

func TestMain(m *testing.M) {
	logger.Init()
	os.Exit(m.Run())
}

func f(v float64) *float64 { return &v }

type fakeGoldens struct {
	rec   *golden.Record
	links []golden.ResolutionLink
	saved *golden.Record
}

func (g *fakeGoldens) Get(ctx context.Context, canonicalID string) (*golden.Record, error) {
	cp := *g.rec
	return &cp, nil
}

func (g *fakeGoldens) Save(ctx context.Context, rec *golden.Record) error {
	g.saved = rec
	return nil
}

func (g *fakeGoldens) ActiveLinks(ctx context.Context, goldenRecordID string) ([]golden.ResolutionLink, error) {
	return g.links, nil
}

func (g *fakeGoldens) LinkedCanonicalIDs(ctx context.Context, limit int) ([]string, error) {
	return []string{g.rec.CanonicalID}, nil
}

type fakeRaws struct {
	records []rawstore.RawRecord
}

func (r *fakeRaws) FindByIDs(ctx context.Context, rawIDs []string) ([]rawstore.RawRecord, error) {
	return r.records, nil
}

func twoSourceFixture() (*fakeGoldens, *fakeRaws) {
	goldens := &fakeGoldens{
		rec: &golden.Record{CanonicalID: "g1", Slug: "night-owl-cafe"},
		links: []golden.ResolutionLink{
			{RawRecordID: "r1", GoldenRecordID: "g1", Confidence: f(0.9), IsActive: true},
			{RawRecordID: "r2", GoldenRecordID: "g1", Confidence: f(0.6), IsActive: true},
		},
	}
	raws := &fakeRaws{records: []rawstore.RawRecord{
		{
			RawID:      "r1",
			SourceName: rawstore.SourceEditorialPremium,
			RawJSON: []byte(`{
				"name": "Night Owl Cafe",
				"address_street": "123 Sunset Blvd",
				"phone": "(213) 555-0100",
				"lat": 34.05,
				"lng": -118.25
			}`),
		},
		{
			RawID:      "r2",
			SourceName: rawstore.SourceWebsiteCrawl,
			RawJSON: []byte(`{
				"name": "Night Owl Cafe",
				"phone": "(213) 555-0199",
				"url": "https://nightowl.la"
			}`),
		},
	}}
	return goldens, raws
}

func TestMergeOneSurvivorship(t *testing.T) {
	goldens, raws := twoSourceFixture()
	svc := NewService(goldens, raws, DefaultTrustTable(), nil)

	require.NoError(t, svc.MergeOne(context.Background(), "g1"))
	rec := goldens.saved
	require.NotNil(t, rec)

	// The premium editorial phone wins despite the crawl disagreeing.
	assert.Equal(t, "(213) 555-0100", rec.Phone)
	assert.Equal(t, rawstore.SourceEditorialPremium, rec.WinnerSources["phone"])
	assert.JSONEq(t, `["phone"]`, string(rec.FieldConflicts))

	// Conflict penalty: premium base 0.85 minus 0.05.
	assert.InDelta(t, 0.80, rec.FieldConfidences["phone"].(float64), 1e-9)

	// Agreement boost on name: both sources normalize to the same value.
	assert.InDelta(t, 0.90, rec.FieldConfidences["name"].(float64), 1e-9)

	// Geocode boost on address: coords present alongside the street address.
	assert.InDelta(t, 0.90, rec.FieldConfidences["address_street"].(float64), 1e-9)

	// The crawl's website is the only value offered for that field and the
	// crawl is a ranked source, so it wins at its base confidence.
	assert.Equal(t, "https://nightowl.la", rec.Website)
	assert.InDelta(t, 0.60, rec.FieldConfidences["website"].(float64), 1e-9)
}

func TestMergeOneAggregates(t *testing.T) {
	goldens, raws := twoSourceFixture()
	svc := NewService(goldens, raws, DefaultTrustTable(), nil)

	require.NoError(t, svc.MergeOne(context.Background(), "g1"))
	rec := goldens.saved

	// match_confidence is the strongest active link.
	require.NotNil(t, rec.MatchConfidence)
	assert.InDelta(t, 0.9, *rec.MatchConfidence, 1e-9)

	// merge_quality is the mean of the scored fields:
	// name .90, address .90, lat .85, lng .85, phone .80, website .60.
	require.NotNil(t, rec.MergeQuality)
	assert.InDelta(t, (0.90+0.90+0.85+0.85+0.80+0.60)/6, *rec.MergeQuality, 1e-9)

	assert.Equal(t, 2, rec.SourceCount)
	require.NotNil(t, rec.LastResolvedAt)

	// Completeness over name, lat, lng, neighborhood, category, phone,
	// website: five of seven filled.
	require.NotNil(t, rec.DataCompleteness)
	assert.InDelta(t, 5.0/7.0, *rec.DataCompleteness, 1e-9)
}

func TestMergeQualityUndefinedWithoutScoredFields(t *testing.T) {
	goldens := &fakeGoldens{
		rec:   &golden.Record{CanonicalID: "g1", MergeQuality: f(0.7)},
		links: nil,
	}
	svc := NewService(goldens, &fakeRaws{}, DefaultTrustTable(), nil)

	require.NoError(t, svc.MergeOne(context.Background(), "g1"))
	assert.Nil(t, goldens.saved.MergeQuality, "no scored fields must clear merge_quality, not zero it")
	assert.Empty(t, goldens.saved.FieldConfidences)
}

func TestUnrankedSourceNeverWinsButStillConflicts(t *testing.T) {
	goldens := &fakeGoldens{
		rec: &golden.Record{CanonicalID: "g1"},
		links: []golden.ResolutionLink{
			{RawRecordID: "r1", Confidence: f(0.8), IsActive: true},
			{RawRecordID: "r2", Confidence: f(0.8), IsActive: true},
		},
	}
	raws := &fakeRaws{records: []rawstore.RawRecord{
		{RawID: "r1", SourceName: rawstore.SourceCommunity, RawJSON: []byte(`{"phone":"(213) 555-0100"}`)},
		{RawID: "r2", SourceName: "mystery_feed", RawJSON: []byte(`{"phone":"(213) 555-0199"}`)},
	}}
	svc := NewService(goldens, raws, DefaultTrustTable(), nil)

	require.NoError(t, svc.MergeOne(context.Background(), "g1"))
	rec := goldens.saved

	// Community (rank 0) wins because the mystery feed holds no rank, yet
	// the disagreement still flags the field and costs the penalty.
	assert.Equal(t, "(213) 555-0100", rec.Phone)
	assert.Equal(t, rawstore.SourceCommunity, rec.WinnerSources["phone"])
	assert.JSONEq(t, `["phone"]`, string(rec.FieldConflicts))
	assert.InDelta(t, 0.45, rec.FieldConfidences["phone"].(float64), 1e-9)
}

func TestMergeAllDryRunDoesNotSave(t *testing.T) {
	goldens, raws := twoSourceFixture()
	svc := NewService(goldens, raws, DefaultTrustTable(), nil)

	updated, failed, err := svc.MergeAll(context.Background(), 0, false)
	require.NoError(t, err)
	assert.Equal(t, 1, updated)
	assert.Zero(t, failed)
	assert.Nil(t, goldens.saved)
}

func TestTrustTableOverride(t *testing.T) {
	table := NewTrustTable([]Tier{
		{Source: rawstore.SourceCommunity, Rank: 9, Confidence: 0.99},
	})

	rank, ok := table.Rank(rawstore.SourceCommunity)
	require.True(t, ok)
	assert.Equal(t, 9, rank)

	_, ok = table.Rank(rawstore.SourceGooglePlaces)
	assert.False(t, ok)
}

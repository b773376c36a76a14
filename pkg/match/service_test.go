package match

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

type fakeRawRepo struct {
	records   []rawstore.RawRecord
	processed []string
}

func (r *fakeRawRepo) ListUnprocessed(ctx context.Context, batchID string, limit int) ([]rawstore.RawRecord, error) {
	return r.records, nil
}

func (r *fakeRawRepo) MarkProcessed(ctx context.Context, rawIDs []string) error {
	r.processed = append(r.processed, rawIDs...)
	return nil
}

type fakeGoldenRepo struct {
	byGPID  map[string]*golden.Record
	nearby  []golden.Record
	byName  []golden.Record
	created []*golden.Record
	links   []*golden.ResolutionLink
}

func (g *fakeGoldenRepo) FindByGPID(ctx context.Context, gpid string) (*golden.Record, error) {
	if rec, ok := g.byGPID[gpid]; ok {
		return rec, nil
	}
	return nil, golden.ErrNotFound
}

func (g *fakeGoldenRepo) FindNearby(ctx context.Context, lat, lng, radiusMeters float64) ([]golden.Record, error) {
	return g.nearby, nil
}

func (g *fakeGoldenRepo) FindByNormalizedName(ctx context.Context, nameNormalized string) ([]golden.Record, error) {
	return g.byName, nil
}

func (g *fakeGoldenRepo) Create(ctx context.Context, rec *golden.Record) error {
	rec.CanonicalID = "created-1"
	g.created = append(g.created, rec)
	return nil
}

func (g *fakeGoldenRepo) UniqueSlug(ctx context.Context, name, neighborhood string) (string, error) {
	return "night-owl-cafe", nil
}

func (g *fakeGoldenRepo) Link(ctx context.Context, link *golden.ResolutionLink) error {
	g.links = append(g.links, link)
	return nil
}

type fakeEnqueuer struct {
	enqueued []string
}

func (e *fakeEnqueuer) EnqueueAmbiguous(ctx context.Context, rawID, goldenID, conflictType string, confidence *float64, details map[string]interface{}) (string, error) {
	e.enqueued = append(e.enqueued, rawID)
	return "q-1", nil
}

type fakeMerger struct {
	merged []string
}

func (m *fakeMerger) MergeOne(ctx context.Context, canonicalID string) error {
	m.merged = append(m.merged, canonicalID)
	return nil
}

func rawRecord(id, source, name string, lat, lng *float64, payload string) rawstore.RawRecord {
	return rawstore.RawRecord{
		RawID:          id,
		SourceName:     source,
		ExternalID:     "ext-" + id,
		NameNormalized: name,
		Lat:            lat,
		Lng:            lng,
		RawJSON:        []byte(payload),
	}
}

func TestResolveBatchIdentifierExactBypassesGeo(t *testing.T) {
	raws := &fakeRawRepo{records: []rawstore.RawRecord{
		// Coordinates are nowhere near the golden record; the shared place id
		// must still win.
		rawRecord("r1", rawstore.SourceEditorialPremium, "night owl", f(40.0), f(-74.0),
			`{"name":"Night Owl Cafe","google_place_id":"ChIJowl"}`),
	}}
	goldens := &fakeGoldenRepo{
		byGPID: map[string]*golden.Record{
			"ChIJowl": {CanonicalID: "g1", Name: "Night Owl Cafe", Lat: f(34.05), Lng: f(-118.25)},
		},
	}
	merger := &fakeMerger{}
	svc := NewService(raws, goldens, newTestMatcher(), &fakeEnqueuer{}, merger, nil)

	summary, err := svc.ResolveBatch(context.Background(), BatchOptions{Commit: true})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Matched)
	require.Len(t, goldens.links, 1)
	assert.Equal(t, "g1", goldens.links[0].GoldenRecordID)
	assert.Equal(t, golden.MethodIdentifierExact, goldens.links[0].MatchMethod)
	assert.Equal(t, []string{"r1"}, raws.processed)
	assert.Equal(t, []string{"g1"}, merger.merged)
}

func TestResolveBatchGeoNameMatch(t *testing.T) {
	raws := &fakeRawRepo{records: []rawstore.RawRecord{
		rawRecord("r1", rawstore.SourceEditorialSecondary, "night owl", f(34.050), f(-118.25),
			`{"name":"Night Owl Cafe","lat":34.050,"lng":-118.25}`),
	}}
	goldens := &fakeGoldenRepo{
		nearby: []golden.Record{
			{CanonicalID: "g1", Name: "Night Owl Cafe", Lat: f(34.0505), Lng: f(-118.25)},
		},
	}
	svc := NewService(raws, goldens, newTestMatcher(), &fakeEnqueuer{}, &fakeMerger{}, nil)

	summary, err := svc.ResolveBatch(context.Background(), BatchOptions{Commit: true})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Matched)
	require.Len(t, goldens.links, 1)
	assert.Equal(t, golden.MethodGeoName, goldens.links[0].MatchMethod)
}

func TestResolveBatchAmbiguousGoesToReview(t *testing.T) {
	raws := &fakeRawRepo{records: []rawstore.RawRecord{
		rawRecord("r1", rawstore.SourceEditorialSecondary, "night owl", nil, nil,
			`{"name":"Night Owl Cafe"}`),
	}}
	goldens := &fakeGoldenRepo{
		byName: []golden.Record{{CanonicalID: "g1"}, {CanonicalID: "g2"}},
	}
	reviews := &fakeEnqueuer{}
	svc := NewService(raws, goldens, newTestMatcher(), reviews, &fakeMerger{}, nil)

	summary, err := svc.ResolveBatch(context.Background(), BatchOptions{Commit: true})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Ambiguous)
	assert.Equal(t, []string{"r1"}, reviews.enqueued)
	assert.Empty(t, goldens.links, "ambiguous records must not link")
	assert.Empty(t, raws.processed, "ambiguous records stay unprocessed")
}

func TestResolveBatchNoMatchLeavesRecordUnlessCreateEnabled(t *testing.T) {
	record := rawRecord("r1", rawstore.SourceManualSeed, "tacos el moro", f(34.07), f(-118.3),
		`{"name":"Tacos El Moro","neighborhood":"Echo Park","lat":34.07,"lng":-118.3}`)

	t.Run("default run records the no-match only", func(t *testing.T) {
		raws := &fakeRawRepo{records: []rawstore.RawRecord{record}}
		goldens := &fakeGoldenRepo{}
		svc := NewService(raws, goldens, newTestMatcher(), &fakeEnqueuer{}, &fakeMerger{}, nil)

		summary, err := svc.ResolveBatch(context.Background(), BatchOptions{Commit: true})
		require.NoError(t, err)
		assert.Equal(t, 1, summary.NoMatch)
		assert.Empty(t, goldens.created)
		assert.Empty(t, raws.processed)
	})

	t.Run("create-new materializes a golden record", func(t *testing.T) {
		raws := &fakeRawRepo{records: []rawstore.RawRecord{record}}
		goldens := &fakeGoldenRepo{}
		merger := &fakeMerger{}
		svc := NewService(raws, goldens, newTestMatcher(), &fakeEnqueuer{}, merger, nil)

		summary, err := svc.ResolveBatch(context.Background(), BatchOptions{Commit: true, CreateMissing: true})
		require.NoError(t, err)

		assert.Equal(t, 1, summary.Created)
		require.Len(t, goldens.created, 1)
		created := goldens.created[0]
		assert.Equal(t, "Tacos El Moro", created.Name)
		require.NotNil(t, created.Confidence)
		assert.InDelta(t, 0.8, *created.Confidence, 1e-9, "coords present starts at 0.8")

		require.Len(t, goldens.links, 1)
		assert.Equal(t, golden.MethodCreated, goldens.links[0].MatchMethod)
		assert.Equal(t, []string{"r1"}, raws.processed)
		assert.Equal(t, []string{"created-1"}, merger.merged)
	})

	t.Run("created without coords starts at 0.5", func(t *testing.T) {
		noCoords := rawRecord("r2", rawstore.SourceManualSeed, "tacos el moro", nil, nil,
			`{"name":"Tacos El Moro"}`)
		raws := &fakeRawRepo{records: []rawstore.RawRecord{noCoords}}
		goldens := &fakeGoldenRepo{}
		svc := NewService(raws, goldens, newTestMatcher(), &fakeEnqueuer{}, &fakeMerger{}, nil)

		_, err := svc.ResolveBatch(context.Background(), BatchOptions{Commit: true, CreateMissing: true})
		require.NoError(t, err)
		require.Len(t, goldens.created, 1)
		assert.InDelta(t, 0.5, *goldens.created[0].Confidence, 1e-9)
	})
}

func TestResolveBatchDryRunWritesNothing(t *testing.T) {
	raws := &fakeRawRepo{records: []rawstore.RawRecord{
		rawRecord("r1", rawstore.SourceEditorialPremium, "night owl", f(34.050), f(-118.25),
			`{"name":"Night Owl Cafe","lat":34.050,"lng":-118.25}`),
	}}
	goldens := &fakeGoldenRepo{
		nearby: []golden.Record{
			{CanonicalID: "g1", Name: "Night Owl Cafe", Lat: f(34.0505), Lng: f(-118.25)},
		},
	}
	svc := NewService(raws, goldens, newTestMatcher(), &fakeEnqueuer{}, &fakeMerger{}, nil)

	summary, err := svc.ResolveBatch(context.Background(), BatchOptions{})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Matched)
	assert.Empty(t, goldens.links)
	assert.Empty(t, raws.processed)
}

func TestResolveBatchSkipsBadPayloads(t *testing.T) {
	raws := &fakeRawRepo{records: []rawstore.RawRecord{
		rawRecord("bad", rawstore.SourceEditorialSecondary, "", nil, nil, `{not json`),
		rawRecord("unnamed", rawstore.SourceEditorialSecondary, "", nil, nil, `{"phone":"(213) 555-0184"}`),
	}}
	svc := NewService(raws, &fakeGoldenRepo{}, newTestMatcher(), &fakeEnqueuer{}, &fakeMerger{}, nil)

	summary, err := svc.ResolveBatch(context.Background(), BatchOptions{Commit: true})
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Skipped)
	assert.Zero(t, summary.Errors)
}

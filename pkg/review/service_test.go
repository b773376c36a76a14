package review

import (
	"context"
	"os"
	"testing"
	"time"

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

type fakeStore struct {
	items  map[string]*QueueItem
	audits []*AuditLogEntry
}

func newFakeStore(items ...*QueueItem) *fakeStore {
	s := &fakeStore{items: map[string]*QueueItem{}}
	for _, it := range items {
		s.items[it.QueueID] = it
	}
	return s
}

func (s *fakeStore) Get(ctx context.Context, queueID string) (*QueueItem, error) {
	it, ok := s.items[queueID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *it
	return &cp, nil
}

func (s *fakeStore) Update(ctx context.Context, item *QueueItem) error {
	cp := *item
	s.items[item.QueueID] = &cp
	return nil
}

func (s *fakeStore) RecordAudit(ctx context.Context, entry *AuditLogEntry) error {
	s.audits = append(s.audits, entry)
	return nil
}

func (s *fakeStore) ListPending(ctx context.Context, conflictType string, limit int) ([]QueueItem, error) {
	var out []QueueItem
	for _, it := range s.items {
		if it.Status != StatusResolved {
			out = append(out, *it)
		}
	}
	return out, nil
}

func (s *fakeStore) QueueStats(ctx context.Context) (*Stats, error) {
	return &Stats{}, nil
}

func (s *fakeStore) EnqueuePair(ctx context.Context, rawIDA, rawIDB, conflictType string, confidence *float64, details map[string]interface{}) (string, error) {
	item := &QueueItem{
		QueueID:         "pair-" + rawIDA,
		RawIDA:          rawIDA,
		RawIDB:          rawIDB,
		ConflictType:    conflictType,
		MatchConfidence: confidence,
		Details:         details,
		Priority:        priorityFor(conflictType, confidence),
		Status:          StatusPending,
	}
	s.items[item.QueueID] = item
	return item.QueueID, nil
}

type fakeLinker struct {
	links []*golden.ResolutionLink
}

func (l *fakeLinker) Link(ctx context.Context, link *golden.ResolutionLink) error {
	l.links = append(l.links, link)
	return nil
}

type fakeMarker struct {
	processed []string
}

func (m *fakeMarker) MarkProcessed(ctx context.Context, rawIDs []string) error {
	m.processed = append(m.processed, rawIDs...)
	return nil
}

type fakeMerger struct {
	merged []string
}

func (m *fakeMerger) MergeOne(ctx context.Context, canonicalID string) error {
	m.merged = append(m.merged, canonicalID)
	return nil
}

func pendingItem() *QueueItem {
	return &QueueItem{
		QueueID:         "q1",
		CanonicalID:     "g1",
		RawIDA:          "r1",
		ConflictType:    ConflictAmbiguousMulti,
		MatchConfidence: f(0.8),
		Priority:        6,
		Status:          StatusPending,
		CreatedAt:       time.Now().UTC().Add(-2 * time.Hour),
	}
}

func TestResolveMergedLinksAndRemerges(t *testing.T) {
	store := newFakeStore(pendingItem())
	linker := &fakeLinker{}
	marker := &fakeMarker{}
	merger := &fakeMerger{}
	svc := NewService(store, linker, marker, merger, nil)

	item, err := svc.Resolve(context.Background(), "q1", Decision{
		Resolution: ResolutionMerged,
		ResolvedBy: "maria",
		Notes:      "same storefront, phone updated",
	})
	require.NoError(t, err)

	assert.Equal(t, StatusResolved, item.Status)
	assert.Equal(t, ResolutionMerged, item.Resolution)

	require.Len(t, linker.links, 1)
	assert.Equal(t, "r1", linker.links[0].RawRecordID)
	assert.Equal(t, "g1", linker.links[0].GoldenRecordID)
	assert.Equal(t, golden.MethodManualReview, linker.links[0].MatchMethod)
	assert.Equal(t, "maria", linker.links[0].LinkedBy)

	assert.Equal(t, []string{"r1"}, marker.processed)
	assert.Equal(t, []string{"g1"}, merger.merged)
}

func TestResolveWritesAuditWithLatency(t *testing.T) {
	store := newFakeStore(pendingItem())
	svc := NewService(store, &fakeLinker{}, &fakeMarker{}, &fakeMerger{}, nil)

	_, err := svc.Resolve(context.Background(), "q1", Decision{
		Resolution: ResolutionDismissed,
		ResolvedBy: "maria",
	})
	require.NoError(t, err)

	require.Len(t, store.audits, 1)
	audit := store.audits[0]
	assert.Equal(t, "q1", audit.QueueID)
	assert.Equal(t, ResolutionDismissed, audit.Resolution)
	assert.Equal(t, "maria", audit.ResolvedBy)
	assert.Greater(t, audit.DecisionTime, time.Hour, "latency spans enqueue to resolution")
}

func TestResolveMergedCanRedirectTarget(t *testing.T) {
	store := newFakeStore(pendingItem())
	linker := &fakeLinker{}
	merger := &fakeMerger{}
	svc := NewService(store, linker, &fakeMarker{}, merger, nil)

	_, err := svc.Resolve(context.Background(), "q1", Decision{
		Resolution:  ResolutionMerged,
		CanonicalID: "g-other",
		ResolvedBy:  "maria",
	})
	require.NoError(t, err)

	require.Len(t, linker.links, 1)
	assert.Equal(t, "g-other", linker.links[0].GoldenRecordID)
	assert.Equal(t, []string{"g-other"}, merger.merged)
}

func TestResolveNonMergeDoesNotLink(t *testing.T) {
	store := newFakeStore(pendingItem())
	linker := &fakeLinker{}
	marker := &fakeMarker{}
	merger := &fakeMerger{}
	svc := NewService(store, linker, marker, merger, nil)

	item, err := svc.Resolve(context.Background(), "q1", Decision{
		Resolution: ResolutionKeptSeparate,
		ResolvedBy: "maria",
	})
	require.NoError(t, err)

	assert.Equal(t, StatusResolved, item.Status)
	assert.Empty(t, linker.links)
	assert.Empty(t, merger.merged)
	assert.Equal(t, []string{"r1"}, marker.processed, "the raws still leave the queue")
}

func TestResolveRejectsDoubleResolution(t *testing.T) {
	resolved := pendingItem()
	resolved.Status = StatusResolved
	store := newFakeStore(resolved)
	svc := NewService(store, &fakeLinker{}, &fakeMarker{}, &fakeMerger{}, nil)

	_, err := svc.Resolve(context.Background(), "q1", Decision{
		Resolution: ResolutionMerged,
		ResolvedBy: "maria",
	})
	assert.Error(t, err)
}

func TestResolveMergedNeedsTarget(t *testing.T) {
	item := pendingItem()
	item.CanonicalID = ""
	store := newFakeStore(item)
	svc := NewService(store, &fakeLinker{}, &fakeMarker{}, &fakeMerger{}, nil)

	_, err := svc.Resolve(context.Background(), "q1", Decision{
		Resolution: ResolutionMerged,
		ResolvedBy: "maria",
	})
	assert.Error(t, err)
}

func TestDeferDecaysPriority(t *testing.T) {
	store := newFakeStore(pendingItem())
	svc := NewService(store, &fakeLinker{}, &fakeMarker{}, &fakeMerger{}, nil)

	item, err := svc.Defer(context.Background(), "q1")
	require.NoError(t, err)
	assert.Equal(t, StatusDeferred, item.Status)
	assert.Equal(t, 5, item.Priority)

	// Priority bottoms out at zero.
	for i := 0; i < 10; i++ {
		item, err = svc.Defer(context.Background(), "q1")
		require.NoError(t, err)
	}
	assert.Equal(t, 0, item.Priority)
}

func TestFilePair(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store, &fakeLinker{}, &fakeMarker{}, &fakeMerger{}, nil)

	queueID, err := svc.FilePair(context.Background(), "r1", "r2", "", f(0.7), nil)
	require.NoError(t, err)

	item, err := store.Get(context.Background(), queueID)
	require.NoError(t, err)
	assert.Equal(t, "r1", item.RawIDA)
	assert.Equal(t, "r2", item.RawIDB)
	assert.Equal(t, ConflictAttribute, item.ConflictType, "conflict type defaults when omitted")
	assert.Equal(t, StatusPending, item.Status)

	_, err = svc.FilePair(context.Background(), "r1", "", "", nil, nil)
	assert.Error(t, err, "a pair needs both ids")
}

func TestPairResolutionMarksBothRaws(t *testing.T) {
	item := pendingItem()
	item.RawIDB = "r2"
	store := newFakeStore(item)
	marker := &fakeMarker{}
	svc := NewService(store, &fakeLinker{}, marker, &fakeMerger{}, nil)

	_, err := svc.Resolve(context.Background(), "q1", Decision{
		Resolution: ResolutionKeptSeparate,
		ResolvedBy: "maria",
	})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"r1", "r2"}, marker.processed)
}

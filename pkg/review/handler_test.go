package review

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(store *fakeStore) (*mux.Router, *fakeLinker, *fakeMerger) {
	linker := &fakeLinker{}
	merger := &fakeMerger{}
	svc := NewService(store, linker, &fakeMarker{}, merger, nil)
	router := mux.NewRouter()
	NewHandler(svc).Register(router)
	return router, linker, merger
}

func TestHandlerListPending(t *testing.T) {
	router, _, _ := newTestRouter(newFakeStore(pendingItem()))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/review/items", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"count":1`)
	assert.Contains(t, rec.Body.String(), "q1")
}

func TestHandlerResolve(t *testing.T) {
	store := newFakeStore(pendingItem())
	router, linker, merger := newTestRouter(store)

	body := `{"resolution":"merged","resolved_by":"maria"}`
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/review/items/q1/resolve", strings.NewReader(body)))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, linker.links, 1)
	assert.Equal(t, []string{"g1"}, merger.merged)

	item, err := store.Get(context.Background(), "q1")
	require.NoError(t, err)
	assert.Equal(t, StatusResolved, item.Status)
}

func TestHandlerCreatePair(t *testing.T) {
	store := newFakeStore()
	router, _, _ := newTestRouter(store)

	body := `{"raw_id_a":"r1","raw_id_b":"r2","conflict_type":"NAME_MISMATCH"}`
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/review/items", strings.NewReader(body)))

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), "queue_id")

	items, err := store.ListPending(context.Background(), "", 0)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "r2", items[0].RawIDB)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/review/items", strings.NewReader(`{"raw_id_a":"r1"}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlerResolveValidation(t *testing.T) {
	router, _, _ := newTestRouter(newFakeStore(pendingItem()))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/review/items/q1/resolve", strings.NewReader(`{}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlerResolveUnknownItem(t *testing.T) {
	router, _, _ := newTestRouter(newFakeStore())

	body := `{"resolution":"dismissed","resolved_by":"maria"}`
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/review/items/missing/resolve", strings.NewReader(body)))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandlerDefer(t *testing.T) {
	store := newFakeStore(pendingItem())
	router, _, _ := newTestRouter(store)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/review/items/q1/defer", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	item, err := store.Get(context.Background(), "q1")
	require.NoError(t, err)
	assert.Equal(t, StatusDeferred, item.Status)
	assert.Equal(t, 5, item.Priority)
}

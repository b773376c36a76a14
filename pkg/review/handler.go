package review

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/atlas-maps/platform/pkg/common/logger"
)

// Handler exposes the review queue over HTTP for the curation UI.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Register(r *mux.Router) {
	r.HandleFunc("/review/items", h.listPending).Methods(http.MethodGet)
	r.HandleFunc("/review/items", h.createPair).Methods(http.MethodPost)
	r.HandleFunc("/review/items/{id}/resolve", h.resolve).Methods(http.MethodPost)
	r.HandleFunc("/review/items/{id}/defer", h.deferItem).Methods(http.MethodPost)
	r.HandleFunc("/review/stats", h.stats).Methods(http.MethodGet)
}

func (h *Handler) listPending(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	items, err := h.svc.Pending(r.Context(), r.URL.Query().Get("conflict_type"), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"items": items, "count": len(items)})
}

type createPairRequest struct {
	RawIDA       string                 `json:"raw_id_a"`
	RawIDB       string                 `json:"raw_id_b"`
	ConflictType string                 `json:"conflict_type"`
	Confidence   *float64               `json:"confidence"`
	Details      map[string]interface{} `json:"details"`
}

func (h *Handler) createPair(w http.ResponseWriter, r *http.Request) {
	var req createPairRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.RawIDA == "" || req.RawIDB == "" {
		writeError(w, http.StatusBadRequest, errors.New("raw_id_a and raw_id_b are required"))
		return
	}

	queueID, err := h.svc.FilePair(r.Context(), req.RawIDA, req.RawIDB, req.ConflictType, req.Confidence, req.Details)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"queue_id": queueID})
}

type resolveRequest struct {
	Resolution  string `json:"resolution"`
	CanonicalID string `json:"canonical_id"`
	Notes       string `json:"notes"`
	ResolvedBy  string `json:"resolved_by"`
}

func (h *Handler) resolve(w http.ResponseWriter, r *http.Request) {
	var req resolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.Resolution == "" || req.ResolvedBy == "" {
		writeError(w, http.StatusBadRequest, errors.New("resolution and resolved_by are required"))
		return
	}

	item, err := h.svc.Resolve(r.Context(), mux.Vars(r)["id"], Decision{
		Resolution:  req.Resolution,
		CanonicalID: req.CanonicalID,
		Notes:       req.Notes,
		ResolvedBy:  req.ResolvedBy,
	})
	if errors.Is(err, ErrNotFound) {
		writeError(w, http.StatusNotFound, err)
		return
	}
	if err != nil {
		writeError(w, http.StatusConflict, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (h *Handler) deferItem(w http.ResponseWriter, r *http.Request) {
	item, err := h.svc.Defer(r.Context(), mux.Vars(r)["id"])
	if errors.Is(err, ErrNotFound) {
		writeError(w, http.StatusNotFound, err)
		return
	}
	if err != nil {
		writeError(w, http.StatusConflict, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (h *Handler) stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.Stats(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Log.WithError(err).Error("response encode failed")
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

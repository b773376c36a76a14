package gpid

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
)

// Handler exposes the id-resolution queue over HTTP for the curation UI.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Register(r *mux.Router) {
	r.HandleFunc("/gpid/items", h.listOpen).Methods(http.MethodGet)
	r.HandleFunc("/gpid/items/{id}/decision", h.decide).Methods(http.MethodPost)
}

func (h *Handler) listOpen(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	items, err := h.svc.Open(r.Context(), r.URL.Query().Get("resolver_status"), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"items": items, "count": len(items)})
}

type decisionRequest struct {
	Decision   string `json:"decision"`
	PlaceID    string `json:"place_id"`
	ReviewedBy string `json:"reviewed_by"`
}

func (h *Handler) decide(w http.ResponseWriter, r *http.Request) {
	var req decisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.Decision == "" || req.ReviewedBy == "" {
		writeError(w, http.StatusBadRequest, errors.New("decision and reviewed_by are required"))
		return
	}

	item, err := h.svc.Adjudicate(r.Context(), mux.Vars(r)["id"], req.Decision, req.PlaceID, req.ReviewedBy)
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

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/okian/crmflow/internal/adapters/repository"
)

const (
	defaultListLimit = 50
	maxListLimit     = 1000
)

// DeadLetterHandler browses the dead-letter store.
type DeadLetterHandler struct {
	store LetterStore
}

// NewDeadLetterHandler creates a dead-letter handler. store may be nil.
func NewDeadLetterHandler(store LetterStore) *DeadLetterHandler {
	return &DeadLetterHandler{store: store}
}

type listResponse struct {
	Items []string `json:"items"`
	Count int      `json:"count"`
}

// HandleList handles GET /deadletters?limit=N, newest first.
func (h *DeadLetterHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	const op = "api.deadletters"
	if h.store == nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable", NewKind(op, ErrUnavailable))
		return
	}
	limit := defaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxListLimit {
			writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, errors.New("limit must be between 1 and 1000")))
			return
		}
		limit = n
	}
	names, err := h.store.List(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", err)
		return
	}
	if names == nil {
		names = []string{}
	}
	writeJSON(w, http.StatusOK, listResponse{Items: names, Count: len(names)})
}

// HandleGet handles GET /deadletters/{name}.
func (h *DeadLetterHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	const op = "api.deadletter"
	if h.store == nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable", NewKind(op, ErrUnavailable))
		return
	}
	letter, err := h.store.Get(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		if isNotFound(err) {
			writeError(w, http.StatusNotFound, "not_found", err)
			return
		}
		writeError(w, http.StatusInternalServerError, "internal", err)
		return
	}
	writeJSON(w, http.StatusOK, letter)
}

var _ LetterStore = (repository.Store)(nil)

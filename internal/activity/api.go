package activity

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	apperrors "github.com/careops/visitflow/internal/shared/errors"
)

const defaultListLimit = 50

// Handler serves the clinic-wide activity trail
type Handler struct {
	recorder Recorder
}

// NewHandler creates a new activity handler
func NewHandler(recorder Recorder) *Handler {
	return &Handler{recorder: recorder}
}

// Routes returns the activity routes
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.listActivity)
	return r
}

func (h *Handler) listActivity(w http.ResponseWriter, r *http.Request) {
	filter := Filter{
		PatientID: r.URL.Query().Get("patient_id"),
		Action:    Action(r.URL.Query().Get("action")),
		Limit:     defaultListLimit,
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			writeError(w, apperrors.BadRequest("limit must be a positive integer"))
			return
		}
		filter.Limit = limit
	}

	events, err := h.recorder.List(r.Context(), filter)
	if err != nil {
		writeError(w, apperrors.Wrap(err, "failed to list activity"))
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"events": events,
		"count":  len(events),
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")

	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		w.WriteHeader(appErr.HTTPStatus)
		json.NewEncoder(w).Encode(map[string]any{
			"error":   appErr.Message,
			"code":    appErr.Code,
			"details": appErr.Details,
		})
		return
	}

	w.WriteHeader(http.StatusInternalServerError)
	json.NewEncoder(w).Encode(map[string]string{"error": "internal server error"})
}

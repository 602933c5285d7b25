// Package patient exposes the HTTP surface of the visit workflow:
// the patient roster, registration, vitals, assessments, and the
// per-patient workflow view.
package patient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/careops/visitflow/internal/activity"
	"github.com/careops/visitflow/internal/adapters/records"
	apperrors "github.com/careops/visitflow/internal/shared/errors"
	"github.com/careops/visitflow/internal/shared/types"
	"github.com/careops/visitflow/internal/summary"
	"github.com/careops/visitflow/internal/visit"
)

// Handler provides HTTP handlers for the patient module
type Handler struct {
	adapter   records.Adapter
	visits    *visit.Service
	summaries *summary.Service
	recorder  activity.Recorder
}

// NewHandler creates a new patient handler. The recorder may be nil.
func NewHandler(adapter records.Adapter, visits *visit.Service, summaries *summary.Service, recorder activity.Recorder) *Handler {
	return &Handler{
		adapter:   adapter,
		visits:    visits,
		summaries: summaries,
		recorder:  recorder,
	}
}

// Routes registers the patient routes
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Route("/patients", func(r chi.Router) {
		r.Get("/", h.ListPatients)
		r.Post("/", h.RegisterPatient)

		r.Route("/{patientID}", func(r chi.Router) {
			r.Get("/", h.GetPatient)
			r.Get("/summary", h.GetSummary)
			r.Get("/workflow", h.GetWorkflow)
			r.Get("/activity", h.ListActivity)

			r.Route("/vitals", func(r chi.Router) {
				r.Get("/", h.ListVitals)
				r.Post("/", h.RecordVitals)
			})

			r.Route("/assessments", func(r chi.Router) {
				r.Get("/", h.ListAssessments)
				r.Post("/", h.RecordAssessment)
				r.Get("/context", h.GetAssessmentContext)
			})
		})
	})

	return r
}

// RegisterPatientRequest is the body for registering a patient.
type RegisterPatientRequest struct {
	Identifier string          `json:"identifier"`
	GivenName  string          `json:"given_name"`
	FamilyName string          `json:"family_name"`
	BirthDate  types.VisitDate `json:"birth_date"`
	Gender     string          `json:"gender"`
}

// --- Roster Handlers ---

// ListPatients returns the roster with per-patient summaries
func (h *Handler) ListPatients(w http.ResponseWriter, r *http.Request) {
	filter := records.PatientFilter{
		Search: strings.TrimSpace(r.URL.Query().Get("search")),
	}
	if limit := r.URL.Query().Get("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n < 0 {
			writeError(w, apperrors.BadRequest("limit must be a non-negative integer"))
			return
		}
		filter.Limit = n
	}
	if offset := r.URL.Query().Get("offset"); offset != "" {
		n, err := strconv.Atoi(offset)
		if err != nil || n < 0 {
			writeError(w, apperrors.BadRequest("offset must be a non-negative integer"))
			return
		}
		filter.Offset = n
	}

	patients, err := h.adapter.ListPatients(r.Context(), filter)
	if err != nil {
		writeError(w, apperrors.Unavailable("could not list patients", err))
		return
	}

	summaries := h.summaries.BuildSummaries(r.Context(), patients)

	writeJSON(w, http.StatusOK, map[string]any{
		"data":  summaries,
		"total": len(summaries),
	})
}

// RegisterPatient creates a patient in the records backend
func (h *Handler) RegisterPatient(w http.ResponseWriter, r *http.Request) {
	var req RegisterPatientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.BadRequest("invalid request body"))
		return
	}

	details := map[string]string{}
	if strings.TrimSpace(req.GivenName) == "" {
		details["given_name"] = "given name is required"
	}
	if strings.TrimSpace(req.FamilyName) == "" {
		details["family_name"] = "family name is required"
	}
	if !req.BirthDate.IsZero() && req.BirthDate.After(types.Today()) {
		details["birth_date"] = "birth date must not be in the future"
	}
	if len(details) > 0 {
		writeError(w, apperrors.Validation("invalid patient registration", details))
		return
	}

	created, err := h.adapter.CreatePatient(withIdempotency(r), records.Patient{
		Identifier: strings.TrimSpace(req.Identifier),
		GivenName:  strings.TrimSpace(req.GivenName),
		FamilyName: strings.TrimSpace(req.FamilyName),
		BirthDate:  req.BirthDate,
		Gender:     strings.TrimSpace(req.Gender),
	})
	if err != nil {
		writeError(w, err)
		return
	}

	if h.recorder != nil {
		event := activity.NewEvent(activity.ActionPatientRegistered, created.ID, map[string]any{
			"name": created.FullName(),
		})
		h.recorder.Record(r.Context(), event)
	}

	writeJSON(w, http.StatusCreated, created)
}

// GetPatient gets a patient by ID
func (h *Handler) GetPatient(w http.ResponseWriter, r *http.Request) {
	patient, err := h.adapter.GetPatient(r.Context(), chi.URLParam(r, "patientID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, patient)
}

// GetSummary builds the single-patient summary
func (h *Handler) GetSummary(w http.ResponseWriter, r *http.Request) {
	patient, err := h.adapter.GetPatient(r.Context(), chi.URLParam(r, "patientID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.summaries.BuildSummary(r.Context(), *patient))
}

// GetWorkflow derives the patient's workflow position
func (h *Handler) GetWorkflow(w http.ResponseWriter, r *http.Request) {
	workflow, err := h.visits.Workflow(r.Context(), chi.URLParam(r, "patientID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, workflow)
}

// ListActivity returns the patient's activity trail
func (h *Handler) ListActivity(w http.ResponseWriter, r *http.Request) {
	if h.recorder == nil {
		writeJSON(w, http.StatusOK, map[string]any{"events": []*activity.Event{}, "count": 0})
		return
	}

	filter := activity.Filter{PatientID: chi.URLParam(r, "patientID")}
	if limit := r.URL.Query().Get("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n < 1 {
			writeError(w, apperrors.BadRequest("limit must be a positive integer"))
			return
		}
		filter.Limit = n
	}

	events, err := h.recorder.List(r.Context(), filter)
	if err != nil {
		writeError(w, apperrors.Unavailable("could not list activity", err))
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"events": events,
		"count":  len(events),
	})
}

// --- Vitals Handlers ---

// ListVitals lists a patient's vitals, most recent first
func (h *Handler) ListVitals(w http.ResponseWriter, r *http.Request) {
	vitals, err := h.visits.ListVitals(r.Context(), chi.URLParam(r, "patientID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"data":  vitals,
		"total": len(vitals),
	})
}

// RecordVitals records height and weight for a visit
func (h *Handler) RecordVitals(w http.ResponseWriter, r *http.Request) {
	var submission visit.VitalsSubmission
	if err := json.NewDecoder(r.Body).Decode(&submission); err != nil {
		writeError(w, apperrors.BadRequest("invalid request body"))
		return
	}
	submission.PatientID = chi.URLParam(r, "patientID")

	result, err := h.visits.RecordVitals(withIdempotency(r), submission)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

// --- Assessment Handlers ---

// ListAssessments lists a patient's assessments, most recent first
func (h *Handler) ListAssessments(w http.ResponseWriter, r *http.Request) {
	var kind records.AssessmentKind
	if k := r.URL.Query().Get("kind"); k != "" {
		parsed, ok := records.ParseAssessmentKind(k)
		if !ok {
			writeError(w, apperrors.BadRequest("unknown assessment kind"))
			return
		}
		kind = parsed
	}

	assessments, err := h.visits.ListAssessments(r.Context(), chi.URLParam(r, "patientID"), kind)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"data":  assessments,
		"total": len(assessments),
	})
}

// GetAssessmentContext opens an assessment form: it verifies the kind
// against the patient's current BMI and returns the form context
func (h *Handler) GetAssessmentContext(w http.ResponseWriter, r *http.Request) {
	kind, ok := records.ParseAssessmentKind(r.URL.Query().Get("kind"))
	if !ok {
		writeError(w, apperrors.BadRequest("unknown assessment kind"))
		return
	}

	assessCtx, err := h.visits.BeginAssessment(r.Context(), chi.URLParam(r, "patientID"), kind)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, assessCtx)
}

// RecordAssessment records a follow-up assessment
func (h *Handler) RecordAssessment(w http.ResponseWriter, r *http.Request) {
	var submission visit.AssessmentSubmission
	if err := json.NewDecoder(r.Body).Decode(&submission); err != nil {
		writeError(w, apperrors.BadRequest("invalid request body"))
		return
	}
	submission.PatientID = chi.URLParam(r, "patientID")

	stored, err := h.visits.RecordAssessment(withIdempotency(r), submission)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, stored)
}

// --- Helpers ---

func withIdempotency(r *http.Request) context.Context {
	ctx := r.Context()
	if key := strings.TrimSpace(r.Header.Get("Idempotency-Key")); key != "" {
		ctx = records.WithIdempotencyKey(ctx, key)
	}
	return ctx
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

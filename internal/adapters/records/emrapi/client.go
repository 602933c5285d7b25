// Package emrapi implements records.Adapter against the clinic's EMR
// REST API.
package emrapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/careops/visitflow/internal/adapters/records"
	apperrors "github.com/careops/visitflow/internal/shared/errors"
	"github.com/careops/visitflow/internal/shared/metrics"
)

// Client implements records.Adapter for the EMR REST API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	config     Config
}

// Config holds configuration for the EMR API client
type Config struct {
	// API endpoint
	BaseURL string `json:"base_url"`

	// Timeouts
	Timeout       time.Duration `json:"timeout"`
	RetryAttempts int           `json:"retry_attempts"`
	RetryDelay    time.Duration `json:"retry_delay"`

	// Rate limiting
	MaxRequestsPerSecond int `json:"max_requests_per_second"`
}

// DefaultConfig returns default configuration
func DefaultConfig() Config {
	return Config{
		BaseURL:              "http://localhost:9000/api",
		Timeout:              30 * time.Second,
		RetryAttempts:        3,
		RetryDelay:           1 * time.Second,
		MaxRequestsPerSecond: 20,
	}
}

// New creates a new EMR API client
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("records backend base URL is required")
	}
	if cfg.RetryAttempts < 1 {
		cfg.RetryAttempts = 1
	}

	limit := rate.Inf
	burst := cfg.MaxRequestsPerSecond
	if cfg.MaxRequestsPerSecond > 0 {
		limit = rate.Limit(cfg.MaxRequestsPerSecond)
	}
	if burst < 1 {
		burst = 1
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		limiter: rate.NewLimiter(limit, burst),
		config:  cfg,
	}, nil
}

// SourceSystem identifies the backing system
func (c *Client) SourceSystem() string {
	return "emr_api"
}

// Health verifies the backend is reachable by listing a single patient
func (c *Client) Health(ctx context.Context) error {
	_, err := c.ListPatients(ctx, records.PatientFilter{Limit: 1})
	return err
}

// ListPatients retrieves patients from the registry
func (c *Client) ListPatients(ctx context.Context, filter records.PatientFilter) ([]records.Patient, error) {
	query := url.Values{}
	if filter.Search != "" {
		query.Set("q", filter.Search)
	}
	if filter.Limit > 0 {
		query.Set("limit", strconv.Itoa(filter.Limit))
	}
	if filter.Offset > 0 {
		query.Set("offset", strconv.Itoa(filter.Offset))
	}

	endpoint := c.baseURL + "/patients"
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	items, err := c.fetchList(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to list patients: %w", err)
	}

	patients := make([]records.Patient, 0, len(items))
	for _, item := range items {
		record, ok := item.(map[string]any)
		if !ok {
			continue
		}
		patients = append(patients, mapPatient(record))
	}
	return patients, nil
}

// GetPatient retrieves a single patient by identifier
func (c *Client) GetPatient(ctx context.Context, patientID string) (*records.Patient, error) {
	endpoint := fmt.Sprintf("%s/patients/%s", c.baseURL, url.PathEscape(patientID))

	resp, err := c.get(ctx, endpoint)
	if err != nil {
		return nil, apperrors.Unavailable("records backend unreachable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, apperrors.NotFound("patient", patientID)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, apperrors.Unavailable("records backend read failed",
			fmt.Errorf("unexpected status code: %d", resp.StatusCode))
	}

	var payload any
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, apperrors.Unavailable("failed to decode patient response", err)
	}

	record := unwrapRecord(payload)
	if record == nil {
		return nil, apperrors.Unavailable("failed to decode patient response",
			fmt.Errorf("response is not an object"))
	}

	patient := mapPatient(record)
	return &patient, nil
}

// CreatePatient registers a new patient
func (c *Client) CreatePatient(ctx context.Context, patient records.Patient) (*records.Patient, error) {
	body := patientRequest{
		Identifier: patient.Identifier,
		GivenName:  patient.GivenName,
		FamilyName: patient.FamilyName,
		BirthDate:  patient.BirthDate.String(),
		Gender:     patient.Gender,
	}

	record, err := c.createRecord(ctx, c.baseURL+"/patients", body)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return &patient, nil
	}

	created := mapPatient(record)
	return &created, nil
}

// ListVitals retrieves all vitals records for a patient
func (c *Client) ListVitals(ctx context.Context, patientID string) ([]records.VitalsRecord, error) {
	query := url.Values{}
	query.Set("patient_id", patientID)

	items, err := c.fetchList(ctx, c.baseURL+"/vitals?"+query.Encode())
	if err != nil {
		return nil, fmt.Errorf("failed to list vitals: %w", err)
	}

	vitals := make([]records.VitalsRecord, 0, len(items))
	for _, item := range items {
		record, ok := item.(map[string]any)
		if !ok {
			continue
		}
		vitals = append(vitals, mapVitals(record))
	}
	return vitals, nil
}

// CreateVitals stores a new vitals record
func (c *Client) CreateVitals(ctx context.Context, record records.VitalsRecord) (*records.VitalsRecord, error) {
	body := vitalsRequest{
		PatientID: record.PatientID,
		VisitDate: record.VisitDate.String(),
		HeightCm:  record.HeightCm,
		WeightKg:  record.WeightKg,
		BMI:       record.BMI,
	}

	created, err := c.createRecord(ctx, c.baseURL+"/vitals", body)
	if err != nil {
		return nil, err
	}
	if created == nil {
		return &record, nil
	}

	stored := mapVitals(created)
	return &stored, nil
}

// ListAssessments retrieves all assessments of one kind for a patient
func (c *Client) ListAssessments(ctx context.Context, patientID string, kind records.AssessmentKind) ([]records.AssessmentRecord, error) {
	query := url.Values{}
	query.Set("patient_id", patientID)

	items, err := c.fetchList(ctx, c.baseURL+assessmentsPath(kind)+"?"+query.Encode())
	if err != nil {
		return nil, fmt.Errorf("failed to list %s assessments: %w", kind, err)
	}

	assessments := make([]records.AssessmentRecord, 0, len(items))
	for _, item := range items {
		record, ok := item.(map[string]any)
		if !ok {
			continue
		}
		assessments = append(assessments, mapAssessment(record, kind))
	}
	return assessments, nil
}

// CreateAssessment stores a new assessment record
func (c *Client) CreateAssessment(ctx context.Context, record records.AssessmentRecord) (*records.AssessmentRecord, error) {
	body := assessmentRequest{
		PatientID:     record.PatientID,
		VisitDate:     record.VisitDate.String(),
		GeneralHealth: record.GeneralHealth,
		Comments:      record.Comments,
	}
	switch record.Kind {
	case records.AssessmentOverweight:
		body.BeenOnDiet = record.BeenOnDiet
	default:
		body.UsingDrugs = record.UsingDrugs
	}

	created, err := c.createRecord(ctx, c.baseURL+assessmentsPath(record.Kind), body)
	if err != nil {
		return nil, err
	}
	if created == nil {
		return &record, nil
	}

	stored := mapAssessment(created, record.Kind)
	return &stored, nil
}

func assessmentsPath(kind records.AssessmentKind) string {
	if kind == records.AssessmentOverweight {
		return "/overweight-assessments"
	}
	return "/general-assessments"
}

// fetchList performs a GET and normalizes the response into records
func (c *Client) fetchList(ctx context.Context, endpoint string) ([]any, error) {
	resp, err := c.get(ctx, endpoint)
	if err != nil {
		return nil, apperrors.Unavailable("records backend unreachable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apperrors.Unavailable("records backend read failed",
			fmt.Errorf("unexpected status code: %d", resp.StatusCode))
	}

	var payload any
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, apperrors.Unavailable("failed to decode records response", err)
	}

	return records.ExtractRecords(payload), nil
}

// createRecord performs a POST and decodes the stored record, if the
// backend returned one
func (c *Client) createRecord(ctx context.Context, endpoint string, body any) (map[string]any, error) {
	resp, err := c.post(ctx, endpoint, body)
	if err != nil {
		return nil, apperrors.WriteFailed("records backend write failed", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusConflict:
		return nil, apperrors.Conflict(errorMessage(resp, "record already exists"))
	case resp.StatusCode == http.StatusNotFound:
		return nil, apperrors.NotFound("resource", endpoint)
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return nil, apperrors.BadRequest(errorMessage(resp, "records backend rejected the submission"))
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, apperrors.WriteFailed("records backend write failed",
			fmt.Errorf("unexpected status code: %d", resp.StatusCode))
	}

	var payload any
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		// Some backends answer a bare 201; the submitted record stands
		return nil, nil
	}

	return unwrapRecord(payload), nil
}

// get performs a GET with retry logic. Client errors are returned to
// the caller untouched; transport failures and server errors retry up
// to the configured attempts.
func (c *Client) get(ctx context.Context, endpoint string) (*http.Response, error) {
	var lastErr error

	for attempt := 0; attempt < c.config.RetryAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.config.RetryDelay):
			}
		}

		resp, err := c.do(ctx, http.MethodGet, endpoint, nil, "")
		if err != nil {
			lastErr = err
			continue
		}

		// Don't retry on client errors (4xx)
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return resp, nil
		}

		// Retry on server errors (5xx)
		if resp.StatusCode >= 500 {
			resp.Body.Close()
			lastErr = fmt.Errorf("server error: %d", resp.StatusCode)
			continue
		}

		return resp, nil
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

// post performs a single-shot write. Writes are never retried here;
// the error taxonomy marks them retryable and leaves the decision to
// the caller. An idempotency key accompanies every write so a retried
// submission lands on the same record.
func (c *Client) post(ctx context.Context, endpoint string, payload any) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	key := records.IdempotencyKeyFrom(ctx)
	if key == "" {
		key = uuid.NewString()
	}

	return c.do(ctx, http.MethodPost, endpoint, body, key)
}

func (c *Client) do(ctx context.Context, method, endpoint string, body []byte, idempotencyKey string) (*http.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.RecordBackendRequest(method, 0, time.Since(start))
		return nil, err
	}

	metrics.RecordBackendRequest(method, resp.StatusCode, time.Since(start))
	return resp, nil
}

// errorMessage extracts a human-readable message from an error body
func errorMessage(resp *http.Response, fallback string) string {
	data, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil || len(data) == 0 {
		return fallback
	}

	var body map[string]any
	if err := json.Unmarshal(data, &body); err != nil {
		return fallback
	}

	if msg := records.StringField(body, "message", "error", "detail"); msg != "" {
		return msg
	}
	return fallback
}

// unwrapRecord peels a single-record envelope
func unwrapRecord(payload any) map[string]any {
	record, ok := payload.(map[string]any)
	if !ok {
		return nil
	}
	for _, key := range []string{"data", "result", "record"} {
		if inner, ok := record[key].(map[string]any); ok {
			return inner
		}
	}
	return record
}

// Request types (written to the EMR API)

type patientRequest struct {
	Identifier string `json:"identifier,omitempty"`
	GivenName  string `json:"given_name"`
	FamilyName string `json:"family_name"`
	BirthDate  string `json:"birth_date,omitempty"`
	Gender     string `json:"gender,omitempty"`
}

type vitalsRequest struct {
	PatientID string  `json:"patient_id"`
	VisitDate string  `json:"visit_date"`
	HeightCm  float64 `json:"height_cm"`
	WeightKg  float64 `json:"weight_kg"`
	BMI       float64 `json:"bmi"`
}

type assessmentRequest struct {
	PatientID     string `json:"patient_id"`
	VisitDate     string `json:"visit_date"`
	GeneralHealth string `json:"general_health"`
	UsingDrugs    string `json:"currently_using_drugs,omitempty"`
	BeenOnDiet    string `json:"been_on_diet,omitempty"`
	Comments      string `json:"comments,omitempty"`
}

// Mapping functions

func mapPatient(record map[string]any) records.Patient {
	return records.Patient{
		ID:         records.StringField(record, "id", "uuid", "patient_id"),
		Identifier: records.StringField(record, "identifier", "medical_record_number"),
		GivenName:  records.StringField(record, "given_name", "first_name"),
		FamilyName: records.StringField(record, "family_name", "last_name"),
		BirthDate:  records.DateField(record, "birth_date", "date_of_birth", "dob"),
		Gender:     records.StringField(record, "gender", "sex"),
		CreatedAt:  records.TimeField(record, "created_at", "date_created", "registered_at"),
	}
}

func mapVitals(record map[string]any) records.VitalsRecord {
	height, _ := records.FloatField(record, "height_cm", "height")
	weight, _ := records.FloatField(record, "weight_kg", "weight")
	bmi, _ := records.FloatField(record, "bmi")

	return records.VitalsRecord{
		ID:        records.StringField(record, "id", "uuid"),
		PatientID: records.StringField(record, "patient_id", "patient"),
		VisitDate: records.DateField(record, "visit_date", "date", "encounter_date"),
		HeightCm:  height,
		WeightKg:  weight,
		BMI:       bmi,
		CreatedAt: records.TimeField(record, "created_at", "date_created"),
	}
}

func mapAssessment(record map[string]any, kind records.AssessmentKind) records.AssessmentRecord {
	assessment := records.AssessmentRecord{
		ID:            records.StringField(record, "id", "uuid"),
		PatientID:     records.StringField(record, "patient_id", "patient"),
		Kind:          kind,
		VisitDate:     records.DateField(record, "visit_date", "date", "encounter_date"),
		GeneralHealth: records.StringField(record, "general_health", "health_status"),
		Comments:      records.StringField(record, "comments", "notes"),
		CreatedAt:     records.TimeField(record, "created_at", "date_created"),
	}

	switch kind {
	case records.AssessmentOverweight:
		assessment.BeenOnDiet = records.AnswerField(record, "been_on_diet", "on_diet")
	default:
		assessment.UsingDrugs = records.AnswerField(record, "currently_using_drugs", "using_drugs")
	}

	return assessment
}

var _ records.Adapter = (*Client)(nil)

package emrapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/careops/visitflow/internal/adapters/records"
	apperrors "github.com/careops/visitflow/internal/shared/errors"
	"github.com/careops/visitflow/internal/shared/types"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := New(Config{
		BaseURL:              server.URL,
		Timeout:              2 * time.Second,
		RetryAttempts:        3,
		RetryDelay:           5 * time.Millisecond,
		MaxRequestsPerSecond: 1000,
	})
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	return client
}

func mustDate(t *testing.T, s string) types.VisitDate {
	t.Helper()
	d, err := types.ParseVisitDate(s)
	if err != nil {
		t.Fatalf("Failed to parse date '%s': %v", s, err)
	}
	return d
}

// --- Read Tests ---

func TestListVitalsNormalizesEnvelope(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/vitals" {
			t.Errorf("Expected path '/vitals', got '%s'", r.URL.Path)
		}
		if got := r.URL.Query().Get("patient_id"); got != "p1" {
			t.Errorf("Expected patient_id 'p1', got '%s'", got)
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"results":[
			{"id":"v1","patient_id":"p1","visit_date":"2024-03-15T08:00:00Z","height":"170","weight_kg":70.2,"bmi":24.3,"created_at":"2024-03-15T08:00:00Z"},
			{"id":"v2","patient_id":"p1","visit_date":"2024-03-10","height_cm":170,"weight_kg":71,"bmi":24.6}
		]}`))
	}))

	vitals, err := client.ListVitals(context.Background(), "p1")
	if err != nil {
		t.Fatalf("Failed to list vitals: %v", err)
	}

	if len(vitals) != 2 {
		t.Fatalf("Expected 2 vitals records, got %d", len(vitals))
	}

	first := vitals[0]
	if first.ID != "v1" {
		t.Errorf("Expected id 'v1', got '%s'", first.ID)
	}
	if first.VisitDate.String() != "2024-03-15" {
		t.Errorf("Expected timestamped visit date truncated to '2024-03-15', got '%s'", first.VisitDate.String())
	}
	if first.HeightCm != 170 {
		t.Errorf("Expected string height coerced to 170, got %v", first.HeightCm)
	}
	if first.WeightKg != 70.2 {
		t.Errorf("Expected weight 70.2, got %v", first.WeightKg)
	}
}

func TestListPatientsBareList(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"id":"p1","first_name":"Amara","last_name":"Okafor","dob":"1990-06-01"}]`))
	}))

	patients, err := client.ListPatients(context.Background(), records.PatientFilter{})
	if err != nil {
		t.Fatalf("Failed to list patients: %v", err)
	}

	if len(patients) != 1 {
		t.Fatalf("Expected 1 patient, got %d", len(patients))
	}

	if patients[0].GivenName != "Amara" {
		t.Errorf("Expected alternate key 'first_name' read, got '%s'", patients[0].GivenName)
	}
	if patients[0].BirthDate.String() != "1990-06-01" {
		t.Errorf("Expected birth date '1990-06-01', got '%s'", patients[0].BirthDate.String())
	}
}

func TestGetPatientNotFound(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	_, err := client.GetPatient(context.Background(), "missing")
	if err == nil {
		t.Fatal("Expected an error for a missing patient")
	}
	if !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("Expected a not-found error, got %v", err)
	}
}

func TestReadRetriesOnServerError(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[]`))
	}))

	_, err := client.ListVitals(context.Background(), "p1")
	if err != nil {
		t.Fatalf("Expected the third attempt to succeed, got %v", err)
	}

	if got := calls.Load(); got != 3 {
		t.Errorf("Expected 3 attempts, got %d", got)
	}
}

func TestReadExhaustsRetries(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))

	_, err := client.ListVitals(context.Background(), "p1")
	if err == nil {
		t.Fatal("Expected an error after exhausting retries")
	}
	if !errors.Is(err, apperrors.ErrUnavailable) {
		t.Errorf("Expected an unavailable error, got %v", err)
	}

	if got := calls.Load(); got != 3 {
		t.Errorf("Expected 3 attempts, got %d", got)
	}
}

func TestReadDoesNotRetryClientError(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))

	_, err := client.ListVitals(context.Background(), "p1")
	if err == nil {
		t.Fatal("Expected an error on a 400 response")
	}

	if got := calls.Load(); got != 1 {
		t.Errorf("Expected a single attempt on a client error, got %d", got)
	}
}

func TestReadHonorsContextCancellation(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.ListVitals(ctx, "p1")
	if err == nil {
		t.Fatal("Expected an error on a cancelled context")
	}
}

// --- Write Tests ---

func TestCreateVitalsSendsCanonicalPayload(t *testing.T) {
	var captured map[string]any
	var idempotencyKey string

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("Expected POST, got %s", r.Method)
		}
		idempotencyKey = r.Header.Get("Idempotency-Key")

		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("Failed to decode request body: %v", err)
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"data":{"id":"v9","patient_id":"p1","visit_date":"2024-03-15","height_cm":170,"weight_kg":70.2,"bmi":24.3,"created_at":"2024-03-15T09:00:00Z"}}`))
	}))

	created, err := client.CreateVitals(context.Background(), records.VitalsRecord{
		PatientID: "p1",
		VisitDate: mustDate(t, "2024-03-15"),
		HeightCm:  170,
		WeightKg:  70.2,
		BMI:       24.3,
	})
	if err != nil {
		t.Fatalf("Failed to create vitals: %v", err)
	}

	if created.ID != "v9" {
		t.Errorf("Expected stored id 'v9', got '%s'", created.ID)
	}

	if idempotencyKey == "" {
		t.Error("Expected a generated Idempotency-Key header")
	}

	for _, field := range []string{"patient_id", "visit_date", "height_cm", "weight_kg", "bmi"} {
		if _, ok := captured[field]; !ok {
			t.Errorf("Expected request field '%s'", field)
		}
	}
	if captured["visit_date"] != "2024-03-15" {
		t.Errorf("Expected visit_date '2024-03-15', got '%v'", captured["visit_date"])
	}
}

func TestCreateAssessmentFieldsPerKind(t *testing.T) {
	var captured map[string]any
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/overweight-assessments" {
			t.Errorf("Expected path '/overweight-assessments', got '%s'", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("Failed to decode request body: %v", err)
		}
		w.WriteHeader(http.StatusCreated)
	}))

	_, err := client.CreateAssessment(context.Background(), records.AssessmentRecord{
		PatientID:     "p1",
		Kind:          records.AssessmentOverweight,
		VisitDate:     mustDate(t, "2024-03-16"),
		GeneralHealth: "Good",
		BeenOnDiet:    "Yes",
		Comments:      "follow up in a month",
	})
	if err != nil {
		t.Fatalf("Failed to create assessment: %v", err)
	}

	if captured["been_on_diet"] != "Yes" {
		t.Errorf("Expected been_on_diet 'Yes', got '%v'", captured["been_on_diet"])
	}
	if _, ok := captured["currently_using_drugs"]; ok {
		t.Error("Overweight assessment should not carry the drug-use field")
	}
}

func TestCreateForwardsCallerIdempotencyKey(t *testing.T) {
	var key string
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key = r.Header.Get("Idempotency-Key")
		w.WriteHeader(http.StatusCreated)
	}))

	ctx := records.WithIdempotencyKey(context.Background(), "resubmit-42")
	_, err := client.CreateVitals(ctx, records.VitalsRecord{PatientID: "p1", VisitDate: mustDate(t, "2024-03-15")})
	if err != nil {
		t.Fatalf("Failed to create vitals: %v", err)
	}

	if key != "resubmit-42" {
		t.Errorf("Expected forwarded key 'resubmit-42', got '%s'", key)
	}
}

func TestWriteNeverRetries(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))

	_, err := client.CreateVitals(context.Background(), records.VitalsRecord{
		PatientID: "p1",
		VisitDate: mustDate(t, "2024-03-15"),
	})
	if err == nil {
		t.Fatal("Expected an error on a failed write")
	}
	if !errors.Is(err, apperrors.ErrWriteFailed) {
		t.Errorf("Expected a write-failed error, got %v", err)
	}

	if got := calls.Load(); got != 1 {
		t.Errorf("Expected a single write attempt, got %d", got)
	}
}

func TestWriteConflictSurfaces(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		w.Write([]byte(`{"message":"a vitals record already exists for this date"}`))
	}))

	_, err := client.CreateVitals(context.Background(), records.VitalsRecord{
		PatientID: "p1",
		VisitDate: mustDate(t, "2024-03-15"),
	})
	if !apperrors.IsConflict(err) {
		t.Errorf("Expected a conflict error, got %v", err)
	}

	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		if appErr.Message != "a vitals record already exists for this date" {
			t.Errorf("Expected the backend message surfaced, got '%s'", appErr.Message)
		}
	} else {
		t.Error("Expected an AppError")
	}
}

func TestWriteBareCreatedResponse(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))

	record := records.VitalsRecord{
		PatientID: "p1",
		VisitDate: mustDate(t, "2024-03-15"),
		HeightCm:  170,
		WeightKg:  70.2,
		BMI:       24.3,
	}

	created, err := client.CreateVitals(context.Background(), record)
	if err != nil {
		t.Fatalf("Failed to create vitals: %v", err)
	}

	// The submitted record stands in when the backend returns no body
	if created.PatientID != "p1" || created.HeightCm != 170 {
		t.Errorf("Expected the submitted record back, got %+v", created)
	}
}

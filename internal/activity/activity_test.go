package activity

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

// --- Memory Recorder Tests ---

func TestMemoryRecorderNewestFirst(t *testing.T) {
	recorder := NewMemoryRecorder()
	ctx := context.Background()

	recorder.Record(ctx, NewEvent(ActionVitalsRecorded, "p1", nil))
	recorder.Record(ctx, NewEvent(ActionAssessmentRecorded, "p1", nil))

	events, err := recorder.List(ctx, Filter{})
	if err != nil {
		t.Fatalf("Failed to list events: %v", err)
	}

	if len(events) != 2 {
		t.Fatalf("Expected 2 events, got %d", len(events))
	}

	if events[0].Action != ActionAssessmentRecorded {
		t.Errorf("Expected newest event first, got '%s'", events[0].Action)
	}
}

func TestMemoryRecorderFilters(t *testing.T) {
	recorder := NewMemoryRecorder()
	ctx := context.Background()

	recorder.Record(ctx, NewEvent(ActionVitalsRecorded, "p1", nil))
	recorder.Record(ctx, NewEvent(ActionVitalsRecorded, "p2", nil))
	recorder.Record(ctx, NewEvent(ActionAssessmentDenied, "p1", nil))

	byPatient, _ := recorder.List(ctx, Filter{PatientID: "p1"})
	if len(byPatient) != 2 {
		t.Errorf("Expected 2 events for p1, got %d", len(byPatient))
	}

	byAction, _ := recorder.List(ctx, Filter{Action: ActionAssessmentDenied})
	if len(byAction) != 1 {
		t.Errorf("Expected 1 denied event, got %d", len(byAction))
	}

	limited, _ := recorder.List(ctx, Filter{Limit: 1})
	if len(limited) != 1 {
		t.Errorf("Expected limit applied, got %d events", len(limited))
	}
	if limited[0].Action != ActionAssessmentDenied {
		t.Errorf("Expected the newest event under limit, got '%s'", limited[0].Action)
	}
}

func TestMemoryRecorderEviction(t *testing.T) {
	recorder := NewMemoryRecorder()
	ctx := context.Background()

	for i := 0; i < memoryRecorderCap+10; i++ {
		recorder.Record(ctx, NewEvent(ActionVitalsRecorded, fmt.Sprintf("p%d", i), nil))
	}

	events, _ := recorder.List(ctx, Filter{Limit: memoryRecorderCap + 100})
	if len(events) != memoryRecorderCap {
		t.Errorf("Expected trail capped at %d, got %d", memoryRecorderCap, len(events))
	}

	// The oldest entries are the evicted ones
	oldest, _ := recorder.List(ctx, Filter{PatientID: "p0"})
	if len(oldest) != 0 {
		t.Error("Expected the first event to have been evicted")
	}
}

func TestNewEventStampsIdentity(t *testing.T) {
	event := NewEvent(ActionPatientRegistered, "p1", map[string]any{"given_name": "Amara"})

	if event.ID.IsZero() {
		t.Error("Event ID should not be zero")
	}
	if event.OccurredAt.IsZero() {
		t.Error("Event timestamp should be set")
	}
	if event.Action != ActionPatientRegistered {
		t.Errorf("Expected action '%s', got '%s'", ActionPatientRegistered, event.Action)
	}
}

// --- Handler Tests ---

func TestListActivityHandler(t *testing.T) {
	recorder := NewMemoryRecorder()
	ctx := context.Background()
	recorder.Record(ctx, NewEvent(ActionVitalsRecorded, "p1", nil))
	recorder.Record(ctx, NewEvent(ActionVitalsRecorded, "p2", nil))

	handler := NewHandler(recorder)
	server := httptest.NewServer(handler.Routes())
	defer server.Close()

	resp, err := http.Get(server.URL + "/?patient_id=p1")
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.StatusCode)
	}

	var body struct {
		Events []Event `json:"events"`
		Count  int     `json:"count"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	if body.Count != 1 {
		t.Errorf("Expected 1 event, got %d", body.Count)
	}
	if len(body.Events) == 1 && body.Events[0].PatientID != "p1" {
		t.Errorf("Expected event for 'p1', got '%s'", body.Events[0].PatientID)
	}
}

func TestListActivityRejectsBadLimit(t *testing.T) {
	handler := NewHandler(NewMemoryRecorder())
	server := httptest.NewServer(handler.Routes())
	defer server.Close()

	resp, err := http.Get(server.URL + "/?limit=zero")
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", resp.StatusCode)
	}
}

// Package activity keeps the clinical activity trail: who-did-what
// entries for patient registrations, vitals, assessments, and the
// submissions the workflow rejected. The trail is observational. It
// never gates a clinical write, and recording failures must never
// fail the operation being recorded.
package activity

import (
	"time"

	"github.com/careops/visitflow/internal/shared/types"
)

// Action identifies what happened.
type Action string

const (
	ActionPatientRegistered  Action = "patient.registered"
	ActionVitalsRecorded     Action = "vitals.recorded"
	ActionAssessmentRecorded Action = "assessment.recorded"
	ActionAssessmentDenied   Action = "assessment.denied"
	ActionDuplicateRejected  Action = "visit.duplicate_rejected"
)

// Event is one entry in the activity trail.
type Event struct {
	ID         types.ID       `json:"id"`
	OccurredAt time.Time      `json:"occurred_at"`
	Action     Action         `json:"action"`
	PatientID  string         `json:"patient_id,omitempty"`
	Details    map[string]any `json:"details,omitempty"`
}

// NewEvent stamps identity and time onto a new trail entry.
func NewEvent(action Action, patientID string, details map[string]any) *Event {
	return &Event{
		ID:         types.NewID(),
		OccurredAt: time.Now().UTC(),
		Action:     action,
		PatientID:  patientID,
		Details:    details,
	}
}

// Filter narrows activity listings.
type Filter struct {
	PatientID string
	Action    Action
	Limit     int
}

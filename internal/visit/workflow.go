package visit

import (
	"github.com/careops/visitflow/internal/adapters/records"
	"github.com/careops/visitflow/internal/bmi"
)

// State is a patient's position in the visit workflow. It is derived
// from backend records on every read, never stored.
type State string

const (
	// StateNoVitals means no vitals record exists yet.
	StateNoVitals State = "no_vitals"
	// StateVitalsRecorded means vitals exist and the follow-up
	// assessment for the current BMI category is still outstanding.
	StateVitalsRecorded State = "vitals_recorded"
	// StateAssessmentPending marks an assessment form in progress.
	// It is only ever surfaced on the assessment context, between
	// opening the form and submitting it.
	StateAssessmentPending State = "assessment_pending"
	// StateAssessmentRecorded means the required assessment has been
	// recorded on or after the latest vitals.
	StateAssessmentRecorded State = "assessment_recorded"
)

// RequiredAssessment maps a BMI category to the assessment kind the
// workflow demands next. Overweight patients get the overweight
// follow-up; everyone else gets the general one.
func RequiredAssessment(category bmi.Category) records.AssessmentKind {
	if category == bmi.CategoryOverweight {
		return records.AssessmentOverweight
	}
	return records.AssessmentGeneral
}

// Workflow is the derived state of a patient's visit cycle.
type Workflow struct {
	PatientID          string                    `json:"patient_id"`
	State              State                     `json:"state"`
	LatestVitals       *records.VitalsRecord     `json:"latest_vitals,omitempty"`
	BMI                *bmi.BMI                  `json:"bmi,omitempty"`
	RequiredAssessment records.AssessmentKind    `json:"required_assessment,omitempty"`
	LatestAssessment   *records.AssessmentRecord `json:"latest_assessment,omitempty"`
}

// AssessmentContext is handed to a client opening an assessment form.
// It carries the BMI evidence that made this form the right one.
type AssessmentContext struct {
	PatientID          string                 `json:"patient_id"`
	State              State                  `json:"state"`
	BMI                bmi.BMI                `json:"bmi"`
	RequiredAssessment records.AssessmentKind `json:"required_assessment"`
	LatestVitals       *records.VitalsRecord  `json:"latest_vitals"`
}

// deriveWorkflow computes the workflow position from the latest vitals
// and the latest assessment of the required kind. BMI is always
// recomputed from the stored measurements; a stored bmi field is never
// trusted.
func deriveWorkflow(patientID string, latestVitals *records.VitalsRecord, latestOfKind func(records.AssessmentKind) *records.AssessmentRecord) Workflow {
	w := Workflow{PatientID: patientID, State: StateNoVitals}
	if latestVitals == nil {
		return w
	}

	w.State = StateVitalsRecorded
	w.LatestVitals = latestVitals

	derived := bmi.Compute(latestVitals.HeightCm, latestVitals.WeightKg)
	if !derived.IsValid() {
		// Degenerate stored measurements: vitals exist but no
		// category can be derived, so no assessment is required.
		return w
	}

	w.BMI = &derived
	w.RequiredAssessment = RequiredAssessment(derived.Category)

	latest := latestOfKind(w.RequiredAssessment)
	if latest == nil {
		return w
	}
	w.LatestAssessment = latest

	vitalsDate := records.EffectiveDate(latestVitals.VisitDate, latestVitals.CreatedAt)
	assessmentDate := records.EffectiveDate(latest.VisitDate, latest.CreatedAt)
	if assessmentDate.IsZero() || vitalsDate.IsZero() {
		return w
	}
	if !assessmentDate.Before(vitalsDate) {
		w.State = StateAssessmentRecorded
	}
	return w
}

// Package visit implements the clinical visit workflow: recording
// vitals, gating follow-up assessments on the derived BMI category,
// and blocking same-day duplicate records.
package visit

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/careops/visitflow/internal/adapters/records"
	"github.com/careops/visitflow/internal/bmi"
	apperrors "github.com/careops/visitflow/internal/shared/errors"
	"github.com/careops/visitflow/internal/shared/types"
)

// Clinical bounds for vitals measurements. The backend owns storage
// but out-of-range values are rejected here before any network call.
const (
	MinHeightCm = 50.0
	MaxHeightCm = 250.0
	MinWeightKg = 2.0
	MaxWeightKg = 300.0
)

// Accepted general-health values.
const (
	HealthGood = "Good"
	HealthPoor = "Poor"
)

// Measurement is a numeric form value. Forms deliver numbers as
// strings as often as not; both are accepted on decode and anything
// unparseable becomes NaN for validation to reject.
type Measurement float64

func (m *Measurement) UnmarshalJSON(data []byte) error {
	s := strings.Trim(strings.TrimSpace(string(data)), `"`)
	if s == "" || s == "null" {
		*m = Measurement(math.NaN())
		return nil
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		*m = Measurement(math.NaN())
		return nil
	}
	*m = Measurement(f)
	return nil
}

// VitalsSubmission is a request to record height and weight for a
// visit. PatientID is taken from the URL, never the body.
type VitalsSubmission struct {
	PatientID string          `json:"patient_id"`
	VisitDate types.VisitDate `json:"visit_date"`
	HeightCm  Measurement     `json:"height_cm"`
	WeightKg  Measurement     `json:"weight_kg"`
}

// Validate checks the submission before any network call.
func (s VitalsSubmission) Validate() error {
	details := map[string]string{}

	if strings.TrimSpace(s.PatientID) == "" {
		details["patient_id"] = "patient is required"
	}
	validateVisitDate(s.VisitDate, details)
	validateMeasurement(details, "height_cm", float64(s.HeightCm), MinHeightCm, MaxHeightCm)
	validateMeasurement(details, "weight_kg", float64(s.WeightKg), MinWeightKg, MaxWeightKg)

	if len(details) > 0 {
		return apperrors.Validation("invalid vitals submission", details)
	}
	return nil
}

// AssessmentSubmission is a request to record a follow-up assessment.
// UsingDrugsAlt mirrors the alternate field name some clients send.
type AssessmentSubmission struct {
	PatientID     string                 `json:"patient_id"`
	Kind          records.AssessmentKind `json:"kind"`
	VisitDate     types.VisitDate        `json:"visit_date"`
	GeneralHealth string                 `json:"general_health"`
	UsingDrugs    string                 `json:"currently_using_drugs"`
	UsingDrugsAlt string                 `json:"using_drugs"`
	BeenOnDiet    string                 `json:"been_on_diet"`
	Comments      string                 `json:"comments"`
}

// Normalize folds alternate field names and canonicalizes answers in
// place. Call before Validate.
func (s *AssessmentSubmission) Normalize() {
	if s.UsingDrugs == "" && s.UsingDrugsAlt != "" {
		s.UsingDrugs = s.UsingDrugsAlt
	}
	s.UsingDrugsAlt = ""

	s.GeneralHealth = canonicalHealth(s.GeneralHealth)
	s.UsingDrugs = records.NormalizeAnswer(s.UsingDrugs)
	s.BeenOnDiet = records.NormalizeAnswer(s.BeenOnDiet)
	s.Comments = strings.TrimSpace(s.Comments)
}

// Validate checks the submission before any network call.
func (s AssessmentSubmission) Validate() error {
	details := map[string]string{}

	if strings.TrimSpace(s.PatientID) == "" {
		details["patient_id"] = "patient is required"
	}
	if _, ok := records.ParseAssessmentKind(string(s.Kind)); !ok {
		details["kind"] = fmt.Sprintf("kind must be %q or %q", records.AssessmentGeneral, records.AssessmentOverweight)
	}
	validateVisitDate(s.VisitDate, details)

	if s.GeneralHealth != HealthGood && s.GeneralHealth != HealthPoor {
		details["general_health"] = fmt.Sprintf("must be %q or %q", HealthGood, HealthPoor)
	}

	switch s.Kind {
	case records.AssessmentOverweight:
		if !isYesNo(s.BeenOnDiet) {
			details["been_on_diet"] = "must be Yes or No"
		}
	case records.AssessmentGeneral:
		if !isYesNo(s.UsingDrugs) {
			details["currently_using_drugs"] = "must be Yes or No"
		}
	}

	if len(details) > 0 {
		return apperrors.Validation("invalid assessment submission", details)
	}
	return nil
}

// Record converts a validated submission into the backend record shape.
func (s AssessmentSubmission) Record() records.AssessmentRecord {
	record := records.AssessmentRecord{
		PatientID:     s.PatientID,
		Kind:          s.Kind,
		VisitDate:     s.VisitDate,
		GeneralHealth: s.GeneralHealth,
		Comments:      s.Comments,
	}
	switch s.Kind {
	case records.AssessmentOverweight:
		record.BeenOnDiet = s.BeenOnDiet
	default:
		record.UsingDrugs = s.UsingDrugs
	}
	return record
}

func validateVisitDate(d types.VisitDate, details map[string]string) {
	if d.IsZero() {
		details["visit_date"] = "date is required"
		return
	}
	if d.After(types.Today()) {
		details["visit_date"] = "date must not be in the future"
	}
}

func validateMeasurement(details map[string]string, field string, value, min, max float64) {
	switch {
	case math.IsNaN(value) || math.IsInf(value, 0):
		details[field] = "must be a number"
	case value <= 0:
		details[field] = "must be greater than zero"
	case value < min || value > max:
		details[field] = fmt.Sprintf("must be between %g and %g", min, max)
	}
}

func canonicalHealth(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "good":
		return HealthGood
	case "poor":
		return HealthPoor
	default:
		return strings.TrimSpace(s)
	}
}

func isYesNo(s string) bool {
	return s == records.AnswerYes || s == records.AnswerNo
}

// VitalsResult is returned after a successful vitals submission: the
// stored record, the derived BMI, and where the workflow goes next.
type VitalsResult struct {
	Record         records.VitalsRecord   `json:"record"`
	BMI            bmi.BMI                `json:"bmi"`
	NextAssessment records.AssessmentKind `json:"next_assessment"`
}

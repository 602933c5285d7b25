package records

import (
	"time"

	"github.com/careops/visitflow/internal/shared/types"
)

// RecordKind identifies one of the three clinical record kinds the
// backend stores per patient. The kinds are independent: a same-day
// duplicate of one kind never blocks a submission of another.
type RecordKind string

const (
	KindVitals               RecordKind = "vitals"
	KindGeneralAssessment    RecordKind = "general_assessment"
	KindOverweightAssessment RecordKind = "overweight_assessment"
)

// AssessmentKind distinguishes the two follow-up assessment forms.
type AssessmentKind string

const (
	AssessmentGeneral    AssessmentKind = "general"
	AssessmentOverweight AssessmentKind = "overweight"
)

// ParseAssessmentKind validates a caller-supplied kind string.
func ParseAssessmentKind(s string) (AssessmentKind, bool) {
	switch AssessmentKind(s) {
	case AssessmentGeneral:
		return AssessmentGeneral, true
	case AssessmentOverweight:
		return AssessmentOverweight, true
	default:
		return "", false
	}
}

// RecordKind maps an assessment kind onto its record kind for
// duplicate checks and backend queries.
func (k AssessmentKind) RecordKind() RecordKind {
	if k == AssessmentOverweight {
		return KindOverweightAssessment
	}
	return KindGeneralAssessment
}

// Patient is a person registered in the records backend.
type Patient struct {
	ID         string          `json:"id"`
	Identifier string          `json:"identifier,omitempty"`
	GivenName  string          `json:"given_name"`
	FamilyName string          `json:"family_name"`
	BirthDate  types.VisitDate `json:"birth_date"`
	Gender     string          `json:"gender,omitempty"`
	CreatedAt  time.Time       `json:"created_at,omitempty"`
}

// FullName returns the patient's display name.
func (p Patient) FullName() string {
	switch {
	case p.GivenName == "":
		return p.FamilyName
	case p.FamilyName == "":
		return p.GivenName
	default:
		return p.GivenName + " " + p.FamilyName
	}
}

// VitalsRecord is one vitals submission for a patient visit. BMI is
// stored alongside height and weight but readers recompute it from
// the raw measurements rather than trusting the stored value.
type VitalsRecord struct {
	ID        string          `json:"id,omitempty"`
	PatientID string          `json:"patient_id"`
	VisitDate types.VisitDate `json:"visit_date"`
	HeightCm  float64         `json:"height_cm"`
	WeightKg  float64         `json:"weight_kg"`
	BMI       float64         `json:"bmi"`
	CreatedAt time.Time       `json:"created_at,omitempty"`
}

// AssessmentRecord is one follow-up assessment submission. UsingDrugs
// is populated for general assessments and BeenOnDiet for overweight
// assessments; answers are kept as "Yes"/"No" strings.
type AssessmentRecord struct {
	ID            string          `json:"id,omitempty"`
	PatientID     string          `json:"patient_id"`
	Kind          AssessmentKind  `json:"kind"`
	VisitDate     types.VisitDate `json:"visit_date"`
	GeneralHealth string          `json:"general_health"`
	UsingDrugs    string          `json:"currently_using_drugs,omitempty"`
	BeenOnDiet    string          `json:"been_on_diet,omitempty"`
	Comments      string          `json:"comments,omitempty"`
	CreatedAt     time.Time       `json:"created_at,omitempty"`
}

// PatientFilter narrows patient listings.
type PatientFilter struct {
	Search string
	Limit  int
	Offset int
}

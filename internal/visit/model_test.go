package visit

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/careops/visitflow/internal/adapters/records"
)

// --- Submission Decoding Tests ---

func TestVitalsSubmissionDecodesStringNumbers(t *testing.T) {
	body := `{"visit_date":"2024-01-10","height_cm":"170","weight_kg":70.2}`

	var s VitalsSubmission
	if err := json.Unmarshal([]byte(body), &s); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	if float64(s.HeightCm) != 170 {
		t.Errorf("Expected height 170, got %v", float64(s.HeightCm))
	}
	if float64(s.WeightKg) != 70.2 {
		t.Errorf("Expected weight 70.2, got %v", float64(s.WeightKg))
	}
}

func TestVitalsSubmissionDecodeDefersBadNumbers(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"text value", `{"height_cm":"tall","weight_kg":70}`},
		{"empty string", `{"height_cm":"","weight_kg":70}`},
		{"null", `{"height_cm":null,"weight_kg":70}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var s VitalsSubmission
			if err := json.Unmarshal([]byte(tt.body), &s); err != nil {
				t.Fatalf("Expected decode to tolerate the value, got %v", err)
			}
			if !math.IsNaN(float64(s.HeightCm)) {
				t.Errorf("Expected NaN for validation to reject, got %v", float64(s.HeightCm))
			}
			if err := s.Validate(); err == nil {
				t.Error("Expected validation to reject the submission")
			}
		})
	}
}

// --- Normalization Tests ---

func TestAssessmentSubmissionNormalize(t *testing.T) {
	tests := []struct {
		name     string
		in       AssessmentSubmission
		health   string
		drugs    string
		diet     string
		comments string
	}{
		{
			"canonicalizes case",
			AssessmentSubmission{GeneralHealth: "GOOD", UsingDrugs: "YES", BeenOnDiet: "n"},
			HealthGood, records.AnswerYes, records.AnswerNo, "",
		},
		{
			"folds alternate drugs key",
			AssessmentSubmission{GeneralHealth: "poor", UsingDrugsAlt: "true"},
			HealthPoor, records.AnswerYes, "", "",
		},
		{
			"primary key wins over alternate",
			AssessmentSubmission{GeneralHealth: "Good", UsingDrugs: "No", UsingDrugsAlt: "Yes"},
			HealthGood, records.AnswerNo, "", "",
		},
		{
			"trims comments",
			AssessmentSubmission{GeneralHealth: "Good", Comments: "  stable  "},
			HealthGood, "", "", "stable",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := tt.in
			s.Normalize()

			if s.GeneralHealth != tt.health {
				t.Errorf("Expected health '%s', got '%s'", tt.health, s.GeneralHealth)
			}
			if s.UsingDrugs != tt.drugs {
				t.Errorf("Expected drugs '%s', got '%s'", tt.drugs, s.UsingDrugs)
			}
			if s.BeenOnDiet != tt.diet {
				t.Errorf("Expected diet '%s', got '%s'", tt.diet, s.BeenOnDiet)
			}
			if s.Comments != tt.comments {
				t.Errorf("Expected comments '%s', got '%s'", tt.comments, s.Comments)
			}
			if s.UsingDrugsAlt != "" {
				t.Error("Expected alternate key to be cleared")
			}
		})
	}
}

func TestAssessmentSubmissionKindFields(t *testing.T) {
	overweight := AssessmentSubmission{
		PatientID: "p1", Kind: records.AssessmentOverweight,
		VisitDate: date(t, "2024-01-10"), GeneralHealth: HealthGood,
		BeenOnDiet: records.AnswerYes, UsingDrugs: records.AnswerNo,
	}
	record := overweight.Record()
	if record.BeenOnDiet != records.AnswerYes {
		t.Errorf("Expected diet answer on overweight record, got '%s'", record.BeenOnDiet)
	}
	if record.UsingDrugs != "" {
		t.Errorf("Expected no drugs answer on overweight record, got '%s'", record.UsingDrugs)
	}

	general := AssessmentSubmission{
		PatientID: "p1", Kind: records.AssessmentGeneral,
		VisitDate: date(t, "2024-01-10"), GeneralHealth: HealthGood,
		UsingDrugs: records.AnswerNo, BeenOnDiet: records.AnswerYes,
	}
	record = general.Record()
	if record.UsingDrugs != records.AnswerNo {
		t.Errorf("Expected drugs answer on general record, got '%s'", record.UsingDrugs)
	}
	if record.BeenOnDiet != "" {
		t.Errorf("Expected no diet answer on general record, got '%s'", record.BeenOnDiet)
	}
}

func TestAssessmentSubmissionValidateKind(t *testing.T) {
	s := AssessmentSubmission{
		PatientID: "p1", Kind: "dietary",
		VisitDate: date(t, "2024-01-10"), GeneralHealth: HealthGood,
	}
	err := s.Validate()
	if err == nil {
		t.Fatal("Expected validation error for unknown kind")
	}
}

package visit

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/careops/visitflow/internal/activity"
	"github.com/careops/visitflow/internal/adapters/records"
	"github.com/careops/visitflow/internal/bmi"
	apperrors "github.com/careops/visitflow/internal/shared/errors"
	"github.com/careops/visitflow/internal/shared/metrics"
	"github.com/careops/visitflow/internal/shared/types"
)

// Service drives the visit workflow against the records backend. It
// holds no state of its own: every decision is derived from what the
// backend returns at call time.
type Service struct {
	records  records.Adapter
	activity activity.Recorder
	logger   zerolog.Logger
}

// NewService creates a visit workflow service. The activity recorder
// may be nil; the trail is observational and never gates a write.
func NewService(adapter records.Adapter, recorder activity.Recorder, logger zerolog.Logger) *Service {
	return &Service{
		records:  adapter,
		activity: recorder,
		logger:   logger.With().Str("component", "visit").Logger(),
	}
}

// RecordVitals validates and stores a vitals record, derives the BMI,
// and reports which assessment the workflow expects next.
func (s *Service) RecordVitals(ctx context.Context, submission VitalsSubmission) (*VitalsResult, error) {
	if err := submission.Validate(); err != nil {
		return nil, err
	}

	existing := s.knownVitalsDates(ctx, submission.PatientID)
	if HasConflict(existing, submission.VisitDate) {
		metrics.RecordVisitConflict("vitals")
		s.recordActivity(ctx, activity.ActionDuplicateRejected, submission.PatientID, map[string]any{
			"record_kind": string(records.KindVitals),
			"visit_date":  submission.VisitDate.String(),
		})
		return nil, apperrors.Conflict(fmt.Sprintf("vitals already recorded for %s", submission.VisitDate))
	}

	derived := bmi.Compute(float64(submission.HeightCm), float64(submission.WeightKg))

	stored, err := s.records.CreateVitals(ctx, records.VitalsRecord{
		PatientID: submission.PatientID,
		VisitDate: submission.VisitDate,
		HeightCm:  float64(submission.HeightCm),
		WeightKg:  float64(submission.WeightKg),
		BMI:       derived.Value,
	})
	if err != nil {
		return nil, err
	}

	metrics.RecordVitals(string(derived.Category))
	s.recordActivity(ctx, activity.ActionVitalsRecorded, submission.PatientID, map[string]any{
		"visit_date": submission.VisitDate.String(),
		"bmi":        derived.Value,
		"category":   string(derived.Category),
	})

	return &VitalsResult{
		Record:         *stored,
		BMI:            derived,
		NextAssessment: RequiredAssessment(derived.Category),
	}, nil
}

// BeginAssessment checks that the requested assessment kind is the one
// the patient's current BMI calls for and returns the form context.
// The wrong kind, or a patient with no usable vitals, is denied.
func (s *Service) BeginAssessment(ctx context.Context, patientID string, kind records.AssessmentKind) (*AssessmentContext, error) {
	latest, derived, err := s.checkEligibility(ctx, patientID, kind)
	if err != nil {
		return nil, err
	}

	return &AssessmentContext{
		PatientID:          patientID,
		State:              StateAssessmentPending,
		BMI:                derived,
		RequiredAssessment: RequiredAssessment(derived.Category),
		LatestVitals:       latest,
	}, nil
}

// RecordAssessment validates and stores a follow-up assessment.
// Eligibility is re-checked at submission time: the form open and the
// form submit are separate requests and the vitals may have changed.
func (s *Service) RecordAssessment(ctx context.Context, submission AssessmentSubmission) (*records.AssessmentRecord, error) {
	submission.Normalize()
	if err := submission.Validate(); err != nil {
		return nil, err
	}

	if _, _, err := s.checkEligibility(ctx, submission.PatientID, submission.Kind); err != nil {
		return nil, err
	}

	existing := s.knownAssessmentDates(ctx, submission.PatientID, submission.Kind)
	if HasConflict(existing, submission.VisitDate) {
		metrics.RecordVisitConflict(string(submission.Kind.RecordKind()))
		s.recordActivity(ctx, activity.ActionDuplicateRejected, submission.PatientID, map[string]any{
			"record_kind": string(submission.Kind.RecordKind()),
			"visit_date":  submission.VisitDate.String(),
		})
		return nil, apperrors.Conflict(fmt.Sprintf("%s assessment already recorded for %s", submission.Kind, submission.VisitDate))
	}

	stored, err := s.records.CreateAssessment(ctx, submission.Record())
	if err != nil {
		return nil, err
	}

	metrics.RecordAssessment(string(submission.Kind))
	s.recordActivity(ctx, activity.ActionAssessmentRecorded, submission.PatientID, map[string]any{
		"kind":       string(submission.Kind),
		"visit_date": submission.VisitDate.String(),
	})
	return stored, nil
}

// Workflow derives the patient's current workflow position. The
// patient must exist; vitals must be readable. A failed assessment
// read degrades to "assessment outstanding" rather than an error.
func (s *Service) Workflow(ctx context.Context, patientID string) (*Workflow, error) {
	if _, err := s.records.GetPatient(ctx, patientID); err != nil {
		return nil, err
	}

	vitals, err := s.records.ListVitals(ctx, patientID)
	if err != nil {
		return nil, apperrors.Unavailable("could not load vitals for workflow", err)
	}

	w := deriveWorkflow(patientID, records.MostRecentVitals(vitals), func(kind records.AssessmentKind) *records.AssessmentRecord {
		existing, err := s.records.ListAssessments(ctx, patientID, kind)
		if err != nil {
			s.logger.Warn().Err(err).
				Str("patient_id", patientID).
				Str("kind", string(kind)).
				Msg("workflow degraded: could not list assessments")
			return nil
		}
		return records.MostRecentAssessment(existing)
	})
	return &w, nil
}

// ListVitals returns a patient's vitals records, most recent first.
func (s *Service) ListVitals(ctx context.Context, patientID string) ([]records.VitalsRecord, error) {
	vitals, err := s.records.ListVitals(ctx, patientID)
	if err != nil {
		return nil, apperrors.Unavailable("could not list vitals", err)
	}
	sort.SliceStable(vitals, func(i, j int) bool {
		return effectiveAfter(
			records.EffectiveDate(vitals[i].VisitDate, vitals[i].CreatedAt), vitals[i].CreatedAt,
			records.EffectiveDate(vitals[j].VisitDate, vitals[j].CreatedAt), vitals[j].CreatedAt,
		)
	})
	return vitals, nil
}

// ListAssessments returns a patient's assessments, most recent first.
// An empty kind returns both kinds merged.
func (s *Service) ListAssessments(ctx context.Context, patientID string, kind records.AssessmentKind) ([]records.AssessmentRecord, error) {
	kinds := []records.AssessmentKind{kind}
	if kind == "" {
		kinds = []records.AssessmentKind{records.AssessmentGeneral, records.AssessmentOverweight}
	}

	var merged []records.AssessmentRecord
	for _, k := range kinds {
		batch, err := s.records.ListAssessments(ctx, patientID, k)
		if err != nil {
			return nil, apperrors.Unavailable("could not list assessments", err)
		}
		merged = append(merged, batch...)
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return effectiveAfter(
			records.EffectiveDate(merged[i].VisitDate, merged[i].CreatedAt), merged[i].CreatedAt,
			records.EffectiveDate(merged[j].VisitDate, merged[j].CreatedAt), merged[j].CreatedAt,
		)
	})
	return merged, nil
}

// checkEligibility verifies that kind is the assessment the patient's
// current BMI requires. Reads that support the gate must succeed: an
// empty fallback here would deny patients who do have vitals on file.
func (s *Service) checkEligibility(ctx context.Context, patientID string, kind records.AssessmentKind) (*records.VitalsRecord, bmi.BMI, error) {
	vitals, err := s.records.ListVitals(ctx, patientID)
	if err != nil {
		return nil, bmi.BMI{}, apperrors.Unavailable("could not verify assessment eligibility", err)
	}

	latest := records.MostRecentVitals(vitals)
	if latest == nil {
		return nil, bmi.BMI{}, s.denyAssessment(ctx, patientID, kind,
			"no BMI context: record vitals before an assessment", nil)
	}

	derived := bmi.Compute(latest.HeightCm, latest.WeightKg)
	if !derived.IsValid() {
		return nil, bmi.BMI{}, s.denyAssessment(ctx, patientID, kind,
			"no BMI context: latest vitals do not yield a usable BMI", nil)
	}

	required := RequiredAssessment(derived.Category)
	if kind != required {
		return nil, bmi.BMI{}, s.denyAssessment(ctx, patientID, kind,
			fmt.Sprintf("%s assessment required for BMI category %s", required, derived.Category),
			map[string]string{
				"required_assessment": string(required),
				"bmi_category":        string(derived.Category),
			})
	}

	return latest, derived, nil
}

func (s *Service) denyAssessment(ctx context.Context, patientID string, kind records.AssessmentKind, message string, details map[string]string) error {
	metrics.RecordEligibilityDenied(string(kind))
	activityDetails := map[string]any{"kind": string(kind), "reason": message}
	for k, v := range details {
		activityDetails[k] = v
	}
	s.recordActivity(ctx, activity.ActionAssessmentDenied, patientID, activityDetails)
	return apperrors.Eligibility(message, details)
}

// knownVitalsDates loads the dates a new vitals record must not
// collide with. A failed read degrades to an empty set; the backend
// remains the final duplicate enforcer.
func (s *Service) knownVitalsDates(ctx context.Context, patientID string) map[string]struct{} {
	existing, err := s.records.ListVitals(ctx, patientID)
	if err != nil {
		s.logger.Warn().Err(err).
			Str("patient_id", patientID).
			Msg("duplicate check degraded: could not list vitals")
		return map[string]struct{}{}
	}
	return VitalsDates(existing)
}

func (s *Service) knownAssessmentDates(ctx context.Context, patientID string, kind records.AssessmentKind) map[string]struct{} {
	existing, err := s.records.ListAssessments(ctx, patientID, kind)
	if err != nil {
		s.logger.Warn().Err(err).
			Str("patient_id", patientID).
			Str("kind", string(kind)).
			Msg("duplicate check degraded: could not list assessments")
		return map[string]struct{}{}
	}
	return AssessmentDates(existing)
}

func (s *Service) recordActivity(ctx context.Context, action activity.Action, patientID string, details map[string]any) {
	if s.activity == nil {
		return
	}
	event := activity.NewEvent(action, patientID, details)
	if err := s.activity.Record(ctx, event); err != nil {
		s.logger.Warn().Err(err).Str("action", string(action)).Msg("activity record failed")
		return
	}
	metrics.RecordActivityEvent(string(action))
}

// effectiveAfter orders records newest first by effective date, then
// by creation time when the dates match. Undatable records sort last.
func effectiveAfter(dateA types.VisitDate, createdA time.Time, dateB types.VisitDate, createdB time.Time) bool {
	switch {
	case dateA.IsZero():
		return false
	case dateB.IsZero():
		return true
	case dateA.After(dateB):
		return true
	case dateB.After(dateA):
		return false
	default:
		return createdA.After(createdB)
	}
}

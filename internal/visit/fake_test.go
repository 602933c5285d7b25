package visit

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/careops/visitflow/internal/adapters/records"
	apperrors "github.com/careops/visitflow/internal/shared/errors"
	"github.com/careops/visitflow/internal/shared/types"
)

// fakeAdapter is an in-memory records.Adapter. Each stored record gets
// a strictly increasing CreatedAt so tie-break behavior is stable.
type fakeAdapter struct {
	mu          sync.Mutex
	patients    map[string]records.Patient
	vitals      map[string][]records.VitalsRecord
	assessments map[string][]records.AssessmentRecord
	nextID      int
	clock       time.Time

	listVitalsErr      error
	listAssessmentsErr error
	createErr          error

	createVitalsCalls     int
	createAssessmentCalls int
}

func newFakeAdapter() *fakeAdapter {
	return &fakeAdapter{
		patients:    make(map[string]records.Patient),
		vitals:      make(map[string][]records.VitalsRecord),
		assessments: make(map[string][]records.AssessmentRecord),
		clock:       time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC),
	}
}

func (f *fakeAdapter) id(prefix string) string {
	f.nextID++
	return fmt.Sprintf("%s-%d", prefix, f.nextID)
}

func (f *fakeAdapter) tick() time.Time {
	f.clock = f.clock.Add(time.Minute)
	return f.clock
}

func (f *fakeAdapter) addPatient(id, given, family string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.patients[id] = records.Patient{ID: id, GivenName: given, FamilyName: family, CreatedAt: f.tick()}
}

func (f *fakeAdapter) addVitals(patientID string, visitDate types.VisitDate, heightCm, weightKg float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.vitals[patientID] = append(f.vitals[patientID], records.VitalsRecord{
		ID: f.id("v"), PatientID: patientID, VisitDate: visitDate,
		HeightCm: heightCm, WeightKg: weightKg, CreatedAt: f.tick(),
	})
}

func (f *fakeAdapter) addAssessment(patientID string, kind records.AssessmentKind, visitDate types.VisitDate) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.assessments[patientID] = append(f.assessments[patientID], records.AssessmentRecord{
		ID: f.id("a"), PatientID: patientID, Kind: kind,
		VisitDate: visitDate, GeneralHealth: HealthGood, CreatedAt: f.tick(),
	})
}

func (f *fakeAdapter) ListPatients(ctx context.Context, filter records.PatientFilter) ([]records.Patient, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []records.Patient
	for _, p := range f.patients {
		if filter.Search != "" && !strings.Contains(strings.ToLower(p.FullName()), strings.ToLower(filter.Search)) {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (f *fakeAdapter) GetPatient(ctx context.Context, patientID string) (*records.Patient, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.patients[patientID]
	if !ok {
		return nil, apperrors.NotFound("patient", patientID)
	}
	return &p, nil
}

func (f *fakeAdapter) CreatePatient(ctx context.Context, patient records.Patient) (*records.Patient, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	patient.ID = f.id("p")
	patient.CreatedAt = f.tick()
	f.patients[patient.ID] = patient
	return &patient, nil
}

func (f *fakeAdapter) ListVitals(ctx context.Context, patientID string) ([]records.VitalsRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listVitalsErr != nil {
		return nil, f.listVitalsErr
	}
	return append([]records.VitalsRecord(nil), f.vitals[patientID]...), nil
}

func (f *fakeAdapter) CreateVitals(ctx context.Context, record records.VitalsRecord) (*records.VitalsRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createVitalsCalls++
	if f.createErr != nil {
		return nil, f.createErr
	}
	record.ID = f.id("v")
	record.CreatedAt = f.tick()
	f.vitals[record.PatientID] = append(f.vitals[record.PatientID], record)
	return &record, nil
}

func (f *fakeAdapter) ListAssessments(ctx context.Context, patientID string, kind records.AssessmentKind) ([]records.AssessmentRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listAssessmentsErr != nil {
		return nil, f.listAssessmentsErr
	}
	var out []records.AssessmentRecord
	for _, a := range f.assessments[patientID] {
		if a.Kind == kind {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeAdapter) CreateAssessment(ctx context.Context, record records.AssessmentRecord) (*records.AssessmentRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createAssessmentCalls++
	if f.createErr != nil {
		return nil, f.createErr
	}
	record.ID = f.id("a")
	record.CreatedAt = f.tick()
	f.assessments[record.PatientID] = append(f.assessments[record.PatientID], record)
	return &record, nil
}

func (f *fakeAdapter) SourceSystem() string { return "fake" }

func (f *fakeAdapter) Health(ctx context.Context) error { return nil }

var _ records.Adapter = (*fakeAdapter)(nil)

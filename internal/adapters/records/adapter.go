// Package records defines the interface to the clinical records
// backend and the shared normalization rules for its payloads.
package records

import "context"

// Adapter defines the interface to the records backend. The backend
// owns all persistence; this service reads and writes through it and
// keeps no clinical state of its own.
type Adapter interface {
	// Patient registry
	ListPatients(ctx context.Context, filter PatientFilter) ([]Patient, error)
	GetPatient(ctx context.Context, patientID string) (*Patient, error)
	CreatePatient(ctx context.Context, patient Patient) (*Patient, error)

	// Vitals, newest data wins on the visit workflow
	ListVitals(ctx context.Context, patientID string) ([]VitalsRecord, error)
	CreateVitals(ctx context.Context, record VitalsRecord) (*VitalsRecord, error)

	// Follow-up assessments, fetched per kind
	ListAssessments(ctx context.Context, patientID string, kind AssessmentKind) ([]AssessmentRecord, error)
	CreateAssessment(ctx context.Context, record AssessmentRecord) (*AssessmentRecord, error)

	// Adapter metadata
	SourceSystem() string

	// Health verifies the backend is reachable
	Health(ctx context.Context) error
}

type contextKey string

const idempotencyKeyContextKey contextKey = "idempotency_key"

// WithIdempotencyKey attaches a caller-supplied idempotency key to the
// context. Write operations forward it to the backend so a retried
// submission lands on the same record.
func WithIdempotencyKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, idempotencyKeyContextKey, key)
}

// IdempotencyKeyFrom extracts a caller-supplied idempotency key, if any.
func IdempotencyKeyFrom(ctx context.Context) string {
	key, ok := ctx.Value(idempotencyKeyContextKey).(string)
	if !ok {
		return ""
	}
	return key
}

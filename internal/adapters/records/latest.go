package records

import (
	"time"

	"github.com/careops/visitflow/internal/shared/types"
)

// EffectiveDate orders a record in time: the visit date when present,
// else the creation timestamp collapsed to its calendar date. Records
// carrying neither are undatable and never win a most-recent pick.
func EffectiveDate(visitDate types.VisitDate, createdAt time.Time) types.VisitDate {
	if !visitDate.IsZero() {
		return visitDate
	}
	if !createdAt.IsZero() {
		return types.DateOf(createdAt)
	}
	return types.VisitDate{}
}

// MostRecentVitals picks the latest vitals record by effective date.
// Equal dates fall back to the creation timestamp; a full tie keeps
// the earlier entry.
func MostRecentVitals(list []VitalsRecord) *VitalsRecord {
	var best *VitalsRecord
	var bestDate types.VisitDate

	for i := range list {
		candidate := &list[i]
		date := EffectiveDate(candidate.VisitDate, candidate.CreatedAt)
		if date.IsZero() {
			continue
		}
		if best == nil || date.After(bestDate) ||
			(date.Equal(bestDate) && candidate.CreatedAt.After(best.CreatedAt)) {
			best = candidate
			bestDate = date
		}
	}
	return best
}

// MostRecentAssessment picks the latest assessment by effective date,
// with the same tie rules as MostRecentVitals.
func MostRecentAssessment(list []AssessmentRecord) *AssessmentRecord {
	var best *AssessmentRecord
	var bestDate types.VisitDate

	for i := range list {
		candidate := &list[i]
		date := EffectiveDate(candidate.VisitDate, candidate.CreatedAt)
		if date.IsZero() {
			continue
		}
		if best == nil || date.After(bestDate) ||
			(date.Equal(bestDate) && candidate.CreatedAt.After(best.CreatedAt)) {
			best = candidate
			bestDate = date
		}
	}
	return best
}

// LaterAssessment picks the more recent of two assessments of
// different kinds. When both land on the same effective date and
// creation timestamp, the overweight assessment wins.
func LaterAssessment(a, b *AssessmentRecord) *AssessmentRecord {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	}

	dateA := EffectiveDate(a.VisitDate, a.CreatedAt)
	dateB := EffectiveDate(b.VisitDate, b.CreatedAt)

	switch {
	case dateA.After(dateB):
		return a
	case dateB.After(dateA):
		return b
	case a.CreatedAt.After(b.CreatedAt):
		return a
	case b.CreatedAt.After(a.CreatedAt):
		return b
	case a.Kind == AssessmentOverweight:
		return a
	default:
		return b
	}
}

package visit

import (
	"github.com/careops/visitflow/internal/adapters/records"
	"github.com/careops/visitflow/internal/shared/types"
)

// HasConflict reports whether a record already exists for the
// candidate visit date. Dates are compared calendar-day to
// calendar-day; existing holds String() forms of known dates.
func HasConflict(existing map[string]struct{}, candidate types.VisitDate) bool {
	if candidate.IsZero() {
		return false
	}
	_, ok := existing[candidate.String()]
	return ok
}

// VitalsDates collects the visit dates of existing vitals records.
// Records without a usable date cannot conflict and are skipped.
func VitalsDates(existing []records.VitalsRecord) map[string]struct{} {
	dates := make(map[string]struct{}, len(existing))
	for _, r := range existing {
		if r.VisitDate.IsZero() {
			continue
		}
		dates[r.VisitDate.String()] = struct{}{}
	}
	return dates
}

// AssessmentDates collects the visit dates of existing assessment
// records. The caller is expected to pass records of a single kind;
// each kind guards its own dates independently.
func AssessmentDates(existing []records.AssessmentRecord) map[string]struct{} {
	dates := make(map[string]struct{}, len(existing))
	for _, r := range existing {
		if r.VisitDate.IsZero() {
			continue
		}
		dates[r.VisitDate.String()] = struct{}{}
	}
	return dates
}

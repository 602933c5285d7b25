package types

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the wire format for calendar dates (ISO 8601, date only).
const DateLayout = "2006-01-02"

// VisitDate is a calendar date with no time-of-day component. Clinical
// records are keyed by the date a visit pertains to, not by the creation
// timestamp, so comparisons must ignore any time portion a backend attaches.
type VisitDate struct {
	t time.Time
}

// ParseVisitDate parses an ISO calendar date. A time suffix (RFC 3339 or a
// plain "T..."/" ..." tail) is tolerated and stripped.
func ParseVisitDate(s string) (VisitDate, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return VisitDate{}, fmt.Errorf("date is required")
	}

	// Strip a time component if present: keep the calendar part only.
	if len(s) > len(DateLayout) {
		s = s[:len(DateLayout)]
	}

	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return VisitDate{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", s)
	}
	return VisitDate{t: t}, nil
}

// DateOf truncates a timestamp to its calendar date in UTC.
func DateOf(t time.Time) VisitDate {
	u := t.UTC()
	return VisitDate{t: time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)}
}

// Today returns the current calendar date in UTC.
func Today() VisitDate {
	return DateOf(time.Now())
}

// String returns the YYYY-MM-DD representation.
func (d VisitDate) String() string {
	if d.IsZero() {
		return ""
	}
	return d.t.Format(DateLayout)
}

// Time returns the date at midnight UTC.
func (d VisitDate) Time() time.Time {
	return d.t
}

// IsZero checks if the date is unset.
func (d VisitDate) IsZero() bool {
	return d.t.IsZero()
}

// Equal reports whether two dates are the same calendar date.
func (d VisitDate) Equal(o VisitDate) bool {
	return d.t.Equal(o.t)
}

// After reports whether d is a later calendar date than o.
func (d VisitDate) After(o VisitDate) bool {
	return d.t.After(o.t)
}

// Before reports whether d is an earlier calendar date than o.
func (d VisitDate) Before(o VisitDate) bool {
	return d.t.Before(o.t)
}

// MarshalJSON renders the date as "YYYY-MM-DD", or null when unset.
func (d VisitDate) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + d.String() + `"`), nil
}

// UnmarshalJSON accepts "YYYY-MM-DD", a timestamped variant, or null.
func (d *VisitDate) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		*d = VisitDate{}
		return nil
	}
	parsed, err := ParseVisitDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

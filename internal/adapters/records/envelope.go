package records

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/careops/visitflow/internal/shared/types"
)

// Canonical yes/no answer values for assessment fields.
const (
	AnswerYes = "Yes"
	AnswerNo  = "No"
)

// ExtractRecords normalizes a decoded backend list response into a
// flat slice of records. The backend wraps lists inconsistently, so
// the lookup proceeds in a fixed order:
//
//  1. the payload itself, when it is already a list
//  2. the conventional "results" then "data" envelope keys
//  3. the first list-valued entry at depth one
//  4. the first list-valued entry at depth two
//
// Map entries are scanned in lexicographic key order so the choice is
// deterministic. Anything unrecognizable yields an empty slice; this
// function never panics.
func ExtractRecords(payload any) []any {
	switch v := payload.(type) {
	case []any:
		return v
	case map[string]any:
		return extractFromEnvelope(v)
	default:
		return []any{}
	}
}

func extractFromEnvelope(envelope map[string]any) []any {
	for _, key := range []string{"results", "data"} {
		if list, ok := envelope[key].([]any); ok {
			return list
		}
	}

	keys := sortedKeys(envelope)
	for _, key := range keys {
		if list, ok := envelope[key].([]any); ok {
			return list
		}
	}

	for _, key := range keys {
		inner, ok := envelope[key].(map[string]any)
		if !ok {
			continue
		}
		for _, innerKey := range sortedKeys(inner) {
			if list, ok := inner[innerKey].([]any); ok {
				return list
			}
		}
	}

	return []any{}
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// StringField returns the first non-empty value among the given keys,
// coerced to a string. Backends are loose about field types, so
// numbers and booleans are formatted rather than dropped.
func StringField(record map[string]any, keys ...string) string {
	for _, key := range keys {
		v, ok := record[key]
		if !ok || v == nil {
			continue
		}
		switch s := v.(type) {
		case string:
			if trimmed := strings.TrimSpace(s); trimmed != "" {
				return trimmed
			}
		case float64:
			return strconv.FormatFloat(s, 'f', -1, 64)
		case bool:
			return strconv.FormatBool(s)
		}
	}
	return ""
}

// FloatField returns the first value among the given keys that reads
// as a number.
func FloatField(record map[string]any, keys ...string) (float64, bool) {
	for _, key := range keys {
		v, ok := record[key]
		if !ok || v == nil {
			continue
		}
		switch n := v.(type) {
		case float64:
			return n, true
		case string:
			if f, err := strconv.ParseFloat(strings.TrimSpace(n), 64); err == nil {
				return f, true
			}
		}
	}
	return 0, false
}

// DateField returns the first value among the given keys that parses
// as a visit date. Timestamped variants are accepted and truncated.
func DateField(record map[string]any, keys ...string) types.VisitDate {
	for _, key := range keys {
		if s, ok := record[key].(string); ok {
			if d, err := types.ParseVisitDate(s); err == nil {
				return d
			}
		}
	}
	return types.VisitDate{}
}

// TimeField returns the first value among the given keys that parses
// as a timestamp.
func TimeField(record map[string]any, keys ...string) time.Time {
	layouts := []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05", types.DateLayout}
	for _, key := range keys {
		s, ok := record[key].(string)
		if !ok {
			continue
		}
		s = strings.TrimSpace(s)
		for _, layout := range layouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t
			}
		}
	}
	return time.Time{}
}

// AnswerField returns the first yes/no style value among the given
// keys, normalized to "Yes"/"No". Booleans are accepted on read even
// though this service always writes strings.
func AnswerField(record map[string]any, keys ...string) string {
	for _, key := range keys {
		v, ok := record[key]
		if !ok || v == nil {
			continue
		}
		switch a := v.(type) {
		case bool:
			if a {
				return AnswerYes
			}
			return AnswerNo
		case string:
			if normalized := NormalizeAnswer(a); normalized != "" {
				return normalized
			}
		}
	}
	return ""
}

// NormalizeAnswer maps boolean-ish strings onto the canonical
// "Yes"/"No" values and passes anything else through trimmed.
func NormalizeAnswer(s string) string {
	trimmed := strings.TrimSpace(s)
	switch strings.ToLower(trimmed) {
	case "yes", "y", "true", "1":
		return AnswerYes
	case "no", "n", "false", "0":
		return AnswerNo
	default:
		return trimmed
	}
}

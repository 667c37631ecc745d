package record

import (
	"sort"
	"strings"
)

// SortBy orders readings in place by the given sort spec: a field name,
// optionally prefixed with '-' (or '+') for descending (ascending) order.
// Numeric fields compare numerically, everything else lexicographically.
// The sort is stable so ties preserve the input order. An empty spec is a
// no-op.
func SortBy(readings []Reading, spec string) {
	if spec == "" {
		return
	}
	descending := strings.HasPrefix(spec, "-")
	field := strings.TrimLeft(spec, "-+")
	if field == "" {
		return
	}

	sort.SliceStable(readings, func(i, j int) bool {
		if descending {
			return fieldLess(readings[j], readings[i], field)
		}
		return fieldLess(readings[i], readings[j], field)
	})
}

// fieldLess compares a single named field of two readings.
func fieldLess(a, b Reading, field string) bool {
	if an, bn, ok := numericField(a, b, field); ok {
		return an < bn
	}
	return stringField(a, field) < stringField(b, field)
}

func numericField(a, b Reading, field string) (float64, float64, bool) {
	switch field {
	case "bpm":
		return float64(a.BPM), float64(b.BPM), true
	case "count":
		return float64(a.Count), float64(b.Count), true
	case "distance":
		return floatOrZero(a.Distance), floatOrZero(b.Distance), true
	case "calories":
		return floatOrZero(a.Calories), floatOrZero(b.Calories), true
	default:
		return 0, 0, false
	}
}

func stringField(r Reading, field string) string {
	switch field {
	case "id":
		return r.ID
	case "timestamp":
		return r.Timestamp
	case "date":
		return r.Date
	case "activity":
		return string(r.Activity)
	case "notes":
		return r.Notes
	default:
		return ""
	}
}

func floatOrZero(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

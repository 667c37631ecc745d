// Package record defines the canonical reading types shared by the ingestion
// pipeline, the persistence gateway, and the CLI.
package record

import (
	"encoding/json"
	"fmt"
	"time"
)

// Kind identifies an entity collection.
type Kind string

const (
	KindHeartRate Kind = "HeartRate"
	KindSteps     Kind = "Steps"
)

// ParseKind maps user-facing names to a Kind.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "heart", "heartrate", "HeartRate":
		return KindHeartRate, nil
	case "steps", "Steps":
		return KindSteps, nil
	default:
		return "", fmt.Errorf("unknown entity kind %q (use heart or steps)", s)
	}
}

// Activity is the enumerated tag attached to heart-rate readings.
type Activity string

const (
	ActivityReposo    Activity = "reposo"
	ActivityEjercicio Activity = "ejercicio"
	ActivityTrabajo   Activity = "trabajo"
	ActivitySueno     Activity = "sueno"
	ActivityOtro      Activity = "otro"
)

// ParseActivity normalizes a free-text activity tag. Unknown or empty values
// fall back to reposo.
func ParseActivity(s string) Activity {
	switch Activity(s) {
	case ActivityEjercicio, ActivityTrabajo, ActivitySueno, ActivityOtro:
		return Activity(s)
	default:
		return ActivityReposo
	}
}

// BPM domain range for heart-rate readings.
const (
	MinBPM = 40
	MaxBPM = 220
)

// ValidBPM reports whether bpm is inside the accepted domain range.
func ValidBPM(bpm int) bool {
	return bpm >= MinBPM && bpm <= MaxBPM
}

// DateLayout is the ISO calendar-date form used by steps readings.
const DateLayout = "2006-01-02"

// Reading is one persisted measurement. Heart-rate and steps readings share
// the same flat document shape; unused fields are omitted on the wire.
// Count stays without omitempty: zero steps is a legitimate reading and must
// survive serialization.
type Reading struct {
	ID        string   `json:"id,omitempty"`
	Timestamp string   `json:"timestamp,omitempty"`
	Date      string   `json:"date,omitempty"`
	BPM       int      `json:"bpm,omitempty"`
	Activity  Activity `json:"activity,omitempty"`
	Notes     string   `json:"notes,omitempty"`
	Count     int      `json:"count"`
	Distance  *float64 `json:"distance,omitempty"`
	Calories  *float64 `json:"calories,omitempty"`
}

// NewHeartRate builds a heart-rate reading with defaults applied.
func NewHeartRate(bpm int, activity Activity, at time.Time) Reading {
	if activity == "" {
		activity = ActivityReposo
	}
	return Reading{
		BPM:       bpm,
		Activity:  activity,
		Timestamp: at.UTC().Format(time.RFC3339),
	}
}

// NewSteps builds a steps reading with defaults applied.
func NewSteps(count int, at time.Time) Reading {
	return Reading{
		Count:     count,
		Date:      at.Format(DateLayout),
		Timestamp: at.UTC().Format(time.RFC3339),
	}
}

// Patch is a partial update: field name (JSON key) to new value.
type Patch map[string]any

// Apply merges patch fields over r and returns the merged reading. The merge
// is performed through the JSON form so a patch can address exactly the
// fields a caller supplies, leaving everything else untouched.
func Apply(r Reading, patch Patch) (Reading, error) {
	raw, err := json.Marshal(r)
	if err != nil {
		return Reading{}, fmt.Errorf("marshal existing reading: %w", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return Reading{}, fmt.Errorf("unmarshal existing reading: %w", err)
	}
	for k, v := range patch {
		if v == nil {
			delete(doc, k)
			continue
		}
		doc[k] = v
	}
	merged, err := json.Marshal(doc)
	if err != nil {
		return Reading{}, fmt.Errorf("marshal merged reading: %w", err)
	}
	var out Reading
	if err := json.Unmarshal(merged, &out); err != nil {
		return Reading{}, fmt.Errorf("patch does not fit reading shape: %w", err)
	}
	return out, nil
}

// Float64Ptr is a convenience for optional numeric fields.
func Float64Ptr(v float64) *float64 {
	return &v
}

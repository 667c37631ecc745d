package ingest

import (
	"time"

	"github.com/jromeu/vitalink/internal/record"
)

// Normalize maps a decoded event to its canonical record shape, defaulting
// timestamps and dates to "now". ok is false for events that produce no
// record (raw fallbacks and unknown types); callers treat that as "ignore".
func Normalize(ev Event, now func() time.Time) (record.Reading, record.Kind, bool) {
	if now == nil {
		now = time.Now
	}

	switch e := ev.(type) {
	case HeartRateEvent:
		r := record.Reading{
			BPM:       e.Value,
			Activity:  record.ParseActivity(e.Activity),
			Timestamp: e.Timestamp,
		}
		if r.Timestamp == "" {
			r.Timestamp = now().UTC().Format(time.RFC3339)
		}
		return r, record.KindHeartRate, true

	case StepsEvent:
		r := record.Reading{
			Count:     e.Value,
			Distance:  e.Distance,
			Calories:  e.Calories,
			Date:      e.Date,
			Timestamp: e.Timestamp,
		}
		if r.Date == "" {
			r.Date = now().Format(record.DateLayout)
		}
		if r.Timestamp == "" {
			r.Timestamp = now().UTC().Format(time.RFC3339)
		}
		return r, record.KindSteps, true

	default:
		return record.Reading{}, "", false
	}
}

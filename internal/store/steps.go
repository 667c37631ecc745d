package store

import (
	"context"

	"github.com/jromeu/vitalink/internal/record"
)

// UpsertStepsForToday folds a step delta into today's steps record. The
// sensor reports deltas, not cumulative totals, so an existing same-day
// record accumulates rather than being overwritten; the calendar date is the
// natural key and at most one record exists per date. Optional distance and
// calories in the delta accumulate the same way.
func (g *Gateway) UpsertStepsForToday(ctx context.Context, delta record.Reading) (record.Reading, error) {
	today := delta.Date
	if today == "" {
		today = g.now().Format(record.DateLayout)
	}

	var existing *record.Reading
	for _, r := range g.List(ctx, record.KindSteps, "-date") {
		if r.Date == today {
			existing = &r
			break
		}
	}

	if existing == nil {
		delta.Date = today
		return g.Create(ctx, record.KindSteps, delta), nil
	}

	patch := record.Patch{"count": existing.Count + delta.Count}
	if delta.Distance != nil {
		patch["distance"] = floatOrZero(existing.Distance) + *delta.Distance
	}
	if delta.Calories != nil {
		patch["calories"] = floatOrZero(existing.Calories) + *delta.Calories
	}
	if delta.Timestamp != "" {
		patch["timestamp"] = delta.Timestamp
	}
	return g.Update(ctx, record.KindSteps, existing.ID, patch)
}

func floatOrZero(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

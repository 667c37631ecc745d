package record

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseActivity(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected Activity
	}{
		{name: "known tag", input: "ejercicio", expected: ActivityEjercicio},
		{name: "another known tag", input: "sueno", expected: ActivitySueno},
		{name: "empty falls back to reposo", input: "", expected: ActivityReposo},
		{name: "unknown falls back to reposo", input: "running", expected: ActivityReposo},
		{name: "reposo stays reposo", input: "reposo", expected: ActivityReposo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseActivity(tt.input))
		})
	}
}

func TestValidBPM(t *testing.T) {
	tests := []struct {
		name  string
		bpm   int
		valid bool
	}{
		{name: "lower bound", bpm: 40, valid: true},
		{name: "upper bound", bpm: 220, valid: true},
		{name: "typical resting", bpm: 65, valid: true},
		{name: "below range", bpm: 39, valid: false},
		{name: "above range", bpm: 221, valid: false},
		{name: "zero", bpm: 0, valid: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.valid, ValidBPM(tt.bpm))
		})
	}
}

func TestParseKind(t *testing.T) {
	kind, err := ParseKind("heart")
	require.NoError(t, err)
	assert.Equal(t, KindHeartRate, kind)

	kind, err = ParseKind("steps")
	require.NoError(t, err)
	assert.Equal(t, KindSteps, kind)

	_, err = ParseKind("weight")
	assert.Error(t, err)
}

func TestApplyMergesSuppliedFieldsOnly(t *testing.T) {
	existing := Reading{
		ID:        "steps-1",
		Date:      "2026-08-31",
		Count:     500,
		Distance:  Float64Ptr(0.4),
		Timestamp: "2026-08-31T10:00:00Z",
	}

	merged, err := Apply(existing, Patch{"count": 800})
	require.NoError(t, err)

	assert.Equal(t, 800, merged.Count)
	assert.Equal(t, "steps-1", merged.ID)
	assert.Equal(t, "2026-08-31", merged.Date)
	require.NotNil(t, merged.Distance)
	assert.InDelta(t, 0.4, *merged.Distance, 1e-9)
	assert.Equal(t, "2026-08-31T10:00:00Z", merged.Timestamp)
}

func TestApplyOverridesAndKeepsOriginals(t *testing.T) {
	existing := Reading{
		ID:        "heartrate-1",
		BPM:       72,
		Activity:  ActivityReposo,
		Notes:     "morning",
		Timestamp: "2026-08-31T08:00:00Z",
	}

	merged, err := Apply(existing, Patch{"bpm": 140, "activity": "ejercicio"})
	require.NoError(t, err)

	assert.Equal(t, 140, merged.BPM)
	assert.Equal(t, ActivityEjercicio, merged.Activity)
	assert.Equal(t, "morning", merged.Notes)
	assert.Equal(t, "2026-08-31T08:00:00Z", merged.Timestamp)
}

func TestZeroCountSurvivesJSON(t *testing.T) {
	raw, err := json.Marshal(Reading{ID: "steps-1", Date: "2026-08-31", Count: 0})
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"count":0`)

	var decoded Reading
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, 0, decoded.Count)
}

func TestApplyCanSetCountToZero(t *testing.T) {
	existing := Reading{ID: "steps-1", Date: "2026-08-31", Count: 500}

	merged, err := Apply(existing, Patch{"count": 0})
	require.NoError(t, err)
	assert.Equal(t, 0, merged.Count)
	assert.Equal(t, "2026-08-31", merged.Date)
}

func TestApplyRejectsMismatchedShape(t *testing.T) {
	_, err := Apply(Reading{ID: "x"}, Patch{"bpm": "not a number"})
	assert.Error(t, err)
}

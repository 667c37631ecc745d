package ingest

import (
	"encoding/json"

	"github.com/sirupsen/logrus"

	"github.com/jromeu/vitalink/internal/transport"
)

// Mode selects the malformed-frame policy per link type.
type Mode int

const (
	// ModeSerial drops malformed frames with a logged warning. Serial
	// payloads are assumed text-clean, so garbage means line noise.
	ModeSerial Mode = iota
	// ModeBLE converts malformed frames into RawEvent instead of dropping
	// them; the bytes may be the only clue to an unknown protocol.
	ModeBLE
)

// wireEvent is the JSON shape the sensor firmware emits.
type wireEvent struct {
	Type      string   `json:"type"`
	Value     float64  `json:"value"`
	Activity  string   `json:"activity"`
	Timestamp string   `json:"timestamp"`
	Date      string   `json:"date"`
	Distance  *float64 `json:"distance"`
	Calories  *float64 `json:"calories"`
}

// Decoder turns one frame into one event.
type Decoder struct {
	mode   Mode
	logger *logrus.Logger
}

// NewDecoder creates a decoder for the given link mode. A nil logger gets a
// default.
func NewDecoder(mode Mode, logger *logrus.Logger) *Decoder {
	if logger == nil {
		logger = logrus.New()
	}
	return &Decoder{mode: mode, logger: logger}
}

// Decode parses one frame. ok is false only when the frame was discarded
// (serial-mode parse failure); every other outcome yields an event, possibly
// RawEvent or UnknownEvent.
func (d *Decoder) Decode(f transport.Frame) (ev Event, ok bool) {
	var w wireEvent
	if err := json.Unmarshal(f.Data, &w); err != nil {
		if json.Valid(f.Data) {
			// Well-formed JSON that is not an event object (a bare number,
			// array, or string). Parsed but meaningless, so it is ignored
			// downstream like any unrecognized type.
			return UnknownEvent{}, true
		}
		if d.mode == ModeBLE {
			return RawEvent{Data: f.Data}, true
		}
		d.logger.WithFields(logrus.Fields{
			"payload": f.Text(),
			"error":   err,
		}).Warn("Discarding non-JSON serial frame")
		return nil, false
	}

	switch w.Type {
	case "heartRate":
		return HeartRateEvent{
			Value:     int(w.Value),
			Activity:  w.Activity,
			Timestamp: w.Timestamp,
		}, true
	case "steps":
		return StepsEvent{
			Value:     int(w.Value),
			Distance:  w.Distance,
			Calories:  w.Calories,
			Date:      w.Date,
			Timestamp: w.Timestamp,
		}, true
	default:
		return UnknownEvent{Type: w.Type}, true
	}
}

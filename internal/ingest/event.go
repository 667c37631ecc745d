// Package ingest turns raw transport frames into persisted readings: decode
// a frame into a typed event, normalize the event into a canonical record,
// hand the record to a sink. It also owns the connection session state
// machine driving the transport lifecycle.
package ingest

// Event is one decoded sensor event. The concrete types form a closed set;
// consumers switch over them exhaustively.
type Event interface {
	event()
}

// HeartRateEvent is a heart-rate measurement reported by the sensor.
type HeartRateEvent struct {
	Value     int
	Activity  string
	Timestamp string
}

// StepsEvent is a step-count delta reported by the sensor.
type StepsEvent struct {
	Value     int
	Distance  *float64
	Calories  *float64
	Date      string
	Timestamp string
}

// RawEvent carries an undecodable BLE payload verbatim. Kept instead of
// dropped so an unknown sensor protocol can be debugged from the log.
type RawEvent struct {
	Data []byte
}

// UnknownEvent is a well-formed frame whose type tag is not recognized.
// Decoding never fails on an unknown tag; downstream ignores it.
type UnknownEvent struct {
	Type string
}

func (HeartRateEvent) event() {}
func (StepsEvent) event()     {}
func (RawEvent) event()       {}
func (UnknownEvent) event()   {}

// Package transport establishes the physical link to an external sensor
// board and exposes the inbound byte stream as discrete frames. Two link
// types are supported: a serial port and a BLE characteristic.
package transport

import (
	"context"
	"fmt"
)

// Frame is one discrete unit of raw data emitted by a transport: a full line
// for serial, one notification payload for BLE.
type Frame struct {
	Data []byte
}

// Text returns the frame payload decoded as UTF-8 text.
func (f Frame) Text() string {
	return string(f.Data)
}

// Conn is a live link to a sensor. Frames delivers payloads until the link
// is lost or Close is called, at which point the channel is closed. The
// stream is restartable only by reconnecting.
type Conn interface {
	// Frames returns the inbound frame stream. The channel is closed when
	// the link goes away for any reason.
	Frames() <-chan Frame

	// Close tears the link down. Every teardown step is best-effort:
	// individual failures are logged, not returned. Close is idempotent.
	Close() error
}

// Transport opens connections to a sensor. Implementations do not retry
// failed connection attempts on their own; retry policy belongs to the
// caller.
type Transport interface {
	Connect(ctx context.Context) (Conn, error)
}

// FailureKind categorizes a connection failure.
type FailureKind string

const (
	// NoDeviceFound means discovery finished without a matching device.
	NoDeviceFound FailureKind = "no_device_found"
	// ScanFailed means discovery itself errored out.
	ScanFailed FailureKind = "scan_failed"
	// OpenFailed means the link to a located device could not be opened.
	OpenFailed FailureKind = "open_failed"
	// SubscribeFailed means notifications could not be enabled.
	SubscribeFailed FailureKind = "subscribe_failed"
	// BadConfig means the transport configuration is unusable.
	BadConfig FailureKind = "bad_config"
)

// ConnectionError is a transport-level failure to reach the sensor.
type ConnectionError struct {
	Kind FailureKind
	Msg  string
	Err  error
}

func (e *ConnectionError) Error() string {
	if e == nil {
		return "<nil>"
	}
	switch {
	case e.Msg != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	case e.Msg != "":
		return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	default:
		return string(e.Kind)
	}
}

func (e *ConnectionError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is allows errors.Is to compare ConnectionError values by Kind.
func (e *ConnectionError) Is(target error) bool {
	if e == nil {
		return false
	}
	t, ok := target.(*ConnectionError)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// Sentinels for errors.Is checks.
var (
	ErrNoDeviceFound   = &ConnectionError{Kind: NoDeviceFound}
	ErrScanFailed      = &ConnectionError{Kind: ScanFailed}
	ErrOpenFailed      = &ConnectionError{Kind: OpenFailed}
	ErrSubscribeFailed = &ConnectionError{Kind: SubscribeFailed}
	ErrBadConfig       = &ConnectionError{Kind: BadConfig}
)

func connErr(kind FailureKind, msg string, err error) *ConnectionError {
	return &ConnectionError{Kind: kind, Msg: msg, Err: err}
}

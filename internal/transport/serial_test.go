package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"testing"
	"time"

	"github.com/creack/pty"
	"github.com/sirupsen/logrus"
	"github.com/smallnest/ringbuffer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.bug.st/serial"
)

// ptyPort adapts the slave side of a pseudo-terminal to the serial port
// interface, so the framing logic runs against a real byte stream. Reads go
// through an in-memory pipe because closing that pipe reliably unblocks a
// pending Read, which is the contract the read loop depends on.
type ptyPort struct {
	tty *os.File
	pr  *io.PipeReader
}

func newPtyPort(tty *os.File) *ptyPort {
	pr, pw := io.Pipe()
	go func() {
		_, err := io.Copy(pw, tty)
		pw.CloseWithError(err)
	}()
	return &ptyPort{tty: tty, pr: pr}
}

func (p *ptyPort) Read(buf []byte) (int, error)  { return p.pr.Read(buf) }
func (p *ptyPort) Write(buf []byte) (int, error) { return p.tty.Write(buf) }

func (p *ptyPort) Close() error {
	_ = p.pr.Close()
	return p.tty.Close()
}

func (p *ptyPort) SetMode(mode *serial.Mode) error       { return nil }
func (p *ptyPort) SetReadTimeout(d time.Duration) error  { return nil }
func (p *ptyPort) Drain() error                          { return nil }
func (p *ptyPort) ResetInputBuffer() error               { return nil }
func (p *ptyPort) ResetOutputBuffer() error              { return nil }
func (p *ptyPort) SetDTR(bool) error                     { return nil }
func (p *ptyPort) SetRTS(bool) error                     { return nil }
func (p *ptyPort) Break(time.Duration) error             { return nil }
func (p *ptyPort) GetModemStatusBits() (*serial.ModemStatusBits, error) {
	return &serial.ModemStatusBits{}, nil
}

// hookSerial routes the transport's port enumeration and open calls to a
// fresh pty pair and returns the master side for the test to write into.
func hookSerial(t *testing.T) *os.File {
	t.Helper()
	ptmx, tty, err := pty.Open()
	require.NoError(t, err)
	t.Cleanup(func() { _ = ptmx.Close() })

	origOpen, origList := openSerialPort, listSerialPorts
	t.Cleanup(func() { openSerialPort, listSerialPorts = origOpen, origList })

	openSerialPort = func(name string, mode *serial.Mode) (serial.Port, error) {
		return newPtyPort(tty), nil
	}
	listSerialPorts = func() ([]string, error) {
		return []string{tty.Name()}, nil
	}
	return ptmx
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func collectFrames(t *testing.T, conn Conn, n int) []string {
	t.Helper()
	out := make([]string, 0, n)
	for len(out) < n {
		select {
		case f, ok := <-conn.Frames():
			if !ok {
				t.Fatalf("frame stream closed after %d of %d frames", len(out), n)
			}
			out = append(out, f.Text())
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out after %d of %d frames", len(out), n)
		}
	}
	return out
}

func TestSerialConnectNoPortsAvailable(t *testing.T) {
	origList := listSerialPorts
	t.Cleanup(func() { listSerialPorts = origList })
	listSerialPorts = func() ([]string, error) { return nil, nil }

	tr := NewSerialTransport(SerialConfig{}, testLogger())
	_, err := tr.Connect(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoDeviceFound)
}

func TestSerialConnectEnumerationFailure(t *testing.T) {
	origList := listSerialPorts
	t.Cleanup(func() { listSerialPorts = origList })
	listSerialPorts = func() ([]string, error) { return nil, fmt.Errorf("no permission") }

	tr := NewSerialTransport(SerialConfig{}, testLogger())
	_, err := tr.Connect(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrScanFailed)
}

func TestSerialConnectOpenFailure(t *testing.T) {
	origOpen := openSerialPort
	t.Cleanup(func() { openSerialPort = origOpen })
	openSerialPort = func(name string, mode *serial.Mode) (serial.Port, error) {
		return nil, fmt.Errorf("device busy")
	}

	tr := NewSerialTransport(SerialConfig{Port: "/dev/ttyUSB0"}, testLogger())
	_, err := tr.Connect(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrOpenFailed)
}

func TestSerialConnectCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	tr := NewSerialTransport(SerialConfig{Port: "/dev/ttyUSB0"}, testLogger())
	_, err := tr.Connect(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrOpenFailed)
}

func TestSerialFramesAreNewlineDelimited(t *testing.T) {
	ptmx := hookSerial(t)

	tr := NewSerialTransport(SerialConfig{}, testLogger())
	conn, err := tr.Connect(context.Background())
	require.NoError(t, err)
	defer conn.Close()

	_, err = ptmx.WriteString("{\"type\":\"heartRate\",\"value\":72}\n{\"type\":\"steps\",\"value\":500}\n")
	require.NoError(t, err)

	frames := collectFrames(t, conn, 2)
	assert.Equal(t, `{"type":"heartRate","value":72}`, frames[0])
	assert.Equal(t, `{"type":"steps","value":500}`, frames[1])
}

func TestSerialFramesAssembleAcrossChunks(t *testing.T) {
	ptmx := hookSerial(t)

	tr := NewSerialTransport(SerialConfig{}, testLogger())
	conn, err := tr.Connect(context.Background())
	require.NoError(t, err)
	defer conn.Close()

	// A line split across writes must come out as one frame, and a trailing
	// carriage return must be stripped.
	_, err = ptmx.WriteString(`{"type":"heartRate",`)
	require.NoError(t, err)
	time.Sleep(50 * time.Millisecond)
	_, err = ptmx.WriteString("\"value\":88}\r\n")
	require.NoError(t, err)

	frames := collectFrames(t, conn, 1)
	assert.Equal(t, `{"type":"heartRate","value":88}`, frames[0])
}

func TestSerialFramingRecoversAfterRunawayLine(t *testing.T) {
	conn := &serialConn{
		name:    "test",
		frames:  NewRingChannel[Frame](serialFrameBuffer),
		lineBuf: ringbuffer.New(serialLineBufferSize),
		done:    make(chan struct{}),
		logger:  testLogger(),
	}

	// A noise burst with no newline fills the whole line buffer.
	conn.appendChunk(bytes.Repeat([]byte{'x'}, serialLineBufferSize))
	select {
	case f := <-conn.frames.C():
		t.Fatalf("unexpected frame %q", f.Text())
	default:
	}

	// Framing must resume at the next line boundary instead of dropping
	// every later chunk on the floor.
	conn.appendChunk([]byte("{\"type\":\"steps\",\"value\":500}\n"))
	conn.appendChunk([]byte("{\"type\":\"heartRate\",\"value\":70}\n"))

	frames := collectFrames(t, conn, 2)
	assert.Equal(t, `{"type":"steps","value":500}`, frames[0])
	assert.Equal(t, `{"type":"heartRate","value":70}`, frames[1])
}

func TestSerialCloseIsIdempotentAndEndsStream(t *testing.T) {
	_ = hookSerial(t)

	tr := NewSerialTransport(SerialConfig{}, testLogger())
	conn, err := tr.Connect(context.Background())
	require.NoError(t, err)

	require.NoError(t, conn.Close())
	require.NoError(t, conn.Close())

	select {
	case _, ok := <-conn.Frames():
		assert.False(t, ok)
	case <-time.After(5 * time.Second):
		t.Fatal("frame stream not closed after Close")
	}
}

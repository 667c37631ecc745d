package transport

import (
	"bytes"
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/smallnest/ringbuffer"
	"go.bug.st/serial"
)

const (
	// SerialBaudRate is fixed by the sensor firmware.
	SerialBaudRate = 9600

	serialChunkSize      = 1024
	serialLineBufferSize = 4096
	serialFrameBuffer    = 64
	serialReadTimeout    = 200 * time.Millisecond
)

// Hooks for tests; production code never overrides these.
var (
	openSerialPort = func(name string, mode *serial.Mode) (serial.Port, error) {
		return serial.Open(name, mode)
	}
	listSerialPorts = serial.GetPortsList
)

// SerialConfig configures the serial transport. The baud rate is fixed.
type SerialConfig struct {
	// Port is the device path. When empty the first enumerated port is
	// used, mirroring a "pick a port" grant flow.
	Port string
}

// SerialTransport opens a serial link to the sensor board.
type SerialTransport struct {
	cfg    SerialConfig
	logger *logrus.Logger
}

// NewSerialTransport creates a serial transport. A nil logger gets a default.
func NewSerialTransport(cfg SerialConfig, logger *logrus.Logger) *SerialTransport {
	if logger == nil {
		logger = logrus.New()
	}
	return &SerialTransport{cfg: cfg, logger: logger}
}

// Connect opens the port and starts framing the inbound byte stream into
// newline-delimited payloads. A failed attempt leaves nothing open.
func (t *SerialTransport) Connect(ctx context.Context) (Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, connErr(OpenFailed, "connect cancelled", err)
	}

	name := t.cfg.Port
	if name == "" {
		ports, err := listSerialPorts()
		if err != nil {
			return nil, connErr(ScanFailed, "enumerating serial ports", err)
		}
		if len(ports) == 0 {
			return nil, connErr(NoDeviceFound, "no serial ports available", nil)
		}
		name = ports[0]
		t.logger.WithField("port", name).Info("No port configured, using first available")
	}

	port, err := openSerialPort(name, &serial.Mode{BaudRate: SerialBaudRate})
	if err != nil {
		return nil, connErr(OpenFailed, "opening "+name, err)
	}
	if err := port.SetReadTimeout(serialReadTimeout); err != nil {
		_ = port.Close()
		return nil, connErr(OpenFailed, "configuring read timeout on "+name, err)
	}

	conn := &serialConn{
		name:    name,
		port:    port,
		frames:  NewRingChannel[Frame](serialFrameBuffer),
		lineBuf: ringbuffer.New(serialLineBufferSize),
		done:    make(chan struct{}),
		logger:  t.logger,
	}
	go conn.readLoop()

	t.logger.WithFields(logrus.Fields{
		"port": name,
		"baud": SerialBaudRate,
	}).Info("Serial port opened")
	return conn, nil
}

type serialConn struct {
	name    string
	port    serial.Port
	frames  *RingChannel[Frame]
	lineBuf *ringbuffer.RingBuffer
	done    chan struct{}
	closed  atomic.Bool
	logger  *logrus.Logger
}

func (c *serialConn) Frames() <-chan Frame {
	return c.frames.C()
}

// readLoop pulls chunks off the port, assembles newline-delimited frames
// through the intermediate ring buffer, and publishes them. It owns the
// frames channel and closes it on exit.
func (c *serialConn) readLoop() {
	defer c.frames.Close()

	buf := make([]byte, serialChunkSize)
	for {
		select {
		case <-c.done:
			return
		default:
		}

		n, err := c.port.Read(buf)
		if n > 0 {
			c.appendChunk(buf[:n])
		}
		if err != nil {
			if c.closed.Load() {
				return
			}
			c.logger.WithError(err).WithField("port", c.name).Warn("Serial read failed, dropping link")
			return
		}
		// n == 0 with nil error is a read timeout; loop to re-check done.
	}
}

// appendChunk buffers raw bytes and emits every complete line. The ring
// buffer caps how much of a runaway unterminated line is retained: when an
// unterminated line fills the buffer, the line is discarded wholesale so
// framing resumes at the next boundary instead of wedging forever.
func (c *serialConn) appendChunk(chunk []byte) {
	written, err := c.lineBuf.Write(chunk)
	if err != nil && !errors.Is(err, ringbuffer.ErrIsFull) {
		c.logger.WithError(err).Warn("Serial line buffer write failed")
		return
	}
	if written < len(chunk) {
		if bytes.IndexByte(c.lineBuf.Bytes(nil), '\n') < 0 {
			c.logger.WithField("discarded", c.lineBuf.Length()).Warn("Serial line buffer overflow, discarding unterminated line")
			c.lineBuf.Reset()
			n, _ := c.lineBuf.Write(chunk[written:])
			written += n
		}
		if written < len(chunk) {
			c.logger.WithField("dropped", len(chunk)-written).Warn("Serial line buffer overflow, dropped bytes")
		}
	}

	pending := c.lineBuf.Bytes(nil)
	idx := bytes.LastIndexByte(pending, '\n')
	if idx < 0 {
		return
	}

	consumed := make([]byte, idx+1)
	if _, err := c.lineBuf.Read(consumed); err != nil {
		c.logger.WithError(err).Warn("Serial line buffer read failed")
		return
	}

	for _, line := range bytes.Split(consumed, []byte{'\n'}) {
		line = bytes.TrimRight(line, "\r")
		if len(line) == 0 {
			continue
		}
		data := make([]byte, len(line))
		copy(data, line)
		c.frames.Send(Frame{Data: data})
	}
}

// Close tears the link down: stop the reader, flush the writable side, close
// the port. Each step is best-effort with failures logged only.
func (c *serialConn) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	close(c.done)

	if err := c.port.ResetOutputBuffer(); err != nil {
		c.logger.WithError(err).WithField("port", c.name).Debug("Resetting output buffer failed")
	}
	if err := c.port.Close(); err != nil {
		c.logger.WithError(err).WithField("port", c.name).Warn("Closing serial port failed")
	}

	c.logger.WithField("port", c.name).Info("Serial port closed")
	return nil
}

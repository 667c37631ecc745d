package ingest

import (
	"context"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/jromeu/vitalink/internal/record"
	"github.com/jromeu/vitalink/internal/transport"
)

// State is the connection lifecycle state.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

// Sink receives every normalized reading, one at a time, in frame order.
type Sink interface {
	Ingest(ctx context.Context, kind record.Kind, r record.Reading) error
}

// Session drives one sensor link through the
// disconnected → connecting → connected → disconnected lifecycle. The read
// loop consuming the frame stream runs only while connected; any error there
// forces an immediate transition back to disconnected with transport
// cleanup, never a half-open link.
type Session struct {
	transport transport.Transport
	decoder   *Decoder
	sink      Sink
	logger    *logrus.Logger
	now       func() time.Time

	mu         sync.Mutex
	state      State
	conn       transport.Conn
	loopCancel context.CancelFunc
	listeners  map[int]func(State)
	nextID     int

	onFrame func(transport.Frame)
}

// NewSession wires a transport, decoder, and sink together. A nil logger
// gets a default.
func NewSession(t transport.Transport, d *Decoder, sink Sink, logger *logrus.Logger) *Session {
	if logger == nil {
		logger = logrus.New()
	}
	return &Session{
		transport: t,
		decoder:   d,
		sink:      sink,
		logger:    logger,
		now:       time.Now,
		listeners: make(map[int]func(State)),
	}
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Subscribe registers a state-change listener and calls it once with the
// current state. The returned function unsubscribes.
func (s *Session) Subscribe(fn func(State)) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	current := s.state
	s.mu.Unlock()

	fn(current)
	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

// SetFrameObserver registers a callback invoked with every raw frame before
// decoding. Set it before Connect; it exists for UI echo, not for data flow.
func (s *Session) SetFrameObserver(fn func(transport.Frame)) {
	s.mu.Lock()
	s.onFrame = fn
	s.mu.Unlock()
}

// Connect attempts to establish the link. On failure the session is back at
// disconnected and the error is returned; the session never retries on its
// own.
func (s *Session) Connect(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateDisconnected {
		state := s.state
		s.mu.Unlock()
		return fmt.Errorf("cannot connect while %s", state)
	}
	s.state = StateConnecting
	s.mu.Unlock()
	s.notify(StateConnecting)

	conn, err := s.transport.Connect(ctx)
	if err != nil {
		s.mu.Lock()
		s.state = StateDisconnected
		s.mu.Unlock()
		s.notify(StateDisconnected)
		return err
	}

	s.mu.Lock()
	if s.state != StateConnecting {
		// Disconnect raced the connect attempt; drop the fresh link.
		s.mu.Unlock()
		_ = conn.Close()
		return fmt.Errorf("connect aborted")
	}
	loopCtx, cancel := context.WithCancel(context.Background())
	s.conn = conn
	s.loopCancel = cancel
	s.state = StateConnected
	s.mu.Unlock()
	s.notify(StateConnected)

	go s.readLoop(loopCtx, conn)
	return nil
}

// Disconnect tears the link down and returns once the session is back at
// disconnected. Idempotent.
func (s *Session) Disconnect() {
	s.mu.Lock()
	if s.state == StateDisconnected {
		s.mu.Unlock()
		return
	}
	if s.state == StateConnecting {
		// No link yet; flip the state so the in-flight Connect aborts.
		s.state = StateDisconnected
		s.mu.Unlock()
		s.notify(StateDisconnected)
		return
	}
	conn := s.conn
	s.mu.Unlock()
	s.teardown(conn, "user requested disconnect")
}

// readLoop consumes the frame stream one frame at a time, so ingestion from
// one connection is inherently serialized.
func (s *Session) readLoop(ctx context.Context, conn transport.Conn) {
	defer s.teardown(conn, "read loop ended")

	for {
		select {
		case <-ctx.Done():
			return
		case f, ok := <-conn.Frames():
			if !ok {
				s.logger.Warn("Frame stream closed")
				return
			}
			s.handleFrame(ctx, f)
		}
	}
}

func (s *Session) handleFrame(ctx context.Context, f transport.Frame) {
	s.mu.Lock()
	observer := s.onFrame
	s.mu.Unlock()
	if observer != nil {
		observer(f)
	}

	ev, ok := s.decoder.Decode(f)
	if !ok {
		return
	}

	r, kind, ok := Normalize(ev, s.now)
	if !ok {
		switch e := ev.(type) {
		case RawEvent:
			s.logger.WithField("payload", hex.EncodeToString(e.Data)).Debug("Raw fallback event")
		case UnknownEvent:
			s.logger.WithField("type", e.Type).Debug("Ignoring unknown event type")
		}
		return
	}

	// Once issued, a store write runs to completion even if the link goes
	// away mid-flight; failures are logged by the sink, not surfaced here.
	if err := s.sink.Ingest(context.WithoutCancel(ctx), kind, r); err != nil {
		s.logger.WithError(err).WithField("kind", string(kind)).Error("Failed to persist reading")
	}
}

// teardown transitions to disconnected exactly once per connection,
// cancelling the read loop and closing the transport best-effort.
func (s *Session) teardown(conn transport.Conn, reason string) {
	s.mu.Lock()
	if s.conn != conn || conn == nil {
		s.mu.Unlock()
		return
	}
	cancel := s.loopCancel
	s.conn = nil
	s.loopCancel = nil
	s.state = StateDisconnected
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	_ = conn.Close()
	s.logger.WithField("reason", reason).Info("Sensor link closed")
	s.notify(StateDisconnected)
}

func (s *Session) notify(state State) {
	s.mu.Lock()
	fns := make([]func(State), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(state)
	}
}

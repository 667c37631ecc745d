package transport

import "sync"

// RingChannel is a bounded channel-like buffer with overwrite-oldest
// semantics. Producers never block: when the buffer is full the oldest
// element is discarded. A dropped frame is simply lost, which matches the
// delivery guarantees of the sensor link (none).
type RingChannel[T any] struct {
	ch      chan T
	mu      sync.Mutex
	closed  bool
	dropped uint64
}

// NewRingChannel creates a ring channel with the given capacity.
func NewRingChannel[T any](capacity int) *RingChannel[T] {
	if capacity <= 0 {
		panic("ringchan: capacity must be > 0")
	}
	return &RingChannel[T]{ch: make(chan T, capacity)}
}

// C returns the receive side. Consumers range over it until it is closed.
func (rc *RingChannel[T]) C() <-chan T {
	return rc.ch
}

// Send inserts v, discarding the oldest buffered element if full. A send
// after Close is silently discarded; producers on another goroutine (a BLE
// notification in flight while the link drops) need not coordinate with the
// closer.
func (rc *RingChannel[T]) Send(v T) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	if rc.closed {
		return
	}
	select {
	case rc.ch <- v:
	default:
		select {
		case <-rc.ch: // drop oldest
			rc.dropped++
		default:
		}
		rc.ch <- v
	}
}

// Dropped returns how many elements have been overwritten so far.
func (rc *RingChannel[T]) Dropped() uint64 {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return rc.dropped
}

// Close closes the receive side. Safe to call more than once.
func (rc *RingChannel[T]) Close() {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	if rc.closed {
		return
	}
	rc.closed = true
	close(rc.ch)
}

// Package outbox holds the bounded per-connection send queue shared by the
// transports. Producers never block: a full queue is reported as
// back-pressure and the frame is left to the caller's policy.
package outbox

import (
	"sync"

	"github.com/dkeye/VoiceRelay/internal/core"
)

// DefaultSize is used when a non-positive size is requested.
const DefaultSize = 256

type Outbox struct {
	send chan core.Payload

	mu     sync.RWMutex
	closed bool
}

func New(size int) *Outbox {
	if size <= 0 {
		size = DefaultSize
	}
	return &Outbox{
		send: make(chan core.Payload, size),
	}
}

// TrySend queues p without blocking.
func (o *Outbox) TrySend(p core.Payload) error {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.closed {
		return core.ErrClosed
	}
	select {
	case o.send <- p:
		return nil
	default:
		return core.ErrBackpressure
	}
}

// Close stops accepting payloads and closes the queue so the writer drains
// what is left. It reports whether this call did the closing.
func (o *Outbox) Close() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return false
	}
	o.closed = true
	close(o.send)
	return true
}

// C is the queue read by the connection's writer.
func (o *Outbox) C() <-chan core.Payload { return o.send }

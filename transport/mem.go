package transport

import (
	"context"
	"sync/atomic"
)

// memBufferSize bounds the number of undelivered messages per direction.
const memBufferSize = 64

// Mem is one side of an in-memory, message-oriented transport pair. Each
// Send arrives as exactly one Receive on the peer, so message boundaries
// always hold without framing. Intended for tests and in-process wiring.
type Mem struct {
	in  chan []byte
	out chan []byte

	done     chan struct{}
	peerDone chan struct{}

	started atomic.Bool
	closed  atomic.Bool
}

// NewMemPair returns two connected in-memory transports.
func NewMemPair() (*Mem, *Mem) {
	ab := make(chan []byte, memBufferSize)
	ba := make(chan []byte, memBufferSize)
	aDone := make(chan struct{})
	bDone := make(chan struct{})

	a := &Mem{in: ba, out: ab, done: aDone, peerDone: bDone}
	b := &Mem{in: ab, out: ba, done: bDone, peerDone: aDone}
	return a, b
}

func (t *Mem) Start(ctx context.Context) error {
	if t.started.Swap(true) {
		return errAlreadyStarted()
	}
	if t.closed.Load() {
		return errClosed()
	}
	return nil
}

func (t *Mem) Send(ctx context.Context, msg []byte) error {
	if t.closed.Load() {
		return errClosed()
	}
	if !t.started.Load() {
		return errNotStarted()
	}

	out := append([]byte(nil), msg...)
	select {
	case t.out <- out:
		return nil
	case <-t.peerDone:
		return errClosed()
	case <-t.done:
		return errClosed()
	case <-ctx.Done():
		return errClosed()
	}
}

func (t *Mem) Receive(ctx context.Context) ([]byte, error) {
	if t.closed.Load() {
		return nil, errClosed()
	}
	if !t.started.Load() {
		return nil, errNotStarted()
	}

	// Drain buffered messages even after the peer closed.
	select {
	case msg := <-t.in:
		return msg, nil
	default:
	}

	select {
	case msg := <-t.in:
		return msg, nil
	case <-t.done:
		return nil, errClosed()
	case <-t.peerDone:
		// One more drain: the peer may have sent before closing.
		select {
		case msg := <-t.in:
			return msg, nil
		default:
			return nil, errClosed()
		}
	case <-ctx.Done():
		return nil, errClosed()
	}
}

func (t *Mem) Close() error {
	t.CloseNow()
	return nil
}

func (t *Mem) CloseNow() {
	if t.closed.Swap(true) {
		return
	}
	close(t.done)
}

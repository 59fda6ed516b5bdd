package transport

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/jbraun2025/jsonrpc-go/rpcerror"
)

// readChunkSize bounds one Receive on an unframed stream transport.
const readChunkSize = 1024

// connTransport is the shared machinery behind the pipe and socket
// transports: lifecycle state, single-connection accept for servers,
// serialized sends, and chunked cancellable receives.
type connTransport struct {
	log zerolog.Logger

	// dial connects the client side; listen binds the server side.
	// Exactly one is set.
	dial   func(ctx context.Context) (net.Conn, error)
	listen func() (net.Listener, error)

	// cleanup runs after close (server pipe transports unlink their
	// socket path here). May be nil.
	cleanup func()

	conn net.Conn

	// listenerMu guards listener: servers publish it mid-Start (while
	// still blocked in accept) and BoundAddr may read it concurrently.
	listenerMu sync.Mutex
	listener   net.Listener

	// sendMu serializes writes: two concurrent sends from the same
	// endpoint must not interleave on the wire.
	sendMu sync.Mutex
	// recvMu serializes reads; the stream can only be parsed by one
	// reader at a time.
	recvMu sync.Mutex

	started   atomic.Bool
	connected atomic.Bool
	closed    atomic.Bool
	closeOnce sync.Once
}

func (t *connTransport) Start(ctx context.Context) error {
	if t.started.Swap(true) {
		t.log.Debug().Msg("already started")
		return errAlreadyStarted()
	}
	if t.closed.Load() {
		return rpcerror.New(rpcerror.TransportError, "cannot start a closed transport")
	}

	if t.listen != nil {
		// Server side: bind, then wait for the first connection. The
		// listening substate is internal; Start returns connected.
		listener, err := t.listen()
		if err != nil {
			t.log.Error().Err(err).Msg("listen failed")
			return rpcerror.New(rpcerror.TransportError, err.Error())
		}
		t.setListener(listener)

		conn, err := t.acceptOne(ctx, listener)
		if err != nil {
			listener.Close()
			t.log.Error().Err(err).Msg("accept failed")
			return rpcerror.New(rpcerror.TransportError, err.Error())
		}
		t.conn = conn
	} else {
		conn, err := t.dial(ctx)
		if err != nil {
			t.log.Error().Err(err).Msg("connect failed")
			return rpcerror.New(rpcerror.TransportError, err.Error())
		}
		t.conn = conn
	}

	t.connected.Store(true)
	t.log.Debug().Msg("transport started")
	return nil
}

// acceptOne waits for the first connection, honoring ctx cancellation by
// closing the listener out from under Accept.
func (t *connTransport) acceptOne(ctx context.Context, listener net.Listener) (net.Conn, error) {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			listener.Close()
		case <-done:
		}
	}()

	conn, err := listener.Accept()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, err
	}
	return conn, nil
}

func (t *connTransport) Send(ctx context.Context, msg []byte) error {
	if err := t.checkConnected(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return rpcerror.New(rpcerror.TransportError, err.Error())
	}

	t.sendMu.Lock()
	defer t.sendMu.Unlock()

	// net.Conn.Write retries partial writes internally; loop anyway so a
	// short write can never split a message.
	for len(msg) > 0 {
		n, err := t.conn.Write(msg)
		if err != nil {
			t.log.Error().Err(err).Msg("send failed")
			return rpcerror.New(rpcerror.TransportError, err.Error())
		}
		msg = msg[n:]
	}
	return nil
}

func (t *connTransport) Receive(ctx context.Context) ([]byte, error) {
	if err := t.checkConnected(); err != nil {
		return nil, err
	}

	t.recvMu.Lock()
	defer t.recvMu.Unlock()

	stop := t.cancelOnDone(ctx)
	defer stop()

	buf := make([]byte, readChunkSize)
	n, err := t.conn.Read(buf)
	if err != nil {
		if n == 0 {
			return nil, t.receiveError(ctx, err)
		}
		// A short read with data still delivers the data; the error
		// resurfaces on the next call.
	}
	return buf[:n], nil
}

// cancelOnDone interrupts a blocked Read when ctx is cancelled by moving
// the read deadline into the past. Returns a stop function that also
// clears the deadline.
func (t *connTransport) cancelOnDone(ctx context.Context) func() {
	if ctx.Done() == nil {
		return func() {}
	}
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			t.conn.SetReadDeadline(time.Now())
		case <-done:
		}
	}()
	return func() {
		close(done)
		t.conn.SetReadDeadline(time.Time{})
	}
}

// receiveError maps a failed read to its transport error.
func (t *connTransport) receiveError(ctx context.Context, err error) *rpcerror.Error {
	switch {
	case ctx.Err() != nil:
		return rpcerror.New(rpcerror.TransportError, "receive cancelled")
	case t.closed.Load(), errors.Is(err, io.EOF), errors.Is(err, net.ErrClosed):
		return errClosed()
	default:
		return rpcerror.New(rpcerror.TransportError, err.Error())
	}
}

func (t *connTransport) setListener(l net.Listener) {
	t.listenerMu.Lock()
	t.listener = l
	t.listenerMu.Unlock()
}

func (t *connTransport) getListener() net.Listener {
	t.listenerMu.Lock()
	defer t.listenerMu.Unlock()
	return t.listener
}

func (t *connTransport) checkConnected() *rpcerror.Error {
	if t.closed.Load() {
		return errClosed()
	}
	if !t.connected.Load() {
		return errNotStarted()
	}
	return nil
}

func (t *connTransport) Close() error {
	t.closeNow()
	return nil
}

// CloseNow tears the transport down synchronously. Safe from deferred
// cleanup paths; idempotent.
func (t *connTransport) CloseNow() {
	t.closeNow()
}

func (t *connTransport) closeNow() {
	t.closeOnce.Do(func() {
		t.closed.Store(true)
		t.connected.Store(false)

		if t.conn != nil {
			if err := t.conn.Close(); err != nil {
				t.log.Warn().Err(err).Msg("error closing connection")
			}
		}
		if listener := t.getListener(); listener != nil {
			if err := listener.Close(); err != nil {
				t.log.Warn().Err(err).Msg("error closing listener")
			}
		}
		if t.cleanup != nil {
			t.cleanup()
		}
		t.log.Debug().Msg("transport closed")
	})
}

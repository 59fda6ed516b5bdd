// Package transport provides the abstract duplex byte-message channel the
// endpoint runs over, plus concrete adapters: Unix-domain pipe, TCP
// socket, stdio, and a Content-Length framed wrapper applicable to any of
// them.
//
// Unframed transports carry messages back-to-back with no framing; the
// caller must keep message boundaries aligned with write boundaries. That
// mode suits test harnesses and whole-message channels like the
// newline-delimited stdio transport. Anything that chunks arbitrarily
// (pipes, TCP) should be wrapped with NewFramed.
package transport

import (
	"context"
	"io"
	"os"

	"github.com/rs/zerolog"

	"github.com/jbraun2025/jsonrpc-go/rpcerror"
)

// Transport is a duplex byte-message channel with an explicit lifecycle:
// initial → started (connected) → closed.
//
// Start connects the transport; a second call fails. Send writes one
// complete message; concurrent sends are serialized internally and never
// interleave on the wire. Receive yields the next chunk (unframed) or the
// next complete message (framed), returning a "connection closed"
// transport error once the peer has closed and the buffer is drained.
// Close is the cooperative shutdown path; CloseNow is the synchronous
// best-effort variant safe to call from deferred cleanup. Both are
// idempotent after the first success.
type Transport interface {
	Start(ctx context.Context) error
	Send(ctx context.Context, msg []byte) error
	Receive(ctx context.Context) ([]byte, error)
	Close() error
	CloseNow()
}

// Option configures a transport.
type Option func(*options)

type options struct {
	logger zerolog.Logger
	stdin  io.Reader
	stdout io.Writer
}

// WithLogger attaches a logger. The default discards everything.
func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

func applyOptions(opts []Option) options {
	o := options{logger: zerolog.Nop(), stdin: os.Stdin, stdout: os.Stdout}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// errClosed is returned by Receive after the peer closes and by any
// operation on a closed transport.
func errClosed() *rpcerror.Error {
	return rpcerror.New(rpcerror.TransportError, "connection closed")
}

func errNotStarted() *rpcerror.Error {
	return rpcerror.New(rpcerror.TransportError, "transport not started")
}

func errAlreadyStarted() *rpcerror.Error {
	return rpcerror.New(rpcerror.TransportError, "transport already started")
}

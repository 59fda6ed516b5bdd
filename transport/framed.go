package transport

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/jbraun2025/jsonrpc-go/framer"
	"github.com/jbraun2025/jsonrpc-go/rpcerror"
)

// Framed wraps any chunk-oriented transport with Content-Length framing.
// Send frames each message before handing it to the inner transport;
// Receive accumulates inner chunks until the deframer emits one complete
// message. Several messages arriving in a single chunk are handed out one
// per Receive call without touching the stream again.
type Framed struct {
	log   zerolog.Logger
	inner Transport

	deframer framer.Deframer
	buf      []byte
}

// NewFramed wraps inner with Content-Length framing. The wrapper owns the
// inner transport's lifecycle: Start, Close, and CloseNow delegate.
func NewFramed(inner Transport, opts ...Option) *Framed {
	o := applyOptions(opts)
	return &Framed{
		log:   o.logger.With().Str("transport", "framed").Logger(),
		inner: inner,
	}
}

// NewFramedPipe returns a framed client transport over the Unix-domain
// socket at path.
func NewFramedPipe(path string, opts ...Option) *Framed {
	return NewFramed(NewPipe(path, opts...), opts...)
}

// NewFramedPipeServer returns a framed server transport over the
// Unix-domain socket at path.
func NewFramedPipeServer(path string, opts ...Option) *Framed {
	return NewFramed(NewPipeServer(path, opts...), opts...)
}

// NewFramedSocket returns a framed client transport over TCP.
func NewFramedSocket(host string, port uint16, opts ...Option) *Framed {
	return NewFramed(NewSocket(host, port, opts...), opts...)
}

// NewFramedSocketServer returns a framed server transport over TCP.
func NewFramedSocketServer(host string, port uint16, opts ...Option) *Framed {
	return NewFramed(NewSocketServer(host, port, opts...), opts...)
}

func (t *Framed) Start(ctx context.Context) error {
	return t.inner.Start(ctx)
}

func (t *Framed) Send(ctx context.Context, msg []byte) error {
	return t.inner.Send(ctx, framer.Frame(msg))
}

// Receive returns the next complete message. Receive is not safe for
// concurrent use; the endpoint's single pump is the only caller.
func (t *Framed) Receive(ctx context.Context) ([]byte, error) {
	for {
		msg, consumed, err := t.deframer.TryDeframe(t.buf)
		if err != nil {
			// Corrupt header block: the stream cannot be re-synchronized.
			t.log.Error().Err(err).Msg("fatal deframe error, closing transport")
			t.inner.CloseNow()
			return nil, rpcerror.New(rpcerror.TransportError, err.Error())
		}
		if msg != nil {
			t.buf = t.buf[consumed:]
			return msg, nil
		}

		chunk, err := t.inner.Receive(ctx)
		if err != nil {
			return nil, err
		}
		t.buf = append(t.buf, chunk...)
	}
}

func (t *Framed) Close() error {
	return t.inner.Close()
}

func (t *Framed) CloseNow() {
	t.inner.CloseNow()
}

// Inner exposes the wrapped transport, mainly so servers using
// NewFramedSocketServer can reach BoundAddr.
func (t *Framed) Inner() Transport { return t.inner }

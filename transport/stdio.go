package transport

import (
	"bufio"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/jbraun2025/jsonrpc-go/rpcerror"
)

// Stdio is a transport over a pair of byte streams, by default the
// process's stdin and stdout. In its plain form it is newline-delimited:
// one message per line, which keeps message boundaries aligned with write
// boundaries as the unframed contract requires. NewFramedStdio switches
// the streams to raw chunks and applies Content-Length framing instead.
type Stdio struct {
	log zerolog.Logger

	in  *bufio.Reader
	out io.Writer

	// rawChunks disables the line discipline so a framed wrapper can
	// reassemble messages itself.
	rawChunks bool

	sendMu sync.Mutex
	recvMu sync.Mutex

	started atomic.Bool
	closed  atomic.Bool
}

// StdioStreams overrides the stdin/stdout pair, mainly for tests.
func StdioStreams(in io.Reader, out io.Writer) Option {
	return func(o *options) {
		o.stdin = in
		o.stdout = out
	}
}

// NewStdio returns a newline-delimited transport over stdin/stdout.
func NewStdio(opts ...Option) *Stdio {
	o := applyOptions(opts)
	return &Stdio{
		log: o.logger.With().Str("transport", "stdio").Logger(),
		in:  bufio.NewReader(o.stdin),
		out: o.stdout,
	}
}

// NewFramedStdio returns a Content-Length framed transport over
// stdin/stdout.
func NewFramedStdio(opts ...Option) *Framed {
	o := applyOptions(opts)
	inner := &Stdio{
		log:       o.logger.With().Str("transport", "stdio").Logger(),
		in:        bufio.NewReader(o.stdin),
		out:       o.stdout,
		rawChunks: true,
	}
	return NewFramed(inner, opts...)
}

func (t *Stdio) Start(ctx context.Context) error {
	if t.started.Swap(true) {
		return errAlreadyStarted()
	}
	if t.closed.Load() {
		return rpcerror.New(rpcerror.TransportError, "cannot start a closed transport")
	}
	t.log.Debug().Msg("stdio transport started")
	return nil
}

func (t *Stdio) Send(ctx context.Context, msg []byte) error {
	if err := t.checkState(); err != nil {
		return err
	}

	t.sendMu.Lock()
	defer t.sendMu.Unlock()

	if _, err := t.out.Write(msg); err != nil {
		return rpcerror.New(rpcerror.TransportError, err.Error())
	}
	if !t.rawChunks {
		if _, err := io.WriteString(t.out, "\n"); err != nil {
			return rpcerror.New(rpcerror.TransportError, err.Error())
		}
	}
	return nil
}

func (t *Stdio) Receive(ctx context.Context) ([]byte, error) {
	if err := t.checkState(); err != nil {
		return nil, err
	}

	t.recvMu.Lock()
	defer t.recvMu.Unlock()

	if t.rawChunks {
		buf := make([]byte, readChunkSize)
		n, err := t.in.Read(buf)
		if err != nil && n == 0 {
			return nil, t.readError(err)
		}
		return buf[:n], nil
	}

	line, err := t.in.ReadString('\n')
	if err != nil {
		if len(line) == 0 {
			return nil, t.readError(err)
		}
		// A final unterminated line still counts as one message.
	}
	line = strings.TrimRight(line, "\r\n")
	return []byte(line), nil
}

func (t *Stdio) readError(err error) *rpcerror.Error {
	if t.closed.Load() || errors.Is(err, io.EOF) {
		return errClosed()
	}
	return rpcerror.New(rpcerror.TransportError, err.Error())
}

func (t *Stdio) checkState() *rpcerror.Error {
	if t.closed.Load() {
		return errClosed()
	}
	if !t.started.Load() {
		return errNotStarted()
	}
	return nil
}

func (t *Stdio) Close() error {
	t.CloseNow()
	return nil
}

func (t *Stdio) CloseNow() {
	if t.closed.Swap(true) {
		return
	}
	t.log.Debug().Msg("stdio transport closed")
}

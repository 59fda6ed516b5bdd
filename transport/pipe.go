package transport

import (
	"context"
	"net"
	"os"
)

// Pipe is a transport over a Unix-domain socket identified by a
// filesystem path.
type Pipe struct {
	connTransport
	path string
}

// NewPipe returns a client pipe transport that connects to the socket at
// path on Start.
func NewPipe(path string, opts ...Option) *Pipe {
	o := applyOptions(opts)
	p := &Pipe{path: path}
	p.log = o.logger.With().Str("transport", "pipe").Str("path", path).Logger()
	p.dial = func(ctx context.Context) (net.Conn, error) {
		var d net.Dialer
		return d.DialContext(ctx, "unix", path)
	}
	return p
}

// NewPipeServer returns a server pipe transport. Start removes a stale
// socket file, binds, and waits for the first client connection. The
// socket file is unlinked again on close, including the CloseNow path.
func NewPipeServer(path string, opts ...Option) *Pipe {
	o := applyOptions(opts)
	p := &Pipe{path: path}
	p.log = o.logger.With().Str("transport", "pipe-server").Str("path", path).Logger()
	p.listen = func() (net.Listener, error) {
		// A previous run may have left the socket file behind.
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return nil, err
		}
		return net.Listen("unix", path)
	}
	p.cleanup = func() {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			p.log.Warn().Err(err).Msg("error removing socket file")
		}
	}
	return p
}

// Path returns the socket path.
func (p *Pipe) Path() string { return p.path }

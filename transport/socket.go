package transport

import (
	"context"
	"net"
	"strconv"
)

// Socket is a transport over a TCP connection.
type Socket struct {
	connTransport
	addr string
}

// NewSocket returns a client socket transport that connects to host:port
// on Start.
func NewSocket(host string, port uint16, opts ...Option) *Socket {
	o := applyOptions(opts)
	addr := net.JoinHostPort(host, strconv.Itoa(int(port)))
	s := &Socket{addr: addr}
	s.log = o.logger.With().Str("transport", "socket").Str("addr", addr).Logger()
	s.dial = func(ctx context.Context) (net.Conn, error) {
		var d net.Dialer
		return d.DialContext(ctx, "tcp", addr)
	}
	return s
}

// NewSocketServer returns a server socket transport. Start binds to
// host:port and waits for the first client connection. The listener is
// created with SO_REUSEADDR (the default for Go TCP listeners), so a
// restart does not trip over sockets in TIME_WAIT.
func NewSocketServer(host string, port uint16, opts ...Option) *Socket {
	o := applyOptions(opts)
	addr := net.JoinHostPort(host, strconv.Itoa(int(port)))
	s := &Socket{addr: addr}
	s.log = o.logger.With().Str("transport", "socket-server").Str("addr", addr).Logger()
	s.listen = func() (net.Listener, error) {
		return net.Listen("tcp", addr)
	}
	return s
}

// Addr returns the configured address. For servers, the actual bound
// address (useful with port 0) is available from BoundAddr after Start.
func (s *Socket) Addr() string { return s.addr }

// BoundAddr returns the listener's address after Start, or the empty
// string for client transports.
func (s *Socket) BoundAddr() string {
	listener := s.getListener()
	if listener == nil {
		return ""
	}
	return listener.Addr().String()
}

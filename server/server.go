// Package server is a convenience layer for endpoints used purely in the
// serving role: handler registration (untyped or via reflection over a
// receiver), middleware, and a blocking serve loop.
package server

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/jbraun2025/jsonrpc-go/dispatcher"
	"github.com/jbraun2025/jsonrpc-go/endpoint"
	"github.com/jbraun2025/jsonrpc-go/transport"
)

// Server wraps an endpoint for one-sided use: serving a peer's requests.
type Server struct {
	ep *endpoint.Endpoint
}

// Option configures a Server.
type Option func(*config)

type config struct {
	logger zerolog.Logger
}

// WithLogger attaches a logger. The default discards everything.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *config) { c.logger = logger }
}

// New returns a server over t. The server takes ownership of the
// transport.
func New(t transport.Transport, opts ...Option) *Server {
	cfg := config{logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Server{ep: endpoint.New(t, endpoint.WithLogger(cfg.logger))}
}

// RegisterMethod installs an untyped method handler.
func (s *Server) RegisterMethod(method string, handler dispatcher.MethodHandler) {
	s.ep.RegisterMethod(method, handler)
}

// RegisterNotification installs an untyped notification handler.
func (s *Server) RegisterNotification(method string, handler dispatcher.NotificationHandler) {
	s.ep.RegisterNotification(method, handler)
}

// Use adds a middleware around every method handler.
func (s *Server) Use(mw dispatcher.Middleware) {
	s.ep.Use(mw)
}

// Notify sends a server-initiated notification to the connected peer.
func (s *Server) Notify(ctx context.Context, method string, args any) error {
	params, err := marshalParams(args)
	if err != nil {
		return err
	}
	return s.ep.SendNotification(ctx, method, params)
}

// Endpoint exposes the underlying endpoint, e.g. to issue
// server-initiated calls.
func (s *Server) Endpoint() *endpoint.Endpoint { return s.ep }

// Serve starts the endpoint and blocks until it shuts down.
func (s *Server) Serve(ctx context.Context) error {
	if err := s.ep.Start(ctx); err != nil {
		return err
	}
	return s.ep.WaitForShutdown(ctx)
}

// Start starts the endpoint without blocking.
func (s *Server) Start(ctx context.Context) error {
	return s.ep.Start(ctx)
}

// Shutdown stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.ep.Shutdown(ctx)
}

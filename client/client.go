// Package client is a thin typed convenience layer for endpoints used
// purely in the caller role. It adapts Go values to JSON at the call
// boundary and leaves everything else to the endpoint.
package client

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog"

	"github.com/jbraun2025/jsonrpc-go/endpoint"
	"github.com/jbraun2025/jsonrpc-go/rpcerror"
	"github.com/jbraun2025/jsonrpc-go/transport"
)

// Client wraps an endpoint for one-sided use: issuing calls and
// notifications to a peer.
type Client struct {
	ep *endpoint.Endpoint
}

// Option configures a Client.
type Option func(*config)

type config struct {
	logger zerolog.Logger
}

// WithLogger attaches a logger. The default discards everything.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *config) { c.logger = logger }
}

// New returns a client over t. The client takes ownership of the
// transport.
func New(t transport.Transport, opts ...Option) *Client {
	cfg := config{logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Client{ep: endpoint.New(t, endpoint.WithLogger(cfg.logger))}
}

// Start connects the transport and begins processing responses.
func (c *Client) Start(ctx context.Context) error {
	return c.ep.Start(ctx)
}

// Call invokes method with args and decodes the result into reply.
// Args may be nil for parameterless calls; reply may be nil when the
// result is irrelevant.
func (c *Client) Call(ctx context.Context, method string, args, reply any) error {
	params, err := marshalParams(args)
	if err != nil {
		return err
	}

	result, err := c.ep.SendCall(ctx, method, params)
	if err != nil {
		return err
	}
	if reply == nil {
		return nil
	}
	if err := json.Unmarshal(result, reply); err != nil {
		return rpcerror.Newf(rpcerror.ClientError, "cannot decode result: %v", err)
	}
	return nil
}

// Notify sends a notification; no response is expected or possible.
func (c *Client) Notify(ctx context.Context, method string, args any) error {
	params, err := marshalParams(args)
	if err != nil {
		return err
	}
	return c.ep.SendNotification(ctx, method, params)
}

// HasPendingRequests reports whether any calls await responses.
func (c *Client) HasPendingRequests() bool {
	return c.ep.HasPendingRequests()
}

// Endpoint exposes the underlying endpoint, e.g. to register handlers
// for server-initiated callbacks.
func (c *Client) Endpoint() *endpoint.Endpoint { return c.ep }

// Shutdown stops the client and cancels outstanding calls.
func (c *Client) Shutdown(ctx context.Context) error {
	return c.ep.Shutdown(ctx)
}

func marshalParams(args any) (json.RawMessage, error) {
	if args == nil {
		return nil, nil
	}
	params, err := json.Marshal(args)
	if err != nil {
		return nil, rpcerror.Newf(rpcerror.ClientError, "cannot encode params: %v", err)
	}
	return params, nil
}

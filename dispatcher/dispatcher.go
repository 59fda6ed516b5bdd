// Package dispatcher routes inbound JSON-RPC requests to registered
// handlers and assembles the responses, for single requests and batches.
//
// The dispatcher is untyped: handlers receive raw params JSON and return
// raw result JSON. Typed adapters (see server.Register) convert at the
// boundary. Handler tables are expected to be populated before the owning
// endpoint starts; registration is mutex-protected regardless, so late
// registration is safe if callers choose to do it.
package dispatcher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/jbraun2025/jsonrpc-go/message"
	"github.com/jbraun2025/jsonrpc-go/rpcerror"
)

// MethodHandler handles one method call. The returned JSON becomes the
// response's result member. Returning a *rpcerror.Error preserves its
// code on the wire (application errors like "Division by zero"); any
// other error maps to InternalError with the error text as data.
type MethodHandler func(ctx context.Context, params json.RawMessage) (json.RawMessage, error)

// NotificationHandler handles one notification. Notifications never
// produce responses, so there is nothing to return.
type NotificationHandler func(ctx context.Context, params json.RawMessage)

// Middleware wraps a method handler. Middlewares compose around every
// registered method handler in the order they were added.
type Middleware func(next MethodHandler) MethodHandler

// Chain composes middlewares into one. Chain(A, B)(h) runs A's before
// logic first and A's after logic last.
func Chain(middlewares ...Middleware) Middleware {
	return func(next MethodHandler) MethodHandler {
		for i := len(middlewares) - 1; i >= 0; i-- {
			next = middlewares[i](next)
		}
		return next
	}
}

// DefaultMaxBatchSize bounds the number of requests in one batch.
const DefaultMaxBatchSize = 100

// Dispatcher owns the handler tables. The zero value is not usable; use New.
type Dispatcher struct {
	log zerolog.Logger

	mu            sync.RWMutex
	methods       map[string]MethodHandler
	notifications map[string]NotificationHandler
	middlewares   []Middleware

	maxBatchSize int
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger attaches a logger. The default discards everything.
func WithLogger(logger zerolog.Logger) Option {
	return func(d *Dispatcher) { d.log = logger }
}

// WithMaxBatchSize overrides the batch size limit.
func WithMaxBatchSize(n int) Option {
	return func(d *Dispatcher) { d.maxBatchSize = n }
}

// New returns an empty dispatcher.
func New(opts ...Option) *Dispatcher {
	d := &Dispatcher{
		log:           zerolog.Nop(),
		methods:       make(map[string]MethodHandler),
		notifications: make(map[string]NotificationHandler),
		maxBatchSize:  DefaultMaxBatchSize,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.log = d.log.With().Str("component", "dispatcher").Logger()
	return d
}

// Use adds a middleware applied to every method call. Notifications are
// not wrapped. Middlewares registered after dispatch has begun apply to
// subsequent calls.
func (d *Dispatcher) Use(mw Middleware) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.middlewares = append(d.middlewares, mw)
}

// RegisterMethod installs a method call handler. A second registration
// for the same name overwrites the first; callers must not register
// ambiguously.
func (d *Dispatcher) RegisterMethod(method string, handler MethodHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.methods[method] = handler
}

// RegisterNotification installs a notification handler, overwriting any
// previous registration for the same name.
func (d *Dispatcher) RegisterNotification(method string, handler NotificationHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.notifications[method] = handler
}

// Dispatch is the sole entry point from the endpoint's pump. It parses
// raw as a single request or a batch, routes to handlers, and returns
// the serialized response, or nil when no response is due (notifications).
func (d *Dispatcher) Dispatch(ctx context.Context, raw []byte) ([]byte, error) {
	trimmed := bytes.TrimLeft(raw, " \t\r\n")

	if len(trimmed) == 0 || !json.Valid(raw) {
		return marshalResponse(message.ErrorResponse(rpcerror.ParseError, nil))
	}

	switch trimmed[0] {
	case '{':
		resp := d.dispatchSingle(ctx, raw)
		if resp == nil {
			return nil, nil
		}
		return marshalResponse(resp)
	case '[':
		return d.dispatchBatch(ctx, raw)
	default:
		return marshalResponse(message.ErrorResponse(rpcerror.InvalidRequest, nil))
	}
}

// dispatchSingle routes one request object. A nil return means the
// request was a notification.
func (d *Dispatcher) dispatchSingle(ctx context.Context, raw json.RawMessage) *message.Response {
	req, err := message.ParseRequest(raw)
	if err != nil {
		return message.ErrorFrom(rpcerror.AsError(err), bestEffortID(raw))
	}

	if req.IsNotification() {
		d.mu.RLock()
		handler, ok := d.notifications[req.Method()]
		d.mu.RUnlock()
		if !ok {
			d.log.Debug().Str("method", req.Method()).Msg("dropping notification with no handler")
			return nil
		}
		// Notifications run detached; their panics must not reach the pump.
		go func() {
			defer func() {
				if r := recover(); r != nil {
					d.log.Error().Str("method", req.Method()).Any("panic", r).Msg("notification handler panicked")
				}
			}()
			handler(ctx, req.Params())
		}()
		return nil
	}

	id, _ := req.ID()

	d.mu.RLock()
	handler, ok := d.methods[req.Method()]
	chain := Chain(d.middlewares...)
	d.mu.RUnlock()
	if !ok {
		return message.ErrorFrom(rpcerror.FromCode(rpcerror.MethodNotFound), &id)
	}

	result, err := invoke(ctx, chain(handler), req.Params())
	if err != nil {
		if rpcErr, ok := err.(*rpcerror.Error); ok {
			return message.ErrorFrom(rpcErr, &id)
		}
		internal := rpcerror.FromCode(rpcerror.InternalError).WithData(err.Error())
		return message.ErrorFrom(internal, &id)
	}
	return message.Success(result, id)
}

// invoke runs a method handler, converting panics into errors so a buggy
// handler cannot take the endpoint down.
func invoke(ctx context.Context, handler MethodHandler, params json.RawMessage) (result json.RawMessage, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panicked: %v", r)
		}
	}()
	return handler(ctx, params)
}

// dispatchBatch routes a batch. Members run concurrently; the emitted
// array preserves input order and holds exactly one response per
// non-notification member. A batch of only notifications yields nil.
func (d *Dispatcher) dispatchBatch(ctx context.Context, raw []byte) ([]byte, error) {
	var elements []json.RawMessage
	if err := json.Unmarshal(raw, &elements); err != nil {
		return marshalResponse(message.ErrorResponse(rpcerror.ParseError, nil))
	}
	if len(elements) == 0 {
		return marshalResponse(message.ErrorResponse(rpcerror.InvalidRequest, nil))
	}
	if len(elements) > d.maxBatchSize {
		tooLarge := rpcerror.Newf(rpcerror.InvalidRequest, "batch exceeds maximum size of %d", d.maxBatchSize)
		return marshalResponse(message.ErrorFrom(tooLarge, nil))
	}

	responses := make([]*message.Response, len(elements))
	var wg sync.WaitGroup
	for i, element := range elements {
		wg.Add(1)
		go func(i int, element json.RawMessage) {
			defer wg.Done()
			responses[i] = d.dispatchSingle(ctx, element)
		}(i, element)
	}
	wg.Wait()

	out := make([]*message.Response, 0, len(responses))
	for _, resp := range responses {
		if resp != nil {
			out = append(out, resp)
		}
	}
	if len(out) == 0 {
		return nil, nil
	}
	return json.Marshal(out)
}

// bestEffortID digs the id out of a malformed request so the error
// response can still be correlated. Returns nil when no usable id exists.
func bestEffortID(raw json.RawMessage) *message.ID {
	var probe struct {
		ID json.RawMessage `json:"id"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil || probe.ID == nil {
		return nil
	}
	var id message.ID
	if err := id.UnmarshalJSON(probe.ID); err != nil {
		return nil
	}
	return &id
}

func marshalResponse(resp *message.Response) ([]byte, error) {
	raw, err := resp.MarshalJSON()
	if err != nil {
		return nil, rpcerror.New(rpcerror.InternalError, err.Error())
	}
	return raw, nil
}

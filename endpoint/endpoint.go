// Package endpoint implements a bidirectional JSON-RPC 2.0 peer bound to
// one transport. A single Endpoint acts as client and server at once: it
// issues calls and notifications while concurrently serving the peer's
// requests over the same duplex stream.
//
// One long-running pump goroutine owns the receive side. Inbound
// responses resolve entries in the pending-request table; everything else
// goes to the dispatcher. State-carrying mutations (the pending table)
// are mutex-serialized; handler bodies and batch members run in parallel
// on their own goroutines.
//
// Handler tables should be populated before Start. Registration remains
// safe afterwards (the dispatcher locks its tables), but handlers
// registered mid-stream only see subsequent requests.
package endpoint

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/jbraun2025/jsonrpc-go/dispatcher"
	"github.com/jbraun2025/jsonrpc-go/message"
	"github.com/jbraun2025/jsonrpc-go/rpcerror"
	"github.com/jbraun2025/jsonrpc-go/transport"
)

// receiveRetryDelay is the backoff after a failed transport receive.
const receiveRetryDelay = 100 * time.Millisecond

// shutdownMessage resolves every pending call cancelled by Shutdown.
const shutdownMessage = "RPC endpoint shutting down"

// Endpoint is a JSON-RPC 2.0 peer. It exclusively owns its transport; no
// other component may touch it once the endpoint is constructed.
type Endpoint struct {
	log        zerolog.Logger
	transport  transport.Transport
	dispatcher *dispatcher.Dispatcher

	ids idGenerator

	mu      sync.Mutex
	pending map[int64]*pendingRequest

	running  bool
	started  bool
	stateMu  sync.Mutex
	cancel   context.CancelFunc
	pumpDone chan struct{}
}

// Option configures an Endpoint.
type Option func(*Endpoint)

// WithLogger attaches a logger. The default discards everything.
func WithLogger(logger zerolog.Logger) Option {
	return func(e *Endpoint) { e.log = logger }
}

// WithDispatcher substitutes a pre-configured dispatcher (custom batch
// limits, middleware already installed).
func WithDispatcher(d *dispatcher.Dispatcher) Option {
	return func(e *Endpoint) { e.dispatcher = d }
}

// New returns an endpoint bound to t. The endpoint takes ownership of
// the transport.
func New(t transport.Transport, opts ...Option) *Endpoint {
	e := &Endpoint{
		log:       zerolog.Nop(),
		transport: t,
		pending:   make(map[int64]*pendingRequest),
		pumpDone:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.dispatcher == nil {
		e.dispatcher = dispatcher.New(dispatcher.WithLogger(e.log))
	}
	e.log = e.log.With().Str("component", "endpoint").Logger()
	return e
}

// RegisterMethod installs a method call handler on the dispatcher.
func (e *Endpoint) RegisterMethod(method string, handler dispatcher.MethodHandler) {
	e.dispatcher.RegisterMethod(method, handler)
}

// RegisterNotification installs a notification handler on the dispatcher.
func (e *Endpoint) RegisterNotification(method string, handler dispatcher.NotificationHandler) {
	e.dispatcher.RegisterNotification(method, handler)
}

// Use adds a middleware around every method call handler.
func (e *Endpoint) Use(mw dispatcher.Middleware) {
	e.dispatcher.Use(mw)
}

// Start connects the transport and launches the message pump. Start is
// deliberately non-idempotent: a second call fails with a ClientError
// even after shutdown.
func (e *Endpoint) Start(ctx context.Context) error {
	e.stateMu.Lock()
	if e.started {
		e.stateMu.Unlock()
		return rpcerror.New(rpcerror.ClientError, "RPC endpoint is already running")
	}
	e.started = true
	e.running = true
	e.stateMu.Unlock()

	e.log.Debug().Msg("starting RPC endpoint")

	if err := e.transport.Start(ctx); err != nil {
		e.stateMu.Lock()
		e.running = false
		e.stateMu.Unlock()
		close(e.pumpDone)
		return err
	}

	// The pump outlives the Start call's context.
	pumpCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	e.stateMu.Lock()
	e.cancel = cancel
	e.stateMu.Unlock()

	go e.pump(pumpCtx)
	return nil
}

// IsRunning reports whether the endpoint accepts calls.
func (e *Endpoint) IsRunning() bool {
	e.stateMu.Lock()
	defer e.stateMu.Unlock()
	return e.running
}

// pump is the endpoint's single receive loop.
func (e *Endpoint) pump(ctx context.Context) {
	defer close(e.pumpDone)
	for {
		if ctx.Err() != nil || !e.IsRunning() {
			e.log.Debug().Msg("message pump exiting")
			return
		}

		msg, err := e.transport.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil || !e.IsRunning() {
				e.log.Debug().Msg("message pump exiting")
				return
			}
			e.log.Error().Err(err).Msg("receive error")
			select {
			case <-time.After(receiveRetryDelay):
			case <-ctx.Done():
			}
			continue
		}

		e.handleMessage(ctx, msg)
	}
}

// handleMessage routes one inbound message: responses resolve pending
// calls, everything else goes through the dispatcher.
func (e *Endpoint) handleMessage(ctx context.Context, msg []byte) {
	if isResponse(msg) {
		e.handleResponse(msg)
		return
	}

	// Requests run off the pump goroutine so a handler that calls back
	// into the peer or shuts the endpoint down cannot stall receiving.
	go func() {
		resp, err := e.dispatcher.Dispatch(ctx, msg)
		if err != nil {
			e.log.Error().Err(err).Msg("dispatch error")
			return
		}
		if resp == nil {
			return
		}
		if err := e.transport.Send(ctx, resp); err != nil {
			e.log.Error().Err(err).Msg("error sending response")
		}
	}()
}

// isResponse classifies an inbound message: an object carrying "id" and
// at least one of "result"/"error" is a response; everything else is a
// request or batch for the dispatcher.
func isResponse(msg []byte) bool {
	var probe struct {
		ID     json.RawMessage `json:"id"`
		Result json.RawMessage `json:"result"`
		Error  json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(msg, &probe); err != nil {
		return false
	}
	return probe.ID != nil && (probe.Result != nil || probe.Error != nil)
}

// handleResponse resolves the pending call the response answers.
// Malformed responses and unknown or non-integer IDs are logged and
// dropped; a pending slot can therefore only ever resolve once.
func (e *Endpoint) handleResponse(msg []byte) {
	resp, err := message.ParseResponse(msg)
	if err != nil {
		e.log.Error().Err(err).Msg("dropping invalid response")
		return
	}

	respID, ok := resp.ID()
	if !ok {
		e.log.Error().Msg("dropping response without id")
		return
	}
	id, ok := respID.Int64()
	if !ok {
		// The endpoint only ever issues integer IDs.
		e.log.Error().Stringer("id", respID).Msg("dropping response with non-integer id")
		return
	}

	e.mu.Lock()
	pending, ok := e.pending[id]
	if ok {
		delete(e.pending, id)
	}
	e.mu.Unlock()

	if !ok {
		e.log.Error().Int64("id", id).Msg("unknown request id")
		return
	}
	pending.resolve(resp)
}

// SendCall issues a method call and blocks until the peer responds, the
// endpoint shuts down, or ctx is done. On an error response the call
// fails with a ClientError carrying the peer's error message.
func (e *Endpoint) SendCall(ctx context.Context, method string, params json.RawMessage) (json.RawMessage, error) {
	if !e.IsRunning() {
		return nil, rpcerror.New(rpcerror.ClientError, "RPC endpoint is not running")
	}

	id := e.ids.next()
	raw, err := message.NewCall(method, params, message.IntID(id)).MarshalJSON()
	if err != nil {
		return nil, rpcerror.New(rpcerror.InternalError, err.Error())
	}

	// Arm the slot before the bytes leave: the response may beat the
	// bookkeeping otherwise.
	pending := newPendingRequest()
	e.mu.Lock()
	e.pending[id] = pending
	e.mu.Unlock()

	if err := e.transport.Send(ctx, raw); err != nil {
		e.removePending(id)
		return nil, err
	}

	resp, err := pending.await(ctx)
	if err != nil {
		e.removePending(id)
		return nil, err
	}

	if !resp.IsSuccess() {
		return nil, rpcerror.New(rpcerror.ClientError, resp.Err().Message)
	}
	return resp.Result(), nil
}

// SendNotification issues a notification. Nothing is enqueued: transport
// errors are the only possible failure.
func (e *Endpoint) SendNotification(ctx context.Context, method string, params json.RawMessage) error {
	if !e.IsRunning() {
		return rpcerror.New(rpcerror.ClientError, "RPC endpoint is not running")
	}

	raw, err := message.NewNotification(method, params).MarshalJSON()
	if err != nil {
		return rpcerror.New(rpcerror.InternalError, err.Error())
	}
	return e.transport.Send(ctx, raw)
}

func (e *Endpoint) removePending(id int64) {
	e.mu.Lock()
	delete(e.pending, id)
	e.mu.Unlock()
}

// HasPendingRequests reports whether any outbound calls await responses.
func (e *Endpoint) HasPendingRequests() bool {
	return e.PendingRequestCount() > 0
}

// PendingRequestCount returns the number of outbound calls awaiting
// responses.
func (e *Endpoint) PendingRequestCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.pending)
}

// Shutdown stops the pump, cancels every pending call with a synthetic
// "shutting down" error, and closes the transport. Idempotent; safe to
// call on an endpoint that never started. Handler goroutines already
// spawned keep running; their responses are dropped.
func (e *Endpoint) Shutdown(ctx context.Context) error {
	e.stateMu.Lock()
	wasRunning := e.running
	e.running = false
	cancel := e.cancel
	started := e.started
	e.stateMu.Unlock()

	if !started || !wasRunning {
		return nil
	}

	e.log.Debug().Msg("shutting down RPC endpoint")
	if cancel != nil {
		cancel()
	}

	e.mu.Lock()
	for id, pending := range e.pending {
		pending.cancel(rpcerror.InternalError, shutdownMessage)
		delete(e.pending, id)
	}
	e.mu.Unlock()

	// Closing the transport also unblocks a pump stuck in Receive.
	closeErr := e.transport.Close()

	select {
	case <-e.pumpDone:
	case <-ctx.Done():
		return rpcerror.New(rpcerror.ClientError, "shutdown wait cancelled: "+ctx.Err().Error())
	}

	return closeErr
}

// WaitForShutdown blocks until the message pump has exited (or ctx is
// done). It returns immediately for an endpoint that never started.
func (e *Endpoint) WaitForShutdown(ctx context.Context) error {
	e.stateMu.Lock()
	started := e.started
	e.stateMu.Unlock()
	if !started {
		return nil
	}

	select {
	case <-e.pumpDone:
		return nil
	case <-ctx.Done():
		return rpcerror.New(rpcerror.ClientError, "wait cancelled: "+ctx.Err().Error())
	}
}

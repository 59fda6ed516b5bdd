package endpoint

import (
	"context"
	"sync"

	"github.com/jbraun2025/jsonrpc-go/message"
	"github.com/jbraun2025/jsonrpc-go/rpcerror"
)

// pendingRequest is a one-shot slot holding the peer's response to one
// outbound call. It is armed on creation, resolved exactly once by
// whichever of response arrival or shutdown cancellation fires first,
// and consumed by the single caller awaiting it.
type pendingRequest struct {
	once sync.Once
	// Buffered so the resolver never blocks on a consumer.
	ch chan *message.Response
}

func newPendingRequest() *pendingRequest {
	return &pendingRequest{ch: make(chan *message.Response, 1)}
}

// resolve delivers the response. Later calls are ignored; the slot is
// set-once.
func (p *pendingRequest) resolve(resp *message.Response) {
	p.once.Do(func() { p.ch <- resp })
}

// cancel resolves the slot with a synthetic error response.
func (p *pendingRequest) cancel(code rpcerror.Code, msg string) {
	p.resolve(message.ErrorFrom(rpcerror.New(code, msg), nil))
}

// await blocks until the slot resolves or ctx is done.
func (p *pendingRequest) await(ctx context.Context) (*message.Response, error) {
	select {
	case resp := <-p.ch:
		return resp, nil
	case <-ctx.Done():
		return nil, rpcerror.New(rpcerror.ClientError, "call cancelled: "+ctx.Err().Error())
	}
}

package middleware

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jbraun2025/jsonrpc-go/dispatcher"
	"github.com/jbraun2025/jsonrpc-go/rpcerror"
)

// Timeout bounds each method call. A handler that overruns produces a
// TimeoutError response; the handler goroutine itself keeps running until
// it observes the cancelled context.
func Timeout(limit time.Duration) Middleware {
	return func(next dispatcher.MethodHandler) dispatcher.MethodHandler {
		return func(ctx context.Context, params json.RawMessage) (json.RawMessage, error) {
			ctx, cancel := context.WithTimeout(ctx, limit)
			defer cancel()

			type outcome struct {
				result json.RawMessage
				err    error
			}
			done := make(chan outcome, 1)
			go func() {
				result, err := next(ctx, params)
				done <- outcome{result, err}
			}()

			select {
			case o := <-done:
				return o.result, o.err
			case <-ctx.Done():
				return nil, rpcerror.New(rpcerror.TimeoutError, "request timed out")
			}
		}
	}
}

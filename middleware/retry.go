package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jbraun2025/jsonrpc-go/dispatcher"
	"github.com/jbraun2025/jsonrpc-go/rpcerror"
)

// Retry re-invokes a handler that failed with a retryable error, backing
// off exponentially from baseDelay. Only timeout and transport errors are
// retried; application errors return immediately.
func Retry(maxRetries int, baseDelay time.Duration) Middleware {
	return func(next dispatcher.MethodHandler) dispatcher.MethodHandler {
		return func(ctx context.Context, params json.RawMessage) (json.RawMessage, error) {
			result, err := next(ctx, params)
			for attempt := 0; attempt < maxRetries && err != nil && retryable(err); attempt++ {
				select {
				case <-time.After(baseDelay * time.Duration(1<<attempt)):
				case <-ctx.Done():
					return nil, rpcerror.New(rpcerror.TimeoutError, "request cancelled during retry")
				}
				result, err = next(ctx, params)
			}
			return result, err
		}
	}
}

func retryable(err error) bool {
	var rpcErr *rpcerror.Error
	if errors.As(err, &rpcErr) {
		return rpcErr.Code == rpcerror.TimeoutError || rpcErr.Code == rpcerror.TransportError
	}
	return false
}

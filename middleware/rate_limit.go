package middleware

import (
	"context"
	"encoding/json"

	"golang.org/x/time/rate"

	"github.com/jbraun2025/jsonrpc-go/dispatcher"
	"github.com/jbraun2025/jsonrpc-go/rpcerror"
)

// RateLimit rejects calls beyond a token-bucket budget of r calls per
// second with bursts up to burst. Rejected calls fail with a ServerError
// response rather than queueing.
func RateLimit(r float64, burst int) Middleware {
	limiter := rate.NewLimiter(rate.Limit(r), burst)
	return func(next dispatcher.MethodHandler) dispatcher.MethodHandler {
		return func(ctx context.Context, params json.RawMessage) (json.RawMessage, error) {
			if !limiter.Allow() {
				return nil, rpcerror.New(rpcerror.ServerError, "rate limit exceeded")
			}
			return next(ctx, params)
		}
	}
}

package middleware

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"

	"github.com/jbraun2025/jsonrpc-go/dispatcher"
)

// Logging records every method call: duration, outcome, and the error if
// the handler failed.
func Logging(logger zerolog.Logger) Middleware {
	return func(next dispatcher.MethodHandler) dispatcher.MethodHandler {
		return func(ctx context.Context, params json.RawMessage) (json.RawMessage, error) {
			start := time.Now()
			result, err := next(ctx, params)
			evt := logger.Debug()
			if err != nil {
				evt = logger.Error().Err(err)
			}
			evt.Dur("duration", time.Since(start)).Msg("method call")
			return result, err
		}
	}
}

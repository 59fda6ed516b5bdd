// Package middleware provides composable wrappers for method handlers:
// structured request logging, per-call timeouts, retry with exponential
// backoff, and token-bucket rate limiting.
//
// Middlewares are registered on a dispatcher with Use and compose in
// registration order:
//
//	d := dispatcher.New()
//	d.Use(middleware.Logging(logger))
//	d.Use(middleware.Timeout(5 * time.Second))
//
// Per-call timeouts deliberately live here rather than in the endpoint:
// the endpoint core never times requests out on its own.
package middleware

import (
	"github.com/jbraun2025/jsonrpc-go/dispatcher"
)

// Middleware wraps a method handler; see dispatcher.Middleware.
type Middleware = dispatcher.Middleware

// Chain composes middlewares into one; see dispatcher.Chain.
func Chain(middlewares ...Middleware) Middleware {
	return dispatcher.Chain(middlewares...)
}

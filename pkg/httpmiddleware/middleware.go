// Package httpmiddleware carries the API server's middleware chain: panic
// recovery, CORS, rate limiting, request IDs, context loggers, OpenTelemetry
// instrumentation, and request logging.
package httpmiddleware

import "net/http"

// Middleware decorates an http.Handler.
type Middleware func(http.Handler) http.Handler

// Wrap nests middlewares around h so that the first listed one sees the
// request first and the response last.
func Wrap(h http.Handler, middlewares ...Middleware) http.Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}

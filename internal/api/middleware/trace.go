// Package middleware provides HTTP middleware applied to every route.
package middleware

import (
	"log/slog"
	"net/http"

	"github.com/wzin/datawipe/internal/api/shared"
)

// TraceMiddleware adds a trace ID to the request context. Applied first
// in the chain so every handler and log line carries it.
func TraceMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := shared.SetTraceID(r.Context())

		log := slog.With(slog.String("trace_id", shared.GetTraceID(ctx)))
		log.Debug("request started",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("remote_addr", r.RemoteAddr))

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

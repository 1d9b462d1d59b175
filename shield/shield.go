// Package shield provides the HTTP middleware stack of the settings
// surface: security headers, body limits, request tracing and HEAD
// handling.
//
// Usage:
//
//	r := chi.NewRouter()
//	for _, mw := range shield.DefaultStack() {
//	    r.Use(mw)
//	}
package shield

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
)

const maxRequestBody = 64 << 10

type contextKey string

// LoggerKey is the context key for the per-request structured logger.
const LoggerKey contextKey = "shield_logger"

// GetLogger retrieves the per-request logger from the context.
// Returns slog.Default() if no logger was set.
func GetLogger(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(LoggerKey).(*slog.Logger); ok {
		return l
	}
	return slog.Default()
}

// DefaultStack returns the middleware applied to the settings API, in
// order: panic recovery, HEAD on GET routes, SecurityHeaders, a 64 KiB
// request body cap, TraceID.
func DefaultStack() []func(http.Handler) http.Handler {
	return []func(http.Handler) http.Handler{
		middleware.Recoverer,
		middleware.GetHead,
		SecurityHeaders(DefaultHeaders()),
		middleware.RequestSize(maxRequestBody),
		TraceID,
	}
}

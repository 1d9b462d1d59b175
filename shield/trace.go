package shield

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/hazyhaar/whichsocial/idgen"
	"github.com/hazyhaar/whichsocial/kit"
)

const maxTraceID = 64

var traceIDs = idgen.Token(8)

// TraceID tags each request with an X-Trace-ID, reusing a well-formed
// incoming one. The ID is echoed in the response, stored in the context
// for kit.GetTraceID and bound to a request logger under LoggerKey. The
// request is logged once it completes.
func TraceID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Trace-ID")
		if !validTraceID(id) {
			id = traceIDs()
		}
		w.Header().Set("X-Trace-ID", id)

		logger := slog.Default().With("trace_id", id)
		ctx := context.WithValue(kit.WithTraceID(r.Context(), id), LoggerKey, logger)

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		defer func() {
			logger.Debug("shield: request",
				"method", r.Method,
				"path", r.URL.Path,
				"remote_addr", r.RemoteAddr,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start))
		}()
		next.ServeHTTP(ww, r.WithContext(ctx))
	})
}

func validTraceID(id string) bool {
	if id == "" || len(id) > maxTraceID {
		return false
	}
	for i := 0; i < len(id); i++ {
		c := id[i]
		if !(c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '-' || c == '_') {
			return false
		}
	}
	return true
}

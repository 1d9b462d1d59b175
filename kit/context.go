// Package kit carries correlation IDs through a context so lower layers
// (SQL tracing, the store client) can tag their work without knowing who
// called them.
package kit

import (
	"context"
	"log/slog"
)

// IDs are the correlation IDs attached to a context. The trace ID comes
// from an HTTP request, the session ID from an annotator run.
type IDs struct {
	Trace   string
	Session string
}

type idsKey struct{}

func from(ctx context.Context) IDs {
	ids, _ := ctx.Value(idsKey{}).(IDs)
	return ids
}

// WithTraceID returns ctx carrying the HTTP trace ID.
func WithTraceID(ctx context.Context, id string) context.Context {
	ids := from(ctx)
	ids.Trace = id
	return context.WithValue(ctx, idsKey{}, ids)
}

// WithSessionID returns ctx carrying the annotator session ID.
func WithSessionID(ctx context.Context, id string) context.Context {
	ids := from(ctx)
	ids.Session = id
	return context.WithValue(ctx, idsKey{}, ids)
}

func GetTraceID(ctx context.Context) string   { return from(ctx).Trace }
func GetSessionID(ctx context.Context) string { return from(ctx).Session }

// Correlation returns the ID to forward to another service: the trace ID,
// else the session ID, else "".
func Correlation(ctx context.Context) string {
	ids := from(ctx)
	if ids.Trace != "" {
		return ids.Trace
	}
	return ids.Session
}

// Attrs returns the set IDs as trace_id and session log attributes.
func Attrs(ctx context.Context) []slog.Attr {
	ids := from(ctx)
	var out []slog.Attr
	if ids.Trace != "" {
		out = append(out, slog.String("trace_id", ids.Trace))
	}
	if ids.Session != "" {
		out = append(out, slog.String("session", ids.Session))
	}
	return out
}

package telemetry

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/trace"
)

// SpanHandler wraps a slog.Handler and stamps "trace_id" and "span_id" on
// every record logged with a span-carrying context, so bootstrap log lines
// correlate with the prepare spans in the collector.
type SpanHandler struct {
	inner slog.Handler
}

// NewSpanHandler wraps h with trace-context stamping.
func NewSpanHandler(h slog.Handler) *SpanHandler {
	return &SpanHandler{inner: h}
}

func (s *SpanHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return s.inner.Enabled(ctx, level)
}

func (s *SpanHandler) Handle(ctx context.Context, r slog.Record) error {
	if sc := trace.SpanFromContext(ctx).SpanContext(); sc.IsValid() {
		r.AddAttrs(
			slog.String("trace_id", sc.TraceID().String()),
			slog.String("span_id", sc.SpanID().String()),
		)
	}
	return s.inner.Handle(ctx, r)
}

func (s *SpanHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &SpanHandler{inner: s.inner.WithAttrs(attrs)}
}

func (s *SpanHandler) WithGroup(name string) slog.Handler {
	return &SpanHandler{inner: s.inner.WithGroup(name)}
}

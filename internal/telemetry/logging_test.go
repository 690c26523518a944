package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
)

func TestSpanHandler_StampsTraceIDs(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewSpanHandler(slog.NewJSONHandler(&buf, nil)))

	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    trace.TraceID{0x01},
		SpanID:     trace.SpanID{0x02},
		TraceFlags: trace.FlagsSampled,
	})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	logger.InfoContext(ctx, "hello")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, sc.TraceID().String(), entry["trace_id"])
	assert.Equal(t, sc.SpanID().String(), entry["span_id"])
}

func TestSpanHandler_NoSpanNoStamp(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewSpanHandler(slog.NewJSONHandler(&buf, nil)))

	logger.Info("hello")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.NotContains(t, entry, "trace_id")
	assert.NotContains(t, entry, "span_id")
}

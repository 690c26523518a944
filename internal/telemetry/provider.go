// Package telemetry wires OTEL tracing and trace-correlated logging for the
// bootstrap. Traces only: bemboot is a one-shot process that replaces itself
// with the application server, so a periodic metric reader would never get a
// chance to export.
package telemetry

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Provider holds the OTEL tracer provider and its shutdown func.
type Provider struct {
	shutdown func(context.Context) error
}

// InitProvider initialises the tracer provider against the OTLP collector at
// endpoint. The gRPC dial is non-blocking, so an unreachable collector never
// delays the bootstrap; spans are simply dropped.
func InitProvider(ctx context.Context, endpoint, serviceName string, useInsecure bool) (*Provider, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion("0.1.0"),
		),
		resource.WithHost(),
		resource.WithProcess(),
	)
	if err != nil {
		return nil, fmt.Errorf("building OTEL resource: %w", err)
	}

	opts := []grpc.DialOption{}
	if useInsecure {
		opts = append(opts, grpc.WithTransportCredentials(insecure.NewCredentials()))
	}

	conn, err := grpc.NewClient(endpoint, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating gRPC client for OTEL: %w", err)
	}

	exporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		conn.Close() //nolint:errcheck
		return nil, fmt.Errorf("creating trace exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	// Export errors must not look like bootstrap errors in the logs.
	otel.SetErrorHandler(otel.ErrorHandlerFunc(func(err error) {
		slog.Warn("otel export error", "err", err)
	}))

	shutdown := func(ctx context.Context) error {
		tp.Shutdown(ctx) //nolint:errcheck
		return conn.Close()
	}

	return &Provider{shutdown: shutdown}, nil
}

// Shutdown flushes pending spans and closes the exporter connection. It must
// run before the execve hand-off; after that no code of ours exists to flush
// anything. ctx should have a deadline.
func (p *Provider) Shutdown(ctx context.Context) error {
	return p.shutdown(ctx)
}

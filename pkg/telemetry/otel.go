package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc/credentials"
)

// Config describes the telemetry bootstrap options.
type Config struct {
	ServiceName string
	Endpoint    string
	Environment string
	Insecure    bool
	Headers     map[string]string
}

// SetupProvider initialises the process-wide OpenTelemetry tracer provider and
// returns a shutdown function that callers must invoke during graceful
// termination to flush buffered spans. An empty endpoint is a no-op.
func SetupProvider(ctx context.Context, cfg Config) (func(context.Context) error, error) {
	if cfg.Endpoint == "" {
		return func(context.Context) error { return nil }, nil
	}

	clientOpts := []otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint(cfg.Endpoint),
	}
	if cfg.Insecure {
		clientOpts = append(clientOpts, otlptracegrpc.WithInsecure())
	} else {
		clientOpts = append(clientOpts, otlptracegrpc.WithTLSCredentials(credentials.NewClientTLSFromCert(nil, "")))
	}
	if len(cfg.Headers) > 0 {
		clientOpts = append(clientOpts, otlptracegrpc.WithHeaders(cfg.Headers))
	}

	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	exporter, err := otlptrace.New(dialCtx, otlptracegrpc.NewClient(clientOpts...))
	if err != nil {
		return nil, fmt.Errorf("create otlp exporter: %w", err)
	}

	attrs := []attribute.KeyValue{semconv.ServiceName(cfg.ServiceName)}
	if cfg.Environment != "" {
		attrs = append(attrs, attribute.String("deployment.environment", cfg.Environment))
	}

	res, err := resource.New(ctx,
		resource.WithSchemaURL(semconv.SchemaURL),
		resource.WithAttributes(attrs...),
	)
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter, sdktrace.WithMaxExportBatchSize(100), sdktrace.WithBatchTimeout(5*time.Second)),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(provider)

	return provider.Shutdown, nil
}

// RecordDecisionEvent attaches a coarse-grained decision event to the span
// without leaking prompt text or attribute values.
func RecordDecisionEvent(span trace.Span, allowed bool, reason, intent string, confidence float64) {
	if span == nil || !span.IsRecording() {
		return
	}

	span.AddEvent("gateway.decision", trace.WithAttributes(
		attribute.Bool("decision.allowed", allowed),
		attribute.String("decision.reason", reason),
		attribute.String("decision.intent", intent),
		attribute.Float64("decision.confidence", confidence),
	))
}

// Package telemetry sets up OpenTelemetry tracing exported over OTLP/HTTP.
// Exporter endpoint and headers come from standard OTEL_EXPORTER_OTLP_*
// environment variables.
package telemetry

import (
	"context"
	"os"

	"github.com/bonfire-gw/bonfire/internal/build"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
)

func serviceName() string {
	if name := os.Getenv("OTEL_SERVICE_NAME"); name != "" {
		return name
	}
	return "bonfire"
}

func newProvider(exporter trace.SpanExporter) *trace.TracerProvider {
	rs := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceNameKey.String(serviceName()),
		attribute.String("version", build.Version),
	)
	return trace.NewTracerProvider(
		trace.WithBatcher(exporter),
		trace.WithResource(rs),
	)
}

// SetupTracing installs global tracer provider. Caller must Shutdown provider
// on exit to flush spans.
func SetupTracing(ctx context.Context) (*trace.TracerProvider, error) {
	exporter, err := otlptracehttp.New(ctx)
	if err != nil {
		return nil, err
	}
	provider := newProvider(exporter)
	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(
		propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
		),
	)
	return provider, nil
}

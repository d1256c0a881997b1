// Package telemetry wires OpenTelemetry for bugdash. The service emits one
// span per triage call plus token-usage and request-duration metrics; this
// package owns the providers behind them.
//
// Telemetry is off by default and every helper degrades to a no-op.
//
//	BUGDASH_OTEL_ENABLED=true        turn telemetry on
//	OTEL_EXPORTER_OTLP_ENDPOINT=...  ship to an OTLP gRPC collector
//	BUGDASH_OTEL_STDOUT=true         print to stdout instead (dev mode)
package telemetry

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

const (
	instrumentationScope = "github.com/jamesbringetto/atlassian-bug-dashboard"

	// Triage passes are slow and bursty; a short metric interval keeps
	// token counters visible while a backlog drains.
	metricInterval = 15 * time.Second
)

var shutdownFns []func(context.Context) error

// Enabled reports whether telemetry is active (BUGDASH_OTEL_ENABLED=true).
func Enabled() bool {
	return os.Getenv("BUGDASH_OTEL_ENABLED") == "true"
}

// stdoutMode forces local stdout exporters even when an OTLP endpoint is
// configured.
func stdoutMode() bool {
	return os.Getenv("BUGDASH_OTEL_STDOUT") == "true" ||
		os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT") == ""
}

// Init installs the tracer and meter providers. Disabled mode installs
// no-op providers so instrumented code never checks a flag.
func Init(ctx context.Context, serviceName, version string) error {
	if !Enabled() {
		otel.SetTracerProvider(tracenoop.NewTracerProvider())
		otel.SetMeterProvider(metricnoop.NewMeterProvider())
		return nil
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(serviceName),
			semconv.ServiceVersionKey.String(version),
		),
		resource.WithHost(),
		resource.WithProcess(),
	)
	if err != nil {
		return fmt.Errorf("telemetry: resource: %w", err)
	}

	spanExp, metricExp, err := buildExporters(ctx)
	if err != nil {
		return err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithBatcher(spanExp),
	)
	otel.SetTracerProvider(tp)
	shutdownFns = append(shutdownFns, tp.Shutdown)

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(
			sdkmetric.NewPeriodicReader(metricExp, sdkmetric.WithInterval(metricInterval)),
		),
	)
	otel.SetMeterProvider(mp)
	shutdownFns = append(shutdownFns, mp.Shutdown)

	return nil
}

// buildExporters picks one span/metric exporter pair: stdout for local work,
// OTLP gRPC when a collector endpoint is configured.
func buildExporters(ctx context.Context) (sdktrace.SpanExporter, sdkmetric.Exporter, error) {
	if stdoutMode() {
		spanExp, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, nil, fmt.Errorf("telemetry: stdout trace exporter: %w", err)
		}
		metricExp, err := stdoutmetric.New()
		if err != nil {
			return nil, nil, fmt.Errorf("telemetry: stdout metric exporter: %w", err)
		}
		return spanExp, metricExp, nil
	}

	endpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	spanExp, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("telemetry: otlp trace exporter: %w", err)
	}
	metricExp, err := otlpmetricgrpc.New(ctx,
		otlpmetricgrpc.WithEndpoint(endpoint),
		otlpmetricgrpc.WithInsecure(),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("telemetry: otlp metric exporter: %w", err)
	}
	return spanExp, metricExp, nil
}

// Tracer returns a tracer for the given instrumentation name (or the global
// scope when empty).
func Tracer(name string) trace.Tracer {
	if name == "" {
		name = instrumentationScope
	}
	return otel.Tracer(name)
}

// Meter returns a meter for the given instrumentation name (or the global
// scope when empty).
func Meter(name string) metric.Meter {
	if name == "" {
		name = instrumentationScope
	}
	return otel.Meter(name)
}

// Shutdown flushes pending spans and metrics and stops the providers.
func Shutdown(ctx context.Context) {
	for _, fn := range shutdownFns {
		_ = fn(ctx)
	}
	shutdownFns = nil
}

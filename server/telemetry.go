package server

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.10.0"
	"google.golang.org/grpc"

	"github.com/imrenagi/go-upload-progress/config"
)

type ShutdownFn func(context.Context) error

// SetupTelemetry installs the global meter provider, exported on /metrics,
// and a tracer provider when an OTLP endpoint is configured. The returned
// function flushes and stops both.
func SetupTelemetry(ctx context.Context, cfg config.TelemetryConfig) (ShutdownFn, error) {
	var shutdowns []ShutdownFn
	shutdown := func(ctx context.Context) error {
		var errs []error
		for _, fn := range shutdowns {
			errs = append(errs, fn(ctx))
		}
		return errors.Join(errs...)
	}

	exporter, err := NewPrometheusExporter()
	if err != nil {
		return nil, err
	}
	meterShutdown, err := InitMeterProvider(ctx, cfg.ServiceName, exporter)
	if err != nil {
		return nil, err
	}
	shutdowns = append(shutdowns, meterShutdown)

	if cfg.OTLPEndpoint == "" {
		log.Debug().Msg("no otlp endpoint configured, tracing disabled")
		return shutdown, nil
	}

	traceExporter, err := NewOTLPTraceExporter(ctx, cfg.OTLPEndpoint)
	if err != nil {
		return nil, errors.Join(err, shutdown(ctx))
	}
	traceShutdown, err := InitTraceProvider(ctx, cfg.ServiceName, traceExporter)
	if err != nil {
		return nil, errors.Join(err, shutdown(ctx))
	}
	shutdowns = append(shutdowns, traceShutdown)
	return shutdown, nil
}

func InitMeterProvider(ctx context.Context, name string, reader metric.Reader) (ShutdownFn, error) {
	res, err := telemetryResource(ctx, name)
	if err != nil {
		return nil, err
	}
	meterProvider := metric.NewMeterProvider(
		metric.WithResource(res),
		metric.WithReader(reader))
	otel.SetMeterProvider(meterProvider)
	return meterProvider.Shutdown, nil
}

func InitTraceProvider(ctx context.Context, name string, spanExporter trace.SpanExporter) (ShutdownFn, error) {
	res, err := telemetryResource(ctx, name)
	if err != nil {
		return nil, err
	}
	bsp := trace.NewBatchSpanProcessor(spanExporter)
	tracerProvider := trace.NewTracerProvider(
		trace.WithSampler(trace.TraceIDRatioBased(1)),
		trace.WithResource(res),
		trace.WithSpanProcessor(bsp),
	)
	otel.SetTracerProvider(tracerProvider)
	return tracerProvider.Shutdown, nil
}

func telemetryResource(ctx context.Context, serviceName string) (*resource.Resource, error) {
	res, err := resource.New(ctx,
		resource.WithFromEnv(),
		resource.WithProcess(),
		resource.WithTelemetrySDK(),
		resource.WithHost(),
		resource.WithAttributes(
			semconv.ServiceNameKey.String(serviceName),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("unable to initialize telemetry resource: %w", err)
	}
	return res, nil
}

// NewPrometheusExporter registers with the default prometheus registry, the
// one promhttp.Handler serves.
func NewPrometheusExporter() (*prometheus.Exporter, error) {
	exporter, err := prometheus.New()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize prometheus exporter: %w", err)
	}
	return exporter, nil
}

func NewOTLPTraceExporter(ctx context.Context, otlpEndpoint string) (*otlptrace.Exporter, error) {
	traceClient := otlptracegrpc.NewClient(
		otlptracegrpc.WithInsecure(),
		otlptracegrpc.WithEndpoint(otlpEndpoint),
		otlptracegrpc.WithDialOption(grpc.WithBlock()))
	traceExp, err := otlptrace.New(ctx, traceClient)
	if err != nil {
		return nil, fmt.Errorf("failed to create the collector trace exporter: %w", err)
	}
	return traceExp, nil
}

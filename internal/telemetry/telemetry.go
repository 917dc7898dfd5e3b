// Package telemetry installs the OpenTelemetry trace and metric providers.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Exporter names.
const (
	ExporterNone   = "none"
	ExporterStdout = "stdout"
	ExporterOTLP   = "otlp"
)

// OTLP protocols.
const (
	ProtocolHTTP = "http"
	ProtocolGRPC = "grpc"
)

// Config selects where spans and metrics go.
type Config struct {
	Exporter       string
	Endpoint       string
	Protocol       string
	ServiceName    string
	ServiceVersion string
	// Writer receives stdout exporter output. Defaults to os.Stdout.
	Writer io.Writer
}

// ShutdownFunc flushes and stops the installed providers.
type ShutdownFunc func(ctx context.Context) error

// Init installs global trace and meter providers for cfg.Exporter. With
// ExporterNone nothing is installed and the returned shutdown is a no-op.
func Init(ctx context.Context, cfg Config) (ShutdownFunc, error) {
	noop := func(context.Context) error { return nil }

	switch cfg.Exporter {
	case "", ExporterNone:
		return noop, nil
	case ExporterStdout, ExporterOTLP:
	default:
		return noop, fmt.Errorf("unknown telemetry exporter %q", cfg.Exporter)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			attribute.String("service.name", cfg.ServiceName),
			attribute.String("service.version", cfg.ServiceVersion),
		),
	)
	if err != nil {
		return noop, fmt.Errorf("failed to build telemetry resource: %w", err)
	}

	spanExporter, metricExporter, err := newExporters(ctx, cfg)
	if err != nil {
		return noop, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(spanExporter),
		sdktrace.WithResource(res),
	)
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter)),
		sdkmetric.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	otel.SetMeterProvider(mp)

	return func(ctx context.Context) error {
		return errors.Join(tp.Shutdown(ctx), mp.Shutdown(ctx))
	}, nil
}

func newExporters(ctx context.Context, cfg Config) (sdktrace.SpanExporter, sdkmetric.Exporter, error) {
	if cfg.Exporter == ExporterStdout {
		w := cfg.Writer
		if w == nil {
			w = os.Stdout
		}
		spans, err := stdouttrace.New(stdouttrace.WithWriter(w))
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create stdout trace exporter: %w", err)
		}
		metrics, err := stdoutmetric.New(stdoutmetric.WithWriter(w))
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create stdout metric exporter: %w", err)
		}
		return spans, metrics, nil
	}

	switch cfg.Protocol {
	case "", ProtocolHTTP:
		return newOTLPHTTP(ctx, cfg.Endpoint)
	case ProtocolGRPC:
		return newOTLPGRPC(ctx, cfg.Endpoint)
	default:
		return nil, nil, fmt.Errorf("unknown OTLP protocol %q", cfg.Protocol)
	}
}

func newOTLPHTTP(ctx context.Context, endpoint string) (sdktrace.SpanExporter, sdkmetric.Exporter, error) {
	traceOpts := []otlptracehttp.Option{otlptracehttp.WithInsecure()}
	metricOpts := []otlpmetrichttp.Option{otlpmetrichttp.WithInsecure()}
	if endpoint != "" {
		traceOpts = append(traceOpts, otlptracehttp.WithEndpoint(endpoint))
		metricOpts = append(metricOpts, otlpmetrichttp.WithEndpoint(endpoint))
	}

	spans, err := otlptracehttp.New(ctx, traceOpts...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create OTLP/HTTP trace exporter: %w", err)
	}
	metrics, err := otlpmetrichttp.New(ctx, metricOpts...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create OTLP/HTTP metric exporter: %w", err)
	}
	return spans, metrics, nil
}

func newOTLPGRPC(ctx context.Context, endpoint string) (sdktrace.SpanExporter, sdkmetric.Exporter, error) {
	traceOpts := []otlptracegrpc.Option{otlptracegrpc.WithInsecure()}
	metricOpts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
	if endpoint != "" {
		traceOpts = append(traceOpts, otlptracegrpc.WithEndpoint(endpoint))
		metricOpts = append(metricOpts, otlpmetricgrpc.WithEndpoint(endpoint))
	}

	spans, err := otlptracegrpc.New(ctx, traceOpts...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create OTLP/gRPC trace exporter: %w", err)
	}
	metrics, err := otlpmetricgrpc.New(ctx, metricOpts...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create OTLP/gRPC metric exporter: %w", err)
	}
	return spans, metrics, nil
}

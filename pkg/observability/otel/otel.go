// Package otel wires up an OpenTelemetry tracer provider for the module.
// The cluster bridge records producer/consumer spans through the global
// provider; without Init those spans are no-ops.
package otel

import (
	"context"
	"fmt"
	"io"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Config configures tracing initialization.
type Config struct {
	// ServiceName identifies this process in exported spans.
	// Default: "signal".
	ServiceName string

	// Writer receives exported spans. Default: os.Stdout.
	Writer io.Writer

	// PrettyPrint formats exported spans for human reading.
	PrettyPrint bool
}

// Init installs a tracer provider exporting to stdout and registers the W3C
// trace-context propagator. The returned shutdown function flushes pending
// spans; call it before exit.
func Init(ctx context.Context, cfg Config) (func(context.Context) error, error) {
	if cfg.ServiceName == "" {
		cfg.ServiceName = "signal"
	}

	var expOpts []stdouttrace.Option
	if cfg.Writer != nil {
		expOpts = append(expOpts, stdouttrace.WithWriter(cfg.Writer))
	}
	if cfg.PrettyPrint {
		expOpts = append(expOpts, stdouttrace.WithPrettyPrint())
	}
	exporter, err := stdouttrace.New(expOpts...)
	if err != nil {
		return nil, fmt.Errorf("create stdout exporter: %w", err)
	}

	res := resource.NewSchemaless(
		attribute.String("service.name", cfg.ServiceName),
	)

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return tp.Shutdown, nil
}

// Package observability configures OpenTelemetry tracing for the server.
package observability

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/dmitrijs2005/biokeeper/internal/logging"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

type TracingConfig struct {
	Enabled     bool
	ServiceName string
	// Writer receives exported spans; nil means stdout.
	Writer io.Writer
}

// InitTracing installs a global tracer provider exporting spans through
// stdouttrace. With tracing disabled it is a no-op and the returned
// shutdown does nothing.
func InitTracing(ctx context.Context, log logging.Logger, cfg TracingConfig) (func(context.Context) error, error) {
	noop := func(context.Context) error { return nil }
	if !cfg.Enabled {
		return noop, nil
	}
	if log == nil {
		log = logging.Nop{}
	}

	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "biokeeper"
	}

	opts := []stdouttrace.Option{}
	if cfg.Writer != nil {
		opts = append(opts, stdouttrace.WithWriter(cfg.Writer))
	}
	exporter, err := stdouttrace.New(opts...)
	if err != nil {
		return noop, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter, sdktrace.WithBatchTimeout(5*time.Second)),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.AlwaysSample())),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	log.Info(ctx, "otel tracing initialized", "service", name, "exporter", "stdout")
	return tp.Shutdown, nil
}

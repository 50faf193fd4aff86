package container

import (
	"context"
	"fmt"
	"time"

	"github.com/samber/do"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.37.0"
	"go.uber.org/zap"
)

const tracingFlushTimeout = 5 * time.Second

// Tracing owns the global tracer provider.
type Tracing struct {
	provider *sdktrace.TracerProvider
}

// NewTracing installs an SDK tracer provider and W3C trace context
// propagation globally. Spans are batched to exporter; a nil exporter keeps
// spans in-process only.
func NewTracing(serviceName string, exporter sdktrace.SpanExporter) *Tracing {
	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(resource.NewWithAttributes(semconv.SchemaURL, semconv.ServiceName(serviceName))),
	}

	if exporter != nil {
		opts = append(opts, sdktrace.WithBatcher(exporter))
	}

	tp := sdktrace.NewTracerProvider(opts...)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return &Tracing{provider: tp}
}

// Flush exports every span ended so far.
func (t *Tracing) Flush(ctx context.Context) error {
	return t.provider.ForceFlush(ctx)
}

// Shutdown flushes and stops the provider.
func (t *Tracing) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), tracingFlushTimeout)
	defer cancel()

	return t.provider.Shutdown(ctx)
}

// TracingPackage provides Tracing, exporting over OTLP/gRPC when enabled.
func TracingPackage(i *do.Injector) {
	do.Provide(i, func(i *do.Injector) (*Tracing, error) {
		opts := do.MustInvoke[*Options](i)
		logger := do.MustInvoke[*zap.Logger](i)

		if !opts.TracingEnabled {
			logger.Info("trace export disabled")

			return NewTracing(opts.ServiceName, nil), nil
		}

		ctx, cancel := context.WithTimeout(context.Background(), tracingFlushTimeout)
		defer cancel()

		exporter, err := otlptracegrpc.New(ctx,
			otlptracegrpc.WithEndpoint(opts.OTLPEndpoint),
			otlptracegrpc.WithInsecure(),
		)
		if err != nil {
			return nil, fmt.Errorf("otlp trace exporter: %w", err)
		}

		logger.Info("exporting traces", zap.String("endpoint", opts.OTLPEndpoint))

		return NewTracing(opts.ServiceName, exporter), nil
	})
}

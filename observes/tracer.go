package observes

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
)

type TracerOption struct {
	URL                string
	Name               string
	Version            string
	Environment        string
	SamplingRate       float64
	BatchTimeout       time.Duration
	ExportTimeout      time.Duration
	MaxExportBatchSize int
}

// NewTracer installs a global OTLP gRPC tracer provider and returns a
// shutdown func.
func NewTracer(opt *TracerOption) (func(context.Context) error, error) {
	if opt == nil || opt.URL == "" {
		return func(context.Context) error { return nil }, nil
	}

	exp, err := otlptracegrpc.New(
		context.Background(),
		otlptracegrpc.WithEndpoint(opt.URL),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create exporter: %w", err)
	}

	res, err := resource.New(
		context.Background(),
		resource.WithAttributes(
			semconv.ServiceNameKey.String(opt.Name),
			attribute.String("version", opt.Version),
			attribute.String("environment", opt.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(opt.SamplingRate))),
		sdktrace.WithBatcher(exp,
			sdktrace.WithMaxExportBatchSize(opt.MaxExportBatchSize),
			sdktrace.WithBatchTimeout(opt.BatchTimeout),
			sdktrace.WithExportTimeout(opt.ExportTimeout),
		),
		sdktrace.WithResource(res),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))
	return tp.Shutdown, nil
}

package observability

import (
	"context"
	"fmt"

	"github.com/ecclesiahq/ecclesia/internal/config"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const tracerName = "github.com/ecclesiahq/ecclesia"

// Tracer returns the package-wide tracer. Without an exporter configured the
// global provider is a no-op.
func Tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

func newExporter(ctx context.Context, cfg config.TelemetryConfig) (sdktrace.SpanExporter, error) {
	switch cfg.OTLPProtocol {
	case "grpc":
		return otlptracegrpc.New(ctx,
			otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint),
			otlptracegrpc.WithInsecure(),
		)
	case "http", "":
		return otlptracehttp.New(ctx,
			otlptracehttp.WithEndpoint(cfg.OTLPEndpoint),
			otlptracehttp.WithInsecure(),
		)
	default:
		return nil, fmt.Errorf("unsupported otlp protocol %q", cfg.OTLPProtocol)
	}
}

// RegisterTracing installs the global tracer provider when an OTLP endpoint
// is configured and flushes it on shutdown.
func RegisterTracing(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) error {
	if cfg.Telemetry.OTLPEndpoint == "" {
		return nil
	}

	exporter, err := newExporter(context.Background(), cfg.Telemetry)
	if err != nil {
		return err
	}

	res := resource.NewSchemaless(
		attribute.String("service.name", "ecclesia"),
		attribute.String("service.version", cfg.AppVersion),
		attribute.String("deployment.environment", cfg.AppEnv),
	)
	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(provider)

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return provider.Shutdown(ctx)
		},
	})
	log.Info("tracing enabled",
		zap.String("endpoint", cfg.Telemetry.OTLPEndpoint),
		zap.String("protocol", cfg.Telemetry.OTLPProtocol),
	)
	return nil
}

package observability

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	stdouttrace "go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	sdkresource "go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.uber.org/zap"

	"github.com/cuckooeats/backoffice/internal/config"
)

const (
	serviceVersion  = "0.1.0"
	shutdownTimeout = 10 * time.Second
)

// Tracing owns the process tracer provider. When tracing is disabled the
// global no-op provider stays in place and every span is free.
type Tracing struct {
	provider *sdktrace.TracerProvider
	logger   *zap.Logger
}

func NewTracing(cfg config.Observability, logger *zap.Logger) (*Tracing, error) {
	t := &Tracing{logger: logger}
	if !cfg.EnableTracing {
		return t, nil
	}

	resource, err := sdkresource.New(context.Background(),
		sdkresource.WithFromEnv(),
		sdkresource.WithHost(),
		sdkresource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(serviceVersion),
		),
	)
	if err != nil {
		return nil, err
	}

	exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, err
	}

	t.provider = sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resource),
	)
	return t, nil
}

func (t *Tracing) Enabled() bool { return t.provider != nil }

// Install makes the provider global.
func (t *Tracing) Install() {
	if t.provider == nil {
		return
	}
	otel.SetTracerProvider(t.provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	t.logger.Info("tracing enabled", zap.String("exporter", "stdout"))
}

func (t *Tracing) Shutdown(ctx context.Context) error {
	if t.provider == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	var err error
	err = errors.Join(err, t.provider.ForceFlush(ctx))
	err = errors.Join(err, t.provider.Shutdown(ctx))
	return err
}

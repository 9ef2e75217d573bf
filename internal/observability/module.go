package observability

import (
	"context"

	"github.com/smallbiznis/blockbill/internal/config"
	"github.com/smallbiznis/blockbill/internal/observability/logger"
	"github.com/smallbiznis/blockbill/internal/observability/metrics"
	"github.com/smallbiznis/blockbill/internal/observability/tracing"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("observability",
	fx.Provide(newLogger),
	fx.Provide(newMetricsConfig),
	fx.Provide(newMeterProvider),
	fx.Provide(metrics.NewHTTPMetrics),
	fx.Provide(newPaymentMetrics),
	fx.Invoke(initTracing),
)

func newLogger(cfg config.Config) (*zap.Logger, error) {
	return logger.New(cfg.ServiceName, cfg.Environment)
}

func newMetricsConfig(cfg config.Config) metrics.Config {
	return metrics.Config{
		ServiceName: cfg.ServiceName,
		Environment: cfg.Environment,
	}
}

func newMeterProvider(lc fx.Lifecycle) metric.MeterProvider {
	provider := sdkmetric.NewMeterProvider()
	otel.SetMeterProvider(provider)
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return provider.Shutdown(ctx)
		},
	})
	return provider
}

func newPaymentMetrics(cfg metrics.Config) *metrics.PaymentMetrics {
	return metrics.PaymentWithConfig(cfg)
}

func initTracing(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) error {
	_, err := tracing.NewProvider(lc, tracing.Config{
		Enabled:          cfg.Tracing.Enabled,
		ServiceName:      cfg.ServiceName,
		ServiceVersion:   cfg.ServiceVersion,
		Environment:      cfg.Environment,
		ExporterEndpoint: cfg.Tracing.ExporterEndpoint,
		ExporterProtocol: cfg.Tracing.ExporterProtocol,
		SamplingRatio:    cfg.Tracing.SamplingRatio,
	}, log)
	return err
}

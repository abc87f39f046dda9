package otel

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutlog"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/tramsim/consist/internal/config"
)

// Provider manages OpenTelemetry providers for logs and metrics.
type Provider struct {
	logProvider   *sdklog.LoggerProvider
	meterProvider *sdkmetric.MeterProvider
	reader        *sdkmetric.ManualReader
	config        config.OTelConfig
}

// New creates a new OTel provider. Logs are written to logWriter and, if an
// endpoint is set, exported over OTLP. Metrics are kept in-process and read
// with Collect. A disabled config yields a no-op provider.
func New(cfg config.OTelConfig, logWriter io.Writer) (*Provider, error) {
	p := &Provider{config: cfg}
	if !cfg.Enabled {
		return p, nil
	}

	ctx := context.Background()
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	var processors []sdklog.Processor

	if logWriter != nil {
		fileExporter, err := stdoutlog.New(
			stdoutlog.WithWriter(logWriter),
			stdoutlog.WithPrettyPrint(),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create file log exporter: %w", err)
		}
		processors = append(processors, sdklog.NewBatchProcessor(fileExporter,
			sdklog.WithExportTimeout(cfg.BatchTimeout),
		))
	}

	if cfg.Endpoint != "" {
		otlpOpts := []otlploghttp.Option{
			otlploghttp.WithEndpoint(cfg.Endpoint),
		}
		if cfg.Insecure {
			otlpOpts = append(otlpOpts, otlploghttp.WithInsecure())
		}

		otlpExporter, err := otlploghttp.New(ctx, otlpOpts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create OTLP log exporter: %w", err)
		}
		processors = append(processors, sdklog.NewBatchProcessor(otlpExporter,
			sdklog.WithExportTimeout(cfg.BatchTimeout),
		))
	}

	if len(processors) == 0 {
		return nil, fmt.Errorf("OTel enabled but no log writer or endpoint configured")
	}

	opts := []sdklog.LoggerProviderOption{
		sdklog.WithResource(res),
	}
	for _, proc := range processors {
		opts = append(opts, sdklog.WithProcessor(proc))
	}
	p.logProvider = sdklog.NewLoggerProvider(opts...)

	p.reader = sdkmetric.NewManualReader()
	p.meterProvider = sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(p.reader),
	)
	otel.SetMeterProvider(p.meterProvider)

	return p, nil
}

// LoggerProvider returns the log provider for use with otelslog bridge.
// Returns nil if OTel is not enabled.
func (p *Provider) LoggerProvider() *sdklog.LoggerProvider {
	return p.logProvider
}

// Meter returns a named meter, or a no-op meter when disabled.
func (p *Provider) Meter(name string) metric.Meter {
	if p.meterProvider == nil {
		return noop.Meter{}
	}
	return p.meterProvider.Meter(name)
}

// Collect reads the current metric values.
func (p *Provider) Collect(ctx context.Context) (metricdata.ResourceMetrics, error) {
	var rm metricdata.ResourceMetrics
	if p.reader == nil {
		return rm, nil
	}
	err := p.reader.Collect(ctx, &rm)
	return rm, err
}

// Flush forces a flush of all pending logs.
func (p *Provider) Flush(ctx context.Context) error {
	if !p.config.Enabled {
		return nil
	}

	if p.logProvider != nil {
		if err := p.logProvider.ForceFlush(ctx); err != nil {
			return fmt.Errorf("log flush failed: %w", err)
		}
	}

	return nil
}

// Shutdown shuts down all providers. Call it once on exit.
func (p *Provider) Shutdown(ctx context.Context) error {
	if !p.config.Enabled {
		return nil
	}

	var errs []error
	if p.logProvider != nil {
		if err := p.logProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("log shutdown failed: %w", err))
		}
	}
	if p.meterProvider != nil {
		if err := p.meterProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("meter shutdown failed: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Enabled returns whether OTel is enabled
func (p *Provider) Enabled() bool {
	return p.config.Enabled
}

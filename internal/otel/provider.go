// Package otel sets up the OpenTelemetry log pipeline used by the slog
// bridge. Metrics go through the global meter provider.
package otel

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutlog"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/OCAP2/trajectory-animator/internal/config"
)

// ErrNoSink is returned when OTel is enabled with neither a log writer nor
// an OTLP endpoint.
var ErrNoSink = errors.New("OTel enabled but no log writer or endpoint configured")

// Config holds OTel configuration
type Config struct {
	Enabled      bool
	ServiceName  string
	BatchTimeout time.Duration
	// LogWriter receives pretty-printed log records, usually the session
	// log file.
	LogWriter io.Writer
	// Endpoint is an optional OTLP/HTTP collector.
	Endpoint string
	Insecure bool
}

// FromConfig builds a Config from the loaded settings. w receives the
// file-exported log records.
func FromConfig(c config.OTelConfig, w io.Writer) Config {
	return Config{
		Enabled:      c.Enabled,
		ServiceName:  c.ServiceName,
		BatchTimeout: c.BatchTimeout,
		LogWriter:    w,
		Endpoint:     c.Endpoint,
		Insecure:     c.Insecure,
	}
}

// Provider owns the log provider of one CLI session. A nil or disabled
// Provider is valid and does nothing.
type Provider struct {
	logProvider *sdklog.LoggerProvider
	resource    *resource.Resource
	config      Config
}

// New creates the provider. When cfg is disabled nothing is exported.
func New(ctx context.Context, cfg Config) (*Provider, error) {
	p := &Provider{config: cfg}
	if !cfg.Enabled {
		return p, nil
	}

	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceName(cfg.ServiceName)))
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}
	p.resource = res

	processors, err := newProcessors(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if len(processors) == 0 {
		return nil, ErrNoSink
	}

	opts := []sdklog.LoggerProviderOption{sdklog.WithResource(res)}
	for _, proc := range processors {
		opts = append(opts, sdklog.WithProcessor(proc))
	}
	p.logProvider = sdklog.NewLoggerProvider(opts...)
	return p, nil
}

// newProcessors builds one batch processor per configured sink.
func newProcessors(ctx context.Context, cfg Config) ([]sdklog.Processor, error) {
	var exporters []sdklog.Exporter

	if cfg.LogWriter != nil {
		exp, err := stdoutlog.New(stdoutlog.WithWriter(cfg.LogWriter), stdoutlog.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("failed to create file log exporter: %w", err)
		}
		exporters = append(exporters, exp)
	}

	if cfg.Endpoint != "" {
		opts := []otlploghttp.Option{otlploghttp.WithEndpoint(cfg.Endpoint)}
		if cfg.Insecure {
			opts = append(opts, otlploghttp.WithInsecure())
		}
		exp, err := otlploghttp.New(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create OTLP log exporter: %w", err)
		}
		exporters = append(exporters, exp)
	}

	processors := make([]sdklog.Processor, len(exporters))
	for i, exp := range exporters {
		processors[i] = sdklog.NewBatchProcessor(exp, sdklog.WithExportTimeout(cfg.BatchTimeout))
	}
	return processors, nil
}

// LoggerProvider returns the log provider for the otelslog bridge, nil when
// disabled.
func (p *Provider) LoggerProvider() *sdklog.LoggerProvider {
	if p == nil {
		return nil
	}
	return p.logProvider
}

// Resource describes this process, nil when disabled.
func (p *Provider) Resource() *resource.Resource {
	if p == nil {
		return nil
	}
	return p.resource
}

// Enabled reports whether records are exported.
func (p *Provider) Enabled() bool {
	return p != nil && p.logProvider != nil
}

// Flush exports pending records. Called after each render.
func (p *Provider) Flush(ctx context.Context) error {
	if !p.Enabled() {
		return nil
	}
	if err := p.logProvider.ForceFlush(ctx); err != nil {
		return fmt.Errorf("log flush failed: %w", err)
	}
	return nil
}

// Shutdown flushes and stops the exporters.
func (p *Provider) Shutdown(ctx context.Context) error {
	if !p.Enabled() {
		return nil
	}
	if err := p.logProvider.Shutdown(ctx); err != nil {
		return fmt.Errorf("log shutdown failed: %w", err)
	}
	return nil
}

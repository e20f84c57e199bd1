// Package tracing sets up OpenTelemetry spans for transcription runs. Spans
// are written as JSON lines to a local file; when tracing is disabled the
// global no-op provider is left in place.
package tracing

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.27.0"
	"go.opentelemetry.io/otel/trace"
)

// InstrumentationName names the podscribe tracer.
const InstrumentationName = "podscribe"

// Options configures Setup.
type Options struct {
	Enabled     bool
	Path        string
	ServiceName string
	Version     string
}

// Provider owns the exporter and its output file.
type Provider struct {
	tp   *sdktrace.TracerProvider
	file *os.File
}

// Setup installs a tracer provider. A disabled configuration returns a
// Provider whose Shutdown does nothing.
func Setup(ctx context.Context, opts Options, logger *slog.Logger) (*Provider, error) {
	if !opts.Enabled {
		return &Provider{}, nil
	}
	path := strings.TrimSpace(opts.Path)
	if path == "" {
		return nil, fmt.Errorf("tracing enabled without a trace path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure trace dir: %w", err)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open trace file: %w", err)
	}
	exporter, err := stdouttrace.New(stdouttrace.WithWriter(file))
	if err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("create trace exporter: %w", err)
	}

	serviceName := strings.TrimSpace(opts.ServiceName)
	if serviceName == "" {
		serviceName = InstrumentationName
	}
	res, err := resource.New(ctx, resource.WithAttributes(
		semconv.ServiceNameKey.String(serviceName),
		semconv.ServiceVersionKey.String(strings.TrimSpace(opts.Version)),
	))
	if err != nil && logger != nil {
		logger.Warn("trace resource init failed (continuing)", slog.String("error", err.Error()))
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	if logger != nil {
		logger.Debug("tracing enabled", slog.String("path", path), slog.String("service", serviceName))
	}
	return &Provider{tp: tp, file: file}, nil
}

// Shutdown flushes pending spans and closes the trace file.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p == nil || p.tp == nil {
		return nil
	}
	err := p.tp.Shutdown(ctx)
	if closeErr := p.file.Close(); err == nil {
		err = closeErr
	}
	return err
}

// Tracer returns the podscribe tracer from the global provider.
func Tracer() trace.Tracer {
	return otel.Tracer(InstrumentationName)
}

// Start opens a span with string attributes given as key/value pairs.
func Start(ctx context.Context, name string, kv ...string) (context.Context, trace.Span) {
	attrs := make([]attribute.KeyValue, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		attrs = append(attrs, attribute.String(kv[i], kv[i+1]))
	}
	return Tracer().Start(ctx, name, trace.WithAttributes(attrs...))
}

// End records err on span, if any, and ends it.
func End(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

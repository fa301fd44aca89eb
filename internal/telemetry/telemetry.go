// ABOUTME: OpenTelemetry tracing setup with an OTLP gRPC exporter.
// ABOUTME: Falls back to a no-op tracer when no collector endpoint is configured.

package telemetry

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"google.golang.org/grpc/credentials"
)

// Config holds configuration for trace export
type Config struct {
	ServiceName    string
	ServiceVersion string
	Endpoint       string
	Headers        string // comma separated key=value pairs
}

// Provider owns the tracer and the exporter lifecycle
type Provider struct {
	tracer trace.Tracer
	tp     *sdktrace.TracerProvider
}

// Init builds a Provider. An empty endpoint yields a no-op tracer.
func Init(ctx context.Context, config Config, logger *logrus.Logger) (*Provider, error) {
	endpoint := strings.TrimRight(config.Endpoint, "/")
	if endpoint == "" {
		logger.Debug("OTEL_EXPORTER_OTLP_ENDPOINT is not set, traces will not be exported")
		return &Provider{tracer: noop.NewTracerProvider().Tracer(config.ServiceName)}, nil
	}

	opts := []otlptracegrpc.Option{
		otlptracegrpc.WithTimeout(5 * time.Second),
	}
	opts = append(opts, endpointOptions(endpoint)...)
	if headers := ParseHeaders(config.Headers); len(headers) > 0 {
		opts = append(opts, otlptracegrpc.WithHeaders(headers))
	}

	exporter, err := otlptracegrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP trace exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(config.ServiceName),
			semconv.ServiceVersionKey.String(config.ServiceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	logger.WithField("endpoint", endpoint).Info("OpenTelemetry tracer initialized")
	return &Provider{tracer: tp.Tracer(config.ServiceName), tp: tp}, nil
}

// NewProvider wraps an existing SDK tracer provider
func NewProvider(tp *sdktrace.TracerProvider, name string) *Provider {
	return &Provider{tracer: tp.Tracer(name), tp: tp}
}

// Tracer returns the tracer spans are started from
func (p *Provider) Tracer() trace.Tracer {
	return p.tracer
}

// Shutdown flushes pending spans
func (p *Provider) Shutdown(ctx context.Context) error {
	if p == nil || p.tp == nil {
		return nil
	}
	return p.tp.Shutdown(ctx)
}

// endpointOptions maps a URL-ish endpoint to gRPC dial options.
// Schemeless endpoints are treated as TLS host:port.
func endpointOptions(endpoint string) []otlptracegrpc.Option {
	switch {
	case strings.HasPrefix(endpoint, "http://"):
		endpoint = withDefaultPort(strings.TrimPrefix(endpoint, "http://"), "80")
		return []otlptracegrpc.Option{
			otlptracegrpc.WithEndpoint(endpoint),
			otlptracegrpc.WithInsecure(),
		}
	case strings.HasPrefix(endpoint, "https://"):
		endpoint = withDefaultPort(strings.TrimPrefix(endpoint, "https://"), "443")
	}
	return []otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithTLSCredentials(credentials.NewClientTLSFromCert(nil, "")),
	}
}

func withDefaultPort(host, port string) string {
	if strings.Contains(host, ":") {
		return host
	}
	return host + ":" + port
}

// ParseHeaders parses an OTEL_EXPORTER_OTLP_HEADERS value. Keys are lowercased
// and entries with invalid keys are skipped.
func ParseHeaders(raw string) map[string]string {
	headers := make(map[string]string)
	for _, part := range strings.Split(raw, ",") {
		key, value, ok := strings.Cut(part, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(strings.ToLower(key))
		if key == "" || !isValidHeaderKey(key) {
			continue
		}
		headers[key] = strings.TrimSpace(value)
	}
	return headers
}

func isValidHeaderKey(key string) bool {
	for _, c := range key {
		if !((c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') || c == '-' || c == '_' || c == '.') {
			return false
		}
	}
	return true
}

// RecordError marks the span failed when err is non-nil
func RecordError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// ABOUTME: Tracing decorators for the scan and writing-assistant collaborators.
// ABOUTME: Each call becomes a span carrying input size and result attributes.

package telemetry

import (
	"context"

	"github.com/jfeddern/OpsDeck/internal/providers"
	"github.com/jfeddern/OpsDeck/internal/types"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type tracedScanner struct {
	inner  providers.Scanner
	tracer trace.Tracer
}

// TraceScanner wraps a Scanner so every scan is recorded as a span
func TraceScanner(inner providers.Scanner, tracer trace.Tracer) providers.Scanner {
	return &tracedScanner{inner: inner, tracer: tracer}
}

func (t *tracedScanner) Name() string {
	return t.inner.Name()
}

func (t *tracedScanner) Scan(ctx context.Context, code string) ([]types.Finding, error) {
	ctx, span := t.tracer.Start(ctx, "scanner.scan", trace.WithAttributes(
		attribute.String("provider", t.inner.Name()),
		attribute.Int("code.bytes", len(code)),
	))
	defer span.End()

	findings, err := t.inner.Scan(ctx, code)
	if err != nil {
		RecordError(span, err)
		return nil, err
	}

	span.SetAttributes(attribute.Int("findings", len(findings)))
	return findings, nil
}

type tracedAssistant struct {
	inner  providers.Assistant
	tracer trace.Tracer
}

// TraceAssistant wraps an Assistant so every rewrite is recorded as a span
func TraceAssistant(inner providers.Assistant, tracer trace.Tracer) providers.Assistant {
	return &tracedAssistant{inner: inner, tracer: tracer}
}

func (t *tracedAssistant) Name() string {
	return t.inner.Name()
}

func (t *tracedAssistant) Improve(ctx context.Context, text string) (string, error) {
	ctx, span := t.tracer.Start(ctx, "assistant.improve", trace.WithAttributes(
		attribute.String("provider", t.inner.Name()),
		attribute.Int("text.bytes", len(text)),
	))
	defer span.End()

	out, err := t.inner.Improve(ctx, text)
	if err != nil {
		RecordError(span, err)
		return "", err
	}
	return out, nil
}

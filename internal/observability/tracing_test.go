package observability

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func TestInitTracingDisabled(t *testing.T) {
	shutdown, err := InitTracing(context.Background(), DefaultTracingConfig(), testLogger())
	if err != nil {
		t.Fatal(err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("noop shutdown: %v", err)
	}

	_, span := otel.Tracer("test").Start(context.Background(), "noop")
	if span.SpanContext().IsValid() {
		t.Error("disabled tracing should produce invalid span contexts")
	}
	span.End()
}

func TestInitTracingStdout(t *testing.T) {
	var buf bytes.Buffer
	cfg := DefaultTracingConfig()
	cfg.Enabled = true
	cfg.Writer = &buf

	shutdown, err := InitTracing(context.Background(), cfg, testLogger())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		InitTracing(context.Background(), DefaultTracingConfig(), testLogger())
	})

	_, span := otel.Tracer("test").Start(context.Background(), "propagate-test-span")
	if !span.SpanContext().IsValid() {
		t.Error("expected a valid span context with tracing enabled")
	}
	span.End()

	ShutdownWithTimeout(context.Background(), shutdown, testLogger())

	if !strings.Contains(buf.String(), "propagate-test-span") {
		t.Errorf("exported spans missing test span: %q", buf.String())
	}
}

func TestInitTracingRejectsBadConfig(t *testing.T) {
	cfg := DefaultTracingConfig()
	cfg.Enabled = true

	cfg.Exporter = "zipkin"
	if _, err := InitTracing(context.Background(), cfg, testLogger()); err == nil {
		t.Error("expected error for unsupported exporter")
	}

	cfg.Exporter = "stdout"
	cfg.SampleRatio = 2
	if _, err := InitTracing(context.Background(), cfg, testLogger()); err == nil {
		t.Error("expected error for sample ratio > 1")
	}
}

func TestShutdownWithTimeoutNil(t *testing.T) {
	ShutdownWithTimeout(context.Background(), nil, testLogger())
}

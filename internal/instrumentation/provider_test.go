package instrumentation

import (
	"context"
	"testing"
	"time"
)

func TestNewProvider_Disabled(t *testing.T) {
	provider, err := NewProvider(context.Background(), Config{ServiceName: "test", Enabled: false})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if provider.Enabled() {
		t.Error("expected provider to be disabled")
	}
	if provider.Metrics() != nil {
		t.Error("disabled provider should not hand out a recorder")
	}
	if provider.UsesPrometheus() {
		t.Error("disabled provider should not expose prometheus")
	}
	if err := provider.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}
}

func TestNewProvider_Prometheus(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	provider, err := NewProvider(ctx, Config{
		ServiceName:     "test",
		ServiceVersion:  "1.0.0",
		Enabled:         true,
		MetricsExporter: ExporterPrometheus,
		TracingExporter: ExporterNone,
	})
	if err != nil {
		t.Fatalf("NewProvider() error = %v", err)
	}
	defer func() { _ = provider.Shutdown(ctx) }()

	if !provider.Enabled() || !provider.UsesPrometheus() {
		t.Error("expected enabled prometheus provider")
	}
	if provider.Metrics() == nil {
		t.Fatal("expected metrics recorder")
	}
	if provider.Tracer("test") == nil {
		t.Error("expected tracer")
	}

	provider.Metrics().RecordBatchItem(ctx, ItemCreated)
}

func TestNewProvider_InvalidConfig(t *testing.T) {
	_, err := NewProvider(context.Background(), Config{
		Enabled:         true,
		MetricsExporter: ExporterOTLP,
	})
	if err == nil {
		t.Fatal("expected error for OTLP without endpoint")
	}
}

func TestProvider_TracerWhenDisabled(t *testing.T) {
	provider, _ := NewProvider(context.Background(), Config{})
	_, span := provider.Tracer("x").Start(context.Background(), "noop")
	defer span.End()
	if span.SpanContext().IsValid() {
		t.Error("disabled provider should return a no-op tracer")
	}
}

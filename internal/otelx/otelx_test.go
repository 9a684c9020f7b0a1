package otelx

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestInitDisabled(t *testing.T) {
	shutdown, err := Init(context.Background(), Options{Enabled: false})
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	if shutdown == nil {
		t.Fatal("shutdown func is nil")
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	// safe to call again
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("second shutdown: %v", err)
	}
}

func TestInitDisabledInstallsSDKProvider(t *testing.T) {
	_, _ = Init(context.Background(), Options{Enabled: false})

	tp := otel.GetTracerProvider()
	if _, ok := tp.(*sdktrace.TracerProvider); !ok {
		t.Fatalf("TracerProvider type = %T, want *sdktrace.TracerProvider", tp)
	}
}

func TestInitDisabledPropagatorFields(t *testing.T) {
	_, _ = Init(context.Background(), Options{Enabled: false})

	fields := map[string]bool{}
	for _, f := range otel.GetTextMapPropagator().Fields() {
		fields[f] = true
	}
	if !fields["traceparent"] || !fields["baggage"] {
		t.Fatalf("propagator fields = %v, want traceparent and baggage", fields)
	}
}

func TestInitDisabledSpansAreUsable(t *testing.T) {
	_, _ = Init(context.Background(), Options{Enabled: false})

	ctx, span := otel.Tracer("test").Start(context.Background(), "span")
	if ctx == nil || span == nil {
		t.Fatal("expected usable span")
	}
	span.SetName("renamed")
	span.End()
}

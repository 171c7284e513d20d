package otel_test

import (
	"context"
	"testing"

	"github.com/louisbranch/navheader/internal/platform/otel"
)

func TestSetupNoopWhenEndpointEmpty(t *testing.T) {
	t.Setenv("NAVHEADER_OTEL_ENDPOINT", "")
	t.Setenv("NAVHEADER_OTEL_ENABLED", "")

	shutdown, err := otel.Setup(context.Background(), "navheader-test")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown error: %v", err)
	}
}

func TestSetupNoopWhenExplicitlyDisabled(t *testing.T) {
	t.Setenv("NAVHEADER_OTEL_ENDPOINT", "http://localhost:4318")
	t.Setenv("NAVHEADER_OTEL_ENABLED", "false")

	shutdown, err := otel.Setup(context.Background(), "navheader-test")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown error: %v", err)
	}
}

func TestSetupCreatesProviderWhenEndpointSet(t *testing.T) {
	// Non-routable address so no export actually happens.
	t.Setenv("NAVHEADER_OTEL_ENDPOINT", "http://192.0.2.1:4318")
	t.Setenv("NAVHEADER_OTEL_ENABLED", "")

	shutdown, err := otel.Setup(context.Background(), "navheader-test")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown error: %v", err)
	}
}

func TestTracerStartsSpan(t *testing.T) {
	t.Parallel()

	_, span := otel.Tracer("navheader-test").Start(context.Background(), "probe")
	defer span.End()
	if span == nil {
		t.Fatal("expected span")
	}
}

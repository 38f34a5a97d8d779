// SPDX-License-Identifier: MIT

package telemetry

import (
	"context"
	"testing"
)

func TestNewProviderDisabled(t *testing.T) {
	p, err := NewProvider(context.Background(), Config{Enabled: false})
	if err != nil {
		t.Fatalf("NewProvider: %v", err)
	}
	if err := p.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown of noop provider: %v", err)
	}
}

func TestNewProviderRejectsUnknownExporter(t *testing.T) {
	_, err := NewProvider(context.Background(), Config{
		Enabled:      true,
		ServiceName:  "minipress",
		ExporterType: "carrier-pigeon",
		Endpoint:     "localhost:4318",
	})
	if err == nil {
		t.Fatal("NewProvider with unknown exporter succeeded, want error")
	}
}

func TestTracerReturnsNamedTracer(t *testing.T) {
	if Tracer("test") == nil {
		t.Fatal("Tracer returned nil")
	}
}

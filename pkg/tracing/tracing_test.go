package tracing

import (
	"context"
	"testing"
)

func TestInitTracerWithoutEndpoint(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")

	ctx := context.Background()
	tp, tracer, err := InitTracer(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tp == nil || tracer == nil {
		t.Fatal("expected provider and tracer")
	}
	if err := tp.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown failed: %v", err)
	}
}

func TestParseEndpoint(t *testing.T) {
	cases := []struct {
		raw      string
		host     string
		insecure bool
	}{
		{raw: "http://localhost:4317", host: "localhost:4317", insecure: true},
		{raw: "https://collector.example.com:4317", host: "collector.example.com:4317", insecure: false},
		{raw: "localhost:4317", host: "localhost:4317", insecure: true},
	}
	for _, tc := range cases {
		host, insecure, err := parseEndpoint(tc.raw)
		if err != nil {
			t.Fatalf("parseEndpoint(%q) failed: %v", tc.raw, err)
		}
		if host != tc.host || insecure != tc.insecure {
			t.Fatalf("parseEndpoint(%q) = (%s, %v), expected (%s, %v)", tc.raw, host, insecure, tc.host, tc.insecure)
		}
	}
}

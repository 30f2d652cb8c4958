package telemetry

import (
	"context"
	"errors"
	"testing"
)

func TestSampleRatio(t *testing.T) {
	tests := []struct {
		in      string
		want    float64
		wantErr bool
	}{
		{"", 1, false},
		{"  ", 1, false},
		{"0", 0, false},
		{"0.25", 0.25, false},
		{"1", 1, false},
		{"1.5", 0, true},
		{"-0.1", 0, true},
		{"half", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := sampleRatio(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("sampleRatio(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("sampleRatio(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestInitTracingDisabledWithoutEndpoint(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	t.Setenv("TRACE_SAMPLE_RATIO", "not-a-number")
	shutdown, err := InitTracing("eve-market-bot", "test")
	if err != nil {
		t.Fatalf("InitTracing() error = %v", err)
	}
	shutdown()
}

func TestInitTracingRejectsBadRatio(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317")
	t.Setenv("TRACE_SAMPLE_RATIO", "2")
	if _, err := InitTracing("eve-market-bot", "test"); err == nil {
		t.Fatal("expected error for ratio outside [0,1]")
	}
}

func TestSpanHelpersWithoutProvider(t *testing.T) {
	ctx := WithCorrelation(context.Background(), "corr-1")
	ctx, span := StartSpan(ctx, "test", "op", CommandAttr("market"))
	defer span.End()
	if ctx == nil {
		t.Fatal("StartSpan returned nil context")
	}
	RecordError(span, errors.New("boom"))
	RecordError(span, nil)
	SetSpanSuccess(span)
	SetSpanHTTPStatus(span, 503)
}

package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsInitialized(t *testing.T) {
	Init()
	Init() // second call must not panic on duplicate registration

	if CommandsTotal == nil || ResolutionsTotal == nil || UpstreamRequests == nil {
		t.Fatal("counter vectors not initialized")
	}
	if UpstreamDuration == nil {
		t.Error("UpstreamDuration histogram not initialized")
	}
	if LimiterQueueDepth == nil || ChatConnected == nil {
		t.Error("gauges not initialized")
	}
}

func TestHelpersRecord(t *testing.T) {
	Init()

	before := testutil.ToFloat64(CommandsTotal.WithLabelValues("market", "ok"))
	IncCommand("market", "ok")
	if got := testutil.ToFloat64(CommandsTotal.WithLabelValues("market", "ok")); got != before+1 {
		t.Errorf("commands counter = %v, want %v", got, before+1)
	}

	IncUpstream("market_orders", 503)
	IncUpstream("market_orders", 0)
	if got := testutil.ToFloat64(UpstreamRequests.WithLabelValues("market_orders", "503")); got < 1 {
		t.Errorf("503 counter = %v, want >= 1", got)
	}
	if got := testutil.ToFloat64(UpstreamRequests.WithLabelValues("market_orders", "error")); got < 1 {
		t.Errorf("transport error counter = %v, want >= 1", got)
	}

	TimeFunc(UpstreamLatency("market_orders"), func() {})
	if n := testutil.CollectAndCount(UpstreamDuration); n < 1 {
		t.Errorf("upstream duration series = %d, want >= 1", n)
	}

	SetQueueDepth("api", 3)
	if got := testutil.ToFloat64(LimiterQueueDepth.WithLabelValues("api")); got != 3 {
		t.Errorf("queue depth = %v, want 3", got)
	}

	SetChatConnected(true)
	if got := testutil.ToFloat64(ChatConnected); got != 1 {
		t.Errorf("chat connected = %v, want 1", got)
	}
	SetChatConnected(false)
	if got := testutil.ToFloat64(ChatConnected); got != 0 {
		t.Errorf("chat connected = %v, want 0", got)
	}
}

func TestTimeFuncRecordsObservation(t *testing.T) {
	h := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "test_duration_seconds",
		Help:    "Test duration",
		Buckets: prometheus.DefBuckets,
	})

	executed := false
	d := TimeFunc(h, func() {
		time.Sleep(10 * time.Millisecond)
		executed = true
	})
	if !executed {
		t.Error("TimeFunc did not execute provided function")
	}
	if d < 10*time.Millisecond {
		t.Errorf("TimeFunc duration = %v, want >= 10ms", d)
	}
	if n := testutil.CollectAndCount(h); n != 1 {
		t.Errorf("collected %d metrics, want 1", n)
	}
}

func TestCorrelationRoundTrip(t *testing.T) {
	ctx := context.Background()
	if got := GetCorrelation(ctx); got != "" {
		t.Fatalf("empty context corr = %q", got)
	}
	ctx = WithCorrelation(ctx, "abc")
	if got := GetCorrelation(ctx); got != "abc" {
		t.Errorf("corr = %q, want abc", got)
	}
	if LoggerWithCorr(ctx) == nil {
		t.Error("LoggerWithCorr returned nil")
	}
}

package observability

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"gitlab.com/tinyland/lab/stat-pulse/collectors"
	"gitlab.com/tinyland/lab/stat-pulse/collectors/retry"
	"gitlab.com/tinyland/lab/stat-pulse/sampler"
)

func TestMetrics_Counters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.TickStarted()
	m.TickStarted()
	m.TickStarted()
	m.TickSkipped(sampler.SkipOverlap)
	m.SampleProduced(collectors.Sample{CPUUsage: 0.2, RAMUsage: 0.45, StorageUsage: 0.61, CPUTemp: 46}, 30*time.Millisecond)
	m.MessageDropped("statistics")
	m.MessageDropped("statistics")

	if got := testutil.ToFloat64(m.ticks); got != 3 {
		t.Errorf("ticks = %v, want 3", got)
	}
	if got := testutil.ToFloat64(m.skipped.WithLabelValues(sampler.SkipOverlap)); got != 1 {
		t.Errorf("skipped{overlap} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.samples); got != 1 {
		t.Errorf("samples = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.dropped.WithLabelValues("statistics")); got != 2 {
		t.Errorf("dropped{statistics} = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.temp); got != 46 {
		t.Errorf("temp gauge = %v, want 46", got)
	}
	if got := testutil.ToFloat64(m.storage); got != 0.61 {
		t.Errorf("storage gauge = %v, want 0.61", got)
	}
	if n := testutil.CollectAndCount(m.tickLatency); n != 1 {
		t.Errorf("latency histogram series = %d, want 1", n)
	}
}

func TestMetrics_DoubleRegisterPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewMetrics(reg)
	defer func() {
		if recover() == nil {
			t.Error("second NewMetrics on the same registry did not panic")
		}
	}()
	NewMetrics(reg)
}

func TestHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	m.TickStarted()

	ts := httptest.NewServer(Handler(reg))
	defer ts.Close()

	resp, err := http.Get(ts.URL)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "statpulse_ticks_total 1") {
		t.Errorf("metrics output missing ticks counter:\n%s", body)
	}
}

func TestRegisterPeersAndSubscribers(t *testing.T) {
	reg := prometheus.NewRegistry()
	peers := 2
	counts := map[string]int{"statistics": 3, "change-view": 1}

	RegisterPeers(reg, func() int { return peers })
	RegisterSubscribers(reg, []string{"statistics", "change-view"}, func(ch string) int { return counts[ch] })

	want := `
# HELP statpulse_subscribers Active subscriptions on a transport channel.
# TYPE statpulse_subscribers gauge
statpulse_subscribers{channel="change-view"} 1
statpulse_subscribers{channel="statistics"} 3
# HELP statpulse_websocket_peers Connected websocket clients.
# TYPE statpulse_websocket_peers gauge
statpulse_websocket_peers 2
`
	if err := testutil.GatherAndCompare(reg, strings.NewReader(want),
		"statpulse_subscribers", "statpulse_websocket_peers"); err != nil {
		t.Error(err)
	}

	peers = 0
	counts["statistics"] = 0
	if err := testutil.GatherAndCompare(reg, strings.NewReader(`
# HELP statpulse_websocket_peers Connected websocket clients.
# TYPE statpulse_websocket_peers gauge
statpulse_websocket_peers 0
`), "statpulse_websocket_peers"); err != nil {
		t.Errorf("gauge not read at scrape time: %v", err)
	}
}

func TestRegisterBreaker(t *testing.T) {
	reg := prometheus.NewRegistry()
	stats := retry.Stats{State: retry.StateOpen, TotalFailures: 4}
	RegisterBreaker(reg, func() retry.Stats { return stats })

	want := `
# HELP statpulse_temperature_breaker_state Temperature sensor circuit breaker state: 0 closed, 1 open, 2 half-open.
# TYPE statpulse_temperature_breaker_state gauge
statpulse_temperature_breaker_state 1
# HELP statpulse_temperature_failures_total Failed temperature sensor reads.
# TYPE statpulse_temperature_failures_total counter
statpulse_temperature_failures_total 4
`
	if err := testutil.GatherAndCompare(reg, strings.NewReader(want),
		"statpulse_temperature_breaker_state", "statpulse_temperature_failures_total"); err != nil {
		t.Error(err)
	}
}

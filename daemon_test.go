package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"gitlab.com/tinyland/lab/stat-pulse/cache"
	"gitlab.com/tinyland/lab/stat-pulse/collectors"
	"gitlab.com/tinyland/lab/stat-pulse/config"
	"gitlab.com/tinyland/lab/stat-pulse/history"
	"gitlab.com/tinyland/lab/stat-pulse/transport"
	"gitlab.com/tinyland/lab/stat-pulse/view"
)

// scriptedReader returns one scripted tick per call and repeats the last
// entry once the script runs out.
type scriptedReader struct {
	mu                   sync.Mutex
	cpu, ram, disk, temp []float64
	calls                map[string]int
}

func newScriptedReader(ticks ...[4]float64) *scriptedReader {
	r := &scriptedReader{calls: make(map[string]int)}
	for _, t := range ticks {
		r.cpu = append(r.cpu, t[0])
		r.ram = append(r.ram, t[1])
		r.disk = append(r.disk, t[2])
		r.temp = append(r.temp, t[3])
	}
	return r
}

func (r *scriptedReader) next(name string, vals []float64) float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := r.calls[name]
	r.calls[name]++
	if i >= len(vals) {
		i = len(vals) - 1
	}
	return vals[i]
}

func (r *scriptedReader) CPUUsage(context.Context) (float64, error) {
	return r.next("cpu", r.cpu), nil
}

func (r *scriptedReader) RAMUsage() (float64, error) {
	return r.next("ram", r.ram), nil
}

func (r *scriptedReader) StorageUsage() (collectors.StorageData, error) {
	return collectors.StorageData{TotalBytes: 512e9, Usage: r.next("disk", r.disk)}, nil
}

func (r *scriptedReader) CPUTemperature(context.Context) float64 {
	return r.next("temp", r.temp)
}

func (r *scriptedReader) StaticCapabilities(context.Context) (collectors.StaticCapabilities, error) {
	return collectors.StaticCapabilities{TotalStorageGB: 512, CPUModel: "Test CPU @ 3.00GHz", TotalMemoryGB: 16}, nil
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Sampler.Interval = "50ms"
	cfg.Sampler.CPUWindow = "10ms"
	cfg.Daemon.Listen = "127.0.0.1:0"
	cfg.Daemon.CacheDir = t.TempDir()
	cfg.Daemon.LogFile = filepath.Join(t.TempDir(), "stat-pulse.log")
	return cfg
}

func twoTickReader() *scriptedReader {
	return newScriptedReader(
		[4]float64{0.10, 0.40, 0.60, 45},
		[4]float64{0.20, 0.45, 0.61, 46},
	)
}

func startProducer(t *testing.T, opts producerOptions) *producer {
	t.Helper()
	p, err := newProducer(opts)
	if err != nil {
		t.Fatalf("newProducer: %v", err)
	}
	return p
}

func nextSample(t *testing.T, sub *transport.Subscription) collectors.Sample {
	t.Helper()
	select {
	case raw, ok := <-sub.C:
		if !ok {
			t.Fatal("statistics subscription closed")
		}
		s, err := transport.Decode[collectors.Sample](raw)
		if err != nil {
			t.Fatalf("decode sample: %v", err)
		}
		return s
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a sample")
	}
	return collectors.Sample{}
}

func TestNewProducer_NilConfig(t *testing.T) {
	if _, err := newProducer(producerOptions{}); err == nil {
		t.Fatal("expected error for nil config")
	}
}

func TestNewProducer_InvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Sampler.CPUWindow = "1s"
	if _, err := newProducer(producerOptions{cfg: cfg, reader: twoTickReader()}); err == nil {
		t.Fatal("expected error when cpu_window exceeds interval")
	}
}

func TestProducer_TwoTicksReachHistory(t *testing.T) {
	cfg := testConfig(t)
	cfg.Daemon.Listen = ""
	p := startProducer(t, producerOptions{cfg: cfg, reader: twoTickReader()})

	sub := p.hub.Subscribe(transport.ChannelStatistics)
	if err := p.start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer p.stop()

	buf := history.New(cfg.History.Capacity)
	buf.Push(nextSample(t, sub))
	buf.Push(nextSample(t, sub))

	proj := view.NewProjector(buf, view.CPU)
	got := proj.ActiveSeries()
	if len(got) != 2 || got[0] != 0.10 || got[1] != 0.20 {
		t.Errorf("CPU series = %v, want [0.1 0.2]", got)
	}
	if temp := proj.LatestTemperature(); temp != 46 {
		t.Errorf("LatestTemperature() = %v, want 46", temp)
	}
	if ram := proj.Series(view.RAM); len(ram) != 2 || ram[1] != 0.45 {
		t.Errorf("RAM series = %v, want [0.4 0.45]", ram)
	}
	if p.addr() != "" {
		t.Errorf("addr() = %q with listen disabled, want empty", p.addr())
	}
}

func TestProducer_StopClosesSubscriptions(t *testing.T) {
	cfg := testConfig(t)
	cfg.Daemon.Listen = ""
	p := startProducer(t, producerOptions{cfg: cfg, reader: twoTickReader()})

	sub := p.hub.Subscribe(transport.ChannelStatistics)
	if err := p.start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	p.stop()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-sub.C:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("subscription not closed after stop")
		}
	}
}

func TestProducer_ServesHealthMetricsAndStatic(t *testing.T) {
	cfg := testConfig(t)
	p := startProducer(t, producerOptions{
		cfg:      cfg,
		reader:   twoTickReader(),
		registry: prometheus.NewRegistry(),
	})
	sub := p.hub.Subscribe(transport.ChannelStatistics)
	if err := p.start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer p.stop()
	nextSample(t, sub)

	base := "http://" + p.addr()

	resp, err := http.Get(base + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	var health map[string]string
	json.NewDecoder(resp.Body).Decode(&health)
	resp.Body.Close()
	if health["status"] != "ok" {
		t.Errorf("/health = %v, want status ok", health)
	}

	resp, err = http.Get(base + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	for _, name := range []string{
		"statpulse_ticks_total",
		"statpulse_cpu_usage_ratio",
		"statpulse_websocket_peers",
		`statpulse_subscribers{channel="statistics"} 1`,
	} {
		if !strings.Contains(string(body), name) {
			t.Errorf("/metrics missing %s", name)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	client, err := transport.Dial(ctx, "ws://"+p.addr()+"/ws", transport.ClientConfig{})
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer client.Close()

	var caps collectors.StaticCapabilities
	if err := client.Invoke(ctx, transport.ChannelStaticData, &caps); err != nil {
		t.Fatalf("Invoke static: %v", err)
	}
	if caps.TotalMemoryGB != 16 || caps.TotalStorageGB != 512 {
		t.Errorf("static = %+v, want 16 GB RAM and 512 GB storage", caps)
	}
}

func TestProducer_MetricsDisabled(t *testing.T) {
	cfg := testConfig(t)
	cfg.Daemon.Metrics = false
	p := startProducer(t, producerOptions{
		cfg:      cfg,
		reader:   twoTickReader(),
		registry: prometheus.NewRegistry(),
	})
	if err := p.start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer p.stop()

	resp, err := http.Get("http://" + p.addr() + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("/metrics status = %d with metrics disabled, want 404", resp.StatusCode)
	}
}

func TestProducer_ListenFailure(t *testing.T) {
	cfg := testConfig(t)
	cfg.Daemon.Listen = "127.0.0.1:-1"

	p := startProducer(t, producerOptions{cfg: cfg, reader: twoTickReader()})
	if err := p.start(context.Background()); err == nil {
		p.stop()
		t.Fatal("expected listen error")
	}

	p = startProducer(t, producerOptions{cfg: cfg, reader: twoTickReader(), optionalListen: true})
	if err := p.start(context.Background()); err != nil {
		t.Fatalf("start with optional listen: %v", err)
	}
	p.stop()
}

func TestProducer_WritesSnapshotAndPIDFile(t *testing.T) {
	cfg := testConfig(t)
	cfg.Daemon.Listen = ""
	store, err := cache.NewStore(cfg.Daemon.CacheDir, nil)
	if err != nil {
		t.Fatal(err)
	}
	p := startProducer(t, producerOptions{cfg: cfg, reader: twoTickReader(), store: store})

	// A PID file naming a process that does not exist is stale.
	pidPath := filepath.Join(store.Dir(), "stat-pulse.pid")
	if err := os.WriteFile(pidPath, []byte("2147483646"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := p.start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}

	data, err := os.ReadFile(pidPath)
	if err != nil {
		t.Fatalf("PID file missing: %v", err)
	}
	if got, _ := strconv.Atoi(string(data)); got != os.Getpid() {
		t.Errorf("PID file = %q, want %d", data, os.Getpid())
	}

	var st *cache.Status
	deadline := time.Now().Add(2 * time.Second)
	for {
		st, err = cache.ReadStatus(store, time.Minute)
		if err == nil || time.Now().After(deadline) {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("ReadStatus: %v", err)
	}
	if st.Latest.Sample.CPUUsage != 0.10 {
		t.Errorf("snapshot CPU = %v, want first sample 0.1", st.Latest.Sample.CPUUsage)
	}
	if st.Static == nil || st.Static.CPUModel != "Test CPU @ 3.00GHz" {
		t.Errorf("static snapshot = %+v", st.Static)
	}

	p.stop()
	if _, err := os.Stat(pidPath); !os.IsNotExist(err) {
		t.Errorf("PID file still present after stop: %v", err)
	}
}

// countingStaticReader counts StaticCapabilities calls and fails the first
// failFirst of them.
type countingStaticReader struct {
	*scriptedReader
	calls     atomic.Int32
	failFirst int32
}

func (r *countingStaticReader) StaticCapabilities(ctx context.Context) (collectors.StaticCapabilities, error) {
	if n := r.calls.Add(1); n <= r.failFirst {
		return collectors.StaticCapabilities{}, errors.New("cpuinfo unavailable")
	}
	return r.scriptedReader.StaticCapabilities(ctx)
}

func TestProducer_StaticCapabilitiesQueriedOnce(t *testing.T) {
	cfg := testConfig(t)
	cfg.Daemon.Listen = ""
	store, err := cache.NewStore(cfg.Daemon.CacheDir, nil)
	if err != nil {
		t.Fatal(err)
	}
	reader := &countingStaticReader{scriptedReader: twoTickReader()}
	p := startProducer(t, producerOptions{cfg: cfg, reader: reader, store: store})
	if err := p.start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer p.stop()

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		var caps collectors.StaticCapabilities
		if err := p.hub.Invoke(ctx, transport.ChannelStaticData, &caps); err != nil {
			t.Fatalf("Invoke %d: %v", i, err)
		}
		if caps.TotalMemoryGB != 16 {
			t.Errorf("Invoke %d: static = %+v", i, caps)
		}
	}
	if got := reader.calls.Load(); got != 1 {
		t.Errorf("StaticCapabilities called %d times for a snapshot and 3 requests, want 1", got)
	}
}

func TestProducer_StaticCapabilitiesErrorNotCached(t *testing.T) {
	cfg := testConfig(t)
	cfg.Daemon.Listen = ""
	reader := &countingStaticReader{scriptedReader: twoTickReader(), failFirst: 1}
	p := startProducer(t, producerOptions{cfg: cfg, reader: reader})

	ctx := context.Background()
	var caps collectors.StaticCapabilities
	if err := p.hub.Invoke(ctx, transport.ChannelStaticData, &caps); err == nil {
		t.Fatal("first Invoke should surface the reader error")
	}
	for i := 0; i < 2; i++ {
		if err := p.hub.Invoke(ctx, transport.ChannelStaticData, &caps); err != nil {
			t.Fatalf("retry %d: %v", i, err)
		}
	}
	if got := reader.calls.Load(); got != 2 {
		t.Errorf("StaticCapabilities called %d times, want 2 (one failure, one success)", got)
	}
}

func TestProducer_HostReaderExposesBreaker(t *testing.T) {
	cfg := testConfig(t)
	reg := prometheus.NewRegistry()
	startProducer(t, producerOptions{cfg: cfg, registry: reg})

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	found := map[string]bool{}
	for _, f := range families {
		found[f.GetName()] = true
	}
	for _, name := range []string{"statpulse_temperature_breaker_state", "statpulse_temperature_failures_total", "statpulse_subscribers"} {
		if !found[name] {
			t.Errorf("registry missing %s", name)
		}
	}
}

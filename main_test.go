package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gitlab.com/tinyland/lab/stat-pulse/cache"
	"gitlab.com/tinyland/lab/stat-pulse/collectors"
	"gitlab.com/tinyland/lab/stat-pulse/config"
	"gitlab.com/tinyland/lab/stat-pulse/transport"
)

func TestRootCommands(t *testing.T) {
	want := []string{"dashboard", "daemon", "tui", "view", "frame", "status", "init", "version", "man"}
	for _, name := range want {
		cmd, _, err := rootCmd.Find([]string{name})
		if err != nil || cmd.Name() != name {
			t.Errorf("command %q not registered (got %v, err %v)", name, cmd, err)
		}
	}
}

func TestConnectURL(t *testing.T) {
	cfg := config.DefaultConfig()

	got, err := connectURL(cfg, "")
	if err != nil {
		t.Fatal(err)
	}
	if got != "ws://127.0.0.1:7777/ws" {
		t.Errorf("connectURL() = %q, want ws://127.0.0.1:7777/ws", got)
	}

	got, _ = connectURL(cfg, "ws://other:9000/ws")
	if got != "ws://other:9000/ws" {
		t.Errorf("override ignored: %q", got)
	}

	cfg.Daemon.Listen = ""
	if _, err := connectURL(cfg, ""); err == nil {
		t.Error("expected error with no listen address")
	}
}

func TestParseFrameAction(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"CLOSE", transport.FrameClose, false},
		{"minimize", transport.FrameMinimize, false},
		{" Maximize ", transport.FrameMaximize, false},
		{"RESIZE", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		got, err := parseFrameAction(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseFrameAction(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("parseFrameAction(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func testStatus(fresh bool) *cache.Status {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	return &cache.Status{
		Latest: &cache.Snapshot{
			Sample: collectors.Sample{CPUUsage: 0.10, RAMUsage: 0.40, StorageUsage: 0.60, CPUTemp: 45},
			Taken:  now.Add(-2 * time.Second),
		},
		Static: &collectors.StaticCapabilities{TotalStorageGB: 512, CPUModel: "Test CPU", TotalMemoryGB: 16},
		Fresh:  fresh,
	}
}

func TestFormatStatus(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	got := formatStatus(testStatus(true), now, false, 0)
	want := "CPU 10% | RAM 40% | STORAGE 60% | 45.00 °C | Test CPU / 16 GB RAM / 512 GB disk | 2s ago"
	if got != want {
		t.Errorf("formatStatus() =\n  %q\nwant\n  %q", got, want)
	}

	stale := formatStatus(testStatus(false), now, false, 0)
	if !strings.HasSuffix(stale, "2s ago (stale)") {
		t.Errorf("stale status = %q, want (stale) suffix", stale)
	}

	st := testStatus(true)
	st.Static = nil
	if got := formatStatus(st, now, false, 0); strings.Contains(got, "GB") {
		t.Errorf("status without static data mentions GB: %q", got)
	}
}

func TestFormatStatus_NarrowTerminal(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	got := formatStatus(testStatus(true), now, false, 20)
	lines := strings.Split(got, "\n")
	if len(lines) != 6 {
		t.Fatalf("narrow status has %d lines, want 6:\n%s", len(lines), got)
	}
	if lines[0] != "CPU 10%" {
		t.Errorf("first line = %q, want CPU 10%%", lines[0])
	}
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	versionCmd.SetOut(&out)
	versionCmd.Run(versionCmd, nil)
	if !strings.HasPrefix(out.String(), "stat-pulse "+version) {
		t.Errorf("version output = %q", out.String())
	}
}

func TestManCommand(t *testing.T) {
	var out bytes.Buffer
	manCmd.SetOut(&out)
	manCmd.Run(manCmd, nil)
	page := out.String()
	for _, want := range []string{".TH STAT-PULSE 1", ".B daemon", ".B view CPU|RAM|STORAGE", "\\-\\-demo"} {
		if !strings.Contains(page, want) {
			t.Errorf("man page missing %q", want)
		}
	}
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("sampler:\n  interval: 1s\nhistory:\n  capacity: 20\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	old := flags.configPath
	t.Cleanup(func() { flags.configPath = old })

	flags.configPath = path
	cfg, err := loadConfig()
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Sampler.Interval != "1s" || cfg.History.Capacity != 20 {
		t.Errorf("loaded config = %+v", cfg.Sampler)
	}

	if err := os.WriteFile(path, []byte("history:\n  capacity: 0\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := loadConfig(); err == nil {
		t.Error("expected validation error for capacity 0")
	}
}

func TestNewLogger_Fallback(t *testing.T) {
	cfg := config.DefaultConfig()
	// A directory cannot be opened for append.
	cfg.Daemon.LogFile = t.TempDir()

	var fallback bytes.Buffer
	logger, closeLog := newLogger(cfg, true, &fallback)
	defer closeLog()

	logger.Debug("hello", "k", "v")
	if !strings.Contains(fallback.String(), "hello") {
		t.Errorf("fallback output = %q, want debug line", fallback.String())
	}
}

func TestNewLogger_File(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Daemon.LogFile = filepath.Join(t.TempDir(), "logs", "stat-pulse.log")

	var fallback bytes.Buffer
	logger, closeLog := newLogger(cfg, false, &fallback)
	logger.Info("to file")
	logger.Debug("filtered")
	closeLog()

	data, err := os.ReadFile(cfg.Daemon.LogFile)
	if err != nil {
		t.Fatalf("log file: %v", err)
	}
	if !strings.Contains(string(data), "to file") || strings.Contains(string(data), "filtered") {
		t.Errorf("log file = %q", data)
	}
	if fallback.Len() != 0 {
		t.Errorf("fallback written: %q", fallback.String())
	}
}

func TestSendCommand_RoutesToDashboards(t *testing.T) {
	cfg := testConfig(t)
	p := startProducer(t, producerOptions{cfg: cfg, reader: twoTickReader()})
	views := p.hub.Subscribe(transport.ChannelChangeView)
	if err := p.start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer p.stop()

	oldFlags, oldSend := flags, sendFlags
	t.Cleanup(func() { flags, sendFlags = oldFlags, oldSend })
	flags.configPath = filepath.Join(t.TempDir(), "missing.yaml")
	sendFlags.connect = "ws://" + p.addr() + "/ws"

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"view", "storage", "--connect", sendFlags.connect})
	t.Cleanup(func() { rootCmd.SetArgs(nil); rootCmd.SetOut(nil) })
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("view storage: %v", err)
	}

	select {
	case raw := <-views.C:
		name, err := transport.Decode[string](raw)
		if err != nil || name != "STORAGE" {
			t.Errorf("change-view payload = %s (%v), want \"STORAGE\"", raw, err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("change-view not delivered")
	}
}

func TestViewCommand_RejectsUnknownView(t *testing.T) {
	err := viewCmd.RunE(viewCmd, []string{"GPU"})
	if err == nil || !strings.Contains(err.Error(), "unknown view") {
		t.Errorf("view GPU error = %v, want unknown view", err)
	}
}

func TestWriteDefaultConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	if err := writeDefaultConfig(path, false); err != nil {
		t.Fatalf("writeDefaultConfig: %v", err)
	}
	cfg, err := config.LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("written config invalid: %v", err)
	}
	if cfg.Daemon.Listen != config.DefaultConfig().Daemon.Listen {
		t.Errorf("Listen = %q, want default", cfg.Daemon.Listen)
	}

	if err := writeDefaultConfig(path, false); err == nil || !strings.Contains(err.Error(), "already exists") {
		t.Errorf("second write err = %v, want already exists", err)
	}
	if err := os.WriteFile(path, []byte("sampler: {interval: 1s}\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := writeDefaultConfig(path, true); err != nil {
		t.Fatalf("forced write: %v", err)
	}
	cfg, err = config.LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig after --force: %v", err)
	}
	if cfg.Sampler.Interval != config.DefaultConfig().Sampler.Interval {
		t.Errorf("after --force Interval = %q, want default", cfg.Sampler.Interval)
	}
}

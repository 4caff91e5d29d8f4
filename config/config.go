// Package config provides configuration parsing for stat-pulse.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"gitlab.com/tinyland/lab/stat-pulse/sampler"
	"gitlab.com/tinyland/lab/stat-pulse/view"
)

// Config represents the stat-pulse configuration.
type Config struct {
	// Sampler holds the sampling loop settings.
	Sampler SamplerConfig `yaml:"sampler"`

	// History holds consumer-side buffer settings.
	History HistoryConfig `yaml:"history"`

	// Display holds dashboard rendering settings.
	Display DisplayConfig `yaml:"display"`

	// Daemon holds producer process settings.
	Daemon DaemonConfig `yaml:"daemon"`

	// Temperature holds the temperature sensor circuit breaker settings.
	Temperature TemperatureConfig `yaml:"temperature"`
}

// SamplerConfig holds the sampling loop settings.
type SamplerConfig struct {
	// Interval is a duration string (e.g. "500ms") between ticks.
	Interval string `yaml:"interval"`
	// Overlap is "skip" or "allow".
	Overlap string `yaml:"overlap"`
	// TickTimeout bounds the asynchronous reads of one tick. Empty means Interval.
	TickTimeout string `yaml:"tick_timeout"`
	// CPUWindow is the CPU utilization measurement window.
	CPUWindow string `yaml:"cpu_window"`
	// Root is the filesystem whose usage is reported. Empty means the OS root.
	Root string `yaml:"root"`
}

// HistoryConfig holds consumer-side buffer settings.
type HistoryConfig struct {
	// Capacity is the number of samples each consumer keeps.
	Capacity int `yaml:"capacity"`
}

// DisplayConfig holds dashboard rendering settings.
type DisplayConfig struct {
	// InitialView is "CPU", "RAM" or "STORAGE".
	InitialView string `yaml:"initial_view"`
	// Mouse enables click selection of metric cards.
	Mouse bool `yaml:"mouse"`
	// Theme selects the display theme: "minimal", "full", or "monitoring".
	Theme string `yaml:"theme"`
}

// DaemonConfig holds producer process settings.
type DaemonConfig struct {
	// Listen is the websocket/metrics address. Empty disables serving.
	Listen string `yaml:"listen"`
	// Token, when set, is required from websocket clients.
	Token string `yaml:"token"`
	// CacheDir is the directory for the latest-sample snapshot.
	CacheDir string `yaml:"cache_dir"`
	// LogFile is the path for log output.
	LogFile string `yaml:"log_file"`
	// Metrics enables the /metrics endpoint.
	Metrics bool `yaml:"metrics"`
	// SnapshotInterval is a duration string between snapshot writes.
	SnapshotInterval string `yaml:"snapshot_interval"`
}

// TemperatureConfig holds the temperature sensor circuit breaker settings.
type TemperatureConfig struct {
	// MaxFailures is the number of consecutive failures before the sensor is skipped.
	MaxFailures int `yaml:"max_failures"`
	// ResetTimeout is the initial duration string before the sensor is retried.
	ResetTimeout string `yaml:"reset_timeout"`
	// MaxResetTimeout caps the retry backoff.
	MaxResetTimeout string `yaml:"max_reset_timeout"`
	// BackoffMultiplier grows the retry delay after each failed retry.
	BackoffMultiplier float64 `yaml:"backoff_multiplier"`
}

// DefaultPath returns ~/.config/stat-pulse/config.yaml.
func DefaultPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "stat-pulse", "config.yaml")
}

// DefaultConfig returns a Config populated with sensible defaults.
func DefaultConfig() *Config {
	home, _ := os.UserHomeDir()

	return &Config{
		Sampler: SamplerConfig{
			Interval:  "500ms",
			Overlap:   string(sampler.OverlapSkip),
			CPUWindow: "250ms",
		},
		History: HistoryConfig{
			Capacity: 10,
		},
		Display: DisplayConfig{
			InitialView: string(view.CPU),
			Mouse:       true,
			Theme:       "monitoring",
		},
		Daemon: DaemonConfig{
			Listen:           "127.0.0.1:7777",
			CacheDir:         filepath.Join(home, ".cache", "stat-pulse"),
			LogFile:          filepath.Join(home, ".local", "log", "stat-pulse.log"),
			Metrics:          true,
			SnapshotInterval: "5s",
		},
		Temperature: TemperatureConfig{
			MaxFailures:       3,
			ResetTimeout:      "30s",
			MaxResetTimeout:   "10m",
			BackoffMultiplier: 2.0,
		},
	}
}

// LoadConfig loads configuration from a YAML file, merging with defaults.
// A missing file yields the defaults.
func LoadConfig(path string) (*Config, error) {
	config := DefaultConfig()

	if path == "" {
		return config, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return config, nil
		}
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	return config, nil
}

// parseDuration parses a required positive duration field.
func parseDuration(field, s string) (time.Duration, error) {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", field, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %q", field, s)
	}
	return d, nil
}

// Validate checks the configuration for required fields and logical consistency.
func (c *Config) Validate() error {
	// Sampler validation
	interval, err := parseDuration("sampler.interval", c.Sampler.Interval)
	if err != nil {
		return err
	}
	if _, err := sampler.ParseOverlap(c.Sampler.Overlap); err != nil {
		return fmt.Errorf("sampler.overlap: %w", err)
	}
	window, err := parseDuration("sampler.cpu_window", c.Sampler.CPUWindow)
	if err != nil {
		return err
	}
	if window >= interval {
		return fmt.Errorf("sampler.cpu_window (%s) must be shorter than sampler.interval (%s)", window, interval)
	}
	// The CPU read blocks for the whole window under the tick deadline.
	if c.Sampler.TickTimeout != "" {
		timeout, err := parseDuration("sampler.tick_timeout", c.Sampler.TickTimeout)
		if err != nil {
			return err
		}
		if timeout <= window {
			return fmt.Errorf("sampler.tick_timeout (%s) must be longer than sampler.cpu_window (%s)", timeout, window)
		}
	}

	// History validation
	if c.History.Capacity < 1 {
		return fmt.Errorf("history.capacity must be at least 1, got %d", c.History.Capacity)
	}

	// Display validation
	if _, err := view.Parse(c.Display.InitialView); err != nil {
		return fmt.Errorf("display.initial_view: %w", err)
	}
	validThemes := map[string]bool{"minimal": true, "full": true, "monitoring": true}
	if !validThemes[c.Display.Theme] {
		return fmt.Errorf("display.theme must be 'minimal', 'full', or 'monitoring', got %q", c.Display.Theme)
	}

	// Daemon validation
	if c.Daemon.CacheDir == "" {
		return fmt.Errorf("daemon.cache_dir is required")
	}
	if c.Daemon.LogFile == "" {
		return fmt.Errorf("daemon.log_file is required")
	}
	if _, err := parseDuration("daemon.snapshot_interval", c.Daemon.SnapshotInterval); err != nil {
		return err
	}

	// Temperature breaker validation
	if c.Temperature.MaxFailures < 1 {
		return fmt.Errorf("temperature.max_failures must be at least 1, got %d", c.Temperature.MaxFailures)
	}
	reset, err := parseDuration("temperature.reset_timeout", c.Temperature.ResetTimeout)
	if err != nil {
		return err
	}
	maxReset, err := parseDuration("temperature.max_reset_timeout", c.Temperature.MaxResetTimeout)
	if err != nil {
		return err
	}
	if maxReset < reset {
		return fmt.Errorf("temperature.max_reset_timeout (%s) must not be shorter than reset_timeout (%s)", maxReset, reset)
	}
	if c.Temperature.BackoffMultiplier < 1 {
		return fmt.Errorf("temperature.backoff_multiplier must be at least 1, got %g", c.Temperature.BackoffMultiplier)
	}

	return nil
}

// Durations holds the parsed duration fields of a validated Config.
type Durations struct {
	Interval         time.Duration
	TickTimeout      time.Duration
	CPUWindow        time.Duration
	SnapshotInterval time.Duration
	ResetTimeout     time.Duration
	MaxResetTimeout  time.Duration
}

// Durations parses every duration field. Call Validate first; fields that do
// not parse are returned as zero, which downstream constructors treat as
// their defaults.
func (c *Config) Durations() Durations {
	parse := func(s string) time.Duration {
		d, _ := time.ParseDuration(s)
		return d
	}
	return Durations{
		Interval:         parse(c.Sampler.Interval),
		TickTimeout:      parse(c.Sampler.TickTimeout),
		CPUWindow:        parse(c.Sampler.CPUWindow),
		SnapshotInterval: parse(c.Daemon.SnapshotInterval),
		ResetTimeout:     parse(c.Temperature.ResetTimeout),
		MaxResetTimeout:  parse(c.Temperature.MaxResetTimeout),
	}
}

// SaveConfig saves configuration to a YAML file.
func SaveConfig(config *Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("config: create %s: %w", dir, err)
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}

	// 0600: the file may carry daemon.token.
	return os.WriteFile(path, data, 0o600)
}

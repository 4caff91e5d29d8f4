// Package sysmetrics reads live host metrics for stat-pulse. CPU, memory,
// temperature and hardware facts come from gopsutil; root filesystem usage
// comes from statfs where the platform exposes it.
package sysmetrics

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"

	"gitlab.com/tinyland/lab/stat-pulse/collectors"
	"gitlab.com/tinyland/lab/stat-pulse/collectors/retry"
)

// DefaultCPUWindow is how long CPUUsage blocks to measure busy time.
const DefaultCPUWindow = 250 * time.Millisecond

// ErrNoTemperatureSensor is reported to the breaker when no CPU sensor is found.
var ErrNoTemperatureSensor = errors.New("sysmetrics: no cpu temperature sensor")

// sensorPriority orders the sensor key fragments tried for the CPU temperature.
var sensorPriority = []string{"package", "tctl", "tdie", "cpu", "core"}

// Compile-time check: Reader satisfies the SensorReader interface.
var _ collectors.SensorReader = (*Reader)(nil)

// Config configures a Reader.
type Config struct {
	// Root is the path whose filesystem is reported. Empty means DefaultRoot().
	Root string

	// CPUWindow is the CPU sampling window. Zero means DefaultCPUWindow.
	CPUWindow time.Duration

	// TempBreaker configures the circuit breaker around the temperature probe.
	TempBreaker retry.Config

	// Logger for sensor failures. Nil is safe.
	Logger *slog.Logger
}

// Reader implements collectors.SensorReader on top of gopsutil.
type Reader struct {
	root   string
	window time.Duration
	logger *slog.Logger
	temp   *retry.CircuitBreaker

	// Overridable sources for testing.
	cpuPercent    func(ctx context.Context, interval time.Duration, percpu bool) ([]float64, error)
	virtualMemory func() (*mem.VirtualMemoryStat, error)
	statfs        func(path string) (total, free uint64, err error)
	temperatures  func(ctx context.Context) ([]host.TemperatureStat, error)
	cpuInfo       func(ctx context.Context) ([]cpu.InfoStat, error)
}

// DefaultRoot returns the OS root path: "/" on unix, the system drive on Windows.
func DefaultRoot() string {
	if runtime.GOOS == "windows" {
		return `C:\`
	}
	return "/"
}

// New creates a Reader. Zero-valued config fields take their defaults.
func New(cfg Config) *Reader {
	if cfg.Root == "" {
		cfg.Root = DefaultRoot()
	}
	if cfg.CPUWindow <= 0 {
		cfg.CPUWindow = DefaultCPUWindow
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	r := &Reader{
		root:          cfg.Root,
		window:        cfg.CPUWindow,
		logger:        logger,
		cpuPercent:    cpu.PercentWithContext,
		virtualMemory: mem.VirtualMemory,
		statfs:        statfsRoot,
		temperatures:  host.SensorsTemperaturesWithContext,
		cpuInfo:       cpu.InfoWithContext,
	}

	breakerCfg := cfg.TempBreaker
	if breakerCfg.Logger == nil {
		breakerCfg.Logger = logger
	}
	r.temp = retry.NewCircuitBreaker(collectors.ProbeFunc{
		ProbeName: "cpu_temperature",
		Fn:        r.readTemperature,
	}, breakerCfg)

	return r
}

// Root returns the path whose filesystem is reported.
func (r *Reader) Root() string {
	return r.root
}

// TemperatureBreaker exposes the breaker state for the metrics endpoint.
func (r *Reader) TemperatureBreaker() retry.Stats {
	return r.temp.Stats()
}

// CPUUsage measures aggregate CPU busy time over the configured window.
func (r *Reader) CPUUsage(ctx context.Context) (float64, error) {
	pct, err := r.cpuPercent(ctx, r.window, false)
	if err != nil {
		return 0, fmt.Errorf("sysmetrics: cpu percent: %w", err)
	}
	if len(pct) == 0 {
		return 0, errors.New("sysmetrics: cpu percent: no samples")
	}
	return collectors.ClampRatio(pct[0] / 100), nil
}

// RAMUsage returns 1 - available/total physical memory.
func (r *Reader) RAMUsage() (float64, error) {
	vm, err := r.virtualMemory()
	if err != nil {
		return 0, fmt.Errorf("sysmetrics: virtual memory: %w", err)
	}
	usage, err := collectors.MemoryUsage(vm.Total, vm.Available)
	if err != nil {
		return 0, fmt.Errorf("sysmetrics: virtual memory: %w", err)
	}
	return usage, nil
}

// StorageUsage reports the filesystem holding the root path.
func (r *Reader) StorageUsage() (collectors.StorageData, error) {
	total, free, err := r.statfs(r.root)
	if err != nil {
		return collectors.StorageData{}, fmt.Errorf("sysmetrics: statfs %s: %w", r.root, err)
	}
	data, err := collectors.NewStorageData(total, free)
	if err != nil {
		return collectors.StorageData{}, fmt.Errorf("sysmetrics: statfs %s: %w", r.root, err)
	}
	return data, nil
}

// CPUTemperature returns the CPU temperature in Celsius, or 0 on any failure.
func (r *Reader) CPUTemperature(ctx context.Context) float64 {
	v, err := r.temp.Read(ctx)
	if err != nil {
		if !errors.Is(err, retry.ErrCircuitOpen) {
			r.logger.Debug("cpu temperature unavailable", "error", err)
		}
		return 0
	}
	return v
}

// readTemperature picks the highest-priority CPU sensor reported by the host.
func (r *Reader) readTemperature(ctx context.Context) (float64, error) {
	temps, err := r.temperatures(ctx)
	// gopsutil returns partial results alongside per-sensor warnings.
	if err != nil && len(temps) == 0 {
		return 0, fmt.Errorf("sysmetrics: sensors: %w", err)
	}
	v, ok := pickCPUTemperature(temps)
	if !ok {
		return 0, ErrNoTemperatureSensor
	}
	return v, nil
}

func pickCPUTemperature(temps []host.TemperatureStat) (float64, bool) {
	for _, frag := range sensorPriority {
		for _, t := range temps {
			if t.Temperature <= 0 {
				continue
			}
			if strings.Contains(strings.ToLower(t.SensorKey), frag) {
				return t.Temperature, true
			}
		}
	}
	return 0, false
}

// StaticCapabilities reports the CPU model, memory size and root storage size.
func (r *Reader) StaticCapabilities(ctx context.Context) (collectors.StaticCapabilities, error) {
	var caps collectors.StaticCapabilities

	infos, err := r.cpuInfo(ctx)
	if err != nil {
		return caps, fmt.Errorf("sysmetrics: cpu info: %w", err)
	}
	if len(infos) > 0 {
		caps.CPUModel = strings.TrimSpace(infos[0].ModelName)
	}

	vm, err := r.virtualMemory()
	if err != nil {
		return caps, fmt.Errorf("sysmetrics: virtual memory: %w", err)
	}
	caps.TotalMemoryGB = collectors.GiB(vm.Total)

	storage, err := r.StorageUsage()
	if err != nil {
		return caps, err
	}
	caps.TotalStorageGB = storage.TotalGB()

	return caps, nil
}

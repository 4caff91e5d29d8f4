// Package collectors defines the sensor interfaces and data models shared by
// the stat-pulse sampler, transport and dashboard. Concrete readers live in
// subpackages (sysmetrics) and decorators in retry.
package collectors

import (
	"context"
)

// SensorReader is the set of host accessors the sampler fans out to on each
// tick. Each accessor queries the operating system for one metric.
type SensorReader interface {
	// CPUUsage blocks for a short OS-level sampling window and returns the
	// busy fraction in [0,1]. It must respect ctx cancellation.
	CPUUsage(ctx context.Context) (float64, error)

	// RAMUsage returns 1 - free/total memory. Cheap and synchronous.
	RAMUsage() (float64, error)

	// StorageUsage reports the filesystem holding the OS root. Cheap and
	// synchronous.
	StorageUsage() (StorageData, error)

	// CPUTemperature returns the CPU temperature in Celsius. It fails closed:
	// any failure yields 0 and is never reported to the caller.
	CPUTemperature(ctx context.Context) float64

	// StaticCapabilities returns the hardware facts that do not change at
	// runtime. Callers query it once.
	StaticCapabilities(ctx context.Context) (StaticCapabilities, error)
}

// Probe is a single fallible sensor read. Decorators such as the retry
// circuit breaker wrap probes rather than whole readers.
type Probe interface {
	// Name identifies the probe in logs.
	Name() string

	// Read performs one measurement.
	Read(ctx context.Context) (float64, error)
}

// ProbeFunc adapts a plain function to the Probe interface.
type ProbeFunc struct {
	ProbeName string
	Fn        func(ctx context.Context) (float64, error)
}

// Name returns the probe name.
func (p ProbeFunc) Name() string { return p.ProbeName }

// Read calls the wrapped function.
func (p ProbeFunc) Read(ctx context.Context) (float64, error) { return p.Fn(ctx) }

// Compile-time interface compliance check.
var _ Probe = ProbeFunc{}

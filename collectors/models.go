package collectors

import (
	"errors"
	"fmt"
	"math"
)

// ========== Sample ==========

// Sample is one tick's aggregated reading. Ratios are in [0,1]; CPUTemp is in
// degrees Celsius and 0 means the sensor was unavailable. Samples carry no
// timestamp: arrival order is their ordering.
type Sample struct {
	// CPUUsage is the fraction of CPU time spent busy during the sampling window.
	CPUUsage float64 `json:"cpuUsage"`

	// RAMUsage is 1 minus the free memory ratio.
	RAMUsage float64 `json:"ramUsage"`

	// StorageUsage is the used fraction of the filesystem holding the OS root.
	StorageUsage float64 `json:"storageUsage"`

	// CPUTemp is the CPU package temperature, or 0 when unavailable.
	CPUTemp float64 `json:"cpuTemp"`
}

// NewSample builds a Sample with ratios clamped to [0,1] and the temperature
// clamped to be non-negative. NaN inputs become 0.
func NewSample(cpuUsage, ramUsage, storageUsage, cpuTemp float64) Sample {
	return Sample{
		CPUUsage:     ClampRatio(cpuUsage),
		RAMUsage:     ClampRatio(ramUsage),
		StorageUsage: ClampRatio(storageUsage),
		CPUTemp:      clampTemp(cpuTemp),
	}
}

// String renders the sample as percentages for logs.
func (s Sample) String() string {
	return fmt.Sprintf("cpu=%.1f%% ram=%.1f%% storage=%.1f%% temp=%.1fC",
		s.CPUUsage*100, s.RAMUsage*100, s.StorageUsage*100, s.CPUTemp)
}

// ClampRatio limits v to the closed interval [0,1].
func ClampRatio(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func clampTemp(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}

// ========== Static Capabilities ==========

// StaticCapabilities holds hardware facts queried once per process. The JSON
// names are part of the get-static-data wire contract.
type StaticCapabilities struct {
	// TotalStorageGB is the root filesystem size in decimal gigabytes, floored.
	TotalStorageGB int `json:"totalStorage"`

	// CPUModel is the advertised model string of the first logical CPU.
	CPUModel string `json:"cpuModel"`

	// TotalMemoryGB is physical memory in gibibytes, floored.
	TotalMemoryGB int `json:"totalMemoryGB"`
}

// ========== Storage ==========

// Bytes per unit used by the static capability conversions.
const (
	BytesPerGB  = 1_000_000_000
	BytesPerGiB = 1 << 30
)

// ErrZeroCapacity is returned when a filesystem or memory total reads as zero.
var ErrZeroCapacity = errors.New("collectors: reported capacity is zero")

// StorageData describes the root filesystem.
type StorageData struct {
	// TotalBytes is the filesystem size in bytes.
	TotalBytes uint64 `json:"totalBytes"`

	// Usage is 1 - free/total.
	Usage float64 `json:"usage"`
}

// NewStorageData computes the usage ratio from total and free byte counts.
func NewStorageData(totalBytes, freeBytes uint64) (StorageData, error) {
	if totalBytes == 0 {
		return StorageData{}, ErrZeroCapacity
	}
	if freeBytes > totalBytes {
		freeBytes = totalBytes
	}
	return StorageData{
		TotalBytes: totalBytes,
		Usage:      ClampRatio(1 - float64(freeBytes)/float64(totalBytes)),
	}, nil
}

// TotalGB returns the size in decimal gigabytes, floored.
func (d StorageData) TotalGB() int {
	return int(d.TotalBytes / BytesPerGB)
}

// MemoryUsage returns 1 - free/total for a memory reading.
func MemoryUsage(totalBytes, freeBytes uint64) (float64, error) {
	if totalBytes == 0 {
		return 0, ErrZeroCapacity
	}
	if freeBytes > totalBytes {
		freeBytes = totalBytes
	}
	return ClampRatio(1 - float64(freeBytes)/float64(totalBytes)), nil
}

// GiB floors a byte count to whole gibibytes.
func GiB(bytes uint64) int {
	return int(bytes / BytesPerGiB)
}

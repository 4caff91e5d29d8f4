package collectors

import (
	"context"
	"math"
	"sync"
)

// Compile-time check: MockReader satisfies SensorReader.
var _ SensorReader = (*MockReader)(nil)

// MockReader is a SensorReader producing smooth synthetic readings. Useful
// for demos and UI work on hosts without usable sensors. Each CPUUsage call
// advances the waveform by one step.
type MockReader struct {
	mu   sync.Mutex
	step int

	// Static is returned by StaticCapabilities.
	Static StaticCapabilities
}

// NewMockReader returns a MockReader describing a modest demo machine.
func NewMockReader() *MockReader {
	return &MockReader{
		Static: StaticCapabilities{
			TotalStorageGB: 512,
			CPUModel:       "Demo CPU @ 3.20GHz",
			TotalMemoryGB:  16,
		},
	}
}

func (m *MockReader) phase() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return float64(m.step)
}

// CPUUsage oscillates between 0.10 and 0.60.
func (m *MockReader) CPUUsage(ctx context.Context) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	s := float64(m.step)
	m.step++
	m.mu.Unlock()
	return 0.35 + 0.25*math.Sin(s/4), nil
}

// RAMUsage drifts around 0.55.
func (m *MockReader) RAMUsage() (float64, error) {
	return 0.55 + 0.05*math.Sin(m.phase()/10), nil
}

// StorageUsage creeps up from 0.62 and wraps before reaching 0.72.
func (m *MockReader) StorageUsage() (StorageData, error) {
	used := 0.62 + math.Mod(m.phase()/1000, 0.1)
	total := uint64(m.Static.TotalStorageGB) * 1e9
	return StorageData{TotalBytes: total, Usage: used}, nil
}

// CPUTemperature follows the CPU waveform between 40 and 56 °C.
func (m *MockReader) CPUTemperature(context.Context) float64 {
	return 48 + 8*math.Sin(m.phase()/4)
}

// StaticCapabilities returns m.Static.
func (m *MockReader) StaticCapabilities(context.Context) (StaticCapabilities, error) {
	return m.Static, nil
}

package collectors

import (
	"context"
	"testing"
)

func TestMockReader_Ranges(t *testing.T) {
	m := NewMockReader()
	ctx := context.Background()

	for i := 0; i < 200; i++ {
		cpu, err := m.CPUUsage(ctx)
		if err != nil {
			t.Fatalf("CPUUsage: %v", err)
		}
		if cpu < 0.10-1e-9 || cpu > 0.60+1e-9 {
			t.Errorf("step %d: cpu = %.3f, want [0.10, 0.60]", i, cpu)
		}

		ram, _ := m.RAMUsage()
		if ram < 0.50-1e-9 || ram > 0.60+1e-9 {
			t.Errorf("step %d: ram = %.3f, want [0.50, 0.60]", i, ram)
		}

		st, _ := m.StorageUsage()
		if st.Usage < 0.62 || st.Usage >= 0.72 {
			t.Errorf("step %d: storage = %.3f, want [0.62, 0.72)", i, st.Usage)
		}

		temp := m.CPUTemperature(ctx)
		if temp < 40-1e-9 || temp > 56+1e-9 {
			t.Errorf("step %d: temp = %.2f, want [40, 56]", i, temp)
		}
	}
}

func TestMockReader_Advances(t *testing.T) {
	m := NewMockReader()
	ctx := context.Background()

	first, _ := m.CPUUsage(ctx)
	second, _ := m.CPUUsage(ctx)
	if first == second {
		t.Errorf("consecutive CPU readings equal (%.3f); waveform did not advance", first)
	}
}

func TestMockReader_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewMockReader().CPUUsage(ctx); err == nil {
		t.Error("CPUUsage with canceled context should fail")
	}
}

func TestMockReader_Static(t *testing.T) {
	m := NewMockReader()
	caps, err := m.StaticCapabilities(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if caps.TotalMemoryGB != 16 || caps.TotalStorageGB != 512 || caps.CPUModel == "" {
		t.Errorf("static = %+v", caps)
	}
	st, _ := m.StorageUsage()
	if st.TotalBytes != 512e9 {
		t.Errorf("TotalBytes = %d, want 512e9", st.TotalBytes)
	}
}

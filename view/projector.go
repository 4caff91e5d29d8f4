package view

import (
	"math"

	"gitlab.com/tinyland/lab/stat-pulse/collectors"
	"gitlab.com/tinyland/lab/stat-pulse/history"
)

// Projector derives render data from a history buffer and the active view.
// It never mutates the buffer. The active view has a single writer: the
// consumer's message loop.
type Projector struct {
	buf    *history.Buffer
	active View
}

// NewProjector creates a Projector over buf. An invalid initial view falls
// back to CPU.
func NewProjector(buf *history.Buffer, initial View) *Projector {
	if !initial.Valid() {
		initial = CPU
	}
	return &Projector{buf: buf, active: initial}
}

// Active returns the currently selected view.
func (p *Projector) Active() View {
	return p.active
}

// Switch replaces the active view. It reports whether the view changed.
// Switching to the active view is a no-op.
func (p *Projector) Switch(v View) bool {
	if p.active == v {
		return false
	}
	p.active = v
	return true
}

// ActiveSeries returns the active view's series, oldest first.
func (p *Projector) ActiveSeries() []float64 {
	return p.Series(p.active)
}

// Series returns the series for v. An unknown view yields an empty series.
func (p *Projector) Series(v View) []float64 {
	sel := v.Selector()
	if sel == nil {
		return []float64{}
	}
	return p.buf.Series(sel)
}

// TemperatureSeries returns the CPU temperature history in Celsius.
func (p *Projector) TemperatureSeries() []float64 {
	return p.buf.Series(func(s collectors.Sample) float64 { return s.CPUTemp })
}

// LatestTemperature returns the newest CPU temperature, or 0 when empty.
func (p *Projector) LatestTemperature() float64 {
	s, ok := p.buf.Latest()
	if !ok {
		return 0
	}
	return s.CPUTemp
}

// LatestValue returns the newest reading for v, or 0 when empty.
func (p *Projector) LatestValue(v View) float64 {
	sel := v.Selector()
	s, ok := p.buf.Latest()
	if !ok || sel == nil {
		return 0
	}
	return sel(s)
}

// CurrentCPUPercent returns the newest CPU reading as a whole percentage in
// [0,100]. Halves round to even, so 0.005 yields 0.
func (p *Projector) CurrentCPUPercent() int {
	s, ok := p.buf.Latest()
	if !ok {
		return 0
	}
	pct := math.RoundToEven(s.CPUUsage * 100)
	switch {
	case math.IsNaN(pct), pct < 0:
		return 0
	case pct > 100:
		return 100
	}
	return int(pct)
}

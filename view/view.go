// Package view selects which metric the dashboard charts and derives the
// series and scalars it renders from the sample history.
package view

import (
	"fmt"
	"strings"

	"gitlab.com/tinyland/lab/stat-pulse/collectors"
)

// View is a chartable metric. Its string form is the change-view payload.
type View string

const (
	CPU     View = "CPU"
	RAM     View = "RAM"
	Storage View = "STORAGE"
)

// all lists the views in display order.
var all = []View{CPU, RAM, Storage}

// titles maps each View to its card heading.
var titles = map[View]string{
	CPU:     "CPU",
	RAM:     "RAM",
	Storage: "Storage",
}

// All returns the views in display order.
func All() []View {
	out := make([]View, len(all))
	copy(out, all)
	return out
}

// Parse converts a case-insensitive name into a View.
func Parse(s string) (View, error) {
	v := View(strings.ToUpper(strings.TrimSpace(s)))
	if !v.Valid() {
		return "", fmt.Errorf("view: unknown view %q (want CPU, RAM or STORAGE)", s)
	}
	return v, nil
}

// Valid reports whether v is one of the enumerated views.
func (v View) Valid() bool {
	_, ok := titles[v]
	return ok
}

// Title returns the human heading for v.
func (v View) Title() string {
	if t, ok := titles[v]; ok {
		return t
	}
	return string(v)
}

// Index returns the display position of v, or -1.
func (v View) Index() int {
	for i, x := range all {
		if x == v {
			return i
		}
	}
	return -1
}

// Next returns the view after v, wrapping around.
func (v View) Next() View {
	i := v.Index()
	return all[(i+1)%len(all)]
}

// Prev returns the view before v, wrapping around.
func (v View) Prev() View {
	i := v.Index()
	if i <= 0 {
		return all[len(all)-1]
	}
	return all[i-1]
}

// Selector returns the sample field charted by v, or nil for an unknown view.
func (v View) Selector() func(collectors.Sample) float64 {
	switch v {
	case CPU:
		return func(s collectors.Sample) float64 { return s.CPUUsage }
	case RAM:
		return func(s collectors.Sample) float64 { return s.RAMUsage }
	case Storage:
		return func(s collectors.Sample) float64 { return s.StorageUsage }
	}
	return nil
}

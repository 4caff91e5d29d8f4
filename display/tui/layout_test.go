package tui

import (
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
)

func TestLayoutFor(t *testing.T) {
	tests := []struct {
		width int
		want  Layout
	}{
		{30, Layout{ChartHeight: 4, ColumnWidth: 2, CardWidth: 24, StackCards: true}},
		{50, Layout{ChartHeight: 4, ColumnWidth: 2, CardWidth: 44, StackCards: true}},
		{10, Layout{ChartHeight: 4, ColumnWidth: 2, CardWidth: 10, StackCards: true}},
		{60, Layout{ChartHeight: 8, ColumnWidth: 4, CardWidth: 14, ShowSparklines: true}},
		{100, Layout{ChartHeight: 8, ColumnWidth: 4, CardWidth: 28, ShowSparklines: true}},
		{120, Layout{ChartHeight: 8, ColumnWidth: 4, CardWidth: 34, ShowSparklines: true}},
		{121, Layout{ChartHeight: 12, ColumnWidth: 6, CardWidth: 32, ShowSparklines: true}},
		{200, Layout{ChartHeight: 12, ColumnWidth: 6, CardWidth: 32, ShowSparklines: true}},
	}
	for _, tt := range tests {
		if got := layoutFor(tt.width); got != tt.want {
			t.Errorf("layoutFor(%d) = %+v, want %+v", tt.width, got, tt.want)
		}
	}
}

func TestRule(t *testing.T) {
	got := rule("Test", 20)
	if !strings.Contains(got, " Test ") {
		t.Errorf("rule = %q, missing padded title", got)
	}
	if !strings.HasPrefix(got, "─") || !strings.HasSuffix(got, "─") {
		t.Errorf("rule = %q, want rules on both sides", got)
	}
	if w := lipgloss.Width(got); w != 20 {
		t.Errorf("rule width = %d, want 20", w)
	}
}

func TestRule_TooNarrow(t *testing.T) {
	for _, width := range []int{0, 4, 6} {
		if got := rule("Test", width); got != "Test" {
			t.Errorf("rule(Test, %d) = %q, want bare title", width, got)
		}
	}
}

func TestRule_WideTitle(t *testing.T) {
	got := rule("温度", 12)
	if w := lipgloss.Width(got); w != 12 {
		t.Errorf("rule width = %d, want 12 (%q)", w, got)
	}
}

package format

import (
	"math"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/x/ansi"
)

func TestFit(t *testing.T) {
	tests := []struct {
		name  string
		in    string
		width int
		want  string
	}{
		{"cpu model", "Intel(R) Core(TM) i7-9750H", 12, "Intel(R) Co…"},
		{"fits", "short", 10, "short"},
		{"exact", "hello", 5, "hello"},
		{"single cell", "abcdef", 1, "a"},
		{"zero width", "anything", 0, ""},
		{"wide runes", "日本語テキスト", 7, "日本語…"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Fit(tt.in, tt.width); got != tt.want {
				t.Errorf("Fit(%q, %d) = %q, want %q", tt.in, tt.width, got, tt.want)
			}
		})
	}
}

func TestFit_KeepsStyling(t *testing.T) {
	styled := "\x1b[1mAMD Ryzen 9 7950X\x1b[0m"
	got := Fit(styled, 8)
	if ansi.StringWidth(got) != 8 {
		t.Errorf("Fit width = %d, want 8 (%q)", ansi.StringWidth(got), got)
	}
	if !strings.HasPrefix(got, "\x1b[1m") {
		t.Errorf("Fit dropped the leading style: %q", got)
	}
}

func TestPercent(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0.75, "75%"},
		{0, "0%"},
		{1.3, "100%"},
		{-1, "0%"},
		{math.NaN(), "0%"},
	}
	for _, tt := range tests {
		if got := Percent(tt.in); got != tt.want {
			t.Errorf("Percent(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestCelsius(t *testing.T) {
	if got := Celsius(46); got != "46.00 °C" {
		t.Errorf("Celsius(46) = %q", got)
	}
	if got := Celsius(54.256); got != "54.26 °C" {
		t.Errorf("Celsius(54.256) = %q", got)
	}
}

func TestGB(t *testing.T) {
	if got := GB(512); got != "512 GB" {
		t.Errorf("GB(512) = %q", got)
	}
}

func TestAgo(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		ago  time.Duration
		want string
	}{
		{2 * time.Second, "just now"},
		{30 * time.Second, "30s ago"},
		{5 * time.Minute, "5m ago"},
		{3*time.Hour + 20*time.Minute, "3h ago"},
		{50 * time.Hour, "2d ago"},
		{-45 * time.Second, "45s ago"},
	}
	for _, tt := range tests {
		if got := Ago(now.Add(-tt.ago), now); got != tt.want {
			t.Errorf("Ago(-%v) = %q, want %q", tt.ago, got, tt.want)
		}
	}
	if got := Ago(time.Time{}, now); got != "never" {
		t.Errorf("zero time = %q, want never", got)
	}
}

func TestElapsed(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{500 * time.Millisecond, "0s"},
		{45 * time.Second, "45s"},
		{90 * time.Second, "1m 30s"},
		{2*time.Hour + 15*time.Minute, "2h 15m"},
		{2 * time.Hour, "2h 0m"},
		{76 * time.Hour, "3d 4h"},
		{-90 * time.Second, "1m 30s"},
	}
	for _, tt := range tests {
		if got := Elapsed(tt.in); got != tt.want {
			t.Errorf("Elapsed(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

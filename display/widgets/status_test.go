package widgets

import (
	"strings"
	"testing"
)

func TestRenderLink(t *testing.T) {
	tests := []struct {
		state LinkState
		icon  string
		text  string
	}{
		{LinkWaiting, "◌", "waiting"},
		{LinkLive, "●", "live"},
		{LinkLost, "○", "disconnected"},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got := RenderLink(tt.state)
			if !strings.Contains(got, tt.icon) || !strings.HasSuffix(got, tt.text) {
				t.Errorf("RenderLink(%v) = %q", tt.state, got)
			}
		})
	}
}

func TestLinkState_Unknown(t *testing.T) {
	if LinkState(42).String() != "unknown" {
		t.Errorf("String() = %q, want unknown", LinkState(42).String())
	}
}

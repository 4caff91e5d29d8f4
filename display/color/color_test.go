package color

import (
	"bytes"
	"os"
	"testing"

	"github.com/charmbracelet/lipgloss"
)

func TestEnabled_NOCOLORSet(t *testing.T) {
	for _, val := range []string{"", "1", "true", "anything"} {
		t.Setenv("NO_COLOR", val)
		if Enabled(os.Stdout) {
			t.Errorf("Enabled() = true with NO_COLOR=%q, want false", val)
		}
	}
}

func TestEnabled_NotAFile(t *testing.T) {
	os.Unsetenv("NO_COLOR")
	var buf bytes.Buffer
	if Enabled(&buf) {
		t.Error("Enabled(bytes.Buffer) = true, want false")
	}
}

func TestEnabled_RegularFile(t *testing.T) {
	os.Unsetenv("NO_COLOR")
	f, err := os.CreateTemp(t.TempDir(), "out")
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if Enabled(f) {
		t.Error("Enabled(regular file) = true, want false")
	}
}

func TestApply_DisablesStyling(t *testing.T) {
	var buf bytes.Buffer
	if Apply(&buf) {
		t.Fatal("Apply(bytes.Buffer) = true, want false")
	}
	got := lipgloss.NewStyle().Foreground(lipgloss.Color("#FF0000")).Render("ok")
	if got != "ok" {
		t.Errorf("Render after Apply = %q, want plain %q", got, "ok")
	}
}

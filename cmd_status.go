package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/term"
	"github.com/spf13/cobra"

	"gitlab.com/tinyland/lab/stat-pulse/cache"
	"gitlab.com/tinyland/lab/stat-pulse/display/color"
	"gitlab.com/tinyland/lab/stat-pulse/docs/manpage"
	"gitlab.com/tinyland/lab/stat-pulse/internal/format"
)

var statusFlags struct {
	json bool
	ttl  time.Duration
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the daemon's latest snapshot",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version and exit",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "stat-pulse %s (commit %s, built %s)\n", version, commit, date)
	},
}

var manCmd = &cobra.Command{
	Use:   "man",
	Short: "Print the man page in roff format",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprint(cmd.OutOrStdout(), manpage.Generate(rootCmd, version, commit, date))
	},
}

func init() {
	statusCmd.Flags().BoolVar(&statusFlags.json, "json", false, "Print the snapshot as JSON")
	statusCmd.Flags().DurationVar(&statusFlags.ttl, "ttl", 30*time.Second, "Age after which the snapshot is reported stale")
	rootCmd.AddCommand(statusCmd, versionCmd, manCmd)
}

var (
	styleStatusOK    = lipgloss.NewStyle().Foreground(lipgloss.Color("#50FA7B"))
	styleStatusStale = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFB86C"))
)

func runStatus(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := cache.NewStore(cfg.Daemon.CacheDir, nil)
	if err != nil {
		return err
	}
	st, err := cache.ReadStatus(store, statusFlags.ttl)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if statusFlags.json {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(st)
	}
	styled := color.Apply(out)
	width := 0
	if f, ok := out.(*os.File); ok && term.IsTerminal(f.Fd()) {
		width, _, _ = term.GetSize(f.Fd())
	}
	fmt.Fprintln(out, formatStatus(st, time.Now(), styled, width))
	return nil
}

// formatStatus renders a one-line summary such as
// "CPU 10% | RAM 40% | STORAGE 60% | 45.00 °C | 2s ago". When width is
// positive and the line would not fit, each part goes on its own line.
func formatStatus(st *cache.Status, now time.Time, styled bool, width int) string {
	s := st.Latest.Sample
	parts := []string{
		"CPU " + format.Percent(s.CPUUsage),
		"RAM " + format.Percent(s.RAMUsage),
		"STORAGE " + format.Percent(s.StorageUsage),
		format.Celsius(s.CPUTemp),
	}
	if st.Static != nil {
		parts = append(parts, fmt.Sprintf("%s / %s RAM / %s disk",
			format.Fit(st.Static.CPUModel, 32),
			format.GB(st.Static.TotalMemoryGB),
			format.GB(st.Static.TotalStorageGB)))
	}

	age := format.Elapsed(now.Sub(st.Latest.Taken)) + " ago"
	if !st.Fresh {
		age += " (stale)"
	}
	if styled {
		if st.Fresh {
			age = styleStatusOK.Render(age)
		} else {
			age = styleStatusStale.Render(age)
		}
	}
	parts = append(parts, age)
	line := strings.Join(parts, " | ")
	if width > 0 && lipgloss.Width(line) > width {
		return strings.Join(parts, "\n")
	}
	return line
}

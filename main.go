// stat-pulse samples host CPU, memory, root filesystem usage and CPU
// temperature twice a second and streams them to a terminal dashboard.
//
// Usage:
//
//	stat-pulse [command] [flags]
//
// Commands:
//
//	dashboard   Embedded producer and dashboard in one process (default)
//	daemon      Headless producer serving websocket, /health and /metrics
//	tui         Dashboard attached to a running daemon
//	view        Send one change-view command (CPU|RAM|STORAGE)
//	frame       Send one window-control command (CLOSE|MINIMIZE|MAXIMIZE)
//	status      Print the daemon's latest snapshot
//	init        Write the default configuration file
//	version     Print version and exit
//	man         Print the man page
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"gitlab.com/tinyland/lab/stat-pulse/collectors"
	"gitlab.com/tinyland/lab/stat-pulse/config"
)

// globalFlags are shared by every command.
type globalFlags struct {
	configPath string
	verbose    bool
	demo       bool
}

var flags globalFlags

var rootCmd = &cobra.Command{
	Use:           "stat-pulse",
	Short:         "Live host metrics dashboard",
	Long:          "Samples CPU, RAM, storage and CPU temperature every 500ms and charts them in the terminal.",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runDashboard,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flags.configPath, "config", "", "Path to configuration file (default: ~/.config/stat-pulse/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&flags.demo, "demo", false, "Sample synthetic readings instead of host sensors")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "stat-pulse: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig reads and validates the configuration named by --config, or the
// default path.
func loadConfig() (*config.Config, error) {
	path := flags.configPath
	if path == "" {
		path = config.DefaultPath()
	}
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

// newLogger opens the configured log file with a text handler. When the file
// cannot be opened, logs go to fallback instead. The returned close function
// is always safe to call.
func newLogger(cfg *config.Config, verbose bool, fallback io.Writer) (*slog.Logger, func()) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}

	var (
		w       = fallback
		closeFn = func() {}
	)
	if err := os.MkdirAll(filepath.Dir(cfg.Daemon.LogFile), 0o755); err == nil {
		f, err := os.OpenFile(cfg.Daemon.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err == nil {
			w = f
			closeFn = func() { _ = f.Close() }
		}
	}
	return slog.New(slog.NewTextHandler(w, opts)), closeFn
}

// sensorReader returns the synthetic reader under --demo. Nil means the
// producer builds the host reader from the configuration.
func sensorReader() collectors.SensorReader {
	if flags.demo {
		return collectors.NewMockReader()
	}
	return nil
}

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	tea "github.com/charmbracelet/bubbletea"
	zone "github.com/lrstanley/bubblezone"
	"github.com/spf13/cobra"

	"gitlab.com/tinyland/lab/stat-pulse/config"
	"gitlab.com/tinyland/lab/stat-pulse/display/tui"
	"gitlab.com/tinyland/lab/stat-pulse/transport"
	"gitlab.com/tinyland/lab/stat-pulse/view"
)

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Run the sampler and dashboard in one process (default)",
	Args:  cobra.NoArgs,
	RunE:  runDashboard,
}

var tuiFlags struct {
	connect string
	token   string
}

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Attach the dashboard to a running daemon",
	Args:  cobra.NoArgs,
	RunE:  runRemoteDashboard,
}

func init() {
	tuiCmd.Flags().StringVar(&tuiFlags.connect, "connect", "", "Daemon websocket URL (default: ws://<daemon.listen>/ws)")
	tuiCmd.Flags().StringVar(&tuiFlags.token, "token", "", "Bearer token (default: daemon.token)")
	rootCmd.AddCommand(dashboardCmd, tuiCmd)
}

// connectURL returns the websocket URL for the configured daemon address.
func connectURL(cfg *config.Config, override string) (string, error) {
	if override != "" {
		return override, nil
	}
	if cfg.Daemon.Listen == "" {
		return "", fmt.Errorf("no daemon address: set daemon.listen or pass --connect")
	}
	return "ws://" + cfg.Daemon.Listen + "/ws", nil
}

// newDashboard builds the dashboard model on ep. The model subscribes to its
// channels immediately, so build it before the producer starts ticking.
func newDashboard(cfg *config.Config, ep transport.Endpoint, logger *slog.Logger) (tui.Model, []tea.ProgramOption) {
	theme, _ := tui.LookupTheme(cfg.Display.Theme)
	tui.ApplyTheme(theme)

	initial, _ := view.Parse(cfg.Display.InitialView)
	opts := tui.Options{
		Endpoint:    ep,
		Capacity:    cfg.History.Capacity,
		InitialView: initial,
		Logger:      logger,
	}
	progOpts := []tea.ProgramOption{tea.WithAltScreen()}
	if cfg.Display.Mouse {
		opts.Zones = zone.New()
		progOpts = append(progOpts, tea.WithMouseCellMotion())
	}
	return tui.NewModel(opts), progOpts
}

// runProgram runs the dashboard until the user quits or a CLOSE frame action
// arrives.
func runProgram(model tui.Model, opts []tea.ProgramOption) error {
	defer model.Close()
	if _, err := tea.NewProgram(model, opts...).Run(); err != nil {
		return fmt.Errorf("dashboard: %w", err)
	}
	return nil
}

func runDashboard(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, closeLog := newLogger(cfg, flags.verbose, io.Discard)
	defer closeLog()

	p, err := newProducer(producerOptions{
		cfg:            cfg,
		logger:         logger,
		reader:         sensorReader(),
		optionalListen: true,
	})
	if err != nil {
		return err
	}

	model, opts := newDashboard(cfg, p.hub, logger)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	if err := p.start(ctx); err != nil {
		model.Close()
		return err
	}
	defer p.stop()

	return runProgram(model, opts)
}

func runRemoteDashboard(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, closeLog := newLogger(cfg, flags.verbose, io.Discard)
	defer closeLog()

	url, err := connectURL(cfg, tuiFlags.connect)
	if err != nil {
		return err
	}
	token := tuiFlags.token
	if token == "" {
		token = cfg.Daemon.Token
	}

	client, err := transport.Dial(cmd.Context(), url, transport.ClientConfig{Token: token, Logger: logger})
	if err != nil {
		return err
	}
	defer client.Close()

	model, opts := newDashboard(cfg, client, logger)
	return runProgram(model, opts)
}

package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"gitlab.com/tinyland/lab/stat-pulse/transport"
	"gitlab.com/tinyland/lab/stat-pulse/view"
)

var sendFlags struct {
	connect string
	token   string
}

var viewCmd = &cobra.Command{
	Use:   "view CPU|RAM|STORAGE",
	Short: "Switch the active view of every attached dashboard",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		v, err := view.Parse(args[0])
		if err != nil {
			return err
		}
		return sendCommand(cmd, transport.ChannelChangeView, string(v))
	},
}

var frameCmd = &cobra.Command{
	Use:   "frame CLOSE|MINIMIZE|MAXIMIZE",
	Short: "Send a window-control action to every attached dashboard",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		action, err := parseFrameAction(args[0])
		if err != nil {
			return err
		}
		return sendCommand(cmd, transport.ChannelFrameAction, action)
	},
}

func init() {
	for _, c := range []*cobra.Command{viewCmd, frameCmd} {
		c.Flags().StringVar(&sendFlags.connect, "connect", "", "Daemon websocket URL (default: ws://<daemon.listen>/ws)")
		c.Flags().StringVar(&sendFlags.token, "token", "", "Bearer token (default: daemon.token)")
	}
	rootCmd.AddCommand(viewCmd, frameCmd)
}

func parseFrameAction(s string) (string, error) {
	action := strings.ToUpper(strings.TrimSpace(s))
	switch action {
	case transport.FrameClose, transport.FrameMinimize, transport.FrameMaximize:
		return action, nil
	}
	return "", fmt.Errorf("unknown frame action %q (want CLOSE, MINIMIZE or MAXIMIZE)", s)
}

// sendCommand delivers one payload on channel to the daemon and disconnects.
func sendCommand(cmd *cobra.Command, channel string, payload any) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	url, err := connectURL(cfg, sendFlags.connect)
	if err != nil {
		return err
	}
	token := sendFlags.token
	if token == "" {
		token = cfg.Daemon.Token
	}

	client, err := transport.Dial(cmd.Context(), url, transport.ClientConfig{Token: token})
	if err != nil {
		return err
	}
	defer client.Close()

	if err := client.Send(channel, payload); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "sent %s %v\n", channel, payload)
	return nil
}

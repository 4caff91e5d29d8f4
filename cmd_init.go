package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"gitlab.com/tinyland/lab/stat-pulse/config"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default configuration file",
	Long:  "Writes the default configuration to --config (or ~/.config/stat-pulse/config.yaml). An existing file is kept unless --force is given.",
	Args:  cobra.NoArgs,
	RunE:  runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite an existing configuration file")
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, _ []string) error {
	path := flags.configPath
	if path == "" {
		path = config.DefaultPath()
	}
	if err := writeDefaultConfig(path, initForce); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
	return nil
}

// writeDefaultConfig saves config.DefaultConfig to path. Without force an
// existing file is an error.
func writeDefaultConfig(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("init: %s already exists (use --force to overwrite)", path)
		} else if !os.IsNotExist(err) {
			return fmt.Errorf("init: %w", err)
		}
	}
	return config.SaveConfig(config.DefaultConfig(), path)
}

// Command imgvaultd serves the imgvault HTTP API and, when enabled, converts
// uploads as they land in the media library.
package main

import (
	"context"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"

	"imgvault/internal/config"
	"imgvault/internal/daemonrun"
)

var version = "dev"

func newRootCommand() *cobra.Command {
	var configPath string
	var logLevel string
	var watch bool
	var development bool

	cmd := &cobra.Command{
		Use:           "imgvaultd",
		Short:         "Run the imgvault API server and upload watcher",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, _, err := config.Load(configPath)
			if err != nil {
				return err
			}
			opts := daemonrun.Options{
				LogLevel:    logLevel,
				Development: development,
			}
			if cmd.Flags().Changed("watch") {
				opts.Watch = &watch
			}
			return daemonrun.Run(cmd.Context(), cfg, opts)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Configuration file path")
	cmd.Flags().StringVar(&logLevel, "log-level", "", "Override logging.level")
	cmd.Flags().BoolVar(&watch, "watch", false, "Convert uploads as they arrive (overrides watch.enabled)")
	cmd.Flags().BoolVar(&development, "development", false, "Include source locations in log lines")
	return cmd
}

func main() {
	// daemonrun handles SIGINT and SIGTERM itself so it can shut down cleanly.
	if err := fang.Execute(context.Background(), newRootCommand(), fang.WithVersion(version)); err != nil {
		os.Exit(1)
	}
}

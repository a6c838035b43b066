package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"imgvault/internal/logs"
)

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var (
		lines  int
		follow bool
		grep   string
	)

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show the imgvault log file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if ctx.isRemote() {
				return errors.New("logs only reads the local log file; drop --remote")
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			path := cfg.LogPath()
			if path == "" {
				return errors.New("paths.log_dir is not set")
			}
			filter := logs.Filter{Contains: grep}
			out := cmd.OutOrStdout()

			result, err := logs.Last(path, lines, filter)
			if err != nil {
				return err
			}
			for _, line := range result.Lines {
				fmt.Fprintln(out, line)
			}
			if !follow {
				return nil
			}
			return logs.Follow(cmd.Context(), path, result.Offset, filter, func(line string) {
				fmt.Fprintln(out, line)
			})
		},
	}

	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of trailing lines to show")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep printing new lines until interrupted")
	cmd.Flags().StringVar(&grep, "grep", "", "Only show lines containing this text")
	return cmd
}

package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newRestoreAllCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "restore-all",
		Short: "Restore every asset that has a vaulted original",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withBackend(func(b backend) error {
				summary, err := b.RestoreAll(cmd.Context())
				if err != nil {
					return err
				}
				if ctx.structured() {
					if err := ctx.writeStructured(cmd, summary); err != nil {
						return err
					}
				} else {
					out := cmd.OutOrStdout()
					fmt.Fprintf(out, "Restored %s assets (%s without an original skipped)\n",
						formatCount(summary.Restored), formatCount(summary.Skipped))
					if len(summary.Failed) > 0 {
						fmt.Fprint(out, renderOutcomes(summary.Failed))
					}
				}
				if len(summary.Failed) > 0 {
					return fmt.Errorf("%d assets could not be restored", len(summary.Failed))
				}
				return nil
			})
		},
	}
}

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"imgvault/internal/app"
)

func newScanCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "scan",
		Short: "Register image files under the uploads directory",
		Long: `Walk the uploads directory and add every image file the library does not
know yet. The vault and in-flight temp files are skipped.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withLocalApp("scan", func(a *app.App) error {
				result, err := a.Library.Scan(cmd.Context(), a.Config.Paths.UploadsDir, a.Vault.Contains)
				if err != nil {
					return fmt.Errorf("scan %s: %w", a.Config.Paths.UploadsDir, err)
				}
				if ctx.structured() {
					return ctx.writeStructured(cmd, result)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Scanned %s: %s added, %s already known, %s skipped\n",
					a.Config.Paths.UploadsDir,
					formatCount(result.Added),
					formatCount(result.Known),
					formatCount(result.Skipped),
				)
				return nil
			})
		},
	}
}

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"imgvault/internal/app"
	"imgvault/internal/vault"
)

func newVaultCommand(ctx *commandContext) *cobra.Command {
	vaultCmd := &cobra.Command{
		Use:   "vault",
		Short: "Inspect the originals vault",
	}

	vaultCmd.AddCommand(newVaultStatsCommand(ctx))
	vaultCmd.AddCommand(newVaultPathCommand(ctx))

	return vaultCmd
}

func newVaultStatsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show file count, stored bytes, and free space",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withLocalApp("vault stats", func(a *app.App) error {
				stats, err := a.Vault.Stats()
				if err != nil {
					return err
				}
				if ctx.structured() {
					return ctx.writeStructured(cmd, stats)
				}
				fmt.Fprint(cmd.OutOrStdout(), renderVaultTable(stats))
				return nil
			})
		},
	}
}

func newVaultPathCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the vault root directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withLocalApp("vault path", func(a *app.App) error {
				fmt.Fprintln(cmd.OutOrStdout(), a.Vault.Root())
				return nil
			})
		},
	}
}

func renderVaultTable(stats vault.Stats) string {
	exists := "no"
	if stats.Exists {
		exists = "yes"
	}
	return renderTable(
		[]string{"Vault", ""},
		[][]string{
			{"Root", stats.Root},
			{"Created", exists},
			{"Files", formatCount(stats.Files)},
			{"Stored", formatBytes(stats.Bytes)},
			{"Free space", formatBytes(int64(stats.FreeBytes))},
		},
		[]columnAlignment{alignLeft, alignRight},
	)
}

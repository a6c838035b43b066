package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"imgvault/internal/app"
	"imgvault/internal/preflight"
	"imgvault/internal/staging"
)

func newResetFailuresCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "reset-failures",
		Short: "Clear failure counters so failed assets are retried",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withLocalApp("reset-failures", func(a *app.App) error {
				cleared, err := a.Optimizer.ResetFailures(cmd.Context())
				if err != nil {
					return err
				}
				if ctx.structured() {
					return ctx.writeStructured(cmd, map[string]int{"cleared": cleared})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cleared failure state on %s assets\n", formatCount(cleared))
				return nil
			})
		},
	}
}

func newSweepCommand(ctx *commandContext) *cobra.Command {
	var olderThan time.Duration
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Remove temp files left by an interrupted conversion",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if ctx.isRemote() {
				return errors.New("sweep only runs against the local installation; drop --remote")
			}
			root := cfg.Paths.UploadsDir

			var removed []staging.TempFile
			var failures int
			if dryRun {
				temps, err := staging.ListTemps(cmd.Context(), root)
				if err != nil {
					return err
				}
				cutoff := time.Now().Add(-olderThan)
				for _, temp := range temps {
					if temp.ModTime.Before(cutoff) {
						removed = append(removed, temp)
					}
				}
			} else {
				result := staging.CleanStaleTemps(cmd.Context(), root, olderThan, ctx.cliLogger())
				removed = result.Removed
				failures = len(result.Errors)
			}
			if removed == nil {
				removed = []staging.TempFile{}
			}

			if ctx.structured() {
				if err := ctx.writeStructured(cmd, map[string]any{
					"dry_run": dryRun,
					"files":   removed,
					"errors":  failures,
				}); err != nil {
					return err
				}
			} else {
				out := cmd.OutOrStdout()
				var total int64
				rows := make([][]string, 0, len(removed))
				for _, temp := range removed {
					total += temp.Size
					rows = append(rows, []string{temp.Path, time.Since(temp.ModTime).Truncate(time.Minute).String(), formatBytes(temp.Size)})
				}
				if len(rows) > 0 {
					fmt.Fprint(out, renderTable([]string{"Path", "Age", "Size"}, rows, []columnAlignment{alignLeft, alignRight, alignRight}))
				}
				verb := "Removed"
				if dryRun {
					verb = "Would remove"
				}
				fmt.Fprintf(out, "%s %s stale temp files (%s)\n", verb, formatCount(len(removed)), formatBytes(total))
			}
			if failures > 0 {
				return fmt.Errorf("%d temp files could not be removed", failures)
			}
			return nil
		},
	}

	cmd.Flags().DurationVar(&olderThan, "older-than", preflight.StaleTempAge, "Only remove temp files at least this old")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "List what would be removed without deleting")
	return cmd
}

func newUninstallCommand(ctx *commandContext) *cobra.Command {
	var force bool
	var yes bool

	cmd := &cobra.Command{
		Use:   "uninstall",
		Short: "Delete the vault and every imgvault metadata key",
		Long: `Remove the vault directory and all per-asset imgvault metadata.

Converted files stay in place. Run restore-all first to get the originals
back; uninstall refuses while restorable originals exist unless --force is
given, in which case those originals are deleted for good.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return errors.New("uninstall is irreversible; re-run with --yes to confirm")
			}
			return ctx.withLocalApp("uninstall", func(a *app.App) error {
				result, err := a.Optimizer.Purge(cmd.Context(), force)
				if err != nil {
					return err
				}
				if ctx.structured() {
					return ctx.writeStructured(cmd, result)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Removed vault %s and %s metadata entries\n", a.Vault.Root(), formatCount(int(result.MetaRemoved)))
				if result.Stranded > 0 {
					fmt.Fprintf(out, "%s vaulted originals were deleted\n", formatCount(result.Stranded))
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Proceed even if vaulted originals would be lost")
	cmd.Flags().BoolVar(&yes, "yes", false, "Confirm the uninstall")
	return cmd
}

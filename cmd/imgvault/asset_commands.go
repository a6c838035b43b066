package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"imgvault/internal/optimizer"
)

func newOptimizeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "optimize <asset-id>...",
		Short: "Convert assets now, vaulting their originals",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAssetAction(cmd, ctx, args, backend.Optimize)
		},
	}
}

func newRestoreCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "restore <asset-id>...",
		Short: "Put vaulted originals back in place of their conversions",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAssetAction(cmd, ctx, args, backend.Restore)
		},
	}
}

type assetAction func(b backend, ctx context.Context, id int64) (optimizer.Outcome, error)

func runAssetAction(cmd *cobra.Command, ctx *commandContext, args []string, action assetAction) error {
	ids, err := parseAssetIDs(args)
	if err != nil {
		return err
	}
	return ctx.withBackend(func(b backend) error {
		outcomes := make([]optimizer.Outcome, 0, len(ids))
		failed := 0
		for _, id := range ids {
			out, err := action(b, cmd.Context(), id)
			if err != nil {
				return err
			}
			if !out.Success() {
				failed++
			}
			outcomes = append(outcomes, out)
		}

		if ctx.structured() {
			if err := ctx.writeStructured(cmd, outcomes); err != nil {
				return err
			}
		} else {
			fmt.Fprint(cmd.OutOrStdout(), renderOutcomes(outcomes))
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d assets failed", failed, len(outcomes))
		}
		return nil
	})
}

func parseAssetIDs(args []string) ([]int64, error) {
	if len(args) == 0 {
		return nil, errNoArgs
	}
	ids := make([]int64, 0, len(args))
	for _, arg := range args {
		id, err := strconv.ParseInt(strings.TrimSpace(arg), 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid asset ID %q", arg)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func renderOutcomes(outcomes []optimizer.Outcome) string {
	rows := make([][]string, 0, len(outcomes))
	for _, out := range outcomes {
		savings := ""
		if out.Status == optimizer.StatusOptimized {
			savings = formatBytes(out.Savings)
		}
		rows = append(rows, []string{formatID(out.AssetID), string(out.Status), savings, out.Message})
	}
	return renderTable(
		[]string{"Asset", "Status", "Saved", "Message"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignRight, alignLeft},
	)
}

package main

import (
	"fmt"
	"io"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"imgvault/internal/api"
	"imgvault/internal/bulk"
	"imgvault/internal/notifications"
)

func newBatchCommand(ctx *commandContext) *cobra.Command {
	batchCmd := &cobra.Command{
		Use:   "batch",
		Short: "Convert pending assets in steps",
	}

	batchCmd.AddCommand(newBatchRunCommand(ctx))
	batchCmd.AddCommand(newBatchStepCommand(ctx))

	return batchCmd
}

func newBatchRunCommand(ctx *commandContext) *cobra.Command {
	var interval time.Duration

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Step through every pending asset until none remain",
		Long: `Run batch steps back to back until the library reports nothing pending.

The run stops early when a step converts nothing (every remaining asset is
failing), on Ctrl-C, or when the vault becomes unwritable. Progress is kept
in asset metadata, so a stopped run resumes where it left off.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("interval") {
				interval = cfg.StepInterval()
			}
			return ctx.withBackend(func(b backend) error {
				opts := bulk.Options{Interval: interval}

				progressOut := cmd.ErrOrStderr()
				if !ctx.structured() && isTerminal(progressOut) {
					total, err := b.Pending(cmd.Context())
					if err != nil {
						return err
					}
					bar := newProgressBar(progressOut, total)
					defer bar.Finish()
					opts.OnStep = func(p bulk.Progress) {
						_ = bar.Set(p.Processed)
						bar.Describe(fmt.Sprintf("saved %s", formatBytes(p.Savings)))
					}
				}

				started := time.Now()
				summary, runErr := bulk.NewRunner(b, opts, ctx.cliLogger()).Run(cmd.Context())
				ctx.notifyBulk(cmd.Context(), notifications.BulkRun{
					Operation: "optimize",
					Succeeded: summary.Optimized,
					Failed:    summary.Failed,
					Savings:   summary.Savings,
					Duration:  time.Since(started),
					Reason:    string(summary.Reason),
				})
				if ctx.structured() {
					if err := ctx.writeStructured(cmd, summary); err != nil {
						return err
					}
				} else {
					fmt.Fprint(cmd.OutOrStdout(), renderBulkSummary(summary))
				}
				if runErr != nil {
					return runErr
				}
				if summary.Reason == bulk.StopStalled {
					return fmt.Errorf("batch stalled: %s", summary.FirstError)
				}
				return nil
			})
		},
	}

	cmd.Flags().DurationVar(&interval, "interval", 0, "Minimum pause between steps (defaults to batch.step_interval_ms)")
	return cmd
}

func newBatchStepCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "step",
		Short: "Run a single batch step",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withBackend(func(b backend) error {
				res, err := b.RunBatchStep(cmd.Context())
				if err != nil {
					return err
				}
				if ctx.structured() {
					return ctx.writeStructured(cmd, api.FromStepResult(res))
				}
				out := cmd.OutOrStdout()
				if res.Done {
					fmt.Fprintln(out, "Nothing pending")
					return nil
				}
				fmt.Fprint(out, renderOutcomes(res.Outcomes))
				fmt.Fprintf(out, "Processed %s, optimized %s, saved %s\n",
					formatCount(res.Count), formatCount(res.Optimized), formatBytes(res.Savings))
				if res.FirstError != "" {
					fmt.Fprintf(out, "First error: %s\n", res.FirstError)
				}
				return nil
			})
		},
	}
}

func newProgressBar(out io.Writer, total int) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(out),
		progressbar.OptionSetDescription("converting"),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(30),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionClearOnFinish(),
	)
}

func renderBulkSummary(summary bulk.Summary) string {
	rows := [][]string{
		{"Stopped", string(summary.Reason)},
		{"Steps", formatCount(summary.Steps)},
		{"Processed", formatCount(summary.Processed)},
		{"Optimized", formatCount(summary.Optimized)},
		{"Skipped", formatCount(summary.Skipped)},
		{"Failed", formatCount(summary.Failed)},
		{"Saved", formatBytes(summary.Savings)},
	}
	if summary.FirstError != "" {
		rows = append(rows, []string{"First error", summary.FirstError})
	}
	return renderTable([]string{"Batch", ""}, rows, []columnAlignment{alignLeft, alignRight})
}

package main

import (
	"fmt"
	"math"

	"github.com/spf13/cobra"

	"imgvault/internal/api"
	"imgvault/internal/app"
	"imgvault/internal/preflight"
	"imgvault/internal/vault"
)

type localStatus struct {
	Format    string             `json:"format" yaml:"format"`
	Backend   string             `json:"backend" yaml:"backend"`
	BatchSize int                `json:"batch_size" yaml:"batch_size"`
	Pending   int                `json:"pending" yaml:"pending"`
	Checks    []preflight.Result `json:"checks" yaml:"checks"`
	Vault     vault.Stats        `json:"vault" yaml:"vault"`
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show readiness checks, vault usage, and pending work",
		RunE: func(cmd *cobra.Command, args []string) error {
			if ctx.isRemote() {
				return runRemoteStatus(cmd, ctx)
			}
			return ctx.withApp(func(a *app.App) error {
				status, err := collectLocalStatus(cmd, a)
				if err != nil {
					return err
				}
				if ctx.structured() {
					return ctx.writeStructured(cmd, status)
				}
				renderLocalStatus(cmd, status)
				if !preflight.AllPassed(status.Checks) {
					return fmt.Errorf("one or more readiness checks failed")
				}
				return nil
			})
		},
	}
}

func collectLocalStatus(cmd *cobra.Command, a *app.App) (localStatus, error) {
	pending, err := a.Controller.SelectPending(cmd.Context(), math.MaxInt32)
	if err != nil {
		return localStatus{}, err
	}
	stats, err := a.Vault.Stats()
	if err != nil {
		return localStatus{}, err
	}
	return localStatus{
		Format:    a.Config.Conversion.TargetFormat,
		Backend:   a.Config.Conversion.Backend,
		BatchSize: a.Controller.Limit(),
		Pending:   len(pending),
		Checks:    preflight.RunAll(cmd.Context(), a.Config, a.Vault),
		Vault:     stats,
	}, nil
}

func renderLocalStatus(cmd *cobra.Command, status localStatus) {
	w := newStatusWriter(cmd.OutOrStdout())
	w.section("Readiness")
	for _, check := range status.Checks {
		w.line(check.Name, passFail(check.Passed), check.Detail)
	}
	w.blank()
	w.section("Conversion")
	w.line("Target", statusInfo, fmt.Sprintf("%s (%s backend)", status.Format, status.Backend))
	w.line("Batch size", statusInfo, formatCount(status.BatchSize))
	pendingKind := statusOK
	if status.Pending > 0 {
		pendingKind = statusWarn
	}
	w.line("Pending", pendingKind, formatCount(status.Pending))
	w.blank()
	w.section("Vault")
	renderVaultStats(w, status.Vault)
}

func renderVaultStats(w *statusWriter, stats vault.Stats) {
	w.line("Root", statusInfo, stats.Root)
	if !stats.Exists {
		w.line("Originals", statusInfo, "vault not created yet")
	} else {
		w.line("Originals", statusInfo, fmt.Sprintf("%s files, %s", formatCount(stats.Files), formatBytes(stats.Bytes)))
	}
	w.line("Free space", statusInfo, formatBytes(int64(stats.FreeBytes)))
}

func runRemoteStatus(cmd *cobra.Command, ctx *commandContext) error {
	status, err := ctx.remoteClient().Status(cmd.Context())
	if err != nil {
		return err
	}
	if ctx.structured() {
		return ctx.writeStructured(cmd, status)
	}
	renderRemoteStatus(cmd, ctx.remoteURL(), status)
	return nil
}

func renderRemoteStatus(cmd *cobra.Command, url string, status api.StatusResponse) {
	w := newStatusWriter(cmd.OutOrStdout())
	w.section("Daemon")
	w.line("API", statusOK, url)
	w.line("Target", statusInfo, status.Format)
	w.line("Batch size", statusInfo, formatCount(status.BatchSize))
	w.line("Pending", statusInfo, formatCount(status.Pending))
	w.blank()
	w.section("Vault")
	health := "writable"
	if !status.Vault.Healthy {
		health = status.Vault.Detail
	}
	w.line("Health", passFail(status.Vault.Healthy), health)
	renderVaultStats(w, vault.Stats{
		Root:      status.Vault.Root,
		Exists:    status.Vault.Exists,
		Files:     status.Vault.Files,
		Bytes:     status.Vault.Bytes,
		FreeBytes: status.Vault.FreeBytes,
	})
}

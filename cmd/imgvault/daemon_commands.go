package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"imgvault/internal/api"
	"imgvault/internal/config"
	"imgvault/internal/daemonctl"
)

const (
	daemonStartTimeout = 15 * time.Second
	daemonStopGrace    = 20 * time.Second
)

type daemonStatus struct {
	Running   bool   `json:"running" yaml:"running"`
	PID       int    `json:"pid,omitempty" yaml:"pid,omitempty"`
	APIURL    string `json:"api_url" yaml:"api_url"`
	Reachable bool   `json:"reachable" yaml:"reachable"`
}

func newDaemonCommand(ctx *commandContext) *cobra.Command {
	daemonCmd := &cobra.Command{
		Use:   "daemon",
		Short: "Start, stop, or inspect the local imgvaultd",
	}
	daemonCmd.AddCommand(newDaemonStartCommand(ctx))
	daemonCmd.AddCommand(newDaemonStopCommand(ctx))
	daemonCmd.AddCommand(newDaemonStatusCommand(ctx))
	return daemonCmd
}

func localDaemonClient(ctx *commandContext, cfg *config.Config) *api.Client {
	token := strings.TrimSpace(ctx.flags.token)
	if token == "" {
		token = cfg.API.Token
	}
	return api.NewClient(daemonctl.BaseURL(cfg.API.Bind), token)
}

func newDaemonStartCommand(ctx *commandContext) *cobra.Command {
	var watch bool
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Launch imgvaultd in the background",
		RunE: func(cmd *cobra.Command, args []string) error {
			if ctx.isRemote() {
				return errors.New("daemon start only manages the local daemon; drop --remote")
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			exe, err := daemonctl.ResolveExecutable()
			if err != nil {
				return err
			}
			result, err := daemonctl.EnsureStarted(cmd.Context(), cfg, localDaemonClient(ctx, cfg), exe, daemonctl.LaunchOptions{
				ConfigPath: strings.TrimSpace(ctx.flags.config),
				Watch:      watch,
			}, daemonStartTimeout)
			if err != nil {
				return err
			}
			if ctx.structured() {
				return ctx.writeStructured(cmd, result)
			}
			switch result.State {
			case daemonctl.StartStateAlreadyRunning:
				fmt.Fprintf(cmd.OutOrStdout(), "imgvaultd already running (pid %d)\n", result.PID)
			default:
				fmt.Fprintf(cmd.OutOrStdout(), "imgvaultd started (pid %d) on %s\n", result.PID, daemonctl.BaseURL(cfg.API.Bind))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&watch, "watch", false, "Start the upload watcher even if watch.enabled is false")
	return cmd
}

func newDaemonStopCommand(ctx *commandContext) *cobra.Command {
	var grace time.Duration
	cmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the local imgvaultd",
		RunE: func(cmd *cobra.Command, args []string) error {
			if ctx.isRemote() {
				return errors.New("daemon stop only manages the local daemon; drop --remote")
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			result, err := daemonctl.Stop(cfg, grace)
			if errors.Is(err, daemonctl.ErrDaemonNotRunning) {
				fmt.Fprintln(cmd.OutOrStdout(), "imgvaultd is not running")
				return nil
			}
			if err != nil {
				return err
			}
			if ctx.structured() {
				return ctx.writeStructured(cmd, result)
			}
			if result.ForcedKill {
				fmt.Fprintf(cmd.OutOrStdout(), "imgvaultd (pid %d) did not exit in %s and was killed\n", result.PID, grace)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imgvaultd (pid %d) stopped\n", result.PID)
			return nil
		},
	}
	cmd.Flags().DurationVar(&grace, "grace", daemonStopGrace, "How long to wait before force-killing")
	return cmd
}

func newDaemonStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Report whether imgvaultd is running and reachable",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			running, pid, err := daemonctl.ProcessInfo(cfg.DaemonPIDPath())
			if err != nil {
				return err
			}
			status := daemonStatus{Running: running, PID: pid, APIURL: daemonctl.BaseURL(cfg.API.Bind)}
			client := localDaemonClient(ctx, cfg)
			if ctx.isRemote() {
				status.APIURL = ctx.remoteURL()
				client = ctx.remoteClient()
			}
			pingCtx, cancel := context.WithTimeout(cmd.Context(), 2*time.Second)
			status.Reachable = client.Ping(pingCtx) == nil
			cancel()

			if ctx.structured() {
				return ctx.writeStructured(cmd, status)
			}
			w := newStatusWriter(cmd.OutOrStdout())
			w.section("Daemon")
			process := "not running"
			if running {
				process = fmt.Sprintf("pid %d", pid)
			}
			w.line("Process", passFail(running), process)
			w.line("API", passFail(status.Reachable), status.APIURL)
			return nil
		},
	}
}

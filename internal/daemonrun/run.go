// Package daemonrun hosts the imgvaultd process runtime: logger, pid file,
// component wiring, and signal-driven shutdown.
package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"imgvault/internal/api"
	"imgvault/internal/app"
	"imgvault/internal/config"
	"imgvault/internal/daemon"
	"imgvault/internal/logging"
	"imgvault/internal/preflight"
	"imgvault/internal/watch"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
	// Watch overrides watch.enabled when non-nil.
	Watch *bool
}

// Run starts the imgvault daemon and blocks until a signal arrives or a
// background service fails.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}
	if opts.LogLevel != "" {
		cfg.Logging.Level = opts.LogLevel
	}
	logOpts, err := logging.OptionsFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	logOpts.Development = opts.Development
	logOpts.Process = "imgvaultd"
	logger, err := logging.New(logOpts)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	logDependencySnapshot(logger, cfg)

	a, err := app.Open(cfg, logger)
	if err != nil {
		logger.Error("open components", logging.Error(err))
		return err
	}
	defer a.Close()

	server := api.NewServerFromConfig(cfg, a.Controller, a.Vault, logger)

	watchEnabled := cfg.Watch.Enabled
	if opts.Watch != nil {
		watchEnabled = *opts.Watch
	}
	var watcher daemon.Watcher
	if watchEnabled {
		ingestor := watch.NewIngestor(a.Library, a.Optimizer, cfg.Conversion.EligibleMIMETypes, logger)
		w, err := watch.New(cfg.Paths.UploadsDir, watch.Options{
			Settle:  cfg.SettleDuration(),
			SkipDir: a.Vault.Contains,
		}, ingestor.HandleStable, logger)
		if err != nil {
			return fmt.Errorf("create watcher: %w", err)
		}
		watcher = w
	}

	d, err := daemon.New(cfg, server, watcher, a.Vault, logger)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	if err := d.Start(signalCtx); err != nil {
		return err
	}

	// The pid file is only trusted while the daemon lock is held.
	pidPath := cfg.DaemonPIDPath()
	if err := writePIDFile(pidPath); err != nil {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer stopCancel()
		d.Stop(stopCtx)
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	var runErr error
	select {
	case <-signalCtx.Done():
	case runErr = <-d.Errors():
		logging.ErrorWithContext(logger, "daemon service failed", "daemon_service_failed",
			logging.Error(runErr),
			logging.String(logging.FieldErrorHint, "check api.bind and the upload tree"),
		)
	}

	logger.Info("imgvault daemon shutting down")
	stopCtx, stopCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer stopCancel()
	d.Stop(stopCtx)
	return runErr
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

func logDependencySnapshot(logger *slog.Logger, cfg *config.Config) {
	if logger == nil || cfg == nil {
		return
	}
	attrs := []logging.Attr{
		logging.String(logging.FieldEventType, "dependency_snapshot"),
		logging.String("target_format", cfg.Conversion.TargetFormat),
		logging.String("backend", cfg.Conversion.Backend),
		logging.Bool("api_token_present", cfg.API.Token != ""),
		logging.Bool("watch_enabled", cfg.Watch.Enabled),
	}
	if status, ok := preflight.EncoderStatus(cfg); ok {
		attrs = append(attrs,
			logging.String("encoder_binary", status.Command),
			logging.Bool("encoder_available", status.Available),
		)
	}
	logger.Info("dependency snapshot", logging.Args(attrs...)...)
}

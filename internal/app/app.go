// Package app assembles the library, vault, optimizer, and batch controller
// from a loaded configuration. Both binaries open their local stack here.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"imgvault/internal/batch"
	"imgvault/internal/config"
	"imgvault/internal/library"
	"imgvault/internal/logging"
	"imgvault/internal/notifications"
	"imgvault/internal/optimizer"
	"imgvault/internal/vault"
)

// App holds the wired components of one imgvault installation.
type App struct {
	Config     *config.Config
	Library    *library.Store
	Vault      *vault.Vault
	Optimizer  *optimizer.Optimizer
	Controller *batch.Controller
	Notifier   notifications.Service
}

// Open wires every component. The caller must Close the result.
func Open(cfg *config.Config, logger *slog.Logger) (*App, error) {
	if cfg == nil {
		return nil, errors.New("app requires a config")
	}
	store, err := library.Open(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("open library: %w", err)
	}
	v, err := vault.NewFromConfig(cfg, logger)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("open vault: %w", err)
	}
	opt, err := optimizer.NewFromConfig(cfg, store, v, logger)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("build optimizer: %w", err)
	}
	notifier := notifications.NewService(cfg)
	opt.OnDataLoss(alertDataLoss(notifier, logger))
	ctrl, err := batch.NewFromConfig(cfg, opt, logger)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("build batch controller: %w", err)
	}
	return &App{
		Config:     cfg,
		Library:    store,
		Vault:      v,
		Optimizer:  opt,
		Controller: ctrl,
		Notifier:   notifier,
	}, nil
}

func alertDataLoss(notifier notifications.Service, logger *slog.Logger) func(context.Context, optimizer.Outcome) {
	logger = logging.NewComponentLogger(logger, "app")
	return func(ctx context.Context, out optimizer.Outcome) {
		// A cancelled request must not swallow the alert; the ntfy client has its own timeout.
		if err := notifier.NotifyDataLossRisk(context.WithoutCancel(ctx), out.AssetID, out.Message); err != nil {
			logging.WarnWithContext(logger, "data loss notification failed", "notification_failed",
				logging.Int64("asset_id", out.AssetID),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check notifications.ntfy_topic"),
			)
		}
	}
}

// Close releases the library database.
func (a *App) Close() error {
	if a == nil {
		return nil
	}
	return a.Library.Close()
}

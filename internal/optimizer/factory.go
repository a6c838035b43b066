package optimizer

import (
	"log/slog"

	"imgvault/internal/codec"
	"imgvault/internal/config"
)

// NewFromConfig wires an optimizer with the configured converter backend.
func NewFromConfig(cfg *config.Config, store MediaStore, v Vault, logger *slog.Logger) (*Optimizer, error) {
	conv, err := codec.NewFromConfig(cfg, logger)
	if err != nil {
		return nil, err
	}
	return New(store, v, conv, Options{
		Format:      cfg.Conversion.TargetFormat,
		Quality:     cfg.Conversion.Quality,
		Namespace:   cfg.Metadata.Namespace,
		MaxAttempts: cfg.Conversion.MaxAttempts,
		LockDir:     cfg.LockDir(),
	}, logger)
}

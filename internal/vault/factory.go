package vault

import (
	"log/slog"

	"imgvault/internal/config"
)

// NewFromConfig opens the installation vault, generating the secret on first
// use when none is configured.
func NewFromConfig(cfg *config.Config, logger *slog.Logger) (*Vault, error) {
	secret, err := LoadOrCreateSecret(cfg.SecretPath(), cfg.Vault.Secret)
	if err != nil {
		return nil, err
	}
	return New(cfg.Paths.UploadsDir, cfg.Vault.DirPrefix, secret, logger)
}

package services

import (
	"errors"
	"fmt"
	"strings"
)

// Outcome markers. Every failure that leaves the vault, codec, or optimizer
// packages wraps exactly one of these so callers can classify it with errors.Is.
var (
	ErrFileNotFound     = errors.New("file not found")
	ErrVaultingFailed   = errors.New("vaulting failed")
	ErrConversionFailed = errors.New("conversion failed")
	ErrRecoveryFailed   = errors.New("recovery failed")
	ErrNoBackupFound    = errors.New("no backup found")
	ErrRestoreFailed    = errors.New("restore failed")
	ErrCodecUnavailable = errors.New("codec unavailable")
	ErrAlreadyConverted = errors.New("already converted")
	ErrAssetBusy        = errors.New("asset busy")
	ErrVaultUnhealthy   = errors.New("vault unhealthy")
	ErrStore            = errors.New("media store error")
	ErrValidation       = errors.New("validation error")
	ErrConfiguration    = errors.New("configuration error")
)

// Wrap builds an error message that includes component context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrStore
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// CountsAsAttempt reports whether a failure should advance the asset's failed
// attempt counter. Only failures caused by the asset itself (unreadable or
// missing file) count; environmental problems such as a busy lock or a
// missing codec do not.
func CountsAsAttempt(err error) bool {
	if errors.Is(err, ErrRecoveryFailed) {
		return false
	}
	return errors.Is(err, ErrConversionFailed) || errors.Is(err, ErrFileNotFound)
}

// IsDataLoss reports whether err means an asset may have been left without a
// file at its live path.
func IsDataLoss(err error) bool {
	return errors.Is(err, ErrRecoveryFailed)
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}

package optimizer

import (
	"errors"

	"imgvault/internal/services"
)

// Status is the result class of a single-asset operation.
type Status string

const (
	StatusOptimized        Status = "optimized"
	StatusRestored         Status = "restored"
	StatusAlreadyConverted Status = "already_converted"
	StatusFileNotFound     Status = "file_not_found"
	StatusVaultingFailed   Status = "vaulting_failed"
	StatusConversionFailed Status = "conversion_failed"
	StatusRecoveryFailed   Status = "recovery_failed"
	StatusNoBackupFound    Status = "no_backup_found"
	StatusRestoreFailed    Status = "restore_failed"
	StatusCodecUnavailable Status = "codec_unavailable"
	StatusAssetBusy        Status = "asset_busy"
	StatusStoreError       Status = "store_error"
)

// Outcome reports what happened to one asset.
type Outcome struct {
	AssetID int64  `json:"asset_id" yaml:"asset_id"`
	Status  Status `json:"status" yaml:"status"`
	Message string `json:"message" yaml:"message"`
	// Savings is original bytes minus converted bytes; set on StatusOptimized.
	Savings int64  `json:"savings,omitempty" yaml:"savings,omitempty"`
	Path    string `json:"path,omitempty" yaml:"path,omitempty"`
	Err     error  `json:"-" yaml:"-"`
}

// Success reports whether the operation reached its target state.
// AlreadyConverted counts as success for optimize.
func (o Outcome) Success() bool {
	switch o.Status {
	case StatusOptimized, StatusRestored, StatusAlreadyConverted:
		return true
	default:
		return false
	}
}

var markerStatus = []struct {
	marker error
	status Status
}{
	// RecoveryFailed wraps ConversionFailed, so it must be checked first.
	{services.ErrRecoveryFailed, StatusRecoveryFailed},
	{services.ErrAssetBusy, StatusAssetBusy},
	{services.ErrAlreadyConverted, StatusAlreadyConverted},
	{services.ErrFileNotFound, StatusFileNotFound},
	{services.ErrVaultingFailed, StatusVaultingFailed},
	{services.ErrCodecUnavailable, StatusCodecUnavailable},
	{services.ErrConversionFailed, StatusConversionFailed},
	{services.ErrNoBackupFound, StatusNoBackupFound},
	{services.ErrRestoreFailed, StatusRestoreFailed},
}

// StatusFor classifies err.
func StatusFor(err error) Status {
	for _, m := range markerStatus {
		if errors.Is(err, m.marker) {
			return m.status
		}
	}
	return StatusStoreError
}

func failed(id int64, err error) Outcome {
	return Outcome{AssetID: id, Status: StatusFor(err), Message: err.Error(), Err: err}
}

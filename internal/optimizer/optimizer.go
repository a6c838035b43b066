package optimizer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"imgvault/internal/codec"
	"imgvault/internal/logging"
	"imgvault/internal/services"
)

const component = "optimizer"

const defaultMaxAttempts = 3

// Vault is the backup directory the optimizer moves originals through.
type Vault interface {
	ResolvePath(originalAbs string) (string, error)
	MoveIn(source, vaultPath string) bool
	MoveOut(vaultPath, destination string) bool
	CheckHealth() bool
	Purge() error
}

// Converter re-encodes one file.
type Converter interface {
	Convert(ctx context.Context, req codec.Request) (codec.Result, error)
}

// Options holds the per-installation conversion parameters.
type Options struct {
	Format      string
	Quality     int
	Namespace   string
	MaxAttempts int
	// LockDir holds the per-asset lock files.
	LockDir string
}

// Optimizer runs Optimize and Restore for single assets.
type Optimizer struct {
	store     MediaStore
	vault     Vault
	converter Converter
	keys      Keys
	format    string
	quality   int
	maxTries  int
	lockDir   string
	onLoss    func(context.Context, Outcome)
	logger    *slog.Logger
}

// New constructs an optimizer.
func New(store MediaStore, v Vault, conv Converter, opts Options, logger *slog.Logger) (*Optimizer, error) {
	if store == nil || v == nil || conv == nil {
		return nil, errors.New("optimizer requires a media store, vault, and converter")
	}
	if strings.TrimSpace(opts.LockDir) == "" {
		return nil, errors.New("optimizer lock directory is empty")
	}
	maxTries := opts.MaxAttempts
	if maxTries <= 0 {
		maxTries = defaultMaxAttempts
	}
	namespace := opts.Namespace
	if namespace == "" {
		namespace = codec.Extension(opts.Format)
	}
	return &Optimizer{
		store:     store,
		vault:     v,
		converter: conv,
		keys:      NewKeys(namespace),
		format:    codec.Extension(opts.Format),
		quality:   opts.Quality,
		maxTries:  maxTries,
		lockDir:   opts.LockDir,
		logger:    logging.NewComponentLogger(logger, component),
	}, nil
}

// OnDataLoss registers fn to run whenever an optimize leaves an original
// stranded in the vault. It must be set before the optimizer is shared.
func (o *Optimizer) OnDataLoss(fn func(context.Context, Outcome)) {
	o.onLoss = fn
}

// Keys returns the metadata key set in use.
func (o *Optimizer) Keys() Keys {
	return o.keys
}

// Format returns the target format.
func (o *Optimizer) Format() string {
	return o.format
}

// TargetMIME returns the MIME type of converted assets.
func (o *Optimizer) TargetMIME() string {
	return codec.MIMEForFormat(o.format)
}

// VaultHealthy reports whether the vault can accept originals.
func (o *Optimizer) VaultHealthy() bool {
	return o.vault.CheckHealth()
}

// Store returns the media store.
func (o *Optimizer) Store() MediaStore {
	return o.store
}

// Record returns the asset's original-path record, if any.
func (o *Optimizer) Record(ctx context.Context, id int64) (Original, bool, error) {
	raw, ok, err := o.store.Meta(ctx, id, o.keys.OriginalPath)
	if err != nil || !ok {
		return Original{}, false, err
	}
	rec, err := ParseOriginal(raw)
	if err != nil {
		return Original{}, false, fmt.Errorf("asset %d: %w", id, err)
	}
	return rec, true, nil
}

// Optimize vaults the asset's original and replaces it with the converted
// file. On failure the asset ends where it started.
func (o *Optimizer) Optimize(ctx context.Context, id int64) Outcome {
	ctx = services.WithOperation(services.WithAssetID(ctx, id), "optimize")
	logger := logging.WithContext(ctx, o.logger)

	unlock, err := o.lockAsset(id)
	if err != nil {
		return failed(id, err)
	}
	defer unlock()

	out, err := o.optimize(ctx, logger, id)
	if err != nil {
		outcome := failed(id, err)
		if services.IsDataLoss(err) {
			if o.onLoss != nil {
				o.onLoss(ctx, outcome)
			}
			return outcome
		}
		if outcome.Status == StatusAlreadyConverted {
			logger.Debug("asset already converted")
			return outcome
		}
		logging.WarnWithContext(logger, "optimize failed", "optimize_failed",
			logging.String("status", string(outcome.Status)),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, hintFor(outcome.Status)),
			logging.String(logging.FieldImpact, "asset left in its original format"),
		)
		return outcome
	}
	return out
}

func (o *Optimizer) optimize(ctx context.Context, logger *slog.Logger, id int64) (Outcome, error) {
	if _, ok, err := o.store.Meta(ctx, id, o.keys.OriginalPath); err != nil {
		return Outcome{}, services.Wrap(services.ErrStore, component, "optimize", "read original record", err)
	} else if ok {
		return Outcome{}, services.Wrap(services.ErrAlreadyConverted, component, "optimize", "record present", nil)
	}

	live, err := o.store.LivePath(ctx, id)
	if err != nil {
		return Outcome{}, services.Wrap(services.ErrFileNotFound, component, "optimize", "resolve live path", err)
	}
	oldSize, err := o.store.FileSize(live)
	if err != nil {
		err = services.Wrap(services.ErrFileNotFound, component, "optimize", live, err)
		o.recordFailure(ctx, logger, id, err)
		return Outcome{}, err
	}
	if strings.EqualFold(filepath.Ext(live), "."+o.format) {
		if err := o.Adopt(ctx, id); err != nil {
			return Outcome{}, err
		}
		return Outcome{}, services.Wrap(services.ErrAlreadyConverted, component, "optimize",
			"live file is already "+o.format, nil)
	}

	vaultPath, err := o.vault.ResolvePath(live)
	if err != nil {
		return Outcome{}, services.Wrap(services.ErrVaultingFailed, component, "optimize", "resolve vault path", err)
	}
	if err := o.checkSlots(live, vaultPath); err != nil {
		return Outcome{}, err
	}
	if !o.vault.MoveIn(live, vaultPath) {
		return Outcome{}, services.Wrap(services.ErrVaultingFailed, component, "optimize",
			"could not move original into the vault", nil)
	}

	result, convErr := o.converter.Convert(ctx, codec.Request{
		Source:    vaultPath,
		Format:    o.format,
		Quality:   o.quality,
		OutputDir: filepath.Dir(live),
	})
	if convErr != nil {
		if err := o.rollback(ctx, logger, id, vaultPath, live, convErr); err != nil {
			return Outcome{}, err
		}
		o.recordFailure(ctx, logger, id, convErr)
		if errors.Is(convErr, services.ErrCodecUnavailable) {
			return Outcome{}, convErr
		}
		return Outcome{}, services.Wrap(services.ErrConversionFailed, component, "optimize", "convert", convErr)
	}

	savings := oldSize - result.Size
	if err := o.commit(ctx, id, result.Path, vaultPath, savings); err != nil {
		_ = os.Remove(result.Path)
		if rbErr := o.rollback(ctx, logger, id, vaultPath, live, err); rbErr != nil {
			return Outcome{}, rbErr
		}
		o.revertBookkeeping(ctx, logger, id, live)
		return Outcome{}, err
	}
	o.refreshDerived(ctx, logger, id)

	logger.Info("asset optimized",
		logging.String("path", result.Path),
		logging.Int64("original_bytes", oldSize),
		logging.Int64("converted_bytes", result.Size),
		logging.Int64("savings_bytes", savings),
		logging.Bool("flattened", result.Flattened),
		logging.String(logging.FieldEventType, "asset_optimized"),
	)
	return Outcome{
		AssetID: id,
		Status:  StatusOptimized,
		Message: fmt.Sprintf("converted to %s", o.format),
		Savings: savings,
		Path:    result.Path,
	}, nil
}

// checkSlots refuses to vault when the vault path or the converted output
// path is already taken. A reused upload name maps to the same vault path as
// an earlier asset, whose original must not be overwritten.
func (o *Optimizer) checkSlots(live, vaultPath string) error {
	output := codec.OutputPath(codec.Request{Source: live, Format: o.format})
	slots := []struct{ what, path string }{
		{"vault path", vaultPath},
		{"output path", output},
	}
	for _, slot := range slots {
		_, err := os.Lstat(slot.path)
		if err == nil {
			return services.Wrap(services.ErrVaultingFailed, component, "optimize",
				fmt.Sprintf("%s %s is occupied by another file", slot.what, slot.path), nil)
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return services.Wrap(services.ErrVaultingFailed, component, "optimize", "stat "+slot.what, err)
		}
	}
	return nil
}

// commit records the conversion. The original-path record is written after
// the live path and format so it only exists for a fully switched asset.
func (o *Optimizer) commit(ctx context.Context, id int64, converted, vaultPath string, savings int64) error {
	steps := []struct {
		what string
		run  func() error
	}{
		{"set live path", func() error { return o.store.SetLivePath(ctx, id, converted) }},
		{"set format", func() error { return o.store.SetFormat(ctx, id, o.TargetMIME()) }},
		{"write savings", func() error { return o.store.SetMeta(ctx, id, o.keys.Savings, strconv.FormatInt(savings, 10)) }},
		{"write original record", func() error {
			return o.store.SetMeta(ctx, id, o.keys.OriginalPath, StoredAtRecord(vaultPath).String())
		}},
	}
	for _, step := range steps {
		if err := step.run(); err != nil {
			return services.Wrap(services.ErrStore, component, "commit", step.what, err)
		}
	}
	o.clearFailures(ctx, id)
	return nil
}

// rollback returns the original to its live path. A failed move is the one
// case where an asset can be left without a file and is escalated.
func (o *Optimizer) rollback(ctx context.Context, logger *slog.Logger, id int64, vaultPath, live string, cause error) error {
	if o.vault.MoveOut(vaultPath, live) {
		logger.Debug("original restored after failed conversion", logging.String("path", live))
		return nil
	}
	err := services.Wrap(services.ErrRecoveryFailed, component, "rollback",
		fmt.Sprintf("original stranded at %s", vaultPath), cause)
	logging.ErrorWithContext(logger, "could not return original after failed conversion", "optimize_recovery_failed",
		logging.Alert("data_loss_risk"),
		logging.String("vault_path", vaultPath),
		logging.String("live_path", live),
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "move the vault file back to the live path by hand"),
		logging.String(logging.FieldImpact, "asset has no file at its live path"),
	)
	return err
}

func (o *Optimizer) revertBookkeeping(ctx context.Context, logger *slog.Logger, id int64, live string) {
	errs := []error{
		o.store.SetLivePath(ctx, id, live),
		o.store.SetFormat(ctx, id, codec.RestoredMIME(live)),
		o.store.DeleteMeta(ctx, id, o.keys.OriginalPath),
		o.store.DeleteMeta(ctx, id, o.keys.Savings),
	}
	if err := errors.Join(errs...); err != nil {
		logging.ErrorWithContext(logger, "could not revert bookkeeping after failed commit", "optimize_revert_failed",
			logging.Alert("bookkeeping_drift"),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "run inventory to reconcile the asset"),
		)
	}
}

func (o *Optimizer) refreshDerived(ctx context.Context, logger *slog.Logger, id int64) {
	if err := o.store.RegenerateDerived(ctx, id); err != nil {
		logging.WarnWithContext(logger, "derived data not regenerated", "derived_regeneration_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "regenerate derived data for the asset"),
			logging.String(logging.FieldImpact, "recorded size and dimensions may be stale"),
		)
	}
}

// recordFailure bumps the attempt counter for failures caused by the file
// itself and marks the asset failed once the ceiling is reached.
func (o *Optimizer) recordFailure(ctx context.Context, logger *slog.Logger, id int64, cause error) {
	if !services.CountsAsAttempt(cause) || ctx.Err() != nil {
		return
	}
	attempts := 0
	if raw, ok, err := o.store.Meta(ctx, id, o.keys.Attempts); err == nil && ok {
		attempts, _ = strconv.Atoi(raw)
	}
	attempts++
	if err := o.store.SetMeta(ctx, id, o.keys.Attempts, strconv.Itoa(attempts)); err != nil {
		logger.Debug("attempt counter not saved", logging.Error(err))
		return
	}
	if attempts >= o.maxTries {
		if err := o.store.SetMeta(ctx, id, o.keys.Failed, time.Now().UTC().Format(time.RFC3339)); err != nil {
			logger.Debug("failed marker not saved", logging.Error(err))
			return
		}
		logging.WarnWithContext(logger, "asset excluded from batches after repeated failures", "optimize_ceiling_reached",
			logging.Int("attempts", attempts),
			logging.String(logging.FieldErrorHint, "fix or replace the file, then run reset-failures"),
			logging.String(logging.FieldImpact, "bulk runs skip this asset"),
		)
	}
}

// Adopt records an asset that is already in the target format as converted
// with no recoverable original.
func (o *Optimizer) Adopt(ctx context.Context, id int64) error {
	if err := errors.Join(
		o.store.SetFormat(ctx, id, o.TargetMIME()),
		o.store.SetMeta(ctx, id, o.keys.OriginalPath, NoOriginalRecord().String()),
	); err != nil {
		return services.Wrap(services.ErrStore, component, "adopt", "write no-original record", err)
	}
	o.clearFailures(ctx, id)
	return nil
}

func (o *Optimizer) clearFailures(ctx context.Context, id int64) {
	_ = o.store.DeleteMeta(ctx, id, o.keys.Attempts)
	_ = o.store.DeleteMeta(ctx, id, o.keys.Failed)
}

// Restore moves the vaulted original back and drops the record.
func (o *Optimizer) Restore(ctx context.Context, id int64) Outcome {
	ctx = services.WithOperation(services.WithAssetID(ctx, id), "restore")
	logger := logging.WithContext(ctx, o.logger)

	unlock, err := o.lockAsset(id)
	if err != nil {
		return failed(id, err)
	}
	defer unlock()

	out, err := o.restore(ctx, logger, id)
	if err != nil {
		outcome := failed(id, err)
		if outcome.Status == StatusNoBackupFound {
			logger.Debug("nothing to restore", logging.Error(err))
			return outcome
		}
		logging.WarnWithContext(logger, "restore failed", "restore_failed",
			logging.String("status", string(outcome.Status)),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, hintFor(outcome.Status)),
			logging.String(logging.FieldImpact, "asset stays converted"),
		)
		return outcome
	}
	return out
}

func (o *Optimizer) restore(ctx context.Context, logger *slog.Logger, id int64) (Outcome, error) {
	rec, ok, err := o.Record(ctx, id)
	if err != nil {
		return Outcome{}, services.Wrap(services.ErrStore, component, "restore", "read original record", err)
	}
	if !ok || !rec.Restorable() {
		return Outcome{}, services.Wrap(services.ErrNoBackupFound, component, "restore", "no vaulted original", nil)
	}
	if info, err := os.Stat(rec.Path); err != nil || !info.Mode().IsRegular() {
		return Outcome{}, services.Wrap(services.ErrNoBackupFound, component, "restore",
			fmt.Sprintf("vault file %s missing", rec.Path), err)
	}

	live, err := o.store.LivePath(ctx, id)
	if err != nil {
		return Outcome{}, services.Wrap(services.ErrStore, component, "restore", "resolve live path", err)
	}
	dest := strings.TrimSuffix(live, filepath.Ext(live)) + filepath.Ext(rec.Path)
	if dest != live {
		if _, err := os.Lstat(dest); err == nil {
			return Outcome{}, services.Wrap(services.ErrRestoreFailed, component, "restore",
				fmt.Sprintf("%s is occupied by another file", dest), nil)
		} else if !errors.Is(err, fs.ErrNotExist) {
			return Outcome{}, services.Wrap(services.ErrRestoreFailed, component, "restore", "stat destination", err)
		}
	}
	if !o.vault.MoveOut(rec.Path, dest) {
		return Outcome{}, services.Wrap(services.ErrRestoreFailed, component, "restore",
			"could not move original out of the vault", nil)
	}

	if err := errors.Join(
		o.store.SetFormat(ctx, id, codec.RestoredMIME(dest)),
		o.store.SetLivePath(ctx, id, dest),
	); err != nil {
		logging.ErrorWithContext(logger, "original restored but bookkeeping not updated", "restore_bookkeeping_failed",
			logging.Alert("bookkeeping_drift"),
			logging.String("path", dest),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "run inventory to reconcile the asset"),
		)
		return Outcome{}, services.Wrap(services.ErrStore, component, "restore", "update asset", err)
	}
	if dest != live {
		if err := os.Remove(live); err != nil && !errors.Is(err, fs.ErrNotExist) {
			logging.WarnWithContext(logger, "converted file not removed", "restore_stale_file",
				logging.String("path", live),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "delete the converted file by hand"),
				logging.String(logging.FieldImpact, "orphaned converted file remains in uploads"),
			)
		}
	}
	o.refreshDerived(ctx, logger, id)
	if err := errors.Join(
		o.store.DeleteMeta(ctx, id, o.keys.OriginalPath),
		o.store.DeleteMeta(ctx, id, o.keys.Savings),
	); err != nil {
		return Outcome{}, services.Wrap(services.ErrStore, component, "restore", "delete original record", err)
	}
	o.clearFailures(ctx, id)

	logger.Info("asset restored",
		logging.String("path", dest),
		logging.String(logging.FieldEventType, "asset_restored"),
	)
	return Outcome{
		AssetID: id,
		Status:  StatusRestored,
		Message: "original restored",
		Path:    dest,
	}, nil
}

func hintFor(status Status) string {
	switch status {
	case StatusFileNotFound:
		return "re-upload the file or remove the asset from the library"
	case StatusVaultingFailed:
		return "check that the uploads directory is writable and nothing occupies the vault or output path"
	case StatusConversionFailed:
		return "check that the file is a valid image"
	case StatusCodecUnavailable:
		return "install the encoder or switch conversion.backend to builtin"
	case StatusAssetBusy:
		return "retry once the other operation finishes"
	case StatusRestoreFailed:
		return "check permissions and free space under the uploads directory"
	default:
		return "check logs for details"
	}
}

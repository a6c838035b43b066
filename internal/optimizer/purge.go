package optimizer

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"imgvault/internal/logging"
	"imgvault/internal/services"
)

// PurgeResult reports what uninstall removed.
type PurgeResult struct {
	MetaRemoved int64 `json:"meta_removed" yaml:"meta_removed"`
	Stranded    int   `json:"stranded" yaml:"stranded"`
}

// Purge deletes the vault tree and every metadata key in the namespace.
// Vaulted originals are lost, so Purge refuses while any exist unless force
// is set.
func (o *Optimizer) Purge(ctx context.Context, force bool) (PurgeResult, error) {
	purger, ok := o.store.(MetaPurger)
	if !ok {
		return PurgeResult{}, errors.New("media store cannot delete metadata by prefix")
	}
	restorable, err := o.restorableCount(ctx)
	if err != nil {
		return PurgeResult{}, err
	}
	if restorable > 0 && !force {
		return PurgeResult{Stranded: restorable}, services.Wrap(services.ErrValidation, component, "purge",
			fmt.Sprintf("%d vaulted originals would be lost; run restore-all first", restorable), nil)
	}
	if err := o.vault.Purge(); err != nil {
		return PurgeResult{}, services.Wrap(services.ErrStore, component, "purge", "remove vault", err)
	}
	removed, err := purger.DeleteMetaPrefix(ctx, o.keys.Prefix)
	if err != nil {
		return PurgeResult{}, services.Wrap(services.ErrStore, component, "purge", "remove metadata", err)
	}
	logging.WarnWithContext(o.logger, "vault and metadata purged", "uninstall_complete",
		logging.Int64("meta_removed", removed),
		logging.Int("stranded_originals", restorable),
		logging.String(logging.FieldErrorHint, "nothing to do unless originals were expected"),
		logging.String(logging.FieldImpact, "converted assets can no longer be restored"),
	)
	return PurgeResult{MetaRemoved: removed, Stranded: restorable}, nil
}

// ResetFailures clears the attempt counter and failed marker on every asset
// so batch selection picks them up again.
func (o *Optimizer) ResetFailures(ctx context.Context) (int, error) {
	ids, err := o.store.ListWithMeta(ctx, o.keys.Attempts)
	if err != nil {
		return 0, services.Wrap(services.ErrStore, component, "reset_failures", "list failed assets", err)
	}
	for _, id := range ids {
		if err := errors.Join(
			o.store.DeleteMeta(ctx, id, o.keys.Attempts),
			o.store.DeleteMeta(ctx, id, o.keys.Failed),
		); err != nil {
			return 0, services.Wrap(services.ErrStore, component, "reset_failures", strconv.FormatInt(id, 10), err)
		}
	}
	return len(ids), nil
}

func (o *Optimizer) restorableCount(ctx context.Context) (int, error) {
	ids, err := o.store.ListWithMeta(ctx, o.keys.OriginalPath)
	if err != nil {
		return 0, services.Wrap(services.ErrStore, component, "purge", "list converted assets", err)
	}
	count := 0
	for _, id := range ids {
		rec, ok, err := o.Record(ctx, id)
		if err != nil {
			return 0, services.Wrap(services.ErrStore, component, "purge", "read original record", err)
		}
		if ok && rec.Restorable() {
			count++
		}
	}
	return count, nil
}

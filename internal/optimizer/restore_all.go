package optimizer

import (
	"context"

	"imgvault/internal/logging"
	"imgvault/internal/services"
)

// RestoreSummary aggregates a RestoreAll pass.
type RestoreSummary struct {
	Restored int       `json:"restored_count" yaml:"restored_count"`
	Skipped  int       `json:"skipped" yaml:"skipped"`
	Failed   []Outcome `json:"failed,omitempty" yaml:"failed,omitempty"`
}

// RestoreAll restores every asset with a vaulted original. Failures are
// collected and never stop the pass; cancellation does.
func (o *Optimizer) RestoreAll(ctx context.Context) (RestoreSummary, error) {
	var summary RestoreSummary
	ids, err := o.store.ListWithMeta(ctx, o.keys.OriginalPath)
	if err != nil {
		return summary, services.Wrap(services.ErrStore, component, "restore_all", "list converted assets", err)
	}
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		rec, ok, err := o.Record(ctx, id)
		if err == nil && ok && !rec.Restorable() {
			summary.Skipped++
			continue
		}
		outcome := o.Restore(ctx, id)
		if outcome.Success() {
			summary.Restored++
			continue
		}
		summary.Failed = append(summary.Failed, outcome)
	}
	o.logger.Info("restore all complete",
		logging.Int("restored", summary.Restored),
		logging.Int("skipped", summary.Skipped),
		logging.Int("failed", len(summary.Failed)),
		logging.String(logging.FieldEventType, "restore_all_complete"),
	)
	return summary, nil
}

package batch

import (
	"context"
	"math"
	"strconv"

	"imgvault/internal/logging"
	"imgvault/internal/services"
)

// Inventory classifies every asset in scope.
type Inventory struct {
	Pending    []int64 `json:"pending" yaml:"pending"`
	Managed    []int64 `json:"managed" yaml:"managed"`
	Missing    []int64 `json:"missing" yaml:"missing"`
	Failed     []int64 `json:"failed" yaml:"failed"`
	Restorable []int64 `json:"restorable" yaml:"restorable"`
	// Adopted counts assets found already in the target format and given a
	// no-original record during this pass.
	Adopted int   `json:"adopted" yaml:"adopted"`
	Savings int64 `json:"savings" yaml:"savings"`
}

// Inventory walks every eligible or target-format asset. Target-format assets
// without a record are adopted as converted with no original.
func (c *Controller) Inventory(ctx context.Context) (Inventory, error) {
	var inv Inventory
	target := c.opt.TargetMIME()
	all, err := c.store.QueryEligible(ctx, append(append([]string(nil), c.mimes...), target), nil, math.MaxInt32)
	if err != nil {
		return inv, services.Wrap(services.ErrStore, component, "inventory", "list assets", err)
	}
	native, err := c.store.QueryEligible(ctx, []string{target}, nil, math.MaxInt32)
	if err != nil {
		return inv, services.Wrap(services.ErrStore, component, "inventory", "list target-format assets", err)
	}
	isNative := make(map[int64]bool, len(native))
	for _, id := range native {
		isNative[id] = true
	}
	keys := c.opt.Keys()

	for _, id := range all {
		if err := ctx.Err(); err != nil {
			return inv, err
		}
		rec, ok, err := c.opt.Record(ctx, id)
		if err != nil {
			return inv, services.Wrap(services.ErrStore, component, "inventory", "read record", err)
		}
		if ok {
			inv.Managed = append(inv.Managed, id)
			if rec.Restorable() {
				inv.Restorable = append(inv.Restorable, id)
				if raw, ok, _ := c.store.Meta(ctx, id, keys.Savings); ok {
					savings, _ := strconv.ParseInt(raw, 10, 64)
					inv.Savings += savings
				}
			}
			continue
		}
		live, err := c.store.LivePath(ctx, id)
		if err != nil {
			return inv, services.Wrap(services.ErrStore, component, "inventory", "resolve live path", err)
		}
		if _, err := c.store.FileSize(live); err != nil {
			inv.Missing = append(inv.Missing, id)
			continue
		}
		if isNative[id] {
			if err := c.opt.Adopt(ctx, id); err != nil {
				return inv, err
			}
			inv.Adopted++
			inv.Managed = append(inv.Managed, id)
			continue
		}
		if _, failed, _ := c.store.Meta(ctx, id, keys.Failed); failed {
			inv.Failed = append(inv.Failed, id)
			continue
		}
		inv.Pending = append(inv.Pending, id)
	}

	c.logger.Info("inventory complete",
		logging.Int("pending", len(inv.Pending)),
		logging.Int("managed", len(inv.Managed)),
		logging.Int("missing", len(inv.Missing)),
		logging.Int("failed", len(inv.Failed)),
		logging.Int("adopted", inv.Adopted),
		logging.String(logging.FieldEventType, "inventory_complete"),
	)
	return inv, nil
}

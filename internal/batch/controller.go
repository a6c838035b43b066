package batch

import (
	"context"
	"errors"
	"log/slog"

	"imgvault/internal/config"
	"imgvault/internal/logging"
	"imgvault/internal/optimizer"
	"imgvault/internal/services"
)

const component = "batch"

// StepResult reports one RunBatchStep call.
type StepResult struct {
	Done       bool                `json:"done" yaml:"done"`
	Count      int                 `json:"count,omitempty" yaml:"count,omitempty"`
	Optimized  int                 `json:"optimized,omitempty" yaml:"optimized,omitempty"`
	Skipped    int                 `json:"skipped,omitempty" yaml:"skipped,omitempty"`
	Failed     int                 `json:"failed,omitempty" yaml:"failed,omitempty"`
	Savings    int64               `json:"savings,omitempty" yaml:"savings,omitempty"`
	Progress   bool                `json:"progress" yaml:"progress"`
	FirstError string              `json:"first_error,omitempty" yaml:"first_error,omitempty"`
	Outcomes   []optimizer.Outcome `json:"outcomes,omitempty" yaml:"outcomes,omitempty"`
}

// Controller is the request-facing entry point for single and bulk work.
type Controller struct {
	opt    *optimizer.Optimizer
	store  optimizer.MediaStore
	mimes  []string
	limit  int
	logger *slog.Logger
}

// New builds a controller selecting up to limit assets of the given MIME
// types per step.
func New(opt *optimizer.Optimizer, mimes []string, limit int, logger *slog.Logger) (*Controller, error) {
	if opt == nil {
		return nil, errors.New("batch controller requires an optimizer")
	}
	if len(mimes) == 0 {
		return nil, errors.New("batch controller requires eligible mime types")
	}
	if limit <= 0 {
		return nil, errors.New("batch size must be positive")
	}
	return &Controller{
		opt:    opt,
		store:  opt.Store(),
		mimes:  append([]string(nil), mimes...),
		limit:  limit,
		logger: logging.NewComponentLogger(logger, component),
	}, nil
}

// NewFromConfig builds a controller from the batch and conversion sections.
func NewFromConfig(cfg *config.Config, opt *optimizer.Optimizer, logger *slog.Logger) (*Controller, error) {
	return New(opt, cfg.Conversion.EligibleMIMETypes, cfg.Batch.Size, logger)
}

// Optimizer returns the underlying optimizer.
func (c *Controller) Optimizer() *optimizer.Optimizer {
	return c.opt
}

// Limit returns the per-step selection size.
func (c *Controller) Limit() int {
	return c.limit
}

// SelectPending returns up to limit eligible assets that are neither
// converted nor past the failure ceiling, oldest first.
func (c *Controller) SelectPending(ctx context.Context, limit int) ([]int64, error) {
	ids, err := c.store.QueryEligible(ctx, c.mimes, c.opt.Keys().SelectionExcludes(), limit)
	if err != nil {
		return nil, services.Wrap(services.ErrStore, component, "select", "query eligible assets", err)
	}
	return ids, nil
}

// RunBatchStep optimizes the next selection. An empty selection reports
// Done. An unhealthy vault fails the step before any asset is touched.
func (c *Controller) RunBatchStep(ctx context.Context) (StepResult, error) {
	ctx = services.WithOperation(ctx, "batch_step")
	logger := logging.WithContext(ctx, c.logger)

	if !c.opt.VaultHealthy() {
		err := services.Wrap(services.ErrVaultUnhealthy, component, "batch_step", "vault is not writable", nil)
		logging.WarnWithContext(logger, "batch step refused", "batch_vault_unhealthy",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check permissions on the uploads directory and the vault"),
			logging.String(logging.FieldImpact, "no assets converted until the vault is fixed"),
		)
		return StepResult{}, err
	}

	ids, err := c.SelectPending(ctx, c.limit)
	if err != nil {
		return StepResult{}, err
	}
	if len(ids) == 0 {
		logger.Debug("no pending assets")
		return StepResult{Done: true}, nil
	}

	result := StepResult{Outcomes: make([]optimizer.Outcome, 0, len(ids))}
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		result.add(c.opt.Optimize(ctx, id))
	}

	logger.Info("batch step complete",
		logging.Int("count", result.Count),
		logging.Int("optimized", result.Optimized),
		logging.Int("failed", result.Failed),
		logging.Int64("savings_bytes", result.Savings),
		logging.String(logging.FieldEventType, "batch_step_complete"),
	)
	return result, nil
}

func (r *StepResult) add(out optimizer.Outcome) {
	r.Count++
	r.Outcomes = append(r.Outcomes, out)
	switch out.Status {
	case optimizer.StatusOptimized:
		r.Optimized++
		r.Savings += out.Savings
	case optimizer.StatusAlreadyConverted:
		r.Skipped++
	default:
		r.Failed++
		if r.FirstError == "" {
			r.FirstError = out.Message
		}
	}
	if advances(out.Status) {
		r.Progress = true
	}
}

// advances reports whether an outcome moved the asset closer to leaving the
// selection: converted, adopted, or one attempt nearer the ceiling.
func advances(status optimizer.Status) bool {
	switch status {
	case optimizer.StatusOptimized, optimizer.StatusAlreadyConverted,
		optimizer.StatusConversionFailed, optimizer.StatusFileNotFound:
		return true
	default:
		return false
	}
}

// RunSingleStep optimizes one asset.
func (c *Controller) RunSingleStep(ctx context.Context, id int64) optimizer.Outcome {
	return c.opt.Optimize(ctx, id)
}

// Restore restores one asset.
func (c *Controller) Restore(ctx context.Context, id int64) optimizer.Outcome {
	return c.opt.Restore(ctx, id)
}

// RestoreAll restores every asset with a vaulted original.
func (c *Controller) RestoreAll(ctx context.Context) (optimizer.RestoreSummary, error) {
	return c.opt.RestoreAll(ctx)
}

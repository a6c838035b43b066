// Package bulk drives batch steps from the caller side until the library has
// nothing left to convert.
package bulk

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"imgvault/internal/batch"
	"imgvault/internal/logging"
)

// Stepper runs one batch step. batch.Controller and api.Client implement it.
type Stepper interface {
	RunBatchStep(ctx context.Context) (batch.StepResult, error)
}

// StopReason says why Run returned.
type StopReason string

const (
	StopDone      StopReason = "done"
	StopStalled   StopReason = "stalled"
	StopCancelled StopReason = "cancelled"
	StopError     StopReason = "error"
)

// Progress accumulates step results.
type Progress struct {
	Steps      int    `json:"steps" yaml:"steps"`
	Processed  int    `json:"processed" yaml:"processed"`
	Optimized  int    `json:"optimized" yaml:"optimized"`
	Skipped    int    `json:"skipped" yaml:"skipped"`
	Failed     int    `json:"failed" yaml:"failed"`
	Savings    int64  `json:"savings" yaml:"savings"`
	FirstError string `json:"first_error,omitempty" yaml:"first_error,omitempty"`

	Last batch.StepResult `json:"-" yaml:"-"`
}

// Summary is returned by Run.
type Summary struct {
	Progress `yaml:",inline"`
	Reason   StopReason `json:"reason" yaml:"reason"`
}

// Options configures a Runner.
type Options struct {
	// Interval is the minimum time between step starts. Zero disables pacing.
	Interval time.Duration
	// OnStep is called after every non-terminal step.
	OnStep func(Progress)
}

// Runner owns the continue loop.
type Runner struct {
	stepper Stepper
	limiter *rate.Limiter
	onStep  func(Progress)
	logger  *slog.Logger
}

// NewRunner constructs a runner around stepper.
func NewRunner(stepper Stepper, opts Options, logger *slog.Logger) *Runner {
	limit := rate.Inf
	if opts.Interval > 0 {
		limit = rate.Every(opts.Interval)
	}
	return &Runner{
		stepper: stepper,
		limiter: rate.NewLimiter(limit, 1),
		onStep:  opts.OnStep,
		logger:  logging.NewComponentLogger(logger, "bulk"),
	}
}

// Run steps until the stepper reports done, a step makes no progress, the
// context ends, or a step fails. The summary is valid in every case.
func (r *Runner) Run(ctx context.Context) (Summary, error) {
	var summary Summary
	for {
		if err := r.limiter.Wait(ctx); err != nil {
			return r.finish(summary, StopCancelled), ctx.Err()
		}
		res, err := r.stepper.RunBatchStep(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				summary.add(res)
				return r.finish(summary, StopCancelled), err
			}
			return r.finish(summary, StopError), err
		}
		if res.Done {
			return r.finish(summary, StopDone), nil
		}
		summary.add(res)
		if r.onStep != nil {
			r.onStep(summary.Progress)
		}
		if !res.Progress {
			logging.WarnWithContext(r.logger, "bulk run stalled", "bulk_stalled",
				logging.Int("steps", summary.Steps),
				logging.String("first_error", res.FirstError),
				logging.String(logging.FieldErrorHint, "resolve the reported error and run again"),
				logging.String(logging.FieldImpact, "remaining assets left unconverted"),
			)
			return r.finish(summary, StopStalled), nil
		}
	}
}

func (p *Progress) add(res batch.StepResult) {
	if res.Count == 0 && !res.Progress {
		return
	}
	p.Steps++
	p.Processed += res.Count
	p.Optimized += res.Optimized
	p.Skipped += res.Skipped
	p.Failed += res.Failed
	p.Savings += res.Savings
	if p.FirstError == "" {
		p.FirstError = res.FirstError
	}
	p.Last = res
}

func (r *Runner) finish(summary Summary, reason StopReason) Summary {
	summary.Reason = reason
	r.logger.Info("bulk run finished",
		logging.String("reason", string(reason)),
		logging.Int("steps", summary.Steps),
		logging.Int("optimized", summary.Optimized),
		logging.Int("failed", summary.Failed),
		logging.Int64("savings_bytes", summary.Savings),
		logging.String(logging.FieldEventType, "bulk_run_finished"),
	)
	return summary
}

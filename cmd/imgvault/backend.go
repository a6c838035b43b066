package main

import (
	"context"
	"math"

	"imgvault/internal/api"
	"imgvault/internal/app"
	"imgvault/internal/batch"
	"imgvault/internal/optimizer"
)

// backend is the surface shared by the local installation and a remote
// imgvaultd.
type backend interface {
	Optimize(ctx context.Context, id int64) (optimizer.Outcome, error)
	Restore(ctx context.Context, id int64) (optimizer.Outcome, error)
	RunBatchStep(ctx context.Context) (batch.StepResult, error)
	RestoreAll(ctx context.Context) (optimizer.RestoreSummary, error)
	Inventory(ctx context.Context) (batch.Inventory, error)
	Pending(ctx context.Context) (int, error)
}

type localBackend struct {
	app *app.App
}

func (b localBackend) Optimize(ctx context.Context, id int64) (optimizer.Outcome, error) {
	return b.app.Controller.RunSingleStep(ctx, id), nil
}

func (b localBackend) Restore(ctx context.Context, id int64) (optimizer.Outcome, error) {
	return b.app.Controller.Restore(ctx, id), nil
}

func (b localBackend) RunBatchStep(ctx context.Context) (batch.StepResult, error) {
	return b.app.Controller.RunBatchStep(ctx)
}

func (b localBackend) RestoreAll(ctx context.Context) (optimizer.RestoreSummary, error) {
	return b.app.Controller.RestoreAll(ctx)
}

func (b localBackend) Inventory(ctx context.Context) (batch.Inventory, error) {
	return b.app.Controller.Inventory(ctx)
}

func (b localBackend) Pending(ctx context.Context) (int, error) {
	ids, err := b.app.Controller.SelectPending(ctx, math.MaxInt32)
	return len(ids), err
}

type remoteBackend struct {
	client *api.Client
}

func (b remoteBackend) Optimize(ctx context.Context, id int64) (optimizer.Outcome, error) {
	return b.client.Optimize(ctx, id)
}

func (b remoteBackend) Restore(ctx context.Context, id int64) (optimizer.Outcome, error) {
	return b.client.Restore(ctx, id)
}

func (b remoteBackend) RunBatchStep(ctx context.Context) (batch.StepResult, error) {
	return b.client.RunBatchStep(ctx)
}

func (b remoteBackend) RestoreAll(ctx context.Context) (optimizer.RestoreSummary, error) {
	resp, err := b.client.RestoreAll(ctx)
	if err != nil {
		return optimizer.RestoreSummary{}, err
	}
	summary := optimizer.RestoreSummary{Restored: resp.RestoredCount, Skipped: resp.Skipped}
	for _, failed := range resp.Failed {
		summary.Failed = append(summary.Failed, api.ToOutcome(failed))
	}
	return summary, nil
}

func (b remoteBackend) Inventory(ctx context.Context) (batch.Inventory, error) {
	resp, err := b.client.Inventory(ctx)
	if err != nil {
		return batch.Inventory{}, err
	}
	return batch.Inventory{
		Pending:    resp.Pending,
		Managed:    resp.Managed,
		Missing:    resp.Missing,
		Failed:     resp.Failed,
		Restorable: resp.Restorable,
		Adopted:    resp.Adopted,
		Savings:    resp.Savings,
	}, nil
}

func (b remoteBackend) Pending(ctx context.Context) (int, error) {
	status, err := b.client.Status(ctx)
	return status.Pending, err
}

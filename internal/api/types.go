package api

import (
	"imgvault/internal/batch"
	"imgvault/internal/optimizer"
)

// ErrorResponse is the body of every non-2xx answer.
type ErrorResponse struct {
	Message string `json:"message"`
}

// ActionResponse answers optimize and restore.
type ActionResponse struct {
	AssetID int64  `json:"assetId"`
	Success bool   `json:"success"`
	Message string `json:"message"`
	Status  string `json:"status"`
	Savings int64  `json:"savings,omitempty"`
	Path    string `json:"path,omitempty"`
}

// StepResponse answers a batch step. Count is omitted on the terminal step.
type StepResponse struct {
	Done       bool             `json:"done"`
	Count      *int             `json:"count,omitempty"`
	Optimized  int              `json:"optimized,omitempty"`
	Skipped    int              `json:"skipped,omitempty"`
	Failed     int              `json:"failed,omitempty"`
	Savings    int64            `json:"savings,omitempty"`
	Progress   bool             `json:"progress"`
	FirstError string           `json:"firstError,omitempty"`
	Outcomes   []ActionResponse `json:"outcomes,omitempty"`
}

// RestoreAllResponse answers restore-all.
type RestoreAllResponse struct {
	RestoredCount int              `json:"restoredCount"`
	Skipped       int              `json:"skipped"`
	Failed        []ActionResponse `json:"failed,omitempty"`
}

// VaultStatus describes the backup directory.
type VaultStatus struct {
	Root      string `json:"root"`
	Healthy   bool   `json:"healthy"`
	Detail    string `json:"detail,omitempty"`
	Exists    bool   `json:"exists"`
	Files     int    `json:"files"`
	Bytes     int64  `json:"bytes"`
	FreeBytes uint64 `json:"freeBytes"`
}

// StatusResponse answers GET /api/status.
type StatusResponse struct {
	Format    string      `json:"format"`
	BatchSize int         `json:"batchSize"`
	Pending   int         `json:"pending"`
	Vault     VaultStatus `json:"vault"`
}

// InventoryResponse answers POST /api/inventory.
type InventoryResponse struct {
	Pending    []int64 `json:"pending"`
	Managed    []int64 `json:"managed"`
	Missing    []int64 `json:"missing"`
	Failed     []int64 `json:"failed"`
	Restorable []int64 `json:"restorable"`
	Adopted    int     `json:"adopted"`
	Savings    int64   `json:"savings"`
}

// FromOutcome converts an optimizer outcome to its wire form.
func FromOutcome(out optimizer.Outcome) ActionResponse {
	return ActionResponse{
		AssetID: out.AssetID,
		Success: out.Success(),
		Message: out.Message,
		Status:  string(out.Status),
		Savings: out.Savings,
		Path:    out.Path,
	}
}

// ToOutcome is the inverse of FromOutcome. The error value is not carried
// over the wire.
func ToOutcome(resp ActionResponse) optimizer.Outcome {
	return optimizer.Outcome{
		AssetID: resp.AssetID,
		Status:  optimizer.Status(resp.Status),
		Message: resp.Message,
		Savings: resp.Savings,
		Path:    resp.Path,
	}
}

// FromStepResult converts a batch step to its wire form.
func FromStepResult(res batch.StepResult) StepResponse {
	resp := StepResponse{
		Done:       res.Done,
		Optimized:  res.Optimized,
		Skipped:    res.Skipped,
		Failed:     res.Failed,
		Savings:    res.Savings,
		Progress:   res.Progress,
		FirstError: res.FirstError,
	}
	if !res.Done {
		count := res.Count
		resp.Count = &count
	}
	for _, out := range res.Outcomes {
		resp.Outcomes = append(resp.Outcomes, FromOutcome(out))
	}
	return resp
}

// ToStepResult is the inverse of FromStepResult.
func ToStepResult(resp StepResponse) batch.StepResult {
	res := batch.StepResult{
		Done:       resp.Done,
		Optimized:  resp.Optimized,
		Skipped:    resp.Skipped,
		Failed:     resp.Failed,
		Savings:    resp.Savings,
		Progress:   resp.Progress,
		FirstError: resp.FirstError,
	}
	if resp.Count != nil {
		res.Count = *resp.Count
	}
	for _, out := range resp.Outcomes {
		res.Outcomes = append(res.Outcomes, ToOutcome(out))
	}
	return res
}

// FromRestoreSummary converts a restore-all summary to its wire form.
func FromRestoreSummary(summary optimizer.RestoreSummary) RestoreAllResponse {
	resp := RestoreAllResponse{RestoredCount: summary.Restored, Skipped: summary.Skipped}
	for _, out := range summary.Failed {
		resp.Failed = append(resp.Failed, FromOutcome(out))
	}
	return resp
}

// FromInventory converts an inventory to its wire form.
func FromInventory(inv batch.Inventory) InventoryResponse {
	return InventoryResponse{
		Pending:    nonNil(inv.Pending),
		Managed:    nonNil(inv.Managed),
		Missing:    nonNil(inv.Missing),
		Failed:     nonNil(inv.Failed),
		Restorable: nonNil(inv.Restorable),
		Adopted:    inv.Adopted,
		Savings:    inv.Savings,
	}
}

func nonNil(ids []int64) []int64 {
	if ids == nil {
		return []int64{}
	}
	return ids
}

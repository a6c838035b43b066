package preflight

import (
	"context"
	"time"

	"imgvault/internal/config"
)

// StaleTempAge is how old a leftover temp file must be before it is reported.
const StaleTempAge = time.Hour

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string `json:"name" yaml:"name"`
	Passed bool   `json:"passed" yaml:"passed"`
	Detail string `json:"detail" yaml:"detail"`
}

// RunAll executes every preflight check for the given config. v may be nil
// when the vault could not be constructed; that is reported as a failure.
func RunAll(ctx context.Context, cfg *config.Config, v VaultProbe) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Uploads directory", cfg.Paths.UploadsDir),
		CheckDirectoryAccess("Data directory", cfg.Paths.DataDir),
		CheckVault(v),
		CheckEncoder(cfg),
	}
	results = append(results, CheckStaleTemps(ctx, cfg.Paths.UploadsDir, StaleTempAge))
	return results
}

// AllPassed reports whether every result passed.
func AllPassed(results []Result) bool {
	for _, r := range results {
		if !r.Passed {
			return false
		}
	}
	return true
}

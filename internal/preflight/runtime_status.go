package preflight

import (
	"context"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"

	"imgvault/internal/staging"
)

// CheckStaleTemps reports leftover temp files older than maxAge under root.
// Finding some is a failure that "imgvault sweep" resolves.
func CheckStaleTemps(ctx context.Context, root string, maxAge time.Duration) Result {
	const name = "Stale temp files"

	temps, err := staging.ListTemps(ctx, root)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("scan failed (%v)", err)}
	}
	cutoff := time.Now().Add(-maxAge)
	var count int
	var bytes int64
	for _, temp := range temps {
		if temp.ModTime.Before(cutoff) {
			count++
			bytes += temp.Size
		}
	}
	if count == 0 {
		return Result{Name: name, Passed: true, Detail: "none"}
	}
	return Result{Name: name, Detail: fmt.Sprintf("%d files (%s), run imgvault sweep", count, humanize.IBytes(uint64(bytes)))}
}

// Package staging sweeps in-flight files that a crashed imgvault process left
// behind in the upload tree and the vault.
package staging

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"imgvault/internal/fileutil"
	"imgvault/internal/logging"
)

// TempFile describes one leftover temp file.
type TempFile struct {
	Path    string    `json:"path" yaml:"path"`
	ModTime time.Time `json:"mod_time" yaml:"mod_time"`
	Size    int64     `json:"size" yaml:"size"`
}

// CleanStaleResult contains the outcome of a sweep.
type CleanStaleResult struct {
	Removed []TempFile
	Errors  []CleanupError
}

// Bytes returns the total size of the removed files.
func (r CleanStaleResult) Bytes() int64 {
	var total int64
	for _, f := range r.Removed {
		total += f.Size
	}
	return total
}

// CleanupError pairs a path with its cleanup error.
type CleanupError struct {
	Path  string
	Error error
}

// ListTemps returns every file under root whose name carries the imgvault
// temp prefix. A missing root yields no entries.
func ListTemps(ctx context.Context, root string) ([]TempFile, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, nil
	}
	var temps []TempFile
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrPermission) {
				return nil
			}
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() || !strings.HasPrefix(d.Name(), fileutil.TempPrefix) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		temps = append(temps, TempFile{Path: path, ModTime: info.ModTime(), Size: info.Size()})
		return nil
	})
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return temps, err
	}
	return temps, nil
}

// CleanStaleTemps removes imgvault temp files under root older than maxAge.
// Younger files may belong to a conversion that is still running and are
// left alone.
func CleanStaleTemps(ctx context.Context, root string, maxAge time.Duration, logger *slog.Logger) CleanStaleResult {
	result := CleanStaleResult{}

	temps, err := ListTemps(ctx, root)
	if err != nil {
		result.Errors = append(result.Errors, CleanupError{Path: root, Error: err})
	}

	cutoff := time.Now().Add(-maxAge)
	for _, temp := range temps {
		if ctx.Err() != nil {
			break
		}
		if !temp.ModTime.Before(cutoff) {
			continue
		}
		if err := os.Remove(temp.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			result.Errors = append(result.Errors, CleanupError{Path: temp.Path, Error: err})
			logging.WarnWithContext(logger, "failed to remove stale temp file", "temp_cleanup_failed",
				logging.String("path", temp.Path),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check permissions on the upload tree"),
				logging.String(logging.FieldImpact, "disk space not reclaimed"),
			)
			continue
		}
		result.Removed = append(result.Removed, temp)
		if logger != nil {
			logger.Info("removed stale temp file",
				logging.String("path", temp.Path),
				logging.Duration("age", time.Since(temp.ModTime)),
				logging.String(logging.FieldEventType, "temp_cleanup"),
			)
		}
	}

	return result
}

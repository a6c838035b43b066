package library

import (
	"context"
	"io/fs"
	"path/filepath"
	"strings"

	"imgvault/internal/codec"
	"imgvault/internal/fileutil"
	"imgvault/internal/logging"
)

// ScanResult summarises one Scan pass.
type ScanResult struct {
	Added   int `json:"added" yaml:"added"`
	Known   int `json:"known" yaml:"known"`
	Skipped int `json:"skipped" yaml:"skipped"`
}

// Scan walks root and registers every image file not yet in the library.
// Directories for which skipDir returns true (the vault) are not entered.
// Dot files and in-flight temp files are ignored.
func (s *Store) Scan(ctx context.Context, root string, skipDir func(string) bool) (ScanResult, error) {
	var result ScanResult
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			logging.WarnWithContext(s.logger, "scan could not read path", "library_scan_unreadable",
				logging.String("path", path),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check permissions under the uploads directory"),
				logging.String(logging.FieldImpact, "files below this path are not registered"),
			)
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() {
			if path != root && skipDir != nil && skipDir(path) {
				return fs.SkipDir
			}
			return nil
		}
		name := d.Name()
		if strings.HasPrefix(name, ".") || strings.HasPrefix(name, fileutil.TempPrefix) || !d.Type().IsRegular() {
			return nil
		}
		if _, ok := codec.MIMEForPath(path); !ok {
			result.Skipped++
			return nil
		}
		existing, err := s.FindByPath(ctx, path)
		if err != nil {
			return err
		}
		if existing != nil {
			result.Known++
			return nil
		}
		if _, err := s.Add(ctx, path); err != nil {
			return err
		}
		result.Added++
		return nil
	})
	if err != nil {
		return result, err
	}
	s.logger.Info("library scan complete",
		logging.String("root", root),
		logging.Int("added", result.Added),
		logging.Int("known", result.Known),
		logging.Int("skipped", result.Skipped),
		logging.String(logging.FieldEventType, "library_scan_complete"),
	)
	return result, nil
}

package logging

import (
	"errors"
	"fmt"
	"os"
)

// rotateIfLarge renames path to path.1 when it has reached limit bytes, so
// a long-lived install keeps at most two log generations. Rotation happens
// when a logger is opened, not mid-run.
func rotateIfLarge(path string, limit int64) error {
	if limit <= 0 {
		return nil
	}
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("stat log file %s: %w", path, err)
	}
	if info.Size() < limit {
		return nil
	}
	if err := os.Rename(path, path+".1"); err != nil {
		return fmt.Errorf("rotate log file %s: %w", path, err)
	}
	return nil
}

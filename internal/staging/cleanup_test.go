package staging

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"imgvault/internal/fileutil"
	"imgvault/internal/logging"
)

func writeAged(t *testing.T, path string, age time.Duration) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte("partial"), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	stamp := time.Now().Add(-age)
	if err := os.Chtimes(path, stamp, stamp); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
}

func TestCleanStaleTempsInvalidPaths(t *testing.T) {
	for _, dir := range []string{"", "   ", "/nonexistent/path/12345"} {
		result := CleanStaleTemps(context.Background(), dir, time.Hour, logging.NewNop())
		if len(result.Removed) != 0 || len(result.Errors) != 0 {
			t.Errorf("expected empty result for path %q, got %+v", dir, result)
		}
	}
}

func TestCleanStaleTempsRemovesOldTempsOnly(t *testing.T) {
	root := t.TempDir()
	oldTemp := filepath.Join(root, "2026", "01", fileutil.TempPrefix+"convert-1.webp")
	freshTemp := filepath.Join(root, "2026", "02", fileutil.TempPrefix+"convert-2.webp")
	oldImage := filepath.Join(root, "2026", "01", "a.jpg")
	vaultTemp := filepath.Join(root, "imgvault-backups-abcd1234", "2026", fileutil.TempPrefix+"move-3")

	writeAged(t, oldTemp, 2*time.Hour)
	writeAged(t, freshTemp, time.Minute)
	writeAged(t, oldImage, 48*time.Hour)
	writeAged(t, vaultTemp, 3*time.Hour)

	result := CleanStaleTemps(context.Background(), root, time.Hour, logging.NewNop())
	if len(result.Errors) != 0 {
		t.Fatalf("unexpected errors: %+v", result.Errors)
	}
	if len(result.Removed) != 2 {
		t.Fatalf("expected 2 removed, got %d (%+v)", len(result.Removed), result.Removed)
	}
	if result.Bytes() != int64(2*len("partial")) {
		t.Fatalf("expected %d bytes reclaimed, got %d", 2*len("partial"), result.Bytes())
	}
	for _, gone := range []string{oldTemp, vaultTemp} {
		if _, err := os.Stat(gone); !os.IsNotExist(err) {
			t.Errorf("%s should have been removed", gone)
		}
	}
	for _, kept := range []string{freshTemp, oldImage} {
		if _, err := os.Stat(kept); err != nil {
			t.Errorf("%s should still exist: %v", kept, err)
		}
	}
}

func TestListTemps(t *testing.T) {
	root := t.TempDir()
	writeAged(t, filepath.Join(root, fileutil.TempPrefix+"write-1"), 0)
	writeAged(t, filepath.Join(root, "sub", "b.png"), 0)

	temps, err := ListTemps(context.Background(), root)
	if err != nil {
		t.Fatalf("ListTemps: %v", err)
	}
	if len(temps) != 1 {
		t.Fatalf("expected 1 temp, got %d", len(temps))
	}
	if temps[0].Size != int64(len("partial")) {
		t.Fatalf("unexpected size %d", temps[0].Size)
	}
}

func TestListTempsHonoursCancellation(t *testing.T) {
	root := t.TempDir()
	writeAged(t, filepath.Join(root, fileutil.TempPrefix+"write-1"), 0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := ListTemps(ctx, root); err == nil {
		t.Fatal("expected cancellation error")
	}
}

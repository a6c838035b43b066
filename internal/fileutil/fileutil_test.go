package fileutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/sys/unix"
)

func TestCopyFileVerifiedPreservesMode(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.jpg")
	dst := filepath.Join(dir, "dst.jpg")

	if err := os.WriteFile(src, []byte("jpeg bytes"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := CopyFileVerified(src, dst); err != nil {
		t.Fatal(err)
	}
	info, err := os.Stat(dst)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Fatalf("mode mismatch: got %o, want 600", info.Mode().Perm())
	}
	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "jpeg bytes" {
		t.Fatalf("content mismatch: %q", got)
	}
}

func TestCopyFileVerifiedMissingSource(t *testing.T) {
	dir := t.TempDir()
	if err := CopyFileVerified(filepath.Join(dir, "missing"), filepath.Join(dir, "dst")); err == nil {
		t.Fatal("expected error for missing source")
	}
	if _, err := os.Stat(filepath.Join(dir, "dst")); !os.IsNotExist(err) {
		t.Fatal("destination should not exist")
	}
}

func TestMoveFileSameDevice(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a.png")
	dst := filepath.Join(dir, "b.png")
	if err := os.WriteFile(src, []byte("png"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(dst, []byte("stale"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := MoveFile(src, dst); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(src); !os.IsNotExist(err) {
		t.Fatal("source should be gone")
	}
	got, _ := os.ReadFile(dst)
	if string(got) != "png" {
		t.Fatalf("expected stale entry to be replaced, got %q", got)
	}
}

func TestMoveFileCrossDeviceFallback(t *testing.T) {
	original := rename
	calls := 0
	rename = func(oldpath, newpath string) error {
		calls++
		return &os.LinkError{Op: "rename", Old: oldpath, New: newpath, Err: unix.EXDEV}
	}
	t.Cleanup(func() { rename = original })

	srcDir := t.TempDir()
	dstDir := t.TempDir()
	src := filepath.Join(srcDir, "a.jpg")
	dst := filepath.Join(dstDir, "a.jpg")
	if err := os.WriteFile(src, []byte("original bytes"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := MoveFile(src, dst); err != nil {
		t.Fatalf("MoveFile: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected one rename attempt, got %d", calls)
	}
	if _, err := os.Stat(src); !os.IsNotExist(err) {
		t.Fatal("source should be removed after cross-device move")
	}
	got, err := os.ReadFile(dst)
	if err != nil || string(got) != "original bytes" {
		t.Fatalf("unexpected destination content %q: %v", got, err)
	}
	entries, _ := os.ReadDir(dstDir)
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), TempPrefix) {
			t.Fatalf("temp file left behind: %s", entry.Name())
		}
	}
}

func TestMoveFileCrossDeviceKeepsDestinationWhenSourceStays(t *testing.T) {
	originalRename, originalRemove := rename, remove
	rename = func(oldpath, newpath string) error {
		return &os.LinkError{Op: "rename", Old: oldpath, New: newpath, Err: unix.EXDEV}
	}
	remove = func(path string) error {
		return &os.PathError{Op: "remove", Path: path, Err: unix.EACCES}
	}
	t.Cleanup(func() { rename, remove = originalRename, originalRemove })

	srcDir := t.TempDir()
	dstDir := t.TempDir()
	src := filepath.Join(srcDir, "a.jpg")
	dst := filepath.Join(dstDir, "a.jpg")
	if err := os.WriteFile(src, []byte("new upload"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(dst, []byte("vaulted original"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := MoveFile(src, dst); err == nil {
		t.Fatal("expected error when source cannot be removed")
	}
	got, err := os.ReadFile(src)
	if err != nil || string(got) != "new upload" {
		t.Fatalf("source changed: %q, %v", got, err)
	}
	got, err = os.ReadFile(dst)
	if err != nil || string(got) != "vaulted original" {
		t.Fatalf("destination not put back: %q, %v", got, err)
	}
	entries, _ := os.ReadDir(dstDir)
	if len(entries) != 1 {
		t.Fatalf("expected only the destination file, got %d entries", len(entries))
	}
}

func TestMoveFileCrossDeviceReplacesDestination(t *testing.T) {
	original := rename
	rename = func(oldpath, newpath string) error {
		return &os.LinkError{Op: "rename", Old: oldpath, New: newpath, Err: unix.EXDEV}
	}
	t.Cleanup(func() { rename = original })

	srcDir := t.TempDir()
	dstDir := t.TempDir()
	src := filepath.Join(srcDir, "a.jpg")
	dst := filepath.Join(dstDir, "a.jpg")
	if err := os.WriteFile(src, []byte("fresh"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(dst, []byte("stale"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := MoveFile(src, dst); err != nil {
		t.Fatalf("MoveFile: %v", err)
	}
	got, _ := os.ReadFile(dst)
	if string(got) != "fresh" {
		t.Fatalf("expected replacement, got %q", got)
	}
	entries, _ := os.ReadDir(dstDir)
	if len(entries) != 1 {
		t.Fatalf("set-aside file left behind: %d entries", len(entries))
	}
}

func TestMoveFileMissingSource(t *testing.T) {
	dir := t.TempDir()
	if err := MoveFile(filepath.Join(dir, "nope"), filepath.Join(dir, "dst")); err == nil {
		t.Fatal("expected error for missing source")
	}
}

func TestWriteFileAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "secret")
	if err := WriteFileAtomic(path, []byte("abc"), 0o600); err != nil {
		t.Fatal(err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Fatalf("unexpected mode %o", info.Mode().Perm())
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Fatalf("expected only the target file, got %d entries", len(entries))
	}
}

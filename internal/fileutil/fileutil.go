package fileutil

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// TempPrefix marks in-flight files written by imgvault. Anything carrying it
// that is older than a process lifetime is debris from a crash.
const TempPrefix = ".imgvault-"

// Swapped in tests to simulate cross-device moves and undeletable sources.
var (
	rename = os.Rename
	remove = os.Remove
)

// CopyFileVerified streams src to dst with SHA256 + size integrity verification
// and fsyncs dst before returning. dst receives src's permission bits. Removes
// dst on any failure.
func CopyFileVerified(src, dst string) (err error) {
	srcInfo, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("stat source: %w", err)
	}
	srcSize := srcInfo.Size()

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, srcInfo.Mode().Perm())
	if err != nil {
		return err
	}
	defer func() {
		_ = out.Close()
		if err != nil {
			_ = os.Remove(dst)
		}
	}()

	srcHasher := sha256.New()
	dstHasher := sha256.New()
	tee := io.TeeReader(in, srcHasher)
	multi := io.MultiWriter(out, dstHasher)

	written, err := io.Copy(multi, tee)
	if err != nil {
		return err
	}
	if err := out.Sync(); err != nil {
		return fmt.Errorf("sync copy: %w", err)
	}
	if err := out.Close(); err != nil {
		return err
	}

	if written != srcSize {
		return fmt.Errorf("copy size mismatch: source %d bytes, copied %d bytes", srcSize, written)
	}
	if !bytes.Equal(srcHasher.Sum(nil), dstHasher.Sum(nil)) {
		return errors.New("copy hash mismatch: file corrupted during copy")
	}
	return nil
}

// MoveFile moves src to dst, replacing any existing dst. Same-filesystem moves
// are a single rename. Cross-device moves copy into a temp name beside dst and
// verify it. Any file already at dst is set aside, then the copy is renamed
// into place and src removed. If src cannot be removed, the copy is dropped
// and the previous dst put back, so a failed move leaves both paths as they
// were.
func MoveFile(src, dst string) error {
	if _, err := os.Stat(src); err != nil {
		return fmt.Errorf("stat source: %w", err)
	}
	err := rename(src, dst)
	if err == nil {
		return nil
	}
	if !errors.Is(err, unix.EXDEV) {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), TempPrefix+"move-*")
	if err != nil {
		return fmt.Errorf("create move temp: %w", err)
	}
	tmpPath := tmp.Name()
	_ = tmp.Close()

	if err := CopyFileVerified(src, tmpPath); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("cross-device copy: %w", err)
	}

	displaced := ""
	if _, err := os.Lstat(dst); err == nil {
		displaced = dst + ".prev"
		if err := os.Rename(dst, displaced); err != nil {
			_ = os.Remove(tmpPath)
			return fmt.Errorf("cross-device set aside destination: %w", err)
		}
	}
	putBack := func() {
		if displaced != "" {
			_ = os.Rename(displaced, dst)
		}
	}

	if err := os.Rename(tmpPath, dst); err != nil {
		_ = os.Remove(tmpPath)
		putBack()
		return fmt.Errorf("cross-device commit: %w", err)
	}
	if err := remove(src); err != nil {
		_ = os.Remove(dst)
		putBack()
		return fmt.Errorf("cross-device remove source: %w", err)
	}
	if displaced != "" {
		_ = os.Remove(displaced)
	}
	return nil
}

// WriteFileAtomic writes data to a temp file in path's directory and renames
// it over path, so readers never observe a partial file.
func WriteFileAtomic(path string, data []byte, mode os.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), TempPrefix+"write-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpPath) }

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return err
	}
	if err := os.Chmod(tmpPath, mode); err != nil {
		cleanup()
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		cleanup()
		return err
	}
	return nil
}

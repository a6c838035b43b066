package logs

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func writeLog(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}
}

func appendLog(t *testing.T, path, content string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("open append: %v", err)
	}
	defer f.Close()
	if _, err := f.WriteString(content); err != nil {
		t.Fatalf("append log: %v", err)
	}
}

func TestLastLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "imgvault.log")
	writeLog(t, path, "a\nb\nc\n")

	result, err := Last(path, 2, Filter{})
	if err != nil {
		t.Fatalf("Last returned error: %v", err)
	}
	if len(result.Lines) != 2 || result.Lines[0] != "b" || result.Lines[1] != "c" {
		t.Fatalf("unexpected lines: %#v", result.Lines)
	}
	if result.Offset != 6 {
		t.Fatalf("expected offset 6, got %d", result.Offset)
	}

	all, err := Last(path, 10, Filter{})
	if err != nil || len(all.Lines) != 3 {
		t.Fatalf("expected all three lines, got %#v (%v)", all.Lines, err)
	}
}

func TestLastFiltersAndHandlesMissingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "imgvault.log")
	writeLog(t, path, "asset_id=1 ok\nasset_id=2 ok\nasset_id=1 failed\n")

	result, err := Last(path, 5, Filter{Contains: "asset_id=1"})
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Lines) != 2 || result.Lines[1] != "asset_id=1 failed" {
		t.Fatalf("unexpected lines: %#v", result.Lines)
	}

	missing, err := Last(filepath.Join(dir, "none.log"), 5, Filter{})
	if err != nil || len(missing.Lines) != 0 {
		t.Fatalf("missing file should be empty, got %+v (%v)", missing, err)
	}
	if _, err := Last(dir, 5, Filter{}); err == nil {
		t.Fatal("expected error for directory path")
	}
}

func TestReadFromKeepsPartialLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "imgvault.log")
	writeLog(t, path, "one\ntw")

	result, err := ReadFrom(path, 0, Filter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Lines) != 1 || result.Offset != 4 {
		t.Fatalf("unexpected result %+v", result)
	}

	appendLog(t, path, "o\n")
	next, err := ReadFrom(path, result.Offset, Filter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(next.Lines) != 1 || next.Lines[0] != "two" {
		t.Fatalf("unexpected lines %#v", next.Lines)
	}
}

func TestReadFromRestartsAfterTruncation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "imgvault.log")
	writeLog(t, path, "x\n")
	result, err := ReadFrom(path, 500, Filter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Lines) != 1 || result.Lines[0] != "x" {
		t.Fatalf("expected restart from zero, got %+v", result)
	}
}

func TestFollowStreamsAppendedLines(t *testing.T) {
	pollInterval = 50 * time.Millisecond
	t.Cleanup(func() { pollInterval = time.Second })

	path := filepath.Join(t.TempDir(), "imgvault.log")
	writeLog(t, path, "start\n")
	initial, err := Last(path, 1, Filter{})
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	var mu sync.Mutex
	var got []string
	done := make(chan error, 1)
	go func() {
		done <- Follow(ctx, path, initial.Offset, Filter{Contains: "keep"}, func(line string) {
			mu.Lock()
			got = append(got, line)
			mu.Unlock()
		})
	}()

	time.Sleep(100 * time.Millisecond)
	appendLog(t, path, "keep later\ndrop this\nkeep last\n")

	deadline := time.Now().Add(5 * time.Second)
	for {
		mu.Lock()
		n := len(got)
		mu.Unlock()
		if n >= 2 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("follow did not deliver appended lines")
		}
		time.Sleep(20 * time.Millisecond)
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Follow returned error: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 2 || got[0] != "keep later" || got[1] != "keep last" {
		t.Fatalf("unexpected lines %#v", got)
	}
}

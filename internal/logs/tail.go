package logs

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

const maxLineBytes = 1024 * 1024

// pollInterval backs up fsnotify on filesystems that drop events.
var pollInterval = time.Second

// Result holds lines read from a log file and the offset just past them.
type Result struct {
	Lines  []string
	Offset int64
}

// Filter selects lines by substring. An empty filter matches everything.
type Filter struct {
	Contains string
}

// Match reports whether line passes the filter.
func (f Filter) Match(line string) bool {
	return f.Contains == "" || strings.Contains(line, f.Contains)
}

// Last returns up to n trailing lines of path. A missing file is empty.
func Last(path string, n int, filter Filter) (Result, error) {
	file, err := open(path)
	if err != nil || file == nil {
		return Result{}, err
	}
	defer file.Close()

	end, err := file.Seek(0, io.SeekEnd)
	if err != nil {
		return Result{}, fmt.Errorf("seek log file: %w", err)
	}
	if n <= 0 {
		return Result{Offset: end}, nil
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return Result{}, fmt.Errorf("seek log file: %w", err)
	}

	scanner := bufio.NewScanner(io.LimitReader(file, end))
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	ring := make([]string, n)
	count := 0
	for scanner.Scan() {
		line := scanner.Text()
		if !filter.Match(line) {
			continue
		}
		ring[count%n] = line
		count++
	}
	if err := scanner.Err(); err != nil {
		return Result{}, fmt.Errorf("read log file: %w", err)
	}

	kept := min(count, n)
	lines := make([]string, kept)
	for i := range kept {
		lines[i] = ring[(count-kept+i)%n]
	}
	return Result{Lines: lines, Offset: end}, nil
}

// ReadFrom returns the complete lines written after offset. A trailing
// partial line is left for the next call. An offset past the end means the
// file was truncated or replaced, so reading restarts at zero.
func ReadFrom(path string, offset int64, filter Filter) (Result, error) {
	file, err := open(path)
	if err != nil || file == nil {
		return Result{}, err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return Result{Offset: offset}, fmt.Errorf("stat log file: %w", err)
	}
	if offset < 0 || offset > info.Size() {
		offset = 0
	}
	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		return Result{Offset: offset}, fmt.Errorf("seek log file: %w", err)
	}

	result := Result{Offset: offset}
	reader := bufio.NewReaderSize(file, 64*1024)
	for {
		chunk, err := reader.ReadString('\n')
		if err != nil {
			if errors.Is(err, io.EOF) {
				return result, nil
			}
			return result, fmt.Errorf("read log file: %w", err)
		}
		result.Offset += int64(len(chunk))
		line := strings.TrimRight(chunk, "\r\n")
		if filter.Match(line) {
			result.Lines = append(result.Lines, line)
		}
	}
}

// Follow calls emit for each line appended to path after offset until ctx
// is done. The file does not need to exist yet.
func Follow(ctx context.Context, path string, offset int64, filter Filter, emit func(string)) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create log watcher: %w", err)
	}
	defer fsw.Close()
	if err := fsw.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("watch log directory: %w", err)
	}

	drain := func() error {
		res, err := ReadFrom(path, offset, filter)
		if err != nil {
			return err
		}
		offset = res.Offset
		for _, line := range res.Lines {
			emit(line)
		}
		return nil
	}
	if err := drain(); err != nil {
		return err
	}

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != filepath.Clean(path) {
				continue
			}
			if event.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
				offset = 0
				continue
			}
			if err := drain(); err != nil {
				return err
			}
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("log watcher: %w", err)
		case <-ticker.C:
			if err := drain(); err != nil {
				return err
			}
		}
	}
}

func open(path string) (*os.File, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open log file: %w", err)
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("stat log file: %w", err)
	}
	if info.IsDir() {
		file.Close()
		return nil, fmt.Errorf("log path %q is a directory", path)
	}
	return file, nil
}

package daemonctl

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"imgvault/internal/config"
)

// ErrDaemonNotRunning indicates no live imgvaultd process was found.
var ErrDaemonNotRunning = errors.New("daemon not running")

// Pinger is the readiness probe; *api.Client satisfies it.
type Pinger interface {
	Ping(ctx context.Context) error
}

// LaunchOptions controls how imgvaultd is spawned.
type LaunchOptions struct {
	ConfigPath string
	LogLevel   string
	Watch      bool
}

// StartState describes what EnsureStarted did.
type StartState string

const (
	StartStateStarted        StartState = "started"
	StartStateAlreadyRunning StartState = "already_running"
)

// StartResult captures daemon start orchestration state.
type StartResult struct {
	State StartState `json:"state" yaml:"state"`
	PID   int        `json:"pid,omitempty" yaml:"pid,omitempty"`
}

// StopResult captures daemon stop outcome.
type StopResult struct {
	PID        int  `json:"pid" yaml:"pid"`
	ForcedKill bool `json:"forced_kill" yaml:"forced_kill"`
}

// BaseURL turns an api.bind address into a URL the CLI can dial. Wildcard
// hosts are replaced by loopback.
func BaseURL(bind string) string {
	bind = strings.TrimSpace(bind)
	if bind == "" {
		return ""
	}
	host, port, err := net.SplitHostPort(bind)
	if err != nil {
		return "http://" + bind
	}
	switch host {
	case "", "0.0.0.0", "::":
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, port)
}

// ResolveExecutable finds imgvaultd next to the running binary, then on PATH.
func ResolveExecutable() (string, error) {
	if self, err := os.Executable(); err == nil {
		candidate := filepath.Join(filepath.Dir(self), "imgvaultd")
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
	}
	path, err := exec.LookPath("imgvaultd")
	if err != nil {
		return "", fmt.Errorf("locate imgvaultd: %w", err)
	}
	return path, nil
}

// Launch starts a detached imgvaultd process.
func Launch(executablePath string, opts LaunchOptions) (int, error) {
	if strings.TrimSpace(executablePath) == "" {
		return 0, errors.New("resolve executable: executable path is empty")
	}

	var args []string
	if cfg := strings.TrimSpace(opts.ConfigPath); cfg != "" {
		args = append(args, "--config", cfg)
	}
	if level := strings.TrimSpace(opts.LogLevel); level != "" {
		args = append(args, "--log-level", level)
	}
	if opts.Watch {
		args = append(args, "--watch")
	}

	proc := exec.Command(executablePath, args...)
	proc.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if err := proc.Start(); err != nil {
		return 0, fmt.Errorf("launch daemon: %w", err)
	}
	pid := proc.Process.Pid
	return pid, proc.Process.Release()
}

// WaitReady polls p until it answers or timeout passes.
func WaitReady(ctx context.Context, p Pinger, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()
	var lastErr error
	for {
		pingCtx, pingCancel := context.WithTimeout(ctx, time.Second)
		err := p.Ping(pingCtx)
		pingCancel()
		if err == nil {
			return nil
		}
		lastErr = err
		select {
		case <-ctx.Done():
			return fmt.Errorf("daemon failed to start: %w", lastErr)
		case <-ticker.C:
		}
	}
}

// EnsureStarted launches imgvaultd unless a live one is already recorded,
// then waits for its API.
func EnsureStarted(ctx context.Context, cfg *config.Config, p Pinger, executablePath string, opts LaunchOptions, timeout time.Duration) (StartResult, error) {
	if cfg == nil {
		return StartResult{}, errors.New("config is required")
	}
	alive, pid, err := ProcessInfo(cfg.DaemonPIDPath())
	if err != nil {
		return StartResult{}, err
	}
	if alive {
		return StartResult{State: StartStateAlreadyRunning, PID: pid}, nil
	}
	pid, err = Launch(executablePath, opts)
	if err != nil {
		return StartResult{}, err
	}
	if err := WaitReady(ctx, p, timeout); err != nil {
		return StartResult{}, fmt.Errorf("%w (see %s)", err, cfg.LogPath())
	}
	return StartResult{State: StartStateStarted, PID: pid}, nil
}

// ReadPID parses a pid file. A missing file yields 0 and no error.
func ReadPID(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("read daemon pid file %q: %w", path, err)
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return 0, nil
	}
	pid, err := strconv.Atoi(text)
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("daemon pid file %q is corrupt: %q", path, text)
	}
	return pid, nil
}

// ProcessInfo reports whether the pid recorded at pidPath is a live process.
func ProcessInfo(pidPath string) (bool, int, error) {
	pid, err := ReadPID(pidPath)
	if err != nil || pid == 0 {
		return false, 0, err
	}
	return processAlive(pid), pid, nil
}

// Stop sends SIGTERM to the recorded daemon and SIGKILL if it is still
// alive after grace. Stale pid files are removed.
func Stop(cfg *config.Config, grace time.Duration) (StopResult, error) {
	if cfg == nil {
		return StopResult{}, errors.New("config is required")
	}
	pidPath := cfg.DaemonPIDPath()
	alive, pid, err := ProcessInfo(pidPath)
	if err != nil {
		return StopResult{}, err
	}
	if !alive {
		if pid != 0 {
			_ = os.Remove(pidPath)
		}
		return StopResult{}, ErrDaemonNotRunning
	}
	if pid == os.Getpid() {
		return StopResult{}, fmt.Errorf("refusing to signal current process (pid %d)", pid)
	}

	result := StopResult{PID: pid}
	if err := unix.Kill(pid, unix.SIGTERM); err != nil {
		return result, fmt.Errorf("signal daemon process %d: %w", pid, err)
	}
	if waitExit(pid, grace) {
		return result, nil
	}

	if err := unix.Kill(pid, unix.SIGKILL); err != nil && !errors.Is(err, unix.ESRCH) {
		return result, fmt.Errorf("kill daemon process %d: %w", pid, err)
	}
	result.ForcedKill = true
	_ = waitExit(pid, 2*time.Second)
	if err := os.Remove(pidPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return result, fmt.Errorf("remove pid file %q: %w", pidPath, err)
	}
	return result, nil
}

func waitExit(pid int, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for {
		if !processAlive(pid) {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(100 * time.Millisecond)
	}
}

func processAlive(pid int) bool {
	err := unix.Kill(pid, 0)
	return err == nil || errors.Is(err, unix.EPERM)
}

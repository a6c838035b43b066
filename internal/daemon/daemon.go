package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"imgvault/internal/config"
	"imgvault/internal/logging"
	"imgvault/internal/preflight"
	"imgvault/internal/staging"
)

// Server is the API server lifecycle the daemon drives.
type Server interface {
	Listen() error
	Serve() error
	Stop(ctx context.Context) error
	Addr() string
}

// Watcher is the upload watcher lifecycle the daemon drives.
type Watcher interface {
	Start() error
	Run(ctx context.Context) error
	Pending() int
}

// Daemon coordinates the background services and enforces single-instance execution.
type Daemon struct {
	cfg     *config.Config
	logger  *slog.Logger
	server  Server
	watcher Watcher
	vault   preflight.VaultProbe

	lockPath string
	lock     *flock.Flock

	mu        sync.Mutex
	running   atomic.Bool
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	errs      chan error
	startedAt time.Time
}

// Status represents daemon runtime information.
type Status struct {
	Running        bool      `json:"running" yaml:"running"`
	APIAddr        string    `json:"api_addr" yaml:"api_addr"`
	Watching       bool      `json:"watching" yaml:"watching"`
	PendingUploads int       `json:"pending_uploads" yaml:"pending_uploads"`
	LockFilePath   string    `json:"lock_file" yaml:"lock_file"`
	StartedAt      time.Time `json:"started_at,omitzero" yaml:"started_at,omitempty"`
}

// New constructs a daemon. watcher may be nil when convert-on-upload is off.
func New(cfg *config.Config, server Server, watcher Watcher, v preflight.VaultProbe, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || server == nil {
		return nil, errors.New("daemon requires config and api server")
	}

	lockPath := cfg.DaemonLockPath()
	return &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		server:   server,
		watcher:  watcher,
		vault:    v,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
		errs:     make(chan error, 2),
	}, nil
}

// Start acquires the daemon lock, runs preflight, and launches the API
// server and watcher.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.running.Load() {
		return errors.New("daemon already running")
	}

	if err := os.MkdirAll(filepath.Dir(d.lockPath), 0o755); err != nil {
		return fmt.Errorf("create lock directory: %w", err)
	}
	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another imgvaultd instance is already running")
	}

	d.runPreflight(ctx)

	if err := d.server.Listen(); err != nil {
		_ = d.lock.Unlock()
		return fmt.Errorf("listen %s: %w", d.server.Addr(), err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	if d.watcher != nil {
		if err := d.watcher.Start(); err != nil {
			cancel()
			_ = d.server.Stop(context.Background())
			_ = d.lock.Unlock()
			return fmt.Errorf("start watcher: %w", err)
		}
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		if err := d.server.Serve(); err != nil {
			d.errs <- fmt.Errorf("api server: %w", err)
		}
	}()
	if d.watcher != nil {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			if err := d.watcher.Run(runCtx); err != nil {
				d.errs <- fmt.Errorf("watcher: %w", err)
			}
		}()
	}

	d.cancel = cancel
	d.startedAt = time.Now()
	d.running.Store(true)
	d.logger.Info("imgvault daemon started",
		logging.String("lock", d.lockPath),
		logging.String("api_addr", d.server.Addr()),
		logging.Bool("watching", d.watcher != nil),
		logging.String(logging.FieldEventType, "daemon_started"),
	)
	return nil
}

func (d *Daemon) runPreflight(ctx context.Context) {
	for _, result := range preflight.RunAll(ctx, d.cfg, d.vault) {
		if result.Passed {
			continue
		}
		logging.WarnWithContext(d.logger, "preflight check failed", "preflight_failed",
			logging.String("check", result.Name),
			logging.String("detail", result.Detail),
			logging.String(logging.FieldErrorHint, "run imgvault status for details"),
			logging.String(logging.FieldImpact, "affected operations will fail until resolved"),
		)
	}

	swept := staging.CleanStaleTemps(ctx, d.cfg.Paths.UploadsDir, preflight.StaleTempAge, d.logger)
	if len(swept.Removed) > 0 {
		d.logger.Info("stale temp files removed",
			logging.Int("count", len(swept.Removed)),
			logging.Int64("bytes", swept.Bytes()),
			logging.String(logging.FieldEventType, "temp_sweep"),
		)
	}
}

// Errors reports fatal background failures. The channel is never closed.
func (d *Daemon) Errors() <-chan error {
	return d.errs
}

// Stop shuts down the API server and watcher and releases the daemon lock.
func (d *Daemon) Stop(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	if err := d.server.Stop(ctx); err != nil {
		logging.WarnWithContext(d.logger, "api server shutdown failed", "daemon_stop_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "in-flight requests may have been cut off"),
			logging.String(logging.FieldImpact, "clients may need to retry their last call"),
		)
	}
	d.wg.Wait()
	if err := d.lock.Unlock(); err != nil {
		logging.WarnWithContext(d.logger, "failed to release daemon lock", "daemon_lock_release_failed",
			logging.Error(err),
			logging.String("lock", d.lockPath),
			logging.String(logging.FieldErrorHint, "remove the lock file if no daemon is running"),
			logging.String(logging.FieldImpact, "the next start may report another instance"),
		)
	}
	d.running.Store(false)
	d.logger.Info("imgvault daemon stopped", logging.String(logging.FieldEventType, "daemon_stopped"))
}

// Status returns the current daemon status.
func (d *Daemon) Status() Status {
	status := Status{
		Running:      d.running.Load(),
		APIAddr:      d.server.Addr(),
		Watching:     d.watcher != nil,
		LockFilePath: d.lockPath,
	}
	if status.Running {
		d.mu.Lock()
		status.StartedAt = d.startedAt
		d.mu.Unlock()
	}
	if d.watcher != nil {
		status.PendingUploads = d.watcher.Pending()
	}
	return status
}

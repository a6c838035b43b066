package daemon_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"imgvault/internal/api"
	"imgvault/internal/app"
	"imgvault/internal/daemon"
	"imgvault/internal/logging"
	"imgvault/internal/optimizer"
	"imgvault/internal/testsupport"
	"imgvault/internal/watch"
)

type fakeServer struct {
	listenErr error
	stop      chan struct{}
	stopped   atomic.Bool
}

func newFakeServer() *fakeServer { return &fakeServer{stop: make(chan struct{})} }

func (s *fakeServer) Listen() error { return s.listenErr }
func (s *fakeServer) Serve() error {
	<-s.stop
	return nil
}
func (s *fakeServer) Stop(context.Context) error {
	if s.stopped.CompareAndSwap(false, true) {
		close(s.stop)
	}
	return nil
}
func (s *fakeServer) Addr() string { return "127.0.0.1:0" }

type fakeWatcher struct {
	started atomic.Bool
	exited  atomic.Bool
}

func (w *fakeWatcher) Start() error {
	w.started.Store(true)
	return nil
}
func (w *fakeWatcher) Run(ctx context.Context) error {
	<-ctx.Done()
	w.exited.Store(true)
	return nil
}
func (w *fakeWatcher) Pending() int { return 3 }

func TestDaemonStartStop(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	server := newFakeServer()
	watcher := &fakeWatcher{}
	d, err := daemon.New(cfg, server, watcher, nil, logging.NewNop())
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	status := d.Status()
	if !status.Running || !status.Watching || status.PendingUploads != 3 {
		t.Fatalf("unexpected status %+v", status)
	}
	if status.StartedAt.IsZero() {
		t.Fatal("expected start time")
	}
	if !watcher.started.Load() {
		t.Fatal("watcher should be started")
	}

	// Second start should fail
	if err := d.Start(ctx); err == nil {
		t.Fatal("expected second start to fail")
	}

	d.Stop(context.Background())
	if d.Status().Running {
		t.Fatal("expected daemon to be stopped")
	}
	if !server.stopped.Load() || !watcher.exited.Load() {
		t.Fatal("server and watcher should have shut down")
	}

	// The lock is released, so a fresh start succeeds.
	server2 := newFakeServer()
	d2, err := daemon.New(cfg, server2, nil, nil, logging.NewNop())
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	if err := d2.Start(ctx); err != nil {
		t.Fatalf("restart failed: %v", err)
	}
	d2.Stop(context.Background())
}

func TestDaemonSingleInstance(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	first, err := daemon.New(cfg, newFakeServer(), nil, nil, logging.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	if err := first.Start(context.Background()); err != nil {
		t.Fatalf("first start: %v", err)
	}
	t.Cleanup(func() { first.Stop(context.Background()) })

	second, err := daemon.New(cfg, newFakeServer(), nil, nil, logging.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	if err := second.Start(context.Background()); err == nil {
		second.Stop(context.Background())
		t.Fatal("expected second instance to be refused")
	}
}

func TestDaemonListenFailureReleasesLock(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	failing := newFakeServer()
	failing.listenErr = errors.New("address in use")
	d, err := daemon.New(cfg, failing, nil, nil, logging.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	if err := d.Start(context.Background()); err == nil {
		t.Fatal("expected listen failure")
	}

	d2, err := daemon.New(cfg, newFakeServer(), nil, nil, logging.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	if err := d2.Start(context.Background()); err != nil {
		t.Fatalf("lock should have been released: %v", err)
	}
	d2.Stop(context.Background())
}

func TestNewRequiresServer(t *testing.T) {
	if _, err := daemon.New(testsupport.NewConfig(t), nil, nil, nil, nil); err == nil {
		t.Fatal("expected error without server")
	}
}

func TestDaemonServesAPIAndConvertsUploads(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	a, err := app.Open(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("app.Open: %v", err)
	}
	t.Cleanup(func() { _ = a.Close() })

	server := api.NewServerFromConfig(cfg, a.Controller, a.Vault, logging.NewNop())
	ingestor := watch.NewIngestor(a.Library, a.Optimizer, cfg.Conversion.EligibleMIMETypes, logging.NewNop())
	watcher, err := watch.New(cfg.Paths.UploadsDir, watch.Options{
		Settle:  50 * time.Millisecond,
		SkipDir: a.Vault.Contains,
	}, ingestor.HandleStable, logging.NewNop())
	if err != nil {
		t.Fatalf("watch.New: %v", err)
	}

	d, err := daemon.New(cfg, server, watcher, a.Vault, logging.NewNop())
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { d.Stop(context.Background()) })

	client := api.NewClient("http://"+d.Status().APIAddr, cfg.API.Token)
	if err := client.Ping(ctx); err != nil {
		t.Fatalf("ping: %v", err)
	}

	upload := filepath.Join(cfg.Paths.UploadsDir, "2026", "03", "new.jpg")
	testsupport.WriteJPEG(t, upload, 40, 30)

	deadline := time.Now().Add(5 * time.Second)
	for {
		asset, err := a.Library.FindByPath(ctx, filepath.Join(cfg.Paths.UploadsDir, "2026", "03", "new.webp"))
		if err == nil && asset != nil {
			record, ok, err := a.Optimizer.Record(ctx, asset.ID)
			if err != nil {
				t.Fatalf("record: %v", err)
			}
			if !ok || record.Kind != optimizer.StoredAt {
				t.Fatalf("expected stored original, got %+v", record)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("upload was not converted")
		}
		time.Sleep(25 * time.Millisecond)
	}
}

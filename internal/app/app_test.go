package app_test

import (
	"context"
	"path/filepath"
	"testing"

	"imgvault/internal/app"
	"imgvault/internal/logging"
	"imgvault/internal/notifications"
	"imgvault/internal/optimizer"
	"imgvault/internal/testsupport"
)

func TestOpenWiresAStackThatConverts(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	a, err := app.Open(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("app.Open: %v", err)
	}
	t.Cleanup(func() { _ = a.Close() })

	src := filepath.Join(cfg.Paths.UploadsDir, "2026", "01", "a.jpg")
	testsupport.WriteJPEG(t, src, 64, 48)
	asset := testsupport.AddAsset(t, a.Library, src)

	out := a.Controller.RunSingleStep(context.Background(), asset.ID)
	if out.Status != optimizer.StatusOptimized {
		t.Fatalf("expected optimized, got %s: %s", out.Status, out.Message)
	}
	if want := filepath.Join(cfg.Paths.UploadsDir, "2026", "01", "a.webp"); out.Path != want {
		t.Fatalf("expected live path %q, got %q", want, out.Path)
	}
	if notifications.Enabled(a.Notifier) {
		t.Fatal("notifier should be a noop without a topic")
	}
}

func TestOpenEnablesNtfyWhenTopicSet(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Notifications.NtfyTopic = "http://127.0.0.1:1/imgvault"
	a, err := app.Open(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("app.Open: %v", err)
	}
	t.Cleanup(func() { _ = a.Close() })
	if !notifications.Enabled(a.Notifier) {
		t.Fatal("expected ntfy notifier")
	}
}

func TestOpenRejectsNilConfig(t *testing.T) {
	if _, err := app.Open(nil, nil); err == nil {
		t.Fatal("expected error for nil config")
	}
}

package optimizer_test

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"imgvault/internal/library"
	"imgvault/internal/logging"
	"imgvault/internal/optimizer"
	"imgvault/internal/testsupport"
	"imgvault/internal/vault"
)

var (
	_ optimizer.MediaStore = (*library.Store)(nil)
	_ optimizer.MetaPurger = (*library.Store)(nil)
	_ optimizer.MediaStore = (*testsupport.MemStore)(nil)
	_ optimizer.Vault      = (*vault.Vault)(nil)
)

func TestRoundTripThroughLibraryStore(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithFormat("avif"))
	store := testsupport.MustOpenLibrary(t, cfg)
	v, err := vault.NewFromConfig(cfg, logging.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	opt, err := optimizer.NewFromConfig(cfg, store, v, logging.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	live := filepath.Join(cfg.Paths.UploadsDir, "2026", "03", "p.png")
	original := testsupport.WritePNG(t, live, testsupport.Transparent(40, 20))
	asset := testsupport.AddAsset(t, store, live)

	out := opt.Optimize(ctx, asset.ID)
	if out.Status != optimizer.StatusOptimized {
		t.Fatalf("optimize: %+v", out)
	}
	got, err := store.Get(ctx, asset.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.MIME != "image/avif" || filepath.Ext(got.Path) != ".avif" {
		t.Fatalf("asset not switched: %+v", got)
	}
	if size, _ := store.FileSize(got.Path); got.Size != size {
		t.Fatalf("derived data not refreshed: %+v", got)
	}
	if _, ok, _ := store.Meta(ctx, asset.ID, "_avif_original_path"); !ok {
		t.Fatal("record missing")
	}
	pending, err := store.QueryEligible(ctx, cfg.Conversion.EligibleMIMETypes, opt.Keys().SelectionExcludes(), 10)
	if err != nil || len(pending) != 0 {
		t.Fatalf("converted asset must not be selectable: %v %v", pending, err)
	}

	if out := opt.Restore(ctx, asset.ID); out.Status != optimizer.StatusRestored {
		t.Fatalf("restore: %+v", out)
	}
	got, _ = store.Get(ctx, asset.ID)
	if got.MIME != "image/png" || got.Path != live {
		t.Fatalf("asset not restored: %+v", got)
	}
	if !bytes.Equal(testsupport.ReadFile(t, live), original) {
		t.Fatal("restored bytes differ")
	}
}

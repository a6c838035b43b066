package watch_test

import (
	"context"
	"path/filepath"
	"testing"

	"imgvault/internal/logging"
	"imgvault/internal/optimizer"
	"imgvault/internal/testsupport"
	"imgvault/internal/watch"
)

type recordingConverter struct {
	ids []int64
}

func (r *recordingConverter) Optimize(_ context.Context, id int64) optimizer.Outcome {
	r.ids = append(r.ids, id)
	return optimizer.Outcome{AssetID: id, Status: optimizer.StatusOptimized}
}

func TestIngestorRegistersAndConvertsNewUploads(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenLibrary(t, cfg)
	conv := &recordingConverter{}
	ing := watch.NewIngestor(store, conv, cfg.Conversion.EligibleMIMETypes, logging.NewNop())
	ctx := context.Background()

	fresh := filepath.Join(cfg.Paths.UploadsDir, "2026", "05", "new.jpg")
	testsupport.WriteJPEG(t, fresh, 16, 16)
	ing.HandleStable(ctx, fresh)

	asset, err := store.FindByPath(ctx, fresh)
	if err != nil || asset == nil {
		t.Fatalf("upload not registered: %v", err)
	}
	if len(conv.ids) != 1 || conv.ids[0] != asset.ID {
		t.Fatalf("expected one optimize call for %d, got %v", asset.ID, conv.ids)
	}

	ing.HandleStable(ctx, fresh)
	if len(conv.ids) != 1 {
		t.Fatal("known files must not be optimized again")
	}

	output := filepath.Join(cfg.Paths.UploadsDir, "2026", "05", "other.webp")
	testsupport.WriteGarbage(t, output)
	ing.HandleStable(ctx, output)
	if asset, _ := store.FindByPath(ctx, output); asset != nil {
		t.Fatal("converter output must not be registered")
	}
}

package batch_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"imgvault/internal/batch"
	"imgvault/internal/config"
	"imgvault/internal/logging"
	"imgvault/internal/optimizer"
	"imgvault/internal/services"
	"imgvault/internal/testsupport"
	"imgvault/internal/vault"
)

type fixture struct {
	cfg   *config.Config
	store *testsupport.MemStore
	vault *vault.Vault
	ctrl  *batch.Controller
}

func newFixture(t *testing.T, opts ...testsupport.ConfigOption) *fixture {
	t.Helper()
	cfg := testsupport.NewConfig(t, opts...)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatal(err)
	}
	v, err := vault.NewFromConfig(cfg, logging.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	store := testsupport.NewMemStore()
	opt, err := optimizer.NewFromConfig(cfg, store, v, logging.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	ctrl, err := batch.NewFromConfig(cfg, opt, logging.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	return &fixture{cfg: cfg, store: store, vault: v, ctrl: ctrl}
}

func (f *fixture) addJPEG(t *testing.T, id int64) string {
	t.Helper()
	path := filepath.Join(f.cfg.Paths.UploadsDir, "2026", "01", fmt.Sprintf("img-%02d.jpg", id))
	testsupport.WriteJPEG(t, path, 48, 32)
	f.store.Put(id, path, "image/jpeg")
	return path
}

func (f *fixture) addGarbage(t *testing.T, id int64) string {
	t.Helper()
	path := filepath.Join(f.cfg.Paths.UploadsDir, fmt.Sprintf("bad-%02d.jpg", id))
	testsupport.WriteGarbage(t, path)
	f.store.Put(id, path, "image/jpeg")
	return path
}

func TestRunBatchStepFinishesInCeilSteps(t *testing.T) {
	const pending, size = 12, 5
	f := newFixture(t, testsupport.WithBatchSize(size))
	for id := int64(1); id <= pending; id++ {
		f.addJPEG(t, id)
	}
	ctx := context.Background()

	steps, optimized := 0, 0
	for {
		res, err := f.ctrl.RunBatchStep(ctx)
		if err != nil {
			t.Fatalf("step %d: %v", steps+1, err)
		}
		if res.Done {
			break
		}
		steps++
		optimized += res.Optimized
		if res.Count > size || !res.Progress {
			t.Fatalf("step %d: unexpected result %+v", steps, res)
		}
		if steps > pending {
			t.Fatal("batch did not terminate")
		}
	}
	if want := (pending + size - 1) / size; steps != want {
		t.Fatalf("expected %d steps, got %d", want, steps)
	}
	if optimized != pending {
		t.Fatalf("expected %d optimized, got %d", pending, optimized)
	}
}

func TestRunBatchStepReportsFirstErrorAndStopsAtCeiling(t *testing.T) {
	f := newFixture(t, testsupport.WithMaxAttempts(2))
	f.addGarbage(t, 1)
	f.addJPEG(t, 2)
	f.addGarbage(t, 3)
	ctx := context.Background()

	first, err := f.ctrl.RunBatchStep(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if first.Count != 3 || first.Optimized != 1 || first.Failed != 2 || first.FirstError == "" {
		t.Fatalf("unexpected first step %+v", first)
	}
	if first.Outcomes[0].AssetID != 1 || first.Outcomes[0].Status != optimizer.StatusConversionFailed {
		t.Fatalf("outcomes should follow selection order: %+v", first.Outcomes)
	}

	second, err := f.ctrl.RunBatchStep(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if second.Count != 2 || second.Failed != 2 || !second.Progress {
		t.Fatalf("unexpected second step %+v", second)
	}

	third, err := f.ctrl.RunBatchStep(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !third.Done {
		t.Fatalf("assets at the ceiling must leave the selection: %+v", third)
	}
}

func TestRunBatchStepRefusesUnhealthyVault(t *testing.T) {
	f := newFixture(t)
	path := f.addJPEG(t, 1)
	if err := os.WriteFile(f.vault.Root(), []byte("blocker"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := f.ctrl.RunBatchStep(context.Background())
	if !errors.Is(err, services.ErrVaultUnhealthy) {
		t.Fatalf("expected unhealthy vault, got %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatal("asset must not be touched")
	}
	if got, _ := f.store.LivePath(context.Background(), 1); got != path {
		t.Fatal("bookkeeping must not change")
	}
}

func TestRunBatchStepEmptyIsDone(t *testing.T) {
	f := newFixture(t)
	res, err := f.ctrl.RunBatchStep(context.Background())
	if err != nil || !res.Done || res.Count != 0 {
		t.Fatalf("unexpected %+v %v", res, err)
	}
}

func TestRunBatchStepHonoursCancellation(t *testing.T) {
	f := newFixture(t)
	f.addJPEG(t, 1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := f.ctrl.RunBatchStep(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	if res.Count != 0 {
		t.Fatalf("no asset should run after cancellation: %+v", res)
	}
}

func TestSelectPendingSkipsConvertedAndFailed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for id := int64(1); id <= 4; id++ {
		f.addJPEG(t, id)
	}
	keys := f.ctrl.Optimizer().Keys()
	_ = f.store.SetMeta(ctx, 2, keys.OriginalPath, "external")
	_ = f.store.SetMeta(ctx, 3, keys.Failed, "2026-01-01T00:00:00Z")

	ids, err := f.ctrl.SelectPending(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(ids, []int64{1, 4}) {
		t.Fatalf("unexpected selection %v", ids)
	}
	ids, _ = f.ctrl.SelectPending(ctx, 1)
	if !slices.Equal(ids, []int64{1}) {
		t.Fatalf("limit not applied: %v", ids)
	}
}

func TestSingleStepAndRestore(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	path := f.addJPEG(t, 1)

	if out := f.ctrl.RunSingleStep(ctx, 1); out.Status != optimizer.StatusOptimized {
		t.Fatalf("single step: %+v", out)
	}
	if out := f.ctrl.Restore(ctx, 1); out.Status != optimizer.StatusRestored {
		t.Fatalf("restore: %+v", out)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("original not back: %v", err)
	}
	summary, err := f.ctrl.RestoreAll(ctx)
	if err != nil || summary.Restored != 0 {
		t.Fatalf("nothing left to restore: %+v %v", summary, err)
	}
}

func TestInventory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addJPEG(t, 1)
	f.addJPEG(t, 2)
	f.store.Put(3, filepath.Join(f.cfg.Paths.UploadsDir, "gone.jpg"), "image/jpeg")
	native := filepath.Join(f.cfg.Paths.UploadsDir, "native.webp")
	testsupport.WriteGarbage(t, native)
	f.store.Put(4, native, "image/webp")
	f.addJPEG(t, 5)
	keys := f.ctrl.Optimizer().Keys()
	_ = f.store.SetMeta(ctx, 5, keys.Failed, "2026-01-01T00:00:00Z")
	f.store.Put(6, filepath.Join(f.cfg.Paths.UploadsDir, "notes.gif"), "image/gif")

	if out := f.ctrl.RunSingleStep(ctx, 2); out.Status != optimizer.StatusOptimized {
		t.Fatalf("optimize: %+v", out)
	}

	inv, err := f.ctrl.Inventory(ctx)
	if err != nil {
		t.Fatal(err)
	}
	checks := []struct {
		name string
		got  []int64
		want []int64
	}{
		{"pending", inv.Pending, []int64{1}},
		{"managed", inv.Managed, []int64{2, 4}},
		{"missing", inv.Missing, []int64{3}},
		{"failed", inv.Failed, []int64{5}},
		{"restorable", inv.Restorable, []int64{2}},
	}
	for _, c := range checks {
		if !slices.Equal(c.got, c.want) {
			t.Fatalf("%s: got %v want %v", c.name, c.got, c.want)
		}
	}
	if inv.Adopted != 1 {
		t.Fatalf("expected one adopted asset, got %d", inv.Adopted)
	}
	if got := f.store.MetaValue(4, keys.OriginalPath); got != "external" {
		t.Fatalf("adopted asset should carry a no-original record, got %q", got)
	}

	again, err := f.ctrl.Inventory(ctx)
	if err != nil || again.Adopted != 0 {
		t.Fatalf("adoption must be one-off: %+v %v", again, err)
	}
}

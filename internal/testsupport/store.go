package testsupport

import (
	"context"
	"testing"

	"imgvault/internal/config"
	"imgvault/internal/library"
	"imgvault/internal/logging"
)

// MustOpenLibrary opens a library.Store for tests and registers cleanup.
func MustOpenLibrary(t testing.TB, cfg *config.Config) *library.Store {
	t.Helper()

	store, err := library.Open(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("library.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// AddAsset registers path in the library.
func AddAsset(t testing.TB, store *library.Store, path string) *library.Asset {
	t.Helper()

	asset, err := store.Add(context.Background(), path)
	if err != nil {
		t.Fatalf("store.Add: %v", err)
	}
	return asset
}

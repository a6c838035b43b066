package api_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"imgvault/internal/api"
	"imgvault/internal/batch"
	"imgvault/internal/bulk"
	"imgvault/internal/config"
	"imgvault/internal/logging"
	"imgvault/internal/optimizer"
	"imgvault/internal/services"
	"imgvault/internal/testsupport"
	"imgvault/internal/vault"
)

const token = "s3cret"

type stack struct {
	cfg    *config.Config
	store  *testsupport.MemStore
	vault  *vault.Vault
	server *httptest.Server
	client *api.Client
}

func newStack(t *testing.T) *stack {
	t.Helper()
	cfg := testsupport.NewConfig(t, testsupport.WithAPIToken(token), testsupport.WithBatchSize(2))
	require.NoError(t, cfg.EnsureDirectories())
	v, err := vault.NewFromConfig(cfg, logging.NewNop())
	require.NoError(t, err)
	store := testsupport.NewMemStore()
	opt, err := optimizer.NewFromConfig(cfg, store, v, logging.NewNop())
	require.NoError(t, err)
	ctrl, err := batch.NewFromConfig(cfg, opt, logging.NewNop())
	require.NoError(t, err)

	srv := api.NewServerFromConfig(cfg, ctrl, v, logging.NewNop())
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return &stack{cfg: cfg, store: store, vault: v, server: ts, client: api.NewClient(ts.URL, token)}
}

func (s *stack) addJPEG(t *testing.T, id int64) string {
	t.Helper()
	path := filepath.Join(s.cfg.Paths.UploadsDir, "2026", "01", fmt.Sprintf("a%d.jpg", id))
	testsupport.WriteJPEG(t, path, 64, 48)
	s.store.Put(id, path, "image/jpeg")
	return path
}

func TestPingNeedsNoToken(t *testing.T) {
	s := newStack(t)
	require.NoError(t, api.NewClient(s.server.URL, "").Ping(context.Background()))
}

func TestAPIRequiresBearerToken(t *testing.T) {
	s := newStack(t)

	_, err := api.NewClient(s.server.URL, "wrong").Status(context.Background())
	require.ErrorIs(t, err, services.ErrConfiguration)

	resp, err := http.Post(s.server.URL+"/api/batch/step", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	require.GreaterOrEqual(t, resp.StatusCode, 400)
	require.Less(t, resp.StatusCode, 500)
}

func TestOptimizeAndRestoreOverHTTP(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()
	path := s.addJPEG(t, 42)

	out, err := s.client.Optimize(ctx, 42)
	require.NoError(t, err)
	require.Equal(t, optimizer.StatusOptimized, out.Status)
	require.True(t, out.Success())
	require.Equal(t, filepath.Join(filepath.Dir(path), "a42.webp"), out.Path)

	again, err := s.client.Optimize(ctx, 42)
	require.NoError(t, err)
	require.Equal(t, optimizer.StatusAlreadyConverted, again.Status)

	back, err := s.client.Restore(ctx, 42)
	require.NoError(t, err)
	require.Equal(t, optimizer.StatusRestored, back.Status)
	require.FileExists(t, path)

	missing, err := s.client.Restore(ctx, 42)
	require.NoError(t, err, "domain failures are not transport errors")
	require.False(t, missing.Success())
	require.Equal(t, optimizer.StatusNoBackupFound, missing.Status)
	require.NotEmpty(t, missing.Message)
}

func TestInvalidAssetID(t *testing.T) {
	s := newStack(t)
	req, err := http.NewRequest(http.MethodPost, s.server.URL+"/api/assets/abc/optimize", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestBulkRunnerDrivesRemoteSteps(t *testing.T) {
	s := newStack(t)
	for id := int64(1); id <= 5; id++ {
		s.addJPEG(t, id)
	}

	var steps []int
	runner := bulk.NewRunner(s.client, bulk.Options{OnStep: func(p bulk.Progress) {
		steps = append(steps, p.Last.Count)
	}}, logging.NewNop())
	summary, err := runner.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, bulk.StopDone, summary.Reason)
	require.Equal(t, 5, summary.Optimized)
	require.Equal(t, []int{2, 2, 1}, steps)

	status, err := s.client.Status(context.Background())
	require.NoError(t, err)
	require.Zero(t, status.Pending)
	require.Equal(t, "webp", status.Format)
	require.True(t, status.Vault.Healthy)
	require.Equal(t, 5, status.Vault.Files)

	restored, err := s.client.RestoreAll(context.Background())
	require.NoError(t, err)
	require.Equal(t, 5, restored.RestoredCount)
	require.Empty(t, restored.Failed)
}

func TestBatchStepWithUnhealthyVault(t *testing.T) {
	s := newStack(t)
	s.addJPEG(t, 1)
	require.NoError(t, os.WriteFile(s.vault.Root(), []byte("blocker"), 0o644))

	_, err := s.client.RunBatchStep(context.Background())
	require.ErrorIs(t, err, services.ErrVaultUnhealthy)

	status, err := s.client.Status(context.Background())
	require.NoError(t, err)
	require.False(t, status.Vault.Healthy)
	require.NotEmpty(t, status.Vault.Detail)
}

func TestTerminalStepOmitsCount(t *testing.T) {
	s := newStack(t)
	req, err := http.NewRequest(http.MethodPost, s.server.URL+"/api/batch/step", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-Request-ID", "req-123")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "req-123", resp.Header.Get("X-Request-ID"))
	var body map[string]any
	require.NoError(t, decodeJSON(resp, &body))
	require.Equal(t, true, body["done"])
	require.NotContains(t, body, "count")
}

func TestInventoryOverHTTP(t *testing.T) {
	s := newStack(t)
	s.addJPEG(t, 1)
	s.store.Put(2, filepath.Join(s.cfg.Paths.UploadsDir, "gone.png"), "image/png")

	inv, err := s.client.Inventory(context.Background())
	require.NoError(t, err)
	require.Equal(t, []int64{1}, inv.Pending)
	require.Equal(t, []int64{2}, inv.Missing)
	require.Empty(t, inv.Managed)
}

package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"imgvault/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// The uploads directory is created; data and log directories are left to
// EnsureDirectories.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.UploadsDir = filepath.Join(base, "uploads")
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.LogDir = filepath.Join(base, "data", "logs")
	cfgVal.Vault.Secret = "test-secret"
	cfgVal.Metadata.Namespace = cfgVal.Conversion.TargetFormat
	cfgVal.API.Bind = "127.0.0.1:0"
	cfgVal.Batch.StepIntervalMS = 0

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}
	for _, opt := range opts {
		opt(builder)
	}

	if err := os.MkdirAll(builder.cfg.Paths.UploadsDir, 0o755); err != nil {
		t.Fatalf("mkdir uploads: %v", err)
	}
	return builder.cfg
}

// WithFormat sets the target format and the matching metadata namespace.
func WithFormat(format string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Conversion.TargetFormat = format
		b.cfg.Metadata.Namespace = format
	}
}

// WithBatchSize overrides the batch size.
func WithBatchSize(size int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Batch.Size = size
	}
}

// WithMaxAttempts overrides the failure ceiling.
func WithMaxAttempts(n int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Conversion.MaxAttempts = n
	}
}

// WithAPIToken sets the API bearer token.
func WithAPIToken(token string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.API.Token = token
	}
}

// WithStubbedBinaries writes stub executables that exit 0 for the provided
// names and prepends them to PATH.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(b *configBuilder) {
		for _, name := range names {
			WriteStubBinary(b.t, filepath.Join(b.baseDir, "bin"), name, "#!/bin/sh\nexit 0\n")
		}
		PrependPath(b.t, filepath.Join(b.baseDir, "bin"))
	}
}

// WriteStubBinary writes an executable shell script named name into dir.
func WriteStubBinary(t testing.TB, dir, name, script string) string {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir bin dir: %v", err)
	}
	target := filepath.Join(dir, name)
	if err := os.WriteFile(target, []byte(script), 0o755); err != nil {
		t.Fatalf("write stub %s: %v", name, err)
	}
	return target
}

// PrependPath puts dir first on PATH for the duration of the test.
func PrependPath(t testing.TB, dir string) {
	t.Helper()
	oldPath := os.Getenv("PATH")
	if err := os.Setenv("PATH", dir+string(os.PathListSeparator)+oldPath); err != nil {
		t.Fatalf("set PATH: %v", err)
	}
	t.Cleanup(func() {
		_ = os.Setenv("PATH", oldPath)
	})
}

package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Supported target formats.
const (
	FormatWebP = "webp"
	FormatAVIF = "avif"
)

// Supported encoder backends.
const (
	BackendBuiltin  = "builtin"
	BackendExternal = "external"
)

// Paths contains directory configuration.
type Paths struct {
	UploadsDir string `toml:"uploads_dir"`
	DataDir    string `toml:"data_dir"`
	LogDir     string `toml:"log_dir"`
}

// Vault contains configuration for the original-file backup directory.
type Vault struct {
	// Secret seeds the hashed vault directory name. When empty the vault
	// package generates one under data_dir on first use.
	Secret    string `toml:"secret"`
	DirPrefix string `toml:"dir_prefix"`
}

// Conversion contains encoder settings.
type Conversion struct {
	TargetFormat      string   `toml:"target_format"`
	Quality           int      `toml:"quality"`
	EligibleMIMETypes []string `toml:"eligible_mime_types"`
	MemoryLimitMiB    int      `toml:"memory_limit_mib"`
	Backend           string   `toml:"backend"`
	// MaxAttempts is how many failed optimize attempts an asset may accrue
	// before batch selection skips it.
	MaxAttempts int `toml:"max_attempts"`
}

// Batch contains bulk-processing settings.
type Batch struct {
	Size           int `toml:"size"`
	StepIntervalMS int `toml:"step_interval_ms"`
}

// Metadata contains the per-asset metadata key namespace.
type Metadata struct {
	Namespace string `toml:"namespace"`
}

// API contains the HTTP API server settings.
type API struct {
	Bind  string `toml:"bind"`
	Token string `toml:"token"`
}

// Watch contains convert-on-upload settings.
type Watch struct {
	Enabled       bool `toml:"enabled"`
	SettleSeconds int  `toml:"settle_seconds"`
}

// Notifications contains ntfy delivery settings.
type Notifications struct {
	NtfyTopic             string `toml:"ntfy_topic"`
	RequestTimeoutSeconds int    `toml:"request_timeout_seconds"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
	// MaxSizeMiB rotates imgvault.log to imgvault.log.1 at startup once it
	// reaches this size.
	MaxSizeMiB int `toml:"max_size_mib"`
}

// Config encapsulates all configuration values for imgvault.
//
// Configuration sections by subsystem:
//   - Paths: upload tree, data directory (database, locks, secret), logs
//   - Vault: hashed backup directory naming
//   - Conversion: target format, quality, eligible inputs, encoder backend
//   - Batch: bulk step size and caller-side pacing
//   - Metadata: namespace for per-asset metadata keys
//   - API: HTTP server bind address and bearer token
//   - Watch: convert-on-upload watcher
//   - Notifications: ntfy alerts for data-loss risk and bulk completion
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Vault         Vault         `toml:"vault"`
	Conversion    Conversion    `toml:"conversion"`
	Batch         Batch         `toml:"batch"`
	Metadata      Metadata      `toml:"metadata"`
	API           API           `toml:"api"`
	Watch         Watch         `toml:"watch"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/imgvault/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	// A missing .env is the common case.
	_ = godotenv.Load()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("imgvault.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the data, lock, and log directories. The uploads
// directory is owned by the host media library and is never created here.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.LockDir(), c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// DatabasePath returns the media library SQLite file location.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.DataDir, defaultDatabaseFileName)
}

// LockDir returns the directory holding per-asset advisory lock files.
func (c *Config) LockDir() string {
	return filepath.Join(c.Paths.DataDir, "locks")
}

// DaemonLockPath returns the single-instance lock held by imgvaultd.
func (c *Config) DaemonLockPath() string {
	return filepath.Join(c.Paths.DataDir, "imgvaultd.lock")
}

// DaemonPIDPath returns the file imgvaultd writes its process id to.
func (c *Config) DaemonPIDPath() string {
	return filepath.Join(c.Paths.DataDir, "imgvaultd.pid")
}

// SecretPath returns the file the generated vault secret is persisted to.
func (c *Config) SecretPath() string {
	return filepath.Join(c.Paths.DataDir, "vault.secret")
}

// TargetMIME returns the MIME type produced by conversion.
func (c *Config) TargetMIME() string {
	return "image/" + c.Conversion.TargetFormat
}

// MemoryLimitBytes returns the decode/encode working-set bound.
func (c *Config) MemoryLimitBytes() int64 {
	return int64(c.Conversion.MemoryLimitMiB) * 1024 * 1024
}

// StepInterval returns the minimum pause between caller-driven batch steps.
func (c *Config) StepInterval() time.Duration {
	return time.Duration(c.Batch.StepIntervalMS) * time.Millisecond
}

// SettleDuration returns how long an uploaded file must stay unchanged before
// the watcher hands it to the optimizer.
func (c *Config) SettleDuration() time.Duration {
	return time.Duration(c.Watch.SettleSeconds) * time.Second
}

// LogPath returns the daemon and CLI log file.
func (c *Config) LogPath() string {
	if c.Paths.LogDir == "" {
		return ""
	}
	return filepath.Join(c.Paths.LogDir, "imgvault.log")
}

// LogMaxBytes returns the rotation threshold for the log file.
func (c *Config) LogMaxBytes() int64 {
	return int64(c.Logging.MaxSizeMiB) * 1024 * 1024
}

// NotificationTimeout bounds a single ntfy request.
func (c *Config) NotificationTimeout() time.Duration {
	return time.Duration(c.Notifications.RequestTimeoutSeconds) * time.Second
}

// CWebPBinary returns the external WebP encoder executable name.
func (c *Config) CWebPBinary() string {
	return "cwebp"
}

// AVIFEncBinary returns the external AVIF encoder executable name.
func (c *Config) AVIFEncBinary() string {
	return "avifenc"
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeVault()
	c.normalizeConversion()
	c.normalizeBatch()
	c.normalizeMetadata()
	c.normalizeAPI()
	c.normalizeWatch()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.UploadsDir) == "" {
		c.Paths.UploadsDir = defaultUploadsDir
	}
	if c.Paths.UploadsDir, err = expandPath(c.Paths.UploadsDir); err != nil {
		return fmt.Errorf("paths.uploads_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeVault() {
	c.Vault.Secret = strings.TrimSpace(c.Vault.Secret)
	if c.Vault.Secret == "" {
		if value, ok := os.LookupEnv("IMGVAULT_SECRET"); ok {
			c.Vault.Secret = strings.TrimSpace(value)
		}
	}
	c.Vault.DirPrefix = strings.Trim(strings.TrimSpace(c.Vault.DirPrefix), "/")
	if c.Vault.DirPrefix == "" {
		c.Vault.DirPrefix = defaultVaultDirPrefix
	}
}

func (c *Config) normalizeConversion() {
	c.Conversion.TargetFormat = strings.ToLower(strings.TrimSpace(c.Conversion.TargetFormat))
	if c.Conversion.TargetFormat == "" {
		c.Conversion.TargetFormat = defaultTargetFormat
	}
	c.Conversion.Backend = strings.ToLower(strings.TrimSpace(c.Conversion.Backend))
	if c.Conversion.Backend == "" {
		c.Conversion.Backend = defaultBackend
	}
	if c.Conversion.Quality == 0 {
		c.Conversion.Quality = defaultQuality
	}
	if c.Conversion.MemoryLimitMiB <= 0 {
		c.Conversion.MemoryLimitMiB = defaultMemoryLimitMiB
	}
	if c.Conversion.MaxAttempts <= 0 {
		c.Conversion.MaxAttempts = defaultMaxAttempts
	}
	mimes := make([]string, 0, len(c.Conversion.EligibleMIMETypes))
	seen := make(map[string]struct{}, len(c.Conversion.EligibleMIMETypes))
	for _, mime := range c.Conversion.EligibleMIMETypes {
		normalized := strings.ToLower(strings.TrimSpace(mime))
		if normalized == "" {
			continue
		}
		if _, exists := seen[normalized]; exists {
			continue
		}
		seen[normalized] = struct{}{}
		mimes = append(mimes, normalized)
	}
	if len(mimes) == 0 {
		mimes = defaultEligibleMIMETypes()
	}
	c.Conversion.EligibleMIMETypes = mimes
}

func (c *Config) normalizeBatch() {
	if c.Batch.Size <= 0 {
		c.Batch.Size = defaultBatchSize
	}
	if c.Batch.StepIntervalMS < 0 {
		c.Batch.StepIntervalMS = 0
	}
}

func (c *Config) normalizeMetadata() {
	c.Metadata.Namespace = strings.Trim(strings.ToLower(strings.TrimSpace(c.Metadata.Namespace)), "_")
	if c.Metadata.Namespace == "" {
		c.Metadata.Namespace = c.Conversion.TargetFormat
	}
}

func (c *Config) normalizeAPI() {
	c.API.Bind = strings.TrimSpace(c.API.Bind)
	if c.API.Bind == "" {
		c.API.Bind = defaultAPIBind
	}
	c.API.Token = strings.TrimSpace(c.API.Token)
	if c.API.Token == "" {
		if value, ok := os.LookupEnv("IMGVAULT_API_TOKEN"); ok {
			c.API.Token = strings.TrimSpace(value)
		}
	}
}

func (c *Config) normalizeWatch() {
	if c.Watch.SettleSeconds <= 0 {
		c.Watch.SettleSeconds = defaultWatchSettleSecs
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeoutSeconds <= 0 {
		c.Notifications.RequestTimeoutSeconds = defaultNtfyTimeoutSecs
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.MaxSizeMiB < 0 {
		c.Logging.MaxSizeMiB = 0
	}
}

package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateConversion(); err != nil {
		return err
	}
	if err := c.validateBatch(); err != nil {
		return err
	}
	if err := c.validateMetadata(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateNotifications() error {
	topic := c.Notifications.NtfyTopic
	if topic == "" {
		return nil
	}
	parsed, err := url.Parse(topic)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return fmt.Errorf("notifications.ntfy_topic must be an http(s) URL, got %q", topic)
	}
	return nil
}

func (c *Config) validatePaths() error {
	if c.Paths.UploadsDir == "" {
		return errors.New("paths.uploads_dir must be set")
	}
	if c.Paths.DataDir == "" {
		return errors.New("paths.data_dir must be set")
	}
	if c.Paths.DataDir == c.Paths.UploadsDir {
		return errors.New("paths.data_dir must not be the public uploads directory")
	}
	return nil
}

func (c *Config) validateConversion() error {
	switch c.Conversion.TargetFormat {
	case FormatWebP, FormatAVIF:
	default:
		return fmt.Errorf("conversion.target_format must be %q or %q, got %q", FormatWebP, FormatAVIF, c.Conversion.TargetFormat)
	}
	switch c.Conversion.Backend {
	case BackendBuiltin, BackendExternal:
	default:
		return fmt.Errorf("conversion.backend must be %q or %q, got %q", BackendBuiltin, BackendExternal, c.Conversion.Backend)
	}
	if c.Conversion.Quality < 1 || c.Conversion.Quality > 100 {
		return errors.New("conversion.quality must be between 1 and 100")
	}
	target := c.TargetMIME()
	for _, mime := range c.Conversion.EligibleMIMETypes {
		if mime == target {
			return fmt.Errorf("conversion.eligible_mime_types must not include the target type %s", target)
		}
		if !strings.HasPrefix(mime, "image/") {
			return fmt.Errorf("conversion.eligible_mime_types entry %q is not an image type", mime)
		}
	}
	return nil
}

func (c *Config) validateBatch() error {
	if c.Batch.Size <= 0 {
		return errors.New("batch.size must be positive")
	}
	return nil
}

func (c *Config) validateMetadata() error {
	for _, r := range c.Metadata.Namespace {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') && r != '_' {
			return fmt.Errorf("metadata.namespace %q may only contain lowercase letters, digits, and underscores", c.Metadata.Namespace)
		}
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
		return nil
	default:
		return fmt.Errorf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level)
	}
}

package main

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"imgvault/internal/api"
	"imgvault/internal/app"
	"imgvault/internal/config"
	"imgvault/internal/logging"
)

type globalFlags struct {
	config  string
	output  string
	json    bool
	remote  string
	token   string
	verbose bool
}

type commandContext struct {
	flags *globalFlags

	configOnce sync.Once
	config     *config.Config
	configErr  error

	loggerOnce sync.Once
	logger     *slog.Logger
}

func newCommandContext(flags *globalFlags) *commandContext {
	return &commandContext{flags: flags}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, _, _, err := config.Load(strings.TrimSpace(c.flags.config))
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// cliLogger writes warnings and errors to stderr and the log file; info
// lines only with --verbose so command output stays readable.
func (c *commandContext) cliLogger() *slog.Logger {
	c.loggerOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil {
			c.logger = logging.NewNop()
			return
		}
		scoped := *cfg
		if !c.flags.verbose {
			scoped.Logging.Level = "warn"
		}
		opts, err := logging.OptionsFromConfig(&scoped)
		if err != nil {
			c.logger = logging.NewNop()
			return
		}
		opts.Process = "imgvault"
		// Only imgvaultd rotates; it may hold the file open.
		opts.MaxFileBytes = 0
		logger, err := logging.New(opts)
		if err != nil {
			c.logger = logging.NewNop()
			return
		}
		c.logger = logger
	})
	return c.logger
}

func (c *commandContext) remoteURL() string {
	return strings.TrimRight(strings.TrimSpace(c.flags.remote), "/")
}

func (c *commandContext) isRemote() bool {
	return c.remoteURL() != ""
}

// remoteClient talks to the daemon named by --remote. The token falls back
// to api.token from the config.
func (c *commandContext) remoteClient() *api.Client {
	token := strings.TrimSpace(c.flags.token)
	if token == "" {
		if cfg, err := c.ensureConfig(); err == nil {
			token = cfg.API.Token
		}
	}
	return api.NewClient(c.remoteURL(), token)
}

// withApp opens the local installation for the duration of fn.
func (c *commandContext) withApp(fn func(*app.App) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	a, err := app.Open(cfg, c.cliLogger())
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}

// withLocalApp is withApp for commands that cannot run against a daemon.
func (c *commandContext) withLocalApp(name string, fn func(*app.App) error) error {
	if c.isRemote() {
		return fmt.Errorf("%s only runs against the local installation; drop --remote", name)
	}
	return c.withApp(fn)
}

// withBackend runs fn against the daemon when --remote is set and the local
// installation otherwise.
func (c *commandContext) withBackend(fn func(backend) error) error {
	if c.isRemote() {
		return fn(remoteBackend{client: c.remoteClient()})
	}
	return c.withApp(func(a *app.App) error {
		return fn(localBackend{app: a})
	})
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

var errNoArgs = errors.New("at least one asset ID is required")

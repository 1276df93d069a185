package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/user"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"ferry/internal/config"
	"ferry/internal/daemonrun"
	"ferry/internal/logging"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, _, _, err := config.Load(c.configPath())
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

func (c *commandContext) configPath() string {
	if c.configFlag == nil {
		return ""
	}
	return strings.TrimSpace(*c.configFlag)
}

// fileLogger writes to ferry.log only so log lines never interleave with
// command output.
func (c *commandContext) fileLogger(cfg *config.Config) (*slog.Logger, error) {
	return logging.New(logging.Options{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		OutputPaths: []string{filepath.Join(cfg.Paths.LogDir, "ferry.log")},
	})
}

// withRuntime opens the pipeline in-process for the duration of fn.
func (c *commandContext) withRuntime(ctx context.Context, identity string, fn func(*daemonrun.Runtime) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	logger, err := c.fileLogger(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	rt, err := daemonrun.Open(ctx, cfg, identity, logger)
	if err != nil {
		return err
	}
	defer rt.Close()
	return fn(rt)
}

// sessionIdentity resolves the identity a CLI session signs in with.
func sessionIdentity(flagValue string, cfg *config.Config) string {
	if value := strings.TrimSpace(flagValue); value != "" {
		return value
	}
	if cfg != nil && cfg.Session.Identity != "" {
		return cfg.Session.Identity
	}
	if current, err := user.Current(); err == nil && current.Username != "" {
		return current.Username
	}
	return "local"
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}

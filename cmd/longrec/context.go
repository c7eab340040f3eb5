package main

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"longrec/internal/config"
	"longrec/internal/durationcache"
	"longrec/internal/logging"
	"longrec/internal/samples"
	"longrec/internal/session"
)

type commandContext struct {
	configFlag   *string
	logLevelFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error

	loggerOnce sync.Once
	logger     *slog.Logger
	loggerErr  error
}

func newCommandContext(configFlag, logLevelFlag *string) *commandContext {
	return &commandContext{
		configFlag:   configFlag,
		logLevelFlag: logLevelFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if c.logLevelFlag != nil {
			if level := strings.ToLower(strings.TrimSpace(*c.logLevelFlag)); level != "" {
				cfg.Logging.Level = level
				if err := cfg.Validate(); err != nil {
					c.configErr = err
					return
				}
			}
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) ensureLogger() (*slog.Logger, error) {
	c.loggerOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil {
			c.loggerErr = err
			return
		}
		c.logger, c.loggerErr = logging.NewFromConfig(cfg)
	})
	return c.logger, c.loggerErr
}

// openSession builds a session for the loaded configuration. Callers must
// Close it.
func (c *commandContext) openSession(ctx context.Context) (*session.Session, error) {
	return c.openSessionAt(ctx, slog.LevelDebug)
}

// openSessionAt is openSession with session records below minLevel dropped,
// for commands whose output shares the terminal with the log.
func (c *commandContext) openSessionAt(ctx context.Context, minLevel slog.Level) (*session.Session, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	if len(cfg.Cameras)+len(cfg.Signals) == 0 {
		return nil, errors.New("no camera or signal modality configured; see `longrec config init`")
	}
	logger, err := c.ensureLogger()
	if err != nil {
		return nil, err
	}
	if minLevel > slog.LevelDebug {
		logger = logging.WithLevelOverride(logger, minLevel)
	}
	return session.Open(ctx, cfg, session.Options{Logger: logger})
}

// buildPlan computes the synchronization plan without assembling data.
func (c *commandContext) buildPlan(ctx context.Context) (*session.Plan, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	logger, err := c.ensureLogger()
	if err != nil {
		return nil, err
	}
	cache, err := c.openCache(ctx)
	if err != nil {
		logging.WarnWithContext(logger, "duration cache unavailable", "cache_open_failed", logging.Error(err))
	}
	if cache != nil {
		defer cache.Close()
	}
	return session.BuildPlan(ctx, cfg, samples.NewRegistry(), cache, logger)
}

// openCache returns nil without error when caching is disabled.
func (c *commandContext) openCache(ctx context.Context) (*durationcache.Store, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	path := cfg.DurationCachePath()
	if path == "" {
		return nil, nil
	}
	logger, err := c.ensureLogger()
	if err != nil {
		return nil, err
	}
	return durationcache.Open(ctx, path, logger)
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

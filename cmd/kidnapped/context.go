package main

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/okian/kidnapped/internal/config"
	"github.com/okian/kidnapped/pkg/logger"
	"github.com/okian/kidnapped/pkg/metrics"
)

// commandContext carries the tool configuration shared by every command.
// Flags override values loaded from KIDNAPPED_CONFIG and the environment.
type commandContext struct {
	logLevelFlag    *string
	metricsFileFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(logLevelFlag, metricsFileFlag *string) *commandContext {
	return &commandContext{
		logLevelFlag:    logLevelFlag,
		metricsFileFlag: metricsFileFlag,
	}
}

func (c *commandContext) ensureConfig(ctx context.Context) (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, err := config.Load(ctx)
		if err != nil {
			c.configErr = err
			return
		}
		if c.logLevelFlag != nil && strings.TrimSpace(*c.logLevelFlag) != "" {
			cfg.LogLevel = strings.TrimSpace(*c.logLevelFlag)
		}
		if c.metricsFileFlag != nil && strings.TrimSpace(*c.metricsFileFlag) != "" {
			cfg.MetricsFile = strings.TrimSpace(*c.metricsFileFlag)
		}

		if err := logger.SetLevelString(cfg.LogLevel); err != nil {
			logger.Get().Warn(ctx, "invalid log_level; falling back to info",
				logger.String("log_level", cfg.LogLevel),
				logger.Error(err),
			)
			_ = logger.SetLevelString("info")
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// writeMetrics exports the registry when a metrics file is configured.
func (c *commandContext) writeMetrics(cmd *cobra.Command) error {
	if c.config == nil || c.config.MetricsFile == "" {
		return nil
	}
	if err := metrics.WriteTextfile(c.config.MetricsFile); err != nil {
		return fmt.Errorf("write metrics: %w", err)
	}
	logger.Get().Debug(cmd.Context(), "metrics written", logger.String("path", c.config.MetricsFile))
	return nil
}

// intOverride returns the flag value when the user set it, else fallback.
func intOverride(cmd *cobra.Command, name string, flagValue, fallback int) int {
	if cmd.Flags().Changed(name) {
		return flagValue
	}
	return fallback
}

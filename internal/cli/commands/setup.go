package commands

import (
	"io"
	"log/slog"

	"github.com/leapstack-labs/typedgql/internal/cli/config"
	"github.com/leapstack-labs/typedgql/internal/plugin"
	"github.com/spf13/cobra"
)

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg    *config.Config
	Logger *slog.Logger
	Out    io.Writer
}

// NewCommandContext collects the loaded config, the logger and the output
// writer for cmd.
func NewCommandContext(cmd *cobra.Command) *CommandContext {
	return &CommandContext{
		Cfg:    getConfig(),
		Logger: config.GetLogger(cmd.Context()),
		Out:    cmd.OutOrStdout(),
	}
}

// NewPlugin builds a plugin from the command configuration.
func (c *CommandContext) NewPlugin() *plugin.Plugin {
	return plugin.New(pluginConfig(c.Cfg, c.Logger))
}

// getConfig returns the current configuration.
// It uses config.GetCurrentConfig() if available, otherwise falls back to defaults.
func getConfig() *config.Config {
	if cfg := config.GetCurrentConfig(); cfg != nil {
		return cfg
	}
	return config.Default()
}

func pluginConfig(cfg *config.Config, logger *slog.Logger) plugin.Config {
	return plugin.Config{
		SchemaPath:     cfg.Schema,
		Scalars:        cfg.Scalars,
		SearchDir:      cfg.SearchDir,
		Extensions:     cfg.Extensions,
		VirtualDir:     cfg.VirtualDir,
		BaseDir:        cfg.BaseDir,
		StartupTimeout: cfg.StartupTimeout,
		Concurrency:    cfg.Concurrency,
		Logger:         logger,
	}
}

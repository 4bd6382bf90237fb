package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"github.com/panbanda/prism/internal/history"
	"github.com/panbanda/prism/internal/output"
	"github.com/panbanda/prism/internal/service/analysis"
	"github.com/panbanda/prism/pkg/config"
)

// getPaths returns paths from positional args, defaulting to ["."]
func getPaths(c *cli.Context) []string {
	if c.Args().Len() > 0 {
		return c.Args().Slice()
	}
	return []string{"."}
}

// loadConfig loads the --config file, or the first config found in the
// standard locations, or the defaults.
func loadConfig(c *cli.Context) (*config.Config, error) {
	res, err := config.LoadConfig(loadOptions(c)...)
	if err != nil {
		return nil, err
	}
	return res.Config, nil
}

// newService loads the configuration and builds the analysis service.
func newService(c *cli.Context) (*analysis.Service, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, err
	}
	if c.Bool("no-cache") {
		cfg.Cache.Enabled = false
	}
	return analysis.New(analysis.WithConfig(cfg)), nil
}

// newFormatter builds the output formatter from --format/--output, falling
// back to the configured format.
func newFormatter(c *cli.Context, cfg *config.Config) (*output.Formatter, error) {
	format := c.String("format")
	if format == "" {
		format = cfg.Output.Format
	}
	colored := cfg.Output.Color && !c.Bool("no-color")
	return output.NewFormatter(output.ParseFormat(format), c.String("output"), colored)
}

// newLogger builds the structured logger for long-running commands.
func newLogger(c *cli.Context, cfg *config.Config) zerolog.Logger {
	logCfg := cfg.Log
	if c.Bool("verbose") {
		logCfg.Level = "debug"
	}
	return logCfg.NewLogger(os.Stderr)
}

// openHistory opens the configured history store, or returns nil when
// history is disabled.
func openHistory(ctx context.Context, cfg *config.Config) (*history.Store, error) {
	if !cfg.History.Enabled {
		return nil, nil
	}
	store, err := history.Open(ctx, cfg.History.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history: %w", err)
	}
	return store, nil
}

// truncate shortens a string to maxLen, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen < 4 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}

package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"

	"github.com/panbanda/prism/internal/output"
	"github.com/panbanda/prism/internal/service/analysis"
	"github.com/panbanda/prism/pkg/analyzer"
	"github.com/panbanda/prism/pkg/watch"
)

func watchCmd() *cli.Command {
	return &cli.Command{
		Name:      "watch",
		Usage:     "Watch for file changes and re-analyze",
		ArgsUsage: "[path]",
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:  "debounce",
				Value: watch.DefaultDebounce,
				Usage: "Quiet period before a changed file is analyzed",
			},
			&cli.BoolFlag{
				Name:  "perf",
				Usage: "Also report calls inside loops (Python)",
			},
		},
		Action: runWatchCmd,
	}
}

func runWatchCmd(c *cli.Context) error {
	svc, err := newService(c)
	if err != nil {
		return err
	}
	cfg := svc.Config()
	logger := newLogger(c, cfg)

	absPath, err := filepath.Abs(getPaths(c)[0])
	if err != nil {
		return fmt.Errorf("invalid path: %w", err)
	}

	formatter, err := newFormatter(c, cfg)
	if err != nil {
		return err
	}
	defer formatter.Close()

	perf := c.Bool("perf")
	watcher, err := watch.New(absPath, cfg,
		watch.WithDebounce(c.Duration("debounce")),
		watch.WithLogger(logger),
		watch.WithHandler(func(ctx context.Context, path string, kind analyzer.Kind) {
			rel, err := filepath.Rel(absPath, path)
			if err != nil {
				rel = path
			}
			color.Yellow("\nFile changed: %s", rel)
			fmt.Fprintln(formatter.Writer(), strings.Repeat("-", 40))

			res, err := svc.AnalyzeFile(ctx, path, analysis.FileOptions{
				Kind:        string(kind),
				Performance: perf && kind == analyzer.KindPython,
			})
			if err != nil {
				color.Red("Analysis error: %v", err)
				return
			}
			if err := formatter.Output(output.NewAnalysisView(res)); err != nil {
				logger.Error().Err(err).Str("file", rel).Msg("failed to write analysis")
			}
		}),
	)
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Stop()

	color.Cyan("Watching for changes in %s...", absPath)
	color.Cyan("Press Ctrl+C to stop")

	err = watcher.Start(c.Context)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

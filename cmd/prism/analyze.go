package main

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"

	"github.com/panbanda/prism/internal/output"
	"github.com/panbanda/prism/internal/service/analysis"
	"github.com/panbanda/prism/internal/summary"
	"github.com/panbanda/prism/pkg/config"
)

func analyzeCmd() *cli.Command {
	return &cli.Command{
		Name:      "analyze",
		Aliases:   []string{"a"},
		Usage:     "Analyze one source file (or stdin with --type)",
		ArgsUsage: "[file|-]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "type",
				Aliases: []string{"t"},
				Usage:   "File kind: py, html, css, js, rb, php, go (default from extension)",
			},
			&cli.StringFlag{
				Name:  "markup",
				Usage: "HTML file used to find unused CSS selectors",
			},
			&cli.BoolFlag{
				Name:  "perf",
				Usage: "Also report calls inside loops (Python)",
			},
			&cli.BoolFlag{
				Name:  "no-history",
				Usage: "Do not record the analysis in the history store",
			},
			&cli.BoolFlag{
				Name:  "fail-on-issues",
				Usage: "Exit with an error when warning sections are present",
			},
		},
		Action: runAnalyzeCmd,
	}
}

func runAnalyzeCmd(c *cli.Context) error {
	svc, err := newService(c)
	if err != nil {
		return err
	}
	cfg := svc.Config()

	res, err := analyzeInput(c, svc)
	if err != nil {
		return err
	}
	view := output.NewAnalysisView(res)

	if !c.Bool("no-history") {
		recordHistory(c, cfg, res, view.Summary)
	}

	formatter, err := newFormatter(c, cfg)
	if err != nil {
		return err
	}
	defer formatter.Close()
	if err := formatter.Output(view); err != nil {
		return err
	}

	if c.Bool("fail-on-issues") && view.Summary.HasWarnings() {
		return fmt.Errorf("%d issues found", view.Summary.IssuesCount)
	}
	return nil
}

// analyzeInput analyzes the file named by the first argument, or stdin when
// the argument is "-" or missing and --type is set.
func analyzeInput(c *cli.Context, svc *analysis.Service) (*analysis.Result, error) {
	path := c.Args().First()
	kind := c.String("type")

	if path == "" || path == "-" {
		if kind == "" {
			return nil, fmt.Errorf("--type is required when reading from stdin")
		}
		code, err := io.ReadAll(c.App.Reader)
		if err != nil {
			return nil, fmt.Errorf("failed to read stdin: %w", err)
		}
		req := analysis.Request{Code: string(code), Kind: kind, Performance: c.Bool("perf")}
		if m := c.String("markup"); m != "" {
			markup, err := os.ReadFile(m)
			if err != nil {
				return nil, fmt.Errorf("failed to read markup: %w", err)
			}
			req.Markup = string(markup)
		}
		return svc.Analyze(c.Context, req)
	}

	return svc.AnalyzeFile(c.Context, path, analysis.FileOptions{
		Kind:        kind,
		MarkupPath:  c.String("markup"),
		Performance: c.Bool("perf"),
	})
}

// recordHistory saves res when history is enabled. Failures are warnings.
func recordHistory(c *cli.Context, cfg *config.Config, res *analysis.Result, sum *summary.Summary) {
	store, err := openHistory(c.Context, cfg)
	if err != nil {
		color.Yellow("Warning: %v", err)
		return
	}
	if store == nil {
		return
	}
	defer store.Close()
	if _, err := store.Record(c.Context, res, sum); err != nil {
		color.Yellow("Warning: failed to record history: %v", err)
	}
}

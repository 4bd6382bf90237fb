package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"

	"github.com/panbanda/prism/internal/report"
	"github.com/panbanda/prism/internal/service/analysis"
	"github.com/panbanda/prism/internal/summary"
)

func reportCmd() *cli.Command {
	return &cli.Command{
		Name:      "report",
		Usage:     "Render an analysis as HTML, Markdown, CSV, JSON or YAML",
		ArgsUsage: "<file>",
		Description: `Analyzes a file, or loads a stored analysis with --id, and renders the
report. The format comes from --report-format, or from the extension of
--output, and defaults to HTML.

Examples:
  prism report app.py -o app-report.html
  prism report site.css --markup index.html --report-format markdown
  prism report --id 01J9Z3K4C1M2N3P4Q5R6S7T8V9 -o report.csv`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "report-format",
				Aliases: []string{"r"},
				Usage:   "Report format: html, markdown, csv, json, yaml",
			},
			&cli.StringFlag{
				Name:    "type",
				Aliases: []string{"t"},
				Usage:   "File kind (default from extension)",
			},
			&cli.StringFlag{
				Name:  "markup",
				Usage: "HTML file used to find unused CSS selectors",
			},
			&cli.BoolFlag{
				Name:  "perf",
				Usage: "Also report calls inside loops (Python)",
			},
			&cli.StringFlag{
				Name:  "id",
				Usage: "Render a stored history entry instead of analyzing a file",
			},
		},
		Action: runReportCmd,
	}
}

func runReportCmd(c *cli.Context) error {
	svc, err := newService(c)
	if err != nil {
		return err
	}

	res, sum, err := reportSource(c, svc)
	if err != nil {
		return err
	}

	format, err := reportFormat(c)
	if err != nil {
		return err
	}
	renderer, err := report.NewRenderer()
	if err != nil {
		return err
	}
	doc := report.NewDocument(res)
	doc.Summary = sum

	if path := c.String("output"); path != "" {
		if err := renderer.WriteFile(path, format, doc); err != nil {
			return err
		}
		color.Green("Report written to %s", path)
		return nil
	}
	return renderer.Render(os.Stdout, format, doc)
}

// reportSource loads the stored analysis named by --id or analyzes the
// file argument.
func reportSource(c *cli.Context, svc *analysis.Service) (*analysis.Result, *summary.Summary, error) {
	if id := c.String("id"); id != "" {
		store, err := openHistory(c.Context, svc.Config())
		if err != nil {
			return nil, nil, err
		}
		if store == nil {
			return nil, nil, fmt.Errorf("history is disabled")
		}
		defer store.Close()

		entry, err := store.Get(c.Context, id)
		if err != nil {
			return nil, nil, err
		}
		res, err := entry.Restore()
		if err != nil {
			return nil, nil, err
		}
		return res, summary.BuildAt(res, entry.CreatedAt), nil
	}

	if c.Args().First() == "" {
		return nil, nil, fmt.Errorf("a file or --id is required")
	}
	res, err := analyzeInput(c, svc)
	if err != nil {
		return nil, nil, err
	}
	return res, summary.Build(res), nil
}

func reportFormat(c *cli.Context) (report.Format, error) {
	if f := c.String("report-format"); f != "" {
		return report.ParseFormat(f)
	}
	if path := c.String("output"); path != "" {
		return report.FormatFromPath(path)
	}
	return report.FormatHTML, nil
}

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"

	"github.com/panbanda/prism/internal/cache"
	"github.com/panbanda/prism/internal/fileproc"
	"github.com/panbanda/prism/internal/output"
	"github.com/panbanda/prism/internal/progress"
	"github.com/panbanda/prism/internal/scanner"
)

func scanCmd() *cli.Command {
	return &cli.Command{
		Name:      "scan",
		Aliases:   []string{"s"},
		Usage:     "Analyze every supported file under the given paths",
		ArgsUsage: "[path...]",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "perf",
				Usage: "Also report calls inside loops (Python)",
			},
			&cli.IntFlag{
				Name:  "workers",
				Usage: "Concurrent analyses (default from config, 0 = 2x CPUs)",
			},
			&cli.BoolFlag{
				Name:  "issues-only",
				Usage: "List only files with warnings",
			},
		},
		Action: runScanCmd,
	}
}

// scanRow is one file in the scan output.
type scanRow struct {
	Path         string `json:"path" toon:"path"`
	Kind         string `json:"fileType" toon:"fileType"`
	IssuesCount  int    `json:"issuesCount" toon:"issuesCount"`
	FlaggedLines uint64 `json:"flaggedLines" toon:"flaggedLines"`
	Cached       bool   `json:"cached,omitempty" toon:"cached,omitempty"`
}

type scanFailure struct {
	Path  string `json:"path" toon:"path"`
	Error string `json:"error" toon:"error"`
}

type scanOutput struct {
	Files       []scanRow     `json:"files" toon:"files"`
	Errors      []scanFailure `json:"errors" toon:"errors"`
	TotalIssues int           `json:"totalIssues" toon:"totalIssues"`
}

func runScanCmd(c *cli.Context) error {
	svc, err := newService(c)
	if err != nil {
		return err
	}
	cfg := svc.Config()

	files, err := scanner.NewScanner(cfg).ScanPaths(getPaths(c))
	if err != nil {
		return fmt.Errorf("failed to scan: %w", err)
	}
	if len(files) == 0 {
		color.Yellow("No source files found")
		return nil
	}

	var opts []fileproc.AnalyzeOption
	if c.IsSet("workers") {
		opts = append(opts, fileproc.WithWorkers(c.Int("workers")))
	}
	if c.Bool("perf") {
		opts = append(opts, fileproc.WithPerformance(true))
	}
	if cfg.Cache.Enabled {
		store, err := cache.FromConfig(cfg.Cache)
		if err != nil {
			color.Yellow("Warning: cache disabled: %v", err)
		} else {
			opts = append(opts, fileproc.WithCache(store))
		}
	}

	tracker := progress.NewTracker("Analyzing files...", len(files))
	opts = append(opts, fileproc.WithProgress(tracker.Tick))
	results, errs := fileproc.AnalyzeFiles(c.Context, svc, files, opts...)
	if err := c.Context.Err(); err != nil {
		tracker.FinishError(err)
		return err
	}
	tracker.FinishSuccess()

	out := scanOutput{Files: []scanRow{}, Errors: []scanFailure{}}
	for _, r := range results {
		if c.Bool("issues-only") && !r.Summary.HasWarnings() {
			continue
		}
		out.Files = append(out.Files, scanRow{
			Path:         relPath(r.Path),
			Kind:         string(r.Result.Kind),
			IssuesCount:  r.Summary.IssuesCount,
			FlaggedLines: r.Summary.FlaggedLines,
			Cached:       r.Cached,
		})
		out.TotalIssues += r.Summary.IssuesCount
	}
	if errs != nil {
		for _, e := range errs.Errors {
			out.Errors = append(out.Errors, scanFailure{Path: relPath(e.Path), Error: e.Err.Error()})
		}
	}
	sort.Slice(out.Files, func(i, j int) bool {
		if out.Files[i].IssuesCount != out.Files[j].IssuesCount {
			return out.Files[i].IssuesCount > out.Files[j].IssuesCount
		}
		return out.Files[i].Path < out.Files[j].Path
	})

	formatter, err := newFormatter(c, cfg)
	if err != nil {
		return err
	}
	defer formatter.Close()

	rows := make([][]string, 0, len(out.Files))
	for _, f := range out.Files {
		rows = append(rows, []string{
			truncate(f.Path, 60),
			f.Kind,
			strconv.Itoa(f.IssuesCount),
			strconv.FormatUint(f.FlaggedLines, 10),
		})
	}
	table := output.NewTable(
		"Scan Results",
		[]string{"File", "Kind", "Issues", "Flagged Lines"},
		rows,
		[]string{fmt.Sprintf("%d files", len(out.Files)), "", strconv.Itoa(out.TotalIssues), ""},
		out,
	)
	if err := formatter.Output(table); err != nil {
		return err
	}

	if len(out.Errors) > 0 && formatter.Format() == output.FormatText {
		color.Yellow("%d files could not be analyzed:", len(out.Errors))
		for _, e := range out.Errors {
			fmt.Fprintf(formatter.Writer(), "  - %s: %s\n", e.Path, e.Error)
		}
	}
	return nil
}

// relPath shortens path relative to the working directory when possible.
func relPath(path string) string {
	if !filepath.IsAbs(path) {
		return path
	}
	wd, err := os.Getwd()
	if err != nil {
		return path
	}
	if rel, err := filepath.Rel(wd, path); err == nil && !strings.HasPrefix(rel, "..") {
		return rel
	}
	return path
}

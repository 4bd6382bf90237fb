package main

import (
	"fmt"
	"strconv"
	"sync"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"

	"github.com/panbanda/prism/internal/gitrepo"
	"github.com/panbanda/prism/internal/output"
	"github.com/panbanda/prism/internal/progress"
)

func repoCmd() *cli.Command {
	return &cli.Command{
		Name:      "repo",
		Usage:     "Clone a remote git repository and analyze its supported files",
		ArgsUsage: "<url|owner/repo>[@ref]",
		Description: `Shallow-clones the repository into a temporary directory, analyzes files
with a known kind under the configured git limits and removes the clone.

Examples:
  prism repo github.com/psf/requests
  prism repo psf/requests@main
  prism repo https://gitlab.com/group/project.git --branch develop`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "branch",
				Aliases: []string{"b"},
				Usage:   "Branch or tag to clone (overrides @ref)",
			},
			&cli.IntFlag{
				Name:  "max-files",
				Usage: "Maximum number of files to analyze (default from config)",
			},
		},
		Action: runRepoCmd,
	}
}

func runRepoCmd(c *cli.Context) error {
	arg := c.Args().First()
	if arg == "" {
		return fmt.Errorf("a repository URL is required")
	}
	src, err := gitrepo.Parse(arg)
	if err != nil {
		return err
	}
	if src == nil {
		return fmt.Errorf("%s is a local path; use scan instead", arg)
	}
	branch := src.Ref
	if b := c.String("branch"); b != "" {
		branch = b
	}

	svc, err := newService(c)
	if err != nil {
		return err
	}
	cfg := svc.Config()
	logger := newLogger(c, cfg)

	limits := gitrepo.LimitsFromConfig(cfg.Git)
	if c.IsSet("max-files") {
		limits.MaxFiles = c.Int("max-files")
	}

	tracker := progress.NewSpinner("Cloning " + src.URL)
	var mu sync.Mutex
	rep, err := gitrepo.Analyze(c.Context, svc, src.URL, branch,
		gitrepo.WithLimits(limits),
		gitrepo.WithLogger(logger),
		gitrepo.WithProgress(func(p gitrepo.Progress) {
			mu.Lock()
			defer mu.Unlock()
			switch p.Stage {
			case gitrepo.StageScanning:
				tracker.Describe("Scanning files...")
			case gitrepo.StageAnalyzing:
				tracker.Describe(fmt.Sprintf("Analyzing %d/%d files...", p.Done, p.Total))
				tracker.Tick()
			}
		}),
	)
	if err != nil {
		tracker.FinishError(err)
		return err
	}
	tracker.FinishSuccess()

	formatter, err := newFormatter(c, cfg)
	if err != nil {
		return err
	}
	defer formatter.Close()

	total := 0
	rows := make([][]string, 0, len(rep.Files))
	for _, f := range rep.Files {
		total += f.Summary.IssuesCount
		rows = append(rows, []string{truncate(f.Path, 60), string(f.Result.Kind), strconv.Itoa(f.Summary.IssuesCount)})
	}
	title := rep.URL
	if rep.Branch != "" {
		title += "@" + rep.Branch
	}
	table := output.NewTable(
		"Repository: "+title,
		[]string{"File", "Kind", "Issues"},
		rows,
		[]string{fmt.Sprintf("%d analyzed", rep.Analyzed), fmt.Sprintf("%d skipped", len(rep.Skipped)), strconv.Itoa(total)},
		rep,
	)
	if err := formatter.Output(table); err != nil {
		return err
	}
	if len(rep.Skipped) > 0 && formatter.Format() == output.FormatText && c.Bool("verbose") {
		color.Yellow("Skipped files:")
		for _, s := range rep.Skipped {
			fmt.Fprintf(formatter.Writer(), "  - %s (%s)\n", s.Path, s.Reason)
		}
	}
	return nil
}

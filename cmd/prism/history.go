package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/panbanda/prism/internal/history"
	"github.com/panbanda/prism/internal/output"
	"github.com/panbanda/prism/internal/summary"
)

func historyCmd() *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "List and show stored analyses",
		Subcommands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List recent analyses",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:    "limit",
						Aliases: []string{"n"},
						Value:   20,
						Usage:   "Maximum number of entries",
					},
				},
				Action: runHistoryListCmd,
			},
			{
				Name:      "show",
				Usage:     "Show one stored analysis",
				ArgsUsage: "<id>",
				Action:    runHistoryShowCmd,
			},
		},
		Action: runHistoryListCmd,
	}
}

func withHistory(c *cli.Context, fn func(*history.Store, *output.Formatter) error) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	store, err := openHistory(c.Context, cfg)
	if err != nil {
		return err
	}
	if store == nil {
		return fmt.Errorf("history is disabled (history.enabled = false)")
	}
	defer store.Close()

	formatter, err := newFormatter(c, cfg)
	if err != nil {
		return err
	}
	defer formatter.Close()
	return fn(store, formatter)
}

func runHistoryListCmd(c *cli.Context) error {
	limit := c.Int("limit")
	if limit <= 0 {
		limit = 20
	}
	return withHistory(c, func(store *history.Store, formatter *output.Formatter) error {
		entries, err := store.List(c.Context, limit)
		if err != nil {
			return err
		}
		rows := make([][]string, 0, len(entries))
		for _, e := range entries {
			rows = append(rows, []string{
				e.ID,
				string(e.Kind),
				truncate(e.FileName, 40),
				strconv.Itoa(e.IssuesCount),
				e.CreatedAt.Local().Format(time.DateTime),
			})
		}
		table := output.NewTable(
			"Analysis History",
			[]string{"ID", "Kind", "File", "Issues", "Created"},
			rows,
			nil,
			struct {
				Entries []history.Entry `json:"entries" toon:"entries"`
			}{entries},
		)
		return formatter.Output(table)
	})
}

func runHistoryShowCmd(c *cli.Context) error {
	id := c.Args().First()
	if id == "" {
		return fmt.Errorf("an entry id is required")
	}
	return withHistory(c, func(store *history.Store, formatter *output.Formatter) error {
		entry, err := store.Get(c.Context, id)
		if err != nil {
			return err
		}
		res, err := entry.Restore()
		if err != nil {
			return err
		}
		view := output.NewAnalysisView(res)
		view.Summary = summary.BuildAt(res, entry.CreatedAt)
		return formatter.Output(view)
	})
}

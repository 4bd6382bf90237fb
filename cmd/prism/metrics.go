package main

import (
	"fmt"
	"strconv"

	"github.com/urfave/cli/v2"

	"github.com/panbanda/prism/internal/history"
	"github.com/panbanda/prism/internal/output"
	"github.com/panbanda/prism/internal/report"
	"github.com/panbanda/prism/pkg/analyzer"
)

func metricsCmd() *cli.Command {
	return &cli.Command{
		Name:  "metrics",
		Usage: "Summarize stored analyses over a period",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "period",
				Aliases: []string{"p"},
				Value:   string(history.DefaultPeriod),
				Usage:   "Period: 7d, 30d, 90d, all",
			},
			&cli.StringFlag{
				Name:    "type",
				Aliases: []string{"t"},
				Usage:   "Restrict to one file kind",
			},
		},
		Action: runMetricsCmd,
	}
}

func runMetricsCmd(c *cli.Context) error {
	period, err := history.ParsePeriod(c.String("period"))
	if err != nil {
		return err
	}
	filter := history.Filter{Period: period}
	if t := c.String("type"); t != "" && t != "all" {
		kind, err := analyzer.ParseKind(t)
		if err != nil {
			return err
		}
		filter.Kind = kind
	}

	return withHistory(c, func(store *history.Store, formatter *output.Formatter) error {
		m, err := store.Metrics(c.Context, filter)
		if err != nil {
			return err
		}

		rows := make([][]string, 0, len(analyzer.Kinds))
		for _, k := range analyzer.Kinds {
			if n := m.ByKind[k]; n > 0 {
				rows = append(rows, []string{report.KindLabel(k), strconv.Itoa(n)})
			}
		}
		table := output.NewTable(
			fmt.Sprintf("Metrics (%s)", m.Period),
			[]string{"Kind", "Analyses"},
			rows,
			[]string{
				fmt.Sprintf("%d total", m.TotalAnalyses),
				fmt.Sprintf("avg issues %.2f (sd %.2f)", m.AverageIssues, m.IssuesStdDev),
			},
			m,
		)
		return formatter.Output(table)
	})
}

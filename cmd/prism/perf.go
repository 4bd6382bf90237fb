package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"

	"github.com/panbanda/prism/internal/output"
)

func perfCmd() *cli.Command {
	return &cli.Command{
		Name:      "perf",
		Usage:     "Report function calls made inside loops in a Python file",
		ArgsUsage: "<file.py>",
		Action:    runPerfCmd,
	}
}

func runPerfCmd(c *cli.Context) error {
	path := c.Args().First()
	if path == "" {
		return fmt.Errorf("a Python file is required")
	}
	svc, err := newService(c)
	if err != nil {
		return err
	}

	code, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	issues, err := svc.CheckPerformance(c.Context, string(code))
	if err != nil {
		return err
	}
	loads, err := svc.FunctionLoads(c.Context, string(code))
	if err != nil {
		return err
	}

	formatter, err := newFormatter(c, svc.Config())
	if err != nil {
		return err
	}
	defer formatter.Close()

	if len(issues) == 0 && formatter.Format() == output.FormatText {
		color.Green("No calls inside loops found in %s", path)
		return nil
	}

	rows := make([][]string, 0, len(issues)+len(loads))
	for _, issue := range issues {
		rows = append(rows, []string{strconv.Itoa(issue.Line), issue.Message})
	}
	for _, l := range loads {
		if l.Loops > 0 {
			rows = append(rows, []string{strconv.Itoa(l.Line),
				fmt.Sprintf("Function '%s' has %d loops and %d calls", l.Name, l.Loops, l.Calls)})
		}
	}
	table := output.NewTable(
		fmt.Sprintf("Performance: %s", path),
		[]string{"Line", "Issue"},
		rows,
		[]string{"Total", strconv.Itoa(len(issues))},
		struct {
			File              string `json:"file" toon:"file"`
			PerformanceIssues any    `json:"performance_issues" toon:"performance_issues"`
			Functions         any    `json:"functions" toon:"functions"`
		}{path, issues, loads},
	)
	return formatter.Output(table)
}

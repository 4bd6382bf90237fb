package main

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/panbanda/prism/internal/coverage"
)

func coverageCmd() *cli.Command {
	return &cli.Command{
		Name:      "coverage",
		Usage:     "Run the test suite with coverage and print the report",
		ArgsUsage: "[test-path]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "dir",
				Usage: "Directory to run the coverage command in",
				Value: ".",
			},
		},
		Action: runCoverageCmd,
	}
}

func runCoverageCmd(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	runner := coverage.New(cfg.Coverage, coverage.WithDir(c.String("dir")))
	testPath := c.Args().First()
	if testPath == "" {
		testPath = cfg.Coverage.TestPath
	}
	fmt.Fprintln(c.App.Writer, runner.Status(c.Context, testPath))
	return nil
}

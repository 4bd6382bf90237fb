package main

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/panbanda/prism/internal/mcpserver"
)

func mcpCmd() *cli.Command {
	return &cli.Command{
		Name:  "mcp",
		Usage: "Start MCP (Model Context Protocol) server for LLM tool integration",
		Description: `Starts an MCP server over stdio transport that exposes prism's analyzers
as tools that LLMs can invoke.

To use with Claude Desktop, add to your config:
  {
    "mcpServers": {
      "prism": {
        "command": "prism",
        "args": ["mcp"]
      }
    }
  }

Available tools:
  - analyze_code         Analyze source text of a given kind
  - analyze_file         Analyze a file on disk
  - check_performance    Calls inside loops in Python
  - list_kinds           Supported file kinds`,
		Subcommands: []*cli.Command{
			{
				Name:  "manifest",
				Usage: "Print the MCP registry manifest (server.json)",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "image",
						Value: mcpserver.DefaultImage,
						Usage: "Container image the manifest points at (without tag)",
					},
				},
				Action: func(c *cli.Context) error {
					data, err := mcpserver.GenerateManifest(version, mcpserver.WithImage(c.String("image")))
					if err != nil {
						return err
					}
					fmt.Fprintln(c.App.Writer, string(data))
					return nil
				},
			},
		},
		Action: runMCPCmd,
	}
}

func runMCPCmd(c *cli.Context) error {
	svc, err := newService(c)
	if err != nil {
		return err
	}
	// stdout carries the protocol, so logs go to stderr only.
	logger := newLogger(c, svc.Config())
	logger.Debug().Str("version", version).Msg("starting mcp server")
	return mcpserver.NewServer(version, svc).Run(c.Context)
}

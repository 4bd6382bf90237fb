package main

import (
	"github.com/urfave/cli/v2"

	"github.com/panbanda/prism/internal/server"
)

func serveCmd() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the analysis HTTP API",
		Description: `Serves a JSON API for analyzing code, rendering reports, browsing history
and analyzing remote repositories.

Endpoints:
  POST /api/analyze            {code, fileType, fileName?, markup?, performance?}
  POST /api/report/:format     same body, format html, markdown, csv, json or yaml
  GET  /api/history            ?limit=
  GET  /api/history/:id
  GET  /api/metrics            ?period=7d|30d|90d|all&fileType=
  POST /api/git/analyze        {repoUrl, branch?}
  GET  /health`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "addr",
				Usage: "Listen address (default from config)",
			},
			&cli.IntFlag{
				Name:  "cache-size",
				Value: server.DefaultCacheSize,
				Usage: "Number of analyses kept in the in-memory cache",
			},
		},
		Action: runServeCmd,
	}
}

func runServeCmd(c *cli.Context) error {
	svc, err := newService(c)
	if err != nil {
		return err
	}
	cfg := svc.Config()
	logger := newLogger(c, cfg)

	opts := []server.Option{
		server.WithLogger(logger),
		server.WithVersion(version),
		server.WithCacheSize(c.Int("cache-size")),
	}
	store, err := openHistory(c.Context, cfg)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
		opts = append(opts, server.WithHistory(store))
	} else {
		logger.Info().Msg("history disabled")
	}

	srv, err := server.New(svc, opts...)
	if err != nil {
		return err
	}

	addr := cfg.Server.Addr
	if a := c.String("addr"); a != "" {
		addr = a
	}
	return srv.Listen(c.Context, addr)
}

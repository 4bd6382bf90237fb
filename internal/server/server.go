// Package server exposes analysis over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/panbanda/prism/internal/gitrepo"
	"github.com/panbanda/prism/internal/history"
	"github.com/panbanda/prism/internal/report"
	"github.com/panbanda/prism/internal/service/analysis"
)

// RequestIDHeader carries the request id on requests and responses.
const RequestIDHeader = "X-Request-ID"

// GitAnalyzer analyzes a remote repository.
type GitAnalyzer func(ctx context.Context, url, branch string) (*gitrepo.Report, error)

// Server is the HTTP endpoint.
type Server struct {
	app      *fiber.App
	svc      *analysis.Service
	history  *history.Store
	log      zerolog.Logger
	cache    *resultCache
	renderer *report.Renderer
	analyze  *validator
	git      *validator
	gitRepo  GitAnalyzer
	version  string
}

// Option configures a Server.
type Option func(*Server)

// WithHistory records every analysis and enables the history endpoints.
func WithHistory(h *history.Store) Option {
	return func(s *Server) {
		s.history = h
	}
}

// WithLogger sets the request logger.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Server) {
		s.log = l
	}
}

// WithCacheSize bounds the in-memory result cache; 0 disables it.
func WithCacheSize(n int) Option {
	return func(s *Server) {
		s.cache = newResultCache(n)
	}
}

// WithGitAnalyzer replaces the go-git repository analysis.
func WithGitAnalyzer(fn GitAnalyzer) Option {
	return func(s *Server) {
		s.gitRepo = fn
	}
}

// WithVersion is reported by /health.
func WithVersion(v string) Option {
	return func(s *Server) {
		s.version = v
	}
}

// New creates a server with its routes registered.
func New(svc *analysis.Service, opts ...Option) (*Server, error) {
	s := &Server{
		svc:     svc,
		log:     zerolog.Nop(),
		cache:   newResultCache(DefaultCacheSize),
		version: "dev",
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With().Str("component", "server").Logger()
	if s.gitRepo == nil {
		s.gitRepo = func(ctx context.Context, url, branch string) (*gitrepo.Report, error) {
			return gitrepo.Analyze(ctx, svc, url, branch, gitrepo.WithLogger(s.log))
		}
	}

	var err error
	if s.renderer, err = report.NewRenderer(); err != nil {
		return nil, err
	}
	if s.analyze, err = compileSchema("analyze.json", analyzeSchemaJSON); err != nil {
		return nil, err
	}
	if s.git, err = compileSchema("git.json", gitSchemaJSON); err != nil {
		return nil, err
	}

	s.app = fiber.New(fiber.Config{
		AppName:               "prism",
		BodyLimit:             svc.Config().Server.BodyLimit,
		DisableStartupMessage: true,
		ErrorHandler:          s.handleError,
	})
	s.routes()
	return s, nil
}

func (s *Server) routes() {
	s.app.Use(s.requestID, s.logRequests)

	s.app.Get("/health", s.health)

	api := s.app.Group("/api")
	api.Post("/analyze", s.postAnalyze)
	api.Post("/report/:format", s.postReport)
	api.Get("/history", s.listHistory)
	api.Get("/history/:id", s.getHistory)
	api.Get("/metrics", s.getMetrics)
	api.Post("/git/analyze", s.postGitAnalyze)
}

// App exposes the fiber app, e.g. for App.Test.
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Listen(ctx context.Context, addr string) error {
	errc := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", addr).Msg("listening")
		errc <- s.app.Listen(addr)
	}()

	select {
	case err := <-errc:
		return fmt.Errorf("failed to serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.app.ShutdownWithContext(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down: %w", err)
	}
	if err := <-errc; err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	s.log.Info().Msg("stopped")
	return nil
}

func (s *Server) requestID(c *fiber.Ctx) error {
	id := c.Get(RequestIDHeader)
	if id == "" {
		id = uuid.NewString()
	}
	c.Locals("requestID", id)
	c.Set(RequestIDHeader, id)
	return c.Next()
}

func (s *Server) logRequests(c *fiber.Ctx) error {
	start := time.Now()
	err := c.Next()
	if err != nil {
		// Run the error handler now so the logged status is the final one.
		if herr := s.handleError(c, err); herr != nil {
			return herr
		}
	}

	status := c.Response().StatusCode()
	event := s.log.Info()
	if status >= fiber.StatusInternalServerError {
		event = s.log.Error().Err(err)
	} else if status >= fiber.StatusBadRequest {
		event = s.log.Warn()
	}
	event.
		Str("request_id", fmt.Sprint(c.Locals("requestID"))).
		Str("method", c.Method()).
		Str("path", c.Path()).
		Int("status", status).
		Dur("latency", time.Since(start)).
		Msg("request")
	return nil
}

func (s *Server) handleError(c *fiber.Ctx, err error) error {
	status, body := classify(err)
	return c.Status(status).JSON(body)
}

// Package coverage runs the external test-coverage collaborator.
package coverage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"

	"github.com/panbanda/prism/pkg/analyzer/python"
	"github.com/panbanda/prism/pkg/config"
)

// DefaultTestPath is where tests are looked for when none is configured.
const DefaultTestPath = "tests/"

// Runner invokes a pytest-compatible coverage command.
type Runner struct {
	command string
	dir     string
}

// Option configures a Runner.
type Option func(*Runner)

// WithDir runs the command from dir instead of the working directory.
func WithDir(dir string) Option {
	return func(r *Runner) {
		r.dir = dir
	}
}

// New creates a Runner for the configured command.
func New(cfg config.CoverageConfig, opts ...Option) *Runner {
	r := &Runner{command: cfg.Command}
	if r.command == "" {
		r.command = "pytest"
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Args is the argument list passed to the command for testPath.
func Args(testPath string) []string {
	if testPath == "" {
		testPath = DefaultTestPath
	}
	return []string{"--cov=.", "--cov-report=term-missing", testPath}
}

// Run executes the coverage command and returns its standard output. A
// failing test run still returns its output with a nil error; a missing
// executable yields a *python.UnavailableError.
func (r *Runner) Run(ctx context.Context, testPath string) (string, error) {
	cmd := exec.CommandContext(ctx, r.command, Args(testPath)...)
	cmd.Dir = r.dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if errors.Is(err, exec.ErrNotFound) {
		return "", &python.UnavailableError{Tool: r.command}
	}
	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		return "", fmt.Errorf("failed to run %s: %w", r.command, err)
	}
	if err != nil && stdout.Len() == 0 {
		return "", fmt.Errorf("%s exited with code %d: %s", r.command, exitErr.ExitCode(), bytes.TrimSpace(stderr.Bytes()))
	}
	return stdout.String(), nil
}

// Status runs the command and folds any failure into the human-readable
// status string, so callers always have something to show.
func (r *Runner) Status(ctx context.Context, testPath string) string {
	out, err := r.Run(ctx, testPath)
	if err == nil {
		return out
	}
	var unavailable *python.UnavailableError
	if errors.As(err, &unavailable) {
		return unavailable.Error()
	}
	return fmt.Sprintf("Error running %s: %v", r.command, err)
}

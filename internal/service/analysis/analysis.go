// Package analysis dispatches a source text to the analyzer for its kind.
package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/panbanda/prism/pkg/analyzer"
	"github.com/panbanda/prism/pkg/analyzer/generic"
	"github.com/panbanda/prism/pkg/analyzer/markup"
	"github.com/panbanda/prism/pkg/analyzer/python"
	"github.com/panbanda/prism/pkg/analyzer/script"
	"github.com/panbanda/prism/pkg/analyzer/stylesheet"
	"github.com/panbanda/prism/pkg/config"
)

// Service orchestrates code analysis operations.
type Service struct {
	config *config.Config
	python *python.Analyzer
	script *script.Analyzer
}

// Option configures a Service.
type Option func(*Service)

// WithConfig sets the configuration.
func WithConfig(cfg *config.Config) Option {
	return func(s *Service) {
		s.config = cfg
	}
}

// WithPythonAnalyzer replaces the configured Python analyzer.
func WithPythonAnalyzer(a *python.Analyzer) Option {
	return func(s *Service) {
		s.python = a
	}
}

// New creates a new analysis service. Analyzers not set by options are
// built from the configuration.
func New(opts ...Option) *Service {
	s := &Service{}
	for _, opt := range opts {
		opt(s)
	}
	if s.config == nil {
		s.config = config.LoadOrDefault()
	}
	if s.python == nil {
		s.python = python.New(python.WithStyleChecker(StyleChecker(s.config.Analysis)))
	}
	if s.script == nil {
		s.script = script.New(script.WithParseCheck(s.config.Analysis.JSParseCheck))
	}
	return s
}

// Config returns the service configuration.
func (s *Service) Config() *config.Config {
	return s.config
}

// StyleChecker builds the Python style collaborator named by cfg.
func StyleChecker(cfg config.AnalysisConfig) python.StyleChecker {
	switch cfg.StyleChecker {
	case config.StylePycodestyle:
		return python.NewPycodestyleChecker(cfg.MaxLineLength)
	case config.StyleNone:
		return python.NopChecker{}
	default:
		return &python.LineChecker{MaxLineLength: cfg.MaxLineLength}
	}
}

// Request is one dispatch call.
type Request struct {
	Code string
	// Kind is the declared file kind: py, html, css, js, rb, php or go.
	Kind     string
	FileName string
	// Markup is the companion document for the stylesheet unused-selector
	// check. Ignored for other kinds.
	Markup string
	// Performance adds the Python call-in-loop report.
	Performance bool
}

// Result holds exactly one populated report, selected by Kind.
type Result struct {
	Kind     analyzer.Kind
	FileName string

	Python      *python.Analysis
	Performance []python.Issue
	Markup      *markup.Analysis
	Stylesheet  *stylesheet.Analysis
	Script      *script.Analysis
	Generic     *generic.Analysis
}

// Report returns the populated per-kind report.
func (r *Result) Report() any {
	switch {
	case r.Python != nil:
		return r.Python
	case r.Markup != nil:
		return r.Markup
	case r.Stylesheet != nil:
		return r.Stylesheet
	case r.Script != nil:
		return r.Script
	case r.Generic != nil:
		return r.Generic
	}
	return nil
}

type resultJSON struct {
	FileType          analyzer.Kind  `json:"fileType" toon:"fileType"`
	FileName          string         `json:"fileName,omitempty" toon:"fileName,omitempty"`
	Result            any            `json:"result" toon:"result"`
	PerformanceIssues []python.Issue `json:"performance_issues,omitempty" toon:"performance_issues,omitempty"`
}

// Envelope is the serialized form: {fileType, fileName, result, performance_issues}.
func (r *Result) Envelope() any {
	return resultJSON{
		FileType:          r.Kind,
		FileName:          r.FileName,
		Result:            r.Report(),
		PerformanceIssues: r.Performance,
	}
}

// MarshalJSON implements json.Marshaler.
func (r *Result) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Envelope())
}

// UnmarshalJSON restores a Result from its envelope, decoding the report
// into the type for its kind.
func (r *Result) UnmarshalJSON(data []byte) error {
	var env struct {
		FileType          analyzer.Kind   `json:"fileType"`
		FileName          string          `json:"fileName"`
		Result            json.RawMessage `json:"result"`
		PerformanceIssues []python.Issue  `json:"performance_issues"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return err
	}
	kind, err := analyzer.ParseKind(string(env.FileType))
	if err != nil {
		return err
	}

	out := Result{Kind: kind, FileName: env.FileName, Performance: env.PerformanceIssues}
	var target any
	switch kind {
	case analyzer.KindPython:
		out.Python = &python.Analysis{}
		target = out.Python
	case analyzer.KindHTML:
		out.Markup = &markup.Analysis{}
		target = out.Markup
	case analyzer.KindCSS:
		out.Stylesheet = &stylesheet.Analysis{}
		target = out.Stylesheet
	case analyzer.KindJavaScript:
		out.Script = &script.Analysis{}
		target = out.Script
	default:
		out.Generic = &generic.Analysis{}
		target = out.Generic
	}
	if err := json.Unmarshal(env.Result, target); err != nil {
		return fmt.Errorf("failed to decode %s report: %w", kind, err)
	}
	*r = out
	return nil
}

// Analyze dispatches req. It fails with an *analyzer.UnsupportedKindError
// for unknown kinds and passes a *parser.ParseError through unchanged for
// Python that does not parse. Every other kind always succeeds.
func (s *Service) Analyze(ctx context.Context, req Request) (*Result, error) {
	kind, err := analyzer.ParseKind(req.Kind)
	if err != nil {
		return nil, err
	}
	res := &Result{Kind: kind, FileName: req.FileName}

	switch kind {
	case analyzer.KindPython:
		report, err := s.python.Analyze(ctx, req.Code)
		if err != nil {
			return nil, err
		}
		res.Python = report
		if req.Performance {
			issues, err := python.CheckPerformance(ctx, req.Code)
			if err != nil {
				return nil, err
			}
			res.Performance = issues
		}
	case analyzer.KindHTML:
		res.Markup, _ = markup.New().Analyze(ctx, req.Code)
	case analyzer.KindCSS:
		res.Stylesheet, _ = stylesheet.New(stylesheet.WithMarkup(req.Markup)).Analyze(ctx, req.Code)
	case analyzer.KindJavaScript:
		res.Script, _ = s.script.Analyze(ctx, req.Code)
	default:
		g, err := generic.New(kind)
		if err != nil {
			return nil, err
		}
		res.Generic, _ = g.Analyze(ctx, req.Code)
	}
	return res, nil
}

// CheckPerformance runs only the Python call-in-loop heuristic.
func (s *Service) CheckPerformance(ctx context.Context, code string) ([]python.Issue, error) {
	return python.CheckPerformance(ctx, code)
}

// FunctionLoad is the loop and call count of one Python function.
type FunctionLoad struct {
	Name  string `json:"name" toon:"name"`
	Line  int    `json:"line" toon:"line"`
	Loops int    `json:"loops" toon:"loops"`
	Calls int    `json:"calls" toon:"calls"`
}

// FunctionLoads profiles every Python function in code, the most loops
// first, then the most calls.
func (s *Service) FunctionLoads(ctx context.Context, code string) ([]FunctionLoad, error) {
	profiles, err := s.python.Profiles(ctx, code)
	if err != nil {
		return nil, err
	}
	loads := make([]FunctionLoad, 0, len(profiles))
	for _, p := range profiles {
		loads = append(loads, FunctionLoad{Name: p.Name, Line: p.Line, Loops: p.Loops, Calls: p.Depth})
	}
	sort.Slice(loads, func(i, j int) bool {
		a, b := loads[i], loads[j]
		if a.Loops != b.Loops {
			return a.Loops > b.Loops
		}
		if a.Calls != b.Calls {
			return a.Calls > b.Calls
		}
		return a.Line < b.Line
	})
	return loads, nil
}

// FileOptions configures AnalyzeFile.
type FileOptions struct {
	// Kind overrides detection by extension.
	Kind string
	// MarkupPath names a companion document for stylesheets.
	MarkupPath  string
	Performance bool
}

// AnalyzeFile reads path and analyzes it with the kind implied by its
// extension unless opts.Kind is set.
func (s *Service) AnalyzeFile(ctx context.Context, path string, opts FileOptions) (*Result, error) {
	kind := opts.Kind
	if kind == "" {
		k, ok := analyzer.KindFromPath(path)
		if !ok {
			return nil, &analyzer.UnsupportedKindError{Kind: filepath.Ext(path)}
		}
		kind = string(k)
	}

	if limit := s.config.Analysis.MaxFileSize; limit > 0 {
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("failed to stat %s: %w", path, err)
		}
		if info.Size() > limit {
			return nil, fmt.Errorf("%s is %d bytes, over the %d byte limit", path, info.Size(), limit)
		}
	}

	code, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	req := Request{Code: string(code), Kind: kind, FileName: filepath.Base(path), Performance: opts.Performance}
	if opts.MarkupPath != "" {
		html, err := os.ReadFile(opts.MarkupPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read markup %s: %w", opts.MarkupPath, err)
		}
		req.Markup = string(html)
	}
	return s.Analyze(ctx, req)
}

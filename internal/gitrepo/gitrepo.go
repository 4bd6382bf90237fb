// Package gitrepo clones a remote repository and analyzes the files it
// knows, within size and count limits.
package gitrepo

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/panbanda/prism/internal/service/analysis"
	"github.com/panbanda/prism/internal/summary"
	"github.com/panbanda/prism/pkg/analyzer"
	"github.com/panbanda/prism/pkg/config"
)

// Limits bound how much of a repository is analyzed.
type Limits struct {
	MaxFiles     int
	MaxFileSize  int64
	MaxTotalSize int64
	Concurrency  int
}

// LimitsFromConfig converts the git config section.
func LimitsFromConfig(cfg config.GitConfig) Limits {
	return Limits{
		MaxFiles:     cfg.MaxFiles,
		MaxFileSize:  cfg.MaxFileSize,
		MaxTotalSize: cfg.MaxTotalSize,
		Concurrency:  cfg.Concurrency,
	}
}

// Stage names a step of Analyze.
type Stage string

const (
	StageCloning   Stage = "cloning"
	StageScanning  Stage = "scanning"
	StageAnalyzing Stage = "analyzing"
	StageDone      Stage = "done"
)

// Progress is reported as Analyze advances. Done and Total count files
// during StageAnalyzing.
type Progress struct {
	Stage Stage
	Done  int
	Total int
	Path  string
}

// ProgressFunc receives progress updates. It may be called concurrently.
type ProgressFunc func(Progress)

// Skip reasons.
const (
	ReasonFileLimit  = "file limit reached"
	ReasonTooLarge   = "file too large"
	ReasonTotalLimit = "total size limit reached"
)

// FileResult is the analysis of one repository file.
type FileResult struct {
	Path    string           `json:"path" toon:"path"`
	Result  *analysis.Result `json:"result" toon:"result"`
	Summary *summary.Summary `json:"summary" toon:"summary"`
}

// SkippedFile is a file that was not analyzed.
type SkippedFile struct {
	Path   string `json:"path" toon:"path"`
	Reason string `json:"reason" toon:"reason"`
}

// Report is the outcome of analyzing a repository.
type Report struct {
	URL      string        `json:"repoUrl" toon:"repoUrl"`
	Branch   string        `json:"branch,omitempty" toon:"branch,omitempty"`
	Files    []FileResult  `json:"files" toon:"files"`
	Analyzed int           `json:"analyzed" toon:"analyzed"`
	Skipped  []SkippedFile `json:"skipped" toon:"skipped"`
}

// Cloner fetches src into a new directory and records it in src.CloneDir.
type Cloner func(ctx context.Context, src *Source, progress io.Writer) error

func shallowClone(ctx context.Context, src *Source, progress io.Writer) error {
	return src.Clone(ctx, progress, true)
}

type options struct {
	limits     Limits
	onProgress ProgressFunc
	logger     zerolog.Logger
	clone      Cloner
	cloneOut   io.Writer
}

// Option configures Analyze.
type Option func(*options)

// WithLimits overrides the limits taken from the service config.
func WithLimits(l Limits) Option {
	return func(o *options) {
		o.limits = l
	}
}

// WithProgress sets the progress callback.
func WithProgress(fn ProgressFunc) Option {
	return func(o *options) {
		o.onProgress = fn
	}
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithCloner replaces the shallow go-git clone.
func WithCloner(c Cloner) Option {
	return func(o *options) {
		o.clone = c
	}
}

// WithCloneOutput receives the remote's clone progress text.
func WithCloneOutput(w io.Writer) Option {
	return func(o *options) {
		o.cloneOut = w
	}
}

func (o *options) report(p Progress) {
	if o.onProgress != nil {
		o.onProgress(p)
	}
}

// Analyze shallow-clones url (one branch when branch is set) into a temp
// directory, analyzes it with AnalyzeDir and removes the clone.
func Analyze(ctx context.Context, svc *analysis.Service, url, branch string, opts ...Option) (*Report, error) {
	o := newOptions(svc, opts)
	log := o.logger.With().Str("component", "gitrepo").Str("url", url).Logger()

	src := &Source{URL: url, Ref: branch}
	defer func() {
		if err := src.Cleanup(); err != nil {
			log.Warn().Err(err).Msg("failed to remove clone")
		}
	}()

	o.report(Progress{Stage: StageCloning})
	log.Info().Str("branch", branch).Msg("cloning repository")
	if err := o.clone(ctx, src, o.cloneOut); err != nil {
		return nil, err
	}

	rep, err := analyzeDir(ctx, svc, src.CloneDir, o, log)
	if err != nil {
		return nil, err
	}
	rep.URL = url
	rep.Branch = branch
	return rep, nil
}

// AnalyzeDir analyzes an already checked out tree under the limits.
func AnalyzeDir(ctx context.Context, svc *analysis.Service, dir string, opts ...Option) (*Report, error) {
	o := newOptions(svc, opts)
	log := o.logger.With().Str("component", "gitrepo").Str("dir", dir).Logger()
	return analyzeDir(ctx, svc, dir, o, log)
}

func newOptions(svc *analysis.Service, opts []Option) *options {
	o := &options{
		limits: LimitsFromConfig(svc.Config().Git),
		logger: zerolog.Nop(),
		clone:  shallowClone,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.limits.Concurrency <= 0 {
		o.limits.Concurrency = 5
	}
	return o
}

type candidate struct {
	rel  string
	path string
}

func analyzeDir(ctx context.Context, svc *analysis.Service, dir string, o *options, log zerolog.Logger) (*Report, error) {
	o.report(Progress{Stage: StageScanning})
	files, skipped, err := collect(dir, o.limits)
	if err != nil {
		return nil, err
	}
	log.Debug().Int("files", len(files)).Int("skipped", len(skipped)).Msg("collected files")

	slots := make([]*FileResult, len(files))
	var (
		mu   sync.Mutex
		done int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.limits.Concurrency)
	for i, f := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := svc.AnalyzeFile(gctx, f.path, analysis.FileOptions{})
			if err == nil {
				res.FileName = f.rel
				slots[i] = &FileResult{Path: f.rel, Result: res, Summary: summary.Build(res)}
			}

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				log.Debug().Err(err).Str("path", f.rel).Msg("analysis failed")
				skipped = append(skipped, SkippedFile{Path: f.rel, Reason: err.Error()})
			}
			done++
			o.report(Progress{Stage: StageAnalyzing, Done: done, Total: len(files), Path: f.rel})
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	rep := &Report{Files: []FileResult{}, Skipped: skipped}
	for _, r := range slots {
		if r != nil {
			rep.Files = append(rep.Files, *r)
		}
	}
	rep.Analyzed = len(rep.Files)
	if rep.Skipped == nil {
		rep.Skipped = []SkippedFile{}
	}

	log.Info().Int("analyzed", rep.Analyzed).Int("skipped", len(rep.Skipped)).Msg("repository analyzed")
	o.report(Progress{Stage: StageDone, Done: len(files), Total: len(files)})
	return rep, nil
}

// collect walks dir in lexical order and applies the limits.
func collect(dir string, l Limits) ([]candidate, []SkippedFile, error) {
	var (
		files   []candidate
		skipped []SkippedFile
		total   int64
	)
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if _, ok := analyzer.KindFromPath(path); !ok {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		if l.MaxFiles > 0 && len(files) >= l.MaxFiles {
			skipped = append(skipped, SkippedFile{Path: rel, Reason: ReasonFileLimit})
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		if l.MaxFileSize > 0 && info.Size() > l.MaxFileSize {
			skipped = append(skipped, SkippedFile{Path: rel, Reason: ReasonTooLarge})
			return nil
		}
		if l.MaxTotalSize > 0 && total+info.Size() > l.MaxTotalSize {
			skipped = append(skipped, SkippedFile{Path: rel, Reason: ReasonTotalLimit})
			return nil
		}
		total += info.Size()
		files = append(files, candidate{rel: rel, path: path})
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to scan repository: %w", err)
	}
	return files, skipped, nil
}

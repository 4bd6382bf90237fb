package fileproc

import (
	"context"
	"os"
	"path/filepath"

	"github.com/panbanda/prism/internal/cache"
	"github.com/panbanda/prism/internal/service/analysis"
	"github.com/panbanda/prism/internal/summary"
	"github.com/panbanda/prism/pkg/analyzer"
)

// FileResult is the analysis of one file.
type FileResult struct {
	Path    string           `json:"path"`
	Result  *analysis.Result `json:"result"`
	Summary *summary.Summary `json:"summary"`
	Cached  bool             `json:"cached,omitempty"`
}

type analyzeOptions struct {
	workers     int
	performance bool
	cache       *cache.Cache
	onProgress  ProgressFunc
}

// AnalyzeOption configures AnalyzeFiles.
type AnalyzeOption func(*analyzeOptions)

// WithWorkers bounds the number of concurrent analyses.
func WithWorkers(n int) AnalyzeOption {
	return func(o *analyzeOptions) {
		o.workers = n
	}
}

// WithPerformance adds the Python performance report.
func WithPerformance(enabled bool) AnalyzeOption {
	return func(o *analyzeOptions) {
		o.performance = enabled
	}
}

// WithCache reuses results for unchanged content.
func WithCache(c *cache.Cache) AnalyzeOption {
	return func(o *analyzeOptions) {
		o.cache = c
	}
}

// WithProgress is called once per file.
func WithProgress(fn ProgressFunc) AnalyzeOption {
	return func(o *analyzeOptions) {
		o.onProgress = fn
	}
}

// AnalyzeFiles analyzes every file with the kind implied by its extension.
// Unreadable, oversized, unsupported or unparsable files are collected as
// errors and never abort the batch.
func AnalyzeFiles(ctx context.Context, svc *analysis.Service, files []string, opts ...AnalyzeOption) ([]FileResult, *ProcessingErrors) {
	o := analyzeOptions{workers: svc.Config().Analysis.Workers}
	for _, opt := range opts {
		opt(&o)
	}

	return ForEachFileWithContext(ctx, files, o.workers, func(ctx context.Context, path string) (FileResult, error) {
		kind, ok := analyzer.KindFromPath(path)
		if !ok || o.cache == nil || !o.cache.Enabled() {
			return analyzeOne(ctx, svc, path, o.performance)
		}

		content, err := os.ReadFile(path)
		if err != nil {
			return FileResult{}, err
		}
		key := cache.Key(kind, content, svc.Config().Analysis, o.performance)
		if res, hit := o.cache.GetResult(key); hit {
			res.FileName = filepath.Base(path)
			return FileResult{Path: path, Result: res, Summary: summary.Build(res), Cached: true}, nil
		}

		fr, err := analyzeOne(ctx, svc, path, o.performance)
		if err != nil {
			return FileResult{}, err
		}
		_ = o.cache.SetResult(key, fr.Result)
		return fr, nil
	}, o.onProgress)
}

func analyzeOne(ctx context.Context, svc *analysis.Service, path string, performance bool) (FileResult, error) {
	res, err := svc.AnalyzeFile(ctx, path, analysis.FileOptions{Performance: performance})
	if err != nil {
		return FileResult{}, err
	}
	return FileResult{Path: path, Result: res, Summary: summary.Build(res)}, nil
}

package fileproc

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"go.uber.org/goleak"

	"github.com/panbanda/prism/internal/cache"
	"github.com/panbanda/prism/internal/service/analysis"
	"github.com/panbanda/prism/pkg/analyzer"
	"github.com/panbanda/prism/pkg/config"
	"github.com/panbanda/prism/pkg/parser"
)

func newService() *analysis.Service {
	cfg := config.DefaultConfig()
	cfg.Analysis.StyleChecker = config.StyleNone
	return analysis.New(analysis.WithConfig(cfg))
}

func TestAnalyzeFiles(t *testing.T) {
	defer goleak.VerifyNone(t)

	dir := t.TempDir()
	files := []string{
		createTestFile(t, dir, "app.py", "import os\n"),
		createTestFile(t, dir, "broken.py", "def broken(:\n"),
		createTestFile(t, dir, "site.css", ".a { color: red; }\n"),
		createTestFile(t, dir, "notes.txt", "hello\n"),
	}

	results, errs := AnalyzeFiles(context.Background(), newService(), files, WithWorkers(2))

	if len(results) != 2 {
		t.Fatalf("AnalyzeFiles() returned %d results, want 2", len(results))
	}
	if results[0].Path != files[0] || results[0].Result.Kind != analyzer.KindPython {
		t.Errorf("results[0] = %+v, want app.py as python", results[0])
	}
	if results[0].Summary.IssuesCount != 1 {
		t.Errorf("app.py issues = %d, want 1 unused import", results[0].Summary.IssuesCount)
	}
	if results[1].Result.Kind != analyzer.KindCSS {
		t.Errorf("results[1] kind = %s, want css", results[1].Result.Kind)
	}

	if errs.Len() != 2 {
		t.Fatalf("errs = %v, want 2 failures", errs)
	}
	var perr *parser.ParseError
	var kerr *analyzer.UnsupportedKindError
	var sawParse, sawKind bool
	for _, e := range errs.Errors {
		sawParse = sawParse || errors.As(e.Err, &perr)
		sawKind = sawKind || errors.As(e.Err, &kerr)
	}
	if !sawParse || !sawKind {
		t.Errorf("errs = %v, want a parse error and an unsupported kind", errs)
	}
}

func TestAnalyzeFiles_Cache(t *testing.T) {
	defer goleak.VerifyNone(t)

	dir := t.TempDir()
	c, err := cache.New(filepath.Join(dir, ".cache"), 1, true)
	if err != nil {
		t.Fatal(err)
	}
	file := createTestFile(t, dir, "app.js", "let x = 42;\n")
	svc := newService()

	first, errs := AnalyzeFiles(context.Background(), svc, []string{file}, WithCache(c))
	if errs != nil || len(first) != 1 || first[0].Cached {
		t.Fatalf("first run = %+v, %v, want one fresh result", first, errs)
	}

	second, errs := AnalyzeFiles(context.Background(), svc, []string{file}, WithCache(c))
	if errs != nil || len(second) != 1 || !second[0].Cached {
		t.Fatalf("second run = %+v, %v, want one cached result", second, errs)
	}
	if second[0].Result.FileName != "app.js" {
		t.Errorf("cached FileName = %q, want app.js", second[0].Result.FileName)
	}
	if second[0].Summary.IssuesCount != first[0].Summary.IssuesCount {
		t.Errorf("cached issues = %d, want %d", second[0].Summary.IssuesCount, first[0].Summary.IssuesCount)
	}

	createTestFile(t, dir, "app.js", "let y = 7;\n")
	third, _ := AnalyzeFiles(context.Background(), svc, []string{file}, WithCache(c))
	if len(third) != 1 || third[0].Cached {
		t.Error("changed content should miss the cache")
	}
}

func TestAnalyzeFiles_Performance(t *testing.T) {
	dir := t.TempDir()
	file := createTestFile(t, dir, "loop.py", "for i in range(3):\n    print(i)\n")

	results, errs := AnalyzeFiles(context.Background(), newService(), []string{file}, WithPerformance(true))
	if errs != nil || len(results) != 1 {
		t.Fatalf("AnalyzeFiles() = %v, %v", results, errs)
	}
	if len(results[0].Result.Performance) == 0 {
		t.Error("performance issues should be reported when enabled")
	}
}

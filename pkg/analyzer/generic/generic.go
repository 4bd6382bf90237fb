// Package generic gives a coarse line, function and comment count for
// languages without a dedicated analyzer.
package generic

import (
	"context"
	"regexp"
	"strings"

	"github.com/panbanda/prism/pkg/analyzer"
)

// Ensure Analyzer implements analyzer.SourceAnalyzer.
var _ analyzer.SourceAnalyzer[*Analysis] = (*Analyzer)(nil)

// Info messages.
const (
	InfoNoFunctions = "No functions detected (simple heuristic)."
	InfoNoComments  = "No comments found."
)

// Analysis is the generic report.
type Analysis struct {
	Lines     int      `json:"lines" toon:"lines"`
	Functions []string `json:"functions" toon:"functions"`
	Comments  int      `json:"comments" toon:"comments"`
	Info      []string `json:"info" toon:"info"`
}

type patterns struct {
	function *regexp.Regexp
	comment  *regexp.Regexp
}

var languagePatterns = map[analyzer.Kind]patterns{
	analyzer.KindRuby: {
		function: regexp.MustCompile(`def\s+([a-zA-Z0-9_!?]+)`),
		comment:  regexp.MustCompile(`#`),
	},
	analyzer.KindPHP: {
		function: regexp.MustCompile(`function\s+([a-zA-Z0-9_]+)`),
		comment:  regexp.MustCompile(`//|#|/\*.*?\*/`),
	},
	analyzer.KindGo: {
		function: regexp.MustCompile(`func\s+([A-Za-z0-9_]+)`),
		comment:  regexp.MustCompile(`//|/\*.*?\*/`),
	},
}

// Supports reports whether kind has generic patterns.
func Supports(kind analyzer.Kind) bool {
	_, ok := languagePatterns[kind]
	return ok
}

// Analyzer counts lines, functions and comment lines for one language.
type Analyzer struct {
	kind analyzer.Kind
}

// New creates a generic analyzer for kind. It returns an
// *analyzer.UnsupportedKindError when kind has no patterns.
func New(kind analyzer.Kind) (*Analyzer, error) {
	if !Supports(kind) {
		return nil, &analyzer.UnsupportedKindError{Kind: string(kind)}
	}
	return &Analyzer{kind: kind}, nil
}

// Analyze implements analyzer.SourceAnalyzer. The error is always nil.
func (a *Analyzer) Analyze(_ context.Context, code string) (*Analysis, error) {
	p := languagePatterns[a.kind]
	lines := strings.Split(strings.ReplaceAll(code, "\r\n", "\n"), "\n")

	res := &Analysis{Lines: len(lines), Functions: []string{}, Info: []string{}}
	seen := map[string]struct{}{}
	for _, line := range lines {
		for _, m := range p.function.FindAllStringSubmatch(line, -1) {
			if _, ok := seen[m[1]]; !ok {
				seen[m[1]] = struct{}{}
				res.Functions = append(res.Functions, m[1])
			}
		}
		if p.comment.MatchString(line) {
			res.Comments++
		}
	}

	if len(res.Functions) == 0 {
		res.Info = append(res.Info, InfoNoFunctions)
	}
	if res.Comments == 0 {
		res.Info = append(res.Info, InfoNoComments)
	}
	return res, nil
}

// Package script implements the line-oriented JavaScript analyzer.
//
// The checks are textual heuristics: names are matched by pattern, not
// resolved, so unused-function and unused-variable results are
// approximations.
package script

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/panbanda/prism/pkg/analyzer"
	"github.com/panbanda/prism/pkg/analyzer/markup"
)

// Ensure Analyzer implements analyzer.SourceAnalyzer.
var _ analyzer.SourceAnalyzer[*Analysis] = (*Analyzer)(nil)

// MaxLineLength is the long-line threshold.
const MaxLineLength = 120

var (
	funcDeclRe      = regexp.MustCompile(`^\s*function\s+([a-zA-Z_]\w*)\s*\(`)
	arrowFuncRe     = regexp.MustCompile(`^\s*(?:const|let|var)\s+([a-zA-Z_]\w*)\s*=\s*\(?.*\)?\s*=>`)
	funcExprRe      = regexp.MustCompile(`^\s*(?:const|let|var)\s+([a-zA-Z_]\w*)\s*=\s*function\s*\(`)
	bindingRe       = regexp.MustCompile(`\b(?:let|const|var)\s+([a-zA-Z_]\w*)`)
	varRe           = regexp.MustCompile(`\bvar\b`)
	letRe           = regexp.MustCompile(`\blet\b`)
	constRe         = regexp.MustCompile(`\bconst\b`)
	evalRe          = regexp.MustCompile(`\beval\s*\(`)
	documentWriteRe = regexp.MustCompile(`document\.write\s*\(`)
	todoRe          = regexp.MustCompile(`(?i)//.*(TODO|FIXME)`)
	numberRe        = regexp.MustCompile(`[^a-zA-Z_](-?\d+(\.\d+)?)`)
	lastCharRe      = regexp.MustCompile(`[a-zA-Z0-9)\]'"]$`)
	consoleLogRe    = regexp.MustCompile(`console\.log\s*\(`)
	callRe          = regexp.MustCompile(`([a-zA-Z_]\w*)\s*\(`)
	wordRe          = regexp.MustCompile(`\b([a-zA-Z_]\w*)\b`)
)

// Analyzer checks JavaScript source. It never fails.
type Analyzer struct {
	parseCheck bool
}

// Option is a functional option for configuring Analyzer.
type Option func(*Analyzer)

// WithParseCheck toggles the full parse that fills ParseErrors.
func WithParseCheck(enabled bool) Option {
	return func(a *Analyzer) {
		a.parseCheck = enabled
	}
}

// New creates a new script analyzer. The parse check is on by default.
func New(opts ...Option) *Analyzer {
	a := &Analyzer{parseCheck: true}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Analyze implements analyzer.SourceAnalyzer. The error is always nil.
func (a *Analyzer) Analyze(_ context.Context, code string) (*Analysis, error) {
	res := Analyze(code)
	if a.parseCheck {
		res.ParseErrors = ParseErrors(code)
	}
	return res, nil
}

type declarations struct {
	names []string
	lines map[string]int
}

func (d *declarations) add(name string, line int) {
	d.names = append(d.names, name)
	d.lines[name] = line
}

func (d *declarations) list(filter func(string) bool) []Declaration {
	out := []Declaration{}
	for _, name := range d.names {
		if filter == nil || filter(name) {
			out = append(out, Declaration{Name: name, Line: d.lines[name]})
		}
	}
	return out
}

// Analyze runs the declaration pass, the usage pass and the global
// bracket balance check. ParseErrors is left empty.
func Analyze(code string) *Analysis {
	res := newAnalysis()
	lines := markup.SplitLines(code)
	funcs := &declarations{lines: map[string]int{}}
	vars := &declarations{lines: map[string]int{}}

	for i, line := range lines {
		row := i + 1
		if m := funcDeclRe.FindStringSubmatch(line); m != nil {
			funcs.add(m[1], row)
		}
		if m := arrowFuncRe.FindStringSubmatch(line); m != nil {
			funcs.add(m[1], row)
			res.ArrowFunctions = append(res.ArrowFunctions, Declaration{Name: m[1], Line: row})
		}
		if m := funcExprRe.FindStringSubmatch(line); m != nil {
			funcs.add(m[1], row)
			res.AnonymousFunctions = append(res.AnonymousFunctions, Declaration{Name: m[1], Line: row})
		}
		for _, m := range bindingRe.FindAllStringSubmatch(line, -1) {
			vars.add(m[1], row)
		}
		if varRe.MatchString(line) {
			res.VarUsage = append(res.VarUsage, row)
		}
		if letRe.MatchString(line) {
			res.LetUsage = append(res.LetUsage, row)
		}
		if constRe.MatchString(line) {
			res.ConstUsage = append(res.ConstUsage, row)
		}
		if evalRe.MatchString(line) {
			res.EvalUsage = append(res.EvalUsage, row)
		}
		if documentWriteRe.MatchString(line) {
			res.DocumentWriteUsage = append(res.DocumentWriteUsage, row)
		}
		if todoRe.MatchString(line) {
			res.TodoComments = append(res.TodoComments, Comment{Comment: strings.TrimSpace(line), Line: row})
		}
		if len([]rune(line)) > MaxLineLength {
			res.LongLines = append(res.LongLines, row)
		}
		for _, m := range numberRe.FindAllStringSubmatch(line, -1) {
			if m[1] != "0" && m[1] != "1" {
				res.MagicNumbers = append(res.MagicNumbers, MagicNumber{Value: m[1], Line: row})
			}
		}
		if missingSemicolon(line) {
			res.SemicolonMissing = append(res.SemicolonMissing, row)
		}
		if strings.Contains(line, "===") {
			res.TripleEquals = append(res.TripleEquals, row)
		} else if strings.Contains(line, "==") {
			res.DoubleEquals = append(res.DoubleEquals, row)
		}
		if consoleLogRe.MatchString(line) {
			res.ConsoleLogUsage = append(res.ConsoleLogUsage, row)
		}
	}

	called := map[string]struct{}{}
	used := map[string]struct{}{}
	for _, line := range lines {
		for _, m := range callRe.FindAllStringSubmatch(line, -1) {
			called[m[1]] = struct{}{}
		}
		for _, m := range wordRe.FindAllStringSubmatch(line, -1) {
			used[m[1]] = struct{}{}
		}
	}

	res.DeclaredFunctions = funcs.list(nil)
	res.UnusedFunctions = funcs.list(func(name string) bool {
		_, ok := called[name]
		return !ok
	})
	res.DeclaredVariables = vars.list(nil)
	res.UnusedVariables = vars.list(func(name string) bool {
		_, ok := used[name]
		return !ok
	})

	if open, closed := strings.Count(code, "{"), strings.Count(code, "}"); open != closed {
		res.SyntaxErrors = append(res.SyntaxErrors, fmt.Sprintf("Mismatched '{' count (%d) vs '}' (%d)", open, closed))
	}
	if open, closed := strings.Count(code, "("), strings.Count(code, ")"); open != closed {
		res.SyntaxErrors = append(res.SyntaxErrors, fmt.Sprintf("Mismatched '(' count (%d) vs ')' (%d)", open, closed))
	}
	return res
}

func missingSemicolon(line string) bool {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" || strings.HasPrefix(trimmed, "//") {
		return false
	}
	switch trimmed[len(trimmed)-1] {
	case ';', '{', '}', ':':
		return false
	}
	return lastCharRe.MatchString(trimmed)
}

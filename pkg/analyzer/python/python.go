// Package python implements the structural analyzer for Python source.
package python

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/panbanda/prism/pkg/analyzer"
	"github.com/panbanda/prism/pkg/parser"
	"github.com/zeebo/blake3"
)

// Ensure Analyzer implements analyzer.SourceAnalyzer.
var _ analyzer.SourceAnalyzer[*Analysis] = (*Analyzer)(nil)

// Default refactor thresholds: a function is flagged when it has more
// loops or more calls than these.
const (
	DefaultMaxLoops = 2
	DefaultMaxDepth = 5
)

// Analyzer runs the structural detectors over Python source.
// It holds configuration only; every Analyze call builds fresh state.
type Analyzer struct {
	style    StyleChecker
	registry *Registry
	maxLoops int
	maxDepth int
}

// Option is a functional option for configuring Analyzer.
type Option func(*Analyzer)

// WithStyleChecker sets the style collaborator (default: LineChecker).
func WithStyleChecker(c StyleChecker) Option {
	return func(a *Analyzer) {
		if c == nil {
			c = NopChecker{}
		}
		a.style = c
	}
}

// WithRegistry sets the third-party snippet registry (default: DefaultRegistry).
func WithRegistry(r *Registry) Option {
	return func(a *Analyzer) {
		a.registry = r
	}
}

// WithRefactorThresholds sets the loop and call-depth limits for refactor suggestions.
func WithRefactorThresholds(maxLoops, maxDepth int) Option {
	return func(a *Analyzer) {
		a.maxLoops = maxLoops
		a.maxDepth = maxDepth
	}
}

// New creates a new Python analyzer.
func New(opts ...Option) *Analyzer {
	a := &Analyzer{
		style:    NewLineChecker(),
		registry: DefaultRegistry(),
		maxLoops: DefaultMaxLoops,
		maxDepth: DefaultMaxDepth,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Analyze parses code and runs every structural detector. It fails only
// with a *parser.ParseError when code is not valid Python.
func (a *Analyzer) Analyze(ctx context.Context, code string) (*Analysis, error) {
	root, err := parseSource(ctx, code)
	if err != nil {
		return nil, err
	}

	w := newWalker(a)
	w.visit(root)
	res := w.finish(root)
	res.StyleIssues = a.checkStyle(ctx, code)
	return res, nil
}

func parseSource(ctx context.Context, code string) (*parser.Node, error) {
	psr := parser.New()
	defer psr.Close()
	return psr.ParsePython(ctx, []byte(code))
}

func (a *Analyzer) checkStyle(ctx context.Context, code string) []string {
	issues, err := a.style.Check(ctx, SourceLines(code))
	if err != nil {
		return []string{StatusString(err)}
	}
	if issues == nil {
		return []string{}
	}
	return issues
}

// SourceLines normalizes line endings and splits code into lines without
// a trailing empty element.
func SourceLines(code string) []string {
	code = strings.ReplaceAll(code, "\r\n", "\n")
	if code == "" {
		return []string{}
	}
	return strings.Split(strings.TrimSuffix(code, "\n"), "\n")
}

// HashCanonical returns the structural hash of a canonical function text.
func HashCanonical(canonical string) string {
	sum := blake3.Sum256([]byte(canonical))
	return fmt.Sprintf("%x", sum[:16])
}

type nameSet map[string]struct{}

func (s nameSet) add(name string) { s[name] = struct{}{} }

func (s nameSet) has(name string) bool {
	_, ok := s[name]
	return ok
}

// minus returns the sorted names of s that are absent from other.
func (s nameSet) minus(other nameSet) []string {
	out := make([]string, 0, len(s))
	for name := range s {
		if !other.has(name) {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

func (s nameSet) sorted() []string {
	return s.minus(nil)
}

// walker carries every collection built during one traversal.
type walker struct {
	a   *Analyzer
	res *Analysis

	declaredFuncs nameSet
	called        nameSet
	declaredVars  nameSet
	usedVars      nameSet
	usedNames     nameSet
	imported      nameSet
	uninitialized nameSet

	profiles     map[string]*FunctionProfile
	profileOrder []string
	hashGroups   map[string][]string
	hashOrder    []string

	current *FunctionProfile
}

func newWalker(a *Analyzer) *walker {
	return &walker{
		a:             a,
		res:           newAnalysis(),
		declaredFuncs: nameSet{},
		called:        nameSet{},
		declaredVars:  nameSet{},
		usedVars:      nameSet{},
		usedNames:     nameSet{},
		imported:      nameSet{},
		uninitialized: nameSet{},
		profiles:      map[string]*FunctionProfile{},
		hashGroups:    map[string][]string{},
	}
}

func (w *walker) visit(n *parser.Node) {
	switch n.Kind {
	case parser.KindFunction:
		w.function(n)
		return
	case parser.KindClass:
		if !n.HasDocstring {
			w.res.DocstringIssues = append(w.res.DocstringIssues,
				Issue{Line: n.Line, Message: fmt.Sprintf(msgClassNoDocstring, n.Name)})
		}
	case parser.KindCall:
		if n.Name != "" {
			w.called.add(n.Name)
			if n.Name == "print" {
				w.res.PrintStatements = append(w.res.PrintStatements, PrintStatement{Line: n.Line, Code: n.Text})
			}
		}
	case parser.KindAssign:
		for _, t := range n.Targets {
			if t.Kind == parser.KindName {
				w.declaredVars.add(t.Name)
				if w.current != nil {
					w.current.Writes[t.Name] = struct{}{}
				}
			}
		}
	case parser.KindName:
		if !n.Store {
			w.load(n.Name)
		}
	case parser.KindImport:
		for _, b := range n.Bindings {
			w.imported.add(b)
		}
	case parser.KindSubscript:
		if n.IntIndex {
			w.res.CommonErrors = append(w.res.CommonErrors, Issue{Line: n.Line, Message: msgPossibleIndexError})
		}
	}
	w.visitChildren(n)
}

func (w *walker) visitChildren(n *parser.Node) {
	for _, t := range n.Targets {
		w.visit(t)
	}
	for _, c := range n.Children {
		w.visit(c)
	}
}

// load records a read. A name read before any plain assignment to it has
// been seen anywhere earlier in the unit counts as uninitialized.
func (w *walker) load(name string) {
	if !w.declaredVars.has(name) {
		w.uninitialized.add(name)
	}
	w.usedVars.add(name)
	w.usedNames.add(name)
	if w.current != nil {
		w.current.Reads[name] = struct{}{}
	}
}

func (w *walker) function(n *parser.Node) {
	w.declaredFuncs.add(n.Name)

	prof := &FunctionProfile{
		Name:         n.Name,
		Line:         n.Line,
		HasDocstring: n.HasDocstring,
		Loops:        countLoops(n),
		Depth:        countCalls(n),
		Hash:         HashCanonical(n.Canonical),
		Reads:        map[string]struct{}{},
		Writes:       map[string]struct{}{},
	}
	if _, seen := w.profiles[n.Name]; !seen {
		w.profileOrder = append(w.profileOrder, n.Name)
	}
	w.profiles[n.Name] = prof

	if !n.HasDocstring {
		w.res.DocstringIssues = append(w.res.DocstringIssues,
			Issue{Line: n.Line, Message: fmt.Sprintf(msgFunctionNoDocstring, n.Name)})
	}

	if _, seen := w.hashGroups[prof.Hash]; !seen {
		w.hashOrder = append(w.hashOrder, prof.Hash)
	}
	w.hashGroups[prof.Hash] = append(w.hashGroups[prof.Hash], n.Name)

	if prof.Loops > w.a.maxLoops || prof.Depth > w.a.maxDepth {
		w.res.RefactorSuggestions = append(w.res.RefactorSuggestions,
			Issue{Line: n.Line, Message: fmt.Sprintf(msgTooComplex, n.Name)})
	}

	outer := w.current
	w.current = prof
	w.visitChildren(n)
	w.current = outer
}

// countLoops counts for/while constructs inside fn, leaving loops of nested
// functions to those functions.
func countLoops(fn *parser.Node) int {
	loops := 0
	for _, c := range fn.Children {
		c.Walk(func(n *parser.Node) bool {
			switch n.Kind {
			case parser.KindFunction:
				return false
			case parser.KindFor, parser.KindWhile:
				loops++
			}
			return true
		})
	}
	return loops
}

// countCalls counts every call expression anywhere inside fn.
func countCalls(fn *parser.Node) int {
	calls := 0
	fn.Walk(func(n *parser.Node) bool {
		if n.Kind == parser.KindCall {
			calls++
		}
		return true
	})
	return calls
}

func (w *walker) finish(root *parser.Node) *Analysis {
	res := w.res

	res.DeclaredFunctions = w.declaredFuncs.sorted()
	res.CalledFunctions = w.called.sorted()
	res.UnusedFunctions = w.declaredFuncs.minus(w.called)
	res.DeclaredVars = w.declaredVars.sorted()
	res.UsedVars = w.usedVars.sorted()
	res.UnusedVars = w.declaredVars.minus(w.usedVars)
	res.UninitializedVars = w.uninitialized.sorted()
	res.UnusedImports = w.imported.minus(w.usedNames)

	for _, name := range w.profileOrder {
		p := w.profiles[name]
		res.FunctionComplexity[name] = Complexity{Loops: p.Loops, Depth: p.Depth}
		res.UnusedWrites[name] = nameSet(p.Writes).minus(nameSet(p.Reads))
	}

	for _, h := range w.hashOrder {
		if names := w.hashGroups[h]; len(names) > 1 {
			res.DuplicateFunctions = append(res.DuplicateFunctions, names)
		}
	}

	res.DeadCode = DetectDeadCode(root)
	res.ThirdPartyCode = w.a.registry.Detect(root)
	return res
}

// Profiles exposes the per-function profiles of a source text, keyed by
// function name. It is the same bookkeeping Analyze performs.
func (a *Analyzer) Profiles(ctx context.Context, code string) (map[string]*FunctionProfile, error) {
	root, err := parseSource(ctx, code)
	if err != nil {
		return nil, err
	}
	w := newWalker(a)
	w.visit(root)
	return w.profiles, nil
}

// Package stylesheet implements the CSS block, selector and property
// analyzer with an optional markup cross-check.
package stylesheet

import (
	"context"
	"regexp"
	"sort"
	"strings"

	"github.com/hbollon/go-edlib"

	"github.com/panbanda/prism/pkg/analyzer"
	"github.com/panbanda/prism/pkg/analyzer/markup"
)

// Ensure Analyzer implements analyzer.SourceAnalyzer.
var _ analyzer.SourceAnalyzer[*Analysis] = (*Analyzer)(nil)

// KnownProperties is the allow-list used for the unknown-property check.
var KnownProperties = map[string]struct{}{
	"color": {}, "background": {}, "background-color": {}, "font-size": {}, "font-family": {},
	"margin": {}, "padding": {}, "border": {}, "border-radius": {}, "width": {}, "height": {},
	"display": {}, "position": {}, "top": {}, "left": {}, "right": {}, "bottom": {},
	"text-align": {}, "line-height": {}, "list-style-type": {}, "max-width": {}, "min-width": {},
	"max-height": {}, "min-height": {}, "overflow": {}, "z-index": {}, "box-shadow": {},
	"opacity": {}, "transition": {}, "cursor": {}, "float": {}, "clear": {}, "padding-left": {},
}

// DefaultSuggestionThreshold is the minimum Levenshtein similarity for a
// known property to be offered as a replacement.
const DefaultSuggestionThreshold = 0.6

var (
	blockRe     = regexp.MustCompile(`([.#]?[a-zA-Z_][\w\-]*)\s*\{([^}]*)\}`)
	selectorRe  = regexp.MustCompile(`^[.#]?[a-zA-Z_][\w\-]*$`)
	classAttrRe = regexp.MustCompile(`class="([^"]+)"`)
	knownSorted = sortedKnown()
)

func sortedKnown() []string {
	out := make([]string, 0, len(KnownProperties))
	for p := range KnownProperties {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Analyzer checks stylesheets. It never fails.
type Analyzer struct {
	markup    string
	threshold float32
}

// Option is a functional option for configuring Analyzer.
type Option func(*Analyzer)

// WithMarkup sets the companion markup used for the unused-selector check.
func WithMarkup(html string) Option {
	return func(a *Analyzer) {
		a.markup = html
	}
}

// WithSuggestionThreshold sets the similarity needed for a suggestion.
// A threshold above 1 disables suggestions.
func WithSuggestionThreshold(t float32) Option {
	return func(a *Analyzer) {
		a.threshold = t
	}
}

// New creates a new stylesheet analyzer.
func New(opts ...Option) *Analyzer {
	a := &Analyzer{threshold: DefaultSuggestionThreshold}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Analyze implements analyzer.SourceAnalyzer. The error is always nil.
func (a *Analyzer) Analyze(_ context.Context, code string) (*Analysis, error) {
	return a.AnalyzeWithMarkup(code, a.markup), nil
}

// AnalyzeWithMarkup analyzes code and, when html is non-empty, reports
// class and id selectors that html never uses.
func (a *Analyzer) AnalyzeWithMarkup(code, html string) *Analysis {
	res := newAnalysis()
	counts := map[string]int{}
	var order []string

	for _, b := range Blocks(code) {
		res.Selectors = append(res.Selectors, b.Selector)
		res.SelectorLines[b.Selector] = append(res.SelectorLines[b.Selector], b.Line)
		if counts[b.Selector] == 0 {
			order = append(order, b.Selector)
		}
		counts[b.Selector]++
		if !selectorRe.MatchString(b.Selector) {
			res.InvalidSelectors = append(res.InvalidSelectors, b.Selector)
		}
		a.checkProperties(res, b)
	}

	for _, sel := range order {
		if counts[sel] > 1 {
			res.DuplicatedSelectors = append(res.DuplicatedSelectors, sel)
		}
	}

	if html != "" {
		res.UnusedSelectors = unusedSelectors(res.Selectors, html)
	}
	return res
}

// Blocks extracts every "selector { body }" block. The first "}" ends a
// block; nesting is not understood.
func Blocks(code string) []Block {
	var blocks []Block
	for _, m := range blockRe.FindAllStringSubmatchIndex(code, -1) {
		line := strings.Count(code[:m[2]], "\n") + 1
		blocks = append(blocks, Block{
			Selector: code[m[2]:m[3]],
			Line:     line,
			Body:     code[m[4]:m[5]],
			BodyLine: line + strings.Count(code[m[2]:m[4]], "\n"),
		})
	}
	return blocks
}

// checkProperties splits the body on newlines and semicolons so that
// single-line blocks get one declaration per segment.
func (a *Analyzer) checkProperties(res *Analysis, b Block) {
	seen := map[string]struct{}{}
	for i, physical := range strings.Split(b.Body, "\n") {
		line := b.BodyLine + i
		for _, segment := range strings.Split(physical, ";") {
			decl := strings.TrimSpace(segment)
			if decl == "" || strings.HasPrefix(decl, "/*") || strings.HasPrefix(decl, "}") {
				continue
			}
			name, _, ok := strings.Cut(decl, ":")
			if !ok {
				res.InvalidProperties = append(res.InvalidProperties,
					PropertyFinding{Selector: b.Selector, Line: line, Property: decl})
				continue
			}
			name = strings.TrimSpace(name)
			if _, dup := seen[name]; dup {
				res.RepeatedProperties = append(res.RepeatedProperties,
					PropertyFinding{Selector: b.Selector, Line: line, Property: name})
			} else {
				seen[name] = struct{}{}
			}
			if _, known := KnownProperties[name]; !known {
				res.UnknownProperties = append(res.UnknownProperties,
					PropertyFinding{Selector: b.Selector, Line: line, Property: name, Suggestion: a.suggest(name)})
			}
		}
	}
}

// suggest returns the most similar known property, or "" when none reaches
// the threshold. Ties go to the alphabetically first property.
func (a *Analyzer) suggest(name string) string {
	best, bestScore := "", float32(0)
	for _, known := range knownSorted {
		score, err := edlib.StringsSimilarity(strings.ToLower(name), known, edlib.Levenshtein)
		if err != nil {
			continue
		}
		if score >= a.threshold && score > bestScore {
			best, bestScore = known, score
		}
	}
	return best
}

func unusedSelectors(selectors []string, html string) []string {
	classes := map[string]struct{}{}
	for _, m := range classAttrRe.FindAllStringSubmatch(html, -1) {
		for _, c := range strings.Fields(m[1]) {
			classes[c] = struct{}{}
		}
	}
	ids := markup.IDs(html)

	unused := []string{}
	for _, sel := range selectors {
		switch {
		case strings.HasPrefix(sel, "."):
			if _, ok := classes[sel[1:]]; !ok {
				unused = append(unused, sel)
			}
		case strings.HasPrefix(sel, "#"):
			if _, ok := ids[sel[1:]]; !ok {
				unused = append(unused, sel)
			}
		}
	}
	return unused
}

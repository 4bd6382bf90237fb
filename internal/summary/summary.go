// Package summary turns an analysis result into titled sections for
// display and export.
package summary

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/panbanda/prism/internal/service/analysis"
	"github.com/panbanda/prism/pkg/analyzer/generic"
	"github.com/panbanda/prism/pkg/analyzer/markup"
	"github.com/panbanda/prism/pkg/analyzer/python"
	"github.com/panbanda/prism/pkg/analyzer/script"
	"github.com/panbanda/prism/pkg/analyzer/stylesheet"
)

// Severity classifies a section.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeveritySuccess Severity = "success"
)

// Section is one displayable category of findings.
type Section struct {
	ID       string   `json:"id" toon:"id"`
	Title    string   `json:"title" toon:"title"`
	Severity Severity `json:"severity" toon:"severity"`
	Items    []string `json:"items" toon:"items"`
	Hint     string   `json:"hint,omitempty" toon:"hint,omitempty"`
}

// Summary is the section list of one result.
type Summary struct {
	GeneratedAt time.Time `json:"generatedAt" toon:"generatedAt"`
	// IssuesCount is the number of items across warning sections.
	IssuesCount int `json:"issuesCount" toon:"issuesCount"`
	// FlaggedLines is the number of distinct source lines carrying at
	// least one warning.
	FlaggedLines uint64    `json:"flaggedLines" toon:"flaggedLines"`
	Sections     []Section `json:"sections" toon:"sections"`
}

// Build summarizes res as of now.
func Build(res *analysis.Result) *Summary {
	return BuildAt(res, time.Now())
}

// BuildAt summarizes res with a fixed timestamp.
func BuildAt(res *analysis.Result, at time.Time) *Summary {
	b := &builder{lines: roaring.New()}
	switch {
	case res.Python != nil:
		b.python(res.Python, res.Performance)
	case res.Markup != nil:
		b.markup(res.Markup)
	case res.Stylesheet != nil:
		b.stylesheet(res.Stylesheet)
	case res.Script != nil:
		b.script(res.Script)
	case res.Generic != nil:
		b.generic(res.Generic)
	}

	s := &Summary{
		GeneratedAt:  at.UTC(),
		FlaggedLines: b.lines.GetCardinality(),
		Sections:     b.sections,
	}
	if s.Sections == nil {
		s.Sections = []Section{}
	}
	for _, sec := range s.Sections {
		if sec.Severity == SeverityWarning {
			s.IssuesCount += len(sec.Items)
		}
	}
	return s
}

// HasWarnings reports whether any section is a warning.
func (s *Summary) HasWarnings() bool {
	for _, sec := range s.Sections {
		if sec.Severity == SeverityWarning {
			return true
		}
	}
	return false
}

type builder struct {
	sections []Section
	lines    *roaring.Bitmap
}

func (b *builder) add(id, title string, sev Severity, items []string, hint string) {
	if len(items) == 0 {
		return
	}
	b.sections = append(b.sections, Section{ID: id, Title: title, Severity: sev, Items: items, Hint: hint})
}

func (b *builder) warn(id, title string, items []string, hint string) {
	b.add(id, title, SeverityWarning, items, hint)
}

func (b *builder) flag(line int) {
	if line > 0 {
		b.lines.Add(uint32(line))
	}
}

func (b *builder) successUnlessWarned(id, message string) {
	for _, sec := range b.sections {
		if sec.Severity == SeverityWarning {
			return
		}
	}
	b.sections = append(b.sections, Section{
		ID:       id,
		Title:    "No critical issues found",
		Severity: SeveritySuccess,
		Items:    []string{message},
	})
}

func (b *builder) issues(list []python.Issue) []string {
	items := make([]string, 0, len(list))
	for _, is := range list {
		b.flag(is.Line)
		items = append(items, fmt.Sprintf("Line %d: %s", is.Line, is.Message))
	}
	return items
}

func lines(list []int) []string {
	items := make([]string, 0, len(list))
	for _, l := range list {
		items = append(items, fmt.Sprintf("Line %d", l))
	}
	return items
}

func (b *builder) python(r *python.Analysis, perf []python.Issue) {
	b.warn("python-unused-functions", "Declared but unused functions", r.UnusedFunctions,
		"Remove unused functions to keep the code clean.")
	b.warn("python-unused-vars", "Declared but unused variables", r.UnusedVars,
		"Remove unused variables to keep the code tidy.")
	b.warn("python-unused-imports", "Unused imports", r.UnusedImports, "")
	b.warn("python-docstrings", "Docstring issues", b.issues(r.DocstringIssues),
		"Add docstrings to document functions and classes.")
	b.warn("python-dead-code", "Dead code", b.issues(r.DeadCode), "")

	dups := make([]string, 0, len(r.DuplicateFunctions))
	for _, group := range r.DuplicateFunctions {
		dups = append(dups, strings.Join(group, ", "))
	}
	b.warn("python-duplicate-functions", "Duplicate functions", dups, "")

	funcs := make([]string, 0, len(r.UnusedWrites))
	for fn := range r.UnusedWrites {
		funcs = append(funcs, fn)
	}
	sort.Strings(funcs)
	var writes []string
	for _, fn := range funcs {
		for _, v := range r.UnusedWrites[fn] {
			writes = append(writes, fmt.Sprintf("Function '%s': %s", fn, v))
		}
	}
	b.warn("python-unused-writes", "Assigned but never read", writes, "")

	b.warn("python-uninitialized", "Variables used before assignment", r.UninitializedVars, "")
	b.warn("python-style", "Style issues (PEP 8)", r.StyleIssues, "")
	b.warn("python-common-errors", "Common error patterns", b.issues(r.CommonErrors), "")
	b.warn("python-refactor", "Refactoring suggestions", b.issues(r.RefactorSuggestions), "")
	b.warn("python-third-party", "Third-party code detected", b.issues(r.ThirdPartyCode), "")
	b.warn("python-performance", "Possible performance issues", b.issues(perf), "")

	prints := make([]string, 0, len(r.PrintStatements))
	for _, p := range r.PrintStatements {
		prints = append(prints, fmt.Sprintf("Line %d: %s", p.Line, p.Code))
	}
	b.add("python-prints", "print() calls", SeverityInfo, prints, "")

	b.successUnlessWarned("python-success", "The Python code raised no warnings.")
}

func (b *builder) tags(list []markup.TagEntry, format string) []string {
	items := make([]string, 0, len(list))
	for _, t := range list {
		b.flag(t.Line)
		items = append(items, fmt.Sprintf(format, t.Tag, t.Line))
	}
	return items
}

func (b *builder) snippets(list []markup.Snippet) []string {
	items := make([]string, 0, len(list))
	for _, s := range list {
		b.flag(s.Line)
		items = append(items, fmt.Sprintf("%s (line %d)", s.Snippet, s.Line))
	}
	return items
}

func (b *builder) markup(r *markup.Analysis) {
	b.warn("html-unclosed", "Unclosed tags", b.tags(r.UnclosedTags, "<%s> at line %d"), "")
	b.warn("html-missing-close", "Closing tags without an opening tag", b.tags(r.MissingCloseTags, "</%s> at line %d"), "")
	b.warn("html-incomplete", "Incomplete tags", b.snippets(r.IncompleteTags), "")
	b.warn("html-duplicated-ids", "Duplicated ids", r.DuplicatedIDs, "")
	b.warn("html-img-alt", "Images without alt", b.snippets(r.ImgsWithoutAlt),
		"Add alt text to images to improve accessibility.")
	b.warn("html-links-href", "Links without href", b.snippets(r.LinksWithoutHref), "")
	b.successUnlessWarned("html-success", "The HTML is consistent.")
}

func (b *builder) properties(list []stylesheet.PropertyFinding) []string {
	items := make([]string, 0, len(list))
	for _, p := range list {
		b.flag(p.Line)
		item := fmt.Sprintf("%s (selector %s, line %d)", p.Property, p.Selector, p.Line)
		if p.Suggestion != "" {
			item += fmt.Sprintf(" - did you mean %s?", p.Suggestion)
		}
		items = append(items, item)
	}
	return items
}

func unique(list []string) []string {
	seen := map[string]struct{}{}
	out := []string{}
	for _, s := range list {
		if _, ok := seen[s]; !ok {
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}
	return out
}

func (b *builder) stylesheet(r *stylesheet.Analysis) {
	for _, sel := range r.DuplicatedSelectors {
		for _, l := range r.SelectorLines[sel] {
			b.flag(l)
		}
	}
	b.warn("css-duplicated-selectors", "Duplicated selectors", unique(r.DuplicatedSelectors), "")
	b.warn("css-invalid-selectors", "Invalid selectors", unique(r.InvalidSelectors), "")
	b.warn("css-invalid-properties", "Malformed properties", b.properties(r.InvalidProperties), "")
	b.warn("css-repeated-properties", "Repeated properties", b.properties(r.RepeatedProperties), "")
	b.warn("css-unknown-properties", "Unknown properties", b.properties(r.UnknownProperties), "")
	b.warn("css-unused-selectors", "Unused selectors", unique(r.UnusedSelectors), "")
	b.successUnlessWarned("css-success", "The CSS is consistent.")
}

func declarations(list []script.Declaration) []string {
	items := make([]string, 0, len(list))
	for _, d := range list {
		items = append(items, fmt.Sprintf("%s (line %d)", d.Name, d.Line))
	}
	return items
}

func (b *builder) flagAll(list ...[]int) {
	for _, l := range list {
		for _, line := range l {
			b.flag(line)
		}
	}
}

func (b *builder) script(r *script.Analysis) {
	b.flagAll(r.VarUsage, r.EvalUsage, r.DocumentWriteUsage, r.LongLines, r.SemicolonMissing, r.DoubleEquals)

	b.warn("js-syntax", "Syntax errors", r.SyntaxErrors, "")
	b.warn("js-parse", "Parse errors", r.ParseErrors, "")
	b.warn("js-unused-functions", "Unused functions", declarations(r.UnusedFunctions), "")
	b.warn("js-unused-vars", "Unused variables", declarations(r.UnusedVariables), "")
	b.warn("js-var", "Use of var", lines(r.VarUsage), "Prefer let or const to declare variables.")
	b.warn("js-eval", "Use of eval", lines(r.EvalUsage), "")
	b.warn("js-document-write", "Use of document.write", lines(r.DocumentWriteUsage), "")

	todos := make([]string, 0, len(r.TodoComments))
	for _, c := range r.TodoComments {
		b.flag(c.Line)
		todos = append(todos, fmt.Sprintf("%s (line %d)", c.Comment, c.Line))
	}
	b.warn("js-todo", "TODO/FIXME comments", todos, "")
	b.warn("js-long-lines", "Long lines", lines(r.LongLines), "")

	magic := make([]string, 0, len(r.MagicNumbers))
	for _, m := range r.MagicNumbers {
		b.flag(m.Line)
		magic = append(magic, fmt.Sprintf("%s (line %d)", m.Value, m.Line))
	}
	b.warn("js-magic-numbers", "Magic numbers", magic, "")
	b.warn("js-semicolon", "Possibly missing semicolons", lines(r.SemicolonMissing), "")
	b.warn("js-double-equals", "Use of ==", lines(r.DoubleEquals), "Prefer === for strict comparisons.")

	b.add("js-console", "console.log calls", SeverityInfo, lines(r.ConsoleLogUsage), "")
	b.add("js-arrow-functions", "Arrow functions", SeverityInfo, declarations(r.ArrowFunctions), "")
	b.add("js-anonymous-functions", "Anonymous functions", SeverityInfo, declarations(r.AnonymousFunctions), "")

	b.successUnlessWarned("js-success", "The JavaScript raised no warnings.")
}

func (b *builder) generic(r *generic.Analysis) {
	b.add("generic-overview", "Basic statistics", SeverityInfo, []string{
		fmt.Sprintf("Total lines: %d", r.Lines),
		fmt.Sprintf("Functions detected: %d", len(r.Functions)),
		fmt.Sprintf("Comment lines (heuristic): %d", r.Comments),
	}, "")
	b.add("generic-info", "Notes", SeverityInfo, r.Info, "")
	b.sections = append(b.sections, Section{
		ID:       "generic-success",
		Title:    "Basic analysis complete",
		Severity: SeveritySuccess,
		Items:    []string{"Experimental support with limited metrics."},
	})
}

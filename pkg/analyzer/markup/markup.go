// Package markup implements the line-oriented HTML analyzer.
package markup

import (
	"context"
	"regexp"
	"strings"

	"github.com/panbanda/prism/pkg/analyzer"
)

// Ensure Analyzer implements analyzer.SourceAnalyzer.
var _ analyzer.SourceAnalyzer[*Analysis] = (*Analyzer)(nil)

// VoidElements never take a closing tag.
var VoidElements = map[string]struct{}{
	"area": {}, "base": {}, "br": {}, "col": {}, "embed": {}, "hr": {}, "img": {},
	"input": {}, "link": {}, "meta": {}, "param": {}, "source": {}, "track": {}, "wbr": {},
}

var (
	openTagRe     = regexp.MustCompile(`<([a-zA-Z0-9]+)(\s|>|$)`)
	closeTagRe    = regexp.MustCompile(`</([a-zA-Z0-9]+)>`)
	imgTagRe      = regexp.MustCompile(`(?i)<img\b[^>]*>`)
	altAttrRe     = regexp.MustCompile(`(?i)\salt=`)
	anchorTagRe   = regexp.MustCompile(`(?i)<a\b[^>]*>`)
	hrefAttrRe    = regexp.MustCompile(`(?i)\shref=`)
	danglingTagRe = regexp.MustCompile(`<([a-zA-Z0-9]+)[^>]*$`)
	idAttrRe      = regexp.MustCompile(`id="([^"]+)"`)
)

// Analyzer checks tag balance and common attribute mistakes. It never fails.
type Analyzer struct{}

// New creates a new markup analyzer.
func New() *Analyzer {
	return &Analyzer{}
}

// Analyze implements analyzer.SourceAnalyzer. The error is always nil.
func (a *Analyzer) Analyze(_ context.Context, code string) (*Analysis, error) {
	return Analyze(code), nil
}

// Analyze scans code line by line.
//
// Closing tags remove the most recent open entry with the same name, even
// when other entries sit above it; those stay open. Only a closing tag with
// no matching entry anywhere on the stack is reported as missing its
// opening tag.
func Analyze(code string) *Analysis {
	res := newAnalysis()
	var stack []TagEntry

	for i, line := range SplitLines(code) {
		row := i + 1
		trimmed := strings.TrimSpace(line)
		incompleteOnLine := false

		if !strings.HasPrefix(trimmed, "</") {
			for _, m := range openTagRe.FindAllStringSubmatch(line, -1) {
				tag := strings.ToLower(m[1])
				if _, void := VoidElements[tag]; void {
					continue
				}
				if !hasCompleteOpenTag(line, tag) {
					res.IncompleteTags = append(res.IncompleteTags, Snippet{Snippet: trimmed, Line: row})
					incompleteOnLine = true
					continue
				}
				stack = append(stack, TagEntry{Tag: tag, Line: row})
			}
		}

		for _, m := range closeTagRe.FindAllStringSubmatch(line, -1) {
			tag := strings.ToLower(m[1])
			if idx := lastIndexOf(stack, tag); idx >= 0 {
				stack = append(stack[:idx], stack[idx+1:]...)
				continue
			}
			res.MissingCloseTags = append(res.MissingCloseTags, TagEntry{Tag: tag, Line: row})
		}

		for _, m := range imgTagRe.FindAllString(line, -1) {
			if !altAttrRe.MatchString(m) {
				res.ImgsWithoutAlt = append(res.ImgsWithoutAlt, Snippet{Snippet: m, Line: row})
			}
		}
		for _, m := range anchorTagRe.FindAllString(line, -1) {
			if !hrefAttrRe.MatchString(m) {
				res.LinksWithoutHref = append(res.LinksWithoutHref, Snippet{Snippet: m, Line: row})
			}
		}

		if !incompleteOnLine && danglingTagRe.MatchString(line) {
			res.IncompleteTags = append(res.IncompleteTags, Snippet{Snippet: trimmed, Line: row})
		}
	}

	res.UnclosedTags = append(res.UnclosedTags, stack...)
	res.DuplicatedIDs = DuplicatedIDs(code)
	return res
}

// hasCompleteOpenTag reports whether line contains "<tag" at a word
// boundary with a later ">". Tag names compare case-insensitively.
func hasCompleteOpenTag(line, tag string) bool {
	lower := strings.ToLower(line)
	needle := "<" + tag
	for off := 0; ; {
		idx := strings.Index(lower[off:], needle)
		if idx < 0 {
			return false
		}
		end := off + idx + len(needle)
		if end == len(lower) || !isWordByte(lower[end]) {
			if strings.IndexByte(lower[end:], '>') >= 0 {
				return true
			}
		}
		off = end
	}
}

func isWordByte(c byte) bool {
	return c == '_' || c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}

func lastIndexOf(stack []TagEntry, tag string) int {
	for i := len(stack) - 1; i >= 0; i-- {
		if stack[i].Tag == tag {
			return i
		}
	}
	return -1
}

// DuplicatedIDs returns every id="..." value that occurs more than once,
// once each, in order of first occurrence.
func DuplicatedIDs(code string) []string {
	counts := map[string]int{}
	var order []string
	for _, m := range idAttrRe.FindAllStringSubmatch(code, -1) {
		if counts[m[1]] == 0 {
			order = append(order, m[1])
		}
		counts[m[1]]++
	}
	dups := []string{}
	for _, id := range order {
		if counts[id] > 1 {
			dups = append(dups, id)
		}
	}
	return dups
}

// IDs returns the distinct id="..." values of a document.
func IDs(code string) map[string]struct{} {
	ids := map[string]struct{}{}
	for _, m := range idAttrRe.FindAllStringSubmatch(code, -1) {
		ids[m[1]] = struct{}{}
	}
	return ids
}

// SplitLines splits text on \n, \r\n and \r, dropping a final empty line.
func SplitLines(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	if text == "" {
		return nil
	}
	return strings.Split(strings.TrimSuffix(text, "\n"), "\n")
}

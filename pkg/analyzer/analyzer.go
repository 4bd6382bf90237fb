package analyzer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/panbanda/prism/pkg/parser"
)

// SourceAnalyzer is the interface every language analyzer implements.
// Analyze consumes one source text and returns a fresh report value; all
// traversal state is local to the call, so one analyzer may serve
// concurrent callers.
type SourceAnalyzer[T any] interface {
	Analyze(ctx context.Context, code string) (T, error)
}

// Kind is the declared file kind used to select an analyzer.
type Kind string

const (
	KindPython     Kind = "py"
	KindHTML       Kind = "html"
	KindCSS        Kind = "css"
	KindJavaScript Kind = "js"
	KindRuby       Kind = "rb"
	KindPHP        Kind = "php"
	KindGo         Kind = "go"
)

// Kinds lists every supported kind in display order.
var Kinds = []Kind{KindPython, KindHTML, KindCSS, KindJavaScript, KindRuby, KindPHP, KindGo}

// ErrUnsupportedKind matches any *UnsupportedKindError via errors.Is.
var ErrUnsupportedKind = errors.New("unsupported file kind")

// UnsupportedKindError reports a file kind no analyzer handles.
type UnsupportedKindError struct {
	Kind string
}

func (e *UnsupportedKindError) Error() string {
	return fmt.Sprintf("unsupported file kind: %q", e.Kind)
}

// Is lets errors.Is(err, ErrUnsupportedKind) succeed.
func (e *UnsupportedKindError) Is(target error) bool {
	return target == ErrUnsupportedKind
}

// ParseKind validates a kind string. Matching is case-insensitive and a
// leading dot is ignored, so ".PY" and "py" are the same kind.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), "."))
	for _, known := range Kinds {
		if k == known {
			return k, nil
		}
	}
	return "", &UnsupportedKindError{Kind: s}
}

// KindFromPath maps a file path to its kind by extension.
func KindFromPath(path string) (Kind, bool) {
	switch parser.DetectLanguage(path) {
	case parser.LangPython:
		return KindPython, true
	case parser.LangHTML:
		return KindHTML, true
	case parser.LangCSS:
		return KindCSS, true
	case parser.LangJavaScript:
		return KindJavaScript, true
	case parser.LangRuby:
		return KindRuby, true
	case parser.LangPHP:
		return KindPHP, true
	case parser.LangGo:
		return KindGo, true
	}
	return "", false
}

// IsCore reports whether the kind has a dedicated analyzer rather than the
// generic line counter.
func (k Kind) IsCore() bool {
	switch k {
	case KindPython, KindHTML, KindCSS, KindJavaScript:
		return true
	}
	return false
}

func (k Kind) String() string {
	return string(k)
}

package parser

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"
)

// Language represents a source language known to prism.
type Language string

const (
	LangPython     Language = "python"
	LangHTML       Language = "html"
	LangCSS        Language = "css"
	LangJavaScript Language = "javascript"
	LangRuby       Language = "ruby"
	LangPHP        Language = "php"
	LangGo         Language = "go"
	LangUnknown    Language = "unknown"
)

// Parser wraps tree-sitter for the languages that need a syntax tree.
// A Parser is not safe for concurrent use; create one per goroutine.
type Parser struct {
	parser *sitter.Parser
}

// ParseResult contains the parsed tree and metadata.
type ParseResult struct {
	Tree     *sitter.Tree
	Language Language
	Source   []byte
}

// ParseError reports source text that is not syntactically valid.
type ParseError struct {
	Line    int
	Column  int
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error at line %d, column %d: %s", e.Line, e.Column, e.Message)
}

// New creates a new parser instance.
func New() *Parser {
	return &Parser{
		parser: sitter.NewParser(),
	}
}

// Parse parses source code with a specified language.
// Syntax errors are not reported here; see CheckSyntax.
func (p *Parser) Parse(ctx context.Context, source []byte, lang Language) (*ParseResult, error) {
	tsLang, err := GetTreeSitterLanguage(lang)
	if err != nil {
		return nil, err
	}

	p.parser.SetLanguage(tsLang)
	tree, err := p.parser.ParseCtx(ctx, nil, source)
	if err != nil {
		return nil, fmt.Errorf("failed to parse: %w", err)
	}

	return &ParseResult{
		Tree:     tree,
		Language: lang,
		Source:   source,
	}, nil
}

// Close releases the tree held by the result.
func (r *ParseResult) Close() {
	if r != nil && r.Tree != nil {
		r.Tree.Close()
	}
}

// CheckSyntax returns a *ParseError describing the first ERROR or MISSING
// node in the tree, or nil when the tree is clean.
func (r *ParseResult) CheckSyntax() error {
	root := r.Tree.RootNode()
	if !root.HasError() {
		return nil
	}

	var bad *sitter.Node
	WalkTyped(root, r.Source, func(n *sitter.Node, nodeType string, _ []byte) bool {
		if bad != nil {
			return false
		}
		if n.IsError() || n.IsMissing() {
			bad = n
			return false
		}
		return n.HasError()
	})

	perr := &ParseError{Line: 1, Column: 1, Message: "invalid syntax"}
	if bad != nil {
		perr.Line = int(bad.StartPoint().Row) + 1
		perr.Column = int(bad.StartPoint().Column) + 1
		if bad.IsMissing() {
			perr.Message = fmt.Sprintf("missing %q", bad.Type())
		} else if text := strings.TrimSpace(firstLine(GetNodeText(bad, r.Source))); text != "" {
			perr.Message = fmt.Sprintf("unexpected %q", text)
		}
	}
	return perr
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

// GetTreeSitterLanguage returns the tree-sitter grammar for a Language.
// Only Python is parsed into a tree; the other languages are scanned as text.
func GetTreeSitterLanguage(lang Language) (*sitter.Language, error) {
	switch lang {
	case LangPython:
		return python.GetLanguage(), nil
	default:
		return nil, fmt.Errorf("unsupported language: %s", lang)
	}
}

// DetectLanguage determines the language from a file path.
func DetectLanguage(path string) Language {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".py", ".pyw", ".pyi":
		return LangPython
	case ".html", ".htm", ".xhtml":
		return LangHTML
	case ".css":
		return LangCSS
	case ".js", ".mjs", ".cjs":
		return LangJavaScript
	case ".rb":
		return LangRuby
	case ".php":
		return LangPHP
	case ".go":
		return LangGo
	default:
		return LangUnknown
	}
}

// Close releases parser resources.
func (p *Parser) Close() {
	p.parser.Close()
}

// TypedNodeVisitor visits tree-sitter nodes with the node type cached.
type TypedNodeVisitor func(node *sitter.Node, nodeType string, source []byte) bool

// WalkTyped traverses the tree with cached node types to reduce CGO overhead.
// Returning false from the visitor skips the node's children.
func WalkTyped(node *sitter.Node, source []byte, visitor TypedNodeVisitor) {
	if node == nil {
		return
	}

	nodeType := node.Type()
	if !visitor(node, nodeType, source) {
		return
	}

	for i := range int(node.ChildCount()) {
		WalkTyped(node.Child(i), source, visitor)
	}
}

// GetNodeText extracts the source text for a node.
// Returns empty string if node is nil or byte offsets are out of bounds.
func GetNodeText(node *sitter.Node, source []byte) string {
	if node == nil {
		return ""
	}
	start := node.StartByte()
	end := node.EndByte()
	if start > end || end > uint32(len(source)) {
		return ""
	}
	return string(source[start:end])
}

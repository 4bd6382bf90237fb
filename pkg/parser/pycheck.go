package parser

import (
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

// CheckPython rejects source the grammar accepts but Python 3 does not:
// misplaced indentation, Python 2 statements (print, exec, raise E, v) and
// Python 2 literals (backticks, 0777, 10L, <>). The first offending
// construct in source order is reported as a *ParseError.
func (r *ParseResult) CheckPython() error {
	var perr *ParseError
	WalkTyped(r.Tree.RootNode(), r.Source, func(n *sitter.Node, nodeType string, src []byte) bool {
		if perr != nil {
			return false
		}
		switch nodeType {
		case "module":
			perr = checkColumns(n, src, 0)
		case "block":
			perr = checkBlock(n, src)
		case "print_statement":
			perr = errorAt(n, "Missing parentheses in call to 'print'")
		case "exec_statement":
			perr = errorAt(n, "Missing parentheses in call to 'exec'")
		case "raise_statement":
			for _, c := range namedChildren(n) {
				if c.Type() == "expression_list" {
					perr = errorAt(c, "invalid syntax")
				}
			}
		case "string":
			if strings.HasPrefix(strings.TrimLeft(GetNodeText(n, src), "rRbBuUfF"), "`") {
				perr = errorAt(n, "invalid syntax")
			}
		case "integer":
			perr = checkInteger(n, GetNodeText(n, src))
		case "comparison_operator":
			for i := range int(n.ChildCount()) {
				if c := n.Child(i); c.Type() == "<>" {
					perr = errorAt(c, "invalid syntax")
					break
				}
			}
		}
		return perr == nil
	})
	if perr != nil {
		return perr
	}
	return nil
}

func errorAt(n *sitter.Node, msg string) *ParseError {
	return &ParseError{Line: lineOf(n), Column: int(n.StartPoint().Column) + 1, Message: msg}
}

// checkColumns requires every statement of container that begins a line to
// start at column col.
func checkColumns(container *sitter.Node, src []byte, col uint32) *ParseError {
	for _, stmt := range namedChildren(container) {
		if !startsLine(stmt, src) {
			continue
		}
		switch c := stmt.StartPoint().Column; {
		case c > col:
			return errorAt(stmt, "unexpected indent")
		case c < col:
			return errorAt(stmt, "unindent does not match any outer indentation level")
		}
	}
	return nil
}

// checkBlock requires the body of a compound statement to hold at least one
// statement and, unless it follows the colon on the same line, to be
// indented past its header with every line at the same column.
func checkBlock(block *sitter.Node, src []byte) *ParseError {
	header := block.Parent()
	if header == nil || header.Type() == "module" || header.Type() == "block" {
		// stray indented blocks are reported by their container
		return nil
	}
	stmts := namedChildren(block)
	if len(stmts) == 0 {
		return &ParseError{Line: lineAfterColon(header, block), Column: 1, Message: "expected an indented block"}
	}
	first := stmts[0]
	if !startsLine(first, src) {
		return nil
	}
	if first.StartPoint().Column <= header.StartPoint().Column {
		return errorAt(first, "expected an indented block")
	}
	return checkColumns(block, src, first.StartPoint().Column)
}

// lineAfterColon is the line following the colon that opens block.
func lineAfterColon(header, block *sitter.Node) int {
	line := lineOf(header) + 1
	for i := range int(header.ChildCount()) {
		c := header.Child(i)
		if c.StartByte() > block.StartByte() {
			break
		}
		if c.Type() == ":" {
			line = int(c.StartPoint().Row) + 2
		}
	}
	return line
}

// startsLine reports whether only whitespace precedes n on its line.
func startsLine(n *sitter.Node, src []byte) bool {
	start := min(int(n.StartByte()), len(src))
	for i := start - 1; i >= 0; i-- {
		switch src[i] {
		case '\n', '\r':
			return true
		case ' ', '\t', '\f':
		default:
			return false
		}
	}
	return true
}

// checkInteger rejects decimal literals with leading zeros (Python 2 octal)
// and the Python 2 long suffix. All-zero literals such as 00 stay valid.
func checkInteger(n *sitter.Node, lit string) *ParseError {
	if strings.HasSuffix(lit, "l") || strings.HasSuffix(lit, "L") {
		return errorAt(n, fmt.Sprintf("invalid decimal literal %q", lit))
	}
	if len(lit) < 2 || lit[0] != '0' {
		return nil
	}
	digits := strings.ReplaceAll(lit[1:], "_", "")
	if digits == "" || strings.Trim(digits, "0123456789") != "" || strings.Trim(digits, "0") == "" {
		return nil
	}
	return errorAt(n, "leading zeros in decimal integer literals are not permitted; use an 0o prefix for octal integers")
}

package python

import "github.com/panbanda/prism/pkg/parser"

// DetectDeadCode reports always-false conditionals and statements that
// follow a return in a function's direct statement list. Conditionals are
// reported first, then unreachable statements, each in source order.
func DetectDeadCode(root *parser.Node) []Issue {
	issues := []Issue{}

	root.Walk(func(n *parser.Node) bool {
		if n.Kind == parser.KindIf && n.AlwaysFalse {
			issues = append(issues, Issue{Line: n.Line, Message: msgIfFalse})
		}
		return true
	})

	root.Walk(func(n *parser.Node) bool {
		if n.Kind != parser.KindFunction {
			return true
		}
		returned := false
		for _, stmt := range n.Body {
			if returned {
				issues = append(issues, Issue{Line: stmt.Line, Message: msgAfterReturn})
				continue
			}
			returned = stmt.Kind == parser.KindReturn
		}
		return true
	})

	return issues
}

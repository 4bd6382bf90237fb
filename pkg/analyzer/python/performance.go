package python

import (
	"context"
	"fmt"

	"github.com/panbanda/prism/pkg/parser"
)

// CheckPerformance flags every call made anywhere inside a loop, once per
// enclosing loop, and loops whose body does nothing. It is separate from
// Analyze and fails only with a *parser.ParseError.
func CheckPerformance(ctx context.Context, code string) ([]Issue, error) {
	root, err := parseSource(ctx, code)
	if err != nil {
		return nil, err
	}
	return performanceIssues(root), nil
}

func performanceIssues(root *parser.Node) []Issue {
	issues := []Issue{}
	root.Walk(func(n *parser.Node) bool {
		if n.Kind != parser.KindFor && n.Kind != parser.KindWhile {
			return true
		}
		loop := n
		loop.Walk(func(c *parser.Node) bool {
			if c.Kind == parser.KindCall {
				name := c.Name
				if name == "" {
					name = c.Callee
				}
				issues = append(issues, Issue{Line: loop.Line, Message: fmt.Sprintf(msgCallInLoop, name)})
			}
			return true
		})
		if loop.EmptyBody {
			issues = append(issues, Issue{Line: loop.Line, Message: msgEmptyLoop})
		}
		return true
	})
	return issues
}

package parser

import (
	"context"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

// NodeKind enumerates the Python constructs the structural analyzer inspects.
// Everything else collapses into KindStatement or KindExpr.
type NodeKind uint8

const (
	KindModule NodeKind = iota
	KindFunction
	KindClass
	KindAssign
	KindName
	KindCall
	KindIf
	KindFor
	KindWhile
	KindImport
	KindSubscript
	KindReturn
	KindStatement
	KindExpr
)

var kindNames = [...]string{
	KindModule:    "module",
	KindFunction:  "function",
	KindClass:     "class",
	KindAssign:    "assign",
	KindName:      "name",
	KindCall:      "call",
	KindIf:        "if",
	KindFor:       "for",
	KindWhile:     "while",
	KindImport:    "import",
	KindSubscript: "subscript",
	KindReturn:    "return",
	KindStatement: "statement",
	KindExpr:      "expr",
}

func (k NodeKind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// Node is one element of a Python parse tree. Which fields are meaningful
// depends on Kind:
//
//	KindFunction  Name, HasDocstring, Canonical, Body
//	KindClass     Name, HasDocstring, Body
//	KindAssign    Targets (plain assignment targets, in order)
//	KindName      Name, Store
//	KindCall      Name (bare identifier callee, else ""), Callee, Text
//	KindIf        AlwaysFalse
//	KindFor       Targets (loop variables), Body, EmptyBody
//	KindWhile     Body, EmptyBody
//	KindImport    Bindings
//	KindSubscript IntIndex
//
// Children holds every sub-node in source order, excluding Targets.
// Body aliases the direct statement list for functions, classes and loops.
type Node struct {
	Kind NodeKind
	Line int

	Name   string
	Store  bool
	Callee string
	Text   string

	HasDocstring bool
	Canonical    string
	AlwaysFalse  bool
	EmptyBody    bool
	IntIndex     bool
	Bindings     []string

	Targets  []*Node
	Body     []*Node
	Children []*Node
}

// Walk visits n and its descendants depth-first in source order.
// Targets are visited before Children. Returning false skips descendants.
func (n *Node) Walk(fn func(*Node) bool) {
	if n == nil || !fn(n) {
		return
	}
	for _, t := range n.Targets {
		t.Walk(fn)
	}
	for _, c := range n.Children {
		c.Walk(fn)
	}
}

// ParsePython parses Python source into a closed Node tree. Source that is
// not syntactically valid yields a *ParseError and no tree.
func (p *Parser) ParsePython(ctx context.Context, source []byte) (*Node, error) {
	result, err := p.Parse(ctx, source, LangPython)
	if err != nil {
		return nil, err
	}
	defer result.Close()

	if err := result.CheckSyntax(); err != nil {
		return nil, err
	}
	if err := result.CheckPython(); err != nil {
		return nil, err
	}

	b := &pyBuilder{src: source}
	return b.module(result.Tree.RootNode()), nil
}

type pyBuilder struct {
	src []byte
}

func lineOf(n *sitter.Node) int {
	return int(n.StartPoint().Row) + 1
}

func (b *pyBuilder) text(n *sitter.Node) string {
	return GetNodeText(n, b.src)
}

// namedChildren returns the named children of n, comments excluded.
func namedChildren(n *sitter.Node) []*sitter.Node {
	if n == nil {
		return nil
	}
	count := int(n.NamedChildCount())
	out := make([]*sitter.Node, 0, count)
	for i := range count {
		c := n.NamedChild(i)
		if c == nil || c.Type() == "comment" {
			continue
		}
		out = append(out, c)
	}
	return out
}

func sameNode(a, b *sitter.Node) bool {
	if a == nil || b == nil {
		return false
	}
	return a.StartByte() == b.StartByte() && a.EndByte() == b.EndByte() && a.Type() == b.Type()
}

func (b *pyBuilder) module(root *sitter.Node) *Node {
	m := &Node{Kind: KindModule, Line: 1}
	m.Body = b.statements(root)
	m.Children = m.Body
	return m
}

// statements converts the statement children of a module or block.
func (b *pyBuilder) statements(block *sitter.Node) []*Node {
	var out []*Node
	for _, c := range namedChildren(block) {
		if s := b.statement(c); s != nil {
			out = append(out, s)
		}
	}
	return out
}

func (b *pyBuilder) statement(n *sitter.Node) *Node {
	switch n.Type() {
	case "function_definition":
		return b.function(n)
	case "class_definition":
		return b.class(n)
	case "decorated_definition":
		return b.decorated(n)
	case "expression_statement":
		return b.expressionStatement(n)
	case "if_statement":
		return b.ifStatement(n)
	case "for_statement":
		return b.forStatement(n)
	case "while_statement":
		return b.whileStatement(n)
	case "import_statement", "import_from_statement":
		return b.importStatement(n)
	case "return_statement":
		return &Node{Kind: KindReturn, Line: lineOf(n), Children: b.exprs(namedChildren(n))}
	case "global_statement", "nonlocal_statement", "future_import_statement", "pass_statement",
		"break_statement", "continue_statement":
		return &Node{Kind: KindStatement, Line: lineOf(n)}
	case "delete_statement":
		return &Node{Kind: KindStatement, Line: lineOf(n), Children: b.stores(namedChildren(n))}
	case "except_clause", "except_group_clause":
		return b.exceptClause(n)
	case "block":
		return &Node{Kind: KindStatement, Line: lineOf(n), Children: b.statements(n)}
	}
	return b.generic(n, KindStatement)
}

func (b *pyBuilder) decorated(n *sitter.Node) *Node {
	def := n.ChildByFieldName("definition")
	var decorators []*Node
	for _, c := range namedChildren(n) {
		if c.Type() == "decorator" {
			decorators = append(decorators, b.exprs(namedChildren(c))...)
		}
	}
	if def == nil {
		return &Node{Kind: KindStatement, Line: lineOf(n), Children: decorators}
	}
	inner := b.statement(def)
	if len(decorators) == 0 {
		return inner
	}
	return &Node{Kind: KindStatement, Line: lineOf(n), Children: append(decorators, inner)}
}

func (b *pyBuilder) function(n *sitter.Node) *Node {
	fn := &Node{
		Kind: KindFunction,
		Line: lineOf(n),
		Name: b.text(n.ChildByFieldName("name")),
	}
	params := n.ChildByFieldName("parameters")
	body := n.ChildByFieldName("body")

	fn.Children = append(fn.Children, b.parameterDefaults(params)...)
	fn.Children = append(fn.Children, compact([]*Node{b.expr(n.ChildByFieldName("return_type"))})...)
	fn.Body = b.statements(body)
	fn.Children = append(fn.Children, fn.Body...)
	fn.HasDocstring = b.hasDocstring(body)
	fn.Canonical = b.canonical(params, body)
	return fn
}

func (b *pyBuilder) class(n *sitter.Node) *Node {
	cls := &Node{
		Kind: KindClass,
		Line: lineOf(n),
		Name: b.text(n.ChildByFieldName("name")),
	}
	if sup := n.ChildByFieldName("superclasses"); sup != nil {
		cls.Children = append(cls.Children, b.exprs(namedChildren(sup))...)
	}
	body := n.ChildByFieldName("body")
	cls.Body = b.statements(body)
	cls.Children = append(cls.Children, cls.Body...)
	cls.HasDocstring = b.hasDocstring(body)
	return cls
}

// hasDocstring reports whether the first statement of block is a non-empty
// string literal.
func (b *pyBuilder) hasDocstring(block *sitter.Node) bool {
	stmts := namedChildren(block)
	if len(stmts) == 0 || stmts[0].Type() != "expression_statement" {
		return false
	}
	parts := namedChildren(stmts[0])
	if len(parts) != 1 {
		return false
	}
	s := parts[0]
	if s.Type() == "concatenated_string" {
		return true
	}
	if s.Type() != "string" {
		return false
	}
	for _, c := range namedChildren(s) {
		if c.Type() == "interpolation" {
			return false
		}
	}
	return strings.TrimSpace(stringBody(b.text(s))) != ""
}

// stringBody strips the prefix and quotes from a string literal.
func stringBody(lit string) string {
	lit = strings.TrimLeft(lit, "rRbBuUfF")
	for _, q := range []string{`"""`, "'''", `"`, "'"} {
		if len(lit) >= 2*len(q) && strings.HasPrefix(lit, q) && strings.HasSuffix(lit, q) {
			return lit[len(q) : len(lit)-len(q)]
		}
	}
	return lit
}

// canonical serializes the leaf tokens of the parameter list and body,
// comments excluded, separated by single spaces. Layout and comments do not
// affect the result; names of the function itself are not part of it.
func (b *pyBuilder) canonical(parts ...*sitter.Node) string {
	var sb strings.Builder
	for _, p := range parts {
		WalkTyped(p, b.src, func(n *sitter.Node, nodeType string, src []byte) bool {
			if nodeType == "comment" {
				return false
			}
			if n.ChildCount() == 0 {
				tok := GetNodeText(n, src)
				if tok == "" {
					return false
				}
				if sb.Len() > 0 {
					sb.WriteByte(' ')
				}
				sb.WriteString(tok)
				return false
			}
			return true
		})
	}
	return sb.String()
}

func (b *pyBuilder) parameterDefaults(params *sitter.Node) []*Node {
	var out []*Node
	for _, p := range namedChildren(params) {
		switch p.Type() {
		case "default_parameter":
			out = append(out, b.expr(p.ChildByFieldName("value")))
		case "typed_default_parameter":
			out = append(out, b.expr(p.ChildByFieldName("type")), b.expr(p.ChildByFieldName("value")))
		case "typed_parameter":
			out = append(out, b.expr(p.ChildByFieldName("type")))
		}
	}
	return compact(out)
}

func (b *pyBuilder) expressionStatement(n *sitter.Node) *Node {
	parts := namedChildren(n)
	if len(parts) == 1 {
		switch parts[0].Type() {
		case "assignment":
			return b.assignment(parts[0], lineOf(n))
		case "augmented_assignment":
			return &Node{
				Kind:     KindStatement,
				Line:     lineOf(n),
				Children: compact([]*Node{b.store(parts[0].ChildByFieldName("left")), b.expr(parts[0].ChildByFieldName("right"))}),
			}
		}
	}
	return &Node{Kind: KindStatement, Line: lineOf(n), Children: b.exprs(parts)}
}

// assignment flattens chained assignments (a = b = value) into one node.
// Annotated assignments are not plain assignments: their target is stored
// but not recorded in Targets.
func (b *pyBuilder) assignment(n *sitter.Node, line int) *Node {
	if n.ChildByFieldName("type") != nil {
		return &Node{
			Kind: KindStatement,
			Line: line,
			Children: compact([]*Node{
				b.store(n.ChildByFieldName("left")),
				b.expr(n.ChildByFieldName("type")),
				b.expr(n.ChildByFieldName("right")),
			}),
		}
	}

	as := &Node{Kind: KindAssign, Line: line}
	cur := n
	for cur != nil && cur.Type() == "assignment" && cur.ChildByFieldName("type") == nil {
		if t := b.store(cur.ChildByFieldName("left")); t != nil {
			as.Targets = append(as.Targets, t)
		}
		cur = cur.ChildByFieldName("right")
	}
	if cur != nil {
		as.Children = compact([]*Node{b.expr(cur)})
	}
	return as
}

func (b *pyBuilder) ifStatement(n *sitter.Node) *Node {
	node := b.conditional(n, n.ChildByFieldName("condition"), n.ChildByFieldName("consequence"))
	for _, c := range namedChildren(n) {
		switch c.Type() {
		case "elif_clause":
			node.Children = append(node.Children,
				b.conditional(c, c.ChildByFieldName("condition"), c.ChildByFieldName("consequence")))
		case "else_clause":
			node.Children = append(node.Children, b.statements(c.ChildByFieldName("body"))...)
		}
	}
	return node
}

func (b *pyBuilder) conditional(n, cond, body *sitter.Node) *Node {
	node := &Node{Kind: KindIf, Line: lineOf(n)}
	if cond != nil {
		node.AlwaysFalse = unparen(cond).Type() == "false"
		node.Children = compact([]*Node{b.expr(cond)})
	}
	node.Children = append(node.Children, b.statements(body)...)
	return node
}

// unparen strips redundant parentheses around an expression.
func unparen(n *sitter.Node) *sitter.Node {
	for n.Type() == "parenthesized_expression" {
		inner := namedChildren(n)
		if len(inner) != 1 {
			break
		}
		n = inner[0]
	}
	return n
}

func (b *pyBuilder) forStatement(n *sitter.Node) *Node {
	loop := &Node{Kind: KindFor, Line: lineOf(n)}
	if t := b.store(n.ChildByFieldName("left")); t != nil {
		loop.Targets = []*Node{t}
	}
	loop.Children = compact([]*Node{b.expr(n.ChildByFieldName("right"))})
	b.loopBody(loop, n)
	return loop
}

func (b *pyBuilder) whileStatement(n *sitter.Node) *Node {
	loop := &Node{Kind: KindWhile, Line: lineOf(n)}
	loop.Children = compact([]*Node{b.expr(n.ChildByFieldName("condition"))})
	b.loopBody(loop, n)
	return loop
}

func (b *pyBuilder) loopBody(loop *Node, n *sitter.Node) {
	body := n.ChildByFieldName("body")
	loop.Body = b.statements(body)
	loop.Children = append(loop.Children, loop.Body...)
	loop.EmptyBody = isEmptyBlock(body)
	if alt := n.ChildByFieldName("alternative"); alt != nil {
		loop.Children = append(loop.Children, b.statements(alt.ChildByFieldName("body"))...)
	}
}

// isEmptyBlock reports whether a block holds nothing but pass or ellipsis
// statements.
func isEmptyBlock(block *sitter.Node) bool {
	for _, s := range namedChildren(block) {
		switch s.Type() {
		case "pass_statement":
			continue
		case "expression_statement":
			parts := namedChildren(s)
			if len(parts) == 1 && parts[0].Type() == "ellipsis" {
				continue
			}
		}
		return false
	}
	return true
}

// importStatement records the names an import binds in the module
// namespace: the alias if present, otherwise the first dotted component.
func (b *pyBuilder) importStatement(n *sitter.Node) *Node {
	imp := &Node{Kind: KindImport, Line: lineOf(n)}
	module := n.ChildByFieldName("module_name")
	for _, c := range namedChildren(n) {
		if module != nil && sameNode(c, module) {
			continue
		}
		switch c.Type() {
		case "aliased_import":
			imp.Bindings = append(imp.Bindings, b.text(c.ChildByFieldName("alias")))
		case "dotted_name":
			name := b.text(c)
			if i := strings.IndexByte(name, '.'); i >= 0 {
				name = name[:i]
			}
			imp.Bindings = append(imp.Bindings, name)
		}
	}
	return imp
}

func (b *pyBuilder) exceptClause(n *sitter.Node) *Node {
	node := &Node{Kind: KindStatement, Line: lineOf(n)}
	afterAs := false
	for i := range int(n.ChildCount()) {
		c := n.Child(i)
		switch {
		case c.Type() == "as":
			afterAs = true
		case !c.IsNamed() || c.Type() == "comment":
		case c.Type() == "block":
			node.Children = append(node.Children, b.statements(c)...)
		case afterAs:
			node.Children = append(node.Children, b.store(c))
			afterAs = false
		default:
			node.Children = append(node.Children, b.expr(c))
		}
	}
	node.Children = compact(node.Children)
	return node
}

func (b *pyBuilder) exprs(ns []*sitter.Node) []*Node {
	out := make([]*Node, 0, len(ns))
	for _, n := range ns {
		out = append(out, b.expr(n))
	}
	return compact(out)
}

// expr converts an expression in load context.
func (b *pyBuilder) expr(n *sitter.Node) *Node {
	if n == nil {
		return nil
	}
	switch n.Type() {
	case "identifier":
		return &Node{Kind: KindName, Line: lineOf(n), Name: b.text(n)}
	case "call":
		return b.call(n)
	case "subscript":
		return b.subscript(n)
	case "attribute":
		return &Node{Kind: KindExpr, Line: lineOf(n), Children: compact([]*Node{b.expr(n.ChildByFieldName("object"))})}
	case "keyword_argument":
		return b.expr(n.ChildByFieldName("value"))
	case "named_expression":
		return &Node{Kind: KindExpr, Line: lineOf(n), Children: compact([]*Node{
			b.store(n.ChildByFieldName("name")),
			b.expr(n.ChildByFieldName("value")),
		})}
	case "lambda":
		return &Node{Kind: KindExpr, Line: lineOf(n), Children: compact(append(
			b.parameterDefaults(n.ChildByFieldName("parameters")),
			b.expr(n.ChildByFieldName("body")),
		))}
	case "for_in_clause":
		return &Node{Kind: KindExpr, Line: lineOf(n), Children: compact([]*Node{
			b.store(n.ChildByFieldName("left")),
			b.expr(n.ChildByFieldName("right")),
		})}
	case "as_pattern":
		return b.asPattern(n)
	case "comment", "true", "false", "none", "integer", "float", "ellipsis",
		"string_start", "string_end", "string_content", "escape_sequence":
		return nil
	}
	return b.generic(n, KindExpr)
}

func (b *pyBuilder) asPattern(n *sitter.Node) *Node {
	node := &Node{Kind: KindExpr, Line: lineOf(n)}
	alias := n.ChildByFieldName("alias")
	for _, c := range namedChildren(n) {
		if alias != nil && sameNode(c, alias) {
			node.Children = append(node.Children, b.store(c))
			continue
		}
		node.Children = append(node.Children, b.expr(c))
	}
	node.Children = compact(node.Children)
	return node
}

// store converts an assignment target. Bare names, tuples and lists of
// names are stores; subscripts and attributes read their operands.
func (b *pyBuilder) store(n *sitter.Node) *Node {
	if n == nil {
		return nil
	}
	switch n.Type() {
	case "identifier":
		return &Node{Kind: KindName, Line: lineOf(n), Name: b.text(n), Store: true}
	case "pattern_list", "tuple_pattern", "list_pattern", "tuple", "list", "expression_list",
		"parenthesized_expression", "list_splat_pattern", "as_pattern_target":
		return &Node{Kind: KindExpr, Line: lineOf(n), Children: b.stores(namedChildren(n))}
	case "subscript":
		return b.subscript(n)
	}
	return b.expr(n)
}

func (b *pyBuilder) stores(ns []*sitter.Node) []*Node {
	out := make([]*Node, 0, len(ns))
	for _, n := range ns {
		out = append(out, b.store(n))
	}
	return compact(out)
}

func (b *pyBuilder) call(n *sitter.Node) *Node {
	fn := n.ChildByFieldName("function")
	call := &Node{
		Kind:   KindCall,
		Line:   lineOf(n),
		Callee: b.text(fn),
		Text:   b.text(n),
	}
	if fn != nil && fn.Type() == "identifier" {
		call.Name = call.Callee
	}
	call.Children = compact([]*Node{b.expr(fn)})
	if args := n.ChildByFieldName("arguments"); args != nil {
		if args.Type() == "generator_expression" {
			call.Children = append(call.Children, compact([]*Node{b.expr(args)})...)
		} else {
			call.Children = append(call.Children, b.exprs(namedChildren(args))...)
		}
	}
	return call
}

// subscript flags an index that is a single integer literal. The operand
// and index are always read, also when the subscript is a target.
func (b *pyBuilder) subscript(n *sitter.Node) *Node {
	node := &Node{Kind: KindSubscript, Line: lineOf(n)}
	value := n.ChildByFieldName("value")
	node.Children = compact([]*Node{b.expr(value)})

	var indexes []*sitter.Node
	for _, c := range namedChildren(n) {
		if value != nil && sameNode(c, value) {
			continue
		}
		indexes = append(indexes, c)
	}
	node.IntIndex = len(indexes) == 1 && indexes[0].Type() == "integer"
	node.Children = append(node.Children, b.exprs(indexes)...)
	return node
}

// generic converts every named child of n, statements as statements and
// everything else as expressions.
func (b *pyBuilder) generic(n *sitter.Node, kind NodeKind) *Node {
	node := &Node{Kind: kind, Line: lineOf(n)}
	for _, c := range namedChildren(n) {
		var child *Node
		switch {
		case c.Type() == "block":
			node.Children = append(node.Children, b.statements(c)...)
			continue
		case strings.HasSuffix(c.Type(), "_statement") || strings.HasSuffix(c.Type(), "_clause") && c.Type() != "for_in_clause" && c.Type() != "if_clause":
			child = b.statement(c)
		case c.Type() == "function_definition", c.Type() == "class_definition", c.Type() == "decorated_definition":
			child = b.statement(c)
		default:
			child = b.expr(c)
		}
		if child != nil {
			node.Children = append(node.Children, child)
		}
	}
	return node
}

func compact(ns []*Node) []*Node {
	out := ns[:0]
	for _, n := range ns {
		if n != nil {
			out = append(out, n)
		}
	}
	return out
}

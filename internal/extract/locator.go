package extract

import (
	"context"
	"fmt"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
)

// Target names one kind of embedded query: Name is the page export
// identifier for Page and the hook name for Static.
type Target struct {
	Kind Kind
	Name string
}

// Locator finds the byte ranges of embedded queries in source text. src is
// parsed once for all targets; the result holds one span list per target, in
// target order, each in document order.
type Locator interface {
	Locate(src []byte, lang Language, targets ...Target) ([][]Span, error)
}

// staticCallQuery captures every call with a plain identifier callee.
// The callee name is compared in Go so one compiled query serves any hook name.
const staticCallQuery = `(call_expression function: (identifier) @callee arguments: (arguments) @args)`

// SitterLocator implements Locator with tree-sitter.
type SitterLocator struct {
	mu      sync.Mutex
	queries map[*sitter.Language]*sitter.Query
}

func NewSitterLocator() *SitterLocator {
	return &SitterLocator{queries: make(map[*sitter.Language]*sitter.Query)}
}

// Locate implements Locator.
func (l *SitterLocator) Locate(src []byte, lang Language, targets ...Target) ([][]Span, error) {
	parser := sitter.NewParser()
	parser.SetLanguage(lang.Grammar)

	tree, err := parser.ParseCtx(context.Background(), nil, src)
	if err != nil {
		return nil, fmt.Errorf("tree-sitter parse failed: %w", err)
	}
	defer tree.Close()

	root := tree.RootNode()
	if root == nil {
		return nil, fmt.Errorf("tree-sitter returned nil root")
	}
	if root.HasError() {
		perr := &ParseError{Message: "syntax error in AST"}
		if n := findFirstError(root); n != nil {
			perr.Line = n.StartPoint().Row
			perr.Column = n.StartPoint().Column
		}
		return nil, perr
	}

	out := make([][]Span, len(targets))
	for i, t := range targets {
		switch t.Kind {
		case Page:
			out[i] = locateExports(root, src, t.Name)
		case Static:
			q, err := l.query(lang.Grammar)
			if err != nil {
				return nil, err
			}
			out[i] = locateCalls(q, root, src, t.Name)
		default:
			return nil, fmt.Errorf("unknown query kind %v", t.Kind)
		}
	}
	return out, nil
}

func (l *SitterLocator) query(lang *sitter.Language) (*sitter.Query, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if q, ok := l.queries[lang]; ok {
		return q, nil
	}
	q, err := sitter.NewQuery([]byte(staticCallQuery), lang)
	if err != nil {
		return nil, fmt.Errorf("invalid query '%s': %w", staticCallQuery, err)
	}
	l.queries[lang] = q
	return q, nil
}

// locateExports walks the top-level statements only; nested declarations
// are never page queries.
func locateExports(root *sitter.Node, src []byte, name string) []Span {
	var spans []Span
	count := int(root.NamedChildCount())
	for i := 0; i < count; i++ {
		stmt := root.NamedChild(i)
		if stmt == nil || stmt.Type() != "export_statement" {
			continue
		}
		decl := stmt.ChildByFieldName("declaration")
		if decl == nil {
			continue
		}
		if decl.Type() != "lexical_declaration" && decl.Type() != "variable_declaration" {
			continue
		}
		n := int(decl.NamedChildCount())
		for j := 0; j < n; j++ {
			d := decl.NamedChild(j)
			if d == nil || d.Type() != "variable_declarator" {
				continue
			}
			id := d.ChildByFieldName("name")
			value := d.ChildByFieldName("value")
			if id == nil || value == nil || id.Content(src) != name {
				continue
			}
			spans = append(spans, literalSpan(value))
		}
	}
	return spans
}

func locateCalls(q *sitter.Query, root *sitter.Node, src []byte, hook string) []Span {
	qc := sitter.NewQueryCursor()
	defer qc.Close()
	qc.Exec(q, root)

	var spans []Span
	for {
		m, ok := qc.NextMatch()
		if !ok {
			break
		}
		var callee, args *sitter.Node
		for _, c := range m.Captures {
			switch q.CaptureNameForId(c.Index) {
			case "callee":
				callee = c.Node
			case "args":
				args = c.Node
			}
		}
		if callee == nil || args == nil || callee.Content(src) != hook {
			continue
		}
		arg := firstArgument(args)
		if arg == nil || !isLiteral(arg) {
			// Non-literal arguments (variables, calls) cannot be resolved textually.
			spans = append(spans, Span{Line: callee.StartPoint().Row, Dynamic: true})
			continue
		}
		spans = append(spans, literalSpan(arg))
	}
	return spans
}

func firstArgument(args *sitter.Node) *sitter.Node {
	n := int(args.NamedChildCount())
	for i := 0; i < n; i++ {
		c := args.NamedChild(i)
		if c != nil && c.Type() != "comment" {
			return c
		}
	}
	return nil
}

func isLiteral(n *sitter.Node) bool {
	return n.Type() == "string" || n.Type() == "template_string"
}

// literalSpan excludes the delimiting quote or backtick characters of string
// and template literals. Other expressions keep their full range.
func literalSpan(n *sitter.Node) Span {
	s := Span{Start: n.StartByte(), End: n.EndByte(), Line: n.StartPoint().Row}
	if isLiteral(n) && s.End-s.Start >= 2 {
		s.Start++
		s.End--
	}
	return s
}

// findFirstError does a depth-first search for the first ERROR node.
func findFirstError(node *sitter.Node) *sitter.Node {
	if node.IsError() || node.IsMissing() {
		return node
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child == nil {
			continue
		}
		if child.HasError() || child.IsError() || child.IsMissing() {
			if found := findFirstError(child); found != nil {
				return found
			}
		}
	}
	return nil
}

package fragments

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/kmcaloon/groqcache/internal/extract"
)

// IndexNames are the file names tried, in order, inside a fragments directory.
var IndexNames = []string{"index.js", "index.mjs", "index.cjs", "index.ts"}

// Loader reads the fragments module of a directory.
type Loader struct {
	Logger *slog.Logger
}

// IndexFile returns the fragments module path inside dir.
func IndexFile(dir string) (string, error) {
	for _, name := range IndexNames {
		p := filepath.Join(dir, name)
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", fmt.Errorf("no fragments index in %s: %w", dir, os.ErrNotExist)
}

// Load parses the fragments module in dir from disk and builds a new Registry.
// The file is always re-read, so a reload never observes stale definitions.
func (l *Loader) Load(dir string) (*Registry, error) {
	path, err := IndexFile(dir)
	if err != nil {
		return nil, err
	}
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fragments %s: %w", path, err)
	}
	frags, err := l.Parse(path, src)
	if err != nil {
		return nil, err
	}
	return NewRegistry(frags...), nil
}

// Parse extracts fragment definitions from module source. Recognized forms:
//
//	export const name = `...`
//	module.exports = { name: `...`, other }
//	exports.name = "..."
func (l *Loader) Parse(path string, src []byte) ([]Fragment, error) {
	lang, ok := extract.LanguageFor(path)
	if !ok {
		return nil, fmt.Errorf("unsupported fragments module %s", path)
	}
	parser := sitter.NewParser()
	parser.SetLanguage(lang.Grammar)
	tree, err := parser.ParseCtx(context.Background(), nil, src)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		return nil, &extract.ParseError{File: path, Message: "fragments module contains syntax errors"}
	}

	p := &moduleParser{src: src, locals: make(map[string]*sitter.Node), logger: l.logger()}
	count := int(root.NamedChildCount())
	for i := 0; i < count; i++ {
		p.statement(root.NamedChild(i))
	}
	return p.frags, nil
}

func (l *Loader) logger() *slog.Logger {
	if l.Logger == nil {
		return slog.Default()
	}
	return l.Logger
}

type moduleParser struct {
	src    []byte
	locals map[string]*sitter.Node
	frags  []Fragment
	logger *slog.Logger
}

func (p *moduleParser) statement(n *sitter.Node) {
	if n == nil {
		return
	}
	switch n.Type() {
	case "lexical_declaration", "variable_declaration":
		p.declarations(n, false)
	case "export_statement":
		if decl := n.ChildByFieldName("declaration"); decl != nil {
			p.declarations(decl, true)
		}
	case "expression_statement":
		if n.NamedChildCount() > 0 {
			p.assignment(n.NamedChild(0))
		}
	}
}

func (p *moduleParser) declarations(decl *sitter.Node, exported bool) {
	if decl.Type() != "lexical_declaration" && decl.Type() != "variable_declaration" {
		return
	}
	count := int(decl.NamedChildCount())
	for i := 0; i < count; i++ {
		d := decl.NamedChild(i)
		if d == nil || d.Type() != "variable_declarator" {
			continue
		}
		name, value := d.ChildByFieldName("name"), d.ChildByFieldName("value")
		if name == nil || value == nil || name.Type() != "identifier" {
			continue
		}
		p.locals[name.Content(p.src)] = value
		if exported {
			p.define(name.Content(p.src), value)
		}
	}
}

func (p *moduleParser) assignment(n *sitter.Node) {
	if n == nil || n.Type() != "assignment_expression" {
		return
	}
	left, right := n.ChildByFieldName("left"), n.ChildByFieldName("right")
	if left == nil || right == nil || left.Type() != "member_expression" {
		return
	}
	object, property := left.ChildByFieldName("object"), left.ChildByFieldName("property")
	if object == nil || property == nil {
		return
	}
	switch {
	case object.Content(p.src) == "module" && property.Content(p.src) == "exports":
		if right.Type() == "object" {
			p.object(right)
		}
	case object.Content(p.src) == "exports":
		p.define(property.Content(p.src), right)
	}
}

func (p *moduleParser) object(obj *sitter.Node) {
	count := int(obj.NamedChildCount())
	for i := 0; i < count; i++ {
		entry := obj.NamedChild(i)
		if entry == nil {
			continue
		}
		switch entry.Type() {
		case "pair":
			key, value := entry.ChildByFieldName("key"), entry.ChildByFieldName("value")
			if key == nil || value == nil {
				continue
			}
			name := key.Content(p.src)
			if key.Type() == "string" {
				name = unquote(name)
			}
			p.define(name, value)
		case "shorthand_property_identifier":
			name := entry.Content(p.src)
			if value, ok := p.locals[name]; ok {
				p.define(name, value)
			}
		case "method_definition":
			if key := entry.ChildByFieldName("name"); key != nil {
				p.frags = append(p.frags, Fragment{Name: key.Content(p.src), Kind: Callable, Value: entry.Content(p.src)})
			}
		}
	}
}

func (p *moduleParser) define(name string, value *sitter.Node) {
	// Follow one level of `export const a = b` aliasing.
	if value.Type() == "identifier" {
		if local, ok := p.locals[value.Content(p.src)]; ok {
			value = local
		}
	}
	switch value.Type() {
	case "string", "template_string":
		p.frags = append(p.frags, Fragment{Name: name, Kind: String, Value: unquote(value.Content(p.src))})
	case "arrow_function", "function", "function_expression", "generator_function":
		p.frags = append(p.frags, Fragment{Name: name, Kind: Callable, Value: value.Content(p.src)})
	default:
		p.logger.Warn("fragments.unsupported", "name", name, "node", value.Type())
	}
}

// unquote strips the delimiters of a string or template literal and keeps
// the inner text verbatim.
func unquote(s string) string {
	if len(s) >= 2 {
		switch s[0] {
		case '"', '\'', '`':
			if s[len(s)-1] == s[0] {
				return s[1 : len(s)-1]
			}
		}
	}
	return s
}

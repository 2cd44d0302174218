package ast

import (
	"context"
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"
)

// Driver loads grammars on demand and parses source into tree-sitter trees.
// A Driver is not safe for concurrent Parse calls against the same instance;
// callers that parse concurrently should use one Driver per goroutine, which
// is cheap since grammars are shared process-wide via the registry.
type Driver struct {
	parser   *sitter.Parser
	registry *Registry
}

// NewDriver creates a driver backed by the default registry.
func NewDriver() *Driver {
	return &Driver{parser: sitter.NewParser(), registry: DefaultRegistry()}
}

// Close releases the underlying tree-sitter parser.
func (d *Driver) Close() {
	if d.parser != nil {
		d.parser.Close()
	}
}

// Parse parses source for the language resolved from path's extension and
// returns the raw tree-sitter tree alongside the resolved language.
func (d *Driver) Parse(ctx context.Context, path string, source []byte) (*sitter.Tree, Language, error) {
	lang, ok := d.registry.Resolve(path)
	if !ok {
		return nil, "", fmt.Errorf("ast: unsupported file extension for %q", path)
	}

	grammar, ok := d.registry.Grammar(lang)
	if !ok {
		return nil, "", fmt.Errorf("ast: no grammar registered for language %q", lang)
	}

	d.parser.SetLanguage(grammar)
	tree, err := d.parser.ParseCtx(ctx, nil, source)
	if err != nil {
		return nil, "", fmt.Errorf("ast: parse failed: %w", err)
	}
	if tree == nil {
		return nil, "", fmt.Errorf("ast: parse produced nil tree")
	}

	return tree, lang, nil
}

// walk calls fn for every node in the subtree rooted at n, depth-first,
// passing the current nesting depth (0 at n itself). fn returns false to
// skip descending into that node's children.
func walk(n *sitter.Node, depth int, fn func(n *sitter.Node, depth int) bool) {
	if n == nil {
		return
	}
	if !fn(n, depth) {
		return
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		walk(n.Child(i), depth+1, fn)
	}
}

// content returns the verbatim source text covered by a node.
func content(n *sitter.Node, source []byte) string {
	if n == nil {
		return ""
	}
	start, end := n.StartByte(), n.EndByte()
	if start >= end || int(end) > len(source) {
		return ""
	}
	return string(source[start:end])
}

func startLine(n *sitter.Node) int { return int(n.StartPoint().Row) + 1 }
func endLine(n *sitter.Node) int   { return int(n.EndPoint().Row) + 1 }

// childOfType returns the first direct child with the given type.
func childOfType(n *sitter.Node, nodeType string) *sitter.Node {
	for i := 0; i < int(n.ChildCount()); i++ {
		c := n.Child(i)
		if c != nil && c.Type() == nodeType {
			return c
		}
	}
	return nil
}

// childrenOfType returns all direct children with the given type.
func childrenOfType(n *sitter.Node, nodeType string) []*sitter.Node {
	var out []*sitter.Node
	for i := 0; i < int(n.ChildCount()); i++ {
		c := n.Child(i)
		if c != nil && c.Type() == nodeType {
			out = append(out, c)
		}
	}
	return out
}

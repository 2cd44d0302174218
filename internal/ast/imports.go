package ast

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

// ExtractImports walks a parsed tree and returns every import/require/use
// statement it finds, tagged with the per-language ImportKind the spec
// distinguishes.
func ExtractImports(tree *sitter.Tree, lang Language, source []byte) []ImportRef {
	root := tree.RootNode()
	var out []ImportRef

	switch lang {
	case LanguageGo:
		out = extractGoImports(root, source)
	case LanguageTypeScript, LanguageTSX, LanguageJavaScript:
		out = extractJSImports(root, source)
	case LanguagePython:
		out = extractPythonImports(root, source)
	case LanguageJava:
		out = extractJavaImports(root, source)
	case LanguageRust:
		out = extractRustImports(root, source)
	}

	return out
}

func extractGoImports(root *sitter.Node, source []byte) []ImportRef {
	var out []ImportRef
	walk(root, 0, func(n *sitter.Node, _ int) bool {
		if n.Type() != "import_spec" {
			return true
		}
		path := n.ChildByFieldName("path")
		if path == nil {
			return true
		}
		names := []string{unquote(content(path, source))}
		if name := n.ChildByFieldName("name"); name != nil {
			names = []string{content(name, source)}
		}
		out = append(out, ImportRef{
			Kind:      ImportKindGoImport,
			Source:    unquote(content(path, source)),
			Names:     names,
			StartLine: startLine(n),
			EndLine:   endLine(n),
		})
		return true
	})
	return out
}

func extractJSImports(root *sitter.Node, source []byte) []ImportRef {
	var out []ImportRef
	walk(root, 0, func(n *sitter.Node, _ int) bool {
		switch n.Type() {
		case "import_statement":
			src := n.ChildByFieldName("source")
			ref := ImportRef{
				Kind:      ImportKindImport,
				StartLine: startLine(n),
				EndLine:   endLine(n),
			}
			if src != nil {
				ref.Source = unquote(content(src, source))
			}
			ref.Names = jsImportClauseNames(n, source)
			out = append(out, ref)

		case "export_statement":
			src := n.ChildByFieldName("source")
			if src == nil {
				return true // re-export without a source isn't an import
			}
			out = append(out, ImportRef{
				Kind:      ImportKindExportFrom,
				Source:    unquote(content(src, source)),
				StartLine: startLine(n),
				EndLine:   endLine(n),
			})

		case "import": // dynamic import(...) callee keyword node
			if n.Parent() == nil || n.Parent().Type() != "call_expression" {
				return true
			}
			args := n.Parent().ChildByFieldName("arguments")
			if args == nil || args.NamedChildCount() == 0 {
				return true
			}
			arg := args.NamedChild(0)
			out = append(out, ImportRef{
				Kind:      ImportKindDynamicImport,
				Source:    unquote(content(arg, source)),
				StartLine: startLine(n.Parent()),
				EndLine:   endLine(n.Parent()),
			})

		case "call_expression":
			fn := n.ChildByFieldName("function")
			if fn == nil || fn.Type() != "identifier" || content(fn, source) != "require" {
				return true
			}
			args := n.ChildByFieldName("arguments")
			if args == nil || args.NamedChildCount() == 0 {
				return true
			}
			arg := args.NamedChild(0)
			out = append(out, ImportRef{
				Kind:      ImportKindRequire,
				Source:    unquote(content(arg, source)),
				StartLine: startLine(n),
				EndLine:   endLine(n),
			})
		}
		return true
	})
	return out
}

func jsImportClauseNames(n *sitter.Node, source []byte) []string {
	var names []string
	walk(n, 0, func(c *sitter.Node, _ int) bool {
		switch c.Type() {
		case "identifier":
			if c.Parent() != nil && c.Parent().Type() == "import_clause" {
				names = append(names, content(c, source))
			}
		case "import_specifier":
			if name := c.ChildByFieldName("name"); name != nil {
				names = append(names, content(name, source))
			}
		case "namespace_import":
			names = append(names, content(c, source))
		}
		return true
	})
	return names
}

func extractPythonImports(root *sitter.Node, source []byte) []ImportRef {
	var out []ImportRef
	walk(root, 0, func(n *sitter.Node, _ int) bool {
		switch n.Type() {
		case "import_statement":
			var names []string
			for i := 0; i < int(n.NamedChildCount()); i++ {
				names = append(names, content(n.NamedChild(i), source))
			}
			out = append(out, ImportRef{
				Kind:      ImportKindPythonImport,
				Source:    strings.Join(names, ", "),
				Names:     names,
				StartLine: startLine(n),
				EndLine:   endLine(n),
			})
		case "import_from_statement":
			moduleNode := n.ChildByFieldName("module_name")
			module := ""
			if moduleNode != nil {
				module = content(moduleNode, source)
			}
			var names []string
			for i := 0; i < int(n.NamedChildCount()); i++ {
				c := n.NamedChild(i)
				if c.Type() == "dotted_name" && c != moduleNode {
					names = append(names, content(c, source))
				}
				if c.Type() == "wildcard_import" {
					names = append(names, "*")
				}
			}
			out = append(out, ImportRef{
				Kind:      ImportKindPythonFrom,
				Source:    module,
				Names:     names,
				StartLine: startLine(n),
				EndLine:   endLine(n),
			})
		}
		return true
	})
	return out
}

func extractJavaImports(root *sitter.Node, source []byte) []ImportRef {
	var out []ImportRef
	walk(root, 0, func(n *sitter.Node, _ int) bool {
		if n.Type() != "import_declaration" {
			return true
		}
		var path string
		for i := 0; i < int(n.NamedChildCount()); i++ {
			c := n.NamedChild(i)
			if c.Type() == "scoped_identifier" || c.Type() == "identifier" {
				path = content(c, source)
			}
		}
		out = append(out, ImportRef{
			Kind:      ImportKindJavaImport,
			Source:    path,
			StartLine: startLine(n),
			EndLine:   endLine(n),
		})
		return true
	})
	return out
}

func extractRustImports(root *sitter.Node, source []byte) []ImportRef {
	var out []ImportRef
	walk(root, 0, func(n *sitter.Node, _ int) bool {
		switch n.Type() {
		case "use_declaration":
			var arg *sitter.Node
			for i := 0; i < int(n.NamedChildCount()); i++ {
				if n.NamedChild(i).Type() != "visibility_modifier" {
					arg = n.NamedChild(i)
					break
				}
			}
			src := ""
			if arg != nil {
				src = content(arg, source)
			}
			out = append(out, ImportRef{
				Kind:      ImportKindRustUse,
				Source:    src,
				StartLine: startLine(n),
				EndLine:   endLine(n),
			})
		case "extern_crate_declaration":
			name := childOfType(n, "identifier")
			src := ""
			if name != nil {
				src = content(name, source)
			}
			out = append(out, ImportRef{
				Kind:      ImportKindRustExternCrate,
				Source:    src,
				StartLine: startLine(n),
				EndLine:   endLine(n),
			})
		}
		return true
	})
	return out
}

// unquote strips a single layer of surrounding quote characters, used for
// string-literal import paths across languages.
func unquote(s string) string {
	if len(s) >= 2 {
		first, last := s[0], s[len(s)-1]
		if (first == '"' && last == '"') || (first == '\'' && last == '\'') || (first == '`' && last == '`') {
			return s[1 : len(s)-1]
		}
	}
	return s
}

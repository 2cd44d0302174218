package ast

import (
	"strings"
	"unicode"

	sitter "github.com/smacker/go-tree-sitter"
)

// ExtractExports returns the names a file makes visible to other files,
// applying each language's own visibility convention.
func ExtractExports(tree *sitter.Tree, lang Language, source []byte) []string {
	root := tree.RootNode()

	switch lang {
	case LanguageGo:
		return exportsGo(root, source)
	case LanguageTypeScript, LanguageTSX, LanguageJavaScript:
		return exportsJS(root, source)
	case LanguagePython:
		return exportsPython(root, source)
	case LanguageJava:
		return exportsJava(root, source)
	case LanguageRust:
		return exportsRust(root, source)
	}
	return nil
}

func isExportedGoName(name string) bool {
	if name == "" {
		return false
	}
	r := []rune(name)[0]
	return unicode.IsUpper(r)
}

func exportsGo(root *sitter.Node, source []byte) []string {
	var names []string
	walk(root, 0, func(n *sitter.Node, _ int) bool {
		switch n.Type() {
		case "function_declaration":
			if id := childOfType(n, "identifier"); id != nil {
				if name := content(id, source); isExportedGoName(name) {
					names = append(names, name)
				}
			}
		case "type_spec":
			if id := childOfType(n, "type_identifier"); id != nil {
				if name := content(id, source); isExportedGoName(name) {
					names = append(names, name)
				}
			}
		case "const_spec", "var_spec":
			for i := 0; i < int(n.NamedChildCount()); i++ {
				c := n.NamedChild(i)
				if c.Type() == "identifier" {
					if name := content(c, source); isExportedGoName(name) {
						names = append(names, name)
					}
				}
			}
		}
		return true
	})
	return names
}

func exportsJS(root *sitter.Node, source []byte) []string {
	var names []string
	walk(root, 0, func(n *sitter.Node, _ int) bool {
		if n.Type() != "export_statement" {
			return true
		}
		if n.ChildByFieldName("source") != nil {
			return true // re-export, not a local export name
		}
		walk(n, 0, func(c *sitter.Node, _ int) bool {
			switch c.Type() {
			case "identifier":
				names = append(names, content(c, source))
			case "export_specifier":
				target := c.ChildByFieldName("alias")
				if target == nil {
					target = c.ChildByFieldName("name")
				}
				if target != nil {
					names = append(names, content(target, source))
				}
			}
			return c.Type() != "statement_block" // don't descend into function bodies
		})
		return false
	})
	return dedupeStrings(names)
}

func exportsPython(root *sitter.Node, source []byte) []string {
	// __all__ = ["a", "b"] takes precedence when present.
	var allNames []string
	foundAll := false

	walk(root, 0, func(n *sitter.Node, depth int) bool {
		// A module-level assignment sits at depth 2:
		// module > expression_statement > assignment.
		if depth > 2 {
			return true
		}
		if n.Type() != "assignment" {
			return true
		}
		left := n.ChildByFieldName("left")
		if left == nil || content(left, source) != "__all__" {
			return true
		}
		right := n.ChildByFieldName("right")
		if right == nil {
			return true
		}
		for i := 0; i < int(right.NamedChildCount()); i++ {
			item := right.NamedChild(i)
			if item.Type() == "string" {
				allNames = append(allNames, unquote(content(item, source)))
			}
		}
		foundAll = true
		return true
	})
	if foundAll {
		return allNames
	}

	var names []string
	for i := 0; i < int(root.NamedChildCount()); i++ {
		n := root.NamedChild(i)
		var id *sitter.Node
		switch n.Type() {
		case "function_definition", "class_definition":
			id = n.ChildByFieldName("name")
		case "assignment":
			id = n.ChildByFieldName("left")
		}
		if id == nil {
			continue
		}
		name := content(id, source)
		if name != "" && !strings.HasPrefix(name, "_") {
			names = append(names, name)
		}
	}
	return names
}

func exportsJava(root *sitter.Node, source []byte) []string {
	var names []string
	walk(root, 0, func(n *sitter.Node, _ int) bool {
		switch n.Type() {
		case "class_declaration", "interface_declaration", "enum_declaration", "record_declaration":
			if !hasModifier(n, source, "public") {
				return true
			}
			if id := n.ChildByFieldName("name"); id != nil {
				names = append(names, content(id, source))
			}
		}
		return true
	})
	return names
}

func hasModifier(n *sitter.Node, source []byte, modifier string) bool {
	mods := childOfType(n, "modifiers")
	if mods == nil {
		return false
	}
	return strings.Contains(content(mods, source), modifier)
}

func exportsRust(root *sitter.Node, source []byte) []string {
	var names []string
	walk(root, 0, func(n *sitter.Node, _ int) bool {
		switch n.Type() {
		case "function_item", "struct_item", "enum_item", "trait_item", "const_item", "static_item", "mod_item":
			if childOfType(n, "visibility_modifier") == nil {
				return true
			}
			if id := n.ChildByFieldName("name"); id != nil {
				names = append(names, content(id, source))
			}
		}
		return true
	})
	return names
}

func dedupeStrings(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

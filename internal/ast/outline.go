package ast

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

// outlineRule maps tree-sitter node types to outline symbol kinds for one
// language, plus the field/child used to recover the declaration's name and
// the container node type that holds member declarations (for nesting
// methods under their class/struct).
type outlineRule struct {
	functionTypes  map[string]bool
	methodTypes    map[string]bool
	classTypes     map[string]bool
	interfaceTypes map[string]bool
	typeDefTypes   map[string]bool
	enumTypes      map[string]bool
	variableTypes  map[string]bool
	bodyField      string // field name holding a container's member list
}

func toSet(types ...string) map[string]bool {
	m := make(map[string]bool, len(types))
	for _, t := range types {
		m[t] = true
	}
	return m
}

var outlineRules = map[Language]outlineRule{
	LanguageGo: {
		functionTypes: toSet("function_declaration"),
		methodTypes:   toSet("method_declaration"),
		typeDefTypes:  toSet("type_declaration"),
		variableTypes: toSet("const_declaration", "var_declaration"),
	},
	LanguageTypeScript: {
		functionTypes:  toSet("function_declaration"),
		methodTypes:    toSet("method_definition"),
		classTypes:     toSet("class_declaration"),
		interfaceTypes: toSet("interface_declaration"),
		typeDefTypes:   toSet("type_alias_declaration"),
		enumTypes:      toSet("enum_declaration"),
		variableTypes:  toSet("lexical_declaration", "variable_declaration"),
		bodyField:      "body",
	},
	LanguageTSX: {
		functionTypes:  toSet("function_declaration"),
		methodTypes:    toSet("method_definition"),
		classTypes:     toSet("class_declaration"),
		interfaceTypes: toSet("interface_declaration"),
		typeDefTypes:   toSet("type_alias_declaration"),
		enumTypes:      toSet("enum_declaration"),
		variableTypes:  toSet("lexical_declaration", "variable_declaration"),
		bodyField:      "body",
	},
	LanguageJavaScript: {
		functionTypes: toSet("function_declaration", "function"),
		methodTypes:   toSet("method_definition"),
		classTypes:    toSet("class_declaration"),
		variableTypes: toSet("lexical_declaration", "variable_declaration"),
		bodyField:     "body",
	},
	LanguagePython: {
		functionTypes: toSet("function_definition"),
		classTypes:    toSet("class_definition"),
		variableTypes: toSet("assignment"),
		bodyField:     "body",
	},
	LanguageJava: {
		methodTypes:    toSet("method_declaration", "constructor_declaration"),
		classTypes:     toSet("class_declaration", "record_declaration"),
		interfaceTypes: toSet("interface_declaration"),
		enumTypes:      toSet("enum_declaration"),
		variableTypes:  toSet("field_declaration"),
		bodyField:      "body",
	},
	LanguageRust: {
		functionTypes:  toSet("function_item"),
		classTypes:     toSet("struct_item"),
		interfaceTypes: toSet("trait_item"),
		enumTypes:      toSet("enum_item"),
		variableTypes:  toSet("const_item", "static_item"),
		typeDefTypes:   toSet("impl_item"),
		bodyField:      "body",
	},
}

// ExtractOutline produces the per-file symbol outline, nesting methods found
// in a class/struct/impl body one level under their container.
func ExtractOutline(tree *sitter.Tree, lang Language, source []byte) []*SymbolOutline {
	rule, ok := outlineRules[lang]
	if !ok {
		return nil
	}

	root := tree.RootNode()
	var out []*SymbolOutline

	var children func(n *sitter.Node) []*SymbolOutline
	children = func(n *sitter.Node) []*SymbolOutline {
		var syms []*SymbolOutline
		for i := 0; i < int(n.NamedChildCount()); i++ {
			c := n.NamedChild(i)
			// export_statement wraps its declaration (export class Foo {},
			// export function bar() {}); unwrap so the declaration itself
			// is what gets built into an outline symbol.
			if c.Type() == "export_statement" {
				if decl := c.ChildByFieldName("declaration"); decl != nil {
					c = decl
				} else if c.NamedChildCount() > 0 {
					c = c.NamedChild(0)
				}
			}
			sym := buildSymbol(c, rule, lang, source)
			if sym == nil {
				continue
			}
			if isContainer(c, rule) {
				body := c
				if rule.bodyField != "" {
					if b := c.ChildByFieldName(rule.bodyField); b != nil {
						body = b
					}
				}
				sym.Children = children(body)
			}
			syms = append(syms, sym)
		}
		return syms
	}

	out = children(root)
	return out
}

func isContainer(n *sitter.Node, rule outlineRule) bool {
	t := n.Type()
	return rule.classTypes[t] || rule.interfaceTypes[t] || rule.enumTypes[t] || (rule.typeDefTypes[t] && t == "impl_item")
}

func buildSymbol(n *sitter.Node, rule outlineRule, lang Language, source []byte) *SymbolOutline {
	t := n.Type()
	var kind SymbolKind

	switch {
	case rule.functionTypes[t]:
		kind = SymbolKindFunction
	case rule.methodTypes[t]:
		kind = SymbolKindMethod
	case rule.classTypes[t]:
		kind = SymbolKindClass
	case rule.interfaceTypes[t]:
		kind = SymbolKindInterface
	case rule.enumTypes[t]:
		kind = SymbolKindEnum
	case rule.typeDefTypes[t]:
		kind = SymbolKindType
	case rule.variableTypes[t]:
		kind = SymbolKindVariable
	default:
		return nil
	}

	name := symbolName(n, lang, source)
	if name == "" {
		return nil
	}

	return &SymbolOutline{
		Kind:      kind,
		Name:      name,
		Signature: firstLine(content(n, source)),
		StartLine: startLine(n),
		EndLine:   endLine(n),
		Exported:  isExported(n, name, lang, source),
	}
}

func symbolName(n *sitter.Node, lang Language, source []byte) string {
	if name := n.ChildByFieldName("name"); name != nil {
		return content(name, source)
	}

	switch n.Type() {
	case "type_declaration": // Go: look inside type_spec
		if spec := childOfType(n, "type_spec"); spec != nil {
			if id := childOfType(spec, "type_identifier"); id != nil {
				return content(id, source)
			}
		}
	case "const_declaration", "var_declaration": // Go
		for _, specType := range []string{"const_spec", "var_spec"} {
			if spec := childOfType(n, specType); spec != nil {
				if id := childOfType(spec, "identifier"); id != nil {
					return content(id, source)
				}
			}
		}
	case "lexical_declaration", "variable_declaration": // JS/TS
		if decl := childOfType(n, "variable_declarator"); decl != nil {
			if id := decl.ChildByFieldName("name"); id != nil {
				return content(id, source)
			}
		}
	case "field_declaration": // Java
		if decl := childOfType(n, "variable_declarator"); decl != nil {
			if id := decl.ChildByFieldName("name"); id != nil {
				return content(id, source)
			}
		}
	case "assignment": // Python top-level var
		if left := n.ChildByFieldName("left"); left != nil && left.Type() == "identifier" {
			return content(left, source)
		}
	case "impl_item": // Rust
		if ty := n.ChildByFieldName("type"); ty != nil {
			return content(ty, source)
		}
	}

	for i := 0; i < int(n.ChildCount()); i++ {
		c := n.Child(i)
		if c != nil && (c.Type() == "identifier" || c.Type() == "field_identifier" || c.Type() == "type_identifier") {
			return content(c, source)
		}
	}
	return ""
}

func isExported(n *sitter.Node, name string, lang Language, source []byte) bool {
	switch lang {
	case LanguageGo:
		return isExportedGoName(name)
	case LanguageRust:
		return childOfType(n, "visibility_modifier") != nil
	case LanguageJava:
		return hasModifier(n, source, "public")
	case LanguagePython:
		return !strings.HasPrefix(name, "_")
	case LanguageTypeScript, LanguageTSX, LanguageJavaScript:
		// Exportedness for JS/TS symbols is a property of their enclosing
		// export_statement, checked by the caller via ExtractExports; the
		// outline itself reports declared-exported only when the parent is
		// an export_statement.
		if n.Parent() != nil && n.Parent().Type() == "export_statement" {
			return true
		}
		return false
	}
	return false
}

func firstLine(s string) string {
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		return strings.TrimSpace(s[:idx])
	}
	return strings.TrimSpace(s)
}

package ast

import (
	sitter "github.com/smacker/go-tree-sitter"
)

// ExtractExtensionPoints finds interfaces, function types and generic type
// constraints: the surfaces a codebase expects callers to implement or
// parameterize against, rather than call directly.
func ExtractExtensionPoints(tree *sitter.Tree, lang Language, source []byte) []ExtensionPoint {
	root := tree.RootNode()

	switch lang {
	case LanguageGo:
		return extensionPointsGo(root, source)
	case LanguageTypeScript, LanguageTSX:
		return extensionPointsTS(root, source)
	case LanguageJava:
		return extensionPointsJava(root, source)
	case LanguageRust:
		return extensionPointsRust(root, source)
	}
	return nil
}

func extensionPointsGo(root *sitter.Node, source []byte) []ExtensionPoint {
	var out []ExtensionPoint
	walk(root, 0, func(n *sitter.Node, _ int) bool {
		if n.Type() != "type_spec" {
			return true
		}
		id := childOfType(n, "type_identifier")
		if id == nil {
			return true
		}
		name := content(id, source)

		switch {
		case childOfType(n, "interface_type") != nil:
			iface := childOfType(n, "interface_type")
			out = append(out, ExtensionPoint{
				Kind:      ExtensionPointInterface,
				Name:      name,
				StartLine: startLine(n),
				EndLine:   endLine(n),
				Methods:   interfaceMethodNames(iface, source),
			})
		case childOfType(n, "function_type") != nil:
			out = append(out, ExtensionPoint{
				Kind:      ExtensionPointFuncType,
				Name:      name,
				StartLine: startLine(n),
				EndLine:   endLine(n),
			})
		}
		return true
	})
	return out
}

func interfaceMethodNames(iface *sitter.Node, source []byte) []string {
	var methods []string
	for _, spec := range childrenOfType(iface, "method_spec") {
		if id := childOfType(spec, "field_identifier"); id != nil {
			methods = append(methods, content(id, source))
		}
	}
	return methods
}

func extensionPointsTS(root *sitter.Node, source []byte) []ExtensionPoint {
	var out []ExtensionPoint
	walk(root, 0, func(n *sitter.Node, _ int) bool {
		switch n.Type() {
		case "interface_declaration":
			name := ""
			if id := n.ChildByFieldName("name"); id != nil {
				name = content(id, source)
			}
			out = append(out, ExtensionPoint{
				Kind:      ExtensionPointInterface,
				Name:      name,
				StartLine: startLine(n),
				EndLine:   endLine(n),
			})
		case "type_parameter":
			if constraint := n.ChildByFieldName("constraint"); constraint != nil {
				name := ""
				if id := n.ChildByFieldName("name"); id != nil {
					name = content(id, source)
				}
				out = append(out, ExtensionPoint{
					Kind:      ExtensionPointTypeConstraint,
					Name:      name,
					StartLine: startLine(n),
					EndLine:   endLine(n),
				})
			}
		}
		return true
	})
	return out
}

func extensionPointsJava(root *sitter.Node, source []byte) []ExtensionPoint {
	var out []ExtensionPoint
	walk(root, 0, func(n *sitter.Node, _ int) bool {
		switch n.Type() {
		case "interface_declaration":
			name := ""
			if id := n.ChildByFieldName("name"); id != nil {
				name = content(id, source)
			}
			out = append(out, ExtensionPoint{
				Kind:      ExtensionPointInterface,
				Name:      name,
				StartLine: startLine(n),
				EndLine:   endLine(n),
			})
		case "class_declaration":
			if !hasModifier(n, source, "abstract") {
				return true
			}
			name := ""
			if id := n.ChildByFieldName("name"); id != nil {
				name = content(id, source)
			}
			out = append(out, ExtensionPoint{
				Kind:      ExtensionPointAbstractClass,
				Name:      name,
				StartLine: startLine(n),
				EndLine:   endLine(n),
			})
		}
		return true
	})
	return out
}

func extensionPointsRust(root *sitter.Node, source []byte) []ExtensionPoint {
	var out []ExtensionPoint
	walk(root, 0, func(n *sitter.Node, _ int) bool {
		if n.Type() != "trait_item" {
			return true
		}
		name := ""
		if id := n.ChildByFieldName("name"); id != nil {
			name = content(id, source)
		}
		var methods []string
		if body := n.ChildByFieldName("body"); body != nil {
			for _, fn := range childrenOfType(body, "function_signature_item") {
				if id := fn.ChildByFieldName("name"); id != nil {
					methods = append(methods, content(id, source))
				}
			}
			for _, fn := range childrenOfType(body, "function_item") {
				if id := fn.ChildByFieldName("name"); id != nil {
					methods = append(methods, content(id, source))
				}
			}
		}
		out = append(out, ExtensionPoint{
			Kind:      ExtensionPointTrait,
			Name:      name,
			StartLine: startLine(n),
			EndLine:   endLine(n),
			Methods:   methods,
		})
		return true
	})
	return out
}

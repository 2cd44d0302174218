package ast

import (
	sitter "github.com/smacker/go-tree-sitter"
)

// complexityRule describes, for one language, which tree-sitter node types
// are decision points and how to navigate into their condition/body/else
// children. Field names line up with the grammar's own field names where
// the grammar defines one (Go, JS/TS, Java and Rust all expose "alternative"
// on their if-statement node; Python does not, and is handled separately).
type complexityRule struct {
	functionTypes map[string]bool
	loopTypes     map[string]bool
	catchTypes    map[string]bool
	caseTypes     map[string]bool
	ternaryTypes  map[string]bool
	logicalAndOp  string
	logicalOrOp   string
	ifType        string
	paramsField   string
}

var complexityRules = map[Language]complexityRule{
	LanguageGo: {
		functionTypes: toSet("function_declaration", "method_declaration", "func_literal"),
		loopTypes:     toSet("for_statement"),
		caseTypes:     toSet("expression_case", "type_case", "communication_case", "default_case"),
		logicalAndOp:  "&&",
		logicalOrOp:   "||",
		ifType:        "if_statement",
		paramsField:   "parameters",
	},
	LanguageTypeScript: jsLikeRule(),
	LanguageTSX:         jsLikeRule(),
	LanguageJavaScript:  jsLikeRule(),
	LanguagePython: {
		functionTypes: toSet("function_definition"),
		loopTypes:     toSet("for_statement", "while_statement"),
		catchTypes:    toSet("except_clause"),
		caseTypes:     toSet("case_clause"),
		ternaryTypes:  toSet("conditional_expression"),
		logicalAndOp:  "and",
		logicalOrOp:   "or",
		ifType:        "if_statement",
		paramsField:   "parameters",
	},
	LanguageJava: {
		functionTypes: toSet("method_declaration", "constructor_declaration"),
		loopTypes:     toSet("for_statement", "while_statement", "do_statement", "enhanced_for_statement"),
		catchTypes:    toSet("catch_clause"),
		caseTypes:     toSet("switch_label"),
		ternaryTypes:  toSet("ternary_expression"),
		logicalAndOp:  "&&",
		logicalOrOp:   "||",
		ifType:        "if_statement",
		paramsField:   "parameters",
	},
	LanguageRust: {
		functionTypes: toSet("function_item"),
		loopTypes:     toSet("for_expression", "while_expression", "loop_expression"),
		caseTypes:     toSet("match_arm"),
		logicalAndOp:  "&&",
		logicalOrOp:   "||",
		ifType:        "if_expression",
		paramsField:   "parameters",
	},
}

func jsLikeRule() complexityRule {
	return complexityRule{
		functionTypes: toSet("function_declaration", "function", "arrow_function", "method_definition", "function_expression"),
		loopTypes:     toSet("for_statement", "for_in_statement", "while_statement", "do_statement"),
		catchTypes:    toSet("catch_clause"),
		caseTypes:     toSet("switch_case", "switch_default"),
		ternaryTypes:  toSet("ternary_expression"),
		logicalAndOp:  "&&",
		logicalOrOp:   "||",
		ifType:        "if_statement",
		paramsField:   "parameters",
	}
}

// ExtractComplexity returns cognitive/cyclomatic complexity facts for every
// function-like declaration in the file.
func ExtractComplexity(tree *sitter.Tree, lang Language, source []byte) []ComplexityMetrics {
	rule, ok := complexityRules[lang]
	if !ok {
		return nil
	}

	root := tree.RootNode()
	var out []ComplexityMetrics

	var visitFunctions func(n *sitter.Node)
	visitFunctions = func(n *sitter.Node) {
		if n == nil {
			return
		}
		if rule.functionTypes[n.Type()] {
			name := functionName(n, lang, source)
			body := n.ChildByFieldName("body")
			if body == nil {
				body = n
			}

			w := &complexityWalker{rule: rule, source: source, funcName: name}
			w.visit(body, 0, false)
			if w.funcName != "" {
				w.checkRecursion(body)
			}

			out = append(out, ComplexityMetrics{
				Name:            name,
				Cyclomatic:      w.cyclomatic + 1,
				Cognitive:       w.cognitive + boolToInt(w.recursive),
				MaxNestingDepth: w.maxDepth,
				LineCount:       endLine(n) - startLine(n) + 1,
				ParamCount:      paramCount(n, rule),
				StartLine:       startLine(n),
				EndLine:         endLine(n),
			})
		}
		for i := 0; i < int(n.NamedChildCount()); i++ {
			visitFunctions(n.NamedChild(i))
		}
	}
	visitFunctions(root)

	return out
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func functionName(n *sitter.Node, lang Language, source []byte) string {
	if id := n.ChildByFieldName("name"); id != nil {
		return content(id, source)
	}
	// Go methods: receiver identifier precedes the method name field "name";
	// arrow functions assigned to a variable take the variable's name.
	if n.Parent() != nil && (n.Parent().Type() == "variable_declarator" || n.Parent().Type() == "assignment") {
		if left := n.Parent().ChildByFieldName("name"); left != nil {
			return content(left, source)
		}
		if left := n.Parent().ChildByFieldName("left"); left != nil {
			return content(left, source)
		}
	}
	return ""
}

func paramCount(n *sitter.Node, rule complexityRule) int {
	params := n.ChildByFieldName(rule.paramsField)
	if params == nil {
		return 0
	}
	count := 0
	for i := 0; i < int(params.NamedChildCount()); i++ {
		t := params.NamedChild(i).Type()
		if t == "comment" {
			continue
		}
		count++
	}
	return count
}

type complexityWalker struct {
	rule       complexityRule
	source     []byte
	cyclomatic int
	cognitive  int
	maxDepth   int
	funcName   string
	recursive  bool
}

func (w *complexityWalker) visit(n *sitter.Node, depth int, fromElseIf bool) {
	if n == nil {
		return
	}
	if depth > w.maxDepth {
		w.maxDepth = depth
	}

	switch {
	case n.Type() == w.rule.ifType:
		// Cyclomatic complexity counts every branch condition, including
		// else-if links. Cognitive complexity does not: an else-if's
		// structural increment was already applied as the flat +1 in
		// visitElse, so fromElseIf suppresses the nesting-based add here.
		w.cyclomatic++
		if !fromElseIf {
			w.cognitive += 1 + depth
		}
		if cond := n.ChildByFieldName("condition"); cond != nil {
			w.visitLogical(cond, depth)
		}
		if cons := n.ChildByFieldName("consequence"); cons != nil {
			w.visit(cons, depth+1, false)
		}
		if alt := n.ChildByFieldName("alternative"); alt != nil {
			w.visitElse(alt, depth)
		}
		w.visitPythonElse(n, depth)

	case w.rule.loopTypes[n.Type()]:
		w.cyclomatic++
		w.cognitive += 1 + depth
		if cond := n.ChildByFieldName("condition"); cond != nil {
			w.visitLogical(cond, depth)
		}
		if body := n.ChildByFieldName("body"); body != nil {
			w.visit(body, depth+1, false)
		} else {
			w.visitChildren(n, depth+1)
		}

	case w.rule.catchTypes[n.Type()]:
		w.cyclomatic++
		w.cognitive += 1 + depth
		w.visitChildren(n, depth+1)

	case w.rule.caseTypes[n.Type()]:
		w.cyclomatic++
		w.cognitive += 1 + depth
		w.visitChildren(n, depth)

	case w.rule.ternaryTypes[n.Type()]:
		w.cyclomatic++
		w.cognitive += 1 + depth
		w.visitChildren(n, depth+1)

	case w.isLogical(n):
		w.visitLogical(n, depth)

	case callNodeTypes[n.Type()]:
		if w.funcName != "" && calleeNameFromCall(n, w.source) == w.funcName {
			w.recursive = true
		}
		w.visitChildren(n, depth)

	default:
		w.visitChildren(n, depth)
	}
}

// visitElse handles the "alternative" field shared by Go/JS/TS/Java/Rust:
// either a bare block (plain else), a nested if directly (Go's grammar has
// no wrapper), or a single-child else_clause wrapping a nested if (the
// shape some grammars use for "else if").
func (w *complexityWalker) visitElse(alt *sitter.Node, depth int) {
	w.cognitive++
	if alt.Type() == w.rule.ifType {
		w.visit(alt, depth, true)
		return
	}
	if alt.Type() == "else_clause" && alt.NamedChildCount() == 1 && alt.NamedChild(0).Type() == w.rule.ifType {
		w.visit(alt.NamedChild(0), depth, true)
		return
	}
	w.visit(alt, depth+1, false)
}

// visitPythonElse handles Python's elif_clause/else_clause siblings, which
// tree-sitter-python represents as extra named children rather than a
// single "alternative" field.
func (w *complexityWalker) visitPythonElse(n *sitter.Node, depth int) {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		switch c.Type() {
		case "elif_clause":
			w.cognitive++
			if cond := c.ChildByFieldName("condition"); cond != nil {
				w.visitLogical(cond, depth)
			}
			if body := c.ChildByFieldName("consequence"); body != nil {
				w.visit(body, depth, false)
			}
		case "else_clause":
			w.cognitive++
			if body := c.ChildByFieldName("body"); body != nil {
				w.visit(body, depth+1, false)
			}
		}
	}
}

func (w *complexityWalker) visitChildren(n *sitter.Node, depth int) {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		w.visit(n.NamedChild(i), depth, false)
	}
}

func (w *complexityWalker) isLogical(n *sitter.Node) bool {
	return w.logicalOperator(n) != ""
}

func (w *complexityWalker) logicalOperator(n *sitter.Node) string {
	if n.Type() != "binary_expression" && n.Type() != "boolean_operator" {
		return ""
	}
	op := n.ChildByFieldName("operator")
	var text string
	if op != nil {
		text = content(op, w.source)
	} else {
		// boolean_operator (Python) encodes the operator as an anonymous
		// child token between the two operands.
		for i := 0; i < int(n.ChildCount()); i++ {
			c := n.Child(i)
			t := content(c, w.source)
			if t == w.rule.logicalAndOp || t == w.rule.logicalOrOp {
				text = t
				break
			}
		}
	}
	if text == w.rule.logicalAndOp || text == w.rule.logicalOrOp {
		return text
	}
	return ""
}

// visitLogical flattens a chain of &&/|| operators, scores it once for the
// whole chain (1 + nesting penalty, plus 1 per operator switch), then visits
// any non-logical leaf operands for nested decision points.
func (w *complexityWalker) visitLogical(n *sitter.Node, depth int) {
	op := w.logicalOperator(n)
	if op == "" {
		w.visit(n, depth, false)
		return
	}

	ops, leaves := w.flattenLogicalChain(n)
	switches := 0
	for i := 1; i < len(ops); i++ {
		if ops[i] != ops[i-1] {
			switches++
		}
	}
	w.cyclomatic += len(ops)
	w.cognitive += 1 + depth + switches

	for _, leaf := range leaves {
		w.visit(leaf, depth, false)
	}
}

func (w *complexityWalker) flattenLogicalChain(n *sitter.Node) (ops []string, leaves []*sitter.Node) {
	op := w.logicalOperator(n)
	if op == "" {
		return nil, []*sitter.Node{n}
	}

	left := n.ChildByFieldName("left")
	right := n.ChildByFieldName("right")
	if left == nil || right == nil {
		// Python boolean_operator doesn't label fields; fall back to the
		// first/last named children.
		if n.NamedChildCount() >= 2 {
			left = n.NamedChild(0)
			right = n.NamedChild(int(n.NamedChildCount()) - 1)
		}
	}

	lOps, lLeaves := w.flattenLogicalChain(left)
	rOps, rLeaves := w.flattenLogicalChain(right)

	ops = append(ops, lOps...)
	ops = append(ops, op)
	ops = append(ops, rOps...)
	leaves = append(leaves, lLeaves...)
	leaves = append(leaves, rLeaves...)
	return ops, leaves
}

func (w *complexityWalker) checkRecursion(body *sitter.Node) {
	walk(body, 0, func(n *sitter.Node, _ int) bool {
		if callNodeTypes[n.Type()] && calleeNameFromCall(n, w.source) == w.funcName {
			w.recursive = true
			return false
		}
		return true
	})
}

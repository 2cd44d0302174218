package ast

import (
	"sort"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
)

// callNodeTypes names every call-site node type across the seven grammars:
// "call_expression" (Go, JS/TS, Rust), "call" (Python) and
// "method_invocation" (Java, which has no generic "function" field).
var callNodeTypes = toSet("call_expression", "call", "method_invocation")

// Index is the reference/definition index backing the call-graph queries.
// For Python/Go/Rust/Java it is built directly from tree-sitter, matching
// the name-resolution-heuristics approach described for those languages;
// for TS/JS it degrades to the same heuristic rather than driving a real
// language-service host, since this process has no TypeScript compiler to
// shell out to.
type Index struct {
	mu          sync.RWMutex
	definitions map[string][]Definition
	references  map[string][]Reference
	// callees[caller] is the set of names that caller's body calls.
	callees map[string]map[string]bool
}

// NewIndex creates an empty call-graph index.
func NewIndex() *Index {
	return &Index{
		definitions: make(map[string][]Definition),
		references:  make(map[string][]Reference),
		callees:     make(map[string]map[string]bool),
	}
}

// AddFile folds one parsed file's definitions and call references into the
// index. It is safe to call repeatedly as a bundle's files are ingested.
func (idx *Index) AddFile(tree *sitter.Tree, lang Language, path string, source []byte) {
	root := tree.RootNode()
	rule, hasRule := complexityRules[lang]

	idx.mu.Lock()
	defer idx.mu.Unlock()

	for _, sym := range ExtractOutline(tree, lang, source) {
		idx.addDefinitionLocked(sym, path)
		for _, child := range sym.Children {
			idx.addDefinitionLocked(child, path)
		}
	}

	if !hasRule {
		return
	}

	var visit func(n *sitter.Node, enclosing string)
	visit = func(n *sitter.Node, enclosing string) {
		if n == nil {
			return
		}

		if rule.functionTypes[n.Type()] {
			if name := functionName(n, lang, source); name != "" {
				enclosing = name
			}
		}

		if callNodeTypes[n.Type()] {
			if callee := calleeNameFromCall(n, source); callee != "" {
				{
					idx.references[callee] = append(idx.references[callee], Reference{
						Name:              callee,
						FilePath:          path,
						StartLine:         startLine(n),
						EndLine:           endLine(n),
						EnclosingFunction: enclosing,
					})
					if enclosing != "" {
						if idx.callees[enclosing] == nil {
							idx.callees[enclosing] = make(map[string]bool)
						}
						idx.callees[enclosing][callee] = true
					}
				}
			}
		}

		for i := 0; i < int(n.NamedChildCount()); i++ {
			visit(n.NamedChild(i), enclosing)
		}
	}
	visit(root, "")
}

func (idx *Index) addDefinitionLocked(sym *SymbolOutline, path string) {
	idx.definitions[sym.Name] = append(idx.definitions[sym.Name], Definition{
		Name:      sym.Name,
		FilePath:  path,
		StartLine: sym.StartLine,
		EndLine:   sym.EndLine,
		Kind:      sym.Kind,
	})
}

// calleeNameFromCall extracts the bare callee name from a call-site node,
// handling Go/JS/TS/Rust's "function" field, Java's "method_invocation"
// (whose callee is its own "name" field, no wrapping selector node), and
// member/selector expressions (taking the rightmost segment, so
// `pkg.Foo()` or `obj.method()` resolve to `Foo`/`method`).
func calleeNameFromCall(call *sitter.Node, source []byte) string {
	if call.Type() == "method_invocation" {
		if name := call.ChildByFieldName("name"); name != nil {
			return content(name, source)
		}
		return ""
	}
	fn := call.ChildByFieldName("function")
	if fn == nil {
		return ""
	}
	return calleeName(fn, source)
}

func calleeName(fn *sitter.Node, source []byte) string {
	switch fn.Type() {
	case "identifier", "field_identifier":
		return content(fn, source)
	case "selector_expression", "member_expression", "field_access", "scoped_identifier", "attribute":
		if field := fn.ChildByFieldName("field"); field != nil {
			return content(field, source)
		}
		if property := fn.ChildByFieldName("property"); property != nil {
			return content(property, source)
		}
		if attribute := fn.ChildByFieldName("attribute"); attribute != nil {
			return content(attribute, source)
		}
		if name := fn.ChildByFieldName("name"); name != nil {
			return content(name, source)
		}
	}
	return ""
}

// FindReferences returns every call site referencing name.
func (idx *Index) FindReferences(name string) []Reference {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return append([]Reference(nil), idx.references[name]...)
}

// GetDefinition returns the first known definition for name.
func (idx *Index) GetDefinition(name string) (Definition, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	defs := idx.definitions[name]
	if len(defs) == 0 {
		return Definition{}, false
	}
	return defs[0], true
}

// GetFileSymbols returns every definition recorded for a file path.
func (idx *Index) GetFileSymbols(path string) []Definition {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	var out []Definition
	for _, defs := range idx.definitions {
		for _, d := range defs {
			if d.FilePath == path {
				out = append(out, d)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartLine < out[j].StartLine })
	return out
}

// PrepareCallHierarchy resolves the definition that anchors a call
// hierarchy query, mirroring the LSP operation of the same name.
func (idx *Index) PrepareCallHierarchy(name string) (CallHierarchyItem, bool) {
	def, ok := idx.GetDefinition(name)
	if !ok {
		return CallHierarchyItem{}, false
	}
	return CallHierarchyItem{Name: def.Name, FilePath: def.FilePath, StartLine: def.StartLine, EndLine: def.EndLine}, true
}

// GetOutgoingCalls returns the functions name's body calls.
func (idx *Index) GetOutgoingCalls(name string) []CallHierarchyItem {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	var out []CallHierarchyItem
	for callee := range idx.callees[name] {
		if def, ok := idx.definitions[callee]; ok && len(def) > 0 {
			out = append(out, CallHierarchyItem{Name: callee, FilePath: def[0].FilePath, StartLine: def[0].StartLine, EndLine: def[0].EndLine})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// GetIncomingCalls returns the functions that call name.
func (idx *Index) GetIncomingCalls(name string) []CallHierarchyItem {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	var out []CallHierarchyItem
	for caller, callees := range idx.callees {
		if !callees[name] {
			continue
		}
		if def, ok := idx.definitions[caller]; ok && len(def) > 0 {
			out = append(out, CallHierarchyItem{Name: caller, FilePath: def[0].FilePath, StartLine: def[0].StartLine, EndLine: def[0].EndLine})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// StronglyConnectedComponents runs Tarjan's algorithm over the call graph
// and returns every component with more than one member, i.e. the mutual
// and indirect recursion cycles an analysis pass would want to flag.
func (idx *Index) StronglyConnectedComponents() [][]string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	t := &tarjan{
		graph:   idx.callees,
		index:   make(map[string]int),
		lowlink: make(map[string]int),
		onStack: make(map[string]bool),
	}

	names := make([]string, 0, len(idx.callees))
	for caller := range idx.callees {
		names = append(names, caller)
	}
	sort.Strings(names)

	for _, n := range names {
		if _, visited := t.index[n]; !visited {
			t.strongConnect(n)
		}
	}

	var cycles [][]string
	for _, comp := range t.components {
		if len(comp) > 1 {
			sort.Strings(comp)
			cycles = append(cycles, comp)
		}
	}
	return cycles
}

type tarjan struct {
	graph      map[string]map[string]bool
	index      map[string]int
	lowlink    map[string]int
	onStack    map[string]bool
	stack      []string
	counter    int
	components [][]string
}

func (t *tarjan) strongConnect(v string) {
	t.index[v] = t.counter
	t.lowlink[v] = t.counter
	t.counter++
	t.stack = append(t.stack, v)
	t.onStack[v] = true

	for w := range t.graph[v] {
		if _, visited := t.index[w]; !visited {
			t.strongConnect(w)
			if t.lowlink[w] < t.lowlink[v] {
				t.lowlink[v] = t.lowlink[w]
			}
		} else if t.onStack[w] {
			if t.index[w] < t.lowlink[v] {
				t.lowlink[v] = t.index[w]
			}
		}
	}

	if t.lowlink[v] == t.index[v] {
		var comp []string
		for {
			n := len(t.stack) - 1
			w := t.stack[n]
			t.stack = t.stack[:n]
			t.onStack[w] = false
			comp = append(comp, w)
			if w == v {
				break
			}
		}
		t.components = append(t.components, comp)
	}
}

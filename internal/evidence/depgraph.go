package evidence

import (
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/preflightbundle/preflightbundle/internal/ast"
	"github.com/preflightbundle/preflightbundle/internal/manifest"
)

// DependencyGraph is the file-level import/export graph written to
// deps/dependency-graph.json. It is built directly from the AST core's
// already-extracted import/export facts; there is no separate analysis
// pass.
type DependencyGraph struct {
	Nodes []DependencyNode `json:"nodes"`
	Edges []DependencyEdge `json:"edges"`
}

// DependencyNode is one file in the graph, along with the symbols it
// exports.
type DependencyNode struct {
	Path    string   `json:"path"`
	Exports []string `json:"exports,omitempty"`
}

// DependencyEdge is a resolved "From imports To" relationship. Unresolved
// imports (external packages, or import paths that don't match any file
// in the same build) are omitted rather than emitted with an empty target.
type DependencyEdge struct {
	From       string  `json:"from"`
	To         string  `json:"to"`
	ImportPath string  `json:"importPath"`
	Method     Method  `json:"method"`
	Confidence float64 `json:"confidence"`
}

// BuildDependencyGraph resolves every file's imports against the set of
// analyzed files in the same build, using an extension-agnostic
// best-effort path match (exact relative path, then basename-without-
// extension) since import specifiers vary too much across the supported
// languages to resolve precisely without a full module resolver per
// language.
func BuildDependencyGraph(facts []*ast.FileFacts) *DependencyGraph {
	graph := &DependencyGraph{}
	byPath := make(map[string]*ast.FileFacts, len(facts))
	byStem := make(map[string][]string)

	for _, f := range facts {
		byPath[f.Path] = f
		stem := stemOf(f.Path)
		byStem[stem] = append(byStem[stem], f.Path)
		graph.Nodes = append(graph.Nodes, DependencyNode{Path: f.Path, Exports: f.Exports})
	}

	for _, f := range facts {
		for _, imp := range f.Imports {
			target, method, confidence := resolveImport(f.Path, imp.Source, byPath, byStem)
			if target == "" {
				continue
			}
			graph.Edges = append(graph.Edges, DependencyEdge{
				From:       f.Path,
				To:         target,
				ImportPath: imp.Source,
				Method:     method,
				Confidence: confidence,
			})
		}
	}
	return graph
}

// resolveImport tries, in order: a path relative to the importing file, an
// exact stem match anywhere in the build, and gives up otherwise. Relative
// resolution is exact; stem matching is heuristic since it can't rule out
// same-named files in unrelated directories.
func resolveImport(fromPath, importSource string, byPath map[string]*ast.FileFacts, byStem map[string][]string) (string, Method, float64) {
	if strings.HasPrefix(importSource, ".") {
		resolved := path.Join(path.Dir(fromPath), importSource)
		for _, candidate := range candidateExtensions(resolved) {
			if _, ok := byPath[candidate]; ok {
				return candidate, MethodExact, 1.0
			}
		}
	}

	stem := stemOf(importSource)
	matches := byStem[stem]
	if len(matches) == 1 {
		return matches[0], MethodHeuristic, 0.6
	}
	return "", "", 0
}

func candidateExtensions(resolved string) []string {
	exts := []string{"", ".ts", ".tsx", ".js", ".jsx", ".py", ".go", "/index.ts", "/index.js"}
	out := make([]string, 0, len(exts))
	for _, ext := range exts {
		out = append(out, resolved+ext)
	}
	return out
}

func stemOf(p string) string {
	base := path.Base(p)
	if idx := strings.LastIndex(base, "."); idx > 0 {
		base = base[:idx]
	}
	return base
}

// WriteDependencyGraph writes the graph to deps/dependency-graph.json under
// wipDir, matching the rest of the bundle's canonical-JSON artifacts.
func WriteDependencyGraph(wipDir string, graph *DependencyGraph) error {
	depsDir := filepath.Join(wipDir, "deps")
	if err := os.MkdirAll(depsDir, 0o755); err != nil {
		return err
	}
	raw, err := manifest.MarshalCanonical(graph)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(depsDir, "dependency-graph.json"), raw, 0o644)
}

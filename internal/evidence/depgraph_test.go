package evidence

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/preflightbundle/preflightbundle/internal/ast"
)

func TestBuildDependencyGraph_ResolvesRelativeImport(t *testing.T) {
	facts := []*ast.FileFacts{
		{Path: "src/main.ts", Exports: []string{"main"}, Imports: []ast.ImportRef{
			{Kind: ast.ImportKindImport, Source: "./util"},
		}},
		{Path: "src/util.ts", Exports: []string{"helper"}},
	}

	graph := BuildDependencyGraph(facts)
	require.Len(t, graph.Nodes, 2)
	require.Len(t, graph.Edges, 1)
	assert.Equal(t, "src/main.ts", graph.Edges[0].From)
	assert.Equal(t, "src/util.ts", graph.Edges[0].To)
	assert.Equal(t, MethodExact, graph.Edges[0].Method)
}

func TestBuildDependencyGraph_UnresolvedImportIsOmitted(t *testing.T) {
	facts := []*ast.FileFacts{
		{Path: "src/main.ts", Imports: []ast.ImportRef{
			{Kind: ast.ImportKindImport, Source: "some-external-package"},
		}},
	}

	graph := BuildDependencyGraph(facts)
	assert.Empty(t, graph.Edges)
}

func TestBuildDependencyGraph_AmbiguousStemIsNotResolved(t *testing.T) {
	facts := []*ast.FileFacts{
		{Path: "src/a/helpers.ts", Imports: []ast.ImportRef{
			{Kind: ast.ImportKindImport, Source: "helpers"},
		}},
		{Path: "src/b/helpers.ts"},
		{Path: "src/c/helpers.ts"},
	}

	graph := BuildDependencyGraph(facts)
	assert.Empty(t, graph.Edges)
}

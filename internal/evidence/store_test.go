package evidence

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleEdge(id string) Edge {
	return Edge{
		ID:         id,
		Source:     EndpointRef{Type: "file", ID: "main.go"},
		Target:     EndpointRef{Type: "file", ID: "util.go"},
		EdgeType:   EdgeTypeImports,
		Confidence: 1.0,
		Method:     MethodExact,
		Sources: []EvidencePointer{
			{Path: "main.go", StartLine: 1, EndLine: 1, SnippetSHA256: SnippetHash("import \"util\"")},
		},
	}
}

func TestStore_UpsertAndQuery_RoundTrips(t *testing.T) {
	store, err := Open("")
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Upsert(context.Background(), []Edge{sampleEdge("e1")}))

	edges, err := store.Query(context.Background(), Query{SourceID: "main.go"})
	require.NoError(t, err)
	require.Len(t, edges, 1)
	assert.Equal(t, "e1", edges[0].ID)
	require.Len(t, edges[0].Sources, 1)
	assert.Equal(t, "main.go", edges[0].Sources[0].Path)
}

func TestStore_Upsert_IsIdempotentByID(t *testing.T) {
	store, err := Open("")
	require.NoError(t, err)
	defer store.Close()

	edge := sampleEdge("e1")
	require.NoError(t, store.Upsert(context.Background(), []Edge{edge}))
	require.NoError(t, store.Upsert(context.Background(), []Edge{edge}))

	edges, err := store.Query(context.Background(), Query{})
	require.NoError(t, err)
	require.Len(t, edges, 1)
	require.Len(t, edges[0].Sources, 1, "duplicate source should be de-duplicated, not appended")
}

func TestStore_Upsert_MergesNewSourcesOntoExistingEdge(t *testing.T) {
	store, err := Open("")
	require.NoError(t, err)
	defer store.Close()

	edge := sampleEdge("e1")
	require.NoError(t, store.Upsert(context.Background(), []Edge{edge}))

	edge.Sources = append(edge.Sources, EvidencePointer{Path: "main.go", StartLine: 5, EndLine: 5})
	require.NoError(t, store.Upsert(context.Background(), []Edge{edge}))

	edges, err := store.Query(context.Background(), Query{})
	require.NoError(t, err)
	require.Len(t, edges, 1)
	assert.Len(t, edges[0].Sources, 2)
}

func TestStore_Query_FiltersByEdgeType(t *testing.T) {
	store, err := Open("")
	require.NoError(t, err)
	defer store.Close()

	imports := sampleEdge("e1")
	calls := sampleEdge("e2")
	calls.EdgeType = EdgeTypeCalls
	require.NoError(t, store.Upsert(context.Background(), []Edge{imports, calls}))

	edges, err := store.Query(context.Background(), Query{EdgeType: EdgeTypeCalls})
	require.NoError(t, err)
	require.Len(t, edges, 1)
	assert.Equal(t, "e2", edges[0].ID)
}

func TestStore_Query_RespectsLimit(t *testing.T) {
	store, err := Open("")
	require.NoError(t, err)
	defer store.Close()

	var edges []Edge
	for i := 0; i < 5; i++ {
		edges = append(edges, sampleEdge(string(rune('a'+i))))
	}
	require.NoError(t, store.Upsert(context.Background(), edges))

	got, err := store.Query(context.Background(), Query{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestSnippetHash_NormalizesCRLF(t *testing.T) {
	assert.Equal(t, SnippetHash("a\nb"), SnippetHash("a\r\nb"))
}

func TestEdge_CreatedAtDefaultsToNow(t *testing.T) {
	store, err := Open("")
	require.NoError(t, err)
	defer store.Close()

	before := time.Now().Add(-time.Second)
	require.NoError(t, store.Upsert(context.Background(), []Edge{sampleEdge("e1")}))

	edges, err := store.Query(context.Background(), Query{})
	require.NoError(t, err)
	require.Len(t, edges, 1)
	assert.True(t, edges[0].CreatedAt.After(before))
}

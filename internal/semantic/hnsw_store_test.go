package semantic

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHNSWIndex_UpsertAndSearch(t *testing.T) {
	idx, err := NewHNSWIndex(3)
	require.NoError(t, err)
	defer idx.Close()

	ctx := context.Background()
	require.NoError(t, idx.Upsert(ctx, []Item{
		{ChunkID: "a", Kind: "code", RepoID: "x/y", Vector: []float32{1, 0, 0}},
		{ChunkID: "b", Kind: "doc", RepoID: "x/y", Vector: []float32{0, 1, 0}},
	}))
	assert.Equal(t, 2, idx.Count())

	results, err := idx.Search(ctx, []float32{1, 0, 0}, 2, Filter{})
	require.NoError(t, err)
	require.NotEmpty(t, results)
}

func TestHNSWIndex_SearchFiltersByKind(t *testing.T) {
	idx, err := NewHNSWIndex(2)
	require.NoError(t, err)
	defer idx.Close()

	ctx := context.Background()
	require.NoError(t, idx.Upsert(ctx, []Item{
		{ChunkID: "a", Kind: "code", RepoID: "x", Vector: []float32{1, 0}},
		{ChunkID: "b", Kind: "doc", RepoID: "x", Vector: []float32{1, 0}},
	}))

	results, err := idx.Search(ctx, []float32{1, 0}, 5, Filter{Kind: "doc"})
	require.NoError(t, err)
	for _, r := range results {
		assert.Equal(t, "b", r.ChunkID)
	}
}

func TestHNSWIndex_Delete(t *testing.T) {
	idx, err := NewHNSWIndex(2)
	require.NoError(t, err)
	defer idx.Close()

	ctx := context.Background()
	require.NoError(t, idx.Upsert(ctx, []Item{
		{ChunkID: "a", Kind: "code", RepoID: "x", Vector: []float32{1, 0}},
	}))
	require.NoError(t, idx.Delete(ctx, []string{"a"}))
	assert.Equal(t, 0, idx.Count())
}

package fts

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIndex_RebuildAndSearch(t *testing.T) {
	idx, err := Open("")
	require.NoError(t, err)
	defer idx.Close()

	lines := []Line{
		{BundleRelPath: "repos/x/y/norm/README.md", Kind: KindDoc, RepoID: "x/y", LineNo: 3, Text: "Hello, world!"},
		{BundleRelPath: "repos/x/y/norm/main.go", Kind: KindCode, RepoID: "x/y", LineNo: 10, Text: "func getUserById(id int) {"},
	}
	files := []FileMeta{
		{Path: "repos/x/y/norm/README.md", Kind: KindDoc, RepoID: "x/y", Lines: 10},
		{Path: "repos/x/y/norm/main.go", Kind: KindCode, RepoID: "x/y", Lines: 50},
	}
	require.NoError(t, idx.Rebuild(context.Background(), lines, files))

	expr, _, _ := BuildQuery("hello world", 12)
	hits, err := idx.Search(context.Background(), expr, ScopeAll, 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "repos/x/y/norm/README.md", hits[0].Path)
	assert.Equal(t, 3, hits[0].LineNo)
	assert.Equal(t, "Hello, world!", hits[0].Snippet)
}

func TestIndex_Search_CodeIdentifierExpansion(t *testing.T) {
	idx, err := Open("")
	require.NoError(t, err)
	defer idx.Close()

	lines := []Line{
		{BundleRelPath: "repos/x/y/norm/main.go", Kind: KindCode, RepoID: "x/y", LineNo: 10, Text: "func getUserById(id int) {"},
	}
	require.NoError(t, idx.Rebuild(context.Background(), lines, nil))

	expr, _, _ := BuildQuery("user", 12)
	hits, err := idx.Search(context.Background(), expr, ScopeCode, 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
}

func TestIndex_Search_ScopeFiltering(t *testing.T) {
	idx, err := Open("")
	require.NoError(t, err)
	defer idx.Close()

	lines := []Line{
		{BundleRelPath: "a.md", Kind: KindDoc, RepoID: "x/y", LineNo: 1, Text: "widget docs"},
		{BundleRelPath: "a.go", Kind: KindCode, RepoID: "x/y", LineNo: 1, Text: "// widget code"},
	}
	require.NoError(t, idx.Rebuild(context.Background(), lines, nil))

	expr, _, _ := BuildQuery("widget", 12)
	hits, err := idx.Search(context.Background(), expr, ScopeDocs, 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, KindDoc, hits[0].Kind)
}

func TestIndex_Rebuild_ReplacesPriorContent(t *testing.T) {
	idx, err := Open("")
	require.NoError(t, err)
	defer idx.Close()

	require.NoError(t, idx.Rebuild(context.Background(), []Line{
		{BundleRelPath: "a.md", Kind: KindDoc, RepoID: "x/y", LineNo: 1, Text: "alpha"},
	}, nil))
	require.NoError(t, idx.Rebuild(context.Background(), []Line{
		{BundleRelPath: "b.md", Kind: KindDoc, RepoID: "x/y", LineNo: 1, Text: "beta"},
	}, nil))

	expr, _, _ := BuildQuery("alpha", 12)
	hits, err := idx.Search(context.Background(), expr, ScopeAll, 10)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

package evidence

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/preflightbundle/preflightbundle/internal/storage"
)

func newBundleWithTrace(t *testing.T, root, bundleID string, edges []Edge) {
	t.Helper()
	bundleDir := filepath.Join(root, bundleID)
	require.NoError(t, os.MkdirAll(bundleDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(bundleDir, "manifest.json"), []byte(`{"bundleId":"`+bundleID+`"}`), 0o644))

	if len(edges) == 0 {
		return
	}
	s, err := Open(filepath.Join(bundleDir, "trace", "trace.sqlite3"))
	require.NoError(t, err)
	defer s.Close()
	require.NoError(t, s.Upsert(context.Background(), edges))
}

func TestQueryFanout_SingleBundle(t *testing.T) {
	root := t.TempDir()
	store, err := storage.New([]string{root})
	require.NoError(t, err)

	newBundleWithTrace(t, root, "b1", []Edge{sampleEdge("e1")})

	result, err := QueryFanout(context.Background(), store, Query{BundleID: "b1"})
	require.NoError(t, err)
	assert.Equal(t, 1, result.BundleCount)
	require.Len(t, result.Edges, 1)
	assert.False(t, result.Truncated)
}

func TestQueryFanout_UnknownBundle_ReturnsEmpty(t *testing.T) {
	root := t.TempDir()
	store, err := storage.New([]string{root})
	require.NoError(t, err)

	result, err := QueryFanout(context.Background(), store, Query{BundleID: "missing"})
	require.NoError(t, err)
	assert.Empty(t, result.Edges)
}

func TestQueryFanout_AcrossAllBundles(t *testing.T) {
	root := t.TempDir()
	store, err := storage.New([]string{root})
	require.NoError(t, err)

	newBundleWithTrace(t, root, "b1", []Edge{sampleEdge("e1")})
	newBundleWithTrace(t, root, "b2", []Edge{sampleEdge("e2")})
	newBundleWithTrace(t, root, "b3", nil)

	result, err := QueryFanout(context.Background(), store, Query{})
	require.NoError(t, err)
	assert.Equal(t, 3, result.BundleCount)
	assert.Len(t, result.Edges, 2)
	assert.False(t, result.Truncated)
}

package lifecycle

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/preflightbundle/preflightbundle/internal/parser"
	"github.com/preflightbundle/preflightbundle/internal/storage"
)

func newTestManager(t *testing.T) (*Manager, *storage.Storage) {
	t.Helper()
	store, err := storage.New([]string{t.TempDir()})
	require.NoError(t, err)
	registry := parser.NewRegistry(nil, nil, nil)
	return NewManager(store, registry, nil, nil), store
}

func writeSourceProject(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("# Title\n\nSome docs about the project.\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.go"), []byte("package main\n\nfunc main() {}\n"), 0o644))
	return dir
}

func TestManager_Create_LocalPath_ProducesUsableBundle(t *testing.T) {
	mgr, store := newTestManager(t)
	srcDir := writeSourceProject(t)

	result, err := mgr.Create(context.Background(), CreateOptions{LocalPaths: []string{srcDir}, DisplayName: "demo"})
	require.NoError(t, err)
	assert.True(t, result.Created)
	assert.NotEmpty(t, result.BundleID)
	assert.NotEmpty(t, result.Fingerprint)

	bundleDir, ok := store.ResolveBundleRoot(result.BundleID)
	require.True(t, ok)

	for _, rel := range []string{"manifest.json", "START_HERE.md", "AGENTS.md", "OVERVIEW.md", "indexes/search.sqlite3", "analysis/FACTS.json", "deps/dependency-graph.json"} {
		info, statErr := os.Stat(filepath.Join(bundleDir, rel))
		require.NoError(t, statErr, rel)
		assert.Greater(t, info.Size(), int64(0), rel)
	}
}

func TestManager_Create_IfExistsError_RejectsDuplicateFingerprint(t *testing.T) {
	mgr, _ := newTestManager(t)
	srcDir := writeSourceProject(t)

	_, err := mgr.Create(context.Background(), CreateOptions{LocalPaths: []string{srcDir}})
	require.NoError(t, err)

	_, err = mgr.Create(context.Background(), CreateOptions{LocalPaths: []string{srcDir}, IfExists: IfExistsError})
	assert.Error(t, err)
}

func TestManager_Create_IfExistsReturnExisting_ReturnsSameBundle(t *testing.T) {
	mgr, _ := newTestManager(t)
	srcDir := writeSourceProject(t)

	first, err := mgr.Create(context.Background(), CreateOptions{LocalPaths: []string{srcDir}})
	require.NoError(t, err)

	second, err := mgr.Create(context.Background(), CreateOptions{LocalPaths: []string{srcDir}, IfExists: IfExistsReturnExisting})
	require.NoError(t, err)
	assert.False(t, second.Created)
	assert.Equal(t, first.BundleID, second.BundleID)
}

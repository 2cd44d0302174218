package lifecycle

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_Update_CheckOnly_ReportsNoChangesForLocalRepo(t *testing.T) {
	mgr, _ := newTestManager(t)
	srcDir := writeSourceProject(t)

	created, err := mgr.Create(context.Background(), CreateOptions{LocalPaths: []string{srcDir}})
	require.NoError(t, err)

	_, check, err := mgr.Update(context.Background(), created.BundleID, UpdateOptions{CheckOnly: true})
	require.NoError(t, err)
	assert.False(t, check.HasChanges)
	require.Len(t, check.RepoDeltas, 1)
	assert.Contains(t, check.RepoDeltas[0].Note, "no remote to check")
}

func TestManager_Update_Force_RebuildsEvenWithoutChanges(t *testing.T) {
	mgr, store := newTestManager(t)
	srcDir := writeSourceProject(t)

	created, err := mgr.Create(context.Background(), CreateOptions{LocalPaths: []string{srcDir}})
	require.NoError(t, err)

	result, check, err := mgr.Update(context.Background(), created.BundleID, UpdateOptions{Force: true})
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.False(t, check.HasChanges)
	assert.True(t, result.Manifest.UpdatedAt.Equal(result.Manifest.CreatedAt) || result.Manifest.UpdatedAt.After(result.Manifest.CreatedAt))

	_, ok := store.ResolveBundleRoot(created.BundleID)
	assert.True(t, ok)
}

func TestManager_Update_UnknownBundle_ReturnsNotFound(t *testing.T) {
	mgr, _ := newTestManager(t)

	_, _, err := mgr.Update(context.Background(), "does-not-exist", UpdateOptions{CheckOnly: true})
	assert.Error(t, err)
}

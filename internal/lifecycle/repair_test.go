package lifecycle

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_Repair_Validate_HealthyBundleReportsNothingMissing(t *testing.T) {
	mgr, _ := newTestManager(t)
	srcDir := writeSourceProject(t)

	created, err := mgr.Create(context.Background(), CreateOptions{LocalPaths: []string{srcDir}})
	require.NoError(t, err)

	result, err := mgr.Repair(context.Background(), created.BundleID, RepairValidate)
	require.NoError(t, err)
	assert.Empty(t, result.Missing)
	assert.Empty(t, result.Regenerated)
}

func TestManager_Repair_Fix_RegeneratesMissingArtifact(t *testing.T) {
	mgr, store := newTestManager(t)
	srcDir := writeSourceProject(t)

	created, err := mgr.Create(context.Background(), CreateOptions{LocalPaths: []string{srcDir}})
	require.NoError(t, err)

	bundleDir, ok := store.ResolveBundleRoot(created.BundleID)
	require.True(t, ok)
	overviewPath := filepath.Join(bundleDir, "OVERVIEW.md")
	require.NoError(t, os.Remove(overviewPath))

	validated, err := mgr.Repair(context.Background(), created.BundleID, RepairValidate)
	require.NoError(t, err)
	assert.Contains(t, validated.Missing, "OVERVIEW.md")

	fixed, err := mgr.Repair(context.Background(), created.BundleID, RepairFix)
	require.NoError(t, err)
	assert.Contains(t, fixed.Regenerated, "OVERVIEW.md")

	info, statErr := os.Stat(overviewPath)
	require.NoError(t, statErr)
	assert.Greater(t, info.Size(), int64(0))
}

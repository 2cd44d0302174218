package manifest

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDedupIndex_PutLookupRemove(t *testing.T) {
	root := t.TempDir()
	idx := NewDedupIndex(root)

	_, ok, err := idx.Lookup("fp-1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, idx.Put("fp-1", "bundle-1"))
	id, ok, err := idx.Lookup("fp-1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "bundle-1", id)

	require.NoError(t, idx.Remove("fp-1"))
	_, ok, err = idx.Lookup("fp-1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDedupIndex_Rebuild(t *testing.T) {
	root := t.TempDir()
	bundleDir := filepath.Join(root, "bundle-1")
	require.NoError(t, os.MkdirAll(bundleDir, 0o755))

	now := time.Now()
	m := Manifest{SchemaVersion: 1, BundleID: "bundle-1", Fingerprint: "fp-1", CreatedAt: now, UpdatedAt: now}
	raw, err := MarshalCanonical(m)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(bundleDir, "manifest.json"), raw, 0o644))

	idx := NewDedupIndex(root)
	require.NoError(t, idx.Rebuild([]string{bundleDir}))

	id, ok, err := idx.Lookup("fp-1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "bundle-1", id)
}

func TestDedupIndex_CorruptIndexRecoversEmpty(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, IndexFileName), []byte("not json"), 0o644))

	idx := NewDedupIndex(root)
	_, ok, err := idx.Lookup("fp-1")
	require.NoError(t, err)
	assert.False(t, ok)
}

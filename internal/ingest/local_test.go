package ingest

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalCopier_Copy_RespectsGitignoreAndDefaults(t *testing.T) {
	src := t.TempDir()
	writeFile(t, filepath.Join(src, ".gitignore"), "*.log\n")
	writeFile(t, filepath.Join(src, "main.go"), "package main")
	writeFile(t, filepath.Join(src, "debug.log"), "noisy")
	require.NoError(t, os.MkdirAll(filepath.Join(src, "node_modules", "pkg"), 0o755))
	writeFile(t, filepath.Join(src, "node_modules", "pkg", "index.js"), "module.exports = {}")
	require.NoError(t, os.MkdirAll(filepath.Join(src, ".git"), 0o755))
	writeFile(t, filepath.Join(src, ".git", "HEAD"), "ref: refs/heads/main")

	raw := t.TempDir()
	c := NewLocalCopier()
	notes, err := c.Copy(context.Background(), src, raw)
	require.NoError(t, err)
	assert.Empty(t, notes)

	assert.FileExists(t, filepath.Join(raw, "main.go"))
	assert.NoFileExists(t, filepath.Join(raw, "debug.log"))
	assert.NoFileExists(t, filepath.Join(raw, "node_modules", "pkg", "index.js"))
	assert.NoFileExists(t, filepath.Join(raw, ".git", "HEAD"))
}

func TestLocalCopier_Copy_ReportsSubmodulesAsNotes(t *testing.T) {
	src := t.TempDir()
	writeFile(t, filepath.Join(src, "main.go"), "package main")
	writeFile(t, filepath.Join(src, ".gitmodules"), "[submodule \"vendor/lib\"]\n\tpath = vendor/lib\n\turl = https://example.com/lib.git\n")

	raw := t.TempDir()
	c := NewLocalCopier()
	notes, err := c.Copy(context.Background(), src, raw)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, "submodule_excluded", notes[0].Code)
	assert.Equal(t, "vendor/lib", notes[0].Path)
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

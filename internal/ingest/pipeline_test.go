package ingest

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/preflightbundle/preflightbundle/internal/manifest"
)

func TestPipeline_IngestLocal(t *testing.T) {
	src := t.TempDir()
	writeFile(t, filepath.Join(src, "main.go"), "package main\r\n")
	writeFile(t, filepath.Join(src, "README.md"), "# Title\r\n")

	bundleDir := t.TempDir()
	opts := Options{
		RawDir:  filepath.Join(bundleDir, "raw"),
		NormDir: filepath.Join(bundleDir, "norm"),
		Workers: 2,
	}

	p := NewPipeline()
	result, err := p.IngestLocal(context.Background(), src, opts)
	require.NoError(t, err)

	assert.Equal(t, manifest.RepoKindLocal, result.Repo.Kind)
	assert.Equal(t, manifest.SourceLocal, result.Repo.Source)
	require.Len(t, result.Files, 2)
}

func TestPipeline_IngestDocs(t *testing.T) {
	src := t.TempDir()
	docPath := filepath.Join(src, "notes.md")
	writeFile(t, docPath, "# Notes")

	bundleDir := t.TempDir()
	opts := Options{
		RawDir:  filepath.Join(bundleDir, "raw"),
		NormDir: filepath.Join(bundleDir, "norm"),
	}

	p := NewPipeline()
	result, err := p.IngestDocs(context.Background(), []string{docPath}, opts)
	require.NoError(t, err)

	assert.Equal(t, manifest.RepoKindDocs, result.Repo.Kind)
	assert.Equal(t, DocsRepoID, result.Repo.ID)
	require.Len(t, result.Files, 1)
	assert.Equal(t, ClassDoc, result.Files[0].Classification)
}

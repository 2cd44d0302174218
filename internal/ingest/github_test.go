package ingest

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/preflightbundle/preflightbundle/internal/manifest"
)

func TestGitHubFetcher_Fetch_CloneSucceeds(t *testing.T) {
	dir := t.TempDir()
	f := &GitHubFetcher{
		cloneFunc: func(ctx context.Context, dir, repoID, ref string) (string, error) {
			return "deadbeef", nil
		},
		archiveFunc: func(ctx context.Context, dir, repoID, ref string) (string, error) {
			t.Fatal("archive fallback should not run when clone succeeds")
			return "", nil
		},
	}

	repo, err := f.Fetch(context.Background(), dir, "owner/repo", Options{})
	require.NoError(t, err)
	assert.Equal(t, manifest.SourceGit, repo.Source)
	assert.Equal(t, "deadbeef", repo.HeadSHA)
	assert.Empty(t, repo.Notes)
}

func TestGitHubFetcher_Fetch_FallsBackToArchive(t *testing.T) {
	dir := t.TempDir()
	f := &GitHubFetcher{
		cloneFunc: func(ctx context.Context, dir, repoID, ref string) (string, error) {
			return "", errors.New("boom")
		},
		archiveFunc: func(ctx context.Context, dir, repoID, ref string) (string, error) {
			return "cafef00d", nil
		},
	}

	repo, err := f.Fetch(context.Background(), dir, "owner/repo", Options{})
	require.NoError(t, err)
	assert.Equal(t, manifest.SourceArchive, repo.Source)
	assert.Equal(t, "cafef00d", repo.HeadSHA)
	require.Len(t, repo.Notes, 1)
	assert.Equal(t, "clone_fallback", repo.Notes[0].Code)
}

func TestGitHubFetcher_Fetch_BothStrategiesFail(t *testing.T) {
	dir := t.TempDir()
	f := &GitHubFetcher{
		cloneFunc: func(ctx context.Context, dir, repoID, ref string) (string, error) {
			return "", errors.New("clone boom")
		},
		archiveFunc: func(ctx context.Context, dir, repoID, ref string) (string, error) {
			return "", errors.New("archive boom")
		},
	}

	_, err := f.Fetch(context.Background(), dir, "owner/repo", Options{})
	require.Error(t, err)
}

func TestExtractZipball_StripsTopLevelDirAndParsesSHA(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	writeZipFile(t, zw, "owner-repo-abc123/README.md", "hello")
	writeZipFile(t, zw, "owner-repo-abc123/src/main.go", "package main")
	require.NoError(t, zw.Close())

	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)

	dest := t.TempDir()
	sha := extractZipball(zr, dest)

	assert.Equal(t, "abc123", sha)
	readme, err := os.ReadFile(filepath.Join(dest, "README.md"))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(readme))
	main, err := os.ReadFile(filepath.Join(dest, "src", "main.go"))
	require.NoError(t, err)
	assert.Equal(t, "package main", string(main))
}

func TestExtractZipball_RejectsPathTraversal(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	writeZipFile(t, zw, "top/../../evil.txt", "pwned")
	writeZipFile(t, zw, "top/safe.txt", "ok")
	require.NoError(t, zw.Close())

	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)

	dest := t.TempDir()
	extractZipball(zr, dest)

	_, statErr := os.Stat(filepath.Join(filepath.Dir(dest), "evil.txt"))
	assert.True(t, os.IsNotExist(statErr), "path traversal entry must not escape dest")

	safe, err := os.ReadFile(filepath.Join(dest, "safe.txt"))
	require.NoError(t, err)
	assert.Equal(t, "ok", string(safe))
}

func writeZipFile(t *testing.T, zw *zip.Writer, name, content string) {
	t.Helper()
	w, err := zw.Create(name)
	require.NoError(t, err)
	_, err = w.Write([]byte(content))
	require.NoError(t, err)
}

package ingest

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocSignature_StableForSameInputs(t *testing.T) {
	mtime := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	a := DocSignature("/docs/guide.md", mtime, 1024)
	b := DocSignature("/docs/guide.md", mtime, 1024)
	assert.Equal(t, a, b)

	c := DocSignature("/docs/guide.md", mtime, 2048)
	assert.NotEqual(t, a, c)
}

func TestDocsUpserter_Upsert_PlacesUnderSignatureDir(t *testing.T) {
	src := t.TempDir()
	path := filepath.Join(src, "guide.md")
	writeFile(t, path, "# Guide")

	raw := t.TempDir()
	u := NewDocsUpserter()
	placed, err := u.Upsert(context.Background(), []string{path, filepath.Join(src, "missing.md")}, raw)
	require.NoError(t, err)
	require.Len(t, placed, 1)

	content, err := os.ReadFile(filepath.Join(raw, placed[0]))
	require.NoError(t, err)
	assert.Equal(t, "# Guide", string(content))
}

func TestDocsUpserter_Upsert_IdempotentOnRepeat(t *testing.T) {
	src := t.TempDir()
	path := filepath.Join(src, "guide.md")
	writeFile(t, path, "# Guide")

	raw := t.TempDir()
	u := NewDocsUpserter()
	first, err := u.Upsert(context.Background(), []string{path}, raw)
	require.NoError(t, err)
	second, err := u.Upsert(context.Background(), []string{path}, raw)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

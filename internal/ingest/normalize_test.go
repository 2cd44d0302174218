package ingest

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeBytes_StripsBOMAndCRLF(t *testing.T) {
	raw := append([]byte{0xEF, 0xBB, 0xBF}, []byte("line1\r\nline2\rline3\n")...)
	got := normalizeBytes(raw)
	assert.Equal(t, "line1\nline2\nline3\n", string(got))
}

func TestNormalizeBytes_ReplacesInvalidUTF8(t *testing.T) {
	raw := []byte("valid\xffbytes")
	got := normalizeBytes(raw)
	assert.Contains(t, string(got), "�")
}

func TestNormalizer_Run_WritesNormalizedFilesAndSkipsOversized(t *testing.T) {
	raw := t.TempDir()
	writeFile(t, filepath.Join(raw, "main.go"), "package main\r\n")
	writeFile(t, filepath.Join(raw, "huge.txt"), "0123456789abcdefghij")

	norm := t.TempDir()
	n := NewNormalizer(Options{MaxFileSize: 16, Workers: 2})
	files, notes, err := n.Run(context.Background(), raw, norm)
	require.NoError(t, err)

	require.Len(t, files, 1)
	assert.Equal(t, "main.go", files[0].RelPath)
	assert.Equal(t, ClassCode, files[0].Classification)

	require.Len(t, notes, 1)
	assert.Equal(t, "skip_too_large", notes[0].Code)
	assert.Equal(t, "huge.txt", notes[0].Path)

	content, err := os.ReadFile(filepath.Join(norm, "main.go"))
	require.NoError(t, err)
	assert.Equal(t, "package main\n", string(content))
}

func TestNormalizer_Run_PassesBinaryDocFormatsThrough(t *testing.T) {
	raw := t.TempDir()
	binary := []byte{0x25, 0x50, 0x44, 0x46, 0xff, 0x00, 0x0d, 0x0a}
	require.NoError(t, os.WriteFile(filepath.Join(raw, "doc.pdf"), binary, 0o644))

	norm := t.TempDir()
	n := NewNormalizer(Options{Workers: 1})
	files, _, err := n.Run(context.Background(), raw, norm)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, ClassDoc, files[0].Classification)

	content, err := os.ReadFile(filepath.Join(norm, "doc.pdf"))
	require.NoError(t, err)
	assert.Equal(t, binary, content)
}

package parser

import (
	"archive/zip"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeZip(t *testing.T, path string, parts map[string]string) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	zw := zip.NewWriter(f)
	for name, content := range parts {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
}

const docxBody = `<?xml version="1.0"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p><w:r><w:t>First paragraph.</w:t></w:r></w:p>
    <w:p><w:r><w:t>Second </w:t></w:r><w:r><w:t>paragraph.</w:t></w:r></w:p>
  </w:body>
</w:document>`

func TestOOXMLParser_ParsesDocx(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "letter.docx")
	writeZip(t, path, map[string]string{"word/document.xml": docxBody})

	p := NewOOXMLParser()
	result, err := p.Parse(context.Background(), path, ParseOptions{})
	require.NoError(t, err)
	require.Len(t, result.Contents, 2)
	assert.Equal(t, "First paragraph.", result.Contents[0].Text)
	assert.Equal(t, "Second paragraph.", result.Contents[1].Text)
}

const pptxSlide = `<?xml version="1.0"?>
<p:sld xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main" xmlns:p="http://schemas.openxmlformats.org/presentationml/2006/main">
  <p:cSld>
    <p:spTree>
      <p:sp>
        <p:txBody>
          <a:p><a:r><a:t>Slide title</a:t></a:r></a:p>
        </p:txBody>
      </p:sp>
    </p:spTree>
  </p:cSld>
</p:sld>`

func TestOOXMLParser_ParsesPptx(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "deck.pptx")
	writeZip(t, path, map[string]string{"ppt/slides/slide1.xml": pptxSlide})

	p := NewOOXMLParser()
	result, err := p.Parse(context.Background(), path, ParseOptions{})
	require.NoError(t, err)
	require.Len(t, result.Contents, 1)
	assert.Equal(t, "Slide title", result.Contents[0].Text)
	assert.Equal(t, 1, result.Contents[0].Page)
}

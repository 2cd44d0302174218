package parser

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegistry_Resolve_DispatchesByExtension(t *testing.T) {
	r := NewRegistry(nil, nil, nil)

	tests := []struct {
		path string
		want string
	}{
		{"report.pdf", "*parser.PDFParser"},
		{"workbook.xlsx", "*parser.XLSXParser"},
		{"letter.docx", "*parser.OOXMLParser"},
		{"deck.pptx", "*parser.OOXMLParser"},
		{"page.html", "*parser.HTMLParser"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			p, ok := r.Resolve(tt.path)
			assert.True(t, ok)
			assert.NotNil(t, p)
			assert.Equal(t, tt.want, fmt.Sprintf("%T", p))
		})
	}

	_, ok := r.Resolve("archive.zip")
	assert.False(t, ok)
}

func TestHasSuffixFold(t *testing.T) {
	assert.True(t, hasSuffixFold("REPORT.PDF", ".pdf"))
	assert.True(t, hasSuffixFold("deck.pptx", ".docx", ".pptx"))
	assert.False(t, hasSuffixFold("image.png", ".pdf"))
}

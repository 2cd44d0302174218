package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		path string
		want Classification
	}{
		{"README.md", ClassDoc},
		{"docs/guide.rst", ClassDoc},
		{"manual.pdf", ClassDoc},
		{"report.docx", ClassDoc},
		{"main.go", ClassCode},
		{"src/app.tsx", ClassCode},
		{"image.png", ClassAsset},
		{"data.bin", ClassAsset},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.path))
		})
	}
}

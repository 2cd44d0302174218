package parser

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/qax-os/excelize/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestXLSXParser_ParsesSheetsAsTables(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "book.xlsx")

	f := excelize.NewFile()
	defer f.Close()
	require.NoError(t, f.SetCellValue("Sheet1", "A1", "Name"))
	require.NoError(t, f.SetCellValue("Sheet1", "B1", "Score"))
	require.NoError(t, f.SetCellValue("Sheet1", "A2", "Ada"))
	require.NoError(t, f.SetCellValue("Sheet1", "B2", "10"))
	require.NoError(t, f.SaveAs(path))

	p := NewXLSXParser()
	result, err := p.Parse(context.Background(), path, ParseOptions{})
	require.NoError(t, err)

	var table *ParsedContent
	for i := range result.Contents {
		if result.Contents[i].Type == ContentTable {
			table = &result.Contents[i]
			break
		}
	}
	require.NotNil(t, table)
	require.Len(t, table.Rows, 2)
	assert.Equal(t, []string{"Name", "Score"}, table.Rows[0])
	assert.Equal(t, []string{"Ada", "10"}, table.Rows[1])
}

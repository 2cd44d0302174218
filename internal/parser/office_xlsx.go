package parser

import (
	"context"
	"fmt"
	"time"

	"github.com/qax-os/excelize/v2"
)

// XLSXParser extracts every sheet of a workbook as a table.
type XLSXParser struct {
	now func() time.Time
}

// NewXLSXParser builds an XLSX parser.
func NewXLSXParser() *XLSXParser {
	return &XLSXParser{now: time.Now}
}

func (p *XLSXParser) CanParse(path string) bool {
	return hasSuffixFold(path, ".xlsx")
}

func (p *XLSXParser) Parse(ctx context.Context, path string, opts ParseOptions) (ParseResult, error) {
	start := p.now()

	f, err := excelize.OpenFile(path)
	if err != nil {
		return ParseResult{Success: false, Errors: []string{err.Error()}}, fmt.Errorf("xlsx: open %q: %w", path, err)
	}
	defer f.Close()

	result := ParseResult{
		Success:  true,
		Metadata: map[string]string{"source_format": "xlsx"},
	}
	var fullText []byte

	for _, sheet := range f.GetSheetList() {
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		default:
		}

		rows, err := f.GetRows(sheet)
		if err != nil {
			result.Warnings = append(result.Warnings, fmt.Sprintf("sheet %q: %v", sheet, err))
			continue
		}
		if len(rows) == 0 {
			continue
		}

		result.Contents = append(result.Contents, ParsedContent{
			Type:    ContentHeading,
			Text:    sheet,
			Level:   1,
			AltText: "sheet",
		})
		result.Contents = append(result.Contents, ParsedContent{
			Type: ContentTable,
			Rows: rows,
		})

		for _, row := range rows {
			for _, cell := range row {
				fullText = append(fullText, []byte(cell)...)
				fullText = append(fullText, ' ')
			}
			fullText = append(fullText, '\n')
		}
	}

	result.FullText = string(fullText)
	result.Stats = Stats{
		Pages:      len(f.GetSheetList()),
		Strategy:   "excelize",
		DurationMS: p.now().Sub(start).Milliseconds(),
	}
	return result, nil
}

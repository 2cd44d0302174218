package parser

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"
)

// nativePDFPage holds the plain-text extraction result for one page, used
// by the strategy chain to decide whether a page needs VLM/OCR fallback.
type nativePDFPage struct {
	Index int
	Text  string
}

// extractNativePDF runs lightweight, font-table text extraction over every
// page of a PDF. It never returns an error for an individual unreadable
// page: a page that fails to decode is reported back with empty text so the
// caller's fallback logic picks it up like any other thin page.
func extractNativePDF(ctx context.Context, path string, maxPages int) ([]nativePDFPage, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("pdf: open %q: %w", path, err)
	}
	defer f.Close()

	total := r.NumPage()
	if maxPages > 0 && maxPages < total {
		total = maxPages
	}

	pages := make([]nativePDFPage, 0, total)
	for i := 1; i <= total; i++ {
		select {
		case <-ctx.Done():
			return pages, ctx.Err()
		default:
		}

		p := r.Page(i)
		if p.V.IsNull() {
			pages = append(pages, nativePDFPage{Index: i})
			continue
		}

		text, err := p.GetPlainText(nil)
		if err != nil {
			pages = append(pages, nativePDFPage{Index: i})
			continue
		}
		pages = append(pages, nativePDFPage{Index: i, Text: text})
	}

	return pages, nil
}

// substantive reports whether a page's extracted text clears the
// MinPageChars threshold once whitespace padding is discounted.
func substantive(text string, minChars int) bool {
	return len(strings.TrimSpace(text)) >= minChars
}

// vlmAnalyzer is satisfied by *VLMParser; tests substitute a fake.
type vlmAnalyzer interface {
	AnalyzePage(ctx context.Context, path string, page int, task Task) ([]ParsedContent, error)
}

// ocrReader is satisfied by *OCRParser; tests substitute a fake.
type ocrReader interface {
	PageText(ctx context.Context, path string, page int) (string, error)
}

// cloudDocParser is satisfied by *CloudParser; tests substitute a fake.
type cloudDocParser interface {
	ParseDocument(ctx context.Context, path string) ([]ParsedContent, error)
}

// PDFParser implements the four-tier PDF strategy chain: native text
// extraction first, then VLM, OCR, and cloud batch parsing for pages that
// fall short of the substantive-text threshold. Each tier is optional; a nil
// tier is skipped and its pages stay as native output (thin but not lost).
type PDFParser struct {
	vlm   vlmAnalyzer
	ocr   ocrReader
	cloud cloudDocParser

	now func() time.Time
}

// NewPDFParser builds a parser with the given fallback tiers. Pass nil for
// any tier a bundle has not configured.
func NewPDFParser(vlm *VLMParser, ocr *OCRParser, cloud *CloudParser) *PDFParser {
	p := &PDFParser{now: time.Now}
	if vlm != nil {
		p.vlm = vlm
	}
	if ocr != nil {
		p.ocr = ocr
	}
	if cloud != nil {
		p.cloud = cloud
	}
	return p
}

func (p *PDFParser) CanParse(path string) bool {
	return hasSuffixFold(path, ".pdf")
}

func (p *PDFParser) Parse(ctx context.Context, path string, opts ParseOptions) (ParseResult, error) {
	opts = opts.withDefaults()
	start := p.now()

	pages, err := extractNativePDF(ctx, path, opts.MaxPages)
	if err != nil {
		return ParseResult{Success: false, Errors: []string{err.Error()}}, err
	}

	result := ParseResult{
		Success:  true,
		Metadata: map[string]string{"source_format": "pdf"},
	}

	var thin []nativePDFPage
	var fullText strings.Builder

	for _, page := range pages {
		if substantive(page.Text, opts.MinPageChars) {
			result.Contents = append(result.Contents, ParsedContent{
				Type: ContentText,
				Text: page.Text,
				Page: page.Index,
			})
			fullText.WriteString(page.Text)
			fullText.WriteString("\n")
			continue
		}
		thin = append(thin, page)
	}

	strategy := "native"
	if len(thin) > 0 {
		strategy = p.fallbackThinPages(ctx, path, thin, opts, &result, &fullText)
	}

	result.Stats = Stats{
		Pages:      len(pages),
		Strategy:   strategy,
		DurationMS: p.now().Sub(start).Milliseconds(),
	}
	result.FullText = fullText.String()
	return result, nil
}

// fallbackThinPages walks the VLM -> OCR -> cloud chain for pages the native
// pass judged too thin, recording every skipped or failed tier in warnings.
// It returns the name of the richest strategy actually used.
func (p *PDFParser) fallbackThinPages(ctx context.Context, path string, thin []nativePDFPage, opts ParseOptions, result *ParseResult, fullText *strings.Builder) string {
	usedStrategy := "native"

	if opts.AllowVLM && p.vlm != nil {
		var remaining []nativePDFPage
		for _, page := range thin {
			elems, err := p.vlm.AnalyzePage(ctx, path, page.Index, TaskFullPage)
			if err != nil {
				result.Warnings = append(result.Warnings, fmt.Sprintf("vlm fallback failed on page %d: %v", page.Index, err))
				remaining = append(remaining, page)
				continue
			}
			usedStrategy = "vlm"
			result.Warnings = append(result.Warnings, fmt.Sprintf("page %d: native extraction thin, used vlm", page.Index))
			for _, e := range elems {
				result.Contents = append(result.Contents, e)
				fullText.WriteString(e.Text)
				fullText.WriteString("\n")
			}
		}
		if len(remaining) == 0 {
			return usedStrategy
		}
		thin = remaining
	}
	if !opts.AllowVLM {
		result.Warnings = append(result.Warnings, "vlm fallback not enabled; skipped")
	} else if p.vlm == nil {
		result.Warnings = append(result.Warnings, "vlm fallback not configured; skipped")
	}

	if opts.AllowOCR && p.ocr != nil {
		var remaining []nativePDFPage
		for _, page := range thin {
			text, err := p.ocr.PageText(ctx, path, page.Index)
			if err != nil {
				result.Warnings = append(result.Warnings, fmt.Sprintf("ocr fallback failed on page %d: %v", page.Index, err))
				remaining = append(remaining, page)
				continue
			}
			usedStrategy = "ocr"
			result.Warnings = append(result.Warnings, fmt.Sprintf("page %d: native extraction thin, used ocr", page.Index))
			result.Contents = append(result.Contents, ParsedContent{Type: ContentText, Text: text, Page: page.Index})
			fullText.WriteString(text)
			fullText.WriteString("\n")
		}
		if len(remaining) == 0 {
			return usedStrategy
		}
	}
	if !opts.AllowOCR {
		result.Warnings = append(result.Warnings, "ocr fallback not enabled; skipped")
	} else if p.ocr == nil {
		result.Warnings = append(result.Warnings, "ocr fallback not configured; skipped")
	}

	if opts.AllowCloud && p.cloud != nil {
		contents, err := p.cloud.ParseDocument(ctx, path)
		if err != nil {
			result.Warnings = append(result.Warnings, fmt.Sprintf("cloud fallback failed: %v", err))
			return usedStrategy
		}
		usedStrategy = "cloud"
		result.Warnings = append(result.Warnings, "thin pages resolved via cloud batch parser")
		for _, c := range contents {
			result.Contents = append(result.Contents, c)
			fullText.WriteString(c.Text)
			fullText.WriteString("\n")
		}
		return usedStrategy
	}
	if !opts.AllowCloud {
		result.Warnings = append(result.Warnings, "cloud fallback not enabled; thin pages kept as-is")
	} else if p.cloud == nil {
		result.Warnings = append(result.Warnings, "cloud fallback not configured; thin pages kept as-is")
	}

	return usedStrategy
}

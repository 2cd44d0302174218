package parser

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubstantive(t *testing.T) {
	assert.True(t, substantive(strings.Repeat("a", 50), 50))
	assert.False(t, substantive(strings.Repeat("a", 49), 50))
	assert.False(t, substantive("   ", 1))
}

type fakeVLM struct {
	elems []ParsedContent
	err   error
}

func (f fakeVLM) AnalyzePage(ctx context.Context, path string, page int, task Task) ([]ParsedContent, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.elems, nil
}

type fakeOCR struct {
	text string
	err  error
}

func (f fakeOCR) PageText(ctx context.Context, path string, page int) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.text, nil
}

type fakeCloud struct {
	contents []ParsedContent
	err      error
}

func (f fakeCloud) ParseDocument(ctx context.Context, path string) ([]ParsedContent, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.contents, nil
}

func TestPDFParser_FallbackThinPages_UsesVLMWhenAllowed(t *testing.T) {
	p := &PDFParser{vlm: fakeVLM{elems: []ParsedContent{{Type: ContentText, Text: "rendered via vlm"}}}}
	result := &ParseResult{}
	var fullText strings.Builder

	strategy := p.fallbackThinPages(context.Background(), "doc.pdf",
		[]nativePDFPage{{Index: 1}}, ParseOptions{AllowVLM: true}, result, &fullText)

	assert.Equal(t, "vlm", strategy)
	require.Len(t, result.Contents, 1)
	assert.Equal(t, "rendered via vlm", result.Contents[0].Text)
	assert.Contains(t, fullText.String(), "rendered via vlm")
}

func TestPDFParser_FallbackThinPages_FallsThroughToOCR(t *testing.T) {
	p := &PDFParser{
		vlm: fakeVLM{err: errors.New("vlm not configured")},
		ocr: fakeOCR{text: "ocr text"},
	}
	result := &ParseResult{}
	var fullText strings.Builder

	strategy := p.fallbackThinPages(context.Background(), "doc.pdf",
		[]nativePDFPage{{Index: 1}}, ParseOptions{AllowVLM: true, AllowOCR: true}, result, &fullText)

	assert.Equal(t, "ocr", strategy)
	assert.Contains(t, strings.Join(result.Warnings, "|"), "vlm fallback failed")
}

func TestPDFParser_FallbackThinPages_UsesCloudWhenAllowed(t *testing.T) {
	p := &PDFParser{cloud: fakeCloud{contents: []ParsedContent{{Type: ContentText, Text: "cloud parsed"}}}}
	result := &ParseResult{}
	var fullText strings.Builder

	strategy := p.fallbackThinPages(context.Background(), "doc.pdf",
		[]nativePDFPage{{Index: 1}}, ParseOptions{AllowCloud: true}, result, &fullText)

	assert.Equal(t, "cloud", strategy)
	require.Len(t, result.Contents, 1)
	assert.Equal(t, "cloud parsed", result.Contents[0].Text)
}

func TestPDFParser_FallbackThinPages_NoTiersConfigured_RecordsWarningsOnly(t *testing.T) {
	p := &PDFParser{}
	result := &ParseResult{}
	var fullText strings.Builder

	strategy := p.fallbackThinPages(context.Background(), "doc.pdf",
		[]nativePDFPage{{Index: 1}}, ParseOptions{}, result, &fullText)

	assert.Equal(t, "native", strategy)
	assert.Empty(t, result.Contents)
	assert.NotEmpty(t, result.Warnings)
}

package parser

import (
	"archive/zip"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"
)

// OOXMLParser handles DOCX and PPTX, both of which are a zip of XML parts.
// Rather than pull in a full OOXML object model, it reads only the parts
// that carry document text: word/document.xml for DOCX, and one
// ppt/slides/slideN.xml per slide for PPTX.
type OOXMLParser struct {
	now func() time.Time
}

// NewOOXMLParser builds a DOCX/PPTX parser.
func NewOOXMLParser() *OOXMLParser {
	return &OOXMLParser{now: time.Now}
}

func (p *OOXMLParser) CanParse(path string) bool {
	return hasSuffixFold(path, ".docx", ".pptx")
}

func (p *OOXMLParser) Parse(ctx context.Context, path string, opts ParseOptions) (ParseResult, error) {
	start := p.now()

	zr, err := zip.OpenReader(path)
	if err != nil {
		return ParseResult{Success: false, Errors: []string{err.Error()}}, fmt.Errorf("ooxml: open %q: %w", path, err)
	}
	defer zr.Close()

	if hasSuffixFold(path, ".pptx") {
		return p.parsePPTX(ctx, &zr.Reader, start)
	}
	return p.parseDOCX(ctx, &zr.Reader, start)
}

func (p *OOXMLParser) parseDOCX(ctx context.Context, zr *zip.Reader, start time.Time) (ParseResult, error) {
	raw, err := readZipPart(zr, "word/document.xml")
	if err != nil {
		return ParseResult{Success: false, Errors: []string{err.Error()}}, err
	}

	paragraphs, err := extractWordParagraphs(raw)
	if err != nil {
		return ParseResult{Success: false, Errors: []string{err.Error()}}, err
	}

	result := ParseResult{
		Success:  true,
		Metadata: map[string]string{"source_format": "docx"},
	}
	var fullText strings.Builder
	for _, para := range paragraphs {
		if strings.TrimSpace(para) == "" {
			continue
		}
		result.Contents = append(result.Contents, ParsedContent{Type: ContentText, Text: para})
		fullText.WriteString(para)
		fullText.WriteString("\n")
	}
	result.FullText = fullText.String()
	result.Stats = Stats{Strategy: "ooxml", DurationMS: p.now().Sub(start).Milliseconds()}
	return result, nil
}

func (p *OOXMLParser) parsePPTX(ctx context.Context, zr *zip.Reader, start time.Time) (ParseResult, error) {
	var slideNames []string
	for _, f := range zr.File {
		if strings.HasPrefix(f.Name, "ppt/slides/slide") && strings.HasSuffix(f.Name, ".xml") {
			slideNames = append(slideNames, f.Name)
		}
	}
	sort.Strings(slideNames)

	result := ParseResult{
		Success:  true,
		Metadata: map[string]string{"source_format": "pptx"},
	}
	var fullText strings.Builder

	for i, name := range slideNames {
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		default:
		}

		raw, err := readZipPart(zr, name)
		if err != nil {
			result.Warnings = append(result.Warnings, fmt.Sprintf("slide %q: %v", name, err))
			continue
		}
		texts, err := extractSlideText(raw)
		if err != nil {
			result.Warnings = append(result.Warnings, fmt.Sprintf("slide %q: %v", name, err))
			continue
		}
		page := i + 1
		for _, t := range texts {
			if strings.TrimSpace(t) == "" {
				continue
			}
			result.Contents = append(result.Contents, ParsedContent{Type: ContentText, Text: t, Page: page})
			fullText.WriteString(t)
			fullText.WriteString("\n")
		}
	}

	result.FullText = fullText.String()
	result.Stats = Stats{Pages: len(slideNames), Strategy: "ooxml", DurationMS: p.now().Sub(start).Milliseconds()}
	return result, nil
}

func readZipPart(zr *zip.Reader, name string) ([]byte, error) {
	for _, f := range zr.File {
		if f.Name == name {
			rc, err := f.Open()
			if err != nil {
				return nil, fmt.Errorf("ooxml: open part %q: %w", name, err)
			}
			defer rc.Close()
			return io.ReadAll(rc)
		}
	}
	return nil, fmt.Errorf("ooxml: part %q not found", name)
}

// wordDocument mirrors just enough of word/document.xml to pull paragraph
// text: a run's visible text lives in w:t elements nested under w:p/w:r.
type wordDocument struct {
	Body struct {
		Paragraphs []struct {
			Runs []struct {
				Text []string `xml:"t"`
			} `xml:"r"`
		} `xml:"p"`
	} `xml:"body"`
}

func extractWordParagraphs(raw []byte) ([]string, error) {
	var doc wordDocument
	if err := xml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("ooxml: parse document.xml: %w", err)
	}

	paragraphs := make([]string, 0, len(doc.Body.Paragraphs))
	for _, para := range doc.Body.Paragraphs {
		var b strings.Builder
		for _, run := range para.Runs {
			for _, t := range run.Text {
				b.WriteString(t)
			}
		}
		paragraphs = append(paragraphs, b.String())
	}
	return paragraphs, nil
}

// slideXML mirrors the shape of a ppt/slides/slideN.xml part: shape text
// bodies (txBody) contain paragraphs (a:p) of runs (a:r/a:t).
type slideXML struct {
	Shapes []struct {
		TextBody struct {
			Paragraphs []struct {
				Runs []struct {
					Text string `xml:"t"`
				} `xml:"r"`
			} `xml:"p"`
		} `xml:"txBody"`
	} `xml:"cSld>spTree>sp"`
}

func extractSlideText(raw []byte) ([]string, error) {
	var slide slideXML
	if err := xml.Unmarshal(raw, &slide); err != nil {
		return nil, fmt.Errorf("ooxml: parse slide xml: %w", err)
	}

	var texts []string
	for _, shape := range slide.Shapes {
		for _, para := range shape.TextBody.Paragraphs {
			var b strings.Builder
			for _, run := range para.Runs {
				b.WriteString(run.Text)
			}
			texts = append(texts, b.String())
		}
	}
	return texts, nil
}

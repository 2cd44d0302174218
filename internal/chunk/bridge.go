package chunk

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/preflightbundle/preflightbundle/internal/parser"
)

// academicExtensions lists formats that warrant the formula/section-aware
// chunker by default: papers, reports, and slides tend to carry display
// equations and a recognizable section taxonomy, where a spreadsheet or web
// page does not.
var academicExtensions = map[string]bool{
	".pdf":  true,
	".pptx": true,
}

// Bridge turns a non-code, non-markdown source file into chunks by routing
// it through the document Parser Subsystem first, then rendering the
// extracted structure as markdown and handing it to GenericChunker or
// AcademicChunker. This lets PDFs, Office documents, and HTML pages flow
// through the same header-based chunking logic that literal markdown files
// use, instead of needing a parallel chunking path per format.
type Bridge struct {
	registry *parser.Registry
	generic  *GenericChunker
	academic *AcademicChunker
	options  parser.ParseOptions
}

// NewBridge wires a document parser registry to the markdown-shaped
// chunkers. opts controls how permissive PDF parsing is (VLM/OCR/cloud
// fallback tiers); callers that haven't configured those tiers should pass
// the zero value, which disables all three and relies on native extraction.
func NewBridge(registry *parser.Registry, opts parser.ParseOptions) *Bridge {
	return &Bridge{
		registry: registry,
		generic:  NewGenericChunker(),
		academic: NewAcademicChunker(),
		options:  opts,
	}
}

// CanHandle reports whether the bridge's parser registry has a format
// handler for path. Callers check this before falling back to CodeChunker
// or GenericChunker for files the registry doesn't recognize.
func (b *Bridge) CanHandle(path string) bool {
	_, ok := b.registry.Resolve(path)
	return ok
}

// Chunk parses path with the document Parser Subsystem, renders the result
// as markdown, and chunks that markdown with the academic or generic
// chunker depending on format. Parser warnings (e.g. a PDF page that fell
// back to OCR) are copied onto every resulting chunk's metadata so callers
// can surface extraction quality without re-parsing.
func (b *Bridge) Chunk(ctx context.Context, path string) ([]*Chunk, error) {
	result, err := b.registry.Parse(ctx, path, b.options)
	if err != nil {
		return nil, fmt.Errorf("bridge: parse %q: %w", path, err)
	}
	if !result.Success && len(result.Contents) == 0 {
		return nil, fmt.Errorf("bridge: %q produced no content: %s", path, strings.Join(result.Errors, "; "))
	}

	rendered := renderMarkdown(result)
	file := &FileInput{
		Path:     path,
		Content:  []byte(rendered),
		Language: "markdown",
	}

	chunker := b.chunkerFor(path)
	chunks, err := chunker.Chunk(ctx, file)
	if err != nil {
		return nil, fmt.Errorf("bridge: chunk %q: %w", path, err)
	}

	for _, c := range chunks {
		if c.Metadata == nil {
			c.Metadata = map[string]string{}
		}
		c.Metadata["source_format"] = result.Metadata["source_format"]
		c.Metadata["parse_strategy"] = result.Stats.Strategy
		if len(result.Warnings) > 0 {
			c.Metadata["parse_warnings"] = strings.Join(result.Warnings, "; ")
		}
	}
	return chunks, nil
}

// chunkerFor picks the academic or generic chunker based on file extension.
// Extension is a coarse signal (a one-page PDF invoice is no more "academic"
// than a spreadsheet) but matches the Parser Subsystem's own dispatch model
// and avoids running a separate classification pass over every document.
func (b *Bridge) chunkerFor(path string) Chunker {
	ext := strings.ToLower(filepath.Ext(path))
	if academicExtensions[ext] {
		return b.academic
	}
	return b.generic
}

// renderMarkdown flattens a ParseResult's content elements into the
// markdown-shaped text GenericChunker and AcademicChunker already know how
// to split: headings become '#' lines, tables become pipe tables, code
// blocks get fenced, and images are represented by their alt text.
func renderMarkdown(result parser.ParseResult) string {
	var b strings.Builder
	lastPage := 0

	for _, c := range result.Contents {
		if c.Page > 0 && c.Page != lastPage {
			fmt.Fprintf(&b, "\n<!-- page %d -->\n", c.Page)
			lastPage = c.Page
		}

		switch c.Type {
		case parser.ContentHeading:
			level := c.Level
			if level < 1 {
				level = 1
			}
			if level > 6 {
				level = 6
			}
			fmt.Fprintf(&b, "\n%s %s\n\n", strings.Repeat("#", level), c.Text)
		case parser.ContentCode:
			fmt.Fprintf(&b, "\n```%s\n%s\n```\n\n", c.Lang, c.Text)
		case parser.ContentTable:
			b.WriteString("\n" + renderMarkdownTable(c.Rows) + "\n")
		case parser.ContentEquation:
			fmt.Fprintf(&b, "\n$$\n%s\n$$\n\n", c.Text)
		case parser.ContentImage:
			fmt.Fprintf(&b, "\n![%s](#)\n\n", c.AltText)
		case parser.ContentList:
			for _, line := range strings.Split(c.Text, "\n") {
				if strings.TrimSpace(line) == "" {
					continue
				}
				fmt.Fprintf(&b, "- %s\n", line)
			}
			b.WriteString("\n")
		case parser.ContentCaption, parser.ContentFootnote:
			fmt.Fprintf(&b, "\n> %s\n\n", c.Text)
		default:
			fmt.Fprintf(&b, "%s\n\n", c.Text)
		}
	}

	if b.Len() == 0 {
		return result.FullText
	}
	return b.String()
}

func renderMarkdownTable(rows [][]string) string {
	if len(rows) == 0 {
		return ""
	}
	var b strings.Builder
	for i, row := range rows {
		b.WriteString("| " + strings.Join(row, " | ") + " |\n")
		if i == 0 {
			sep := make([]string, len(row))
			for j := range sep {
				sep[j] = "---"
			}
			b.WriteString("| " + strings.Join(sep, " | ") + " |\n")
		}
	}
	return b.String()
}

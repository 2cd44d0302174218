package parser

import "context"

// ContentType enumerates the kinds of content a parser can emit.
type ContentType string

const (
	ContentText     ContentType = "text"
	ContentHeading  ContentType = "heading"
	ContentCode     ContentType = "code_block"
	ContentTable    ContentType = "table"
	ContentEquation ContentType = "equation"
	ContentImage    ContentType = "image"
	ContentList     ContentType = "list"
	ContentCaption  ContentType = "caption"
	ContentFootnote ContentType = "footnote"
)

// BoundingBox gives the page-relative coordinates of a ParsedContent element,
// when the source format and strategy can recover them (scanned PDF pages
// extracted via VLM or OCR; native text extraction leaves this zero-valued).
type BoundingBox struct {
	X0, Y0, X1, Y1 float64
}

// ParsedContent is one extracted element: a paragraph, heading, table, image
// descriptor, etc. Page is 1-indexed; zero means the format has no pagination
// (HTML, Office body text).
type ParsedContent struct {
	Type    ContentType
	Text    string
	Page    int
	Level   int    // heading level, 1-6; zero for non-headings
	Lang    string // code_block language hint, when known
	BBox    *BoundingBox
	Rows    [][]string // table cell grid, row-major
	AltText string     // image alt/caption text
}

// Stats records extraction-strategy bookkeeping for a parse.
type Stats struct {
	Pages       int
	Strategy    string // "native", "vlm", "ocr", "cloud", or format-specific
	DurationMS  int64
	BytesParsed int64
}

// ParseResult is the uniform output of every IDocumentParser.
type ParseResult struct {
	Success  bool
	Contents []ParsedContent
	Metadata map[string]string
	Stats    Stats
	FullText string
	Warnings []string
	Errors   []string
}

// ParseOptions configures a single parse call.
type ParseOptions struct {
	// MaxPages caps the number of pages a PDF parser will process; zero
	// means unbounded.
	MaxPages int
	// AllowVLM/AllowOCR/AllowCloud gate the progressively more expensive PDF
	// fallback tiers; all default false so a caller must opt in per bundle.
	AllowVLM   bool
	AllowOCR   bool
	AllowCloud bool
	// MinPageChars is the substantive-text threshold below which a PDF page
	// triggers the next fallback strategy. Zero uses DefaultMinPageChars.
	MinPageChars int
}

// DefaultMinPageChars is the spec's native-extraction fallback threshold.
const DefaultMinPageChars = 50

func (o ParseOptions) withDefaults() ParseOptions {
	if o.MinPageChars <= 0 {
		o.MinPageChars = DefaultMinPageChars
	}
	return o
}

// IDocumentParser is implemented by every format-specific parser the
// registry dispatches to.
type IDocumentParser interface {
	CanParse(path string) bool
	Parse(ctx context.Context, path string, opts ParseOptions) (ParseResult, error)
}

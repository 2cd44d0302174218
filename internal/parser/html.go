package parser

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// chromeSelectors are stripped before text extraction: navigation, scripts,
// and other non-content chrome that would otherwise pollute the markdown.
var chromeSelectors = []string{"script", "style", "nav", "header", "footer", "noscript", "svg", "form"}

// HTMLParser strips page chrome and yields clean, heading-aware markdown
// plus a structured content list.
type HTMLParser struct {
	now func() time.Time
}

// NewHTMLParser builds an HTML parser.
func NewHTMLParser() *HTMLParser {
	return &HTMLParser{now: time.Now}
}

func (p *HTMLParser) CanParse(path string) bool {
	return hasSuffixFold(path, ".html", ".htm")
}

func (p *HTMLParser) Parse(ctx context.Context, path string, opts ParseOptions) (ParseResult, error) {
	start := p.now()

	f, err := os.Open(path)
	if err != nil {
		return ParseResult{Success: false, Errors: []string{err.Error()}}, fmt.Errorf("html: open %q: %w", path, err)
	}
	defer f.Close()

	doc, err := goquery.NewDocumentFromReader(f)
	if err != nil {
		return ParseResult{Success: false, Errors: []string{err.Error()}}, fmt.Errorf("html: parse %q: %w", path, err)
	}

	for _, sel := range chromeSelectors {
		doc.Find(sel).Remove()
	}

	result := ParseResult{
		Success:  true,
		Metadata: map[string]string{"source_format": "html"},
	}
	if title := strings.TrimSpace(doc.Find("title").First().Text()); title != "" {
		result.Metadata["title"] = title
	}

	var fullText strings.Builder
	body := doc.Find("body")
	if body.Length() == 0 {
		body = doc.Selection
	}

	body.Find("h1,h2,h3,h4,h5,h6,p,li,table,pre,img,blockquote").Each(func(_ int, s *goquery.Selection) {
		select {
		case <-ctx.Done():
			return
		default:
		}

		content := htmlElementToContent(s)
		if content == nil {
			return
		}
		result.Contents = append(result.Contents, *content)
		fullText.WriteString(content.Text)
		fullText.WriteString("\n")
	})

	result.FullText = fullText.String()
	result.Stats = Stats{Strategy: "goquery", DurationMS: p.now().Sub(start).Milliseconds()}
	return result, nil
}

func htmlElementToContent(s *goquery.Selection) *ParsedContent {
	tag := goquery.NodeName(s)
	text := strings.TrimSpace(s.Text())

	switch tag {
	case "h1", "h2", "h3", "h4", "h5", "h6":
		if text == "" {
			return nil
		}
		level := int(tag[1] - '0')
		return &ParsedContent{Type: ContentHeading, Text: text, Level: level}
	case "p", "blockquote":
		if text == "" {
			return nil
		}
		return &ParsedContent{Type: ContentText, Text: text}
	case "li":
		if text == "" {
			return nil
		}
		return &ParsedContent{Type: ContentList, Text: text}
	case "pre":
		return &ParsedContent{Type: ContentCode, Text: s.Text()}
	case "img":
		alt, _ := s.Attr("alt")
		return &ParsedContent{Type: ContentImage, AltText: alt}
	case "table":
		var rows [][]string
		s.Find("tr").Each(func(_ int, tr *goquery.Selection) {
			var row []string
			tr.Find("th,td").Each(func(_ int, cell *goquery.Selection) {
				row = append(row, strings.TrimSpace(cell.Text()))
			})
			if len(row) > 0 {
				rows = append(rows, row)
			}
		})
		if len(rows) == 0 {
			return nil
		}
		return &ParsedContent{Type: ContentTable, Rows: rows}
	default:
		return nil
	}
}

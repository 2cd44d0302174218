package parser

import (
	"context"
	"fmt"
	"strings"
)

// Registry dispatches a file path to the first registered parser that
// claims it.
type Registry struct {
	parsers []IDocumentParser
}

// NewRegistry builds a registry with the PDF, Office, and HTML parsers
// pre-registered. vlm, ocr, and cloud may be nil when a bundle has not
// configured those fallback tiers; the PDF parser skips a nil tier.
func NewRegistry(vlm *VLMParser, ocr *OCRParser, cloud *CloudParser) *Registry {
	r := &Registry{}
	r.parsers = append(r.parsers,
		NewPDFParser(vlm, ocr, cloud),
		NewXLSXParser(),
		NewOOXMLParser(),
		NewHTMLParser(),
	)
	return r
}

// Register appends a parser, taking priority over parsers registered
// earlier is not implied; the first match by CanParse wins, in registration
// order.
func (r *Registry) Register(p IDocumentParser) {
	r.parsers = append(r.parsers, p)
}

// Resolve returns the first parser willing to handle path.
func (r *Registry) Resolve(path string) (IDocumentParser, bool) {
	for _, p := range r.parsers {
		if p.CanParse(path) {
			return p, true
		}
	}
	return nil, false
}

// Parse resolves and invokes the parser for path, or returns an
// unsupported-format error if none claims it.
func (r *Registry) Parse(ctx context.Context, path string, opts ParseOptions) (ParseResult, error) {
	p, ok := r.Resolve(path)
	if !ok {
		return ParseResult{}, fmt.Errorf("parser: no parser registered for %q", path)
	}
	return p.Parse(ctx, path, opts.withDefaults())
}

func hasSuffixFold(path string, suffixes ...string) bool {
	lower := strings.ToLower(path)
	for _, s := range suffixes {
		if strings.HasSuffix(lower, s) {
			return true
		}
	}
	return false
}

package parser

import (
	"context"
	"fmt"
	"os"

	"github.com/otiai10/gosseract/v2"
)

// OCRParser implements the PDF subsystem's OCR fallback tier: render a page
// to an image, then run it through an embedded Tesseract engine. It shares
// the VLM tier's PageRenderer so both fallback strategies rasterize pages
// the same way.
type OCRParser struct {
	renderer  PageRenderer
	languages []string
}

// NewOCRParser builds an OCR fallback parser. languages is passed straight
// through to Tesseract's language data selection ("eng" when empty).
func NewOCRParser(renderer PageRenderer, languages ...string) *OCRParser {
	if len(languages) == 0 {
		languages = []string{"eng"}
	}
	return &OCRParser{renderer: renderer, languages: languages}
}

// PageText renders page and runs Tesseract over the resulting image.
func (o *OCRParser) PageText(ctx context.Context, path string, page int) (string, error) {
	if o.renderer == nil {
		return "", fmt.Errorf("ocr: not configured: no page renderer wired")
	}

	png, err := o.renderer(ctx, path, page)
	if err != nil {
		return "", fmt.Errorf("ocr: render page %d: %w", page, err)
	}

	tmp, err := os.CreateTemp("", "pfb-ocr-*.png")
	if err != nil {
		return "", fmt.Errorf("ocr: stage page image: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(png); err != nil {
		tmp.Close()
		return "", fmt.Errorf("ocr: stage page image: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("ocr: stage page image: %w", err)
	}

	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetLanguage(o.languages...); err != nil {
		return "", fmt.Errorf("ocr: set languages: %w", err)
	}
	if err := client.SetImage(tmp.Name()); err != nil {
		return "", fmt.Errorf("ocr: load page image: %w", err)
	}

	text, err := client.Text()
	if err != nil {
		return "", fmt.Errorf("ocr: recognize page %d: %w", page, err)
	}
	return text, nil
}

package parser

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
)

// Task selects the targeted extraction a VLM page call should perform,
// matching the spec's formula|table|code|image|fullPage task set.
type Task string

const (
	TaskFormula  Task = "formula"
	TaskTable    Task = "table"
	TaskCode     Task = "code"
	TaskImage    Task = "image"
	TaskFullPage Task = "fullPage"
)

// AnalyzedElement is the strict JSON shape the VLM prompt asks the model to
// return; one element per extracted region on the page.
type AnalyzedElement struct {
	Type    string  `json:"type"`
	Text    string  `json:"text"`
	Caption string  `json:"caption,omitempty"`
	X0      float64 `json:"x0,omitempty"`
	Y0      float64 `json:"y0,omitempty"`
	X1      float64 `json:"x1,omitempty"`
	Y1      float64 `json:"y1,omitempty"`
}

// PageRenderer rasterizes one page of a document to a PNG image. Bundles
// that have not wired a rasterizer leave this nil; VLMParser reports
// "not configured" rather than pretending to succeed.
type PageRenderer func(ctx context.Context, path string, page int) ([]byte, error)

// VLMConfig configures the vision-language chat client, mirroring the
// embedder's OpenAI-compatible configuration shape so the same endpoint
// (OpenAI, Azure OpenAI, or any OpenAI-wire-compatible gateway) can serve
// both embeddings and page analysis.
type VLMConfig struct {
	BaseURL    string
	APIKey     string
	Model      string
	Timeout    time.Duration
	MaxRetries int
}

// DefaultVLMConfig returns sensible defaults; APIKey and a PageRenderer must
// still be supplied before the parser is usable.
func DefaultVLMConfig() VLMConfig {
	return VLMConfig{
		Model:      "gpt-4o-mini",
		Timeout:    60 * time.Second,
		MaxRetries: 2,
	}
}

// VLMParser implements the PDF subsystem's vision-language-model fallback
// tier: render a thin page to PNG, then ask a vision-capable chat model for
// a strict-schema description of every element on the page.
type VLMParser struct {
	client   *openai.Client
	config   VLMConfig
	renderer PageRenderer
}

// NewVLMParser builds a parser. renderer may be nil, in which case
// AnalyzePage always reports the page as not configured rather than
// attempting a network call with no image to send.
func NewVLMParser(cfg VLMConfig, renderer PageRenderer) *VLMParser {
	if cfg.Model == "" {
		cfg.Model = DefaultVLMConfig().Model
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultVLMConfig().Timeout
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultVLMConfig().MaxRetries
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	}

	return &VLMParser{
		client:   openai.NewClientWithConfig(clientConfig),
		config:   cfg,
		renderer: renderer,
	}
}

const analysisPrompt = `Analyze this document page image. Return a JSON array of elements found on
the page, in reading order. Each element must have:
  "type": one of "text", "heading", "table", "equation", "image", "list", "caption"
  "text": the element's textual content, or a description for images
Return ONLY the JSON array, no surrounding prose.`

func taskPrompt(task Task) string {
	switch task {
	case TaskFormula:
		return analysisPrompt + "\nFocus only on mathematical formulas and equations."
	case TaskTable:
		return analysisPrompt + "\nFocus only on tables; represent each cell."
	case TaskCode:
		return analysisPrompt + "\nFocus only on code blocks; preserve indentation."
	case TaskImage:
		return analysisPrompt + "\nFocus only on images and figures; describe their content."
	default:
		return analysisPrompt
	}
}

// AnalyzePage renders one page and asks the configured vision model to
// describe its elements under the given task focus.
func (v *VLMParser) AnalyzePage(ctx context.Context, path string, page int, task Task) ([]ParsedContent, error) {
	if v.renderer == nil {
		return nil, fmt.Errorf("vlm: not configured: no page renderer wired")
	}
	if v.config.APIKey == "" {
		return nil, fmt.Errorf("vlm: not configured: no API key")
	}

	ctx, cancel := context.WithTimeout(ctx, v.config.Timeout)
	defer cancel()

	png, err := v.renderer(ctx, path, page)
	if err != nil {
		return nil, fmt.Errorf("vlm: render page %d: %w", page, err)
	}
	dataURL := "data:image/png;base64," + base64.StdEncoding.EncodeToString(png)

	var lastErr error
	for attempt := 0; attempt <= v.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(200<<attempt) * time.Millisecond):
			}
		}

		resp, err := v.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model: v.config.Model,
			Messages: []openai.ChatCompletionMessage{
				{
					Role: openai.ChatMessageRoleUser,
					MultiContent: []openai.ChatMessagePart{
						{Type: openai.ChatMessagePartTypeText, Text: taskPrompt(task)},
						{Type: openai.ChatMessagePartTypeImageURL, ImageURL: &openai.ChatMessageImageURL{URL: dataURL}},
					},
				},
			},
		})
		if err != nil {
			lastErr = err
			continue
		}
		if len(resp.Choices) == 0 {
			lastErr = fmt.Errorf("vlm: empty response")
			continue
		}

		elems, err := parseAnalyzedElements(resp.Choices[0].Message.Content)
		if err != nil {
			lastErr = err
			continue
		}
		return analyzedToParsedContent(elems, page), nil
	}
	return nil, fmt.Errorf("vlm: page %d failed after retries: %w", page, lastErr)
}

func parseAnalyzedElements(raw string) ([]AnalyzedElement, error) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")
	raw = strings.TrimSpace(raw)

	var elems []AnalyzedElement
	if err := json.Unmarshal([]byte(raw), &elems); err != nil {
		return nil, fmt.Errorf("vlm: malformed analysis JSON: %w", err)
	}
	return elems, nil
}

func analyzedToParsedContent(elems []AnalyzedElement, page int) []ParsedContent {
	out := make([]ParsedContent, 0, len(elems))
	for _, e := range elems {
		ct := ContentText
		switch e.Type {
		case "heading":
			ct = ContentHeading
		case "table":
			ct = ContentTable
		case "equation":
			ct = ContentEquation
		case "image":
			ct = ContentImage
		case "list":
			ct = ContentList
		case "caption":
			ct = ContentCaption
		}
		var bbox *BoundingBox
		if e.X1 != 0 || e.Y1 != 0 {
			bbox = &BoundingBox{X0: e.X0, Y0: e.Y0, X1: e.X1, Y1: e.Y1}
		}
		out = append(out, ParsedContent{
			Type:    ct,
			Text:    e.Text,
			Page:    page,
			BBox:    bbox,
			AltText: e.Caption,
		})
	}
	return out
}

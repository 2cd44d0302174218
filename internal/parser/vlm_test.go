package parser

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chatCompletionStub(t *testing.T, content string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]any{
			"id":      "chatcmpl-test",
			"object":  "chat.completion",
			"created": 0,
			"model":   "gpt-4o-mini",
			"choices": []map[string]any{
				{
					"index": 0,
					"message": map[string]any{
						"role":    "assistant",
						"content": content,
					},
					"finish_reason": "stop",
				},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
}

func TestVLMParser_AnalyzePage_ParsesElements(t *testing.T) {
	content := `[{"type":"heading","text":"Section 1"},{"type":"table","text":"a b c"}]`
	srv := chatCompletionStub(t, content)
	defer srv.Close()

	renderer := func(ctx context.Context, path string, page int) ([]byte, error) {
		return []byte{0x89, 'P', 'N', 'G'}, nil
	}

	v := NewVLMParser(VLMConfig{BaseURL: srv.URL, APIKey: "test-key"}, renderer)
	elems, err := v.AnalyzePage(context.Background(), "doc.pdf", 1, TaskFullPage)
	require.NoError(t, err)
	require.Len(t, elems, 2)
	assert.Equal(t, ContentHeading, elems[0].Type)
	assert.Equal(t, "Section 1", elems[0].Text)
	assert.Equal(t, ContentTable, elems[1].Type)
}

func TestVLMParser_AnalyzePage_NotConfiguredWithoutRenderer(t *testing.T) {
	v := NewVLMParser(VLMConfig{APIKey: "test-key"}, nil)
	_, err := v.AnalyzePage(context.Background(), "doc.pdf", 1, TaskFullPage)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not configured")
}

func TestVLMParser_AnalyzePage_NotConfiguredWithoutAPIKey(t *testing.T) {
	renderer := func(ctx context.Context, path string, page int) ([]byte, error) {
		return []byte{}, nil
	}
	v := NewVLMParser(VLMConfig{}, renderer)
	_, err := v.AnalyzePage(context.Background(), "doc.pdf", 1, TaskFullPage)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not configured")
}

func TestParseAnalyzedElements_StripsMarkdownFences(t *testing.T) {
	raw := "```json\n[{\"type\":\"text\",\"text\":\"hello\"}]\n```"
	elems, err := parseAnalyzedElements(raw)
	require.NoError(t, err)
	require.Len(t, elems, 1)
	assert.Equal(t, "hello", elems[0].Text)
}

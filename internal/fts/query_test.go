package fts

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildQuery_RawPassthrough(t *testing.T) {
	expr, tokens, raw := BuildQuery(`fts:"exact phrase" NOT foo`, 12)
	assert.True(t, raw)
	assert.Nil(t, tokens)
	assert.Equal(t, `"exact phrase" NOT foo`, expr)
}

func TestBuildQuery_TokenizesAndQuotes(t *testing.T) {
	expr, tokens, raw := BuildQuery("hello world", 12)
	assert.False(t, raw)
	assert.Equal(t, []string{"hello", "world"}, tokens)
	assert.Equal(t, `"hello" OR "world"`, expr)
}

func TestBuildQuery_TruncatesToMaxTokens(t *testing.T) {
	words := make([]string, 100)
	for i := range words {
		words[i] = "word"
	}
	input := strings.Join(words, " ")

	_, tokens, _ := BuildQuery(input, 12)
	assert.Len(t, tokens, 12)
}

func TestBuildQuery_EscapesEmbeddedQuotes(t *testing.T) {
	expr, _, _ := BuildQuery(`say "hi"`, 12)
	assert.Contains(t, expr, `"say"`)
	assert.Contains(t, expr, `"hi"`)
}

func TestBuildQuery_IdempotentViaRawHandshake(t *testing.T) {
	expr1, _, _ := BuildQuery("hello world", 12)
	expr2, _, raw := BuildQuery(AsRawInput(expr1), 12)
	require.True(t, raw)
	assert.Equal(t, expr1, expr2)
}

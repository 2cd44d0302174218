package fts

import (
	"regexp"
	"strings"
)

// rawPrefix triggers raw FTS5 match-expression passthrough.
const rawPrefix = "fts:"

// wordPattern matches Unicode word-boundary tokens: runs of letters,
// numbers, or underscores.
var wordPattern = regexp.MustCompile(`[\p{L}\p{N}_]+`)

// BuildQuery implements the FTS query pipeline's parse step.
//
// If input begins with "fts:", the remainder is passed through verbatim as
// a trusted raw FTS5 match expression. Otherwise input is tokenized by
// Unicode word boundaries, lower-cased, trimmed to at most maxTokens terms
// (DefaultMaxQueryTokens when maxTokens <= 0), each token double-quoted
// (embedded `"` doubled per FTS5 escaping) and OR-joined.
func BuildQuery(input string, maxTokens int) (expr string, tokens []string, raw bool) {
	if maxTokens <= 0 {
		maxTokens = DefaultMaxQueryTokens
	}

	if strings.HasPrefix(input, rawPrefix) {
		return strings.TrimPrefix(input, rawPrefix), nil, true
	}

	matches := wordPattern.FindAllString(input, -1)
	if len(matches) > maxTokens {
		matches = matches[:maxTokens]
	}

	quoted := make([]string, 0, len(matches))
	for _, m := range matches {
		lower := strings.ToLower(m)
		tokens = append(tokens, lower)
		quoted = append(quoted, `"`+escapeFTS5(lower)+`"`)
	}

	return strings.Join(quoted, " OR "), tokens, false
}

// escapeFTS5 doubles embedded double-quote characters, the FTS5
// match-expression escaping rule for quoted terms.
func escapeFTS5(s string) string {
	return strings.ReplaceAll(s, `"`, `""`)
}

// AsRawInput re-wraps a previously-built query expression with the `fts:`
// prefix so that BuildQuery is idempotent: BuildQuery(AsRawInput(expr), n)
// always yields (expr, nil, true).
func AsRawInput(expr string) string {
	return rawPrefix + expr
}

// Package fts implements the per-bundle SQLite FTS5 line index: build from
// repos/*/norm/**, Unicode-aware query tokenization with an `fts:` raw
// passthrough, scoped search, and claim verification.
//
// Grounded on the teacher's internal/store.SQLiteBM25Index (same
// modernc.org/sqlite driver, same WAL pragmas, same delete-then-insert
// FTS5 write pattern) generalized from a whole-document BM25 index into a
// per-line index plus a `files` helper table, per spec.md's FTS row shape.
package fts

// Scope restricts which rows are eligible for a search.
type Scope string

const (
	ScopeDocs Scope = "docs"
	ScopeCode Scope = "code"
	ScopeAll  Scope = "all"
)

// Kind classifies a normalized file as feeding the docs or code scope.
type Kind string

const (
	KindDoc  Kind = "doc"
	KindCode Kind = "code"
)

// Line is one row of the index: a single 1-indexed line of a normalized
// file.
type Line struct {
	BundleRelPath string
	Kind          Kind
	RepoID        string
	LineNo        int
	Text          string
}

// FileMeta describes one normalized file tracked in the `files` helper
// table.
type FileMeta struct {
	Path   string
	Kind   Kind
	RepoID string
	Lines  int
}

// Hit is one projected search result.
type Hit struct {
	Kind     Kind
	Repo     string
	Path     string
	LineNo   int
	Snippet  string
	Score    float64
	URI      string
}

// DefaultMaxQueryTokens bounds the number of OR-joined terms a
// natural-language query is tokenized into.
const DefaultMaxQueryTokens = 12

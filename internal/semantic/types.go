// Package semantic implements the optional dense-vector knowledge-base
// index: vector storage, hashed sparse n-gram vectors, and the hybrid
// dense/sparse scoring used when both full-text and semantic search are
// available. Embedding adapters are not part of this package.
package semantic

import "context"

// Item is a single chunk's dense embedding plus the metadata used to filter
// candidate search results by kind or repository, and to project a hit
// straight back to a file region without a second lookup.
type Item struct {
	ChunkID   string
	Kind      string
	RepoID    string
	Path      string
	StartLine int
	EndLine   int
	Vector    []float32
}

// Filter narrows a search to a kind and/or repository. An empty field means
// unfiltered on that dimension.
type Filter struct {
	Kind   string
	RepoID string
}

func (f Filter) matches(kind, repoID string) bool {
	if f.Kind != "" && f.Kind != kind {
		return false
	}
	if f.RepoID != "" && f.RepoID != repoID {
		return false
	}
	return true
}

// Result is a single semantic search hit.
type Result struct {
	ChunkID   string
	Score     float32
	RepoID    string
	Path      string
	StartLine int
	EndLine   int
}

// Index stores chunk embeddings and answers cosine-similarity queries over
// a kind/repo-filtered candidate set. Implementations must be safe for
// concurrent use.
type Index interface {
	// Upsert inserts or replaces embeddings for the given items.
	Upsert(ctx context.Context, items []Item) error

	// Delete removes embeddings by chunk ID.
	Delete(ctx context.Context, chunkIDs []string) error

	// Search returns the k nearest neighbors to query among chunks matching
	// filter, ranked by descending cosine similarity.
	Search(ctx context.Context, query []float32, k int, filter Filter) ([]Result, error)

	// Count returns the number of stored embeddings.
	Count() int

	Close() error
}

// HybridEmbedding pairs a dense embedding with its sparse N-gram
// counterpart, per the alternate sparse representation.
type HybridEmbedding struct {
	Dense  []float32
	Sparse map[uint32]float32
}

package semantic

import (
	"context"
	"sync"

	bundleerrors "github.com/preflightbundle/preflightbundle/internal/errors"
	"github.com/preflightbundle/preflightbundle/internal/store"
)

// HNSWIndex is an approximate-nearest-neighbor alternative to SQLiteIndex,
// backed by the same pure-Go coder/hnsw graph used for the file-level
// vector store. It satisfies the same Index interface so a bundle can
// opt into ANN search without changing callers, per the "search(query, k,
// filter) stays ANN-ready" design goal.
//
// HNSW has no native support for pre-search filtering, so Filter is applied
// by over-fetching (requesting more neighbors than k) and discarding
// non-matching candidates; this makes filtered HNSW search approximate in a
// way exhaustive SQLiteIndex search is not.
type HNSWIndex struct {
	mu    sync.RWMutex
	graph *store.HNSWStore

	meta map[string]Item // chunkID -> kind/repoID, for post-search filtering
}

var _ Index = (*HNSWIndex)(nil)

// overFetchFactor controls how many extra neighbors HNSW requests per
// search to compensate for post-filtering discards.
const overFetchFactor = 4

// NewHNSWIndex creates an in-memory ANN index for the given vector
// dimensionality.
func NewHNSWIndex(dimensions int) (*HNSWIndex, error) {
	graph, err := store.NewHNSWStore(store.DefaultVectorStoreConfig(dimensions))
	if err != nil {
		return nil, bundleerrors.New(bundleerrors.ErrCodeIndexFailed, "failed to create HNSW index", err)
	}
	return &HNSWIndex{graph: graph, meta: make(map[string]Item)}, nil
}

// Upsert inserts or replaces embeddings for the given items.
func (h *HNSWIndex) Upsert(ctx context.Context, items []Item) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	ids := make([]string, len(items))
	vectors := make([][]float32, len(items))
	for i, item := range items {
		ids[i] = item.ChunkID
		vectors[i] = item.Vector
		h.meta[item.ChunkID] = Item{
			ChunkID:   item.ChunkID,
			Kind:      item.Kind,
			RepoID:    item.RepoID,
			Path:      item.Path,
			StartLine: item.StartLine,
			EndLine:   item.EndLine,
		}
	}
	if err := h.graph.Add(ctx, ids, vectors); err != nil {
		return bundleerrors.New(bundleerrors.ErrCodeIndexFailed, "failed to add vectors to HNSW index", err)
	}
	return nil
}

// Delete removes embeddings by chunk ID.
func (h *HNSWIndex) Delete(ctx context.Context, chunkIDs []string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.graph.Delete(ctx, chunkIDs); err != nil {
		return bundleerrors.New(bundleerrors.ErrCodeIndexFailed, "failed to delete vectors from HNSW index", err)
	}
	for _, id := range chunkIDs {
		delete(h.meta, id)
	}
	return nil
}

// Search returns the k nearest neighbors to query among chunks matching
// filter.
func (h *HNSWIndex) Search(ctx context.Context, query []float32, k int, filter Filter) ([]Result, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	fetchK := k
	if filter.Kind != "" || filter.RepoID != "" {
		fetchK = k * overFetchFactor
	}

	candidates, err := h.graph.Search(ctx, query, fetchK)
	if err != nil {
		return nil, bundleerrors.New(bundleerrors.ErrCodeSearchFailed, "HNSW search failed", err)
	}

	results := make([]Result, 0, len(candidates))
	for _, c := range candidates {
		item, ok := h.meta[c.ID]
		if !ok || !filter.matches(item.Kind, item.RepoID) {
			continue
		}
		results = append(results, Result{
			ChunkID:   c.ID,
			Score:     c.Score,
			RepoID:    item.RepoID,
			Path:      item.Path,
			StartLine: item.StartLine,
			EndLine:   item.EndLine,
		})
		if len(results) == k {
			break
		}
	}
	return results, nil
}

// Count returns the number of stored embeddings.
func (h *HNSWIndex) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.graph.Count()
}

// Close releases the underlying graph.
func (h *HNSWIndex) Close() error {
	return h.graph.Close()
}

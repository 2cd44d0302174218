package semantic

import "sort"

// HybridWeights configures the dense/sparse blend used when combining a
// semantic index with full-text search results.
type HybridWeights struct {
	Dense  float64 // weight applied to cosine similarity
	Sparse float64 // weight applied to the normalized FTS rank
}

// DefaultHybridWeights returns the spec's default blend: 0.7 dense, 0.3
// sparse.
func DefaultHybridWeights() HybridWeights {
	return HybridWeights{Dense: 0.7, Sparse: 0.3}
}

// FTSRank is a full-text hit carrying its raw rank position (0 = best),
// used to derive a normalized rank score for hybrid fusion.
type FTSRank struct {
	ChunkID string
	Rank    int // 0-based position in the FTS result list
}

// HybridResult is a single fused candidate.
type HybridResult struct {
	ChunkID string
	Score   float64
}

// Hybrid combines SEM cosine scores and FTS ranks into a single ranked
// list: score = denseWeight*cosine + sparseWeight*normalizedFtsRank, where
// normalizedFtsRank = 1 - rank/len(ftsHits) for ranked hits and 0 for
// candidates absent from the FTS results (and the symmetric case for dense
// scores absent from semantic results).
func Hybrid(semResults []Result, ftsRanks []FTSRank, weights HybridWeights) []HybridResult {
	denseByID := make(map[string]float64, len(semResults))
	for _, r := range semResults {
		denseByID[r.ChunkID] = float64(r.Score)
	}

	ftsTotal := len(ftsRanks)
	sparseByID := make(map[string]float64, ftsTotal)
	for _, r := range ftsRanks {
		sparseByID[r.ChunkID] = normalizedRank(r.Rank, ftsTotal)
	}

	ids := make(map[string]struct{}, len(denseByID)+len(sparseByID))
	for id := range denseByID {
		ids[id] = struct{}{}
	}
	for id := range sparseByID {
		ids[id] = struct{}{}
	}

	results := make([]HybridResult, 0, len(ids))
	for id := range ids {
		score := weights.Dense*denseByID[id] + weights.Sparse*sparseByID[id]
		results = append(results, HybridResult{ChunkID: id, Score: score})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ChunkID < results[j].ChunkID
	})
	return results
}

func normalizedRank(rank, total int) float64 {
	if total <= 0 {
		return 0
	}
	score := 1 - float64(rank)/float64(total)
	if score < 0 {
		return 0
	}
	return score
}

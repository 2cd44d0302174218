package semantic

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHybrid_CombinesDenseAndSparseScores(t *testing.T) {
	sem := []Result{
		{ChunkID: "a", Score: 0.9},
		{ChunkID: "b", Score: 0.2},
	}
	fts := []FTSRank{
		{ChunkID: "b", Rank: 0},
		{ChunkID: "c", Rank: 1},
	}

	results := Hybrid(sem, fts, DefaultHybridWeights())
	require.Len(t, results, 3)

	byID := make(map[string]float64, len(results))
	for _, r := range results {
		byID[r.ChunkID] = r.Score
	}
	assert.InDelta(t, 0.7*0.9, byID["a"], 1e-9)
	assert.InDelta(t, 0.7*0.2+0.3*1.0, byID["b"], 1e-9)
	assert.InDelta(t, 0.3*0.5, byID["c"], 1e-9)
}

func TestHybrid_ResultsSortedDescending(t *testing.T) {
	sem := []Result{{ChunkID: "low", Score: 0.1}, {ChunkID: "high", Score: 0.95}}
	results := Hybrid(sem, nil, DefaultHybridWeights())
	require.Len(t, results, 2)
	assert.Equal(t, "high", results[0].ChunkID)
}

func TestHybrid_EmptyInputsProduceEmptyResult(t *testing.T) {
	results := Hybrid(nil, nil, DefaultHybridWeights())
	assert.Empty(t, results)
}

package evidence

import (
	"context"
	"os"
	"path/filepath"

	"github.com/preflightbundle/preflightbundle/internal/storage"
)

// QueryFanout resolves q against a single bundle's trace store when
// q.BundleID is set, or fans out across every bundle on every storage
// root (capped at maxFanoutBundles) when it is empty.
func QueryFanout(ctx context.Context, store *storage.Storage, q Query) (*QueryResult, error) {
	if q.BundleID != "" {
		bundleDir, ok := store.ResolveBundleRoot(q.BundleID)
		if !ok {
			return &QueryResult{}, nil
		}
		edges, err := queryOne(ctx, bundleDir, q)
		if err != nil {
			return nil, err
		}
		return &QueryResult{Edges: edges, BundleCount: 1}, nil
	}

	ids, err := store.ListBundleIDs()
	if err != nil {
		return nil, err
	}

	truncated := len(ids) > maxFanoutBundles
	if truncated {
		ids = ids[:maxFanoutBundles]
	}

	var all []Edge
	for _, id := range ids {
		bundleDir, ok := store.ResolveBundleRoot(id)
		if !ok {
			continue
		}
		edges, err := queryOne(ctx, bundleDir, q)
		if err != nil {
			continue
		}
		all = append(all, edges...)
	}
	return &QueryResult{Edges: all, Truncated: truncated, BundleCount: len(ids)}, nil
}

func queryOne(ctx context.Context, bundleDir string, q Query) ([]Edge, error) {
	tracePath := filepath.Join(bundleDir, "trace", "trace.sqlite3")
	if _, err := os.Stat(tracePath); err != nil {
		return nil, nil
	}
	s, err := Open(tracePath)
	if err != nil {
		return nil, err
	}
	defer s.Close()
	return s.Query(ctx, q)
}

package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/preflightbundle/preflightbundle/internal/embed"
	"github.com/preflightbundle/preflightbundle/internal/lifecycle"
	"github.com/preflightbundle/preflightbundle/internal/parser"
	"github.com/preflightbundle/preflightbundle/internal/precheck"
	"github.com/preflightbundle/preflightbundle/internal/storage"
)

// defaultBundleRoot is where bundles live when no --root flag or
// PREFLIGHTBUNDLE_ROOTS environment variable overrides it.
func defaultBundleRoot() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".preflightbundle", "bundles")
}

// bundleRoots resolves the storage roots for this invocation: an explicit
// --root flag wins, then PREFLIGHTBUNDLE_ROOTS (colon-separated, mirroring
// PATH), then the single default root under the user's home directory.
func bundleRoots(rootFlag string) []string {
	if rootFlag != "" {
		return []string{rootFlag}
	}
	if env := os.Getenv("PREFLIGHTBUNDLE_ROOTS"); env != "" {
		return strings.Split(env, string(os.PathListSeparator))
	}
	return []string{defaultBundleRoot()}
}

// newManager builds the shared lifecycle.Manager used by every bundle
// command and by the MCP server. offline skips embedder construction
// entirely, leaving bundles BM25-only (semantic indexing is best-effort
// in lifecycle.Manager.Create regardless).
func newManager(ctx context.Context, rootFlag string, offline bool) (*lifecycle.Manager, error) {
	roots := bundleRoots(rootFlag)
	for _, r := range roots {
		if err := os.MkdirAll(r, 0o755); err != nil {
			return nil, fmt.Errorf("failed to prepare bundle root %s: %w", r, err)
		}
	}

	store, err := storage.New(roots)
	if err != nil {
		return nil, fmt.Errorf("failed to open bundle storage: %w", err)
	}

	registry := parser.NewRegistry(nil, nil, nil)

	var embedder embed.Embedder
	if !offline {
		embedder, err = embed.NewDefaultEmbedder(ctx)
		if err != nil {
			// Semantic indexing is best-effort inside Manager.Create, so a
			// missing embedder is not fatal to bundle creation.
			embedder = nil
		}
	}

	return lifecycle.NewManager(store, registry, embedder, nil), nil
}

// runPrecheck runs the local system checks (disk space, file descriptor
// limits, embedder model availability) before a potentially expensive
// bundle operation and reports critical failures as an error.
func runPrecheck(ctx context.Context, path string, offline bool) error {
	checker := precheck.New(precheck.WithOffline(offline))
	results := checker.RunAll(ctx, path)
	if checker.HasCriticalFailures(results) {
		checker.PrintResults(results)
		return fmt.Errorf("system check failed, see above")
	}
	return nil
}

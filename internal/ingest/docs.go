package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/preflightbundle/preflightbundle/internal/storage"
)

// DocsRepoID is the synthetic repo identifier given to user-supplied
// document paths, distinct from any real git remote.
const DocsRepoID = "assistant/docs"

// DocSignature computes the stable signature a document's raw/ subtree is
// keyed by, so re-ingesting the same path with an unchanged mtime and size
// upserts idempotently instead of duplicating.
func DocSignature(path string, mtime time.Time, size int64) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s\x1f%d\x1f%d", path, mtime.UnixNano(), size)
	return hex.EncodeToString(h.Sum(nil))[:16]
}

// DocsUpserter places user-supplied document paths under a bundle's raw/
// directory keyed by DocSignature.
type DocsUpserter struct{}

// NewDocsUpserter creates a DocsUpserter.
func NewDocsUpserter() *DocsUpserter { return &DocsUpserter{} }

// Upsert copies each of paths into rawDir/<signature>/<basename>. A path
// that cannot be stat'd (removed, permission denied) is skipped rather
// than failing the whole batch; the caller records that omission as a
// manifest note.
func (u *DocsUpserter) Upsert(ctx context.Context, paths []string, rawDir string) ([]string, error) {
	var placed []string
	for _, p := range paths {
		select {
		case <-ctx.Done():
			return placed, ctx.Err()
		default:
		}

		info, err := os.Stat(p)
		if err != nil || info.IsDir() {
			continue
		}

		sig := DocSignature(p, info.ModTime(), info.Size())
		rel := filepath.Join(sig, filepath.Base(p))
		target, jErr := storage.SafeJoin(rawDir, rel)
		if jErr != nil {
			continue
		}
		if err := copyFile(p, target); err != nil {
			continue
		}
		placed = append(placed, rel)
	}
	return placed, nil
}

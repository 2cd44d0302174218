package storage

import (
	"log/slog"
	"path/filepath"

	bundleerrors "github.com/preflightbundle/preflightbundle/internal/errors"
)

// MirrorResult records the per-root outcome of a mirrored publish.
type MirrorResult struct {
	Root      string
	Succeeded bool
	Err       error
}

// PublishMirrored commits wipDir into bundleID's final directory under
// every configured root. Writes are best-effort per root; at least one
// success is required for the overall call to succeed, matching the
// failure semantics of BL's Create step 4.
func (s *Storage) PublishMirrored(wipDir, bundleID string, logger *slog.Logger) ([]MirrorResult, error) {
	return s.publishMirrored(wipDir, bundleID, logger, AtomicCommit)
}

// PublishMirroredReplace is PublishMirrored for the update path, where
// bundleID's directory already exists on every root from a prior create:
// each root's commit backs up the existing directory and swaps it rather
// than assuming a plain rename will succeed.
func (s *Storage) PublishMirroredReplace(wipDir, bundleID string, logger *slog.Logger) ([]MirrorResult, error) {
	return s.publishMirrored(wipDir, bundleID, logger, AtomicReplace)
}

func (s *Storage) publishMirrored(wipDir, bundleID string, logger *slog.Logger, commit func(src, finalDir string) error) ([]MirrorResult, error) {
	results := make([]MirrorResult, 0, len(s.roots))
	anySucceeded := false

	for i, root := range s.roots {
		finalDir := filepath.Join(root, bundleID)
		src := wipDir
		if i < len(s.roots)-1 {
			// Every mirror but the last needs its own copy of the source
			// tree, made before wipDir is consumed by the final commit's
			// rename.
			var err error
			src, err = NewWipDir(root)
			if err != nil {
				results = append(results, MirrorResult{Root: root, Err: err})
				continue
			}
			if err := copyTree(wipDir, src); err != nil {
				results = append(results, MirrorResult{Root: root, Err: err})
				continue
			}
		}

		if err := commit(src, finalDir); err != nil {
			results = append(results, MirrorResult{Root: root, Err: err})
			if logger != nil {
				logger.Warn("mirror: publish failed for root", "root", root, "error", err)
			}
			continue
		}
		results = append(results, MirrorResult{Root: root, Succeeded: true})
		anySucceeded = true
	}

	if !anySucceeded {
		return results, bundleerrors.New(bundleerrors.ErrCodeOperationFailed, "failed to publish bundle to any storage root", nil)
	}
	return results, nil
}

package lifecycle

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"

	bundleerrors "github.com/preflightbundle/preflightbundle/internal/errors"
	"github.com/preflightbundle/preflightbundle/internal/ingest"
	"github.com/preflightbundle/preflightbundle/internal/manifest"
	"github.com/preflightbundle/preflightbundle/internal/scanner"
)

// Repair checks (and, in RepairFix mode, regenerates) a bundle's required
// artifacts without touching the network: indexes/search.sqlite3,
// START_HERE.md, AGENTS.md, and OVERVIEW.md must all be present and
// non-empty for a bundle to be considered usable beyond invariant I1's
// bare manifest-presence check. Regeneration works entirely from each
// repo's already-normalized files under repos/*/norm, never re-fetching.
func (m *Manager) Repair(ctx context.Context, bundleID string, mode RepairMode) (*RepairResult, error) {
	bundleDir, ok := m.storage.ResolveBundleRoot(bundleID)
	if !ok {
		return nil, bundleerrors.BundleNotFound(bundleID)
	}
	mf, err := readManifest(bundleDir)
	if err != nil {
		return nil, err
	}

	release := m.locks.Lock(mf.Fingerprint)
	defer release()

	result := &RepairResult{BundleID: bundleID}
	for _, rel := range requiredArtifacts {
		if !artifactPresent(filepath.Join(bundleDir, rel)) {
			result.Missing = append(result.Missing, rel)
		}
	}

	if mode == RepairValidate || len(result.Missing) == 0 {
		return result, nil
	}

	taskID := bundleID + "-repair"
	handle := m.tracker.Start(mf.Fingerprint, taskID)
	defer m.tracker.Forget(mf.Fingerprint)
	handle.SetStage(StageRepairing, len(result.Missing))

	build := &buildState{wipDir: bundleDir, handle: handle, embedder: m.embedder, logger: m.logger}
	build.repos = mf.Repos
	if err := stageFromNorm(bundleDir, mf, build); err != nil {
		handle.Fail(err)
		return result, err
	}

	for _, rel := range result.Missing {
		var stepErr error
		switch rel {
		case "indexes/search.sqlite3":
			stepErr = m.buildFTS(ctx, build)
		case "START_HERE.md":
			stepErr = writeStartHere(build)
		case "AGENTS.md":
			stepErr = writeAgents(build)
		case "OVERVIEW.md":
			stepErr = writeOverview(build)
		}
		if stepErr != nil {
			handle.Fail(stepErr)
			return result, stepErr
		}
		result.Regenerated = append(result.Regenerated, rel)
		handle.Step()
	}

	handle.Complete()
	return result, nil
}

// stageFromNorm walks every repo's repos/*/norm directory (no network, no
// re-fetch) and populates build.files with the classification each file
// would have been assigned during ingest.
func stageFromNorm(bundleDir string, mf *manifest.Manifest, build *buildState) error {
	for _, repo := range mf.Repos {
		safeID := sanitizeRepoDir(repo.ID)
		normDir := filepath.Join(bundleDir, "repos", safeID, "norm")

		walkErr := filepath.WalkDir(normDir, func(path string, d fs.DirEntry, err error) error {
			if err != nil || d.IsDir() {
				return nil
			}
			rel, relErr := filepath.Rel(normDir, path)
			if relErr != nil {
				return nil
			}
			relSlash := filepath.ToSlash(rel)
			info, statErr := d.Info()
			if statErr != nil {
				return nil
			}
			build.files = append(build.files, stagedFile{
				RepoID: repo.ID,
				NormalizedFile: ingest.NormalizedFile{
					RelPath:        relSlash,
					AbsPath:        path,
					Size:           info.Size(),
					Classification: ingest.Classify(relSlash),
					Language:       scanner.DetectLanguage(relSlash),
				},
			})
			return nil
		})
		if walkErr != nil && !os.IsNotExist(walkErr) {
			return walkErr
		}
	}
	return nil
}

func artifactPresent(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir() && info.Size() > 0
}

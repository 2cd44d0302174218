package lifecycle

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/google/uuid"

	bundleerrors "github.com/preflightbundle/preflightbundle/internal/errors"
	"github.com/preflightbundle/preflightbundle/internal/ingest"
	"github.com/preflightbundle/preflightbundle/internal/manifest"
	"github.com/preflightbundle/preflightbundle/internal/storage"
)

// Update checks or rebuilds an existing bundle. With CheckOnly set it only
// queries each GitHub repo's remote HEAD and returns the deltas, mutating
// nothing; otherwise it rebuilds the bundle into a fresh wip directory and
// swaps it into place, skipping the rebuild entirely when no repo has
// moved and Force is false.
func (m *Manager) Update(ctx context.Context, bundleID string, opts UpdateOptions) (*TransactionResult, *UpdateCheckResult, error) {
	bundleDir, ok := m.storage.ResolveBundleRoot(bundleID)
	if !ok {
		return nil, nil, bundleerrors.BundleNotFound(bundleID)
	}
	mf, err := readManifest(bundleDir)
	if err != nil {
		return nil, nil, err
	}

	release := m.locks.Lock(mf.Fingerprint)
	defer release()

	check, err := m.checkRepoDeltas(ctx, mf)
	if err != nil {
		return nil, nil, err
	}
	if opts.CheckOnly {
		return nil, check, nil
	}
	if !check.HasChanges && !opts.Force {
		return &TransactionResult{BundleID: bundleID, Fingerprint: mf.Fingerprint, Manifest: mf, Created: false}, check, nil
	}

	taskID := uuid.New().String()
	handle := m.tracker.Start(mf.Fingerprint, taskID)
	defer m.tracker.Forget(mf.Fingerprint)

	primaryRoot := m.storage.Roots()[0]
	wipDir, err := storage.NewWipDir(primaryRoot)
	if err != nil {
		handle.Fail(err)
		return nil, check, err
	}

	build := &buildState{wipDir: wipDir, handle: handle, embedder: m.embedder, logger: m.logger}
	rebuildOpts := CreateOptions{DisplayName: mf.DisplayName, Tags: mf.Tags, AllowVLM: false, AllowOCR: false}.withDefaults()

	handle.SetStage(StageFetching, len(mf.Repos))
	if err := m.ingestForUpdate(ctx, build, bundleDir, mf); err != nil {
		handle.Fail(err)
		return nil, check, err
	}

	handle.SetStage(StageParsing, len(build.files))
	if err := m.chunkAll(ctx, build, rebuildOpts); err != nil {
		handle.Fail(err)
		return nil, check, err
	}

	handle.SetStage(StageIndexing, 1)
	if err := m.buildFTS(ctx, build); err != nil {
		handle.Fail(err)
		return nil, check, err
	}

	if m.embedder != nil && m.embedder.Available(ctx) {
		handle.SetStage(StageEmbedding, len(build.chunks))
		if err := m.buildSemantic(ctx, build); err != nil {
			m.logger.Warn("update: semantic index deferred", "bundleId", bundleID, "error", err)
		}
	}

	handle.SetStage(StageAnalyzing, len(build.files))
	if err := m.buildAST(ctx, build); err != nil {
		m.logger.Warn("update: ast analysis incomplete", "bundleId", bundleID, "error", err)
	}

	handle.SetStage(StagePublishing, 2)
	if err := m.writeDocs(build); err != nil {
		handle.Fail(err)
		return nil, check, err
	}
	handle.Step()

	updated := now()
	newManifest := &manifest.Manifest{
		SchemaVersion:   mf.SchemaVersion,
		BundleID:        mf.BundleID,
		Fingerprint:     mf.Fingerprint,
		CreatedAt:       mf.CreatedAt,
		UpdatedAt:       updated,
		Inputs:          mf.Inputs,
		Repos:           build.repos,
		Tags:            mf.Tags,
		DisplayName:     mf.DisplayName,
		PrimaryLanguage: mf.PrimaryLanguage,
	}
	if err := newManifest.Validate(); err != nil {
		handle.Fail(err)
		return nil, check, err
	}
	if err := writeManifest(build.wipDir, newManifest); err != nil {
		handle.Fail(err)
		return nil, check, err
	}

	if _, err := m.storage.PublishMirroredReplace(build.wipDir, bundleID, m.logger); err != nil {
		handle.Fail(err)
		return nil, check, err
	}
	handle.Step()

	handle.Complete()
	return &TransactionResult{BundleID: bundleID, Fingerprint: mf.Fingerprint, TaskID: taskID, Manifest: newManifest, Created: false}, check, nil
}

// checkRepoDeltas queries each GitHub-kind repo's remote HEAD and compares
// it against the recorded HeadSHA. Local and docs repos have no remote to
// query and are reported unchanged; a caller forcing a rebuild (Force)
// still rebuilds them since they may have changed on disk.
func (m *Manager) checkRepoDeltas(ctx context.Context, mf *manifest.Manifest) (*UpdateCheckResult, error) {
	result := &UpdateCheckResult{BundleID: mf.BundleID}
	fetcher := m.pipeline.GitHubFetcher()

	for _, repo := range mf.Repos {
		if repo.Kind != manifest.RepoKindGitHub {
			result.RepoDeltas = append(result.RepoDeltas, RepoDelta{
				RepoID: repo.ID, OldHeadSHA: repo.HeadSHA, NewHeadSHA: repo.HeadSHA,
				Note: "no remote to check for this repo kind",
			})
			continue
		}
		head, err := fetcher.RemoteHead(ctx, repo.ID)
		if err != nil {
			result.RepoDeltas = append(result.RepoDeltas, RepoDelta{
				RepoID: repo.ID, OldHeadSHA: repo.HeadSHA,
				Note: "remote head check failed: " + err.Error(),
			})
			continue
		}
		changed := head != repo.HeadSHA
		if changed {
			result.HasChanges = true
		}
		result.RepoDeltas = append(result.RepoDeltas, RepoDelta{
			RepoID: repo.ID, OldHeadSHA: repo.HeadSHA, NewHeadSHA: head, Changed: changed,
		})
	}
	return result, nil
}

// ingestForUpdate rebuilds every repo entry recorded in mf into build's wip
// directory. GitHub-kind repos are re-fetched from the remote, since that's
// the only repo kind Update can meaningfully detect drift for. Local and
// docs-kind repos have no stable remote location to re-fetch from, so they
// are rebuilt from the bundle's own prior raw/ snapshot — re-running
// normalization and chunking picks up any local edits to the bundle
// itself, but not the state of a local directory that has since moved or
// been deleted on disk; that limitation is inherent to rebuilding without
// a caller-supplied fresh path.
func (m *Manager) ingestForUpdate(ctx context.Context, build *buildState, bundleDir string, mf *manifest.Manifest) error {
	for _, repo := range mf.Repos {
		safeID := sanitizeRepoDir(repo.ID)
		rawDir := filepath.Join(build.wipDir, "repos", safeID, "raw")
		normDir := filepath.Join(build.wipDir, "repos", safeID, "norm")
		ingestOpts := ingest.Options{RawDir: rawDir, NormDir: normDir}

		var result ingest.Result
		var err error
		switch repo.Kind {
		case manifest.RepoKindGitHub:
			result, err = m.pipeline.IngestGitHub(ctx, repo.ID, ingestOpts)
		default:
			existingRaw := filepath.Join(bundleDir, "repos", safeID, "raw")
			result, err = m.pipeline.Rerun(ctx, existingRaw, repo, ingestOpts)
		}
		build.handle.Step()
		if err != nil {
			return fmt.Errorf("update ingest %q: %w", repo.ID, err)
		}
		build.repos = append(build.repos, result.Repo)
		for _, f := range result.Files {
			build.files = append(build.files, stagedFile{RepoID: result.Repo.ID, NormalizedFile: f})
		}
	}
	return nil
}

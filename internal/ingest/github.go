package ingest

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/storage/memory"

	bundleerrors "github.com/preflightbundle/preflightbundle/internal/errors"
	"github.com/preflightbundle/preflightbundle/internal/manifest"
	"github.com/preflightbundle/preflightbundle/internal/storage"
)

// GitHubFetcher fetches a GitHub repo's bytes into a raw directory. It
// tries a shallow clone first; on timeout or error it falls back to
// downloading the repo's zipball archive and extracting it in place.
type GitHubFetcher struct {
	httpClient *http.Client

	// cloneFunc and archiveFunc are overridable in tests so the fallback
	// path can be exercised without a real network round trip.
	cloneFunc   func(ctx context.Context, dir, repoID, ref string) (headSHA string, err error)
	archiveFunc func(ctx context.Context, dir, repoID, ref string) (headSHA string, err error)
}

// NewGitHubFetcher creates a fetcher backed by real go-git clone and
// net/http archive download implementations.
func NewGitHubFetcher() *GitHubFetcher {
	f := &GitHubFetcher{httpClient: &http.Client{Timeout: 5 * time.Minute}}
	f.cloneFunc = f.shallowClone
	f.archiveFunc = f.downloadArchive
	return f
}

// Fetch populates dir with repoID's working tree and returns the manifest
// Repo entry recording which strategy actually supplied the bytes.
func (f *GitHubFetcher) Fetch(ctx context.Context, dir, repoID string, opts Options) (manifest.Repo, error) {
	opts = opts.withDefaults()
	now := time.Now()
	repo := manifest.Repo{Kind: manifest.RepoKindGitHub, ID: repoID, FetchedAt: &now}

	cloneCtx, cancel := context.WithTimeout(ctx, opts.Timeout)
	headSHA, err := f.cloneFunc(cloneCtx, dir, repoID, opts.CloneRef)
	cancel()
	if err == nil {
		repo.Source = manifest.SourceGit
		repo.HeadSHA = headSHA
		return repo, nil
	}

	repo.Notes = append(repo.Notes, manifest.Note{
		Code:    "clone_fallback",
		Message: fmt.Sprintf("shallow clone failed (%v), falling back to archive download", err),
	})

	if rmErr := os.RemoveAll(dir); rmErr != nil {
		return repo, bundleerrors.New(bundleerrors.ErrCodeFilePermission, "failed to clear raw dir before archive fallback", rmErr)
	}
	if mkErr := os.MkdirAll(dir, 0o755); mkErr != nil {
		return repo, bundleerrors.New(bundleerrors.ErrCodeFilePermission, "failed to recreate raw dir for archive fallback", mkErr)
	}

	headSHA, archErr := f.archiveFunc(ctx, dir, repoID, opts.CloneRef)
	if archErr != nil {
		return repo, bundleerrors.New(bundleerrors.ErrCodeNetworkUnavailable,
			fmt.Sprintf("both clone and archive fallback failed for %s", repoID), archErr)
	}
	repo.Source = manifest.SourceArchive
	repo.HeadSHA = headSHA
	return repo, nil
}

// RemoteHead queries repoID's default-branch HEAD commit without cloning
// anything to disk, the ls-remote-equivalent Update's check-only mode
// uses to decide whether a repo has moved since the bundle was built.
func (f *GitHubFetcher) RemoteHead(ctx context.Context, repoID string) (string, error) {
	remote := git.NewRemote(memory.NewStorage(), &config.RemoteConfig{
		Name: "origin",
		URLs: []string{"https://github.com/" + repoID + ".git"},
	})

	type listResult struct {
		refs []*plumbing.Reference
		err  error
	}
	done := make(chan listResult, 1)
	go func() {
		refs, err := remote.List(&git.ListOptions{})
		done <- listResult{refs: refs, err: err}
	}()

	var refs []*plumbing.Reference
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-done:
		if res.err != nil {
			return "", res.err
		}
		refs = res.refs
	}
	for _, ref := range refs {
		if ref.Name() == plumbing.HEAD {
			if ref.Type() == plumbing.SymbolicReference {
				continue
			}
			return ref.Hash().String(), nil
		}
	}
	for _, ref := range refs {
		if ref.Hash() != (plumbing.Hash{}) && ref.Name().IsBranch() {
			return ref.Hash().String(), nil
		}
	}
	return "", fmt.Errorf("remote head: no resolvable reference for %s", repoID)
}

// shallowClone performs the equivalent of `git clone --depth=1
// [--branch ref]` against GitHub, using go-git so the pipeline never
// shells out to a git binary.
func (f *GitHubFetcher) shallowClone(ctx context.Context, dir, repoID, ref string) (string, error) {
	cloneOpts := &git.CloneOptions{
		URL:   "https://github.com/" + repoID + ".git",
		Depth: 1,
	}
	if ref != "" {
		cloneOpts.ReferenceName = plumbing.NewBranchReferenceName(ref)
		cloneOpts.SingleBranch = true
	}

	repo, err := git.PlainCloneContext(ctx, dir, false, cloneOpts)
	if err != nil {
		return "", err
	}
	head, err := repo.Head()
	if err != nil {
		return "", err
	}
	return head.Hash().String(), nil
}

// downloadArchive fetches repoID's zipball from the GitHub API and
// extracts it into dir, stripping the single top-level directory every
// GitHub zipball wraps its contents in.
func (f *GitHubFetcher) downloadArchive(ctx context.Context, dir, repoID, ref string) (string, error) {
	url := "https://api.github.com/repos/" + repoID + "/zipball"
	if ref != "" {
		url += "/" + ref
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("User-Agent", "preflightbundle")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("archive download: unexpected status %d", resp.StatusCode)
	}

	tmp, err := os.CreateTemp("", "preflightbundle-archive-*.zip")
	if err != nil {
		return "", err
	}
	tmpPath := tmp.Name()
	defer func() { _ = os.Remove(tmpPath) }()

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		_ = tmp.Close()
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}

	zr, err := zip.OpenReader(tmpPath)
	if err != nil {
		return "", err
	}
	defer func() { _ = zr.Close() }()

	return extractZipball(&zr.Reader, dir), nil
}

// extractZipball writes every entry of zr into destDir, dropping the
// common top-level directory GitHub's zipball wraps everything in, and
// returns the short SHA suffixed to that directory's name (best effort;
// empty if the name doesn't carry one).
func extractZipball(zr *zip.Reader, destDir string) string {
	var topDir, headSHA string

	for _, zf := range zr.File {
		parts := strings.SplitN(zf.Name, "/", 2)
		if topDir == "" {
			topDir = parts[0]
			if idx := strings.LastIndex(topDir, "-"); idx >= 0 {
				headSHA = topDir[idx+1:]
			}
		}
		if len(parts) < 2 || parts[1] == "" {
			continue // the top-level directory entry itself
		}

		target, err := storage.SafeJoin(destDir, filepath.FromSlash(parts[1]))
		if err != nil {
			continue // zip-slip guard: skip any entry escaping destDir
		}

		if zf.FileInfo().IsDir() {
			_ = os.MkdirAll(target, 0o755)
			continue
		}
		_ = extractZipEntry(zf, target)
	}

	return headSHA
}

func extractZipEntry(zf *zip.File, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	rc, err := zf.Open()
	if err != nil {
		return err
	}
	defer func() { _ = rc.Close() }()

	out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, zf.Mode())
	if err != nil {
		return err
	}
	defer func() { _ = out.Close() }()

	_, err = io.Copy(out, rc)
	return err
}

package ingest

import (
	"context"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/preflightbundle/preflightbundle/internal/manifest"
)

// Pipeline wires together a repo entry's fetch strategy (git clone,
// archive fallback, local copy, or docs upsert) with the shared
// normalize/classify stages every repo kind goes through afterward.
type Pipeline struct {
	github *GitHubFetcher
	local  *LocalCopier
	docs   *DocsUpserter
}

// NewPipeline creates a Pipeline with the real git/http-backed fetchers.
func NewPipeline() *Pipeline {
	return &Pipeline{
		github: NewGitHubFetcher(),
		local:  NewLocalCopier(),
		docs:   NewDocsUpserter(),
	}
}

// IngestGitHub clones (or archive-downloads) repoID into opts.RawDir, then
// normalizes the result into opts.NormDir.
func (p *Pipeline) IngestGitHub(ctx context.Context, repoID string, opts Options) (Result, error) {
	opts = opts.withDefaults()
	if err := os.MkdirAll(opts.RawDir, 0o755); err != nil {
		return Result{}, err
	}

	repo, err := p.github.Fetch(ctx, opts.RawDir, repoID, opts)
	if err != nil {
		return Result{Repo: repo}, err
	}

	files, notes, err := p.normalize(ctx, opts)
	repo.Notes = append(repo.Notes, notes...)
	return Result{Repo: repo, Files: files, Notes: notes}, err
}

// IngestLocal copies srcDir into opts.RawDir honoring ignore rules, then
// normalizes the result into opts.NormDir.
func (p *Pipeline) IngestLocal(ctx context.Context, srcDir string, opts Options) (Result, error) {
	opts = opts.withDefaults()
	if err := os.MkdirAll(opts.RawDir, 0o755); err != nil {
		return Result{}, err
	}

	now := time.Now()
	repo := manifest.Repo{
		Kind:      manifest.RepoKindLocal,
		ID:        srcDir,
		Source:    manifest.SourceLocal,
		FetchedAt: &now,
	}

	subNotes, err := p.local.Copy(ctx, srcDir, opts.RawDir)
	repo.Notes = append(repo.Notes, subNotes...)
	if err != nil {
		return Result{Repo: repo}, err
	}

	files, notes, err := p.normalize(ctx, opts)
	repo.Notes = append(repo.Notes, notes...)
	return Result{Repo: repo, Files: files, Notes: notes}, err
}

// IngestDocs upserts paths into opts.RawDir under the synthetic
// assistant/docs repo id, then normalizes the result into opts.NormDir.
func (p *Pipeline) IngestDocs(ctx context.Context, paths []string, opts Options) (Result, error) {
	opts = opts.withDefaults()
	if err := os.MkdirAll(opts.RawDir, 0o755); err != nil {
		return Result{}, err
	}

	now := time.Now()
	repo := manifest.Repo{
		Kind:      manifest.RepoKindDocs,
		ID:        DocsRepoID,
		Source:    manifest.SourceLocal,
		FetchedAt: &now,
	}

	placed, err := p.docs.Upsert(ctx, paths, opts.RawDir)
	if err != nil {
		return Result{Repo: repo}, err
	}
	if len(placed) < len(paths) {
		repo.Notes = append(repo.Notes, manifest.Note{
			Code:    "skip_unreadable",
			Message: "one or more document paths could not be stat'd and were skipped",
		})
	}

	files, notes, err := p.normalize(ctx, opts)
	repo.Notes = append(repo.Notes, notes...)
	return Result{Repo: repo, Files: files, Notes: notes}, err
}

// GitHubFetcher exposes the pipeline's GitHub fetcher so callers can query
// remote state (e.g. RemoteHead) without going through a full Fetch.
func (p *Pipeline) GitHubFetcher() *GitHubFetcher { return p.github }

// Rerun re-copies an already-fetched repo's raw bytes from a prior
// build (existingRawDir) into opts.RawDir and re-normalizes them. It is
// used by Update's rebuild for repo kinds with no stable remote to
// re-fetch from (local, docs): the bundle's own raw/ snapshot is the only
// durable record of what was ingested.
func (p *Pipeline) Rerun(ctx context.Context, existingRawDir string, repo manifest.Repo, opts Options) (Result, error) {
	opts = opts.withDefaults()
	if err := os.MkdirAll(opts.RawDir, 0o755); err != nil {
		return Result{}, err
	}
	if err := copyDirTree(existingRawDir, opts.RawDir); err != nil {
		return Result{Repo: repo}, err
	}

	files, notes, err := p.normalize(ctx, opts)
	repo.Notes = append(repo.Notes, notes...)
	return Result{Repo: repo, Files: files, Notes: notes}, err
}

func (p *Pipeline) normalize(ctx context.Context, opts Options) ([]NormalizedFile, []manifest.Note, error) {
	if err := os.MkdirAll(opts.NormDir, 0o755); err != nil {
		return nil, nil, err
	}
	return NewNormalizer(opts).Run(ctx, opts.RawDir, opts.NormDir)
}

func copyDirTree(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, relErr := filepath.Rel(src, path)
		if relErr != nil {
			return relErr
		}
		target := filepath.Join(dst, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		in, err := os.Open(path)
		if err != nil {
			return nil
		}
		defer in.Close()
		out, err := os.Create(target)
		if err != nil {
			return err
		}
		defer out.Close()
		_, err = io.Copy(out, in)
		return err
	})
}

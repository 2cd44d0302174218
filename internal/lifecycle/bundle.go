package lifecycle

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/preflightbundle/preflightbundle/internal/ast"
	"github.com/preflightbundle/preflightbundle/internal/chunk"
	bundleerrors "github.com/preflightbundle/preflightbundle/internal/errors"
	"github.com/preflightbundle/preflightbundle/internal/embed"
	"github.com/preflightbundle/preflightbundle/internal/evidence"
	"github.com/preflightbundle/preflightbundle/internal/fts"
	"github.com/preflightbundle/preflightbundle/internal/ingest"
	"github.com/preflightbundle/preflightbundle/internal/manifest"
	"github.com/preflightbundle/preflightbundle/internal/parser"
	"github.com/preflightbundle/preflightbundle/internal/semantic"
	"github.com/preflightbundle/preflightbundle/internal/storage"
)

// Manager owns every subsystem a bundle transaction touches and serializes
// transactions per fingerprint. It is the single entry point cmd/ and
// internal/mcp call into for create/update/repair/delete.
type Manager struct {
	storage  *storage.Storage
	locks    *FingerprintLocks
	tracker  *Tracker
	pipeline *ingest.Pipeline
	parsers  *parser.Registry
	code     chunk.Chunker
	embedder embed.Embedder
	logger   *slog.Logger
}

// NewManager wires a Manager over the given storage roots. embedder may be
// nil, in which case Create/Update skip the semantic index stage entirely
// rather than blocking readiness on it.
func NewManager(store *storage.Storage, parsers *parser.Registry, embedder embed.Embedder, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		storage:  store,
		locks:    NewFingerprintLocks(),
		tracker:  NewTracker(),
		pipeline: ingest.NewPipeline(),
		parsers:  parsers,
		code:     chunk.NewCodeChunker(),
		embedder: embedder,
		logger:   logger,
	}
}

// Tracker exposes the manager's progress tracker for status-polling tools.
func (m *Manager) Tracker() *Tracker { return m.tracker }

// Storage exposes the manager's storage roots for callers (the MCP server's
// search/trace/evidence tool handlers) that need to resolve a bundle
// directory without going through a transaction.
func (m *Manager) Storage() *storage.Storage { return m.storage }

// Embedder exposes the manager's embedder, or nil if it was built offline.
// preflight_semantic_search uses this to embed query text with whatever
// provider the bundle itself was indexed with.
func (m *Manager) Embedder() embed.Embedder { return m.embedder }

// Create runs the five-step create transaction: fingerprint and lock,
// de-dup check, ingest every input into a fresh wip directory, build every
// index, and finally commit the wip directory into place atomically across
// every storage root.
func (m *Manager) Create(ctx context.Context, opts CreateOptions) (*TransactionResult, error) {
	opts = opts.withDefaults()

	allRepoInputs := append(append([]string{}, opts.Repos...), opts.LocalPaths...)
	allRepoInputs = append(allRepoInputs, opts.DocPaths...)
	inputs := manifest.CanonicalInputs(allRepoInputs, opts.Libraries, opts.Topics)
	fingerprint := manifest.Fingerprint(inputs)

	primaryRoot := m.storage.Roots()[0]
	dedup := manifest.NewDedupIndex(primaryRoot)

	var release func()
	if opts.IfExists == IfExistsError {
		r, ok := m.locks.TryLock(fingerprint)
		if !ok {
			return nil, bundleerrors.BundleExists("", fingerprint)
		}
		release = r
	} else {
		release = m.locks.Lock(fingerprint)
	}
	held := true
	defer func() {
		if held {
			release()
		}
	}()

	if existingID, found, err := dedup.Lookup(fingerprint); err == nil && found {
		switch opts.IfExists {
		case IfExistsError:
			return nil, bundleerrors.BundleExists(existingID, fingerprint)
		case IfExistsReturnExisting:
			return m.loadExisting(existingID, fingerprint)
		case IfExistsUpdateExisting:
			// Update takes the same fingerprint lock, so release it first.
			held = false
			release()
			res, _, err := m.Update(ctx, existingID, UpdateOptions{Force: true})
			return res, err
		case IfExistsCreateNew:
			// fall through to a fresh build below
		}
	}

	bundleID := uuid.New().String()
	taskID := uuid.New().String()
	handle := m.tracker.Start(fingerprint, taskID)
	defer m.tracker.Forget(fingerprint)

	wipDir, err := storage.NewWipDir(primaryRoot)
	if err != nil {
		handle.Fail(err)
		return nil, err
	}

	build := &buildState{
		wipDir:   wipDir,
		handle:   handle,
		embedder: m.embedder,
		logger:   m.logger,
	}

	handle.SetStage(StageFetching, len(opts.Repos)+len(opts.LocalPaths)+boolToInt(len(opts.DocPaths) > 0))
	if err := m.ingestAll(ctx, build, opts); err != nil {
		handle.Fail(err)
		return nil, err
	}

	handle.SetStage(StageParsing, len(build.files))
	if err := m.chunkAll(ctx, build, opts); err != nil {
		handle.Fail(err)
		return nil, err
	}

	handle.SetStage(StageIndexing, 1)
	handle.Message("rebuilding full-text index")
	if err := m.buildFTS(ctx, build); err != nil {
		handle.Fail(err)
		return nil, err
	}

	if m.embedder != nil && m.embedder.Available(ctx) {
		handle.SetStage(StageEmbedding, len(build.chunks))
		if err := m.buildSemantic(ctx, build); err != nil {
			// Per the backpressure invariant, a failed semantic stage
			// defers SEM rather than blocking bundle readiness.
			m.logger.Warn("create: semantic index deferred", "bundleId", bundleID, "error", err)
		}
	}

	handle.SetStage(StageAnalyzing, len(build.files))
	if err := m.buildAST(ctx, build); err != nil {
		m.logger.Warn("create: ast analysis incomplete", "bundleId", bundleID, "error", err)
	}

	handle.SetStage(StagePublishing, 3)
	if err := m.writeDocs(build); err != nil {
		handle.Fail(err)
		return nil, err
	}
	handle.Step()

	now := now()
	mf := &manifest.Manifest{
		SchemaVersion: manifest.SchemaVersion,
		BundleID:      bundleID,
		Fingerprint:   fingerprint,
		CreatedAt:     now,
		UpdatedAt:     now,
		Inputs:        inputs,
		Repos:         build.repos,
		Tags:          opts.Tags,
		DisplayName:   opts.DisplayName,
	}
	if err := mf.Validate(); err != nil {
		handle.Fail(err)
		return nil, err
	}
	if err := writeManifest(build.wipDir, mf); err != nil {
		handle.Fail(err)
		return nil, err
	}
	handle.Step()

	if _, err := m.storage.PublishMirrored(build.wipDir, bundleID, m.logger); err != nil {
		handle.Fail(err)
		return nil, err
	}
	handle.Step()

	if err := dedup.Put(fingerprint, bundleID); err != nil {
		m.logger.Warn("create: dedup index update failed", "bundleId", bundleID, "error", err)
	}

	handle.Complete()
	return &TransactionResult{BundleID: bundleID, Fingerprint: fingerprint, TaskID: taskID, Manifest: mf, Created: true}, nil
}

// buildState accumulates everything a Create/Update transaction produces
// before it is ready to be written out, so each stage can hand its output
// to the next without re-reading disk.
type buildState struct {
	wipDir   string
	handle   *Handle
	embedder embed.Embedder
	logger   *slog.Logger

	repos  []manifest.Repo
	files  []stagedFile
	chunks []*chunk.Chunk
}

type stagedFile struct {
	RepoID string
	ingest.NormalizedFile
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func (m *Manager) loadExisting(bundleID, fingerprint string) (*TransactionResult, error) {
	bundleDir, ok := m.storage.ResolveBundleRoot(bundleID)
	if !ok {
		return nil, bundleerrors.BundleNotFound(bundleID)
	}
	mf, err := readManifest(bundleDir)
	if err != nil {
		return nil, err
	}
	return &TransactionResult{BundleID: bundleID, Fingerprint: fingerprint, Manifest: mf, Created: false}, nil
}

// ingestAll runs every configured input through the ingest pipeline into
// wipDir/repos/<id>/{raw,norm}, accumulating manifest repo entries and
// normalized files onto build.
func (m *Manager) ingestAll(ctx context.Context, build *buildState, opts CreateOptions) error {
	ingestOne := func(repoID string, run func(dirOpts ingest.Options) (ingest.Result, error)) error {
		safeID := sanitizeRepoDir(repoID)
		rawDir := filepath.Join(build.wipDir, "repos", safeID, "raw")
		normDir := filepath.Join(build.wipDir, "repos", safeID, "norm")

		result, err := run(ingest.Options{RawDir: rawDir, NormDir: normDir})
		build.handle.Step()
		if err != nil {
			return fmt.Errorf("ingest %q: %w", repoID, err)
		}
		build.repos = append(build.repos, result.Repo)
		for _, f := range result.Files {
			build.files = append(build.files, stagedFile{RepoID: result.Repo.ID, NormalizedFile: f})
		}
		return nil
	}

	for _, repo := range opts.Repos {
		repoID := manifest.CanonicalizeRepoID(repo)
		if err := ingestOne(repoID, func(o ingest.Options) (ingest.Result, error) {
			return m.pipeline.IngestGitHub(ctx, repoID, o)
		}); err != nil {
			return err
		}
	}

	for _, path := range opts.LocalPaths {
		src := path
		if err := ingestOne(filepath.Base(path), func(o ingest.Options) (ingest.Result, error) {
			return m.pipeline.IngestLocal(ctx, src, o)
		}); err != nil {
			return err
		}
	}

	if len(opts.DocPaths) > 0 {
		if err := ingestOne(ingest.DocsRepoID, func(o ingest.Options) (ingest.Result, error) {
			return m.pipeline.IngestDocs(ctx, opts.DocPaths, o)
		}); err != nil {
			return err
		}
	}
	return nil
}

// sanitizeRepoDir turns a repo identifier into a filesystem-safe directory
// name, since "owner/repo" would otherwise be interpreted as a subpath.
func sanitizeRepoDir(id string) string {
	return strings.NewReplacer("/", "__", "\\", "__", ":", "_").Replace(id)
}

// chunkAll dispatches every staged file to the code chunker or the
// parser/bridge pair, accumulating chunk.Chunk results for the FTS,
// semantic, and AST stages that follow.
func (m *Manager) chunkAll(ctx context.Context, build *buildState, opts CreateOptions) error {
	bridgeOpts := parser.ParseOptions{AllowVLM: opts.AllowVLM, AllowOCR: opts.AllowOCR, AllowCloud: opts.AllowCloud}
	bridge := chunk.NewBridge(m.parsers, bridgeOpts)

	for _, f := range build.files {
		build.handle.Step()
		if f.Classification == ingest.ClassAsset {
			continue
		}

		var chunks []*chunk.Chunk
		var err error
		switch {
		case f.Classification == ingest.ClassCode:
			content, readErr := os.ReadFile(f.AbsPath)
			if readErr != nil {
				m.logger.Warn("chunk: skip unreadable file", "path", f.AbsPath, "error", readErr)
				continue
			}
			chunks, err = m.code.Chunk(ctx, &chunk.FileInput{Path: f.RelPath, Content: content, Language: f.Language})
		case bridge.CanHandle(f.AbsPath):
			chunks, err = bridge.Chunk(ctx, f.AbsPath)
		default:
			content, readErr := os.ReadFile(f.AbsPath)
			if readErr != nil {
				m.logger.Warn("chunk: skip unreadable file", "path", f.AbsPath, "error", readErr)
				continue
			}
			generic := chunk.NewGenericChunker()
			chunks, err = generic.Chunk(ctx, &chunk.FileInput{Path: f.RelPath, Content: content, Language: f.Language})
		}
		if err != nil {
			m.logger.Warn("chunk: failed", "path", f.RelPath, "error", err)
			continue
		}
		for _, c := range chunks {
			if c.Metadata == nil {
				c.Metadata = map[string]string{}
			}
			c.Metadata["repo_id"] = f.RepoID
		}
		build.chunks = append(build.chunks, chunks...)
	}
	return nil
}

// buildFTS projects every staged file's normalized bytes into fts.Line
// rows and rebuilds the bundle's full-text index.
func (m *Manager) buildFTS(ctx context.Context, build *buildState) error {
	idxPath := filepath.Join(build.wipDir, "indexes", "search.sqlite3")
	if err := os.MkdirAll(filepath.Dir(idxPath), 0o755); err != nil {
		return err
	}
	idx, err := fts.Open(idxPath)
	if err != nil {
		return bundleerrors.IndexCorrupt("search.sqlite3", err)
	}
	defer idx.Close()

	var lines []fts.Line
	var metas []fts.FileMeta
	for _, f := range build.files {
		if f.Classification == ingest.ClassAsset {
			continue
		}
		content, readErr := os.ReadFile(f.AbsPath)
		if readErr != nil {
			continue
		}
		kind := fts.KindDoc
		if f.Classification == ingest.ClassCode {
			kind = fts.KindCode
		}
		textLines := strings.Split(string(content), "\n")
		for i, text := range textLines {
			lines = append(lines, fts.Line{
				BundleRelPath: f.RelPath,
				Kind:          kind,
				RepoID:        f.RepoID,
				LineNo:        i + 1,
				Text:          text,
			})
		}
		metas = append(metas, fts.FileMeta{Path: f.RelPath, Kind: kind, RepoID: f.RepoID, Lines: len(textLines)})
	}

	return idx.Rebuild(ctx, lines, metas)
}

// buildSemantic embeds every accumulated chunk and upserts it into the
// bundle's semantic index. A failure here is non-fatal to Create: the
// caller logs and moves on, leaving the bundle queryable via FTS alone.
func (m *Manager) buildSemantic(ctx context.Context, build *buildState) error {
	if len(build.chunks) == 0 {
		return nil
	}
	idxPath := filepath.Join(build.wipDir, "indexes", "semantic.sqlite3")
	if err := os.MkdirAll(filepath.Dir(idxPath), 0o755); err != nil {
		return err
	}
	idx, err := semantic.OpenSQLiteIndex(idxPath)
	if err != nil {
		return err
	}
	defer idx.Close()

	texts := make([]string, len(build.chunks))
	for i, c := range build.chunks {
		texts[i] = c.Content
	}
	vectors, err := m.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return err
	}

	items := make([]semantic.Item, 0, len(build.chunks))
	for i, c := range build.chunks {
		if i >= len(vectors) {
			break
		}
		items = append(items, semantic.Item{
			ChunkID:   c.ID,
			Kind:      string(c.ContentType),
			RepoID:    c.Metadata["repo_id"],
			Path:      c.FilePath,
			StartLine: c.StartLine,
			EndLine:   c.EndLine,
			Vector:    vectors[i],
		})
		build.handle.Step()
	}
	return idx.Upsert(ctx, items)
}

// buildAST runs the AST core over every supported code file and writes
// the accumulated facts to analysis/FACTS.json.
func (m *Manager) buildAST(ctx context.Context, build *buildState) error {
	analyzer := ast.NewAnalyzer()
	defer analyzer.Close()

	var facts []*ast.FileFacts
	for _, f := range build.files {
		build.handle.Step()
		if f.Classification != ingest.ClassCode || !analyzer.SupportsPath(f.AbsPath) {
			continue
		}
		source, err := os.ReadFile(f.AbsPath)
		if err != nil {
			continue
		}
		ff, err := analyzer.Analyze(ctx, f.RelPath, source)
		if err != nil {
			m.logger.Debug("ast: skip file", "path", f.RelPath, "error", err)
			continue
		}
		facts = append(facts, ff)
	}

	analysisDir := filepath.Join(build.wipDir, "analysis")
	if err := os.MkdirAll(analysisDir, 0o755); err != nil {
		return err
	}
	raw, err := manifest.MarshalCanonical(facts)
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(analysisDir, "FACTS.json"), raw, 0o644); err != nil {
		return err
	}

	graph := evidence.BuildDependencyGraph(facts)
	return evidence.WriteDependencyGraph(build.wipDir, graph)
}

// Package mcp implements the Model Context Protocol server exposing the
// preflight_* tool surface: bundle lifecycle management, full-text and
// semantic search, evidence/trace queries, and AST-backed call-graph
// navigation, all wrapped in a uniform response envelope.
package mcp

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/preflightbundle/preflightbundle/internal/ast"
	bundleerrors "github.com/preflightbundle/preflightbundle/internal/errors"
	"github.com/preflightbundle/preflightbundle/internal/evidence"
	"github.com/preflightbundle/preflightbundle/internal/fts"
	"github.com/preflightbundle/preflightbundle/internal/lifecycle"
	"github.com/preflightbundle/preflightbundle/internal/semantic"
	"github.com/preflightbundle/preflightbundle/internal/storage"
	"github.com/preflightbundle/preflightbundle/internal/telemetry"
	"github.com/preflightbundle/preflightbundle/pkg/version"
)

// Server is the MCP server exposing the preflight_* tool surface. It holds
// a shared offline lifecycle.Manager for read-only tools (list/search/
// trace/repair/delete/status) and builds a fresh online manager per
// create/update call so embedder construction never blocks startup.
type Server struct {
	mcp     *mcp.Server
	manager *lifecycle.Manager
	root    string
	metrics *telemetry.QueryMetrics
	logger  *slog.Logger

	mu         sync.RWMutex
	callGraphs map[string]*callGraphCache
}

// callGraphCache is the in-memory, bundle-scoped call-graph index built on
// demand by preflight_build_call_graph and reused by the query/extract/
// interface-summary tools until the server restarts.
type callGraphCache struct {
	index           *ast.Index
	extensionPoints []ast.ExtensionPoint
	filesIndexed    int
}

// NewServer creates the MCP server bound to mgr (the shared offline
// manager built by newManager(ctx, root, true)) and registers every
// preflight_* tool.
func NewServer(mgr *lifecycle.Manager, root string) (*Server, error) {
	if mgr == nil {
		return nil, fmt.Errorf("bundle manager is required")
	}

	s := &Server{
		manager:    mgr,
		root:       root,
		logger:     slog.Default(),
		callGraphs: make(map[string]*callGraphCache),
	}

	s.mcp = mcp.NewServer(&mcp.Implementation{
		Name:    "preflightbundle",
		Version: version.Version,
	}, nil)

	s.registerTools()
	s.registerResources()

	if m, err := s.openTelemetry(); err == nil && m != nil {
		s.metrics = m
	}

	return s, nil
}

// Serve starts the server over the given transport.
func (s *Server) Serve(ctx context.Context, transport string, port int) error {
	switch transport {
	case "stdio", "":
		err := s.mcp.Run(ctx, &mcp.StdioTransport{})
		if err != nil && err != context.Canceled {
			s.logger.Error("mcp server stopped with error", slog.String("error", err.Error()))
		}
		return err
	case "sse":
		return fmt.Errorf("sse transport not yet implemented (port %d requested)", port)
	default:
		return fmt.Errorf("unknown transport: %s (supported: stdio)", transport)
	}
}

// Close releases server-held resources; the MCP connection itself stops
// when its context is canceled.
func (s *Server) Close() error {
	if s.metrics != nil {
		return s.metrics.Close()
	}
	return nil
}

func newRequestID() string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

// repoDirName mirrors lifecycle's private sanitizeRepoDir so the server can
// locate a repo's raw/norm directories without importing lifecycle
// internals.
func repoDirName(id string) string {
	return strings.NewReplacer("/", "__", "\\", "__", ":", "_").Replace(id)
}

// registerTools wires every preflight_* tool onto the underlying MCP
// server.
func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "preflight_list_bundles",
		Description: "List evidence bundles available on this machine, optionally filtered by tag.",
	}, s.toolListBundles)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "preflight_create_bundle",
		Description: "Create a new evidence bundle from repos, local paths, and/or loose documents.",
	}, s.toolCreateBundle)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "preflight_update_bundle",
		Description: "Refresh an existing bundle's repos to their current remote heads, or check for pending deltas.",
	}, s.toolUpdateBundle)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "preflight_repair_bundle",
		Description: "Validate a bundle's required artifacts, optionally regenerating the ones found missing.",
	}, s.toolRepairBundle)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "preflight_delete_bundle",
		Description: "Schedule a bundle for deletion; removal completes in the background.",
	}, s.toolDeleteBundle)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "preflight_read_files",
		Description: "Read one or more files from a bundle, by full content, line range, symbol, or outline.",
	}, s.toolReadFiles)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "preflight_search_bundle",
		Description: "Full-text search a single bundle's indexed docs and code.",
	}, s.toolSearchBundle)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "preflight_search_by_tags",
		Description: "Full-text search across every bundle carrying a given tag.",
	}, s.toolSearchByTags)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "preflight_search_and_read",
		Description: "Search a bundle and return each hit together with the source excerpt around it.",
	}, s.toolSearchAndRead)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "preflight_semantic_search",
		Description: "Dense-vector nearest-neighbor search over a bundle's embedded chunks.",
	}, s.toolSemanticSearch)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "preflight_trace_upsert",
		Description: "Record one or more evidence-grounded trace edges (imports/calls/implements/...) in a bundle.",
	}, s.toolTraceUpsert)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "preflight_trace_query",
		Description: "Query trace edges within a bundle, or fan out across every bundle when bundleId is omitted.",
	}, s.toolTraceQuery)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "preflight_evidence_dependency_graph",
		Description: "Return a bundle's file-level import/export dependency graph.",
	}, s.toolDependencyGraph)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "preflight_build_call_graph",
		Description: "Parse a bundle's normalized sources and build its in-memory call-graph index.",
	}, s.toolBuildCallGraph)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "preflight_query_call_graph",
		Description: "Query a bundle's call graph for a symbol's incoming or outgoing calls.",
	}, s.toolQueryCallGraph)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "preflight_extract_code",
		Description: "Extract a single symbol's exact source text from a bundle.",
	}, s.toolExtractCode)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "preflight_interface_summary",
		Description: "List the extension points (interfaces, trait bounds, abstract classes) a bundle declares.",
	}, s.toolInterfaceSummary)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "preflight_cleanup_orphans",
		Description: "Sweep deferred-delete and orphaned wip directories across every configured storage root.",
	}, s.toolCleanupOrphans)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "preflight_get_task_status",
		Description: "Poll the progress of a background create/update/repair/delete task.",
	}, s.toolGetTaskStatus)
}

// ---- bundle lifecycle tools ----

func (s *Server) toolListBundles(ctx context.Context, _ *mcp.CallToolRequest, input ListBundlesInput) (*mcp.CallToolResult, evidence.Envelope[ListBundlesOutput], error) {
	start := time.Now()
	requestID := newRequestID()

	summaries, err := s.manager.List()
	if err != nil {
		return nil, failure[ListBundlesOutput]("preflight_list_bundles", requestID, start, err), nil
	}

	limit := input.Limit
	if limit <= 0 {
		limit = 50
	}

	out := ListBundlesOutput{}
	for _, sum := range summaries {
		if input.Tag != "" && !hasTag(sum.Manifest.Tags, input.Tag) {
			continue
		}
		out.Bundles = append(out.Bundles, BundleListEntry{
			BundleID:    sum.Manifest.BundleID,
			DisplayName: sum.Manifest.DisplayName,
			Fingerprint: sum.Manifest.Fingerprint,
			Tags:        sum.Manifest.Tags,
			RepoCount:   len(sum.Manifest.Repos),
			UpdatedAt:   sum.Manifest.UpdatedAt.UTC().Format(time.RFC3339),
		})
		if len(out.Bundles) >= limit {
			break
		}
	}

	return nil, evidence.Success("preflight_list_bundles", requestID, start, out), nil
}

func hasTag(tags []string, tag string) bool {
	for _, t := range tags {
		if t == tag {
			return true
		}
	}
	return false
}

func (s *Server) toolCreateBundle(ctx context.Context, _ *mcp.CallToolRequest, input CreateBundleInput) (*mcp.CallToolResult, evidence.Envelope[BundleResultOutput], error) {
	start := time.Now()
	requestID := newRequestID()

	mgr, err := s.onlineManager(ctx)
	if err != nil {
		return nil, failure[BundleResultOutput]("preflight_create_bundle", requestID, start, err), nil
	}

	opts := lifecycle.CreateOptions{
		Repos:       input.Repos,
		LocalPaths:  input.LocalPaths,
		DocPaths:    input.DocPaths,
		Libraries:   input.Libraries,
		Topics:      input.Topics,
		Tags:        input.Tags,
		DisplayName: input.DisplayName,
		IfExists:    lifecycle.IfExists(input.IfExists),
	}

	result, err := mgr.Create(ctx, opts)
	if err != nil {
		return nil, failure[BundleResultOutput]("preflight_create_bundle", requestID, start, err), nil
	}

	out := BundleResultOutput{
		BundleID:    result.BundleID,
		Fingerprint: result.Fingerprint,
		TaskID:      result.TaskID,
		Created:     result.Created,
	}
	return nil, evidence.Success("preflight_create_bundle", requestID, start, out).WithBundleID(out.BundleID), nil
}

func (s *Server) toolUpdateBundle(ctx context.Context, _ *mcp.CallToolRequest, input UpdateBundleInput) (*mcp.CallToolResult, evidence.Envelope[BundleResultOutput], error) {
	start := time.Now()
	requestID := newRequestID()

	if input.BundleID == "" {
		return nil, failure[BundleResultOutput]("preflight_update_bundle", requestID, start,
			bundleerrors.ValidationError("bundleId is required", nil)), nil
	}

	mgr, err := s.onlineManager(ctx)
	if err != nil {
		return nil, failure[BundleResultOutput]("preflight_update_bundle", requestID, start, err), nil
	}

	result, check, err := mgr.Update(ctx, input.BundleID, lifecycle.UpdateOptions{
		CheckOnly: input.CheckOnly,
		Force:     input.Force,
	})
	if err != nil {
		return nil, failure[BundleResultOutput]("preflight_update_bundle", requestID, start, err), nil
	}

	if input.CheckOnly {
		env := evidence.Success("preflight_update_bundle", requestID, start, BundleResultOutput{BundleID: input.BundleID})
		env = env.WithBundleID(input.BundleID)
		if check != nil && check.HasChanges {
			env = env.WithNextAction(evidence.NextAction{
				Tool:   "preflight_update_bundle",
				Args:   map[string]any{"bundleId": input.BundleID},
				Reason: "remote heads have moved since this bundle was built",
			})
		}
		return nil, env, nil
	}

	out := BundleResultOutput{
		BundleID:    result.BundleID,
		Fingerprint: result.Fingerprint,
		TaskID:      result.TaskID,
		Created:     result.Created,
	}
	return nil, evidence.Success("preflight_update_bundle", requestID, start, out).WithBundleID(out.BundleID), nil
}

func (s *Server) toolRepairBundle(ctx context.Context, _ *mcp.CallToolRequest, input RepairBundleInput) (*mcp.CallToolResult, evidence.Envelope[RepairBundleOutput], error) {
	start := time.Now()
	requestID := newRequestID()

	mode := lifecycle.RepairValidate
	if input.Mode == string(lifecycle.RepairFix) {
		mode = lifecycle.RepairFix
	}

	result, err := s.manager.Repair(ctx, input.BundleID, mode)
	if err != nil {
		return nil, failure[RepairBundleOutput]("preflight_repair_bundle", requestID, start, err), nil
	}

	out := RepairBundleOutput{
		BundleID:    result.BundleID,
		Missing:     result.Missing,
		Regenerated: result.Regenerated,
	}
	env := evidence.Success("preflight_repair_bundle", requestID, start, out).WithBundleID(input.BundleID)
	if len(result.Missing) > 0 && mode == lifecycle.RepairValidate {
		env = env.WithNextAction(evidence.NextAction{
			Tool:   "preflight_repair_bundle",
			Args:   map[string]any{"bundleId": input.BundleID, "mode": "repair"},
			Reason: "required artifacts are missing",
		})
	}
	return nil, env, nil
}

func (s *Server) toolDeleteBundle(ctx context.Context, _ *mcp.CallToolRequest, input DeleteBundleInput) (*mcp.CallToolResult, evidence.Envelope[DeleteBundleOutput], error) {
	start := time.Now()
	requestID := newRequestID()

	if err := s.manager.Delete(input.BundleID); err != nil {
		return nil, failure[DeleteBundleOutput]("preflight_delete_bundle", requestID, start, err), nil
	}

	s.mu.Lock()
	delete(s.callGraphs, input.BundleID)
	s.mu.Unlock()

	out := DeleteBundleOutput{BundleID: input.BundleID, Deleting: true}
	return nil, evidence.Success("preflight_delete_bundle", requestID, start, out).WithBundleID(input.BundleID), nil
}

func (s *Server) toolGetTaskStatus(ctx context.Context, _ *mcp.CallToolRequest, input GetTaskStatusInput) (*mcp.CallToolResult, evidence.Envelope[TaskStatusOutput], error) {
	start := time.Now()
	requestID := newRequestID()

	var progress lifecycle.Progress
	var ok bool
	switch {
	case input.TaskID != "":
		progress, ok = s.manager.Tracker().ByTaskID(input.TaskID)
	case input.Fingerprint != "":
		progress, ok = s.manager.Tracker().ByFingerprint(input.Fingerprint)
	default:
		return nil, failure[TaskStatusOutput]("preflight_get_task_status", requestID, start,
			bundleerrors.ValidationError("one of taskId or fingerprint is required", nil)), nil
	}
	if !ok {
		return nil, failure[TaskStatusOutput]("preflight_get_task_status", requestID, start,
			bundleerrors.New(bundleerrors.ErrCodeTaskFailed, "no task found for the given identifier", nil)), nil
	}

	out := TaskStatusOutput{
		TaskID:      progress.TaskID,
		Fingerprint: progress.Fingerprint,
		Stage:       string(progress.Stage),
		Percent:     progress.Percent,
		Message:     progress.Message,
		Error:       progress.Error,
	}
	return nil, evidence.Success("preflight_get_task_status", requestID, start, out), nil
}

func (s *Server) toolCleanupOrphans(ctx context.Context, _ *mcp.CallToolRequest, input CleanupOrphansInput) (*mcp.CallToolResult, evidence.Envelope[CleanupOrphansOutput], error) {
	start := time.Now()
	requestID := newRequestID()

	grace := time.Duration(input.GraceSeconds) * time.Second
	if grace <= 0 {
		grace = 5 * time.Minute
	}

	if err := s.manager.Storage().StartupSweep(ctx, s.logger, grace); err != nil {
		return nil, failure[CleanupOrphansOutput]("preflight_cleanup_orphans", requestID, start, err), nil
	}

	out := CleanupOrphansOutput{RootsSwept: len(s.manager.Storage().Roots())}
	return nil, evidence.Success("preflight_cleanup_orphans", requestID, start, out), nil
}

// ---- read / search tools ----

func (s *Server) toolReadFiles(ctx context.Context, _ *mcp.CallToolRequest, input ReadFilesInput) (*mcp.CallToolResult, evidence.Envelope[ReadFilesOutput], error) {
	start := time.Now()
	requestID := newRequestID()

	bundleDir, ok := s.manager.Storage().ResolveBundleRoot(input.BundleID)
	if !ok {
		return nil, failure[ReadFilesOutput]("preflight_read_files", requestID, start, bundleerrors.BundleNotFound(input.BundleID)), nil
	}

	out := ReadFilesOutput{}
	for _, raw := range input.Paths {
		relPath, rng, symbol := splitPathSuffix(raw)
		diskPath, err := storage.SafeJoin(bundleDir, filepath.Join("repos", repoDirName(input.RepoID), "norm", relPath))
		if err != nil {
			return nil, failure[ReadFilesOutput]("preflight_read_files", requestID, start, err), nil
		}

		content, err := os.ReadFile(diskPath)
		if err != nil {
			return nil, failure[ReadFilesOutput]("preflight_read_files", requestID, start,
				bundleerrors.IOError("failed to read "+relPath, err)), nil
		}

		if input.Outline {
			outline, err := s.fileOutline(ctx, input.BundleID, relPath, content)
			if err != nil {
				return nil, failure[ReadFilesOutput]("preflight_read_files", requestID, start, err), nil
			}
			out.Files = append(out.Files, FileReadOutput{Path: relPath, Outline: outline})
			continue
		}

		if symbol != "" {
			entry, err := s.extractSymbolFromSource(input.BundleID, relPath, string(content), symbol)
			if err != nil {
				return nil, failure[ReadFilesOutput]("preflight_read_files", requestID, start, err), nil
			}
			out.Files = append(out.Files, *entry)
			continue
		}

		lines := strings.Split(string(content), "\n")
		startLine, endLine := 1, len(lines)
		if rng != "" {
			startLine, endLine, err = parseRange(rng, len(lines))
			if err != nil {
				return nil, failure[ReadFilesOutput]("preflight_read_files", requestID, start, err), nil
			}
		}

		body := strings.Join(lines[startLine-1:endLine], "\n")
		if input.WithLineNumbers {
			body = withLineNumbers(lines[startLine-1:endLine], startLine)
		}

		out.Files = append(out.Files, FileReadOutput{
			Path:      relPath,
			StartLine: startLine,
			EndLine:   endLine,
			Content:   body,
		})
	}

	return nil, evidence.Success("preflight_read_files", requestID, start, out).WithBundleID(input.BundleID), nil
}

func splitPathSuffix(raw string) (path, rangeSpec, symbol string) {
	idx := strings.LastIndex(raw, "#")
	if idx < 0 {
		return raw, "", ""
	}
	path = raw[:idx]
	suffix := raw[idx+1:]
	if _, _, err := parseRangeSpec(suffix); err == nil {
		return path, suffix, ""
	}
	return path, "", suffix
}

func parseRangeSpec(spec string) (int, int, error) {
	parts := strings.SplitN(spec, "-", 2)
	start, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, err
	}
	if len(parts) == 1 {
		return start, start, nil
	}
	end, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, err
	}
	return start, end, nil
}

func parseRange(spec string, maxLine int) (int, int, error) {
	start, end, err := parseRangeSpec(spec)
	if err != nil {
		return 0, 0, bundleerrors.New(bundleerrors.ErrCodeInvalidRange, "malformed line range: "+spec, err)
	}
	if start < 1 {
		start = 1
	}
	if end > maxLine {
		end = maxLine
	}
	if start > end {
		return 0, 0, bundleerrors.New(bundleerrors.ErrCodeInvalidRange, "empty line range: "+spec, nil)
	}
	return start, end, nil
}

func withLineNumbers(lines []string, startLine int) string {
	var b strings.Builder
	for i, l := range lines {
		fmt.Fprintf(&b, "%6d\t%s\n", startLine+i, l)
	}
	return strings.TrimSuffix(b.String(), "\n")
}

func (s *Server) toolSearchBundle(ctx context.Context, _ *mcp.CallToolRequest, input SearchBundleInput) (*mcp.CallToolResult, evidence.Envelope[SearchBundleOutput], error) {
	start := time.Now()
	requestID := newRequestID()

	hits, err := s.searchOneBundle(ctx, input.BundleID, input.Query, input.Scope, input.Limit)
	if err != nil {
		return nil, failure[SearchBundleOutput]("preflight_search_bundle", requestID, start, err), nil
	}

	s.recordSearchTelemetry(input.Query, len(hits), time.Since(start))

	return nil, evidence.Success("preflight_search_bundle", requestID, start, SearchBundleOutput{Hits: hits}).WithBundleID(input.BundleID), nil
}

func (s *Server) toolSearchByTags(ctx context.Context, _ *mcp.CallToolRequest, input SearchByTagsInput) (*mcp.CallToolResult, evidence.Envelope[SearchByTagsOutput], error) {
	start := time.Now()
	requestID := newRequestID()

	summaries, err := s.manager.List()
	if err != nil {
		return nil, failure[SearchByTagsOutput]("preflight_search_by_tags", requestID, start, err), nil
	}

	limit := input.Limit
	if limit <= 0 {
		limit = 20
	}

	var all []SearchHitOutput
	for _, sum := range summaries {
		if input.Tag != "" && !hasTag(sum.Manifest.Tags, input.Tag) {
			continue
		}
		hits, err := s.searchOneBundle(ctx, sum.Manifest.BundleID, input.Query, input.Scope, limit)
		if err != nil {
			continue
		}
		all = append(all, hits...)
		if len(all) >= limit {
			break
		}
	}
	if len(all) > limit {
		all = all[:limit]
	}

	s.recordSearchTelemetry(input.Query, len(all), time.Since(start))

	return nil, evidence.Success("preflight_search_by_tags", requestID, start, SearchByTagsOutput{Hits: all}), nil
}

func (s *Server) toolSearchAndRead(ctx context.Context, _ *mcp.CallToolRequest, input SearchAndReadInput) (*mcp.CallToolResult, evidence.Envelope[SearchAndReadOutput], error) {
	start := time.Now()
	requestID := newRequestID()

	hits, err := s.searchOneBundle(ctx, input.BundleID, input.Query, input.Scope, input.Limit)
	if err != nil {
		return nil, failure[SearchAndReadOutput]("preflight_search_and_read", requestID, start, err), nil
	}

	context := input.ContextLines
	if context <= 0 {
		context = 3
	}

	bundleDir, ok := s.manager.Storage().ResolveBundleRoot(input.BundleID)
	if !ok {
		return nil, failure[SearchAndReadOutput]("preflight_search_and_read", requestID, start, bundleerrors.BundleNotFound(input.BundleID)), nil
	}

	out := SearchAndReadOutput{}
	for _, h := range hits {
		diskPath, err := storage.SafeJoin(bundleDir, filepath.Join("repos", repoDirName(h.Repo), "norm", h.Path))
		if err != nil {
			out.Results = append(out.Results, SearchAndReadEntry{Hit: h})
			continue
		}
		content, err := os.ReadFile(diskPath)
		if err != nil {
			out.Results = append(out.Results, SearchAndReadEntry{Hit: h})
			continue
		}
		lines := strings.Split(string(content), "\n")
		lo := h.LineNo - context
		if lo < 1 {
			lo = 1
		}
		hi := h.LineNo + context
		if hi > len(lines) {
			hi = len(lines)
		}
		excerpt := ""
		if lo <= hi && lo >= 1 && hi <= len(lines) {
			excerpt = strings.Join(lines[lo-1:hi], "\n")
		}
		out.Results = append(out.Results, SearchAndReadEntry{Hit: h, Excerpt: excerpt})
	}

	s.recordSearchTelemetry(input.Query, len(hits), time.Since(start))

	return nil, evidence.Success("preflight_search_and_read", requestID, start, out).WithBundleID(input.BundleID), nil
}

func (s *Server) searchOneBundle(ctx context.Context, bundleID, query, scope string, limit int) ([]SearchHitOutput, error) {
	if bundleID == "" {
		return nil, bundleerrors.ValidationError("bundleId is required", nil)
	}
	bundleDir, ok := s.manager.Storage().ResolveBundleRoot(bundleID)
	if !ok {
		return nil, bundleerrors.BundleNotFound(bundleID)
	}
	indexPath := filepath.Join(bundleDir, "indexes", "search.sqlite3")
	if _, err := os.Stat(indexPath); err != nil {
		return nil, bundleerrors.IndexMissing("indexes/search.sqlite3")
	}

	idx, err := fts.Open(indexPath)
	if err != nil {
		return nil, err
	}
	defer idx.Close()

	if limit <= 0 {
		limit = 20
	}
	expr, _, _ := fts.BuildQuery(query, fts.DefaultMaxQueryTokens)
	ftsScope := fts.ScopeAll
	switch scope {
	case "docs":
		ftsScope = fts.ScopeDocs
	case "code":
		ftsScope = fts.ScopeCode
	}

	hits, err := idx.Search(ctx, expr, ftsScope, limit)
	if err != nil {
		return nil, err
	}

	out := make([]SearchHitOutput, 0, len(hits))
	for _, h := range hits {
		out = append(out, SearchHitOutput{
			Kind:    string(h.Kind),
			Repo:    h.Repo,
			Path:    h.Path,
			LineNo:  h.LineNo,
			Snippet: h.Snippet,
			Score:   h.Score,
			URI:     h.URI,
		})
	}
	return out, nil
}

func (s *Server) recordSearchTelemetry(query string, resultCount int, elapsed time.Duration) {
	if s.metrics == nil {
		return
	}
	s.metrics.Record(telemetry.QueryEvent{
		Query:       query,
		QueryType:   telemetry.QueryTypeLexical,
		ResultCount: resultCount,
		Latency:     elapsed,
		Timestamp:   time.Now(),
	})
}

func (s *Server) toolSemanticSearch(ctx context.Context, _ *mcp.CallToolRequest, input SemanticSearchInput) (*mcp.CallToolResult, evidence.Envelope[SemanticSearchOutput], error) {
	start := time.Now()
	requestID := newRequestID()

	bundleDir, ok := s.manager.Storage().ResolveBundleRoot(input.BundleID)
	if !ok {
		return nil, failure[SemanticSearchOutput]("preflight_semantic_search", requestID, start, bundleerrors.BundleNotFound(input.BundleID)), nil
	}

	indexPath := filepath.Join(bundleDir, "indexes", "semantic.sqlite3")
	if _, err := os.Stat(indexPath); err != nil {
		return nil, failure[SemanticSearchOutput]("preflight_semantic_search", requestID, start, bundleerrors.IndexMissing("indexes/semantic.sqlite3")), nil
	}

	idx, err := semantic.OpenSQLiteIndex(indexPath)
	if err != nil {
		return nil, failure[SemanticSearchOutput]("preflight_semantic_search", requestID, start, err), nil
	}
	defer idx.Close()

	embedder := s.manager.Embedder()
	if embedder == nil {
		return nil, failure[SemanticSearchOutput]("preflight_semantic_search", requestID, start,
			bundleerrors.NotConfigured("an embedding provider")), nil
	}

	vector, err := embedder.Embed(ctx, input.Query)
	if err != nil {
		return nil, failure[SemanticSearchOutput]("preflight_semantic_search", requestID, start,
			bundleerrors.New(bundleerrors.ErrCodeEmbeddingFailed, "failed to embed query", err)), nil
	}

	limit := input.Limit
	if limit <= 0 {
		limit = 10
	}

	results, err := idx.Search(ctx, vector, limit, semantic.Filter{Kind: input.Kind})
	if err != nil {
		return nil, failure[SemanticSearchOutput]("preflight_semantic_search", requestID, start, err), nil
	}

	out := SemanticSearchOutput{}
	for _, r := range results {
		out.Hits = append(out.Hits, SemanticHitOutput{
			ChunkID:   r.ChunkID,
			RepoID:    r.RepoID,
			Path:      r.Path,
			StartLine: r.StartLine,
			EndLine:   r.EndLine,
			Score:     r.Score,
		})
	}

	s.recordSearchTelemetry(input.Query, len(out.Hits), time.Since(start))

	return nil, evidence.Success("preflight_semantic_search", requestID, start, out).WithBundleID(input.BundleID), nil
}

// ---- trace / dependency-graph tools ----

func (s *Server) toolTraceUpsert(ctx context.Context, _ *mcp.CallToolRequest, input TraceUpsertInput) (*mcp.CallToolResult, evidence.Envelope[TraceUpsertOutput], error) {
	start := time.Now()
	requestID := newRequestID()

	bundleDir, ok := s.manager.Storage().ResolveBundleRoot(input.BundleID)
	if !ok {
		return nil, failure[TraceUpsertOutput]("preflight_trace_upsert", requestID, start, bundleerrors.BundleNotFound(input.BundleID)), nil
	}

	store, err := evidence.Open(filepath.Join(bundleDir, "trace", "trace.sqlite3"))
	if err != nil {
		return nil, failure[TraceUpsertOutput]("preflight_trace_upsert", requestID, start, err), nil
	}
	defer store.Close()

	edges := make([]evidence.Edge, 0, len(input.Edges))
	for _, e := range input.Edges {
		method := evidence.MethodExact
		if e.Method == string(evidence.MethodHeuristic) {
			method = evidence.MethodHeuristic
		}
		sources := make([]evidence.EvidencePointer, 0, len(e.Sources))
		for _, p := range e.Sources {
			sources = append(sources, evidence.EvidencePointer{
				Path:          p.Path,
				StartLine:     p.StartLine,
				EndLine:       p.EndLine,
				URI:           p.URI,
				Snippet:       p.Snippet,
				SnippetSHA256: evidence.SnippetHash(p.Snippet),
			})
		}
		edges = append(edges, evidence.Edge{
			ID:         e.ID,
			Source:     evidence.EndpointRef{Type: e.SourceType, ID: e.SourceID},
			Target:     evidence.EndpointRef{Type: e.TargetType, ID: e.TargetID},
			EdgeType:   evidence.EdgeType(e.EdgeType),
			Confidence: e.Confidence,
			Method:     method,
			Sources:    sources,
		})
	}

	if err := store.Upsert(ctx, edges); err != nil {
		return nil, failure[TraceUpsertOutput]("preflight_trace_upsert", requestID, start, err), nil
	}

	out := TraceUpsertOutput{Upserted: len(edges)}
	return nil, evidence.Success("preflight_trace_upsert", requestID, start, out).WithBundleID(input.BundleID), nil
}

func (s *Server) toolTraceQuery(ctx context.Context, _ *mcp.CallToolRequest, input TraceQueryInput) (*mcp.CallToolResult, evidence.Envelope[TraceQueryOutput], error) {
	start := time.Now()
	requestID := newRequestID()

	result, err := evidence.QueryFanout(ctx, s.manager.Storage(), evidence.Query{
		BundleID:   input.BundleID,
		SourceType: input.SourceType,
		SourceID:   input.SourceID,
		EdgeType:   evidence.EdgeType(input.EdgeType),
		Limit:      input.Limit,
	})
	if err != nil {
		return nil, failure[TraceQueryOutput]("preflight_trace_query", requestID, start, err), nil
	}

	out := TraceQueryOutput{BundleCount: result.BundleCount}
	for _, e := range result.Edges {
		sources := make([]EvidencePointerJSON, 0, len(e.Sources))
		for _, p := range e.Sources {
			sources = append(sources, EvidencePointerJSON{Path: p.Path, StartLine: p.StartLine, EndLine: p.EndLine, URI: p.URI, Snippet: p.Snippet})
		}
		out.Edges = append(out.Edges, TraceEdgeOutput{
			ID:         e.ID,
			SourceType: e.Source.Type,
			SourceID:   e.Source.ID,
			TargetType: e.Target.Type,
			TargetID:   e.Target.ID,
			EdgeType:   string(e.EdgeType),
			Confidence: e.Confidence,
			Method:     string(e.Method),
			Sources:    sources,
		})
	}

	env := evidence.Success("preflight_trace_query", requestID, start, out)
	if result.Truncated {
		env = env.WithTruncation(evidence.Truncation{Truncated: true, Reason: "cross-bundle fan-out cap reached", ReturnedCount: result.BundleCount})
	}
	return nil, env, nil
}

func (s *Server) toolDependencyGraph(ctx context.Context, _ *mcp.CallToolRequest, input DependencyGraphInput) (*mcp.CallToolResult, evidence.Envelope[DependencyGraphOutput], error) {
	start := time.Now()
	requestID := newRequestID()

	bundleDir, ok := s.manager.Storage().ResolveBundleRoot(input.BundleID)
	if !ok {
		return nil, failure[DependencyGraphOutput]("preflight_evidence_dependency_graph", requestID, start, bundleerrors.BundleNotFound(input.BundleID)), nil
	}

	raw, err := os.ReadFile(filepath.Join(bundleDir, "deps", "dependency-graph.json"))
	if err != nil {
		return nil, failure[DependencyGraphOutput]("preflight_evidence_dependency_graph", requestID, start, bundleerrors.IndexMissing("deps/dependency-graph.json")), nil
	}

	var graph evidence.DependencyGraph
	if err := json.Unmarshal(raw, &graph); err != nil {
		return nil, failure[DependencyGraphOutput]("preflight_evidence_dependency_graph", requestID, start,
			bundleerrors.New(bundleerrors.ErrCodeFileCorrupt, "failed to parse dependency graph", err)), nil
	}

	out := DependencyGraphOutput{}
	for _, n := range graph.Nodes {
		if input.Path != "" && n.Path != input.Path {
			continue
		}
		out.Nodes = append(out.Nodes, DependencyNodeOutput{Path: n.Path, Exports: n.Exports})
	}
	for _, e := range graph.Edges {
		if input.Path != "" && e.From != input.Path && e.To != input.Path {
			continue
		}
		out.Edges = append(out.Edges, DependencyEdgeOutput{From: e.From, To: e.To, ImportPath: e.ImportPath, Method: string(e.Method), Confidence: e.Confidence})
	}

	return nil, evidence.Success("preflight_evidence_dependency_graph", requestID, start, out).WithBundleID(input.BundleID), nil
}

// ---- AST / call-graph tools ----

func (s *Server) toolBuildCallGraph(ctx context.Context, _ *mcp.CallToolRequest, input BuildCallGraphInput) (*mcp.CallToolResult, evidence.Envelope[BuildCallGraphOutput], error) {
	start := time.Now()
	requestID := newRequestID()

	cache, err := s.buildCallGraph(ctx, input.BundleID)
	if err != nil {
		return nil, failure[BuildCallGraphOutput]("preflight_build_call_graph", requestID, start, err), nil
	}

	out := BuildCallGraphOutput{BundleID: input.BundleID, FilesIndexed: cache.filesIndexed}
	return nil, evidence.Success("preflight_build_call_graph", requestID, start, out).WithBundleID(input.BundleID), nil
}

// buildCallGraph parses every file under repos/*/norm in the resolved
// bundle directory and caches the resulting call-graph index. A cached
// index is returned as is; otherwise the sources are re-parsed from scratch,
// since the analyzer's index is not itself persisted to disk (only the
// per-file facts in analysis/FACTS.json are).
func (s *Server) buildCallGraph(ctx context.Context, bundleID string) (*callGraphCache, error) {
	s.mu.RLock()
	if cache, ok := s.callGraphs[bundleID]; ok {
		s.mu.RUnlock()
		return cache, nil
	}
	s.mu.RUnlock()

	bundleDir, ok := s.manager.Storage().ResolveBundleRoot(bundleID)
	if !ok {
		return nil, bundleerrors.BundleNotFound(bundleID)
	}

	matches, err := filepath.Glob(filepath.Join(bundleDir, "repos", "*", "norm"))
	if err != nil {
		return nil, bundleerrors.New(bundleerrors.ErrCodeInternal, "failed to enumerate repo directories", err)
	}

	analyzer := ast.NewAnalyzer()
	defer analyzer.Close()

	var filesIndexed int
	var extensionPoints []ast.ExtensionPoint
	for _, normDir := range matches {
		err := filepath.Walk(normDir, func(path string, info os.FileInfo, err error) error {
			if err != nil || info.IsDir() || !analyzer.SupportsPath(path) {
				return err
			}
			source, rerr := os.ReadFile(path)
			if rerr != nil {
				return nil
			}
			rel, _ := filepath.Rel(normDir, path)
			facts, aerr := analyzer.Analyze(ctx, rel, source)
			if aerr != nil {
				return nil
			}
			extensionPoints = append(extensionPoints, facts.ExtensionPoints...)
			filesIndexed++
			return nil
		})
		if err != nil {
			return nil, bundleerrors.New(bundleerrors.ErrCodeInternal, "failed to walk normalized sources", err)
		}
	}

	cache := &callGraphCache{index: analyzer.Index(), extensionPoints: extensionPoints, filesIndexed: filesIndexed}
	s.mu.Lock()
	s.callGraphs[bundleID] = cache
	s.mu.Unlock()
	return cache, nil
}

func (s *Server) toolQueryCallGraph(ctx context.Context, _ *mcp.CallToolRequest, input QueryCallGraphInput) (*mcp.CallToolResult, evidence.Envelope[QueryCallGraphOutput], error) {
	start := time.Now()
	requestID := newRequestID()

	cache, err := s.buildCallGraph(ctx, input.BundleID)
	if err != nil {
		return nil, failure[QueryCallGraphOutput]("preflight_query_call_graph", requestID, start, err), nil
	}

	var items []ast.CallHierarchyItem
	if input.Direction == "incoming" {
		items = cache.index.GetIncomingCalls(input.Symbol)
	} else {
		items = cache.index.GetOutgoingCalls(input.Symbol)
	}

	out := QueryCallGraphOutput{Symbol: input.Symbol}
	for _, it := range items {
		out.Calls = append(out.Calls, CallHierarchyOutput{Name: it.Name, FilePath: it.FilePath, StartLine: it.StartLine, EndLine: it.EndLine})
	}

	return nil, evidence.Success("preflight_query_call_graph", requestID, start, out).WithBundleID(input.BundleID), nil
}

func (s *Server) toolExtractCode(ctx context.Context, _ *mcp.CallToolRequest, input ExtractCodeInput) (*mcp.CallToolResult, evidence.Envelope[ExtractCodeOutput], error) {
	start := time.Now()
	requestID := newRequestID()

	cache, err := s.buildCallGraph(ctx, input.BundleID)
	if err != nil {
		return nil, failure[ExtractCodeOutput]("preflight_extract_code", requestID, start, err), nil
	}

	def, ok := cache.index.GetDefinition(input.Symbol)
	if !ok {
		return nil, failure[ExtractCodeOutput]("preflight_extract_code", requestID, start,
			bundleerrors.New(bundleerrors.ErrCodeInvalidInput, "no definition found for symbol "+input.Symbol, nil)), nil
	}

	bundleDir, _ := s.manager.Storage().ResolveBundleRoot(input.BundleID)
	matches, _ := filepath.Glob(filepath.Join(bundleDir, "repos", "*", "norm"))
	var source string
	for _, normDir := range matches {
		diskPath := filepath.Join(normDir, def.FilePath)
		if content, err := os.ReadFile(diskPath); err == nil {
			lines := strings.Split(string(content), "\n")
			lo, hi := def.StartLine, def.EndLine
			if lo >= 1 && hi <= len(lines) && lo <= hi {
				source = strings.Join(lines[lo-1:hi], "\n")
			}
			break
		}
	}

	out := ExtractCodeOutput{Symbol: input.Symbol, Path: def.FilePath, StartLine: def.StartLine, EndLine: def.EndLine, Source: source}
	env := evidence.Success("preflight_extract_code", requestID, start, out).WithBundleID(input.BundleID)
	env = env.WithEvidence(evidence.EvidencePointer{
		Path: def.FilePath, StartLine: def.StartLine, EndLine: def.EndLine,
		Snippet: source, SnippetSHA256: evidence.SnippetHash(source),
	})
	return nil, env, nil
}

func (s *Server) toolInterfaceSummary(ctx context.Context, _ *mcp.CallToolRequest, input InterfaceSummaryInput) (*mcp.CallToolResult, evidence.Envelope[InterfaceSummaryOutput], error) {
	start := time.Now()
	requestID := newRequestID()

	cache, err := s.buildCallGraph(ctx, input.BundleID)
	if err != nil {
		return nil, failure[InterfaceSummaryOutput]("preflight_interface_summary", requestID, start, err), nil
	}

	out := InterfaceSummaryOutput{}
	for _, ep := range cache.extensionPoints {
		out.ExtensionPoints = append(out.ExtensionPoints, ExtensionPointOutput{
			Kind: string(ep.Kind), Name: ep.Name, StartLine: ep.StartLine, EndLine: ep.EndLine, Methods: ep.Methods,
		})
	}

	return nil, evidence.Success("preflight_interface_summary", requestID, start, out).WithBundleID(input.BundleID), nil
}

// ---- symbol / outline extraction used by preflight_read_files ----

func (s *Server) fileOutline(ctx context.Context, bundleID, relPath string, source []byte) ([]string, error) {
	analyzer := ast.NewAnalyzer()
	defer analyzer.Close()

	facts, err := analyzer.Analyze(ctx, relPath, source)
	if err != nil {
		return nil, bundleerrors.New(bundleerrors.ErrCodeInvalidInput, "failed to analyze "+relPath, err)
	}

	var lines []string
	var walk func(sym *ast.SymbolOutline, depth int)
	walk = func(sym *ast.SymbolOutline, depth int) {
		lines = append(lines, fmt.Sprintf("%s%s %s (%d-%d)", strings.Repeat("  ", depth), sym.Kind, sym.Name, sym.StartLine, sym.EndLine))
		for _, c := range sym.Children {
			walk(c, depth+1)
		}
	}
	for _, sym := range facts.Outline {
		walk(sym, 0)
	}
	return lines, nil
}

func (s *Server) extractSymbolFromSource(bundleID, relPath, source, symbol string) (*FileReadOutput, error) {
	analyzer := ast.NewAnalyzer()
	defer analyzer.Close()

	facts, err := analyzer.Analyze(context.Background(), relPath, []byte(source))
	if err != nil {
		return nil, bundleerrors.New(bundleerrors.ErrCodeInvalidInput, "failed to analyze "+relPath, err)
	}

	var find func(sym *ast.SymbolOutline) *ast.SymbolOutline
	find = func(sym *ast.SymbolOutline) *ast.SymbolOutline {
		if sym.Name == symbol {
			return sym
		}
		for _, c := range sym.Children {
			if found := find(c); found != nil {
				return found
			}
		}
		return nil
	}

	var target *ast.SymbolOutline
	for _, sym := range facts.Outline {
		if target = find(sym); target != nil {
			break
		}
	}
	if target == nil {
		return nil, bundleerrors.New(bundleerrors.ErrCodeInvalidInput, "symbol not found: "+symbol, nil)
	}

	lines := strings.Split(source, "\n")
	lo, hi := target.StartLine, target.EndLine
	if hi > len(lines) {
		hi = len(lines)
	}
	body := ""
	if lo >= 1 && lo <= hi {
		body = strings.Join(lines[lo-1:hi], "\n")
	}
	return &FileReadOutput{Path: relPath, StartLine: lo, EndLine: hi, Content: body}, nil
}

// ---- shared manager / telemetry plumbing ----

// onlineManager builds a fresh lifecycle.Manager with a live embedder for a
// single create/update call, sharing the server's storage roots but never
// blocking server startup on embedder construction (see runServe).
func (s *Server) onlineManager(ctx context.Context) (*lifecycle.Manager, error) {
	return newOnlineManager(ctx, s.manager, s.logger)
}

func (s *Server) openTelemetry() (*telemetry.QueryMetrics, error) {
	roots := s.manager.Storage().Roots()
	if len(roots) == 0 {
		return nil, fmt.Errorf("no storage roots configured")
	}
	return openTelemetryStore(filepath.Join(roots[0], "telemetry.sqlite3"))
}

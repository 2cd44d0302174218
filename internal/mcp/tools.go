package mcp

// Input schemas for the preflight_* tool surface. Each tool's output is an
// evidence.Envelope[T] wrapping a tool-specific data type, so only inputs
// need per-tool structs.

// ListBundlesInput filters preflight_list_bundles.
type ListBundlesInput struct {
	Tag   string `json:"tag,omitempty" jsonschema:"only return bundles carrying this tag"`
	Limit int    `json:"limit,omitempty" jsonschema:"maximum bundles to return, default 50"`
}

// BundleListEntry is one row of preflight_list_bundles's data.bundles.
type BundleListEntry struct {
	BundleID    string   `json:"bundleId"`
	DisplayName string   `json:"displayName,omitempty"`
	Fingerprint string   `json:"fingerprint"`
	Tags        []string `json:"tags,omitempty"`
	RepoCount   int      `json:"repoCount"`
	UpdatedAt   string   `json:"updatedAt"`
}

// ListBundlesOutput is preflight_list_bundles's data payload.
type ListBundlesOutput struct {
	Bundles []BundleListEntry `json:"bundles"`
}

// CreateBundleInput is preflight_create_bundle's input.
type CreateBundleInput struct {
	Repos       []string `json:"repos,omitempty" jsonschema:"GitHub repo identifiers (owner/repo or URL)"`
	LocalPaths  []string `json:"localPaths,omitempty" jsonschema:"local directories to copy in"`
	DocPaths    []string `json:"docPaths,omitempty" jsonschema:"loose document files to upsert"`
	Libraries   []string `json:"libraries,omitempty" jsonschema:"descriptive library names, fingerprint-only"`
	Topics      []string `json:"topics,omitempty" jsonschema:"descriptive topic names, fingerprint-only"`
	Tags        []string `json:"tags,omitempty" jsonschema:"tags attached to the bundle for search filtering"`
	DisplayName string   `json:"displayName,omitempty"`
	IfExists    string   `json:"ifExists,omitempty" jsonschema:"error|returnExisting|updateExisting|createNew, default error"`
}

// BundleResultOutput is the shared data payload of preflight_create_bundle
// and preflight_update_bundle.
type BundleResultOutput struct {
	BundleID    string `json:"bundleId"`
	Fingerprint string `json:"fingerprint"`
	TaskID      string `json:"taskId,omitempty"`
	Created     bool   `json:"created"`
}

// UpdateBundleInput is preflight_update_bundle's input.
type UpdateBundleInput struct {
	BundleID  string `json:"bundleId" jsonschema:"bundle to refresh"`
	CheckOnly bool   `json:"checkOnly,omitempty" jsonschema:"report remote deltas without mutating the bundle"`
	Force     bool   `json:"force,omitempty" jsonschema:"rebuild even if no repo has moved"`
}

// UpdateCheckOutput is preflight_update_bundle's data payload when
// checkOnly is set.
type UpdateCheckOutput struct {
	BundleID   string             `json:"bundleId"`
	HasChanges bool               `json:"hasChanges"`
	RepoDeltas []RepoDeltaOutput  `json:"repoDeltas"`
}

// RepoDeltaOutput reports one repo's remote-HEAD delta.
type RepoDeltaOutput struct {
	RepoID     string `json:"repoId"`
	OldHeadSHA string `json:"oldHeadSha"`
	NewHeadSHA string `json:"newHeadSha"`
	Changed    bool   `json:"changed"`
	Note       string `json:"note,omitempty"`
}

// RepairBundleInput is preflight_repair_bundle's input.
type RepairBundleInput struct {
	BundleID string `json:"bundleId"`
	Mode     string `json:"mode,omitempty" jsonschema:"validate|repair, default validate"`
}

// RepairBundleOutput is preflight_repair_bundle's data payload.
type RepairBundleOutput struct {
	BundleID    string   `json:"bundleId"`
	Missing     []string `json:"missing,omitempty"`
	Regenerated []string `json:"regenerated,omitempty"`
}

// DeleteBundleInput is preflight_delete_bundle's input.
type DeleteBundleInput struct {
	BundleID string `json:"bundleId"`
}

// DeleteBundleOutput is preflight_delete_bundle's data payload.
type DeleteBundleOutput struct {
	BundleID string `json:"bundleId"`
	Deleting bool   `json:"deleting"`
}

// ReadFilesInput is preflight_read_files's input. Each path may address a
// line range with a trailing "#20-80" or a symbol with "#Class.method".
type ReadFilesInput struct {
	BundleID        string   `json:"bundleId"`
	RepoID          string   `json:"repoId" jsonschema:"repo these paths are relative to"`
	Paths           []string `json:"paths" jsonschema:"repo-relative file paths, optionally suffixed with #<range> or #<symbol>"`
	WithLineNumbers bool     `json:"withLineNumbers,omitempty"`
	Outline         bool     `json:"outline,omitempty" jsonschema:"return the file's symbol outline instead of its content"`
}

// FileReadOutput is one entry of preflight_read_files's data.files.
type FileReadOutput struct {
	Path      string   `json:"path"`
	StartLine int      `json:"startLine"`
	EndLine   int      `json:"endLine"`
	Content   string   `json:"content,omitempty"`
	Outline   []string `json:"outline,omitempty"`
}

// ReadFilesOutput is preflight_read_files's data payload.
type ReadFilesOutput struct {
	Files []FileReadOutput `json:"files"`
}

// SearchBundleInput is preflight_search_bundle's input.
type SearchBundleInput struct {
	BundleID string `json:"bundleId"`
	Query    string `json:"query"`
	Scope    string `json:"scope,omitempty" jsonschema:"docs|code|all, default all"`
	Limit    int    `json:"limit,omitempty"`
}

// SearchHitOutput is one FTS search result.
type SearchHitOutput struct {
	Kind    string  `json:"kind"`
	Repo    string  `json:"repo"`
	Path    string  `json:"path"`
	LineNo  int     `json:"lineNo"`
	Snippet string  `json:"snippet"`
	Score   float64 `json:"score"`
	URI     string  `json:"uri,omitempty"`
}

// SearchBundleOutput is preflight_search_bundle's data payload.
type SearchBundleOutput struct {
	Hits []SearchHitOutput `json:"hits"`
}

// SearchByTagsInput is preflight_search_by_tags's input.
type SearchByTagsInput struct {
	Tag      string `json:"tag" jsonschema:"only search bundles carrying this tag"`
	Query    string `json:"query"`
	Scope    string `json:"scope,omitempty"`
	Limit    int    `json:"limit,omitempty"`
	Cursor   string `json:"cursor,omitempty" jsonschema:"opaque pagination cursor from a prior response"`
}

// SearchByTagsOutput is preflight_search_by_tags's data payload.
type SearchByTagsOutput struct {
	Hits []SearchHitOutput `json:"hits"`
}

// SearchAndReadInput is preflight_search_and_read's input.
type SearchAndReadInput struct {
	BundleID      string `json:"bundleId"`
	Query         string `json:"query"`
	Scope         string `json:"scope,omitempty"`
	Limit         int    `json:"limit,omitempty"`
	ContextLines  int    `json:"contextLines,omitempty" jsonschema:"lines of context to read around each hit, default 3"`
}

// SearchAndReadEntry pairs one search hit with its surrounding excerpt.
type SearchAndReadEntry struct {
	Hit     SearchHitOutput `json:"hit"`
	Excerpt string          `json:"excerpt"`
}

// SearchAndReadOutput is preflight_search_and_read's data payload.
type SearchAndReadOutput struct {
	Results []SearchAndReadEntry `json:"results"`
}

// SemanticSearchInput is preflight_semantic_search's input.
type SemanticSearchInput struct {
	BundleID string `json:"bundleId"`
	Query    string `json:"query"`
	Kind     string `json:"kind,omitempty"`
	Limit    int    `json:"limit,omitempty"`
}

// SemanticHitOutput is one dense-vector search result.
type SemanticHitOutput struct {
	ChunkID   string  `json:"chunkId"`
	RepoID    string  `json:"repoId"`
	Path      string  `json:"path"`
	StartLine int     `json:"startLine"`
	EndLine   int      `json:"endLine"`
	Score     float32 `json:"score"`
}

// SemanticSearchOutput is preflight_semantic_search's data payload.
type SemanticSearchOutput struct {
	Hits []SemanticHitOutput `json:"hits"`
}

// TraceEdgeInput mirrors evidence.Edge for the MCP input schema.
type TraceEdgeInput struct {
	ID         string                `json:"id"`
	SourceType string                `json:"sourceType"`
	SourceID   string                `json:"sourceId"`
	TargetType string                `json:"targetType"`
	TargetID   string                `json:"targetId"`
	EdgeType   string                `json:"edgeType"`
	Confidence float64               `json:"confidence"`
	Method     string                `json:"method,omitempty" jsonschema:"exact|heuristic, default exact"`
	Sources    []EvidencePointerJSON `json:"sources,omitempty"`
}


// EvidencePointerJSON mirrors evidence.EvidencePointer for tool input.
type EvidencePointerJSON struct {
	Path      string `json:"path"`
	StartLine int    `json:"startLine"`
	EndLine   int    `json:"endLine"`
	URI       string `json:"uri,omitempty"`
	Snippet   string `json:"snippet,omitempty"`
}

// TraceUpsertInput is preflight_trace_upsert's input.
type TraceUpsertInput struct {
	BundleID string           `json:"bundleId"`
	Edges    []TraceEdgeInput `json:"edges"`
}

// TraceUpsertOutput is preflight_trace_upsert's data payload.
type TraceUpsertOutput struct {
	Upserted int `json:"upserted"`
}

// TraceQueryInput is preflight_trace_query's input. An empty BundleID fans
// out across every bundle, capped at the store's fan-out limit.
type TraceQueryInput struct {
	BundleID   string `json:"bundleId,omitempty"`
	SourceType string `json:"sourceType,omitempty"`
	SourceID   string `json:"sourceId,omitempty"`
	EdgeType   string `json:"edgeType,omitempty"`
	Limit      int    `json:"limit,omitempty"`
}

// TraceEdgeOutput mirrors evidence.Edge for tool output.
type TraceEdgeOutput struct {
	ID         string                 `json:"id"`
	SourceType string                 `json:"sourceType"`
	SourceID   string                 `json:"sourceId"`
	TargetType string                 `json:"targetType"`
	TargetID   string                 `json:"targetId"`
	EdgeType   string                 `json:"edgeType"`
	Confidence float64                `json:"confidence"`
	Method     string                 `json:"method"`
	Sources    []EvidencePointerJSON  `json:"sources,omitempty"`
}

// TraceQueryOutput is preflight_trace_query's data payload.
type TraceQueryOutput struct {
	Edges       []TraceEdgeOutput `json:"edges"`
	BundleCount int               `json:"bundleCount"`
}

// DependencyGraphInput is preflight_evidence_dependency_graph's input.
type DependencyGraphInput struct {
	BundleID string `json:"bundleId"`
	Path     string `json:"path,omitempty" jsonschema:"restrict to edges touching this file; empty returns the whole graph"`
}

// DependencyNodeOutput mirrors evidence.DependencyNode.
type DependencyNodeOutput struct {
	Path    string   `json:"path"`
	Exports []string `json:"exports,omitempty"`
}

// DependencyEdgeOutput mirrors evidence.DependencyEdge.
type DependencyEdgeOutput struct {
	From       string  `json:"from"`
	To         string  `json:"to"`
	ImportPath string  `json:"importPath"`
	Method     string  `json:"method"`
	Confidence float64 `json:"confidence"`
}

// DependencyGraphOutput is preflight_evidence_dependency_graph's data
// payload.
type DependencyGraphOutput struct {
	Nodes []DependencyNodeOutput `json:"nodes"`
	Edges []DependencyEdgeOutput `json:"edges"`
}

// BuildCallGraphInput is preflight_build_call_graph's input.
type BuildCallGraphInput struct {
	BundleID string `json:"bundleId"`
}

// BuildCallGraphOutput reports how many files/symbols were indexed.
type BuildCallGraphOutput struct {
	BundleID   string `json:"bundleId"`
	FilesIndexed int  `json:"filesIndexed"`
}

// QueryCallGraphInput is preflight_query_call_graph's input.
type QueryCallGraphInput struct {
	BundleID  string `json:"bundleId"`
	Symbol    string `json:"symbol" jsonschema:"declared (unqualified) symbol name to look up"`
	Direction string `json:"direction,omitempty" jsonschema:"incoming|outgoing, default outgoing"`
}

// CallHierarchyOutput mirrors ast.CallHierarchyItem.
type CallHierarchyOutput struct {
	Name      string `json:"name"`
	FilePath  string `json:"filePath"`
	StartLine int    `json:"startLine"`
	EndLine   int    `json:"endLine"`
}

// QueryCallGraphOutput is preflight_query_call_graph's data payload.
type QueryCallGraphOutput struct {
	Symbol string                `json:"symbol"`
	Calls  []CallHierarchyOutput `json:"calls"`
}

// ExtractCodeInput is preflight_extract_code's input.
type ExtractCodeInput struct {
	BundleID string `json:"bundleId"`
	Symbol   string `json:"symbol" jsonschema:"declared (unqualified) symbol name to extract"`
}

// ExtractCodeOutput is preflight_extract_code's data payload.
type ExtractCodeOutput struct {
	Symbol    string `json:"symbol"`
	Path      string `json:"path"`
	StartLine int    `json:"startLine"`
	EndLine   int    `json:"endLine"`
	Source    string `json:"source"`
}

// InterfaceSummaryInput is preflight_interface_summary's input.
type InterfaceSummaryInput struct {
	BundleID string `json:"bundleId"`
	Path     string `json:"path,omitempty" jsonschema:"accepted but not applied: extension points carry no file path, so every extension point in the bundle is returned"`
}

// ExtensionPointOutput mirrors ast.ExtensionPoint.
type ExtensionPointOutput struct {
	Kind      string   `json:"kind"`
	Name      string   `json:"name"`
	Path      string   `json:"path"`
	StartLine int      `json:"startLine"`
	EndLine   int      `json:"endLine"`
	Methods   []string `json:"methods,omitempty"`
}

// InterfaceSummaryOutput is preflight_interface_summary's data payload.
type InterfaceSummaryOutput struct {
	ExtensionPoints []ExtensionPointOutput `json:"extensionPoints"`
}

// CleanupOrphansInput is preflight_cleanup_orphans's input.
type CleanupOrphansInput struct {
	GraceSeconds int `json:"graceSeconds,omitempty" jsonschema:"minimum age of a .deleting.* entry before it is swept, default 300"`
}

// CleanupOrphansOutput reports how many storage roots were swept.
type CleanupOrphansOutput struct {
	RootsSwept int `json:"rootsSwept"`
}

// GetTaskStatusInput is preflight_get_task_status's input. Exactly one of
// TaskID/Fingerprint should be set.
type GetTaskStatusInput struct {
	TaskID      string `json:"taskId,omitempty"`
	Fingerprint string `json:"fingerprint,omitempty"`
}

// TaskStatusOutput mirrors lifecycle.Progress.
type TaskStatusOutput struct {
	TaskID      string  `json:"taskId"`
	Fingerprint string  `json:"fingerprint"`
	Stage       string  `json:"stage"`
	Percent     float64 `json:"percent"`
	Message     string  `json:"message,omitempty"`
	Error       string  `json:"error,omitempty"`
}

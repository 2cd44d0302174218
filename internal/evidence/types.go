// Package evidence implements the per-bundle trace-link store and the
// response envelope every MCP tool returns, so that any claim a tool makes
// about a file can be traced back to an exact byte range.
package evidence

import "time"

// EdgeType names the relationship a trace edge records between two
// addressable entities (files, symbols, chunks).
type EdgeType string

const (
	EdgeTypeImports    EdgeType = "imports"
	EdgeTypeCalls      EdgeType = "calls"
	EdgeTypeImplements EdgeType = "implements"
	EdgeTypeExtends    EdgeType = "extends"
	EdgeTypeReferences EdgeType = "references"
	EdgeTypeTests      EdgeType = "tests"
)

// Method distinguishes edges resolved by exact static analysis from edges
// inferred heuristically (e.g. a best-effort name match across languages).
type Method string

const (
	MethodExact     Method = "exact"
	MethodHeuristic Method = "heuristic"
)

// EndpointRef identifies one side of a trace edge.
type EndpointRef struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

// EvidencePointer grounds a claim in an exact file region. Any tool result
// that cites a file must carry at least one of these.
type EvidencePointer struct {
	Path          string `json:"path"`
	StartLine     int    `json:"startLine"`
	EndLine       int    `json:"endLine"`
	URI           string `json:"uri,omitempty"`
	Snippet       string `json:"snippet,omitempty"`
	SnippetSHA256 string `json:"snippetSha256,omitempty"`
}

// Edge is one trace link between a source and a target entity, grounded by
// zero or more evidence pointers.
type Edge struct {
	ID         string            `json:"id"`
	Source     EndpointRef       `json:"source"`
	Target     EndpointRef       `json:"target"`
	EdgeType   EdgeType          `json:"edgeType"`
	Confidence float64           `json:"confidence"`
	Method     Method            `json:"method"`
	Sources    []EvidencePointer `json:"sources"`
	CreatedAt  time.Time         `json:"createdAt"`
	UpdatedAt  time.Time         `json:"updatedAt"`
}

// Query selects edges to return. BundleID empty means fan out across every
// configured storage root up to maxFanoutBundles.
type Query struct {
	BundleID   string
	SourceType string
	SourceID   string
	EdgeType   EdgeType
	Limit      int
}

// QueryResult is the outcome of a Query, reporting whether the cross-bundle
// fan-out hit its cap.
type QueryResult struct {
	Edges       []Edge
	Truncated   bool
	BundleCount int
}

// maxFanoutBundles bounds how many bundle trace stores a bundleId-less
// query will open, so a query() call can't make one caller scan an
// unbounded number of SQLite files.
const maxFanoutBundles = 32

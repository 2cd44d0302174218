package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	bundleerrors "github.com/preflightbundle/preflightbundle/internal/errors"
)

// maxResourceSize bounds how large a file resource read will return.
const maxResourceSize = 1024 * 1024

// registerResources wires the bundle-listing resource, one file resource
// per normalized file already present in a bundle at startup time, and
// the query_metrics resource (which reports not-configured when telemetry
// is unavailable) onto the underlying MCP server. Bundles created after startup are reachable
// through preflight_read_files; only bundles that already exist when the
// server starts get their files enumerated as individual resources, the
// same way the teacher's RegisterResources walks its indexed file list
// once at startup rather than watching for new files.
func (s *Server) registerResources() {
	s.mcp.AddResource(&mcp.Resource{
		Name:        "bundles",
		URI:         "preflight://bundles",
		Description: "Every evidence bundle available on this machine",
		MIMEType:    "application/json",
	}, s.handleBundlesResource)

	s.registerBundleFileResources()

	s.mcp.AddResource(&mcp.Resource{
		Name:        "query_metrics",
		URI:         "preflight://query_metrics",
		Description: "Query pattern telemetry for search optimization",
		MIMEType:    "application/json",
	}, s.handleQueryMetricsResource)
}

// registerBundleFileResources walks every existing bundle's repos/*/norm
// tree and registers one resource per normalized file.
func (s *Server) registerBundleFileResources() {
	summaries, err := s.manager.List()
	if err != nil {
		return
	}

	for _, sum := range summaries {
		bundleDir, ok := s.manager.Storage().ResolveBundleRoot(sum.Manifest.BundleID)
		if !ok {
			continue
		}
		matches, err := filepath.Glob(filepath.Join(bundleDir, "repos", "*"))
		if err != nil {
			continue
		}
		for _, repoDir := range matches {
			normDir := filepath.Join(repoDir, "norm")
			repoID := filepath.Base(repoDir)
			_ = filepath.Walk(normDir, func(path string, info os.FileInfo, werr error) error {
				if werr != nil || info == nil || info.IsDir() {
					return nil
				}
				rel, rerr := filepath.Rel(normDir, path)
				if rerr != nil {
					return nil
				}
				s.registerBundleFileResource(sum.Manifest.BundleID, repoID, rel, path, info.Size())
				return nil
			})
		}
	}
}

// registerBundleFileResource registers a single normalized file as an MCP
// resource, closing over its already-resolved disk path the same way the
// teacher's makeFileHandler closes over a file's relative path.
func (s *Server) registerBundleFileResource(bundleID, repoID, relPath, diskPath string, size int64) {
	uri := fmt.Sprintf("preflight://bundle/%s/file/%s/%s", bundleID, repoID, relPath)
	s.mcp.AddResource(&mcp.Resource{
		Name:        filepath.Base(relPath),
		URI:         uri,
		Description: fmt.Sprintf("%s/%s (%s)", repoID, relPath, humanSize(size)),
		MIMEType:    mimeTypeForPath(relPath),
	}, s.makeBundleFileHandler(diskPath, uri, relPath))
}

func (s *Server) makeBundleFileHandler(diskPath, uri, relPath string) mcp.ResourceHandler {
	return func(ctx context.Context, _ *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		info, err := os.Stat(diskPath)
		if err != nil {
			return nil, bundleerrors.New(bundleerrors.ErrCodeFileNotFound, "file not found: "+relPath, err)
		}
		if info.Size() > maxResourceSize {
			return nil, bundleerrors.New(bundleerrors.ErrCodeFileTooLarge, fmt.Sprintf("file too large: %d bytes (max %d)", info.Size(), maxResourceSize), nil)
		}

		content, err := os.ReadFile(diskPath)
		if err != nil {
			return nil, bundleerrors.IOError("failed to read "+relPath, err)
		}

		return &mcp.ReadResourceResult{
			Contents: []*mcp.ResourceContents{
				{URI: uri, MIMEType: mimeTypeForPath(relPath), Text: string(content)},
			},
		}, nil
	}
}

func humanSize(bytes int64) string {
	const (
		kb = 1024
		mb = kb * 1024
		gb = mb * 1024
	)
	switch {
	case bytes >= gb:
		return fmt.Sprintf("%.1f GB", float64(bytes)/float64(gb))
	case bytes >= mb:
		return fmt.Sprintf("%.1f MB", float64(bytes)/float64(mb))
	case bytes >= kb:
		return fmt.Sprintf("%.1f KB", float64(bytes)/float64(kb))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}

func (s *Server) handleBundlesResource(ctx context.Context, _ *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	summaries, err := s.manager.List()
	if err != nil {
		return nil, err
	}

	entries := make([]BundleListEntry, 0, len(summaries))
	for _, sum := range summaries {
		entries = append(entries, BundleListEntry{
			BundleID:    sum.Manifest.BundleID,
			DisplayName: sum.Manifest.DisplayName,
			Fingerprint: sum.Manifest.Fingerprint,
			Tags:        sum.Manifest.Tags,
			RepoCount:   len(sum.Manifest.Repos),
			UpdatedAt:   sum.Manifest.UpdatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
		})
	}

	content, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return nil, err
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{
			{URI: "preflight://bundles", MIMEType: "application/json", Text: string(content)},
		},
	}, nil
}

func mimeTypeForPath(path string) string {
	switch filepath.Ext(path) {
	case ".json":
		return "application/json"
	case ".md":
		return "text/markdown"
	case ".go", ".py", ".ts", ".tsx", ".js", ".rs", ".java":
		return "text/x-source"
	default:
		return "text/plain"
	}
}

func (s *Server) handleQueryMetricsResource(ctx context.Context, _ *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	if s.metrics == nil {
		return nil, bundleerrors.NotConfigured("query telemetry")
	}

	snapshot := s.metrics.Snapshot()

	output := queryMetricsOutput{
		Summary: queryMetricsSummary{
			TotalQueries:  snapshot.TotalQueries,
			TimePeriod:    "session",
			ZeroResultPct: snapshot.ZeroResultPercentage(),
		},
		QueryTypeCounts:     make(map[string]int64, len(snapshot.QueryTypeCounts)),
		TopTerms:            make([]queryTermCount, 0, len(snapshot.TopTerms)),
		ZeroResultQueries:   snapshot.ZeroResultQueries,
		LatencyDistribution: make(map[string]int64, len(snapshot.LatencyDistribution)),
	}

	for qt, count := range snapshot.QueryTypeCounts {
		output.QueryTypeCounts[string(qt)] = count
	}
	for _, tc := range snapshot.TopTerms {
		output.TopTerms = append(output.TopTerms, queryTermCount{Term: tc.Term, Count: tc.Count})
	}
	for bucket, count := range snapshot.LatencyDistribution {
		output.LatencyDistribution[string(bucket)] = count
	}

	content, err := json.MarshalIndent(output, "", "  ")
	if err != nil {
		return nil, err
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{
			{URI: "preflight://query_metrics", MIMEType: "application/json", Text: string(content)},
		},
	}, nil
}

// queryMetricsOutput is the JSON structure returned by the query_metrics
// resource.
type queryMetricsOutput struct {
	Summary             queryMetricsSummary `json:"summary"`
	QueryTypeCounts     map[string]int64    `json:"query_type_counts"`
	TopTerms            []queryTermCount    `json:"top_terms"`
	ZeroResultQueries   []string            `json:"zero_result_queries"`
	LatencyDistribution map[string]int64    `json:"latency_distribution"`
}

type queryMetricsSummary struct {
	TotalQueries  int64   `json:"total_queries"`
	TimePeriod    string  `json:"time_period"`
	ZeroResultPct float64 `json:"zero_result_pct"`
}

type queryTermCount struct {
	Term  string `json:"term"`
	Count int64  `json:"count"`
}

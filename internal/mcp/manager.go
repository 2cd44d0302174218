package mcp

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "modernc.org/sqlite"

	"github.com/preflightbundle/preflightbundle/internal/embed"
	"github.com/preflightbundle/preflightbundle/internal/lifecycle"
	"github.com/preflightbundle/preflightbundle/internal/parser"
	"github.com/preflightbundle/preflightbundle/internal/storage"
	"github.com/preflightbundle/preflightbundle/internal/telemetry"
)

// newOnlineManager builds a fresh lifecycle.Manager sharing shared's storage
// roots but with a live embedder, for the single duration of one
// preflight_create_bundle or preflight_update_bundle call. The server's own
// shared manager stays offline (see cmd/preflightbundle/cmd/serve.go) so
// embedder construction never blocks MCP stdio startup; this mirrors
// cmd/preflightbundle/cmd/manager.go's newManager helper, independently
// replicated since internal/mcp cannot import cmd.
func newOnlineManager(ctx context.Context, shared *lifecycle.Manager, logger *slog.Logger) (*lifecycle.Manager, error) {
	store, err := storage.New(shared.Storage().Roots())
	if err != nil {
		return nil, fmt.Errorf("failed to open bundle storage: %w", err)
	}

	registry := parser.NewRegistry(nil, nil, nil)

	embedder, err := embed.NewDefaultEmbedder(ctx)
	if err != nil {
		// Semantic indexing is best-effort inside Manager.Create/Update, so a
		// missing embedder is not fatal to the transaction itself.
		embedder = nil
	}

	return lifecycle.NewManager(store, registry, embedder, logger), nil
}

// openTelemetryStore opens (creating if needed) the SQLite-backed query
// telemetry store at path and wraps it in a telemetry.QueryMetrics
// collector.
func openTelemetryStore(path string) (*telemetry.QueryMetrics, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open telemetry database: %w", err)
	}
	if err := telemetry.InitTelemetrySchema(db); err != nil {
		db.Close()
		return nil, err
	}
	store, err := telemetry.NewSQLiteMetricsStore(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return telemetry.NewQueryMetrics(store), nil
}

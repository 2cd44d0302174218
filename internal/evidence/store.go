package evidence

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	bundleerrors "github.com/preflightbundle/preflightbundle/internal/errors"
	_ "modernc.org/sqlite"
)

// Store is the per-bundle trace-link store at trace/trace.sqlite3: two
// tables, edges and sources, opened with the same pure-Go WAL pragmas as
// the bundle's other SQLite artifacts.
type Store struct {
	mu   sync.RWMutex
	db   *sql.DB
	path string
}

// Open creates or opens the trace store at path (empty path opens an
// in-memory store, used by tests).
func Open(path string) (*Store, error) {
	dsn := path
	if path == "" {
		dsn = ":memory:"
	} else {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, bundleerrors.New(bundleerrors.ErrCodeFilePermission, "failed to create trace directory", err)
		}
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, bundleerrors.New(bundleerrors.ErrCodeFilePermission, "failed to open trace store", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, bundleerrors.New(bundleerrors.ErrCodeIndexFailed, "failed to set pragma", err)
		}
	}

	s := &Store{db: db, path: path}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS edges (
		id TEXT PRIMARY KEY,
		source_type TEXT NOT NULL,
		source_id TEXT NOT NULL,
		target_type TEXT NOT NULL,
		target_id TEXT NOT NULL,
		edge_type TEXT NOT NULL,
		confidence REAL NOT NULL,
		method TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_edges_source ON edges(source_type, source_id);
	CREATE INDEX IF NOT EXISTS idx_edges_type ON edges(edge_type);

	CREATE TABLE IF NOT EXISTS sources (
		edge_id TEXT NOT NULL REFERENCES edges(id) ON DELETE CASCADE,
		path TEXT NOT NULL,
		start_line INTEGER NOT NULL,
		end_line INTEGER NOT NULL,
		snippet_sha256 TEXT,
		uri TEXT,
		snippet TEXT,
		PRIMARY KEY (edge_id, path, start_line, end_line, snippet_sha256)
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

// Upsert idempotently inserts or updates every edge by id, merging each
// edge's sources by de-duplicating on (path, startLine, endLine,
// snippetSha256) rather than replacing the whole sources list.
func (s *Store) Upsert(ctx context.Context, edges []Edge) error {
	if len(edges) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return bundleerrors.New(bundleerrors.ErrCodeIndexFailed, "failed to begin trace transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	edgeStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO edges(id, source_type, source_id, target_type, target_id, edge_type, confidence, method, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			source_type=excluded.source_type, source_id=excluded.source_id,
			target_type=excluded.target_type, target_id=excluded.target_id,
			edge_type=excluded.edge_type, confidence=excluded.confidence,
			method=excluded.method, updated_at=excluded.updated_at
	`)
	if err != nil {
		return fmt.Errorf("prepare edge upsert: %w", err)
	}
	defer edgeStmt.Close()

	sourceStmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO sources(edge_id, path, start_line, end_line, snippet_sha256, uri, snippet)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare source upsert: %w", err)
	}
	defer sourceStmt.Close()

	now := time.Now().UTC().Format(time.RFC3339Nano)
	for _, e := range edges {
		createdAt := now
		if !e.CreatedAt.IsZero() {
			createdAt = e.CreatedAt.UTC().Format(time.RFC3339Nano)
		}
		if _, err := edgeStmt.ExecContext(ctx, e.ID, e.Source.Type, e.Source.ID, e.Target.Type, e.Target.ID,
			string(e.EdgeType), e.Confidence, string(e.Method), createdAt, now); err != nil {
			return fmt.Errorf("upsert edge %q: %w", e.ID, err)
		}
		for _, src := range e.Sources {
			// An empty snippet hash is stored as '' rather than NULL so the
			// primary key still de-duplicates pointers that carry no hash.
			if _, err := sourceStmt.ExecContext(ctx, e.ID, src.Path, src.StartLine, src.EndLine,
				src.SnippetSHA256, nullableString(src.URI), nullableString(src.Snippet)); err != nil {
				return fmt.Errorf("upsert source for edge %q: %w", e.ID, err)
			}
		}
	}
	return tx.Commit()
}

// Query returns edges matching the filter from this store alone (the
// bundle-level query, called per-bundle by the cross-bundle fan-out in
// QueryFanout).
func (s *Store) Query(ctx context.Context, q Query) ([]Edge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var where []string
	var args []any
	if q.SourceType != "" {
		where = append(where, "source_type = ?")
		args = append(args, q.SourceType)
	}
	if q.SourceID != "" {
		where = append(where, "source_id = ?")
		args = append(args, q.SourceID)
	}
	if q.EdgeType != "" {
		where = append(where, "edge_type = ?")
		args = append(args, string(q.EdgeType))
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 100
	}

	query := "SELECT id, source_type, source_id, target_type, target_id, edge_type, confidence, method, created_at, updated_at FROM edges"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY updated_at DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, bundleerrors.New(bundleerrors.ErrCodeTraceInvalid, "trace query failed", err)
	}
	defer rows.Close()

	var edges []Edge
	for rows.Next() {
		var e Edge
		var createdAt, updatedAt string
		if err := rows.Scan(&e.ID, &e.Source.Type, &e.Source.ID, &e.Target.Type, &e.Target.ID,
			&e.EdgeType, &e.Confidence, &e.Method, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan edge: %w", err)
		}
		e.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		e.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
		edges = append(edges, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range edges {
		sources, err := s.sourcesFor(ctx, edges[i].ID)
		if err != nil {
			return nil, err
		}
		edges[i].Sources = sources
	}
	return edges, nil
}

func (s *Store) sourcesFor(ctx context.Context, edgeID string) ([]EvidencePointer, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT path, start_line, end_line, COALESCE(snippet_sha256, ''), COALESCE(uri, ''), COALESCE(snippet, '')
		 FROM sources WHERE edge_id = ? ORDER BY path, start_line`, edgeID)
	if err != nil {
		return nil, fmt.Errorf("query sources for edge %q: %w", edgeID, err)
	}
	defer rows.Close()

	var sources []EvidencePointer
	for rows.Next() {
		var ep EvidencePointer
		if err := rows.Scan(&ep.Path, &ep.StartLine, &ep.EndLine, &ep.SnippetSHA256, &ep.URI, &ep.Snippet); err != nil {
			return nil, fmt.Errorf("scan source: %w", err)
		}
		sources = append(sources, ep)
	}
	return sources, rows.Err()
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// SnippetHash computes the drift-detection hash over the exact returned
// snippet bytes, normalized to UTF-8/LF per the stated evidence-pointer
// contract.
func SnippetHash(snippet string) string {
	normalized := strings.ReplaceAll(snippet, "\r\n", "\n")
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

// MarshalEdges is a small helper for callers that need to serialize a
// query result as canonical JSON (e.g. for a CLI dump), not used by the
// hot query path.
func MarshalEdges(edges []Edge) ([]byte, error) {
	return json.MarshalIndent(edges, "", "  ")
}

package fts

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	bundleerrors "github.com/preflightbundle/preflightbundle/internal/errors"
	"github.com/preflightbundle/preflightbundle/internal/store"
	_ "modernc.org/sqlite"
)

// Index is the per-bundle SQLite FTS5 line index described in
// search.sqlite3. It carries no incremental-update support: Rebuild
// replaces the whole index in a single transaction, matching spec.md's
// "no incremental updates" rule for FTS.
type Index struct {
	mu   sync.RWMutex
	db   *sql.DB
	path string
}

// Open creates or opens the FTS5 line index at path (":memory:" style
// empty path opens an in-memory index, used by tests). Uses the same
// pure-Go modernc.org/sqlite driver and WAL pragmas as the rest of the
// bundle's SQLite artifacts.
func Open(path string) (*Index, error) {
	dsn := path
	if path == "" {
		dsn = ":memory:"
	} else {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, bundleerrors.New(bundleerrors.ErrCodeFilePermission, "failed to create index directory", err)
		}
		if verr := validateIntegrity(path); verr != nil {
			slog.Warn("fts_index_corrupted", slog.String("path", path), slog.String("error", verr.Error()))
			_ = os.Remove(path)
			_ = os.Remove(path + "-wal")
			_ = os.Remove(path + "-shm")
		}
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, bundleerrors.New(bundleerrors.ErrCodeFilePermission, "failed to open FTS index", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA cache_size = -65536",
		"PRAGMA temp_store = MEMORY",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, bundleerrors.New(bundleerrors.ErrCodeIndexFailed, "failed to set pragma", err)
		}
	}

	idx := &Index{db: db, path: path}
	if err := idx.initSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return idx, nil
}

func validateIntegrity(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	db, err := sql.Open("sqlite", path+"?mode=ro")
	if err != nil {
		return fmt.Errorf("cannot open for validation: %w", err)
	}
	defer db.Close()

	var result string
	if err := db.QueryRow("PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("integrity check failed: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("database corrupted: %s", result)
	}

	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='fts_lines'`).Scan(&count); err != nil {
		return fmt.Errorf("cannot query schema: %w", err)
	}
	if count == 0 {
		return fmt.Errorf("FTS5 table 'fts_lines' missing")
	}
	return nil
}

func (idx *Index) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS schema_version (version INTEGER PRIMARY KEY);

	CREATE VIRTUAL TABLE IF NOT EXISTS fts_lines USING fts5(
		path UNINDEXED,
		kind UNINDEXED,
		repo_id UNINDEXED,
		line_no UNINDEXED,
		text,
		tokenize='unicode61'
	);

	CREATE TABLE IF NOT EXISTS files (
		path     TEXT PRIMARY KEY,
		kind     TEXT NOT NULL,
		repo_id  TEXT NOT NULL,
		lines    INTEGER NOT NULL
	);

	INSERT OR IGNORE INTO schema_version (version) VALUES (1);
	`
	_, err := idx.db.Exec(schema)
	if err != nil {
		return bundleerrors.New(bundleerrors.ErrCodeIndexFailed, "failed to initialize FTS schema", err)
	}
	return nil
}

// Rebuild replaces the entire index with lines and files, in one
// transaction.
func (idx *Index) Rebuild(ctx context.Context, lines []Line, files []FileMeta) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	tx, err := idx.db.BeginTx(ctx, nil)
	if err != nil {
		return bundleerrors.New(bundleerrors.ErrCodeIndexFailed, "failed to begin FTS rebuild transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM fts_lines`); err != nil {
		return bundleerrors.New(bundleerrors.ErrCodeIndexFailed, "failed to clear FTS lines", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM files`); err != nil {
		return bundleerrors.New(bundleerrors.ErrCodeIndexFailed, "failed to clear files table", err)
	}

	lineStmt, err := tx.PrepareContext(ctx, `INSERT INTO fts_lines(path, kind, repo_id, line_no, text) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return bundleerrors.New(bundleerrors.ErrCodeIndexFailed, "failed to prepare line insert", err)
	}
	defer lineStmt.Close()

	for _, l := range lines {
		content := indexableText(l)
		if _, err := lineStmt.ExecContext(ctx, l.BundleRelPath, string(l.Kind), l.RepoID, l.LineNo, content); err != nil {
			return bundleerrors.New(bundleerrors.ErrCodeIndexFailed, "failed to index line", err)
		}
	}

	fileStmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO files(path, kind, repo_id, lines) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return bundleerrors.New(bundleerrors.ErrCodeIndexFailed, "failed to prepare file insert", err)
	}
	defer fileStmt.Close()

	for _, f := range files {
		if _, err := fileStmt.ExecContext(ctx, f.Path, string(f.Kind), f.RepoID, f.Lines); err != nil {
			return bundleerrors.New(bundleerrors.ErrCodeIndexFailed, "failed to index file metadata", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return bundleerrors.New(bundleerrors.ErrCodeIndexFailed, "failed to commit FTS rebuild", err)
	}
	return nil
}

// indexableText is the text actually stored in the FTS5 table: the raw
// line, supplemented for code-kind rows with the teacher's camelCase /
// snake_case sub-token expansion so identifiers remain searchable by their
// parts (e.g. "getUserById" also matches "user").
func indexableText(l Line) string {
	if l.Kind != KindCode {
		return l.Text
	}
	expanded := store.TokenizeCode(l.Text)
	if len(expanded) == 0 {
		return l.Text
	}
	return l.Text + " " + strings.Join(expanded, " ")
}

// Search runs query (already built by BuildQuery) against the index,
// filtering by scope, and returns up to limit hits ordered by rank.
func (idx *Index) Search(ctx context.Context, queryExpr string, scope Scope, limit int) ([]Hit, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if strings.TrimSpace(queryExpr) == "" {
		return []Hit{}, nil
	}

	sqlQuery := `
		SELECT path, kind, repo_id, line_no, text, bm25(fts_lines) as score
		FROM fts_lines
		WHERE fts_lines MATCH ?`
	args := []any{queryExpr}
	if scope == ScopeDocs || scope == ScopeCode {
		sqlQuery += ` AND kind = ?`
		args = append(args, string(scopeToKind(scope)))
	}
	sqlQuery += ` ORDER BY score LIMIT ?`
	args = append(args, limit)

	rows, err := idx.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		if strings.Contains(err.Error(), "fts5:") || strings.Contains(err.Error(), "syntax error") {
			return []Hit{}, nil
		}
		return nil, bundleerrors.New(bundleerrors.ErrCodeSearchFailed, "FTS search failed", err)
	}
	defer rows.Close()

	var hits []Hit
	for rows.Next() {
		var h Hit
		var kind, repo string
		var score float64
		if err := rows.Scan(&h.Path, &kind, &repo, &h.LineNo, &h.Snippet, &score); err != nil {
			return nil, bundleerrors.New(bundleerrors.ErrCodeSearchFailed, "failed to scan FTS hit", err)
		}
		h.Kind = Kind(kind)
		h.Repo = repo
		h.Score = -score
		h.URI = fmt.Sprintf("preflight://bundle/%s/file/%s", repo, h.Path)
		hits = append(hits, h)
	}
	if hits == nil {
		hits = []Hit{}
	}
	return hits, rows.Err()
}

func scopeToKind(s Scope) Kind {
	if s == ScopeDocs {
		return KindDoc
	}
	return KindCode
}

// Close checkpoints the WAL and closes the underlying database.
func (idx *Index) Close() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if idx.db == nil {
		return nil
	}
	_, _ = idx.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	return idx.db.Close()
}

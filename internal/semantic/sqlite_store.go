package semantic

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"

	bundleerrors "github.com/preflightbundle/preflightbundle/internal/errors"
	_ "modernc.org/sqlite"
)

// SQLiteIndex is the default semantic index: a SQLite table keyed by
// chunk ID with a BLOB vector column, searched by exhaustive cosine over
// the kind/repo-filtered candidate set. This is the spec-conformant
// implementation; HNSWIndex offers the same Index interface as an
// approximate, faster alternative.
type SQLiteIndex struct {
	mu   sync.RWMutex
	db   *sql.DB
	path string
}

var _ Index = (*SQLiteIndex)(nil)

// OpenSQLiteIndex opens or creates the vector table at path (empty path
// opens an in-memory index, used by tests).
func OpenSQLiteIndex(path string) (*SQLiteIndex, error) {
	dsn := path
	if path == "" {
		dsn = ":memory:"
	} else if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, bundleerrors.New(bundleerrors.ErrCodeFilePermission, "failed to create vector index directory", err)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, bundleerrors.New(bundleerrors.ErrCodeFilePermission, "failed to open vector index", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, bundleerrors.New(bundleerrors.ErrCodeIndexFailed, "failed to set pragma", err)
		}
	}

	idx := &SQLiteIndex{db: db, path: path}
	if err := idx.initSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return idx, nil
}

func (idx *SQLiteIndex) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS chunk_vectors (
		chunk_id   TEXT PRIMARY KEY,
		kind       TEXT NOT NULL,
		repo_id    TEXT NOT NULL,
		path       TEXT NOT NULL DEFAULT '',
		start_line INTEGER NOT NULL DEFAULT 0,
		end_line   INTEGER NOT NULL DEFAULT 0,
		dim        INTEGER NOT NULL,
		vector     BLOB NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_chunk_vectors_kind ON chunk_vectors(kind);
	CREATE INDEX IF NOT EXISTS idx_chunk_vectors_repo ON chunk_vectors(repo_id);
	`
	_, err := idx.db.Exec(schema)
	if err != nil {
		return bundleerrors.New(bundleerrors.ErrCodeIndexFailed, "failed to initialize vector schema", err)
	}
	return nil
}

// Upsert inserts or replaces embeddings for the given items.
func (idx *SQLiteIndex) Upsert(ctx context.Context, items []Item) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	tx, err := idx.db.BeginTx(ctx, nil)
	if err != nil {
		return bundleerrors.New(bundleerrors.ErrCodeIndexFailed, "failed to begin vector upsert transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunk_vectors(chunk_id, kind, repo_id, path, start_line, end_line, dim, vector)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(chunk_id) DO UPDATE SET kind=excluded.kind, repo_id=excluded.repo_id,
			path=excluded.path, start_line=excluded.start_line, end_line=excluded.end_line,
			dim=excluded.dim, vector=excluded.vector
	`)
	if err != nil {
		return bundleerrors.New(bundleerrors.ErrCodeIndexFailed, "failed to prepare vector upsert", err)
	}
	defer stmt.Close()

	for _, item := range items {
		blob := encodeVector(item.Vector)
		if _, err := stmt.ExecContext(ctx, item.ChunkID, item.Kind, item.RepoID, item.Path, item.StartLine, item.EndLine, len(item.Vector), blob); err != nil {
			return bundleerrors.New(bundleerrors.ErrCodeIndexFailed, "failed to upsert vector", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return bundleerrors.New(bundleerrors.ErrCodeIndexFailed, "failed to commit vector upsert", err)
	}
	return nil
}

// Delete removes embeddings by chunk ID.
func (idx *SQLiteIndex) Delete(ctx context.Context, chunkIDs []string) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	tx, err := idx.db.BeginTx(ctx, nil)
	if err != nil {
		return bundleerrors.New(bundleerrors.ErrCodeIndexFailed, "failed to begin vector delete transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `DELETE FROM chunk_vectors WHERE chunk_id = ?`)
	if err != nil {
		return bundleerrors.New(bundleerrors.ErrCodeIndexFailed, "failed to prepare vector delete", err)
	}
	defer stmt.Close()

	for _, id := range chunkIDs {
		if _, err := stmt.ExecContext(ctx, id); err != nil {
			return bundleerrors.New(bundleerrors.ErrCodeIndexFailed, "failed to delete vector", err)
		}
	}
	return tx.Commit()
}

// Search returns the k nearest neighbors by cosine similarity among rows
// matching filter. The scan is exhaustive over the filtered candidate set,
// matching the spec's search semantics exactly (no ANN approximation).
func (idx *SQLiteIndex) Search(ctx context.Context, query []float32, k int, filter Filter) ([]Result, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	sqlQuery := `SELECT chunk_id, repo_id, path, start_line, end_line, vector FROM chunk_vectors WHERE 1=1`
	var args []any
	if filter.Kind != "" {
		sqlQuery += ` AND kind = ?`
		args = append(args, filter.Kind)
	}
	if filter.RepoID != "" {
		sqlQuery += ` AND repo_id = ?`
		args = append(args, filter.RepoID)
	}

	rows, err := idx.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, bundleerrors.New(bundleerrors.ErrCodeSearchFailed, "vector search failed", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var chunkID, repoID, path string
		var startLine, endLine int
		var blob []byte
		if err := rows.Scan(&chunkID, &repoID, &path, &startLine, &endLine, &blob); err != nil {
			return nil, bundleerrors.New(bundleerrors.ErrCodeSearchFailed, "failed to scan vector row", err)
		}
		vec := decodeVector(blob)
		score, err := cosineSimilarity(query, vec)
		if err != nil {
			continue
		}
		results = append(results, Result{ChunkID: chunkID, Score: score, RepoID: repoID, Path: path, StartLine: startLine, EndLine: endLine})
	}
	if err := rows.Err(); err != nil {
		return nil, bundleerrors.New(bundleerrors.ErrCodeSearchFailed, "vector search iteration failed", err)
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if k > 0 && len(results) > k {
		results = results[:k]
	}
	if results == nil {
		results = []Result{}
	}
	return results, nil
}

// Count returns the number of stored embeddings.
func (idx *SQLiteIndex) Count() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	var count int
	if err := idx.db.QueryRow(`SELECT COUNT(*) FROM chunk_vectors`).Scan(&count); err != nil {
		return 0
	}
	return count
}

// Close checkpoints the WAL and closes the underlying database.
func (idx *SQLiteIndex) Close() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if idx.db == nil {
		return nil
	}
	_, _ = idx.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	return idx.db.Close()
}

func encodeVector(v []float32) []byte {
	buf := new(bytes.Buffer)
	buf.Grow(len(v) * 4)
	for _, f := range v {
		_ = binary.Write(buf, binary.LittleEndian, f)
	}
	return buf.Bytes()
}

func decodeVector(blob []byte) []float32 {
	n := len(blob) / 4
	v := make([]float32, n)
	for i := 0; i < n; i++ {
		bits := binary.LittleEndian.Uint32(blob[i*4 : i*4+4])
		v[i] = math.Float32frombits(bits)
	}
	return v
}

func cosineSimilarity(a, b []float32) (float32, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("dimension mismatch: %d vs %d", len(a), len(b))
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0, nil
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB))), nil
}

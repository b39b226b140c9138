package vectordb

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cloudwego/eino/schema"
	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore persists an index snapshot: chunk text, metadata and vectors.
type SQLiteStore struct {
	db *sql.DB
}

type SnapshotInfo struct {
	Embedder  string
	Dimension int
	Count     int
	BuiltAt   time.Time
}

func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create vector db dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open vector db: %w", err)
	}
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.createTables(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) createTables() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS chunks (
			id TEXT PRIMARY KEY,
			position INTEGER NOT NULL,
			content TEXT NOT NULL,
			metadata TEXT,
			vector TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS snapshot (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			embedder TEXT NOT NULL,
			dimension INTEGER NOT NULL,
			built_at DATETIME NOT NULL
		)`,
	}
	for _, q := range queries {
		if _, err := s.db.Exec(q); err != nil {
			return fmt.Errorf("create vector db tables: %w", err)
		}
	}
	return nil
}

// Save replaces the stored snapshot in one transaction.
func (s *SQLiteStore) Save(ctx context.Context, embedderName string, docs []*schema.Document, vectors [][]float64) error {
	if len(docs) != len(vectors) {
		return fmt.Errorf("documents and vectors length mismatch: %d != %d", len(docs), len(vectors))
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin snapshot tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks`); err != nil {
		return fmt.Errorf("clear chunks: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO chunks (id, position, content, metadata, vector) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare chunk insert: %w", err)
	}
	defer stmt.Close()

	for i, d := range docs {
		meta, err := json.Marshal(d.MetaData)
		if err != nil {
			return fmt.Errorf("marshal chunk %s metadata: %w", d.ID, err)
		}
		vec, err := json.Marshal(vectors[i])
		if err != nil {
			return fmt.Errorf("marshal chunk %s vector: %w", d.ID, err)
		}
		if _, err := stmt.ExecContext(ctx, d.ID, i, d.Content, string(meta), string(vec)); err != nil {
			return fmt.Errorf("insert chunk %s: %w", d.ID, err)
		}
	}

	dim := 0
	if len(vectors) > 0 {
		dim = len(vectors[0])
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO snapshot (id, embedder, dimension, built_at) VALUES (1, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET embedder = excluded.embedder, dimension = excluded.dimension, built_at = excluded.built_at`,
		embedderName, dim, time.Now().UTC(),
	); err != nil {
		return fmt.Errorf("write snapshot info: %w", err)
	}

	return tx.Commit()
}

// Load returns the stored snapshot in insertion order.
func (s *SQLiteStore) Load(ctx context.Context) ([]*schema.Document, [][]float64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, content, metadata, vector FROM chunks ORDER BY position ASC`)
	if err != nil {
		return nil, nil, fmt.Errorf("query chunks: %w", err)
	}
	defer rows.Close()

	var (
		docs    []*schema.Document
		vectors [][]float64
	)
	for rows.Next() {
		var (
			id, content string
			meta        sql.NullString
			rawVec      string
		)
		if err := rows.Scan(&id, &content, &meta, &rawVec); err != nil {
			return nil, nil, fmt.Errorf("scan chunk: %w", err)
		}
		d := &schema.Document{ID: id, Content: content}
		if meta.Valid && meta.String != "" && meta.String != "null" {
			if err := json.Unmarshal([]byte(meta.String), &d.MetaData); err != nil {
				return nil, nil, fmt.Errorf("decode chunk %s metadata: %w", id, err)
			}
		}
		var vec []float64
		if err := json.Unmarshal([]byte(rawVec), &vec); err != nil {
			return nil, nil, fmt.Errorf("decode chunk %s vector: %w", id, err)
		}
		docs = append(docs, d)
		vectors = append(vectors, vec)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate chunks: %w", err)
	}
	return docs, vectors, nil
}

func (s *SQLiteStore) Info(ctx context.Context) (SnapshotInfo, error) {
	var info SnapshotInfo
	err := s.db.QueryRowContext(ctx, `SELECT embedder, dimension, built_at FROM snapshot WHERE id = 1`).
		Scan(&info.Embedder, &info.Dimension, &info.BuiltAt)
	if err == sql.ErrNoRows {
		return SnapshotInfo{}, nil
	}
	if err != nil {
		return SnapshotInfo{}, fmt.Errorf("read snapshot info: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&info.Count); err != nil {
		return SnapshotInfo{}, fmt.Errorf("count chunks: %w", err)
	}
	return info, nil
}

// Package sqlite persists documents and chunks in a SQLite file. Vectors are
// stored as JSON arrays.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/kenzatoreis/hiringbuddy/internal/store"
	"github.com/kenzatoreis/hiringbuddy/internal/store/sqlite/migrations"
)

type Store struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

var _ store.Store = (*Store)(nil)

// Open opens or creates the database at path and applies pending migrations.
func Open(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("sqlite path is required")
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
	}

	// foreign_keys is a per-connection setting, so it goes in the DSN.
	dsn := path + "?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// SQLite allows a single writer at a time.
	db.SetMaxOpenConns(1)

	s := &Store{db: db, path: path, now: time.Now}
	if err := s.migrate(context.Background(), migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

func (s *Store) Path() string {
	return s.path
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate(ctx context.Context, fsys fs.FS) error {
	if _, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`); err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var current int
	if err := s.db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&current); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var files []string
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".up.sql") {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)

	for _, name := range files {
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil || version <= current {
			continue
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}

		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin migration %s: %w", name, err)
		}
		if _, err := tx.ExecContext(ctx, string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
		if _, err := tx.ExecContext(ctx, "INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %s: %w", name, err)
		}
	}

	return nil
}

func (s *Store) SaveDocument(ctx context.Context, doc store.Document) (store.Document, error) {
	doc, err := store.PrepareDocument(doc, s.now())
	if err != nil {
		return store.Document{}, err
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO documents (id, owner_id, name, text, created_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO NOTHING`,
		doc.ID, doc.OwnerID, doc.Name, doc.Text, doc.CreatedAt.UnixNano(),
	)
	if err != nil {
		return store.Document{}, fmt.Errorf("inserting document %s: %w", doc.ID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return store.Document{}, fmt.Errorf("inserting document %s: %w", doc.ID, store.ErrExists)
	}

	return doc, nil
}

func (s *Store) SaveChunks(ctx context.Context, documentID string, chunks []store.Chunk) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx, "SELECT 1 FROM documents WHERE id = ?", documentID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("save chunks for %s: %w", documentID, store.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("checking document %s: %w", documentID, err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO chunks (document_id, idx, text, embedding_json) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing chunk insert: %w", err)
	}
	defer stmt.Close()

	for _, ch := range chunks {
		vec, err := json.Marshal(ch.Vector)
		if err != nil {
			return fmt.Errorf("marshalling vector of chunk %d: %w", ch.Index, err)
		}
		if _, err := stmt.ExecContext(ctx, documentID, ch.Index, ch.Text, string(vec)); err != nil {
			return fmt.Errorf("inserting chunk %d: %w", ch.Index, err)
		}
	}

	return tx.Commit()
}

func (s *Store) ListChunks(ctx context.Context, documentID string) ([]store.Chunk, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, "SELECT 1 FROM documents WHERE id = ?", documentID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("list chunks for %s: %w", documentID, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("checking document %s: %w", documentID, err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT idx, text, embedding_json FROM chunks WHERE document_id = ? ORDER BY idx`, documentID)
	if err != nil {
		return nil, fmt.Errorf("querying chunks: %w", err)
	}
	defer rows.Close()

	var out []store.Chunk
	for rows.Next() {
		ch := store.Chunk{DocumentID: documentID}
		var raw string
		if err := rows.Scan(&ch.Index, &ch.Text, &raw); err != nil {
			return nil, fmt.Errorf("scanning chunk: %w", err)
		}
		if err := json.Unmarshal([]byte(raw), &ch.Vector); err != nil {
			return nil, fmt.Errorf("decoding vector of chunk %d: %w", ch.Index, err)
		}
		out = append(out, ch)
	}
	return out, rows.Err()
}

func (s *Store) ListDocuments(ctx context.Context, ownerID string, limit int) ([]store.Document, error) {
	query := `SELECT id, owner_id, name, text, created_at FROM documents
		WHERE owner_id = ? ORDER BY created_at DESC, rowid DESC`
	args := []any{ownerID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()

	var out []store.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, rows.Err()
}

func (s *Store) GetDocument(ctx context.Context, ownerID, documentID string) (store.Document, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, owner_id, name, text, created_at FROM documents WHERE id = ? AND owner_id = ?`,
		documentID, ownerID)

	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Document{}, store.ErrNotFound
	}
	return doc, err
}

func (s *Store) Summaries(ctx context.Context, ownerID string) ([]store.DocumentSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT d.id, d.name, d.created_at, COUNT(c.idx)
		FROM documents d
		LEFT JOIN chunks c ON c.document_id = d.id
		WHERE d.owner_id = ?
		GROUP BY d.id
		ORDER BY d.created_at DESC, d.rowid DESC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("querying summaries: %w", err)
	}
	defer rows.Close()

	var out []store.DocumentSummary
	for rows.Next() {
		var (
			sum     store.DocumentSummary
			created int64
		)
		if err := rows.Scan(&sum.ID, &sum.Name, &created, &sum.ChunkCount); err != nil {
			return nil, fmt.Errorf("scanning summary: %w", err)
		}
		sum.CreatedAt = time.Unix(0, created).UTC()
		out = append(out, sum)
	}
	return out, rows.Err()
}

func (s *Store) DeleteDocument(ctx context.Context, ownerID, documentID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ? AND owner_id = ?`, documentID, ownerID)
	if err != nil {
		return fmt.Errorf("deleting document %s: %w", documentID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting document %s: %w", documentID, err)
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteOwner(ctx context.Context, ownerID string) (int, error) {
	if strings.TrimSpace(ownerID) == "" {
		return 0, store.ErrOwnerMissing
	}

	res, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE owner_id = ?`, ownerID)
	if err != nil {
		return 0, fmt.Errorf("deleting documents of %s: %w", ownerID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("deleting documents of %s: %w", ownerID, err)
	}
	return int(n), nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDocument(row scanner) (store.Document, error) {
	var (
		doc     store.Document
		created int64
	)
	if err := row.Scan(&doc.ID, &doc.OwnerID, &doc.Name, &doc.Text, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.Document{}, err
		}
		return store.Document{}, fmt.Errorf("scanning document: %w", err)
	}
	doc.CreatedAt = time.Unix(0, created).UTC()
	return doc, nil
}

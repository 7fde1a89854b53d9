package rulebook

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/liamcoop/shelflife/shelflife"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store in a single SQLite file, for single-node
// deployments and the CLI. The schema is created on open.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

func sqliteSchema() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS rule_books (
			version    INTEGER PRIMARY KEY,
			note       TEXT NOT NULL DEFAULT '',
			source     TEXT NOT NULL DEFAULT '',
			definition TEXT NOT NULL,
			active     INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS rule_books_one_active ON rule_books(active) WHERE active = 1`,
	}
}

// OpenSQLiteStore opens (or creates) the database at path
func OpenSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// one writer at a time
	db.SetMaxOpenConns(1)

	for _, stmt := range sqliteSchema() {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to create schema: %w", err)
		}
	}

	return &SQLiteStore{db: db, now: time.Now}, nil
}

// Close closes the underlying database
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const sqliteSelect = `SELECT version, note, source, definition, active, created_at FROM rule_books `

func scanSQLiteRecord(row rowScanner) (*Record, error) {
	var (
		r          Record
		definition string
		createdAt  string
	)
	if err := row.Scan(&r.Version, &r.Note, &r.Source, &definition, &r.Active, &createdAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(definition), &r.Book); err != nil {
		return nil, fmt.Errorf("invalid definition for version %d: %w", r.Version, err)
	}
	t, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return nil, fmt.Errorf("invalid created_at for version %d: %w", r.Version, err)
	}
	r.CreatedAt = t
	return &r, nil
}

func (s *SQLiteStore) Active(ctx context.Context) (*Record, error) {
	r, err := scanSQLiteRecord(s.db.QueryRowContext(ctx, sqliteSelect+`WHERE active = 1`))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: no active version", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get active rule book: %w", err)
	}
	return r, nil
}

func (s *SQLiteStore) Get(ctx context.Context, version int) (*Record, error) {
	r, err := scanSQLiteRecord(s.db.QueryRowContext(ctx, sqliteSelect+`WHERE version = ?`, version))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: version %d", ErrNotFound, version)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get rule book %d: %w", version, err)
	}
	return r, nil
}

func (s *SQLiteStore) List(ctx context.Context) ([]*Record, error) {
	rows, err := s.db.QueryContext(ctx, sqliteSelect+`ORDER BY version DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list rule books: %w", err)
	}
	defer rows.Close()

	records := []*Record{}
	for rows.Next() {
		r, err := scanSQLiteRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan rule book: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rule books: %w", err)
	}
	return records, nil
}

func (s *SQLiteStore) Publish(ctx context.Context, book shelflife.RuleBook, note, source string) (*Record, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var version int
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) + 1 FROM rule_books`).Scan(&version); err != nil {
		return nil, fmt.Errorf("failed to assign version: %w", err)
	}

	book = book.Clone()
	book.Version = version
	definition, err := json.Marshal(book)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal rule book: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `UPDATE rule_books SET active = 0 WHERE active = 1`); err != nil {
		return nil, fmt.Errorf("failed to deactivate rule books: %w", err)
	}

	r := &Record{Version: version, Note: note, Source: source, Book: book, Active: true, CreatedAt: s.now().UTC()}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO rule_books (version, note, source, definition, active, created_at)
		VALUES (?, ?, ?, ?, 1, ?)
	`, version, note, source, string(definition), r.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return nil, fmt.Errorf("failed to insert rule book: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit rule book %d: %w", version, err)
	}
	return r, nil
}

func (s *SQLiteStore) Activate(ctx context.Context, version int) (*Record, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	r, err := scanSQLiteRecord(tx.QueryRowContext(ctx, sqliteSelect+`WHERE version = ?`, version))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: version %d", ErrNotFound, version)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get rule book %d: %w", version, err)
	}

	if _, err := tx.ExecContext(ctx, `UPDATE rule_books SET active = 0 WHERE active = 1`); err != nil {
		return nil, fmt.Errorf("failed to deactivate rule books: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE rule_books SET active = 1 WHERE version = ?`, version); err != nil {
		return nil, fmt.Errorf("failed to activate rule book %d: %w", version, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit activation of %d: %w", version, err)
	}
	r.Active = true
	return r, nil
}

package rulebook

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/liamcoop/shelflife/shelflife"
	_ "github.com/lib/pq"
)

// PostgresStore implements Store on the rule_books table
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a PostgreSQL-backed Store
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const selectRecord = `
	SELECT version, note, source, definition, active, created_at
	FROM rule_books
`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*Record, error) {
	var r Record
	var definition []byte
	if err := row.Scan(&r.Version, &r.Note, &r.Source, &definition, &r.Active, &r.CreatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(definition, &r.Book); err != nil {
		return nil, fmt.Errorf("invalid definition for version %d: %w", r.Version, err)
	}
	return &r, nil
}

func (s *PostgresStore) Active(ctx context.Context) (*Record, error) {
	r, err := scanRecord(s.db.QueryRowContext(ctx, selectRecord+`WHERE active = true`))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: no active version", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get active rule book: %w", err)
	}
	return r, nil
}

func (s *PostgresStore) Get(ctx context.Context, version int) (*Record, error) {
	r, err := scanRecord(s.db.QueryRowContext(ctx, selectRecord+`WHERE version = $1`, version))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: version %d", ErrNotFound, version)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get rule book %d: %w", version, err)
	}
	return r, nil
}

func (s *PostgresStore) List(ctx context.Context) ([]*Record, error) {
	rows, err := s.db.QueryContext(ctx, selectRecord+`ORDER BY version DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list rule books: %w", err)
	}
	defer rows.Close()

	records := []*Record{}
	for rows.Next() {
		r, err := scanRecord(rows)
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

func (s *PostgresStore) Publish(ctx context.Context, book shelflife.RuleBook, note, source string) (*Record, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// serialize version assignment between concurrent publishers
	if _, err := tx.ExecContext(ctx, `LOCK TABLE rule_books IN SHARE ROW EXCLUSIVE MODE`); err != nil {
		return nil, fmt.Errorf("failed to lock rule_books: %w", err)
	}

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

	if _, err := tx.ExecContext(ctx, `UPDATE rule_books SET active = false WHERE active = true`); err != nil {
		return nil, fmt.Errorf("failed to deactivate rule books: %w", err)
	}

	r := &Record{Version: version, Note: note, Source: source, Book: book, Active: true}
	err = tx.QueryRowContext(ctx, `
		INSERT INTO rule_books (version, note, source, definition, active, created_at)
		VALUES ($1, $2, $3, $4, true, NOW())
		RETURNING created_at
	`, version, note, source, definition).Scan(&r.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert rule book: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit rule book %d: %w", version, err)
	}
	return r, nil
}

func (s *PostgresStore) Activate(ctx context.Context, version int) (*Record, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var exists bool
	if err := tx.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM rule_books WHERE version = $1)`, version).Scan(&exists); err != nil {
		return nil, fmt.Errorf("failed to check rule book %d: %w", version, err)
	}
	if !exists {
		return nil, fmt.Errorf("%w: version %d", ErrNotFound, version)
	}

	if _, err := tx.ExecContext(ctx, `UPDATE rule_books SET active = false WHERE active = true AND version <> $1`, version); err != nil {
		return nil, fmt.Errorf("failed to deactivate rule books: %w", err)
	}
	r, err := scanRecord(tx.QueryRowContext(ctx, `
		UPDATE rule_books SET active = true WHERE version = $1
		RETURNING version, note, source, definition, active, created_at
	`, version))
	if err != nil {
		return nil, fmt.Errorf("failed to activate rule book %d: %w", version, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit activation of %d: %w", version, err)
	}
	return r, nil
}

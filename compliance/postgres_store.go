package compliance

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// PostgresCheckStore implements CheckStore backed by the compliance_checks table
type PostgresCheckStore struct {
	db *sql.DB
}

// NewPostgresCheckStore creates a new PostgreSQL-backed CheckStore
func NewPostgresCheckStore(db *sql.DB) *PostgresCheckStore {
	return &PostgresCheckStore{db: db}
}

// Add inserts a new check
func (s *PostgresCheckStore) Add(ctx context.Context, check *Check) error {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM compliance_checks WHERE id = $1)
	`, check.ID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check existence of check: %w", err)
	}
	if exists {
		return fmt.Errorf("%w: %s", ErrCheckExists, check.ID)
	}

	now := time.Now().UTC().Truncate(time.Microsecond)
	check.CreatedAt = now
	check.UpdatedAt = now

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO compliance_checks (id, name, reason, expression, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, check.ID, check.Name, check.Reason, check.Expression, check.Active,
		check.CreatedAt, check.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert check: %w", err)
	}

	return nil
}

// Get retrieves a check by ID
func (s *PostgresCheckStore) Get(ctx context.Context, id string) (*Check, error) {
	var c Check
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, reason, expression, active, created_at, updated_at
		FROM compliance_checks
		WHERE id = $1
	`, id).Scan(&c.ID, &c.Name, &c.Reason, &c.Expression, &c.Active, &c.CreatedAt, &c.UpdatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrCheckNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get check: %w", err)
	}

	return &c, nil
}

// List returns all checks
func (s *PostgresCheckStore) List(ctx context.Context) ([]*Check, error) {
	return s.query(ctx, `
		SELECT id, name, reason, expression, active, created_at, updated_at
		FROM compliance_checks
		ORDER BY created_at ASC, id ASC
	`)
}

// ListActive returns all active checks
func (s *PostgresCheckStore) ListActive(ctx context.Context) ([]*Check, error) {
	return s.query(ctx, `
		SELECT id, name, reason, expression, active, created_at, updated_at
		FROM compliance_checks
		WHERE active = true
		ORDER BY created_at ASC, id ASC
	`)
}

func (s *PostgresCheckStore) query(ctx context.Context, query string) ([]*Check, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list checks: %w", err)
	}
	defer rows.Close()

	checks := []*Check{}
	for rows.Next() {
		var c Check
		if err := rows.Scan(&c.ID, &c.Name, &c.Reason, &c.Expression, &c.Active,
			&c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan check: %w", err)
		}
		checks = append(checks, &c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating checks: %w", err)
	}

	return checks, nil
}

// Update modifies an existing check, preserving created_at
func (s *PostgresCheckStore) Update(ctx context.Context, check *Check) error {
	check.UpdatedAt = time.Now().UTC().Truncate(time.Microsecond)

	err := s.db.QueryRowContext(ctx, `
		UPDATE compliance_checks
		SET name = $1, reason = $2, expression = $3, active = $4, updated_at = $5
		WHERE id = $6
		RETURNING created_at
	`, check.Name, check.Reason, check.Expression, check.Active, check.UpdatedAt, check.ID).Scan(&check.CreatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", ErrCheckNotFound, check.ID)
	}
	if err != nil {
		return fmt.Errorf("failed to update check: %w", err)
	}

	return nil
}

// Delete removes a check
func (s *PostgresCheckStore) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM compliance_checks
		WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("failed to delete check: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrCheckNotFound, id)
	}

	return nil
}

package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/openshelf/openshelf-server/internal/domain"
)

const (
	authorsTable    = "authors"
	publishersTable = "publishers"
)

// EnsureAuthor returns the first author whose name matches exactly,
// creating one if none exists. A blank name maps to the placeholder.
func (s *Store) EnsureAuthor(ctx context.Context, name string) (*domain.Author, error) {
	name = domain.AuthorOrPlaceholder(name)
	rec, err := ensureNamed(ctx, s.db, authorsTable, name)
	if err != nil {
		return nil, err
	}
	return &domain.Author{Record: rec, Name: name}, nil
}

// EnsurePublisher is EnsureAuthor for publishers.
func (s *Store) EnsurePublisher(ctx context.Context, name string) (*domain.Publisher, error) {
	name = domain.PublisherOrPlaceholder(name)
	rec, err := ensureNamed(ctx, s.db, publishersTable, name)
	if err != nil {
		return nil, err
	}
	return &domain.Publisher{Record: rec, Name: name}, nil
}

// ensureNamed finds a row by exact, case-sensitive name or inserts one.
// The oldest row wins when duplicates exist.
func ensureNamed(ctx context.Context, q querier, table, name string) (domain.Record, error) {
	var (
		rec       domain.Record
		createdAt string
		updatedAt string
	)

	err := q.QueryRowContext(ctx,
		`SELECT id, created_at, updated_at FROM `+table+` WHERE name = ? ORDER BY rowid LIMIT 1`, name,
	).Scan(&rec.ID, &createdAt, &updatedAt)

	switch {
	case err == nil:
		if rec.CreatedAt, err = parseTime(createdAt); err != nil {
			return rec, err
		}
		if rec.UpdatedAt, err = parseTime(updatedAt); err != nil {
			return rec, err
		}
		return rec, nil
	case !errors.Is(err, sql.ErrNoRows):
		return rec, fmt.Errorf("find %s %q: %w", table, name, err)
	}

	rec.ID = uuid.New().String()
	rec.InitTimestamps()

	_, err = q.ExecContext(ctx,
		`INSERT INTO `+table+` (id, created_at, updated_at, name) VALUES (?, ?, ?, ?)`,
		rec.ID, formatTime(rec.CreatedAt), formatTime(rec.UpdatedAt), name,
	)
	if err != nil {
		return rec, fmt.Errorf("insert %s %q: %w", table, name, err)
	}
	return rec, nil
}

package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// lastUpdated returns the most recent updated_at across books, authors and
// publishers, or the zero time for an empty cache.
func (s *Store) lastUpdated(ctx context.Context) (time.Time, error) {
	var maxUpdated sql.NullString

	err := s.db.QueryRowContext(ctx, `
		SELECT MAX(updated_at) FROM (
			SELECT updated_at FROM books
			UNION ALL
			SELECT updated_at FROM authors
			UNION ALL
			SELECT updated_at FROM publishers
		)`).Scan(&maxUpdated)
	if err != nil {
		return time.Time{}, fmt.Errorf("query last update: %w", err)
	}

	if !maxUpdated.Valid || maxUpdated.String == "" {
		return time.Time{}, nil
	}

	t, err := parseTime(maxUpdated.String)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse last update: %w", err)
	}

	return t, nil
}

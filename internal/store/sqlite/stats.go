package sqlite

import (
	"context"
	"fmt"

	"github.com/openshelf/openshelf-server/internal/domain"
)

// CacheStats counts books, authors and publishers and reports the latest write.
func (s *Store) CacheStats(ctx context.Context) (*domain.CacheStats, error) {
	var stats domain.CacheStats
	err := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM books),
			(SELECT COUNT(*) FROM authors),
			(SELECT COUNT(*) FROM publishers)`,
	).Scan(&stats.TotalBooks, &stats.TotalAuthors, &stats.TotalPublishers)
	if err != nil {
		return nil, fmt.Errorf("count cache rows: %w", err)
	}

	last, err := s.lastUpdated(ctx)
	if err != nil {
		return nil, err
	}
	if !last.IsZero() {
		stats.LastUpdated = &last
	}

	return &stats, nil
}

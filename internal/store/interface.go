package store

import (
	"context"

	"github.com/openshelf/openshelf-server/internal/domain"
)

// BookStore persists the local mirror of upstream book metadata.
type BookStore interface {
	// FindBookByISBN matches a normalized ISBN against both ISBN columns.
	// Returns ErrNotFound when no row matches.
	FindBookByISBN(ctx context.Context, isbn string) (*domain.BookView, error)

	// SaveBook ensures the named author and publisher exist and upserts the
	// book, all in one transaction. Books without an ISBN are always inserted.
	SaveBook(ctx context.Context, book *domain.Book, authorName, publisherName string) (*domain.BookView, error)

	EnsureAuthor(ctx context.Context, name string) (*domain.Author, error)
	EnsurePublisher(ctx context.Context, name string) (*domain.Publisher, error)

	// GetBookViews returns the books with the given IDs in the order given.
	// Unknown IDs are skipped.
	GetBookViews(ctx context.Context, ids []string) ([]*domain.BookView, error)

	CacheStats(ctx context.Context) (*domain.CacheStats, error)
}

// SearchIndexer keeps the local search index in step with saved books.
type SearchIndexer interface {
	IndexBook(ctx context.Context, book *domain.BookView) error
}

// NoopSearchIndexer is a no-op implementation for when search is disabled.
type NoopSearchIndexer struct{}

func (NoopSearchIndexer) IndexBook(context.Context, *domain.BookView) error { return nil }

// NewNoopSearchIndexer creates a new no-op search indexer.
func NewNoopSearchIndexer() SearchIndexer { return NoopSearchIndexer{} }

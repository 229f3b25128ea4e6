package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/openshelf/openshelf-server/internal/domain"
	"github.com/openshelf/openshelf-server/internal/search"
	"github.com/openshelf/openshelf-server/internal/store"
)

// BookLister walks every stored book.
type BookLister interface {
	EachBookView(ctx context.Context, fn func(*domain.BookView) error) error
}

// LibrarySearchResult pairs index hits with the stored books they refer to.
type LibrarySearchResult struct {
	Query string             `json:"query"`
	Total uint64             `json:"total"`
	Books []*domain.BookView `json:"books"`
	Hits  []search.SearchHit `json:"hits"`
}

// SearchService provides search over the locally cached books.
// It bridges the search index with the data store.
type SearchService struct {
	index  *search.SearchIndex
	store  store.BookStore
	lister BookLister
	logger *slog.Logger
}

// NewSearchService creates a new search service. lister may be nil when
// reindexing is not needed.
func NewSearchService(index *search.SearchIndex, store store.BookStore, lister BookLister, logger *slog.Logger) *SearchService {
	return &SearchService{
		index:  index,
		store:  store,
		lister: lister,
		logger: logger,
	}
}

// SearchLocal returns stored books matching params in relevance order.
func (s *SearchService) SearchLocal(ctx context.Context, params search.SearchParams) (*LibrarySearchResult, error) {
	res, err := s.index.Search(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("search index: %w", err)
	}

	ids := make([]string, len(res.Hits))
	for i, h := range res.Hits {
		ids[i] = h.ID
	}

	books, err := s.store.GetBookViews(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load books: %w", err)
	}
	if len(books) != len(ids) {
		s.logger.Warn("search index references missing books",
			"hits", len(ids),
			"found", len(books),
		)
	}

	return &LibrarySearchResult{
		Query: res.Query,
		Total: res.Total,
		Books: books,
		Hits:  res.Hits,
	}, nil
}

// Reindex rebuilds the index from every stored book.
func (s *SearchService) Reindex(ctx context.Context) (int, error) {
	if s.lister == nil {
		return 0, fmt.Errorf("reindex: no book lister configured")
	}
	if err := s.index.Rebuild(); err != nil {
		return 0, fmt.Errorf("rebuild index: %w", err)
	}

	const batchSize = 500
	batch := make([]*domain.BookView, 0, batchSize)
	total := 0

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := s.index.IndexBooks(ctx, batch); err != nil {
			return err
		}
		total += len(batch)
		batch = batch[:0]
		return nil
	}

	err := s.lister.EachBookView(ctx, func(b *domain.BookView) error {
		batch = append(batch, b)
		if len(batch) == batchSize {
			return flush()
		}
		return nil
	})
	if err == nil {
		err = flush()
	}
	if err != nil {
		return total, fmt.Errorf("reindex books: %w", err)
	}

	s.logger.Info("reindexed library", "books", total)
	return total, nil
}

// DocumentCount returns the number of indexed books.
func (s *SearchService) DocumentCount() (uint64, error) {
	return s.index.DocumentCount()
}

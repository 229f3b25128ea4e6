package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"

	"github.com/openshelf/openshelf-server/internal/isbndb"
	"github.com/openshelf/openshelf-server/internal/store"
)

// CatalogFetcher is the part of the ISBNdb client behind CatalogService.
type CatalogFetcher interface {
	IsEnabled() bool
	SearchBooks(ctx context.Context, query string, opts isbndb.SearchBooksOptions) (*isbndb.BookSearchResult, error)
	SearchAuthors(ctx context.Context, query string, opts isbndb.PageOptions) (*isbndb.AuthorSearchResult, error)
	SearchPublishers(ctx context.Context, query string, opts isbndb.PageOptions) (*isbndb.PublisherSearchResult, error)
	SearchAll(ctx context.Context, index string, filters map[string]string) (json.RawMessage, error)
	Stats(ctx context.Context) (json.RawMessage, error)
}

// ResponseCache stores upstream responses by key.
type ResponseCache interface {
	GetResponse(ctx context.Context, key string, out any) (bool, error)
	SetResponse(ctx context.Context, key string, value any) error
	DeleteResponse(ctx context.Context, key string) error
	CountResponses(ctx context.Context) (int, error)
	PurgeResponses(ctx context.Context) error
}

var _ ResponseCache = (*store.Cache)(nil)

// CatalogService orchestrates upstream searches with caching.
type CatalogService struct {
	client CatalogFetcher
	cache  ResponseCache
	logger *slog.Logger
}

// NewCatalogService creates a new catalog service. A nil cache disables caching.
func NewCatalogService(client CatalogFetcher, cache ResponseCache, logger *slog.Logger) *CatalogService {
	return &CatalogService{
		client: client,
		cache:  cache,
		logger: logger,
	}
}

// IsEnabled reports whether upstream calls are possible.
func (s *CatalogService) IsEnabled() bool {
	return s.client.IsEnabled()
}

// SearchBooks searches upstream books, using cache if fresh.
func (s *CatalogService) SearchBooks(ctx context.Context, query string, opts isbndb.SearchBooksOptions) (*isbndb.BookSearchResult, error) {
	query = strings.TrimSpace(query)
	key := store.ResponseKey("books", query,
		fmt.Sprint(opts.Page), fmt.Sprint(opts.PageSize),
		opts.Column, fmt.Sprint(opts.Year), fmt.Sprint(opts.Edition),
		strings.ToLower(opts.Language), fmt.Sprint(opts.ShouldMatchAll),
	)
	return cachedFetch(ctx, s, key, func() (*isbndb.BookSearchResult, error) {
		return s.client.SearchBooks(ctx, query, opts)
	})
}

// SearchAuthors searches upstream author names, using cache if fresh.
func (s *CatalogService) SearchAuthors(ctx context.Context, query string, opts isbndb.PageOptions) (*isbndb.AuthorSearchResult, error) {
	query = strings.TrimSpace(query)
	key := store.ResponseKey("authors", query, fmt.Sprint(opts.Page), fmt.Sprint(opts.PageSize))
	return cachedFetch(ctx, s, key, func() (*isbndb.AuthorSearchResult, error) {
		return s.client.SearchAuthors(ctx, query, opts)
	})
}

// SearchPublishers searches upstream publisher names, using cache if fresh.
func (s *CatalogService) SearchPublishers(ctx context.Context, query string, opts isbndb.PageOptions) (*isbndb.PublisherSearchResult, error) {
	query = strings.TrimSpace(query)
	key := store.ResponseKey("publishers", query, fmt.Sprint(opts.Page), fmt.Sprint(opts.PageSize))
	return cachedFetch(ctx, s, key, func() (*isbndb.PublisherSearchResult, error) {
		return s.client.SearchPublishers(ctx, query, opts)
	})
}

// SearchAll runs a generic index search, using cache if fresh.
// Filters are folded into the key in sorted order.
func (s *CatalogService) SearchAll(ctx context.Context, index string, filters map[string]string) (json.RawMessage, error) {
	parts := []string{"search", index}
	for _, k := range slices.Sorted(maps.Keys(filters)) {
		if filters[k] != "" {
			parts = append(parts, k+"="+filters[k])
		}
	}
	return cachedFetch(ctx, s, store.ResponseKey(parts...), func() (json.RawMessage, error) {
		return s.client.SearchAll(ctx, index, filters)
	})
}

// Stats returns upstream database statistics. Results are not cached.
func (s *CatalogService) Stats(ctx context.Context) (json.RawMessage, error) {
	return s.client.Stats(ctx)
}

// CachedResponses returns the number of live cached responses.
func (s *CatalogService) CachedResponses(ctx context.Context) (int, error) {
	if s.cache == nil {
		return 0, nil
	}
	return s.cache.CountResponses(ctx)
}

// PurgeCache drops every cached response.
func (s *CatalogService) PurgeCache(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}
	s.logger.Info("purging response cache")
	return s.cache.PurgeResponses(ctx)
}

// cachedFetch returns the cached value for key or calls fetch and caches its
// result. Cache failures are logged and never fail the request.
func cachedFetch[T any](ctx context.Context, s *CatalogService, key string, fetch func() (T, error)) (T, error) {
	var value T

	if s.cache != nil {
		hit, err := s.cache.GetResponse(ctx, key, &value)
		if err != nil {
			s.logger.Warn("cache lookup failed",
				"error", err,
				"key", key,
			)
			if errors.Is(err, store.ErrUndecodable) {
				if err := s.cache.DeleteResponse(ctx, key); err != nil {
					s.logger.Warn("failed to drop undecodable cache entry", "error", err, "key", key)
				}
			}
			// Continue to fetch fresh
		}
		if hit {
			s.logger.Debug("cache hit for search", "key", key)
			return value, nil
		}
	}

	value, err := fetch()
	if err != nil {
		var zero T
		return zero, err
	}

	if s.cache != nil {
		if err := s.cache.SetResponse(ctx, key, value); err != nil {
			s.logger.Warn("failed to cache response",
				"error", err,
				"key", key,
			)
		}
	}

	return value, nil
}

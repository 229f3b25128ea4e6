package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/openshelf/openshelf-server/internal/domain"
)

func (s *Server) registerBookRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "getBookByISBN",
		Method:      http.MethodGet,
		Path:        "/api/v1/isbndb/books/{isbn}",
		Summary:     "Get book by ISBN",
		Description: "Returns the cached book, fetching it from ISBNdb on a miss or when refresh is set",
		Tags:        []string{"ISBNdb"},
	}, s.handleGetBookByISBN)

	huma.Register(s.api, huma.Operation{
		OperationID: "getCacheStats",
		Method:      http.MethodGet,
		Path:        "/api/v1/isbndb/cache",
		Summary:     "Cache statistics",
		Description: "Counts cached books, authors, publishers and search responses",
		Tags:        []string{"ISBNdb"},
	}, s.handleGetCacheStats)

	huma.Register(s.api, huma.Operation{
		OperationID:   "purgeResponseCache",
		Method:        http.MethodDelete,
		Path:          "/api/v1/isbndb/cache/responses",
		Summary:       "Purge search cache",
		Description:   "Drops every cached ISBNdb search response",
		Tags:          []string{"ISBNdb"},
		DefaultStatus: http.StatusNoContent,
	}, s.handlePurgeResponseCache)
}

// === DTOs ===

// GetBookInput contains parameters for a book lookup.
type GetBookInput struct {
	ISBN    string `path:"isbn" maxLength:"32" doc:"ISBN-10 or ISBN-13, separators allowed"`
	Refresh bool   `query:"refresh" doc:"Bypass the cache and fetch from ISBNdb"`
}

// BookOutput wraps a cached book for Huma.
type BookOutput struct {
	CacheControl string `header:"Cache-Control"`
	Body         *domain.BookView
}

// CacheStatsResponse contains local cache counts.
type CacheStatsResponse struct {
	domain.CacheStats
	CachedResponses int `json:"cached_responses" doc:"Live cached search responses"`
}

// CacheStatsOutput wraps cache stats for Huma.
type CacheStatsOutput struct {
	Body CacheStatsResponse
}

// === Handlers ===

func (s *Server) handleGetBookByISBN(ctx context.Context, input *GetBookInput) (*BookOutput, error) {
	book, err := s.services.Books.GetBookByISBN(ctx, input.ISBN, input.Refresh)
	if err != nil {
		return nil, err
	}
	if book == nil {
		return nil, huma.Error404NotFound("book not found")
	}
	cacheControl := CacheOneDay
	if input.Refresh {
		cacheControl = CacheNoStore
	}
	return &BookOutput{CacheControl: cacheControl, Body: book}, nil
}

func (s *Server) handleGetCacheStats(ctx context.Context, _ *struct{}) (*CacheStatsOutput, error) {
	stats, err := s.services.Books.GetCacheStats(ctx)
	if err != nil {
		return nil, err
	}

	resp := CacheStatsResponse{CacheStats: *stats}
	if s.services.Catalog != nil {
		n, err := s.services.Catalog.CachedResponses(ctx)
		if err != nil {
			s.logger.Warn("failed to count cached responses", "error", err)
		}
		resp.CachedResponses = n
	}

	return &CacheStatsOutput{Body: resp}, nil
}

func (s *Server) handlePurgeResponseCache(ctx context.Context, _ *struct{}) (*struct{}, error) {
	if s.services.Catalog == nil {
		return nil, nil
	}
	if err := s.services.Catalog.PurgeCache(ctx); err != nil {
		return nil, err
	}
	return nil, nil
}

package api

import (
	"github.com/openshelf/openshelf-server/internal/lookup"
	"github.com/openshelf/openshelf-server/internal/service"
)

// Services groups the business logic used by the API server.
type Services struct {
	Books   *service.BookCacheService
	Catalog *service.CatalogService // cached upstream searches
	Search  *service.SearchService  // local library search, nil when disabled
	Queue   *lookup.Queue
}

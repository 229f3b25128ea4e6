// Package di provides dependency injection configuration for the OpenShelf server.
package di

import (
	"io"

	"github.com/samber/do/v2"

	"github.com/openshelf/openshelf-server/internal/config"
	"github.com/openshelf/openshelf-server/internal/di/providers"
	"github.com/openshelf/openshelf-server/internal/isbndb"
	"github.com/openshelf/openshelf-server/internal/logger"
	"github.com/openshelf/openshelf-server/internal/service"
)

// NewContainer creates and configures the DI container with all providers.
// Providers are lazy: commands invoke only what they use.
func NewContainer(cfg *config.Config, logOutput io.Writer) *do.RootScope {
	injector := do.New()

	// Core infrastructure
	do.ProvideValue(injector, cfg)
	do.ProvideValue(injector, providers.LogOutput{Writer: logOutput})
	do.Provide(injector, providers.ProvideLogger)

	// Storage layer
	do.Provide(injector, providers.ProvideStore)
	do.Provide(injector, providers.ProvideResponseCache)

	// Search layer
	do.Provide(injector, providers.ProvideSearchIndex)
	do.Provide(injector, providers.ProvideSearchService)

	// Upstream
	do.Provide(injector, providers.ProvideISBNdbClient)
	do.Provide(injector, providers.ProvideCatalogService)

	// Business services
	do.Provide(injector, providers.ProvideBookCacheService)

	// Workers
	do.Provide(injector, providers.ProvideLookupQueue)

	// Server
	do.Provide(injector, providers.ProvideHTTPServer)

	return injector
}

// Bootstrap initializes every service the API server needs, then starts it.
func Bootstrap(injector *do.RootScope) error {
	if _, err := do.Invoke[*logger.Logger](injector); err != nil {
		return err
	}
	if _, err := do.Invoke[*providers.StoreHandle](injector); err != nil {
		return err
	}
	if _, err := do.Invoke[*providers.CacheHandle](injector); err != nil {
		return err
	}
	if _, err := do.Invoke[*providers.SearchIndexHandle](injector); err != nil {
		return err
	}
	if _, err := do.Invoke[*service.SearchService](injector); err != nil {
		return err
	}
	if _, err := do.Invoke[*isbndb.Client](injector); err != nil {
		return err
	}
	if _, err := do.Invoke[*service.CatalogService](injector); err != nil {
		return err
	}
	if _, err := do.Invoke[*service.BookCacheService](injector); err != nil {
		return err
	}
	if _, err := do.Invoke[*providers.LookupQueueHandle](injector); err != nil {
		return err
	}

	providers.TriggerSearchReindexIfNeeded(injector)

	_, err := do.Invoke[*providers.HTTPServerHandle](injector)
	return err
}

package providers

import (
	"github.com/samber/do/v2"

	"github.com/openshelf/openshelf-server/internal/config"
	"github.com/openshelf/openshelf-server/internal/isbndb"
	"github.com/openshelf/openshelf-server/internal/logger"
	"github.com/openshelf/openshelf-server/internal/service"
)

// ProvideISBNdbClient provides the ISBNdb API client. Without an API key the
// client is disabled and every lookup reports nothing found.
func ProvideISBNdbClient(i do.Injector) (*isbndb.Client, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	client := isbndb.New(cfg.ISBNdb.APIKey, log.Logger,
		isbndb.WithBaseURL(cfg.ISBNdb.BaseURL),
		isbndb.WithTimeout(cfg.ISBNdb.Timeout),
		isbndb.WithPricesByDefault(cfg.ISBNdb.WithPrices),
	)

	if client.IsEnabled() {
		log.Info("ISBNdb client initialized", "base_url", client.BaseURL())
	} else {
		log.Warn("ISBNDB_API_KEY not set, upstream lookups disabled")
	}

	return client, nil
}

// ProvideCatalogService provides cached upstream searches.
func ProvideCatalogService(i do.Injector) (*service.CatalogService, error) {
	client := do.MustInvoke[*isbndb.Client](i)
	cacheHandle := do.MustInvoke[*CacheHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewCatalogService(client, cacheHandle.Cache, log.Logger), nil
}

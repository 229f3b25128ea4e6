package providers

import (
	"github.com/samber/do/v2"

	"github.com/openshelf/openshelf-server/internal/isbndb"
	"github.com/openshelf/openshelf-server/internal/logger"
	"github.com/openshelf/openshelf-server/internal/service"
)

// ProvideBookCacheService provides the write-through book cache.
func ProvideBookCacheService(i do.Injector) (*service.BookCacheService, error) {
	client := do.MustInvoke[*isbndb.Client](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	// Resolve search first so saves are indexed.
	_ = do.MustInvoke[*service.SearchService](i)

	return service.NewBookCacheService(client, storeHandle.Store, log.Logger), nil
}

package providers

import (
	"github.com/samber/do/v2"

	"github.com/openshelf/openshelf-server/internal/config"
	"github.com/openshelf/openshelf-server/internal/logger"
	"github.com/openshelf/openshelf-server/internal/store"
	"github.com/openshelf/openshelf-server/internal/store/sqlite"
)

// StoreHandle wraps the SQLite book cache with shutdown capability.
type StoreHandle struct {
	*sqlite.Store
}

// Shutdown implements do.Shutdownable.
func (h *StoreHandle) Shutdown() error {
	return h.Close()
}

// ProvideStore provides the SQLite book cache.
func ProvideStore(i do.Injector) (*StoreHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	db, err := sqlite.Open(cfg.Data.DatabasePath, log.Logger)
	if err != nil {
		return nil, err
	}

	log.Info("Database initialized", "path", cfg.Data.DatabasePath)

	return &StoreHandle{Store: db}, nil
}

// CacheHandle wraps the response cache with shutdown capability.
type CacheHandle struct {
	*store.Cache
}

// Shutdown implements do.Shutdownable.
func (h *CacheHandle) Shutdown() error {
	return h.Close()
}

// ProvideResponseCache provides the badger-backed upstream response cache.
func ProvideResponseCache(i do.Injector) (*CacheHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	cache, err := store.OpenCache(store.CacheOptions{
		Path: cfg.Data.CachePath,
		TTL:  cfg.Cache.SearchTTL,
	}, log.Logger)
	if err != nil {
		return nil, err
	}

	return &CacheHandle{Cache: cache}, nil
}

// Package store defines persistence contracts and the badger-backed
// response cache used in front of the upstream search endpoints.
package store

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// DefaultCacheTTL is how long a cached upstream response stays valid.
const DefaultCacheTTL = 24 * time.Hour

// CacheOptions configures OpenCache.
type CacheOptions struct {
	Path     string
	InMemory bool
	TTL      time.Duration
}

// Cache is a TTL key-value cache for upstream responses.
type Cache struct {
	db     *badger.DB
	logger *slog.Logger
	ttl    time.Duration
	now    func() time.Time
}

// OpenCache opens (or creates) the cache at opts.Path.
func OpenCache(opts CacheOptions, logger *slog.Logger) (*Cache, error) {
	var bopts badger.Options
	if opts.InMemory {
		bopts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		bopts = badger.DefaultOptions(opts.Path)
		bopts.SyncWrites = true
		bopts.CompactL0OnClose = true
	}
	bopts.Logger = nil

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger db: %w", err)
	}

	ttl := opts.TTL
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}

	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("Response cache opened", "path", opts.Path, "in_memory", opts.InMemory, "ttl", ttl)

	return &Cache{
		db:     db,
		logger: logger,
		ttl:    ttl,
		now:    time.Now,
	}, nil
}

// TTL returns the configured entry lifetime.
func (c *Cache) TTL() time.Duration {
	return c.ttl
}

// Close flushes and closes the underlying database.
func (c *Cache) Close() error {
	return c.db.Close()
}

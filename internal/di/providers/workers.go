package providers

import (
	"context"

	"github.com/samber/do/v2"

	"github.com/openshelf/openshelf-server/internal/config"
	"github.com/openshelf/openshelf-server/internal/isbndb"
	"github.com/openshelf/openshelf-server/internal/logger"
	"github.com/openshelf/openshelf-server/internal/lookup"
	"github.com/openshelf/openshelf-server/internal/service"
)

// LookupQueueHandle wraps the lookup queue with shutdown capability.
type LookupQueueHandle struct {
	*lookup.Queue
}

// Shutdown implements do.Shutdownable.
func (h *LookupQueueHandle) Shutdown() error {
	h.Stop()
	return nil
}

// ProvideLookupQueue provides the rate-limited lookup queue and starts its worker.
// Fetched books are persisted through the book cache.
func ProvideLookupQueue(i do.Injector) (*LookupQueueHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	client := do.MustInvoke[*isbndb.Client](i)
	books := do.MustInvoke[*service.BookCacheService](i)

	queue := lookup.NewQueue(client, lookup.Config{
		RateWindow:   cfg.Queue.RateWindow,
		RetryDelay:   cfg.Queue.RetryDelay,
		MaxRetries:   cfg.Queue.MaxRetries,
		PollInterval: cfg.Queue.PollInterval,
		HistorySize:  cfg.Queue.HistorySize,
	},
		lookup.WithLogger(log.Logger),
		lookup.WithBookSink(books),
	)

	if err := queue.Start(context.Background()); err != nil {
		return nil, err
	}

	log.Info("Lookup queue started",
		"rate_window", cfg.Queue.RateWindow,
		"max_retries", cfg.Queue.MaxRetries,
	)

	return &LookupQueueHandle{Queue: queue}, nil
}

// Package lookup serializes calls to the ISBNdb client behind a single
// rate-limited worker with two priority classes and bounded retries.
package lookup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/openshelf/openshelf-server/internal/id"
	"github.com/openshelf/openshelf-server/internal/isbndb"
)

// Fetcher is the upstream client the worker calls.
type Fetcher interface {
	IsEnabled() bool
	LookupBookByISBN(ctx context.Context, isbn string, withPrices bool) (*isbndb.Book, error)
	GetAuthorDetails(ctx context.Context, name string, opts isbndb.PageOptions) (*isbndb.AuthorDetails, error)
	GetPublisherDetails(ctx context.Context, name string, opts isbndb.PageOptions) (*isbndb.PublisherDetails, error)
}

// BookSink persists books fetched by the worker before their futures resolve.
type BookSink interface {
	CacheBook(ctx context.Context, book *isbndb.Book) error
}

// Config holds the queue timing policy.
type Config struct {
	// RateWindow is the minimum spacing between two upstream calls.
	RateWindow time.Duration
	// RetryDelay is how long a failed item waits before it is requeued.
	RetryDelay time.Duration
	// MaxRetries is the total number of attempts per item.
	MaxRetries int
	// PollInterval bounds how long an idle worker sleeps between checks.
	PollInterval time.Duration
	// HistorySize is how many finished items Status can still report.
	HistorySize int
}

// DefaultConfig returns one call per second, three attempts five seconds apart.
func DefaultConfig() Config {
	return Config{
		RateWindow:   time.Second,
		RetryDelay:   5 * time.Second,
		MaxRetries:   3,
		PollInterval: time.Second,
		HistorySize:  1000,
	}
}

// Stats describes the queue at one instant.
type Stats struct {
	// Length counts items waiting to be dequeued.
	Length int `json:"length"`
	// Processing reports whether the worker loop is alive.
	Processing   bool  `json:"processing"`
	InFlight     bool  `json:"in_flight"`
	RetryPending int   `json:"retry_pending"`
	Completed    int64 `json:"completed"`
	Failed       int64 `json:"failed"`
}

// Option configures a Queue.
type Option func(*Queue)

// WithClock replaces the wall clock.
func WithClock(c Clock) Option {
	return func(q *Queue) { q.clock = c }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(q *Queue) { q.logger = l }
}

// WithBookSink persists every book the worker fetches.
func WithBookSink(s BookSink) Option {
	return func(q *Queue) { q.sink = s }
}

// WithCompletionHook is called once per item after its future resolves.
func WithCompletionHook(fn func(ItemInfo, Result, error)) Option {
	return func(q *Queue) { q.onComplete = fn }
}

// Queue is a priority work queue in front of the upstream client.
//
// One worker goroutine processes one item at a time. Each priority class is
// FIFO; a retried item goes back to the head of its own class.
type Queue struct {
	fetcher    Fetcher
	sink       BookSink
	cfg        Config
	clock      Clock
	logger     *slog.Logger
	onComplete func(ItemInfo, Result, error)

	mu        sync.Mutex
	high      []*item
	low       []*item
	retrying  map[string]*item
	inFlight  *item
	finished  *history
	running   bool
	stopped   bool
	completed int64
	failed    int64
	cancel    context.CancelFunc

	// limiter spaces upstream calls; only the worker reserves from it.
	limiter *rate.Limiter
	notify  chan struct{}
	wg      sync.WaitGroup
}

// NewQueue creates a stopped queue. Call Start to begin processing.
// Zero fields in cfg fall back to DefaultConfig.
func NewQueue(fetcher Fetcher, cfg Config, opts ...Option) *Queue {
	def := DefaultConfig()
	if cfg.RateWindow <= 0 {
		cfg.RateWindow = def.RateWindow
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = def.RetryDelay
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = def.MaxRetries
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = def.PollInterval
	}
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = def.HistorySize
	}

	q := &Queue{
		fetcher:  fetcher,
		cfg:      cfg,
		clock:    RealClock(),
		logger:   slog.Default(),
		retrying: make(map[string]*item),
		finished: newHistory(cfg.HistorySize),
		limiter:  rate.NewLimiter(rate.Every(cfg.RateWindow), 1),
		notify:   make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Start launches the worker. It is a no-op if the worker is already running.
func (q *Queue) Start(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.stopped {
		return ErrQueueStopped
	}
	if q.running {
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	q.cancel = cancel
	q.running = true

	q.wg.Add(1)
	go q.run(ctx)

	q.logger.Info("lookup queue started",
		slog.Duration("rate_window", q.cfg.RateWindow),
		slog.Duration("retry_delay", q.cfg.RetryDelay),
		slog.Int("max_retries", q.cfg.MaxRetries),
	)
	return nil
}

// Stop halts the worker and waits for it to exit. Every item still waiting
// or pending retry resolves with ErrQueueStopped, joined with its last error.
// Stop is idempotent.
func (q *Queue) Stop() {
	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		return
	}
	q.stopped = true
	cancel := q.cancel
	q.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	q.wg.Wait()

	q.mu.Lock()
	pending := make([]*item, 0, len(q.high)+len(q.low)+len(q.retrying))
	pending = append(pending, q.high...)
	pending = append(pending, q.low...)
	for _, it := range q.retrying {
		pending = append(pending, it)
	}
	q.high, q.low = nil, nil
	clear(q.retrying)
	q.mu.Unlock()

	for _, it := range pending {
		err := ErrQueueStopped
		if it.lastErr != nil {
			err = errors.Join(ErrQueueStopped, it.lastErr)
		}
		q.finish(it, Result{ItemID: it.id, Kind: it.kind, RetryCount: it.retryCount}, err)
	}

	q.logger.Info("lookup queue stopped", slog.Int("abandoned", len(pending)))
}

// Stats returns a snapshot of the queue.
func (q *Queue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return Stats{
		Length:       len(q.high) + len(q.low),
		Processing:   q.running,
		InFlight:     q.inFlight != nil,
		RetryPending: len(q.retrying),
		Completed:    q.completed,
		Failed:       q.failed,
	}
}

// Status reports the state of a live or recently finished item. It returns
// false for unknown IDs and for finished items evicted from the history.
func (q *Queue) Status(itemID string) (ItemStatus, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if st, ok := q.finished.get(itemID); ok {
		return st, true
	}
	if q.inFlight != nil && q.inFlight.id == itemID {
		return ItemStatus{ItemInfo: q.inFlight.info(), State: StateProcessing}, true
	}
	if it, ok := q.retrying[itemID]; ok {
		return ItemStatus{ItemInfo: it.info(), State: StateRetrying, Error: errString(it.lastErr)}, true
	}
	for _, class := range [][]*item{q.high, q.low} {
		for _, it := range class {
			if it.id == itemID {
				return ItemStatus{ItemInfo: it.info(), State: StateQueued, Error: errString(it.lastErr)}, true
			}
		}
	}
	return ItemStatus{}, false
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// Enqueue adds an item and returns its future. It never blocks on the worker.
// Invalid items fail with ErrInvalidItem and a disabled client with
// isbndb.ErrNotConfigured; neither is queued.
func (q *Queue) Enqueue(kind Kind, payload Payload, priority Priority) (*Future[Result], error) {
	f := newFuture[Result]()
	itemID, err := q.enqueue(kind, payload, priority, f.resolve)
	if err != nil {
		return nil, err
	}
	f.id = itemID
	return f, nil
}

// QueueBookLookup enqueues an ISBN lookup. A book unknown upstream resolves to nil, nil.
func (q *Queue) QueueBookLookup(isbn string, priority Priority) (*Future[*isbndb.Book], error) {
	f := newFuture[*isbndb.Book]()
	itemID, err := q.enqueue(KindBook, Payload{ISBN: isbn}, priority, func(r Result, err error) {
		f.resolve(r.Book, err)
	})
	if err != nil {
		return nil, err
	}
	f.id = itemID
	return f, nil
}

// QueueAuthorLookup enqueues an author lookup.
func (q *Queue) QueueAuthorLookup(name string, priority Priority) (*Future[*isbndb.AuthorDetails], error) {
	f := newFuture[*isbndb.AuthorDetails]()
	itemID, err := q.enqueue(KindAuthor, Payload{Name: name}, priority, func(r Result, err error) {
		f.resolve(r.Author, err)
	})
	if err != nil {
		return nil, err
	}
	f.id = itemID
	return f, nil
}

// QueuePublisherLookup enqueues a publisher lookup.
func (q *Queue) QueuePublisherLookup(name string, priority Priority) (*Future[*isbndb.PublisherDetails], error) {
	f := newFuture[*isbndb.PublisherDetails]()
	itemID, err := q.enqueue(KindPublisher, Payload{Name: name}, priority, func(r Result, err error) {
		f.resolve(r.Publisher, err)
	})
	if err != nil {
		return nil, err
	}
	f.id = itemID
	return f, nil
}

func (q *Queue) enqueue(kind Kind, payload Payload, priority Priority, complete func(Result, error)) (string, error) {
	payload, err := normalizeItem(kind, payload, priority)
	if err != nil {
		return "", err
	}
	if !q.fetcher.IsEnabled() {
		return "", isbndb.ErrNotConfigured
	}

	itemID, err := id.NewLookupID()
	if err != nil {
		return "", fmt.Errorf("generate item id: %w", err)
	}

	it := &item{
		id:         itemID,
		kind:       kind,
		payload:    payload,
		priority:   priority,
		enqueuedAt: q.clock.Now(),
		complete:   complete,
	}

	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		return "", ErrQueueStopped
	}
	if priority == PriorityHigh {
		q.high = append(q.high, it)
	} else {
		q.low = append(q.low, it)
	}
	q.mu.Unlock()

	q.logger.Debug("lookup enqueued",
		slog.String("item_id", itemID),
		slog.String("kind", string(kind)),
		slog.String("priority", string(priority)),
		slog.String("key", payload.key()),
	)

	q.signal()
	return itemID, nil
}

// signal wakes the worker if it is idle.
func (q *Queue) signal() {
	select {
	case q.notify <- struct{}{}:
	default:
		// Already notified
	}
}

func (q *Queue) run(ctx context.Context) {
	defer q.wg.Done()
	defer func() {
		q.mu.Lock()
		q.running = false
		q.mu.Unlock()
	}()

	for {
		if ctx.Err() != nil {
			return
		}

		if !q.hasPending() {
			select {
			case <-ctx.Done():
				return
			case <-q.notify:
			case <-q.clock.After(q.cfg.PollInterval):
				// Periodic check in case a notification was missed
			}
			continue
		}

		if !q.waitForSlot(ctx) {
			return
		}

		it := q.next()
		if it == nil {
			continue
		}
		q.process(ctx, it)
	}
}

func (q *Queue) hasPending() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.high)+len(q.low) > 0
}

// next pops the head of the highest non-empty class and marks it in flight.
func (q *Queue) next() *item {
	q.mu.Lock()
	defer q.mu.Unlock()

	var it *item
	switch {
	case len(q.high) > 0:
		it, q.high = q.high[0], q.high[1:]
	case len(q.low) > 0:
		it, q.low = q.low[0], q.low[1:]
	default:
		return nil
	}
	q.inFlight = it
	return it
}

// requeue puts an item back at the head of its class.
func (q *Queue) requeue(it *item) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.inFlight == it {
		q.inFlight = nil
	}
	if it.priority == PriorityHigh {
		q.high = append([]*item{it}, q.high...)
	} else {
		q.low = append([]*item{it}, q.low...)
	}
}

// waitForSlot reserves the next upstream call from the limiter and sleeps
// until RateWindow has passed since the previous one. It returns false if
// ctx ends first.
func (q *Queue) waitForSlot(ctx context.Context) bool {
	now := q.clock.Now()
	r := q.limiter.ReserveN(now, 1)
	if wait := r.DelayFrom(now); wait > 0 {
		select {
		case <-ctx.Done():
			r.CancelAt(q.clock.Now())
			return false
		case <-q.clock.After(wait):
		}
	}
	return ctx.Err() == nil
}

func (q *Queue) process(ctx context.Context, it *item) {
	defer func() {
		q.mu.Lock()
		if q.inFlight == it {
			q.inFlight = nil
		}
		q.mu.Unlock()
	}()

	result, err := q.invoke(ctx, it)

	log := q.logger.With(
		slog.String("item_id", it.id),
		slog.String("kind", string(it.kind)),
		slog.String("key", it.payload.key()),
	)

	switch {
	case err == nil:
		if result.Book != nil && q.sink != nil {
			if sinkErr := q.cacheBook(ctx, result.Book); sinkErr != nil {
				log.Warn("failed to cache fetched book", slog.Any("error", sinkErr))
			}
		}
		log.Debug("lookup completed", slog.Int("retry_count", it.retryCount))
		q.finish(it, result, nil)

	case errors.Is(err, isbndb.ErrNotFound):
		log.Debug("lookup found nothing upstream")
		q.finish(it, Result{ItemID: it.id, Kind: it.kind, NotFound: true, RetryCount: it.retryCount}, nil)

	case ctx.Err() != nil:
		// Stopping: leave the item for Stop to resolve.
		it.lastErr = err
		q.requeue(it)

	case !isbndb.IsTransient(err) || errors.Is(err, ErrInvalidItem) || errors.Is(err, ErrWorkerPanic):
		log.Warn("lookup failed permanently", slog.Any("error", err))
		q.finish(it, Result{ItemID: it.id, Kind: it.kind, RetryCount: it.retryCount}, err)

	default:
		it.retryCount++
		it.lastErr = err
		if it.retryCount < q.cfg.MaxRetries {
			log.Warn("lookup failed, will retry",
				slog.Int("retry_count", it.retryCount),
				slog.Duration("retry_delay", q.cfg.RetryDelay),
				slog.Any("error", err),
			)
			q.scheduleRetry(ctx, it)
			return
		}
		log.Error("lookup failed after retries",
			slog.Int("retry_count", it.retryCount),
			slog.Any("error", err),
		)
		q.finish(it, Result{ItemID: it.id, Kind: it.kind, RetryCount: it.retryCount}, err)
	}
}

// invoke runs the upstream call for it, converting a panic into an error.
func (q *Queue) invoke(ctx context.Context, it *item) (result Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrWorkerPanic, r)
		}
	}()

	result = Result{ItemID: it.id, Kind: it.kind, RetryCount: it.retryCount}

	switch it.kind {
	case KindBook:
		result.Book, err = q.fetcher.LookupBookByISBN(ctx, it.payload.ISBN, false)
	case KindAuthor:
		result.Author, err = q.fetcher.GetAuthorDetails(ctx, it.payload.Name, isbndb.PageOptions{})
	case KindPublisher:
		result.Publisher, err = q.fetcher.GetPublisherDetails(ctx, it.payload.Name, isbndb.PageOptions{})
	default:
		err = fmt.Errorf("%w: kind %q", ErrInvalidItem, it.kind)
	}
	return result, err
}

// cacheBook hands a fetched book to the sink, converting a panic into an
// error so the item still resolves.
func (q *Queue) cacheBook(ctx context.Context, book *isbndb.Book) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: book sink: %v", ErrWorkerPanic, r)
		}
	}()
	return q.sink.CacheBook(ctx, book)
}

// scheduleRetry requeues it after RetryDelay without blocking the worker.
func (q *Queue) scheduleRetry(ctx context.Context, it *item) {
	q.mu.Lock()
	q.retrying[it.id] = it
	q.mu.Unlock()

	q.wg.Add(1)
	go func() {
		defer q.wg.Done()

		select {
		case <-ctx.Done():
			return
		case <-q.clock.After(q.cfg.RetryDelay):
		}

		q.mu.Lock()
		if _, ok := q.retrying[it.id]; !ok {
			q.mu.Unlock()
			return
		}
		delete(q.retrying, it.id)
		if it.priority == PriorityHigh {
			q.high = append([]*item{it}, q.high...)
		} else {
			q.low = append([]*item{it}, q.low...)
		}
		q.mu.Unlock()

		q.signal()
	}()
}

// finish resolves an item exactly once, records it and updates counters.
func (q *Queue) finish(it *item, result Result, err error) {
	q.mu.Lock()
	if err == nil {
		q.completed++
	} else {
		q.failed++
	}
	q.finished.add(finishedStatus(it, result, err, q.clock.Now()))
	q.mu.Unlock()

	it.complete(result, err)
	if q.onComplete != nil {
		q.notifyComplete(it.info(), result, err)
	}
}

// notifyComplete runs the completion hook; a panicking hook is logged.
func (q *Queue) notifyComplete(info ItemInfo, result Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			q.logger.Error("lookup completion hook panicked",
				slog.String("item_id", info.ID),
				slog.Any("panic", r),
			)
		}
	}()
	q.onComplete(info, result, err)
}

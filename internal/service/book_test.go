package service

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/openshelf/openshelf-server/internal/domain"
	domainerrors "github.com/openshelf/openshelf-server/internal/errors"
	"github.com/openshelf/openshelf-server/internal/isbndb"
	"github.com/openshelf/openshelf-server/internal/lookup"
	"github.com/openshelf/openshelf-server/internal/store/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func newTestSQLite(t *testing.T) *sqlite.Store {
	t.Helper()
	s, err := sqlite.Open(filepath.Join(t.TempDir(), "cache.db"), testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// spyFetcher counts upstream calls and serves books by ISBN.
type spyFetcher struct {
	mu       sync.Mutex
	disabled bool
	books    map[string]*isbndb.Book
	err      error
	calls    int
}

func (f *spyFetcher) IsEnabled() bool { return !f.disabled }

func (f *spyFetcher) LookupBookByISBN(_ context.Context, isbn string, _ bool) (*isbndb.Book, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if b, ok := f.books[isbn]; ok {
		copied := *b
		return &copied, nil
	}
	return nil, isbndb.ErrNotFound
}

func (f *spyFetcher) GetAuthorDetails(context.Context, string, isbndb.PageOptions) (*isbndb.AuthorDetails, error) {
	return nil, isbndb.ErrNotFound
}

func (f *spyFetcher) GetPublisherDetails(context.Context, string, isbndb.PageOptions) (*isbndb.PublisherDetails, error) {
	return nil, isbndb.ErrNotFound
}

func (f *spyFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func effectiveJava() *isbndb.Book {
	return &isbndb.Book{
		ISBN:          "9780134685991",
		Title:         "Effective Java",
		Authors:       []string{"Joshua Bloch"},
		Publisher:     "Addison-Wesley",
		DatePublished: "2018-01-06",
		Pages:         412,
		Language:      "EN",
		Synopsis:      "The definitive guide to Java best practices.",
		Image:         "https://images.isbndb.com/covers/59/91/9780134685991.jpg",
	}
}

func newSpyFetcher() *spyFetcher {
	return &spyFetcher{books: map[string]*isbndb.Book{"9780134685991": effectiveJava()}}
}

func TestGetBookByISBN_FetchesThenHitsCache(t *testing.T) {
	ctx := context.Background()
	fetcher := newSpyFetcher()
	svc := NewBookCacheService(fetcher, newTestSQLite(t), testLogger())

	first, err := svc.GetBookByISBN(ctx, "978-0-13-468599-1", false)
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.False(t, first.CacheHit)
	assert.Equal(t, "Effective Java", first.Title)
	assert.Equal(t, "9780134685991", first.ISBN13)
	assert.Equal(t, 2018, first.Year)
	assert.Equal(t, "en", first.Language)
	assert.Equal(t, "Joshua Bloch", first.AuthorName)
	assert.Equal(t, "Addison-Wesley", first.PublisherName)
	assert.Equal(t, 1, fetcher.callCount())

	second, err := svc.GetBookByISBN(ctx, "9780134685991", false)
	require.NoError(t, err)
	require.NotNil(t, second)
	assert.True(t, second.CacheHit)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, fetcher.callCount(), "cache hit must not call upstream")
}

func TestGetBookByISBN_ForceRefreshAlwaysFetches(t *testing.T) {
	ctx := context.Background()
	fetcher := newSpyFetcher()
	svc := NewBookCacheService(fetcher, newTestSQLite(t), testLogger())

	first, err := svc.GetBookByISBN(ctx, "9780134685991", false)
	require.NoError(t, err)

	fetcher.mu.Lock()
	fetcher.books["9780134685991"].Title = "Effective Java, 3rd Edition"
	fetcher.mu.Unlock()

	refreshed, err := svc.GetBookByISBN(ctx, "9780134685991", true)
	require.NoError(t, err)
	require.NotNil(t, refreshed)
	assert.False(t, refreshed.CacheHit)
	assert.Equal(t, first.ID, refreshed.ID, "refresh updates the existing row")
	assert.Equal(t, "Effective Java, 3rd Edition", refreshed.Title)
	assert.Equal(t, 2, fetcher.callCount())

	stats, err := svc.GetCacheStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalBooks)
	assert.Equal(t, 1, stats.TotalAuthors)
	assert.Equal(t, 1, stats.TotalPublishers)
	require.NotNil(t, stats.LastUpdated)
	assert.False(t, stats.LastUpdated.Before(refreshed.UpdatedAt))
}

func TestGetBookByISBN_OtherEditionBecomesCacheHit(t *testing.T) {
	ctx := context.Background()
	fetcher := newSpyFetcher()
	// Upstream answers the second edition's ISBN with the third edition.
	third := effectiveJava()
	third.ISBN10 = "0134685997"
	fetcher.books["9780321356680"] = third
	svc := NewBookCacheService(fetcher, newTestSQLite(t), testLogger())

	first, err := svc.GetBookByISBN(ctx, "978-0-321-35668-0", false)
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.False(t, first.CacheHit)
	assert.Equal(t, "9780134685991", first.ISBN13)

	second, err := svc.GetBookByISBN(ctx, "9780321356680", false)
	require.NoError(t, err)
	require.NotNil(t, second)
	assert.True(t, second.CacheHit)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, fetcher.callCount())
}

func TestGetBookByISBN_DisabledReturnsNil(t *testing.T) {
	fetcher := newSpyFetcher()
	fetcher.disabled = true
	svc := NewBookCacheService(fetcher, newTestSQLite(t), testLogger())

	view, err := svc.GetBookByISBN(context.Background(), "0000000000", false)
	assert.NoError(t, err)
	assert.Nil(t, view)
	assert.Zero(t, fetcher.callCount())
}

func TestGetBookByISBN_UpstreamFailuresReturnNil(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"not found", nil},
		{"upstream error", &isbndb.UpstreamError{StatusCode: 500}},
		{"transport error", errors.New("connection reset")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fetcher := &spyFetcher{books: map[string]*isbndb.Book{}, err: tt.err}
			svc := NewBookCacheService(fetcher, newTestSQLite(t), testLogger())

			view, err := svc.GetBookByISBN(context.Background(), "9780000000002", false)
			assert.NoError(t, err)
			assert.Nil(t, view)
			assert.Equal(t, 1, fetcher.callCount())
		})
	}
}

func TestGetBookByISBN_InvalidISBN(t *testing.T) {
	fetcher := newSpyFetcher()
	svc := NewBookCacheService(fetcher, newTestSQLite(t), testLogger())

	_, err := svc.GetBookByISBN(context.Background(), "not-an-isbn", false)
	assert.ErrorIs(t, err, domainerrors.ErrValidation)
	assert.Zero(t, fetcher.callCount())
}

func TestCacheBook_PlaceholdersAndNoISBN(t *testing.T) {
	ctx := context.Background()
	db := newTestSQLite(t)
	svc := NewBookCacheService(newSpyFetcher(), db, testLogger())

	anonymous := &isbndb.Book{Title: "Pamphlet"}
	require.NoError(t, svc.CacheBook(ctx, anonymous))
	require.NoError(t, svc.CacheBook(ctx, anonymous))

	stats, err := svc.GetCacheStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalBooks, "books without an ISBN are always inserted")
	assert.Equal(t, 1, stats.TotalAuthors)
	assert.Equal(t, 1, stats.TotalPublishers)

	author, err := db.EnsureAuthor(ctx, domain.UnknownAuthor)
	require.NoError(t, err)
	assert.Equal(t, domain.UnknownAuthor, author.Name)

	assert.NoError(t, svc.CacheBook(ctx, nil))
}

func TestCacheBook_MissingTitleFails(t *testing.T) {
	svc := NewBookCacheService(newSpyFetcher(), newTestSQLite(t), testLogger())
	err := svc.CacheBook(context.Background(), &isbndb.Book{ISBN13: "9780134685991"})
	assert.Error(t, err)
}

func TestToDomainBook(t *testing.T) {
	b := &isbndb.Book{
		TitleLong:     "Effective Java (3rd Edition)",
		ISBN:          "0134685997",
		ISBN13:        "978-0-13-468599-1",
		Authors:       []string{"  ", "Joshua Bloch"},
		Overview:      "Overview text",
		DatePublished: "2017-12-27T00:00:00Z",
		ImageOriginal: "https://example.test/original.jpg",
		Image:         "https://example.test/thumb.jpg",
	}

	record, author, publisher := toDomainBook(b, "")
	assert.Equal(t, "Effective Java (3rd Edition)", record.Title)
	assert.Equal(t, "9780134685991", record.ISBN13)
	assert.Equal(t, "0134685997", record.ISBN10)
	assert.Equal(t, "Overview text", record.Overview)
	assert.Equal(t, 2017, record.Year)
	assert.Equal(t, "https://example.test/original.jpg", record.CoverURL)
	assert.Equal(t, "Joshua Bloch", author)
	assert.Empty(t, publisher)

	assert.Empty(t, record.Aliases)

	record, _, _ = toDomainBook(&isbndb.Book{Title: "X"}, "080442957X")
	assert.Equal(t, "080442957X", record.ISBN10)
	assert.Empty(t, record.ISBN13)
	assert.Empty(t, record.Aliases)

	record, _, _ = toDomainBook(&isbndb.Book{Title: "X", ISBN13: "9780134685991", ISBN10: "0134685997"}, "9780321356680")
	assert.Equal(t, []string{"9780321356680"}, record.Aliases)
}

func TestPublishedYear(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"2018", 2018},
		{"2018-01-06", 2018},
		{" 1937-09-21T00:00:00Z", 1937},
		{"c1990", 0},
		{"99", 0},
		{"", 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, publishedYear(tt.in), tt.in)
	}
}

// A queued lookup persists through the sink, so the next direct lookup is a
// cache hit with no further upstream call.
func TestQueuedLookupWarmsCache(t *testing.T) {
	ctx := context.Background()
	fetcher := newSpyFetcher()
	svc := NewBookCacheService(fetcher, newTestSQLite(t), testLogger())

	q := lookup.NewQueue(fetcher, lookup.Config{
		RateWindow:   time.Millisecond,
		RetryDelay:   time.Millisecond,
		MaxRetries:   3,
		PollInterval: 10 * time.Millisecond,
	}, lookup.WithBookSink(svc), lookup.WithLogger(testLogger()))
	require.NoError(t, q.Start(ctx))
	t.Cleanup(q.Stop)

	fut, err := q.QueueBookLookup("978-0-13-468599-1", lookup.PriorityLow)
	require.NoError(t, err)

	waitCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	book, err := fut.Wait(waitCtx)
	require.NoError(t, err)
	require.NotNil(t, book)
	assert.Equal(t, "Effective Java", book.Title)
	assert.Equal(t, 1, fetcher.callCount())

	view, err := svc.GetBookByISBN(ctx, "9780134685991", false)
	require.NoError(t, err)
	require.NotNil(t, view)
	assert.True(t, view.CacheHit)
	assert.Equal(t, "Effective Java", view.Title)
	assert.Equal(t, 1, fetcher.callCount())
}

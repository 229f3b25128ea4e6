package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openshelf/openshelf-server/internal/isbndb"
	"github.com/openshelf/openshelf-server/internal/lookup"
	"github.com/openshelf/openshelf-server/internal/search"
	"github.com/openshelf/openshelf-server/internal/service"
	"github.com/openshelf/openshelf-server/internal/store"
	"github.com/openshelf/openshelf-server/internal/store/sqlite"
)

const effectiveJavaJSON = `{"book":{
	"title":"Effective Java",
	"title_long":"Effective Java (3rd Edition)",
	"isbn":"0134685997",
	"isbn13":"9780134685991",
	"authors":["Joshua Bloch"],
	"publisher":"Addison-Wesley",
	"language":"en_US",
	"date_published":"2017-12-27",
	"pages":412,
	"synopsis":"The definitive guide to Java platform best practices."
}}`

// fakeUpstream serves a small slice of the ISBNdb API.
type fakeUpstream struct {
	calls atomic.Int64
}

func (u *fakeUpstream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	u.calls.Add(1)
	w.Header().Set("Content-Type", "application/json")

	path := r.URL.Path
	switch {
	case path == "/book/9780134685991":
		_, _ = w.Write([]byte(effectiveJavaJSON))
	case path == "/book/0804429579":
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"message":"limit exceeded"}`))
	case strings.HasPrefix(path, "/book/"):
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"errorMessage":"Not Found"}`))
	case strings.HasPrefix(path, "/books/"):
		_, _ = w.Write([]byte(`{"total":1,"books":[{"title":"Effective Java","isbn13":"9780134685991"}]}`))
	case strings.HasPrefix(path, "/authors/"):
		_, _ = w.Write([]byte(`{"total":1,"authors":["Joshua Bloch"]}`))
	case strings.HasPrefix(path, "/author/"):
		_, _ = w.Write([]byte(`{"author":"Joshua Bloch","books":[{"title":"Effective Java","isbn13":"9780134685991"}]}`))
	case strings.HasPrefix(path, "/publisher/"):
		_, _ = w.Write([]byte(`{"publisher":"Addison-Wesley","books":[]}`))
	case strings.HasPrefix(path, "/publishers/"):
		_, _ = w.Write([]byte(`{"total":1,"publishers":["Addison-Wesley"]}`))
	case strings.HasPrefix(path, "/search/"):
		_, _ = w.Write([]byte(`{"total":0,"data":[]}`))
	case path == "/stats":
		_, _ = w.Write([]byte(`{"books":42,"authors":7}`))
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

// testServer wraps the API server with its collaborators.
type testServer struct {
	*Server
	api      humatest.TestAPI
	db       *sqlite.Store
	upstream *fakeUpstream
	cleanup  func()
}

type serverOption func(*Options)

func setupTestServer(t *testing.T, opts ...serverOption) *testServer {
	t.Helper()

	logger := slog.New(slog.DiscardHandler)

	db, err := sqlite.Open(filepath.Join(t.TempDir(), "cache.db"), logger)
	require.NoError(t, err)

	cache, err := store.OpenCache(store.CacheOptions{InMemory: true}, logger)
	require.NoError(t, err)

	index, err := search.NewSearchIndex(search.Options{InMemory: true, Logger: logger})
	require.NoError(t, err)
	db.SetSearchIndexer(index)

	upstream := &fakeUpstream{}
	upstreamServer := httptest.NewServer(upstream)
	client := isbndb.New("test-key", logger,
		isbndb.WithBaseURL(upstreamServer.URL),
		isbndb.WithHTTPClient(upstreamServer.Client()),
	)

	books := service.NewBookCacheService(client, db, logger)
	queue := lookup.NewQueue(client, lookup.Config{
		RateWindow:   time.Millisecond,
		RetryDelay:   time.Millisecond,
		MaxRetries:   2,
		PollInterval: 10 * time.Millisecond,
	}, lookup.WithBookSink(books), lookup.WithLogger(logger))
	require.NoError(t, queue.Start(context.Background()))

	services := &Services{
		Books:   books,
		Catalog: service.NewCatalogService(client, cache, logger),
		Search:  service.NewSearchService(index, db, db, logger),
		Queue:   queue,
	}

	serverOpts := Options{Version: "test"}
	for _, opt := range opts {
		opt(&serverOpts)
	}
	server := NewServer(services, db, serverOpts, logger)

	return &testServer{
		Server:   server,
		api:      humatest.Wrap(t, server.API()),
		db:       db,
		upstream: upstream,
		cleanup: func() {
			server.Close()
			queue.Stop()
			upstreamServer.Close()
			_ = index.Close()
			_ = cache.Close()
			_ = db.Close()
		},
	}
}

// envelope decodes the versioned response wrapper.
type envelope struct {
	Version int             `json:"v"`
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Code    string          `json:"code"`
	Message string          `json:"message"`
	Details json.RawMessage `json:"details"`
}

func decodeEnvelope(t *testing.T, body []byte) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(body, &env), string(body))
	assert.Equal(t, EnvelopeVersion, env.Version)
	return env
}

func decodeData[T any](t *testing.T, body []byte) T {
	t.Helper()
	env := decodeEnvelope(t, body)
	require.True(t, env.Success, string(body))
	var out T
	require.NoError(t, json.Unmarshal(env.Data, &out))
	return out
}

func TestGetBookByISBN_FetchesThenCaches(t *testing.T) {
	ts := setupTestServer(t)
	defer ts.cleanup()

	resp := ts.api.Get("/api/v1/isbndb/books/978-0-13-468599-1")
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	first := decodeData[map[string]any](t, resp.Body.Bytes())
	assert.Equal(t, "Effective Java", first["title"])
	assert.Equal(t, "9780134685991", first["isbn13"])
	assert.Equal(t, false, first["cache_hit"])
	assert.EqualValues(t, 1, ts.upstream.calls.Load())

	resp = ts.api.Get("/api/v1/isbndb/books/9780134685991")
	require.Equal(t, http.StatusOK, resp.Code)
	second := decodeData[map[string]any](t, resp.Body.Bytes())
	assert.Equal(t, true, second["cache_hit"])
	assert.Equal(t, first["id"], second["id"])
	assert.Equal(t, CacheOneDay, resp.Header().Get("Cache-Control"))
	assert.EqualValues(t, 1, ts.upstream.calls.Load())

	resp = ts.api.Get("/api/v1/isbndb/books/9780134685991?refresh=true")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, CacheNoStore, resp.Header().Get("Cache-Control"))
	assert.EqualValues(t, 2, ts.upstream.calls.Load())
}

func TestGetBookByISBN_NotFound(t *testing.T) {
	ts := setupTestServer(t)
	defer ts.cleanup()

	resp := ts.api.Get("/api/v1/isbndb/books/9780000000002")
	assert.Equal(t, http.StatusNotFound, resp.Code)

	env := decodeEnvelope(t, resp.Body.Bytes())
	assert.False(t, env.Success)
	assert.Equal(t, "NOT_FOUND", env.Code)
}

func TestGetBookByISBN_InvalidISBN(t *testing.T) {
	ts := setupTestServer(t)
	defer ts.cleanup()

	resp := ts.api.Get("/api/v1/isbndb/books/not-an-isbn")
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	env := decodeEnvelope(t, resp.Body.Bytes())
	assert.Equal(t, "VALIDATION", env.Code)
	assert.Zero(t, ts.upstream.calls.Load())
}

func TestCacheStats(t *testing.T) {
	ts := setupTestServer(t)
	defer ts.cleanup()

	require.Equal(t, http.StatusOK, ts.api.Get("/api/v1/isbndb/books/9780134685991").Code)
	require.Equal(t, http.StatusOK, ts.api.Get("/api/v1/isbndb/search/authors?q=bloch").Code)

	resp := ts.api.Get("/api/v1/isbndb/cache")
	require.Equal(t, http.StatusOK, resp.Code)
	stats := decodeData[CacheStatsResponse](t, resp.Body.Bytes())
	assert.Equal(t, 1, stats.TotalBooks)
	assert.Equal(t, 1, stats.TotalAuthors)
	assert.Equal(t, 1, stats.TotalPublishers)
	assert.Equal(t, 1, stats.CachedResponses)

	resp = ts.api.Delete("/api/v1/isbndb/cache/responses")
	require.Equal(t, http.StatusNoContent, resp.Code)

	resp = ts.api.Get("/api/v1/isbndb/cache")
	stats = decodeData[CacheStatsResponse](t, resp.Body.Bytes())
	assert.Zero(t, stats.CachedResponses)
}

func TestEnqueueLookup_Accepted(t *testing.T) {
	ts := setupTestServer(t)
	defer ts.cleanup()

	resp := ts.api.Post("/api/v1/isbndb/lookups", map[string]any{
		"kind":  "book",
		"value": "9780134685991",
	})
	require.Equal(t, http.StatusAccepted, resp.Code, resp.Body.String())

	out := decodeData[LookupResponse](t, resp.Body.Bytes())
	assert.NotEmpty(t, out.ID)
	assert.Equal(t, "low", out.Priority)
	assert.Equal(t, "queued", out.Status)
	assert.Nil(t, out.Result)

	// The sink persists the book once the worker gets to it.
	require.Eventually(t, func() bool {
		stats, err := ts.db.CacheStats(context.Background())
		return err == nil && stats.TotalBooks == 1
	}, 5*time.Second, 10*time.Millisecond)
}

func TestGetLookup_FollowsLocation(t *testing.T) {
	ts := setupTestServer(t)
	defer ts.cleanup()

	resp := ts.api.Post("/api/v1/isbndb/lookups", map[string]any{
		"kind":  "book",
		"value": "9780134685991",
	})
	require.Equal(t, http.StatusAccepted, resp.Code, resp.Body.String())
	out := decodeData[LookupResponse](t, resp.Body.Bytes())

	location := resp.Header().Get("Location")
	assert.Equal(t, "/api/v1/isbndb/lookups/"+out.ID, location)

	var st lookup.ItemStatus
	require.Eventually(t, func() bool {
		resp := ts.api.Get(location)
		if resp.Code != http.StatusOK {
			return false
		}
		st = decodeData[lookup.ItemStatus](t, resp.Body.Bytes())
		return st.State.Terminal()
	}, 5*time.Second, 10*time.Millisecond)

	assert.Equal(t, lookup.StateCompleted, st.State)
	assert.Equal(t, out.ID, st.ID)
	assert.Equal(t, "9780134685991", st.Payload.ISBN)
	require.NotNil(t, st.Result)
	require.NotNil(t, st.Result.Book)
	assert.Equal(t, "Effective Java", st.Result.Book.Title)
}

func TestGetLookup_Unknown(t *testing.T) {
	ts := setupTestServer(t)
	defer ts.cleanup()

	resp := ts.api.Get("/api/v1/isbndb/lookups/lk-unknown")
	assert.Equal(t, http.StatusNotFound, resp.Code)
	env := decodeEnvelope(t, resp.Body.Bytes())
	assert.Equal(t, "NOT_FOUND", env.Code)
}

func TestEnqueueLookup_Wait(t *testing.T) {
	ts := setupTestServer(t)
	defer ts.cleanup()

	tests := []struct {
		name       string
		body       map[string]any
		wantStatus string
		check      func(t *testing.T, r *lookup.Result)
	}{
		{
			name:       "book",
			body:       map[string]any{"kind": "book", "value": "9780134685991", "priority": "high", "wait": true},
			wantStatus: "completed",
			check: func(t *testing.T, r *lookup.Result) {
				require.NotNil(t, r.Book)
				assert.Equal(t, "Effective Java", r.Book.Title)
			},
		},
		{
			name:       "author",
			body:       map[string]any{"kind": "author", "value": "Joshua Bloch", "wait": true},
			wantStatus: "completed",
			check: func(t *testing.T, r *lookup.Result) {
				require.NotNil(t, r.Author)
				assert.Equal(t, "Joshua Bloch", r.Author.Author)
				assert.Len(t, r.Author.Books, 1)
			},
		},
		{
			name:       "unknown isbn",
			body:       map[string]any{"kind": "book", "value": "9780000000002", "wait": true},
			wantStatus: "not_found",
			check: func(t *testing.T, r *lookup.Result) {
				assert.True(t, r.NotFound)
				assert.Nil(t, r.Book)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := ts.api.Post("/api/v1/isbndb/lookups", tt.body)
			require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

			out := decodeData[LookupResponse](t, resp.Body.Bytes())
			assert.Equal(t, tt.wantStatus, out.Status)
			require.NotNil(t, out.Result)
			assert.Equal(t, out.ID, out.Result.ItemID)
			tt.check(t, out.Result)
		})
	}
}

func TestEnqueueLookup_UpstreamRateLimited(t *testing.T) {
	ts := setupTestServer(t)
	defer ts.cleanup()

	resp := ts.api.Post("/api/v1/isbndb/lookups", map[string]any{
		"kind": "book", "value": "0804429579", "wait": true,
	})
	assert.Equal(t, http.StatusTooManyRequests, resp.Code, resp.Body.String())

	env := decodeEnvelope(t, resp.Body.Bytes())
	assert.Equal(t, "RATE_LIMITED", env.Code)

	// MaxRetries counts attempts.
	assert.EqualValues(t, 2, ts.upstream.calls.Load())
}

func TestEnqueueLookup_Invalid(t *testing.T) {
	ts := setupTestServer(t)
	defer ts.cleanup()

	tests := []struct {
		name string
		body map[string]any
	}{
		{"unknown kind", map[string]any{"kind": "series", "value": "x"}},
		{"empty value", map[string]any{"kind": "author", "value": ""}},
		{"bad isbn", map[string]any{"kind": "book", "value": "12345"}},
		{"bad priority", map[string]any{"kind": "book", "value": "9780134685991", "priority": "urgent"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := ts.api.Post("/api/v1/isbndb/lookups", tt.body)
			assert.Contains(t, []int{http.StatusBadRequest, http.StatusUnprocessableEntity}, resp.Code, resp.Body.String())

			env := decodeEnvelope(t, resp.Body.Bytes())
			assert.False(t, env.Success)
			assert.Equal(t, "VALIDATION", env.Code)
		})
	}
	assert.Zero(t, ts.upstream.calls.Load())
}

func TestQueueStats(t *testing.T) {
	ts := setupTestServer(t)
	defer ts.cleanup()

	resp := ts.api.Post("/api/v1/isbndb/lookups", map[string]any{
		"kind": "publisher", "value": "Addison-Wesley", "wait": true,
	})
	require.Equal(t, http.StatusOK, resp.Code)

	resp = ts.api.Get("/api/v1/isbndb/queue")
	require.Equal(t, http.StatusOK, resp.Code)
	stats := decodeData[lookup.Stats](t, resp.Body.Bytes())
	assert.True(t, stats.Processing)
	assert.Zero(t, stats.Length)
	assert.EqualValues(t, 1, stats.Completed)
}

func TestCatalogSearch(t *testing.T) {
	ts := setupTestServer(t)
	defer ts.cleanup()

	resp := ts.api.Get("/api/v1/isbndb/search/books?q=effective+java&column=title")
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	books := decodeData[isbndb.BookSearchResult](t, resp.Body.Bytes())
	assert.Equal(t, 1, books.Total)
	require.Len(t, books.Books, 1)
	assert.Equal(t, "Effective Java", books.Books[0].Title)

	// Served from the response cache the second time.
	calls := ts.upstream.calls.Load()
	resp = ts.api.Get("/api/v1/isbndb/search/books?q=effective+java&column=title")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, calls, ts.upstream.calls.Load())

	resp = ts.api.Get("/api/v1/isbndb/search/publishers?q=addison")
	require.Equal(t, http.StatusOK, resp.Code)
	pubs := decodeData[isbndb.PublisherSearchResult](t, resp.Body.Bytes())
	assert.Equal(t, []string{"Addison-Wesley"}, pubs.Publishers)

	resp = ts.api.Get("/api/v1/isbndb/index/subjects?text=java&page=2")
	require.Equal(t, http.StatusOK, resp.Code)
	raw := decodeData[map[string]any](t, resp.Body.Bytes())
	assert.EqualValues(t, 0, raw["total"])

	resp = ts.api.Get("/api/v1/isbndb/stats")
	require.Equal(t, http.StatusOK, resp.Code)
	stats := decodeData[map[string]any](t, resp.Body.Bytes())
	assert.EqualValues(t, 42, stats["books"])
}

func TestCatalogSearch_RejectsBadInput(t *testing.T) {
	ts := setupTestServer(t)
	defer ts.cleanup()

	assert.Equal(t, http.StatusUnprocessableEntity, ts.api.Get("/api/v1/isbndb/search/books?q=java&column=isbn").Code)
	assert.Equal(t, http.StatusUnprocessableEntity, ts.api.Get("/api/v1/isbndb/search/authors").Code)
	assert.Equal(t, http.StatusUnprocessableEntity, ts.api.Get("/api/v1/isbndb/index/series").Code)
	assert.Zero(t, ts.upstream.calls.Load())
}

func TestLibrarySearch(t *testing.T) {
	ts := setupTestServer(t)
	defer ts.cleanup()

	require.Equal(t, http.StatusOK, ts.api.Get("/api/v1/isbndb/books/9780134685991").Code)

	resp := ts.api.Get("/api/v1/library/search?q=bloch")
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	res := decodeData[service.LibrarySearchResult](t, resp.Body.Bytes())
	assert.EqualValues(t, 1, res.Total)
	require.Len(t, res.Books, 1)
	assert.Equal(t, "Effective Java", res.Books[0].Title)

	resp = ts.api.Get("/api/v1/library/search?q=bloch&min_year=2020")
	require.Equal(t, http.StatusOK, resp.Code)
	res = decodeData[service.LibrarySearchResult](t, resp.Body.Bytes())
	assert.Zero(t, res.Total)

	resp = ts.api.Get("/api/v1/library/search?min_year=2020&max_year=2010")
	assert.Equal(t, http.StatusUnprocessableEntity, resp.Code)

	resp = ts.api.Post("/api/v1/library/reindex")
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	reindex := decodeData[ReindexResponse](t, resp.Body.Bytes())
	assert.Equal(t, 1, reindex.Indexed)
}

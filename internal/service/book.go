// Package service provides the business logic layer between the HTTP API,
// the ISBNdb client, the lookup queue and local persistence.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/openshelf/openshelf-server/internal/domain"
	domainerrors "github.com/openshelf/openshelf-server/internal/errors"
	"github.com/openshelf/openshelf-server/internal/isbndb"
	"github.com/openshelf/openshelf-server/internal/normalize"
	"github.com/openshelf/openshelf-server/internal/store"
)

// BookFetcher is the part of the ISBNdb client the book cache needs.
type BookFetcher interface {
	IsEnabled() bool
	LookupBookByISBN(ctx context.Context, isbn string, withPrices bool) (*isbndb.Book, error)
}

// BookCacheService serves book lookups from the local store and writes
// upstream results through to it.
type BookCacheService struct {
	fetcher BookFetcher
	store   store.BookStore
	logger  *slog.Logger
}

// NewBookCacheService creates a new book cache service.
func NewBookCacheService(fetcher BookFetcher, store store.BookStore, logger *slog.Logger) *BookCacheService {
	return &BookCacheService{
		fetcher: fetcher,
		store:   store,
		logger:  logger,
	}
}

// GetBookByISBN returns the stored book for isbn, fetching and persisting it
// when absent or when forceRefresh is set.
//
// A stored book is returned with CacheHit set and no upstream call is made.
// Upstream absence, a disabled client and upstream failures all return
// nil, nil; the failure is logged. Only a malformed ISBN or a failed write
// returns an error.
func (s *BookCacheService) GetBookByISBN(ctx context.Context, isbn string, forceRefresh bool) (*domain.BookView, error) {
	normalized := isbndb.NormalizeISBN(isbn)
	if normalized == "" {
		return nil, domainerrors.Validationf("invalid isbn %q", isbn)
	}

	if !forceRefresh {
		cached, err := s.store.FindBookByISBN(ctx, normalized)
		switch {
		case err == nil:
			s.logger.Debug("book cache hit", "isbn", normalized, "book_id", cached.ID)
			cached.CacheHit = true
			return cached, nil
		case errors.Is(err, store.ErrNotFound):
		default:
			s.logger.Warn("book cache lookup failed",
				"isbn", normalized,
				"error", err,
			)
			// Continue to fetch fresh
		}
	}

	if !s.fetcher.IsEnabled() {
		s.logger.Debug("isbndb disabled, skipping fetch", "isbn", normalized)
		return nil, nil
	}

	s.logger.Debug("fetching book from isbndb", "isbn", normalized, "force_refresh", forceRefresh)

	book, err := s.fetcher.LookupBookByISBN(ctx, normalized, false)
	if err != nil {
		if errors.Is(err, isbndb.ErrNotFound) {
			s.logger.Debug("book not found upstream", "isbn", normalized)
		} else {
			s.logger.Warn("isbndb lookup failed",
				"isbn", normalized,
				"status", isbndb.StatusCode(err),
				"error", err,
			)
		}
		return nil, nil
	}

	return s.save(ctx, book, normalized)
}

// CacheBook persists a book fetched elsewhere, such as by the lookup queue.
func (s *BookCacheService) CacheBook(ctx context.Context, book *isbndb.Book) error {
	if book == nil {
		return nil
	}
	_, err := s.save(ctx, book, "")
	return err
}

// GetCacheStats returns row counts for the local mirror.
func (s *BookCacheService) GetCacheStats(ctx context.Context) (*domain.CacheStats, error) {
	stats, err := s.store.CacheStats(ctx)
	if err != nil {
		return nil, fmt.Errorf("get cache stats: %w", err)
	}
	return stats, nil
}

func (s *BookCacheService) save(ctx context.Context, book *isbndb.Book, requestedISBN string) (*domain.BookView, error) {
	record, author, publisher := toDomainBook(book, requestedISBN)

	view, err := s.store.SaveBook(ctx, record, author, publisher)
	if err != nil {
		return nil, fmt.Errorf("save book %s: %w", record.LookupKey(), err)
	}

	s.logger.Info("cached book",
		"book_id", view.ID,
		"isbn", view.LookupKey(),
		"title", view.Title,
	)
	return view, nil
}

// toDomainBook maps an upstream book onto the persisted record and returns
// the author and publisher names to attach. requestedISBN fills the ISBN
// slot the upstream record leaves empty, and otherwise becomes an alias when
// upstream answered with a different edition.
func toDomainBook(b *isbndb.Book, requestedISBN string) (*domain.Book, string, string) {
	record := &domain.Book{
		Title:    strings.TrimSpace(b.Title),
		Overview: strings.TrimSpace(b.Synopsis),
		Year:     publishedYear(b.DatePublished),
		Pages:    b.Pages,
		CoverURL: b.ImageOriginal,
		Language: normalize.LanguageOrRaw(b.Language),
	}
	if record.Title == "" {
		record.Title = strings.TrimSpace(b.TitleLong)
	}
	if record.Overview == "" {
		record.Overview = strings.TrimSpace(b.Overview)
	}
	if record.CoverURL == "" {
		record.CoverURL = b.Image
	}

	for _, candidate := range []string{b.ISBN13, b.ISBN10, b.ISBN, requestedISBN} {
		isbn := isbndb.NormalizeISBN(candidate)
		switch {
		case len(isbn) == 13 && record.ISBN13 == "":
			record.ISBN13 = isbn
		case len(isbn) == 10 && record.ISBN10 == "":
			record.ISBN10 = isbn
		}
	}
	if req := isbndb.NormalizeISBN(requestedISBN); req != "" && req != record.ISBN13 && req != record.ISBN10 {
		record.Aliases = []string{req}
	}

	return record, firstNonEmpty(b.Authors), strings.TrimSpace(b.Publisher)
}

// publishedYear extracts the leading four-digit year from an upstream date
// such as "2018", "2018-01-06" or "2018-01-06T00:00:00Z".
func publishedYear(date string) int {
	date = strings.TrimSpace(date)
	if len(date) < 4 {
		return 0
	}
	year := 0
	for _, r := range date[:4] {
		if r < '0' || r > '9' {
			return 0
		}
		year = year*10 + int(r-'0')
	}
	return year
}

func firstNonEmpty(values []string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

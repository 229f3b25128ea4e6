package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/openshelf/openshelf-server/internal/domain"
	"github.com/openshelf/openshelf-server/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func effectiveJava() *domain.Book {
	return &domain.Book{
		ISBN10:   "0134685997",
		ISBN13:   "9780134685991",
		Title:    "Effective Java",
		Overview: "Best practices for the Java platform.",
		Year:     2017,
		Pages:    412,
		CoverURL: "https://images.isbndb.com/covers/59/91/9780134685991.jpg",
		Language: "en",
	}
}

func TestSaveBook_InsertAndFind(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	saved, err := s.SaveBook(ctx, effectiveJava(), "Joshua Bloch", "Addison-Wesley")
	require.NoError(t, err)
	assert.NotEmpty(t, saved.ID)
	assert.NotEmpty(t, saved.AuthorID)
	assert.NotEmpty(t, saved.PublisherID)
	assert.Equal(t, "Joshua Bloch", saved.AuthorName)
	assert.False(t, saved.CacheHit)

	for _, isbn := range []string{"9780134685991", "0134685997"} {
		got, err := s.FindBookByISBN(ctx, isbn)
		require.NoError(t, err, isbn)
		assert.Equal(t, saved.ID, got.ID)
		assert.Equal(t, "Effective Java", got.Title)
		assert.Equal(t, 2017, got.Year)
		assert.Equal(t, 412, got.Pages)
		assert.Equal(t, "Joshua Bloch", got.AuthorName)
		assert.Equal(t, "Addison-Wesley", got.PublisherName)
		assert.Equal(t, "en", got.Language)
	}
}

func TestFindBookByISBN_NotFound(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.FindBookByISBN(ctx, "9780000000000")
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = s.FindBookByISBN(ctx, "")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestSaveBook_UpsertKeepsIdentity(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first, err := s.SaveBook(ctx, effectiveJava(), "Joshua Bloch", "Addison-Wesley")
	require.NoError(t, err)

	updated := effectiveJava()
	updated.Title = "Effective Java, Third Edition"
	updated.Pages = 416
	second, err := s.SaveBook(ctx, updated, "Joshua Bloch", "Addison-Wesley Professional")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.True(t, first.CreatedAt.Equal(second.CreatedAt))
	assert.False(t, second.UpdatedAt.Before(first.UpdatedAt))

	got, err := s.FindBookByISBN(ctx, "9780134685991")
	require.NoError(t, err)
	assert.Equal(t, "Effective Java, Third Edition", got.Title)
	assert.Equal(t, 416, got.Pages)
	assert.Equal(t, "Addison-Wesley Professional", got.PublisherName)

	stats, err := s.CacheStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalBooks)
	assert.Equal(t, 1, stats.TotalAuthors)
	assert.Equal(t, 2, stats.TotalPublishers)
}

func TestSaveBook_MatchesOnEitherISBN(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first, err := s.SaveBook(ctx, &domain.Book{ISBN10: "0134685997", Title: "Effective Java"}, "Joshua Bloch", "")
	require.NoError(t, err)

	second, err := s.SaveBook(ctx, effectiveJava(), "Joshua Bloch", "")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	got, err := s.FindBookByISBN(ctx, "9780134685991")
	require.NoError(t, err)
	assert.Equal(t, first.ID, got.ID)
}

func TestSaveBook_AliasResolvesToSavedRow(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	book := effectiveJava()
	book.Aliases = []string{"9780321356680"}
	saved, err := s.SaveBook(ctx, book, "Joshua Bloch", "Addison-Wesley")
	require.NoError(t, err)

	got, err := s.FindBookByISBN(ctx, "9780321356680")
	require.NoError(t, err)
	assert.Equal(t, saved.ID, got.ID)
	assert.Equal(t, "9780134685991", got.ISBN13)

	// Saving again under the same alias keeps one row and one alias
	again := effectiveJava()
	again.Aliases = []string{"9780321356680"}
	resaved, err := s.SaveBook(ctx, again, "Joshua Bloch", "Addison-Wesley")
	require.NoError(t, err)
	assert.Equal(t, saved.ID, resaved.ID)

	var aliases int
	require.NoError(t, s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM book_isbns`).Scan(&aliases))
	assert.Equal(t, 1, aliases)

	stats, err := s.CacheStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalBooks)
}

func TestSaveBook_NoISBNAlwaysInserts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a, err := s.SaveBook(ctx, &domain.Book{Title: "Pamphlet"}, "", "")
	require.NoError(t, err)
	b, err := s.SaveBook(ctx, &domain.Book{Title: "Pamphlet"}, "", "")
	require.NoError(t, err)

	assert.NotEqual(t, a.ID, b.ID)

	stats, err := s.CacheStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalBooks)
	// Both collapse onto the same placeholders.
	assert.Equal(t, 1, stats.TotalAuthors)
	assert.Equal(t, 1, stats.TotalPublishers)
	assert.Equal(t, a.AuthorID, b.AuthorID)
	assert.Equal(t, domain.UnknownAuthor, a.AuthorName)
	assert.Equal(t, domain.UnknownPublisher, a.PublisherName)
}

func TestSaveBook_RequiresTitle(t *testing.T) {
	s := newTestStore(t)

	_, err := s.SaveBook(context.Background(), &domain.Book{ISBN13: "9780134685991"}, "", "")
	assert.ErrorIs(t, err, store.ErrInvalidInput)
}

func TestSaveBook_RollsBackNamesOnFailure(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.db.ExecContext(ctx, `
		CREATE TRIGGER reject_books BEFORE INSERT ON books
		WHEN NEW.title = 'reject'
		BEGIN SELECT RAISE(ABORT, 'rejected'); END`)
	require.NoError(t, err)

	_, err = s.SaveBook(ctx, &domain.Book{Title: "reject", ISBN13: "9780000000001"}, "Orphan Author", "Orphan Press")
	require.Error(t, err)

	stats, err := s.CacheStats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.TotalBooks)
	assert.Zero(t, stats.TotalAuthors, "author insert must roll back with the book")
	assert.Zero(t, stats.TotalPublishers)
}

func TestSaveBook_NotifiesIndexer(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	idx := &recordingIndexer{}
	s.SetSearchIndexer(idx)

	saved, err := s.SaveBook(ctx, effectiveJava(), "Joshua Bloch", "Addison-Wesley")
	require.NoError(t, err)
	require.Len(t, idx.books, 1)
	assert.Equal(t, saved.ID, idx.books[0].ID)
	assert.Equal(t, "Joshua Bloch", idx.books[0].AuthorName)

	// Index failures are logged, not returned.
	idx.err = errors.New("index closed")
	_, err = s.SaveBook(ctx, effectiveJava(), "Joshua Bloch", "Addison-Wesley")
	assert.NoError(t, err)
}

func TestGetBookViews(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a, err := s.SaveBook(ctx, effectiveJava(), "Joshua Bloch", "Addison-Wesley")
	require.NoError(t, err)
	b, err := s.SaveBook(ctx, &domain.Book{Title: "Java Puzzlers", ISBN13: "9780321336781"}, "Joshua Bloch", "Addison-Wesley")
	require.NoError(t, err)

	views, err := s.GetBookViews(ctx, []string{b.ID, "missing", a.ID})
	require.NoError(t, err)
	require.Len(t, views, 2)
	assert.Equal(t, b.ID, views[0].ID)
	assert.Equal(t, a.ID, views[1].ID)

	views, err = s.GetBookViews(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, views)

	one, err := s.GetBookView(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "Effective Java", one.Title)

	_, err = s.GetBookView(ctx, "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestEachBookView(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, title := range []string{"One", "Two", "Three"} {
		_, err := s.SaveBook(ctx, &domain.Book{Title: title}, "", "")
		require.NoError(t, err)
	}

	var titles []string
	err := s.EachBookView(ctx, func(v *domain.BookView) error {
		titles = append(titles, v.Title)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"One", "Two", "Three"}, titles)

	stop := errors.New("stop")
	err = s.EachBookView(ctx, func(*domain.BookView) error { return stop })
	assert.ErrorIs(t, err, stop)
}

func TestCacheStats_Empty(t *testing.T) {
	s := newTestStore(t)

	stats, err := s.CacheStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.CacheStats{}, *stats)
}

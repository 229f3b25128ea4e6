package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/openshelf/openshelf-server/internal/domain"
	"github.com/openshelf/openshelf-server/internal/store"
)

// bookViewQuery selects books joined with their author and publisher names.
// Must match the scan order in scanBookView.
const bookViewQuery = `SELECT b.id, b.created_at, b.updated_at, b.isbn10, b.isbn13, b.title,
	b.overview, b.year, b.pages, b.cover_url, b.language, b.author_id, b.publisher_id,
	a.name, p.name
	FROM books b
	JOIN authors a ON a.id = b.author_id
	JOIN publishers p ON p.id = b.publisher_id`

func scanBookView(scanner interface{ Scan(dest ...any) error }) (*domain.BookView, error) {
	var (
		v         domain.BookView
		createdAt string
		updatedAt string
		isbn10    sql.NullString
		isbn13    sql.NullString
		overview  sql.NullString
		year      sql.NullInt64
		pages     sql.NullInt64
		coverURL  sql.NullString
		language  sql.NullString
	)

	err := scanner.Scan(
		&v.ID,
		&createdAt,
		&updatedAt,
		&isbn10,
		&isbn13,
		&v.Title,
		&overview,
		&year,
		&pages,
		&coverURL,
		&language,
		&v.AuthorID,
		&v.PublisherID,
		&v.AuthorName,
		&v.PublisherName,
	)
	if err != nil {
		return nil, err
	}

	if v.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if v.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}

	v.ISBN10 = isbn10.String
	v.ISBN13 = isbn13.String
	v.Overview = overview.String
	v.Year = int(year.Int64)
	v.Pages = int(pages.Int64)
	v.CoverURL = coverURL.String
	v.Language = language.String

	return &v, nil
}

// FindBookByISBN returns the first book whose ISBN-13, ISBN-10 or a recorded
// alias equals isbn.
func (s *Store) FindBookByISBN(ctx context.Context, isbn string) (*domain.BookView, error) {
	if isbn == "" {
		return nil, store.ErrNotFound
	}

	row := s.db.QueryRowContext(ctx,
		bookViewQuery+` WHERE b.isbn13 = ? OR b.isbn10 = ?
			OR b.id = (SELECT book_id FROM book_isbns WHERE isbn = ?)
			ORDER BY b.rowid LIMIT 1`, isbn, isbn, isbn)

	v, err := scanBookView(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find book %s: %w", isbn, err)
	}
	return v, nil
}

// SaveBook upserts book under the named author and publisher in one transaction.
// A book with an ISBN replaces the row sharing either ISBN, keeping its ID and
// creation time. A book with no ISBN is always inserted. book.Aliases are
// pointed at the saved row. book.ID, timestamps
// and reference IDs are filled in on return.
func (s *Store) SaveBook(ctx context.Context, book *domain.Book, authorName, publisherName string) (*domain.BookView, error) {
	if book == nil || strings.TrimSpace(book.Title) == "" {
		return nil, store.ErrInvalidInput.WithMessage("book title is required")
	}

	authorName = domain.AuthorOrPlaceholder(authorName)
	publisherName = domain.PublisherOrPlaceholder(publisherName)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	author, err := ensureNamed(ctx, tx, authorsTable, authorName)
	if err != nil {
		return nil, err
	}
	publisher, err := ensureNamed(ctx, tx, publishersTable, publisherName)
	if err != nil {
		return nil, err
	}
	book.AuthorID = author.ID
	book.PublisherID = publisher.ID

	existing := false
	if book.HasISBN() {
		var id, createdAt string
		err := tx.QueryRowContext(ctx,
			`SELECT id, created_at FROM books WHERE isbn13 = ? OR isbn10 = ? ORDER BY rowid LIMIT 1`,
			nullString(book.ISBN13), nullString(book.ISBN10),
		).Scan(&id, &createdAt)
		switch {
		case err == nil:
			existing = true
			book.ID = id
			if book.CreatedAt, err = parseTime(createdAt); err != nil {
				return nil, err
			}
		case !errors.Is(err, sql.ErrNoRows):
			return nil, fmt.Errorf("match book %s: %w", book.LookupKey(), err)
		}
	}

	if existing {
		book.Touch()
		_, err = tx.ExecContext(ctx, `
			UPDATE books SET
				updated_at = ?, isbn10 = ?, isbn13 = ?, title = ?, overview = ?,
				year = ?, pages = ?, cover_url = ?, language = ?,
				author_id = ?, publisher_id = ?
			WHERE id = ?`,
			formatTime(book.UpdatedAt),
			nullString(book.ISBN10),
			nullString(book.ISBN13),
			book.Title,
			nullString(book.Overview),
			nullInt(book.Year),
			nullInt(book.Pages),
			nullString(book.CoverURL),
			nullString(book.Language),
			book.AuthorID,
			book.PublisherID,
			book.ID,
		)
	} else {
		book.ID = uuid.New().String()
		book.InitTimestamps()
		_, err = tx.ExecContext(ctx, `
			INSERT INTO books (
				id, created_at, updated_at, isbn10, isbn13, title, overview,
				year, pages, cover_url, language, author_id, publisher_id
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			book.ID,
			formatTime(book.CreatedAt),
			formatTime(book.UpdatedAt),
			nullString(book.ISBN10),
			nullString(book.ISBN13),
			book.Title,
			nullString(book.Overview),
			nullInt(book.Year),
			nullInt(book.Pages),
			nullString(book.CoverURL),
			nullString(book.Language),
			book.AuthorID,
			book.PublisherID,
		)
	}
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return nil, store.ErrAlreadyExists
		}
		return nil, fmt.Errorf("save book: %w", err)
	}

	for _, alias := range book.Aliases {
		if alias == "" || alias == book.ISBN13 || alias == book.ISBN10 {
			continue
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO book_isbns (isbn, book_id) VALUES (?, ?)
			ON CONFLICT(isbn) DO UPDATE SET book_id = excluded.book_id`,
			alias, book.ID,
		); err != nil {
			return nil, fmt.Errorf("save isbn alias %s: %w", alias, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit book: %w", err)
	}

	view := &domain.BookView{
		Book:          *book,
		AuthorName:    authorName,
		PublisherName: publisherName,
	}

	if err := s.indexer().IndexBook(ctx, view); err != nil {
		s.logger.Warn("failed to index book", "book_id", book.ID, "error", err)
	}

	return view, nil
}

// GetBookView returns a single book by ID.
func (s *Store) GetBookView(ctx context.Context, id string) (*domain.BookView, error) {
	row := s.db.QueryRowContext(ctx, bookViewQuery+` WHERE b.id = ?`, id)
	v, err := scanBookView(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get book %s: %w", id, err)
	}
	return v, nil
}

// GetBookViews returns books in the order of ids, skipping unknown IDs.
func (s *Store) GetBookViews(ctx context.Context, ids []string) ([]*domain.BookView, error) {
	if len(ids) == 0 {
		return []*domain.BookView{}, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx, bookViewQuery+` WHERE b.id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("get books: %w", err)
	}
	defer rows.Close()

	byID := make(map[string]*domain.BookView, len(ids))
	for rows.Next() {
		v, err := scanBookView(rows)
		if err != nil {
			return nil, err
		}
		byID[v.ID] = v
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	views := make([]*domain.BookView, 0, len(byID))
	for _, id := range ids {
		if v, ok := byID[id]; ok {
			views = append(views, v)
		}
	}
	return views, nil
}

// EachBookView calls fn for every stored book in insertion order.
func (s *Store) EachBookView(ctx context.Context, fn func(*domain.BookView) error) error {
	rows, err := s.db.QueryContext(ctx, bookViewQuery+` ORDER BY b.rowid`)
	if err != nil {
		return fmt.Errorf("list books: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		v, err := scanBookView(rows)
		if err != nil {
			return err
		}
		if err := fn(v); err != nil {
			return err
		}
	}
	return rows.Err()
}

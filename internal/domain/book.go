// Package domain contains the entities mirrored from the external book-metadata provider.
package domain

import "strings"

// Placeholder names used when the upstream record carries no attribution.
const (
	UnknownAuthor    = "Unknown Author"
	UnknownPublisher = "Unknown Publisher"
)

// Book is the persisted, normalized form of a fetched book.
type Book struct {
	Record
	ISBN10      string `json:"isbn10,omitempty"`
	ISBN13      string `json:"isbn13,omitempty"`
	Title       string `json:"title"`
	Overview    string `json:"overview,omitempty"`
	Year        int    `json:"year,omitempty"`
	Pages       int    `json:"pages,omitempty"`
	CoverURL    string `json:"cover_url,omitempty"`
	Language    string `json:"language,omitempty"`
	AuthorID    string `json:"author_id"`
	PublisherID string `json:"publisher_id"`

	// Aliases are other ISBNs the book was requested under. They resolve to
	// this row on lookup.
	Aliases []string `json:"-"`
}

// LookupKey returns the ISBN used to match the book on upsert.
// ISBN-13 wins over ISBN-10; an empty key means the book is never matched.
func (b *Book) LookupKey() string {
	if b.ISBN13 != "" {
		return b.ISBN13
	}
	return b.ISBN10
}

// HasISBN reports whether the book carries any ISBN.
func (b *Book) HasISBN() bool {
	return b.LookupKey() != ""
}

// BookView is a book joined with its author and publisher names.
type BookView struct {
	Book
	AuthorName    string `json:"author_name"`
	PublisherName string `json:"publisher_name"`
	CacheHit      bool   `json:"cache_hit"`
}

// AuthorOrPlaceholder returns name, or the unknown-author placeholder when blank.
func AuthorOrPlaceholder(name string) string {
	if strings.TrimSpace(name) == "" {
		return UnknownAuthor
	}
	return name
}

// PublisherOrPlaceholder returns name, or the unknown-publisher placeholder when blank.
func PublisherOrPlaceholder(name string) string {
	if strings.TrimSpace(name) == "" {
		return UnknownPublisher
	}
	return name
}

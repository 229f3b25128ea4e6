// Package search provides full-text search over locally cached books using Bleve.
package search

import (
	"strings"

	"github.com/openshelf/openshelf-server/internal/domain"
)

// BookDocument is the indexed form of a cached book.
// Author and publisher names are denormalized so one query covers them.
type BookDocument struct {
	ID        string   `json:"id"`
	Title     string   `json:"title"`
	Overview  string   `json:"overview,omitempty"`
	Author    string   `json:"author,omitempty"`
	Publisher string   `json:"publisher,omitempty"`
	ISBNs     []string `json:"isbn,omitempty"`
	Language  string   `json:"language,omitempty"`
	Year      int      `json:"year,omitempty"`
	UpdatedAt int64    `json:"updated_at"` // Unix millis
}

// NewBookDocument builds a document from a stored book.
func NewBookDocument(b *domain.BookView) *BookDocument {
	doc := &BookDocument{
		ID:        b.ID,
		Title:     b.Title,
		Overview:  b.Overview,
		Author:    b.AuthorName,
		Publisher: b.PublisherName,
		Language:  strings.ToLower(b.Language),
		Year:      b.Year,
		UpdatedAt: b.UpdatedAt.UnixMilli(),
	}
	for _, isbn := range []string{b.ISBN13, b.ISBN10} {
		if isbn != "" {
			doc.ISBNs = append(doc.ISBNs, isbn)
		}
	}
	return doc
}

// ToMap converts the document to a map whose keys match the index mapping.
func (d *BookDocument) ToMap() map[string]any {
	m := map[string]any{
		"id":         d.ID,
		"title":      d.Title,
		"updated_at": d.UpdatedAt,
	}
	if d.Overview != "" {
		m["overview"] = d.Overview
	}
	if d.Author != "" {
		m["author"] = d.Author
	}
	if d.Publisher != "" {
		m["publisher"] = d.Publisher
	}
	if len(d.ISBNs) > 0 {
		m["isbn"] = d.ISBNs
	}
	if d.Language != "" {
		m["language"] = d.Language
	}
	if d.Year > 0 {
		m["year"] = d.Year
	}
	return m
}

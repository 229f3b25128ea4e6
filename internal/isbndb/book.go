package isbndb

import (
	"context"
	"net/url"
)

// LookupBookByISBN fetches a single book. The ISBN is normalized first.
// withPrices asks ISBNdb to include merchant offers.
func (c *Client) LookupBookByISBN(ctx context.Context, isbn string, withPrices bool) (*Book, error) {
	normalized := NormalizeISBN(isbn)
	if normalized == "" {
		return nil, wrapError("lookupBook", isbn, ErrInvalidInput)
	}

	query := url.Values{}
	if withPrices || c.withPrices {
		query.Set("with_prices", "1")
	}

	var raw rawBookResponse
	if err := c.getJSON(ctx, "/book/"+normalized, query, &raw); err != nil {
		return nil, wrapError("lookupBook", normalized, err)
	}

	// ISBNdb occasionally answers 200 with an empty object for unknown ISBNs.
	if raw.Book.Title == "" && raw.Book.ISBN == "" && raw.Book.ISBN13 == "" && raw.Book.ISBN10 == "" {
		return nil, wrapError("lookupBook", normalized, ErrNotFound)
	}

	book := raw.Book.toBook()
	return &book, nil
}

func (r rawBook) toBook() Book {
	b := Book{
		Title:         cleanText(r.Title),
		TitleLong:     cleanText(r.TitleLong),
		ISBN:          NormalizeISBN(string(r.ISBN)),
		ISBN13:        NormalizeISBN(string(r.ISBN13)),
		ISBN10:        NormalizeISBN(string(r.ISBN10)),
		Authors:       cleanList(r.Authors),
		Publisher:     cleanText(r.Publisher),
		Language:      cleanText(r.Language),
		DatePublished: cleanText(string(r.DatePublished)),
		Edition:       cleanText(string(r.Edition)),
		Binding:       cleanText(r.Binding),
		Pages:         int(r.Pages),
		Overview:      cleanDescription(r.Overview),
		Synopsis:      cleanDescription(r.Synopsis),
		Excerpt:       cleanDescription(r.Excerpt),
		Image:         r.Image,
		ImageOriginal: r.ImageOriginal,
		Subjects:      cleanList(r.Subjects),
	}
	for _, p := range r.Prices {
		b.Prices = append(b.Prices, Price{
			Condition: p.Condition,
			Merchant:  p.Merchant,
			Price:     string(p.Price),
			Total:     string(p.Total),
			Link:      p.Link,
		})
	}
	return b
}

func toBooks(raw []rawBook) []Book {
	books := make([]Book, 0, len(raw))
	for _, r := range raw {
		books = append(books, r.toBook())
	}
	return books
}

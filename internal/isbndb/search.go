package isbndb

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"slices"
)

var validColumns = []string{ColumnAny, ColumnTitle, ColumnAuthor, ColumnDatePublished, ColumnSubjects}

var validIndexes = []string{IndexBooks, IndexAuthors, IndexPublishers, IndexSubjects}

// SearchBooks runs a book search. An unknown column is rejected before any request.
func (c *Client) SearchBooks(ctx context.Context, query string, opts SearchBooksOptions) (*BookSearchResult, error) {
	if !slices.Contains(validColumns, opts.Column) {
		return nil, wrapError("searchBooks", query, fmt.Errorf("%w: column %q", ErrInvalidInput, opts.Column))
	}
	path, err := segment(query)
	if err != nil {
		return nil, wrapError("searchBooks", query, err)
	}

	q := pageQuery(opts.PageOptions)
	if opts.Column != "" {
		q.Set("column", opts.Column)
	}
	if opts.Year > 0 {
		q.Set("year", fmt.Sprint(opts.Year))
	}
	if opts.Edition > 0 {
		q.Set("edition", fmt.Sprint(opts.Edition))
	}
	if opts.Language != "" {
		q.Set("language", opts.Language)
	}
	if opts.ShouldMatchAll {
		q.Set("shouldMatchAll", "1")
	}

	var raw rawBooksResponse
	if err := c.getJSON(ctx, "/books"+path, q, &raw); err != nil {
		return nil, wrapError("searchBooks", query, err)
	}

	return &BookSearchResult{
		Total: int(raw.Total),
		Books: toBooks(raw.Books),
	}, nil
}

// SearchAll queries one of the generic search indexes. The response shape
// differs per index and is returned undecoded.
func (c *Client) SearchAll(ctx context.Context, index string, filters map[string]string) (json.RawMessage, error) {
	if !slices.Contains(validIndexes, index) {
		return nil, wrapError("searchAll", index, fmt.Errorf("%w: index %q", ErrInvalidInput, index))
	}

	q := url.Values{}
	for k, v := range filters {
		if v != "" {
			q.Set(k, v)
		}
	}

	body, err := c.doRequest(ctx, "/search/"+index, q)
	if err != nil {
		return nil, wrapError("searchAll", index, err)
	}
	if !json.Valid(body) {
		return nil, wrapError("searchAll", index, fmt.Errorf("decode response: invalid JSON"))
	}
	return json.RawMessage(body), nil
}

// Stats returns the upstream database statistics undecoded.
func (c *Client) Stats(ctx context.Context) (json.RawMessage, error) {
	body, err := c.doRequest(ctx, "/stats", nil)
	if err != nil {
		return nil, wrapError("stats", "", err)
	}
	if !json.Valid(body) {
		return nil, wrapError("stats", "", fmt.Errorf("decode response: invalid JSON"))
	}
	return json.RawMessage(body), nil
}

// ValidIndex reports whether index is accepted by SearchAll.
func ValidIndex(index string) bool {
	return slices.Contains(validIndexes, index)
}

package isbndb

import "context"

// GetAuthorDetails returns the books ISBNdb attributes to name.
func (c *Client) GetAuthorDetails(ctx context.Context, name string, opts PageOptions) (*AuthorDetails, error) {
	path, err := segment(name)
	if err != nil {
		return nil, wrapError("getAuthor", name, err)
	}

	var raw rawAuthorResponse
	if err := c.getJSON(ctx, "/author"+path, pageQuery(opts), &raw); err != nil {
		return nil, wrapError("getAuthor", name, err)
	}

	author := cleanText(raw.Author)
	if author == "" {
		author = cleanText(name)
	}
	return &AuthorDetails{Author: author, Books: toBooks(raw.Books)}, nil
}

// SearchAuthors returns author names matching query.
func (c *Client) SearchAuthors(ctx context.Context, query string, opts PageOptions) (*AuthorSearchResult, error) {
	path, err := segment(query)
	if err != nil {
		return nil, wrapError("searchAuthors", query, err)
	}

	var raw rawAuthorsResponse
	if err := c.getJSON(ctx, "/authors"+path, pageQuery(opts), &raw); err != nil {
		return nil, wrapError("searchAuthors", query, err)
	}

	authors := cleanList(raw.Authors)
	if authors == nil {
		authors = []string{}
	}
	return &AuthorSearchResult{Total: int(raw.Total), Authors: authors}, nil
}

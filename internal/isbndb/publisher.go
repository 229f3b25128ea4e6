package isbndb

import "context"

// GetPublisherDetails returns the books ISBNdb lists under a publisher.
func (c *Client) GetPublisherDetails(ctx context.Context, name string, opts PageOptions) (*PublisherDetails, error) {
	path, err := segment(name)
	if err != nil {
		return nil, wrapError("getPublisher", name, err)
	}

	var raw rawPublisherResponse
	if err := c.getJSON(ctx, "/publisher"+path, pageQuery(opts), &raw); err != nil {
		return nil, wrapError("getPublisher", name, err)
	}

	publisher := cleanText(raw.Publisher)
	if publisher == "" {
		publisher = cleanText(name)
	}
	return &PublisherDetails{Publisher: publisher, Books: toBooks(raw.Books)}, nil
}

// SearchPublishers returns publisher names matching query.
func (c *Client) SearchPublishers(ctx context.Context, query string, opts PageOptions) (*PublisherSearchResult, error) {
	path, err := segment(query)
	if err != nil {
		return nil, wrapError("searchPublishers", query, err)
	}

	var raw rawPublishersResponse
	if err := c.getJSON(ctx, "/publishers"+path, pageQuery(opts), &raw); err != nil {
		return nil, wrapError("searchPublishers", query, err)
	}

	publishers := cleanList(raw.Publishers)
	if publishers == nil {
		publishers = []string{}
	}
	return &PublisherSearchResult{Total: int(raw.Total), Publishers: publishers}, nil
}

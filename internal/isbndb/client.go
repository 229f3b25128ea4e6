// Package isbndb is a thin client for the ISBNdb v2 REST API.
//
// The client does no caching, retrying or queueing. Every operation fails
// fast with ErrNotConfigured when the client was built without an API key.
package isbndb

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	// DefaultBaseURL is the production ISBNdb endpoint.
	DefaultBaseURL = "https://api2.isbndb.com"

	defaultTimeout = 10 * time.Second

	// Upstream error bodies are truncated to this many bytes.
	maxErrorBody = 512
)

// HTTPDoer is the subset of *http.Client the client needs.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client calls the ISBNdb API. It is safe for concurrent use.
type Client struct {
	http       HTTPDoer
	baseURL    string
	apiKey     string
	withPrices bool
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(doer HTTPDoer) Option {
	return func(c *Client) {
		c.http = doer
	}
}

// WithBaseURL points the client at a different host, e.g. a test server.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		if baseURL != "" {
			c.baseURL = strings.TrimRight(baseURL, "/")
		}
	}
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.http = &http.Client{Timeout: timeout}
		}
	}
}

// WithPricesByDefault makes LookupBookByISBN request merchant prices
// even when the caller did not ask for them.
func WithPricesByDefault(enabled bool) Option {
	return func(c *Client) {
		c.withPrices = enabled
	}
}

// New creates a client. An empty apiKey yields a disabled client.
func New(apiKey string, logger *slog.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{
		http:    &http.Client{Timeout: defaultTimeout},
		baseURL: DefaultBaseURL,
		apiKey:  strings.TrimSpace(apiKey),
		logger:  logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// IsEnabled reports whether an API key is configured.
func (c *Client) IsEnabled() bool {
	return c != nil && c.apiKey != ""
}

// BaseURL returns the configured API root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// getJSON performs a GET and decodes the response body into out.
func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	body, err := c.doRequest(ctx, path, query)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// doRequest executes a GET against the API and returns the raw body.
func (c *Client) doRequest(ctx context.Context, path string, query url.Values) ([]byte, error) {
	if !c.IsEnabled() {
		return nil, ErrNotConfigured
	}

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Authorization", c.apiKey)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "OpenShelf/1.0")

	c.logger.Debug("isbndb request", "path", path)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return body, nil
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrNotFound
	default:
		text := strings.TrimSpace(string(body))
		if len(text) > maxErrorBody {
			text = text[:maxErrorBody]
		}
		return nil, &UpstreamError{StatusCode: resp.StatusCode, Body: text}
	}
}

// segment escapes a user-supplied value for use as a single path element.
func segment(value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", ErrInvalidInput
	}
	return "/" + url.PathEscape(value), nil
}

// pageQuery serializes pagination, omitting zero values.
func pageQuery(opts PageOptions) url.Values {
	q := url.Values{}
	if opts.Page > 0 {
		q.Set("page", fmt.Sprint(opts.Page))
	}
	if opts.PageSize > 0 {
		q.Set("pageSize", fmt.Sprint(opts.PageSize))
	}
	return q
}

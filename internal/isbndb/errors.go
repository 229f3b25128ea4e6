package isbndb

import (
	"errors"
	"fmt"
)

// Sentinel errors for ISBNdb API operations.
var (
	ErrNotFound      = errors.New("isbndb: not found")
	ErrNotConfigured = errors.New("isbndb: api key not configured")
	ErrInvalidInput  = errors.New("isbndb: invalid input")
)

// UpstreamError is returned for any non-2xx response other than 404.
type UpstreamError struct {
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("isbndb: upstream returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("isbndb: upstream returned status %d: %s", e.StatusCode, e.Body)
}

// Error wraps an underlying error with operation context.
type Error struct {
	Op  string // Operation: "lookupBook", "searchBooks", "getAuthor", ...
	Key string // ISBN, name or query, if applicable
	Err error
}

func (e *Error) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("isbndb %s [%s]: %v", e.Op, e.Key, e.Err)
	}
	return fmt.Sprintf("isbndb %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// wrapError creates an Error with context.
func wrapError(op, key string, err error) error {
	return &Error{
		Op:  op,
		Key: key,
		Err: err,
	}
}

// IsTransient reports whether err may succeed on a later attempt.
// Not-found, configuration and input errors never will.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	return !errors.Is(err, ErrNotFound) &&
		!errors.Is(err, ErrNotConfigured) &&
		!errors.Is(err, ErrInvalidInput)
}

// StatusCode extracts the upstream HTTP status from err, or 0.
func StatusCode(err error) int {
	var upstream *UpstreamError
	if errors.As(err, &upstream) {
		return upstream.StatusCode
	}
	return 0
}

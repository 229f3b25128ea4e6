package lookup

import (
	"time"

	"github.com/openshelf/openshelf-server/internal/isbndb"
)

// Kind selects the upstream operation an item runs.
type Kind string

const (
	KindBook      Kind = "book"
	KindAuthor    Kind = "author"
	KindPublisher Kind = "publisher"
)

// Priority orders waiting items. High is always served before Low.
type Priority string

const (
	PriorityHigh Priority = "high"
	PriorityLow  Priority = "low"
)

// Payload carries the operation input: ISBN for books, Name otherwise.
type Payload struct {
	ISBN string `json:"isbn,omitempty"`
	Name string `json:"name,omitempty"`
}

// key returns the value the item looks up, for logging.
func (p Payload) key() string {
	if p.ISBN != "" {
		return p.ISBN
	}
	return p.Name
}

// ItemInfo is a read-only snapshot of a queue item.
type ItemInfo struct {
	ID         string    `json:"id"`
	Kind       Kind      `json:"kind"`
	Payload    Payload   `json:"payload"`
	Priority   Priority  `json:"priority"`
	RetryCount int       `json:"retry_count"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// Result is the outcome of a completed item. Exactly one of Book, Author
// and Publisher is set unless NotFound is true.
type Result struct {
	ItemID     string                   `json:"item_id"`
	Kind       Kind                     `json:"kind"`
	Book       *isbndb.Book             `json:"book,omitempty"`
	Author     *isbndb.AuthorDetails    `json:"author,omitempty"`
	Publisher  *isbndb.PublisherDetails `json:"publisher,omitempty"`
	NotFound   bool                     `json:"not_found,omitempty"`
	RetryCount int                      `json:"retry_count"`
}

// item is a unit of deferred work. Mutable fields are owned by the worker
// while the item is in flight and by the queue lock otherwise.
type item struct {
	id         string
	kind       Kind
	payload    Payload
	priority   Priority
	retryCount int
	enqueuedAt time.Time
	lastErr    error
	complete   func(Result, error)
}

func (it *item) info() ItemInfo {
	return ItemInfo{
		ID:         it.id,
		Kind:       it.kind,
		Payload:    it.payload,
		Priority:   it.priority,
		RetryCount: it.retryCount,
		EnqueuedAt: it.enqueuedAt,
	}
}

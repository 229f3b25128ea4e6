package domain

import "time"

// CacheStats counts the rows held by the local metadata mirror.
type CacheStats struct {
	TotalBooks      int        `json:"total_books"`
	TotalAuthors    int        `json:"total_authors"`
	TotalPublishers int        `json:"total_publishers"`
	LastUpdated     *time.Time `json:"last_updated,omitempty"`
}

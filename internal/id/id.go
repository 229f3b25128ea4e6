// Package id generates prefixed identifiers for in-memory entities.
package id

import (
	"fmt"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// Prefixes for the entity kinds that carry a NanoID.
const (
	PrefixLookup = "lk"
)

// Generate creates a prefixed unique ID using NanoID.
// Format: prefix-nanoid (e.g., "lk-V1StGXR8_Z5jdHi6B-myT").
func Generate(prefix string) (string, error) {
	id, err := gonanoid.New()
	if err != nil {
		return "", fmt.Errorf("generate nanoid: %w", err)
	}
	return prefix + "-" + id, nil
}

// NewLookupID returns an identifier for a queued lookup.
func NewLookupID() (string, error) {
	return Generate(PrefixLookup)
}

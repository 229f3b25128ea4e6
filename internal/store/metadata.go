package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
)

const responsePrefix = "isbndb:search:"

// ErrUndecodable marks a cached entry that no longer decodes, such as one
// written by an older payload shape.
var ErrUndecodable = errors.New("cached response cannot be decoded")

// CachedResponse wraps an upstream payload with cache info.
type CachedResponse struct {
	Key       string          `json:"key"`
	FetchedAt time.Time       `json:"fetched_at"`
	Payload   json.RawMessage `json:"payload"`
}

// ResponseKey derives a cache key from the parts that identify a request.
func ResponseKey(parts ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(parts, "\x00")))
	return hex.EncodeToString(sum[:])
}

// GetResponse decodes a cached payload into out.
// Returns false, nil on a miss or an expired entry.
func (c *Cache) GetResponse(ctx context.Context, key string, out any) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	var cached CachedResponse
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(responsePrefix + key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			if err := json.Unmarshal(val, &cached); err != nil {
				return fmt.Errorf("%w: %w", ErrUndecodable, err)
			}
			return nil
		})
	})

	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get cached response: %w", err)
	}

	// Badger expiry has second granularity.
	if c.now().Sub(cached.FetchedAt) > c.ttl {
		return false, nil
	}

	if err := json.Unmarshal(cached.Payload, out); err != nil {
		return false, fmt.Errorf("decode cached response: %w: %w", ErrUndecodable, err)
	}
	return true, nil
}

// SetResponse stores value under key with the cache TTL.
func (c *Cache) SetResponse(ctx context.Context, key string, value any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal response: %w", err)
	}

	data, err := json.Marshal(CachedResponse{
		Key:       key,
		FetchedAt: c.now(),
		Payload:   payload,
	})
	if err != nil {
		return fmt.Errorf("marshal cached response: %w", err)
	}

	return c.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(badger.NewEntry([]byte(responsePrefix+key), data).WithTTL(c.ttl))
	})
}

// DeleteResponse removes a cached response. Deleting a missing key is not an error.
func (c *Cache) DeleteResponse(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return c.db.Update(func(txn *badger.Txn) error {
		err := txn.Delete([]byte(responsePrefix + key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		return err
	})
}

// CountResponses returns the number of live cached responses.
func (c *Cache) CountResponses(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	count := 0
	err := c.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(responsePrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			count++
		}
		return nil
	})
	return count, err
}

// PurgeResponses drops every cached response.
func (c *Cache) PurgeResponses(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.db.DropPrefix([]byte(responsePrefix))
}

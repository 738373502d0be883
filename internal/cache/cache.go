// Package cache stores rendered search results keyed by catalogue version and filters.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/octobees/provider-directory/internal/dto"
)

// ErrMiss is returned by Get when the key is not cached.
var ErrMiss = errors.New("cache miss")

const searchKeyPrefix = "directory:search:"

// Cache is the byte-level store used by the directory service.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// SearchKey derives the cache key for a normalised filter set. The catalogue
// version is part of the key so a reload never serves results of an older snapshot.
func SearchKey(catalogVersion string, filters dto.SearchFilters) (string, error) {
	canonical, err := json.Marshal(filters.Normalize())
	if err != nil {
		return "", fmt.Errorf("encode filters: %w", err)
	}
	sum := sha256.Sum256(canonical)
	return searchKeyPrefix + catalogVersion + ":" + hex.EncodeToString(sum[:]), nil
}

// Noop never stores anything. It is used when no Redis address is configured.
type Noop struct{}

// Get always reports a miss.
func (Noop) Get(context.Context, string) ([]byte, error) { return nil, ErrMiss }

// Set discards the value.
func (Noop) Set(context.Context, string, []byte, time.Duration) error { return nil }

// Delete has nothing to remove.
func (Noop) Delete(context.Context, ...string) error { return nil }

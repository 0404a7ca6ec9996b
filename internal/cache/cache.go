// Package cache provides the cache-aside layer used by read endpoints.
// Cached payloads are grouped under resource tags so that a write can
// invalidate every read whose data it may have staled.
package cache

import (
	"context"
	"time"
)

// Tag groups cached payloads by the resource collection they were built from.
type Tag string

const (
	// TagClasses covers class listings and class detail payloads.
	TagClasses Tag = "classes"
	// TagInstructors covers instructor listings.
	TagInstructors Tag = "instructors"
	// TagRooms covers room listings.
	TagRooms Tag = "rooms"
)

// Invalidator is the write-path surface: drop every payload under the given
// tags. Callers invoke it strictly after a successful persist.
type Invalidator interface {
	Invalidate(ctx context.Context, tags ...Tag) error
}

// Store is the full cache-aside surface used by read-through endpoints.
type Store interface {
	Invalidator

	// Get returns the cached payload for the key, reporting whether it exists.
	Get(ctx context.Context, tag Tag, key string) ([]byte, bool, error)
	// Set stores a payload under the tag with the provided TTL.
	Set(ctx context.Context, tag Tag, key string, payload []byte, ttl time.Duration) error
}

// Noop is a Store that caches nothing. It stands in when no Redis address is
// configured, so callers never branch on cache availability.
type Noop struct{}

// Get always misses.
func (Noop) Get(context.Context, Tag, string) ([]byte, bool, error) { return nil, false, nil }

// Set discards the payload.
func (Noop) Set(context.Context, Tag, string, []byte, time.Duration) error { return nil }

// Invalidate does nothing.
func (Noop) Invalidate(context.Context, ...Tag) error { return nil }

// Package keyvalue is the key-value capability behind the catalog: string
// keys with byte values plus unordered string sets. The production binding
// is Redis; an in-memory store backs tests and local development.
package keyvalue

import (
	"context"
	"errors"
	"time"
)

// ErrNoSuchKey is returned by Get for keys that have never been set.
var ErrNoSuchKey = errors.New("no such key")

// Store is the persistence surface the catalog consumes. All operations are
// idempotent; there are no transactions.
type Store interface {
	// Get returns the value at key, or ErrNoSuchKey.
	Get(ctx context.Context, key string) ([]byte, error)
	// Set writes value at key. A zero ttl means no expiry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// SetAdd adds member to the set at key, creating the set if needed.
	SetAdd(ctx context.Context, key, member string) error
	// SetMembers returns the members of the set at key; an absent set is an
	// empty slice, not an error.
	SetMembers(ctx context.Context, key string) ([]string, error)
	// Ping probes the backing store for readiness.
	Ping(ctx context.Context) error
}

// Package cache provides the shared key/value store used as the token cache
// and as the cross-process lock primitive. The Redis implementation backs
// production deployments; the in-memory implementation backs tests and
// single-instance development.
package cache

import (
	"context"
	"time"
)

// Store is the shared cache store port. It is the only cross-process shared
// resource in the system; all token and lock state lives behind it.
type Store interface {
	// Get returns the value for key. The bool is false when the key is
	// absent or expired.
	Get(ctx context.Context, key string) (string, bool, error)

	// Set stores value under key with the given TTL.
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// SetNX stores value only if the key is absent, atomically. Returns
	// true when the value was stored. This is the lock primitive.
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)

	// Delete removes the key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
}

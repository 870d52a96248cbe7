package gateway

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// TokenRecord is a bearer token minted for one contract. Records are
// immutable: renewal stores a new record, it never mutates the old one.
type TokenRecord struct {
	Token     string    `json:"token"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Valid reports whether the token is still usable at the given instant.
func (r TokenRecord) Valid(now time.Time) bool {
	return r.Token != "" && now.Before(r.ExpiresAt)
}

// Remaining returns the time left before expiry, floored at zero.
func (r TokenRecord) Remaining(now time.Time) time.Duration {
	if d := r.ExpiresAt.Sub(now); d > 0 {
		return d
	}
	return 0
}

// TokenManager owns the bearer token lifecycle for each contract.
type TokenManager interface {
	// Token returns a valid bearer token for the contract, minting a new
	// one if necessary. forceRefresh discards any cached token first.
	Token(ctx context.Context, contractID uuid.UUID, forceRefresh bool) (string, error)

	// Status returns the cached token record without minting a new one.
	// The bool is false when no record is cached.
	Status(ctx context.Context, contractID uuid.UUID) (TokenRecord, bool, error)

	// Invalidate removes the cached token and any stale refresh lock.
	Invalidate(ctx context.Context, contractID uuid.UUID) error
}

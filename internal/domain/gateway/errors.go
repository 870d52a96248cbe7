package gateway

import "errors"

var (
	// Authentication errors
	ErrAuthFailed             = errors.New("gateway: authentication failed")
	ErrAuthServiceUnavailable = errors.New("gateway: authentication service temporarily unavailable")
	ErrLockTimeout            = errors.New("gateway: timed out waiting for token refresh lock")
	ErrSessionExpired         = errors.New("gateway: session expired")

	// Request errors
	ErrUpstreamUnavailable = errors.New("gateway: remote service temporarily unavailable")
	ErrRequestFailed       = errors.New("gateway: remote request failed")
	ErrInvalidEnvelope     = errors.New("gateway: invalid response envelope")

	// Configuration errors
	ErrNoActiveContract = errors.New("gateway: no active contract configured")
)

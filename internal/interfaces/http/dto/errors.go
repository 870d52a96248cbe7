package dto

import "net/http"

// Error code constants organized by category
// Format: ERR_<CATEGORY>_<DESCRIPTION>

// General error codes
const (
	ErrCodeUnknown  = "ERR_UNKNOWN"
	ErrCodeInternal = "ERR_INTERNAL"
)

// Input error codes
const (
	ErrCodeBadRequest   = "ERR_BAD_REQUEST"
	ErrCodeInvalidInput = "ERR_INVALID_INPUT"
)

// Authentication error codes for the admin surface
const (
	ErrCodeUnauthorized = "ERR_UNAUTHORIZED"
	ErrCodeForbidden    = "ERR_FORBIDDEN"
	ErrCodeTokenExpired = "ERR_TOKEN_EXPIRED"
	ErrCodeTokenInvalid = "ERR_TOKEN_INVALID"
)

// Resource error codes
const (
	ErrCodeNotFound = "ERR_NOT_FOUND"
	ErrCodeConflict = "ERR_CONFLICT"
)

// Remote gateway error codes. These surface the upstream failure modes to
// API consumers without leaking transport detail.
const (
	// ErrCodeNoActiveContract is used when no contract is active
	ErrCodeNoActiveContract = "ERR_NO_ACTIVE_CONTRACT"
	// ErrCodeRemoteAuthFailed is used when the remote rejects the credentials
	ErrCodeRemoteAuthFailed = "ERR_REMOTE_AUTH_FAILED"
	// ErrCodeRemoteAuthUnavailable is used when authentication cannot complete
	ErrCodeRemoteAuthUnavailable = "ERR_REMOTE_AUTH_UNAVAILABLE"
	// ErrCodeRemoteLockTimeout is used when a token refresh lock never frees
	ErrCodeRemoteLockTimeout = "ERR_REMOTE_LOCK_TIMEOUT"
	// ErrCodeRemoteSessionExpired is used when a forced refresh still yields 401/403
	ErrCodeRemoteSessionExpired = "ERR_REMOTE_SESSION_EXPIRED"
	// ErrCodeRemoteUnavailable is used when the remote keeps failing transiently
	ErrCodeRemoteUnavailable = "ERR_REMOTE_UNAVAILABLE"
	// ErrCodeRemoteRejected is used when the remote rejects the request itself
	ErrCodeRemoteRejected = "ERR_REMOTE_REJECTED"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeUnknown:  http.StatusInternalServerError,
	ErrCodeInternal: http.StatusInternalServerError,

	ErrCodeBadRequest:   http.StatusBadRequest,
	ErrCodeInvalidInput: http.StatusBadRequest,

	ErrCodeUnauthorized: http.StatusUnauthorized,
	ErrCodeForbidden:    http.StatusForbidden,
	ErrCodeTokenExpired: http.StatusUnauthorized,
	ErrCodeTokenInvalid: http.StatusUnauthorized,

	ErrCodeNotFound: http.StatusNotFound,
	ErrCodeConflict: http.StatusConflict,

	ErrCodeNoActiveContract:      http.StatusPreconditionFailed,
	ErrCodeRemoteAuthFailed:      http.StatusBadGateway,
	ErrCodeRemoteAuthUnavailable: http.StatusBadGateway,
	ErrCodeRemoteLockTimeout:     http.StatusServiceUnavailable,
	ErrCodeRemoteSessionExpired:  http.StatusBadGateway,
	ErrCodeRemoteUnavailable:     http.StatusBadGateway,
	ErrCodeRemoteRejected:        http.StatusUnprocessableEntity,
}

// GetHTTPStatus returns the HTTP status for an error code, defaulting to 500
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

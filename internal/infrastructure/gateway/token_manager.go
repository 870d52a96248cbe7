package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/erp/gateway/internal/domain/contract"
	"github.com/erp/gateway/internal/domain/gateway"
	"github.com/erp/gateway/internal/infrastructure/cache"
)

const (
	tokenKeyPrefix = "token:"
	lockKeyPrefix  = "token:lock:"
)

// TokenOptions holds the token lifecycle policy.
type TokenOptions struct {
	LoginURL         string
	TokenTTL         time.Duration // validity window of a minted token
	LockTTL          time.Duration // refresh lock TTL in the cache store
	LockWaitBudget   time.Duration // max time to wait for a held lock
	LockPollInterval time.Duration
	LoginTimeout     time.Duration
	MaxRetries       int // login attempts on transient failure
	RetryDelay       time.Duration
}

// TokenManager implements gateway.TokenManager over a shared cache store.
// Concurrency is two-tier: a singleflight group collapses concurrent
// refreshes within the process, and a SetNX lock in the cache store bounds
// duplication across processes to the lock TTL window.
type TokenManager struct {
	store      cache.Store
	contracts  contract.Repository
	httpClient *http.Client
	opts       TokenOptions
	logger     *zap.Logger
	now        func() time.Time
	group      singleflight.Group
}

// NewTokenManager creates a token manager. The zero fields of opts fall
// back to the documented policy defaults.
func NewTokenManager(store cache.Store, contracts contract.Repository, opts TokenOptions, logger *zap.Logger) *TokenManager {
	if opts.TokenTTL == 0 {
		opts.TokenTTL = 20 * time.Minute
	}
	if opts.LockTTL == 0 {
		opts.LockTTL = 30 * time.Second
	}
	if opts.LockWaitBudget == 0 {
		opts.LockWaitBudget = 25 * time.Second
	}
	if opts.LockPollInterval == 0 {
		opts.LockPollInterval = 500 * time.Millisecond
	}
	if opts.LoginTimeout == 0 {
		opts.LoginTimeout = 10 * time.Second
	}
	if opts.MaxRetries == 0 {
		opts.MaxRetries = 3
	}
	if opts.RetryDelay == 0 {
		opts.RetryDelay = time.Second
	}
	return &TokenManager{
		store:      store,
		contracts:  contracts,
		httpClient: &http.Client{Timeout: opts.LoginTimeout},
		opts:       opts,
		logger:     logger.Named("token"),
		now:        time.Now,
	}
}

// WithClock replaces the manager's clock. For tests.
func (m *TokenManager) WithClock(now func() time.Time) *TokenManager {
	m.now = now
	return m
}

func tokenKey(id uuid.UUID) string { return tokenKeyPrefix + id.String() }
func lockKey(id uuid.UUID) string  { return lockKeyPrefix + id.String() }

// Token returns a valid bearer token for the contract. The cached-token
// path makes no network call; a refresh is coordinated so at most one
// authentication round-trip is in flight per contract.
func (m *TokenManager) Token(ctx context.Context, contractID uuid.UUID, forceRefresh bool) (string, error) {
	if forceRefresh {
		if err := m.store.Delete(ctx, tokenKey(contractID)); err != nil {
			return "", err
		}
		m.logger.Info("forcing token refresh", zap.String("contract_id", contractID.String()))
	} else {
		if rec, ok, err := m.cachedToken(ctx, contractID); err != nil {
			return "", err
		} else if ok {
			return rec.Token, nil
		}
	}

	// In-process single-flight: concurrent callers for the same contract
	// share one refresh result.
	v, err, _ := m.group.Do(contractID.String(), func() (any, error) {
		return m.refresh(ctx, contractID)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// Status returns the cached token record without minting a new one.
func (m *TokenManager) Status(ctx context.Context, contractID uuid.UUID) (gateway.TokenRecord, bool, error) {
	raw, ok, err := m.store.Get(ctx, tokenKey(contractID))
	if err != nil || !ok {
		return gateway.TokenRecord{}, false, err
	}
	var rec gateway.TokenRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return gateway.TokenRecord{}, false, nil
	}
	return rec, true, nil
}

// Invalidate unconditionally deletes the cached token and any stale lock.
func (m *TokenManager) Invalidate(ctx context.Context, contractID uuid.UUID) error {
	if err := m.store.Delete(ctx, tokenKey(contractID)); err != nil {
		return err
	}
	return m.store.Delete(ctx, lockKey(contractID))
}

func (m *TokenManager) cachedToken(ctx context.Context, contractID uuid.UUID) (gateway.TokenRecord, bool, error) {
	rec, ok, err := m.Status(ctx, contractID)
	if err != nil || !ok {
		return gateway.TokenRecord{}, false, err
	}
	if !rec.Valid(m.now()) {
		return gateway.TokenRecord{}, false, nil
	}
	return rec, true, nil
}

// refresh acquires the cross-process lock and performs one authentication
// round-trip. The lock is released on every exit path; a crashed holder is
// bounded by the lock TTL.
func (m *TokenManager) refresh(ctx context.Context, contractID uuid.UUID) (string, error) {
	// Another process may have refreshed between the caller's cache miss
	// and this point.
	if rec, ok, err := m.cachedToken(ctx, contractID); err != nil {
		return "", err
	} else if ok {
		return rec.Token, nil
	}

	if tok, acquired, err := m.acquireLock(ctx, contractID); err != nil {
		return "", err
	} else if !acquired {
		// A fresh token appeared while waiting for the lock.
		return tok, nil
	}
	defer func() {
		if err := m.store.Delete(ctx, lockKey(contractID)); err != nil {
			m.logger.Warn("failed to release refresh lock",
				zap.String("contract_id", contractID.String()), zap.Error(err))
		}
	}()

	c, err := m.contracts.GetByID(ctx, contractID)
	if err != nil {
		if errors.Is(err, contract.ErrNotFound) {
			return "", fmt.Errorf("%w: unknown contract %s", gateway.ErrAuthFailed, contractID)
		}
		return "", err
	}

	token, err := m.login(ctx, c)
	if err != nil {
		if errors.Is(err, gateway.ErrAuthFailed) {
			// Clear any stale token so the next caller re-authenticates.
			_ = m.store.Delete(ctx, tokenKey(contractID))
		}
		return "", err
	}

	now := m.now()
	rec := gateway.TokenRecord{
		Token:     token,
		IssuedAt:  now,
		ExpiresAt: now.Add(m.opts.TokenTTL),
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		return "", err
	}
	if err := m.store.Set(ctx, tokenKey(contractID), string(payload), m.opts.TokenTTL); err != nil {
		return "", err
	}

	m.logger.Info("token refreshed",
		zap.String("contract_id", contractID.String()),
		zap.Time("expires_at", rec.ExpiresAt))
	return token, nil
}

// acquireLock polls SetNX up to the wait budget, re-checking the token
// cache on every poll: another process may complete the refresh while this
// one waits. Returns (token, false, nil) when a fresh token appeared and
// ("", true, nil) when the lock was acquired.
func (m *TokenManager) acquireLock(ctx context.Context, contractID uuid.UUID) (string, bool, error) {
	owner := uuid.NewString()
	deadline := m.now().Add(m.opts.LockWaitBudget)

	for {
		acquired, err := m.store.SetNX(ctx, lockKey(contractID), owner, m.opts.LockTTL)
		if err != nil {
			return "", false, err
		}
		if acquired {
			return "", true, nil
		}

		if !m.now().Before(deadline) {
			return "", false, gateway.ErrLockTimeout
		}

		select {
		case <-ctx.Done():
			return "", false, ctx.Err()
		case <-time.After(m.opts.LockPollInterval):
		}

		if rec, ok, err := m.cachedToken(ctx, contractID); err != nil {
			return "", false, err
		} else if ok {
			return rec.Token, false, nil
		}
	}
}

type loginResponse struct {
	BearerToken string `json:"bearerToken"`
	Token       string `json:"token"`
	Error       string `json:"error"`
}

// login performs the authentication round-trip with linear backoff on
// transient failures.
func (m *TokenManager) login(ctx context.Context, c *contract.Contract) (string, error) {
	var lastErr error

	for attempt := 1; attempt <= m.opts.MaxRetries; attempt++ {
		token, retryable, err := m.loginOnce(ctx, c)
		if err == nil {
			return token, nil
		}
		if !retryable {
			return "", err
		}
		lastErr = err

		m.logger.Warn("login attempt failed",
			zap.String("contract_id", c.ID.String()),
			zap.Int("attempt", attempt),
			zap.Error(err))

		if attempt < m.opts.MaxRetries {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(m.opts.RetryDelay * time.Duration(attempt)):
			}
		}
	}

	return "", fmt.Errorf("%w: %v", gateway.ErrAuthServiceUnavailable, lastErr)
}

// loginOnce returns retryable=true for transport failures and remote 5xx.
func (m *TokenManager) loginOnce(ctx context.Context, c *contract.Contract) (string, bool, error) {
	reqCtx, cancel := context.WithTimeout(ctx, m.opts.LoginTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, m.opts.LoginURL, nil)
	if err != nil {
		return "", false, fmt.Errorf("%w: %v", gateway.ErrAuthFailed, err)
	}
	req.Header.Set("token", c.Credentials.APIToken)
	req.Header.Set("appkey", c.Credentials.AppKey)
	req.Header.Set("username", c.Credentials.Username)
	req.Header.Set("password", c.Credentials.Password)

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return "", true, fmt.Errorf("login transport failure: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", true, fmt.Errorf("login read failure: %w", err)
	}

	if resp.StatusCode >= 500 {
		return "", true, fmt.Errorf("login HTTP %d", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return "", false, fmt.Errorf("%w: HTTP %d", gateway.ErrAuthFailed, resp.StatusCode)
	}

	var lr loginResponse
	if err := json.Unmarshal(body, &lr); err != nil {
		return "", false, fmt.Errorf("%w: malformed login response", gateway.ErrAuthFailed)
	}

	// The remote answers with one of two accepted token field names.
	token := lr.BearerToken
	if token == "" {
		token = lr.Token
	}
	if token == "" {
		return "", false, fmt.Errorf("%w: no token in login response", gateway.ErrAuthFailed)
	}

	return token, false, nil
}

// Ensure TokenManager implements the domain port
var _ gateway.TokenManager = (*TokenManager)(nil)

package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/erp/gateway/internal/domain/contract"
	"github.com/erp/gateway/internal/domain/gateway"
)

// ClientOptions holds the request executor policy.
type ClientOptions struct {
	QueryURL    string
	SaveURL     string
	CallTimeout time.Duration
	MaxRetries  int // extra attempts after the first on transient failure
	RetryDelay  time.Duration
}

// Client executes authenticated calls against the remote ERP service.
// Each call resolves a bearer token through the token manager, so the
// hot path never re-authenticates; on a 401/403 it invalidates the token
// and retries once with a forced refresh.
type Client struct {
	tokens     gateway.TokenManager
	contracts  contract.Repository
	httpClient *http.Client
	opts       ClientOptions
	observer   gateway.RequestObserver
	logger     *zap.Logger
}

// NewClient creates a request executor. A nil observer disables request
// telemetry.
func NewClient(tokens gateway.TokenManager, contracts contract.Repository, opts ClientOptions, observer gateway.RequestObserver, logger *zap.Logger) *Client {
	if opts.CallTimeout == 0 {
		opts.CallTimeout = 15 * time.Second
	}
	if opts.MaxRetries == 0 {
		opts.MaxRetries = 2
	}
	if opts.RetryDelay == 0 {
		opts.RetryDelay = time.Second
	}
	if observer == nil {
		observer = gateway.NopObserver{}
	}
	return &Client{
		tokens:     tokens,
		contracts:  contracts,
		httpClient: &http.Client{Timeout: opts.CallTimeout},
		opts:       opts,
		observer:   observer,
		logger:     logger.Named("client"),
	}
}

// Query runs a dataset query for the single active contract.
func (c *Client) Query(ctx context.Context, spec QuerySpec) ([]gateway.Record, int, error) {
	active, err := c.contracts.GetActive(ctx)
	if err != nil {
		if errors.Is(err, contract.ErrNotFound) {
			return nil, 0, gateway.ErrNoActiveContract
		}
		return nil, 0, err
	}
	return c.QueryForContract(ctx, active.ID, spec)
}

// QueryForContract runs a dataset query for a specific contract.
func (c *Client) QueryForContract(ctx context.Context, contractID uuid.UUID, spec QuerySpec) ([]gateway.Record, int, error) {
	payload, err := json.Marshal(BuildQuery(spec))
	if err != nil {
		return nil, 0, err
	}
	body, err := c.call(ctx, contractID, c.opts.QueryURL, payload)
	if err != nil {
		return nil, 0, err
	}
	return DecodeRecords(body)
}

// Save submits a dataset save for a specific contract and returns the raw
// response body.
func (c *Client) Save(ctx context.Context, contractID uuid.UUID, entityName string, fields []string, records []SaveRecord) ([]byte, error) {
	payload, err := json.Marshal(BuildSave(entityName, fields, records))
	if err != nil {
		return nil, err
	}
	return c.call(ctx, contractID, c.opts.SaveURL, payload)
}

// call performs one authenticated POST with the retry policy: 401/403
// triggers exactly one forced token refresh, transient failures get up to
// MaxRetries extra attempts with linear backoff.
func (c *Client) call(ctx context.Context, contractID uuid.UUID, endpoint string, payload []byte) ([]byte, error) {
	var (
		authRetried bool
		lastErr     error
	)

	for attempt := 0; attempt <= c.opts.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.opts.RetryDelay * time.Duration(attempt)):
			}
		}

		token, err := c.tokens.Token(ctx, contractID, false)
		if err != nil {
			return nil, err
		}

		body, status, err := c.post(ctx, endpoint, token, payload)
		if err != nil {
			lastErr = err
			c.logger.Warn("request transport failure",
				zap.String("contract_id", contractID.String()),
				zap.Int("attempt", attempt+1),
				zap.Error(err))
			continue
		}

		switch {
		case status == http.StatusOK:
			return body, nil

		case status == http.StatusUnauthorized || status == http.StatusForbidden:
			if authRetried {
				return nil, fmt.Errorf("%w: HTTP %d after forced refresh", gateway.ErrSessionExpired, status)
			}
			authRetried = true
			if err := c.tokens.Invalidate(ctx, contractID); err != nil {
				return nil, err
			}
			if _, err := c.tokens.Token(ctx, contractID, true); err != nil {
				return nil, err
			}
			// The auth retry does not consume a transient-retry slot.
			attempt--

		case status >= 500:
			lastErr = fmt.Errorf("HTTP %d", status)
			c.logger.Warn("remote server error",
				zap.String("contract_id", contractID.String()),
				zap.Int("status", status),
				zap.Int("attempt", attempt+1))

		default:
			return nil, fmt.Errorf("%w: HTTP %d: %s", gateway.ErrRequestFailed, status, statusMessage(body))
		}
	}

	return nil, fmt.Errorf("%w: %v", gateway.ErrUpstreamUnavailable, lastErr)
}

func (c *Client) post(ctx context.Context, endpoint, token string, payload []byte) ([]byte, int, error) {
	reqCtx, cancel := context.WithTimeout(ctx, c.opts.CallTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	duration := time.Since(start)

	if err != nil {
		c.emit(gateway.RequestEvent{
			Method:   http.MethodPost,
			URL:      redactURL(endpoint),
			Duration: duration,
			Err:      err,
		})
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))

	c.emit(gateway.RequestEvent{
		Method:   http.MethodPost,
		URL:      redactURL(endpoint),
		Status:   resp.StatusCode,
		Duration: duration,
		Err:      err,
	})

	if err != nil {
		return nil, 0, err
	}
	return body, resp.StatusCode, nil
}

// emit notifies the observer; a panicking observer must not break the call.
func (c *Client) emit(ev gateway.RequestEvent) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("request observer panicked", zap.Any("panic", r))
		}
	}()
	c.observer.Observe(ev)
}

// statusMessage extracts the remote error description from a non-OK body.
func statusMessage(body []byte) string {
	var env struct {
		StatusMessage string `json:"statusMessage"`
		Error         string `json:"error"`
	}
	if err := json.Unmarshal(body, &env); err == nil {
		if env.StatusMessage != "" {
			return env.StatusMessage
		}
		if env.Error != "" {
			return env.Error
		}
	}
	if len(body) > 200 {
		body = body[:200]
	}
	return string(body)
}

// redactURL strips query parameters before the URL reaches logs.
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	u.RawQuery = ""
	return u.String()
}

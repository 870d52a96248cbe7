package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/erp/gateway/internal/domain/contract"
	"github.com/erp/gateway/internal/domain/gateway"
	"github.com/erp/gateway/internal/infrastructure/cache"
)

type stubContracts struct {
	byID map[uuid.UUID]*contract.Contract
}

func newStubContracts(cs ...*contract.Contract) *stubContracts {
	s := &stubContracts{byID: make(map[uuid.UUID]*contract.Contract)}
	for _, c := range cs {
		s.byID[c.ID] = c
	}
	return s
}

func (s *stubContracts) GetByID(_ context.Context, id uuid.UUID) (*contract.Contract, error) {
	c, ok := s.byID[id]
	if !ok {
		return nil, contract.ErrNotFound
	}
	return c, nil
}

func (s *stubContracts) GetActive(_ context.Context) (*contract.Contract, error) {
	for _, c := range s.byID {
		if c.Active {
			return c, nil
		}
	}
	return nil, contract.ErrNotFound
}

func (s *stubContracts) ListActive(_ context.Context) ([]contract.Contract, error) {
	var out []contract.Contract
	for _, c := range s.byID {
		if c.Active {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (s *stubContracts) List(_ context.Context) ([]contract.Contract, error) {
	var out []contract.Contract
	for _, c := range s.byID {
		out = append(out, *c)
	}
	return out, nil
}

func (s *stubContracts) Save(_ context.Context, c *contract.Contract) error {
	s.byID[c.ID] = c
	return nil
}

func (s *stubContracts) Update(_ context.Context, c *contract.Contract) error {
	s.byID[c.ID] = c
	return nil
}

func testContract(t *testing.T) *contract.Contract {
	t.Helper()
	c, err := contract.New("ACME LTDA", "12345678000190", contract.Credentials{
		APIToken: "api-token",
		AppKey:   "app-key",
		Username: "sync@acme.com",
		Password: "secret",
	}, true)
	require.NoError(t, err)
	return c
}

// loginServer counts login calls and hands out sequential tokens.
func loginServer(t *testing.T, calls *atomic.Int64, tokenField string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		assert.Equal(t, "api-token", r.Header.Get("token"))
		assert.Equal(t, "app-key", r.Header.Get("appkey"))
		assert.Equal(t, "sync@acme.com", r.Header.Get("username"))
		assert.Equal(t, "secret", r.Header.Get("password"))
		json.NewEncoder(w).Encode(map[string]string{
			tokenField: "tok-" + string(rune('0'+n)),
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func fastOpts(loginURL string) TokenOptions {
	return TokenOptions{
		LoginURL:         loginURL,
		TokenTTL:         20 * time.Minute,
		LockTTL:          time.Second,
		LockWaitBudget:   200 * time.Millisecond,
		LockPollInterval: 5 * time.Millisecond,
		RetryDelay:       time.Millisecond,
	}
}

func TestTokenManager_CacheHitMakesNoNetworkCall(t *testing.T) {
	var calls atomic.Int64
	srv := loginServer(t, &calls, "bearerToken")
	c := testContract(t)
	store := cache.NewMemoryStore()
	mgr := NewTokenManager(store, newStubContracts(c), fastOpts(srv.URL), zap.NewNop())

	ctx := context.Background()
	first, err := mgr.Token(ctx, c.ID, false)
	require.NoError(t, err)
	require.EqualValues(t, 1, calls.Load())

	for i := 0; i < 5; i++ {
		tok, err := mgr.Token(ctx, c.ID, false)
		require.NoError(t, err)
		assert.Equal(t, first, tok)
	}
	assert.EqualValues(t, 1, calls.Load())
}

func TestTokenManager_ExpiredTokenTriggersRefresh(t *testing.T) {
	var calls atomic.Int64
	srv := loginServer(t, &calls, "bearerToken")
	c := testContract(t)

	now := time.Now()
	clock := func() time.Time { return now }
	store := cache.NewMemoryStoreWithClock(func() time.Time { return now })
	mgr := NewTokenManager(store, newStubContracts(c), fastOpts(srv.URL), zap.NewNop()).WithClock(clock)

	ctx := context.Background()
	first, err := mgr.Token(ctx, c.ID, false)
	require.NoError(t, err)

	now = now.Add(21 * time.Minute)

	second, err := mgr.Token(ctx, c.ID, false)
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
	assert.EqualValues(t, 2, calls.Load())
}

func TestTokenManager_ForceRefreshBypassesCache(t *testing.T) {
	var calls atomic.Int64
	srv := loginServer(t, &calls, "bearerToken")
	c := testContract(t)
	mgr := NewTokenManager(cache.NewMemoryStore(), newStubContracts(c), fastOpts(srv.URL), zap.NewNop())

	ctx := context.Background()
	first, err := mgr.Token(ctx, c.ID, false)
	require.NoError(t, err)

	second, err := mgr.Token(ctx, c.ID, true)
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
	assert.EqualValues(t, 2, calls.Load())
}

func TestTokenManager_ConcurrentCallersShareOneLogin(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		time.Sleep(30 * time.Millisecond)
		json.NewEncoder(w).Encode(map[string]string{"bearerToken": "tok-shared"})
	}))
	t.Cleanup(srv.Close)

	c := testContract(t)
	mgr := NewTokenManager(cache.NewMemoryStore(), newStubContracts(c), fastOpts(srv.URL), zap.NewNop())

	const n = 16
	tokens := make([]string, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tokens[i], errs[i] = mgr.Token(context.Background(), c.ID, false)
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, "tok-shared", tokens[i])
	}
	assert.EqualValues(t, 1, calls.Load())
}

func TestTokenManager_WaiterPicksUpTokenMintedByLockHolder(t *testing.T) {
	// Two managers over the same store model two processes. The second
	// finds the lock held, polls, and returns the token the first minted
	// without its own login round-trip.
	c := testContract(t)
	store := cache.NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, lockKey(c.ID), "other-process", time.Second))

	var calls atomic.Int64
	srv := loginServer(t, &calls, "bearerToken")
	waiter := NewTokenManager(store, newStubContracts(c), fastOpts(srv.URL), zap.NewNop())

	go func() {
		time.Sleep(20 * time.Millisecond)
		rec := gateway.TokenRecord{
			Token:     "tok-from-holder",
			IssuedAt:  time.Now(),
			ExpiresAt: time.Now().Add(20 * time.Minute),
		}
		payload, _ := json.Marshal(rec)
		store.Set(ctx, tokenKey(c.ID), string(payload), 20*time.Minute)
	}()

	tok, err := waiter.Token(ctx, c.ID, false)
	require.NoError(t, err)
	assert.Equal(t, "tok-from-holder", tok)
	assert.EqualValues(t, 0, calls.Load())
}

func TestTokenManager_LockWaitBudgetExhausted(t *testing.T) {
	c := testContract(t)
	store := cache.NewMemoryStore()
	ctx := context.Background()

	// A holder that never finishes within the wait budget.
	require.NoError(t, store.Set(ctx, lockKey(c.ID), "stuck-process", time.Hour))

	opts := fastOpts("http://127.0.0.1:1/login")
	opts.LockWaitBudget = 30 * time.Millisecond
	mgr := NewTokenManager(store, newStubContracts(c), opts, zap.NewNop())

	_, err := mgr.Token(ctx, c.ID, false)
	assert.ErrorIs(t, err, gateway.ErrLockTimeout)
}

func TestTokenManager_ServerErrorRetriedThenUnavailable(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(srv.Close)

	c := testContract(t)
	mgr := NewTokenManager(cache.NewMemoryStore(), newStubContracts(c), fastOpts(srv.URL), zap.NewNop())

	_, err := mgr.Token(context.Background(), c.ID, false)
	assert.ErrorIs(t, err, gateway.ErrAuthServiceUnavailable)
	assert.EqualValues(t, 3, calls.Load())
}

func TestTokenManager_RejectedCredentialsFailWithoutRetry(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	t.Cleanup(srv.Close)

	c := testContract(t)
	mgr := NewTokenManager(cache.NewMemoryStore(), newStubContracts(c), fastOpts(srv.URL), zap.NewNop())

	_, err := mgr.Token(context.Background(), c.ID, false)
	assert.ErrorIs(t, err, gateway.ErrAuthFailed)
	assert.EqualValues(t, 1, calls.Load())
}

func TestTokenManager_AcceptsAlternateTokenField(t *testing.T) {
	var calls atomic.Int64
	srv := loginServer(t, &calls, "token")
	c := testContract(t)
	mgr := NewTokenManager(cache.NewMemoryStore(), newStubContracts(c), fastOpts(srv.URL), zap.NewNop())

	tok, err := mgr.Token(context.Background(), c.ID, false)
	require.NoError(t, err)
	assert.NotEmpty(t, tok)
}

func TestTokenManager_UnknownContract(t *testing.T) {
	mgr := NewTokenManager(cache.NewMemoryStore(), newStubContracts(), fastOpts("http://127.0.0.1:1/login"), zap.NewNop())

	_, err := mgr.Token(context.Background(), uuid.New(), false)
	assert.ErrorIs(t, err, gateway.ErrAuthFailed)
}

func TestTokenManager_InvalidateRemovesCachedToken(t *testing.T) {
	var calls atomic.Int64
	srv := loginServer(t, &calls, "bearerToken")
	c := testContract(t)
	mgr := NewTokenManager(cache.NewMemoryStore(), newStubContracts(c), fastOpts(srv.URL), zap.NewNop())

	ctx := context.Background()
	_, err := mgr.Token(ctx, c.ID, false)
	require.NoError(t, err)

	_, cached, err := mgr.Status(ctx, c.ID)
	require.NoError(t, err)
	require.True(t, cached)

	require.NoError(t, mgr.Invalidate(ctx, c.ID))

	_, cached, err = mgr.Status(ctx, c.ID)
	require.NoError(t, err)
	assert.False(t, cached)
}

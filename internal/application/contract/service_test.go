package contract

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/erp/gateway/internal/domain/contract"
	"github.com/erp/gateway/internal/domain/gateway"
)

type memoryRepo struct {
	byID map[uuid.UUID]contract.Contract
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{byID: make(map[uuid.UUID]contract.Contract)}
}

func (r *memoryRepo) GetByID(_ context.Context, id uuid.UUID) (*contract.Contract, error) {
	c, ok := r.byID[id]
	if !ok {
		return nil, contract.ErrNotFound
	}
	return &c, nil
}

func (r *memoryRepo) GetActive(_ context.Context) (*contract.Contract, error) {
	for _, c := range r.byID {
		if c.Active {
			c := c
			return &c, nil
		}
	}
	return nil, contract.ErrNotFound
}

func (r *memoryRepo) ListActive(_ context.Context) ([]contract.Contract, error) {
	var out []contract.Contract
	for _, c := range r.byID {
		if c.Active {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r *memoryRepo) List(_ context.Context) ([]contract.Contract, error) {
	var out []contract.Contract
	for _, c := range r.byID {
		out = append(out, c)
	}
	return out, nil
}

func (r *memoryRepo) Save(_ context.Context, c *contract.Contract) error {
	r.byID[c.ID] = *c
	return nil
}

func (r *memoryRepo) Update(_ context.Context, c *contract.Contract) error {
	if _, ok := r.byID[c.ID]; !ok {
		return contract.ErrNotFound
	}
	r.byID[c.ID] = *c
	return nil
}

type spyTokens struct {
	invalidated []uuid.UUID
}

func (s *spyTokens) Token(context.Context, uuid.UUID, bool) (string, error) { return "tok", nil }

func (s *spyTokens) Status(context.Context, uuid.UUID) (gateway.TokenRecord, bool, error) {
	return gateway.TokenRecord{}, false, nil
}

func (s *spyTokens) Invalidate(_ context.Context, id uuid.UUID) error {
	s.invalidated = append(s.invalidated, id)
	return nil
}

func validInput(company string, active bool) CreateInput {
	return CreateInput{
		Company:  company,
		TaxID:    "doc-" + company,
		APIToken: "t",
		AppKey:   "k",
		Username: "u",
		Password: "p",
		Active:   active,
	}
}

func TestService_Create(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, &spyTokens{}, zap.NewNop())

	c, err := svc.Create(context.Background(), validInput("ACME", true))
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, c.ID)

	stored, err := repo.GetByID(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, "ACME", stored.Company)
	assert.True(t, stored.Active)
}

func TestService_CreateRejectsBlankCompany(t *testing.T) {
	svc := NewService(newMemoryRepo(), &spyTokens{}, zap.NewNop())

	in := validInput("ACME", true)
	in.Company = "   "
	_, err := svc.Create(context.Background(), in)
	assert.ErrorIs(t, err, contract.ErrInvalidCompany)
}

func TestService_ActivateDeactivatesOthers(t *testing.T) {
	repo := newMemoryRepo()
	tokens := &spyTokens{}
	svc := NewService(repo, tokens, zap.NewNop())
	ctx := context.Background()

	first, err := svc.Create(ctx, validInput("ACME", true))
	require.NoError(t, err)
	second, err := svc.Create(ctx, validInput("GLOBEX", false))
	require.NoError(t, err)

	_, err = svc.Activate(ctx, second.ID)
	require.NoError(t, err)

	active, err := repo.GetActive(ctx)
	require.NoError(t, err)
	assert.Equal(t, second.ID, active.ID)

	stored, err := repo.GetByID(ctx, first.ID)
	require.NoError(t, err)
	assert.False(t, stored.Active)
}

func TestService_UpdateCredentialsDropsToken(t *testing.T) {
	repo := newMemoryRepo()
	tokens := &spyTokens{}
	svc := NewService(repo, tokens, zap.NewNop())
	ctx := context.Background()

	c, err := svc.Create(ctx, validInput("ACME", true))
	require.NoError(t, err)

	updated, err := svc.UpdateCredentials(ctx, c.ID, UpdateCredentialsInput{
		APIToken: "t2", AppKey: "k2", Username: "u2", Password: "p2",
	})
	require.NoError(t, err)
	assert.Equal(t, "t2", updated.Credentials.APIToken)
	assert.Equal(t, []uuid.UUID{c.ID}, tokens.invalidated)
}

func TestService_DeactivateDropsToken(t *testing.T) {
	repo := newMemoryRepo()
	tokens := &spyTokens{}
	svc := NewService(repo, tokens, zap.NewNop())
	ctx := context.Background()

	c, err := svc.Create(ctx, validInput("ACME", true))
	require.NoError(t, err)

	deactivated, err := svc.Deactivate(ctx, c.ID)
	require.NoError(t, err)
	assert.False(t, deactivated.Active)
	assert.Contains(t, tokens.invalidated, c.ID)
}

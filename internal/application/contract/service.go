// Package contract holds the administrative use cases for tenant
// contracts: registration, credential rotation and activation.
package contract

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/erp/gateway/internal/domain/contract"
	"github.com/erp/gateway/internal/domain/gateway"
)

// Service implements the contract admin use cases.
type Service struct {
	repo   contract.Repository
	tokens gateway.TokenManager
	logger *zap.Logger
}

func NewService(repo contract.Repository, tokens gateway.TokenManager, logger *zap.Logger) *Service {
	return &Service{repo: repo, tokens: tokens, logger: logger.Named("contract")}
}

// CreateInput is one contract registration.
type CreateInput struct {
	Company  string `json:"company" binding:"required"`
	TaxID    string `json:"tax_id" binding:"required"`
	APIToken string `json:"api_token" binding:"required"`
	AppKey   string `json:"app_key" binding:"required"`
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
	Active   bool   `json:"active"`
}

// Create registers a new contract.
func (s *Service) Create(ctx context.Context, in CreateInput) (*contract.Contract, error) {
	c, err := contract.New(in.Company, in.TaxID, contract.Credentials{
		APIToken: in.APIToken,
		AppKey:   in.AppKey,
		Username: in.Username,
		Password: in.Password,
	}, in.Active)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Save(ctx, c); err != nil {
		return nil, err
	}
	s.logger.Info("contract created",
		zap.String("contract_id", c.ID.String()),
		zap.String("company", c.Company))
	return c, nil
}

// Get returns one contract.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*contract.Contract, error) {
	return s.repo.GetByID(ctx, id)
}

// List returns all contracts.
func (s *Service) List(ctx context.Context) ([]contract.Contract, error) {
	return s.repo.List(ctx)
}

// UpdateCredentialsInput rotates a contract's remote credential material.
type UpdateCredentialsInput struct {
	APIToken string `json:"api_token" binding:"required"`
	AppKey   string `json:"app_key" binding:"required"`
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// UpdateCredentials replaces the credential material and drops the cached
// token, which was minted with the old credentials.
func (s *Service) UpdateCredentials(ctx context.Context, id uuid.UUID, in UpdateCredentialsInput) (*contract.Contract, error) {
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	c.Credentials = contract.Credentials{
		APIToken: in.APIToken,
		AppKey:   in.AppKey,
		Username: in.Username,
		Password: in.Password,
	}
	if err := s.repo.Update(ctx, c); err != nil {
		return nil, err
	}
	if err := s.tokens.Invalidate(ctx, c.ID); err != nil {
		s.logger.Warn("failed to drop token after credential rotation",
			zap.String("contract_id", c.ID.String()), zap.Error(err))
	}
	s.logger.Info("contract credentials rotated", zap.String("contract_id", c.ID.String()))
	return c, nil
}

// Activate makes the contract the single active one, deactivating any
// other active contract.
func (s *Service) Activate(ctx context.Context, id uuid.UUID) (*contract.Contract, error) {
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	actives, err := s.repo.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	for i := range actives {
		if actives[i].ID == id {
			continue
		}
		actives[i].Active = false
		if err := s.repo.Update(ctx, &actives[i]); err != nil {
			return nil, err
		}
	}

	c.Active = true
	if err := s.repo.Update(ctx, c); err != nil {
		return nil, err
	}
	s.logger.Info("contract activated",
		zap.String("contract_id", c.ID.String()),
		zap.String("company", c.Company))
	return c, nil
}

// Deactivate turns the contract off without touching others.
func (s *Service) Deactivate(ctx context.Context, id uuid.UUID) (*contract.Contract, error) {
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	c.Active = false
	if err := s.repo.Update(ctx, c); err != nil {
		return nil, err
	}
	if err := s.tokens.Invalidate(ctx, c.ID); err != nil {
		s.logger.Warn("failed to drop token after deactivation",
			zap.String("contract_id", c.ID.String()), zap.Error(err))
	}
	return c, nil
}

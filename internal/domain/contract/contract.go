// Package contract contains the tenant contract bounded context. A contract
// holds the remote-service identity material for one tenant company and is
// the unit of isolation for token caching and partner reconciliation.
package contract

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound       = errors.New("contract: not found")
	ErrInvalidCompany = errors.New("contract: company name is required")
	ErrInvalidTaxID   = errors.New("contract: tax id is required")
)

// Credentials is the remote-service identity material for a contract.
// All four values are opaque to this system.
type Credentials struct {
	APIToken string
	AppKey   string
	Username string
	Password string
}

// Contract is a tenant contract with the remote ERP service.
type Contract struct {
	ID          uuid.UUID
	Company     string
	TaxID       string
	Credentials Credentials
	Active      bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// New creates a contract after validating the required fields.
func New(company, taxID string, creds Credentials, active bool) (*Contract, error) {
	company = strings.TrimSpace(company)
	taxID = strings.TrimSpace(taxID)
	if company == "" {
		return nil, ErrInvalidCompany
	}
	if taxID == "" {
		return nil, ErrInvalidTaxID
	}
	return &Contract{
		ID:          uuid.New(),
		Company:     company,
		TaxID:       taxID,
		Credentials: creds,
		Active:      active,
	}, nil
}

// Repository is the persistence port for contracts. The token manager and
// the reconciliation engine depend on this interface rather than reaching
// into the storage layer directly.
type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Contract, error)

	// GetActive returns the single currently-active contract, or
	// ErrNotFound when none exists.
	GetActive(ctx context.Context) (*Contract, error)

	// ListActive returns all active contracts ordered by company name.
	ListActive(ctx context.Context) ([]Contract, error)

	List(ctx context.Context) ([]Contract, error)
	Save(ctx context.Context, c *Contract) error
	Update(ctx context.Context, c *Contract) error
}

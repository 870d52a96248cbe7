package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/erp/gateway/internal/domain/contract"
	"github.com/erp/gateway/internal/infrastructure/persistence/models"
)

// GormContractRepository implements contract.Repository using GORM
type GormContractRepository struct {
	db *gorm.DB
}

// NewGormContractRepository creates a new GormContractRepository
func NewGormContractRepository(db *gorm.DB) *GormContractRepository {
	return &GormContractRepository{db: db}
}

// GetByID finds a contract by its ID
func (r *GormContractRepository) GetByID(ctx context.Context, id uuid.UUID) (*contract.Contract, error) {
	var m models.ContractModel
	if err := r.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, contract.ErrNotFound
		}
		return nil, err
	}
	return m.ToDomain(), nil
}

// GetActive returns the single active contract
func (r *GormContractRepository) GetActive(ctx context.Context) (*contract.Contract, error) {
	var m models.ContractModel
	if err := r.db.WithContext(ctx).
		Where("active = ?", true).
		Order("updated_at DESC").
		First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, contract.ErrNotFound
		}
		return nil, err
	}
	return m.ToDomain(), nil
}

// ListActive returns all active contracts ordered by company name
func (r *GormContractRepository) ListActive(ctx context.Context) ([]contract.Contract, error) {
	var ms []models.ContractModel
	if err := r.db.WithContext(ctx).
		Where("active = ?", true).
		Order("company ASC").
		Find(&ms).Error; err != nil {
		return nil, err
	}
	return toDomainContracts(ms), nil
}

// List returns all contracts ordered by company name
func (r *GormContractRepository) List(ctx context.Context) ([]contract.Contract, error) {
	var ms []models.ContractModel
	if err := r.db.WithContext(ctx).Order("company ASC").Find(&ms).Error; err != nil {
		return nil, err
	}
	return toDomainContracts(ms), nil
}

// Save inserts a new contract
func (r *GormContractRepository) Save(ctx context.Context, c *contract.Contract) error {
	var m models.ContractModel
	m.FromDomain(c)
	return r.db.WithContext(ctx).Create(&m).Error
}

// Update persists changes to an existing contract
func (r *GormContractRepository) Update(ctx context.Context, c *contract.Contract) error {
	var m models.ContractModel
	m.FromDomain(c)
	result := r.db.WithContext(ctx).Model(&models.ContractModel{}).
		Where("id = ?", m.ID).
		Updates(map[string]any{
			"company":   m.Company,
			"tax_id":    m.TaxID,
			"api_token": m.APIToken,
			"app_key":   m.AppKey,
			"username":  m.Username,
			"password":  m.Password,
			"active":    m.Active,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return contract.ErrNotFound
	}
	return nil
}

func toDomainContracts(ms []models.ContractModel) []contract.Contract {
	out := make([]contract.Contract, len(ms))
	for i := range ms {
		out[i] = *ms[i].ToDomain()
	}
	return out
}

var _ contract.Repository = (*GormContractRepository)(nil)

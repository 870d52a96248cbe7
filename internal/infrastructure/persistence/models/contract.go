package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/erp/gateway/internal/domain/contract"
)

// ContractModel maps the contract aggregate to the contracts table.
// Credential columns are stored as-is; they are opaque remote-service
// material, not local secrets.
type ContractModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key"`
	Company   string    `gorm:"size:255;not null"`
	TaxID     string    `gorm:"column:tax_id;size:32;not null;uniqueIndex"`
	APIToken  string    `gorm:"column:api_token;size:255;not null"`
	AppKey    string    `gorm:"column:app_key;size:255;not null"`
	Username  string    `gorm:"size:255;not null"`
	Password  string    `gorm:"size:255;not null"`
	Active    bool      `gorm:"not null;default:false;index"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

func (ContractModel) TableName() string { return "contracts" }

// ToDomain converts the model to the domain aggregate.
func (m *ContractModel) ToDomain() *contract.Contract {
	return &contract.Contract{
		ID:      m.ID,
		Company: m.Company,
		TaxID:   m.TaxID,
		Credentials: contract.Credentials{
			APIToken: m.APIToken,
			AppKey:   m.AppKey,
			Username: m.Username,
			Password: m.Password,
		},
		Active:    m.Active,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

// FromDomain populates the model from the domain aggregate.
func (m *ContractModel) FromDomain(c *contract.Contract) {
	m.ID = c.ID
	m.Company = c.Company
	m.TaxID = c.TaxID
	m.APIToken = c.Credentials.APIToken
	m.AppKey = c.Credentials.AppKey
	m.Username = c.Credentials.Username
	m.Password = c.Credentials.Password
	m.Active = c.Active
	m.CreatedAt = c.CreatedAt
	m.UpdatedAt = c.UpdatedAt
}

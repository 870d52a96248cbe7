package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/erp/gateway/internal/domain/partner"
)

// PartnerModel maps one mirrored partner row. The composite key keeps each
// contract's mirror isolated; Current is the reconciliation flag flipped
// stale at the start of a run and back to true by the upsert phase.
type PartnerModel struct {
	ContractID uuid.UUID `gorm:"type:uuid;primaryKey"`
	Code       int64     `gorm:"primaryKey;autoIncrement:false"`

	Name              string `gorm:"size:255"`
	DocNumber         string `gorm:"column:doc_number;size:32"`
	CityCode          string `gorm:"size:16"`
	Active            string `gorm:"size:1"`
	PersonType        string `gorm:"size:1"`
	LegalName         string `gorm:"size:255"`
	StateRegistration string `gorm:"size:32"`
	PostalCode        string `gorm:"size:16"`
	AddressCode       string `gorm:"size:16"`
	AddressNumber     string `gorm:"size:16"`
	Complement        string `gorm:"size:255"`
	DistrictCode      string `gorm:"size:16"`
	Latitude          string `gorm:"size:32"`
	Longitude         string `gorm:"size:32"`
	IsCustomer        string `gorm:"size:1"`
	SalespersonCode   string `gorm:"size:16"`

	Current      bool      `gorm:"not null;default:true;index"`
	LastSyncedAt time.Time `gorm:"not null"`
	CreatedAt    time.Time `gorm:"not null"`
}

func (PartnerModel) TableName() string { return "partners" }

// ToDomain converts the model to the domain record.
func (m *PartnerModel) ToDomain() partner.Partner {
	return partner.Partner{
		Code:              m.Code,
		Name:              m.Name,
		DocNumber:         m.DocNumber,
		CityCode:          m.CityCode,
		Active:            m.Active,
		PersonType:        m.PersonType,
		LegalName:         m.LegalName,
		StateRegistration: m.StateRegistration,
		PostalCode:        m.PostalCode,
		AddressCode:       m.AddressCode,
		AddressNumber:     m.AddressNumber,
		Complement:        m.Complement,
		DistrictCode:      m.DistrictCode,
		Latitude:          m.Latitude,
		Longitude:         m.Longitude,
		IsCustomer:        m.IsCustomer,
		SalespersonCode:   m.SalespersonCode,
	}
}

// FromDomain populates the model from a pulled partner record.
func (m *PartnerModel) FromDomain(contractID uuid.UUID, p partner.Partner, syncedAt time.Time) {
	m.ContractID = contractID
	m.Code = p.Code
	m.Name = p.Name
	m.DocNumber = p.DocNumber
	m.CityCode = p.CityCode
	m.Active = p.Active
	m.PersonType = p.PersonType
	m.LegalName = p.LegalName
	m.StateRegistration = p.StateRegistration
	m.PostalCode = p.PostalCode
	m.AddressCode = p.AddressCode
	m.AddressNumber = p.AddressNumber
	m.Complement = p.Complement
	m.DistrictCode = p.DistrictCode
	m.Latitude = p.Latitude
	m.Longitude = p.Longitude
	m.IsCustomer = p.IsCustomer
	m.SalespersonCode = p.SalespersonCode
	m.Current = true
	m.LastSyncedAt = syncedAt
}

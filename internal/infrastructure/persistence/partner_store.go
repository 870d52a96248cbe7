package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/erp/gateway/internal/domain/partner"
	"github.com/erp/gateway/internal/infrastructure/persistence/models"
)

// GormSyncStore implements partner.SyncStore using GORM. Transactions are
// explicit: the reconciliation engine controls batch boundaries itself
// instead of wrapping the whole run in one transaction.
type GormSyncStore struct {
	db *gorm.DB
}

// NewGormSyncStore creates a new GormSyncStore
func NewGormSyncStore(db *gorm.DB) *GormSyncStore {
	return &GormSyncStore{db: db}
}

// Begin opens a new transaction.
func (s *GormSyncStore) Begin(ctx context.Context) (partner.SyncTx, error) {
	tx := s.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, tx.Error
	}
	return &gormSyncTx{tx: tx}, nil
}

// ExistingCodes returns the partner codes already stored for the contract.
func (s *GormSyncStore) ExistingCodes(ctx context.Context, contractID uuid.UUID) (map[int64]struct{}, error) {
	var codes []int64
	if err := s.db.WithContext(ctx).
		Model(&models.PartnerModel{}).
		Where("contract_id = ?", contractID).
		Pluck("code", &codes).Error; err != nil {
		return nil, err
	}
	set := make(map[int64]struct{}, len(codes))
	for _, c := range codes {
		set[c] = struct{}{}
	}
	return set, nil
}

// Stats reports row counts and the latest sync timestamp for the contract.
func (s *GormSyncStore) Stats(ctx context.Context, contractID uuid.UUID) (partner.SyncStats, error) {
	stats := partner.SyncStats{ContractID: contractID}

	base := s.db.WithContext(ctx).Model(&models.PartnerModel{}).Where("contract_id = ?", contractID)

	if err := base.Session(&gorm.Session{}).Count(&stats.TotalRows).Error; err != nil {
		return stats, err
	}
	if err := base.Session(&gorm.Session{}).Where("current = ?", true).Count(&stats.CurrentRows).Error; err != nil {
		return stats, err
	}
	stats.StaleRows = stats.TotalRows - stats.CurrentRows

	// Latest row instead of MAX(): aggregate scans behave differently
	// across the postgres and sqlite drivers.
	var newest models.PartnerModel
	err := base.Session(&gorm.Session{}).Order("last_synced_at DESC").First(&newest).Error
	switch {
	case err == nil:
		last := newest.LastSyncedAt
		stats.LastSyncedAt = &last
	case errors.Is(err, gorm.ErrRecordNotFound):
	default:
		return stats, err
	}

	return stats, nil
}

// gormSyncTx is one open reconciliation transaction.
type gormSyncTx struct {
	tx *gorm.DB
}

// MarkStale flips every current row of the contract to stale.
func (t *gormSyncTx) MarkStale(ctx context.Context, contractID uuid.UUID, at time.Time) (int64, error) {
	result := t.tx.WithContext(ctx).
		Model(&models.PartnerModel{}).
		Where("contract_id = ? AND current = ?", contractID, true).
		Updates(map[string]any{"current": false, "last_synced_at": at})
	return result.RowsAffected, result.Error
}

// Upsert inserts or updates one partner row keyed by (contract_id, code).
func (t *gormSyncTx) Upsert(ctx context.Context, contractID uuid.UUID, p partner.Partner, at time.Time) error {
	var m models.PartnerModel
	m.FromDomain(contractID, p, at)

	return t.tx.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "contract_id"}, {Name: "code"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"name", "doc_number", "city_code", "active", "person_type",
				"legal_name", "state_registration", "postal_code",
				"address_code", "address_number", "complement",
				"district_code", "latitude", "longitude", "is_customer",
				"salesperson_code", "current", "last_synced_at",
			}),
		}).
		Create(&m).Error
}

func (t *gormSyncTx) Commit() error {
	return t.tx.Commit().Error
}

func (t *gormSyncTx) Rollback() error {
	return t.tx.Rollback().Error
}

var _ partner.SyncStore = (*GormSyncStore)(nil)

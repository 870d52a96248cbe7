package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/erp/gateway/internal/domain/partner"
	"github.com/erp/gateway/internal/infrastructure/persistence/models"
)

func newSyncStore(t *testing.T) *GormSyncStore {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&models.PartnerModel{}))
	return NewGormSyncStore(db)
}

func upsertOne(t *testing.T, store *GormSyncStore, contractID uuid.UUID, p partner.Partner, at time.Time) {
	t.Helper()
	tx, err := store.Begin(context.Background())
	require.NoError(t, err)
	require.NoError(t, tx.Upsert(context.Background(), contractID, p, at))
	require.NoError(t, tx.Commit())
}

func TestGormSyncStore_UpsertInsertsAndUpdates(t *testing.T) {
	store := newSyncStore(t)
	contractID := uuid.New()
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	upsertOne(t, store, contractID, partner.Partner{Code: 1, Name: "ACME"}, now)
	upsertOne(t, store, contractID, partner.Partner{Code: 1, Name: "ACME RENAMED", CityCode: "55"}, now.Add(time.Hour))

	var m models.PartnerModel
	require.NoError(t, store.db.Where("contract_id = ? AND code = ?", contractID, 1).First(&m).Error)
	assert.Equal(t, "ACME RENAMED", m.Name)
	assert.Equal(t, "55", m.CityCode)
	assert.True(t, m.Current)

	stats, err := store.Stats(ctx, contractID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, stats.TotalRows)
}

func TestGormSyncStore_UpsertKeepsCreationTime(t *testing.T) {
	store := newSyncStore(t)
	contractID := uuid.New()
	now := time.Now()

	upsertOne(t, store, contractID, partner.Partner{Code: 1, Name: "ACME"}, now)

	var inserted models.PartnerModel
	require.NoError(t, store.db.Where("contract_id = ? AND code = ?", contractID, 1).First(&inserted).Error)
	require.False(t, inserted.CreatedAt.IsZero())

	upsertOne(t, store, contractID, partner.Partner{Code: 1, Name: "ACME RENAMED"}, now.Add(time.Hour))

	var updated models.PartnerModel
	require.NoError(t, store.db.Where("contract_id = ? AND code = ?", contractID, 1).First(&updated).Error)
	assert.Equal(t, "ACME RENAMED", updated.Name)
	assert.True(t, updated.CreatedAt.Equal(inserted.CreatedAt))
}

func TestGormSyncStore_MarkStaleThenUpsertRestoresCurrent(t *testing.T) {
	store := newSyncStore(t)
	contractID := uuid.New()
	ctx := context.Background()
	now := time.Now()

	upsertOne(t, store, contractID, partner.Partner{Code: 1, Name: "A"}, now)
	upsertOne(t, store, contractID, partner.Partner{Code: 2, Name: "B"}, now)

	tx, err := store.Begin(ctx)
	require.NoError(t, err)
	affected, err := tx.MarkStale(ctx, contractID, now.Add(time.Hour))
	require.NoError(t, err)
	assert.EqualValues(t, 2, affected)

	// Only code 1 comes back in the new snapshot; code 2 stays stale.
	require.NoError(t, tx.Upsert(ctx, contractID, partner.Partner{Code: 1, Name: "A"}, now.Add(time.Hour)))
	require.NoError(t, tx.Commit())

	stats, err := store.Stats(ctx, contractID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, stats.TotalRows)
	assert.EqualValues(t, 1, stats.CurrentRows)
	assert.EqualValues(t, 1, stats.StaleRows)
	require.NotNil(t, stats.LastSyncedAt)
}

func TestGormSyncStore_MarkStaleScopedToContract(t *testing.T) {
	store := newSyncStore(t)
	first := uuid.New()
	second := uuid.New()
	ctx := context.Background()
	now := time.Now()

	upsertOne(t, store, first, partner.Partner{Code: 1, Name: "A"}, now)
	upsertOne(t, store, second, partner.Partner{Code: 1, Name: "A"}, now)

	tx, err := store.Begin(ctx)
	require.NoError(t, err)
	affected, err := tx.MarkStale(ctx, first, now)
	require.NoError(t, err)
	require.NoError(t, tx.Commit())
	assert.EqualValues(t, 1, affected)

	stats, err := store.Stats(ctx, second)
	require.NoError(t, err)
	assert.EqualValues(t, 1, stats.CurrentRows)
}

func TestGormSyncStore_ExistingCodes(t *testing.T) {
	store := newSyncStore(t)
	contractID := uuid.New()
	ctx := context.Background()
	now := time.Now()

	upsertOne(t, store, contractID, partner.Partner{Code: 10}, now)
	upsertOne(t, store, contractID, partner.Partner{Code: 20}, now)
	upsertOne(t, store, uuid.New(), partner.Partner{Code: 30}, now)

	codes, err := store.ExistingCodes(ctx, contractID)
	require.NoError(t, err)
	assert.Equal(t, map[int64]struct{}{10: {}, 20: {}}, codes)
}

func TestGormSyncStore_RollbackDiscardsBatch(t *testing.T) {
	store := newSyncStore(t)
	contractID := uuid.New()
	ctx := context.Background()
	now := time.Now()

	tx, err := store.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.Upsert(ctx, contractID, partner.Partner{Code: 1}, now))
	require.NoError(t, tx.Rollback())

	stats, err := store.Stats(ctx, contractID)
	require.NoError(t, err)
	assert.Zero(t, stats.TotalRows)
	assert.Nil(t, stats.LastSyncedAt)
}

func TestGormSyncStore_StatsReportsNewestSyncTime(t *testing.T) {
	store := newSyncStore(t)
	contractID := uuid.New()
	ctx := context.Background()
	first := time.Now().UTC().Truncate(time.Second)
	second := first.Add(2 * time.Hour)

	upsertOne(t, store, contractID, partner.Partner{Code: 1, Name: "A"}, first)
	upsertOne(t, store, contractID, partner.Partner{Code: 2, Name: "B"}, second)

	stats, err := store.Stats(ctx, contractID)
	require.NoError(t, err)
	require.NotNil(t, stats.LastSyncedAt)
	assert.True(t, stats.LastSyncedAt.Equal(second), "want %v, got %v", second, stats.LastSyncedAt)
}

func TestGormSyncStore_StatsEmptyMirror(t *testing.T) {
	store := newSyncStore(t)

	stats, err := store.Stats(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Zero(t, stats.TotalRows)
	assert.Zero(t, stats.CurrentRows)
	assert.Nil(t, stats.LastSyncedAt)
}

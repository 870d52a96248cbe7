// Package sync implements the partner reconciliation engine: it pulls the
// complete remote partner collection for a contract and rebuilds the local
// mirror with a mark-stale-then-upsert pass, committing in fixed-size
// batches.
package sync

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/erp/gateway/internal/domain/contract"
	"github.com/erp/gateway/internal/domain/gateway"
	"github.com/erp/gateway/internal/domain/partner"
)

// Source pulls the complete remote partner collection for a contract.
type Source interface {
	FetchAll(ctx context.Context, contractID uuid.UUID) ([]gateway.Record, int, error)
}

// Options holds the engine's batching and pacing policy.
type Options struct {
	BatchSize          int
	InterContractDelay time.Duration
}

// Service runs reconciliations. One run is one contract; multi-contract
// batches run strictly sequentially with a pacing delay between contracts
// so the remote service never sees two tenants' full pulls back to back.
type Service struct {
	contracts contract.Repository
	source    Source
	store     partner.SyncStore
	opts      Options
	logger    *zap.Logger
	now       func() time.Time
}

// NewService creates a reconciliation service. Zero opts fields fall back
// to a 100-record batch and a 3-second pacing delay.
func NewService(contracts contract.Repository, source Source, store partner.SyncStore, opts Options, logger *zap.Logger) *Service {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 100
	}
	if opts.InterContractDelay == 0 {
		opts.InterContractDelay = 3 * time.Second
	}
	return &Service{
		contracts: contracts,
		source:    source,
		store:     store,
		opts:      opts,
		logger:    logger.Named("sync"),
		now:       time.Now,
	}
}

// WithClock replaces the service clock. For tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// SyncContract reconciles one contract's mirror. It never returns an
// error: every failure is folded into the result so callers can run
// batches without per-contract error plumbing. Batches committed before a
// failure stay committed.
func (s *Service) SyncContract(ctx context.Context, contractID uuid.UUID) partner.SyncResult {
	result := partner.SyncResult{
		ContractID: contractID,
		StartedAt:  s.now(),
	}

	c, err := s.contracts.GetByID(ctx, contractID)
	if err != nil {
		return s.fail(result, err)
	}
	result.Company = c.Company

	s.logger.Info("reconciliation started",
		zap.String("contract_id", contractID.String()),
		zap.String("company", c.Company))

	records, _, err := s.source.FetchAll(ctx, contractID)
	if err != nil {
		return s.fail(result, err)
	}

	// Snapshot of the stored codes, taken before any write, splits the
	// run's counts into inserted and updated.
	existing, err := s.store.ExistingCodes(ctx, contractID)
	if err != nil {
		return s.fail(result, err)
	}

	syncedAt := s.now()

	tx, err := s.store.Begin(ctx)
	if err != nil {
		return s.fail(result, err)
	}

	result.MarkedStale, err = tx.MarkStale(ctx, contractID, syncedAt)
	if err != nil {
		_ = tx.Rollback()
		return s.fail(result, err)
	}

	inBatch := 0
	for _, rec := range records {
		p, ok := partner.FromRecord(rec)
		if !ok {
			continue
		}

		if err := tx.Upsert(ctx, contractID, p, syncedAt); err != nil {
			_ = tx.Rollback()
			return s.fail(result, err)
		}

		result.Total++
		if _, seen := existing[p.Code]; seen {
			result.Updated++
		} else {
			result.Inserted++
			existing[p.Code] = struct{}{}
		}

		inBatch++
		if inBatch == s.opts.BatchSize {
			if err := tx.Commit(); err != nil {
				return s.fail(result, err)
			}
			if tx, err = s.store.Begin(ctx); err != nil {
				return s.fail(result, err)
			}
			inBatch = 0
		}
	}

	// The trailing commit also covers an empty pull, where the stale
	// marking is the only write.
	if err := tx.Commit(); err != nil {
		return s.fail(result, err)
	}

	result.Success = true
	result.FinishedAt = s.now()
	result.Duration = result.FinishedAt.Sub(result.StartedAt)

	s.logger.Info("reconciliation finished",
		zap.String("contract_id", contractID.String()),
		zap.Int("total", result.Total),
		zap.Int("inserted", result.Inserted),
		zap.Int("updated", result.Updated),
		zap.Int64("marked_stale", result.MarkedStale),
		zap.Duration("duration", result.Duration))

	return result
}

// SyncAllActive reconciles every active contract sequentially. A contract
// failure is recorded in its result and the batch moves on.
func (s *Service) SyncAllActive(ctx context.Context) []partner.SyncResult {
	contracts, err := s.contracts.ListActive(ctx)
	if err != nil {
		s.logger.Error("failed to list active contracts", zap.Error(err))
		return nil
	}

	results := make([]partner.SyncResult, 0, len(contracts))
	for i, c := range contracts {
		if i > 0 {
			select {
			case <-ctx.Done():
				s.logger.Warn("batch reconciliation canceled", zap.Error(ctx.Err()))
				return results
			case <-time.After(s.opts.InterContractDelay):
			}
		}
		results = append(results, s.SyncContract(ctx, c.ID))
	}
	return results
}

// Stats reports the mirror state for one contract.
func (s *Service) Stats(ctx context.Context, contractID uuid.UUID) (partner.SyncStats, error) {
	return s.store.Stats(ctx, contractID)
}

func (s *Service) fail(result partner.SyncResult, err error) partner.SyncResult {
	result.Success = false
	result.Error = err.Error()
	result.FinishedAt = s.now()
	result.Duration = result.FinishedAt.Sub(result.StartedAt)

	s.logger.Error("reconciliation failed",
		zap.String("contract_id", result.ContractID.String()),
		zap.String("company", result.Company),
		zap.Error(err))

	return result
}

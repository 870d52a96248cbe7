package partner

import (
	"time"

	"github.com/google/uuid"
)

// SyncResult is the outcome of one reconciliation run for one contract.
// It is finalized exactly once, on the success or the failure path, and
// never mutated afterwards. Failures are reported here instead of being
// propagated so a single contract can never abort a multi-contract batch.
type SyncResult struct {
	Success     bool          `json:"success"`
	ContractID  uuid.UUID     `json:"contract_id"`
	Company     string        `json:"company"`
	Total       int           `json:"total"`
	Inserted    int           `json:"inserted"`
	Updated     int           `json:"updated"`
	MarkedStale int64         `json:"marked_stale"`
	StartedAt   time.Time     `json:"started_at"`
	FinishedAt  time.Time     `json:"finished_at"`
	Duration    time.Duration `json:"duration"`
	Error       string        `json:"error,omitempty"`
}

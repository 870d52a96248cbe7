// Package partner contains the partner reconciliation bounded context: the
// local mirror of the remote partner collection and the ports used by the
// reconciliation engine to pull and persist it.
package partner

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/erp/gateway/internal/domain/gateway"
)

// FieldList is the remote fieldset pulled for every partner, in wire order.
const FieldList = "CODPARC, NOMEPARC, CGC_CPF, CODCID, ATIVO, TIPPESSOA, " +
	"RAZAOSOCIAL, IDENTINSCESTAD, CEP, CODEND, NUMEND, COMPLEMENTO, " +
	"CODBAI, LATITUDE, LONGITUDE, CLIENTE, CODVEND"

// Partner is one partner record pulled from the remote collection. Optional
// fields keep the empty string when the remote omits them.
type Partner struct {
	Code              int64
	Name              string
	DocNumber         string
	CityCode          string
	Active            string
	PersonType        string
	LegalName         string
	StateRegistration string
	PostalCode        string
	AddressCode       string
	AddressNumber     string
	Complement        string
	DistrictCode      string
	Latitude          string
	Longitude         string
	IsCustomer        string
	SalespersonCode   string
}

// FromRecord maps a decoded wire record to a Partner. The bool is false
// when the record carries no usable partner code.
func FromRecord(rec gateway.Record) (Partner, bool) {
	raw, ok := rec.Get("CODPARC")
	if !ok {
		return Partner{}, false
	}
	code, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return Partner{}, false
	}
	p := Partner{Code: code}
	p.Name, _ = rec.Get("NOMEPARC")
	p.DocNumber, _ = rec.Get("CGC_CPF")
	p.CityCode, _ = rec.Get("CODCID")
	p.Active, _ = rec.Get("ATIVO")
	p.PersonType, _ = rec.Get("TIPPESSOA")
	p.LegalName, _ = rec.Get("RAZAOSOCIAL")
	p.StateRegistration, _ = rec.Get("IDENTINSCESTAD")
	p.PostalCode, _ = rec.Get("CEP")
	p.AddressCode, _ = rec.Get("CODEND")
	p.AddressNumber, _ = rec.Get("NUMEND")
	p.Complement, _ = rec.Get("COMPLEMENTO")
	p.DistrictCode, _ = rec.Get("CODBAI")
	p.Latitude, _ = rec.Get("LATITUDE")
	p.Longitude, _ = rec.Get("LONGITUDE")
	p.IsCustomer, _ = rec.Get("CLIENTE")
	p.SalespersonCode, _ = rec.Get("CODVEND")
	return p, true
}

// SyncTx is one open local-store transaction of a reconciliation run.
// Commit closes the transaction; the engine opens a fresh one per batch.
type SyncTx interface {
	// MarkStale flips current=true rows for the contract to current=false
	// in a single bulk statement, returning the number of rows affected.
	MarkStale(ctx context.Context, contractID uuid.UUID, at time.Time) (int64, error)

	// Upsert inserts or updates one partner row keyed by
	// (contract id, partner code) and sets current=true.
	Upsert(ctx context.Context, contractID uuid.UUID, p Partner, at time.Time) error

	Commit() error
	Rollback() error
}

// SyncStore is the local-store port for the reconciliation engine.
type SyncStore interface {
	Begin(ctx context.Context) (SyncTx, error)

	// ExistingCodes returns the set of partner codes already stored for
	// the contract. Taken as a snapshot before the upsert phase to split
	// the run's counts into inserted and updated.
	ExistingCodes(ctx context.Context, contractID uuid.UUID) (map[int64]struct{}, error)

	// Stats reports the current/stale row counts and the latest sync
	// timestamp for the contract.
	Stats(ctx context.Context, contractID uuid.UUID) (SyncStats, error)
}

// SyncStats is a per-contract summary of the local mirror.
type SyncStats struct {
	ContractID   uuid.UUID  `json:"contract_id"`
	TotalRows    int64      `json:"total_rows"`
	CurrentRows  int64      `json:"current_rows"`
	StaleRows    int64      `json:"stale_rows"`
	LastSyncedAt *time.Time `json:"last_synced_at,omitempty"`
}

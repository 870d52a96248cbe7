// Package partner exposes the remote partner collection for interactive
// use: filtered pass-through searches, operation-type lookups and partner
// writes, with short-lived response caching in front of the remote service.
package partner

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/erp/gateway/internal/domain/contract"
	domaingw "github.com/erp/gateway/internal/domain/gateway"
	"github.com/erp/gateway/internal/domain/partner"
	"github.com/erp/gateway/internal/infrastructure/cache"
	gw "github.com/erp/gateway/internal/infrastructure/gateway"
)

// Options holds the cache policy for remote reads.
type Options struct {
	SearchCacheTTL time.Duration
	LookupCacheTTL time.Duration
}

// Service answers interactive partner queries against the remote service
// for the active contract.
type Service struct {
	client    *gw.Client
	contracts contract.Repository
	cache     cache.Store
	opts      Options
	logger    *zap.Logger
}

func NewService(client *gw.Client, contracts contract.Repository, cacheStore cache.Store, opts Options, logger *zap.Logger) *Service {
	if opts.SearchCacheTTL == 0 {
		opts.SearchCacheTTL = 10 * time.Minute
	}
	if opts.LookupCacheTTL == 0 {
		opts.LookupCacheTTL = time.Hour
	}
	return &Service{
		client:    client,
		contracts: contracts,
		cache:     cacheStore,
		opts:      opts,
		logger:    logger.Named("partner"),
	}
}

// SearchQuery is one filtered partner search. Zero-value fields are not
// filtered on.
type SearchQuery struct {
	Name       string `form:"name" json:"name"`
	DocNumber  string `form:"doc_number" json:"doc_number"`
	City       string `form:"city" json:"city"`
	OnlyActive bool   `form:"only_active" json:"only_active"`
	Offset     int    `form:"offset" json:"offset"`
	Limit      int    `form:"limit" json:"limit"`
}

// SearchResult is a page of partners plus the remote-reported total.
type SearchResult struct {
	Partners []partner.Partner `json:"partners"`
	Total    int               `json:"total"`
}

// Search runs a filtered partner query for the active contract. Results
// are cached per contract and query for a short window.
func (s *Service) Search(ctx context.Context, q SearchQuery) (SearchResult, error) {
	active, err := s.contracts.GetActive(ctx)
	if err != nil {
		if errors.Is(err, contract.ErrNotFound) {
			return SearchResult{}, domaingw.ErrNoActiveContract
		}
		return SearchResult{}, err
	}

	key := searchCacheKey(active.ID.String(), q)
	if cached, ok, err := s.cache.Get(ctx, key); err == nil && ok {
		var result SearchResult
		if json.Unmarshal([]byte(cached), &result) == nil {
			return result, nil
		}
	}

	if q.Limit <= 0 || q.Limit > 500 {
		q.Limit = 50
	}

	records, total, err := s.client.QueryForContract(ctx, active.ID, gw.QuerySpec{
		RootEntity: "Parceiro",
		Fields:     partner.FieldList,
		Criteria:   buildCriteria(q),
		OrderBy:    "this.NOMEPARC ASC",
		Offset:     q.Offset,
		Limit:      q.Limit,
	})
	if err != nil {
		return SearchResult{}, err
	}

	result := SearchResult{Partners: make([]partner.Partner, 0, len(records)), Total: total}
	for _, rec := range records {
		if p, ok := partner.FromRecord(rec); ok {
			result.Partners = append(result.Partners, p)
		}
	}

	s.cacheResult(ctx, key, result, s.opts.SearchCacheTTL)
	return result, nil
}

// OperationType is one remote operation-type row.
type OperationType struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

// OperationTypes lists the remote operation types for the active contract.
// The collection changes rarely, so it is cached for a long window.
func (s *Service) OperationTypes(ctx context.Context) ([]OperationType, error) {
	active, err := s.contracts.GetActive(ctx)
	if err != nil {
		if errors.Is(err, contract.ErrNotFound) {
			return nil, domaingw.ErrNoActiveContract
		}
		return nil, err
	}

	key := "lookup:optypes:" + active.ID.String()
	if cached, ok, err := s.cache.Get(ctx, key); err == nil && ok {
		var types []OperationType
		if json.Unmarshal([]byte(cached), &types) == nil {
			return types, nil
		}
	}

	records, _, err := s.client.QueryForContract(ctx, active.ID, gw.QuerySpec{
		RootEntity: "TipoOperacao",
		Fields:     "CODTIPOPER, DESCROPER",
		OrderBy:    "this.CODTIPOPER ASC",
		Snapshot:   true,
	})
	if err != nil {
		return nil, err
	}

	types := make([]OperationType, 0, len(records))
	for _, rec := range records {
		code, ok := rec.Get("CODTIPOPER")
		if !ok {
			continue
		}
		desc, _ := rec.Get("DESCROPER")
		types = append(types, OperationType{Code: code, Description: desc})
	}

	s.cacheResult(ctx, key, types, s.opts.LookupCacheTTL)
	return types, nil
}

// saveFields is the writable fieldset, in save-envelope order.
var saveFields = []string{
	"NOMEPARC", "CGC_CPF", "CODCID", "ATIVO", "TIPPESSOA", "RAZAOSOCIAL",
	"CEP", "CLIENTE",
}

// SaveInput is one partner write. A zero Code inserts a new partner.
type SaveInput struct {
	Code       int64  `json:"code"`
	Name       string `json:"name" binding:"required"`
	DocNumber  string `json:"doc_number"`
	CityCode   string `json:"city_code"`
	Active     string `json:"active"`
	PersonType string `json:"person_type"`
	LegalName  string `json:"legal_name"`
	PostalCode string `json:"postal_code"`
	IsCustomer string `json:"is_customer"`
}

// Save writes one partner through the remote service. Search responses
// cached before the write keep serving the old row until their TTL passes.
func (s *Service) Save(ctx context.Context, in SaveInput) error {
	active, err := s.contracts.GetActive(ctx)
	if err != nil {
		if errors.Is(err, contract.ErrNotFound) {
			return domaingw.ErrNoActiveContract
		}
		return err
	}

	var pk map[string]string
	if in.Code > 0 {
		pk = map[string]string{"CODPARC": strconv.FormatInt(in.Code, 10)}
	}

	rec := gw.NewSaveRecord(pk, []any{
		in.Name, in.DocNumber, in.CityCode, in.Active, in.PersonType,
		in.LegalName, in.PostalCode, in.IsCustomer,
	})

	if _, err := s.client.Save(ctx, active.ID, "Parceiro", saveFields, []gw.SaveRecord{rec}); err != nil {
		return err
	}

	s.logger.Info("partner saved",
		zap.String("contract_id", active.ID.String()),
		zap.Int64("code", in.Code))
	return nil
}

func (s *Service) cacheResult(ctx context.Context, key string, v any, ttl time.Duration) {
	payload, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, string(payload), ttl); err != nil {
		s.logger.Warn("failed to cache remote result", zap.String("key", key), zap.Error(err))
	}
}

// buildCriteria renders the filter expression. Values are embedded with
// quote doubling; the remote expression language has no placeholders.
func buildCriteria(q SearchQuery) string {
	var terms []string
	if q.Name != "" {
		terms = append(terms, fmt.Sprintf("UPPER(this.NOMEPARC) LIKE '%%%s%%'",
			strings.ToUpper(escapeLiteral(q.Name))))
	}
	if q.DocNumber != "" {
		terms = append(terms, fmt.Sprintf("this.CGC_CPF = '%s'", escapeLiteral(q.DocNumber)))
	}
	if q.City != "" {
		terms = append(terms, fmt.Sprintf("this.CODCID = '%s'", escapeLiteral(q.City)))
	}
	if q.OnlyActive {
		terms = append(terms, "this.ATIVO = 'S'")
	}
	return strings.Join(terms, " AND ")
}

func escapeLiteral(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

func searchCacheKey(contractID string, q SearchQuery) string {
	raw, _ := json.Marshal(q)
	sum := sha256.Sum256(raw)
	return "search:partners:" + contractID + ":" + hex.EncodeToString(sum[:8])
}

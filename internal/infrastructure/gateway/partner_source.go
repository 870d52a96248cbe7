package gateway

import (
	"context"

	"github.com/google/uuid"

	"github.com/erp/gateway/internal/domain/gateway"
	"github.com/erp/gateway/internal/domain/partner"
)

// PartnerSource pulls the complete remote partner collection through the
// authenticated client, with server-side paging disabled.
type PartnerSource struct {
	client *Client
}

func NewPartnerSource(client *Client) *PartnerSource {
	return &PartnerSource{client: client}
}

func (s *PartnerSource) FetchAll(ctx context.Context, contractID uuid.UUID) ([]gateway.Record, int, error) {
	return s.client.QueryForContract(ctx, contractID, QuerySpec{
		RootEntity: "Parceiro",
		Fields:     partner.FieldList,
		Snapshot:   true,
	})
}

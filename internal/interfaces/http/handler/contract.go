package handler

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	appcontract "github.com/erp/gateway/internal/application/contract"
	"github.com/erp/gateway/internal/domain/contract"
)

// ContractHandler exposes contract administration endpoints.
type ContractHandler struct {
	BaseHandler
	service *appcontract.Service
}

func NewContractHandler(service *appcontract.Service) *ContractHandler {
	return &ContractHandler{service: service}
}

// RegisterRoutes registers contract routes
func (h *ContractHandler) RegisterRoutes(rg *gin.RouterGroup) {
	contracts := rg.Group("/contracts")
	{
		contracts.POST("", h.Create)
		contracts.GET("", h.List)
		contracts.GET("/:id", h.Get)
		contracts.PUT("/:id/credentials", h.UpdateCredentials)
		contracts.POST("/:id/activate", h.Activate)
		contracts.POST("/:id/deactivate", h.Deactivate)
	}
}

// contractView is the API shape of a contract. Credential material never
// leaves the service.
type contractView struct {
	ID        uuid.UUID `json:"id"`
	Company   string    `json:"company"`
	TaxID     string    `json:"tax_id"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toContractView(c *contract.Contract) contractView {
	return contractView{
		ID:        c.ID,
		Company:   c.Company,
		TaxID:     c.TaxID,
		Active:    c.Active,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

// Create registers a new contract
func (h *ContractHandler) Create(c *gin.Context) {
	var in appcontract.CreateInput
	if err := c.ShouldBindJSON(&in); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	created, err := h.service.Create(c.Request.Context(), in)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}
	h.Created(c, toContractView(created))
}

// List returns all contracts
func (h *ContractHandler) List(c *gin.Context) {
	contracts, err := h.service.List(c.Request.Context())
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	views := make([]contractView, len(contracts))
	for i := range contracts {
		views[i] = toContractView(&contracts[i])
	}
	h.Success(c, views)
}

// Get returns one contract
func (h *ContractHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "invalid contract id")
		return
	}

	found, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}
	h.Success(c, toContractView(found))
}

// UpdateCredentials rotates a contract's remote credentials
func (h *ContractHandler) UpdateCredentials(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "invalid contract id")
		return
	}

	var in appcontract.UpdateCredentialsInput
	if err := c.ShouldBindJSON(&in); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	updated, err := h.service.UpdateCredentials(c.Request.Context(), id, in)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}
	h.Success(c, toContractView(updated))
}

// Activate makes the contract the single active one
func (h *ContractHandler) Activate(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "invalid contract id")
		return
	}

	activated, err := h.service.Activate(c.Request.Context(), id)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}
	h.Success(c, toContractView(activated))
}

// Deactivate turns the contract off
func (h *ContractHandler) Deactivate(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "invalid contract id")
		return
	}

	deactivated, err := h.service.Deactivate(c.Request.Context(), id)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}
	h.Success(c, toContractView(deactivated))
}

package handler

import (
	"github.com/gin-gonic/gin"

	apppartner "github.com/erp/gateway/internal/application/partner"
)

// PartnerHandler exposes interactive partner queries against the remote
// service.
type PartnerHandler struct {
	BaseHandler
	service *apppartner.Service
}

func NewPartnerHandler(service *apppartner.Service) *PartnerHandler {
	return &PartnerHandler{service: service}
}

// RegisterRoutes registers partner routes
func (h *PartnerHandler) RegisterRoutes(rg *gin.RouterGroup) {
	partners := rg.Group("/partners")
	{
		partners.GET("", h.Search)
		partners.POST("", h.Save)
	}
	rg.GET("/lookups/operation-types", h.OperationTypes)
}

// Search runs a filtered partner query
func (h *PartnerHandler) Search(c *gin.Context) {
	var q apppartner.SearchQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	result, err := h.service.Search(c.Request.Context(), q)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}
	h.Success(c, result)
}

// Save writes one partner through the remote service
func (h *PartnerHandler) Save(c *gin.Context) {
	var in apppartner.SaveInput
	if err := c.ShouldBindJSON(&in); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	if err := h.service.Save(c.Request.Context(), in); err != nil {
		h.HandleDomainError(c, err)
		return
	}
	h.NoContent(c)
}

// OperationTypes lists the remote operation types
func (h *PartnerHandler) OperationTypes(c *gin.Context) {
	types, err := h.service.OperationTypes(c.Request.Context())
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}
	h.Success(c, types)
}

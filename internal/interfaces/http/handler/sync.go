package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	appsync "github.com/erp/gateway/internal/application/sync"
)

// SyncHandler exposes the reconciliation endpoints.
type SyncHandler struct {
	BaseHandler
	service *appsync.Service
}

func NewSyncHandler(service *appsync.Service) *SyncHandler {
	return &SyncHandler{service: service}
}

// RegisterRoutes registers sync routes
func (h *SyncHandler) RegisterRoutes(rg *gin.RouterGroup) {
	sync := rg.Group("/sync")
	{
		sync.POST("/partners", h.SyncAll)
	}
	contracts := rg.Group("/contracts")
	{
		contracts.POST("/:id/sync/partners", h.SyncOne)
		contracts.GET("/:id/sync/stats", h.Stats)
	}
}

// SyncAll reconciles every active contract sequentially. Failures are
// reported per contract in the response body, never as an HTTP error.
func (h *SyncHandler) SyncAll(c *gin.Context) {
	results := h.service.SyncAllActive(c.Request.Context())
	h.Success(c, results)
}

// SyncOne reconciles a single contract
func (h *SyncHandler) SyncOne(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "invalid contract id")
		return
	}
	h.Success(c, h.service.SyncContract(c.Request.Context(), id))
}

// Stats reports the local mirror state for a contract
func (h *SyncHandler) Stats(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "invalid contract id")
		return
	}

	stats, err := h.service.Stats(c.Request.Context(), id)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}
	h.Success(c, stats)
}

package handler

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/erp/gateway/internal/domain/gateway"
)

// TokenHandler exposes the per-contract remote token state.
type TokenHandler struct {
	BaseHandler
	tokens gateway.TokenManager
}

func NewTokenHandler(tokens gateway.TokenManager) *TokenHandler {
	return &TokenHandler{tokens: tokens}
}

// RegisterRoutes registers token routes
func (h *TokenHandler) RegisterRoutes(rg *gin.RouterGroup) {
	contracts := rg.Group("/contracts")
	{
		contracts.GET("/:id/token", h.Status)
		contracts.POST("/:id/token/refresh", h.Refresh)
		contracts.DELETE("/:id/token", h.Invalidate)
	}
}

// tokenStatusView reports token state without exposing the token itself.
type tokenStatusView struct {
	Cached    bool       `json:"cached"`
	IssuedAt  *time.Time `json:"issued_at,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// Status reports whether a token is cached for the contract
func (h *TokenHandler) Status(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "invalid contract id")
		return
	}

	rec, cached, err := h.tokens.Status(c.Request.Context(), id)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	view := tokenStatusView{Cached: cached}
	if cached {
		view.IssuedAt = &rec.IssuedAt
		view.ExpiresAt = &rec.ExpiresAt
	}
	h.Success(c, view)
}

// Refresh forces a new remote authentication for the contract
func (h *TokenHandler) Refresh(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "invalid contract id")
		return
	}

	if _, err := h.tokens.Token(c.Request.Context(), id, true); err != nil {
		h.HandleDomainError(c, err)
		return
	}

	rec, cached, err := h.tokens.Status(c.Request.Context(), id)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}
	view := tokenStatusView{Cached: cached}
	if cached {
		view.IssuedAt = &rec.IssuedAt
		view.ExpiresAt = &rec.ExpiresAt
	}
	h.Success(c, view)
}

// Invalidate drops the cached token for the contract
func (h *TokenHandler) Invalidate(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "invalid contract id")
		return
	}

	if err := h.tokens.Invalidate(c.Request.Context(), id); err != nil {
		h.HandleDomainError(c, err)
		return
	}
	h.NoContent(c)
}

package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/erp/gateway/internal/domain/contract"
	"github.com/erp/gateway/internal/domain/gateway"
	"github.com/erp/gateway/internal/interfaces/http/dto"
	"github.com/erp/gateway/internal/interfaces/http/middleware"
)

// BaseHandler provides common handler utilities
type BaseHandler struct{}

// Success sends a success response
func (h *BaseHandler) Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(data))
}

// Created sends a 201 created response
func (h *BaseHandler) Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, dto.NewSuccessResponse(data))
}

// NoContent sends a 204 no content response
func (h *BaseHandler) NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// Error sends an error response with the appropriate status code
func (h *BaseHandler) Error(c *gin.Context, statusCode int, code, message string) {
	c.JSON(statusCode, dto.NewErrorResponseWithRequestID(code, message, middleware.GetRequestID(c)))
}

// BadRequest sends a 400 bad request response
func (h *BaseHandler) BadRequest(c *gin.Context, message string) {
	h.Error(c, http.StatusBadRequest, dto.ErrCodeBadRequest, message)
}

// NotFound sends a 404 not found response
func (h *BaseHandler) NotFound(c *gin.Context, message string) {
	h.Error(c, http.StatusNotFound, dto.ErrCodeNotFound, message)
}

// HandleDomainError maps domain sentinel errors to API error responses.
func (h *BaseHandler) HandleDomainError(c *gin.Context, err error) {
	code := dto.ErrCodeInternal

	switch {
	case errors.Is(err, contract.ErrNotFound):
		code = dto.ErrCodeNotFound
	case errors.Is(err, contract.ErrInvalidCompany), errors.Is(err, contract.ErrInvalidTaxID):
		code = dto.ErrCodeInvalidInput
	case errors.Is(err, gateway.ErrNoActiveContract):
		code = dto.ErrCodeNoActiveContract
	case errors.Is(err, gateway.ErrAuthFailed):
		code = dto.ErrCodeRemoteAuthFailed
	case errors.Is(err, gateway.ErrAuthServiceUnavailable):
		code = dto.ErrCodeRemoteAuthUnavailable
	case errors.Is(err, gateway.ErrLockTimeout):
		code = dto.ErrCodeRemoteLockTimeout
	case errors.Is(err, gateway.ErrSessionExpired):
		code = dto.ErrCodeRemoteSessionExpired
	case errors.Is(err, gateway.ErrUpstreamUnavailable):
		code = dto.ErrCodeRemoteUnavailable
	case errors.Is(err, gateway.ErrRequestFailed), errors.Is(err, gateway.ErrInvalidEnvelope):
		code = dto.ErrCodeRemoteRejected
	}

	h.Error(c, dto.GetHTTPStatus(code), code, err.Error())
}

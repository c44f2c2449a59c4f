// Package handlers exposes the token engine over HTTP.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/tenantjwt/internal/application/dto"
	"github.com/turtacn/tenantjwt/internal/application/service"
	"github.com/turtacn/tenantjwt/pkg/errors"
	"github.com/turtacn/tenantjwt/pkg/logger"
)

// AuthHandler handles HTTP requests for the token lifecycle.
type AuthHandler struct {
	authService service.AuthAppService
	log         logger.Logger
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(authService service.AuthAppService, log logger.Logger) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		log:         log.WithComponent("AuthHandler"),
	}
}

// IssueToken handles POST /api/v1/token.
func (h *AuthHandler) IssueToken(c *gin.Context) {
	var req dto.IssueTokenRequest
	if !bind(c, &req) {
		return
	}
	result, err := h.authService.IssueToken(c.Request.Context(), &req)
	if err != nil {
		sendError(c, err)
		return
	}
	c.Header("Cache-Control", "no-store")
	c.JSON(http.StatusOK, result)
}

// VerifyToken handles POST /api/v1/token/verify.
func (h *AuthHandler) VerifyToken(c *gin.Context) {
	var req dto.VerifyTokenRequest
	if !bind(c, &req) {
		return
	}
	result, err := h.authService.VerifyToken(c.Request.Context(), &req)
	if err != nil {
		sendError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// RefreshToken handles POST /api/v1/token/refresh.
func (h *AuthHandler) RefreshToken(c *gin.Context) {
	var req dto.RefreshTokenRequest
	if !bind(c, &req) {
		return
	}
	result, err := h.authService.RefreshToken(c.Request.Context(), &req)
	if err != nil {
		sendError(c, err)
		return
	}
	c.Header("Cache-Control", "no-store")
	c.JSON(http.StatusOK, result)
}

func bind(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		sendError(c, errors.ErrInvalidRequest("malformed request body").WithCause(err))
		return false
	}
	return true
}

// sendError writes the public error body. Causes and metadata stay server-side.
func sendError(c *gin.Context, err error) {
	c.JSON(errors.HTTPStatusOf(err), dto.ErrorResponse(err))
}

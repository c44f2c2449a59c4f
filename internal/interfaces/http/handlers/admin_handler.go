package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/tenantjwt/internal/application/dto"
	"github.com/turtacn/tenantjwt/internal/application/service"
)

// AdminHandler 管理接口：黑名单与客户端缓存失效
type AdminHandler struct {
	authService service.AuthAppService
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(authService service.AuthAppService) *AdminHandler {
	return &AdminHandler{authService: authService}
}

// BlockUser handles POST /api/v1/admin/blacklist.
func (h *AdminHandler) BlockUser(c *gin.Context) {
	var req dto.BlacklistRequest
	if !bind(c, &req) {
		return
	}
	result, err := h.authService.BlockUser(c.Request.Context(), &req)
	if err != nil {
		sendError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// UnblockUser handles DELETE /api/v1/admin/blacklist/:client_id/:username.
func (h *AdminHandler) UnblockUser(c *gin.Context) {
	req := dto.BlacklistRequest{
		ClientID: c.Param("client_id"),
		Username: c.Param("username"),
	}
	result, err := h.authService.UnblockUser(c.Request.Context(), &req)
	if err != nil {
		sendError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// InvalidateClient handles POST /api/v1/admin/clients/:client_id/invalidate.
func (h *AdminHandler) InvalidateClient(c *gin.Context) {
	result, err := h.authService.InvalidateClient(c.Request.Context(), c.Param("client_id"))
	if err != nil {
		sendError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

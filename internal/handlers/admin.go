package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"proptools/internal/middleware"
	"proptools/internal/services"
)

type AdminHandler struct {
	auth    *services.AuthService
	preview *services.SitePreviewService
}

func NewAdminHandler(auth *services.AuthService, preview *services.SitePreviewService) *AdminHandler {
	return &AdminHandler{auth: auth, preview: preview}
}

func (h *AdminHandler) ListUsers(c *gin.Context) {
	users, err := h.auth.ListUsers(c.Request.Context(), middleware.CurrentActor(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, users)
}

// VerifyUser 管理员手动标记邮箱已验证
func (h *AdminHandler) VerifyUser(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	user, err := h.auth.AdminVerifyUser(c.Request.Context(), middleware.CurrentActor(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// PreviewTool 抓取网站标题、描述和图标，用于填充新工具表单
func (h *AdminHandler) PreviewTool(c *gin.Context) {
	preview, err := h.preview.Preview(c.Request.Context(), middleware.CurrentActor(c), c.Query("url"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, preview)
}

package handler

import (
	"ideasystemx-go/internal/service"
	"net/http"

	"github.com/gin-gonic/gin"
)

// AdminHandler 负责维护类接口。
type AdminHandler struct {
	ideaService service.IdeaService
}

// NewAdminHandler 创建一个新的 AdminHandler 实例。
func NewAdminHandler(ideaService service.IdeaService) *AdminHandler {
	return &AdminHandler{ideaService: ideaService}
}

// Reindex 用当前向量模型重建全部向量。
func (h *AdminHandler) Reindex(c *gin.Context) {
	result, err := h.ideaService.Reindex(c.Request.Context())
	if err != nil {
		fail(c, "Reindex", err)
		return
	}
	success(c, http.StatusOK, "向量重建完成", result)
}

package handler

import (
	"ideasystemx-go/internal/model"
	"ideasystemx-go/internal/service"
	"ideasystemx-go/pkg/secret"
	"net/http"

	"github.com/gin-gonic/gin"
)

// SettingsHandler 负责 AI 设置与状态接口。返回的 API Key 总是遮盖后的形式。
type SettingsHandler struct {
	settingsService service.SettingsService
	aiService       service.AIService
}

// NewSettingsHandler 创建一个新的 SettingsHandler 实例。
func NewSettingsHandler(settingsService service.SettingsService, aiService service.AIService) *SettingsHandler {
	return &SettingsHandler{settingsService: settingsService, aiService: aiService}
}

func masked(s *model.Settings) model.Settings {
	out := *s
	out.APIKey = secret.Mask(s.APIKey)
	return out
}

func (h *SettingsHandler) Get(c *gin.Context) {
	settings, err := h.settingsService.GetSettings(c.Request.Context())
	if err != nil {
		fail(c, "GetSettings", err)
		return
	}
	success(c, http.StatusOK, "success", masked(settings))
}

// Save 校验并保存设置，成功后立即生效。
func (h *SettingsHandler) Save(c *gin.Context) {
	var req model.Settings
	if err := c.ShouldBindJSON(&req); err != nil {
		failure(c, http.StatusBadRequest, "无效的请求参数")
		return
	}
	saved, err := h.settingsService.SaveSettings(c.Request.Context(), req)
	if err != nil {
		fail(c, "SaveSettings", err)
		return
	}
	success(c, http.StatusOK, "设置已保存", masked(saved))
}

func (h *SettingsHandler) Providers(c *gin.Context) {
	success(c, http.StatusOK, "success", h.settingsService.Providers())
}

// Status 返回当前 AI 是否可用以及使用的模型。
func (h *SettingsHandler) Status(c *gin.Context) {
	success(c, http.StatusOK, "success", h.aiService.Status())
}

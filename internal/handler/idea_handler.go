package handler

import (
	"ideasystemx-go/internal/service"
	"ideasystemx-go/pkg/log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// IdeaHandler 负责想法的增删改查、标签、搜索与相关推荐接口。
type IdeaHandler struct {
	ideaService service.IdeaService
}

// NewIdeaHandler 创建一个新的 IdeaHandler 实例。
func NewIdeaHandler(ideaService service.IdeaService) *IdeaHandler {
	return &IdeaHandler{ideaService: ideaService}
}

type createIdeaRequest struct {
	Content string   `json:"content" binding:"required"`
	Tags    []string `json:"tags"`
}

// Create 处理创建想法的请求。
func (h *IdeaHandler) Create(c *gin.Context) {
	var req createIdeaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		failure(c, http.StatusBadRequest, "无效的请求参数")
		return
	}

	result, err := h.ideaService.CreateIdea(c.Request.Context(), req.Content, req.Tags)
	if err != nil {
		fail(c, "CreateIdea", err)
		return
	}
	log.Infof("CreateIdea: 想法 %d 已创建, 标签: %v", result.Idea.ID, result.Idea.Tags)
	success(c, http.StatusCreated, "想法已保存", result)
}

// List 返回全部想法，按创建时间倒序。
func (h *IdeaHandler) List(c *gin.Context) {
	ideas, err := h.ideaService.ListIdeas(c.Request.Context())
	if err != nil {
		fail(c, "ListIdeas", err)
		return
	}
	success(c, http.StatusOK, "success", ideas)
}

func (h *IdeaHandler) Get(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	idea, err := h.ideaService.GetIdea(c.Request.Context(), id)
	if err != nil {
		fail(c, "GetIdea", err)
		return
	}
	success(c, http.StatusOK, "success", idea)
}

// Update 处理部分更新，未提供的字段保持不变。
func (h *IdeaHandler) Update(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req service.UpdateIdeaInput
	if err := c.ShouldBindJSON(&req); err != nil {
		failure(c, http.StatusBadRequest, "无效的请求参数")
		return
	}
	idea, err := h.ideaService.UpdateIdea(c.Request.Context(), id, req)
	if err != nil {
		fail(c, "UpdateIdea", err)
		return
	}
	success(c, http.StatusOK, "想法已更新", idea)
}

func (h *IdeaHandler) Delete(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if err := h.ideaService.DeleteIdea(c.Request.Context(), id); err != nil {
		fail(c, "DeleteIdea", err)
		return
	}
	success(c, http.StatusOK, "想法已删除", nil)
}

// Related 返回与指定想法相似的想法。
func (h *IdeaHandler) Related(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	related, err := h.ideaService.FindRelated(c.Request.Context(), id, intQuery(c, "limit", 0))
	if err != nil {
		fail(c, "FindRelated", err)
		return
	}
	success(c, http.StatusOK, "success", related)
}

// Analyze 重新生成标签与摘要。
func (h *IdeaHandler) Analyze(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	idea, err := h.ideaService.AnalyzeIdea(c.Request.Context(), id)
	if err != nil {
		fail(c, "AnalyzeIdea", err)
		return
	}
	success(c, http.StatusOK, "分析完成", idea)
}

// SuggestReminder 让 AI 判断是否为想法创建提醒。
func (h *IdeaHandler) SuggestReminder(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	result, err := h.ideaService.SuggestReminder(c.Request.Context(), id)
	if err != nil {
		fail(c, "SuggestReminder", err)
		return
	}
	success(c, http.StatusOK, "success", result)
}

func (h *IdeaHandler) Tags(c *gin.Context) {
	tags, err := h.ideaService.ListTags(c.Request.Context())
	if err != nil {
		fail(c, "ListTags", err)
		return
	}
	success(c, http.StatusOK, "success", tags)
}

// Search 支持 q（内容子串）、tag（单个标签）与 tags（逗号分隔，取交集）三种查询。
func (h *IdeaHandler) Search(c *gin.Context) {
	ctx := c.Request.Context()
	var (
		result interface{}
		err    error
	)
	switch {
	case c.Query("tags") != "":
		result, err = h.ideaService.GetByTags(ctx, strings.Split(c.Query("tags"), ","))
	case c.Query("tag") != "":
		result, err = h.ideaService.SearchByTag(ctx, c.Query("tag"))
	case strings.TrimSpace(c.Query("q")) != "":
		result, err = h.ideaService.SearchByContent(ctx, c.Query("q"))
	default:
		failure(c, http.StatusBadRequest, "缺少查询参数 q、tag 或 tags")
		return
	}
	if err != nil {
		fail(c, "Search", err)
		return
	}
	success(c, http.StatusOK, "success", result)
}

// SemanticSearch 按语义相似度检索。
func (h *IdeaHandler) SemanticSearch(c *gin.Context) {
	hits, err := h.ideaService.SemanticSearch(c.Request.Context(), c.Query("q"), intQuery(c, "limit", 0))
	if err != nil {
		fail(c, "SemanticSearch", err)
		return
	}
	success(c, http.StatusOK, "success", hits)
}

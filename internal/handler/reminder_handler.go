package handler

import (
	"ideasystemx-go/internal/service"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// ReminderHandler 负责提醒相关的接口。
type ReminderHandler struct {
	reminderService service.ReminderService
}

// NewReminderHandler 创建一个新的 ReminderHandler 实例。
func NewReminderHandler(reminderService service.ReminderService) *ReminderHandler {
	return &ReminderHandler{reminderService: reminderService}
}

type addReminderRequest struct {
	DueAt   time.Time `json:"dueAt"`
	Message string    `json:"message"`
}

// Add 为想法手动添加提醒。
func (h *ReminderHandler) Add(c *gin.Context) {
	ideaID, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req addReminderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		failure(c, http.StatusBadRequest, "无效的请求参数")
		return
	}
	reminder, err := h.reminderService.AddReminder(c.Request.Context(), ideaID, req.DueAt, req.Message)
	if err != nil {
		fail(c, "AddReminder", err)
		return
	}
	success(c, http.StatusCreated, "提醒已创建", reminder)
}

// ListForIdea 返回某个想法的全部提醒。
func (h *ReminderHandler) ListForIdea(c *gin.Context) {
	ideaID, ok := idParam(c, "id")
	if !ok {
		return
	}
	reminders, err := h.reminderService.ListIdeaReminders(c.Request.Context(), ideaID)
	if err != nil {
		fail(c, "ListIdeaReminders", err)
		return
	}
	success(c, http.StatusOK, "success", reminders)
}

func (h *ReminderHandler) List(c *gin.Context) {
	reminders, err := h.reminderService.ListReminders(c.Request.Context())
	if err != nil {
		fail(c, "ListReminders", err)
		return
	}
	success(c, http.StatusOK, "success", reminders)
}

// Pending 返回已到期且未完成的提醒。
func (h *ReminderHandler) Pending(c *gin.Context) {
	reminders, err := h.reminderService.PendingReminders(c.Request.Context())
	if err != nil {
		fail(c, "PendingReminders", err)
		return
	}
	success(c, http.StatusOK, "success", reminders)
}

func (h *ReminderHandler) Complete(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if err := h.reminderService.CompleteReminder(c.Request.Context(), id); err != nil {
		fail(c, "CompleteReminder", err)
		return
	}
	success(c, http.StatusOK, "提醒已完成", nil)
}

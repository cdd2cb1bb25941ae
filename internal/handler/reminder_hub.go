package handler

import (
	"ideasystemx-go/internal/model"
	"ideasystemx-go/pkg/log"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// ReminderHub 向所有 /ws/reminders 连接推送到期提醒，实现 service.ReminderNotifier。
type ReminderHub struct {
	mu      sync.Mutex
	clients map[*safeConn]struct{}
}

// NewReminderHub 创建一个空的 ReminderHub。
func NewReminderHub() *ReminderHub {
	return &ReminderHub{clients: make(map[*safeConn]struct{})}
}

// Handle 接受一个订阅连接，直到客户端断开。
func (h *ReminderHub) Handle(c *gin.Context) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error("WebSocket 升级失败", err)
		return
	}
	conn := &safeConn{conn: ws}

	h.mu.Lock()
	h.clients[conn] = struct{}{}
	h.mu.Unlock()
	log.Infof("提醒订阅已建立: %s", c.ClientIP())

	defer func() {
		h.mu.Lock()
		delete(h.clients, conn)
		h.mu.Unlock()
		_ = ws.Close()
	}()

	// 只读取以感知断开
	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			return
		}
	}
}

// Clients 返回当前订阅数。
func (h *ReminderHub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *ReminderHub) NotifyDue(reminders []model.Reminder) {
	h.mu.Lock()
	clients := make([]*safeConn, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, r := range reminders {
		msg := map[string]interface{}{
			"type":      "reminder",
			"reminder":  r,
			"timestamp": time.Now().UnixMilli(),
		}
		for _, c := range clients {
			if err := c.writeJSON(msg); err != nil {
				log.Warnf("推送提醒失败: %v", err)
			}
		}
	}
}


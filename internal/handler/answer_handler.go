package handler

import (
	"context"
	"encoding/json"
	"errors"
	"ideasystemx-go/internal/service"
	"ideasystemx-go/pkg/log"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var (
	upgrader = websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			return true // 允许所有来源
		},
	}

	errStreamStopped = errors.New("stream stopped by client")
)

// AnswerHandler 负责基于笔记的问答，支持普通请求与 WebSocket 流式输出。
type AnswerHandler struct {
	ideaService service.IdeaService
}

// NewAnswerHandler 创建一个新的 AnswerHandler。
func NewAnswerHandler(ideaService service.IdeaService) *AnswerHandler {
	return &AnswerHandler{ideaService: ideaService}
}

type answerRequest struct {
	Query string `json:"query" binding:"required"`
}

// Answer 处理一次完整（非流式）的问答请求。
func (h *AnswerHandler) Answer(c *gin.Context) {
	var req answerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		failure(c, http.StatusBadRequest, "无效的请求参数")
		return
	}
	result, err := h.ideaService.Answer(c.Request.Context(), req.Query)
	if err != nil {
		fail(c, "Answer", err)
		return
	}
	success(c, http.StatusOK, "success", result)
}

// safeConn 串行化同一连接上的写操作。
type safeConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (s *safeConn) WriteMessage(messageType int, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteMessage(messageType, data)
}

func (s *safeConn) writeJSON(v interface{}) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.WriteMessage(websocket.TextMessage, b)
}

// wsWriterInterceptor 把模型输出的分块包装为 {"chunk": ...}，客户端请求停止后中断写入。
type wsWriterInterceptor struct {
	conn       *safeConn
	writer     *strings.Builder
	shouldStop func() bool
}

func (w *wsWriterInterceptor) WriteMessage(messageType int, data []byte) error {
	if w.shouldStop() {
		return errStreamStopped
	}
	w.writer.Write(data)
	payload, err := json.Marshal(map[string]string{"chunk": string(data)})
	if err != nil {
		return err
	}
	return w.conn.WriteMessage(messageType, payload)
}

func sendCompletion(conn *safeConn, extra map[string]interface{}) {
	resp := map[string]interface{}{
		"type":      "completion",
		"status":    "finished",
		"message":   "响应已完成",
		"timestamp": time.Now().UnixMilli(),
		"date":      time.Now().Format("2006-01-02T15:04:05"),
	}
	for k, v := range extra {
		resp[k] = v
	}
	if err := conn.writeJSON(resp); err != nil {
		log.Warnf("发送完成通知失败: %v", err)
	}
}

// parseQuestion 接受纯文本问题或 {"query": "..."}；{"type":"stop"} 返回 stop=true。
func parseQuestion(message []byte) (query string, stop bool) {
	text := strings.TrimSpace(string(message))
	if strings.HasPrefix(text, "{") {
		var ctrl struct {
			Type  string `json:"type"`
			Query string `json:"query"`
		}
		if err := json.Unmarshal([]byte(text), &ctrl); err == nil {
			if ctrl.Type == "stop" {
				return "", true
			}
			return strings.TrimSpace(ctrl.Query), false
		}
	}
	return text, false
}

// Stream 处理 /ws/answer 连接：每条消息是一个问题，回答以分块推送，最后发送 completion。
func (h *AnswerHandler) Stream(c *gin.Context) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error("WebSocket 升级失败", err)
		return
	}
	defer ws.Close()
	conn := &safeConn{conn: ws}
	log.Infof("WebSocket 问答连接已建立: %s", c.ClientIP())

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	var stopped atomic.Bool
	questions := make(chan string, 8)

	// 读协程：停止指令立即生效，问题排队处理
	go func() {
		defer close(questions)
		for {
			_, message, err := ws.ReadMessage()
			if err != nil {
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					log.Warnf("从 WebSocket 读取消息失败: %v", err)
				}
				cancel()
				return
			}
			query, stop := parseQuestion(message)
			if stop {
				stopped.Store(true)
				_ = conn.writeJSON(map[string]interface{}{
					"type":      "stop",
					"message":   "响应已停止",
					"timestamp": time.Now().UnixMilli(),
					"date":      time.Now().Format("2006-01-02T15:04:05"),
				})
				continue
			}
			if query == "" {
				continue
			}
			select {
			case questions <- query:
			case <-ctx.Done():
				return
			}
		}
	}()

	for query := range questions {
		stopped.Store(false)
		interceptor := &wsWriterInterceptor{
			conn:       conn,
			writer:     &strings.Builder{},
			shouldStop: stopped.Load,
		}

		sources, err := h.ideaService.StreamAnswer(ctx, query, interceptor)
		switch {
		case errors.Is(err, errStreamStopped):
			log.Info("客户端停止了流式响应")
			sendCompletion(conn, map[string]interface{}{"status": "stopped"})
		case err != nil:
			log.Errorf("处理流式响应失败: %v", err)
			msg := "AI服务暂时不可用，请稍后重试"
			if statusFor(err) < http.StatusInternalServerError || statusFor(err) == http.StatusServiceUnavailable {
				msg = err.Error()
			}
			_ = conn.writeJSON(map[string]string{"error": msg})
			sendCompletion(conn, nil)
		default:
			sendCompletion(conn, map[string]interface{}{"sources": sources})
		}
	}
}

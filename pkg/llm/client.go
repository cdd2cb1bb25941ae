// Package llm provides a client for interacting with Large Language Models.
package llm

import (
	"context"
	"fmt"
	"ideasystemx-go/pkg/errs"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
)

// MessageWriter defines an interface for writing WebSocket messages.
// This allows both a standard websocket.Conn and our interceptor to be used.
type MessageWriter interface {
	WriteMessage(messageType int, data []byte) error
}

// Client defines the interface for an LLM client.
type Client interface {
	// Chat 以 role-based 消息调用聊天接口，返回完整回复。
	Chat(ctx context.Context, messages []Message, gen *GenerationParams) (string, error)
	// StreamChat 以 role-based 消息调用聊天接口，并将流式分块写入 writer。
	StreamChat(ctx context.Context, messages []Message, gen *GenerationParams, writer MessageWriter) error
}

// 消息角色
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message 表示一条角色消息
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// GenerationParams 控制生成行为
type GenerationParams struct {
	Temperature *float64
	TopP        *float64
	MaxTokens   *int
}

// Config 描述一个 provider 客户端所需的连接参数。
type Config struct {
	Provider   string
	APIKey     string
	Model      string
	Endpoint   string
	Generation GenerationParams // 调用方未传生成参数时使用
}

// Factory 根据配置创建客户端。
type Factory func(cfg Config) (Client, error)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Factory)
)

// Register 注册一个 provider 工厂。
func Register(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = factory
}

// Supports 判断 provider 是否已注册。
func Supports(name string) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := registry[name]
	return ok
}

// Providers 返回已注册的 provider 名称（已排序）。
func Providers() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewClient creates a new LLM client based on the provider in the config.
func NewClient(cfg Config) (Client, error) {
	registryMu.RLock()
	factory, ok := registry[cfg.Provider]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("llm provider %q not supported: %w", cfg.Provider, errs.ErrProviderUnavailable)
	}
	return factory(cfg)
}

// Close 释放持有连接的客户端。
func Close(c Client) error {
	if closer, ok := c.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// resolve 返回本次调用的生成参数：传参优先，其次使用配置。
func resolve(gen *GenerationParams, fallback GenerationParams) GenerationParams {
	if gen != nil {
		return *gen
	}
	return fallback
}

// splitSystem 把 system 消息合并为一段指令，其余消息保持顺序。
func splitSystem(messages []Message) (string, []Message) {
	var system []string
	rest := make([]Message, 0, len(messages))
	for _, m := range messages {
		if m.Role == RoleSystem {
			system = append(system, m.Content)
			continue
		}
		rest = append(rest, m)
	}
	return strings.Join(system, "\n\n"), rest
}

func writeChunk(writer MessageWriter, content string) error {
	if content == "" {
		return nil
	}
	if err := writer.WriteMessage(websocket.TextMessage, []byte(content)); err != nil {
		return fmt.Errorf("failed to write message to websocket: %w", err)
	}
	return nil
}

// Package embedding 提供文本向量化客户端：按 provider 名称注册的工厂、
// 各 provider 的实现、本地特征哈希向量化以及进程内缓存。
package embedding

import (
	"context"
	"fmt"
	"ideasystemx-go/pkg/errs"
	"io"
	"sort"
	"sync"
)

// Client defines the interface for an embedding client.
type Client interface {
	CreateEmbedding(ctx context.Context, text string) ([]float32, error)
	// Model 返回向量所属的模型标识，写入向量记录的元数据。
	Model() string
}

// Config 描述一个 provider 客户端所需的连接参数。
type Config struct {
	Provider   string
	APIKey     string
	Model      string
	Endpoint   string
	Dimensions int
}

// Factory 根据配置创建客户端。
type Factory func(cfg Config) (Client, error)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Factory)
)

// Register 注册一个 provider 工厂，重复注册时后者覆盖前者。
func Register(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = factory
}

// Supports 判断 provider 是否提供向量化能力。
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

// NewClient creates a new embedding client based on the provider in the config.
func NewClient(cfg Config) (Client, error) {
	registryMu.RLock()
	factory, ok := registry[cfg.Provider]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("embedding provider %q not supported: %w", cfg.Provider, errs.ErrProviderUnavailable)
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

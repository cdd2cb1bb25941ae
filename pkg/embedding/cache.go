package embedding

import (
	"context"
	"fmt"
	"ideasystemx-go/pkg/log"

	"github.com/dgraph-io/ristretto"
)

// CachedClient 用 ristretto 缓存 (provider, model, text) 对应的向量，
// 避免重复创建或重建索引时对同一文本重复调用 provider。
type CachedClient struct {
	next   Client
	cache  *ristretto.Cache
	prefix string
}

// NewCachedClient 包装 next，最多缓存 maxEntries 条向量。
func NewCachedClient(next Client, provider string, maxEntries int64) (*CachedClient, error) {
	if maxEntries <= 0 {
		maxEntries = 1024
	}
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: maxEntries * 10,
		MaxCost:     maxEntries,
		BufferItems: 64,
		// 每条向量按 1 计费，不计入 ristretto 的内部开销
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding cache: %w", err)
	}
	return &CachedClient{
		next:   next,
		cache:  cache,
		prefix: provider + "|" + next.Model() + "|",
	}, nil
}

func (c *CachedClient) Model() string {
	return c.next.Model()
}

// Unwrap 返回被包装的客户端。
func (c *CachedClient) Unwrap() Client {
	return c.next
}

func (c *CachedClient) CreateEmbedding(ctx context.Context, text string) ([]float32, error) {
	key := c.prefix + text
	if v, ok := c.cache.Get(key); ok {
		if vec, ok := v.([]float32); ok {
			log.Debugf("[EmbeddingCache] 命中缓存, model: %s", c.next.Model())
			return append([]float32(nil), vec...), nil
		}
	}

	vec, err := c.next.CreateEmbedding(ctx, text)
	if err != nil {
		return nil, err
	}
	c.cache.Set(key, append([]float32(nil), vec...), 1)
	c.cache.Wait()
	return vec, nil
}

// Close 关闭缓存以及被包装的客户端。
func (c *CachedClient) Close() error {
	c.cache.Close()
	return Close(c.next)
}

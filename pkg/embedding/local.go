package embedding

import (
	"context"
	"hash/fnv"
	"ideasystemx-go/pkg/keywords"
	"math"
)

// LocalModel 是本地特征哈希向量的模型标识。
const LocalModel = "local-hash"

// LocalClient 不依赖任何外部服务：把词项哈希到固定维度的桶中并做 L2 归一化。
// 词项重叠越多的文本余弦相似度越高，足以支撑离线时的相关推荐。
type LocalClient struct {
	dimensions int
}

// NewLocalClient 创建输出 dimensions 维向量的本地客户端。
func NewLocalClient(dimensions int) *LocalClient {
	return &LocalClient{dimensions: dimensions}
}

func (c *LocalClient) Model() string {
	return LocalModel
}

// Dimensions returns the embedding size.
func (c *LocalClient) Dimensions() int {
	return c.dimensions
}

// CreateEmbedding 总是返回 Dimensions() 维的向量；没有可用词项时返回零向量。
func (c *LocalClient) CreateEmbedding(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, c.dimensions)
	if c.dimensions == 0 {
		return vec, nil
	}
	for _, tok := range keywords.Tokenize(text) {
		if keywords.IsStopword(tok) {
			continue
		}
		h := fnv.New64a()
		_, _ = h.Write([]byte(tok))
		sum := h.Sum64()
		idx := int(sum % uint64(c.dimensions))
		// 用高位决定符号，减少哈希碰撞带来的偏差
		if sum>>63 == 1 {
			vec[idx]--
		} else {
			vec[idx]++
		}
	}
	return normalize(vec), nil
}

// normalize converts embedding to unit vector.
func normalize(vec []float32) []float32 {
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return vec
	}
	norm = math.Sqrt(norm)
	for i, v := range vec {
		vec[i] = float32(float64(v) / norm)
	}
	return vec
}

package vectordb

import "math"

// CosineSimilarity 计算两个等长向量的余弦相似度。
// 任一向量模长为 0 时返回 0；长度不一致时只比较公共前缀（调用方负责维度校验）。
func CosineSimilarity(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, na2, nb2 float64
	for i := 0; i < n; i++ {
		va := float64(a[i])
		vb := float64(b[i])
		dot += va * vb
		na2 += va * va
		nb2 += vb * vb
	}
	if na2 == 0 || nb2 == 0 {
		return 0
	}
	sim := dot / (math.Sqrt(na2) * math.Sqrt(nb2))
	if math.IsNaN(sim) {
		return 0
	}
	// 浮点误差可能让结果略微越界
	if sim > 1 {
		return 1
	}
	if sim < -1 {
		return -1
	}
	return sim
}

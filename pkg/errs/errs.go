// Package errs 定义了跨层共享的错误类别。
//
// 各层使用 fmt.Errorf("...: %w", errs.ErrXxx) 包装这些哨兵错误，
// 调用方通过 errors.Is 判断类别，而不是比较错误字符串。
package errs

import "errors"

var (
	// ErrNotFound 表示引用的实体不存在。
	ErrNotFound = errors.New("not found")
	// ErrDimensionMismatch 表示向量长度与存储的固定维度不一致。
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
	// ErrProvider 表示外部 AI 调用失败（鉴权、网络、配额或响应无法解析）。
	ErrProvider = errors.New("ai provider error")
	// ErrProviderUnavailable 表示 AI 尚未配置。
	ErrProviderUnavailable = errors.New("ai provider not configured")
	// ErrPersistence 表示写入持久化状态失败。
	ErrPersistence = errors.New("persistence error")
	// ErrValidation 表示输入不合法，例如空内容。
	ErrValidation = errors.New("validation error")
)

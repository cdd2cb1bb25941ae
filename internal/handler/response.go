// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"errors"
	"ideasystemx-go/pkg/errs"
	"ideasystemx-go/pkg/log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

func success(c *gin.Context, status int, message string, data interface{}) {
	c.JSON(status, gin.H{
		"code":    status,
		"message": message,
		"data":    data,
	})
}

func failure(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{
		"code":    status,
		"message": message,
		"data":    nil,
	})
}

// statusFor 把业务错误映射为 HTTP 状态码。
func statusFor(err error) int {
	switch {
	case errors.Is(err, errs.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, errs.ErrValidation), errors.Is(err, errs.ErrDimensionMismatch):
		return http.StatusBadRequest
	case errors.Is(err, errs.ErrProviderUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, errs.ErrProvider):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// fail 根据错误类型返回响应，5xx 错误记录日志且不向客户端暴露细节。
func fail(c *gin.Context, op string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError && status != http.StatusServiceUnavailable && status != http.StatusBadGateway {
		log.Error(op+": failed", err)
		failure(c, status, "服务器内部错误")
		return
	}
	failure(c, status, err.Error())
}

// idParam 解析路径参数中的正整数 ID。
func idParam(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		failure(c, http.StatusBadRequest, "无效的 "+name)
		return 0, false
	}
	return uint(id), true
}

func intQuery(c *gin.Context, name string, def int) int {
	raw := c.Query(name)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return def
	}
	return n
}

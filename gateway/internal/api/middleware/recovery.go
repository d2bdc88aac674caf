package middleware

import (
	"net/http"
	"runtime/debug"

	"vidora/gateway/internal/api/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

/*
Recovery 错误恢复中间件
功能：捕获 handler 中的 panic，记录堆栈，返回统一格式的 500 JSON
*/
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				zap.L().Error("请求处理 panic",
					zap.Any("error", err),
					zap.String("method", c.Request.Method),
					zap.String("path", c.Request.URL.Path),
					zap.String("client_ip", c.ClientIP()),
					zap.ByteString("stack", debug.Stack()),
				)
				response.Error(c, http.StatusInternalServerError, "INTERNAL_ERROR", "服务器内部错误")
			}
		}()

		c.Next()
	}
}

package middleware

import (
	"net/http"
	"net/url"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

/*
redactToken 隐去订阅地址中的 token
TVBox 客户端把 token 直接放在配置地址里，其它参数原样保留
*/
func redactToken(rawQuery string) string {
	if rawQuery == "" {
		return ""
	}
	values, err := url.ParseQuery(rawQuery)
	if err != nil {
		return "<unparsable>"
	}
	if _, ok := values["token"]; ok {
		values.Set("token", "***")
	}
	return values.Encode()
}

/* accessLevel 限流与拒绝属于正常策略结果，不按告警记录 */
func accessLevel(status int) func(string, ...zap.Field) {
	logger := zap.L().Named("access")
	switch {
	case status >= 500:
		return logger.Error
	case status == http.StatusTooManyRequests || status == http.StatusForbidden:
		return logger.Info
	case status >= 400:
		return logger.Warn
	default:
		return logger.Info
	}
}

/*
Logger 访问日志
每个请求带 X-Request-ID；记录命中的路由模板而非原始路径，UA 用于排查白名单
*/
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		begin := time.Now()

		rid := c.GetHeader("X-Request-ID")
		if rid == "" {
			rid = uuid.NewString()
		}
		c.Header("X-Request-ID", rid)

		c.Next()

		status := c.Writer.Status()
		fields := []zap.Field{
			zap.String("rid", rid),
			zap.String("method", c.Request.Method),
			zap.String("route", c.FullPath()),
			zap.String("query", redactToken(c.Request.URL.RawQuery)),
			zap.String("ip", c.ClientIP()),
			zap.String("ua", c.Request.UserAgent()),
			zap.Int("status", status),
			zap.Int("bytes", c.Writer.Size()),
			zap.Duration("latency", time.Since(begin)),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}
		accessLevel(status)("请求完成", fields...)
	}
}

package middleware

import "github.com/gin-gonic/gin"

/*
SecurityHeaders 安全响应头中间件
配置文档以 text/plain 返回，nosniff 防止浏览器把它当作脚本执行
*/
func SecurityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "no-referrer")
		c.Next()
	}
}

/*
LocalOnly 仅允许回环地址访问（/metrics 等运行指标）
只看连接地址，不采信任何转发头
*/
func LocalOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.RemoteIP()
		if ip != "127.0.0.1" && ip != "::1" {
			c.AbortWithStatus(403)
			return
		}
		c.Next()
	}
}

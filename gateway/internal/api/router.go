package api

import (
	"net/http"

	"vidora/gateway/internal/api/handler/tvbox"
	"vidora/gateway/internal/api/middleware"
	"vidora/gateway/internal/metrics"
	"vidora/gateway/internal/service"
	"vidora/gateway/internal/types"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// SetupRouter 设置路由
func SetupRouter(app *types.App) *gin.Engine {
	if app.Config.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	/* 限流按客户端 IP 计数，未配置可信代理时只使用连接地址 */
	if err := router.SetTrustedProxies(app.Config.Server.TrustedProxies); err != nil {
		zap.L().Warn("可信代理配置无效，已忽略所有转发头", zap.Error(err))
		_ = router.SetTrustedProxies(nil)
	}

	// 全局中间件
	router.Use(middleware.Recovery())
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.Logger())

	router.GET("/health", func(c *gin.Context) {
		resolutions, failures := app.Gateway.Spider().Stats()
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"storage": app.DB.HealthCheck(c.Request.Context()),
			"spider": gin.H{
				"resolutions": resolutions,
				"failures":    failures,
			},
		})
	})

	/* 运行指标仅允许本机访问 */
	router.GET("/metrics", middleware.LocalOnly(), gin.WrapH(metrics.Handler(app.Registry)))

	h := tvbox.NewTVBoxHandler(app)

	/* TVBox 配置接口：任何来源都可访问，/config 为兼容旧订阅地址的别名 */
	open := router.Group("", middleware.OpenCORS())
	{
		open.GET("/api/tvbox", h.GetConfig)
		open.OPTIONS("/api/tvbox", h.Preflight)
		open.GET("/config", h.GetConfig)
		open.OPTIONS("/config", h.Preflight)

		open.GET(service.SpiderMirrorPath, h.SpiderJar)
		open.HEAD(service.SpiderMirrorPath, h.SpiderJar)
	}

	diag := router.Group("", middleware.CORS(app.Config.Server.CORSAllowedOrigins))
	{
		diag.GET("/api/tvbox/diagnose", h.Diagnose)
		diag.GET("/diagnose", h.Diagnose)
	}

	return router
}

package tvbox

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"vidora/gateway/internal/api/response"
	"vidora/gateway/internal/service"
	"vidora/gateway/internal/types"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// TVBoxHandler TVBox 配置接口处理器
type TVBoxHandler struct {
	app *types.App
}

// NewTVBoxHandler 创建处理器
func NewTVBoxHandler(app *types.App) *TVBoxHandler {
	return &TVBoxHandler{app: app}
}

/*
GetConfig 输出 TVBox 配置
query: format=json|base64|txt, mode=safe|min|fast|optimize|yingshicang, token, forceSpiderRefresh=1
响应统一使用 text/plain，部分播放器对 application/json 兼容性差
*/
func (h *TVBoxHandler) GetConfig(c *gin.Context) {
	format := strings.ToLower(c.DefaultQuery("format", "json"))
	mode := service.ParseMode(c.Query("mode"))

	res, err := h.app.Gateway.Build(c.Request.Context(), service.BuildRequest{
		Client:             ClientInfoFrom(c),
		BaseURL:            BaseURL(c, h.app.Gateway.Settings().BaseURL),
		ForceSpiderRefresh: c.Query("forceSpiderRefresh") == "1",
	})
	if err != nil {
		var ge *service.GatewayError
		if errors.As(err, &ge) && ge.Err != nil {
			zap.L().Error("配置构建失败", zap.String("code", ge.Code), zap.Error(ge.Err))
		}
		response.GatewayError(c, err)
		return
	}

	doc := service.Project(res.Document, mode, h.app.Gateway.Settings().YingshicangParses)
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		zap.L().Error("序列化配置失败", zap.Error(err))
		response.Error(c, http.StatusInternalServerError, "INTERNAL_ERROR", "服务器内部错误")
		return
	}

	h.app.Observer.Request(string(mode), format)
	response.NoStore(c)
	if format == "base64" {
		c.Data(http.StatusOK, "text/plain; charset=utf-8", []byte(base64.StdEncoding.EncodeToString(data)))
		return
	}
	c.Data(http.StatusOK, "text/plain; charset=utf-8", data)
}

/* Preflight OPTIONS 预检，CORS 头由中间件写入 */
func (h *TVBoxHandler) Preflight(c *gin.Context) {
	c.Status(http.StatusOK)
}

/*
Diagnose 诊断接口
以真实客户端的身份跑一遍管道（不产生副作用），返回结构化报告
*/
func (h *TVBoxHandler) Diagnose(c *gin.Context) {
	report := h.app.Diagnoser.Diagnose(c.Request.Context(), ClientInfoFrom(c), BaseURL(c, h.app.Gateway.Settings().BaseURL))
	response.JSON(c, http.StatusOK, report)
}

/*
SpiderJar 本地 spider 镜像
提供解析器最近一次校验通过的 jar；进程内没有时 GET 强制解析一次，HEAD 直接返回 503
*/
func (h *TVBoxHandler) SpiderJar(c *gin.Context) {
	resolver := h.app.Gateway.Spider()
	sum, body, ok := resolver.Payloads().Current()
	/* HEAD 只报告当前镜像状态，不触发解析 */
	if !ok && c.Request.Method != http.MethodHead {
		resolver.Resolve(c.Request.Context(), true)
		sum, body, ok = resolver.Payloads().Current()
	}
	if !ok {
		response.Error(c, http.StatusServiceUnavailable, "SPIDER_UNAVAILABLE", "spider jar 暂不可用，请稍后重试")
		return
	}

	c.Header("X-Spider-Md5", sum)
	c.Header("Cache-Control", "public, max-age=3600")
	c.Data(http.StatusOK, "application/java-archive", body)
}

/*
ClientInfoFrom 从请求提取客户端信息
token 依次取 query token、Authorization: Bearer、X-Tvbox-Token
*/
func ClientInfoFrom(c *gin.Context) service.ClientInfo {
	token := strings.TrimSpace(c.Query("token"))
	if token == "" {
		if auth := c.GetHeader("Authorization"); strings.HasPrefix(auth, "Bearer ") {
			token = strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
		}
	}
	if token == "" {
		token = strings.TrimSpace(c.GetHeader("X-Tvbox-Token"))
	}
	return service.ClientInfo{
		IP:        c.ClientIP(),
		Token:     token,
		UserAgent: c.Request.UserAgent(),
		Platform:  service.NormalizePlatform(c.GetHeader("Sec-CH-UA-Platform")),
	}
}

/*
BaseURL 文档中自引用地址的前缀
优先使用配置的 base_url，否则根据反向代理头或请求本身推导
*/
func BaseURL(c *gin.Context, configured string) string {
	if configured != "" {
		return strings.TrimRight(configured, "/")
	}
	scheme := "http"
	if c.Request.TLS != nil {
		scheme = "https"
	}
	if p := c.GetHeader("X-Forwarded-Proto"); p != "" {
		scheme = strings.TrimSpace(strings.Split(p, ",")[0])
	}
	host := c.Request.Host
	if h := c.GetHeader("X-Forwarded-Host"); h != "" {
		host = strings.TrimSpace(strings.Split(h, ",")[0])
	}
	return scheme + "://" + host
}

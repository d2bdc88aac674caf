package service

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"vidora/gateway/internal/config"
	"vidora/gateway/internal/metrics"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

/* BuildRequest 一次配置构建请求 */
type BuildRequest struct {
	Client             ClientInfo
	BaseURL            string
	ForceSpiderRefresh bool

	/* Diagnostic 诊断模式：不消耗限流计数，不追加设备 */
	Diagnostic bool
}

/* BuildResult 构建结果，文档为未投影的完整文档 */
type BuildResult struct {
	Document *Document
	Identity *Identity
	Spider   SpiderJarInfo
}

/*
Gateway TVBox 配置网关
请求处理顺序：限流 → UA 白名单 → 认证/设备绑定 → 权限解析 →（并发）分类增强 + spider 解析 → 组装。
前三步任何一步都可直接拒绝；分类与 spider 只会降级，不会让请求失败。
*/
type Gateway struct {
	store    ConfigStore
	limiter  *RateLimiter
	identity *IdentityEngine
	enricher *CategoryEnricher
	spider   *SpiderResolver
	logger   *zap.Logger
	obs      *metrics.Observer

	mu sync.RWMutex
	gw config.GatewayConfig
}

/* GatewayDeps 网关依赖 */
type GatewayDeps struct {
	Store    ConfigStore
	Limiter  *RateLimiter
	Identity *IdentityEngine
	Enricher *CategoryEnricher
	Spider   *SpiderResolver
	Observer *metrics.Observer
}

/* NewGateway 创建网关 */
func NewGateway(gw config.GatewayConfig, deps GatewayDeps) *Gateway {
	return &Gateway{
		store:    deps.Store,
		limiter:  deps.Limiter,
		identity: deps.Identity,
		enricher: deps.Enricher,
		spider:   deps.Spider,
		obs:      deps.Observer,
		logger:   zap.L().Named("gateway"),
		gw:       gw,
	}
}

/* UpdateSettings 热更新网关配置 */
func (g *Gateway) UpdateSettings(gw config.GatewayConfig) {
	g.mu.Lock()
	g.gw = gw
	g.mu.Unlock()
}

/* Settings 当前网关配置 */
func (g *Gateway) Settings() config.GatewayConfig {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.gw
}

/* Spider 返回 spider 解析器 */
func (g *Gateway) Spider() *SpiderResolver { return g.spider }

/* Enricher 返回分类增强器 */
func (g *Gateway) Enricher() *CategoryEnricher { return g.enricher }

/*
Build 执行完整的请求管道
返回的错误为 *GatewayError，调用方据此输出状态码与 JSON 错误体
*/
func (g *Gateway) Build(ctx context.Context, req BuildRequest) (*BuildResult, error) {
	start := time.Now()
	settings := g.Settings()

	cfg, err := g.store.Load(ctx)
	if err != nil {
		g.logger.Error("读取管理配置失败", zap.Error(err))
		return nil, g.denied(internal(CodeConfigUnavailable, "服务器配置不可用，请稍后重试", err))
	}
	sec := cfg.SecurityConfig

	if sec.EnableRateLimit && !req.Diagnostic {
		if !g.limiter.Allow(ctx, req.Client.IP, sec.RateLimit, DefaultRateWindow) {
			return nil, g.denied(deny(http.StatusTooManyRequests, CodeRateLimited, "请求过于频繁，请稍后再试"))
		}
	}

	if err := CheckUserAgent(sec, req.Client.UserAgent); err != nil {
		return nil, g.denied(err)
	}

	id, err := g.identity.Authenticate(ctx, cfg, req.Client, req.Diagnostic)
	if err != nil {
		return nil, g.denied(err)
	}

	user := EffectiveUser(cfg, id, settings.OwnerUsername)
	sources := ResolvePermittedSources(cfg, user)
	filter := NewMaturityFilter(cfg, user, settings.OwnerUsername)

	types := make([]SiteType, len(sources))
	details := make([]SourceDetail, len(sources))
	for i, s := range sources {
		details[i] = ParseSourceDetail(s.Detail)
		types[i] = DetectSiteType(s.API, details[i])
	}

	var (
		categories [][]string
		spiderInfo SpiderJarInfo
		eg         errgroup.Group
	)
	eg.Go(func() error {
		categories = g.enricher.Enrich(ctx, sources, types, filter)
		return nil
	})
	eg.Go(func() error {
		spiderInfo = g.spider.Resolve(ctx, req.ForceSpiderRefresh)
		return nil
	})
	_ = eg.Wait()

	doc := Assemble(AssembleInput{
		Config:     cfg,
		Sources:    sources,
		Types:      types,
		Details:    details,
		Categories: categories,
		Spider:     SpiderReference(spiderInfo, cfg.SiteConfig.CustomSpiderJar, req.BaseURL),
		BaseURL:    req.BaseURL,
		Wallpaper:  settings.Wallpaper,
		Logo:       settings.Logo,
	})

	g.obs.BuildLatency(time.Since(start))
	g.logger.Debug("配置构建完成",
		zap.String("username", id.Username),
		zap.Int("sites", len(doc.Sites)),
		zap.Bool("spider_ok", spiderInfo.Success),
		zap.Duration("duration", time.Since(start)))

	return &BuildResult{Document: doc, Identity: id, Spider: spiderInfo}, nil
}

func (g *Gateway) denied(err error) error {
	var ge *GatewayError
	if errors.As(err, &ge) {
		g.obs.Denied(ge.Code)
	}
	return err
}

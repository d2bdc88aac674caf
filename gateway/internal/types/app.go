package types

import (
	"net/http"
	"time"

	"vidora/gateway/internal/config"
	"vidora/gateway/internal/db"
	"vidora/gateway/internal/metrics"
	"vidora/gateway/internal/service"

	"github.com/prometheus/client_golang/prometheus"
)

/*
App 应用实例
功能：全局应用上下文，持有配置、存储与网关各组件，每个进程一份
*/
type App struct {
	Config    *config.Config /* 启动时加载的配置，热更新不替换 */
	DB        *db.Manager
	Store     *service.SettingsConfigStore
	Gateway   *service.Gateway
	Diagnoser *service.Diagnoser
	Registry  *prometheus.Registry
	Observer  *metrics.Observer
}

/*
NewApp 创建应用实例并装配网关组件
分类拉取、spider 下载与诊断探测各用独立的 HTTP 客户端，超时由各自的 context 控制
*/
func NewApp(cfg *config.Config, dbManager *db.Manager) *App {
	reg := metrics.NewRegistry()
	obs := metrics.NewObserver(reg)

	store := service.NewSettingsConfigStore(dbManager.DAO, cfg.Gateway, time.Now)
	spider := service.NewSpiderResolver(cfg.Spider, dbManager.KV, &http.Client{}, time.Now, obs)
	gw := service.NewGateway(cfg.Gateway, service.GatewayDeps{
		Store:    store,
		Limiter:  service.NewRateLimiter(dbManager.KV, time.Now, obs),
		Identity: service.NewIdentityEngine(store, time.Now, obs),
		Enricher: service.NewCategoryEnricher(cfg.Category, &http.Client{}, time.Now, obs),
		Spider:   spider,
		Observer: obs,
	})

	return &App{
		Config:    cfg,
		DB:        dbManager,
		Store:     store,
		Gateway:   gw,
		Diagnoser: service.NewDiagnoser(gw, &http.Client{}, config.Seconds(cfg.Spider.ProbeTTL, 5*time.Second), cfg.Spider.MinSize),
		Registry:  reg,
		Observer:  obs,
	}
}

/*
ApplyReload 配置文件热更新
gateway、spider 与 category（concurrency 除外）在运行时替换；
server/database/redis/log 以及 App.Config 保持启动时的值，修改需重启
*/
func (a *App) ApplyReload(cfg *config.Config) {
	a.Store.SetDefaults(cfg.Gateway)
	a.Gateway.UpdateSettings(cfg.Gateway)
	a.Gateway.Spider().Configure(cfg.Spider)
	a.Gateway.Enricher().Configure(cfg.Category)
}

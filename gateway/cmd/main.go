package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"vidora/gateway/internal/api"
	"vidora/gateway/internal/config"
	"vidora/gateway/internal/db"
	"vidora/gateway/internal/pkg/logger"
	"vidora/gateway/internal/service"
	"vidora/gateway/internal/types"

	"go.uber.org/zap"
)

var (
	configPath = flag.String("config", "./config.yaml", "配置文件路径")
	port       = flag.Int("port", 0, "覆盖服务器端口")
)

/*
main 程序入口
启动流程：
 1. 引导日志 → 加载配置 → 用配置重新初始化日志
 2. 初始化存储（GORM 管理配置 + Redis/进程内 KV）
 3. 装配网关组件，启动 spider 预热与配置热更新
 4. 启动 HTTP 服务器，等待 SIGINT/SIGTERM 后优雅关闭
*/
func main() {
	startupBegin := time.Now()
	flag.Parse()

	/* 阶段 1：引导日志（配置加载前使用临时 console 日志） */
	if err := logger.Init(config.LogConfig{Level: "info", Format: "console"}); err != nil {
		log.Fatalf("初始化日志系统失败: %v", err)
	}
	defer logger.Sync()

	cfg := config.LoadConfigOrDefault(*configPath)
	if *port > 0 {
		cfg.Server.Port = *port
	}
	if err := logger.Init(cfg.Log); err != nil {
		logger.Fatal("重新初始化日志系统失败", zap.Error(err))
	}
	printBanner()

	/* 阶段 2：存储 */
	dbStart := time.Now()
	dbManager, err := db.NewManager(cfg.Database, cfg.Redis)
	if err != nil {
		logger.Fatal("初始化存储失败", zap.Error(err))
	}
	defer dbManager.Close()
	logger.Info("✓ 存储初始化完成", zap.String("kv", dbManager.KV.Name()), zap.Duration("耗时", time.Since(dbStart)))

	/* 阶段 3：网关组件 */
	app := types.NewApp(cfg, dbManager)

	warmer, err := service.NewSpiderWarmer(app.Gateway.Spider(), cfg.Spider.WarmCron)
	if err != nil {
		logger.Warn("spider 预热表达式无效，已跳过", zap.String("cron", cfg.Spider.WarmCron), zap.Error(err))
	}
	warmer.Start()
	defer warmer.Stop()

	if _, statErr := os.Stat(*configPath); statErr == nil {
		reloader := config.NewHotReloader(*configPath)
		reloader.Watch(app.ApplyReload)
		if err := reloader.Start(); err != nil {
			logger.Warn("配置热更新启动失败", zap.Error(err))
		} else {
			defer reloader.Stop()
		}
	}

	/* 阶段 4：HTTP 服务器 */
	router := api.SetupRouter(app)
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  config.Seconds(cfg.Server.ReadTimeout, 30*time.Second),
		WriteTimeout: config.Seconds(cfg.Server.WriteTimeout, 60*time.Second),
	}
	go func() {
		logger.Info("✓ HTTP 服务器启动", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP 服务器异常退出", zap.Error(err))
		}
	}()

	logger.Info("✓ Vidora 网关启动完成",
		zap.Duration("总耗时", time.Since(startupBegin)),
		zap.String("监听地址", addr))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("收到退出信号，正在优雅关闭...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("关闭 HTTP 服务器失败", zap.Error(err))
	}
	logger.Info("✓ 服务器已停止")
}

func printBanner() {
	banner := `
╔═══════════════════════════════════════════════╗
║                                               ║
║   V I D O R A   ·   TVBox Config Gateway      ║
║                                               ║
╚═══════════════════════════════════════════════╝
`
	fmt.Println(banner)
}

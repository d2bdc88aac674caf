package service

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

/*
SpiderWarmer spider 定时预热
功能：按 cron 表达式周期性强制刷新解析结果，让配置请求总能命中新鲜缓存
*/
type SpiderWarmer struct {
	resolver *SpiderResolver
	cron     *cron.Cron
	logger   *zap.Logger
}

/*
NewSpiderWarmer 创建预热任务
表达式为空时返回 nil, nil，调用方无需启动
*/
func NewSpiderWarmer(resolver *SpiderResolver, expr string) (*SpiderWarmer, error) {
	if expr == "" {
		return nil, nil
	}
	w := &SpiderWarmer{
		resolver: resolver,
		cron:     cron.New(),
		logger:   zap.L().Named("spider-warmer"),
	}
	if _, err := w.cron.AddFunc(expr, w.warm); err != nil {
		return nil, err
	}
	return w, nil
}

/* Start 启动定时任务，并立即异步预热一次 */
func (w *SpiderWarmer) Start() {
	if w == nil {
		return
	}
	w.cron.Start()
	go w.warm()
	w.logger.Info("spider 预热任务已启动", zap.Int("jobs", len(w.cron.Entries())))
}

/* Stop 停止定时任务并等待正在执行的预热完成 */
func (w *SpiderWarmer) Stop() {
	if w == nil {
		return
	}
	<-w.cron.Stop().Done()
}

func (w *SpiderWarmer) warm() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	info := w.resolver.Resolve(ctx, true)
	w.logger.Debug("spider 预热完成",
		zap.String("source", info.Source),
		zap.Bool("success", info.Success),
		zap.Int("tried", info.Tried))
}

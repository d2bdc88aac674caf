package service

import (
	"context"
	"fmt"
	"time"

	"vidora/gateway/internal/db/kv"
	"vidora/gateway/internal/metrics"

	"go.uber.org/zap"
)

/* DefaultRateWindow TVBox 配置接口的限流窗口 */
const DefaultRateWindow = 60 * time.Second

/*
RateLimiter 固定窗口限流器
功能：计数器存放在 KV 存储中，键为 IP + 窗口起点，过期时间等于窗口长度。
自增与判断基于同一个原子返回值，并发请求不会同时读到旧计数。
限额与窗口由调用方每次传入，修改限额在下一个窗口生效。
存储不可达时按 FailOpen 策略放行。
*/
type RateLimiter struct {
	store   kv.Store
	now     Clock
	policy  FailurePolicy
	timeout time.Duration
	logger  *zap.Logger
	obs     *metrics.Observer
}

/* NewRateLimiter 创建限流器 */
func NewRateLimiter(store kv.Store, now Clock, obs *metrics.Observer) *RateLimiter {
	if now == nil {
		now = time.Now
	}
	return &RateLimiter{
		store:   store,
		now:     now,
		policy:  FailOpen,
		timeout: 500 * time.Millisecond,
		logger:  zap.L().Named("ratelimit"),
		obs:     obs,
	}
}

/* rateKey 计数器键 */
func rateKey(ip string, windowStart int64) string {
	return fmt.Sprintf("ratelimit:tvbox:%s:%d", ip, windowStart)
}

/*
Allow 判断请求是否放行
limit<=0 视为不限流；window<=0 使用 60 秒。
*/
func (r *RateLimiter) Allow(ctx context.Context, ip string, limit int, window time.Duration) bool {
	if limit <= 0 {
		return true
	}
	if window <= 0 {
		window = DefaultRateWindow
	}

	windowMs := window.Milliseconds()
	nowMs := r.now().UnixMilli()
	windowStart := nowMs / windowMs * windowMs
	key := rateKey(ip, windowStart)

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	/* 窗口毫秒数向上取整到秒 */
	ttl := time.Duration((windowMs+999)/1000) * time.Second
	count, err := r.store.IncrWindow(ctx, key, ttl)
	if err != nil {
		return r.fail("incr", err)
	}
	if count > int64(limit) {
		r.logger.Debug("请求超过限额", zap.String("ip", ip), zap.Int64("count", count), zap.Int("limit", limit))
		return false
	}
	return true
}

func (r *RateLimiter) fail(op string, err error) bool {
	r.obs.StoreFailure("ratelimit_"+op, r.policy.String())
	return r.policy.Apply(r.logger, "ratelimit_"+op, err)
}

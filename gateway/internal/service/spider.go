package service

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"vidora/gateway/internal/config"
	"vidora/gateway/internal/db/kv"
	"vidora/gateway/internal/metrics"

	"go.uber.org/atomic"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	/* SpiderInfoKey 解析结果在 KV 中的缓存键 */
	SpiderInfoKey = "spider:jar:info"
	/* SpiderFallbackSource 全部候选失败时的 source 取值 */
	SpiderFallbackSource = "fallback"
	/* SpiderMirrorPath 本地镜像路径 */
	SpiderMirrorPath = "/api/proxy/spider.jar"

	maxSpiderPayload = 64 << 20
	keptPayloads     = 3
)

/* SpiderJarInfo spider jar 解析结果 */
type SpiderJarInfo struct {
	Source     string    `json:"source"`
	MD5        string    `json:"md5,omitempty"`
	Size       int       `json:"size"`
	Cached     bool      `json:"cached"`
	Tried      int       `json:"tried"`
	Success    bool      `json:"success"`
	ResolvedAt time.Time `json:"resolvedAt"`
}

/*
PayloadStore 按 md5 寻址的 jar 内容
只保留最近几份，本地镜像端点提供当前版本
*/
type PayloadStore struct {
	mu      sync.RWMutex
	data    map[string][]byte
	order   []string
	current string
}

func newPayloadStore() *PayloadStore {
	return &PayloadStore{data: make(map[string][]byte)}
}

func (p *PayloadStore) put(sum string, body []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.data[sum]; !ok {
		p.data[sum] = body
		p.order = append(p.order, sum)
		for len(p.order) > keptPayloads {
			delete(p.data, p.order[0])
			p.order = p.order[1:]
		}
	}
	p.current = sum
}

/* Get 按 md5 读取 */
func (p *PayloadStore) Get(sum string) ([]byte, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	b, ok := p.data[sum]
	return b, ok
}

/* Current 当前版本的 md5 与内容 */
func (p *PayloadStore) Current() (string, []byte, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.current == "" {
		return "", nil, false
	}
	return p.current, p.data[p.current], true
}

/*
SpiderResolver spider jar 解析器
功能：按优先级尝试候选地址，校验 HTTP 2xx 与最小体积后计算 md5，
命中第一个即停止；成功结果写入 KV 缓存，失败不缓存。
并发的解析请求通过 singleflight 合并为一次下载。
*/
type SpiderResolver struct {
	store    kv.Store
	client   *http.Client
	now      Clock
	logger   *zap.Logger
	obs      *metrics.Observer
	payloads *PayloadStore
	group    singleflight.Group

	mu         sync.RWMutex
	candidates []string
	timeout    time.Duration
	minSize    int
	ttl        time.Duration

	resolutions atomic.Int64
	failures    atomic.Int64
}

/* NewSpiderResolver 创建 spider 解析器 */
func NewSpiderResolver(cfg config.SpiderConfig, store kv.Store, client *http.Client, now Clock, obs *metrics.Observer) *SpiderResolver {
	if client == nil {
		client = &http.Client{}
	}
	if now == nil {
		now = time.Now
	}
	r := &SpiderResolver{
		store:    store,
		client:   client,
		now:      now,
		logger:   zap.L().Named("spider"),
		obs:      obs,
		payloads: newPayloadStore(),
	}
	r.Configure(cfg)
	return r
}

/* Configure 更新候选列表与阈值（配置热更新） */
func (r *SpiderResolver) Configure(cfg config.SpiderConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.candidates = append([]string(nil), cfg.Candidates...)
	r.timeout = config.Seconds(cfg.Timeout, 10*time.Second)
	r.minSize = cfg.MinSize
	if r.minSize <= 0 {
		r.minSize = 1000
	}
	r.ttl = config.Seconds(cfg.CacheTTL, 4*time.Hour)
}

/* Payloads 返回已校验的 jar 内容 */
func (r *SpiderResolver) Payloads() *PayloadStore { return r.payloads }

/* Stats 累计解析次数与失败次数 */
func (r *SpiderResolver) Stats() (resolutions, failures int64) {
	return r.resolutions.Load(), r.failures.Load()
}

/*
Resolve 解析 spider jar
forceRefresh=false 且缓存有效时原样返回缓存结果（cached=true）
*/
func (r *SpiderResolver) Resolve(ctx context.Context, forceRefresh bool) SpiderJarInfo {
	if !forceRefresh {
		if info, ok := r.cached(ctx); ok {
			r.obs.SpiderResolve("cached")
			return info
		}
	}

	v, _, _ := r.group.Do("resolve", func() (interface{}, error) {
		/* 合并后的下载不随首个调用方的取消而中断 */
		return r.resolve(context.WithoutCancel(ctx)), nil
	})
	return v.(SpiderJarInfo)
}

func (r *SpiderResolver) cached(ctx context.Context) (SpiderJarInfo, bool) {
	raw, ok, err := r.store.Get(ctx, SpiderInfoKey)
	if err != nil {
		r.logger.Warn("读取 spider 缓存失败，重新解析", zap.Error(err))
		return SpiderJarInfo{}, false
	}
	if !ok {
		return SpiderJarInfo{}, false
	}
	var info SpiderJarInfo
	if err := json.Unmarshal([]byte(raw), &info); err != nil || !info.Success {
		return SpiderJarInfo{}, false
	}
	info.Cached = true
	return info, true
}

func (r *SpiderResolver) resolve(ctx context.Context) SpiderJarInfo {
	r.mu.RLock()
	candidates := append([]string(nil), r.candidates...)
	timeout, minSize, ttl := r.timeout, r.minSize, r.ttl
	r.mu.RUnlock()

	r.resolutions.Inc()
	tried := 0
	for _, url := range candidates {
		tried++
		body, err := r.download(ctx, url, timeout)
		if err != nil {
			r.logger.Warn("spider 候选不可用", zap.String("url", url), zap.Error(err))
			continue
		}
		if len(body) < minSize {
			r.logger.Warn("spider 候选体积过小，视为损坏",
				zap.String("url", url), zap.Int("size", len(body)), zap.Int("min_size", minSize))
			continue
		}

		sum := md5.Sum(body)
		info := SpiderJarInfo{
			Source:     url,
			MD5:        hex.EncodeToString(sum[:]),
			Size:       len(body),
			Tried:      tried,
			Success:    true,
			ResolvedAt: r.now(),
		}
		r.payloads.put(info.MD5, body)
		r.remember(ctx, info, ttl)
		r.obs.SpiderResolve("success")
		r.logger.Info("spider 解析成功",
			zap.String("source", url), zap.String("md5", info.MD5), zap.Int("size", info.Size), zap.Int("tried", tried))
		return info
	}

	r.failures.Inc()
	r.obs.SpiderResolve("fallback")
	r.logger.Error("所有 spider 候选均不可用，使用本地镜像", zap.Int("tried", tried))
	return SpiderJarInfo{
		Source:     SpiderFallbackSource,
		Tried:      tried,
		Success:    false,
		ResolvedAt: r.now(),
	}
}

/* remember 缓存成功结果 */
func (r *SpiderResolver) remember(ctx context.Context, info SpiderJarInfo, ttl time.Duration) {
	data, err := json.Marshal(info)
	if err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := r.store.Set(ctx, SpiderInfoKey, string(data), ttl); err != nil {
		r.logger.Warn("写入 spider 缓存失败", zap.Error(err))
	}
}

func (r *SpiderResolver) download(ctx context.Context, url string, timeout time.Duration) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "okhttp/3.15")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxSpiderPayload))
}

/*
SpiderReference 生成配置文档中的 spider 字段
成功时使用解析到的地址（附带 md5），管理员配置了公网自定义地址时以其替代；
失败时始终指向本地镜像，不输出任何远程地址。
*/
func SpiderReference(info SpiderJarInfo, customURL, baseURL string) string {
	if !info.Success {
		return baseURL + SpiderMirrorPath
	}
	if customURL != "" && IsPublicURL(customURL) {
		return customURL
	}
	return info.Source + ";md5;" + info.MD5
}

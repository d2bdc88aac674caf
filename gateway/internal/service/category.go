package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"vidora/gateway/internal/config"
	"vidora/gateway/internal/db/models"
	"vidora/gateway/internal/metrics"

	"go.uber.org/atomic"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

/* CategoryCacheEntry 分类缓存条目 */
type CategoryCacheEntry struct {
	SourceKey  string
	Categories []string
	Timestamp  time.Time
}

/*
CategoryCache 进程内分类缓存
功能：以 (api, name) 为键，TTL 到期即视为未命中；只存真实拉取到的数据。
读到过期数据可以接受，不需要额外加锁。
*/
type CategoryCache struct {
	entries sync.Map
	ttl     atomic.Duration
	now     Clock
}

/* NewCategoryCache 创建分类缓存 */
func NewCategoryCache(ttl time.Duration, now Clock) *CategoryCache {
	if now == nil {
		now = time.Now
	}
	c := &CategoryCache{now: now}
	c.ttl.Store(ttl)
	return c
}

/* SetTTL 修改有效期，已缓存条目按新值判断 */
func (c *CategoryCache) SetTTL(ttl time.Duration) { c.ttl.Store(ttl) }

func categoryKey(api, name string) string {
	return api + "|" + name
}

/* Get 读取未过期的缓存 */
func (c *CategoryCache) Get(api, name string) ([]string, bool) {
	v, ok := c.entries.Load(categoryKey(api, name))
	if !ok {
		return nil, false
	}
	e := v.(*CategoryCacheEntry)
	if c.now().Sub(e.Timestamp) >= c.ttl.Load() {
		c.entries.CompareAndDelete(categoryKey(api, name), v)
		return nil, false
	}
	return e.Categories, true
}

/* Put 写入缓存 */
func (c *CategoryCache) Put(src models.SourceConfig, categories []string) {
	c.entries.Store(categoryKey(src.API, src.Name), &CategoryCacheEntry{
		SourceKey:  src.Key,
		Categories: categories,
		Timestamp:  c.now(),
	})
}

/* Len 当前条目数（含已过期未清理的） */
func (c *CategoryCache) Len() int {
	n := 0
	c.entries.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

/* 拉取失败分类，仅用于日志与指标 */
const (
	fetchOK         = "ok"
	fetchTimeout    = "timeout"
	fetchDNS        = "dns"
	fetchConnection = "connection"
	fetchHTTPStatus = "http_status"
	fetchMalformed  = "malformed"
)

/* fetchError 带分类的拉取错误 */
type fetchError struct {
	class string
	err   error
}

func (e *fetchError) Error() string { return e.class + ": " + e.err.Error() }
func (e *fetchError) Unwrap() error { return e.err }

/*
classifyFetchError 把网络错误归类为 timeout / dns / connection
*/
func classifyFetchError(err error) string {
	var dnsErr *net.DNSError
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return fetchTimeout
	case errors.As(err, &dnsErr):
		return fetchDNS
	case errors.As(err, &netErr) && netErr.Timeout():
		return fetchTimeout
	default:
		return fetchConnection
	}
}

/*
MaturityFilter 成人内容过滤器
nil 表示不过滤
*/
type MaturityFilter struct {
	words []string
}

/*
NewMaturityFilter 判断当前身份是否需要过滤
同时满足：过滤词非空、未全局关闭、不是站长、所持用户组中至少一个显式开启过滤
*/
func NewMaturityFilter(cfg *models.AdminConfig, user *models.User, ownerUsername string) *MaturityFilter {
	site := cfg.SiteConfig
	if len(site.YellowWords) == 0 || site.DisableYellowFilter || user == nil || IsOwner(user, ownerUsername) {
		return nil
	}
	optIn := false
	for _, name := range user.Tags {
		if tag, ok := cfg.FindTag(name); ok && tag.EnableYellowFilter {
			optIn = true
			break
		}
	}
	if !optIn {
		return nil
	}

	words := make([]string, 0, len(site.YellowWords))
	for _, w := range site.YellowWords {
		if w = strings.ToLower(strings.TrimSpace(w)); w != "" {
			words = append(words, w)
		}
	}
	if len(words) == 0 {
		return nil
	}
	return &MaturityFilter{words: words}
}

/* Apply 去掉包含过滤词的分类 */
func (f *MaturityFilter) Apply(categories []string) []string {
	if f == nil {
		return categories
	}
	out := make([]string, 0, len(categories))
	for _, c := range categories {
		if !f.matches(c) {
			out = append(out, c)
		}
	}
	return out
}

func (f *MaturityFilter) matches(category string) bool {
	lower := strings.ToLower(category)
	for _, w := range f.words {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}

/*
CategoryEnricher 分类增强
功能：为 JSON 类型站点拉取远程分类列表。所有拉取共享一个进程级并发闸门，
避免大量并发配置请求放大出站连接数。拉取失败统一回退到默认分类，且不写缓存。
*/
type CategoryEnricher struct {
	client   *http.Client
	gate     *semaphore.Weighted
	cache    *CategoryCache
	logger   *zap.Logger
	obs      *metrics.Observer

	mu       sync.RWMutex
	timeout  time.Duration
	defaults []string
}

/* NewCategoryEnricher 创建分类增强器 */
func NewCategoryEnricher(cfg config.CategoryConfig, client *http.Client, now Clock, obs *metrics.Observer) *CategoryEnricher {
	if client == nil {
		client = &http.Client{}
	}
	size := cfg.Concurrency
	if size <= 0 {
		size = 10
	}
	e := &CategoryEnricher{
		client: client,
		gate:   semaphore.NewWeighted(int64(size)),
		cache:  NewCategoryCache(config.Seconds(cfg.CacheTTL, time.Hour), now),
		logger: zap.L().Named("category"),
		obs:    obs,
	}
	e.Configure(cfg)
	return e
}

/*
Configure 热更新超时、缓存有效期与默认分类
闸门容量在创建时确定，修改 concurrency 需要重启
*/
func (e *CategoryEnricher) Configure(cfg config.CategoryConfig) {
	defaults := cfg.Defaults
	if len(defaults) == 0 {
		defaults = config.DefaultConfig().Category.Defaults
	}
	e.cache.SetTTL(config.Seconds(cfg.CacheTTL, time.Hour))

	e.mu.Lock()
	e.timeout = config.Seconds(cfg.Timeout, 5*time.Second)
	e.defaults = append([]string(nil), defaults...)
	e.mu.Unlock()
}

func (e *CategoryEnricher) settings() (time.Duration, []string) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.timeout, e.defaults
}

/* Cache 返回底层缓存 */
func (e *CategoryEnricher) Cache() *CategoryCache { return e.cache }

/* Enrichable 只有 http(s) 的 JSON 站点才拉取分类 */
func Enrichable(src models.SourceConfig, t SiteType) bool {
	if t != SiteTypeJSON {
		return false
	}
	api := strings.ToLower(src.API)
	return strings.HasPrefix(api, "http://") || strings.HasPrefix(api, "https://")
}

/*
CategoriesFor 获取单个源的分类
缓存命中直接返回；未命中时经闸门拉取，失败返回默认分类。最后应用内容过滤。
*/
func (e *CategoryEnricher) CategoriesFor(ctx context.Context, src models.SourceConfig, filter *MaturityFilter) []string {
	if cats, ok := e.cache.Get(src.API, src.Name); ok {
		e.obs.CategoryCache(true)
		return filter.Apply(cats)
	}
	e.obs.CategoryCache(false)

	cats, err := e.fetch(ctx, src)
	if err != nil {
		class := fetchConnection
		var fe *fetchError
		if errors.As(err, &fe) {
			class = fe.class
		}
		e.obs.CategoryFetch(class)
		e.logger.Warn("分类拉取失败，使用默认分类",
			zap.String("source", src.Name),
			zap.String("class", class),
			zap.Error(err))
		_, defaults := e.settings()
		return filter.Apply(append([]string(nil), defaults...))
	}

	e.obs.CategoryFetch(fetchOK)
	e.cache.Put(src, cats)
	return filter.Apply(cats)
}

/*
Enrich 并发为多个源获取分类
结果按输入位置收集，与完成顺序无关；不需要分类的位置为 nil。
*/
func (e *CategoryEnricher) Enrich(ctx context.Context, sources []models.SourceConfig, types []SiteType, filter *MaturityFilter) [][]string {
	out := make([][]string, len(sources))
	var g errgroup.Group
	for i := range sources {
		if !Enrichable(sources[i], types[i]) {
			continue
		}
		g.Go(func() error {
			out[i] = e.CategoriesFor(ctx, sources[i], filter)
			return nil
		})
	}
	_ = g.Wait()
	return out
}

/* cmsClassList 苹果 CMS ac=list 响应 */
type cmsClassList struct {
	Class []struct {
		TypeID   json.RawMessage `json:"type_id"`
		TypeName string          `json:"type_name"`
	} `json:"class"`
}

/*
fetch 拉取远程分类
超时从排队等待闸门时开始计算，单次尝试不重试
*/
func (e *CategoryEnricher) fetch(ctx context.Context, src models.SourceConfig) ([]string, error) {
	timeout, _ := e.settings()
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := e.gate.Acquire(ctx, 1); err != nil {
		return nil, &fetchError{class: fetchTimeout, err: err}
	}
	e.obs.GateAcquired()
	defer func() {
		e.gate.Release(1)
		e.obs.GateReleased()
	}()

	sep := "?"
	if strings.Contains(src.API, "?") {
		sep = "&"
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.API+sep+"ac=list", nil)
	if err != nil {
		return nil, &fetchError{class: fetchMalformed, err: err}
	}
	req.Header.Set("User-Agent", "okhttp/3.15")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, &fetchError{class: classifyFetchError(err), err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &fetchError{class: fetchHTTPStatus, err: fmt.Errorf("status %d", resp.StatusCode)}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 2<<20))
	if err != nil {
		return nil, &fetchError{class: classifyFetchError(err), err: err}
	}

	var list cmsClassList
	if err := json.Unmarshal(body, &list); err != nil {
		return nil, &fetchError{class: fetchMalformed, err: err}
	}
	cats := make([]string, 0, len(list.Class))
	for _, c := range list.Class {
		if name := strings.TrimSpace(c.TypeName); name != "" {
			cats = append(cats, name)
		}
	}
	if len(cats) == 0 {
		return nil, &fetchError{class: fetchMalformed, err: errors.New("empty class list")}
	}
	return cats, nil
}

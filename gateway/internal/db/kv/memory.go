package kv

import (
	"context"
	"strconv"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

/*
MemoryStore 进程内实现
功能：未配置 Redis 时使用；基于 go-cache，过期键由其后台 janitor 清理。
Incr 与 Expire 需要读改写，使用互斥锁保证与 Redis 一致的原子语义。
*/
type MemoryStore struct {
	c  *gocache.Cache
	mu sync.Mutex
}

/* NewMemoryStore 创建进程内存储 */
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{c: gocache.New(gocache.NoExpiration, 5*time.Minute)}
}

func (m *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	v, ok := m.c.Get(key)
	if !ok {
		return "", false, nil
	}
	switch val := v.(type) {
	case string:
		return val, true, nil
	case int64:
		return strconv.FormatInt(val, 10), true, nil
	default:
		return "", false, nil
	}
}

func (m *MemoryStore) Set(_ context.Context, key, value string, ttl time.Duration) error {
	m.c.Set(key, value, normalizeTTL(ttl))
	return nil
}

/*
Incr 自增，键不存在时从 0 开始且不过期（与 Redis INCR 一致）
*/
func (m *MemoryStore) Incr(_ context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, exp, ok := m.c.GetWithExpiration(key)
	var n int64
	if ok {
		switch val := v.(type) {
		case int64:
			n = val
		case string:
			parsed, err := strconv.ParseInt(val, 10, 64)
			if err != nil {
				return 0, err
			}
			n = parsed
		}
	}
	n++

	ttl := gocache.NoExpiration
	if ok && !exp.IsZero() {
		ttl = time.Until(exp)
	}
	m.c.Set(key, n, ttl)
	return n, nil
}

/* IncrWindow 自增，键不存在时同时设置过期时间 */
func (m *MemoryStore) IncrWindow(_ context.Context, key string, ttl time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if v, exp, ok := m.c.GetWithExpiration(key); ok {
		if n, isInt := v.(int64); isInt {
			n++
			remaining := gocache.NoExpiration
			if !exp.IsZero() {
				remaining = time.Until(exp)
			}
			m.c.Set(key, n, remaining)
			return n, nil
		}
	}
	m.c.Set(key, int64(1), normalizeTTL(ttl))
	return 1, nil
}

func (m *MemoryStore) Expire(_ context.Context, key string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, ok := m.c.Get(key)
	if !ok {
		return nil
	}
	m.c.Set(key, v, normalizeTTL(ttl))
	return nil
}

func (m *MemoryStore) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		m.c.Delete(k)
	}
	return nil
}

func (m *MemoryStore) Ping(context.Context) error { return nil }

func (m *MemoryStore) Name() string { return "memory" }

func normalizeTTL(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return gocache.NoExpiration
	}
	return ttl
}

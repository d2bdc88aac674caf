package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"vidora/gateway/internal/db/models"
)

/* fakeClock 可手动推进的时钟 */
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

/*
memConfigStore 内存配置存储
saveErr 非空时 Save 返回该错误；saves 记录成功保存次数
*/
type memConfigStore struct {
	mu          sync.Mutex
	cfg         *models.AdminConfig
	saveErr     error
	loadErr     error
	saves       int
	invalidated int
}

func newMemConfigStore(cfg *models.AdminConfig) *memConfigStore {
	return &memConfigStore{cfg: cfg}
}

func (m *memConfigStore) Load(ctx context.Context) (*models.AdminConfig, error) {
	return m.LoadFresh(ctx)
}

func (m *memConfigStore) LoadFresh(context.Context) (*models.AdminConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	return m.cfg.Clone(), nil
}

func (m *memConfigStore) Save(_ context.Context, cfg *models.AdminConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.cfg = cfg.Clone()
	m.saves++
	return nil
}

func (m *memConfigStore) Invalidate() {
	m.mu.Lock()
	m.invalidated++
	m.mu.Unlock()
}

func (m *memConfigStore) snapshot() *models.AdminConfig {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cfg.Clone()
}

var errStoreDown = errors.New("store down")

/* failingKV 所有操作都返回错误的 KV */
type failingKV struct{}

func (failingKV) Get(context.Context, string) (string, bool, error) { return "", false, errStoreDown }
func (failingKV) Set(context.Context, string, string, time.Duration) error {
	return errStoreDown
}
func (failingKV) Incr(context.Context, string) (int64, error) { return 0, errStoreDown }
func (failingKV) IncrWindow(context.Context, string, time.Duration) (int64, error) {
	return 0, errStoreDown
}
func (failingKV) Expire(context.Context, string, time.Duration) error {
	return errStoreDown
}
func (failingKV) Del(context.Context, ...string) error { return errStoreDown }
func (failingKV) Ping(context.Context) error           { return errStoreDown }
func (failingKV) Name() string                         { return "failing" }

/* gatewayStatus 取出 *GatewayError 的状态码，其他错误返回 0 */
func gatewayStatus(err error) (int, string) {
	var ge *GatewayError
	if errors.As(err, &ge) {
		return ge.Status, ge.Code
	}
	return 0, ""
}

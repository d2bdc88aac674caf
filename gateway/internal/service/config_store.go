package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"vidora/gateway/internal/config"
	"vidora/gateway/internal/db/dao"
	"vidora/gateway/internal/db/models"

	"go.uber.org/zap"
)

/* AdminConfigKey 管理配置在 system_settings 表中的 key */
const AdminConfigKey = "admin_config"

/* Clock 可注入的时间源，测试中用于控制 TTL */
type Clock func() time.Time

/*
ConfigStore 管理配置读写协作方
Load 可以返回缓存副本；LoadFresh 绕过缓存直接读取存储，设备绑定临界区内使用。
网关对配置的任何修改都必须在 Save 之后调用 Invalidate。
*/
type ConfigStore interface {
	Load(ctx context.Context) (*models.AdminConfig, error)
	LoadFresh(ctx context.Context) (*models.AdminConfig, error)
	Save(ctx context.Context, cfg *models.AdminConfig) error
	Invalidate()
}

/*
SettingsConfigStore 基于 system_settings 表的配置存储
功能：整份管理配置以 JSON 保存在一行中，读取结果在进程内缓存 ttl 时长；
表中尚无配置时使用 YAML 中的默认安全策略构造初始配置。
*/
type SettingsConfigStore struct {
	dao    *dao.DAO
	ttl    time.Duration
	now    Clock
	logger *zap.Logger

	mu       sync.RWMutex
	cached   *models.AdminConfig
	cachedAt time.Time
	defaults config.DefaultSecurity
	siteName string
}

/* NewSettingsConfigStore 创建配置存储 */
func NewSettingsConfigStore(d *dao.DAO, gw config.GatewayConfig, now Clock) *SettingsConfigStore {
	if now == nil {
		now = time.Now
	}
	return &SettingsConfigStore{
		dao:      d,
		ttl:      config.Seconds(gw.ConfigCacheTTL, 30*time.Second),
		now:      now,
		logger:   zap.L().Named("config-store"),
		defaults: gw.DefaultSecurity,
		siteName: gw.SiteName,
	}
}

/*
SetDefaults 热更新默认安全策略
只影响尚未保存管理配置时的读取结果
*/
func (s *SettingsConfigStore) SetDefaults(gw config.GatewayConfig) {
	s.mu.Lock()
	s.defaults = gw.DefaultSecurity
	s.siteName = gw.SiteName
	s.cached = nil
	s.mu.Unlock()
}

func (s *SettingsConfigStore) Load(ctx context.Context) (*models.AdminConfig, error) {
	s.mu.RLock()
	if s.cached != nil && s.now().Sub(s.cachedAt) < s.ttl {
		cfg := s.cached.Clone()
		s.mu.RUnlock()
		return cfg, nil
	}
	s.mu.RUnlock()

	cfg, err := s.LoadFresh(ctx)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.cached = cfg.Clone()
	s.cachedAt = s.now()
	s.mu.Unlock()
	return cfg, nil
}

func (s *SettingsConfigStore) LoadFresh(ctx context.Context) (*models.AdminConfig, error) {
	setting, err := s.dao.GetSystemSetting(AdminConfigKey)
	if err != nil {
		return nil, fmt.Errorf("读取管理配置失败: %w", err)
	}
	if setting == nil {
		return s.bootstrapConfig(), nil
	}

	var cfg models.AdminConfig
	if err := json.Unmarshal([]byte(setting.Value), &cfg); err != nil {
		return nil, fmt.Errorf("解析管理配置失败: %w", err)
	}
	return &cfg, nil
}

func (s *SettingsConfigStore) Save(ctx context.Context, cfg *models.AdminConfig) error {
	data, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("序列化管理配置失败: %w", err)
	}
	setting := &models.SystemSetting{
		Category: "admin",
		Key:      AdminConfigKey,
		Value:    string(data),
		Type:     "json",
	}
	if err := s.dao.UpsertSystemSetting(setting); err != nil {
		return fmt.Errorf("保存管理配置失败: %w", err)
	}
	return nil
}

func (s *SettingsConfigStore) Invalidate() {
	s.mu.Lock()
	s.cached = nil
	s.mu.Unlock()
}

/* bootstrapConfig 首次运行（管理员尚未保存任何配置）时的初始配置 */
func (s *SettingsConfigStore) bootstrapConfig() *models.AdminConfig {
	s.mu.RLock()
	d := s.defaults
	name := s.siteName
	s.mu.RUnlock()

	return &models.AdminConfig{
		SiteConfig: models.SiteConfig{SiteName: name},
		SecurityConfig: models.SecurityConfig{
			EnableAuth:               d.EnableAuth,
			EnableRateLimit:          d.EnableRateLimit,
			RateLimit:                d.RateLimit,
			EnableDeviceBinding:      d.EnableDeviceBinding,
			MaxDevices:               d.MaxDevices,
			EnableUserAgentWhitelist: d.EnableUserAgentWhitelist,
			AllowedUserAgents:        append([]string(nil), d.AllowedUserAgents...),
		},
	}
}

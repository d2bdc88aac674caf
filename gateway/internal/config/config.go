package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config 全局配置
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Log      LogConfig      `yaml:"log"`
	Gateway  GatewayConfig  `yaml:"gateway"`
	Spider   SpiderConfig   `yaml:"spider"`
	Category CategoryConfig `yaml:"category"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Host         string `yaml:"host"`
	Port         int    `yaml:"port"`
	Mode         string `yaml:"mode"` // debug, release
	ReadTimeout  int    `yaml:"read_timeout"`
	WriteTimeout int    `yaml:"write_timeout"`

	/* 诊断接口等管理端点的 CORS 白名单；TVBox 配置接口始终放行所有来源 */
	CORSAllowedOrigins []string `yaml:"cors_allowed_origins"`

	/* 可信反向代理（IP 或 CIDR），只有来自这些地址的 X-Forwarded-For 才被采信；默认不信任任何代理 */
	TrustedProxies []string `yaml:"trusted_proxies"`
}

// DatabaseConfig 数据库配置（管理配置 JSON 的持久化位置）
type DatabaseConfig struct {
	Type     string `yaml:"type"` // sqlite, mysql, postgres
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"db_name"`
	SSLMode  string `yaml:"ssl_mode"`
	Charset  string `yaml:"charset"`

	SQLitePath string `yaml:"sqlite_path"`

	MaxOpenConns int `yaml:"max_open_conns"`
	MaxIdleConns int `yaml:"max_idle_conns"`

	LogLevel string `yaml:"log_level"` // silent, error, warn, info
}

// RedisConfig Redis配置，Addr 为空时使用进程内 KV
type RedisConfig struct {
	Addr         string `yaml:"addr"`
	Password     string `yaml:"password"`
	DB           int    `yaml:"db"`
	PoolSize     int    `yaml:"pool_size"`
	MinIdleConns int    `yaml:"min_idle_conns"`
	MaxRetries   int    `yaml:"max_retries"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	OutputPath string `yaml:"output_path"`
	MaxSize    int    `yaml:"max_size"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAge     int    `yaml:"max_age"`
	Compress   bool   `yaml:"compress"`
}

/*
GatewayConfig TVBox 网关配置
功能：自引用 URL 的基础地址、站长账号，以及管理员尚未保存配置时使用的默认安全策略
*/
type GatewayConfig struct {
	BaseURL       string `yaml:"base_url"`       /* 构造本地镜像/解析代理地址，空则按请求推导 */
	OwnerUsername string `yaml:"owner_username"` /* 站长账号，拥有最高角色 */
	SiteName      string `yaml:"site_name"`
	Wallpaper     string `yaml:"wallpaper"`
	Logo          string `yaml:"logo"`

	DefaultSecurity DefaultSecurity `yaml:"default_security"`

	/* 影视仓模式替换的解析地址 */
	YingshicangParses []string `yaml:"yingshicang_parses"`

	/* 管理配置内存缓存时长（秒） */
	ConfigCacheTTL int `yaml:"config_cache_ttl"`
}

// DefaultSecurity 首次运行时的默认安全策略
type DefaultSecurity struct {
	EnableAuth               bool     `yaml:"enable_auth"`
	EnableRateLimit          bool     `yaml:"enable_rate_limit"`
	RateLimit                int      `yaml:"rate_limit"` /* 每分钟请求数 */
	EnableDeviceBinding      bool     `yaml:"enable_device_binding"`
	MaxDevices               int      `yaml:"max_devices"`
	EnableUserAgentWhitelist bool     `yaml:"enable_user_agent_whitelist"`
	AllowedUserAgents        []string `yaml:"allowed_user_agents"`
}

// SpiderConfig spider jar 解析配置
type SpiderConfig struct {
	Candidates []string `yaml:"candidates"` /* 按优先级排列的远程地址 */
	Timeout    int      `yaml:"timeout"`    /* 单个候选下载超时（秒） */
	MinSize    int      `yaml:"min_size"`   /* 低于该字节数视为损坏 */
	CacheTTL   int      `yaml:"cache_ttl"`  /* 解析结果缓存（秒） */
	WarmCron   string   `yaml:"warm_cron"`  /* 定时预热，空则关闭 */
	ProbeTTL   int      `yaml:"probe_timeout"`
}

// CategoryConfig 分类增强配置
type CategoryConfig struct {
	Timeout     int      `yaml:"timeout"`   /* 单源分类请求超时（秒） */
	CacheTTL    int      `yaml:"cache_ttl"` /* 分类缓存（秒） */
	Concurrency int      `yaml:"concurrency"`
	Defaults    []string `yaml:"defaults"` /* 拉取失败时的默认分类 */
}

// LoadConfig 从文件加载配置
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyEnv()
	cfg.warnInsecureDefaults()
	return cfg, nil
}

/*
applyEnv 环境变量覆盖
功能：容器部署时无需改动配置文件即可调整基础地址、站长账号、Redis 和 UA 白名单
*/
func (c *Config) applyEnv() {
	if v := strings.TrimSpace(os.Getenv("SITE_BASE_URL")); v != "" {
		c.Gateway.BaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv("VIDORA_OWNER")); v != "" {
		c.Gateway.OwnerUsername = v
	}
	if v := strings.TrimSpace(os.Getenv("REDIS_ADDR")); v != "" {
		c.Redis.Addr = v
	}
	if v := strings.TrimSpace(os.Getenv("TVBOX_ALLOWED_UA")); v != "" {
		var uas []string
		for _, ua := range strings.Split(v, ",") {
			if ua = strings.TrimSpace(ua); ua != "" {
				uas = append(uas, ua)
			}
		}
		c.Gateway.DefaultSecurity.AllowedUserAgents = uas
	}
	c.Gateway.BaseURL = strings.TrimRight(c.Gateway.BaseURL, "/")
}

/*
warnInsecureDefaults 检查生产环境下的危险默认值
*/
func (c *Config) warnInsecureDefaults() {
	if c.Server.Mode != "release" {
		return
	}

	if !c.Gateway.DefaultSecurity.EnableAuth {
		fmt.Println("[SECURITY WARNING] 默认安全策略未启用 Token 认证，TVBox 配置接口对所有人开放")
	}
	if c.Gateway.BaseURL == "" {
		fmt.Println("[SECURITY WARNING] 未配置 gateway.base_url，本地镜像地址将根据请求 Host 推导")
	}
	for _, o := range c.Server.CORSAllowedOrigins {
		if o == "*" {
			fmt.Println("[SECURITY WARNING] 管理端点 CORS 允许所有来源（*），请配置 server.cors_allowed_origins")
			break
		}
	}
}

// LoadConfigOrDefault 加载配置或使用默认值
func LoadConfigOrDefault(path string) *Config {
	if path == "" {
		cfg := DefaultConfig()
		cfg.applyEnv()
		return cfg
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		fmt.Printf("Failed to load config: %v, using defaults\n", err)
		cfg = DefaultConfig()
		cfg.applyEnv()
	}

	return cfg
}

// DefaultConfig 默认配置
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:               "0.0.0.0",
			Port:               3000,
			Mode:               "debug",
			ReadTimeout:        30,
			WriteTimeout:       60,
			CORSAllowedOrigins: []string{"*"},
		},
		Database: DatabaseConfig{
			Type:         "sqlite",
			SQLitePath:   "./data/vidora.db",
			Host:         "localhost",
			Port:         3306,
			User:         "root",
			DBName:       "vidora",
			SSLMode:      "disable",
			Charset:      "utf8mb4",
			MaxOpenConns: 10,
			MaxIdleConns: 2,
			LogLevel:     "warn",
		},
		Redis: RedisConfig{
			PoolSize:     10,
			MinIdleConns: 2,
			MaxRetries:   1,
		},
		Log: LogConfig{
			Level:      "info",
			Format:     "console",
			OutputPath: "./logs/vidora.log",
			MaxSize:    50,
			MaxBackups: 5,
			MaxAge:     14,
			Compress:   true,
		},
		Gateway: GatewayConfig{
			SiteName: "Vidora",
			DefaultSecurity: DefaultSecurity{
				EnableAuth:               false,
				EnableRateLimit:          false,
				RateLimit:                60,
				EnableDeviceBinding:      false,
				MaxDevices:               1,
				EnableUserAgentWhitelist: false,
				AllowedUserAgents: []string{
					"okhttp", "TVBox", "影视仓", "Dalvik", "FongMi", "CatVod",
				},
			},
			YingshicangParses: []string{
				"https://jx.xmflv.com/?url=",
				"https://jx.m3u8.tv/jiexi/?url=",
			},
			ConfigCacheTTL: 30,
		},
		Spider: SpiderConfig{
			Candidates: []string{
				"https://raw.githubusercontent.com/FongMi/CatVodSpider/main/jar/custom_spider.jar",
				"https://ghproxy.net/https://raw.githubusercontent.com/FongMi/CatVodSpider/main/jar/custom_spider.jar",
				"https://cdn.jsdelivr.net/gh/FongMi/CatVodSpider@main/jar/custom_spider.jar",
			},
			Timeout:  10,
			MinSize:  1000,
			CacheTTL: 4 * 3600,
			WarmCron: "@every 30m",
			ProbeTTL: 5,
		},
		Category: CategoryConfig{
			Timeout:     5,
			CacheTTL:    3600,
			Concurrency: 10,
			Defaults:    []string{"电影", "电视剧", "综艺", "动漫", "纪录片"},
		},
	}
}

/* Seconds 把配置中的秒数转换为 Duration，非正数时使用兜底值 */
func Seconds(v int, fallback time.Duration) time.Duration {
	if v <= 0 {
		return fallback
	}
	return time.Duration(v) * time.Second
}

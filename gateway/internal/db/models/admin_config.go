package models

import (
	"encoding/json"
	"time"
)

/*
AdminConfig 管理配置
功能：管理后台维护的整份配置，网关只读取，唯一的写入是设备自动绑定追加。
以 JSON 整体序列化到 system_settings 表。
*/
type AdminConfig struct {
	SiteConfig     SiteConfig     `json:"siteConfig"`
	UserConfig     UserConfig     `json:"userConfig"`
	SourceConfig   []SourceConfig `json:"sourceConfig"`
	LiveConfig     []LiveConfig   `json:"liveConfig"`
	ParseConfig    []ParseConfig  `json:"parseConfig"`
	SecurityConfig SecurityConfig `json:"tvboxSecurityConfig"`
}

// SiteConfig 站点级开关
type SiteConfig struct {
	SiteName            string   `json:"siteName"`
	YellowWords         []string `json:"yellowWords"`         /* 成人内容过滤词 */
	DisableYellowFilter bool     `json:"disableYellowFilter"` /* 全局关闭过滤 */
	CustomSpiderJar     string   `json:"customSpiderJar"`     /* 管理员自定义 spider 地址，须为公网地址 */
	Wallpaper           string   `json:"wallpaper"`
}

// UserConfig 用户与用户组
type UserConfig struct {
	Users []User    `json:"users"`
	Tags  []UserTag `json:"tags"`
}

/*
UserRole 用户角色
*/
type UserRole string

const (
	RoleOwner UserRole = "owner"
	RoleAdmin UserRole = "admin"
	RoleUser  UserRole = "user"
)

/*
User 用户（只含权限解析需要的字段，凭据存储不在网关范围内）
*/
type User struct {
	Username     string   `json:"username"`
	Role         UserRole `json:"role"`
	Banned       bool     `json:"banned,omitempty"`
	Tags         []string `json:"tags,omitempty"`
	VideoSources []string `json:"videoSources,omitempty"` /* 直接授权的源 key */
}

/*
UserTag 用户组
功能：一组视频源授权与功能开关，用户权限取所持全部组的并集
*/
type UserTag struct {
	Name               string   `json:"name"`
	VideoSources       []string `json:"videoSources"`
	EnableYellowFilter bool     `json:"enableYellowFilter,omitempty"`
}

/*
SourceConfig 视频源
Detail 为原样保存的字符串，可能是携带 type/jar/ext 覆盖的 JSON
*/
type SourceConfig struct {
	Key      string `json:"key"`
	Name     string `json:"name"`
	API      string `json:"api"`
	Detail   string `json:"detail,omitempty"`
	Disabled bool   `json:"disabled,omitempty"`
}

// LiveConfig 直播源
type LiveConfig struct {
	Key      string `json:"key"`
	Name     string `json:"name"`
	URL      string `json:"url"`
	UA       string `json:"ua,omitempty"`
	EPG      string `json:"epg,omitempty"`
	Disabled bool   `json:"disabled,omitempty"`
}

// ParseConfig 外部解析接口
type ParseConfig struct {
	Name     string `json:"name"`
	URL      string `json:"url"`
	Type     int    `json:"type"`
	Disabled bool   `json:"disabled,omitempty"`
}

/*
SecurityConfig TVBox 安全配置
Token 为旧版全局 token，仅作兼容，不对应具体用户
*/
type SecurityConfig struct {
	EnableAuth               bool        `json:"enableAuth"`
	Token                    string      `json:"token,omitempty"`
	EnableRateLimit          bool        `json:"enableRateLimit"`
	RateLimit                int         `json:"rateLimit"`
	EnableDeviceBinding      bool        `json:"enableDeviceBinding"`
	MaxDevices               int         `json:"maxDevices"`
	EnableUserAgentWhitelist bool        `json:"enableUserAgentWhitelist"`
	AllowedUserAgents        []string    `json:"allowedUserAgents"`
	UserTokens               []UserToken `json:"userTokens,omitempty"`
}

/*
UserToken 用户 token
Enabled=false 时 token 失效但不删除
*/
type UserToken struct {
	Username string          `json:"username"`
	Token    string          `json:"token"`
	Enabled  bool            `json:"enabled"`
	Devices  []DeviceBinding `json:"devices"`
}

/*
DeviceBinding 设备绑定
每个 token 每台新设备只创建一次，网关从不修改或删除
*/
type DeviceBinding struct {
	DeviceID   string    `json:"deviceId"`
	DeviceInfo string    `json:"deviceInfo"`
	BindTime   time.Time `json:"bindTime"`
}

/* FindUser 按用户名查找用户 */
func (c *AdminConfig) FindUser(username string) (*User, bool) {
	for i := range c.UserConfig.Users {
		if c.UserConfig.Users[i].Username == username {
			return &c.UserConfig.Users[i], true
		}
	}
	return nil, false
}

/* HasDevice 检查 token 是否已绑定指定设备 */
func (t *UserToken) HasDevice(deviceID string) bool {
	for _, d := range t.Devices {
		if d.DeviceID == deviceID {
			return true
		}
	}
	return false
}

/*
Clone 深拷贝
缓存中的配置会被多个请求共享，设备绑定前必须先拷贝再修改
*/
func (c *AdminConfig) Clone() *AdminConfig {
	data, err := json.Marshal(c)
	if err != nil {
		return &AdminConfig{}
	}
	var out AdminConfig
	if err := json.Unmarshal(data, &out); err != nil {
		return &AdminConfig{}
	}
	return &out
}

/* EnabledSources 按原顺序返回未禁用的视频源 */
func (c *AdminConfig) EnabledSources() []SourceConfig {
	out := make([]SourceConfig, 0, len(c.SourceConfig))
	for _, s := range c.SourceConfig {
		if !s.Disabled {
			out = append(out, s)
		}
	}
	return out
}

/* FindTag 按名称查找用户组 */
func (c *AdminConfig) FindTag(name string) (*UserTag, bool) {
	for i := range c.UserConfig.Tags {
		if c.UserConfig.Tags[i].Name == name {
			return &c.UserConfig.Tags[i], true
		}
	}
	return nil, false
}

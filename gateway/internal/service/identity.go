package service

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"
	"sync"
	"time"

	"vidora/gateway/internal/db/models"
	"vidora/gateway/internal/metrics"

	"go.uber.org/zap"
)

/* ClientInfo 从请求中提取的客户端信息 */
type ClientInfo struct {
	IP        string
	Token     string
	UserAgent string
	Platform  string
}

/*
Identity 安全管道解析出的身份
Username 为空表示匿名/默认身份；Legacy 表示通过旧版全局 token 认证，不对应具体用户。
*/
type Identity struct {
	Username      string `json:"username,omitempty"`
	Authenticated bool   `json:"authenticated"`
	Legacy        bool   `json:"legacy,omitempty"`
	DeviceID      string `json:"deviceId,omitempty"`
	NewlyBound    bool   `json:"newlyBound,omitempty"`
	WouldBind     bool   `json:"wouldBind,omitempty"`
}

/*
IdentityEngine token 认证与设备自动绑定
功能：按顺序扫描用户 token 表（首个匹配生效），未匹配时兼容旧版全局 token；
启用设备绑定时为新设备自动登记，直到达到 maxDevices 上限。
*/
type IdentityEngine struct {
	store  ConfigStore
	now    Clock
	policy FailurePolicy
	logger *zap.Logger
	obs    *metrics.Observer

	/* 每个 token 一把锁，保证「检查上限 + 追加设备 + 保存」原子执行 */
	locks sync.Map
}

/* NewIdentityEngine 创建身份引擎 */
func NewIdentityEngine(store ConfigStore, now Clock, obs *metrics.Observer) *IdentityEngine {
	if now == nil {
		now = time.Now
	}
	return &IdentityEngine{
		store:  store,
		now:    now,
		policy: FailClosed,
		logger: zap.L().Named("identity"),
		obs:    obs,
	}
}

/*
Authenticate 执行认证与设备绑定
dryRun=true 时（诊断接口）只评估绑定结果，不追加设备也不写存储。
*/
func (e *IdentityEngine) Authenticate(ctx context.Context, cfg *models.AdminConfig, client ClientInfo, dryRun bool) (*Identity, error) {
	sec := cfg.SecurityConfig
	if !sec.EnableAuth && !sec.EnableDeviceBinding {
		return &Identity{}, nil
	}

	if client.Token == "" {
		return nil, deny(http.StatusUnauthorized, CodeMissingToken, "请在订阅地址中附带 token 参数")
	}

	ut := matchUserToken(sec.UserTokens, client.Token)
	if ut == nil {
		if sec.Token != "" && tokenEqual(sec.Token, client.Token) {
			return &Identity{Authenticated: true, Legacy: true}, nil
		}
		return nil, deny(http.StatusUnauthorized, CodeInvalidToken, "Invalid token")
	}

	if u, ok := cfg.FindUser(ut.Username); ok && u.Banned {
		return nil, deny(http.StatusForbidden, CodeUserBanned, "该账号已被封禁")
	}

	id := &Identity{Username: ut.Username, Authenticated: true}
	if !sec.EnableDeviceBinding {
		return id, nil
	}

	id.DeviceID = DeviceFingerprint(client.UserAgent, client.Platform)
	if ut.HasDevice(id.DeviceID) {
		return id, nil
	}

	if dryRun {
		if len(ut.Devices) >= maxDevices(sec) {
			return nil, deny(http.StatusForbidden, CodeDeviceNotAuthorized, "Device not authorized")
		}
		id.WouldBind = true
		return id, nil
	}

	if err := e.bind(ctx, ut.Username, client, id.DeviceID); err != nil {
		return nil, err
	}
	id.NewlyBound = true
	return id, nil
}

/*
bind 为 token 追加新设备
临界区内重新读取存储中的最新配置，再次检查是否已绑定以及是否超过上限，
保存失败按 FailClosed 终止请求。
*/
func (e *IdentityEngine) bind(ctx context.Context, username string, client ClientInfo, deviceID string) error {
	mu := e.lockFor(client.Token)
	mu.Lock()
	defer mu.Unlock()

	fresh, err := e.store.LoadFresh(ctx)
	if err != nil {
		e.obs.StoreFailure("device_bind_load", e.policy.String())
		e.policy.Apply(e.logger, "device_bind_load", err)
		return internal(CodeDeviceBindingFailed, "Device binding failed", err)
	}

	ut := matchUserToken(fresh.SecurityConfig.UserTokens, client.Token)
	if ut == nil || ut.Username != username {
		/* token 在两次读取之间被管理员停用或改派 */
		return deny(http.StatusUnauthorized, CodeInvalidToken, "Invalid token")
	}
	if ut.HasDevice(deviceID) {
		return nil
	}
	if len(ut.Devices) >= maxDevices(fresh.SecurityConfig) {
		e.logger.Info("设备数已达上限，拒绝绑定",
			zap.String("username", username),
			zap.Int("devices", len(ut.Devices)),
			zap.String("device_id", deviceID))
		return deny(http.StatusForbidden, CodeDeviceNotAuthorized, "Device not authorized")
	}

	ut.Devices = append(ut.Devices, models.DeviceBinding{
		DeviceID:   deviceID,
		DeviceInfo: "auto-bound - " + client.UserAgent,
		BindTime:   e.now(),
	})

	if err := e.store.Save(ctx, fresh); err != nil {
		e.obs.StoreFailure("device_bind_save", e.policy.String())
		e.policy.Apply(e.logger, "device_bind_save", err)
		return internal(CodeDeviceBindingFailed, "Device binding failed", err)
	}
	e.store.Invalidate()
	e.obs.DeviceBound()

	e.logger.Info("新设备已自动绑定",
		zap.String("username", username),
		zap.String("device_id", deviceID),
		zap.Int("devices", len(ut.Devices)))
	return nil
}

func (e *IdentityEngine) lockFor(token string) *sync.Mutex {
	v, _ := e.locks.LoadOrStore(token, &sync.Mutex{})
	return v.(*sync.Mutex)
}

/*
matchUserToken 顺序扫描 token 表，返回第一个启用且匹配的条目
不同用户持有相同 token 属于数据质量问题，按列表顺序决定归属
*/
func matchUserToken(tokens []models.UserToken, presented string) *models.UserToken {
	for i := range tokens {
		if tokens[i].Enabled && tokenEqual(tokens[i].Token, presented) {
			return &tokens[i]
		}
	}
	return nil
}

func tokenEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

/* maxDevices 未配置或非法时按 1 台处理 */
func maxDevices(sec models.SecurityConfig) int {
	if sec.MaxDevices <= 0 {
		return 1
	}
	return sec.MaxDevices
}

/*
CheckUserAgent UA 白名单检查
UA 包含任一白名单条目（忽略大小写）即放行；白名单为空时不做限制。
*/
func CheckUserAgent(sec models.SecurityConfig, userAgent string) error {
	if !sec.EnableUserAgentWhitelist || len(sec.AllowedUserAgents) == 0 {
		return nil
	}
	ua := strings.ToLower(userAgent)
	for _, allowed := range sec.AllowedUserAgents {
		allowed = strings.ToLower(strings.TrimSpace(allowed))
		if allowed != "" && strings.Contains(ua, allowed) {
			return nil
		}
	}
	return deny(http.StatusForbidden, CodeUANotAllowed, "当前客户端不在允许列表中，请使用 TVBox 等播放器访问")
}

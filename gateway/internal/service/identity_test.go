package service

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"testing"

	"vidora/gateway/internal/db/models"
)

func bindingConfig(maxDevices int) *models.AdminConfig {
	return &models.AdminConfig{
		UserConfig: models.UserConfig{
			Users: []models.User{{Username: "alice", Role: models.RoleUser}},
		},
		SecurityConfig: models.SecurityConfig{
			EnableAuth:          true,
			EnableDeviceBinding: true,
			MaxDevices:          maxDevices,
			UserTokens: []models.UserToken{
				{Username: "alice", Token: "tok-alice", Enabled: true},
			},
		},
	}
}

/*
TestAuthenticate_DeviceBindingScenario 测试单设备上限的完整流程：
F1 首次绑定成功，F2 被拒绝且不修改配置，F1 再次访问直接识别
*/
func TestAuthenticate_DeviceBindingScenario(t *testing.T) {
	store := newMemConfigStore(bindingConfig(1))
	e := NewIdentityEngine(store, nil, nil)
	ctx := context.Background()

	f1 := ClientInfo{Token: "tok-alice", UserAgent: "TVBox/1.0", Platform: "Android"}
	f2 := ClientInfo{Token: "tok-alice", UserAgent: "FongMi/2.0", Platform: "Android"}

	id, err := e.Authenticate(ctx, store.snapshot(), f1, false)
	if err != nil {
		t.Fatalf("F1 首次访问应成功: %v", err)
	}
	if id.Username != "alice" || !id.NewlyBound {
		t.Fatalf("F1 应绑定到 alice, 实际 %+v", id)
	}
	devices := store.snapshot().SecurityConfig.UserTokens[0].Devices
	if len(devices) != 1 || devices[0].DeviceID != DeviceFingerprint(f1.UserAgent, f1.Platform) {
		t.Fatalf("绑定后设备列表不符: %+v", devices)
	}
	if devices[0].DeviceInfo != "auto-bound - TVBox/1.0" {
		t.Errorf("deviceInfo 不符: %q", devices[0].DeviceInfo)
	}
	if store.invalidated != 1 {
		t.Errorf("绑定后应使配置缓存失效一次, 实际 %d", store.invalidated)
	}

	_, err = e.Authenticate(ctx, store.snapshot(), f2, false)
	if status, code := gatewayStatus(err); status != http.StatusForbidden || code != CodeDeviceNotAuthorized {
		t.Fatalf("F2 应返回 403 DEVICE_NOT_AUTHORIZED, 实际 %d %s", status, code)
	}
	if store.saves != 1 {
		t.Errorf("被拒绝的设备不应触发保存, saves=%d", store.saves)
	}

	id, err = e.Authenticate(ctx, store.snapshot(), f1, false)
	if err != nil {
		t.Fatalf("F1 再次访问应成功: %v", err)
	}
	if id.NewlyBound {
		t.Error("已绑定设备不应重复追加")
	}
	if store.saves != 1 {
		t.Errorf("已绑定设备不应再次保存, saves=%d", store.saves)
	}
}

/*
TestAuthenticate_DisabledToken 测试停用的 token 即使值匹配也认证失败
*/
func TestAuthenticate_DisabledToken(t *testing.T) {
	cfg := bindingConfig(1)
	cfg.SecurityConfig.EnableDeviceBinding = false
	cfg.SecurityConfig.UserTokens[0].Enabled = false
	e := NewIdentityEngine(newMemConfigStore(cfg), nil, nil)

	_, err := e.Authenticate(context.Background(), cfg, ClientInfo{Token: "tok-alice"}, false)
	if status, code := gatewayStatus(err); status != http.StatusUnauthorized || code != CodeInvalidToken {
		t.Fatalf("期望 401 INVALID_TOKEN, 实际 %d %s", status, code)
	}
}

func TestAuthenticate_MissingToken(t *testing.T) {
	cfg := bindingConfig(1)
	e := NewIdentityEngine(newMemConfigStore(cfg), nil, nil)
	_, err := e.Authenticate(context.Background(), cfg, ClientInfo{}, false)
	if status, code := gatewayStatus(err); status != http.StatusUnauthorized || code != CodeMissingToken {
		t.Fatalf("期望 401 MISSING_TOKEN, 实际 %d %s", status, code)
	}
}

/*
TestAuthenticate_FirstMatchWins 测试重复 token 按列表顺序归属
*/
func TestAuthenticate_FirstMatchWins(t *testing.T) {
	cfg := &models.AdminConfig{
		SecurityConfig: models.SecurityConfig{
			EnableAuth: true,
			UserTokens: []models.UserToken{
				{Username: "disabled", Token: "dup", Enabled: false},
				{Username: "bob", Token: "dup", Enabled: true},
				{Username: "carol", Token: "dup", Enabled: true},
			},
		},
	}
	e := NewIdentityEngine(newMemConfigStore(cfg), nil, nil)
	id, err := e.Authenticate(context.Background(), cfg, ClientInfo{Token: "dup"}, false)
	if err != nil {
		t.Fatal(err)
	}
	if id.Username != "bob" {
		t.Errorf("应匹配第一个启用的条目 bob, 实际 %q", id.Username)
	}
}

/*
TestAuthenticate_LegacyToken 测试旧版全局 token 兼容路径
*/
func TestAuthenticate_LegacyToken(t *testing.T) {
	cfg := &models.AdminConfig{
		SecurityConfig: models.SecurityConfig{EnableAuth: true, Token: "global"},
	}
	e := NewIdentityEngine(newMemConfigStore(cfg), nil, nil)
	id, err := e.Authenticate(context.Background(), cfg, ClientInfo{Token: "global"}, false)
	if err != nil {
		t.Fatal(err)
	}
	if !id.Legacy || id.Username != "" {
		t.Errorf("旧版 token 不应对应具体用户: %+v", id)
	}
}

func TestAuthenticate_SkippedWhenDisabled(t *testing.T) {
	cfg := &models.AdminConfig{}
	e := NewIdentityEngine(newMemConfigStore(cfg), nil, nil)
	id, err := e.Authenticate(context.Background(), cfg, ClientInfo{}, false)
	if err != nil || id.Authenticated {
		t.Fatalf("未启用认证时应返回匿名身份, id=%+v err=%v", id, err)
	}
}

func TestAuthenticate_BannedUser(t *testing.T) {
	cfg := bindingConfig(1)
	cfg.UserConfig.Users[0].Banned = true
	e := NewIdentityEngine(newMemConfigStore(cfg), nil, nil)
	_, err := e.Authenticate(context.Background(), cfg, ClientInfo{Token: "tok-alice"}, false)
	if status, code := gatewayStatus(err); status != http.StatusForbidden || code != CodeUserBanned {
		t.Fatalf("期望 403 USER_BANNED, 实际 %d %s", status, code)
	}
}

/*
TestAuthenticate_SaveFailureFailsClosed 测试绑定持久化失败时终止请求
*/
func TestAuthenticate_SaveFailureFailsClosed(t *testing.T) {
	store := newMemConfigStore(bindingConfig(2))
	store.saveErr = errStoreDown
	e := NewIdentityEngine(store, nil, nil)

	_, err := e.Authenticate(context.Background(), store.snapshot(),
		ClientInfo{Token: "tok-alice", UserAgent: "TVBox"}, false)
	if status, code := gatewayStatus(err); status != http.StatusInternalServerError || code != CodeDeviceBindingFailed {
		t.Fatalf("期望 500 DEVICE_BINDING_FAILED, 实际 %d %s", status, code)
	}
	if store.invalidated != 0 {
		t.Error("保存失败时不应使缓存失效")
	}
}

/*
TestAuthenticate_DryRunDoesNotBind 测试诊断模式只评估不写入
*/
func TestAuthenticate_DryRunDoesNotBind(t *testing.T) {
	store := newMemConfigStore(bindingConfig(1))
	e := NewIdentityEngine(store, nil, nil)

	id, err := e.Authenticate(context.Background(), store.snapshot(),
		ClientInfo{Token: "tok-alice", UserAgent: "TVBox"}, true)
	if err != nil {
		t.Fatal(err)
	}
	if !id.WouldBind || id.NewlyBound {
		t.Errorf("诊断模式应标记 WouldBind 而非真正绑定: %+v", id)
	}
	if store.saves != 0 || len(store.snapshot().SecurityConfig.UserTokens[0].Devices) != 0 {
		t.Error("诊断模式不应修改设备列表")
	}
}

/*
TestAuthenticate_ConcurrentBindingRespectsCap 测试并发绑定不会超过上限
*/
func TestAuthenticate_ConcurrentBindingRespectsCap(t *testing.T) {
	const maxDev = 3
	store := newMemConfigStore(bindingConfig(maxDev))
	e := NewIdentityEngine(store, nil, nil)
	stale := store.snapshot()

	var wg sync.WaitGroup
	var mu sync.Mutex
	accepted := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			/* 所有请求都基于同一份旧快照，只有临界区内的重新读取能发现上限 */
			_, err := e.Authenticate(context.Background(), stale,
				ClientInfo{Token: "tok-alice", UserAgent: fmt.Sprintf("device-%d", i)}, false)
			if err == nil {
				mu.Lock()
				accepted++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	devices := store.snapshot().SecurityConfig.UserTokens[0].Devices
	if len(devices) != maxDev {
		t.Errorf("绑定设备数应恰好为 %d, 实际 %d", maxDev, len(devices))
	}
	if accepted != maxDev {
		t.Errorf("成功请求数应为 %d, 实际 %d", maxDev, accepted)
	}
}

func TestCheckUserAgent(t *testing.T) {
	sec := models.SecurityConfig{
		EnableUserAgentWhitelist: true,
		AllowedUserAgents:        []string{"okhttp", "TVBox"},
	}
	if err := CheckUserAgent(sec, "okhttp/3.15"); err != nil {
		t.Errorf("okhttp 应放行: %v", err)
	}
	if err := CheckUserAgent(sec, "Mozilla/5.0 tvbox"); err != nil {
		t.Errorf("匹配应忽略大小写: %v", err)
	}
	err := CheckUserAgent(sec, "curl/8.0")
	if status, code := gatewayStatus(err); status != http.StatusForbidden || code != CodeUANotAllowed {
		t.Errorf("curl 应被拒绝, 实际 %d %s", status, code)
	}

	sec.EnableUserAgentWhitelist = false
	if err := CheckUserAgent(sec, "curl/8.0"); err != nil {
		t.Error("未启用白名单时应放行")
	}
}

package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"vidora/gateway/internal/config"
	"vidora/gateway/internal/db/kv"
	"vidora/gateway/internal/db/models"
)

const testBaseURL = "https://tv.example.com"

type gatewayFixture struct {
	gw    *Gateway
	store *memConfigStore
	clock *fakeClock
}

func newGatewayFixture(t *testing.T, cfg *models.AdminConfig, spiderCandidates ...string) *gatewayFixture {
	t.Helper()
	clock := newFakeClock()
	store := newMemConfigStore(cfg)
	kvStore := kv.NewMemoryStore()
	gw := NewGateway(config.GatewayConfig{OwnerUsername: "owner", Logo: testBaseURL + "/logo.png"}, GatewayDeps{
		Store:    store,
		Limiter:  NewRateLimiter(kvStore, clock.Now, nil),
		Identity: NewIdentityEngine(store, clock.Now, nil),
		Enricher: NewCategoryEnricher(config.CategoryConfig{Timeout: 2, Concurrency: 4, Defaults: []string{"默认"}}, nil, clock.Now, nil),
		Spider:   NewSpiderResolver(spiderConfig(spiderCandidates...), kvStore, nil, clock.Now, nil),
	})
	return &gatewayFixture{gw: gw, store: store, clock: clock}
}

func (f *gatewayFixture) build(client ClientInfo) (*BuildResult, error) {
	return f.gw.Build(context.Background(), BuildRequest{Client: client, BaseURL: testBaseURL})
}

func securedConfig() *models.AdminConfig {
	return &models.AdminConfig{
		UserConfig: models.UserConfig{
			Users: []models.User{
				{Username: "owner", Role: models.RoleOwner},
				{Username: "alice", Role: models.RoleUser, VideoSources: []string{"b"}},
			},
		},
		SourceConfig: []models.SourceConfig{
			{Key: "a", Name: "A", API: "csp_A"},
			{Key: "b", Name: "B", API: "csp_B"},
		},
		SecurityConfig: models.SecurityConfig{
			EnableAuth:          true,
			EnableDeviceBinding: true,
			MaxDevices:          1,
			UserTokens: []models.UserToken{
				{Username: "alice", Token: "tok-alice", Enabled: true},
			},
		},
	}
}

/*
TestGateway_RateLimit 测试同一 IP 在窗口内超过限额被拒绝，换窗口后恢复
*/
func TestGateway_RateLimit(t *testing.T) {
	cfg := &models.AdminConfig{SecurityConfig: models.SecurityConfig{EnableRateLimit: true, RateLimit: 2}}
	f := newGatewayFixture(t, cfg)
	client := ClientInfo{IP: "203.0.113.5"}

	for i := 0; i < 2; i++ {
		if _, err := f.build(client); err != nil {
			t.Fatalf("第 %d 次请求应放行: %v", i+1, err)
		}
	}
	_, err := f.build(client)
	if status, code := gatewayStatus(err); status != http.StatusTooManyRequests || code != CodeRateLimited {
		t.Fatalf("第三次请求应返回 429, 实际 %d %s", status, code)
	}

	if _, err := f.build(ClientInfo{IP: "203.0.113.6"}); err != nil {
		t.Errorf("其他 IP 不受影响: %v", err)
	}

	/* 诊断请求不消耗计数，也不受限 */
	if _, err := f.gw.Build(context.Background(), BuildRequest{Client: client, BaseURL: testBaseURL, Diagnostic: true}); err != nil {
		t.Errorf("诊断请求不应被限流: %v", err)
	}

	f.clock.Advance(DefaultRateWindow)
	if _, err := f.build(client); err != nil {
		t.Errorf("新窗口应重新放行: %v", err)
	}
}

func TestGateway_UserAgentWhitelist(t *testing.T) {
	cfg := &models.AdminConfig{SecurityConfig: models.SecurityConfig{
		EnableUserAgentWhitelist: true,
		AllowedUserAgents:        []string{"okhttp"},
	}}
	f := newGatewayFixture(t, cfg)

	_, err := f.build(ClientInfo{IP: "1.1.1.1", UserAgent: "curl/8.0"})
	if status, code := gatewayStatus(err); status != http.StatusForbidden || code != CodeUANotAllowed {
		t.Errorf("非白名单 UA 应返回 403, 实际 %d %s", status, code)
	}
	if _, err := f.build(ClientInfo{IP: "1.1.1.1", UserAgent: "OKHTTP/3.15"}); err != nil {
		t.Errorf("白名单 UA 应放行: %v", err)
	}
}

/*
TestGateway_AuthenticatedUserSources 测试认证用户只看到自己被授权的源，并完成设备绑定
*/
func TestGateway_AuthenticatedUserSources(t *testing.T) {
	f := newGatewayFixture(t, securedConfig())
	client := ClientInfo{IP: "1.1.1.1", Token: "tok-alice", UserAgent: "okhttp/3.15"}

	res, err := f.build(client)
	if err != nil {
		t.Fatalf("请求应成功: %v", err)
	}
	if res.Identity.Username != "alice" || !res.Identity.NewlyBound {
		t.Errorf("身份不符: %+v", res.Identity)
	}
	if len(res.Document.Sites) != 1 || res.Document.Sites[0].Key != "b" {
		t.Errorf("alice 只应看到源 b: %+v", res.Document.Sites)
	}
	if devices := f.store.snapshot().SecurityConfig.UserTokens[0].Devices; len(devices) != 1 {
		t.Fatalf("应绑定 1 台设备, 实际 %d", len(devices))
	}

	_, err = f.build(ClientInfo{IP: "1.1.1.1", Token: "tok-alice", UserAgent: "TVBox/2.0"})
	if status, code := gatewayStatus(err); status != http.StatusForbidden || code != CodeDeviceNotAuthorized {
		t.Errorf("超出设备上限应返回 403, 实际 %d %s", status, code)
	}

	_, err = f.build(ClientInfo{IP: "1.1.1.1"})
	if status, code := gatewayStatus(err); status != http.StatusUnauthorized || code != CodeMissingToken {
		t.Errorf("缺少 token 应返回 401, 实际 %d %s", status, code)
	}
}

/*
TestGateway_AnonymousSeesRepresentativeSources 测试未启用认证时按代表用户（站长）计算可见源
*/
func TestGateway_AnonymousSeesRepresentativeSources(t *testing.T) {
	cfg := securedConfig()
	cfg.SecurityConfig = models.SecurityConfig{}
	f := newGatewayFixture(t, cfg)

	res, err := f.build(ClientInfo{IP: "1.1.1.1"})
	if err != nil {
		t.Fatalf("请求应成功: %v", err)
	}
	if len(res.Document.Sites) != 2 {
		t.Errorf("站长无直接授权时应看到全部启用源, 实际 %d", len(res.Document.Sites))
	}
	if res.Identity.Authenticated {
		t.Error("未启用认证时身份应为匿名")
	}
}

func TestGateway_ConfigUnavailable(t *testing.T) {
	f := newGatewayFixture(t, &models.AdminConfig{})
	f.store.loadErr = errStoreDown

	_, err := f.build(ClientInfo{IP: "1.1.1.1"})
	if status, code := gatewayStatus(err); status != http.StatusInternalServerError || code != CodeConfigUnavailable {
		t.Errorf("配置不可用应返回 500, 实际 %d %s", status, code)
	}
}

/*
TestGateway_SpiderFallback 测试所有候选失败时文档引用本地镜像
*/
func TestGateway_SpiderFallback(t *testing.T) {
	srv := spiderServer(t, nil)
	f := newGatewayFixture(t, &models.AdminConfig{}, srv.URL+"/missing", srv.URL+"/small")

	res, err := f.build(ClientInfo{IP: "1.1.1.1"})
	if err != nil {
		t.Fatalf("spider 失败不应导致请求失败: %v", err)
	}
	if res.Document.Spider != testBaseURL+SpiderMirrorPath {
		t.Errorf("应引用本地镜像, 实际 %q", res.Document.Spider)
	}
	if res.Document.Logo != testBaseURL+"/logo.png" {
		t.Errorf("logo 应来自网关配置, 实际 %q", res.Document.Logo)
	}
	if res.Spider.Success || res.Spider.Tried != 2 {
		t.Errorf("解析结果不符: %+v", res.Spider)
	}
}

func TestGateway_SpiderSuccess(t *testing.T) {
	srv := spiderServer(t, nil)
	f := newGatewayFixture(t, &models.AdminConfig{}, srv.URL+"/ok")

	res, err := f.build(ClientInfo{IP: "1.1.1.1"})
	if err != nil {
		t.Fatalf("请求失败: %v", err)
	}
	want := srv.URL + "/ok;md5;" + res.Spider.MD5
	if res.Document.Spider != want {
		t.Errorf("spider 引用应带 md5, 实际 %q", res.Document.Spider)
	}
}

/*
TestGateway_CategoryEnrichment 测试 JSON 站点的分类增强与失败回退
*/
func TestGateway_CategoryEnrichment(t *testing.T) {
	cms := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/broken") {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"class":[{"type_id":1,"type_name":"电影"},{"type_id":2,"type_name":"伦理片"}]}`))
	}))
	defer cms.Close()

	cfg := &models.AdminConfig{
		SiteConfig: models.SiteConfig{YellowWords: []string{"伦理"}},
		UserConfig: models.UserConfig{
			Users: []models.User{{Username: "bob", Role: models.RoleUser, Tags: []string{"家庭"}}},
			Tags:  []models.UserTag{{Name: "家庭", EnableYellowFilter: true}},
		},
		SourceConfig: []models.SourceConfig{
			{Key: "ok", Name: "OK", API: cms.URL + "/api.php/provide/vod"},
			{Key: "bad", Name: "Bad", API: cms.URL + "/broken/provide/vod"},
			{Key: "sp", Name: "Spider", API: "csp_X"},
		},
	}
	f := newGatewayFixture(t, cfg)

	res, err := f.build(ClientInfo{IP: "1.1.1.1"})
	if err != nil {
		t.Fatalf("请求失败: %v", err)
	}
	sites := res.Document.Sites
	if len(sites) != 3 {
		t.Fatalf("站点数不符: %d", len(sites))
	}
	if len(sites[0].Categories) != 1 || sites[0].Categories[0] != "电影" {
		t.Errorf("开启过滤的用户组应过滤成人分类: %v", sites[0].Categories)
	}
	if len(sites[1].Categories) != 1 || sites[1].Categories[0] != "默认" {
		t.Errorf("拉取失败应回退默认分类: %v", sites[1].Categories)
	}
	if sites[2].Categories != nil {
		t.Errorf("spider 站点不拉取分类: %v", sites[2].Categories)
	}
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

/*
TestLoadConfig_MergesDefaults 测试部分配置文件与默认值合并
*/
func TestLoadConfig_MergesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  port: 8088
gateway:
  base_url: "https://tv.example.com/"
  default_security:
    enable_auth: true
    rate_limit: 5
spider:
  candidates:
    - "https://a.example.com/spider.jar"
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("写入配置失败: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig 失败: %v", err)
	}
	if cfg.Server.Port != 8088 {
		t.Errorf("端口不匹配: 期望 8088, 实际 %d", cfg.Server.Port)
	}
	if cfg.Gateway.BaseURL != "https://tv.example.com" {
		t.Errorf("base_url 应去掉末尾斜杠, 实际 %q", cfg.Gateway.BaseURL)
	}
	if !cfg.Gateway.DefaultSecurity.EnableAuth || cfg.Gateway.DefaultSecurity.RateLimit != 5 {
		t.Errorf("默认安全策略未被覆盖: %+v", cfg.Gateway.DefaultSecurity)
	}
	if len(cfg.Spider.Candidates) != 1 {
		t.Errorf("候选列表应被替换为 1 项, 实际 %d", len(cfg.Spider.Candidates))
	}
	/* 未出现在文件中的字段保留默认值 */
	if cfg.Category.Concurrency != 10 {
		t.Errorf("分类并发默认值丢失: %d", cfg.Category.Concurrency)
	}
}

/*
TestApplyEnv 测试环境变量覆盖
*/
func TestApplyEnv(t *testing.T) {
	t.Setenv("SITE_BASE_URL", "http://10.0.0.2:3000/")
	t.Setenv("VIDORA_OWNER", "root")
	t.Setenv("TVBOX_ALLOWED_UA", "okhttp, 影视仓 ,,")

	cfg := LoadConfigOrDefault("")
	if cfg.Gateway.BaseURL != "http://10.0.0.2:3000" {
		t.Errorf("SITE_BASE_URL 未生效: %q", cfg.Gateway.BaseURL)
	}
	if cfg.Gateway.OwnerUsername != "root" {
		t.Errorf("VIDORA_OWNER 未生效: %q", cfg.Gateway.OwnerUsername)
	}
	uas := cfg.Gateway.DefaultSecurity.AllowedUserAgents
	if len(uas) != 2 || uas[0] != "okhttp" || uas[1] != "影视仓" {
		t.Errorf("TVBOX_ALLOWED_UA 解析错误: %v", uas)
	}
}

/*
TestLoadConfigOrDefault_BadFile 测试配置文件损坏时回退默认值
*/
func TestLoadConfigOrDefault_BadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("server: [unterminated"), 0600); err != nil {
		t.Fatal(err)
	}
	cfg := LoadConfigOrDefault(path)
	if cfg.Server.Port != 3000 {
		t.Errorf("损坏配置应回退默认端口 3000, 实际 %d", cfg.Server.Port)
	}
}

/*
TestHotReloader_Reload 测试文件变更触发回调
*/
func TestHotReloader_Reload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("server:\n  port: 1\n"), 0600); err != nil {
		t.Fatal(err)
	}

	r := NewHotReloader(path)
	r.debounce = 10 * time.Millisecond
	got := make(chan int, 4)
	r.Watch(func(cfg *Config) { got <- cfg.Server.Port })
	if err := r.Start(); err != nil {
		t.Fatalf("启动监听失败: %v", err)
	}
	defer r.Stop()

	if err := os.WriteFile(path, []byte("server:\n  port: 2\n"), 0600); err != nil {
		t.Fatal(err)
	}

	select {
	case port := <-got:
		if port != 2 {
			t.Errorf("期望重载后端口 2, 实际 %d", port)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("未收到配置重载回调")
	}
}

func TestSeconds(t *testing.T) {
	if Seconds(0, time.Minute) != time.Minute {
		t.Error("非正数应返回兜底值")
	}
	if Seconds(3, time.Minute) != 3*time.Second {
		t.Error("秒数换算错误")
	}
}

package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

/* DiagnosticReport 诊断报告 */
type DiagnosticReport struct {
	Pass      bool             `json:"pass"`
	CheckedAt time.Time        `json:"checkedAt"`
	Denied    *DiagnosticDeny  `json:"denied,omitempty"`
	Security  SecuritySummary  `json:"security"`
	Identity  *Identity        `json:"identity,omitempty"`
	Counts    DiagnosticCounts `json:"counts"`

	PrivateSources []string     `json:"privateSources"`
	Spider         *SpiderProbe `json:"spider,omitempty"`
	Issues         []string     `json:"issues"`
}

// DiagnosticDeny 管道拒绝信息
type DiagnosticDeny struct {
	Status int    `json:"status"`
	Code   string `json:"code"`
	Hint   string `json:"hint"`
}

// SecuritySummary 安全配置摘要（不含 token）
type SecuritySummary struct {
	EnableAuth               bool `json:"enableAuth"`
	EnableRateLimit          bool `json:"enableRateLimit"`
	RateLimit                int  `json:"rateLimit"`
	EnableDeviceBinding      bool `json:"enableDeviceBinding"`
	MaxDevices               int  `json:"maxDevices"`
	EnableUserAgentWhitelist bool `json:"enableUserAgentWhitelist"`
	UserTokens               int  `json:"userTokens"`
}

// DiagnosticCounts 文档各部分数量
type DiagnosticCounts struct {
	Sites  int `json:"sites"`
	Lives  int `json:"lives"`
	Parses int `json:"parses"`
}

// SpiderProbe spider 可达性探测
type SpiderProbe struct {
	Reference     string        `json:"reference"`
	Resolution    SpiderJarInfo `json:"resolution"`
	ProbeURL      string        `json:"probeUrl"`
	Reachable     bool          `json:"reachable"`
	Status        int           `json:"status,omitempty"`
	ContentType   string        `json:"contentType,omitempty"`
	ContentLength int64         `json:"contentLength"`
	Error         string        `json:"error,omitempty"`
}

/*
Diagnoser 只读诊断
功能：以诊断模式跑一遍真实管道（不消耗限流计数、不追加设备），
检查文档结构并对 spider 做 HEAD 探测，所有软性问题汇总到 issues。
*/
type Diagnoser struct {
	gateway *Gateway
	client  *http.Client
	timeout time.Duration
	minSize int
	logger  *zap.Logger
}

/* NewDiagnoser 创建诊断器 */
func NewDiagnoser(g *Gateway, client *http.Client, probeTimeout time.Duration, minSize int) *Diagnoser {
	if client == nil {
		client = &http.Client{}
	}
	if probeTimeout <= 0 {
		probeTimeout = 5 * time.Second
	}
	if minSize <= 0 {
		minSize = 1000
	}
	return &Diagnoser{
		gateway: g,
		client:  client,
		timeout: probeTimeout,
		minSize: minSize,
		logger:  zap.L().Named("diagnose"),
	}
}

/* Diagnose 生成诊断报告 */
func (d *Diagnoser) Diagnose(ctx context.Context, client ClientInfo, baseURL string) *DiagnosticReport {
	report := &DiagnosticReport{
		CheckedAt:      time.Now(),
		PrivateSources: []string{},
		Issues:         []string{},
	}

	if cfg, err := d.gateway.store.Load(ctx); err == nil {
		sec := cfg.SecurityConfig
		report.Security = SecuritySummary{
			EnableAuth:               sec.EnableAuth,
			EnableRateLimit:          sec.EnableRateLimit,
			RateLimit:                sec.RateLimit,
			EnableDeviceBinding:      sec.EnableDeviceBinding,
			MaxDevices:               sec.MaxDevices,
			EnableUserAgentWhitelist: sec.EnableUserAgentWhitelist,
			UserTokens:               len(sec.UserTokens),
		}
	}

	res, err := d.gateway.Build(ctx, BuildRequest{Client: client, BaseURL: baseURL, Diagnostic: true})
	if err != nil {
		var ge *GatewayError
		if errors.As(err, &ge) {
			report.Denied = &DiagnosticDeny{Status: ge.Status, Code: ge.Code, Hint: ge.Hint}
		} else {
			report.Denied = &DiagnosticDeny{Status: http.StatusInternalServerError, Code: CodeConfigUnavailable, Hint: err.Error()}
		}
		report.Issues = append(report.Issues, "管道拒绝: "+report.Denied.Code)
		return report
	}

	doc := res.Document
	report.Identity = res.Identity
	report.Counts = DiagnosticCounts{Sites: len(doc.Sites), Lives: len(doc.Lives), Parses: len(doc.Parses)}
	if len(doc.Sites) == 0 {
		report.Issues = append(report.Issues, "没有可用的视频源")
	}

	for _, s := range doc.Sites {
		if !strings.HasPrefix(strings.ToLower(s.API), "http") {
			continue
		}
		if !IsPublicURL(s.API) {
			report.PrivateSources = append(report.PrivateSources, s.Key)
		}
	}
	if len(report.PrivateSources) > 0 {
		report.Issues = append(report.Issues,
			fmt.Sprintf("%d 个视频源使用内网地址，外部客户端无法访问", len(report.PrivateSources)))
	}

	report.Spider = d.probeSpider(ctx, doc.Spider, res.Spider)
	if !res.Spider.Success {
		report.Issues = append(report.Issues, "所有 spider 候选均不可用，已回退到本地镜像")
	}
	if !report.Spider.Reachable {
		report.Issues = append(report.Issues, "spider 地址不可达")
	} else {
		if report.Spider.ContentType == "" {
			report.Issues = append(report.Issues, "spider 响应缺少 Content-Type")
		}
		if report.Spider.ContentLength >= 0 && report.Spider.ContentLength < int64(d.minSize) {
			report.Issues = append(report.Issues,
				fmt.Sprintf("spider 体积过小（%d 字节）", report.Spider.ContentLength))
		}
	}

	report.Pass = len(report.Issues) == 0
	return report
}

/*
probeSpider 对 spider 地址做 HEAD 探测
文档中的引用可能带 ;md5; 后缀，探测前去掉
*/
func (d *Diagnoser) probeSpider(ctx context.Context, reference string, info SpiderJarInfo) *SpiderProbe {
	probeURL := reference
	if i := strings.Index(probeURL, ";"); i >= 0 {
		probeURL = probeURL[:i]
	}
	probe := &SpiderProbe{Reference: reference, Resolution: info, ProbeURL: probeURL, ContentLength: -1}

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, probeURL, nil)
	if err != nil {
		probe.Error = err.Error()
		return probe
	}
	req.Header.Set("User-Agent", "okhttp/3.15")
	resp, err := d.client.Do(req)
	if err != nil {
		probe.Error = err.Error()
		d.logger.Debug("spider 探测失败", zap.String("url", probeURL), zap.Error(err))
		return probe
	}
	resp.Body.Close()

	probe.Status = resp.StatusCode
	probe.ContentType = resp.Header.Get("Content-Type")
	probe.ContentLength = resp.ContentLength
	probe.Reachable = resp.StatusCode >= 200 && resp.StatusCode < 400
	return probe
}

package service

import "encoding/json"

/*
Document TVBox 配置文档
完整组装一次，各模式只是对它的投影
*/
type Document struct {
	Spider    string       `json:"spider"`
	Wallpaper string       `json:"wallpaper,omitempty"`
	Logo      string       `json:"logo,omitempty"`
	Sites     []Site       `json:"sites"`
	Parses    []Parse      `json:"parses"`
	Lives     []Live       `json:"lives"`
	Flags     []string     `json:"flags,omitempty"`
	Ijk       []IjkProfile `json:"ijk,omitempty"`
	Ads       []string     `json:"ads,omitempty"`
	DoH       []DoH        `json:"doh,omitempty"`
	Rules     []Rule       `json:"rules,omitempty"`
}

// Site 视频站点
type Site struct {
	Key         string            `json:"key"`
	Name        string            `json:"name"`
	Type        SiteType          `json:"type"`
	API         string            `json:"api"`
	Searchable  int               `json:"searchable"`
	QuickSearch int               `json:"quickSearch"`
	Filterable  int               `json:"filterable"`
	Changeable  int               `json:"changeable"`
	Ext         json.RawMessage   `json:"ext,omitempty"`
	Jar         string            `json:"jar,omitempty"`
	PlayerType  *int              `json:"playerType,omitempty"`
	Timeout     int               `json:"timeout,omitempty"`
	Retry       int               `json:"retry,omitempty"`
	Header      map[string]string `json:"header,omitempty"`
	Categories  []string          `json:"categories,omitempty"`
}

// Parse 解析接口
type Parse struct {
	Name string          `json:"name"`
	Type int             `json:"type"`
	URL  string          `json:"url"`
	Ext  json.RawMessage `json:"ext,omitempty"`
}

// Live 直播源
type Live struct {
	Name string `json:"name"`
	Type int    `json:"type"`
	URL  string `json:"url"`
	UA   string `json:"ua,omitempty"`
	EPG  string `json:"epg,omitempty"`
}

// IjkProfile IJK 播放器参数组
type IjkProfile struct {
	Group   string      `json:"group"`
	Options []IjkOption `json:"options"`
}

// IjkOption IJK 单个参数
type IjkOption struct {
	Category int    `json:"category"`
	Name     string `json:"name"`
	Value    string `json:"value"`
}

// DoH DNS-over-HTTPS 提示
type DoH struct {
	Name string   `json:"name"`
	URL  string   `json:"url"`
	IPs  []string `json:"ips"`
}

// Rule 播放器嗅探规则
type Rule struct {
	Name  string   `json:"name"`
	Hosts []string `json:"hosts"`
	Regex []string `json:"regex"`
}

/* 全量模式站点的默认请求参数 */
const (
	defaultSiteTimeout = 15
	defaultSiteRetry   = 2
)

var defaultSiteHeader = map[string]string{
	"User-Agent": "Mozilla/5.0 (Linux; Android 11; M2007J3SC Build/RKQ1.200826.002) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Mobile Safari/537.36",
	"Accept":     "application/json, text/plain, */*",
}

var fastSiteHeader = map[string]string{
	"User-Agent": "okhttp/3.15",
}

var defaultFlags = []string{
	"youku", "qq", "iqiyi", "qiyi", "letv", "sohu", "tudou", "pptv", "mgtv", "wasu", "bilibili", "renrenmi",
}

var defaultAds = []string{
	"mimg.0c1q0l.cn",
	"www.googletagmanager.com",
	"www.google-analytics.com",
	"mc.usihnbcq.cn",
	"mg.g1mm3d.cn",
	"mscs.svaeuzh.cn",
	"cnzz.hhttm.top",
	"tp.vinuxhome.com",
	"cnzz.mmstat.com",
	"www.baihuillq.com",
	"s23.cnzz.com",
	"z3.cnzz.com",
	"c.cnzz.com",
	"stj.v1vo.top",
	"z12.cnzz.com",
	"img.mosflower.cn",
	"tips.gamevvip.com",
	"ehwe.yhdtns.com",
	"xdn.cqqc3.com",
	"www.jixunkyy.cn",
	"sp.chemacid.cn",
	"hm.baidu.com",
	"s9.cnzz.com",
	"z6.cnzz.com",
	"um.cavuc.com",
	"mav.mavuz.com",
	"wofwk.aoidf3.com",
	"z5.cnzz.com",
	"xc.hubeijieshikj.cn",
	"tj.tianwenhu.com",
	"xg.gars57.cn",
	"k.jinxiuzhilv.com",
	"cdn.bootcss.com",
	"ppl.xunzhuo123.com",
	"xomk.jiangjunmh.top",
	"img.xunzhuo123.com",
	"z1.cnzz.com",
	"s13.cnzz.com",
	"xg.huataisangao.cn",
	"z7.cnzz.com",
	"z2.cnzz.com",
	"s96.cnzz.com",
	"q11.cnzz.com",
	"thy.dacedsfa.cn",
	"xg.whsbpw.cn",
	"s19.cnzz.com",
	"z8.cnzz.com",
	"s4.cnzz.com",
	"f5w.as12df.top",
	"ae01.alicdn.com",
	"www.92424.cn",
	"k.wudejia.com",
	"vivovip.mmszxc.top",
	"qiu.xixiqiu.com",
	"cdnjs.hnfenxun.com",
	"cms.qdwght.com",
}

var defaultDoH = []DoH{
	{Name: "Google", URL: "https://dns.google/dns-query", IPs: []string{"8.8.4.4", "8.8.8.8"}},
	{Name: "Cloudflare", URL: "https://cloudflare-dns.com/dns-query", IPs: []string{"1.1.1.1", "1.0.0.1"}},
	{Name: "AdGuard", URL: "https://dns.adguard.com/dns-query", IPs: []string{"94.140.14.140", "94.140.14.141"}},
	{Name: "DNSWatch", URL: "https://resolver2.dns.watch/dns-query", IPs: []string{"84.200.69.80", "84.200.70.40"}},
	{Name: "Quad9", URL: "https://dns.quad9.net/dns-query", IPs: []string{"9.9.9.9", "149.112.112.112"}},
}

var defaultIjk = []IjkProfile{
	{
		Group: "软解码",
		Options: []IjkOption{
			{Category: 4, Name: "opensles", Value: "0"},
			{Category: 4, Name: "overlay-format", Value: "842225234"},
			{Category: 4, Name: "framedrop", Value: "1"},
			{Category: 4, Name: "soundtouch", Value: "1"},
			{Category: 4, Name: "start-on-prepared", Value: "1"},
			{Category: 1, Name: "http-detect-range-support", Value: "0"},
			{Category: 1, Name: "fflags", Value: "fastseek"},
			{Category: 2, Name: "skip_loop_filter", Value: "48"},
			{Category: 4, Name: "reconnect", Value: "1"},
			{Category: 4, Name: "enable-accurate-seek", Value: "0"},
			{Category: 4, Name: "mediacodec", Value: "0"},
			{Category: 4, Name: "mediacodec-auto-rotate", Value: "0"},
			{Category: 4, Name: "mediacodec-handle-resolution-change", Value: "0"},
			{Category: 4, Name: "mediacodec-hevc", Value: "0"},
			{Category: 1, Name: "dns_cache_timeout", Value: "600000000"},
		},
	},
	{
		Group: "硬解码",
		Options: []IjkOption{
			{Category: 4, Name: "opensles", Value: "0"},
			{Category: 4, Name: "overlay-format", Value: "842225234"},
			{Category: 4, Name: "framedrop", Value: "1"},
			{Category: 4, Name: "soundtouch", Value: "1"},
			{Category: 4, Name: "start-on-prepared", Value: "1"},
			{Category: 1, Name: "http-detect-range-support", Value: "0"},
			{Category: 1, Name: "fflags", Value: "fastseek"},
			{Category: 2, Name: "skip_loop_filter", Value: "48"},
			{Category: 4, Name: "reconnect", Value: "1"},
			{Category: 4, Name: "enable-accurate-seek", Value: "0"},
			{Category: 4, Name: "mediacodec", Value: "1"},
			{Category: 4, Name: "mediacodec-auto-rotate", Value: "1"},
			{Category: 4, Name: "mediacodec-handle-resolution-change", Value: "1"},
			{Category: 4, Name: "mediacodec-hevc", Value: "1"},
			{Category: 1, Name: "dns_cache_timeout", Value: "600000000"},
		},
	},
}

/* 影视仓的播放器嗅探规则 */
var yingshicangRules = []Rule{
	{
		Name:  "量子",
		Hosts: []string{"vip.lz", "hd.lz", ".cdnlz"},
		Regex: []string{
			`#EXT-X-DISCONTINUITY\r*\n*#EXTINF:7\.166667,[\s\S]*?#EXT-X-DISCONTINUITY`,
			`#EXTINF.*?\s+.*?1o.*?\.ts\s+`,
		},
	},
	{
		Name:  "非凡",
		Hosts: []string{"vip.ffzy", "hd.ffzy"},
		Regex: []string{
			`#EXT-X-DISCONTINUITY\r*\n*#EXTINF:6\.666667,[\s\S]*?#EXT-X-DISCONTINUITY`,
			`#EXTINF.*?\s+.*?1o.*?\.ts\s+`,
		},
	},
	{
		Name:  "嗅探",
		Hosts: []string{"*"},
		Regex: []string{`http((?!http).){12,}?\.(m3u8|mp4|flv|avi|mkv|rm|wmv|mpg)\?.*`},
	},
}

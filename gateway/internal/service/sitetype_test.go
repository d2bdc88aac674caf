package service

import "testing"

func TestDetectSiteType(t *testing.T) {
	cases := []struct {
		api    string
		detail string
		want   SiteType
	}{
		{"csp_Bili", "", SiteTypeSpider},
		{"https://cms.example.com/api.php/provide/vod/at/xml/", "", SiteTypeXML},
		{"https://cms.example.com/feed.xml", "", SiteTypeXML},
		{"https://cms.example.com/api.php/provide/vod", "", SiteTypeJSON},
		{"https://cms.example.com/api.php/provide/vod/at/json", "", SiteTypeJSON},
		{"https://cms.example.com/list.json", "", SiteTypeJSON},
		{"https://cms.example.com/whatever", "", SiteTypeJSON},
		{"", "", SiteTypeJSON},
		{"https://cms.example.com/api.php/provide/vod", `{"type":3,"jar":"x.jar"}`, SiteTypeSpider},
		{"csp_Bili", `{"type":0}`, SiteTypeXML},
		{"csp_Bili", `{"type":2}`, SiteTypeSpider},
		{"https://cms.example.com/feed.xml", `not json`, SiteTypeXML},
	}
	for _, tc := range cases {
		got := DetectSiteType(tc.api, ParseSourceDetail(tc.detail))
		if got != tc.want {
			t.Errorf("DetectSiteType(%q, %q) = %d, 期望 %d", tc.api, tc.detail, got, tc.want)
		}
	}
}

func TestParseSourceDetail(t *testing.T) {
	d := ParseSourceDetail(`{"type":3,"jar":"https://x/a.jar","ext":{"k":"v"},"playerType":1}`)
	if d.Type == nil || *d.Type != 3 || d.Jar != "https://x/a.jar" || d.PlayerType == nil || *d.PlayerType != 1 {
		t.Errorf("detail 解析错误: %+v", d)
	}
	if string(d.Ext) != `{"k":"v"}` {
		t.Errorf("ext 应保持原样, 实际 %s", d.Ext)
	}

	if d := ParseSourceDetail(`{broken`); d.Type != nil || d.Jar != "" {
		t.Error("非法 JSON 应返回零值")
	}
}

package service

import (
	"encoding/json"
	"strings"
)

/*
SiteType TVBox 站点协议类型
*/
type SiteType int

const (
	SiteTypeXML    SiteType = 0 /* 苹果 CMS XML 接口 */
	SiteTypeJSON   SiteType = 1 /* 苹果 CMS JSON 接口 */
	SiteTypeSpider SiteType = 3 /* 依赖 spider jar 的自定义源 */
)

/*
SourceDetail 视频源 detail 字段中可识别的覆盖项
*/
type SourceDetail struct {
	Type       *int            `json:"type,omitempty"`
	Jar        string          `json:"jar,omitempty"`
	Ext        json.RawMessage `json:"ext,omitempty"`
	PlayerType *int            `json:"playerType,omitempty"`
}

/* ParseSourceDetail 解析 detail，非 JSON 或为空时返回零值 */
func ParseSourceDetail(detail string) SourceDetail {
	var d SourceDetail
	detail = strings.TrimSpace(detail)
	if !strings.HasPrefix(detail, "{") {
		return d
	}
	if err := json.Unmarshal([]byte(detail), &d); err != nil {
		return SourceDetail{}
	}
	return d
}

/*
DetectSiteType 推断站点类型
规则按顺序匹配：
 1. detail 中显式指定 0/1/3
 2. api 以 csp_ 开头 → 3
 3. api 含 .xml、/xml 或 at/xml → 0
 4. api 含 /provide/vod、at/json 或 .json → 1
 5. 默认 1
*/
func DetectSiteType(api string, detail SourceDetail) SiteType {
	if detail.Type != nil {
		switch t := SiteType(*detail.Type); t {
		case SiteTypeXML, SiteTypeJSON, SiteTypeSpider:
			return t
		}
	}

	lower := strings.ToLower(strings.TrimSpace(api))
	switch {
	case strings.HasPrefix(lower, "csp_"):
		return SiteTypeSpider
	case strings.Contains(lower, ".xml"), strings.Contains(lower, "/xml"), strings.Contains(lower, "at/xml"):
		return SiteTypeXML
	case strings.Contains(lower, "/provide/vod"), strings.Contains(lower, "at/json"), strings.Contains(lower, ".json"):
		return SiteTypeJSON
	}
	return SiteTypeJSON
}

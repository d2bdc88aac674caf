package service

import "strings"

/* Mode 配置文档投影模式 */
type Mode string

const (
	ModeFull        Mode = "full"
	ModeSafe        Mode = "safe"
	ModeMin         Mode = "min"
	ModeFast        Mode = "fast"
	ModeOptimize    Mode = "optimize"
	ModeYingshicang Mode = "yingshicang"
)

/* ParseMode 解析查询参数，未知模式按 full 处理 */
func ParseMode(s string) Mode {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeSafe, ModeMin, ModeFast, ModeOptimize, ModeYingshicang:
		return m
	}
	return ModeFull
}

/*
Project 对完整文档做模式投影
纯函数：不修改 doc，也不会重新执行安全检查或任何解析。
parseURLs 仅 yingshicang 模式使用。
*/
func Project(doc *Document, mode Mode, parseURLs []string) *Document {
	switch mode {
	case ModeSafe:
		return projectSafe(doc)
	case ModeMin:
		return projectMin(doc)
	case ModeFast, ModeOptimize:
		return projectFast(doc)
	case ModeYingshicang:
		return projectYingshicang(doc, parseURLs)
	}
	out := *doc
	return &out
}

/* projectSafe 兼容模式：只保留老客户端都能识别的字段 */
func projectSafe(doc *Document) *Document {
	return &Document{
		Spider:    doc.Spider,
		Wallpaper: doc.Wallpaper,
		Sites:     doc.Sites,
		Parses:    doc.Parses,
		Lives:     doc.Lives,
		Flags:     doc.Flags,
	}
}

func projectMin(doc *Document) *Document {
	return &Document{
		Spider: doc.Spider,
		Sites:  doc.Sites,
		Parses: []Parse{},
		Lives:  []Live{},
	}
}

/*
projectFast 换源提速：去掉每个站点的 timeout/retry，请求头换成轻量 UA
*/
func projectFast(doc *Document) *Document {
	out := *doc
	out.Sites = make([]Site, len(doc.Sites))
	for i, s := range doc.Sites {
		s.Timeout = 0
		s.Retry = 0
		s.Header = cloneHeader(fastSiteHeader)
		out.Sites[i] = s
	}
	return &out
}

/*
projectYingshicang 影视仓：解析接口换成影视仓可用的地址，并附加嗅探规则表
*/
func projectYingshicang(doc *Document, parseURLs []string) *Document {
	out := *doc
	if len(parseURLs) > 0 {
		parses := make([]Parse, 0, len(parseURLs))
		for i, u := range parseURLs {
			parses = append(parses, Parse{Name: yingshicangParseName(i), Type: 0, URL: u})
		}
		out.Parses = parses
	}
	out.Rules = yingshicangRules
	return &out
}

func yingshicangParseName(i int) string {
	names := []string{"解析一", "解析二", "解析三", "解析四", "解析五"}
	if i < len(names) {
		return names[i]
	}
	return "解析"
}

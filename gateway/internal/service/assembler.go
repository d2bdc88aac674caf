package service

import (
	"vidora/gateway/internal/db/models"
)

/* AssembleInput 组装所需的全部已计算数据 */
type AssembleInput struct {
	Config     *models.AdminConfig
	Sources    []models.SourceConfig
	Types      []SiteType
	Details    []SourceDetail
	Categories [][]string
	Spider     string
	BaseURL    string
	Wallpaper  string
	Logo       string
}

/*
Assemble 组装完整配置文档
只做数据拼装，不访问网络也不读取存储
*/
func Assemble(in AssembleInput) *Document {
	doc := &Document{
		Spider:    in.Spider,
		Wallpaper: in.Wallpaper,
		Logo:      in.Logo,
		Sites:     make([]Site, 0, len(in.Sources)),
		Parses:    buildParses(in.Config, in.BaseURL),
		Lives:     buildLives(in.Config),
		Flags:     append([]string(nil), defaultFlags...),
		Ijk:       defaultIjk,
		Ads:       append([]string(nil), defaultAds...),
		DoH:       defaultDoH,
	}
	if in.Config.SiteConfig.Wallpaper != "" {
		doc.Wallpaper = in.Config.SiteConfig.Wallpaper
	}

	for i, src := range in.Sources {
		detail := in.Details[i]
		site := Site{
			Key:         src.Key,
			Name:        src.Name,
			Type:        in.Types[i],
			API:         src.API,
			Searchable:  1,
			QuickSearch: 1,
			Filterable:  1,
			Changeable:  1,
			Ext:         detail.Ext,
			Jar:         detail.Jar,
			PlayerType:  detail.PlayerType,
			Timeout:     defaultSiteTimeout,
			Retry:       defaultSiteRetry,
			Header:      cloneHeader(defaultSiteHeader),
		}
		if in.Categories != nil {
			site.Categories = in.Categories[i]
		}
		doc.Sites = append(doc.Sites, site)
	}
	return doc
}

/* buildParses 内置解析代理在前，管理员配置的解析接口在后 */
func buildParses(cfg *models.AdminConfig, baseURL string) []Parse {
	parses := []Parse{{
		Name: "Vidora解析",
		Type: 1,
		URL:  baseURL + "/api/parse?url=",
	}}
	for _, p := range cfg.ParseConfig {
		if p.Disabled || p.URL == "" {
			continue
		}
		parses = append(parses, Parse{Name: p.Name, Type: p.Type, URL: p.URL})
	}
	return parses
}

func buildLives(cfg *models.AdminConfig) []Live {
	lives := make([]Live, 0, len(cfg.LiveConfig))
	for _, l := range cfg.LiveConfig {
		if l.Disabled || l.URL == "" {
			continue
		}
		lives = append(lives, Live{Name: l.Name, Type: 0, URL: l.URL, UA: l.UA, EPG: l.EPG})
	}
	return lives
}

func cloneHeader(h map[string]string) map[string]string {
	out := make(map[string]string, len(h))
	for k, v := range h {
		out[k] = v
	}
	return out
}

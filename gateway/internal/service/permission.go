package service

import (
	"vidora/gateway/internal/db/models"
)

/*
IsOwner 判断用户是否为站长
用户名等于配置的站长账号，或角色为 owner
*/
func IsOwner(u *models.User, ownerUsername string) bool {
	if u == nil {
		return false
	}
	return (ownerUsername != "" && u.Username == ownerUsername) || u.Role == models.RoleOwner
}

/*
RepresentativeUser 无法解析身份时选取的代表用户
优先级：站长 > 管理员 > 第一个普通用户；用户表为空时返回 nil
*/
func RepresentativeUser(cfg *models.AdminConfig, ownerUsername string) *models.User {
	users := cfg.UserConfig.Users
	for i := range users {
		if IsOwner(&users[i], ownerUsername) {
			return &users[i]
		}
	}
	for i := range users {
		if users[i].Role == models.RoleAdmin {
			return &users[i]
		}
	}
	if len(users) > 0 {
		return &users[0]
	}
	return nil
}

/*
EffectiveUser 权限解析使用的用户
已认证且用户表中存在时返回本人，其余情况（匿名、旧版全局 token、用户记录缺失）返回代表用户
*/
func EffectiveUser(cfg *models.AdminConfig, id *Identity, ownerUsername string) *models.User {
	if id != nil && id.Username != "" {
		if u, ok := cfg.FindUser(id.Username); ok {
			return u
		}
	}
	return RepresentativeUser(cfg, ownerUsername)
}

/*
ResolvePermittedSources 计算用户可见的视频源
规则按顺序匹配，命中即止，不跨规则合并：
 1. 用户有直接授权 → 启用源 ∩ 直接授权
 2. 用户所持用户组授权的并集非空 → 启用源 ∩ 并集
 3. 其余 → 全部启用源

user 为 nil 时返回全部启用源。结果保持源配置中的原始顺序。
*/
func ResolvePermittedSources(cfg *models.AdminConfig, user *models.User) []models.SourceConfig {
	enabled := cfg.EnabledSources()
	if user == nil {
		return enabled
	}

	if len(user.VideoSources) > 0 {
		return filterSources(enabled, toSet(user.VideoSources))
	}

	if len(user.Tags) > 0 && len(cfg.UserConfig.Tags) > 0 {
		union := make(map[string]struct{})
		for _, name := range user.Tags {
			tag, ok := cfg.FindTag(name)
			if !ok {
				continue
			}
			for _, key := range tag.VideoSources {
				union[key] = struct{}{}
			}
		}
		if len(union) > 0 {
			return filterSources(enabled, union)
		}
	}

	return enabled
}

func filterSources(sources []models.SourceConfig, allowed map[string]struct{}) []models.SourceConfig {
	out := make([]models.SourceConfig, 0, len(sources))
	for _, s := range sources {
		if _, ok := allowed[s.Key]; ok {
			out = append(out, s)
		}
	}
	return out
}

func toSet(keys []string) map[string]struct{} {
	set := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		set[k] = struct{}{}
	}
	return set
}

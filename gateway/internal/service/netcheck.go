package service

import (
	"net"
	"net/netip"
	"net/url"
	"strings"
)

/* CGNAT 100.64.0.0/10 不在 netip 的 IsPrivate 范围内 */
var cgnatPrefix = netip.MustParsePrefix("100.64.0.0/10")

/*
IsPublicHost 判断主机是否为公网可达地址
IP 字面量：私有、回环、链路本地、未指定、CGNAT 均视为内网；
主机名：localhost 以及 .localhost/.local/.lan/.internal 后缀视为内网。
不做 DNS 解析。
*/
func IsPublicHost(host string) bool {
	host = strings.TrimSuffix(strings.ToLower(strings.TrimSpace(host)), ".")
	host = strings.TrimSuffix(strings.TrimPrefix(host, "["), "]")
	if host == "" {
		return false
	}

	if addr, err := netip.ParseAddr(host); err == nil {
		addr = addr.Unmap()
		switch {
		case addr.IsLoopback(), addr.IsPrivate(), addr.IsUnspecified(),
			addr.IsLinkLocalUnicast(), addr.IsLinkLocalMulticast(), addr.IsInterfaceLocalMulticast():
			return false
		case addr.Is4() && cgnatPrefix.Contains(addr):
			return false
		}
		return true
	}

	if host == "localhost" {
		return false
	}
	for _, suffix := range []string{".localhost", ".local", ".lan", ".internal"} {
		if strings.HasSuffix(host, suffix) {
			return false
		}
	}
	return true
}

/* IsPublicURL 解析 URL 后检查主机；无法解析或非 http(s) 返回 false */
func IsPublicURL(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return false
	}
	host := u.Host
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	return IsPublicHost(host)
}

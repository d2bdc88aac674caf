package service

import (
	"strconv"
	"strings"
	"unicode/utf16"
)

/*
DeviceFingerprint 计算设备指纹
字段固定为 userAgent|platform|unknown|0|0，客户端与服务端必须使用同一算法，
否则同一设备会被识别为不同设备。
*/
func DeviceFingerprint(userAgent, platform string) string {
	if platform == "" {
		platform = "unknown"
	}
	raw := strings.Join([]string{userAgent, platform, "unknown", "0", "0"}, "|")
	return rollingHash36(raw)
}

/*
rollingHash36 32 位滚动哈希
按 UTF-16 码元计算 h = h*31 + c（int32 溢出回绕），结果取绝对值后用 36 进制表示
*/
func rollingHash36(s string) string {
	var h int32
	for _, c := range utf16.Encode([]rune(s)) {
		h = (h << 5) - h + int32(c)
	}
	v := int64(h)
	if v < 0 {
		v = -v
	}
	return strconv.FormatInt(v, 36)
}

/* NormalizePlatform 去掉 Sec-CH-UA-Platform 头的引号 */
func NormalizePlatform(header string) string {
	p := strings.Trim(strings.TrimSpace(header), `"`)
	if p == "" {
		return "unknown"
	}
	return p
}

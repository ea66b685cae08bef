// Package identity 从请求头推导匿名访客 ID 和设备类型。
// 同一 NAT 后使用相同浏览器的访客会被识别为同一人。
package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"
)

const (
	DeviceDesktop = "desktop"
	DeviceMobile  = "mobile"
	DeviceTablet  = "tablet"

	UnknownIP = "unknown"

	viewerIDLength = 32
)

var clientIPHeaders = []string{"X-Forwarded-For", "X-Real-Ip", "Cf-Connecting-Ip"}

// ClientIP 取第一个非空的转发头，X-Forwarded-For 只取最左边的原始客户端
func ClientIP(h http.Header) string {
	for _, name := range clientIPHeaders {
		v := strings.TrimSpace(h.Get(name))
		if v == "" {
			continue
		}
		if i := strings.IndexByte(v, ','); i >= 0 {
			v = strings.TrimSpace(v[:i])
		}
		if v != "" {
			return v
		}
	}
	return UnknownIP
}

// ViewerID 相同的 ip 和 UA 总是得到相同的 ID
func ViewerID(ip, userAgent string) string {
	sum := sha256.Sum256([]byte(ip + userAgent))
	return hex.EncodeToString(sum[:])[:viewerIDLength]
}

var (
	tabletMarkers = []string{"ipad", "tablet", "playbook", "silk"}
	mobileMarkers = []string{"mobile", "iphone", "ipod", "android", "blackberry", "opera mini", "iemobile", "webos"}
)

// DeviceClass 先匹配平板标记，平板 UA 大多也带有 mobile 标记
func DeviceClass(userAgent string) string {
	ua := strings.ToLower(userAgent)
	for _, m := range tabletMarkers {
		if strings.Contains(ua, m) {
			return DeviceTablet
		}
	}
	if strings.Contains(ua, "android") && !strings.Contains(ua, "mobi") {
		return DeviceTablet
	}
	for _, m := range mobileMarkers {
		if strings.Contains(ua, m) {
			return DeviceMobile
		}
	}
	return DeviceDesktop
}

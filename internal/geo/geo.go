package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/netip"
	"strings"
	"time"

	"doc-tracker/pkg/config"
	"doc-tracker/pkg/logger"

	"go.uber.org/zap"
)

// Location 保存在会话上的地理位置快照
type Location struct {
	Country     string  `json:"country,omitempty"`
	CountryCode string  `json:"country_code,omitempty"`
	Region      string  `json:"region,omitempty"`
	City        string  `json:"city,omitempty"`
	Lat         float64 `json:"lat,omitempty"`
	Lon         float64 `json:"lon,omitempty"`
}

// Locator 反查 IP 所在地，只做尽力而为的补充信息
type Locator struct {
	baseURL string
	client  *http.Client
	enabled bool
}

func NewLocator(cfg config.GeoConfig) *Locator {
	timeout := time.Duration(cfg.TimeoutMs) * time.Millisecond
	if timeout <= 0 {
		timeout = 1500 * time.Millisecond
	}
	return &Locator{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		enabled: cfg.Enabled && cfg.BaseURL != "",
	}
}

// IsPublicIP 回环、内网、链路本地和无法解析的地址都不查询
func IsPublicIP(ip string) bool {
	addr, err := netip.ParseAddr(strings.TrimSpace(ip))
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	return addr.IsGlobalUnicast() && !addr.IsPrivate() && !addr.IsLoopback() &&
		!addr.IsLinkLocalUnicast() && !addr.IsUnspecified()
}

type lookupResponse struct {
	Status      string  `json:"status"`
	Message     string  `json:"message"`
	Country     string  `json:"country"`
	CountryCode string  `json:"countryCode"`
	RegionName  string  `json:"regionName"`
	City        string  `json:"city"`
	Lat         float64 `json:"lat"`
	Lon         float64 `json:"lon"`
}

// Lookup 任何失败都返回 nil，不会影响请求
func (l *Locator) Lookup(ctx context.Context, ip string) *Location {
	if l == nil || !l.enabled || !IsPublicIP(ip) {
		return nil
	}
	loc, err := l.lookup(ctx, ip)
	if err != nil {
		logger.L.Warn("Geo lookup failed", zap.String("ip", ip), zap.Error(err))
		return nil
	}
	return loc
}

func (l *Locator) lookup(ctx context.Context, ip string) (*Location, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.baseURL+"/"+ip, nil)
	if err != nil {
		return nil, err
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	var body lookupResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode geo response: %w", err)
	}
	if body.Status != "" && body.Status != "success" {
		return nil, fmt.Errorf("geo lookup status %s: %s", body.Status, body.Message)
	}
	return &Location{
		Country:     body.Country,
		CountryCode: body.CountryCode,
		Region:      body.RegionName,
		City:        body.City,
		Lat:         body.Lat,
		Lon:         body.Lon,
	}, nil
}

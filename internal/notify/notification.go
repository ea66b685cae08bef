package notify

import (
	"context"
	"time"

	"doc-tracker/internal/geo"
	"doc-tracker/internal/model"
)

const (
	KindOpened         = "opened"
	KindRevisit        = "revisit"
	KindFirstPage      = "first_page"
	KindCompleted      = "completed"
	KindSessionSummary = "session_summary"
	KindSpaceView      = "space_view"
)

var allChannels = []string{ChannelEmail, ChannelChat, ChannelCRM}

// 每类通知发往哪些渠道
var kindChannels = map[string][]string{
	KindOpened:         allChannels,
	KindRevisit:        allChannels,
	KindFirstPage:      {ChannelEmail},
	KindCompleted:      allChannels,
	KindSessionSummary: {ChannelChat, ChannelCRM},
	KindSpaceView:      {ChannelEmail},
}

// Notification 触发一次通知所需的全部上下文
type Notification struct {
	Kind         string
	Owner        model.User
	DocumentID   uint
	DocumentName string
	ShareToken   string
	SpaceID      uint
	SpaceName    string

	ViewerID    string
	ViewerEmail string
	SessionID   string
	Device      string
	Location    *geo.Location
	PageNumber  int
	Duration    int64 // 秒
	PagesViewed []int
	OccurredAt  time.Time
}

type PageDwell struct {
	Page    int   `json:"page"`
	Seconds int64 `json:"seconds"`
}

// Metrics 阅读完成时的汇总，只计算一次，所有渠道共用
type Metrics struct {
	TotalTimeSeconds int64       `json:"total_time_seconds"`
	TopPages         []PageDwell `json:"top_pages"`
	IntentLevel      string      `json:"intent_level"`
}

type MetricsSource interface {
	CompletionMetrics(ctx context.Context, documentID uint, viewerID string) (*Metrics, error)
}

// ChannelsFor 过滤掉所有者没有开启的渠道
func ChannelsFor(kind string, owner model.User) []string {
	var channels []string
	for _, ch := range kindChannels[kind] {
		if channelAvailable(ch, owner) {
			channels = append(channels, ch)
		}
	}
	return channels
}

func channelAvailable(channel string, owner model.User) bool {
	switch channel {
	case ChannelEmail:
		return owner.NotifyByEmail && owner.Email != ""
	case ChannelChat:
		return owner.ChatWebhookURL != ""
	case ChannelCRM:
		return owner.CRMEnabled
	}
	return false
}

func targetFor(channel string, owner model.User) string {
	switch channel {
	case ChannelEmail:
		return owner.Email
	case ChannelChat:
		return owner.ChatWebhookURL
	case ChannelCRM:
		return owner.CRMAccountID
	}
	return ""
}

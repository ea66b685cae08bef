package model

import (
	"time"
)

// Share 表示一个带 token 的分享链接及其累计统计
type Share struct {
	ID         uint   `gorm:"primaryKey" json:"id"`
	Token      string `gorm:"type:varchar(64);not null;uniqueIndex" json:"token"`
	UserID     uint   `gorm:"not null;index" json:"user_id"`
	DocumentID uint   `gorm:"not null;index" json:"document_id"`
	SpaceID    *uint  `gorm:"index" json:"space_id,omitempty"`
	Active     bool   `gorm:"not null" json:"active"`

	Views             int64      `gorm:"not null;default:0" json:"views"`
	UniqueViewers     int64      `gorm:"not null;default:0" json:"unique_viewers"`
	TotalTimeSpent    int64      `gorm:"not null;default:0" json:"total_time_spent"` // 秒
	DownloadsAllowed  int64      `gorm:"not null;default:0" json:"downloads_allowed"`
	DownloadsBlocked  int64      `gorm:"not null;default:0" json:"downloads_blocked"`
	DownloadSuccesses int64      `gorm:"not null;default:0" json:"download_successes"`
	PrintsAllowed     int64      `gorm:"not null;default:0" json:"prints_allowed"`
	PrintsBlocked     int64      `gorm:"not null;default:0" json:"prints_blocked"`
	LastViewedAt      *time.Time `json:"last_viewed_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Document Document `gorm:"foreignKey:DocumentID" json:"-"`
	Owner    User     `gorm:"foreignKey:UserID" json:"-"`
}

// ShareViewer 是分享的独立访客集合，每个 (share, viewer) 只有一行
type ShareViewer struct {
	ShareID     uint      `gorm:"primaryKey;autoIncrement:false"`
	ViewerID    string    `gorm:"type:varchar(64);primaryKey"`
	FirstSeenAt time.Time `gorm:"not null"`
}

// SharePageStat 按页聚合的浏览次数、停留时间和最大滚动深度
type SharePageStat struct {
	ID             uint      `gorm:"primaryKey" json:"-"`
	ShareID        uint      `gorm:"not null;uniqueIndex:idx_share_page" json:"-"`
	PageNumber     int       `gorm:"not null;uniqueIndex:idx_share_page" json:"page_number"`
	Views          int64     `gorm:"not null;default:0" json:"views"`
	TimeSpent      int64     `gorm:"not null;default:0" json:"time_spent"`
	MaxScrollDepth int       `gorm:"not null;default:0" json:"max_scroll_depth"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// ShareEvent 下载/打印事件，每个分享只保留最近的若干条
type ShareEvent struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	ShareID   uint      `gorm:"not null;index" json:"share_id"`
	ViewerID  string    `gorm:"type:varchar(64)" json:"viewer_id"`
	SessionID string    `gorm:"type:varchar(128)" json:"session_id"`
	Event     string    `gorm:"type:varchar(32);not null" json:"event"`
	Allowed   bool      `json:"allowed"`
	CreatedAt time.Time `json:"created_at"`
}

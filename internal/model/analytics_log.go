package model

import (
	"time"

	"gorm.io/datatypes"
)

const (
	LogKindDocumentViewed = "document_viewed"
	LogKindPageView       = "page_view"
)

// AnalyticsLog 一次页面访问；page_time/scroll 只修改同一会话里最新的那一行
type AnalyticsLog struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	DocumentID  uint           `gorm:"not null;index:idx_log_lookup,priority:1" json:"document_id"`
	ViewerID    string         `gorm:"type:varchar(64);not null;index:idx_log_lookup,priority:2" json:"viewer_id"`
	SessionID   string         `gorm:"type:varchar(128);not null;index:idx_log_lookup,priority:3" json:"session_id"`
	PageNumber  int            `gorm:"not null;default:0;index:idx_log_lookup,priority:4" json:"page_number"`
	ShareID     uint           `gorm:"not null;index" json:"share_id"`
	Kind        string         `gorm:"type:varchar(32);not null" json:"kind"`
	ViewTime    int64          `gorm:"not null;default:0" json:"view_time"`
	ScrollDepth int            `gorm:"not null;default:0" json:"scroll_depth"`
	Device      string         `gorm:"type:varchar(16)" json:"device"`
	Metadata    datatypes.JSON `json:"metadata,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

package model

import (
	"time"

	"gorm.io/datatypes"
)

const (
	HeatmapClick          = "click"
	HeatmapMove           = "move"
	HeatmapScrollPosition = "scroll_position"
)

// HeatmapEvent 原始交互采样，只追加
type HeatmapEvent struct {
	ID         uint           `gorm:"primaryKey" json:"id"`
	DocumentID uint           `gorm:"not null;index:idx_heatmap_doc_page,priority:1" json:"document_id"`
	PageNumber int            `gorm:"not null;index:idx_heatmap_doc_page,priority:2" json:"page_number"`
	SessionID  string         `gorm:"type:varchar(128);not null;index" json:"session_id"`
	ViewerID   string         `gorm:"type:varchar(64)" json:"viewer_id"`
	Kind       string         `gorm:"type:varchar(20);not null" json:"kind"`
	X          float64        `gorm:"not null;default:0" json:"x"`
	Y          float64        `gorm:"not null;default:0" json:"y"`
	ScrollY    float64        `gorm:"not null;default:0" json:"scroll_y"`
	Points     datatypes.JSON `json:"points,omitempty"` // move 事件的批量坐标
	CreatedAt  time.Time      `json:"created_at"`
}

// IntentSignal 访客意向信号的有序日志
type IntentSignal struct {
	ID         uint           `gorm:"primaryKey" json:"id"`
	DocumentID uint           `gorm:"not null;index:idx_intent_viewer_doc,priority:2" json:"document_id"`
	ViewerID   string         `gorm:"type:varchar(64);not null;index:idx_intent_viewer_doc,priority:1" json:"viewer_id"`
	SessionID  string         `gorm:"type:varchar(128)" json:"session_id"`
	Signal     string         `gorm:"type:varchar(64);not null" json:"signal"`
	Weight     int            `gorm:"not null" json:"weight"`
	Metadata   datatypes.JSON `json:"metadata,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// Presence 实时在线记录，redis 不可用时使用
type Presence struct {
	ViewerID   string    `gorm:"type:varchar(64);primaryKey" json:"viewer_id"`
	DocumentID uint      `gorm:"primaryKey;autoIncrement:false" json:"document_id"`
	ShareID    uint      `gorm:"not null" json:"share_id"`
	SessionID  string    `gorm:"type:varchar(128)" json:"session_id"`
	PageNumber int       `json:"page_number"`
	LastSeenAt time.Time `gorm:"not null;index" json:"last_seen_at"`
}

package model

import (
	"time"

	"gorm.io/datatypes"
)

type Session struct {
	ID         uint           `gorm:"primaryKey" json:"-"`
	SessionID  string         `gorm:"type:varchar(128);not null;uniqueIndex" json:"session_id"`
	ShareID    uint           `gorm:"not null;index" json:"share_id"`
	DocumentID uint           `gorm:"not null;index:idx_session_viewer_doc,priority:2" json:"document_id"`
	ViewerID   string         `gorm:"type:varchar(64);not null;index:idx_session_viewer_doc,priority:1" json:"viewer_id"`
	StartedAt  time.Time      `gorm:"not null" json:"started_at"`
	EndedAt    *time.Time     `json:"ended_at,omitempty"`
	Duration   int64          `gorm:"not null;default:0" json:"duration"` // 秒，已截断
	Device     string         `gorm:"type:varchar(16)" json:"device"`
	Location   datatypes.JSON `json:"location,omitempty"`
	IsRevisit  bool           `json:"is_revisit"`
}

// SessionPage 会话内访问过的页面集合
type SessionPage struct {
	SessionID     string    `gorm:"type:varchar(128);primaryKey"`
	DocumentID    uint      `gorm:"primaryKey;autoIncrement:false"`
	ViewerID      string    `gorm:"type:varchar(64);primaryKey"`
	PageNumber    int       `gorm:"primaryKey;autoIncrement:false"`
	FirstViewedAt time.Time `gorm:"not null"`
}

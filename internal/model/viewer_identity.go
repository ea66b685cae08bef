package model

import (
	"time"
)

// ViewerIdentity 每个 (viewer, document) 一行，驱动回访检测和线索评分
type ViewerIdentity struct {
	ID          uint      `gorm:"primaryKey" json:"-"`
	ViewerID    string    `gorm:"type:varchar(64);not null;uniqueIndex:idx_viewer_document" json:"viewer_id"`
	DocumentID  uint      `gorm:"not null;uniqueIndex:idx_viewer_document" json:"document_id"`
	FirstSeenAt time.Time `gorm:"not null" json:"first_seen_at"`
	LastSeenAt  time.Time `gorm:"not null" json:"last_seen_at"`
	VisitCount  int64     `gorm:"not null;default:0" json:"visit_count"`
	IntentScore int64     `gorm:"not null;default:0" json:"intent_score"`
	LastEmail   string    `gorm:"type:varchar(255)" json:"last_email,omitempty"`
	LastDevice  string    `gorm:"type:varchar(16)" json:"last_device,omitempty"`
}

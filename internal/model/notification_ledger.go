package model

import (
	"time"
)

// NotificationLedger 只插入不更新，(kind, session, document) 唯一
type NotificationLedger struct {
	ID         uint      `gorm:"primaryKey"`
	Kind       string    `gorm:"type:varchar(32);not null;uniqueIndex:idx_ledger_key"`
	SessionID  string    `gorm:"type:varchar(128);not null;uniqueIndex:idx_ledger_key"`
	DocumentID uint      `gorm:"not null;uniqueIndex:idx_ledger_key"`
	ViewerID   string    `gorm:"type:varchar(64);index"`
	CreatedAt  time.Time `gorm:"not null"`
}

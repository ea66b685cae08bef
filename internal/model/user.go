package model

import (
	"gorm.io/gorm"
)

// User 文档所有者，通知渠道的开关保存在这里
type User struct {
	gorm.Model
	Email          string `gorm:"type:varchar(255);not null;uniqueIndex" json:"email"`
	DisplayName    string `gorm:"type:varchar(100)" json:"display_name"`
	NotifyByEmail  bool   `json:"notify_by_email"`
	ChatWebhookURL string `gorm:"type:varchar(512)" json:"-"`
	CRMEnabled     bool   `json:"crm_enabled"`
	CRMAccountID   string `gorm:"type:varchar(100)" json:"-"`
}

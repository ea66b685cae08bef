package model

import (
	"gorm.io/gorm"
)

// Document 只保存跟踪需要的元数据，文件本身在对象存储里
type Document struct {
	gorm.Model
	OwnerID  uint   `gorm:"not null;index" json:"owner_id"`
	Name     string `gorm:"type:varchar(255);not null" json:"name"`
	NumPages int    `gorm:"not null;default:0" json:"num_pages"`
}

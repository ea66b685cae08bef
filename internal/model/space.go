package model

import (
	"time"
)

const (
	SpaceStatusActive   = "active"
	SpaceStatusArchived = "archived"
)

// Space 是需要门禁检查的资料室
type Space struct {
	ID      uint   `gorm:"primaryKey" json:"id"`
	OwnerID uint   `gorm:"not null;index" json:"owner_id"`
	Name    string `gorm:"type:varchar(255);not null" json:"name"`
	Status  string `gorm:"type:varchar(16);not null;default:'active'" json:"status"`

	AutoExpiry         bool       `json:"auto_expiry"`
	ExpiryDate         *time.Time `json:"expiry_date,omitempty"`
	NDAEnabled         bool       `json:"nda_enabled"`
	NDASigningRequired bool       `json:"nda_signing_required"`
	NotifyOnView       bool       `json:"notify_on_view"`
	PasswordHash       string     `gorm:"type:varchar(100)" json:"-"` // bcrypt，为空表示不需要密码

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Owner         User                `gorm:"foreignKey:OwnerID" json:"-"`
	NDASignatures []SpaceNDASignature `gorm:"foreignKey:SpaceID" json:"nda_signatures,omitempty"`
	Visitors      []SpaceVisitor      `gorm:"foreignKey:SpaceID" json:"visitors,omitempty"`
}

type SpaceNDASignature struct {
	ID       uint      `gorm:"primaryKey" json:"id"`
	SpaceID  uint      `gorm:"not null;index" json:"space_id"`
	Email    string    `gorm:"type:varchar(255);not null" json:"email"`
	SignedAt time.Time `gorm:"not null" json:"signed_at"`
}

// SpaceVisitor 用于在24小时窗口内抑制重复的访问通知
type SpaceVisitor struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	SpaceID      uint      `gorm:"not null;index" json:"space_id"`
	Email        string    `gorm:"type:varchar(255);not null;index" json:"email"`
	FirstVisitAt time.Time `gorm:"not null" json:"first_visit_at"`
	LastVisitAt  time.Time `gorm:"not null" json:"last_visit_at"`
	VisitCount   int64     `gorm:"not null;default:1" json:"visit_count"`
}

package repository

import (
	"context"
	"time"

	"doc-tracker/internal/model"
	"doc-tracker/pkg/db"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PresenceStore 记录谁正在看某个文档
type PresenceStore interface {
	Touch(ctx context.Context, p model.Presence) error
	Active(ctx context.Context, documentID uint, since time.Time) ([]model.Presence, error)
}

// PresenceRepository 是基于数据库表的在线状态实现
type PresenceRepository struct {
	db *gorm.DB
}

func NewPresenceRepository() *PresenceRepository {
	return &PresenceRepository{db: db.DB}
}

func (r *PresenceRepository) Touch(ctx context.Context, p model.Presence) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "viewer_id"}, {Name: "document_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"share_id", "session_id", "page_number", "last_seen_at",
		}),
	}).Create(&p).Error
}

func (r *PresenceRepository) Active(ctx context.Context, documentID uint, since time.Time) ([]model.Presence, error) {
	var rows []model.Presence
	err := r.db.WithContext(ctx).
		Where("document_id = ? AND last_seen_at >= ?", documentID, since).
		Order("last_seen_at DESC").
		Find(&rows).Error
	return rows, err
}

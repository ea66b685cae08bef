package repository

import (
	"context"
	"time"

	"doc-tracker/internal/model"
	"doc-tracker/pkg/db"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type LedgerRepository struct {
	db *gorm.DB
}

func NewLedgerRepository() *LedgerRepository {
	return &LedgerRepository{db: db.DB}
}

func (r *LedgerRepository) Exists(ctx context.Context, kind, sessionID string, documentID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.NotificationLedger{}).
		Where("kind = ? AND session_id = ? AND document_id = ?", kind, sessionID, documentID).
		Count(&count).Error
	return count > 0, err
}

// 该访客在文档上是否已经触发过某类通知，不限会话
func (r *LedgerRepository) ExistsForViewer(ctx context.Context, kind, viewerID string, documentID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.NotificationLedger{}).
		Where("kind = ? AND viewer_id = ? AND document_id = ?", kind, viewerID, documentID).
		Count(&count).Error
	return count > 0, err
}

// 依靠唯一索引插入，已存在时返回 false
func (r *LedgerRepository) Insert(ctx context.Context, kind, sessionID string, documentID uint, viewerID string) (bool, error) {
	result := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "kind"}, {Name: "session_id"}, {Name: "document_id"}},
		DoNothing: true,
	}).Create(&model.NotificationLedger{
		Kind:       kind,
		SessionID:  sessionID,
		DocumentID: documentID,
		ViewerID:   viewerID,
		CreatedAt:  time.Now(),
	})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

package repository

import (
	"context"
	"errors"
	"time"

	"doc-tracker/internal/model"
	"doc-tracker/pkg/db"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type SessionRepository struct {
	db *gorm.DB
}

func NewSessionRepository() *SessionRepository {
	return &SessionRepository{db: db.DB}
}

// 在同一事务里执行 fn，fn 返回错误时整体回滚
func (r *SessionRepository) Transaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

func (r *SessionRepository) WithTx(tx *gorm.DB) *SessionRepository {
	return &SessionRepository{db: tx}
}

// SessionKey 会话只在 分享文档 + 访客 范围内有效
type SessionKey struct {
	SessionID  string
	DocumentID uint
	ViewerID   string
}

func (k SessionKey) where(tx *gorm.DB) *gorm.DB {
	return tx.Where("session_id = ? AND document_id = ? AND viewer_id = ?", k.SessionID, k.DocumentID, k.ViewerID)
}

// 是否存在同一访客对同一文档的其他会话
func (r *SessionRepository) ExistsOther(ctx context.Context, viewerID string, documentID uint, sessionID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Session{}).
		Where("viewer_id = ? AND document_id = ? AND session_id <> ?", viewerID, documentID, sessionID).
		Count(&count).Error
	return count > 0, err
}

// 创建会话，session_id 已存在时什么都不做并返回 false
func (r *SessionRepository) Create(ctx context.Context, session *model.Session) (bool, error) {
	result := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "session_id"}},
		DoNothing: true,
	}).Create(session)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// 查找会话，sessionId 属于其他文档或访客时视为不存在
func (r *SessionRepository) Find(ctx context.Context, key SessionKey) (*model.Session, error) {
	var session model.Session
	err := key.where(r.db.WithContext(ctx)).First(&session).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &session, nil
}

// 把页码加入会话的已访问页面集合
func (r *SessionRepository) AddPage(ctx context.Context, key SessionKey, page int, at time.Time) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&model.SessionPage{
		SessionID:     key.SessionID,
		DocumentID:    key.DocumentID,
		ViewerID:      key.ViewerID,
		PageNumber:    page,
		FirstViewedAt: at,
	}).Error
}

// 会话访问过的页面，按首次访问顺序
func (r *SessionRepository) Pages(ctx context.Context, key SessionKey) ([]int, error) {
	var pages []int
	err := key.where(r.db.WithContext(ctx).Model(&model.SessionPage{})).
		Order("first_viewed_at ASC").
		Order("page_number ASC").
		Pluck("page_number", &pages).Error
	return pages, err
}

// 结束会话，duration 由调用方截断
func (r *SessionRepository) Close(ctx context.Context, key SessionKey, endedAt time.Time, duration int64) error {
	return key.where(r.db.WithContext(ctx).Model(&model.Session{})).
		UpdateColumns(map[string]interface{}{
			"ended_at": endedAt,
			"duration": duration,
		}).Error
}

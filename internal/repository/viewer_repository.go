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

type ViewerRepository struct {
	db *gorm.DB
}

func NewViewerRepository() *ViewerRepository {
	return &ViewerRepository{db: db.DB}
}

func (r *ViewerRepository) WithTx(tx *gorm.DB) *ViewerRepository {
	return &ViewerRepository{db: tx}
}

// VisitUpdate 一次新会话对访客身份的修改
type VisitUpdate struct {
	ViewerID    string
	DocumentID  uint
	Email       string
	Device      string
	IntentBonus int64
	At          time.Time
}

var viewerConflictColumns = []clause.Column{{Name: "viewer_id"}, {Name: "document_id"}}

// 新会话：visit_count +1，回访时 intent_score 加上奖励分
func (r *ViewerRepository) RecordVisit(ctx context.Context, u VisitUpdate) error {
	row := &model.ViewerIdentity{
		ViewerID:    u.ViewerID,
		DocumentID:  u.DocumentID,
		FirstSeenAt: u.At,
		LastSeenAt:  u.At,
		VisitCount:  1,
		IntentScore: u.IntentBonus,
		LastEmail:   u.Email,
		LastDevice:  u.Device,
	}
	updates := map[string]interface{}{
		"visit_count":  gorm.Expr("viewer_identities.visit_count + ?", 1),
		"intent_score": gorm.Expr("viewer_identities.intent_score + ?", u.IntentBonus),
		"last_seen_at": u.At,
		"last_device":  u.Device,
	}
	if u.Email != "" {
		updates["last_email"] = u.Email
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   viewerConflictColumns,
		DoUpdates: clause.Assignments(updates),
	}).Create(row).Error
}

// 累加意向分，身份不存在时创建
func (r *ViewerRepository) AddIntent(ctx context.Context, viewerID string, documentID uint, weight int64, at time.Time) error {
	row := &model.ViewerIdentity{
		ViewerID:    viewerID,
		DocumentID:  documentID,
		FirstSeenAt: at,
		LastSeenAt:  at,
		IntentScore: weight,
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: viewerConflictColumns,
		DoUpdates: clause.Assignments(map[string]interface{}{
			"intent_score": gorm.Expr("viewer_identities.intent_score + ?", weight),
			"last_seen_at": at,
		}),
	}).Create(row).Error
}

func (r *ViewerRepository) Find(ctx context.Context, viewerID string, documentID uint) (*model.ViewerIdentity, error) {
	var identity model.ViewerIdentity
	err := r.db.WithContext(ctx).Where("viewer_id = ? AND document_id = ?", viewerID, documentID).First(&identity).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &identity, nil
}

// 按意向分从高到低列出文档的访客
func (r *ViewerRepository) ListByDocument(ctx context.Context, documentID uint, limit int) ([]model.ViewerIdentity, error) {
	var identities []model.ViewerIdentity
	err := r.db.WithContext(ctx).
		Where("document_id = ?", documentID).
		Order("intent_score DESC").
		Order("last_seen_at DESC").
		Limit(limit).
		Find(&identities).Error
	return identities, err
}

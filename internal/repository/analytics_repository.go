package repository

import (
	"context"
	"errors"

	"doc-tracker/internal/model"
	"doc-tracker/pkg/db"

	"gorm.io/gorm"
)

type AnalyticsRepository struct {
	db *gorm.DB
}

func NewAnalyticsRepository() *AnalyticsRepository {
	return &AnalyticsRepository{db: db.DB}
}

func (r *AnalyticsRepository) WithTx(tx *gorm.DB) *AnalyticsRepository {
	return &AnalyticsRepository{db: tx}
}

// PageDwell 某页的累计停留秒数
type PageDwell struct {
	PageNumber int   `json:"page_number"`
	Seconds    int64 `json:"seconds"`
}

func (r *AnalyticsRepository) Create(ctx context.Context, entry *model.AnalyticsLog) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

// 查找当前会话中该页最新的 page_view 记录，不会命中其他会话的记录
func (r *AnalyticsRepository) FindLatestInSession(ctx context.Context, documentID uint, viewerID, sessionID string, page int) (*model.AnalyticsLog, error) {
	var entry model.AnalyticsLog
	err := r.db.WithContext(ctx).
		Where("document_id = ? AND viewer_id = ? AND session_id = ? AND page_number = ? AND kind = ?",
			documentID, viewerID, sessionID, page, model.LogKindPageView).
		Order("id DESC").
		First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &entry, nil
}

// view_time 累加
func (r *AnalyticsRepository) AddViewTime(ctx context.Context, id uint, seconds int64) error {
	return r.db.WithContext(ctx).Model(&model.AnalyticsLog{}).Where("id = ?", id).Updates(map[string]interface{}{
		"view_time": gorm.Expr("view_time + ?", seconds),
	}).Error
}

// scroll_depth 取较大值
func (r *AnalyticsRepository) MaxScrollDepth(ctx context.Context, id uint, depth int) error {
	return r.db.WithContext(ctx).Model(&model.AnalyticsLog{}).Where("id = ?", id).Updates(map[string]interface{}{
		"scroll_depth": gorm.Expr("CASE WHEN scroll_depth < ? THEN ? ELSE scroll_depth END", depth, depth),
	}).Error
}

// 访客在该文档所有 page_view 记录上的总停留时间
func (r *AnalyticsRepository) TotalViewTime(ctx context.Context, documentID uint, viewerID string) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Model(&model.AnalyticsLog{}).
		Where("document_id = ? AND viewer_id = ? AND kind = ?", documentID, viewerID, model.LogKindPageView).
		Select("COALESCE(SUM(view_time), 0)").
		Scan(&total).Error
	return total, err
}

// 停留时间最长的前 n 页
func (r *AnalyticsRepository) TopPages(ctx context.Context, documentID uint, viewerID string, n int) ([]PageDwell, error) {
	var pages []PageDwell
	err := r.db.WithContext(ctx).Model(&model.AnalyticsLog{}).
		Select("page_number, SUM(view_time) AS seconds").
		Where("document_id = ? AND viewer_id = ? AND kind = ?", documentID, viewerID, model.LogKindPageView).
		Group("page_number").
		Order("seconds DESC").
		Order("page_number ASC").
		Limit(n).
		Scan(&pages).Error
	return pages, err
}

// 文档上某个会话内的记录，按时间顺序
func (r *AnalyticsRepository) ListBySession(ctx context.Context, documentID uint, sessionID string) ([]model.AnalyticsLog, error) {
	var entries []model.AnalyticsLog
	err := r.db.WithContext(ctx).
		Where("document_id = ? AND session_id = ?", documentID, sessionID).
		Order("id ASC").
		Find(&entries).Error
	return entries, err
}

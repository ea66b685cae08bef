package repository

import (
	"context"

	"doc-tracker/internal/model"
	"doc-tracker/pkg/db"

	"gorm.io/gorm"
)

// InteractionRepository 热力图采样和意向信号，都是只追加的数据
type InteractionRepository struct {
	db *gorm.DB
}

func NewInteractionRepository() *InteractionRepository {
	return &InteractionRepository{db: db.DB}
}

func (r *InteractionRepository) CreateHeatmapEvent(ctx context.Context, event *model.HeatmapEvent) error {
	return r.db.WithContext(ctx).Create(event).Error
}

func (r *InteractionRepository) CreateIntentSignal(ctx context.Context, signal *model.IntentSignal) error {
	return r.db.WithContext(ctx).Create(signal).Error
}

// 访客在文档上的意向信号，按发生顺序
func (r *InteractionRepository) ListIntentSignals(ctx context.Context, viewerID string, documentID uint) ([]model.IntentSignal, error) {
	var signals []model.IntentSignal
	err := r.db.WithContext(ctx).
		Where("viewer_id = ? AND document_id = ?", viewerID, documentID).
		Order("id ASC").
		Find(&signals).Error
	return signals, err
}

func (r *InteractionRepository) ListHeatmapEvents(ctx context.Context, documentID uint, page int) ([]model.HeatmapEvent, error) {
	var events []model.HeatmapEvent
	err := r.db.WithContext(ctx).
		Where("document_id = ? AND page_number = ?", documentID, page).
		Order("id ASC").
		Find(&events).Error
	return events, err
}

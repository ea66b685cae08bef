package repository

import (
	"context"
	"errors"
	"time"

	"doc-tracker/internal/model"
	"doc-tracker/pkg/db"

	"gorm.io/gorm"
)

type SpaceRepository struct {
	db *gorm.DB
}

func NewSpaceRepository() *SpaceRepository {
	return &SpaceRepository{db: db.DB}
}

// 一次取出门禁检查需要的全部数据
func (r *SpaceRepository) FindByID(ctx context.Context, spaceID uint) (*model.Space, error) {
	var space model.Space
	err := r.db.WithContext(ctx).
		Preload("Owner").
		Preload("NDASignatures").
		Preload("Visitors", func(tx *gorm.DB) *gorm.DB {
			return tx.Order("last_visit_at DESC")
		}).
		First(&space, spaceID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &space, nil
}

// 归档，可以重复调用
func (r *SpaceRepository) Archive(ctx context.Context, spaceID uint) error {
	return r.db.WithContext(ctx).Model(&model.Space{}).
		Where("id = ?", spaceID).
		Update("status", model.SpaceStatusArchived).Error
}

func (r *SpaceRepository) AddVisitor(ctx context.Context, visitor *model.SpaceVisitor) error {
	return r.db.WithContext(ctx).Create(visitor).Error
}

// 同一访客24小时内再次访问，只更新计数
func (r *SpaceRepository) TouchVisitor(ctx context.Context, visitorID uint, at time.Time) error {
	return r.db.WithContext(ctx).Model(&model.SpaceVisitor{}).
		Where("id = ?", visitorID).
		UpdateColumns(map[string]interface{}{
			"visit_count":   gorm.Expr("visit_count + ?", 1),
			"last_visit_at": at,
		}).Error
}

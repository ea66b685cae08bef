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

// 计数字段，IncrementCounters 只接受这些列
const (
	CounterViews             = "views"
	CounterUniqueViewers     = "unique_viewers"
	CounterTotalTimeSpent    = "total_time_spent"
	CounterDownloadsAllowed  = "downloads_allowed"
	CounterDownloadsBlocked  = "downloads_blocked"
	CounterDownloadSuccesses = "download_successes"
	CounterPrintsAllowed     = "prints_allowed"
	CounterPrintsBlocked     = "prints_blocked"
)

var shareCounters = map[string]struct{}{
	CounterViews:             {},
	CounterUniqueViewers:     {},
	CounterTotalTimeSpent:    {},
	CounterDownloadsAllowed:  {},
	CounterDownloadsBlocked:  {},
	CounterDownloadSuccesses: {},
	CounterPrintsAllowed:     {},
	CounterPrintsBlocked:     {},
}

var ErrUnknownCounter = errors.New("unknown share counter")

type ShareRepository struct {
	db *gorm.DB
}

func NewShareRepository() *ShareRepository {
	return &ShareRepository{db: db.DB}
}

func (r *ShareRepository) WithTx(tx *gorm.DB) *ShareRepository {
	return &ShareRepository{db: tx}
}

// 根据 token 查找启用中的分享，预加载文档和所有者
func (r *ShareRepository) FindActiveByToken(ctx context.Context, token string) (*model.Share, error) {
	var share model.Share
	err := r.db.WithContext(ctx).
		Preload("Document").
		Preload("Owner").
		Where("token = ? AND active = ?", token, true).
		First(&share).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &share, nil
}

// 根据 token 查找分享（包括已停用的），供所有者查看统计
func (r *ShareRepository) FindByToken(ctx context.Context, token string) (*model.Share, error) {
	var share model.Share
	err := r.db.WithContext(ctx).Preload("Document").Where("token = ?", token).First(&share).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &share, nil
}

// 原子地增加计数器，不在应用层读-改-写
func (r *ShareRepository) IncrementCounters(ctx context.Context, shareID uint, deltas map[string]int64) error {
	updates := make(map[string]interface{}, len(deltas))
	for column, delta := range deltas {
		if _, ok := shareCounters[column]; !ok {
			return ErrUnknownCounter
		}
		updates[column] = gorm.Expr(column+" + ?", delta)
	}
	if len(updates) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Model(&model.Share{}).Where("id = ?", shareID).UpdateColumns(updates).Error
}

// 记录一次打开
func (r *ShareRepository) RecordView(ctx context.Context, shareID uint, at time.Time) error {
	return r.db.WithContext(ctx).Model(&model.Share{}).Where("id = ?", shareID).UpdateColumns(map[string]interface{}{
		CounterViews:     gorm.Expr(CounterViews+" + ?", 1),
		"last_viewed_at": at,
	}).Error
}

// 把访客加入独立访客集合，首次加入时返回 true 并增加 unique_viewers
func (r *ShareRepository) AddViewer(ctx context.Context, shareID uint, viewerID string, at time.Time) (bool, error) {
	result := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&model.ShareViewer{
		ShareID:     shareID,
		ViewerID:    viewerID,
		FirstSeenAt: at,
	})
	if result.Error != nil {
		return false, result.Error
	}
	if result.RowsAffected == 0 {
		return false, nil
	}
	if err := r.IncrementCounters(ctx, shareID, map[string]int64{CounterUniqueViewers: 1}); err != nil {
		return true, err
	}
	return true, nil
}

func pageStatConflict(updates map[string]interface{}) clause.OnConflict {
	return clause.OnConflict{
		Columns:   []clause.Column{{Name: "share_id"}, {Name: "page_number"}},
		DoUpdates: clause.Assignments(updates),
	}
}

// 页面浏览次数 +1
func (r *ShareRepository) IncrementPageView(ctx context.Context, shareID uint, page int) error {
	row := &model.SharePageStat{ShareID: shareID, PageNumber: page, Views: 1}
	return r.db.WithContext(ctx).Clauses(pageStatConflict(map[string]interface{}{
		"views":      gorm.Expr("share_page_stats.views + ?", 1),
		"updated_at": time.Now(),
	})).Create(row).Error
}

// 页面停留时间累加
func (r *ShareRepository) AddPageTime(ctx context.Context, shareID uint, page int, seconds int64) error {
	row := &model.SharePageStat{ShareID: shareID, PageNumber: page, TimeSpent: seconds}
	return r.db.WithContext(ctx).Clauses(pageStatConflict(map[string]interface{}{
		"time_spent": gorm.Expr("share_page_stats.time_spent + ?", seconds),
		"updated_at": time.Now(),
	})).Create(row).Error
}

// 最大滚动深度只增不减
func (r *ShareRepository) MaxPageScroll(ctx context.Context, shareID uint, page int, depth int) error {
	row := &model.SharePageStat{ShareID: shareID, PageNumber: page, MaxScrollDepth: depth}
	return r.db.WithContext(ctx).Clauses(pageStatConflict(map[string]interface{}{
		"max_scroll_depth": gorm.Expr(
			"CASE WHEN share_page_stats.max_scroll_depth < ? THEN ? ELSE share_page_stats.max_scroll_depth END",
			depth, depth),
		"updated_at": time.Now(),
	})).Create(row).Error
}

// 按页码返回页面统计
func (r *ShareRepository) PageStats(ctx context.Context, shareID uint) ([]model.SharePageStat, error) {
	var stats []model.SharePageStat
	err := r.db.WithContext(ctx).Where("share_id = ?", shareID).Order("page_number ASC").Find(&stats).Error
	return stats, err
}

// 追加下载/打印事件，只保留最近 limit 条
func (r *ShareRepository) AppendEvent(ctx context.Context, event *model.ShareEvent, limit int) error {
	if err := r.db.WithContext(ctx).Create(event).Error; err != nil {
		return err
	}
	if limit <= 0 {
		return nil
	}

	var boundary []uint
	err := r.db.WithContext(ctx).Model(&model.ShareEvent{}).
		Where("share_id = ?", event.ShareID).
		Order("id DESC").
		Offset(limit - 1).
		Limit(1).
		Pluck("id", &boundary).Error
	if err != nil {
		return err
	}
	if len(boundary) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Where("share_id = ? AND id < ?", event.ShareID, boundary[0]).
		Delete(&model.ShareEvent{}).Error
}

// 最近的下载/打印事件
func (r *ShareRepository) RecentEvents(ctx context.Context, shareID uint, limit int) ([]model.ShareEvent, error) {
	var events []model.ShareEvent
	err := r.db.WithContext(ctx).Where("share_id = ?", shareID).Order("id DESC").Limit(limit).Find(&events).Error
	return events, err
}

package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"doc-tracker/internal/model"
	"doc-tracker/internal/repository"
)

var (
	ErrNotShareOwner  = errors.New("share belongs to another owner")
	ErrViewerNotFound = errors.New("viewer not found")
	ErrInvalidPage    = errors.New("page must be a positive integer")
)

const viewersListLimit = 100

type ShareSummary struct {
	Share        *model.Share          `json:"share"`
	Pages        []model.SharePageStat `json:"pages"`
	RecentEvents []model.ShareEvent    `json:"recent_events"`
}

// ViewerDetail 单个访客在文档上的身份和意向日志
type ViewerDetail struct {
	Viewer  *model.ViewerIdentity `json:"viewer"`
	Signals []model.IntentSignal  `json:"signals"`
}

// AnalyticsService 所有者查看分享统计
type AnalyticsService struct {
	shares       *repository.ShareRepository
	viewers      *repository.ViewerRepository
	logs         *repository.AnalyticsRepository
	interactions *repository.InteractionRepository
	engagement   *Engagement
	now          func() time.Time
}

func NewAnalyticsService(
	shares *repository.ShareRepository,
	viewers *repository.ViewerRepository,
	logs *repository.AnalyticsRepository,
	interactions *repository.InteractionRepository,
	engagement *Engagement,
) *AnalyticsService {
	return &AnalyticsService{
		shares:       shares,
		viewers:      viewers,
		logs:         logs,
		interactions: interactions,
		engagement:   engagement,
		now:          time.Now,
	}
}

func (s *AnalyticsService) ownedShare(ctx context.Context, ownerID uint, token string) (*model.Share, error) {
	share, err := s.shares.FindByToken(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("failed to load share: %w", err)
	}
	if share == nil {
		return nil, ErrShareNotFound
	}
	if share.UserID != ownerID {
		return nil, ErrNotShareOwner
	}
	return share, nil
}

func (s *AnalyticsService) Summary(ctx context.Context, ownerID uint, token string) (*ShareSummary, error) {
	share, err := s.ownedShare(ctx, ownerID, token)
	if err != nil {
		return nil, err
	}
	pages, err := s.shares.PageStats(ctx, share.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load page stats: %w", err)
	}
	events, err := s.shares.RecentEvents(ctx, share.ID, 20)
	if err != nil {
		return nil, fmt.Errorf("failed to load share events: %w", err)
	}
	return &ShareSummary{Share: share, Pages: pages, RecentEvents: events}, nil
}

// Viewers 按意向分排序
func (s *AnalyticsService) Viewers(ctx context.Context, ownerID uint, token string) ([]model.ViewerIdentity, error) {
	share, err := s.ownedShare(ctx, ownerID, token)
	if err != nil {
		return nil, err
	}
	return s.viewers.ListByDocument(ctx, share.DocumentID, viewersListLimit)
}

func (s *AnalyticsService) Presence(ctx context.Context, ownerID uint, token string) ([]model.Presence, error) {
	share, err := s.ownedShare(ctx, ownerID, token)
	if err != nil {
		return nil, err
	}
	return s.engagement.ActiveViewers(ctx, share.DocumentID, s.now())
}

func (s *AnalyticsService) ViewerDetail(ctx context.Context, ownerID uint, token, viewerID string) (*ViewerDetail, error) {
	share, err := s.ownedShare(ctx, ownerID, token)
	if err != nil {
		return nil, err
	}
	viewer, err := s.viewers.Find(ctx, viewerID, share.DocumentID)
	if err != nil {
		return nil, fmt.Errorf("failed to load viewer: %w", err)
	}
	if viewer == nil {
		return nil, ErrViewerNotFound
	}
	signals, err := s.interactions.ListIntentSignals(ctx, viewerID, share.DocumentID)
	if err != nil {
		return nil, fmt.Errorf("failed to load intent signals: %w", err)
	}
	return &ViewerDetail{Viewer: viewer, Signals: signals}, nil
}

// SessionLogs 只返回分享所在文档上的记录
func (s *AnalyticsService) SessionLogs(ctx context.Context, ownerID uint, token, sessionID string) ([]model.AnalyticsLog, error) {
	share, err := s.ownedShare(ctx, ownerID, token)
	if err != nil {
		return nil, err
	}
	return s.logs.ListBySession(ctx, share.DocumentID, sessionID)
}

func (s *AnalyticsService) Heatmap(ctx context.Context, ownerID uint, token string, page int) ([]model.HeatmapEvent, error) {
	if page < 1 {
		return nil, ErrInvalidPage
	}
	share, err := s.ownedShare(ctx, ownerID, token)
	if err != nil {
		return nil, err
	}
	return s.interactions.ListHeatmapEvents(ctx, share.DocumentID, page)
}

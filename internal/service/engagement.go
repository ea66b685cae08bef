package service

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"doc-tracker/internal/model"
	"doc-tracker/internal/notify"
	"doc-tracker/internal/repository"
	"doc-tracker/pkg/config"

	"gorm.io/datatypes"
)

const (
	IntentHigh   = "high"
	IntentMedium = "medium"
	IntentLow    = "low"

	topPagesInMetrics = 3
)

// 未在配置中出现的信号使用这张表，都不在时权重为 1
var defaultIntentWeights = map[string]int{
	"copy_attempt":     10,
	"download_attempt": 8,
	"print_attempt":    8,
	"return_visit":     6,
	"long_dwell":       5,
	"text_selection":   4,
	"zoom":             3,
	"fast_scroll":      2,
	"tab_visible":      1,
}

// Engagement 汇总页面、交互和意向数据
type Engagement struct {
	shares       *repository.ShareRepository
	analytics    *repository.AnalyticsRepository
	viewers      *repository.ViewerRepository
	interactions *repository.InteractionRepository
	presence     repository.PresenceStore
	cfg          config.TrackingConfig
	weights      map[string]int
}

func NewEngagement(
	shares *repository.ShareRepository,
	analytics *repository.AnalyticsRepository,
	viewers *repository.ViewerRepository,
	interactions *repository.InteractionRepository,
	presence repository.PresenceStore,
	cfg config.TrackingConfig,
) *Engagement {
	weights := make(map[string]int, len(defaultIntentWeights)+len(cfg.IntentWeights))
	for k, v := range defaultIntentWeights {
		weights[k] = v
	}
	for k, v := range cfg.IntentWeights {
		weights[k] = v
	}
	return &Engagement{
		shares:       shares,
		analytics:    analytics,
		viewers:      viewers,
		interactions: interactions,
		presence:     presence,
		cfg:          cfg,
		weights:      weights,
	}
}

// ClassifyIntent 按总阅读秒数分三档
func ClassifyIntent(totalSeconds int64) string {
	switch {
	case totalSeconds > 300:
		return IntentHigh
	case totalSeconds > 120:
		return IntentMedium
	}
	return IntentLow
}

// IntentWeight 未知信号权重为 1
func (e *Engagement) IntentWeight(signal string) int {
	if w, ok := e.weights[signal]; ok {
		return w
	}
	return 1
}

func clampInt64(v, lo, hi int64) int64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ClampSeconds 四舍五入到整秒并截断到 [0, max]
func ClampSeconds(v float64, max int) int64 {
	if math.IsNaN(v) {
		return 0
	}
	return clampInt64(int64(math.Round(math.Min(v, float64(max)))), 0, int64(max))
}

// CompletionMetrics 实现 notify.MetricsSource
func (e *Engagement) CompletionMetrics(ctx context.Context, documentID uint, viewerID string) (*notify.Metrics, error) {
	total, err := e.analytics.TotalViewTime(ctx, documentID, viewerID)
	if err != nil {
		return nil, fmt.Errorf("failed to sum view time: %w", err)
	}
	top, err := e.analytics.TopPages(ctx, documentID, viewerID, topPagesInMetrics)
	if err != nil {
		return nil, fmt.Errorf("failed to load top pages: %w", err)
	}
	pages := make([]notify.PageDwell, len(top))
	for i, p := range top {
		pages[i] = notify.PageDwell{Page: p.PageNumber, Seconds: p.Seconds}
	}
	return &notify.Metrics{
		TotalTimeSeconds: total,
		TopPages:         pages,
		IntentLevel:      ClassifyIntent(total),
	}, nil
}

// RecordPageView 页面计数 +1，并为本次浏览新建一条日志
func (e *Engagement) RecordPageView(ctx context.Context, v *visit, page int) error {
	if err := e.shares.IncrementPageView(ctx, v.share.ID, page); err != nil {
		return fmt.Errorf("failed to update page stats: %w", err)
	}
	entry := &model.AnalyticsLog{
		DocumentID: v.share.DocumentID,
		ViewerID:   v.viewerID,
		SessionID:  v.sessionID,
		PageNumber: page,
		ShareID:    v.share.ID,
		Kind:       model.LogKindPageView,
		Device:     v.device,
	}
	if err := e.analytics.Create(ctx, entry); err != nil {
		return fmt.Errorf("failed to write page view log: %w", err)
	}
	return nil
}

// RecordPageTime 累加到当前会话该页最新的日志上，没有则单独插入一条
func (e *Engagement) RecordPageTime(ctx context.Context, v *visit, page int, timeSpent float64) error {
	seconds := ClampSeconds(timeSpent, e.cfg.MaxPageTimeSeconds)
	if seconds <= 0 {
		return nil
	}

	entry, err := e.analytics.FindLatestInSession(ctx, v.share.DocumentID, v.viewerID, v.sessionID, page)
	if err != nil {
		return fmt.Errorf("failed to find page log: %w", err)
	}
	if entry != nil {
		err = e.analytics.AddViewTime(ctx, entry.ID, seconds)
	} else {
		err = e.analytics.Create(ctx, &model.AnalyticsLog{
			DocumentID: v.share.DocumentID,
			ViewerID:   v.viewerID,
			SessionID:  v.sessionID,
			PageNumber: page,
			ShareID:    v.share.ID,
			Kind:       model.LogKindPageView,
			ViewTime:   seconds,
			Device:     v.device,
		})
	}
	if err != nil {
		return fmt.Errorf("failed to record page time: %w", err)
	}

	if err := e.shares.AddPageTime(ctx, v.share.ID, page, seconds); err != nil {
		return fmt.Errorf("failed to update page time: %w", err)
	}
	return nil
}

// RecordScroll 滚动深度只取最大值
func (e *Engagement) RecordScroll(ctx context.Context, v *visit, page int, depth float64) error {
	if math.IsNaN(depth) {
		depth = 0
	}
	d := int(clampInt64(int64(math.Round(math.Max(math.Min(depth, 100), 0))), 0, 100))

	if err := e.shares.MaxPageScroll(ctx, v.share.ID, page, d); err != nil {
		return fmt.Errorf("failed to update scroll depth: %w", err)
	}

	entry, err := e.analytics.FindLatestInSession(ctx, v.share.DocumentID, v.viewerID, v.sessionID, page)
	if err != nil {
		return fmt.Errorf("failed to find page log: %w", err)
	}
	if entry != nil {
		err = e.analytics.MaxScrollDepth(ctx, entry.ID, d)
	} else {
		err = e.analytics.Create(ctx, &model.AnalyticsLog{
			DocumentID:  v.share.DocumentID,
			ViewerID:    v.viewerID,
			SessionID:   v.sessionID,
			PageNumber:  page,
			ShareID:     v.share.ID,
			Kind:        model.LogKindPageView,
			ScrollDepth: d,
			Device:      v.device,
		})
	}
	if err != nil {
		return fmt.Errorf("failed to record scroll depth: %w", err)
	}
	return nil
}

// RecordHeartbeat 心跳只累加分享的总时长
func (e *Engagement) RecordHeartbeat(ctx context.Context, v *visit, timeSpent float64) error {
	seconds := ClampSeconds(timeSpent, e.cfg.MaxHeartbeatSeconds)
	if seconds <= 0 {
		return nil
	}
	if err := e.shares.IncrementCounters(ctx, v.share.ID, map[string]int64{repository.CounterTotalTimeSpent: seconds}); err != nil {
		return fmt.Errorf("failed to add time spent: %w", err)
	}
	return nil
}

func (e *Engagement) RecordHeatmap(ctx context.Context, v *visit, ev *TrackEvent) error {
	event := &model.HeatmapEvent{
		DocumentID: v.share.DocumentID,
		PageNumber: ev.PageNumber(),
		SessionID:  v.sessionID,
		ViewerID:   v.viewerID,
		CreatedAt:  v.at,
	}
	switch ev.Event {
	case EventHeatmapClick:
		event.Kind = model.HeatmapClick
		event.X, event.Y = ev.X, ev.Y
	case EventHeatmapMove:
		event.Kind = model.HeatmapMove
		points := ev.Points
		if max := e.cfg.HeatmapMaxPoints; max > 0 && len(points) > max {
			points = points[:max]
		}
		raw, err := json.Marshal(points)
		if err != nil {
			return err
		}
		event.Points = datatypes.JSON(raw)
	case EventHeatmapScrollPosition:
		event.Kind = model.HeatmapScrollPosition
		event.ScrollY = ev.ScrollY
	default:
		return fmt.Errorf("not a heatmap event: %s", ev.Event)
	}
	if err := e.interactions.CreateHeatmapEvent(ctx, event); err != nil {
		return fmt.Errorf("failed to store heatmap event: %w", err)
	}
	return nil
}

// RecordIntent 追加信号并累加意向分，返回实际使用的权重
func (e *Engagement) RecordIntent(ctx context.Context, v *visit, signal string, metadata json.RawMessage) (int, error) {
	weight := e.IntentWeight(signal)
	record := &model.IntentSignal{
		DocumentID: v.share.DocumentID,
		ViewerID:   v.viewerID,
		SessionID:  v.sessionID,
		Signal:     signal,
		Weight:     weight,
		CreatedAt:  v.at,
	}
	if len(metadata) > 0 && json.Valid(metadata) {
		record.Metadata = datatypes.JSON(metadata)
	}
	if err := e.interactions.CreateIntentSignal(ctx, record); err != nil {
		return 0, fmt.Errorf("failed to store intent signal: %w", err)
	}
	if err := e.viewers.AddIntent(ctx, v.viewerID, v.share.DocumentID, int64(weight), v.at); err != nil {
		return 0, fmt.Errorf("failed to add intent score: %w", err)
	}
	return weight, nil
}

// RecordFileAction 下载/打印：按 allowed 计数并追加到有界事件列表
func (e *Engagement) RecordFileAction(ctx context.Context, v *visit, event string, allowed bool) error {
	var counter string
	switch event {
	case EventDownloadAttempt:
		counter = repository.CounterDownloadsBlocked
		if allowed {
			counter = repository.CounterDownloadsAllowed
		}
	case EventDownloadSuccess:
		counter = repository.CounterDownloadSuccesses
		allowed = true
	case EventPrintAttempt:
		counter = repository.CounterPrintsBlocked
		if allowed {
			counter = repository.CounterPrintsAllowed
		}
	default:
		return fmt.Errorf("not a file action: %s", event)
	}

	if err := e.shares.IncrementCounters(ctx, v.share.ID, map[string]int64{counter: 1}); err != nil {
		return fmt.Errorf("failed to update %s: %w", counter, err)
	}
	err := e.shares.AppendEvent(ctx, &model.ShareEvent{
		ShareID:   v.share.ID,
		ViewerID:  v.viewerID,
		SessionID: v.sessionID,
		Event:     event,
		Allowed:   allowed,
		CreatedAt: v.at,
	}, e.cfg.ShareEventLimit)
	if err != nil {
		return fmt.Errorf("failed to append share event: %w", err)
	}
	return nil
}

func (e *Engagement) RecordPresence(ctx context.Context, v *visit, page int) error {
	err := e.presence.Touch(ctx, model.Presence{
		ViewerID:   v.viewerID,
		DocumentID: v.share.DocumentID,
		ShareID:    v.share.ID,
		SessionID:  v.sessionID,
		PageNumber: page,
		LastSeenAt: v.at,
	})
	if err != nil {
		return fmt.Errorf("failed to update presence: %w", err)
	}
	return nil
}

// ActiveViewers 在 ttl 内有心跳的访客
func (e *Engagement) ActiveViewers(ctx context.Context, documentID uint, now time.Time) ([]model.Presence, error) {
	ttl := time.Duration(e.cfg.PresenceTTLSeconds) * time.Second
	if ttl <= 0 {
		ttl = time.Minute
	}
	return e.presence.Active(ctx, documentID, now.Add(-ttl))
}

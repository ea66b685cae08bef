package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"doc-tracker/internal/geo"
	"doc-tracker/internal/identity"
	"doc-tracker/internal/model"
	"doc-tracker/internal/notify"
	"doc-tracker/internal/repository"
	"doc-tracker/pkg/config"
	"doc-tracker/pkg/logger"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"go.uber.org/zap"
)

var (
	ErrMalformedBody = errors.New("request body is not valid JSON")
	ErrShareNotFound = errors.New("share not found or inactive")
)

// AccessDeniedError 受控空间拒绝了访问
type AccessDeniedError struct {
	Decision AccessDecision
}

func (e *AccessDeniedError) Error() string {
	return fmt.Sprintf("access denied: %s", e.Decision.Code)
}

// GeoLocator 由 geo.Locator 实现
type GeoLocator interface {
	Lookup(ctx context.Context, ip string) *geo.Location
}

type TrackRequest struct {
	Token   string
	Body    []byte
	Headers http.Header
}

// TrackingService 事件路由：解析、识别访客、持久化，再触发通知
type TrackingService struct {
	shares     *repository.ShareRepository
	spaces     *repository.SpaceRepository
	guard      *AccessGuard
	sessions   *SessionTracker
	engagement *Engagement
	ledger     *notify.DedupGuard
	notifier   Notifier
	locator    GeoLocator
	validator  *EventValidator
	cfg        config.TrackingConfig
	now        func() time.Time
}

type TrackingDeps struct {
	Shares     *repository.ShareRepository
	Spaces     *repository.SpaceRepository
	Guard      *AccessGuard
	Sessions   *SessionTracker
	Engagement *Engagement
	Ledger     *notify.DedupGuard
	Notifier   Notifier
	Locator    GeoLocator
	Validator  *EventValidator
	Config     config.TrackingConfig
}

func NewTrackingService(d TrackingDeps) *TrackingService {
	return &TrackingService{
		shares:     d.Shares,
		spaces:     d.Spaces,
		guard:      d.Guard,
		sessions:   d.Sessions,
		engagement: d.Engagement,
		ledger:     d.Ledger,
		notifier:   d.Notifier,
		locator:    d.Locator,
		validator:  d.Validator,
		cfg:        d.Config,
		now:        time.Now,
	}
}

// Track 返回 nil 表示事件已被接受（包括因字段不合法而跳过的事件）
func (s *TrackingService) Track(ctx context.Context, req TrackRequest) error {
	share, err := s.shares.FindActiveByToken(ctx, req.Token)
	if err != nil {
		return fmt.Errorf("failed to load share: %w", err)
	}
	if share == nil {
		return ErrShareNotFound
	}

	instance, err := jsonschema.UnmarshalJSON(bytes.NewReader(req.Body))
	if err != nil {
		return ErrMalformedBody
	}

	log := logger.L.With(zap.String("shareToken", req.Token))

	if err := s.validator.ValidateEnvelope(instance); err != nil {
		log.Debug("Skipping event with invalid envelope", zap.Error(err))
		return nil
	}
	var ev TrackEvent
	if err := json.Unmarshal(req.Body, &ev); err != nil {
		log.Debug("Skipping undecodable event", zap.Error(err))
		return nil
	}

	if share.SpaceID != nil {
		if err := s.checkSpace(ctx, *share.SpaceID, &ev); err != nil {
			return err
		}
	}

	v := s.resolveVisit(share, &ev, req.Headers)
	log = log.With(zap.String("event", ev.Event), zap.String("sessionID", v.sessionID))

	if !s.validator.Known(ev.Event) {
		log.Info("Ignoring unknown event type")
		return nil
	}
	if err := s.validator.Validate(ev.Event, instance); err != nil {
		log.Debug("Skipping event with missing or invalid fields", zap.Error(err))
		return nil
	}

	return s.handle(ctx, v, &ev)
}

func (s *TrackingService) checkSpace(ctx context.Context, spaceID uint, ev *TrackEvent) error {
	space, err := s.spaces.FindByID(ctx, spaceID)
	if err != nil {
		return fmt.Errorf("failed to load space: %w", err)
	}
	if space == nil {
		return nil
	}
	decision := s.guard.CheckAccess(ctx, space, AccessRequest{
		Email:       ev.Email,
		Password:    ev.Password,
		RecordVisit: ev.Event == EventSessionStart,
	})
	if !decision.Allowed {
		return &AccessDeniedError{Decision: decision}
	}
	return nil
}

func (s *TrackingService) resolveVisit(share *model.Share, ev *TrackEvent, headers http.Header) *visit {
	now := s.now()
	ip := identity.ClientIP(headers)
	ua := headers.Get("User-Agent")
	viewerID := identity.ViewerID(ip, ua)

	sessionID := ev.SessionID
	if sessionID == "" {
		sessionID = viewerID + "_" + strconv.FormatInt(now.UnixMilli(), 10)
	}
	return &visit{
		share:     share,
		viewerID:  viewerID,
		sessionID: sessionID,
		email:     ev.Email,
		device:    identity.DeviceClass(ua),
		ip:        ip,
		at:        now,
	}
}

func (s *TrackingService) handle(ctx context.Context, v *visit, ev *TrackEvent) error {
	switch ev.Event {
	case EventSessionStart:
		return s.onSessionStart(ctx, v)
	case EventPageView:
		return s.onPageView(ctx, v, ev)
	case EventPageTime:
		return s.engagement.RecordPageTime(ctx, v, ev.PageNumber(), ev.TimeSpent)
	case EventScroll:
		return s.engagement.RecordScroll(ctx, v, ev.PageNumber(), ev.ScrollDepth)
	case EventTimeSpent:
		return s.engagement.RecordHeartbeat(ctx, v, ev.TimeSpent)
	case EventSessionEnd:
		return s.onSessionEnd(ctx, v, ev)
	case EventHeatmapClick, EventHeatmapMove, EventHeatmapScrollPosition:
		return s.engagement.RecordHeatmap(ctx, v, ev)
	case EventIntentSignal:
		_, err := s.engagement.RecordIntent(ctx, v, ev.Signal, ev.Metadata)
		return err
	case EventDownloadAttempt, EventDownloadSuccess, EventPrintAttempt:
		return s.engagement.RecordFileAction(ctx, v, ev.Event, ev.Allowed)
	case EventPresencePing:
		return s.engagement.RecordPresence(ctx, v, ev.PageNumber())
	}
	return nil
}

func (s *TrackingService) onSessionStart(ctx context.Context, v *visit) error {
	var location *geo.Location
	if s.locator != nil {
		location = s.locator.Lookup(ctx, v.ip)
	}

	result, err := s.sessions.Start(ctx, v, location)
	if err != nil {
		return err
	}
	if !result.Created {
		logger.L.Debug("Replayed session_start ignored", zap.String("sessionID", v.sessionID))
		return nil
	}

	s.notifyOnce(ctx, notify.KindOpened, v, func(n *notify.Notification) {
		n.Location = location
	})
	if result.IsRevisit {
		s.notifyOnce(ctx, notify.KindRevisit, v, func(n *notify.Notification) {
			n.Location = location
		})
	}
	return nil
}

func (s *TrackingService) onPageView(ctx context.Context, v *visit, ev *TrackEvent) error {
	page := ev.PageNumber()
	if err := s.sessions.AddPage(ctx, v, page); err != nil {
		return err
	}
	if err := s.engagement.RecordPageView(ctx, v, page); err != nil {
		return err
	}

	if page == 1 {
		s.notifyOnce(ctx, notify.KindFirstPage, v, func(n *notify.Notification) {
			n.PageNumber = page
		})
	}

	numPages := v.share.Document.NumPages
	if numPages <= 0 {
		numPages = ev.TotalPages
	}
	if numPages > 0 && page == numPages {
		pages, err := s.sessions.Pages(ctx, v)
		if err != nil {
			logger.L.Warn("Failed to load session pages", zap.String("sessionID", v.sessionID), zap.Error(err))
		}
		s.notifyOnce(ctx, notify.KindCompleted, v, func(n *notify.Notification) {
			n.PageNumber = page
			n.PagesViewed = pages
		})
	}
	return nil
}

func (s *TrackingService) onSessionEnd(ctx context.Context, v *visit, ev *TrackEvent) error {
	session, duration, err := s.sessions.End(ctx, v, ev.Duration)
	if err != nil {
		return err
	}
	if session == nil {
		logger.L.Debug("session_end for unknown session", zap.String("sessionID", v.sessionID))
		return nil
	}

	if duration <= int64(s.cfg.SummaryMinDurationSeconds) {
		return nil
	}
	// 已经发过阅读完成通知的访客不再发会话总结
	if s.ledger.SentToViewer(ctx, notify.KindCompleted, v.viewerID, v.share.DocumentID) {
		return nil
	}

	pages, err := s.sessions.Pages(ctx, v)
	if err != nil {
		logger.L.Warn("Failed to load session pages", zap.String("sessionID", v.sessionID), zap.Error(err))
	}
	s.notifyOnce(ctx, notify.KindSessionSummary, v, func(n *notify.Notification) {
		n.Duration = duration
		n.PagesViewed = pages
		n.Device = session.Device
	})
	return nil
}

// notifyOnce 先在账本中占位，抢到的请求才会分发；任何失败只记录日志
func (s *TrackingService) notifyOnce(ctx context.Context, kind string, v *visit, fill func(n *notify.Notification)) {
	docID := v.share.DocumentID
	won, err := s.ledger.MarkSent(ctx, kind, v.sessionID, docID, v.viewerID)
	if err != nil {
		logger.L.Warn("Failed to write notification ledger",
			zap.String("kind", kind), zap.String("sessionID", v.sessionID), zap.Error(err))
		return
	}
	if !won {
		logger.L.Debug("Notification already sent", zap.String("kind", kind), zap.String("sessionID", v.sessionID))
		return
	}

	n := notify.Notification{
		Kind:         kind,
		Owner:        v.share.Owner,
		DocumentID:   docID,
		DocumentName: v.share.Document.Name,
		ShareToken:   v.share.Token,
		ViewerID:     v.viewerID,
		ViewerEmail:  v.email,
		SessionID:    v.sessionID,
		Device:       v.device,
		OccurredAt:   v.at,
	}
	if fill != nil {
		fill(&n)
	}
	s.notifier.Dispatch(ctx, n)
}

package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"doc-tracker/internal/geo"
	"doc-tracker/internal/model"
	"doc-tracker/internal/repository"
	"doc-tracker/pkg/config"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// visit 一次事件解析出的访客上下文
type visit struct {
	share     *model.Share
	viewerID  string
	sessionID string
	email     string
	device    string
	ip        string
	at        time.Time
}

// SessionStart session_start 的处理结果
type SessionStart struct {
	Created   bool // false 表示同一 sessionId 的重放
	IsRevisit bool
}

// SessionTracker 维护会话、访客身份和独立访客集合
type SessionTracker struct {
	sessions  *repository.SessionRepository
	viewers   *repository.ViewerRepository
	shares    *repository.ShareRepository
	analytics *repository.AnalyticsRepository
	cfg       config.TrackingConfig
}

func NewSessionTracker(
	sessions *repository.SessionRepository,
	viewers *repository.ViewerRepository,
	shares *repository.ShareRepository,
	analytics *repository.AnalyticsRepository,
	cfg config.TrackingConfig,
) *SessionTracker {
	return &SessionTracker{
		sessions:  sessions,
		viewers:   viewers,
		shares:    shares,
		analytics: analytics,
		cfg:       cfg,
	}
}

// Start 回访判断必须在创建会话之前读取
func (t *SessionTracker) Start(ctx context.Context, v *visit, location *geo.Location) (SessionStart, error) {
	docID := v.share.DocumentID

	revisit, err := t.sessions.ExistsOther(ctx, v.viewerID, docID, v.sessionID)
	if err != nil {
		return SessionStart{}, fmt.Errorf("failed to check previous sessions: %w", err)
	}

	session := &model.Session{
		SessionID:  v.sessionID,
		ShareID:    v.share.ID,
		DocumentID: docID,
		ViewerID:   v.viewerID,
		StartedAt:  v.at,
		Device:     v.device,
		IsRevisit:  revisit,
	}
	if location != nil {
		if raw, err := json.Marshal(location); err == nil {
			session.Location = datatypes.JSON(raw)
		}
	}
	var bonus int64
	if revisit {
		bonus = int64(t.cfg.RevisitIntentBonus)
	}

	// 会话行和它带来的身份、日志、计数在同一事务内提交
	created := false
	err = t.sessions.Transaction(ctx, func(tx *gorm.DB) error {
		ok, err := t.sessions.WithTx(tx).Create(ctx, session)
		if err != nil {
			return fmt.Errorf("failed to create session: %w", err)
		}
		if !ok {
			return nil
		}

		err = t.viewers.WithTx(tx).RecordVisit(ctx, repository.VisitUpdate{
			ViewerID:    v.viewerID,
			DocumentID:  docID,
			Email:       v.email,
			Device:      v.device,
			IntentBonus: bonus,
			At:          v.at,
		})
		if err != nil {
			return fmt.Errorf("failed to update viewer identity: %w", err)
		}

		err = t.analytics.WithTx(tx).Create(ctx, &model.AnalyticsLog{
			DocumentID: docID,
			ViewerID:   v.viewerID,
			SessionID:  v.sessionID,
			ShareID:    v.share.ID,
			Kind:       model.LogKindDocumentViewed,
			Device:     v.device,
		})
		if err != nil {
			return fmt.Errorf("failed to write view log: %w", err)
		}

		shares := t.shares.WithTx(tx)
		if _, err := shares.AddViewer(ctx, v.share.ID, v.viewerID, v.at); err != nil {
			return fmt.Errorf("failed to add unique viewer: %w", err)
		}
		if err := shares.RecordView(ctx, v.share.ID, v.at); err != nil {
			return fmt.Errorf("failed to count view: %w", err)
		}
		created = true
		return nil
	})
	if err != nil {
		return SessionStart{}, err
	}
	if !created {
		return SessionStart{}, nil
	}
	return SessionStart{Created: true, IsRevisit: revisit}, nil
}

func (v *visit) sessionKey() repository.SessionKey {
	return repository.SessionKey{
		SessionID:  v.sessionID,
		DocumentID: v.share.DocumentID,
		ViewerID:   v.viewerID,
	}
}

// AddPage 把页面加入会话的已访问集合
func (t *SessionTracker) AddPage(ctx context.Context, v *visit, page int) error {
	if err := t.sessions.AddPage(ctx, v.sessionKey(), page, v.at); err != nil {
		return fmt.Errorf("failed to add session page: %w", err)
	}
	return nil
}

func (t *SessionTracker) Pages(ctx context.Context, v *visit) ([]int, error) {
	return t.sessions.Pages(ctx, v.sessionKey())
}

// End 关闭会话，返回截断后的时长；会话不存在或不属于该分享文档和访客时返回 nil
func (t *SessionTracker) End(ctx context.Context, v *visit, reported *float64) (*model.Session, int64, error) {
	session, err := t.sessions.Find(ctx, v.sessionKey())
	if err != nil {
		return nil, 0, fmt.Errorf("failed to load session: %w", err)
	}
	if session == nil {
		return nil, 0, nil
	}

	var duration int64
	if reported != nil {
		duration = ClampSeconds(*reported, t.cfg.MaxSessionDurationSeconds)
	} else {
		duration = ClampSeconds(v.at.Sub(session.StartedAt).Seconds(), t.cfg.MaxSessionDurationSeconds)
	}

	if err := t.sessions.Close(ctx, v.sessionKey(), v.at, duration); err != nil {
		return nil, 0, fmt.Errorf("failed to close session: %w", err)
	}
	session.EndedAt = &v.at
	session.Duration = duration
	return session, duration, nil
}

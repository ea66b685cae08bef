package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"doc-tracker/internal/model"
	"doc-tracker/internal/notify"
	"doc-tracker/internal/repository"
	"doc-tracker/pkg/logger"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const (
	CodeExpired          = "EXPIRED"
	CodePasswordRequired = "PASSWORD_REQUIRED"
	CodeNDARequired      = "NDA_REQUIRED"

	anonymousVisitor = "anonymous"
	visitorWindow    = 24 * time.Hour
)

// AccessDecision 拒绝不是错误，由调用方映射为 403
type AccessDecision struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
	Code    string `json:"code,omitempty"`
}

type AccessRequest struct {
	Email    string
	Password string
	// 只有真正的访问才记录访客和通知，心跳之类的事件只做检查
	RecordVisit bool
}

// Notifier 由 notify.Dispatcher 实现
type Notifier interface {
	Dispatch(ctx context.Context, n notify.Notification)
}

// AccessGuard 访问受控空间前的检查：过期、密码、NDA、访问通知
type AccessGuard struct {
	spaces   *repository.SpaceRepository
	notifier Notifier
	now      func() time.Time
}

func NewAccessGuard(spaces *repository.SpaceRepository, notifier Notifier) *AccessGuard {
	return &AccessGuard{spaces: spaces, notifier: notifier, now: time.Now}
}

var ErrSpaceNotFound = errors.New("space not found")

// CheckSpace 加载空间后检查，供访问接口使用
func (g *AccessGuard) CheckSpace(ctx context.Context, spaceID uint, req AccessRequest) (AccessDecision, error) {
	space, err := g.spaces.FindByID(ctx, spaceID)
	if err != nil {
		return AccessDecision{}, fmt.Errorf("failed to load space: %w", err)
	}
	if space == nil {
		return AccessDecision{}, ErrSpaceNotFound
	}
	return g.CheckAccess(ctx, space, req), nil
}

func deny(code, reason string) AccessDecision {
	return AccessDecision{Allowed: false, Code: code, Reason: reason}
}

// CheckAccess 所有检查都基于同一份已加载的空间快照
func (g *AccessGuard) CheckAccess(ctx context.Context, space *model.Space, req AccessRequest) AccessDecision {
	now := g.now()

	// 1. 过期检查
	if space.AutoExpiry && space.ExpiryDate != nil && now.After(*space.ExpiryDate) {
		if space.Status != model.SpaceStatusArchived {
			if err := g.spaces.Archive(ctx, space.ID); err != nil {
				logger.L.Error("Failed to archive expired space", zap.Uint("spaceID", space.ID), zap.Error(err))
			} else {
				space.Status = model.SpaceStatusArchived
			}
		}
		return deny(CodeExpired, "this space has expired")
	}

	// 2. 访问密码
	if space.PasswordHash != "" {
		if req.Password == "" || bcrypt.CompareHashAndPassword([]byte(space.PasswordHash), []byte(req.Password)) != nil {
			return deny(CodePasswordRequired, "a valid password is required")
		}
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))

	// 3. NDA
	if space.NDAEnabled && space.NDASigningRequired && !hasSigned(space, email) {
		return deny(CodeNDARequired, "the NDA must be signed before viewing")
	}

	// 4. 访问通知，只影响通知频率，从不拒绝
	if space.NotifyOnView && req.RecordVisit {
		g.recordVisitor(ctx, space, email, now)
	}
	return AccessDecision{Allowed: true}
}

func hasSigned(space *model.Space, email string) bool {
	if email == "" {
		return false
	}
	for _, sig := range space.NDASignatures {
		if strings.EqualFold(strings.TrimSpace(sig.Email), email) {
			return true
		}
	}
	return false
}

func (g *AccessGuard) recordVisitor(ctx context.Context, space *model.Space, email string, now time.Time) {
	if email == "" {
		email = anonymousVisitor
	}

	for i := range space.Visitors {
		visitor := &space.Visitors[i]
		if strings.EqualFold(visitor.Email, email) && now.Sub(visitor.LastVisitAt) < visitorWindow {
			if err := g.spaces.TouchVisitor(ctx, visitor.ID, now); err != nil {
				logger.L.Warn("Failed to update space visitor", zap.Uint("spaceID", space.ID), zap.Error(err))
			}
			return
		}
	}

	visitor := &model.SpaceVisitor{
		SpaceID:      space.ID,
		Email:        email,
		FirstVisitAt: now,
		LastVisitAt:  now,
		VisitCount:   1,
	}
	if err := g.spaces.AddVisitor(ctx, visitor); err != nil {
		logger.L.Warn("Failed to log space visitor", zap.Uint("spaceID", space.ID), zap.Error(err))
		return
	}
	space.Visitors = append(space.Visitors, *visitor)

	if g.notifier == nil {
		return
	}
	n := notify.Notification{
		Kind:       notify.KindSpaceView,
		Owner:      space.Owner,
		SpaceID:    space.ID,
		SpaceName:  space.Name,
		OccurredAt: now,
	}
	if email != anonymousVisitor {
		n.ViewerEmail = email
	}
	g.notifier.Dispatch(ctx, n)
}

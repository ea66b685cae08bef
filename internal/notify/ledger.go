package notify

import (
	"context"

	"doc-tracker/pkg/logger"

	"go.uber.org/zap"
)

// LedgerStore 由 repository.LedgerRepository 实现
type LedgerStore interface {
	Exists(ctx context.Context, kind, sessionID string, documentID uint) (bool, error)
	ExistsForViewer(ctx context.Context, kind, viewerID string, documentID uint) (bool, error)
	Insert(ctx context.Context, kind, sessionID string, documentID uint, viewerID string) (bool, error)
}

// DedupGuard 保证每个 (kind, session, document) 最多尝试发送一次
type DedupGuard struct {
	store LedgerStore
}

func NewDedupGuard(store LedgerStore) *DedupGuard {
	return &DedupGuard{store: store}
}

// 查询失败时按未发送处理，真正的去重由 MarkSent 的唯一约束保证
func (g *DedupGuard) AlreadySent(ctx context.Context, kind, sessionID string, documentID uint) bool {
	sent, err := g.store.Exists(ctx, kind, sessionID, documentID)
	if err != nil {
		logger.L.Warn("Ledger lookup failed", zap.String("kind", kind), zap.String("sessionID", sessionID), zap.Error(err))
		return false
	}
	return sent
}

func (g *DedupGuard) SentToViewer(ctx context.Context, kind, viewerID string, documentID uint) bool {
	sent, err := g.store.ExistsForViewer(ctx, kind, viewerID, documentID)
	if err != nil {
		logger.L.Warn("Ledger lookup failed", zap.String("kind", kind), zap.String("viewerID", viewerID), zap.Error(err))
		return false
	}
	return sent
}

// MarkSent 返回 true 表示本次调用抢到了发送权，调用方需要负责发送
func (g *DedupGuard) MarkSent(ctx context.Context, kind, sessionID string, documentID uint, viewerID string) (bool, error) {
	return g.store.Insert(ctx, kind, sessionID, documentID, viewerID)
}

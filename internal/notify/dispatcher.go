package notify

import (
	"context"
	"sync"

	"doc-tracker/pkg/logger"

	"go.uber.org/zap"
)

// Dispatcher 把一条通知拆成各渠道的任务放入队列，不阻塞调用方
type Dispatcher struct {
	queue    Queue
	metrics  MetricsSource
	composer *Composer

	wg sync.WaitGroup
}

func NewDispatcher(queue Queue, metrics MetricsSource, composer *Composer) *Dispatcher {
	return &Dispatcher{queue: queue, metrics: metrics, composer: composer}
}

// Dispatch 立即返回，请求被取消也不会影响后台任务
func (d *Dispatcher) Dispatch(ctx context.Context, n Notification) {
	ctx = context.WithoutCancel(ctx)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				logger.L.Error("Notification dispatch panicked", zap.String("kind", n.Kind), zap.Any("panic", r))
			}
		}()
		d.dispatch(ctx, n)
	}()
}

// Wait 等待已经发起的分发完成，用于优雅退出和测试
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) dispatch(ctx context.Context, n Notification) {
	channels := ChannelsFor(n.Kind, n.Owner)
	if len(channels) == 0 {
		logger.L.Debug("No channel enabled for notification",
			zap.String("kind", n.Kind), zap.Uint("ownerID", n.Owner.ID))
		return
	}

	var metrics *Metrics
	if n.Kind == KindCompleted && d.metrics != nil {
		m, err := d.metrics.CompletionMetrics(ctx, n.DocumentID, n.ViewerID)
		if err != nil {
			logger.L.Warn("Failed to compute completion metrics", zap.Uint("documentID", n.DocumentID), zap.Error(err))
		} else {
			metrics = m
		}
	}

	for _, ch := range channels {
		if err := d.enqueue(ctx, ch, n, metrics); err != nil {
			logger.L.Warn("Failed to enqueue notification",
				zap.String("kind", n.Kind),
				zap.String("channel", ch),
				zap.String("sessionID", n.SessionID),
				zap.Error(err))
		}
	}
}

func (d *Dispatcher) enqueue(ctx context.Context, channel string, n Notification, m *Metrics) error {
	payload, err := d.composer.Compose(channel, n, m)
	if err != nil {
		return err
	}
	task, err := NewTask(n.Kind, channel, targetFor(channel, n.Owner), payload)
	if err != nil {
		return err
	}
	task.SessionID = n.SessionID
	task.DocumentID = n.DocumentID
	return d.queue.Enqueue(ctx, task)
}

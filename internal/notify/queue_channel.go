package notify

import (
	"context"
	"sync"
	"sync/atomic"

	"doc-tracker/pkg/logger"

	"go.uber.org/zap"
)

// ChannelQueue 进程内队列：带缓冲的通道加固定数量的 worker
type ChannelQueue struct {
	tasks   chan *Task
	workers int

	done   chan struct{}
	closed atomic.Bool
	wg     sync.WaitGroup
}

func NewChannelQueue(bufferSize, workers int) *ChannelQueue {
	if bufferSize <= 0 {
		bufferSize = 256
		logger.L.Warn("Invalid queue buffer size, using default", zap.Int("default", bufferSize))
	}
	if workers <= 0 {
		workers = 1
		logger.L.Warn("Invalid worker count, using default", zap.Int("default", workers))
	}
	return &ChannelQueue{
		tasks:   make(chan *Task, bufferSize),
		workers: workers,
		done:    make(chan struct{}),
	}
}

// Enqueue 从不阻塞，缓冲区满时丢弃任务
func (q *ChannelQueue) Enqueue(_ context.Context, task *Task) error {
	if q.closed.Load() {
		return ErrQueueClosed
	}
	select {
	case q.tasks <- task:
		logger.L.Debug("Task queued", zap.String("taskID", task.ID), zap.String("channel", task.Channel))
		return nil
	default:
		logger.L.Warn("Notification queue full. Dropping task.",
			zap.String("taskID", task.ID), zap.String("kind", task.Kind), zap.String("channel", task.Channel))
		return ErrQueueFull
	}
}

func (q *ChannelQueue) Start(ctx context.Context, handler Handler) error {
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.run(ctx, handler)
	}
	return nil
}

func (q *ChannelQueue) run(ctx context.Context, handler Handler) {
	defer q.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-q.done:
			return
		case task := <-q.tasks:
			if err := handler(ctx, task); err != nil {
				logger.L.Warn("Task handler returned error", zap.String("taskID", task.ID), zap.Error(err))
			}
		}
	}
}

// Close 停止 worker，缓冲区中尚未处理的任务会被丢弃
func (q *ChannelQueue) Close() error {
	if q.closed.CompareAndSwap(false, true) {
		close(q.done)
	}
	q.wg.Wait()
	return nil
}

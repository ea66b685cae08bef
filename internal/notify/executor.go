package notify

import (
	"context"
	"fmt"
	"time"

	"doc-tracker/pkg/logger"

	"go.uber.org/zap"
)

// Executor 是队列消费端，把任务交给对应渠道发送，不重试
type Executor struct {
	channels map[string]Channel
	timeout  time.Duration
}

func NewExecutor(timeout time.Duration, channels ...Channel) *Executor {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	m := make(map[string]Channel, len(channels))
	for _, ch := range channels {
		m[ch.Name()] = ch
	}
	return &Executor{channels: m, timeout: timeout}
}

func (e *Executor) Execute(ctx context.Context, task *Task) error {
	ch, ok := e.channels[task.Channel]
	if !ok {
		logger.L.Error("No sender for channel", zap.String("channel", task.Channel), zap.String("taskID", task.ID))
		return fmt.Errorf("no sender for channel %q", task.Channel)
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	start := time.Now()
	err := ch.Send(ctx, task)
	fields := []zap.Field{
		zap.String("taskID", task.ID),
		zap.String("kind", task.Kind),
		zap.String("channel", task.Channel),
		zap.String("sessionID", task.SessionID),
		zap.Duration("latency", time.Since(start)),
	}
	if err != nil {
		logger.L.Warn("Notification send failed", append(fields, zap.Error(err))...)
		return err
	}
	logger.L.Info("Notification sent", fields...)
	return nil
}

package notify

import (
	"context"
	"errors"
	"fmt"

	"doc-tracker/pkg/config"
	"doc-tracker/pkg/logger"

	"go.uber.org/zap"
)

var (
	ErrQueueFull   = errors.New("notification queue is full")
	ErrQueueClosed = errors.New("notification queue is closed")
)

// Handler 处理一条出队的任务
type Handler func(ctx context.Context, task *Task) error

// Queue 把通知从请求路径上解耦出来
type Queue interface {
	Enqueue(ctx context.Context, task *Task) error
	// Start 启动消费者后立即返回
	Start(ctx context.Context, handler Handler) error
	Close() error
}

// NewQueue 根据配置创建相应的队列实现
func NewQueue(cfg config.QueueConfig) (Queue, error) {
	logger.L.Info("Creating notification queue", zap.String("provider", cfg.Provider))

	switch cfg.Provider {
	case "", "channel":
		return NewChannelQueue(cfg.BufferSize, cfg.Workers), nil
	case "kafka":
		return NewKafkaQueue(cfg.Kafka)
	case "rabbitmq":
		return NewRabbitMQQueue(cfg.RabbitMQ)
	default:
		return nil, fmt.Errorf("unsupported queue provider %q", cfg.Provider)
	}
}

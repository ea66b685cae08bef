package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"doc-tracker/pkg/config"
	"doc-tracker/pkg/logger"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// RabbitMQQueue 持久化队列，消息体为 JSON
type RabbitMQQueue struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	queue    string
	prefetch int

	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
}

func NewRabbitMQQueue(cfg config.RabbitMQConfig) (*RabbitMQQueue, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open RabbitMQ channel: %w", err)
	}
	if _, err := ch.QueueDeclare(cfg.Queue, true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare queue %s: %w", cfg.Queue, err)
	}

	prefetch := cfg.Prefetch
	if prefetch <= 0 {
		prefetch = 1
	}
	return &RabbitMQQueue{conn: conn, channel: ch, queue: cfg.Queue, prefetch: prefetch}, nil
}

func (q *RabbitMQQueue) Enqueue(ctx context.Context, task *Task) error {
	body, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to marshal task: %w", err)
	}
	err = q.channel.PublishWithContext(ctx, "", q.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    task.ID,
		Type:         task.Kind,
		Body:         body,
	})
	if err != nil {
		logger.L.Error("Failed to publish task to RabbitMQ", zap.String("taskID", task.ID), zap.Error(err))
		return fmt.Errorf("failed to publish task: %w", err)
	}
	return nil
}

func (q *RabbitMQQueue) Start(ctx context.Context, handler Handler) error {
	if err := q.channel.Qos(q.prefetch, 0, false); err != nil {
		return err
	}
	deliveries, err := q.channel.Consume(q.queue, "", false, false, false, false, nil)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	q.cancelFunc = cancel
	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		if err := consumeDeliveries(ctx, deliveries, handler); err != nil {
			logger.L.Error("RabbitMQ consumer stopped", zap.Error(err))
		}
	}()
	return nil
}

func consumeDeliveries(ctx context.Context, deliveries <-chan amqp.Delivery, handler Handler) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case delivery, ok := <-deliveries:
			if !ok {
				return errors.New("delivery channel closed")
			}
			handleDelivery(ctx, delivery, handler)
		}
	}
}

// 无论成功与否都确认，失败的任务不会重新投递
func handleDelivery(ctx context.Context, delivery amqp.Delivery, handler Handler) {
	var task Task
	if err := json.Unmarshal(delivery.Body, &task); err != nil {
		logger.L.Error("Invalid task message", zap.Error(err))
		_ = delivery.Ack(false)
		return
	}
	if err := handler(ctx, &task); err != nil {
		logger.L.Warn("Task handler returned error", zap.String("taskID", task.ID), zap.Error(err))
	}
	_ = delivery.Ack(false)
}

func (q *RabbitMQQueue) Close() error {
	if q.cancelFunc != nil {
		q.cancelFunc()
	}
	q.wg.Wait()
	if err := q.channel.Close(); err != nil {
		logger.L.Warn("Failed to close RabbitMQ channel", zap.Error(err))
	}
	return q.conn.Close()
}

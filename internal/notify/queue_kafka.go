package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"doc-tracker/pkg/config"
	"doc-tracker/pkg/logger"

	"github.com/IBM/sarama"
	"go.uber.org/zap"
)

// KafkaQueue 任务以 protobuf 编码写入一个主题，由消费者组消费
type KafkaQueue struct {
	producer sarama.SyncProducer
	consumer sarama.ConsumerGroup
	topic    string

	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
}

// 发送失败直接返回错误，不在客户端重试
func newKafkaConfig() *sarama.Config {
	kConfig := sarama.NewConfig()
	kConfig.Producer.RequiredAcks = sarama.WaitForAll
	kConfig.Producer.Return.Successes = true
	kConfig.Producer.Retry.Max = 0
	kConfig.Consumer.Return.Errors = true
	kConfig.Consumer.Offsets.Initial = sarama.OffsetOldest
	kConfig.Version = sarama.V2_8_0_0
	return kConfig
}

func NewKafkaQueue(cfg config.KafkaConfig) (*KafkaQueue, error) {
	kConfig := newKafkaConfig()

	producer, err := sarama.NewSyncProducer(cfg.Brokers, kConfig)
	if err != nil {
		logger.L.Error("Failed to start Kafka producer", zap.Error(err))
		return nil, fmt.Errorf("failed to start Kafka producer: %w", err)
	}

	consumer, err := sarama.NewConsumerGroup(cfg.Brokers, cfg.ConsumerGroup, kConfig)
	if err != nil {
		logger.L.Error("Failed to start Kafka consumer group", zap.Error(err))
		producer.Close()
		return nil, fmt.Errorf("failed to start Kafka consumer group: %w", err)
	}

	return newKafkaQueue(producer, consumer, cfg.Topic), nil
}

func newKafkaQueue(producer sarama.SyncProducer, consumer sarama.ConsumerGroup, topic string) *KafkaQueue {
	return &KafkaQueue{
		producer: producer,
		consumer: consumer,
		topic:    topic,
	}
}

func (q *KafkaQueue) Enqueue(_ context.Context, task *Task) error {
	data, err := EncodeTask(task)
	if err != nil {
		return err
	}

	// 以文档为 key，同一文档的通知落在同一分区
	msg := &sarama.ProducerMessage{
		Topic: q.topic,
		Key:   sarama.StringEncoder(fmt.Sprintf("%d", task.DocumentID)),
		Value: sarama.ByteEncoder(data),
	}
	if _, _, err := q.producer.SendMessage(msg); err != nil {
		logger.L.Error("Failed to send task to Kafka", zap.String("taskID", task.ID), zap.Error(err))
		return fmt.Errorf("failed to send task to Kafka: %w", err)
	}
	return nil
}

func (q *KafkaQueue) Start(ctx context.Context, handler Handler) error {
	if q.consumer == nil {
		return fmt.Errorf("kafka queue has no consumer group")
	}
	ctx, cancel := context.WithCancel(ctx)
	q.cancelFunc = cancel

	q.wg.Add(2)
	go q.consume(ctx, handler)
	go q.logErrors(ctx)
	return nil
}

func (q *KafkaQueue) consume(ctx context.Context, handler Handler) {
	defer q.wg.Done()
	h := &kafkaConsumerHandler{ctx: ctx, handler: handler}
	for {
		select {
		case <-ctx.Done():
			logger.L.Info("Stopping Kafka consumer")
			return
		default:
			if err := q.consumer.Consume(ctx, []string{q.topic}, h); err != nil {
				logger.L.Error("Kafka consumer error", zap.Error(err))
				time.Sleep(5 * time.Second) // 失败时等待一段时间再重试
			}
		}
	}
}

func (q *KafkaQueue) logErrors(ctx context.Context) {
	defer q.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case err, ok := <-q.consumer.Errors():
			if !ok {
				return
			}
			logger.L.Warn("Kafka consumer group error", zap.Error(err))
		}
	}
}

func (q *KafkaQueue) Close() error {
	if q.cancelFunc != nil {
		q.cancelFunc()
	}
	if err := q.producer.Close(); err != nil {
		logger.L.Error("Failed to close Kafka producer", zap.Error(err))
	}
	if q.consumer != nil {
		if err := q.consumer.Close(); err != nil {
			logger.L.Error("Failed to close Kafka consumer group", zap.Error(err))
		}
	}
	q.wg.Wait()
	return nil
}

type kafkaConsumerHandler struct {
	ctx     context.Context
	handler Handler
}

func (h *kafkaConsumerHandler) Setup(_ sarama.ConsumerGroupSession) error {
	return nil
}

func (h *kafkaConsumerHandler) Cleanup(_ sarama.ConsumerGroupSession) error {
	return nil
}

func (h *kafkaConsumerHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for message := range claim.Messages() {
		h.handleMessage(message.Value)
		// 不重试，处理失败也提交位移
		session.MarkMessage(message, "")
	}
	return nil
}

func (h *kafkaConsumerHandler) handleMessage(data []byte) {
	task, err := DecodeTask(data)
	if err != nil {
		logger.L.Error("Failed to decode task from Kafka", zap.Error(err))
		return
	}
	if err := h.handler(h.ctx, task); err != nil {
		logger.L.Warn("Task handler returned error", zap.String("taskID", task.ID), zap.Error(err))
	}
}

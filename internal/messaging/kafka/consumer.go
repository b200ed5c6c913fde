package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/IBM/sarama"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/straycare/internal/messaging"
)

const defaultMaxRetries = 3

// EnvelopeHandler обрабатывает событие, прочитанное из Kafka.
type EnvelopeHandler func(ctx context.Context, env messaging.Envelope) error

// ConsumerConfig задаёт параметры consumer group.
type ConsumerConfig struct {
	Brokers    []string
	GroupID    string
	Topics     []string
	FromOldest bool
	MaxRetries int
}

// Consumer читает события пожертвований из consumer group.
// Сообщение, которое не удалось обработать за MaxRetries попыток, уходит в DLQ.
type Consumer struct {
	group       sarama.ConsumerGroup
	topics      []string
	handler     EnvelopeHandler
	logger      *log.Entry
	dlqProducer *Producer
	maxRetries  int
	wg          sync.WaitGroup
}

// NewConsumer создаёт consumer. dlqProducer может быть nil.
func NewConsumer(cfg ConsumerConfig, handler EnvelopeHandler, dlqProducer *Producer) (*Consumer, error) {
	config := sarama.NewConfig()
	config.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}
	config.Consumer.Offsets.Initial = sarama.OffsetNewest
	if cfg.FromOldest {
		config.Consumer.Offsets.Initial = sarama.OffsetOldest
	}
	config.Consumer.Return.Errors = true

	group, err := sarama.NewConsumerGroup(cfg.Brokers, cfg.GroupID, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka consumer: %w", err)
	}
	return newConsumer(group, cfg, handler, dlqProducer), nil
}

func newConsumer(group sarama.ConsumerGroup, cfg ConsumerConfig, handler EnvelopeHandler, dlqProducer *Producer) *Consumer {
	topics := cfg.Topics
	if len(topics) == 0 {
		topics = []string{TopicDonationEvents}
	}
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}
	return &Consumer{
		group:       group,
		topics:      topics,
		handler:     handler,
		logger:      log.WithField("component", "kafka-consumer"),
		dlqProducer: dlqProducer,
		maxRetries:  maxRetries,
	}
}

// Run читает сообщения до отмены ctx и закрывает группу.
func (c *Consumer) Run(ctx context.Context) error {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for err := range c.group.Errors() {
			c.logger.WithError(err).Error("consumer error")
		}
	}()

	c.logger.WithField("topics", c.topics).Info("kafka consumer started")
	var runErr error
	for {
		// Consume завершается при каждом rebalance.
		if err := c.group.Consume(ctx, c.topics, c); err != nil {
			c.logger.WithError(err).Error("error from consumer")
			if ctx.Err() == nil && errors.Is(err, sarama.ErrClosedConsumerGroup) {
				runErr = err
				break
			}
		}
		if ctx.Err() != nil {
			break
		}
	}

	if err := c.group.Close(); err != nil && runErr == nil {
		runErr = fmt.Errorf("failed to close kafka consumer: %w", err)
	}
	c.wg.Wait()
	c.logger.Info("kafka consumer stopped")
	return runErr
}

// Setup вызывается при старте сессии.
func (c *Consumer) Setup(sarama.ConsumerGroupSession) error { return nil }

// Cleanup вызывается при завершении сессии.
func (c *Consumer) Cleanup(sarama.ConsumerGroupSession) error { return nil }

// ConsumeClaim обрабатывает сообщения одной партиции.
func (c *Consumer) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case message, ok := <-claim.Messages():
			if !ok || message == nil {
				return nil
			}
			entry := c.logger.WithFields(log.Fields{
				"topic":     message.Topic,
				"partition": message.Partition,
				"offset":    message.Offset,
			})
			if err := c.handleMessage(session.Context(), message); err != nil {
				// Offset не коммитим: сообщение будет прочитано повторно.
				entry.WithError(err).Error("message processing failed")
				continue
			}
			session.MarkMessage(message, "")

		case <-session.Context().Done():
			return nil
		}
	}
}

func (c *Consumer) handleMessage(ctx context.Context, message *sarama.ConsumerMessage) error {
	env, err := messaging.DecodeEnvelope(message.Value)
	if err != nil {
		// Повтор не поможет битому сообщению.
		return c.deadLetter(message, err, 0)
	}

	retries := retryCount(message)
	var lastErr error
	for attempt := retries; attempt < c.maxRetries; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		lastErr = c.handler(ctx, env)
		if lastErr == nil {
			return nil
		}
		c.logger.WithError(lastErr).WithFields(log.Fields{
			"event_id":    env.ID,
			"event_type":  env.EventType,
			"attempt":     attempt + 1,
			"max_retries": c.maxRetries,
		}).Warn("event handler failed")
	}
	if lastErr == nil {
		lastErr = errors.New("retry budget exhausted before delivery")
	}
	return c.deadLetter(message, lastErr, c.maxRetries)
}

// deadLetter отправляет сообщение в DLQ. Без DLQ producer ошибка возвращается как есть.
func (c *Consumer) deadLetter(message *sarama.ConsumerMessage, cause error, retries int) error {
	if c.dlqProducer == nil {
		return cause
	}

	body, err := json.Marshal(deadLetterMessage{
		OriginalTopic:     message.Topic,
		OriginalPartition: message.Partition,
		OriginalOffset:    message.Offset,
		OriginalKey:       string(message.Key),
		OriginalValue:     string(message.Value),
		ErrorMessage:      cause.Error(),
		FailedAt:          time.Now().UTC(),
		RetryCount:        retries,
	})
	if err != nil {
		return fmt.Errorf("marshal dlq message: %w", err)
	}

	headers := map[string]string{
		HeaderOriginalTopic: message.Topic,
		HeaderErrorMessage:  cause.Error(),
		HeaderRetryCount:    strconv.Itoa(retries),
		HeaderFailedAt:      time.Now().UTC().Format(time.RFC3339),
	}
	if err := c.dlqProducer.Send(TopicDeadLetterQueue, string(message.Key), body, headers); err != nil {
		return fmt.Errorf("failed to send to DLQ: %w", err)
	}
	c.logger.WithFields(log.Fields{
		"topic":       message.Topic,
		"offset":      message.Offset,
		"retry_count": retries,
	}).Info("message sent to DLQ")
	return nil
}

type deadLetterMessage struct {
	OriginalTopic     string    `json:"original_topic"`
	OriginalPartition int32     `json:"original_partition"`
	OriginalOffset    int64     `json:"original_offset"`
	OriginalKey       string    `json:"original_key"`
	OriginalValue     string    `json:"original_value"`
	ErrorMessage      string    `json:"error_message"`
	FailedAt          time.Time `json:"failed_at"`
	RetryCount        int       `json:"retry_count"`
}

func retryCount(message *sarama.ConsumerMessage) int {
	for _, header := range message.Headers {
		if header == nil || string(header.Key) != HeaderRetryCount {
			continue
		}
		if count, err := strconv.Atoi(string(header.Value)); err == nil {
			return count
		}
	}
	return 0
}

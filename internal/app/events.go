package app

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/straycare/internal/domain"
	"github.com/vladislavdragonenkov/straycare/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/straycare/internal/messaging/rabbitmq"
)

// eventSink — publisher outbox вместе с опциональным DLQ.
type eventSink struct {
	publisher domain.OutboxPublisher
	dlq       domain.OutboxPublisher
	ping      func(ctx context.Context) error
	close     func() error
}

// initEventSink подключает брокер событий. Без брокера возвращает nil:
// события копятся в outbox и публикуются после настройки брокера.
func initEventSink(cfg Config, logger *log.Entry) (*eventSink, error) {
	switch cfg.EventsBroker {
	case EventsBrokerNone:
		logger.Info("event broker is not configured, outbox worker is disabled")
		return nil, nil

	case EventsBrokerKafka:
		producer, err := kafka.NewProducer(cfg.KafkaBrokers, "straycare-api")
		if err != nil {
			return nil, err
		}
		sink := &eventSink{
			publisher: kafka.NewOutboxPublisher(producer, cfg.KafkaTopic),
			ping:      func(context.Context) error { return nil },
			close:     producer.Close,
		}
		if cfg.KafkaDLQTopic != "" {
			sink.dlq = kafka.NewOutboxPublisher(producer, cfg.KafkaDLQTopic)
		}
		logger.WithFields(log.Fields{
			"brokers": cfg.KafkaBrokers,
			"topic":   cfg.KafkaTopic,
		}).Info("kafka producer initialized")
		return sink, nil

	case EventsBrokerRabbitMQ:
		publisher, err := rabbitmq.Dial(rabbitmq.Config{
			URL:      cfg.RabbitMQURL,
			Exchange: cfg.RabbitMQExchange,
		})
		if err != nil {
			return nil, err
		}
		logger.WithField("exchange", cfg.RabbitMQExchange).Info("rabbitmq publisher initialized")
		return &eventSink{
			publisher: publisher,
			ping:      func(context.Context) error { return publisher.Ping() },
			close:     publisher.Close,
		}, nil

	default:
		return nil, fmt.Errorf("unsupported events broker %q", cfg.EventsBroker)
	}
}

func (s *eventSink) shutdown(logger *log.Entry) {
	if s == nil || s.close == nil {
		return
	}
	if err := s.close(); err != nil {
		logger.WithError(err).Warn("failed to close event broker connection")
		return
	}
	logger.Info("event broker connection closed")
}

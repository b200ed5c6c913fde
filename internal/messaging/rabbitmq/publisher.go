// Package rabbitmq публикует события outbox в topic exchange RabbitMQ.
package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/straycare/internal/domain"
	"github.com/vladislavdragonenkov/straycare/internal/messaging"
)

const (
	// DefaultExchange — topic exchange, routing key совпадает с типом события.
	DefaultExchange       = "straycare.events"
	defaultConfirmTimeout = 5 * time.Second
)

// ErrNack возвращается, когда брокер отклонил сообщение.
var ErrNack = errors.New("publish NACK from broker")

// Config задаёт подключение к RabbitMQ.
type Config struct {
	URL            string
	Exchange       string
	ConfirmTimeout time.Duration
}

type channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Publisher публикует outbox-сообщения с publisher confirms.
// Вызовы Publish сериализуются: подтверждения приходят в порядке публикации.
type Publisher struct {
	conn     *amqp.Connection
	ch       channel
	acks     <-chan amqp.Confirmation
	exchange string
	timeout  time.Duration
	logger   *log.Entry
	now      func() time.Time

	mu sync.Mutex
}

// Dial подключается к брокеру, включает confirms и объявляет exchange.
func Dial(cfg Config) (*Publisher, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open rabbitmq channel: %w", err)
	}
	if err := ch.Confirm(false); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("enable publisher confirms: %w", err)
	}
	acks := ch.NotifyPublish(make(chan amqp.Confirmation, 1))

	p, err := newPublisher(ch, acks, cfg)
	if err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}
	p.conn = conn
	return p, nil
}

func newPublisher(ch channel, acks <-chan amqp.Confirmation, cfg Config) (*Publisher, error) {
	exchange := cfg.Exchange
	if exchange == "" {
		exchange = DefaultExchange
	}
	timeout := cfg.ConfirmTimeout
	if timeout <= 0 {
		timeout = defaultConfirmTimeout
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}
	return &Publisher{
		ch:       ch,
		acks:     acks,
		exchange: exchange,
		timeout:  timeout,
		logger:   log.WithField("component", "rabbitmq-publisher"),
		now:      time.Now,
	}, nil
}

// Publish отправляет событие и ждёт ack от брокера.
func (p *Publisher) Publish(event domain.OutboxMessage) error {
	env := messaging.NewEnvelope(event, p.now())
	body, err := env.Marshal()
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	err = p.ch.PublishWithContext(ctx, p.exchange, event.EventType, false, false, amqp.Publishing{
		DeliveryMode: amqp.Persistent,
		ContentType:  "application/json",
		MessageId:    event.ID,
		Type:         event.EventType,
		Timestamp:    env.PublishedAt,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish %s: %w", event.ID, err)
	}

	select {
	case conf, ok := <-p.acks:
		if !ok {
			return fmt.Errorf("publish %s: confirm channel closed", event.ID)
		}
		if !conf.Ack {
			return fmt.Errorf("publish %s: %w", event.ID, ErrNack)
		}
	case <-ctx.Done():
		return fmt.Errorf("publish %s: wait confirm: %w", event.ID, ctx.Err())
	}

	p.logger.WithFields(log.Fields{
		"exchange":    p.exchange,
		"routing_key": event.EventType,
		"outbox_id":   event.ID,
	}).Debug("message confirmed by rabbitmq")
	return nil
}

// Ping проверяет, что соединение с брокером открыто.
func (p *Publisher) Ping() error {
	if p.conn == nil || p.conn.IsClosed() {
		return errors.New("rabbitmq connection is closed")
	}
	return nil
}

// Close закрывает канал и соединение.
func (p *Publisher) Close() error {
	var errs []error
	if p.ch != nil {
		errs = append(errs, p.ch.Close())
	}
	if p.conn != nil {
		errs = append(errs, p.conn.Close())
	}
	return errors.Join(errs...)
}

var _ domain.OutboxPublisher = (*Publisher)(nil)

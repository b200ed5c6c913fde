// Package messaging содержит формат сообщений, общий для всех брокеров.
package messaging

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/straycare/internal/domain"
)

// Envelope — сообщение, которое уходит в брокер из outbox.
type Envelope struct {
	ID            string          `json:"id"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	EventType     string          `json:"event_type"`
	Payload       json.RawMessage `json:"payload"`
	PublishedAt   time.Time       `json:"published_at"`
}

// ErrEmptyEnvelope возвращается при декодировании сообщения без id или типа события.
var ErrEmptyEnvelope = errors.New("envelope has no id or event type")

// NewEnvelope упаковывает outbox-сообщение.
func NewEnvelope(msg domain.OutboxMessage, publishedAt time.Time) Envelope {
	payload := json.RawMessage(msg.Payload)
	if len(payload) == 0 {
		payload = json.RawMessage("null")
	}
	return Envelope{
		ID:            msg.ID,
		AggregateType: msg.AggregateType,
		AggregateID:   msg.AggregateID,
		EventType:     msg.EventType,
		Payload:       payload,
		PublishedAt:   publishedAt.UTC(),
	}
}

// Key возвращает ключ партиционирования: события одного заказа идут в одну партицию.
func (e Envelope) Key() string {
	if e.AggregateID != "" {
		return e.AggregateID
	}
	return e.ID
}

// Marshal сериализует конверт.
func (e Envelope) Marshal() ([]byte, error) {
	body, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal envelope %s: %w", e.ID, err)
	}
	return body, nil
}

// DecodeEnvelope разбирает сообщение, полученное из брокера.
func DecodeEnvelope(body []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return Envelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	if env.ID == "" || env.EventType == "" {
		return Envelope{}, ErrEmptyEnvelope
	}
	return env, nil
}

// DonationEvent извлекает событие пожертвования из payload.
func (e Envelope) DonationEvent() (domain.DonationEvent, error) {
	if e.AggregateType != domain.AggregateDonation {
		return domain.DonationEvent{}, fmt.Errorf("unexpected aggregate %q", e.AggregateType)
	}
	var event domain.DonationEvent
	if err := json.Unmarshal(e.Payload, &event); err != nil {
		return domain.DonationEvent{}, fmt.Errorf("decode donation event: %w", err)
	}
	return event, nil
}

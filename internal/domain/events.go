package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const AggregateDonation = "donation"

// Типы событий пожертвований.
const (
	EventDonationCreated          = "donation.created"
	EventDonationCompleted        = "donation.completed"
	EventDonationCaptureUnmatched = "donation.capture_unmatched"
)

// DonationEvent — полезная нагрузка событий пожертвований.
type DonationEvent struct {
	ExternalOrderID string    `json:"external_order_id"`
	Amount          string    `json:"amount,omitempty"`
	Currency        string    `json:"currency,omitempty"`
	Status          string    `json:"status"`
	CaptureID       string    `json:"capture_id,omitempty"`
	OccurredAt      time.Time `json:"occurred_at"`
}

// NewDonationOutboxMessage сериализует событие в сообщение outbox.
func NewDonationOutboxMessage(eventType string, event DonationEvent) (OutboxMessage, error) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return OutboxMessage{}, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	return OutboxMessage{
		ID:            uuid.NewString(),
		AggregateType: AggregateDonation,
		AggregateID:   event.ExternalOrderID,
		EventType:     eventType,
		Payload:       payload,
	}, nil
}

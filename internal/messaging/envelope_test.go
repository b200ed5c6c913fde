package messaging

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/straycare/internal/domain"
)

func TestEnvelope_RoundTripDonationEvent(t *testing.T) {
	msg, err := domain.NewDonationOutboxMessage(domain.EventDonationCompleted, domain.DonationEvent{
		ExternalOrderID: "ORDER-1",
		Amount:          "25.00",
		Currency:        "USD",
		Status:          "completed",
		CaptureID:       "CAP-1",
	})
	require.NoError(t, err)

	env := NewEnvelope(msg, time.Date(2026, 1, 2, 3, 4, 5, 0, time.FixedZone("x", 3600)))
	assert.Equal(t, "ORDER-1", env.Key())
	assert.Equal(t, time.UTC, env.PublishedAt.Location())

	body, err := env.Marshal()
	require.NoError(t, err)

	decoded, err := DecodeEnvelope(body)
	require.NoError(t, err)
	assert.Equal(t, msg.ID, decoded.ID)
	assert.Equal(t, domain.EventDonationCompleted, decoded.EventType)

	event, err := decoded.DonationEvent()
	require.NoError(t, err)
	assert.Equal(t, "CAP-1", event.CaptureID)
	assert.Equal(t, "25.00", event.Amount)
}

func TestEnvelope_KeyFallsBackToID(t *testing.T) {
	env := NewEnvelope(domain.OutboxMessage{ID: "m-1", EventType: "x"}, time.Now())
	assert.Equal(t, "m-1", env.Key())
	assert.JSONEq(t, "null", string(env.Payload))
}

func TestDecodeEnvelope_Rejects(t *testing.T) {
	_, err := DecodeEnvelope([]byte("{"))
	require.Error(t, err)

	_, err = DecodeEnvelope([]byte(`{"payload":{}}`))
	require.ErrorIs(t, err, ErrEmptyEnvelope)

	env := Envelope{ID: "1", EventType: "x", AggregateType: "animal", Payload: []byte(`{}`)}
	_, err = env.DonationEvent()
	require.Error(t, err)
}

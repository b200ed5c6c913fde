package rabbitmq

import (
	"context"
	"errors"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/straycare/internal/domain"
	"github.com/vladislavdragonenkov/straycare/internal/messaging"
)

type fakeChannel struct {
	declared   []string
	declareErr error
	publishErr error
	published  []amqp.Publishing
	keys       []string
	acks       chan amqp.Confirmation
	ack        *bool
	closed     bool
}

func (f *fakeChannel) ExchangeDeclare(name, kind string, _, _, _, _ bool, _ amqp.Table) error {
	f.declared = append(f.declared, name+":"+kind)
	return f.declareErr
}

func (f *fakeChannel) PublishWithContext(_ context.Context, _, key string, _, _ bool, msg amqp.Publishing) error {
	if f.publishErr != nil {
		return f.publishErr
	}
	f.published = append(f.published, msg)
	f.keys = append(f.keys, key)
	if f.ack != nil {
		f.acks <- amqp.Confirmation{DeliveryTag: uint64(len(f.published)), Ack: *f.ack}
	}
	return nil
}

func (f *fakeChannel) Close() error {
	f.closed = true
	return nil
}

func newFake(ack *bool) *fakeChannel {
	return &fakeChannel{acks: make(chan amqp.Confirmation, 1), ack: ack}
}

func completedEvent() domain.OutboxMessage {
	return domain.OutboxMessage{
		ID:            "m-1",
		AggregateType: domain.AggregateDonation,
		AggregateID:   "ORDER-1",
		EventType:     domain.EventDonationCompleted,
		Payload:       []byte(`{"external_order_id":"ORDER-1","status":"completed"}`),
	}
}

func TestPublisher_PublishConfirmed(t *testing.T) {
	ack := true
	ch := newFake(&ack)
	p, err := newPublisher(ch, ch.acks, Config{})
	require.NoError(t, err)
	assert.Equal(t, []string{DefaultExchange + ":topic"}, ch.declared)

	require.NoError(t, p.Publish(completedEvent()))
	require.Len(t, ch.published, 1)
	assert.Equal(t, domain.EventDonationCompleted, ch.keys[0])
	assert.Equal(t, "m-1", ch.published[0].MessageId)
	assert.Equal(t, amqp.Persistent, ch.published[0].DeliveryMode)

	env, err := messaging.DecodeEnvelope(ch.published[0].Body)
	require.NoError(t, err)
	assert.Equal(t, "ORDER-1", env.AggregateID)

	require.NoError(t, p.Close())
	assert.True(t, ch.closed)
}

func TestPublisher_Nack(t *testing.T) {
	ack := false
	ch := newFake(&ack)
	p, err := newPublisher(ch, ch.acks, Config{Exchange: "events"})
	require.NoError(t, err)

	assert.ErrorIs(t, p.Publish(completedEvent()), ErrNack)
}

func TestPublisher_ConfirmTimeout(t *testing.T) {
	ch := newFake(nil)
	p, err := newPublisher(ch, ch.acks, Config{ConfirmTimeout: 20 * time.Millisecond})
	require.NoError(t, err)

	assert.ErrorIs(t, p.Publish(completedEvent()), context.DeadlineExceeded)
}

func TestPublisher_PublishError(t *testing.T) {
	ch := newFake(nil)
	ch.publishErr = amqp.ErrClosed
	p, err := newPublisher(ch, ch.acks, Config{})
	require.NoError(t, err)

	assert.ErrorIs(t, p.Publish(completedEvent()), amqp.ErrClosed)
}

func TestPublisher_DeclareFailure(t *testing.T) {
	ch := newFake(nil)
	ch.declareErr = errors.New("access refused")

	_, err := newPublisher(ch, ch.acks, Config{})
	require.Error(t, err)
}

func TestPublisher_PingWithoutConnection(t *testing.T) {
	ch := newFake(nil)
	p, err := newPublisher(ch, ch.acks, Config{})
	require.NoError(t, err)

	assert.Error(t, p.Ping())
}

package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/straycare/internal/domain"
)

func donationMessage(id, orderID, eventType string) domain.OutboxMessage {
	return domain.OutboxMessage{
		ID:            id,
		AggregateType: domain.AggregateDonation,
		AggregateID:   orderID,
		EventType:     eventType,
		Payload:       []byte(`{"external_order_id":"` + orderID + `","status":"completed"}`),
	}
}

func TestWorker_ProcessOnce_MarkSent(t *testing.T) {
	t.Parallel()

	repo := &stubOutboxRepo{
		pending: []domain.OutboxMessage{donationMessage("msg-1", "ORDER-1", domain.EventDonationCompleted)},
	}
	publisher := &stubPublisher{}

	worker := NewWorker(repo, publisher, WithRetryBaseDelay(0), WithMaxAttempts(3))

	if sent := worker.ProcessOnce(context.Background()); sent != 1 {
		t.Fatalf("expected 1 published event, got %d", sent)
	}
	if got := len(repo.sentIDs); got != 1 || repo.sentIDs[0] != "msg-1" {
		t.Fatalf("expected msg-1 marked sent, got %v", repo.sentIDs)
	}
	if got := len(repo.failedIDs); got != 0 {
		t.Fatalf("expected 0 failed marks, got %d", got)
	}
	if got := publisher.calls(); got != 1 {
		t.Fatalf("expected 1 publish call, got %d", got)
	}
}

func TestWorker_ProcessOnce_PreservesOrder(t *testing.T) {
	t.Parallel()

	repo := &stubOutboxRepo{
		pending: []domain.OutboxMessage{
			donationMessage("msg-1", "ORDER-1", domain.EventDonationCreated),
			donationMessage("msg-2", "ORDER-1", domain.EventDonationCompleted),
		},
	}
	publisher := &stubPublisher{}

	NewWorker(repo, publisher, WithRetryBaseDelay(0)).ProcessOnce(context.Background())

	got := publisher.eventTypes()
	if len(got) != 2 || got[0] != domain.EventDonationCreated || got[1] != domain.EventDonationCompleted {
		t.Fatalf("unexpected publish order: %v", got)
	}
}

func TestWorker_ProcessOnce_MarkFailedAndDLQAfterRetries(t *testing.T) {
	t.Parallel()

	repo := &stubOutboxRepo{
		pending: []domain.OutboxMessage{donationMessage("msg-2", "ORDER-2", domain.EventDonationCompleted)},
	}
	publisher := &stubPublisher{err: errors.New("broker unavailable")}
	dlqPublisher := &stubPublisher{}

	worker := NewWorker(
		repo,
		publisher,
		WithDLQPublisher(dlqPublisher),
		WithRetryBaseDelay(0),
		WithMaxAttempts(3),
	)

	if sent := worker.ProcessOnce(context.Background()); sent != 0 {
		t.Fatalf("expected nothing published, got %d", sent)
	}
	if got := publisher.calls(); got != 3 {
		t.Fatalf("expected 3 publish attempts, got %d", got)
	}
	if got := len(repo.sentIDs); got != 0 {
		t.Fatalf("expected 0 sent marks, got %d", got)
	}
	if got := len(repo.failedIDs); got != 1 || repo.failedIDs[0] != "msg-2" {
		t.Fatalf("expected msg-2 marked failed, got %v", repo.failedIDs)
	}
	if got := dlqPublisher.calls(); got != 1 {
		t.Fatalf("expected 1 DLQ publish, got %d", got)
	}

	var letter DeadLetter
	if err := json.Unmarshal(dlqPublisher.last().Payload, &letter); err != nil {
		t.Fatalf("decode dead letter: %v", err)
	}
	if letter.OutboxID != "msg-2" || letter.AggregateID != "ORDER-2" || letter.EventType != domain.EventDonationCompleted {
		t.Fatalf("unexpected dead letter: %+v", letter)
	}
	if letter.PublishError == "" || letter.DLQPublishedAt.IsZero() {
		t.Fatalf("expected publish error and timestamp in dead letter: %+v", letter)
	}
	if string(letter.Payload) != string(repo.pending[0].Payload) {
		t.Fatalf("expected original payload to be embedded, got %s", letter.Payload)
	}
}

func TestWorker_ProcessOnce_DLQWrapsNonJSONPayload(t *testing.T) {
	t.Parallel()

	msg := donationMessage("msg-raw", "ORDER-9", domain.EventDonationCreated)
	msg.Payload = []byte("not json")
	repo := &stubOutboxRepo{pending: []domain.OutboxMessage{msg}}
	dlqPublisher := &stubPublisher{}

	NewWorker(repo, &stubPublisher{err: errors.New("down")},
		WithDLQPublisher(dlqPublisher), WithRetryBaseDelay(0), WithMaxAttempts(1),
	).ProcessOnce(context.Background())

	var letter DeadLetter
	if err := json.Unmarshal(dlqPublisher.last().Payload, &letter); err != nil {
		t.Fatalf("decode dead letter: %v", err)
	}
	if string(letter.Payload) != `"not json"` {
		t.Fatalf("expected quoted payload, got %s", letter.Payload)
	}
}

func TestWorker_ProcessOnce_SuccessAfterRetry(t *testing.T) {
	t.Parallel()

	repo := &stubOutboxRepo{
		pending: []domain.OutboxMessage{donationMessage("msg-3", "ORDER-3", domain.EventDonationCreated)},
	}
	publisher := &stubPublisher{
		sequenceErrors: []error{errors.New("attempt 1"), errors.New("attempt 2"), nil},
	}

	NewWorker(repo, publisher, WithRetryBaseDelay(0), WithMaxAttempts(3)).ProcessOnce(context.Background())

	if got := publisher.calls(); got != 3 {
		t.Fatalf("expected 3 publish attempts, got %d", got)
	}
	if got := len(repo.sentIDs); got != 1 {
		t.Fatalf("expected 1 sent mark, got %d", got)
	}
	if got := len(repo.failedIDs); got != 0 {
		t.Fatalf("expected 0 failed marks, got %d", got)
	}
}

func TestWorker_ProcessOnce_PullFailure(t *testing.T) {
	t.Parallel()

	repo := &stubOutboxRepo{pullErr: errors.New("db down")}
	publisher := &stubPublisher{}

	if sent := NewWorker(repo, publisher).ProcessOnce(context.Background()); sent != 0 {
		t.Fatalf("expected 0 published, got %d", sent)
	}
	if publisher.calls() != 0 {
		t.Fatalf("publisher must not be called when pull fails")
	}
}

func TestWorker_RetryBackoff(t *testing.T) {
	t.Parallel()

	worker := NewWorker(&stubOutboxRepo{}, &stubPublisher{}, WithRetryBaseDelay(10*time.Second))

	cases := map[int]time.Duration{
		1: 10 * time.Second,
		2: 20 * time.Second,
		3: maxRetryDelay,
		8: maxRetryDelay,
	}
	for attempt, want := range cases {
		if got := worker.retryBackoff(attempt); got != want {
			t.Fatalf("attempt %d: expected %s, got %s", attempt, want, got)
		}
	}
}

func TestWorker_Run_StopsOnContextCancel(t *testing.T) {
	t.Parallel()

	worker := NewWorker(
		&stubOutboxRepo{},
		&stubPublisher{},
		WithPollInterval(5*time.Millisecond),
		WithRetryBaseDelay(0),
	)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- worker.Run(ctx)
	}()

	time.Sleep(15 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected nil error on cancel, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("worker did not stop on context cancel")
	}
}

type stubOutboxRepo struct {
	pending   []domain.OutboxMessage
	pullErr   error
	sentIDs   []string
	failedIDs []string
}

func (s *stubOutboxRepo) PullPending(limit int) ([]domain.OutboxMessage, error) {
	if s.pullErr != nil {
		return nil, s.pullErr
	}
	if limit <= 0 || limit >= len(s.pending) {
		return append([]domain.OutboxMessage(nil), s.pending...), nil
	}
	return append([]domain.OutboxMessage(nil), s.pending[:limit]...), nil
}

func (s *stubOutboxRepo) Stats() (domain.OutboxStats, error) {
	stats := domain.OutboxStats{PendingCount: len(s.pending)}
	if len(s.pending) > 0 {
		stats.OldestPendingAt = time.Now().UTC().Add(-time.Second)
	}
	return stats, nil
}

func (s *stubOutboxRepo) MarkSent(id string) error {
	s.sentIDs = append(s.sentIDs, id)
	return nil
}

func (s *stubOutboxRepo) MarkFailed(id string) error {
	s.failedIDs = append(s.failedIDs, id)
	return nil
}

type stubPublisher struct {
	mu             sync.Mutex
	err            error
	sequenceErrors []error
	published      []domain.OutboxMessage
	callCount      int
}

func (s *stubPublisher) Publish(event domain.OutboxMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.callCount++
	s.published = append(s.published, event)
	if len(s.sequenceErrors) > 0 {
		err := s.sequenceErrors[0]
		s.sequenceErrors = s.sequenceErrors[1:]
		return err
	}
	return s.err
}

func (s *stubPublisher) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.callCount
}

func (s *stubPublisher) last() domain.OutboxMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.published[len(s.published)-1]
}

func (s *stubPublisher) eventTypes() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.published))
	for _, e := range s.published {
		out = append(out, e.EventType)
	}
	return out
}

var (
	_ domain.OutboxRepository = (*stubOutboxRepo)(nil)
	_ domain.OutboxPublisher  = (*stubPublisher)(nil)
)

package memory

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/straycare/internal/domain"
)

type outboxStatus string

const (
	outboxPending outboxStatus = "pending"
	outboxSent    outboxStatus = "sent"
	outboxFailed  outboxStatus = "failed"
)

// outboxRecord хранит сообщение и служебные поля.
type outboxRecord struct {
	msg       domain.OutboxMessage
	status    outboxStatus
	attempts  int
	seq       int64
	createdAt time.Time
	updatedAt time.Time
}

// OutboxRepository — in-memory transactional outbox.
// Сообщения добавляет Store при фиксации транзакции.
type OutboxRepository struct {
	mu      sync.RWMutex
	records map[string]*outboxRecord
	seq     int64
}

// NewOutboxRepository создаёт пустой outbox.
func NewOutboxRepository() *OutboxRepository {
	return &OutboxRepository{records: make(map[string]*outboxRecord)}
}

func (r *OutboxRepository) enqueue(msg domain.OutboxMessage, now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	r.seq++
	r.records[msg.ID] = &outboxRecord{
		msg:       msg,
		status:    outboxPending,
		seq:       r.seq,
		createdAt: now,
		updatedAt: now,
	}
}

// PullPending возвращает до limit pending-сообщений в порядке добавления.
func (r *OutboxRepository) PullPending(limit int) ([]domain.OutboxMessage, error) {
	if limit <= 0 {
		limit = 100
	}

	pending := r.byStatus(outboxPending)
	if len(pending) > limit {
		pending = pending[:limit]
	}
	result := make([]domain.OutboxMessage, len(pending))
	for i, rec := range pending {
		result[i] = rec.msg
	}
	return result, nil
}

// Stats возвращает размер backlog и время самого старого pending-сообщения.
func (r *OutboxRepository) Stats() (domain.OutboxStats, error) {
	pending := r.byStatus(outboxPending)
	stats := domain.OutboxStats{PendingCount: len(pending)}
	if len(pending) > 0 {
		stats.OldestPendingAt = pending[0].createdAt
	}
	return stats, nil
}

// MarkSent фиксирует успешную публикацию.
func (r *OutboxRepository) MarkSent(id string) error {
	return r.mark(id, outboxSent)
}

// MarkFailed фиксирует окончательную ошибку публикации.
func (r *OutboxRepository) MarkFailed(id string) error {
	return r.mark(id, outboxFailed)
}

// DeleteSentBefore удаляет до limit опубликованных сообщений, обновлённых раньше before.
func (r *OutboxRepository) DeleteSentBefore(before time.Time, limit int) (int, error) {
	if limit <= 0 {
		return 0, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	deleted := 0
	for id, rec := range r.records {
		if deleted == limit {
			break
		}
		if rec.status == outboxSent && rec.updatedAt.Before(before) {
			delete(r.records, id)
			deleted++
		}
	}
	return deleted, nil
}

// Pending возвращает копию всех pending-сообщений (используется в тестах).
func (r *OutboxRepository) Pending() []domain.OutboxMessage {
	pending := r.byStatus(outboxPending)
	result := make([]domain.OutboxMessage, len(pending))
	for i, rec := range pending {
		result[i] = rec.msg
	}
	return result
}

func (r *OutboxRepository) mark(id string, status outboxStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[id]
	if !ok {
		return domain.ErrOutboxPublish
	}
	rec.status = status
	rec.attempts++
	rec.updatedAt = time.Now().UTC()
	return nil
}

func (r *OutboxRepository) byStatus(status outboxStatus) []*outboxRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*outboxRecord, 0, len(r.records))
	for _, rec := range r.records {
		if rec.status == status {
			result = append(result, rec)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].seq < result[j].seq })
	return result
}

var (
	_ domain.OutboxRepository = (*OutboxRepository)(nil)
	_ domain.OutboxCleaner    = (*OutboxRepository)(nil)
)

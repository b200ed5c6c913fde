package domain

import (
	"context"
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// Tx — операции записи в рамках одной транзакции хранилища.
// Commit и rollback выполняет Transactor.
type Tx interface {
	// Insert вставляет строку и возвращает сгенерированный идентификатор.
	Insert(ctx context.Context, table string, fields Fields) (int64, error)
	// InsertBatch вставляет все строки одним запросом: либо все, либо ни одной.
	InsertBatch(ctx context.Context, table string, rows []Fields) error
	// Update применяет patch к строкам, совпавшим по match, и возвращает их количество.
	Update(ctx context.Context, table string, match Fields, patch Patch) (int64, error)
	// Delete удаляет строки, совпавшие по match, и возвращает их количество.
	Delete(ctx context.Context, table string, match Fields) (int64, error)
	// Count возвращает число строк, совпавших по match.
	Count(ctx context.Context, table string, match Fields) (int64, error)
	// Enqueue сохраняет событие outbox в той же транзакции.
	Enqueue(ctx context.Context, msg OutboxMessage) error
}

// Transactor открывает транзакцию на время fn.
// Ошибка fn приводит к rollback и возвращается без изменений.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// VolunteerRepository читает заявки волонтёров.
type VolunteerRepository interface {
	ListVolunteers(ctx context.Context) ([]Volunteer, error)
	// LatestVolunteers возвращает последние заявки вместе с навыками.
	LatestVolunteers(ctx context.Context, limit int) ([]Volunteer, error)
	GetVolunteer(ctx context.Context, id int64) (Volunteer, error)
}

// DonationRepository читает пожертвования.
type DonationRepository interface {
	GetDonationByExternalID(ctx context.Context, externalOrderID string) (Donation, error)
	ListRecentDonations(ctx context.Context, limit int) ([]Donation, error)
	DonationSummary(ctx context.Context) (DonationSummary, error)
}

// AdminRepository ищет учётные записи администраторов.
type AdminRepository interface {
	FindAdminByUsername(ctx context.Context, username string) (Admin, error)
}

// AnimalRepository читает каталог животных.
type AnimalRepository interface {
	ListAnimals(ctx context.Context, limit int) ([]Animal, error)
	GetAnimal(ctx context.Context, id int64) (Animal, error)
	CountAnimals(ctx context.Context) (int64, error)
}

// AdoptionRepository читает заявки на усыновление.
type AdoptionRepository interface {
	ListAdoptions(ctx context.Context) ([]AdoptionRequest, error)
}

// ReportRepository читает сообщения о бездомных животных.
type ReportRepository interface {
	ListReports(ctx context.Context) ([]Report, error)
}

// ProviderOrder — заказ, созданный у платёжного провайдера.
type ProviderOrder struct {
	ID      string
	Status  string
	Payload json.RawMessage
}

// ProviderCapture — результат capture у провайдера.
type ProviderCapture struct {
	OrderID   string
	Status    string
	CaptureID string
	Amount    decimal.Decimal
	Currency  string
	Payload   json.RawMessage
}

// ProviderStatusCompleted означает успешное списание.
const ProviderStatusCompleted = "COMPLETED"

// Completed сообщает, что провайдер подтвердил списание.
func (c ProviderCapture) Completed() bool {
	return c.Status == ProviderStatusCompleted
}

// PaymentProvider описывает внешний платёжный шлюз.
type PaymentProvider interface {
	// CreateOrder создаёт заказ на сумму total.
	CreateOrder(ctx context.Context, total decimal.Decimal, currency, description string) (ProviderOrder, error)
	// CaptureOrder списывает деньги по ранее созданному заказу.
	CaptureOrder(ctx context.Context, orderID string) (ProviderCapture, error)
}

// OutboxPublisher публикует события из transactional outbox.
type OutboxPublisher interface {
	// Publish передаёт событие наружу; должен быть идемпотентным.
	Publish(event OutboxMessage) error
}

// OutboxRepository хранит события для последующей публикации.
type OutboxRepository interface {
	PullPending(limit int) ([]OutboxMessage, error)
	Stats() (OutboxStats, error)
	MarkSent(id string) error
	MarkFailed(id string) error
}

// OutboxCleaner удаляет опубликованные события старше before.
// Failed-записи не удаляются: они нужны для разбора инцидентов.
type OutboxCleaner interface {
	DeleteSentBefore(before time.Time, limit int) (int, error)
}

// OutboxMessage хранит данные для публикуемого события.
type OutboxMessage struct {
	ID            string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

// OutboxStats описывает текущее состояние backlog transactional outbox.
type OutboxStats struct {
	PendingCount    int
	OldestPendingAt time.Time
}

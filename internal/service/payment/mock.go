package payment

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/straycare/internal/domain"
)

// Статусы заказа у провайдера.
const (
	StatusCreated   = "CREATED"
	StatusCompleted = domain.ProviderStatusCompleted
	StatusDeclined  = "DECLINED"
)

// MockProvider — конфигурируемая заглушка PaymentProvider для тестов и локальной разработки.
// Поля настройки задаются до использования.
type MockProvider struct {
	OrderStatus   string
	CreateErr     error
	CaptureStatus string
	CaptureErr    error

	mu           sync.Mutex
	orders       map[string]mockOrder
	createCalls  int
	captureCalls int
}

type mockOrder struct {
	total    decimal.Decimal
	currency string
}

// NewMockProvider возвращает mock с успешным сценарием по умолчанию.
func NewMockProvider() *MockProvider {
	return &MockProvider{
		OrderStatus:   StatusCreated,
		CaptureStatus: StatusCompleted,
		orders:        make(map[string]mockOrder),
	}
}

// CreateOrder возвращает настроенный результат и запоминает сумму заказа.
func (m *MockProvider) CreateOrder(_ context.Context, total decimal.Decimal, currency, description string) (domain.ProviderOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.createCalls++
	if m.CreateErr != nil {
		return domain.ProviderOrder{}, m.CreateErr
	}

	id := "MOCK" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:13]
	m.orders[id] = mockOrder{total: total, currency: currency}

	payload, _ := json.Marshal(map[string]any{
		"id":     id,
		"status": m.OrderStatus,
		"purchase_units": []map[string]any{{
			"description": description,
			"amount":      map[string]string{"currency_code": currency, "value": total.StringFixed(2)},
		}},
	})
	return domain.ProviderOrder{ID: id, Status: m.OrderStatus, Payload: payload}, nil
}

// CaptureOrder возвращает настроенный статус capture.
// Сумма берётся из ранее созданного заказа, для неизвестного заказа она нулевая.
func (m *MockProvider) CaptureOrder(_ context.Context, orderID string) (domain.ProviderCapture, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.captureCalls++
	if m.CaptureErr != nil {
		return domain.ProviderCapture{}, m.CaptureErr
	}

	order, ok := m.orders[orderID]
	if !ok {
		order = mockOrder{total: decimal.Zero, currency: domain.DefaultCurrency}
	}
	captureID := "CAP-" + orderID

	payload, _ := json.Marshal(map[string]any{
		"id":     orderID,
		"status": m.CaptureStatus,
		"purchase_units": []map[string]any{{
			"payments": map[string]any{
				"captures": []map[string]any{{
					"id":     captureID,
					"status": m.CaptureStatus,
					"amount": map[string]string{"currency_code": order.currency, "value": order.total.StringFixed(2)},
				}},
			},
		}},
	})
	return domain.ProviderCapture{
		OrderID:   orderID,
		Status:    m.CaptureStatus,
		CaptureID: captureID,
		Amount:    order.total,
		Currency:  order.currency,
		Payload:   payload,
	}, nil
}

// CreateCalls возвращает число вызовов CreateOrder.
func (m *MockProvider) CreateCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.createCalls
}

// CaptureCalls возвращает число вызовов CaptureOrder.
func (m *MockProvider) CaptureCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.captureCalls
}

var _ domain.PaymentProvider = (*MockProvider)(nil)

package payment

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/straycare/internal/domain"
	"github.com/vladislavdragonenkov/straycare/internal/metrics"
)

type CircuitState int

const (
	CircuitClosed CircuitState = iota
	CircuitOpen
	CircuitHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	default:
		return "closed"
	}
}

// CircuitBreaker размыкается после maxFailures подряд и пропускает пробный вызов
// по истечении resetTimeout.
type CircuitBreaker struct {
	maxFailures  int
	resetTimeout time.Duration

	mu          sync.Mutex
	failures    int
	lastFailure time.Time
	state       CircuitState
	probing     bool

	logger   *log.Entry
	onChange func(CircuitState)
	now      func() time.Time
}

// NewCircuitBreaker создаёт circuit breaker.
func NewCircuitBreaker(maxFailures int, resetTimeout time.Duration, logger *log.Entry) *CircuitBreaker {
	if logger == nil {
		logger = log.WithField("component", "circuit-breaker")
	}
	if maxFailures <= 0 {
		maxFailures = 5
	}
	return &CircuitBreaker{
		maxFailures:  maxFailures,
		resetTimeout: resetTimeout,
		state:        CircuitClosed,
		logger:       logger,
		now:          time.Now,
	}
}

// OnStateChange задаёт callback, вызываемый при смене состояния.
func (cb *CircuitBreaker) OnStateChange(fn func(CircuitState)) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.onChange = fn
}

// State возвращает текущее состояние.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Execute выполняет fn, если цепь замкнута. Ошибка учитывается как сбой,
// только если countable(err) возвращает true.
func (cb *CircuitBreaker) Execute(operation string, fn func() error, countable func(error) bool) error {
	if err := cb.before(operation); err != nil {
		return err
	}

	err := fn()
	cb.after(operation, err != nil && (countable == nil || countable(err)))
	return err
}

func (cb *CircuitBreaker) before(operation string) error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case CircuitOpen:
		if cb.now().Sub(cb.lastFailure) <= cb.resetTimeout {
			return domain.ErrProviderUnavailable
		}
		cb.setState(CircuitHalfOpen)
		cb.logger.WithField("operation", operation).Info("circuit breaker half-open")
	case CircuitHalfOpen:
		// Пока идёт пробный вызов, остальные получают отказ.
		if cb.probing {
			return domain.ErrProviderUnavailable
		}
	}
	if cb.state == CircuitHalfOpen {
		cb.probing = true
	}
	return nil
}

func (cb *CircuitBreaker) after(operation string, failed bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.probing = false
	if failed {
		cb.failures++
		cb.lastFailure = cb.now()
		if cb.state == CircuitHalfOpen || cb.failures >= cb.maxFailures {
			cb.setState(CircuitOpen)
			cb.logger.WithFields(log.Fields{
				"operation": operation,
				"failures":  cb.failures,
			}).Warn("circuit breaker opened")
		}
		return
	}

	if cb.state == CircuitHalfOpen {
		cb.setState(CircuitClosed)
		cb.logger.WithField("operation", operation).Info("circuit breaker closed")
	}
	cb.failures = 0
}

func (cb *CircuitBreaker) setState(state CircuitState) {
	if cb.state == state {
		return
	}
	cb.state = state
	if cb.onChange != nil {
		cb.onChange(state)
	}
}

// GuardedProvider защищает провайдера circuit breaker и пишет метрики вызовов.
type GuardedProvider struct {
	next    domain.PaymentProvider
	breaker *CircuitBreaker
	metrics *metrics.ShelterMetrics
}

// NewGuardedProvider оборачивает next. breaker может быть nil.
func NewGuardedProvider(next domain.PaymentProvider, breaker *CircuitBreaker, m *metrics.ShelterMetrics) *GuardedProvider {
	if breaker != nil && m != nil {
		breaker.OnStateChange(func(state CircuitState) {
			m.SetCircuitOpen(state == CircuitOpen)
		})
	}
	return &GuardedProvider{next: next, breaker: breaker, metrics: m}
}

func (p *GuardedProvider) CreateOrder(ctx context.Context, total decimal.Decimal, currency, description string) (domain.ProviderOrder, error) {
	var order domain.ProviderOrder
	err := p.call("create order", func() error {
		var err error
		order, err = p.next.CreateOrder(ctx, total, currency, description)
		return err
	})
	return order, err
}

func (p *GuardedProvider) CaptureOrder(ctx context.Context, orderID string) (domain.ProviderCapture, error) {
	var capture domain.ProviderCapture
	err := p.call("capture order", func() error {
		var err error
		capture, err = p.next.CaptureOrder(ctx, orderID)
		return err
	})
	return capture, err
}

func (p *GuardedProvider) call(op string, fn func() error) error {
	start := time.Now()
	var err error
	if p.breaker == nil {
		err = fn()
	} else {
		err = p.breaker.Execute(op, fn, IsTransient)
	}
	p.metrics.RecordProviderCall(strings.ReplaceAll(op, " ", "_"), time.Since(start), err)

	if errors.Is(err, domain.ErrProviderUnavailable) {
		var perr *domain.PaymentProviderError
		if !errors.As(err, &perr) {
			return &domain.PaymentProviderError{Op: op, Err: err}
		}
	}
	return err
}

// IsTransient сообщает, что ошибка провайдера вызвана недоступностью, а не отказом по существу:
// таймаут, сетевая ошибка или ответ 5xx.
func IsTransient(err error) bool {
	var perr *domain.PaymentProviderError
	if !errors.As(err, &perr) {
		return true
	}
	return perr.Timeout || perr.StatusCode == 0 || perr.StatusCode >= 500
}

var _ domain.PaymentProvider = (*GuardedProvider)(nil)

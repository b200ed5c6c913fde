// Package donation создаёт заказы пожертвований у платёжного провайдера
// и сверяет их capture с локальными записями.
package donation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/straycare/internal/domain"
	"github.com/vladislavdragonenkov/straycare/internal/metrics"
)

const (
	// DefaultProviderTimeout ограничивает один вызов провайдера.
	DefaultProviderTimeout = 15 * time.Second
	// DefaultDescription — описание заказа, которое видит плательщик.
	DefaultDescription = "Donation to Stray Care"
	// RecentLimit — сколько пожертвований показывает панель администратора.
	RecentLimit = 10
)

// Исходы создания заказа для метрик.
const (
	orderCreated        = "created"
	orderRejected       = "rejected"
	orderProviderFailed = "provider_failed"
	orderStorageFailed  = "storage_failed"
)

var orderIDPattern = regexp.MustCompile(`^[A-Za-z0-9-]{1,64}$`)

// OrderResult возвращается из CreateOrder.
type OrderResult struct {
	ExternalOrderID string
	Total           decimal.Decimal
	Currency        string
	Payload         json.RawMessage
}

// CaptureResult — ответ на capture вместе с результатом сверки.
type CaptureResult struct {
	ExternalOrderID string
	CaptureID       string
	Outcome         domain.CaptureOutcome
	Payload         json.RawMessage
}

// Options задаёт параметры Reconciler.
type Options struct {
	Logger          *log.Entry
	Metrics         *metrics.ShelterMetrics
	ProviderTimeout time.Duration
	Currency        string
	Description     string
}

// Option настраивает Reconciler.
type Option func(*Options)

// WithLogger задаёт logger.
func WithLogger(logger *log.Entry) Option {
	return func(opts *Options) { opts.Logger = logger }
}

// WithMetrics задаёт метрики.
func WithMetrics(m *metrics.ShelterMetrics) Option {
	return func(opts *Options) { opts.Metrics = m }
}

// WithProviderTimeout задаёт таймаут вызова провайдера.
func WithProviderTimeout(timeout time.Duration) Option {
	return func(opts *Options) { opts.ProviderTimeout = timeout }
}

// WithCurrency задаёт валюту заказов.
func WithCurrency(currency string) Option {
	return func(opts *Options) { opts.Currency = currency }
}

// Reconciler связывает заказы провайдера с записями donations.
type Reconciler struct {
	tx          domain.Transactor
	repo        domain.DonationRepository
	provider    domain.PaymentProvider
	logger      *log.Entry
	metrics     *metrics.ShelterMetrics
	timeout     time.Duration
	currency    string
	description string
	now         func() time.Time
}

// NewReconciler создаёт Reconciler.
func NewReconciler(tx domain.Transactor, repo domain.DonationRepository, provider domain.PaymentProvider, options ...Option) *Reconciler {
	opts := Options{
		ProviderTimeout: DefaultProviderTimeout,
		Currency:        domain.DefaultCurrency,
		Description:     DefaultDescription,
	}
	for _, option := range options {
		option(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = log.WithField("component", "donation-reconciler")
	}
	if opts.ProviderTimeout <= 0 {
		opts.ProviderTimeout = DefaultProviderTimeout
	}
	if opts.Currency == "" {
		opts.Currency = domain.DefaultCurrency
	}

	return &Reconciler{
		tx:          tx,
		repo:        repo,
		provider:    provider,
		logger:      opts.Logger,
		metrics:     opts.Metrics,
		timeout:     opts.ProviderTimeout,
		currency:    opts.Currency,
		description: opts.Description,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// ValidateItems проверяет корзину и возвращает сумму, округлённую до центов.
func ValidateItems(items []domain.DonationItem) (decimal.Decimal, error) {
	if len(items) == 0 {
		verr := domain.NewValidationError("Invalid cart data")
		verr.Add("items", "must contain at least one item")
		return decimal.Zero, verr
	}

	verr := domain.NewValidationError("Invalid cart data")
	for i, item := range items {
		if item.Amount.IsNegative() {
			verr.Add(fmt.Sprintf("items[%d].amount", i), "must be at least 0")
		}
	}
	if verr.HasProblems() {
		return decimal.Zero, verr
	}

	total := domain.SumDonationItems(items)
	if !total.IsPositive() {
		verr := domain.NewValidationError("Invalid donation amount")
		verr.Add("items", "total must be greater than 0")
		return decimal.Zero, verr
	}
	return total, nil
}

// CreateOrder создаёт заказ у провайдера и сохраняет pending-запись.
// Если провайдер отказал, локальная запись не создаётся.
func (r *Reconciler) CreateOrder(ctx context.Context, items []domain.DonationItem) (OrderResult, error) {
	total, err := ValidateItems(items)
	if err != nil {
		r.metrics.RecordDonationOrder(orderRejected)
		return OrderResult{}, err
	}

	pctx, cancel := context.WithTimeout(ctx, r.timeout)
	order, err := r.provider.CreateOrder(pctx, total, r.currency, r.description)
	cancel()
	if err != nil {
		r.metrics.RecordDonationOrder(orderProviderFailed)
		perr := asProviderError("create order", err)
		r.logger.WithError(perr).WithField("total", total.StringFixed(2)).Warn("payment provider rejected order")
		return OrderResult{}, perr
	}

	event := domain.DonationEvent{
		ExternalOrderID: order.ID,
		Amount:          total.StringFixed(2),
		Currency:        r.currency,
		Status:          string(domain.DonationStatusPending),
		OccurredAt:      r.now(),
	}
	err = r.tx.WithinTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		if _, err := tx.Insert(ctx, domain.TableDonations, domain.Fields{
			"amount":            total,
			"currency":          r.currency,
			"external_order_id": order.ID,
			"status":            string(domain.DonationStatusPending),
		}); err != nil {
			return err
		}
		msg, err := domain.NewDonationOutboxMessage(domain.EventDonationCreated, event)
		if err != nil {
			return err
		}
		return tx.Enqueue(ctx, msg)
	})
	if err != nil {
		r.metrics.RecordDonationOrder(orderStorageFailed)
		r.logger.WithError(err).WithField("external_order_id", order.ID).
			Error("order created at provider but local donation was not stored")
		return OrderResult{}, err
	}

	r.metrics.RecordDonationOrder(orderCreated)
	r.logger.WithFields(log.Fields{
		"external_order_id": order.ID,
		"total":             total.StringFixed(2),
	}).Info("donation order created")

	return OrderResult{
		ExternalOrderID: order.ID,
		Total:           total,
		Currency:        r.currency,
		Payload:         order.Payload,
	}, nil
}

// CaptureOrder списывает деньги у провайдера и переводит запись в completed.
// Повторный вызов ничего не меняет. Capture без локальной записи допускается:
// строка не создаётся, в outbox пишется событие для ручной сверки.
// adminID задан, если capture выполнен из панели администратора.
func (r *Reconciler) CaptureOrder(ctx context.Context, externalOrderID string, adminID *int64) (CaptureResult, error) {
	if !orderIDPattern.MatchString(externalOrderID) {
		verr := domain.NewValidationError("Invalid order id")
		verr.Add("orderID", "must be 1-64 letters, digits or dashes")
		return CaptureResult{}, verr
	}

	pctx, cancel := context.WithTimeout(ctx, r.timeout)
	capture, err := r.provider.CaptureOrder(pctx, externalOrderID)
	cancel()
	if err != nil {
		r.metrics.RecordDonationCapture("provider_failed")
		perr := asProviderError("capture order", err)
		r.logger.WithError(perr).WithField("external_order_id", externalOrderID).Warn("payment provider capture failed")
		return CaptureResult{}, perr
	}

	result := CaptureResult{
		ExternalOrderID: externalOrderID,
		CaptureID:       capture.CaptureID,
		Payload:         capture.Payload,
	}
	logger := r.logger.WithFields(log.Fields{
		"external_order_id": externalOrderID,
		"capture_id":        capture.CaptureID,
	})

	if !capture.Completed() {
		result.Outcome = domain.CaptureNotCompleted
		r.metrics.RecordDonationCapture(string(result.Outcome))
		logger.WithField("provider_status", capture.Status).Warn("capture not completed by provider")
		return result, nil
	}

	outcome, err := r.reconcile(ctx, externalOrderID, capture, adminID)
	if err != nil {
		r.metrics.RecordDonationCapture("storage_failed")
		logger.WithError(err).Error("capture succeeded at provider but local reconciliation failed")
		return CaptureResult{}, err
	}

	result.Outcome = outcome
	r.metrics.RecordDonationCapture(string(outcome))
	switch outcome {
	case domain.CaptureUnmatched:
		logger.Warn("capture has no matching donation, recorded for reconciliation")
	case domain.CaptureAlreadyCompleted:
		logger.Info("capture repeated for completed donation")
	default:
		logger.Info("donation completed")
	}
	return result, nil
}

func (r *Reconciler) reconcile(ctx context.Context, externalOrderID string, capture domain.ProviderCapture, adminID *int64) (domain.CaptureOutcome, error) {
	var outcome domain.CaptureOutcome
	err := r.tx.WithinTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		completedAt := r.now()
		patch := domain.Patch{
			"status":       string(domain.DonationStatusCompleted),
			"capture_id":   capture.CaptureID,
			"completed_at": completedAt,
		}
		if adminID != nil {
			patch.Set("admin_id", *adminID)
		}

		n, err := tx.Update(ctx, domain.TableDonations,
			domain.Fields{"external_order_id": externalOrderID, "status": string(domain.DonationStatusPending)},
			patch,
		)
		if err != nil {
			return err
		}

		event := domain.DonationEvent{
			ExternalOrderID: externalOrderID,
			Currency:        capture.Currency,
			CaptureID:       capture.CaptureID,
			OccurredAt:      completedAt,
		}
		if !capture.Amount.IsZero() {
			event.Amount = capture.Amount.StringFixed(2)
		}

		var eventType string
		switch {
		case n > 0:
			outcome = domain.CaptureTransitioned
			eventType = domain.EventDonationCompleted
			event.Status = string(domain.DonationStatusCompleted)
		default:
			existing, err := tx.Count(ctx, domain.TableDonations, domain.Fields{"external_order_id": externalOrderID})
			if err != nil {
				return err
			}
			if existing > 0 {
				outcome = domain.CaptureAlreadyCompleted
				return nil
			}
			outcome = domain.CaptureUnmatched
			eventType = domain.EventDonationCaptureUnmatched
			event.Status = string(domain.CaptureUnmatched)
		}

		msg, err := domain.NewDonationOutboxMessage(eventType, event)
		if err != nil {
			return err
		}
		return tx.Enqueue(ctx, msg)
	})
	return outcome, err
}

// ListRecent возвращает последние пожертвования.
func (r *Reconciler) ListRecent(ctx context.Context, limit int) ([]domain.Donation, error) {
	if limit <= 0 {
		limit = RecentLimit
	}
	return r.repo.ListRecentDonations(ctx, limit)
}

// Summary возвращает агрегаты по пожертвованиям.
func (r *Reconciler) Summary(ctx context.Context) (domain.DonationSummary, error) {
	return r.repo.DonationSummary(ctx)
}

// Get возвращает пожертвование по внешнему идентификатору.
func (r *Reconciler) Get(ctx context.Context, externalOrderID string) (domain.Donation, error) {
	return r.repo.GetDonationByExternalID(ctx, externalOrderID)
}

func asProviderError(op string, err error) error {
	var perr *domain.PaymentProviderError
	if errors.As(err, &perr) {
		return err
	}
	return &domain.PaymentProviderError{
		Op:      op,
		Timeout: errors.Is(err, context.DeadlineExceeded),
		Err:     err,
	}
}

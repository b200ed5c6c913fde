package metrics

import (
	"fmt"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ShelterMetrics содержит метрики записи агрегатов и сверки платежей.
type ShelterMetrics struct {
	// Запись агрегатов: outcome = committed | rejected | rolled_back.
	aggregateWrites   *prometheus.CounterVec
	aggregateDuration *prometheus.HistogramVec

	// Платежи
	donationOrders   *prometheus.CounterVec
	donationCaptures *prometheus.CounterVec
	providerDuration *prometheus.HistogramVec
	providerErrors   *prometheus.CounterVec
	breakerOpen      prometheus.Gauge

	logins *prometheus.CounterVec

	// Outbox
	outboxPublish   *prometheus.CounterVec
	outboxPending   prometheus.Gauge
	outboxOldestAge prometheus.Gauge
	outboxCleanup   *prometheus.CounterVec
	outboxDeleted   prometheus.Gauge

	// HTTP API
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

// NewShelterMetrics создаёт метрики в DefaultRegisterer.
func NewShelterMetrics() *ShelterMetrics {
	return NewShelterMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

// NewShelterMetricsWithRegisterer создаёт метрики в указанном registerer.
// Повторная регистрация возвращает уже существующие коллекторы.
func NewShelterMetricsWithRegisterer(registerer prometheus.Registerer) *ShelterMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &ShelterMetrics{
		aggregateWrites: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "straycare_aggregate_writes_total",
			Help: "Total number of aggregate writes by outcome",
		}, []string{"aggregate", "outcome"}),
		aggregateDuration: registerHistogramVec(registerer, prometheus.HistogramOpts{
			Name:    "straycare_aggregate_write_duration_seconds",
			Help:    "Duration of aggregate write transactions in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}, []string{"aggregate"}),
		donationOrders: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "straycare_donation_orders_total",
			Help: "Total number of donation orders by outcome",
		}, []string{"outcome"}),
		donationCaptures: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "straycare_donation_captures_total",
			Help: "Total number of donation captures by reconciliation outcome",
		}, []string{"outcome"}),
		providerDuration: registerHistogramVec(registerer, prometheus.HistogramOpts{
			Name:    "straycare_payment_provider_duration_seconds",
			Help:    "Duration of payment provider calls in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
		providerErrors: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "straycare_payment_provider_errors_total",
			Help: "Total number of failed payment provider calls",
		}, []string{"operation"}),
		breakerOpen: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "straycare_payment_circuit_open",
			Help: "1 when the payment provider circuit breaker is open",
		}),
		logins: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "straycare_auth_logins_total",
			Help: "Total number of admin login attempts by outcome",
		}, []string{"outcome"}),
		outboxPublish: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "straycare_outbox_publish_attempts_total",
			Help: "Total number of outbox publish attempts grouped by result",
		}, []string{"result"}),
		outboxPending: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "straycare_outbox_pending_records",
			Help: "Current number of pending records in transactional outbox",
		}),
		outboxOldestAge: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "straycare_outbox_oldest_pending_age_seconds",
			Help: "Age in seconds of the oldest pending outbox record",
		}),
		outboxCleanup: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "straycare_outbox_cleanup_runs_total",
			Help: "Total number of outbox cleanup runs grouped by result",
		}, []string{"result"}),
		outboxDeleted: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "straycare_outbox_cleanup_last_deleted",
			Help: "Number of sent outbox records deleted during the last cleanup run",
		}),
		httpRequests: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "straycare_http_requests_total",
			Help: "Total number of HTTP API requests",
		}, []string{"method", "route", "status"}),
		httpDuration: registerHistogramVec(registerer, prometheus.HistogramOpts{
			Name:    "straycare_http_request_duration_seconds",
			Help:    "Duration of HTTP API requests in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

func registerCounterVec(registerer prometheus.Registerer, opts prometheus.CounterOpts, labels []string) *prometheus.CounterVec {
	collector := prometheus.NewCounterVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.CounterVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter vec %q: %v", opts.Name, err))
	}
	return collector
}

func registerGauge(registerer prometheus.Registerer, opts prometheus.GaugeOpts) prometheus.Gauge {
	collector := prometheus.NewGauge(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Gauge)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register gauge %q: %v", opts.Name, err))
	}
	return collector
}

func registerHistogramVec(registerer prometheus.Registerer, opts prometheus.HistogramOpts, labels []string) *prometheus.HistogramVec {
	collector := prometheus.NewHistogramVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.HistogramVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register histogram vec %q: %v", opts.Name, err))
	}
	return collector
}

// RecordAggregateWrite учитывает результат записи агрегата и длительность транзакции.
// Методы безопасны для nil-получателя.
func (m *ShelterMetrics) RecordAggregateWrite(aggregate, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.aggregateWrites.WithLabelValues(aggregate, outcome).Inc()
	m.aggregateDuration.WithLabelValues(aggregate).Observe(duration.Seconds())
}

// RecordDonationOrder учитывает попытку создать заказ.
func (m *ShelterMetrics) RecordDonationOrder(outcome string) {
	if m == nil {
		return
	}
	m.donationOrders.WithLabelValues(outcome).Inc()
}

// RecordDonationCapture учитывает результат сверки capture.
func (m *ShelterMetrics) RecordDonationCapture(outcome string) {
	if m == nil {
		return
	}
	m.donationCaptures.WithLabelValues(outcome).Inc()
}

// RecordProviderCall записывает длительность вызова провайдера и ошибку, если была.
func (m *ShelterMetrics) RecordProviderCall(operation string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	m.providerDuration.WithLabelValues(operation).Observe(duration.Seconds())
	if err != nil {
		m.providerErrors.WithLabelValues(operation).Inc()
	}
}

// SetCircuitOpen отражает состояние circuit breaker.
func (m *ShelterMetrics) SetCircuitOpen(open bool) {
	if m == nil {
		return
	}
	if open {
		m.breakerOpen.Set(1)
		return
	}
	m.breakerOpen.Set(0)
}

// RecordLogin учитывает попытку входа администратора.
func (m *ShelterMetrics) RecordLogin(outcome string) {
	if m == nil {
		return
	}
	m.logins.WithLabelValues(outcome).Inc()
}

// RecordOutboxPublish учитывает попытку публикации события outbox.
func (m *ShelterMetrics) RecordOutboxPublish(result string) {
	if m == nil {
		return
	}
	m.outboxPublish.WithLabelValues(result).Inc()
}

// SetOutboxBacklog отражает размер backlog и возраст самого старого события.
func (m *ShelterMetrics) SetOutboxBacklog(pending int, oldestAge time.Duration) {
	if m == nil {
		return
	}
	if oldestAge < 0 {
		oldestAge = 0
	}
	m.outboxPending.Set(float64(pending))
	m.outboxOldestAge.Set(oldestAge.Seconds())
}

// RecordOutboxCleanup учитывает прогон очистки outbox.
func (m *ShelterMetrics) RecordOutboxCleanup(result string, deleted int) {
	if m == nil {
		return
	}
	m.outboxCleanup.WithLabelValues(result).Inc()
	if result == "ok" {
		m.outboxDeleted.Set(float64(deleted))
	}
}

// RecordHTTPRequest учитывает обработанный HTTP-запрос. route передаётся шаблоном маршрута, не путём.
func (m *ShelterMetrics) RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

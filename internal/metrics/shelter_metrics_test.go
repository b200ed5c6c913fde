package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func value(t *testing.T, collector prometheus.Metric) float64 {
	t.Helper()

	metric := &dto.Metric{}
	if err := collector.Write(metric); err != nil {
		t.Fatalf("failed to write metric: %v", err)
	}
	if metric.Counter != nil {
		return metric.Counter.GetValue()
	}
	return metric.Gauge.GetValue()
}

func TestNewShelterMetrics(t *testing.T) {
	metrics := NewShelterMetrics()
	if metrics == nil {
		t.Fatal("NewShelterMetrics should not return nil")
	}
	if metrics.aggregateWrites == nil || metrics.donationCaptures == nil || metrics.breakerOpen == nil {
		t.Fatal("collectors should be initialised")
	}

	// Повторное создание не должно паниковать и переиспользует коллекторы.
	again := NewShelterMetrics()
	if again.aggregateWrites != metrics.aggregateWrites {
		t.Fatal("expected existing collector to be reused")
	}
}

func TestRecordAggregateWrite(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewShelterMetricsWithRegisterer(reg)

	metrics.RecordAggregateWrite("volunteer", "committed", 20*time.Millisecond)
	metrics.RecordAggregateWrite("volunteer", "rolled_back", 5*time.Millisecond)
	metrics.RecordAggregateWrite("volunteer", "committed", 10*time.Millisecond)

	if got := value(t, metrics.aggregateWrites.WithLabelValues("volunteer", "committed")); got != 2 {
		t.Fatalf("expected 2 committed writes, got %f", got)
	}
	if got := value(t, metrics.aggregateWrites.WithLabelValues("volunteer", "rolled_back")); got != 1 {
		t.Fatalf("expected 1 rolled back write, got %f", got)
	}

	metric := &dto.Metric{}
	if err := metrics.aggregateDuration.WithLabelValues("volunteer").(prometheus.Histogram).Write(metric); err != nil {
		t.Fatalf("failed to write histogram: %v", err)
	}
	if metric.Histogram.GetSampleCount() != 3 {
		t.Fatalf("expected 3 samples, got %d", metric.Histogram.GetSampleCount())
	}
}

func TestRecordPaymentMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewShelterMetricsWithRegisterer(reg)

	metrics.RecordDonationOrder("created")
	metrics.RecordDonationCapture("unmatched")
	metrics.RecordProviderCall("capture_order", time.Second, nil)
	metrics.RecordProviderCall("capture_order", time.Second, errors.New("timeout"))
	metrics.SetCircuitOpen(true)
	metrics.RecordLogin("success")

	if got := value(t, metrics.donationOrders.WithLabelValues("created")); got != 1 {
		t.Fatalf("unexpected orders counter: %f", got)
	}
	if got := value(t, metrics.donationCaptures.WithLabelValues("unmatched")); got != 1 {
		t.Fatalf("unexpected captures counter: %f", got)
	}
	if got := value(t, metrics.providerErrors.WithLabelValues("capture_order")); got != 1 {
		t.Fatalf("expected one provider error, got %f", got)
	}
	if got := value(t, metrics.breakerOpen); got != 1 {
		t.Fatalf("expected breaker gauge 1, got %f", got)
	}
	metrics.SetCircuitOpen(false)
	if got := value(t, metrics.breakerOpen); got != 0 {
		t.Fatalf("expected breaker gauge 0, got %f", got)
	}
	if got := value(t, metrics.logins.WithLabelValues("success")); got != 1 {
		t.Fatalf("unexpected logins counter: %f", got)
	}
}

func TestNilMetricsAreNoop(t *testing.T) {
	var metrics *ShelterMetrics
	metrics.RecordAggregateWrite("volunteer", "committed", time.Millisecond)
	metrics.RecordDonationOrder("created")
	metrics.RecordDonationCapture("transitioned")
	metrics.RecordProviderCall("create_order", time.Millisecond, nil)
	metrics.SetCircuitOpen(true)
	metrics.RecordLogin("failure")
}

func TestRecordHTTPRequest(t *testing.T) {
	metrics := NewShelterMetricsWithRegisterer(prometheus.NewRegistry())

	metrics.RecordHTTPRequest("POST", "/api/orders", 201, 20*time.Millisecond)
	metrics.RecordHTTPRequest("POST", "/api/orders", 201, 30*time.Millisecond)
	metrics.RecordHTTPRequest("POST", "/api/orders", 502, time.Second)

	if got := value(t, metrics.httpRequests.WithLabelValues("POST", "/api/orders", "201")); got != 2 {
		t.Fatalf("expected 2 successful requests, got %v", got)
	}
	if got := value(t, metrics.httpRequests.WithLabelValues("POST", "/api/orders", "502")); got != 1 {
		t.Fatalf("expected 1 failed request, got %v", got)
	}
}

func TestOutboxMetrics(t *testing.T) {
	metrics := NewShelterMetricsWithRegisterer(prometheus.NewRegistry())

	metrics.RecordOutboxPublish("sent")
	metrics.SetOutboxBacklog(3, 90*time.Second)

	if got := value(t, metrics.outboxPublish.WithLabelValues("sent")); got != 1 {
		t.Fatalf("expected 1 sent attempt, got %v", got)
	}
	if got := value(t, metrics.outboxPending); got != 3 {
		t.Fatalf("expected 3 pending records, got %v", got)
	}

	metrics.SetOutboxBacklog(0, -time.Second)
	if got := value(t, metrics.outboxOldestAge); got != 0 {
		t.Fatalf("negative age must be clamped, got %v", got)
	}
}

func TestOutboxCleanupMetrics(t *testing.T) {
	metrics := NewShelterMetricsWithRegisterer(prometheus.NewRegistry())

	metrics.RecordOutboxCleanup("ok", 12)
	metrics.RecordOutboxCleanup("error", 3)

	if got := value(t, metrics.outboxCleanup.WithLabelValues("ok")); got != 1 {
		t.Fatalf("expected 1 ok run, got %v", got)
	}
	if got := value(t, metrics.outboxCleanup.WithLabelValues("error")); got != 1 {
		t.Fatalf("expected 1 failed run, got %v", got)
	}
	if got := value(t, metrics.outboxDeleted); got != 12 {
		t.Fatalf("failed run must not overwrite last deleted count, got %v", got)
	}

	var nilMetrics *ShelterMetrics
	nilMetrics.RecordOutboxCleanup("ok", 1)
}

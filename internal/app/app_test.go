package app

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/straycare/internal/auth"
	"github.com/vladislavdragonenkov/straycare/internal/health"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.JWTSecret = testSecret
	cfg.BcryptCost = 4
	cfg.HTTPAddr = "127.0.0.1:0"
	cfg.MetricsAddr = "127.0.0.1:0"
	cfg.ShutdownTimeout = time.Second
	return cfg
}

func newTestApp(t *testing.T, cfg Config) *App {
	t.Helper()
	logger, _ := logtest.NewNullLogger()
	a, err := New(context.Background(), cfg,
		WithRegistry(prometheus.NewRegistry()),
		WithLogger(log.NewEntry(logger)),
	)
	require.NoError(t, err)
	t.Cleanup(a.Close)
	return a
}

func TestNew_MemoryStorageServesAPI(t *testing.T) {
	a := newTestApp(t, testConfig())
	assert.Nil(t, a.worker, "worker must stay disabled without a broker")

	body, _ := json.Marshal(map[string]any{
		"name": "Ana", "email": "ana@example.com", "phone": "+389 70 000 000",
		"location": "Skopje", "availability": "weekends", "reason": "dogs",
		"skills": []string{"walking"},
	})
	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/volunteers", bytes.NewReader(body)))
	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/orders",
		strings.NewReader(`{"items":[{"amount":"10.00"}]}`)))
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestOpsHandler_HealthAndMetrics(t *testing.T) {
	a := newTestApp(t, testConfig())
	ops := a.OpsHandler()

	rec := httptest.NewRecorder()
	ops.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp health.Response
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, health.StatusHealthy, resp.Status)
	assert.Contains(t, resp.Checks, "storage")
	assert.Contains(t, resp.Checks, "payment_provider")

	for _, path := range []string{"/livez", "/readyz"} {
		rec = httptest.NewRecorder()
		ops.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}

	a.Handler().ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/animals", nil))
	rec = httptest.NewRecorder()
	ops.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "straycare_http_requests_total")
}

func TestNew_UnsupportedStorage(t *testing.T) {
	cfg := testConfig()
	cfg.StorageDriver = "sqlite"
	_, err := New(context.Background(), cfg, WithRegistry(prometheus.NewRegistry()))
	require.Error(t, err)
}

func TestNew_PostgresRequiresDSN(t *testing.T) {
	cfg := testConfig()
	cfg.StorageDriver = StorageDriverPostgres
	_, err := New(context.Background(), cfg, WithRegistry(prometheus.NewRegistry()))
	require.Error(t, err)
}

func TestNew_UnreachableKafkaFails(t *testing.T) {
	cfg := testConfig()
	cfg.EventsBroker = EventsBrokerKafka
	cfg.KafkaBrokers = []string{"127.0.0.1:1"}
	_, err := New(context.Background(), cfg, WithRegistry(prometheus.NewRegistry()))
	require.Error(t, err)
}

func TestApp_RunStopsOnCancel(t *testing.T) {
	a := newTestApp(t, testConfig())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("app did not stop on context cancel")
	}
}

func TestApp_RunFailsWhenPortBusy(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer lis.Close()

	cfg := testConfig()
	cfg.HTTPAddr = lis.Addr().String()
	a := newTestApp(t, cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	require.Error(t, a.Run(ctx))
}

func TestCreateAdmin_MemoryStorage(t *testing.T) {
	id, err := CreateAdmin(context.Background(), testConfig(), auth.Registration{
		Username: "root", Password: "correct-horse", Email: "root@example.com",
	}, nil)
	require.NoError(t, err)
	assert.NotZero(t, id)

	_, err = CreateAdmin(context.Background(), testConfig(), auth.Registration{Username: "root"}, nil)
	require.Error(t, err)
}

func TestSetupLogger(t *testing.T) {
	require.NoError(t, SetupLogger("debug", "json"))
	assert.Equal(t, log.DebugLevel, log.GetLevel())
	require.NoError(t, SetupLogger("info", "text"))
	require.Error(t, SetupLogger("loud", "text"))
}

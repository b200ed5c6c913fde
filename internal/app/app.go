// Package app собирает сервис приюта из конфигурации и управляет его жизненным циклом.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/vladislavdragonenkov/straycare/internal/auth"
	"github.com/vladislavdragonenkov/straycare/internal/health"
	"github.com/vladislavdragonenkov/straycare/internal/httpapi"
	"github.com/vladislavdragonenkov/straycare/internal/metrics"
	"github.com/vladislavdragonenkov/straycare/internal/service/aggregate"
	"github.com/vladislavdragonenkov/straycare/internal/service/donation"
	"github.com/vladislavdragonenkov/straycare/internal/service/outbox"
	"github.com/vladislavdragonenkov/straycare/internal/service/shelter"
	"github.com/vladislavdragonenkov/straycare/internal/service/volunteer"
	"github.com/vladislavdragonenkov/straycare/internal/version"
)

// maxOutboxLag — возраст самого старого pending-события, после которого сервис degraded.
const maxOutboxLag = 5 * time.Minute

// Option настраивает App.
type Option func(*App)

// WithRegistry задаёт реестр Prometheus вместо глобального.
func WithRegistry(registry *prometheus.Registry) Option {
	return func(a *App) {
		a.registerer = registry
		a.gatherer = registry
	}
}

// WithLogger задаёт корневой logger.
func WithLogger(logger *log.Entry) Option {
	return func(a *App) {
		a.logger = logger
	}
}

// App — собранный сервис: API, метрики, health checks и outbox worker.
type App struct {
	cfg        Config
	logger     *log.Entry
	registerer prometheus.Registerer
	gatherer   prometheus.Gatherer

	metrics *metrics.ShelterMetrics
	storage *runtimeStorage
	events  *eventSink
	health  *health.Handler
	worker  *outbox.Worker
	cleaner *outbox.Cleaner
	auth    *auth.Service
	api     http.Handler
}

// New открывает хранилище, подключает брокер и собирает сервисы.
func New(ctx context.Context, cfg Config, options ...Option) (*App, error) {
	a := &App{
		cfg:        cfg,
		registerer: prometheus.DefaultRegisterer,
		gatherer:   prometheus.DefaultGatherer,
	}
	for _, option := range options {
		option(a)
	}
	if a.logger == nil {
		a.logger = log.WithField("component", "app")
	}
	a.metrics = metrics.NewShelterMetricsWithRegisterer(a.registerer)

	storage, err := initStorage(ctx, cfg, a.logger)
	if err != nil {
		return nil, err
	}
	a.storage = storage

	if err := a.build(); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) build() error {
	cfg, m, st := a.cfg, a.metrics, a.storage

	authSvc, err := auth.NewService(st.tx, st.shelter, auth.Config{
		Secret:     cfg.JWTSecret,
		TokenTTL:   cfg.TokenTTL,
		BcryptCost: cfg.BcryptCost,
		Issuer:     "straycare",
	}, a.logger.WithField("component", "auth"), m)
	if err != nil {
		return fmt.Errorf("init auth: %w", err)
	}
	a.auth = authSvc

	provider, providerCheck, err := initPaymentProvider(cfg, m, a.logger)
	if err != nil {
		return fmt.Errorf("init payment provider: %w", err)
	}

	writer := aggregate.NewWriter(st.tx,
		aggregate.WithLogger(a.logger.WithField("component", "aggregate-writer")),
		aggregate.WithMetrics(m),
	)
	reconciler := donation.NewReconciler(st.tx, st.donations, provider,
		donation.WithLogger(a.logger.WithField("component", "donation-reconciler")),
		donation.WithMetrics(m),
		donation.WithProviderTimeout(cfg.PayPalTimeout),
		donation.WithCurrency(cfg.Currency),
	)

	a.api = httpapi.NewServer(httpapi.Dependencies{
		Volunteers: volunteer.NewService(st.tx, st.volunteers, writer, a.logger.WithField("component", "volunteer-service")),
		Donations:  reconciler,
		Shelter: shelter.NewService(st.tx, shelter.Repositories{
			Animals:   st.shelter,
			Adoptions: st.shelter,
			Reports:   st.shelter,
			Donations: st.donations,
		}, a.logger.WithField("component", "shelter-service")),
		Auth:           authSvc,
		Metrics:        m,
		Logger:         a.logger.WithField("component", "http-api"),
		AllowedOrigins: cfg.AllowedOrigins,
	}).Routes()

	a.health = health.NewHandler(version.Version())
	a.health.Critical("storage", st.ping)
	a.health.Optional("payment_provider", providerCheck)

	a.cleaner = outbox.NewCleaner(st.cleaner, outbox.CleanupOptions{
		Logger:    a.logger.WithField("component", "outbox-cleaner"),
		Metrics:   m,
		Interval:  cfg.OutboxCleanupEvery,
		BatchSize: cfg.OutboxBatchSize,
		Retention: cfg.OutboxRetention,
	})

	events, err := initEventSink(cfg, a.logger)
	if err != nil {
		return fmt.Errorf("init event broker: %w", err)
	}
	a.events = events
	if events != nil {
		a.worker = outbox.NewWorker(st.outbox, events.publisher,
			outbox.WithLogger(a.logger.WithField("component", "outbox-worker")),
			outbox.WithMetrics(m),
			outbox.WithDLQPublisher(events.dlq),
			outbox.WithPollInterval(cfg.OutboxPollInterval),
			outbox.WithBatchSize(cfg.OutboxBatchSize),
			outbox.WithMaxAttempts(cfg.OutboxMaxAttempts),
			outbox.WithRetryBaseDelay(cfg.OutboxRetryDelay),
		)
		a.health.Optional("event_broker", events.ping)
		a.health.Optional("outbox_backlog", a.checkOutboxLag)
	}
	return nil
}

func (a *App) checkOutboxLag(context.Context) error {
	stats, err := a.storage.outbox.Stats()
	if err != nil {
		return err
	}
	if stats.PendingCount > 0 && !stats.OldestPendingAt.IsZero() {
		if lag := time.Since(stats.OldestPendingAt); lag > maxOutboxLag {
			return fmt.Errorf("%d pending events, oldest is %s old", stats.PendingCount, lag.Round(time.Second))
		}
	}
	return nil
}

// Handler возвращает REST API.
func (a *App) Handler() http.Handler {
	return a.api
}

// Auth возвращает сервис аутентификации.
func (a *App) Auth() *auth.Service {
	return a.auth
}

// OpsHandler возвращает служебные маршруты: метрики и health checks.
func (a *App) OpsHandler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(a.gatherer, promhttp.HandlerOpts{}))
	mux.Handle("/healthz", a.health)
	mux.HandleFunc("/livez", health.LivenessHandler)
	mux.HandleFunc("/readyz", a.health.ReadinessHandler)
	return mux
}

// Run обслуживает API и метрики и публикует outbox до отмены ctx.
// Ошибка любого компонента останавливает остальные.
func (a *App) Run(ctx context.Context) error {
	apiSrv := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           a.api,
		ReadHeaderTimeout: a.cfg.HTTPReadTimeout,
		ReadTimeout:       a.cfg.HTTPReadTimeout,
		WriteTimeout:      a.cfg.HTTPWriteTimeout,
	}
	opsSrv := &http.Server{
		Addr:              a.cfg.MetricsAddr,
		Handler:           a.OpsHandler(),
		ReadHeaderTimeout: a.cfg.HTTPReadTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.logger.WithField("addr", apiSrv.Addr).Info("http api listening")
		return serve(apiSrv)
	})
	g.Go(func() error {
		a.logger.Infof("metrics: %s/metrics, health: %s/healthz", opsSrv.Addr, opsSrv.Addr)
		return serve(opsSrv)
	})
	if a.worker != nil {
		g.Go(func() error {
			return a.worker.Run(gctx)
		})
	}
	g.Go(func() error {
		return a.cleaner.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		a.logger.Info("shutting down")
		shutdownHTTP(apiSrv, a.cfg.ShutdownTimeout, a.logger)
		shutdownHTTP(opsSrv, a.cfg.ShutdownTimeout, a.logger)
		return nil
	})

	err := g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// Close освобождает брокер и хранилище.
func (a *App) Close() {
	a.events.shutdown(a.logger)
	if a.storage != nil && a.storage.close != nil {
		if err := a.storage.close(); err != nil {
			a.logger.WithError(err).Warn("failed to close storage")
		}
	}
}

// Run собирает App и запускает его до отмены ctx.
func Run(ctx context.Context, cfg Config) error {
	a, err := New(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()
	return a.Run(ctx)
}

func serve(srv *http.Server) error {
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve %s: %w", srv.Addr, err)
	}
	return nil
}

// shutdownHTTP аккуратно останавливает HTTP-сервер.
func shutdownHTTP(srv *http.Server, timeout time.Duration, logger *log.Entry) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).WithField("addr", srv.Addr).Warn("http shutdown with error")
	}
}

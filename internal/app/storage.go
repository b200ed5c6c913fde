package app

import (
	"context"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/straycare/internal/domain"
	"github.com/vladislavdragonenkov/straycare/internal/storage/memory"
	"github.com/vladislavdragonenkov/straycare/internal/storage/postgres"
)

type shelterRepository interface {
	domain.AdminRepository
	domain.AnimalRepository
	domain.AdoptionRepository
	domain.ReportRepository
}

// runtimeStorage — хранилище, выбранное конфигурацией.
type runtimeStorage struct {
	driver     string
	tx         domain.Transactor
	volunteers domain.VolunteerRepository
	donations  domain.DonationRepository
	shelter    shelterRepository
	outbox     domain.OutboxRepository
	cleaner    domain.OutboxCleaner
	ping       func(ctx context.Context) error
	close      func() error
}

func initStorage(ctx context.Context, cfg Config, logger *log.Entry) (*runtimeStorage, error) {
	switch cfg.StorageDriver {
	case "", StorageDriverMemory:
		store := memory.NewStore().WithLogger(logger.WithField("storage", StorageDriverMemory))
		repo := memory.NewRepository(store)
		outbox := store.Outbox()
		logger.Warn("using in-memory storage, data is lost on restart")
		return &runtimeStorage{
			driver:     StorageDriverMemory,
			tx:         store,
			volunteers: repo,
			donations:  repo,
			shelter:    repo,
			outbox:     outbox,
			cleaner:    outbox,
			ping:       store.Ping,
			close:      store.Close,
		}, nil

	case StorageDriverPostgres:
		if cfg.PostgresDSN == "" {
			return nil, errors.New("postgres storage requires SHELTER_POSTGRES_DSN")
		}
		store, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		store = store.WithLogger(logger.WithField("storage", StorageDriverPostgres))

		if cfg.PostgresAutoMigrate {
			if err := store.MigrateUp(ctx, 0); err != nil {
				_ = store.Close()
				return nil, fmt.Errorf("apply migrations: %w", err)
			}
			logger.Info("postgres migrations applied")
		}

		outbox := postgres.NewOutboxRepository(store)
		return &runtimeStorage{
			driver:     StorageDriverPostgres,
			tx:         store,
			volunteers: postgres.NewVolunteerRepository(store),
			donations:  postgres.NewDonationRepository(store),
			shelter:    postgres.NewShelterRepository(store),
			outbox:     outbox,
			cleaner:    outbox,
			ping:       store.Ping,
			close:      store.Close,
		}, nil

	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.StorageDriver)
	}
}

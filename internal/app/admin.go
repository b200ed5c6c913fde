package app

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/straycare/internal/auth"
)

// CreateAdmin регистрирует администратора напрямую в хранилище.
// Нужен для первого администратора, пока зарегистрировать его через API некому.
func CreateAdmin(ctx context.Context, cfg Config, reg auth.Registration, logger *log.Entry) (int64, error) {
	if logger == nil {
		logger = log.WithField("component", "admin-bootstrap")
	}
	st, err := initStorage(ctx, cfg, logger)
	if err != nil {
		return 0, err
	}
	defer func() {
		if err := st.close(); err != nil {
			logger.WithError(err).Warn("failed to close storage")
		}
	}()

	svc, err := auth.NewService(st.tx, st.shelter, auth.Config{
		Secret:     cfg.JWTSecret,
		TokenTTL:   cfg.TokenTTL,
		BcryptCost: cfg.BcryptCost,
	}, logger, nil)
	if err != nil {
		return 0, fmt.Errorf("init auth: %w", err)
	}
	return svc.Register(ctx, reg)
}

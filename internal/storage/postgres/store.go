package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/straycare/internal/domain"
)

const (
	defaultConnTimeout     = 5 * time.Second
	defaultMaxOpenConns    = 25
	defaultMaxIdleConns    = 25
	defaultConnMaxLifetime = 30 * time.Minute
	defaultConnMaxIdleTime = 5 * time.Minute

	opTimeout = 5 * time.Second
)

// Store оборачивает пул подключений к PostgreSQL и открывает транзакции.
type Store struct {
	db     *sql.DB
	logger *log.Entry
}

// Open открывает подключение к PostgreSQL и проверяет доступность базы.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres connection: %w", err)
	}
	db.SetMaxOpenConns(defaultMaxOpenConns)
	db.SetMaxIdleConns(defaultMaxIdleConns)
	db.SetConnMaxLifetime(defaultConnMaxLifetime)
	db.SetConnMaxIdleTime(defaultConnMaxIdleTime)

	pingCtx, cancel := context.WithTimeout(ctx, defaultConnTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &Store{db: db, logger: log.WithField("component", "postgres-store")}, nil
}

// DB возвращает raw SQL DB, когда нужен низкоуровневый доступ.
func (s *Store) DB() *sql.DB {
	return s.db
}

// WithLogger задаёт logger для сообщений о сбоях rollback.
func (s *Store) WithLogger(logger *log.Entry) *Store {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// Ping проверяет доступность подключения.
func (s *Store) Ping(ctx context.Context) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("postgres store is not initialized")
	}

	pingCtx, cancel := context.WithTimeout(ctx, defaultConnTimeout)
	defer cancel()
	return s.db.PingContext(pingCtx)
}

// WithinTx выполняет fn в транзакции. Ошибка fn откатывает транзакцию и
// возвращается как есть; сбой самого rollback только логируется.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx domain.Tx) error) (err error) {
	if s == nil || s.db == nil {
		return domain.NewStorageError("begin transaction", errors.New("postgres store is not initialized"))
	}

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.NewStorageError("begin transaction", err)
	}

	defer func() {
		if p := recover(); p != nil {
			s.rollback(sqlTx, fmt.Errorf("panic: %v", p))
			panic(p)
		}
	}()

	if err := fn(ctx, &txWriter{tx: sqlTx}); err != nil {
		s.rollback(sqlTx, err)
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return domain.NewStorageError("commit transaction", err)
	}
	return nil
}

func (s *Store) rollback(tx *sql.Tx, cause error) {
	if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		s.log().WithError(err).WithField("cause", cause.Error()).Error("transaction rollback failed")
	}
}

func (s *Store) log() *log.Entry {
	if s.logger == nil {
		return log.WithField("component", "postgres-store")
	}
	return s.logger
}

// Close закрывает подключение к БД.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

var _ domain.Transactor = (*Store)(nil)

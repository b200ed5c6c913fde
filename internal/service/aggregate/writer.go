// Package aggregate сохраняет родительскую строку вместе с дочерними в одной транзакции.
package aggregate

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/straycare/internal/domain"
	"github.com/vladislavdragonenkov/straycare/internal/metrics"
)

// Исходы записи агрегата для метрик.
const (
	OutcomeCommitted  = "committed"
	OutcomeRejected   = "rejected"
	OutcomeRolledBack = "rolled_back"
)

// Plan описывает агрегат: родителя, дочерние записи и колонку-ссылку на родителя.
type Plan struct {
	// Name используется в логах и метриках, например "volunteer".
	Name   string
	Parent domain.Record
	// Children вставляются одним батчем; все записи должны относиться к одной таблице.
	Children []domain.Record
	// ForeignKey — колонка дочерней таблицы, получающая id родителя.
	ForeignKey string
	// ChildPath — префикс имён полей дочерних записей в ValidationError, например "skills".
	ChildPath string
	// Problems — ошибки, найденные вызывающим до построения плана (формат email и т.п.).
	Problems *domain.ValidationError
}

// Options задаёт зависимости Writer.
type Options struct {
	Logger  *log.Entry
	Metrics *metrics.ShelterMetrics
}

// Option настраивает Writer.
type Option func(*Options)

// WithLogger задаёт logger.
func WithLogger(logger *log.Entry) Option {
	return func(opts *Options) {
		opts.Logger = logger
	}
}

// WithMetrics задаёт метрики записи.
func WithMetrics(m *metrics.ShelterMetrics) Option {
	return func(opts *Options) {
		opts.Metrics = m
	}
}

// Writer атомарно создаёт агрегаты.
type Writer struct {
	tx      domain.Transactor
	logger  *log.Entry
	metrics *metrics.ShelterMetrics
}

// NewWriter создаёт Writer поверх транзакционного хранилища.
func NewWriter(tx domain.Transactor, options ...Option) *Writer {
	var opts Options
	for _, option := range options {
		option(&opts)
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.WithField("component", "aggregate-writer")
	}
	return &Writer{tx: tx, logger: logger, metrics: opts.Metrics}
}

// Create валидирует план, вставляет родителя и все дочерние записи в одной транзакции
// и возвращает id родителя только после commit.
// Ошибки валидации перечисляют все проблемы и возвращаются до обращения к хранилищу.
func (w *Writer) Create(ctx context.Context, plan Plan) (int64, error) {
	start := time.Now()
	name := plan.Name
	if name == "" {
		name = plan.Parent.Table
	}

	if err := validatePlan(plan); err != nil {
		w.metrics.RecordAggregateWrite(name, OutcomeRejected, time.Since(start))
		return 0, err
	}

	var parentID int64
	err := w.tx.WithinTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		id, err := tx.Insert(ctx, plan.Parent.Table, plan.Parent.Fields)
		if err != nil {
			return err
		}

		if len(plan.Children) > 0 {
			rows := make([]domain.Fields, len(plan.Children))
			for i, child := range plan.Children {
				row := child.Fields.Clone()
				row[plan.ForeignKey] = id
				rows[i] = row
			}
			if err := tx.InsertBatch(ctx, plan.Children[0].Table, rows); err != nil {
				return err
			}
		}

		parentID = id
		return nil
	})
	if err != nil {
		w.metrics.RecordAggregateWrite(name, OutcomeRolledBack, time.Since(start))
		w.logger.WithError(err).WithFields(log.Fields{
			"aggregate": name,
			"children":  len(plan.Children),
		}).Warn("aggregate write rolled back")
		return 0, err
	}

	w.metrics.RecordAggregateWrite(name, OutcomeCommitted, time.Since(start))
	w.logger.WithFields(log.Fields{
		"aggregate": name,
		"id":        parentID,
		"children":  len(plan.Children),
	}).Debug("aggregate created")
	return parentID, nil
}

var errInvalidPlan = errors.New("invalid aggregate plan")

func validatePlan(plan Plan) error {
	if plan.Parent.Table == "" {
		return fmt.Errorf("%w: parent table is empty", errInvalidPlan)
	}
	if len(plan.Children) > 0 && plan.ForeignKey == "" {
		return fmt.Errorf("%w: foreign key is empty", errInvalidPlan)
	}
	for i, child := range plan.Children {
		if child.Table != plan.Children[0].Table {
			return fmt.Errorf("%w: child %d targets %q, want %q", errInvalidPlan, i, child.Table, plan.Children[0].Table)
		}
	}

	verr := domain.NewValidationError("")
	if plan.Problems != nil {
		verr.Message = plan.Problems.Message
		for field, problem := range plan.Problems.Fields {
			verr.Add(field, problem)
		}
	}
	for _, col := range plan.Parent.Missing() {
		verr.Add(col, "is required")
	}

	prefix := plan.ChildPath
	if prefix == "" {
		prefix = plan.ChildTable()
	}
	for i, child := range plan.Children {
		for _, col := range child.Missing() {
			verr.Add(fmt.Sprintf("%s[%d].%s", prefix, i, col), "is required")
		}
	}

	if verr.HasProblems() {
		return verr
	}
	return nil
}

// ChildTable возвращает таблицу дочерних записей или пустую строку.
func (p Plan) ChildTable() string {
	if len(p.Children) == 0 {
		return ""
	}
	return p.Children[0].Table
}

package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/straycare/internal/domain"
)

// Виды операций, которые видит FaultFunc.
const (
	OpInsert   = "insert"
	OpUpdate   = "update"
	OpDelete   = "delete"
	OpCommit   = "commit"
	OpRollback = "rollback"
)

// Operation описывает операцию хранилища для FaultFunc.
// Index: номер строки внутри InsertBatch, 0 для одиночной вставки.
type Operation struct {
	Kind  string
	Table string
	Index int
}

// FaultFunc позволяет тестам имитировать сбой хранилища на конкретной операции.
type FaultFunc func(op Operation) error

type foreignKey struct {
	column    string
	refTable  string
	onCascade bool
}

// Store — in-memory хранилище строк с транзакциями.
// Транзакции сериализуются общей блокировкой, изменения откатываются по снимку затронутых таблиц.
type Store struct {
	mu     sync.RWMutex
	tables map[string][]domain.Fields
	seq    map[string]int64

	unique   map[string][][]string
	checks   map[string]func(domain.Fields) error
	defaults map[string]func(now time.Time) domain.Fields
	refs     map[string][]foreignKey

	outbox *OutboxRepository
	fault  FaultFunc
	logger *log.Entry
	now    func() time.Time
}

// NewStore создаёт пустое хранилище с ограничениями, повторяющими схему PostgreSQL.
func NewStore() *Store {
	s := &Store{
		tables:   make(map[string][]domain.Fields),
		seq:      make(map[string]int64),
		unique:   make(map[string][][]string),
		checks:   make(map[string]func(domain.Fields) error),
		defaults: make(map[string]func(time.Time) domain.Fields),
		refs:     make(map[string][]foreignKey),
		outbox:   NewOutboxRepository(),
		logger:   log.WithField("component", "memory-store"),
		now:      func() time.Time { return time.Now().UTC() },
	}
	registerSchema(s)
	return s
}

// SetFault задаёт функцию имитации сбоев; nil отключает её.
func (s *Store) SetFault(fn FaultFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fault = fn
}

// WithLogger задаёт logger для сообщений о сбоях rollback.
func (s *Store) WithLogger(logger *log.Entry) *Store {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// Outbox возвращает outbox, куда попадают события зафиксированных транзакций.
func (s *Store) Outbox() *OutboxRepository {
	return s.outbox
}

// Ping всегда успешен для in-memory хранилища.
func (s *Store) Ping(context.Context) error {
	return nil
}

// Close ничего не освобождает.
func (s *Store) Close() error {
	return nil
}

// WithinTx выполняет fn в транзакции.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx domain.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return domain.NewStorageError("begin transaction", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memTx{store: s, saved: make(map[string][]domain.Fields), savedSeq: make(map[string]int64)}
	defer tx.close()

	defer func() {
		if p := recover(); p != nil {
			tx.rollback(fmt.Errorf("panic: %v", p))
			panic(p)
		}
	}()

	if err := fn(ctx, tx); err != nil {
		tx.rollback(err)
		return err
	}

	if err := s.injectFault(Operation{Kind: OpCommit}); err != nil {
		tx.rollback(err)
		return domain.NewStorageError("commit transaction", err)
	}
	for _, msg := range tx.staged {
		s.outbox.enqueue(msg, s.now())
	}
	return nil
}

func (s *Store) injectFault(op Operation) error {
	if s.fault == nil {
		return nil
	}
	return s.fault(op)
}

// rows возвращает строки таблицы; вызывается под блокировкой.
func (s *Store) rows(table string) []domain.Fields {
	return s.tables[table]
}

type memTx struct {
	store    *Store
	saved    map[string][]domain.Fields
	savedSeq map[string]int64
	staged   []domain.OutboxMessage
	done     bool
}

func (tx *memTx) close() {
	tx.done = true
}

// touch сохраняет снимок таблицы перед первой записью в неё.
// Строки не мутируются на месте, поэтому достаточно копии среза.
func (tx *memTx) touch(table string) {
	if _, ok := tx.saved[table]; ok {
		return
	}
	rows := tx.store.tables[table]
	snapshot := make([]domain.Fields, len(rows))
	copy(snapshot, rows)
	tx.saved[table] = snapshot
	tx.savedSeq[table] = tx.store.seq[table]
}

func (tx *memTx) rollback(cause error) {
	for table, rows := range tx.saved {
		tx.store.tables[table] = rows
		tx.store.seq[table] = tx.savedSeq[table]
	}
	tx.staged = nil
	if err := tx.store.injectFault(Operation{Kind: OpRollback}); err != nil {
		tx.store.logger.WithError(err).WithField("cause", cause.Error()).Error("transaction rollback failed")
	}
}

func (tx *memTx) active() error {
	if tx.done {
		return errors.New("transaction already finished")
	}
	return nil
}

func (tx *memTx) Insert(ctx context.Context, table string, fields domain.Fields) (int64, error) {
	if err := tx.active(); err != nil {
		return 0, domain.NewStorageError("insert "+table, err)
	}
	if err := ctx.Err(); err != nil {
		return 0, domain.NewStorageError("insert "+table, err)
	}
	tx.touch(table)

	before := len(tx.store.tables[table])
	seqBefore := tx.store.seq[table]
	id, err := tx.insertRow(table, fields, 0)
	if err != nil {
		tx.store.tables[table] = tx.store.tables[table][:before]
		tx.store.seq[table] = seqBefore
		return 0, domain.NewStorageError("insert "+table, err)
	}
	return id, nil
}

func (tx *memTx) InsertBatch(ctx context.Context, table string, rows []domain.Fields) error {
	if len(rows) == 0 {
		return nil
	}
	if err := tx.active(); err != nil {
		return domain.NewStorageError("insert batch "+table, err)
	}
	if err := ctx.Err(); err != nil {
		return domain.NewStorageError("insert batch "+table, err)
	}
	tx.touch(table)

	// Батч атомарен сам по себе, как одиночный INSERT ... VALUES (...), (...).
	before := len(tx.store.tables[table])
	seqBefore := tx.store.seq[table]
	for i, row := range rows {
		if _, err := tx.insertRow(table, row, i); err != nil {
			tx.store.tables[table] = tx.store.tables[table][:before]
			tx.store.seq[table] = seqBefore
			return domain.NewStorageError("insert batch "+table, fmt.Errorf("row %d: %w", i, err))
		}
	}
	return nil
}

func (tx *memTx) insertRow(table string, fields domain.Fields, index int) (int64, error) {
	s := tx.store
	if err := s.injectFault(Operation{Kind: OpInsert, Table: table, Index: index}); err != nil {
		return 0, err
	}

	row := domain.Fields{}
	if def, ok := s.defaults[table]; ok {
		row = def(s.now())
	}
	for k, v := range fields {
		row[k] = normalize(v)
	}

	if err := s.validateRow(table, row, -1); err != nil {
		return 0, err
	}

	s.seq[table]++
	id := s.seq[table]
	row["id"] = id
	s.tables[table] = append(s.tables[table], row)
	return id, nil
}

func (tx *memTx) Update(ctx context.Context, table string, match domain.Fields, patch domain.Patch) (int64, error) {
	if patch.Empty() {
		return 0, domain.ErrEmptyPatch
	}
	if err := tx.active(); err != nil {
		return 0, domain.NewStorageError("update "+table, err)
	}
	if err := ctx.Err(); err != nil {
		return 0, domain.NewStorageError("update "+table, err)
	}
	s := tx.store
	if err := s.injectFault(Operation{Kind: OpUpdate, Table: table}); err != nil {
		return 0, domain.NewStorageError("update "+table, err)
	}
	tx.touch(table)

	rows := s.tables[table]
	original := make([]domain.Fields, len(rows))
	copy(original, rows)

	var affected int64
	for i, row := range rows {
		if !matches(row, match) {
			continue
		}
		updated := row.Clone()
		for k, v := range patch {
			updated[k] = normalize(v)
		}
		if err := s.validateRow(table, updated, i); err != nil {
			s.tables[table] = original
			return 0, domain.NewStorageError("update "+table, err)
		}
		rows[i] = updated
		affected++
	}
	return affected, nil
}

func (tx *memTx) Delete(ctx context.Context, table string, match domain.Fields) (int64, error) {
	if len(match) == 0 {
		return 0, domain.NewStorageError("delete "+table, errors.New("refusing to delete without conditions"))
	}
	if err := tx.active(); err != nil {
		return 0, domain.NewStorageError("delete "+table, err)
	}
	if err := ctx.Err(); err != nil {
		return 0, domain.NewStorageError("delete "+table, err)
	}
	if err := tx.store.injectFault(Operation{Kind: OpDelete, Table: table}); err != nil {
		return 0, domain.NewStorageError("delete "+table, err)
	}
	return tx.deleteWhere(table, func(row domain.Fields) bool { return matches(row, match) }), nil
}

func (tx *memTx) deleteWhere(table string, pred func(domain.Fields) bool) int64 {
	s := tx.store
	tx.touch(table)

	var (
		kept    []domain.Fields
		removed []int64
	)
	for _, row := range s.tables[table] {
		if pred(row) {
			removed = append(removed, asInt64(row["id"]))
			continue
		}
		kept = append(kept, row)
	}
	s.tables[table] = kept

	// ON DELETE CASCADE для дочерних таблиц.
	for child, fks := range s.refs {
		for _, fk := range fks {
			if fk.refTable != table || !fk.onCascade || len(removed) == 0 {
				continue
			}
			gone := make(map[int64]bool, len(removed))
			for _, id := range removed {
				gone[id] = true
			}
			column := fk.column
			tx.deleteWhere(child, func(row domain.Fields) bool { return gone[asInt64(row[column])] })
		}
	}
	return int64(len(removed))
}

func (tx *memTx) Count(ctx context.Context, table string, match domain.Fields) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, domain.NewStorageError("count "+table, err)
	}
	var n int64
	for _, row := range tx.store.tables[table] {
		if matches(row, match) {
			n++
		}
	}
	return n, nil
}

func (tx *memTx) Enqueue(ctx context.Context, msg domain.OutboxMessage) error {
	if err := ctx.Err(); err != nil {
		return domain.NewStorageError("enqueue outbox message", err)
	}
	tx.staged = append(tx.staged, msg)
	return nil
}

// validateRow проверяет CHECK, UNIQUE и внешние ключи. skip указывает на обновляемую строку.
func (s *Store) validateRow(table string, row domain.Fields, skip int) error {
	if check, ok := s.checks[table]; ok {
		if err := check(row); err != nil {
			return err
		}
	}
	for _, cols := range s.unique[table] {
		for i, other := range s.tables[table] {
			if i == skip {
				continue
			}
			if sameValues(row, other, cols) {
				return fmt.Errorf("%w: %s(%v)", domain.ErrDuplicate, table, cols)
			}
		}
	}
	for _, fk := range s.refs[table] {
		value, ok := row[fk.column]
		if !ok || value == nil {
			continue
		}
		if !s.exists(fk.refTable, asInt64(value)) {
			return fmt.Errorf("%s.%s references missing %s row %v", table, fk.column, fk.refTable, value)
		}
	}
	return nil
}

func (s *Store) exists(table string, id int64) bool {
	for _, row := range s.tables[table] {
		if asInt64(row["id"]) == id {
			return true
		}
	}
	return false
}

var _ domain.Transactor = (*Store)(nil)

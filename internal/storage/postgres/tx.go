package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/vladislavdragonenkov/straycare/internal/domain"
)

const uniqueViolationCode = "23505"

var identifierPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// txWriter реализует domain.Tx поверх *sql.Tx.
type txWriter struct {
	tx *sql.Tx
}

func (w *txWriter) Insert(ctx context.Context, table string, fields domain.Fields) (int64, error) {
	query, args, err := buildInsert(table, fields)
	if err != nil {
		return 0, err
	}

	var id int64
	if err := w.tx.QueryRowContext(ctx, query, args...).Scan(&id); err != nil {
		return 0, translateError("insert "+table, err)
	}
	return id, nil
}

func (w *txWriter) InsertBatch(ctx context.Context, table string, rows []domain.Fields) error {
	if len(rows) == 0 {
		return nil
	}
	query, args, err := buildBatchInsert(table, rows)
	if err != nil {
		return err
	}

	if _, err := w.tx.ExecContext(ctx, query, args...); err != nil {
		return translateError("insert batch "+table, err)
	}
	return nil
}

func (w *txWriter) Update(ctx context.Context, table string, match domain.Fields, patch domain.Patch) (int64, error) {
	query, args, err := buildUpdate(table, match, patch)
	if err != nil {
		return 0, err
	}
	return w.exec(ctx, "update "+table, query, args)
}

func (w *txWriter) Delete(ctx context.Context, table string, match domain.Fields) (int64, error) {
	query, args, err := buildDelete(table, match)
	if err != nil {
		return 0, err
	}
	return w.exec(ctx, "delete "+table, query, args)
}

func (w *txWriter) Count(ctx context.Context, table string, match domain.Fields) (int64, error) {
	query, args, err := buildCount(table, match)
	if err != nil {
		return 0, err
	}

	var n int64
	if err := w.tx.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, translateError("count "+table, err)
	}
	return n, nil
}

func (w *txWriter) Enqueue(ctx context.Context, msg domain.OutboxMessage) error {
	now := time.Now().UTC()
	_, err := w.tx.ExecContext(ctx, `
		INSERT INTO outbox_messages (
			id, aggregate_type, aggregate_id, event_type, payload,
			status, attempt_count, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,'pending',0,$6,$7)
	`,
		msg.ID, msg.AggregateType, msg.AggregateID, msg.EventType, msg.Payload, now, now,
	)
	if err != nil {
		return translateError("enqueue outbox message", err)
	}
	return nil
}

func (w *txWriter) exec(ctx context.Context, op, query string, args []any) (int64, error) {
	res, err := w.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, translateError(op, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, translateError(op, err)
	}
	return affected, nil
}

func buildInsert(table string, fields domain.Fields) (string, []any, error) {
	if err := checkIdentifier(table); err != nil {
		return "", nil, err
	}
	if len(fields) == 0 {
		return "", nil, fmt.Errorf("insert %s: no fields", table)
	}

	cols := fields.Columns()
	placeholders := make([]string, len(cols))
	args := make([]any, len(cols))
	for i, col := range cols {
		if err := checkIdentifier(col); err != nil {
			return "", nil, err
		}
		placeholders[i] = "$" + strconv.Itoa(i+1)
		args[i] = fields[col]
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING id",
		table, strings.Join(cols, ", "), strings.Join(placeholders, ", "))
	return query, args, nil
}

func buildBatchInsert(table string, rows []domain.Fields) (string, []any, error) {
	if err := checkIdentifier(table); err != nil {
		return "", nil, err
	}
	if len(rows) == 0 || len(rows[0]) == 0 {
		return "", nil, fmt.Errorf("insert batch %s: no fields", table)
	}

	cols := rows[0].Columns()
	for _, col := range cols {
		if err := checkIdentifier(col); err != nil {
			return "", nil, err
		}
	}

	args := make([]any, 0, len(rows)*len(cols))
	tuples := make([]string, len(rows))
	for i, row := range rows {
		if len(row) != len(cols) {
			return "", nil, fmt.Errorf("insert batch %s: row %d has %d columns, want %d", table, i, len(row), len(cols))
		}
		placeholders := make([]string, len(cols))
		for j, col := range cols {
			value, ok := row[col]
			if !ok {
				return "", nil, fmt.Errorf("insert batch %s: row %d misses column %s", table, i, col)
			}
			args = append(args, value)
			placeholders[j] = "$" + strconv.Itoa(len(args))
		}
		tuples[i] = "(" + strings.Join(placeholders, ", ") + ")"
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES %s",
		table, strings.Join(cols, ", "), strings.Join(tuples, ", "))
	return query, args, nil
}

func buildUpdate(table string, match domain.Fields, patch domain.Patch) (string, []any, error) {
	if err := checkIdentifier(table); err != nil {
		return "", nil, err
	}
	if patch.Empty() {
		return "", nil, domain.ErrEmptyPatch
	}

	cols := patch.Fields().Columns()
	sets := make([]string, len(cols))
	args := make([]any, 0, len(cols)+len(match))
	for i, col := range cols {
		if err := checkIdentifier(col); err != nil {
			return "", nil, err
		}
		args = append(args, patch[col])
		sets[i] = col + " = $" + strconv.Itoa(len(args))
	}

	where, args, err := buildWhere(match, args)
	if err != nil {
		return "", nil, err
	}

	return fmt.Sprintf("UPDATE %s SET %s%s", table, strings.Join(sets, ", "), where), args, nil
}

func buildDelete(table string, match domain.Fields) (string, []any, error) {
	if err := checkIdentifier(table); err != nil {
		return "", nil, err
	}
	if len(match) == 0 {
		return "", nil, fmt.Errorf("delete %s: refusing to delete without conditions", table)
	}
	where, args, err := buildWhere(match, nil)
	if err != nil {
		return "", nil, err
	}
	return "DELETE FROM " + table + where, args, nil
}

func buildCount(table string, match domain.Fields) (string, []any, error) {
	if err := checkIdentifier(table); err != nil {
		return "", nil, err
	}
	where, args, err := buildWhere(match, nil)
	if err != nil {
		return "", nil, err
	}
	return "SELECT COUNT(*) FROM " + table + where, args, nil
}

func buildWhere(match domain.Fields, args []any) (string, []any, error) {
	if len(match) == 0 {
		return "", args, nil
	}
	cols := match.Columns()
	conds := make([]string, len(cols))
	for i, col := range cols {
		if err := checkIdentifier(col); err != nil {
			return "", nil, err
		}
		if match[col] == nil {
			conds[i] = col + " IS NULL"
			continue
		}
		args = append(args, match[col])
		conds[i] = col + " = $" + strconv.Itoa(len(args))
	}
	return " WHERE " + strings.Join(conds, " AND "), args, nil
}

func checkIdentifier(name string) error {
	if !identifierPattern.MatchString(name) {
		return fmt.Errorf("invalid sql identifier %q", name)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == uniqueViolationCode
	}
	return false
}

// translateError превращает ошибку драйвера в domain.StorageError,
// сохраняя признак нарушения уникальности.
func translateError(op string, err error) error {
	if isUniqueViolation(err) {
		return domain.NewStorageError(op, fmt.Errorf("%w: %w", domain.ErrDuplicate, err))
	}
	return domain.NewStorageError(op, err)
}

var _ domain.Tx = (*txWriter)(nil)

package postgres

import (
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/straycare/internal/domain"
)

func TestBuildInsert(t *testing.T) {
	query, args, err := buildInsert("volunteers", domain.Fields{"name": "Ana", "email": "ana@example.com"})
	require.NoError(t, err)

	assert.Equal(t, "INSERT INTO volunteers (email, name) VALUES ($1, $2) RETURNING id", query)
	assert.Equal(t, []any{"ana@example.com", "Ana"}, args)
}

func TestBuildBatchInsert_SingleStatement(t *testing.T) {
	rows := []domain.Fields{
		{"volunteer_id": int64(7), "label": "walking"},
		{"volunteer_id": int64(7), "label": "feeding"},
	}

	query, args, err := buildBatchInsert("volunteer_skills", rows)
	require.NoError(t, err)

	assert.Equal(t, "INSERT INTO volunteer_skills (label, volunteer_id) VALUES ($1, $2), ($3, $4)", query)
	assert.Equal(t, []any{"walking", int64(7), "feeding", int64(7)}, args)
}

func TestBuildBatchInsert_RejectsRaggedRows(t *testing.T) {
	rows := []domain.Fields{
		{"volunteer_id": int64(7), "label": "walking"},
		{"volunteer_id": int64(7), "note": "x"},
	}

	_, _, err := buildBatchInsert("volunteer_skills", rows)
	require.Error(t, err)
}

func TestBuildUpdate(t *testing.T) {
	query, args, err := buildUpdate("donations",
		domain.Fields{"external_order_id": "ORDER-1", "status": "pending"},
		domain.Patch{"status": "completed", "capture_id": "CAP-1"},
	)
	require.NoError(t, err)

	assert.Equal(t, "UPDATE donations SET capture_id = $1, status = $2 WHERE external_order_id = $3 AND status = $4", query)
	assert.Equal(t, []any{"CAP-1", "completed", "ORDER-1", "pending"}, args)
}

func TestBuildUpdate_EmptyPatch(t *testing.T) {
	_, _, err := buildUpdate("animals", domain.Fields{"id": int64(1)}, domain.Patch{})
	assert.ErrorIs(t, err, domain.ErrEmptyPatch)
}

func TestBuildWhere_NullMatch(t *testing.T) {
	query, args, err := buildCount("donations", domain.Fields{"admin_id": nil, "status": "pending"})
	require.NoError(t, err)

	assert.Equal(t, "SELECT COUNT(*) FROM donations WHERE admin_id IS NULL AND status = $1", query)
	assert.Equal(t, []any{"pending"}, args)
}

func TestBuildDelete_RequiresConditions(t *testing.T) {
	_, _, err := buildDelete("reports", nil)
	require.Error(t, err)

	query, args, err := buildDelete("reports", domain.Fields{"id": int64(3)})
	require.NoError(t, err)
	assert.Equal(t, "DELETE FROM reports WHERE id = $1", query)
	assert.Equal(t, []any{int64(3)}, args)
}

func TestIdentifiersAreChecked(t *testing.T) {
	_, _, err := buildInsert("volunteers; DROP TABLE admins", domain.Fields{"name": "x"})
	require.Error(t, err)

	_, _, err = buildInsert("volunteers", domain.Fields{"name = name --": "x"})
	require.Error(t, err)

	_, _, err = buildUpdate("animals", domain.Fields{"id) OR (1": 1}, domain.Patch{"name": "x"})
	require.Error(t, err)
}

func TestTranslateError_UniqueViolation(t *testing.T) {
	err := translateError("insert admins", &pgconn.PgError{Code: "23505", ConstraintName: "admins_username_key"})

	var serr *domain.StorageError
	require.True(t, errors.As(err, &serr))
	assert.Equal(t, "insert admins", serr.Op)
	assert.ErrorIs(t, err, domain.ErrDuplicate)

	other := translateError("insert admins", &pgconn.PgError{Code: "22001"})
	assert.NotErrorIs(t, other, domain.ErrDuplicate)
}

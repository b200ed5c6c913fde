package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/straycare/internal/domain"
	"github.com/vladislavdragonenkov/straycare/internal/messaging"
	"github.com/vladislavdragonenkov/straycare/internal/storage/postgres"
	"github.com/vladislavdragonenkov/straycare/internal/version"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

type fakeMigrator struct {
	up, down int
	upErr    error
	state    postgres.MigrationState
	closed   bool
}

func (f *fakeMigrator) MigrateUp(_ context.Context, steps int) error {
	f.up = steps
	return f.upErr
}

func (f *fakeMigrator) MigrateDown(_ context.Context, steps int) error {
	f.down = steps
	return nil
}

func (f *fakeMigrator) MigrationStatus(context.Context) (postgres.MigrationState, error) {
	return f.state, nil
}

func (f *fakeMigrator) Close() error {
	f.closed = true
	return nil
}

func withFakeMigrator(t *testing.T, m *fakeMigrator) *string {
	t.Helper()
	var gotDSN string
	prev := openMigrator
	openMigrator = func(_ context.Context, dsn string) (migrator, error) {
		gotDSN = dsn
		return m, nil
	}
	t.Cleanup(func() { openMigrator = prev })
	return &gotDSN
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, version.String()+"\n", out)
}

func TestMigrateRequiresDSN(t *testing.T) {
	t.Setenv("SHELTER_POSTGRES_DSN", "")
	withFakeMigrator(t, &fakeMigrator{})

	_, err := execute(t, "migrate", "status")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SHELTER_POSTGRES_DSN")
}

func TestMigrateUpPrintsStatus(t *testing.T) {
	m := &fakeMigrator{state: postgres.MigrationState{Version: 3, Applied: 3, Pending: []string{"0004_reports.sql"}}}
	dsn := withFakeMigrator(t, m)

	out, err := execute(t, "migrate", "up", "--dsn", "postgres://local/shelter", "--steps", "2")
	require.NoError(t, err)
	assert.Equal(t, "postgres://local/shelter", *dsn)
	assert.Equal(t, 2, m.up)
	assert.True(t, m.closed)
	assert.Equal(t, "version=3 applied=3\npending 0004_reports.sql\n", out)
}

func TestMigrateDownDefaultsToOneStepAndUsesEnvDSN(t *testing.T) {
	t.Setenv("SHELTER_POSTGRES_DSN", "postgres://env/shelter")
	m := &fakeMigrator{}
	dsn := withFakeMigrator(t, m)

	_, err := execute(t, "migrate", "down")
	require.NoError(t, err)
	assert.Equal(t, "postgres://env/shelter", *dsn)
	assert.Equal(t, 1, m.down)
}

func TestMigrateUpFailure(t *testing.T) {
	withFakeMigrator(t, &fakeMigrator{upErr: errors.New("syntax error")})

	_, err := execute(t, "migrate", "up", "--dsn", "postgres://local/shelter")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "migrate up failed")
}

func TestAdminCreateInMemory(t *testing.T) {
	t.Setenv("SHELTER_STORAGE_DRIVER", "memory")
	t.Setenv("SHELTER_JWT_SECRET", "0123456789abcdef0123")
	t.Setenv("SHELTER_ADMIN_PASSWORD", "correct-horse")

	out, err := execute(t, "admin", "create", "--username", "root", "--email", "root@example.com")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, `admin "root" created with id `), out)
}

func TestAdminCreateRequiresUsername(t *testing.T) {
	_, err := execute(t, "admin", "create", "--email", "root@example.com")
	require.Error(t, err)
}

func TestEventsTailRequiresBrokers(t *testing.T) {
	t.Setenv("SHELTER_KAFKA_BROKERS", "")

	_, err := execute(t, "events", "tail")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SHELTER_KAFKA_BROKERS")
}

func TestPrintEnvelope(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	msg, err := domain.NewDonationOutboxMessage(domain.EventDonationCompleted, domain.DonationEvent{
		ExternalOrderID: "ORDER-1",
		Amount:          "25.00",
		Currency:        "USD",
		Status:          string(domain.DonationStatusCompleted),
		CaptureID:       "CAP-1",
		OccurredAt:      at,
	})
	require.NoError(t, err)
	env := messaging.NewEnvelope(msg, at)

	var out bytes.Buffer
	require.NoError(t, printEnvelope(&out, false)(context.Background(), env))
	line := out.String()
	assert.Contains(t, line, "2026-03-01T12:00:00Z")
	assert.Contains(t, line, "order=ORDER-1")
	assert.Contains(t, line, "amount=25.00 USD")

	out.Reset()
	require.NoError(t, printEnvelope(&out, true)(context.Background(), env))
	decoded, err := messaging.DecodeEnvelope(out.Bytes())
	require.NoError(t, err)
	assert.Equal(t, env.ID, decoded.ID)
}

func TestSplitCSV(t *testing.T) {
	assert.Equal(t, []string{"a:9092", "b:9092"}, splitCSV(" a:9092, ,b:9092 "))
	assert.Nil(t, splitCSV(""))
}

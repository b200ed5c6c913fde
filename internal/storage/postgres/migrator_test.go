package postgres

import (
	"strings"
	"testing"
	"testing/fstest"
)

func TestParseMigrations_SortsByVersion(t *testing.T) {
	t.Parallel()

	fsys := fstest.MapFS{
		"sql/migrations/0002_outbox.up.sql":   {Data: []byte("CREATE TABLE b (id INT);")},
		"sql/migrations/0002_outbox.down.sql": {Data: []byte("DROP TABLE b;")},
		"sql/migrations/0001_init.up.sql":     {Data: []byte("CREATE TABLE a (id INT);")},
		"sql/migrations/0001_init.down.sql":   {Data: []byte("DROP TABLE a;")},
	}

	migrations, err := parseMigrations(fsys)
	if err != nil {
		t.Fatalf("parseMigrations failed: %v", err)
	}
	if len(migrations) != 2 {
		t.Fatalf("expected 2 migrations, got %d", len(migrations))
	}
	if migrations[0].Version != 1 || migrations[0].Name != "init" {
		t.Fatalf("unexpected first migration: %+v", migrations[0])
	}
	if migrations[1].Up != "CREATE TABLE b (id INT);" || migrations[1].Down != "DROP TABLE b;" {
		t.Fatalf("unexpected second migration bodies: %+v", migrations[1])
	}
}

func TestParseMigrations_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		fsys    fstest.MapFS
		wantErr string
	}{
		{
			name:    "no files",
			fsys:    fstest.MapFS{},
			wantErr: "no migration files",
		},
		{
			name: "missing down",
			fsys: fstest.MapFS{
				"sql/migrations/0001_init.up.sql": {Data: []byte("SELECT 1;")},
			},
			wantErr: "both up and down",
		},
		{
			name: "invalid name",
			fsys: fstest.MapFS{
				"sql/migrations/init.sql": {Data: []byte("SELECT 1;")},
			},
			wantErr: "invalid migration file name",
		},
		{
			name: "empty body",
			fsys: fstest.MapFS{
				"sql/migrations/0001_init.up.sql":   {Data: []byte("  \n")},
				"sql/migrations/0001_init.down.sql": {Data: []byte("SELECT 1;")},
			},
			wantErr: "empty",
		},
		{
			name: "name mismatch",
			fsys: fstest.MapFS{
				"sql/migrations/0001_init.up.sql":    {Data: []byte("SELECT 1;")},
				"sql/migrations/0001_other.down.sql": {Data: []byte("SELECT 1;")},
			},
			wantErr: "conflicting names",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseMigrations(tt.fsys)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("error %q does not contain %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestEmbeddedMigrationsAreValid(t *testing.T) {
	t.Parallel()

	migrations, err := parseMigrations(embeddedMigrations)
	if err != nil {
		t.Fatalf("embedded migrations are invalid: %v", err)
	}
	if len(migrations) < 2 {
		t.Fatalf("expected at least 2 embedded migrations, got %d", len(migrations))
	}
	if !strings.Contains(migrations[0].Up, "volunteer_skills") {
		t.Fatal("initial migration must create volunteer_skills")
	}
}

func TestStateOf(t *testing.T) {
	t.Parallel()

	migrations := []Migration{{Version: 1, Name: "init"}, {Version: 2, Name: "outbox"}}
	state := stateOf(migrations, map[int64]bool{1: true})

	if state.Version != 1 || state.Applied != 1 {
		t.Fatalf("unexpected state: %+v", state)
	}
	if len(state.Pending) != 1 || state.Pending[0] != "0002_outbox" {
		t.Fatalf("unexpected pending list: %v", state.Pending)
	}
}

package db

import (
	"io"
	"io/fs"
	"strings"
	"testing"

	"github.com/golang-migrate/migrate/v4/source"
)

func TestMigrationsArePaired(t *testing.T) {
	names, err := fs.Glob(migrationsFS, "migrations/*.sql")
	if err != nil {
		t.Fatalf("glob: %v", err)
	}
	if len(names) == 0 {
		t.Fatal("no migrations embedded")
	}

	ups := map[string]bool{}
	downs := map[string]bool{}
	for _, n := range names {
		base := strings.TrimPrefix(n, "migrations/")
		switch {
		case strings.HasSuffix(base, ".up.sql"):
			ups[strings.TrimSuffix(base, ".up.sql")] = true
		case strings.HasSuffix(base, ".down.sql"):
			downs[strings.TrimSuffix(base, ".down.sql")] = true
		default:
			t.Errorf("unexpected migration file %s", base)
		}
	}
	for v := range ups {
		if !downs[v] {
			t.Errorf("migration %s has no down file", v)
		}
	}
	for v := range downs {
		if !ups[v] {
			t.Errorf("migration %s has no up file", v)
		}
	}
}

func TestMigrationSourceReadsFirstVersion(t *testing.T) {
	src, err := MigrationSource()
	if err != nil {
		t.Fatalf("MigrationSource: %v", err)
	}
	defer src.Close()

	v, err := src.First()
	if err != nil {
		t.Fatalf("First: %v", err)
	}
	if v != 1 {
		t.Fatalf("expected first version 1, got %d", v)
	}
}

// Repositories match on these names when translating constraint errors.
func TestInitSchemaNamesConstraints(t *testing.T) {
	b, err := migrationsFS.ReadFile("migrations/000001_init.up.sql")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	schema := string(b)

	for _, want := range []string{
		"appointments_confirmation_code_key",
		"REFERENCES time_slots (id) ON DELETE SET NULL",
		"CREATE TABLE event_logs",
		"preferred_time_of_day        TEXT[] NOT NULL DEFAULT '{}'",
	} {
		if !strings.Contains(schema, want) {
			t.Errorf("schema missing %q", want)
		}
	}
}

// The source is handed to migrate.NewWithInstance, which needs the full
// source.Driver interface including Open.
func TestMigrationSourceFeedsMigrator(t *testing.T) {
	src, err := MigrationSource()
	if err != nil {
		t.Fatalf("MigrationSource: %v", err)
	}

	up, ident, err := src.ReadUp(1)
	if err != nil {
		t.Fatalf("ReadUp: %v", err)
	}
	body, err := io.ReadAll(up)
	up.Close()
	if err != nil {
		t.Fatalf("read up migration: %v", err)
	}
	if ident != "init" || !strings.Contains(string(body), "CREATE TABLE time_slots") {
		t.Fatalf("unexpected up migration %q", ident)
	}

	var open func(string) (source.Driver, error) = src.Open
	if open == nil {
		t.Fatal("source has no Open")
	}
}

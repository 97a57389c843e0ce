package database

import (
	"context"
	"embed"
	"testing"
)

//go:embed testdata/*.sql
var testMigrationsFS embed.FS

// useTestMigrations points the package at the test migration files and
// restores the previous registration afterwards.
func useTestMigrations(t *testing.T) {
	t.Helper()
	prevFS, prevDir := MigrationsFS, MigrationsDir
	MigrationsFS = testMigrationsFS
	MigrationsDir = "testdata"
	t.Cleanup(func() {
		MigrationsFS = prevFS
		MigrationsDir = prevDir
	})
}

func TestMigrate_AppliesAllPending(t *testing.T) {
	useTestMigrations(t)
	db := openTestDB(t)
	ctx := context.Background()

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}

	// Both migrations applied: table exists with the added column.
	if _, err := db.ExecContext(ctx,
		"INSERT INTO widgets (id, name, colour) VALUES ('w1', 'first', 'red')",
	); err != nil {
		t.Errorf("schema incomplete after migrate: %v", err)
	}

	var count int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_migrations").Scan(&count); err != nil {
		t.Fatalf("counting applied migrations: %v", err)
	}
	if count != 2 {
		t.Errorf("applied migrations = %d, want 2", count)
	}
}

func TestMigrate_IsIdempotent(t *testing.T) {
	useTestMigrations(t)
	db := openTestDB(t)
	ctx := context.Background()

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("first Migrate() error = %v", err)
	}
	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("second Migrate() error = %v", err)
	}

	var count int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_migrations").Scan(&count); err != nil {
		t.Fatalf("counting applied migrations: %v", err)
	}
	if count != 2 {
		t.Errorf("applied migrations = %d, want 2 (no duplicates)", count)
	}
}

func TestMigrate_NoEmbeddedFiles(t *testing.T) {
	prevFS := MigrationsFS
	MigrationsFS = embed.FS{}
	t.Cleanup(func() { MigrationsFS = prevFS })

	db := openTestDB(t)
	if err := db.Migrate(context.Background()); err != nil {
		t.Errorf("Migrate() with no migrations error = %v", err)
	}
}

func TestParseMigrationFilename(t *testing.T) {
	tests := []struct {
		filename    string
		wantVersion string
		wantName    string
		wantOK      bool
	}{
		{"20260110_000000_create_devices.up.sql", "20260110_000000", "create_devices", true},
		{"20260110_000000_create_devices.down.sql", "", "", false},
		{"README.md", "", "", false},
		{"notaversion.up.sql", "", "", false},
		{"20260110_000000_multi_word_name.up.sql", "20260110_000000", "multi_word_name", true},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			version, name, ok := parseMigrationFilename(tt.filename)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if version != tt.wantVersion || name != tt.wantName {
				t.Errorf("parsed (%q, %q), want (%q, %q)", version, name, tt.wantVersion, tt.wantName)
			}
		})
	}
}

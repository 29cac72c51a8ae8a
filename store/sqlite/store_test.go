package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/xraph/grove/drivers/sqlitedriver"

	"github.com/xraph/stockwise/store"
	"github.com/xraph/stockwise/store/sqlite"
	"github.com/xraph/stockwise/store/storetest"
)

func setupTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data", "stockwise.db")

	s, err := sqlite.Open(context.Background(), path)
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	if err := s.Migrate(context.Background()); err != nil {
		t.Fatalf("failed to migrate db: %v", err)
	}

	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestConformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store {
		return setupTestStore(t)
	})
}

func TestMigrateIsIdempotent(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("second migrate: %v", err)
	}

	var applied int
	err := sqlitedriver.Unwrap(s.DB()).
		NewRaw(`SELECT COUNT(*) FROM grove_migrations WHERE "group" = ?`, sqlite.Migrations.Name()).
		Scan(ctx, &applied)
	if err != nil {
		t.Fatal(err)
	}
	if want := len(sqlite.Migrations.Migrations()); applied != want {
		t.Errorf("recorded %d migrations, want %d", applied, want)
	}
	if err := s.Ping(ctx); err != nil {
		t.Errorf("Ping: %v", err)
	}
}

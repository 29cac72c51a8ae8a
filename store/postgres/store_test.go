package postgres_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/xraph/grove/drivers/pgdriver"

	"github.com/xraph/stockwise/store"
	"github.com/xraph/stockwise/store/postgres"
	"github.com/xraph/stockwise/store/storetest"
)

var tables = []string{
	"stockwise_items",
	"stockwise_receipts",
	"stockwise_usages",
	"stockwise_requirements",
	"stockwise_users",
}

// Set STOCKWISE_TEST_POSTGRES_DSN to run against a live server. Each
// subtest truncates the stockwise tables, so point it at a scratch database.
func TestStoreConformance(t *testing.T) {
	dsn := os.Getenv("STOCKWISE_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("STOCKWISE_TEST_POSTGRES_DSN not set")
	}

	storetest.Run(t, func(t *testing.T) store.Store {
		t.Helper()
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		s, err := postgres.Open(ctx, dsn, 4)
		if err != nil {
			t.Fatalf("open: %v", err)
		}
		if err := s.Migrate(ctx); err != nil {
			t.Fatalf("migrate: %v", err)
		}
		pg := pgdriver.Unwrap(s.DB())
		for _, table := range tables {
			if _, err := pg.NewRaw(`TRUNCATE ` + table).Exec(ctx); err != nil {
				t.Fatalf("truncate %s: %v", table, err)
			}
		}
		t.Cleanup(func() { _ = s.Close() })
		return s
	})
}

func TestMigrateIsIdempotent(t *testing.T) {
	dsn := os.Getenv("STOCKWISE_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("STOCKWISE_TEST_POSTGRES_DSN not set")
	}
	ctx := context.Background()

	s, err := postgres.Open(ctx, dsn, 2)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()

	for i := 0; i < 2; i++ {
		if err := s.Migrate(ctx); err != nil {
			t.Fatalf("migrate #%d: %v", i+1, err)
		}
	}
	if err := s.Ping(ctx); err != nil {
		t.Errorf("Ping: %v", err)
	}
}

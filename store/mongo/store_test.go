package mongo_test

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/xraph/grove/drivers/mongodriver"

	"github.com/xraph/stockwise/store"
	"github.com/xraph/stockwise/store/mongo"
	"github.com/xraph/stockwise/store/storetest"
)

// Set STOCKWISE_TEST_MONGO_URI to run against a live server.
func TestStoreConformance(t *testing.T) {
	uri := os.Getenv("STOCKWISE_TEST_MONGO_URI")
	if uri == "" {
		t.Skip("STOCKWISE_TEST_MONGO_URI not set")
	}

	storetest.Run(t, func(t *testing.T) store.Store {
		t.Helper()
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		dbName := fmt.Sprintf("stockwise_test_%d", time.Now().UnixNano())
		s, err := mongo.Connect(ctx, uri, dbName)
		if err != nil {
			t.Fatalf("connect: %v", err)
		}
		if err := s.Migrate(ctx); err != nil {
			t.Fatalf("migrate: %v", err)
		}
		t.Cleanup(func() {
			_ = mongodriver.Unwrap(s.DB()).Database().Drop(context.Background())
			_ = s.Close()
		})
		return s
	})
}

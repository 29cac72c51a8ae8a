package memory_test

import (
	"context"
	"errors"
	"testing"

	"github.com/xraph/stockwise"
	"github.com/xraph/stockwise/store"
	"github.com/xraph/stockwise/store/memory"
	"github.com/xraph/stockwise/store/storetest"
)

func TestConformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store {
		return memory.New()
	})
}

func TestPingAfterClose(t *testing.T) {
	s := memory.New()
	ctx := context.Background()
	if err := s.Ping(ctx); err != nil {
		t.Fatalf("Ping: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if err := s.Ping(ctx); !errors.Is(err, stockwise.ErrStoreClosed) {
		t.Errorf("expected ErrStoreClosed, got %v", err)
	}
}

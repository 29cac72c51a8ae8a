package plugin_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/xraph/stockwise/item"
	"github.com/xraph/stockwise/plugin"
	"github.com/xraph/stockwise/reconcile"
)

type recorder struct {
	name string

	mu       sync.Mutex
	created  []string
	warnings int
}

func (r *recorder) Name() string { return r.name }

func (r *recorder) OnItemCreated(_ context.Context, it *item.Item) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.created = append(r.created, it.ItemID)
	return nil
}

func (r *recorder) OnReconcileWarning(_ context.Context, ws []reconcile.Warning) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.warnings += len(ws)
	return nil
}

type failing struct{}

func (failing) Name() string { return "failing" }

func (failing) OnItemCreated(context.Context, *item.Item) error { return errors.New("boom") }

type slow struct{}

func (slow) Name() string { return "slow" }

func (slow) OnLowStock(ctx context.Context, _ *item.Item) error {
	select {
	case <-time.After(time.Second):
	case <-ctx.Done():
	}
	return nil
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	reg := plugin.NewRegistry()
	if err := reg.Register(&recorder{name: "audit"}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := reg.Register(&recorder{name: "audit"}); err == nil {
		t.Fatal("expected duplicate registration to fail")
	}
	if reg.Count() != 1 {
		t.Errorf("Count = %d, want 1", reg.Count())
	}
	if reg.Get("audit") == nil {
		t.Error("Get(audit) returned nil")
	}
	if reg.Get("missing") != nil {
		t.Error("Get(missing) should be nil")
	}
}

func TestEmitDispatchesOnlyToImplementers(t *testing.T) {
	reg := plugin.NewRegistry()
	rec := &recorder{name: "rec"}
	_ = reg.Register(rec)
	_ = reg.Register(failing{})

	ctx := context.Background()
	reg.EmitItemCreated(ctx, &item.Item{ItemID: "I001"})
	reg.EmitItemCreated(ctx, &item.Item{ItemID: "I002"})
	reg.EmitReconcileWarning(ctx, nil)
	reg.EmitReconcileWarning(ctx, []reconcile.Warning{{ItemID: "I404", Reason: reconcile.ReasonItemNotFound}})
	reg.EmitUserDeleted(ctx, "alice")

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.created) != 2 || rec.created[0] != "I001" || rec.created[1] != "I002" {
		t.Errorf("created = %v", rec.created)
	}
	if rec.warnings != 1 {
		t.Errorf("warnings = %d, want 1", rec.warnings)
	}
}

func TestSlowPluginTimesOut(t *testing.T) {
	reg := plugin.NewRegistry().WithTimeout(20 * time.Millisecond)
	_ = reg.Register(slow{})

	start := time.Now()
	reg.EmitLowStock(context.Background(), &item.Item{ItemID: "I001"})
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("EmitLowStock blocked for %v", elapsed)
	}
}

func TestListIsACopy(t *testing.T) {
	reg := plugin.NewRegistry()
	_ = reg.Register(&recorder{name: "a"})
	list := reg.List()
	list[0] = nil
	if reg.List()[0] == nil {
		t.Error("List exposed internal slice")
	}
}

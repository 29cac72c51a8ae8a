package stockwise_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/xraph/stockwise"
	"github.com/xraph/stockwise/history"
	"github.com/xraph/stockwise/id"
	"github.com/xraph/stockwise/item"
	"github.com/xraph/stockwise/reconcile"
	"github.com/xraph/stockwise/receipt"
	"github.com/xraph/stockwise/store/memory"
	"github.com/xraph/stockwise/types"
	"github.com/xraph/stockwise/usage"
)

var fixedNow = time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)

func newTracker(t *testing.T, opts ...stockwise.Option) (*stockwise.Tracker, *memory.Store) {
	t.Helper()
	s := memory.New()
	base := []stockwise.Option{
		stockwise.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		stockwise.WithClock(func() time.Time { return fixedNow }),
		stockwise.WithBcryptCost(bcrypt.MinCost),
	}
	tr := stockwise.New(s, append(base, opts...)...)
	if err := tr.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { _ = tr.Stop() })
	return tr, s
}

func mustItem(t *testing.T, tr *stockwise.Tracker, desc string, stock int) *item.Item {
	t.Helper()
	it, err := tr.CreateItem(context.Background(), "alice", stockwise.ItemInput{Description: desc, Stock: stock})
	if err != nil {
		t.Fatalf("CreateItem(%s): %v", desc, err)
	}
	return it
}

func stockOf(t *testing.T, tr *stockwise.Tracker, itemID string) int {
	t.Helper()
	it, err := tr.GetItem(context.Background(), itemID)
	if err != nil {
		t.Fatalf("GetItem(%s): %v", itemID, err)
	}
	return it.Stock()
}

func correlated(t *testing.T, tr *stockwise.Tracker, itemID string, recordID id.ID) []history.Entry {
	t.Helper()
	entries, err := tr.ItemHistory(context.Background(), itemID)
	if err != nil {
		t.Fatalf("ItemHistory(%s): %v", itemID, err)
	}
	return history.Correlated(entries, recordID.String())
}

func receiptOf(lines ...receipt.Line) stockwise.ReceiptInput {
	return stockwise.ReceiptInput{PONumber: "PO-1", DateReceived: types.Day(2026, time.March, 1), Items: lines}
}

// recorder collects the plugin events the tests look at.
type recorder struct {
	mu       sync.Mutex
	warnings []reconcile.Warning
	low      []string
}

func (r *recorder) Name() string { return "recorder" }

func (r *recorder) OnReconcileWarning(_ context.Context, w []reconcile.Warning) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.warnings = append(r.warnings, w...)
	return nil
}

func (r *recorder) OnLowStock(_ context.Context, it *item.Item) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.low = append(r.low, it.ItemID)
	return nil
}

func TestCreateItemAssignsNumbers(t *testing.T) {
	tr, _ := newTracker(t)
	ctx := context.Background()

	first := mustItem(t, tr, "bolt", 10)
	second := mustItem(t, tr, "nut", 0)

	if first.ItemID != "I001" || second.ItemID != "I002" {
		t.Fatalf("expected I001, I002; got %s, %s", first.ItemID, second.ItemID)
	}
	if len(second.History) != 1 || second.History[0].Delta != 0 || second.History[0].Label != history.LabelStock {
		t.Errorf("expected one zero Stock entry, got %v", second.History)
	}
	if first.Stock() != 10 {
		t.Errorf("expected stock 10, got %d", first.Stock())
	}

	if _, err := tr.CreateItem(ctx, "alice", stockwise.ItemInput{Description: "  "}); !stockwise.IsValidation(err) {
		t.Errorf("expected validation error for blank description, got %v", err)
	}
	if _, err := tr.CreateItem(ctx, "alice", stockwise.ItemInput{Description: "x", MinLevel: 5, MaxLevel: 2}); !stockwise.IsValidation(err) {
		t.Errorf("expected validation error for max below min, got %v", err)
	}
}

func TestCreateItemAtThreeDigitBoundary(t *testing.T) {
	tr, s := newTracker(t)
	ctx := context.Background()

	seed := &item.Item{Entity: types.NewEntity(), ID: id.NewItemID(), ItemID: "I999", Description: "last"}
	if err := s.CreateItem(ctx, seed); err != nil {
		t.Fatal(err)
	}

	next := mustItem(t, tr, "overflow", 0)
	if next.ItemID != "I1000" {
		t.Fatalf("expected I1000, got %s", next.ItemID)
	}

	// I999 still sorts last, so the next candidate collides with I1000.
	_, err := tr.CreateItem(ctx, "alice", stockwise.ItemInput{Description: "again"})
	if !errors.Is(err, stockwise.ErrItemIDExhausted) {
		t.Fatalf("expected ErrItemIDExhausted, got %v", err)
	}
	if !stockwise.IsConflict(err) {
		t.Error("expected exhaustion to classify as a conflict")
	}
}

func TestUpdateItemRecordsStockDifference(t *testing.T) {
	tr, _ := newTracker(t)
	ctx := context.Background()
	it := mustItem(t, tr, "bolt", 10)

	target := 4
	desc := " hex bolt "
	updated, err := tr.UpdateItem(ctx, "bob", it.ItemID, stockwise.ItemUpdate{Description: &desc, Stock: &target})
	if err != nil {
		t.Fatalf("UpdateItem: %v", err)
	}
	if updated.Description != "hex bolt" {
		t.Errorf("expected trimmed description, got %q", updated.Description)
	}
	if updated.Stock() != 4 {
		t.Errorf("expected stock 4, got %d", updated.Stock())
	}
	last := updated.History[len(updated.History)-1]
	if last.Delta != -6 || last.Actor != "bob" || last.Label != history.LabelStock {
		t.Errorf("unexpected adjustment entry %+v", last)
	}

	// Same target again writes nothing.
	again, err := tr.UpdateItem(ctx, "bob", it.ItemID, stockwise.ItemUpdate{Stock: &target})
	if err != nil {
		t.Fatal(err)
	}
	if len(again.History) != len(updated.History) {
		t.Errorf("expected no new entry, got %d entries", len(again.History))
	}

	if _, err := tr.UpdateItem(ctx, "bob", "I404", stockwise.ItemUpdate{Stock: &target}); !errors.Is(err, stockwise.ErrItemNotFound) {
		t.Errorf("expected ErrItemNotFound, got %v", err)
	}
}

func TestAdjustStockAndLowStockEvent(t *testing.T) {
	rec := &recorder{}
	tr, _ := newTracker(t, stockwise.WithPlugin(rec))
	ctx := context.Background()

	it, err := tr.CreateItem(ctx, "alice", stockwise.ItemInput{Description: "washer", Stock: 5, MinLevel: 3})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := tr.AdjustStock(ctx, "alice", it.ItemID, 0); !stockwise.IsValidation(err) {
		t.Errorf("expected validation error for zero delta, got %v", err)
	}

	after, err := tr.AdjustStock(ctx, "alice", it.ItemID, -3)
	if err != nil {
		t.Fatalf("AdjustStock: %v", err)
	}
	if after.Stock() != 2 {
		t.Errorf("expected stock 2, got %d", after.Stock())
	}
	// Already low: no second event.
	if _, err := tr.AdjustStock(ctx, "alice", it.ItemID, -1); err != nil {
		t.Fatal(err)
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.low) != 1 || rec.low[0] != it.ItemID {
		t.Errorf("expected one low stock event for %s, got %v", it.ItemID, rec.low)
	}
}

func TestDeleteItem(t *testing.T) {
	tr, _ := newTracker(t)
	ctx := context.Background()
	it := mustItem(t, tr, "bolt", 1)

	if err := tr.DeleteItem(ctx, it.ItemID); err != nil {
		t.Fatalf("DeleteItem: %v", err)
	}
	if _, err := tr.GetItem(ctx, it.ItemID); !stockwise.IsNotFound(err) {
		t.Errorf("expected not found after delete, got %v", err)
	}
	if err := tr.DeleteItem(ctx, it.ItemID); !stockwise.IsNotFound(err) {
		t.Errorf("expected not found on second delete, got %v", err)
	}
}

func TestReceiptLifecycle(t *testing.T) {
	tr, _ := newTracker(t)
	ctx := context.Background()

	for i := 0; i < 6; i++ {
		mustItem(t, tr, "filler", 0)
	}
	it := mustItem(t, tr, "bracket", 10)
	if it.ItemID != "I007" {
		t.Fatalf("expected I007, got %s", it.ItemID)
	}

	res, err := tr.CreateReceipt(ctx, "alice", receiptOf(receipt.Line{ItemID: "I007", Description: "bracket", QuantityReceived: 5}))
	if err != nil {
		t.Fatalf("CreateReceipt: %v", err)
	}
	if len(res.Warnings) != 0 {
		t.Errorf("unexpected warnings %v", res.Warnings)
	}
	if got := stockOf(t, tr, "I007"); got != 15 {
		t.Errorf("after create: expected 15, got %d", got)
	}
	tagged := correlated(t, tr, "I007", res.Receipt.ID)
	if len(tagged) != 1 || tagged[0].Delta != 5 || tagged[0].Label != history.LabelReceived {
		t.Fatalf("expected one +5 Received entry, got %v", tagged)
	}
	if len(res.Receipt.ItemRefs) != 1 || res.Receipt.ItemRefs[0].String() != it.ID.String() {
		t.Errorf("expected item refs [%s], got %v", it.ID, res.Receipt.ItemRefs)
	}

	upd, err := tr.UpdateReceipt(ctx, "bob", res.Receipt.ID, receiptOf(receipt.Line{ItemID: "I007", Description: "bracket", QuantityReceived: 8}))
	if err != nil {
		t.Fatalf("UpdateReceipt: %v", err)
	}
	if got := stockOf(t, tr, "I007"); got != 18 {
		t.Errorf("after update: expected 18, got %d", got)
	}
	tagged = correlated(t, tr, "I007", res.Receipt.ID)
	if len(tagged) != 1 || tagged[0].Delta != 8 || tagged[0].Actor != "bob" {
		t.Errorf("expected the tagged entry replaced with +8 by bob, got %v", tagged)
	}
	if upd.Receipt.Items[0].QuantityReceived != 8 {
		t.Errorf("receipt not saved: %+v", upd.Receipt.Items)
	}

	if _, err := tr.DeleteReceipt(ctx, res.Receipt.ID); err != nil {
		t.Fatalf("DeleteReceipt: %v", err)
	}
	if got := stockOf(t, tr, "I007"); got != 10 {
		t.Errorf("after delete: expected 10, got %d", got)
	}
	if tagged := correlated(t, tr, "I007", res.Receipt.ID); len(tagged) != 0 {
		t.Errorf("expected no tagged entries after delete, got %v", tagged)
	}
	if _, err := tr.GetReceipt(ctx, res.Receipt.ID); !errors.Is(err, stockwise.ErrReceiptNotFound) {
		t.Errorf("expected ErrReceiptNotFound, got %v", err)
	}
}

func TestUpdateReceiptDropsAndAddsItems(t *testing.T) {
	tr, _ := newTracker(t)
	ctx := context.Background()
	a := mustItem(t, tr, "a", 1)
	b := mustItem(t, tr, "b", 1)
	c := mustItem(t, tr, "c", 1)

	res, err := tr.CreateReceipt(ctx, "alice", receiptOf(
		receipt.Line{ItemID: a.ItemID, Description: "a", QuantityReceived: 2},
		receipt.Line{ItemID: b.ItemID, Description: "b", QuantityReceived: 3},
	))
	if err != nil {
		t.Fatal(err)
	}

	upd, err := tr.UpdateReceipt(ctx, "alice", res.Receipt.ID, receiptOf(
		receipt.Line{ItemID: a.ItemID, Description: "a", QuantityReceived: 4},
		receipt.Line{ItemID: c.ItemID, Description: "c", QuantityReceived: 5},
	))
	if err != nil {
		t.Fatalf("UpdateReceipt: %v", err)
	}

	tests := []struct {
		itemID string
		stock  int
		tagged int
	}{
		{a.ItemID, 5, 1},
		{b.ItemID, 1, 0},
		{c.ItemID, 6, 1},
	}
	for _, tt := range tests {
		t.Run(tt.itemID, func(t *testing.T) {
			if got := stockOf(t, tr, tt.itemID); got != tt.stock {
				t.Errorf("expected stock %d, got %d", tt.stock, got)
			}
			if got := len(correlated(t, tr, tt.itemID, res.Receipt.ID)); got != tt.tagged {
				t.Errorf("expected %d tagged entries, got %d", tt.tagged, got)
			}
		})
	}
	if len(upd.Receipt.ItemRefs) != 2 {
		t.Errorf("expected 2 item refs, got %v", upd.Receipt.ItemRefs)
	}
}

func TestUsageSubtractsStock(t *testing.T) {
	tr, _ := newTracker(t)
	ctx := context.Background()
	it := mustItem(t, tr, "pipe", 10)

	res, err := tr.CreateUsage(ctx, "carol", stockwise.UsageInput{
		JobNumber: "JOB-7",
		DateUsed:  types.Day(2026, time.March, 2),
		Items:     []usage.Line{{ItemID: it.ItemID, Description: "pipe", QuantityUsed: 3}},
	})
	if err != nil {
		t.Fatalf("CreateUsage: %v", err)
	}
	if got := stockOf(t, tr, it.ItemID); got != 7 {
		t.Errorf("expected 7, got %d", got)
	}
	tagged := correlated(t, tr, it.ItemID, res.Usage.ID)
	if len(tagged) != 1 || tagged[0].Delta != -3 || tagged[0].Label != history.LabelUsed {
		t.Errorf("expected one -3 Used entry, got %v", tagged)
	}

	if _, err := tr.DeleteUsage(ctx, res.Usage.ID); err != nil {
		t.Fatal(err)
	}
	if got := stockOf(t, tr, it.ItemID); got != 10 {
		t.Errorf("expected 10 after delete, got %d", got)
	}
}

func TestMissingItemBecomesWarning(t *testing.T) {
	rec := &recorder{}
	tr, _ := newTracker(t, stockwise.WithPlugin(rec))
	ctx := context.Background()
	it := mustItem(t, tr, "bolt", 0)

	res, err := tr.CreateReceipt(ctx, "alice", receiptOf(
		receipt.Line{ItemID: it.ItemID, Description: "bolt", QuantityReceived: 2},
		receipt.Line{ItemID: "I404", Description: "ghost", QuantityReceived: 1},
	))
	if err != nil {
		t.Fatalf("CreateReceipt: %v", err)
	}
	if len(res.Warnings) != 1 {
		t.Fatalf("expected one warning, got %v", res.Warnings)
	}
	w := res.Warnings[0]
	if w.ItemID != "I404" || w.Reason != reconcile.ReasonItemNotFound || w.RecordID != res.Receipt.ID.String() {
		t.Errorf("unexpected warning %+v", w)
	}
	if got := stockOf(t, tr, it.ItemID); got != 2 {
		t.Errorf("existing line should still apply, got stock %d", got)
	}
	if _, err := tr.GetReceipt(ctx, res.Receipt.ID); err != nil {
		t.Errorf("receipt should be saved: %v", err)
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.warnings) != 1 {
		t.Errorf("expected plugin to see one warning, got %v", rec.warnings)
	}
}

func TestReplaceWithoutEntryWarns(t *testing.T) {
	tr, s := newTracker(t)
	ctx := context.Background()
	it := mustItem(t, tr, "bolt", 0)

	res, err := tr.CreateReceipt(ctx, "alice", receiptOf(receipt.Line{ItemID: it.ItemID, Description: "bolt", QuantityReceived: 2}))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.ResetHistory(ctx); err != nil {
		t.Fatal(err)
	}

	upd, err := tr.UpdateReceipt(ctx, "alice", res.Receipt.ID, receiptOf(receipt.Line{ItemID: it.ItemID, Description: "bolt", QuantityReceived: 9}))
	if err != nil {
		t.Fatalf("UpdateReceipt: %v", err)
	}
	if len(upd.Warnings) != 1 || upd.Warnings[0].Reason != reconcile.ReasonNoCorrelatedEntry {
		t.Fatalf("expected a no correlated entry warning, got %v", upd.Warnings)
	}
	if got := stockOf(t, tr, it.ItemID); got != 0 {
		t.Errorf("replace without entry must not append, got stock %d", got)
	}
}

func TestRecordValidation(t *testing.T) {
	tr, _ := newTracker(t)
	ctx := context.Background()
	it := mustItem(t, tr, "bolt", 0)
	line := receipt.Line{ItemID: it.ItemID, Description: "bolt", QuantityReceived: 1}

	tests := []struct {
		name  string
		in    stockwise.ReceiptInput
		check func(error) bool
	}{
		{"missing po number", stockwise.ReceiptInput{DateReceived: types.Day(2026, 1, 1), Items: []receipt.Line{line}}, stockwise.IsValidation},
		{"missing date", stockwise.ReceiptInput{PONumber: "PO", Items: []receipt.Line{line}}, stockwise.IsValidation},
		{"no lines", receiptOf(), stockwise.IsValidation},
		{"negative quantity", receiptOf(receipt.Line{ItemID: it.ItemID, Description: "bolt", QuantityReceived: -1}), stockwise.IsValidation},
		{"duplicate line", receiptOf(line, line), func(err error) bool { return errors.Is(err, stockwise.ErrDuplicateLine) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tr.CreateReceipt(ctx, "alice", tt.in)
			if err == nil || !tt.check(err) {
				t.Errorf("unexpected error %v", err)
			}
		})
	}

	if got := stockOf(t, tr, it.ItemID); got != 0 {
		t.Errorf("rejected receipts must not touch stock, got %d", got)
	}
	list, err := tr.ListReceipts(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 0 {
		t.Errorf("expected no stored receipts, got %d", len(list))
	}
}

func TestConcurrentReceiptsOnOneItem(t *testing.T) {
	tr, _ := newTracker(t)
	ctx := context.Background()
	it := mustItem(t, tr, "bolt", 10)

	const n = 20
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := tr.CreateReceipt(ctx, "alice", receiptOf(receipt.Line{ItemID: it.ItemID, Description: "bolt", QuantityReceived: 1}))
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("CreateReceipt: %v", err)
		}
	}

	got, err := tr.GetItem(ctx, it.ItemID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Stock() != 10+n {
		t.Errorf("expected stock %d, got %d", 10+n, got.Stock())
	}
	if len(got.History) != n+1 {
		t.Errorf("expected %d entries, got %d", n+1, len(got.History))
	}
}

// conflictStore fails the first writes with a version conflict.
type conflictStore struct {
	*memory.Store
	mu       sync.Mutex
	failures int
}

func (s *conflictStore) UpdateItem(ctx context.Context, it *item.Item) error {
	s.mu.Lock()
	if s.failures > 0 {
		s.failures--
		s.mu.Unlock()
		return stockwise.ErrVersionConflict
	}
	s.mu.Unlock()
	return s.Store.UpdateItem(ctx, it)
}

func TestVersionConflictRetries(t *testing.T) {
	tests := []struct {
		name     string
		retries  int
		failures int
		wantErr  bool
	}{
		{"recovers", 3, 2, false},
		{"gives up", 1, 2, true},
		{"no retries", 0, 1, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			s := &conflictStore{Store: memory.New()}
			tr := stockwise.New(s,
				stockwise.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
				stockwise.WithReconcileRetries(tt.retries),
			)
			it, err := tr.CreateItem(ctx, "alice", stockwise.ItemInput{Description: "bolt", Stock: 1})
			if err != nil {
				t.Fatal(err)
			}

			s.mu.Lock()
			s.failures = tt.failures
			s.mu.Unlock()

			_, err = tr.AdjustStock(ctx, "alice", it.ItemID, 1)
			if tt.wantErr {
				if !errors.Is(err, stockwise.ErrVersionConflict) || !stockwise.IsRetryable(err) {
					t.Errorf("expected retryable version conflict, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("AdjustStock: %v", err)
			}
			got, _ := tr.GetItem(ctx, it.ItemID)
			if got.Stock() != 2 {
				t.Errorf("expected stock 2, got %d", got.Stock())
			}
		})
	}
}

// deletingStore deletes every receipt and usage right after it is inserted.
type deletingStore struct {
	*memory.Store
	tr      *stockwise.Tracker
	deleted chan error
}

func (s *deletingStore) CreateReceipt(ctx context.Context, r *receipt.Receipt) error {
	if err := s.Store.CreateReceipt(ctx, r); err != nil {
		return err
	}
	go func() {
		_, err := s.tr.DeleteReceipt(ctx, r.ID)
		s.deleted <- err
	}()
	return nil
}

func (s *deletingStore) CreateUsage(ctx context.Context, u *usage.Usage) error {
	if err := s.Store.CreateUsage(ctx, u); err != nil {
		return err
	}
	go func() {
		_, err := s.tr.DeleteUsage(ctx, u.ID)
		s.deleted <- err
	}()
	return nil
}

func (s *deletingStore) wait(t *testing.T) {
	t.Helper()
	select {
	case err := <-s.deleted:
		if err != nil {
			t.Fatalf("delete: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("delete did not finish")
	}
}

func TestDeleteDuringCreateLeavesNoEntries(t *testing.T) {
	ctx := context.Background()
	s := &deletingStore{Store: memory.New(), deleted: make(chan error, 1)}
	tr := stockwise.New(s, stockwise.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	s.tr = tr
	it := mustItem(t, tr, "bolt", 10)

	res, err := tr.CreateReceipt(ctx, "alice", receiptOf(receipt.Line{ItemID: it.ItemID, Description: "bolt", QuantityReceived: 5}))
	if err != nil {
		t.Fatalf("CreateReceipt: %v", err)
	}
	s.wait(t)

	if _, err := tr.GetReceipt(ctx, res.Receipt.ID); !stockwise.IsNotFound(err) {
		t.Errorf("expected receipt to be gone, got %v", err)
	}
	if got := correlated(t, tr, it.ItemID, res.Receipt.ID); len(got) != 0 {
		t.Errorf("expected no entries for the deleted receipt, got %v", got)
	}

	use, err := tr.CreateUsage(ctx, "alice", stockwise.UsageInput{
		JobNumber: "JOB-1",
		DateUsed:  types.Day(2026, time.March, 3),
		Items:     []usage.Line{{ItemID: it.ItemID, Description: "bolt", QuantityUsed: 3}},
	})
	if err != nil {
		t.Fatalf("CreateUsage: %v", err)
	}
	s.wait(t)

	if _, err := tr.GetUsage(ctx, use.Usage.ID); !stockwise.IsNotFound(err) {
		t.Errorf("expected usage to be gone, got %v", err)
	}
	if got := correlated(t, tr, it.ItemID, use.Usage.ID); len(got) != 0 {
		t.Errorf("expected no entries for the deleted usage, got %v", got)
	}
	if got := stockOf(t, tr, it.ItemID); got != 10 {
		t.Errorf("expected stock 10, got %d", got)
	}
	findings, err := tr.CheckIntegrity(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(findings) != 0 {
		t.Errorf("expected a clean ledger, got %v", findings)
	}
}

// Package storetest is a conformance suite every store.Store backend runs
// from its own tests.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/xraph/stockwise"
	"github.com/xraph/stockwise/history"
	"github.com/xraph/stockwise/id"
	"github.com/xraph/stockwise/item"
	"github.com/xraph/stockwise/receipt"
	"github.com/xraph/stockwise/requirement"
	"github.com/xraph/stockwise/store"
	"github.com/xraph/stockwise/types"
	"github.com/xraph/stockwise/usage"
	"github.com/xraph/stockwise/user"
)

// Factory returns a fresh, migrated store for one subtest.
type Factory func(t *testing.T) store.Store

// Run executes the suite against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Helper()

	tests := []struct {
		name string
		fn   func(t *testing.T, s store.Store)
	}{
		{"ItemCRUD", testItemCRUD},
		{"ItemVersionConflict", testItemVersionConflict},
		{"ItemSearchAndPaging", testItemSearchAndPaging},
		{"LatestItemID", testLatestItemID},
		{"ResetHistory", testResetHistory},
		{"ReceiptCRUD", testReceiptCRUD},
		{"UsageCRUD", testUsageCRUD},
		{"RequirementCRUD", testRequirementCRUD},
		{"UserUniqueness", testUserUniqueness},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.fn(t, newStore(t))
		})
	}
}

var (
	ctx = context.Background()
	at  = time.Date(2024, 5, 2, 14, 11, 9, 123_000_000, time.UTC)
)

func newItem(itemID string, stock int) *item.Item {
	return &item.Item{
		Entity:      types.NewEntity(),
		ID:          id.NewItemID(),
		ItemID:      itemID,
		Description: "Item " + itemID,
		History:     []history.Entry{history.NewEntry("alice", stock, history.LabelStock, at, "")},
		MinLevel:    1,
	}
}

func testItemCRUD(t *testing.T, s store.Store) {
	it := newItem("I001", 10)
	it.Material = "steel"
	it.History = append(it.History, history.Entry{Actor: "old", Raw: "old hand-written note"})
	if err := s.CreateItem(ctx, it); err != nil {
		t.Fatalf("CreateItem: %v", err)
	}
	if err := s.CreateItem(ctx, newItem("I001", 1)); !errors.Is(err, stockwise.ErrAlreadyExists) {
		t.Errorf("duplicate item number: expected ErrAlreadyExists, got %v", err)
	}

	got, err := s.GetItem(ctx, "I001")
	if err != nil {
		t.Fatalf("GetItem: %v", err)
	}
	if got.ID.String() != it.ID.String() || got.Material != "steel" || got.Stock() != 10 {
		t.Errorf("unexpected item: %+v", got)
	}
	if len(got.History) != 2 || history.Format(got.History[1]) != "old hand-written note" {
		t.Errorf("history not preserved: %v", history.FormatAll(got.History))
	}
	if !got.History[0].Timestamp.Equal(at) {
		t.Errorf("timestamp = %v, want %v", got.History[0].Timestamp, at)
	}

	byID, err := s.GetItemByID(ctx, it.ID)
	if err != nil || byID.ItemID != "I001" {
		t.Errorf("GetItemByID: %v %+v", err, byID)
	}

	got.Comment = "top shelf"
	got.History = append(got.History, history.NewEntry("bob", 5, history.LabelReceived, at, "rcpt_x"))
	before := got.Version
	if err := s.UpdateItem(ctx, got); err != nil {
		t.Fatalf("UpdateItem: %v", err)
	}
	if got.Version != before+1 {
		t.Errorf("version = %d, want %d", got.Version, before+1)
	}
	reread, _ := s.GetItem(ctx, "I001")
	if reread.Comment != "top shelf" || reread.Stock() != 15 || reread.Version != got.Version {
		t.Errorf("update not persisted: %+v", reread)
	}

	if err := s.DeleteItem(ctx, "I001"); err != nil {
		t.Fatalf("DeleteItem: %v", err)
	}
	if _, err := s.GetItem(ctx, "I001"); !errors.Is(err, stockwise.ErrItemNotFound) {
		t.Errorf("expected ErrItemNotFound after delete, got %v", err)
	}
	if err := s.DeleteItem(ctx, "I001"); !errors.Is(err, stockwise.ErrItemNotFound) {
		t.Errorf("second delete: expected ErrItemNotFound, got %v", err)
	}
	if _, err := s.GetItemByID(ctx, id.NewItemID()); !errors.Is(err, stockwise.ErrItemNotFound) {
		t.Errorf("GetItemByID unknown: expected ErrItemNotFound, got %v", err)
	}
}

func testItemVersionConflict(t *testing.T, s store.Store) {
	if err := s.CreateItem(ctx, newItem("I001", 10)); err != nil {
		t.Fatal(err)
	}
	a, _ := s.GetItem(ctx, "I001")
	b, _ := s.GetItem(ctx, "I001")

	a.History = append(a.History, history.NewEntry("a", 1, history.LabelStock, at, ""))
	if err := s.UpdateItem(ctx, a); err != nil {
		t.Fatalf("first writer: %v", err)
	}
	b.History = append(b.History, history.NewEntry("b", 2, history.LabelStock, at, ""))
	if err := s.UpdateItem(ctx, b); !errors.Is(err, stockwise.ErrVersionConflict) {
		t.Fatalf("stale writer: expected ErrVersionConflict, got %v", err)
	}

	final, _ := s.GetItem(ctx, "I001")
	if final.Stock() != 11 {
		t.Errorf("stock = %d, want 11", final.Stock())
	}

	ghost := newItem("I404", 0)
	if err := s.UpdateItem(ctx, ghost); !errors.Is(err, stockwise.ErrItemNotFound) {
		t.Errorf("missing item: expected ErrItemNotFound, got %v", err)
	}
}

func testItemSearchAndPaging(t *testing.T, s store.Store) {
	for _, n := range []string{"I003", "I001", "I002"} {
		it := newItem(n, 1)
		if n == "I002" {
			it.Description = "Copper Pipe"
		}
		if err := s.CreateItem(ctx, it); err != nil {
			t.Fatal(err)
		}
	}

	all, err := s.ListItems(ctx, item.ListOpts{})
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 || all[0].ItemID != "I001" || all[2].ItemID != "I003" {
		t.Errorf("expected items ordered by number, got %v", itemIDs(all))
	}

	page, _ := s.ListItems(ctx, item.ListOpts{Limit: 1, Offset: 1})
	if len(page) != 1 || page[0].ItemID != "I002" {
		t.Errorf("paging: got %v", itemIDs(page))
	}

	found, _ := s.ListItems(ctx, item.ListOpts{Search: "copper"})
	if len(found) != 1 || found[0].ItemID != "I002" {
		t.Errorf("search: got %v", itemIDs(found))
	}
}

func testLatestItemID(t *testing.T, s store.Store) {
	latest, err := s.LatestItemID(ctx)
	if err != nil || latest != "" {
		t.Fatalf("empty store: %q %v", latest, err)
	}
	for _, n := range []string{"I002", "I999", "I1000", "SPARE", "I12x"} {
		if err := s.CreateItem(ctx, newItem(n, 0)); err != nil {
			t.Fatal(err)
		}
	}
	latest, err = s.LatestItemID(ctx)
	if err != nil {
		t.Fatal(err)
	}
	// Lexicographic: "I999" > "I1000".
	if latest != "I999" {
		t.Errorf("LatestItemID = %q, want I999", latest)
	}
}

func testResetHistory(t *testing.T, s store.Store) {
	for _, n := range []string{"I001", "I002"} {
		if err := s.CreateItem(ctx, newItem(n, 7)); err != nil {
			t.Fatal(err)
		}
	}
	before, _ := s.GetItem(ctx, "I001")

	n, err := s.ResetHistory(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("reset %d items, want 2", n)
	}
	after, _ := s.GetItem(ctx, "I001")
	if after.Stock() != 0 || len(after.History) != 0 {
		t.Errorf("history not cleared: %v", history.FormatAll(after.History))
	}
	if after.Version <= before.Version {
		t.Error("reset must bump the version")
	}
	if after.Description != before.Description {
		t.Error("reset must keep item details")
	}
}

func testReceiptCRUD(t *testing.T, s store.Store) {
	itemRef := id.NewItemID()
	r := &receipt.Receipt{
		Entity:       types.NewEntity(),
		ID:           id.NewReceiptID(),
		PONumber:     "PO-1",
		DateReceived: types.Day(2024, 5, 1),
		Items:        []receipt.Line{{ItemID: "I001", Description: "Bolt", QuantityReceived: 5}},
		ItemRefs:     []id.ItemID{itemRef},
	}
	if err := s.CreateReceipt(ctx, r); err != nil {
		t.Fatalf("CreateReceipt: %v", err)
	}

	got, err := s.GetReceipt(ctx, r.ID)
	if err != nil {
		t.Fatalf("GetReceipt: %v", err)
	}
	if got.PONumber != "PO-1" || got.DateReceived.DayString() != "2024-05-01" ||
		len(got.Items) != 1 || got.Items[0].QuantityReceived != 5 ||
		len(got.ItemRefs) != 1 || got.ItemRefs[0].String() != itemRef.String() {
		t.Errorf("unexpected receipt: %+v", got)
	}

	got.PONumber = "PO-2"
	got.Items = append(got.Items, receipt.Line{ItemID: "I002", Description: "Nut", QuantityReceived: 1})
	if err := s.UpdateReceipt(ctx, got); err != nil {
		t.Fatalf("UpdateReceipt: %v", err)
	}
	reread, _ := s.GetReceipt(ctx, r.ID)
	if reread.PONumber != "PO-2" || len(reread.Items) != 2 {
		t.Errorf("update not persisted: %+v", reread)
	}

	list, _ := s.ListReceipts(ctx)
	if len(list) != 1 {
		t.Errorf("ListReceipts = %d, want 1", len(list))
	}

	if err := s.DeleteReceipt(ctx, r.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := s.GetReceipt(ctx, r.ID); !errors.Is(err, stockwise.ErrReceiptNotFound) {
		t.Errorf("expected ErrReceiptNotFound, got %v", err)
	}
	if err := s.UpdateReceipt(ctx, r); !errors.Is(err, stockwise.ErrReceiptNotFound) {
		t.Errorf("update of deleted receipt: expected ErrReceiptNotFound, got %v", err)
	}

	for range 3 {
		extra := &receipt.Receipt{Entity: types.NewEntity(), ID: id.NewReceiptID(), PONumber: "PO", DateReceived: types.Day(2024, 1, 1)}
		if err := s.CreateReceipt(ctx, extra); err != nil {
			t.Fatal(err)
		}
	}
	n, err := s.DeleteAllReceipts(ctx)
	if err != nil || n != 3 {
		t.Errorf("DeleteAllReceipts = %d, %v", n, err)
	}
}

func testUsageCRUD(t *testing.T, s store.Store) {
	u := &usage.Usage{
		Entity:    types.NewEntity(),
		ID:        id.NewUsageID(),
		JobNumber: "J-7",
		DateUsed:  types.Day(2024, 6, 3),
		Items:     []usage.Line{{ItemID: "I001", Description: "Bolt", QuantityUsed: 2}},
	}
	if err := s.CreateUsage(ctx, u); err != nil {
		t.Fatalf("CreateUsage: %v", err)
	}
	got, err := s.GetUsage(ctx, u.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.JobNumber != "J-7" || got.Items[0].QuantityUsed != 2 || got.DateUsed.MonthKey() != "2024-06" {
		t.Errorf("unexpected usage: %+v", got)
	}

	got.Items = nil
	if err := s.UpdateUsage(ctx, got); err != nil {
		t.Fatal(err)
	}
	reread, _ := s.GetUsage(ctx, u.ID)
	if len(reread.Items) != 0 {
		t.Errorf("items not cleared: %+v", reread.Items)
	}

	list, _ := s.ListUsages(ctx)
	if len(list) != 1 {
		t.Errorf("ListUsages = %d, want 1", len(list))
	}
	if err := s.DeleteUsage(ctx, u.ID); err != nil {
		t.Fatal(err)
	}
	if err := s.DeleteUsage(ctx, u.ID); !errors.Is(err, stockwise.ErrUsageNotFound) {
		t.Errorf("expected ErrUsageNotFound, got %v", err)
	}
	if n, err := s.DeleteAllUsages(ctx); err != nil || n != 0 {
		t.Errorf("DeleteAllUsages on empty = %d, %v", n, err)
	}
}

func testRequirementCRUD(t *testing.T, s store.Store) {
	r := &requirement.Requirement{
		Entity:    types.NewEntity(),
		ID:        id.NewRequirementID(),
		JobNumber: "J-1",
		NeededBy:  types.Day(2024, 7, 1),
		Items:     []requirement.Line{{ItemID: "I001", Description: "Bolt", QuantityNeeded: 12}},
	}
	if err := s.CreateRequirement(ctx, r); err != nil {
		t.Fatalf("CreateRequirement: %v", err)
	}
	got, err := s.GetRequirement(ctx, r.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.JobNumber != "J-1" || got.Items[0].QuantityNeeded != 12 || got.NeededBy.DayString() != "2024-07-01" {
		t.Errorf("unexpected requirement: %+v", got)
	}

	got.JobNumber = "J-2"
	if err := s.UpdateRequirement(ctx, got); err != nil {
		t.Fatal(err)
	}
	list, _ := s.ListRequirements(ctx)
	if len(list) != 1 || list[0].JobNumber != "J-2" {
		t.Errorf("ListRequirements: %+v", list)
	}

	if err := s.DeleteRequirement(ctx, r.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := s.GetRequirement(ctx, r.ID); !errors.Is(err, stockwise.ErrRequirementNotFound) {
		t.Errorf("expected ErrRequirementNotFound, got %v", err)
	}
	if n, err := s.DeleteAllRequirements(ctx); err != nil || n != 0 {
		t.Errorf("DeleteAllRequirements on empty = %d, %v", n, err)
	}
}

func testUserUniqueness(t *testing.T, s store.Store) {
	alice := &user.User{
		Entity:             types.NewEntity(),
		ID:                 id.NewUserID(),
		UserID:             "alice",
		Email:              "alice@example.com",
		PasswordHash:       "hash",
		SecurityQuestion:   "pet?",
		SecurityAnswerHash: "answer",
	}
	if err := s.CreateUser(ctx, alice); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	dupName := &user.User{Entity: types.NewEntity(), ID: id.NewUserID(), UserID: "alice", Email: "other@example.com"}
	if err := s.CreateUser(ctx, dupName); !errors.Is(err, stockwise.ErrUsernameTaken) {
		t.Errorf("duplicate name: expected ErrUsernameTaken, got %v", err)
	}
	dupEmail := &user.User{Entity: types.NewEntity(), ID: id.NewUserID(), UserID: "bob", Email: "alice@example.com"}
	if err := s.CreateUser(ctx, dupEmail); !errors.Is(err, stockwise.ErrEmailTaken) {
		t.Errorf("duplicate email: expected ErrEmailTaken, got %v", err)
	}

	byEmail, err := s.GetUserByEmail(ctx, "alice@example.com")
	if err != nil || byEmail.UserID != "alice" || byEmail.PasswordHash != "hash" {
		t.Fatalf("GetUserByEmail: %v %+v", err, byEmail)
	}

	bob := &user.User{Entity: types.NewEntity(), ID: id.NewUserID(), UserID: "bob", Email: "bob@example.com"}
	if err := s.CreateUser(ctx, bob); err != nil {
		t.Fatal(err)
	}
	bob.UserID = "alice"
	if err := s.UpdateUser(ctx, bob); !errors.Is(err, stockwise.ErrUsernameTaken) {
		t.Errorf("rename onto taken name: expected ErrUsernameTaken, got %v", err)
	}

	byEmail.UserID = "alicia"
	if err := s.UpdateUser(ctx, byEmail); err != nil {
		t.Fatalf("rename: %v", err)
	}
	if _, err := s.GetUser(ctx, "alice"); !errors.Is(err, stockwise.ErrUserNotFound) {
		t.Errorf("old name still resolves: %v", err)
	}
	if _, err := s.GetUser(ctx, "alicia"); err != nil {
		t.Errorf("new name does not resolve: %v", err)
	}

	if err := s.DeleteUser(ctx, alice.ID); err != nil {
		t.Fatal(err)
	}
	if err := s.DeleteUser(ctx, alice.ID); !errors.Is(err, stockwise.ErrUserNotFound) {
		t.Errorf("expected ErrUserNotFound, got %v", err)
	}
}

func itemIDs(items []*item.Item) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.ItemID
	}
	return out
}

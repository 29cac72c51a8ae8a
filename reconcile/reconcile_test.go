package reconcile_test

import (
	"testing"
	"time"

	"github.com/xraph/stockwise/history"
	"github.com/xraph/stockwise/reconcile"
)

var now = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

// applyAll runs changes against a map of item ledgers, collecting the
// item ids whose change did not match.
func applyAll(ledgers map[string][]history.Entry, recordID string, changes []reconcile.Change) []string {
	var missed []string
	for _, c := range changes {
		entries, ok := ledgers[c.ItemID]
		if !ok {
			missed = append(missed, c.ItemID)
			continue
		}
		next, matched := reconcile.Apply(entries, recordID, c)
		if !matched {
			missed = append(missed, c.ItemID)
		}
		ledgers[c.ItemID] = next
	}
	return missed
}

func TestKindDelta(t *testing.T) {
	if reconcile.Receipt.Delta(5) != 5 {
		t.Error("receipts must add stock")
	}
	if reconcile.Usage.Delta(5) != -5 {
		t.Error("usages must remove stock")
	}
}

func TestPlanCreate(t *testing.T) {
	lines := []reconcile.Line{{ItemID: "I001", Quantity: 5}, {ItemID: "I002", Quantity: 3}}
	changes := reconcile.PlanCreate(reconcile.Usage, "use_1", "bob", lines, now)

	if len(changes) != 2 {
		t.Fatalf("expected 2 changes, got %d", len(changes))
	}
	for i, c := range changes {
		if c.Op != reconcile.Append {
			t.Errorf("change %d: op = %v, want append", i, c.Op)
		}
		if c.Entry.CorrelationID != "use_1" || c.Entry.Label != history.LabelUsed || c.Entry.Actor != "bob" {
			t.Errorf("change %d: unexpected entry %+v", i, c.Entry)
		}
		if c.Entry.Delta >= 0 {
			t.Errorf("change %d: usage delta must be negative, got %d", i, c.Entry.Delta)
		}
	}
}

func TestPlanUpdate(t *testing.T) {
	prev := []reconcile.Line{{ItemID: "I001", Quantity: 5}, {ItemID: "I002", Quantity: 3}}
	next := []reconcile.Line{{ItemID: "I001", Quantity: 8}, {ItemID: "I003", Quantity: 1}}

	changes := reconcile.PlanUpdate(reconcile.Receipt, "rcpt_1", "bob", prev, next, now)
	want := []struct {
		item  string
		op    reconcile.Op
		delta int
	}{
		{"I001", reconcile.Replace, 8},
		{"I003", reconcile.Append, 1},
		{"I002", reconcile.Remove, 0},
	}

	if len(changes) != len(want) {
		t.Fatalf("expected %d changes, got %d: %+v", len(want), len(changes), changes)
	}
	for i, w := range want {
		c := changes[i]
		if c.ItemID != w.item || c.Op != w.op || c.Entry.Delta != w.delta {
			t.Errorf("change %d: got (%s %v %d), want (%s %v %d)", i, c.ItemID, c.Op, c.Entry.Delta, w.item, w.op, w.delta)
		}
	}
}

func TestPlanDeleteDeduplicates(t *testing.T) {
	changes := reconcile.PlanDelete([]reconcile.Line{{ItemID: "I001"}, {ItemID: "I001"}, {ItemID: "I002"}})
	if len(changes) != 2 {
		t.Fatalf("expected 2 removals, got %d", len(changes))
	}
	for _, c := range changes {
		if c.Op != reconcile.Remove {
			t.Errorf("unexpected op %v", c.Op)
		}
	}
}

func TestApply(t *testing.T) {
	base := []history.Entry{
		history.NewEntry("a", 10, history.LabelStock, now, ""),
		history.NewEntry("a", 5, history.LabelReceived, now, "rcpt_1"),
		history.NewEntry("a", -1, history.LabelUsed, now, "use_1"),
	}
	replacement := history.NewEntry("b", 8, history.LabelReceived, now.Add(time.Hour), "rcpt_1")

	t.Run("replace keeps position", func(t *testing.T) {
		out, ok := reconcile.Apply(base, "rcpt_1", reconcile.Change{ItemID: "I001", Op: reconcile.Replace, Entry: replacement})
		if !ok {
			t.Fatal("expected match")
		}
		if out[1].Delta != 8 || out[1].Actor != "b" {
			t.Errorf("entry not replaced in place: %+v", out[1])
		}
		if base[1].Delta != 5 {
			t.Error("input was modified")
		}
		if history.Stock(out) != 17 {
			t.Errorf("stock = %d, want 17", history.Stock(out))
		}
	})

	t.Run("replace without correlated entry is a no-op", func(t *testing.T) {
		out, ok := reconcile.Apply(base, "rcpt_9", reconcile.Change{ItemID: "I001", Op: reconcile.Replace, Entry: replacement})
		if ok {
			t.Error("expected no match")
		}
		if len(out) != len(base) || history.Stock(out) != history.Stock(base) {
			t.Error("entries changed on a missed replace")
		}
	})

	t.Run("remove drops every correlated entry", func(t *testing.T) {
		doubled := append(history.Clone(base), history.NewEntry("a", 2, history.LabelReceived, now, "rcpt_1"))
		out, ok := reconcile.Apply(doubled, "rcpt_1", reconcile.Change{ItemID: "I001", Op: reconcile.Remove})
		if !ok {
			t.Fatal("expected match")
		}
		if len(history.Correlated(out, "rcpt_1")) != 0 {
			t.Error("correlated entries survived removal")
		}
		if history.Stock(out) != 9 {
			t.Errorf("stock = %d, want 9", history.Stock(out))
		}
	})

	t.Run("append", func(t *testing.T) {
		e := history.NewEntry("a", 4, history.LabelReceived, now, "rcpt_2")
		out, ok := reconcile.Apply(base, "rcpt_2", reconcile.Change{ItemID: "I001", Op: reconcile.Append, Entry: e})
		if !ok || len(out) != 4 || out[3].CorrelationID != "rcpt_2" {
			t.Errorf("append failed: %+v", out)
		}
		if len(base) != 3 {
			t.Error("input was modified")
		}
	})
}

func TestLifecycleScenario(t *testing.T) {
	ledgers := map[string][]history.Entry{
		"I007": {history.NewEntry("alice", 10, history.LabelStock, now, "")},
	}

	lines := []reconcile.Line{{ItemID: "I007", Quantity: 5}}
	applyAll(ledgers, "R1", reconcile.PlanCreate(reconcile.Receipt, "R1", "bob", lines, now))
	if got := history.Stock(ledgers["I007"]); got != 15 {
		t.Fatalf("after create: stock = %d, want 15", got)
	}
	tagged := history.Correlated(ledgers["I007"], "R1")
	if len(tagged) != 1 || tagged[0].Delta != 5 {
		t.Fatalf("after create: tagged entries = %+v", tagged)
	}

	edited := []reconcile.Line{{ItemID: "I007", Quantity: 8}}
	applyAll(ledgers, "R1", reconcile.PlanUpdate(reconcile.Receipt, "R1", "bob", lines, edited, now))
	if got := history.Stock(ledgers["I007"]); got != 18 {
		t.Fatalf("after edit: stock = %d, want 18", got)
	}
	tagged = history.Correlated(ledgers["I007"], "R1")
	if len(tagged) != 1 || tagged[0].Delta != 8 {
		t.Fatalf("after edit: tagged entries = %+v", tagged)
	}

	applyAll(ledgers, "R1", reconcile.PlanDelete(edited))
	if got := history.Stock(ledgers["I007"]); got != 10 {
		t.Fatalf("after delete: stock = %d, want 10", got)
	}
	if len(history.Correlated(ledgers["I007"], "R1")) != 0 {
		t.Fatal("after delete: tagged entry survived")
	}
}

func TestUpdateDroppingItem(t *testing.T) {
	ledgers := map[string][]history.Entry{
		"I001": {history.NewEntry("a", 1, history.LabelStock, now, "")},
		"I002": {history.NewEntry("a", 1, history.LabelStock, now, "")},
	}
	prev := []reconcile.Line{{ItemID: "I001", Quantity: 2}, {ItemID: "I002", Quantity: 4}}
	applyAll(ledgers, "use_1", reconcile.PlanCreate(reconcile.Usage, "use_1", "a", prev, now))

	next := []reconcile.Line{{ItemID: "I001", Quantity: 2}}
	missed := applyAll(ledgers, "use_1", reconcile.PlanUpdate(reconcile.Usage, "use_1", "a", prev, next, now))
	if len(missed) != 0 {
		t.Fatalf("unexpected misses: %v", missed)
	}
	if len(history.Correlated(ledgers["I002"], "use_1")) != 0 {
		t.Error("dropped item still carries a correlated entry")
	}
	if history.Stock(ledgers["I002"]) != 1 {
		t.Errorf("dropped item stock = %d, want 1", history.Stock(ledgers["I002"]))
	}
	if history.Stock(ledgers["I001"]) != -1 {
		t.Errorf("kept item stock = %d, want -1", history.Stock(ledgers["I001"]))
	}
}

func TestDuplicates(t *testing.T) {
	got := reconcile.Duplicates([]reconcile.Line{{ItemID: "I1"}, {ItemID: "I2"}, {ItemID: "I1"}})
	if len(got) != 1 || got[0] != "I1" {
		t.Errorf("Duplicates = %v", got)
	}
	if reconcile.Duplicates(nil) != nil {
		t.Error("expected nil for no lines")
	}
}

// Package reconcile keeps item ledgers consistent with the order and use
// records that write to them.
//
// Every record owns exactly one entry per referenced item, tagged with the
// record id as correlation id. The planners in this package compute which
// entries must be appended, replaced or removed when a record is created,
// edited or deleted; Apply performs one such change on an item's entries.
// Nothing here touches storage.
package reconcile

import (
	"time"

	"github.com/xraph/stockwise/history"
)

// Kind describes a record type that writes ledger entries.
type Kind struct {
	Name  string
	Label history.Label
	Sign  int
}

var (
	// Receipt records stock received against a purchase order.
	Receipt = Kind{Name: "receipt", Label: history.LabelReceived, Sign: +1}
	// Usage records stock consumed by a job.
	Usage = Kind{Name: "usage", Label: history.LabelUsed, Sign: -1}
)

// Delta converts a non-negative record quantity into a signed ledger delta.
func (k Kind) Delta(quantity int) int {
	return k.Sign * quantity
}

// Line is one (item, quantity) pair of a record.
type Line struct {
	ItemID   string
	Quantity int
}

// Op is the kind of change applied to an item's entries.
type Op int

const (
	// Append adds a new correlated entry.
	Append Op = iota
	// Replace overwrites the first correlated entry in place.
	Replace
	// Remove drops every correlated entry.
	Remove
)

func (o Op) String() string {
	switch o {
	case Append:
		return "append"
	case Replace:
		return "replace"
	case Remove:
		return "remove"
	default:
		return "unknown"
	}
}

// Change is one ledger mutation on one item.
type Change struct {
	ItemID string
	Op     Op
	// Entry is the entry to write; unused for Remove.
	Entry history.Entry
}

// Warning reasons.
const (
	ReasonItemNotFound      = "item not found"
	ReasonNoCorrelatedEntry = "no correlated entry"
)

// Warning is a non-fatal reconciliation finding returned to the caller
// alongside the saved record.
type Warning struct {
	ItemID   string `json:"itemId"`
	RecordID string `json:"recordId"`
	Reason   string `json:"reason"`
}

// PlanCreate appends one correlated entry per line.
func PlanCreate(kind Kind, recordID, actor string, lines []Line, now time.Time) []Change {
	changes := make([]Change, 0, len(lines))
	for _, l := range lines {
		changes = append(changes, Change{
			ItemID: l.ItemID,
			Op:     Append,
			Entry:  history.NewEntry(actor, kind.Delta(l.Quantity), kind.Label, now, recordID),
		})
	}
	return changes
}

// PlanUpdate moves a record from its old lines to the new ones. Items kept
// get their entry replaced, new items get an entry appended, and dropped
// items lose every entry correlated to the record. Changes come out in the
// order of next, followed by removals in the order of prev.
func PlanUpdate(kind Kind, recordID, actor string, prev, next []Line, now time.Time) []Change {
	before := make(map[string]struct{}, len(prev))
	for _, l := range prev {
		before[l.ItemID] = struct{}{}
	}
	after := make(map[string]struct{}, len(next))

	changes := make([]Change, 0, len(prev)+len(next))
	for _, l := range next {
		after[l.ItemID] = struct{}{}
		op := Append
		if _, ok := before[l.ItemID]; ok {
			op = Replace
		}
		changes = append(changes, Change{
			ItemID: l.ItemID,
			Op:     op,
			Entry:  history.NewEntry(actor, kind.Delta(l.Quantity), kind.Label, now, recordID),
		})
	}
	for _, l := range prev {
		if _, ok := after[l.ItemID]; ok {
			continue
		}
		changes = append(changes, Change{ItemID: l.ItemID, Op: Remove})
		// Guard against prev listing the same item twice.
		after[l.ItemID] = struct{}{}
	}
	return changes
}

// PlanDelete removes the record's entries from every item it references.
func PlanDelete(prev []Line) []Change {
	seen := make(map[string]struct{}, len(prev))
	changes := make([]Change, 0, len(prev))
	for _, l := range prev {
		if _, ok := seen[l.ItemID]; ok {
			continue
		}
		seen[l.ItemID] = struct{}{}
		changes = append(changes, Change{ItemID: l.ItemID, Op: Remove})
	}
	return changes
}

// Apply performs c on entries, which belong to c.ItemID, and reports whether
// anything was matched. A Replace without a correlated entry leaves the
// entries untouched. The input slice is never modified.
func Apply(entries []history.Entry, recordID string, c Change) ([]history.Entry, bool) {
	switch c.Op {
	case Append:
		out := make([]history.Entry, len(entries), len(entries)+1)
		copy(out, entries)
		return append(out, c.Entry), true
	case Replace:
		idx := history.FindCorrelated(entries, recordID)
		if idx < 0 {
			return entries, false
		}
		out := history.Clone(entries)
		out[idx] = c.Entry
		return out, true
	case Remove:
		out, removed := history.WithoutCorrelated(entries, recordID)
		return out, removed > 0
	default:
		return entries, false
	}
}

// Duplicates returns item ids that appear on more than one line, in order of
// their second appearance.
func Duplicates(lines []Line) []string {
	seen := make(map[string]struct{}, len(lines))
	var dups []string
	for _, l := range lines {
		if _, ok := seen[l.ItemID]; ok {
			dups = append(dups, l.ItemID)
			continue
		}
		seen[l.ItemID] = struct{}{}
	}
	return dups
}

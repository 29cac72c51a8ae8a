// Package stockwise provides an inventory tracking engine for small
// workshops and stores.
//
// Stockwise is designed as a library first. The Tracker engine owns the
// business rules and talks to any store.Store backend; the api package
// puts an HTTP/JSON surface on top of it and cmd/stockwise runs it as a
// service. It provides:
//
//   - Items with minimum and maximum stock levels
//   - An append-only style ledger per item from which stock is derived
//   - Order (receipt) and use records reconciled into item ledgers
//   - Forward-looking job requirements
//   - Accounts with bcrypt-hashed passwords and security answers
//   - A dashboard of alerts, shortfalls and trends
//   - Spreadsheet backup with an optional destructive reset
//
// # Quick Start
//
//	import (
//	    "github.com/xraph/stockwise"
//	    "github.com/xraph/stockwise/store/memory"
//	)
//
//	t := stockwise.New(memory.New())
//	if err := t.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer t.Stop()
//
//	it, err := t.CreateItem(ctx, "alice", stockwise.ItemInput{
//	    Description: "M6 hex bolt",
//	    Stock:       10,
//	    MinLevel:    5,
//	})
//
// # Ledger
//
// Stock is never stored. Every item keeps an ordered list of entries, each
// a signed change with an actor, a label and a timestamp:
//
//	alice +10 Stock 2024-05-01T09:00:00.000Z
//	bob +5 Received 2024-05-02T14:11:09.123Z (rcpt_01hx...)
//
// The current stock is the sum of all deltas. Entries written on behalf of
// an order or use record carry that record's id as a correlation id, so
// editing or deleting the record edits or removes exactly those entries.
//
// # Concurrency
//
// Item writes are compare-and-swap on a per-item version. The Tracker
// serializes writers of one item through a lock.Locker and retries on
// version conflicts, so overlapping record mutations never lose entries.
package stockwise

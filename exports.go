package stockwise

import (
	"github.com/xraph/stockwise/history"
	"github.com/xraph/stockwise/reconcile"
	"github.com/xraph/stockwise/types"
)

// Re-export common types so callers don't have to import the sub-packages.

// Entity is re-exported from types package.
type Entity = types.Entity

// Date is re-exported from types package.
type Date = types.Date

// Entry is a ledger entry on an item's history.
type Entry = history.Entry

// Warning is a non-fatal reconciliation finding.
type Warning = reconcile.Warning

// Re-export constructors
var (
	NewEntity = types.NewEntity
	NewDate   = types.NewDate
	ParseDate = types.ParseDate
)

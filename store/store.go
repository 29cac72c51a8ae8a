// Package store defines the unified persistence interface for Stockwise.
package store

import (
	"context"

	"github.com/xraph/stockwise/item"
	"github.com/xraph/stockwise/receipt"
	"github.com/xraph/stockwise/requirement"
	"github.com/xraph/stockwise/usage"
	"github.com/xraph/stockwise/user"
)

// Store is the unified storage interface for all Stockwise records.
// Backends live in the memory, sqlite, mongo and postgres sub-packages.
type Store interface {
	item.Store
	receipt.Store
	usage.Store
	requirement.Store
	user.Store

	// ResetHistory clears the ledger of every item, bumping versions, and
	// reports how many items were touched.
	ResetHistory(ctx context.Context) (int64, error)

	// Core methods
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
